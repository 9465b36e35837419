package google

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/log"
	"google.golang.org/api/docs/v1"
	"google.golang.org/api/drive/v3"
)

// Sharing policies for created documents.
const (
	SharePrivate = "private"
	ShareAnyone  = "anyone"
)

// DocStore creates one Google Doc per task inside a folder.
type DocStore struct {
	srv      *Services
	folderID string
	sharing  string
	logger   *log.Logger
}

func NewDocStore(srv *Services, folderID, sharing string, logger *log.Logger) *DocStore {
	return &DocStore{srv: srv, folderID: folderID, sharing: sharing, logger: logger.WithPrefix("docs")}
}

func (d *DocStore) Exists(ctx context.Context, name string) (bool, error) {
	_, found, err := d.srv.first(ctx, inFolderQuery(d.folderID, name, documentMimeType))
	return found, err
}

// Create makes the document, writes the headline into it, moves it into the
// folder and applies the sharing policy.
func (d *DocStore) Create(ctx context.Context, name, headline string) (string, error) {
	doc, err := d.srv.Docs.Documents.Create(&docs.Document{Title: name}).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("create document: %w", err)
	}
	id := doc.DocumentId

	if headline != "" {
		req := &docs.BatchUpdateDocumentRequest{
			Requests: []*docs.Request{{
				InsertText: &docs.InsertTextRequest{
					Text:     headline,
					Location: &docs.Location{Index: 1},
				},
			}},
		}
		if _, err := d.srv.Docs.Documents.BatchUpdate(id, req).Context(ctx).Do(); err != nil {
			return "", fmt.Errorf("write document %s: %w", id, err)
		}
	}

	if err := d.move(ctx, id); err != nil {
		return "", err
	}

	if d.sharing == ShareAnyone {
		perm := &drive.Permission{Type: "anyone", Role: "reader"}
		if _, err := d.srv.Drive.Permissions.Create(id, perm).Context(ctx).Do(); err != nil {
			return "", fmt.Errorf("share document %s: %w", id, err)
		}
	}

	d.logger.Debug("document created", "id", id, "name", name)
	return DocumentURL(id), nil
}

func (d *DocStore) move(ctx context.Context, id string) error {
	f, err := d.srv.Drive.Files.Get(id).Fields("parents").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("get document %s parents: %w", id, err)
	}
	_, err = d.srv.Drive.Files.Update(id, &drive.File{}).
		AddParents(d.folderID).
		RemoveParents(strings.Join(f.Parents, ",")).
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("move document %s: %w", id, err)
	}
	return nil
}

func DocumentURL(id string) string {
	return "https://docs.google.com/document/d/" + id + "/edit"
}
