// Package google stores generated documents and template copies in Google
// Docs and Google Drive.
package google

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"google.golang.org/api/docs/v1"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/option"

	"github.com/harrisonrobin/taskbutler/pkg/model"
)

const (
	folderMimeType   = "application/vnd.google-apps.folder"
	documentMimeType = "application/vnd.google-apps.document"
)

// Services bundles the Drive and Docs API clients sharing one HTTP client.
type Services struct {
	Drive *drive.Service
	Docs  *docs.Service
}

func NewServices(ctx context.Context, client *http.Client) (*Services, error) {
	driveSrv, err := drive.NewService(ctx, option.WithHTTPClient(client))
	if err != nil {
		return nil, fmt.Errorf("unable to create Drive client: %w", err)
	}
	docsSrv, err := docs.NewService(ctx, option.WithHTTPClient(client))
	if err != nil {
		return nil, fmt.Errorf("unable to create Docs client: %w", err)
	}
	return &Services{Drive: driveSrv, Docs: docsSrv}, nil
}

// ResolveFolderID returns the ID of the first folder named name.
func (s *Services) ResolveFolderID(ctx context.Context, name string) (string, error) {
	q := fmt.Sprintf("mimeType = '%s' and name = '%s' and trashed = false", folderMimeType, escape(name))
	id, found, err := s.first(ctx, q)
	if err != nil {
		return "", fmt.Errorf("search folder %q: %w", name, err)
	}
	if !found {
		return "", fmt.Errorf("folder %q: %w", name, model.ErrNotFound)
	}
	return id, nil
}

func (s *Services) first(ctx context.Context, q string) (string, bool, error) {
	list, err := s.Drive.Files.List().
		Q(q).
		Fields("files(id, name)").
		PageSize(1).
		Context(ctx).
		Do()
	if err != nil {
		return "", false, err
	}
	if len(list.Files) == 0 {
		return "", false, nil
	}
	return list.Files[0].Id, true, nil
}

// escape quotes a value for a Drive search query string literal.
func escape(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	return strings.ReplaceAll(s, `'`, `\'`)
}

func inFolderQuery(folderID, name, mimeType string) string {
	q := fmt.Sprintf("'%s' in parents and name = '%s' and trashed = false", escape(folderID), escape(name))
	if mimeType != "" {
		q += fmt.Sprintf(" and mimeType = '%s'", mimeType)
	}
	return q
}
