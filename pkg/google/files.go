package google

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
	"google.golang.org/api/drive/v3"
)

// FileStore uploads a copy of a local template file per task.
type FileStore struct {
	srv      *Services
	folderID string
	template string
	logger   *log.Logger
}

func NewFileStore(srv *Services, folderID, template string, logger *log.Logger) *FileStore {
	return &FileStore{srv: srv, folderID: folderID, template: template, logger: logger.WithPrefix("drive")}
}

// FileName is name with the template's extension.
func (f *FileStore) FileName(name string) string {
	return name + filepath.Ext(f.template)
}

func (f *FileStore) Exists(ctx context.Context, name string) (bool, error) {
	_, found, err := f.srv.first(ctx, inFolderQuery(f.folderID, f.FileName(name), ""))
	return found, err
}

func (f *FileStore) Create(ctx context.Context, name, _ string) (string, error) {
	src, err := os.Open(f.template)
	if err != nil {
		return "", fmt.Errorf("open template: %w", err)
	}
	defer src.Close()

	file := &drive.File{Name: f.FileName(name), Parents: []string{f.folderID}}
	created, err := f.srv.Drive.Files.Create(file).
		Media(src).
		Fields("id, webViewLink").
		Context(ctx).
		Do()
	if err != nil {
		return "", fmt.Errorf("upload %s: %w", file.Name, err)
	}
	f.logger.Debug("file uploaded", "id", created.Id, "name", file.Name)
	return created.WebViewLink, nil
}
