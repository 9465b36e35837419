package google

import (
	"io"
	"testing"

	"github.com/charmbracelet/log"
)

func TestInFolderQuery(t *testing.T) {
	tests := []struct {
		folder, name, mime string
		want               string
	}{
		{"F1", "Report", "", "'F1' in parents and name = 'Report' and trashed = false"},
		{"F1", "Report", documentMimeType, "'F1' in parents and name = 'Report' and trashed = false and mimeType = 'application/vnd.google-apps.document'"},
		{"F1", "it's", "", `'F1' in parents and name = 'it\'s' and trashed = false`},
	}
	for _, tt := range tests {
		if got := inFolderQuery(tt.folder, tt.name, tt.mime); got != tt.want {
			t.Errorf("inFolderQuery(%q, %q) = %q, want %q", tt.folder, tt.name, got, tt.want)
		}
	}
}

func TestEscape(t *testing.T) {
	if got := escape(`a\b'c`); got != `a\\b\'c` {
		t.Errorf("escape = %q", got)
	}
}

func TestDocumentURL(t *testing.T) {
	if got := DocumentURL("abc"); got != "https://docs.google.com/document/d/abc/edit" {
		t.Errorf("DocumentURL = %q", got)
	}
}

func TestFileName(t *testing.T) {
	tests := []struct{ template, want string }{
		{"/home/me/template.xlsx", "Budget.xlsx"},
		{"/home/me/template", "Budget"},
	}
	for _, tt := range tests {
		f := NewFileStore(nil, "F", tt.template, log.New(io.Discard))
		if got := f.FileName("Budget"); got != tt.want {
			t.Errorf("FileName with %q = %q, want %q", tt.template, got, tt.want)
		}
	}
}
