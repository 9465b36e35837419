package jira

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/charmbracelet/log"

	"github.com/harrisonrobin/taskbutler/pkg/config"
	"github.com/harrisonrobin/taskbutler/pkg/model"
)

type fakeFetcher map[string]string

func (f fakeFetcher) GetIssue(_ context.Context, key string) (Issue, error) {
	s, ok := f[key]
	if !ok {
		return Issue{}, errors.New("404")
	}
	return Issue{Key: key, Summary: s}, nil
}

type stage map[string]string

func (s stage) UpdateTask(id, title string) { s[id] = title }

func newExpander(mode model.RunMode, include, exclude []string) *Expander {
	return New(Options{
		Sites: []Site{
			{URL: "https://acme.atlassian.net/", Prefixes: []string{"OPS"}, Fetcher: fakeFetcher{"OPS-7": "Rotate keys", "WEB-3": "Fix header"}},
			{URL: "https://jira.example.com", Prefixes: []string{"DATA"}, Fetcher: fakeFetcher{"DATA-1": "Backfill"}},
		},
		Include: include,
		Exclude: exclude,
		Mode:    mode,
	}, log.New(io.Discard))
}

func TestReference(t *testing.T) {
	e := newExpander(model.Live, nil, nil)
	tests := []struct {
		title    string
		wantSite string
		wantKey  string
		ok       bool
	}{
		{"https://acme.atlassian.net/browse/WEB-3", "https://acme.atlassian.net", "WEB-3", true},
		{"HTTPS://Acme.Atlassian.NET/browse/WEB-3", "https://acme.atlassian.net", "WEB-3", true},
		{"  https://jira.example.com/browse/DATA-12?focus=1", "https://jira.example.com", "DATA-12", true},
		{"OPS-7 follow up", "https://acme.atlassian.net", "OPS-7", true},
		{"DATA-1", "https://jira.example.com", "DATA-1", true},
		{"https://acme.atlassian.net/issues", "", "", false},
		{"Call OPS-7", "", "", false},
		{"OPSX-1", "", "", false},
	}
	for _, tt := range tests {
		site, key, ok := e.Reference(tt.title)
		if ok != tt.ok {
			t.Errorf("Reference(%q) ok = %v, want %v", tt.title, ok, tt.ok)
			continue
		}
		if !ok {
			continue
		}
		if site.URL != tt.wantSite || key != tt.wantKey {
			t.Errorf("Reference(%q) = %s %s, want %s %s", tt.title, site.URL, key, tt.wantSite, tt.wantKey)
		}
	}
}

func snapshot() *model.Snapshot {
	return &model.Snapshot{
		Tasks: []model.Task{
			{ID: "1", Title: "OPS-7", ProjectID: "Work.Client"},
			{ID: "2", Title: "https://acme.atlassian.net/browse/WEB-3", ProjectID: "Work"},
			{ID: "3", Title: "DATA-1", ProjectID: "Home"},
			{ID: "4", Title: "OPS-7", ProjectID: "Work", Done: true},
			{ID: "5", Title: "OPS-99", ProjectID: "Work"},
		},
		Projects: []model.Project{
			{ID: "Work", Name: "Work"},
			{ID: "Work.Client", Name: "Work.Client", ParentID: "Work"},
			{ID: "Home", Name: "Home"},
		},
	}
}

func TestRun(t *testing.T) {
	tests := []struct {
		name             string
		include, exclude []string
		want             map[string]string
	}{
		{
			name: "all projects",
			want: map[string]string{
				"1": "[OPS-7 - Rotate keys](https://acme.atlassian.net/browse/OPS-7)",
				"2": "[WEB-3 - Fix header](https://acme.atlassian.net/browse/WEB-3)",
				"3": "[DATA-1 - Backfill](https://jira.example.com/browse/DATA-1)",
			},
		},
		{
			name:    "include subtree",
			include: []string{"Work"},
			want: map[string]string{
				"1": "[OPS-7 - Rotate keys](https://acme.atlassian.net/browse/OPS-7)",
				"2": "[WEB-3 - Fix header](https://acme.atlassian.net/browse/WEB-3)",
			},
		},
		{
			name:    "exclude nested",
			exclude: []string{"Work/Client"},
			want: map[string]string{
				"2": "[WEB-3 - Fix header](https://acme.atlassian.net/browse/WEB-3)",
				"3": "[DATA-1 - Backfill](https://jira.example.com/browse/DATA-1)",
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := stage{}
			n, err := newExpander(model.Live, tt.include, tt.exclude).Run(context.Background(), snapshot(), got)
			if err != nil {
				t.Fatalf("Run: %v", err)
			}
			if n != len(tt.want) || len(got) != len(tt.want) {
				t.Fatalf("updated %d, staged %v, want %v", n, got, tt.want)
			}
			for id, title := range tt.want {
				if got[id] != title {
					t.Errorf("task %s = %q, want %q", id, got[id], title)
				}
			}
		})
	}
}

func TestRunDryRunStagesNothing(t *testing.T) {
	got := stage{}
	n, err := newExpander(model.DryRun, nil, nil).Run(context.Background(), snapshot(), got)
	if err != nil {
		t.Fatal(err)
	}
	if n != 3 || len(got) != 0 {
		t.Errorf("n = %d, staged = %v", n, got)
	}
}

func TestRunUnknownProject(t *testing.T) {
	_, err := newExpander(model.Live, []string{"Garden"}, nil).Run(context.Background(), snapshot(), stage{})
	if !errors.Is(err, config.ErrInvalid) {
		t.Errorf("err = %v, want ErrInvalid", err)
	}
}
