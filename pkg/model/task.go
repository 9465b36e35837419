package model

import (
	"errors"
	"fmt"
	"slices"
)

// ErrNotFound is returned when a label, project or folder lookup fails.
// Features treat it as "skip for this run" rather than fatal.
var ErrNotFound = errors.New("not found")

// Due is a task's due value as the provider reports it. Value is either a
// date ("2006-01-02") or a timestamp, with a trailing "Z" when it is UTC.
type Due struct {
	Value    string
	Timezone string
}

// HasTime reports whether the due value carries a time component.
func (d *Due) HasTime() bool {
	return d != nil && len(d.Value) > len("2006-01-02")
}

// Task is a read snapshot of a task owned by the task-list provider.
type Task struct {
	ID        string
	Title     string
	ParentID  string
	ProjectID string
	Labels    []string
	Done      bool
	Deleted   bool
	Archived  bool
	Due       *Due
	Notes     []string
}

// HasLabel reports whether the task carries the label ID.
func (t *Task) HasLabel(labelID string) bool {
	return slices.Contains(t.Labels, labelID)
}

// Active reports whether the task is neither deleted nor archived.
func (t *Task) Active() bool {
	return !t.Deleted && !t.Archived
}

type Label struct {
	ID   string
	Name string
}

type Project struct {
	ID       string
	Name     string
	ParentID string
}

// Snapshot is the task collection read once at the start of a run.
type Snapshot struct {
	Tasks    []Task
	Labels   []Label
	Projects []Project
}

// LabelID returns the ID of the label with the given name.
func (s *Snapshot) LabelID(name string) (string, error) {
	for _, l := range s.Labels {
		if l.Name == name {
			return l.ID, nil
		}
	}
	return "", fmt.Errorf("label %q: %w", name, ErrNotFound)
}

// ProjectID returns the ID of the project with the given name.
func (s *Snapshot) ProjectID(name string) (string, error) {
	for _, p := range s.Projects {
		if p.Name == name {
			return p.ID, nil
		}
	}
	return "", fmt.Errorf("project %q: %w", name, ErrNotFound)
}

// Task returns the task with the given ID, or nil.
func (s *Snapshot) Task(id string) *Task {
	for i := range s.Tasks {
		if s.Tasks[i].ID == id {
			return &s.Tasks[i]
		}
	}
	return nil
}

// Retitle replaces the in-memory title of a task so later features in the
// same run see staged changes.
func (s *Snapshot) Retitle(id, title string) {
	if t := s.Task(id); t != nil {
		t.Title = title
	}
}

// Update is a staged title change.
type Update struct {
	TaskID string
	Title  string
}

// Stager receives title updates; they take effect on Commit.
type Stager interface {
	UpdateTask(id, title string)
}
