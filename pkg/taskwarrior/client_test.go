package taskwarrior

import (
	"context"
	"encoding/json"
	"io"
	"testing"
	"time"

	"github.com/charmbracelet/log"

	"github.com/harrisonrobin/taskbutler/pkg/model"
)

const exportJSON = `[
	{
		"uuid": "f45a05b3-c12e-42e5-9c9c-333333333333",
		"description": "Buy milk",
		"status": "pending",
		"due": "20230101T090000Z",
		"project": "Groceries",
		"tags": ["progress", "food"],
		"urgency": 4.2,
		"annotations": [
			{"entry": "20230101T120500Z", "description": "Don't forget almond milk"}
		]
	},
	{
		"uuid": "a1",
		"description": "Milk",
		"status": "completed",
		"project": "Groceries.Dairy",
		"parent": "f45a05b3-c12e-42e5-9c9c-333333333333"
	}
]`

type fakeTask struct {
	calls [][]string
	stdin []string
}

func (f *fakeTask) run(_ context.Context, args []string, stdin io.Reader) ([]byte, error) {
	f.calls = append(f.calls, args)
	if stdin != nil {
		b, _ := io.ReadAll(stdin)
		f.stdin = append(f.stdin, string(b))
		return nil, nil
	}
	return []byte(exportJSON), nil
}

func newTestClient(f *fakeTask, mode model.RunMode) *Client {
	return NewClientWithCommand(Options{Location: time.UTC, Mode: mode}, f.run, log.New(io.Discard))
}

func TestListTasks(t *testing.T) {
	snap, err := newTestClient(&fakeTask{}, model.Live).ListTasks(context.Background())
	if err != nil {
		t.Fatalf("ListTasks failed: %v", err)
	}
	if len(snap.Tasks) != 2 {
		t.Fatalf("Expected 2 tasks, got %d", len(snap.Tasks))
	}
	milk := snap.Tasks[0]
	if milk.Due == nil || milk.Due.Value != "2023-01-01T09:00:00Z" {
		t.Errorf("Expected UTC due, got %+v", milk.Due)
	}
	if len(milk.Notes) != 1 || !milk.HasLabel("progress") {
		t.Errorf("Unexpected mapping: %+v", milk)
	}
	child := snap.Tasks[1]
	if child.ParentID != milk.ID || !child.Done {
		t.Errorf("Unexpected child: %+v", child)
	}
	if _, err := snap.LabelID("food"); err != nil {
		t.Errorf("LabelID: %v", err)
	}
	if len(snap.Projects) != 2 || snap.Projects[1].ParentID != "Groceries" {
		t.Errorf("Projects = %+v", snap.Projects)
	}
}

func TestDateOnlyDue(t *testing.T) {
	var task Task
	if err := json.Unmarshal([]byte(`{"uuid":"x","description":"d","status":"pending","due":"20230101T000000Z"}`), &task); err != nil {
		t.Fatal(err)
	}
	mt := task.ToModel("parent", time.UTC)
	if mt.Due == nil || mt.Due.Value != "2023-01-01" || mt.Due.HasTime() {
		t.Errorf("Expected date-only due, got %+v", mt.Due)
	}
}

func TestCommitImportsFullRecord(t *testing.T) {
	f := &fakeTask{}
	c := newTestClient(f, model.Live)
	ctx := context.Background()
	if _, err := c.ListTasks(ctx); err != nil {
		t.Fatal(err)
	}
	c.UpdateTask("f45a05b3-c12e-42e5-9c9c-333333333333", "Buy milk ‣ ◑ 50 %")
	if err := c.Commit(ctx); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if len(f.stdin) != 1 {
		t.Fatalf("Expected one import, got %d", len(f.stdin))
	}
	var records []map[string]any
	if err := json.Unmarshal([]byte(f.stdin[0]), &records); err != nil {
		t.Fatal(err)
	}
	if records[0]["description"] != "Buy milk ‣ ◑ 50 %" || records[0]["urgency"] == nil || records[0]["project"] != "Groceries" {
		t.Errorf("Unexpected import record: %v", records[0])
	}
	last := f.calls[len(f.calls)-1]
	if last[len(last)-2] != "import" {
		t.Errorf("Expected import call, got %v", last)
	}
	if len(c.Pending()) != 0 {
		t.Error("queue not drained")
	}
}

func TestCommitDryRun(t *testing.T) {
	f := &fakeTask{}
	c := newTestClient(f, model.DryRun)
	c.UpdateTask("a1", "x")
	if err := c.Commit(context.Background()); err != nil {
		t.Fatal(err)
	}
	if len(f.stdin) != 0 {
		t.Error("dry run imported tasks")
	}
}
