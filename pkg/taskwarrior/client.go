package taskwarrior

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os/exec"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/harrisonrobin/taskbutler/pkg/model"
	"github.com/harrisonrobin/taskbutler/pkg/staging"
)

// CommandFunc runs the task binary with args and optional stdin.
type CommandFunc func(ctx context.Context, args []string, stdin io.Reader) ([]byte, error)

type Options struct {
	Binary    string
	ParentUDA string
	Location  *time.Location
	Mode      model.RunMode
}

// Client is the task-list provider backed by taskwarrior.
type Client struct {
	opts   Options
	run    CommandFunc
	queue  *staging.Queue
	known  map[string]*Task
	logger *log.Logger
}

func NewClient(opts Options, logger *log.Logger) *Client {
	if opts.Binary == "" {
		opts.Binary = "task"
	}
	c := &Client{opts: opts, logger: logger.WithPrefix("taskwarrior")}
	c.run = c.execCommand
	return c.init()
}

// NewClientWithCommand lets tests replace the task binary.
func NewClientWithCommand(opts Options, run CommandFunc, logger *log.Logger) *Client {
	c := &Client{opts: opts, run: run, logger: logger.WithPrefix("taskwarrior")}
	return c.init()
}

func (c *Client) init() *Client {
	if c.opts.ParentUDA == "" {
		c.opts.ParentUDA = "parent"
	}
	if c.opts.Location == nil {
		c.opts.Location = time.Local
	}
	c.queue = staging.NewQueue()
	c.known = make(map[string]*Task)
	return c
}

func (c *Client) execCommand(ctx context.Context, args []string, stdin io.Reader) ([]byte, error) {
	cmd := exec.CommandContext(ctx, c.opts.Binary, args...)
	cmd.Stdin = stdin
	output, err := cmd.Output()
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			return nil, fmt.Errorf("taskwarrior command failed: exit code %d, %s, stderr: %s",
				exitErr.ExitCode(), err, exitErr.Stderr)
		}
		return nil, fmt.Errorf("taskwarrior command failed: %w", err)
	}
	return output, nil
}

func (c *Client) GetTasks(ctx context.Context, filter []string) ([]Task, error) {
	args := append([]string{"rc.hooks=0", "rc.json.array=on"}, filter...)
	args = append(args, "export")
	output, err := c.run(ctx, args, nil)
	if err != nil {
		return nil, err
	}
	var tasks []Task
	if err := json.Unmarshal(output, &tasks); err != nil {
		return nil, fmt.Errorf("failed to unmarshal taskwarrior output: %w", err)
	}
	for i := range tasks {
		c.known[tasks[i].UUID] = &tasks[i]
	}
	return tasks, nil
}

// ListTasks exports every task and builds the run snapshot. Labels and
// projects are the distinct tags and project names seen in the export.
func (c *Client) ListTasks(ctx context.Context) (*model.Snapshot, error) {
	tasks, err := c.GetTasks(ctx, nil)
	if err != nil {
		return nil, err
	}
	snap := &model.Snapshot{Tasks: make([]model.Task, 0, len(tasks))}
	labels := make(map[string]bool)
	projects := make(map[string]bool)
	for i := range tasks {
		snap.Tasks = append(snap.Tasks, tasks[i].ToModel(c.opts.ParentUDA, c.opts.Location))
		for _, tag := range tasks[i].Tags {
			labels[tag] = true
		}
		if p := tasks[i].Project; p != "" {
			projects[p] = true
		}
	}
	for _, name := range sortedKeys(labels) {
		snap.Labels = append(snap.Labels, model.Label{ID: name, Name: name})
	}
	for _, name := range sortedKeys(projects) {
		parent := ""
		if i := strings.LastIndex(name, "."); i > 0 {
			parent = name[:i]
		}
		snap.Projects = append(snap.Projects, model.Project{ID: name, Name: name, ParentID: parent})
	}
	c.logger.Debug("snapshot read", "tasks", len(snap.Tasks), "labels", len(snap.Labels), "projects", len(snap.Projects))
	return snap, nil
}

// GetTask exports a single task by UUID.
func (c *Client) GetTask(ctx context.Context, id string) (*model.Task, error) {
	tasks, err := c.GetTasks(ctx, []string{id})
	if err != nil {
		return nil, err
	}
	if len(tasks) == 0 {
		return nil, fmt.Errorf("task %s: %w", id, model.ErrNotFound)
	}
	t := tasks[0].ToModel(c.opts.ParentUDA, c.opts.Location)
	return &t, nil
}

// UpdateTask stages a new description; nothing is written until Commit.
func (c *Client) UpdateTask(id, title string) {
	c.queue.Set(id, title)
}

// Pending returns the IDs of staged, uncommitted tasks.
func (c *Client) Pending() []string {
	return c.queue.Pending()
}

// Commit writes every staged description with one `task import`.
func (c *Client) Commit(ctx context.Context) error {
	if c.queue.Len() == 0 {
		return nil
	}
	updates := c.queue.Drain()
	if c.opts.Mode == model.DryRun {
		c.logger.Info("dry run, discarding staged updates", "count", len(updates))
		return nil
	}

	records := make([]map[string]json.RawMessage, 0, len(updates))
	for _, u := range updates {
		t, ok := c.known[u.TaskID]
		if !ok {
			if _, err := c.GetTasks(ctx, []string{u.TaskID}); err != nil {
				return fmt.Errorf("load task %s: %w", u.TaskID, err)
			}
			if t, ok = c.known[u.TaskID]; !ok {
				return fmt.Errorf("task %s: %w", u.TaskID, model.ErrNotFound)
			}
		}
		rec, err := t.withDescription(u.Title)
		if err != nil {
			return err
		}
		records = append(records, rec)
	}

	payload, err := json.Marshal(records)
	if err != nil {
		return fmt.Errorf("encode import payload: %w", err)
	}
	if _, err := c.run(ctx, []string{"rc.hooks=0", "import", "-"}, bytes.NewReader(payload)); err != nil {
		return err
	}
	for _, u := range updates {
		t := c.known[u.TaskID]
		t.Description = u.Title
		if t.raw != nil {
			t.raw["description"], _ = json.Marshal(u.Title)
		}
	}
	c.logger.Debug("committed", "count", len(updates))
	return nil
}

func sortedKeys(m map[string]bool) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
