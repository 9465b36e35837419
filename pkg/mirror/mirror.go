// Package mirror pushes a task project into an issue tracker: top-level tasks
// with the sync label become milestones, their subtasks become issues, and
// completion state flows from the task list to the tracker.
package mirror

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/harrisonrobin/taskbutler/pkg/model"
	"github.com/harrisonrobin/taskbutler/pkg/title"
)

// Tracker is the issue-tracker surface the mirror needs.
type Tracker interface {
	ListMilestones(ctx context.Context) ([]RemoteMilestone, error)
	CreateMilestone(ctx context.Context, req MilestoneRequest) (RemoteMilestone, error)
	ListIssues(ctx context.Context) ([]RemoteIssue, error)
	CreateIssue(ctx context.Context, req IssueRequest) (RemoteIssue, error)
	UpdateIssueState(ctx context.Context, number int, state State) error
}

// TaskList stages and commits title changes. The mirror commits after every
// created entity so issues can rely on their milestone being recorded.
type TaskList interface {
	model.Stager
	Commit(ctx context.Context) error
}

type Options struct {
	Delimiter string
	// Marker is the substring that marks a title as already mirrored,
	// typically "https://github.com".
	Marker   string
	Assignee string
	Location *time.Location
	Mode     model.RunMode
}

type Mirror struct {
	opts    Options
	tracker Tracker
	tasks   TaskList
	logger  *log.Logger
}

func New(opts Options, tracker Tracker, tasks TaskList, logger *log.Logger) *Mirror {
	if opts.Location == nil {
		opts.Location = time.Local
	}
	return &Mirror{opts: opts, tracker: tracker, tasks: tasks, logger: logger.WithPrefix("github")}
}

// Plan is the local model built from one project.
type Plan struct {
	Milestones []*Milestone
	Issues     []*Issue
}

// Collect builds the local model from the tasks of projectID.
func (m *Mirror) Collect(snap *model.Snapshot, projectID, labelID string) *Plan {
	plan := &Plan{}
	byTask := make(map[string]*Milestone)
	for i := range snap.Tasks {
		t := &snap.Tasks[i]
		if t.ProjectID != projectID || t.ParentID != "" || !t.HasLabel(labelID) || !t.Active() {
			continue
		}
		ms := &Milestone{
			Title:  t.Title,
			TaskID: t.ID,
			Body:   strings.Join(t.Notes, "\n"),
			Due:    m.dueOf(t),
			State:  StateOf(t.Done),
			Synced: title.Contains(t.Title, m.opts.Marker),
		}
		m.logger.Debug("milestone found", "title", t.Title, "synced", ms.Synced)
		plan.Milestones = append(plan.Milestones, ms)
		byTask[t.ID] = ms
	}
	for i := range snap.Tasks {
		t := &snap.Tasks[i]
		if t.ProjectID != projectID || !t.Active() {
			continue
		}
		if _, ok := byTask[t.ParentID]; !ok {
			continue
		}
		is := &Issue{
			Title:        t.Title,
			TaskID:       t.ID,
			ParentTaskID: t.ParentID,
			Body:         strings.Join(t.Notes, "\n"),
			State:        StateOf(t.Done),
			Synced:       title.Contains(t.Title, m.opts.Marker),
		}
		m.logger.Debug("issue found", "title", t.Title, "synced", is.Synced)
		plan.Issues = append(plan.Issues, is)
	}
	return plan
}

func (m *Mirror) dueOf(t *model.Task) *time.Time {
	if t.Due == nil || t.Due.Value == "" {
		return nil
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02"} {
		if d, err := time.ParseInLocation(layout, t.Due.Value, m.opts.Location); err == nil {
			return &d
		}
	}
	m.logger.Warn("unparsable due date ignored", "task", t.ID, "due", t.Due.Value)
	return nil
}

// Match adopts the tracker number of every remote milestone whose title is
// contained in a local milestone title.
func Match(plan *Plan, remote []RemoteMilestone) {
	for _, ms := range plan.Milestones {
		for _, rm := range remote {
			if rm.Title != "" && strings.Contains(ms.Title, rm.Title) {
				ms.TrackerID = rm.Number
			}
		}
	}
}

// Result counts what one mirror pass did.
type Result struct {
	MilestonesCreated int
	IssuesCreated     int
	StatesPushed      int
}

// Run collects, matches, creates and propagates state, in that order. A
// tracker error aborts the pass; entities already created stay committed.
func (m *Mirror) Run(ctx context.Context, snap *model.Snapshot, projectID, labelID string) (Result, error) {
	var res Result
	plan := m.Collect(snap, projectID, labelID)

	remoteMilestones, err := m.tracker.ListMilestones(ctx)
	if err != nil {
		return res, fmt.Errorf("list milestones: %w", err)
	}
	Match(plan, remoteMilestones)

	for _, ms := range plan.Milestones {
		if ms.Synced {
			continue
		}
		if m.opts.Mode == model.DryRun {
			m.logger.Info("dry run, would create milestone", "title", ms.Title)
			continue
		}
		created, err := m.tracker.CreateMilestone(ctx, MilestoneRequest{
			Title: title.Headline(ms.Title, m.opts.Delimiter),
			State: ms.State,
			Body:  ms.Body,
			Due:   ms.Due,
		})
		if err != nil {
			return res, fmt.Errorf("create milestone %q: %w", ms.Title, err)
		}
		ms.TrackerID = created.Number
		ms.Synced = true
		if err := m.annotate(ctx, snap, ms.TaskID, &ms.Title, created.URL); err != nil {
			return res, err
		}
		m.logger.Info("milestone created", "title", ms.Title, "number", created.Number)
		res.MilestonesCreated++
	}

	remoteIssues, err := m.tracker.ListIssues(ctx)
	if err != nil {
		return res, fmt.Errorf("list issues: %w", err)
	}

	parents := make(map[string]*Milestone, len(plan.Milestones))
	for _, ms := range plan.Milestones {
		parents[ms.TaskID] = ms
	}
	for _, is := range plan.Issues {
		parent := parents[is.ParentTaskID]
		if !is.Synced {
			if !parent.Synced {
				continue
			}
			if m.opts.Mode == model.DryRun {
				m.logger.Info("dry run, would create issue", "title", is.Title, "milestone", parent.Title)
				continue
			}
			if parent.TrackerID == 0 {
				m.logger.Warn("milestone has no tracker number, issue skipped", "issue", is.Title, "milestone", parent.Title)
				continue
			}
			created, err := m.tracker.CreateIssue(ctx, IssueRequest{
				Title:     title.Headline(is.Title, m.opts.Delimiter),
				Body:      is.Body,
				Assignee:  m.opts.Assignee,
				Milestone: parent.TrackerID,
			})
			if err != nil {
				return res, fmt.Errorf("create issue %q: %w", is.Title, err)
			}
			is.TrackerID = created.Number
			is.Synced = true
			if err := m.annotate(ctx, snap, is.TaskID, &is.Title, created.URL); err != nil {
				return res, err
			}
			m.logger.Info("issue created", "title", is.Title, "milestone", parent.TrackerID)
			res.IssuesCreated++
		}

		pushed, err := m.propagate(ctx, is, remoteIssues)
		if err != nil {
			return res, err
		}
		res.StatesPushed += pushed
	}
	return res, nil
}

// propagate pushes the local state of a mirrored issue to every remote issue
// whose title it contains.
func (m *Mirror) propagate(ctx context.Context, is *Issue, remote []RemoteIssue) (int, error) {
	pushed := 0
	for _, ri := range remote {
		if ri.Title == "" || !strings.Contains(is.Title, ri.Title) || ri.State == is.State {
			continue
		}
		if m.opts.Mode == model.DryRun {
			m.logger.Info("dry run, would change issue state", "number", ri.Number, "from", ri.State, "to", is.State)
			continue
		}
		if err := m.tracker.UpdateIssueState(ctx, ri.Number, is.State); err != nil {
			return pushed, fmt.Errorf("update issue %d state: %w", ri.Number, err)
		}
		m.logger.Info("issue state changed", "number", ri.Number, "from", ri.State, "to", is.State)
		pushed++
	}
	return pushed, nil
}

// annotate prepends url to the task title and commits right away.
func (m *Mirror) annotate(ctx context.Context, snap *model.Snapshot, taskID string, cur *string, url string) error {
	next := title.PrependReference(*cur, m.opts.Delimiter, NormalizeURL(url))
	m.tasks.UpdateTask(taskID, next)
	if err := m.tasks.Commit(ctx); err != nil {
		return fmt.Errorf("commit title of task %s: %w", taskID, err)
	}
	*cur = next
	snap.Retitle(taskID, next)
	return nil
}
