package mirror

import (
	"strings"
	"time"
)

// State is an issue or milestone state on the tracker.
type State string

const (
	Open   State = "open"
	Closed State = "closed"
)

// StateOf maps a task's done flag to a tracker state.
func StateOf(done bool) State {
	if done {
		return Closed
	}
	return Open
}

// Milestone is a top-level task carrying the sync label.
type Milestone struct {
	Title     string
	TaskID    string
	TrackerID int
	Body      string
	Due       *time.Time
	State     State
	Synced    bool
}

// Issue is a direct child of a Milestone task.
type Issue struct {
	Title        string
	TaskID       string
	ParentTaskID string
	TrackerID    int
	Body         string
	State        State
	Synced       bool
}

// RemoteMilestone is a milestone as the tracker reports it.
type RemoteMilestone struct {
	Number int
	Title  string
	URL    string
	State  State
}

// RemoteIssue is an issue as the tracker reports it.
type RemoteIssue struct {
	Number int
	Title  string
	URL    string
	State  State
}

type MilestoneRequest struct {
	Title string
	State State
	Body  string
	Due   *time.Time
}

type IssueRequest struct {
	Title     string
	Body      string
	Assignee  string
	Milestone int
}

// NormalizeURL turns a REST API URL into the page URL a person would open:
//
//	https://api.github.com/repos/o/r/milestones/3 -> https://github.com/o/r/milestone/3
//	https://api.github.com/repos/o/r/issues/7     -> https://github.com/o/r/issues/7
func NormalizeURL(u string) string {
	if !strings.Contains(u, "api.github.com") {
		return u
	}
	u = strings.Replace(u, "api.", "", 1)
	u = strings.Replace(u, "/repos", "", 1)
	return strings.Replace(u, "/milestones", "/milestone", 1)
}
