// Package progress writes a completion bar into the title of every task that
// carries the progress label, computed from its direct subtasks.
package progress

import (
	"fmt"
	"math"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/harrisonrobin/taskbutler/pkg/model"
	"github.com/harrisonrobin/taskbutler/pkg/title"
)

// Symbols holds the bar drawn for each bucket, in order 0, 20, 40, 60, 80, 100.
type Symbols [6]string

// DefaultSymbols mirrors the bar set shipped in the sample configuration.
var DefaultSymbols = Symbols{"○○○○○", "●○○○○", "●●○○○", "●●●○○", "●●●●○", "●●●●●"}

// Bucket maps a percentage to its bucket index. Upper bounds are inclusive:
// 0 is bucket 0, (0,20] bucket 1, ..., (80,100] bucket 5.
func Bucket(percent int) int {
	switch {
	case percent <= 0:
		return 0
	case percent >= 100:
		return 5
	}
	return (percent + 19) / 20
}

// Snapshot is the computed progress of one tracked task.
type Snapshot struct {
	TaskID        string
	SubtasksTotal int
	SubtasksDone  int
	Percent       int
}

// Percent rounds done/total to a whole percentage, half to even. A task
// without qualifying subtasks counts as complete.
func Percent(done, total int) int {
	if total <= 0 {
		return 100
	}
	return int(math.RoundToEven(float64(done) * 100 / float64(total)))
}

type Options struct {
	Delimiter     string
	CommentMarker string
	Symbols       Symbols
}

type Aggregator struct {
	opts   Options
	logger *log.Logger
}

func New(opts Options, logger *log.Logger) *Aggregator {
	return &Aggregator{opts: opts, logger: logger.WithPrefix("progress")}
}

// Metadata renders the title suffix for a percentage.
func (a *Aggregator) Metadata(percent int) string {
	return fmt.Sprintf("%s %d %%", a.opts.Symbols[Bucket(percent)], percent)
}

// Compute returns the progress of every tracked task in snapshot order.
func (a *Aggregator) Compute(snap *model.Snapshot, labelID string) []Snapshot {
	children := make(map[string][]*model.Task)
	for i := range snap.Tasks {
		c := &snap.Tasks[i]
		if c.ParentID == "" || !c.Active() {
			continue
		}
		if a.opts.CommentMarker != "" && strings.HasPrefix(c.Title, a.opts.CommentMarker) {
			continue
		}
		children[c.ParentID] = append(children[c.ParentID], c)
	}

	var out []Snapshot
	for i := range snap.Tasks {
		t := &snap.Tasks[i]
		if !t.Active() || !t.HasLabel(labelID) {
			continue
		}
		ps := Snapshot{TaskID: t.ID}
		for _, c := range children[t.ID] {
			ps.SubtasksTotal++
			if c.Done {
				ps.SubtasksDone++
			}
		}
		ps.Percent = Percent(ps.SubtasksDone, ps.SubtasksTotal)
		a.logger.Debug("tracked task", "title", t.Title, "done", ps.SubtasksDone, "total", ps.SubtasksTotal)
		out = append(out, ps)
	}
	return out
}

// Result summarizes one aggregation pass.
type Result struct {
	Tracked int
	Changed int
}

// Run stages a new title for every tracked task whose bar changed.
func (a *Aggregator) Run(snap *model.Snapshot, labelID string, stage model.Stager) Result {
	var res Result
	for _, ps := range a.Compute(snap, labelID) {
		res.Tracked++
		t := snap.Task(ps.TaskID)
		head := title.Decode(t.Title, a.opts.Delimiter).Headline
		next := title.Encode(head, a.opts.Delimiter, a.Metadata(ps.Percent))
		if next == t.Title {
			continue
		}
		a.logger.Info("progress updated", "old", t.Title, "new", next)
		stage.UpdateTask(t.ID, next)
		res.Changed++
	}
	return res
}
