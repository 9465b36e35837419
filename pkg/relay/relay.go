// Package relay turns labeled tasks with a due time into scheduled
// notification jobs, and removes jobs whose task no longer qualifies.
package relay

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/log"

	"github.com/harrisonrobin/taskbutler/pkg/model"
	"github.com/harrisonrobin/taskbutler/pkg/title"
)

// Job is a scheduled command keyed by the owning task ID.
type Job struct {
	Key      string
	Schedule string
	Command  string
	Args     []string
}

// Scheduler is the job store, e.g. the user crontab.
type Scheduler interface {
	ListJobs(ctx context.Context) ([]Job, error)
	UpsertJob(ctx context.Context, job Job) error
	RemoveJob(ctx context.Context, key string) error
}

type Options struct {
	Delimiter string
	Location  *time.Location
	// Notifier is the command the script runs, followed by the quoted headline.
	Notifier string
	Args     []string
	Mode     model.RunMode
	// Now is the clock used to drop dues that already passed.
	Now func() time.Time
}

type Reconciler struct {
	opts      Options
	scheduler Scheduler
	scripts   *ScriptDir
	logger    *log.Logger
}

func New(opts Options, scheduler Scheduler, scripts *ScriptDir, logger *log.Logger) *Reconciler {
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Reconciler{opts: opts, scheduler: scheduler, scripts: scripts, logger: logger.WithPrefix("relay")}
}

// Result counts what one pass did.
type Result struct {
	Installed int
	Skipped   int
	Removed   int
}

// Run installs a job for every qualifying task and then removes every job
// and script that belongs to no installed task. A cron entry has no year, so
// a due that already passed is not installed and its old job is collected.
func (r *Reconciler) Run(ctx context.Context, snap *model.Snapshot, labelID string) (Result, error) {
	var res Result
	keep := make(map[string]bool)
	now := r.opts.Now()

	for i := range snap.Tasks {
		t := &snap.Tasks[i]
		if !t.HasLabel(labelID) || !t.Active() || t.Done {
			continue
		}
		at, err := FireTime(t.Due, r.opts.Location)
		if err != nil {
			if errors.Is(err, ErrDateOnly) {
				r.logger.Info("due date has no time, skipped", "task", t.ID, "title", t.Title)
			} else {
				r.logger.Warn("no usable due time, skipped", "task", t.ID, "err", err)
			}
			res.Skipped++
			continue
		}
		if !at.After(now) {
			r.logger.Info("due time passed, skipped", "task", t.ID, "at", at.Format(time.RFC3339))
			res.Skipped++
			continue
		}
		keep[t.ID] = true

		job := Job{Key: t.ID, Schedule: CronSpec(at), Command: r.scripts.ScriptPath(t.ID), Args: r.opts.Args}
		if r.opts.Mode == model.DryRun {
			r.logger.Info("dry run, would schedule", "task", t.ID, "at", at.Format(time.RFC3339))
			continue
		}
		payload := r.opts.Notifier + " " + ShellQuote(title.Headline(t.Title, r.opts.Delimiter))
		if _, err := r.scripts.Write(t.ID, payload); err != nil {
			return res, err
		}
		if err := r.scheduler.UpsertJob(ctx, job); err != nil {
			return res, fmt.Errorf("schedule task %s: %w", t.ID, err)
		}
		r.logger.Info("job scheduled", "task", t.ID, "at", at.Format(time.RFC3339), "cron", job.Schedule)
		res.Installed++
	}

	removed, err := r.collect(ctx, keep)
	res.Removed = removed
	return res, err
}

// collect deletes jobs and scripts whose key is not in keep.
func (r *Reconciler) collect(ctx context.Context, keep map[string]bool) (int, error) {
	jobs, err := r.scheduler.ListJobs(ctx)
	if err != nil {
		return 0, fmt.Errorf("list jobs: %w", err)
	}
	removed := 0
	for _, j := range jobs {
		if keep[j.Key] {
			continue
		}
		if r.opts.Mode == model.DryRun {
			r.logger.Info("dry run, would remove job", "key", j.Key)
			continue
		}
		if err := r.scheduler.RemoveJob(ctx, j.Key); err != nil {
			return removed, fmt.Errorf("remove job %s: %w", j.Key, err)
		}
		r.logger.Info("job removed", "key", j.Key)
		removed++
	}

	stems, err := r.scripts.Stems()
	if err != nil {
		return removed, fmt.Errorf("list scripts: %w", err)
	}
	for _, s := range stems {
		if keep[s] || r.opts.Mode == model.DryRun {
			continue
		}
		if err := r.scripts.Remove(s); err != nil {
			return removed, fmt.Errorf("remove script %s: %w", s, err)
		}
		r.logger.Debug("script removed", "key", s)
	}
	return removed, nil
}
