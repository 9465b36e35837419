// Package annotate creates one external resource per labeled task and records
// the resource URL in the task title. The URL in the title is the only record
// that the resource exists, so a task is never processed twice.
package annotate

import (
	"context"
	"fmt"

	"github.com/charmbracelet/log"

	"github.com/harrisonrobin/taskbutler/pkg/model"
	"github.com/harrisonrobin/taskbutler/pkg/title"
)

// CollisionSuffix is appended to a resource name that already exists.
const CollisionSuffix = "1"

// Store creates resources of one kind.
type Store interface {
	// Exists reports whether a resource with this name is already present.
	Exists(ctx context.Context, name string) (bool, error)
	// Create makes the resource and returns the URL to write into the title.
	Create(ctx context.Context, name, headline string) (string, error)
}

type Options struct {
	Kind      string
	Delimiter string
	// Marker is the URL prefix whose presence in a title means the resource
	// was already created.
	Marker string
	Mode   model.RunMode
}

type Annotator struct {
	opts   Options
	store  Store
	logger *log.Logger
}

func New(opts Options, store Store, logger *log.Logger) *Annotator {
	return &Annotator{opts: opts, store: store, logger: logger.WithPrefix(opts.Kind)}
}

// Pending returns the tasks that carry labelID and have no resource yet.
func (a *Annotator) Pending(snap *model.Snapshot, labelID string) []*model.Task {
	var out []*model.Task
	for i := range snap.Tasks {
		t := &snap.Tasks[i]
		if !t.Active() || !t.HasLabel(labelID) || title.Contains(t.Title, a.opts.Marker) {
			continue
		}
		out = append(out, t)
	}
	return out
}

// Run creates a resource for every pending task and stages the annotated
// title. The first store error stops the pass; titles staged before it are
// kept. In dry-run mode nothing is created or staged.
func (a *Annotator) Run(ctx context.Context, snap *model.Snapshot, labelID string, stage model.Stager) (int, error) {
	pending := a.Pending(snap, labelID)
	if a.opts.Mode == model.DryRun {
		a.logger.Info("dry run, not creating resources", "pending", len(pending))
		return 0, nil
	}

	created := 0
	for _, t := range pending {
		headline := title.Headline(t.Title, a.opts.Delimiter)
		name := title.Alnum(headline)
		if name == "" {
			a.logger.Warn("headline has no usable characters, skipped", "task", t.ID, "title", t.Title)
			continue
		}

		exists, err := a.store.Exists(ctx, name)
		if err != nil {
			return created, fmt.Errorf("probe %s %q: %w", a.opts.Kind, name, err)
		}
		if exists {
			// The renamed resource no longer matches its task by name.
			renamed := name + CollisionSuffix
			a.logger.Warn("name already taken, renaming", "from", name, "to", renamed)
			name = renamed
		}

		url, err := a.store.Create(ctx, name, headline)
		if err != nil {
			return created, fmt.Errorf("create %s for task %s: %w", a.opts.Kind, t.ID, err)
		}
		next := title.PrependReference(t.Title, a.opts.Delimiter, url)
		stage.UpdateTask(t.ID, next)
		a.logger.Info("resource attached", "task", t.ID, "url", url)
		created++
	}
	return created, nil
}
