// Package butler runs the enabled features once against a single snapshot
// of the task list and flushes their title changes.
package butler

import (
	"context"
	"errors"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/harrisonrobin/taskbutler/pkg/model"
)

// Commit policies.
const (
	CommitBatch   = "batch"
	CommitFeature = "feature"
)

// Provider is the task list a run reads and writes.
type Provider interface {
	ListTasks(ctx context.Context) (*model.Snapshot, error)
	model.Stager
	Pending() []string
	Commit(ctx context.Context) error
}

// Feature is one step of a run. It returns how many tasks it touched. An
// error wrapping model.ErrNotFound skips the feature for this run.
type Feature struct {
	Name string
	Run  func(ctx context.Context, snap *model.Snapshot, stage model.Stager) (int, error)
}

type Options struct {
	Commit string
	Mode   model.RunMode
}

type Butler struct {
	opts     Options
	provider Provider
	features []Feature
	logger   *log.Logger
}

func New(opts Options, provider Provider, logger *log.Logger) *Butler {
	if opts.Commit == "" {
		opts.Commit = CommitFeature
	}
	return &Butler{opts: opts, provider: provider, logger: logger}
}

func (b *Butler) Register(f ...Feature) {
	b.features = append(b.features, f...)
}

// Summary maps feature names to the number of tasks each touched. Skipped
// features are absent.
type Summary map[string]int

// stager keeps the snapshot in step with staged titles so later features
// build on earlier ones instead of overwriting them.
type stager struct {
	snap     *model.Snapshot
	provider Provider
}

func (s stager) UpdateTask(id, title string) {
	s.snap.Retitle(id, title)
	s.provider.UpdateTask(id, title)
}

// Run executes the registered features in order.
func (b *Butler) Run(ctx context.Context) (Summary, error) {
	logger := b.logger.With("run", uuid.NewString())
	logger.Info("run started", "mode", b.opts.Mode, "features", len(b.features))

	snap, err := b.provider.ListTasks(ctx)
	if err != nil {
		return nil, fmt.Errorf("read tasks: %w", err)
	}
	st := stager{snap: snap, provider: b.provider}

	summary := make(Summary)
	for _, f := range b.features {
		n, err := f.Run(ctx, snap, st)
		if errors.Is(err, model.ErrNotFound) {
			logger.Warn("feature skipped", "feature", f.Name, "reason", err)
			continue
		}
		if err != nil {
			err = fmt.Errorf("feature %q: %w", f.Name, err)
			if cerr := b.flush(ctx, logger); cerr != nil {
				return summary, errors.Join(err, cerr)
			}
			return summary, err
		}
		summary[f.Name] = n
		logger.Info("feature done", "feature", f.Name, "touched", n)

		if b.opts.Commit == CommitFeature {
			if err := b.flush(ctx, logger); err != nil {
				return summary, fmt.Errorf("feature %q: %w", f.Name, err)
			}
		}
	}

	if err := b.flush(ctx, logger); err != nil {
		return summary, err
	}
	logger.Info("run finished")
	return summary, nil
}

func (b *Butler) flush(ctx context.Context, logger *log.Logger) error {
	pending := b.provider.Pending()
	if len(pending) == 0 {
		return nil
	}
	logger.Debug("committing staged titles", "count", len(pending))
	if err := b.provider.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}
