package butler

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/harrisonrobin/taskbutler/pkg/annotate"
	"github.com/harrisonrobin/taskbutler/pkg/auth"
	"github.com/harrisonrobin/taskbutler/pkg/config"
	"github.com/harrisonrobin/taskbutler/pkg/crontab"
	"github.com/harrisonrobin/taskbutler/pkg/github"
	"github.com/harrisonrobin/taskbutler/pkg/google"
	"github.com/harrisonrobin/taskbutler/pkg/jira"
	"github.com/harrisonrobin/taskbutler/pkg/mirror"
	"github.com/harrisonrobin/taskbutler/pkg/model"
	"github.com/harrisonrobin/taskbutler/pkg/progress"
	"github.com/harrisonrobin/taskbutler/pkg/relay"
)

// wiring builds features from configuration. Remote clients are created on
// first use so a run with a feature's label absent never authenticates.
type wiring struct {
	cfg    *config.Config
	path   string
	mode   model.RunMode
	tasks  mirror.TaskList
	logger *log.Logger

	services *google.Services
}

// Features returns the enabled features in run order: progress, jira, docs,
// drive, github, relay.
func Features(cfg *config.Config, path string, tasks mirror.TaskList, logger *log.Logger) ([]Feature, error) {
	mode, err := cfg.RunMode()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", config.ErrInvalid, err)
	}
	w := &wiring{cfg: cfg, path: path, mode: mode, tasks: tasks, logger: logger}

	var out []Feature
	if cfg.Progress.Label != "" {
		out = append(out, Feature{Name: "progress", Run: w.runProgress})
	}
	if cfg.Jira.Enabled {
		out = append(out, Feature{Name: "jira", Run: w.runJira})
	}
	if cfg.Docs.Label != "" {
		out = append(out, Feature{Name: "docs", Run: w.runDocs})
	}
	if cfg.Drive.Label != "" {
		out = append(out, Feature{Name: "drive", Run: w.runDrive})
	}
	if cfg.GitHub.Label != "" {
		out = append(out, Feature{Name: "github", Run: w.runGitHub})
	}
	if cfg.Relay.Label != "" {
		out = append(out, Feature{Name: "relay", Run: w.runRelay})
	}
	return out, nil
}

func (w *wiring) runProgress(_ context.Context, snap *model.Snapshot, stage model.Stager) (int, error) {
	labelID, err := snap.LabelID(w.cfg.Progress.Label)
	if err != nil {
		return 0, err
	}
	agg := progress.New(progress.Options{
		Delimiter:     w.cfg.General.Delimiter,
		CommentMarker: w.cfg.General.CommentMarker,
		Symbols:       progress.Symbols(w.cfg.Progress.Symbols),
	}, w.logger)
	res := agg.Run(snap, labelID, stage)
	w.logger.Info("progress", "tracked", res.Tracked, "changed", res.Changed)
	return res.Changed, nil
}

func (w *wiring) runJira(ctx context.Context, snap *model.Snapshot, stage model.Stager) (int, error) {
	sites := make([]jira.Site, 0, len(w.cfg.Jira.Sites))
	for _, s := range w.cfg.Jira.Sites {
		client, err := jira.NewSiteClient(s.URL, s.Username, s.Token)
		if err != nil {
			return 0, err
		}
		sites = append(sites, jira.Site{URL: s.URL, Prefixes: s.Prefixes, Fetcher: client})
	}
	return jira.New(jira.Options{
		Sites:   sites,
		Include: w.cfg.Jira.IncludeProject,
		Exclude: w.cfg.Jira.ExcludeProject,
		Mode:    w.mode,
	}, w.logger).Run(ctx, snap, stage)
}

func (w *wiring) runDocs(ctx context.Context, snap *model.Snapshot, stage model.Stager) (int, error) {
	labelID, err := snap.LabelID(w.cfg.Docs.Label)
	if err != nil {
		return 0, err
	}
	srv, err := w.googleServices(ctx)
	if err != nil {
		return 0, err
	}
	folderID, err := w.folderID(ctx, srv, docsFolder, w.cfg.Docs.Folder)
	if err != nil {
		return 0, err
	}
	store := google.NewDocStore(srv, folderID, w.cfg.Docs.Sharing, w.logger)
	return annotate.New(annotate.Options{
		Kind:      "docs",
		Delimiter: w.cfg.General.Delimiter,
		Marker:    w.cfg.Docs.Marker,
		Mode:      w.mode,
	}, store, w.logger).Run(ctx, snap, labelID, stage)
}

func (w *wiring) runDrive(ctx context.Context, snap *model.Snapshot, stage model.Stager) (int, error) {
	labelID, err := snap.LabelID(w.cfg.Drive.Label)
	if err != nil {
		return 0, err
	}
	srv, err := w.googleServices(ctx)
	if err != nil {
		return 0, err
	}
	folderID, err := w.folderID(ctx, srv, driveFolder, w.cfg.Drive.Folder)
	if err != nil {
		return 0, err
	}
	store := google.NewFileStore(srv, folderID, w.cfg.Drive.Template, w.logger)
	return annotate.New(annotate.Options{
		Kind:      "drive",
		Delimiter: w.cfg.General.Delimiter,
		Marker:    w.cfg.Drive.Marker,
		Mode:      w.mode,
	}, store, w.logger).Run(ctx, snap, labelID, stage)
}

func (w *wiring) runGitHub(ctx context.Context, snap *model.Snapshot, _ model.Stager) (int, error) {
	labelID, err := snap.LabelID(w.cfg.GitHub.Label)
	if err != nil {
		return 0, err
	}
	projectID, err := snap.ProjectID(w.cfg.GitHub.Project)
	if err != nil {
		return 0, err
	}
	loc, err := w.cfg.Location()
	if err != nil {
		return 0, err
	}
	tracker := github.NewTracker(github.NewClient(ctx, w.cfg.GitHub.Token), w.cfg.GitHub.Owner, w.cfg.GitHub.Repo)
	m := mirror.New(mirror.Options{
		Delimiter: w.cfg.General.Delimiter,
		Marker:    w.cfg.GitHub.Marker,
		Assignee:  w.cfg.GitHub.Assignee,
		Location:  loc,
		Mode:      w.mode,
	}, tracker, w.tasks, w.logger)
	res, err := m.Run(ctx, snap, projectID, labelID)
	w.logger.Info("github", "milestones", res.MilestonesCreated, "issues", res.IssuesCreated, "states", res.StatesPushed)
	return res.MilestonesCreated + res.IssuesCreated + res.StatesPushed, err
}

func (w *wiring) runRelay(ctx context.Context, snap *model.Snapshot, _ model.Stager) (int, error) {
	labelID, err := snap.LabelID(w.cfg.Relay.Label)
	if err != nil {
		return 0, err
	}
	loc, err := w.cfg.Location()
	if err != nil {
		return 0, err
	}
	r := relay.New(relay.Options{
		Delimiter: w.cfg.General.Delimiter,
		Location:  loc,
		Notifier:  w.cfg.Relay.Notifier,
		Args:      w.cfg.Relay.Args,
		Mode:      w.mode,
	}, crontab.NewClient(w.cfg.Relay.Crontab), &relay.ScriptDir{Path: w.cfg.Relay.ScriptDir}, w.logger)
	res, err := r.Run(ctx, snap, labelID)
	w.logger.Info("relay", "installed", res.Installed, "skipped", res.Skipped, "removed", res.Removed)
	return res.Installed + res.Removed, err
}

func (w *wiring) googleServices(ctx context.Context) (*google.Services, error) {
	if w.services != nil {
		return w.services, nil
	}
	files := auth.Files{Credentials: w.cfg.Google.Credentials, Token: w.cfg.Google.Token}
	client, err := auth.GetClient(ctx, files, auth.Scopes, w.logger.WithPrefix("auth"))
	if err != nil {
		return nil, err
	}
	srv, err := google.NewServices(ctx, client)
	if err != nil {
		return nil, err
	}
	w.services = srv
	return srv, nil
}

func docsFolder(c *config.Config) *string { return &c.Docs.FolderID }
func driveFolder(c *config.Config) *string { return &c.Drive.FolderID }

// folderID returns the configured folder ID, resolving it by name and
// writing only that ID back to the config file the first time.
func (w *wiring) folderID(ctx context.Context, srv *google.Services, field func(*config.Config) *string, name string) (string, error) {
	if id := *field(w.cfg); id != "" {
		return id, nil
	}
	resolved, err := srv.ResolveFolderID(ctx, name)
	if err != nil {
		return "", err
	}
	*field(w.cfg) = resolved
	if w.mode == model.Live && w.path != "" {
		if err := config.UpdateFile(w.path, func(c *config.Config) { *field(c) = resolved }); err != nil {
			w.logger.Warn("could not persist folder id", "folder", name, "err", err)
		}
	}
	return resolved, nil
}

// CheckUpdate logs when the latest release of repo differs from version.
// Failures are logged and otherwise ignored.
func CheckUpdate(ctx context.Context, cfg *config.Config, version string, logger *log.Logger) {
	if cfg.Update.Repo == "" {
		return
	}
	tag, err := github.LatestRelease(ctx, github.NewClient(ctx, cfg.GitHub.Token), cfg.Update.Repo)
	if err != nil {
		logger.Debug("update check failed", "err", err)
		return
	}
	if !SameVersion(tag, version) {
		logger.Info("a newer release is available", "current", version, "latest", tag)
	}
}

// SameVersion compares release tags ignoring a leading "v".
func SameVersion(a, b string) bool {
	return strings.TrimPrefix(a, "v") == strings.TrimPrefix(b, "v")
}
