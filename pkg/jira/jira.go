// Package jira rewrites task titles that are bare Jira references into
// Markdown links carrying the issue summary.
package jira

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/andygrunwald/go-jira"
	"github.com/charmbracelet/log"

	"github.com/harrisonrobin/taskbutler/pkg/config"
	"github.com/harrisonrobin/taskbutler/pkg/model"
)

// Issue is the part of a Jira issue the expander needs.
type Issue struct {
	Key     string
	Summary string
}

// Fetcher looks up one issue on a Jira site.
type Fetcher interface {
	GetIssue(ctx context.Context, key string) (Issue, error)
}

// SiteClient is a Fetcher backed by the Jira REST API.
type SiteClient struct {
	jc *jira.Client
}

func NewSiteClient(baseURL, username, token string) (*SiteClient, error) {
	tp := jira.BasicAuthTransport{Username: username, Password: token}
	jc, err := jira.NewClient(tp.Client(), baseURL)
	if err != nil {
		return nil, fmt.Errorf("jira client for %s: %w", baseURL, err)
	}
	return &SiteClient{jc: jc}, nil
}

func (c *SiteClient) GetIssue(ctx context.Context, key string) (Issue, error) {
	is, _, err := c.jc.Issue.GetWithContext(ctx, key, &jira.GetQueryOptions{Fields: "summary"})
	if err != nil {
		return Issue{}, err
	}
	if is.Key == "" || is.Fields == nil {
		return Issue{}, fmt.Errorf("issue %s: %w", key, model.ErrNotFound)
	}
	return Issue{Key: is.Key, Summary: is.Fields.Summary}, nil
}

// Site is one configured Jira instance.
type Site struct {
	URL      string
	Prefixes []string
	Fetcher  Fetcher
}

type Options struct {
	Sites []Site
	// Include and Exclude name projects with "/" separating levels.
	Include []string
	Exclude []string
	Mode    model.RunMode
}

type Expander struct {
	opts   Options
	sites  []Site
	byKey  map[string]*Site
	prefix *regexp.Regexp
	logger *log.Logger
}

func New(opts Options, logger *log.Logger) *Expander {
	e := &Expander{opts: opts, byKey: make(map[string]*Site), logger: logger.WithPrefix("jira")}
	var prefixes []string
	for _, s := range opts.Sites {
		s.URL = NormalizeSiteURL(s.URL)
		e.sites = append(e.sites, s)
	}
	for i := range e.sites {
		for _, p := range e.sites[i].Prefixes {
			e.byKey[p] = &e.sites[i]
			prefixes = append(prefixes, regexp.QuoteMeta(p))
		}
	}
	if len(prefixes) > 0 {
		e.prefix = regexp.MustCompile(`^((` + strings.Join(prefixes, "|") + `)-\d+)`)
	}
	return e
}

// NormalizeSiteURL lowercases the URL and drops trailing slashes.
func NormalizeSiteURL(u string) string {
	return strings.TrimRight(strings.ToLower(strings.TrimSpace(u)), "/")
}

// Reference finds the issue a title points at: either a browse URL of a
// configured site or a configured prefix followed by a number. The site
// part of a URL matches regardless of case.
func (e *Expander) Reference(t string) (*Site, string, bool) {
	t = strings.TrimSpace(t)
	lower := strings.ToLower(t)
	for i := range e.sites {
		s := &e.sites[i]
		if !strings.HasPrefix(lower, s.URL) {
			continue
		}
		m := browsePattern(s.URL).FindStringSubmatch(t)
		if m == nil {
			return nil, "", false
		}
		return s, m[1], true
	}
	if e.prefix == nil {
		return nil, "", false
	}
	m := e.prefix.FindStringSubmatch(t)
	if m == nil {
		return nil, "", false
	}
	return e.byKey[m[2]], m[1], true
}

func browsePattern(site string) *regexp.Regexp {
	return regexp.MustCompile(`^(?i:` + regexp.QuoteMeta(site) + `)/browse/([A-Z]+-[0-9]+)`)
}

// Link is the title a resolved task gets.
func Link(site string, is Issue) string {
	return fmt.Sprintf("[%s - %s](%s/browse/%s)", is.Key, is.Summary, site, is.Key)
}

// Run retitles every open task in scope that references a Jira issue.
// Lookup failures are logged and leave the task alone.
func (e *Expander) Run(ctx context.Context, snap *model.Snapshot, stage model.Stager) (int, error) {
	include, err := projectScope(snap, e.opts.Include)
	if err != nil {
		return 0, err
	}
	exclude, err := projectScope(snap, e.opts.Exclude)
	if err != nil {
		return 0, err
	}

	seen, updated := 0, 0
	for i := range snap.Tasks {
		t := &snap.Tasks[i]
		if !t.Active() || t.Done {
			continue
		}
		if len(exclude) > 0 && inScope(exclude, t.ProjectID) {
			continue
		}
		if len(include) > 0 && !inScope(include, t.ProjectID) {
			continue
		}
		seen++

		site, key, ok := e.Reference(t.Title)
		if !ok {
			continue
		}
		is, err := site.Fetcher.GetIssue(ctx, key)
		if err != nil {
			e.logger.Warn("could not resolve issue", "key", key, "site", site.URL, "err", err)
			continue
		}
		next := Link(site.URL, is)
		if next == t.Title {
			continue
		}
		updated++
		if e.opts.Mode == model.DryRun {
			e.logger.Info("dry run, would retitle task", "task", t.ID, "title", next)
			continue
		}
		stage.UpdateTask(t.ID, next)
	}
	e.logger.Debug("link expansion done", "looked_at", seen, "updated", updated)
	return updated, nil
}

// projectScope maps "A/B" names to project IDs "A.B". A name must match a
// project or be the ancestor of one.
func projectScope(snap *model.Snapshot, names []string) ([]string, error) {
	var out []string
	for _, name := range names {
		id := strings.ReplaceAll(strings.Trim(name, "/"), "/", ".")
		if _, err := snap.ProjectID(id); err != nil {
			if !errors.Is(err, model.ErrNotFound) || !hasDescendant(snap, id) {
				return nil, fmt.Errorf("%w: jira project %q: %v", config.ErrInvalid, name, err)
			}
		}
		out = append(out, id)
	}
	return out, nil
}

func hasDescendant(snap *model.Snapshot, id string) bool {
	for _, p := range snap.Projects {
		if strings.HasPrefix(p.ID, id+".") {
			return true
		}
	}
	return false
}

func inScope(scope []string, projectID string) bool {
	for _, p := range scope {
		if projectID == p || strings.HasPrefix(projectID, p+".") {
			return true
		}
	}
	return false
}
