// Package github implements the issue tracker the mirror writes to.
package github

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/go-github/v66/github"
	"golang.org/x/oauth2"

	"github.com/harrisonrobin/taskbutler/pkg/mirror"
)

const perPage = 100

// NewHTTPClient returns a client sending token, or http.DefaultClient when
// token is empty.
func NewHTTPClient(ctx context.Context, token string) *http.Client {
	if token == "" {
		return http.DefaultClient
	}
	return oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token}))
}

// NewClient returns a GitHub API client authenticated with token, if any.
func NewClient(ctx context.Context, token string) *github.Client {
	return github.NewClient(NewHTTPClient(ctx, token))
}

// Tracker talks to one repository.
type Tracker struct {
	gh    *github.Client
	owner string
	repo  string
}

func NewTracker(gh *github.Client, owner, repo string) *Tracker {
	return &Tracker{gh: gh, owner: owner, repo: repo}
}

func (t *Tracker) ListMilestones(ctx context.Context) ([]mirror.RemoteMilestone, error) {
	opts := &github.MilestoneListOptions{State: "all", ListOptions: github.ListOptions{PerPage: perPage}}
	var out []mirror.RemoteMilestone
	for {
		page, resp, err := t.gh.Issues.ListMilestones(ctx, t.owner, t.repo, opts)
		if err != nil {
			return nil, err
		}
		for _, m := range page {
			out = append(out, toRemoteMilestone(m))
		}
		if resp.NextPage == 0 {
			return out, nil
		}
		opts.Page = resp.NextPage
	}
}

func (t *Tracker) CreateMilestone(ctx context.Context, req mirror.MilestoneRequest) (mirror.RemoteMilestone, error) {
	m := &github.Milestone{
		Title: github.String(req.Title),
		State: github.String(string(req.State)),
	}
	if req.Body != "" {
		m.Description = github.String(req.Body)
	}
	if req.Due != nil {
		m.DueOn = &github.Timestamp{Time: *req.Due}
	}
	created, _, err := t.gh.Issues.CreateMilestone(ctx, t.owner, t.repo, m)
	if err != nil {
		return mirror.RemoteMilestone{}, err
	}
	return toRemoteMilestone(created), nil
}

// ListIssues returns every issue in the repository; pull requests are
// dropped.
func (t *Tracker) ListIssues(ctx context.Context) ([]mirror.RemoteIssue, error) {
	opts := &github.IssueListByRepoOptions{State: "all", ListOptions: github.ListOptions{PerPage: perPage}}
	var out []mirror.RemoteIssue
	for {
		page, resp, err := t.gh.Issues.ListByRepo(ctx, t.owner, t.repo, opts)
		if err != nil {
			return nil, err
		}
		for _, is := range page {
			if is.IsPullRequest() {
				continue
			}
			out = append(out, toRemoteIssue(is))
		}
		if resp.NextPage == 0 {
			return out, nil
		}
		opts.Page = resp.NextPage
	}
}

func (t *Tracker) CreateIssue(ctx context.Context, req mirror.IssueRequest) (mirror.RemoteIssue, error) {
	r := &github.IssueRequest{Title: github.String(req.Title)}
	if req.Body != "" {
		r.Body = github.String(req.Body)
	}
	if req.Assignee != "" {
		r.Assignee = github.String(req.Assignee)
	}
	if req.Milestone != 0 {
		r.Milestone = github.Int(req.Milestone)
	}
	created, _, err := t.gh.Issues.Create(ctx, t.owner, t.repo, r)
	if err != nil {
		return mirror.RemoteIssue{}, err
	}
	return toRemoteIssue(created), nil
}

func (t *Tracker) UpdateIssueState(ctx context.Context, number int, state mirror.State) error {
	_, _, err := t.gh.Issues.Edit(ctx, t.owner, t.repo, number, &github.IssueRequest{State: github.String(string(state))})
	return err
}

// LatestRelease returns the tag of the newest release of fullName
// ("owner/repo").
func LatestRelease(ctx context.Context, gh *github.Client, fullName string) (string, error) {
	owner, repo, ok := strings.Cut(fullName, "/")
	if !ok || owner == "" || repo == "" {
		return "", fmt.Errorf("repository %q is not owner/repo", fullName)
	}
	rel, _, err := gh.Repositories.GetLatestRelease(ctx, owner, repo)
	if err != nil {
		return "", err
	}
	return rel.GetTagName(), nil
}

func toRemoteMilestone(m *github.Milestone) mirror.RemoteMilestone {
	return mirror.RemoteMilestone{
		Number: m.GetNumber(),
		Title:  m.GetTitle(),
		URL:    linkOf(m.GetHTMLURL(), m.GetURL()),
		State:  mirror.State(m.GetState()),
	}
}

func toRemoteIssue(is *github.Issue) mirror.RemoteIssue {
	return mirror.RemoteIssue{
		Number: is.GetNumber(),
		Title:  is.GetTitle(),
		URL:    linkOf(is.GetHTMLURL(), is.GetURL()),
		State:  mirror.State(is.GetState()),
	}
}

func linkOf(html, api string) string {
	if html != "" {
		return html
	}
	return mirror.NormalizeURL(api)
}
