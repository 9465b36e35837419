package github

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/google/go-github/v66/github"

	"github.com/harrisonrobin/taskbutler/pkg/mirror"
)

func setup(t *testing.T) (*http.ServeMux, *github.Client) {
	t.Helper()
	mux := http.NewServeMux()
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	gh := github.NewClient(nil)
	u, _ := url.Parse(srv.URL + "/")
	gh.BaseURL = u
	return mux, gh
}

func TestListMilestonesPaginates(t *testing.T) {
	mux, gh := setup(t)
	mux.HandleFunc("/repos/o/r/milestones", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("state") != "all" {
			t.Errorf("state = %q, want all", r.URL.Query().Get("state"))
		}
		if r.URL.Query().Get("page") == "" {
			w.Header().Set("Link", fmt.Sprintf(`<http://%s/repos/o/r/milestones?page=2>; rel="next"`, r.Host))
			fmt.Fprint(w, `[{"number":1,"title":"One","state":"open","html_url":"https://github.com/o/r/milestone/1"}]`)
			return
		}
		fmt.Fprint(w, `[{"number":2,"title":"Two","state":"closed","url":"https://api.github.com/repos/o/r/milestones/2"}]`)
	})

	got, err := NewTracker(gh, "o", "r").ListMilestones(context.Background())
	if err != nil {
		t.Fatalf("ListMilestones: %v", err)
	}
	want := []mirror.RemoteMilestone{
		{Number: 1, Title: "One", URL: "https://github.com/o/r/milestone/1", State: mirror.Open},
		{Number: 2, Title: "Two", URL: "https://github.com/o/r/milestone/2", State: mirror.Closed},
	}
	if len(got) != len(want) {
		t.Fatalf("got %d milestones, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("milestone %d = %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestCreateMilestoneSendsDue(t *testing.T) {
	mux, gh := setup(t)
	mux.HandleFunc("/repos/o/r/milestones", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatal(err)
		}
		if body["title"] != "Launch" || body["state"] != "open" || body["due_on"] != "2024-03-01T10:00:00Z" {
			t.Errorf("body = %v", body)
		}
		fmt.Fprint(w, `{"number":5,"title":"Launch","state":"open","html_url":"https://github.com/o/r/milestone/5"}`)
	})

	due := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	got, err := NewTracker(gh, "o", "r").CreateMilestone(context.Background(), mirror.MilestoneRequest{Title: "Launch", State: mirror.Open, Due: &due})
	if err != nil {
		t.Fatalf("CreateMilestone: %v", err)
	}
	if got.Number != 5 || got.URL != "https://github.com/o/r/milestone/5" {
		t.Errorf("got %+v", got)
	}
}

func TestListIssuesSkipsPullRequests(t *testing.T) {
	mux, gh := setup(t)
	mux.HandleFunc("/repos/o/r/issues", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `[
			{"number":1,"title":"Bug","state":"open","html_url":"https://github.com/o/r/issues/1"},
			{"number":2,"title":"PR","state":"open","pull_request":{"url":"x"}}
		]`)
	})
	got, err := NewTracker(gh, "o", "r").ListIssues(context.Background())
	if err != nil {
		t.Fatalf("ListIssues: %v", err)
	}
	if len(got) != 1 || got[0].Title != "Bug" {
		t.Errorf("got %+v", got)
	}
}

func TestCreateIssueAndState(t *testing.T) {
	mux, gh := setup(t)
	mux.HandleFunc("/repos/o/r/issues", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		json.NewDecoder(r.Body).Decode(&body)
		if body["assignee"] != "me" || body["milestone"] != float64(3) {
			t.Errorf("body = %v", body)
		}
		fmt.Fprint(w, `{"number":9,"title":"Write","state":"open","html_url":"https://github.com/o/r/issues/9"}`)
	})
	var edited string
	mux.HandleFunc("/repos/o/r/issues/9", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		json.NewDecoder(r.Body).Decode(&body)
		edited, _ = body["state"].(string)
		fmt.Fprint(w, `{"number":9,"state":"closed"}`)
	})

	tr := NewTracker(gh, "o", "r")
	is, err := tr.CreateIssue(context.Background(), mirror.IssueRequest{Title: "Write", Assignee: "me", Milestone: 3})
	if err != nil {
		t.Fatalf("CreateIssue: %v", err)
	}
	if is.Number != 9 {
		t.Errorf("number = %d", is.Number)
	}
	if err := tr.UpdateIssueState(context.Background(), 9, mirror.Closed); err != nil {
		t.Fatalf("UpdateIssueState: %v", err)
	}
	if edited != "closed" {
		t.Errorf("state sent = %q", edited)
	}
}

func TestLatestRelease(t *testing.T) {
	mux, gh := setup(t)
	mux.HandleFunc("/repos/o/r/releases/latest", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"tag_name":"v1.2.0"}`)
	})
	tag, err := LatestRelease(context.Background(), gh, "o/r")
	if err != nil || tag != "v1.2.0" {
		t.Errorf("LatestRelease = %q, %v", tag, err)
	}
	if _, err := LatestRelease(context.Background(), gh, "bad"); err == nil {
		t.Error("expected error for malformed repository")
	}
}
