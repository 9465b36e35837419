package crontab

import (
	"context"
	"strings"
	"testing"

	"github.com/harrisonrobin/taskbutler/pkg/relay"
)

type memRunner struct {
	table string
}

func (m *memRunner) Read(context.Context) (string, error) { return m.table, nil }

func (m *memRunner) Write(_ context.Context, table string) error {
	m.table = table
	return nil
}

func TestParseLine(t *testing.T) {
	job, ok := ParseLine("0 10 1 1 * /home/u/.taskbutler/cronjobs/abc.sh --loud # taskbutler:abc")
	if !ok {
		t.Fatal("tagged line not parsed")
	}
	if job.Key != "abc" || job.Schedule != "0 10 1 1 *" || job.Command != "/home/u/.taskbutler/cronjobs/abc.sh" || len(job.Args) != 1 {
		t.Errorf("job = %+v", job)
	}
	if _, ok := ParseLine("*/5 * * * * backup.sh"); ok {
		t.Error("untagged line parsed")
	}
}

func TestUpsertAndRemovePreserveForeignLines(t *testing.T) {
	runner := &memRunner{table: "MAILTO=me\n*/5 * * * * backup.sh\n"}
	c := NewClientWithRunner(runner)
	ctx := context.Background()

	job := relay.Job{Key: "abc", Schedule: "0 10 1 1 *", Command: "/s/abc.sh"}
	if err := c.UpsertJob(ctx, job); err != nil {
		t.Fatalf("UpsertJob: %v", err)
	}
	job.Schedule = "30 11 2 1 *"
	if err := c.UpsertJob(ctx, job); err != nil {
		t.Fatalf("UpsertJob: %v", err)
	}
	if n := strings.Count(runner.table, "# taskbutler:abc"); n != 1 {
		t.Fatalf("table has %d managed lines:\n%s", n, runner.table)
	}
	jobs, err := c.ListJobs(ctx)
	if err != nil || len(jobs) != 1 || jobs[0].Schedule != "30 11 2 1 *" {
		t.Fatalf("ListJobs = %+v, %v", jobs, err)
	}

	if err := c.RemoveJob(ctx, "abc"); err != nil {
		t.Fatalf("RemoveJob: %v", err)
	}
	if runner.table != "MAILTO=me\n*/5 * * * * backup.sh\n" {
		t.Errorf("table = %q", runner.table)
	}
}

func TestUpsertRejectsBadSchedule(t *testing.T) {
	c := NewClientWithRunner(&memRunner{})
	if err := c.UpsertJob(context.Background(), relay.Job{Key: "k", Schedule: "61 25 * * *", Command: "x"}); err == nil {
		t.Error("expected schedule validation error")
	}
}
