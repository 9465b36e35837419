// Package crontab stores relay jobs in the user's crontab. Managed lines are
// tagged with a trailing comment; every other line is left alone.
package crontab

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"

	"github.com/robfig/cron/v3"

	"github.com/harrisonrobin/taskbutler/pkg/relay"
)

const tagPrefix = "# taskbutler:"

// Runner executes the crontab binary. Tests swap it out.
type Runner interface {
	Read(ctx context.Context) (string, error)
	Write(ctx context.Context, table string) error
}

// Client manages tagged lines in a crontab.
type Client struct {
	runner Runner
}

func NewClient(binary string) *Client {
	if binary == "" {
		binary = "crontab"
	}
	return &Client{runner: execRunner{binary: binary}}
}

func NewClientWithRunner(r Runner) *Client {
	return &Client{runner: r}
}

func (c *Client) ListJobs(ctx context.Context) ([]relay.Job, error) {
	table, err := c.runner.Read(ctx)
	if err != nil {
		return nil, err
	}
	var jobs []relay.Job
	for _, line := range strings.Split(table, "\n") {
		if job, ok := ParseLine(line); ok {
			jobs = append(jobs, job)
		}
	}
	return jobs, nil
}

// UpsertJob replaces the line tagged with job.Key, or appends one.
func (c *Client) UpsertJob(ctx context.Context, job relay.Job) error {
	if _, err := cron.ParseStandard(job.Schedule); err != nil {
		return fmt.Errorf("invalid schedule %q: %w", job.Schedule, err)
	}
	return c.edit(ctx, job.Key, FormatLine(job))
}

func (c *Client) RemoveJob(ctx context.Context, key string) error {
	return c.edit(ctx, key, "")
}

// edit replaces the line tagged with key by repl; an empty repl deletes it.
func (c *Client) edit(ctx context.Context, key, repl string) error {
	table, err := c.runner.Read(ctx)
	if err != nil {
		return err
	}
	var out []string
	replaced := false
	for _, line := range strings.Split(strings.TrimRight(table, "\n"), "\n") {
		if job, ok := ParseLine(line); ok && job.Key == key {
			if repl != "" && !replaced {
				out = append(out, repl)
			}
			replaced = true
			continue
		}
		if line == "" && len(out) == 0 {
			continue
		}
		out = append(out, line)
	}
	if !replaced && repl != "" {
		out = append(out, repl)
	}
	next := ""
	if len(out) > 0 {
		next = strings.Join(out, "\n") + "\n"
	}
	return c.runner.Write(ctx, next)
}

// FormatLine renders a job as a tagged crontab line.
func FormatLine(job relay.Job) string {
	parts := append([]string{job.Schedule, job.Command}, job.Args...)
	return strings.Join(parts, " ") + " " + tagPrefix + job.Key
}

// ParseLine reads a tagged crontab line. Untagged lines return false.
func ParseLine(line string) (relay.Job, bool) {
	body, key, ok := strings.Cut(line, tagPrefix)
	key = strings.TrimSpace(key)
	if !ok || key == "" {
		return relay.Job{}, false
	}
	fields := strings.Fields(body)
	if len(fields) < 6 {
		return relay.Job{}, false
	}
	return relay.Job{
		Key:      key,
		Schedule: strings.Join(fields[:5], " "),
		Command:  fields[5],
		Args:     fields[6:],
	}, true
}

type execRunner struct {
	binary string
}

func (r execRunner) Read(ctx context.Context) (string, error) {
	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, r.binary, "-l")
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		// A user without a crontab gets exit status 1 and this message.
		if strings.Contains(stderr.String(), "no crontab for") {
			return "", nil
		}
		return "", fmt.Errorf("crontab -l failed: %w, stderr: %s", err, stderr.String())
	}
	return string(out), nil
}

func (r execRunner) Write(ctx context.Context, table string) error {
	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, r.binary, "-")
	cmd.Stdin = strings.NewReader(table)
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("crontab install failed: %w, stderr: %s", err, stderr.String())
	}
	return nil
}
