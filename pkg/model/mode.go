package model

import "fmt"

// RunMode decides whether a run may mutate anything outside the process.
type RunMode int

const (
	Live RunMode = iota
	DryRun
)

func (m RunMode) String() string {
	if m == DryRun {
		return "dry-run"
	}
	return "live"
}

// ParseRunMode accepts "live" or "dry-run" (and the legacy "dev" alias).
func ParseRunMode(s string) (RunMode, error) {
	switch s {
	case "", "live", "production":
		return Live, nil
	case "dry-run", "dryrun", "dev", "devmode":
		return DryRun, nil
	}
	return Live, fmt.Errorf("unknown run mode %q", s)
}
