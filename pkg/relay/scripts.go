package relay

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/natefinch/atomic"
)

const (
	scriptExt = ".sh"
	shebang   = "#!/bin/sh"
)

// ScriptDir holds one notification script per scheduled task, named after
// the task ID.
type ScriptDir struct {
	Path string
}

// ScriptPath returns the script location for a job key.
func (d *ScriptDir) ScriptPath(key string) string {
	return filepath.Join(d.Path, key+scriptExt)
}

// Write (re)writes the script for key and makes it executable.
func (d *ScriptDir) Write(key, payload string) (string, error) {
	if err := os.MkdirAll(d.Path, 0750); err != nil {
		return "", fmt.Errorf("create script dir: %w", err)
	}
	path := d.ScriptPath(key)
	content := shebang + "\n" + payload + "\n"
	if err := atomic.WriteFile(path, strings.NewReader(content)); err != nil {
		return "", fmt.Errorf("write script %s: %w", path, err)
	}
	if err := os.Chmod(path, 0750); err != nil {
		return "", fmt.Errorf("chmod script %s: %w", path, err)
	}
	return path, nil
}

// Stems lists the keys of all scripts in the directory.
func (d *ScriptDir) Stems() ([]string, error) {
	entries, err := os.ReadDir(d.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var stems []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), scriptExt) {
			continue
		}
		stems = append(stems, strings.TrimSuffix(e.Name(), scriptExt))
	}
	return stems, nil
}

func (d *ScriptDir) Remove(key string) error {
	err := os.Remove(d.ScriptPath(key))
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// ShellQuote wraps s in single quotes for /bin/sh.
func ShellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
