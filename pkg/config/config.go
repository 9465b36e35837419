// Package config loads the TOML configuration that turns features on and
// holds provider credentials.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/natefinch/atomic"

	"github.com/harrisonrobin/taskbutler/pkg/model"
)

const (
	xdgAppName = "taskbutler"
	configFile = "config.toml"
)

// ErrInvalid marks configuration that cannot support the requested features.
var ErrInvalid = errors.New("invalid configuration")

type Config struct {
	General     General     `toml:"general"`
	Log         Log         `toml:"log"`
	Taskwarrior Taskwarrior `toml:"taskwarrior"`
	Progress    Progress    `toml:"progress"`
	Google      Google      `toml:"google"`
	Docs        Docs        `toml:"docs"`
	Drive       Drive       `toml:"drive"`
	GitHub      GitHub      `toml:"github"`
	Relay       Relay       `toml:"relay"`
	Jira        Jira        `toml:"jira"`
	Update      Update      `toml:"update"`
}

type General struct {
	Mode          string `toml:"mode"`
	Delimiter     string `toml:"delimiter"`
	CommentMarker string `toml:"comment_marker"`
	// Commit is "batch" (one commit per run) or "feature".
	Commit string `toml:"commit"`
}

type Log struct {
	Level      string `toml:"level"`
	Format     string `toml:"format"`
	File       string `toml:"file"`
	Timestamps bool   `toml:"timestamps"`
}

type Taskwarrior struct {
	Binary    string `toml:"binary"`
	ParentUDA string `toml:"parent_uda"`
}

type Progress struct {
	Label   string    `toml:"label"`
	Symbols [6]string `toml:"symbols"`
}

type Google struct {
	Credentials string `toml:"credentials"`
	Token       string `toml:"token"`
}

type Docs struct {
	Label    string `toml:"label"`
	Folder   string `toml:"folder"`
	FolderID string `toml:"folder_id"`
	// Sharing is "private" or "anyone".
	Sharing string `toml:"sharing"`
	Marker  string `toml:"url_marker"`
}

type Drive struct {
	Label    string `toml:"label"`
	Folder   string `toml:"folder"`
	FolderID string `toml:"folder_id"`
	Template string `toml:"template"`
	Marker   string `toml:"url_marker"`
}

type GitHub struct {
	Token    string `toml:"token"`
	Owner    string `toml:"owner"`
	Repo     string `toml:"repo"`
	Project  string `toml:"project"`
	Label    string `toml:"label"`
	Marker   string `toml:"url_marker"`
	Assignee string `toml:"assignee"`
}

type Relay struct {
	Label     string   `toml:"label"`
	Timezone  string   `toml:"timezone"`
	ScriptDir string   `toml:"script_dir"`
	Notifier  string   `toml:"notifier"`
	Args      []string `toml:"args"`
	Crontab   string   `toml:"crontab"`
}

type Jira struct {
	Enabled        bool       `toml:"enabled"`
	IncludeProject []string   `toml:"include_projects"`
	ExcludeProject []string   `toml:"exclude_projects"`
	Sites          []JiraSite `toml:"sites"`
}

type JiraSite struct {
	URL      string   `toml:"url"`
	Username string   `toml:"username"`
	Token    string   `toml:"token"`
	Prefixes []string `toml:"prefixes"`
}

type Update struct {
	Repo string `toml:"repo"`
}

// Default returns the configuration written on first start.
func Default() *Config {
	return &Config{
		General: General{
			Mode:          "live",
			Delimiter:     "‣",
			CommentMarker: "*",
			Commit:        "feature",
		},
		Log:         Log{Level: "info", Format: "text"},
		Taskwarrior: Taskwarrior{Binary: "task", ParentUDA: "parent"},
		Progress: Progress{
			Symbols: [6]string{"○○○○○", "●○○○○", "●●○○○", "●●●○○", "●●●●○", "●●●●●"},
		},
		Docs:   Docs{Folder: "taskbutler", Sharing: "private", Marker: "https://"},
		Drive:  Drive{Folder: "taskbutler", Marker: "https://"},
		GitHub: GitHub{Marker: "https://github.com"},
		Relay:  Relay{Notifier: "notify-send", Crontab: "crontab"},
		Update: Update{Repo: "harrisonrobin/taskbutler"},
	}
}

// AppDir is ~/.config/taskbutler.
func AppDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", xdgAppName), nil
}

func GetConfigPath() (string, error) {
	dir, err := AppDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, configFile), nil
}

// Load reads path over the defaults. A missing file is created with the
// defaults so the user has something to edit.
func Load(path string) (*Config, error) {
	cfg := Default()
	if _, err := os.Stat(path); err != nil {
		if !os.IsNotExist(err) {
			return nil, err
		}
		if err := Save(path, cfg); err != nil {
			return nil, fmt.Errorf("failed to write initial config: %w", err)
		}
		return cfg, cfg.finalize(path)
	}
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config %s: %w", path, err)
	}
	return cfg, cfg.finalize(path)
}

func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := atomic.WriteFile(path, &buf); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return os.Chmod(path, 0600)
}

// UpdateFile applies mutate to the configuration as stored at path and saves
// it. Derived paths and command-line overrides of a loaded Config are never
// written back this way.
func UpdateFile(path string, mutate func(*Config)) error {
	cfg := Default()
	if _, err := toml.DecodeFile(path, cfg); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to decode config %s: %w", path, err)
	}
	mutate(cfg)
	return Save(path, cfg)
}

// finalize fills derived paths and validates what enabled features need.
func (c *Config) finalize(path string) error {
	dir := filepath.Dir(path)
	if c.Relay.ScriptDir == "" {
		c.Relay.ScriptDir = filepath.Join(dir, "cronjobs")
	}
	if c.Google.Credentials == "" {
		c.Google.Credentials = filepath.Join(dir, "credentials.json")
	}
	if c.Google.Token == "" {
		c.Google.Token = filepath.Join(dir, "token.json")
	}
	if c.Log.File != "" && !filepath.IsAbs(c.Log.File) {
		c.Log.File = filepath.Join(dir, "log", c.Log.File)
	}
	return c.Validate()
}

func (c *Config) Validate() error {
	if _, err := c.RunMode(); err != nil {
		return fmt.Errorf("%w: general.mode: %v", ErrInvalid, err)
	}
	if c.General.Commit != "batch" && c.General.Commit != "feature" {
		return fmt.Errorf("%w: general.commit must be \"batch\" or \"feature\", got %q", ErrInvalid, c.General.Commit)
	}
	if c.GitHub.Label != "" {
		if c.GitHub.Token == "" || c.GitHub.Owner == "" || c.GitHub.Repo == "" || c.GitHub.Project == "" {
			return fmt.Errorf("%w: github needs token, owner, repo and project", ErrInvalid)
		}
		if c.GitHub.Marker == "" {
			return fmt.Errorf("%w: github.url_marker is empty", ErrInvalid)
		}
	}
	if c.Drive.Label != "" {
		if c.Drive.Template == "" {
			return fmt.Errorf("%w: drive.template is required", ErrInvalid)
		}
		if c.Drive.Marker == "" {
			return fmt.Errorf("%w: drive.url_marker is empty", ErrInvalid)
		}
	}
	if c.Docs.Label != "" {
		if c.Docs.Sharing != "private" && c.Docs.Sharing != "anyone" {
			return fmt.Errorf("%w: docs.sharing must be \"private\" or \"anyone\"", ErrInvalid)
		}
		if c.Docs.Marker == "" {
			return fmt.Errorf("%w: docs.url_marker is empty", ErrInvalid)
		}
	}
	if c.Relay.Label != "" {
		if _, err := c.Location(); err != nil {
			return fmt.Errorf("%w: relay.timezone: %v", ErrInvalid, err)
		}
	}
	if c.Jira.Enabled {
		if err := c.validateJira(); err != nil {
			return err
		}
	}
	return nil
}

func (c *Config) validateJira() error {
	urls := make(map[string]bool)
	prefixes := make(map[string]bool)
	for i, s := range c.Jira.Sites {
		if s.URL == "" || s.Username == "" || s.Token == "" {
			return fmt.Errorf("%w: jira.sites[%d] needs url, username and token", ErrInvalid, i)
		}
		if urls[s.URL] {
			return fmt.Errorf("%w: duplicate jira url %s", ErrInvalid, s.URL)
		}
		urls[s.URL] = true
		for _, p := range s.Prefixes {
			if prefixes[p] {
				return fmt.Errorf("%w: duplicate jira prefix %s", ErrInvalid, p)
			}
			prefixes[p] = true
		}
	}
	return nil
}

func (c *Config) RunMode() (model.RunMode, error) {
	return model.ParseRunMode(c.General.Mode)
}

// Location is the relay timezone, or the local zone when unset.
func (c *Config) Location() (*time.Location, error) {
	if c.Relay.Timezone == "" {
		return time.Local, nil
	}
	return time.LoadLocation(c.Relay.Timezone)
}
