package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/harrisonrobin/taskbutler/pkg/auth"
	"github.com/harrisonrobin/taskbutler/pkg/butler"
	"github.com/harrisonrobin/taskbutler/pkg/config"
	"github.com/harrisonrobin/taskbutler/pkg/logging"
	"github.com/harrisonrobin/taskbutler/pkg/model"
	"github.com/harrisonrobin/taskbutler/pkg/taskwarrior"
)

var Version = "dev"

type flags struct {
	config   string
	dryRun   bool
	logLevel string
}

func main() {
	var f flags
	rootCmd := &cobra.Command{
		Use:           "taskbutler",
		Short:         "Keep task titles, documents, issues and reminders in step with taskwarrior",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), f)
		},
	}
	rootCmd.PersistentFlags().StringVar(&f.config, "config", "", "config file (default ~/.config/taskbutler/config.toml)")
	rootCmd.PersistentFlags().BoolVar(&f.dryRun, "dry-run", false, "compute changes without writing anything")
	rootCmd.PersistentFlags().StringVar(&f.logLevel, "log-level", "", "debug, info, warn or error")

	rootCmd.AddCommand(&cobra.Command{
		Use:   "run",
		Short: "Run every enabled feature once",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), f)
		},
	})
	rootCmd.AddCommand(&cobra.Command{
		Use:   "auth",
		Short: "Authorize Google Docs and Drive access, replacing any stored token",
		RunE: func(cmd *cobra.Command, args []string) error {
			return authorize(cmd.Context(), f)
		},
	})
	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println(Version)
		},
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "taskbutler:", err)
		stop()
		os.Exit(1)
	}
}

func setup(f flags) (*config.Config, string, *log.Logger, func(), error) {
	path := f.config
	if path == "" {
		var err error
		if path, err = config.GetConfigPath(); err != nil {
			return nil, "", nil, nil, fmt.Errorf("could not find path to configuration file: %w", err)
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", nil, nil, err
	}
	if f.dryRun {
		cfg.General.Mode = model.DryRun.String()
	}
	if f.logLevel != "" {
		cfg.Log.Level = f.logLevel
	}

	logger, closer, err := logging.New(logging.Options{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		File:       cfg.Log.File,
		Timestamps: cfg.Log.Timestamps,
	})
	if err != nil {
		return nil, "", nil, nil, err
	}
	return cfg, path, logger, func() { closer.Close() }, nil
}

func run(ctx context.Context, f flags) error {
	cfg, path, logger, done, err := setup(f)
	if err != nil {
		return err
	}
	defer done()

	mode, err := cfg.RunMode()
	if err != nil {
		return err
	}
	loc, err := cfg.Location()
	if err != nil {
		return err
	}

	tasks := taskwarrior.NewClient(taskwarrior.Options{
		Binary:    cfg.Taskwarrior.Binary,
		ParentUDA: cfg.Taskwarrior.ParentUDA,
		Location:  loc,
		Mode:      mode,
	}, logger)

	if mode == model.Live && Version != "dev" {
		butler.CheckUpdate(ctx, cfg, Version, logger)
	}

	features, err := butler.Features(cfg, path, tasks, logger)
	if err != nil {
		return err
	}
	if len(features) == 0 {
		logger.Warn("no features enabled", "config", path)
		return nil
	}

	b := butler.New(butler.Options{Commit: cfg.General.Commit, Mode: mode}, tasks, logger)
	b.Register(features...)
	_, err = b.Run(ctx)
	return err
}

func authorize(ctx context.Context, f flags) error {
	cfg, _, logger, done, err := setup(f)
	if err != nil {
		return err
	}
	defer done()

	files := auth.Files{Credentials: cfg.Google.Credentials, Token: cfg.Google.Token}
	if err := auth.Reauthorize(ctx, files, logger.WithPrefix("auth")); err != nil {
		return fmt.Errorf("authentication failed: %w", err)
	}
	logger.Info("authentication successful", "token", cfg.Google.Token)
	return nil
}
