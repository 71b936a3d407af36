// Package cmd provides the CLI commands for baw.
package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/vinhtt95/BAWorkbench-sub000/internal/config"
	wberrors "github.com/vinhtt95/BAWorkbench-sub000/internal/errors"
	"github.com/vinhtt95/BAWorkbench-sub000/internal/logging"
	"github.com/vinhtt95/BAWorkbench-sub000/internal/project"
	"github.com/vinhtt95/BAWorkbench-sub000/internal/workbench"
	"github.com/vinhtt95/BAWorkbench-sub000/pkg/version"
)

// Global flags
var (
	projectDir     string
	debugMode      bool
	loggingCleanup func()
)

// NewRootCmd creates the root command for the baw CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "baw",
		Short: "Business analysis workbench: artifacts on disk, indexed for search",
		Long: `baw keeps requirements, use cases and other artifacts as JSON documents
with Markdown mirrors, and maintains a SQLite index over them for
reference search, backlinks and status boards.

Run 'baw init' in a directory to create a project.`,
		Version:       version.Version,
		SilenceErrors: true,
		SilenceUsage:  true,
	}

	cmd.SetVersionTemplate("baw version {{.Version}}\n")

	cmd.PersistentFlags().StringVarP(&projectDir, "project", "p", "", "Project directory (default: search upwards from the working directory)")
	cmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "Enable debug logging to stderr and ~/.baworkbench/logs/")

	cmd.PersistentPreRunE = startLogging
	cmd.PersistentPostRunE = stopLogging

	cmd.AddCommand(newInitCmd())
	cmd.AddCommand(newNewCmd())
	cmd.AddCommand(newShowCmd())
	cmd.AddCommand(newRmCmd())
	cmd.AddCommand(newRebuildCmd())
	cmd.AddCommand(newSearchCmd())
	cmd.AddCommand(newBacklinksCmd())
	cmd.AddCommand(newBoardCmd())
	cmd.AddCommand(newWatchCmd())
	cmd.AddCommand(newLogsCmd())
	cmd.AddCommand(newVersionCmd())

	return cmd
}

// startLogging installs the JSON file logger as slog's default.
func startLogging(_ *cobra.Command, _ []string) error {
	cfg, err := config.Load("")
	if err != nil {
		cfg = config.NewConfig()
	}

	logger, cleanup, err := logging.Setup(cfg.LoggingConfig(debugMode))
	if err != nil {
		return fmt.Errorf("failed to setup logging: %w", err)
	}
	loggingCleanup = cleanup
	slog.SetDefault(logger)

	if debugMode {
		slog.Info("debug_logging_enabled",
			slog.String("log_file", logging.DefaultLogPath()),
			slog.String("version", version.Version))
	}
	return nil
}

func stopLogging(_ *cobra.Command, _ []string) error {
	if loggingCleanup != nil {
		loggingCleanup()
		loggingCleanup = nil
	}
	return nil
}

// Execute runs the root command and prints any error in CLI form.
func Execute() error {
	err := NewRootCmd().Execute()
	if err != nil {
		_, _ = fmt.Fprint(os.Stderr, wberrors.FormatForCLI(err))
		if loggingCleanup != nil {
			loggingCleanup()
			loggingCleanup = nil
		}
	}
	return err
}

// resolveProject finds the project root from --project or the working
// directory and loads its configuration.
func resolveProject() (string, *config.Config, error) {
	start := projectDir
	if start == "" {
		start = "."
	}

	base, err := config.Load("")
	if err != nil {
		return "", nil, err
	}
	root, err := config.FindProjectRoot(start, base.Layout.ConfigDir)
	if err != nil {
		return "", nil, wberrors.NotOpenError().
			WithDetail("start", start).
			WithSuggestion("Run 'baw init' to create a project, or pass --project")
	}

	cfg, err := config.Load(root)
	if err != nil {
		return "", nil, err
	}
	return root, cfg, nil
}

// openEngine opens the current project. A rebuild scheduled by Open is
// waited for, so the command sees a complete index.
func openEngine(ctx context.Context, sink project.StatusSink) (*workbench.Engine, error) {
	root, cfg, err := resolveProject()
	if err != nil {
		return nil, err
	}

	engine := workbench.New(workbench.Options{
		Config: cfg,
		Logger: slog.Default(),
		Status: sink,
	})

	indexer, err := engine.Open(ctx, root)
	if err != nil {
		_ = engine.Close()
		return nil, err
	}
	if indexer != nil {
		if _, err := indexer.Wait(); err != nil {
			_ = engine.Close()
			return nil, err
		}
	}
	return engine, nil
}
