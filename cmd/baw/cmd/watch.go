package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/vinhtt95/BAWorkbench-sub000/internal/output"
	"github.com/vinhtt95/BAWorkbench-sub000/internal/project"
)

func newWatchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Keep the index in sync with edits made outside baw",
		Long: `Watch Artifacts/ and apply document changes to the index as they happen.
Uses file system notifications, falling back to polling where they are
unavailable. Stop with Ctrl+C.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runWatch(ctx, cmd)
		},
	}
}

func runWatch(ctx context.Context, cmd *cobra.Command) error {
	out := output.New(cmd.OutOrStdout())
	sink := project.FuncSink(func(message string) { out.Status("", message) })

	engine, err := openEngine(ctx, sink)
	if err != nil {
		return err
	}
	defer func() { _ = engine.Close() }()

	p, err := engine.Project()
	if err != nil {
		return err
	}

	err = engine.Watch(ctx, func(watcherType string) {
		out.Successf("Watching %s (%s)", p.ArtifactsDir, watcherType)
	})
	if err != nil {
		return err
	}
	out.Status("", "Stopped watching")
	return nil
}
