package cmd

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/vinhtt95/BAWorkbench-sub000/internal/output"
	"github.com/vinhtt95/BAWorkbench-sub000/internal/project"
)

const progressInterval = 200 * time.Millisecond

func newRebuildCmd() *cobra.Command {
	var quiet bool

	cmd := &cobra.Command{
		Use:   "rebuild",
		Short: "Rebuild the index from the artifact documents",
		Long: `Discard the index and rebuild it from every document under Artifacts/.

Documents that cannot be parsed, or that have no id, are skipped and
listed; they never abort the rebuild.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runRebuild(cmd, quiet)
		},
	}

	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "Print only the summary")

	return cmd
}

func runRebuild(cmd *cobra.Command, quiet bool) error {
	ctx := cmd.Context()
	out := output.New(cmd.OutOrStdout())

	engine, err := openEngine(ctx, project.Discard)
	if err != nil {
		return err
	}
	defer func() { _ = engine.Close() }()

	indexer, err := engine.RebuildAsync(ctx)
	if err != nil {
		return err
	}

	showProgress := !quiet && output.IsTTY(cmd.OutOrStdout())
	ticker := time.NewTicker(progressInterval)
	defer ticker.Stop()

wait:
	for {
		select {
		case <-indexer.Done():
			break wait
		case <-ticker.C:
			if showProgress {
				snap := indexer.Progress().Snapshot()
				out.Progress(snap.FilesProcessed, snap.FilesTotal, "documents")
			}
		}
	}

	result, err := indexer.Wait()
	if err != nil {
		return err
	}

	out.Success(result.Message())
	if !quiet {
		for _, path := range result.SkippedPaths {
			out.Warningf("skipped %s", path)
		}
		out.KeyValue("Duration", result.Duration.Round(time.Millisecond).String())
	}
	return nil
}
