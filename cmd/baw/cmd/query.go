package cmd

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/vinhtt95/BAWorkbench-sub000/internal/output"
	"github.com/vinhtt95/BAWorkbench-sub000/internal/project"
	"github.com/vinhtt95/BAWorkbench-sub000/internal/store"
)

func newSearchCmd() *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "search <term>",
		Short: "Find artifacts whose id or name contains term",
		Long: `Find artifacts whose id or name contains term, ignoring case.
A leading @ is ignored, so "baw search @BR" completes a reference.

Examples:
  baw search BR
  baw search "submit" --format json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, err := openEngine(cmd.Context(), project.Discard)
			if err != nil {
				return err
			}
			defer func() { _ = engine.Close() }()

			rows := engine.Search(cmd.Context(), args[0])
			return printRows(cmd, rows, format, "No matching artifacts.")
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", "text", "Output format: text, json")

	return cmd
}

func newBacklinksCmd() *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "backlinks <id>",
		Short: "List the artifacts that reference id",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, err := openEngine(cmd.Context(), project.Discard)
			if err != nil {
				return err
			}
			defer func() { _ = engine.Close() }()

			rows := engine.Backlinks(cmd.Context(), args[0])
			return printRows(cmd, rows, format, fmt.Sprintf("Nothing references %s.", args[0]))
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", "text", "Output format: text, json")

	return cmd
}

func newBoardCmd() *cobra.Command {
	var (
		by     string
		format string
	)

	cmd := &cobra.Command{
		Use:   "board",
		Short: "Show every artifact grouped by status or type",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var groupedBy string
			switch strings.ToLower(by) {
			case "status", "":
				groupedBy = "status"
			case "type":
				groupedBy = "type"
			default:
				return fmt.Errorf("invalid --by %q: must be status or type", by)
			}

			engine, err := openEngine(cmd.Context(), project.Discard)
			if err != nil {
				return err
			}
			defer func() { _ = engine.Close() }()

			var groups map[string][]store.Row
			if groupedBy == "type" {
				groups = engine.GroupedByType(cmd.Context())
			} else {
				groups = engine.GroupedByStatus(cmd.Context())
			}

			if format == "json" {
				return writeJSON(cmd, groups)
			}
			output.New(cmd.OutOrStdout()).Board(groups)
			return nil
		},
	}

	cmd.Flags().StringVar(&by, "by", "status", "Group by: status, type")
	cmd.Flags().StringVarP(&format, "format", "f", "text", "Output format: text, json")

	return cmd
}

func printRows(cmd *cobra.Command, rows []store.Row, format, empty string) error {
	switch format {
	case "json":
		return writeJSON(cmd, rows)
	case "text", "":
		output.New(cmd.OutOrStdout()).Rows(rows, empty)
		return nil
	default:
		return fmt.Errorf("invalid --format %q: must be text or json", format)
	}
}

func writeJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
