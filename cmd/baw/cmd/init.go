package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/vinhtt95/BAWorkbench-sub000/internal/config"
	"github.com/vinhtt95/BAWorkbench-sub000/internal/output"
	"github.com/vinhtt95/BAWorkbench-sub000/internal/project"
)

func newInitCmd() *cobra.Command {
	var name string

	cmd := &cobra.Command{
		Use:   "init [dir]",
		Short: "Create a project in dir (default: the working directory)",
		Long: `Create the project layout: .config/ with project.json and a commented
workbench.yaml, and an empty Artifacts/ directory.

Running init on an existing project leaves its files untouched.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) == 1 {
				dir = args[0]
			}
			return runInit(cmd, dir, name)
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "Project name (default: directory name)")

	return cmd
}

func runInit(cmd *cobra.Command, dir, name string) error {
	out := output.New(cmd.OutOrStdout())

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	cfg, err := config.Load(dir)
	if err != nil {
		return err
	}

	p, err := project.Init(dir, name, cfg.Layout)
	if err != nil {
		return err
	}
	meta, err := p.LoadMetadata()
	if err != nil {
		return err
	}

	out.Successf("Initialized project %q", meta.Name)
	out.KeyValue("Root", p.Root)
	out.KeyValue("Artifacts", p.ArtifactsDir)
	out.KeyValue("Config", p.ConfigDir)
	return nil
}
