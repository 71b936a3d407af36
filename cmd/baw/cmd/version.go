package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/vinhtt95/BAWorkbench-sub000/internal/output"
	"github.com/vinhtt95/BAWorkbench-sub000/internal/project"
	"github.com/vinhtt95/BAWorkbench-sub000/pkg/version"
)

// projectVersion is the project.json view shown next to the build info.
type projectVersion struct {
	Name        string    `json:"name"`
	Root        string    `json:"root"`
	CreatedWith string    `json:"created_with"`
	CreatedAt   time.Time `json:"created_at"`
}

type versionReport struct {
	version.BuildInfo
	Project *projectVersion `json:"project,omitempty"`
}

func newVersionCmd() *cobra.Command {
	var format string
	var short bool

	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Long: `Print the baw build, and for the current project the baw version that
created it.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if short {
				_, err := fmt.Fprintln(cmd.OutOrStdout(), version.Short())
				return err
			}
			return runVersion(cmd, format)
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", "text", "Output format: text or json")
	cmd.Flags().BoolVar(&short, "short", false, "Print only the version number")

	return cmd
}

func runVersion(cmd *cobra.Command, format string) error {
	report := versionReport{BuildInfo: version.GetInfo(), Project: currentProjectVersion()}

	switch format {
	case "json":
		return writeJSON(cmd, report)
	case "text", "":
	default:
		return fmt.Errorf("invalid --format %q: must be text or json", format)
	}

	out := output.New(cmd.OutOrStdout())
	_, _ = fmt.Fprintln(out.Out(), version.String())
	if p := report.Project; p != nil {
		out.Newline()
		out.KeyValue("Project", p.Name)
		out.KeyValue("Root", p.Root)
		out.KeyValue("Created with", p.CreatedWith)
		if p.CreatedWith != version.Version {
			out.Warningf("project was created with baw %s, this is %s", p.CreatedWith, version.Version)
		}
	}
	return nil
}

// currentProjectVersion returns nil outside a project or when project.json
// cannot be read.
func currentProjectVersion() *projectVersion {
	root, cfg, err := resolveProject()
	if err != nil {
		return nil
	}
	meta, err := project.New(root, cfg.Layout).LoadMetadata()
	if err != nil {
		return nil
	}
	return &projectVersion{
		Name:        meta.Name,
		Root:        root,
		CreatedWith: meta.Version,
		CreatedAt:   meta.CreatedAt,
	}
}
