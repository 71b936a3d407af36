package cmd

import (
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/spf13/cobra"

	"github.com/vinhtt95/BAWorkbench-sub000/internal/artifact"
	wberrors "github.com/vinhtt95/BAWorkbench-sub000/internal/errors"
	"github.com/vinhtt95/BAWorkbench-sub000/internal/output"
	"github.com/vinhtt95/BAWorkbench-sub000/internal/project"
)

type newOptions struct {
	id     string
	name   string
	fields []string
}

func newNewCmd() *cobra.Command {
	var opts newOptions

	cmd := &cobra.Command{
		Use:   "new <type>",
		Short: "Create an artifact of the given type code",
		Long: `Create an artifact and index it. The id defaults to <type>-<8 hex>.

Fields are given as name=value pairs. Reference other artifacts with
@<id> inside a value to create a link.

Examples:
  baw new BR --name "Loan limit" --field "Rule=Limit is 5x monthly income"
  baw new UC --id UC001 --name "Submit request" --field "Description=Validates against @BR001"`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runNew(cmd, args[0], opts)
		},
	}

	cmd.Flags().StringVar(&opts.id, "id", "", "Artifact id (default: generated)")
	cmd.Flags().StringVarP(&opts.name, "name", "n", "", "Artifact name")
	cmd.Flags().StringArrayVarP(&opts.fields, "field", "f", nil, "Field as name=value (repeatable)")

	return cmd
}

func parseFields(pairs []string) (map[string]any, error) {
	fields := make(map[string]any, len(pairs))
	for _, pair := range pairs {
		name, value, ok := strings.Cut(pair, "=")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, wberrors.ValidationError(fmt.Sprintf("invalid field %q, expected name=value", pair), nil)
		}
		fields[name] = value
	}
	return fields, nil
}

func runNew(cmd *cobra.Command, typeCode string, opts newOptions) error {
	out := output.New(cmd.OutOrStdout())

	fields, err := parseFields(opts.fields)
	if err != nil {
		return err
	}
	id := opts.id
	if id == "" {
		id = artifact.NewID(typeCode)
	}

	engine, err := openEngine(cmd.Context(), project.Discard)
	if err != nil {
		return err
	}
	defer func() { _ = engine.Close() }()

	a := &artifact.Artifact{ID: id, Name: opts.name, Type: typeCode, Fields: fields}
	if err := engine.Save(cmd.Context(), a); err != nil {
		if !errors.Is(err, wberrors.ErrMirrorWrite) {
			return err
		}
		out.Warningf("Markdown mirror not written: %s", err.Error())
	}

	out.Successf("Created %s", id)
	return nil
}

func newShowCmd() *cobra.Command {
	var raw bool

	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Render an artifact as Markdown",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runShow(cmd, args[0], raw)
		},
	}

	cmd.Flags().BoolVar(&raw, "raw", false, "Print the Markdown source without rendering")

	return cmd
}

func runShow(cmd *cobra.Command, id string, raw bool) error {
	out := output.New(cmd.OutOrStdout())

	engine, err := openEngine(cmd.Context(), project.Discard)
	if err != nil {
		return err
	}
	defer func() { _ = engine.Close() }()

	a, err := engine.Load(cmd.Context(), id)
	if err != nil {
		return err
	}
	markdown := string(artifact.RenderMirror(a))

	if raw {
		_, err := fmt.Fprint(out.Out(), markdown)
		return err
	}

	style := glamour.WithStandardStyle("notty")
	if out.UseColor() {
		style = glamour.WithAutoStyle()
	}
	renderer, err := glamour.NewTermRenderer(style, glamour.WithWordWrap(100))
	if err != nil {
		return fmt.Errorf("failed to create markdown renderer: %w", err)
	}
	rendered, err := renderer.Render(markdown)
	if err != nil {
		return fmt.Errorf("failed to render markdown: %w", err)
	}
	_, err = fmt.Fprint(out.Out(), rendered)
	if err != nil {
		return err
	}

	backlinks := engine.Backlinks(cmd.Context(), id)
	if len(backlinks) > 0 {
		out.Header("Referenced by")
		out.Rows(backlinks, "")
	}
	return nil
}

func newRmCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "rm <id>",
		Short: "Delete an artifact",
		Long: `Delete an artifact's document, its Markdown mirror and its index entry.

Deleting an artifact that other artifacts reference is refused unless
--force is given; the references are left dangling.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRm(cmd, args[0], force)
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Delete even when other artifacts reference it")

	return cmd
}

func runRm(cmd *cobra.Command, id string, force bool) error {
	out := output.New(cmd.OutOrStdout())

	engine, err := openEngine(cmd.Context(), project.Discard)
	if err != nil {
		return err
	}
	defer func() { _ = engine.Close() }()

	referenced, err := engine.HasBacklinks(cmd.Context(), id)
	if err != nil {
		return err
	}
	if referenced && !force {
		out.Warningf("%s is referenced by:", id)
		out.Rows(engine.Backlinks(cmd.Context(), id), "")
		return wberrors.ValidationError(fmt.Sprintf("%s is still referenced", id), nil).
			WithDetail("id", id).
			WithSuggestion("Remove the references first, or pass --force")
	}

	if err := engine.Delete(cmd.Context(), id); err != nil {
		return err
	}
	out.Successf("Deleted %s", id)
	return nil
}
