// Package output formats CLI output: status lines, artifact tables and the
// status board. Colour is used only when writing to a terminal.
package output

import (
	"fmt"
	"io"
	"os"
	"slices"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"

	"github.com/vinhtt95/BAWorkbench-sub000/internal/store"
)

// Writer provides formatted output for the CLI.
type Writer struct {
	out      io.Writer
	styles   Styles
	useColor bool
}

// New creates a Writer. Colour is enabled when out is a terminal and
// NO_COLOR is unset.
func New(out io.Writer) *Writer {
	color := IsTTY(out) && !DetectNoColor()
	return &Writer{out: out, styles: GetStyles(!color), useColor: color}
}

// NewPlain creates a Writer that never styles its output.
func NewPlain(out io.Writer) *Writer {
	return &Writer{out: out, styles: NoColorStyles()}
}

// Out returns the underlying writer.
func (w *Writer) Out() io.Writer {
	return w.out
}

// UseColor reports whether output is styled.
func (w *Writer) UseColor() bool {
	return w.useColor
}

// IsTTY reports whether w is a terminal.
func IsTTY(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok || f == nil {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// DetectNoColor checks if NO_COLOR environment variable is set.
func DetectNoColor() bool {
	_, exists := os.LookupEnv("NO_COLOR")
	return exists
}

// Status prints a status message with an icon.
// Errors from writing are intentionally ignored for console output.
func (w *Writer) Status(icon, msg string) {
	if icon != "" {
		_, _ = fmt.Fprintf(w.out, "%s %s\n", icon, msg)
	} else {
		_, _ = fmt.Fprintf(w.out, "  %s\n", msg)
	}
}

// Statusf prints a formatted status message with an icon.
func (w *Writer) Statusf(icon, format string, args ...any) {
	w.Status(icon, fmt.Sprintf(format, args...))
}

// Success prints a success message.
func (w *Writer) Success(msg string) {
	w.Status(w.styles.Success.Render("✓"), msg)
}

// Successf prints a formatted success message.
func (w *Writer) Successf(format string, args ...any) {
	w.Success(fmt.Sprintf(format, args...))
}

// Warning prints a warning message.
func (w *Writer) Warning(msg string) {
	w.Status(w.styles.Warning.Render("!"), msg)
}

// Warningf prints a formatted warning message.
func (w *Writer) Warningf(format string, args ...any) {
	w.Warning(fmt.Sprintf(format, args...))
}

// Error prints an error message.
func (w *Writer) Error(msg string) {
	w.Status(w.styles.Error.Render("✗"), msg)
}

// Errorf prints a formatted error message.
func (w *Writer) Errorf(format string, args ...any) {
	w.Error(fmt.Sprintf(format, args...))
}

// Header prints a bold heading line.
func (w *Writer) Header(title string) {
	_, _ = fmt.Fprintln(w.out, w.styles.Header.Render(title))
}

// KeyValue prints an aligned label and value.
func (w *Writer) KeyValue(label, value string) {
	_, _ = fmt.Fprintf(w.out, "  %s %s\n", w.styles.Label.Render(fmt.Sprintf("%-10s", label+":")), value)
}

// Newline prints an empty line.
func (w *Writer) Newline() {
	_, _ = fmt.Fprintln(w.out)
}

// Rows prints artifacts as an aligned table. An empty slice prints empty.
func (w *Writer) Rows(rows []store.Row, empty string) {
	if len(rows) == 0 {
		_, _ = fmt.Fprintln(w.out, w.styles.Dim.Render(empty))
		return
	}

	idWidth, typeWidth, statusWidth := len("ID"), len("TYPE"), len("STATUS")
	for _, r := range rows {
		idWidth = max(idWidth, lipgloss.Width(r.ID))
		typeWidth = max(typeWidth, lipgloss.Width(r.Type))
		statusWidth = max(statusWidth, lipgloss.Width(r.Status))
	}

	header := pad("ID", idWidth) + "  " + pad("TYPE", typeWidth) + "  " + pad("STATUS", statusWidth) + "  NAME"
	_, _ = fmt.Fprintln(w.out, w.styles.Label.Render(header))
	for _, r := range rows {
		_, _ = fmt.Fprintf(w.out, "%s  %s  %s  %s\n",
			w.styles.ID.Render(pad(r.ID, idWidth)),
			pad(r.Type, typeWidth),
			pad(r.Status, statusWidth),
			r.Name)
	}
}

// Board prints groups as board columns, one block per key in sorted order.
func (w *Writer) Board(groups map[string][]store.Row) {
	if len(groups) == 0 {
		_, _ = fmt.Fprintln(w.out, w.styles.Dim.Render("No artifacts indexed."))
		return
	}

	keys := make([]string, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	for i, k := range keys {
		if i > 0 {
			w.Newline()
		}
		title := k
		if title == "" {
			title = "(none)"
		}
		w.Header(fmt.Sprintf("%s (%d)", title, len(groups[k])))
		for _, r := range groups[k] {
			_, _ = fmt.Fprintf(w.out, "  %s  %s\n", w.styles.ID.Render(r.ID), r.Name)
		}
	}
}

// Progress prints a progress bar with message, rewriting the line in place.
func (w *Writer) Progress(current, total int, msg string) {
	if total <= 0 {
		return
	}

	pct := float64(current) / float64(total) * 100
	bar := renderProgressBar(current, total, 30)

	_, _ = fmt.Fprintf(w.out, "\r[%s] %.0f%% %s", bar, pct, msg)
	if current >= total {
		_, _ = fmt.Fprintln(w.out)
	}
}

// renderProgressBar creates a text progress bar.
func renderProgressBar(current, total, width int) string {
	if total <= 0 {
		return strings.Repeat("░", width)
	}

	filled := int(float64(current) / float64(total) * float64(width))
	filled = max(0, min(filled, width))

	return strings.Repeat("█", filled) + strings.Repeat("░", width-filled)
}

func pad(s string, width int) string {
	if gap := width - lipgloss.Width(s); gap > 0 {
		return s + strings.Repeat(" ", gap)
	}
	return s
}
