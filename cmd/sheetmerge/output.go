package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/ryabkov82/sheetmerge/internal/pipeline"
)

// Output is the --json result of one merge.
type Output struct {
	Job         string   `json:"job,omitempty"`
	RunID       string   `json:"run_id,omitempty"`
	Success     bool     `json:"success"`
	OutputFiles []string `json:"output_files,omitempty"`
	Message     string   `json:"message,omitempty"`
	Error       string   `json:"error,omitempty"`
	ErrorKind   string   `json:"error_kind,omitempty"`
	Fields      []string `json:"fields,omitempty"`
	Coerced     []string `json:"coerced_columns,omitempty"`
	Duration    string   `json:"duration"`
	RowCount    int64    `json:"row_count,omitempty"`
}

func newOutput(runID string, out pipeline.Outcome) Output {
	o := Output{
		RunID:    runID,
		Success:  out.Success,
		Duration: out.Duration.String(),
	}
	if out.Success {
		o.OutputFiles = []string{out.Output}
		o.Message = out.Message
		o.RowCount = int64(out.Rows)
		o.Coerced = out.Coerced
		return o
	}
	o.Error = out.Message
	o.ErrorKind = out.Kind.String()
	o.Fields = out.Fields
	return o
}

func emitJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode JSON: %w", err)
	}
	return nil
}

var styles = struct {
	progress lipgloss.Style
	phase    lipgloss.Style
	success  lipgloss.Style
	failure  lipgloss.Style
	muted    lipgloss.Style
	label    lipgloss.Style
}{
	progress: lipgloss.NewStyle().Foreground(lipgloss.Color("#89b4fa")).Bold(true),
	phase:    lipgloss.NewStyle().Foreground(lipgloss.Color("#cba6f7")).Width(10),
	success:  lipgloss.NewStyle().Foreground(lipgloss.Color("#a6e3a1")).Bold(true),
	failure:  lipgloss.NewStyle().Foreground(lipgloss.Color("#f38ba8")).Bold(true),
	muted:    lipgloss.NewStyle().Foreground(lipgloss.Color("#7f849c")),
	label:    lipgloss.NewStyle().Foreground(lipgloss.Color("#f9e2af")),
}

// printEvent writes one progress line, prefixed with prefix when set.
func printEvent(w io.Writer, prefix string, ev pipeline.Event) {
	if ev.Outcome != nil {
		return
	}
	line := styles.progress.Render(fmt.Sprintf("%3d%%", ev.Percent)) + " " +
		styles.phase.Render(ev.State.String()) + " " + ev.Message
	if prefix != "" {
		line = styles.label.Render(prefix) + " " + line
	}
	fmt.Fprintln(w, line)
}

// printOutcome writes the terminal result of a run.
func printOutcome(w io.Writer, prefix string, out pipeline.Outcome) {
	if prefix != "" {
		fmt.Fprint(w, styles.label.Render(prefix)+" ")
	}
	if out.Success {
		fmt.Fprintln(w, styles.success.Render("✓")+" "+out.Message+" "+
			styles.muted.Render(fmt.Sprintf("(%d rows, %s)", out.Rows, out.Duration.Round(time.Millisecond))))
		if len(out.Coerced) > 0 {
			fmt.Fprintln(w, styles.muted.Render("  columns stored as text: "+strings.Join(out.Coerced, ", ")))
		}
		return
	}
	fmt.Fprintln(w, styles.failure.Render("✗ "+out.Kind.String()+":")+" "+out.Message)
	for _, f := range out.Fields {
		fmt.Fprintln(w, styles.muted.Render("  - "+f))
	}
}
