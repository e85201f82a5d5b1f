// Package reporting renders post-run summaries of a completed test run. The
// TAP stream stays the primary protocol; these renderers are for humans.
package reporting

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/bicycle-codes/tapzero"
)

// ResultFormatter is responsible for formatting and displaying run results.
type ResultFormatter interface {
	FormatResults(result *tapzero.RunnerResult) error
}

// TableReporter implements the ResultFormatter interface with a console
// table.
type TableReporter struct {
	logger log.Logger
	out    io.Writer
}

// NewTableReporter creates a new TableReporter. A nil writer renders to
// stdout.
func NewTableReporter(logger log.Logger, out io.Writer) *TableReporter {
	if logger == nil {
		logger = log.Root()
	}
	if out == nil {
		out = os.Stdout
	}
	return &TableReporter{
		logger: logger,
		out:    out,
	}
}

// FormatResults renders the run as a table: one row per test, skipped
// registrations included, assertion tallies per column, totals in the
// footer.
func (f *TableReporter) FormatResults(result *tapzero.RunnerResult) error {
	f.logger.Debug("Printing results", "run_id", result.RunID)

	t := table.NewWriter()
	t.SetOutputMirror(f.out)
	t.SetTitle(fmt.Sprintf("Test Results (%s)", formatDuration(result.Duration)))

	t.AppendHeader(table.Row{
		"Test", "Assertions", "Passed", "Failed", "Duration", "Status",
	})
	t.SetColumnConfigs([]table.ColumnConfig{
		{Name: "Test", WidthMax: 50, WidthMaxEnforcer: text.WrapSoft},
		{Name: "Assertions", Align: text.AlignRight},
		{Name: "Passed", Align: text.AlignRight},
		{Name: "Failed", Align: text.AlignRight},
		{Name: "Duration", Align: text.AlignRight},
	})

	for _, tr := range result.Tests {
		t.AppendRow(table.Row{
			tr.Name,
			tr.Pass + tr.Fail,
			tr.Pass,
			tr.Fail,
			formatDuration(tr.Duration),
			statusString(tr.Status),
		})
	}

	t.AppendFooter(table.Row{
		fmt.Sprintf("%d tests (%d skipped)", len(result.Tests)-result.Stats.Skipped, result.Stats.Skipped),
		result.Stats.Total,
		result.Stats.Passed,
		result.Stats.Failed,
		formatDuration(result.Duration),
		statusString(result.Status),
	})

	t.Render()
	return nil
}

// statusString returns a colored string representing the result
func statusString(status tapzero.Status) string {
	switch status {
	case tapzero.StatusPass:
		return text.FgGreen.Sprint("✓ pass")
	case tapzero.StatusSkip:
		return text.FgYellow.Sprint("- skip")
	default:
		return text.FgRed.Sprint("✗ fail")
	}
}

// formatDuration formats a duration for display
func formatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	return fmt.Sprintf("%.1fs", d.Seconds())
}

var _ ResultFormatter = &TableReporter{}
