package ui

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/fatih/color"
	"github.com/pterm/pterm"

	"github.com/satishbabariya/dbkit/telemetry"
)

var (
	// Out and Err are where the printers write.
	Out io.Writer = os.Stdout
	Err io.Writer = os.Stderr

	// Colors
	PrimaryColor   = lipgloss.Color("#00D9FF")
	SuccessColor   = lipgloss.Color("#00FF88")
	WarningColor   = lipgloss.Color("#FFB800")
	ErrorColor     = lipgloss.Color("#FF4444")
	SecondaryColor = lipgloss.Color("#6C757D")

	// Styles
	SuccessStyle = lipgloss.NewStyle().
			Foreground(SuccessColor).
			Bold(true)

	ErrorStyle = lipgloss.NewStyle().
			Foreground(ErrorColor).
			Bold(true)

	WarningStyle = lipgloss.NewStyle().
			Foreground(WarningColor).
			Bold(true)

	InfoStyle = lipgloss.NewStyle().
			Foreground(PrimaryColor)

	SecondaryStyle = lipgloss.NewStyle().
			Foreground(SecondaryColor)

	labelColor = color.New(color.FgCyan, color.Bold)
	nullColor  = color.New(color.FgHiBlack)
)

// PrintSuccess prints a success message
func PrintSuccess(format string, args ...any) {
	fmt.Fprintln(Out, SuccessStyle.Render("✓ "+fmt.Sprintf(format, args...)))
}

// PrintError prints an error message
func PrintError(format string, args ...any) {
	fmt.Fprintln(Err, ErrorStyle.Render("✗ "+fmt.Sprintf(format, args...)))
}

// PrintWarning prints a warning message
func PrintWarning(format string, args ...any) {
	fmt.Fprintln(Out, WarningStyle.Render("⚠ "+fmt.Sprintf(format, args...)))
}

// PrintInfo prints an info message
func PrintInfo(format string, args ...any) {
	fmt.Fprintln(Out, InfoStyle.Render("ℹ "+fmt.Sprintf(format, args...)))
}

// PrintSection prints a section header
func PrintSection(title string) {
	width := 80
	if w := pterm.GetTerminalWidth(); w > 0 && w < width {
		width = w
	}

	section := lipgloss.NewStyle().
		Width(width).
		Border(lipgloss.NormalBorder(), false, false, true, false).
		BorderForeground(SecondaryColor).
		Render(title)

	fmt.Fprintln(Out, section)
}

// PrintValue prints "label: value" for a scalar result.
func PrintValue(label string, value any) {
	labelColor.Fprintf(Out, "%s: ", label)
	fmt.Fprintln(Out, FormatValue(value))
}

// PrintRows prints records as a table. Columns are sorted by name unless
// columns is given.
func PrintRows(rows []map[string]any, columns ...string) error {
	if len(rows) == 0 {
		PrintInfo("No rows")
		return nil
	}
	if len(columns) == 0 {
		columns = Columns(rows)
	}

	data := pterm.TableData{columns}
	for _, row := range rows {
		line := make([]string, len(columns))
		for i, c := range columns {
			line[i] = FormatValue(row[c])
		}
		data = append(data, line)
	}
	out, err := pterm.DefaultTable.WithHasHeader().WithData(data).Srender()
	if err != nil {
		return err
	}
	fmt.Fprintln(Out, out)
	fmt.Fprintln(Out, SecondaryStyle.Render(fmt.Sprintf("%d row(s)", len(rows))))
	return nil
}

// Columns returns the sorted union of the keys of rows.
func Columns(rows []map[string]any) []string {
	seen := map[string]bool{}
	var columns []string
	for _, row := range rows {
		for k := range row {
			if !seen[k] {
				seen[k] = true
				columns = append(columns, k)
			}
		}
	}
	sort.Strings(columns)
	return columns
}

// FormatValue renders a column value for display.
func FormatValue(v any) string {
	switch t := v.(type) {
	case nil:
		return nullColor.Sprint("NULL")
	case []byte:
		return string(t)
	case time.Time:
		return t.Format(time.RFC3339)
	default:
		return fmt.Sprint(t)
	}
}

// PrintSQL renders a statement and its arguments as markdown.
func PrintSQL(title, text string, args []any) error {
	var b strings.Builder
	fmt.Fprintf(&b, "### %s\n\n```sql\n%s\n```\n", title, text)
	if len(args) > 0 {
		b.WriteString("\n| # | value |\n|---|---|\n")
		for i, a := range args {
			fmt.Fprintf(&b, "| %d | `%v` |\n", i+1, a)
		}
	}
	return PrintMarkdown(b.String())
}

// PrintMarkdown renders markdown content
func PrintMarkdown(content string) error {
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(100),
	)
	if err != nil {
		return err
	}

	out, err := r.Render(content)
	if err != nil {
		return err
	}

	fmt.Fprint(Out, out)
	return nil
}

// PrintStats prints a telemetry report.
func PrintStats(r telemetry.Report) error {
	if len(r.Stats) == 0 {
		return nil
	}
	PrintSection("Statistics")
	data := pterm.TableData{{"key", "count", "errors", "cancelled", "avg", "slowest"}}
	for _, s := range r.Stats {
		data = append(data, []string{
			s.Key,
			fmt.Sprint(s.Count),
			fmt.Sprint(s.Errors),
			fmt.Sprint(s.Cancelled),
			s.Average().Round(time.Microsecond).String(),
			s.Slowest.Round(time.Microsecond).String(),
		})
	}
	out, err := pterm.DefaultTable.WithHasHeader().WithData(data).Srender()
	if err != nil {
		return err
	}
	fmt.Fprintln(Out, out)
	return nil
}
