package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/dickwu/noticewin/internal/model"
)

var statusOpts struct {
	format string
}

// Styles for the human-readable status output.
var (
	statusHeaderStyle = lipgloss.NewStyle().Bold(true)
	statusIDStyle     = lipgloss.NewStyle().Faint(true)
	statusShowStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	statusEmptyStyle  = lipgloss.NewStyle().Faint(true).Italic(true)
)

// statusReport is the machine-readable queue summary.
type statusReport struct {
	Current *statusLine  `json:"current,omitempty" yaml:"current,omitempty"`
	Pending []statusLine `json:"pending" yaml:"pending"`
	Shown   int          `json:"shown" yaml:"shown"`
	Hidden  int          `json:"hidden" yaml:"hidden"`
}

type statusLine struct {
	ID     string `json:"id" yaml:"id"`
	Title  string `json:"title,omitempty" yaml:"title,omitempty"`
	Kind   string `json:"kind" yaml:"kind"`
	Queued string `json:"queued" yaml:"queued"`
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the queue state",
	Long: `Show the current queue state: the showing message, pending messages in
order, and counts of shown and hidden history rows.

Reads the durable store directly and never mutates the queue, so it is safe
to poll from a status bar.`,
	RunE: runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)

	statusCmd.Flags().StringVar(&statusOpts.format, "format", "",
		"Output format: json or yaml (default: human-readable)")
}

func runStatus(cmd *cobra.Command, args []string) error {
	rows, err := msgStore.ListAll()
	if err != nil {
		return fmt.Errorf("failed to read store: %w", err)
	}

	report := buildReport(rows)

	switch statusOpts.format {
	case "json":
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	case "yaml":
		enc := yaml.NewEncoder(os.Stdout)
		defer enc.Close()
		return enc.Encode(report)
	case "":
		fmt.Println(renderReport(rows, report))
		return nil
	default:
		return fmt.Errorf("unknown format %q (want json or yaml)", statusOpts.format)
	}
}

// buildReport partitions store rows by queue status. Rows arrive ordered by
// queue position, so pending keeps presentation order.
func buildReport(rows []model.StoredMessage) statusReport {
	report := statusReport{Pending: []statusLine{}}

	for i := range rows {
		row := &rows[i]
		line := statusLine{
			ID:     row.ID,
			Title:  row.Title,
			Kind:   row.Kind,
			Queued: row.Timestamp,
		}

		switch row.QueueStatus {
		case model.StatusShowing:
			if report.Current == nil {
				report.Current = &line
			}
		case model.StatusPending:
			report.Pending = append(report.Pending, line)
		case model.StatusShown:
			report.Shown++
		case model.StatusHidden:
			report.Hidden++
		}
	}
	return report
}

// renderReport formats the report for a terminal.
func renderReport(rows []model.StoredMessage, report statusReport) string {
	var b strings.Builder

	age := make(map[string]string, len(rows))
	for i := range rows {
		age[rows[i].ID] = humanize.Time(rows[i].TimestampTime())
	}

	b.WriteString(statusHeaderStyle.Render("Showing"))
	b.WriteString("\n")
	if report.Current != nil {
		b.WriteString(renderLine(*report.Current, age, statusShowStyle))
	} else {
		b.WriteString("  " + statusEmptyStyle.Render("nothing showing") + "\n")
	}

	b.WriteString(statusHeaderStyle.Render(fmt.Sprintf("Pending (%d)", len(report.Pending))))
	b.WriteString("\n")
	if len(report.Pending) == 0 {
		b.WriteString("  " + statusEmptyStyle.Render("queue is empty") + "\n")
	}
	for _, line := range report.Pending {
		b.WriteString(renderLine(line, age, lipgloss.NewStyle()))
	}

	b.WriteString(statusIDStyle.Render(
		fmt.Sprintf("%d shown, %d hidden", report.Shown, report.Hidden)))
	return b.String()
}

func renderLine(line statusLine, age map[string]string, style lipgloss.Style) string {
	title := line.Title
	if title == "" {
		title = "(untitled)"
	}
	return fmt.Sprintf("  %s %s %s\n",
		style.Render(title),
		statusIDStyle.Render("["+line.Kind+" "+line.ID+"]"),
		statusIDStyle.Render(age[line.ID]))
}
