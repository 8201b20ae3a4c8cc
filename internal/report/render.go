// Package report renders probe-run verdicts for the terminal.
package report

import (
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"

	"x402probe/internal/core/domain"
)

var (
	titleStyle  = lipgloss.NewStyle().Bold(true)
	passStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	failStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)
	mutedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	labelStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("12")).Width(14)
	borderStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			Padding(0, 1)
)

// Renderer writes styled verdict lines.
type Renderer struct {
	out io.Writer
}

// NewRenderer creates a renderer writing to out.
func NewRenderer(out io.Writer) *Renderer {
	return &Renderer{out: out}
}

// Section prints a bold stage heading.
func (r *Renderer) Section(title string) {
	fmt.Fprintln(r.out, titleStyle.Render(title))
}

// Pass prints a green verdict line.
func (r *Renderer) Pass(format string, args ...any) {
	fmt.Fprintln(r.out, "   "+passStyle.Render("✓ "+fmt.Sprintf(format, args...)))
}

// Fail prints a red verdict line.
func (r *Renderer) Fail(format string, args ...any) {
	fmt.Fprintln(r.out, "   "+failStyle.Render("✗ "+fmt.Sprintf(format, args...)))
}

// Info prints a neutral detail line.
func (r *Renderer) Info(format string, args ...any) {
	fmt.Fprintf(r.out, "   %s\n", fmt.Sprintf(format, args...))
}

// Progress prints a muted poll progress line.
func (r *Renderer) Progress(attempt, max int, status string) {
	fmt.Fprintln(r.out, "   "+mutedStyle.Render(
		fmt.Sprintf("still %s... (%d/%d)", status, attempt, max)))
}

// Report prints the final run summary box.
func (r *Renderer) Report(report *domain.RunReport) {
	rows := []string{
		row("Run", report.RunID),
		row("Service", report.ServiceURL),
		row("Wallet", report.WalletAddress),
	}
	if report.Provider != "" {
		rows = append(rows, row("AI provider", report.Provider))
	}
	for _, probe := range report.Probes {
		verdict := passStyle.Render(fmt.Sprintf("pass (%d)", probe.StatusCode))
		if !probe.Passed {
			verdict = failStyle.Render(fmt.Sprintf("FAIL (%d)", probe.StatusCode))
		}
		rows = append(rows, row(probe.Name, verdict))
	}
	if job := report.Job; job != nil && job.Status == domain.StatusCompleted {
		rows = append(rows,
			row("Summary", job.Summary),
			row("Word count", fmt.Sprintf("%d", job.WordCount)),
			row("Reading time", job.ReadingTime),
		)
	}
	if s := report.Settlement; s != nil && s.Transaction != "" {
		rows = append(rows, row("Settlement", s.Transaction))
	}
	if report.ErrorMessage != "" {
		rows = append(rows, row("Error", failStyle.Render(report.ErrorMessage)))
	}

	outcome := failStyle.Render("FAILED")
	if report.Success {
		outcome = passStyle.Render("PASSED")
	}
	rows = append(rows, row("Result", outcome))

	fmt.Fprintln(r.out, borderStyle.Render(lipgloss.JoinVertical(lipgloss.Left, rows...)))
}

func row(label, value string) string {
	return lipgloss.JoinHorizontal(lipgloss.Top, labelStyle.Render(label), value)
}
