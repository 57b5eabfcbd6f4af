package components

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/kerbaras/docport/pkg/app/styles"
	"github.com/kerbaras/docport/pkg/data"
	"github.com/kerbaras/docport/pkg/events"
	"github.com/mattn/go-runewidth"
)

const DefaultLogLines = 8

// ProgressTracker folds bus events into what the export view shows.
type ProgressTracker struct {
	Exported int
	Total    int
	Counts   *data.Counts
	Paused   bool
	Done     bool
	LastErr  string

	logs    []string
	maxLogs int
	width   int
	bar     progress.Model
}

func NewProgressTracker(width int) *ProgressTracker {
	bar := progress.New(progress.WithDefaultGradient())
	p := &ProgressTracker{maxLogs: DefaultLogLines, bar: bar}
	p.SetWidth(width)
	return p
}

func (p *ProgressTracker) SetWidth(width int) {
	if width <= 0 {
		width = 80
	}
	p.width = width
	p.bar.Width = max(width-12, 10)
}

// Seed initialises the tracker from a state snapshot.
func (p *ProgressTracker) Seed(s *data.JobState) {
	c := s.Counts()
	p.Counts = &c
	p.Exported = c.Exported()
	p.Total = c.Total
	p.Paused = s.IsPaused
	for _, line := range s.Logs {
		p.appendLog(line)
	}
}

func (p *ProgressTracker) Apply(e events.Event) {
	switch e.Type {
	case events.TypeProgress:
		p.Exported, p.Total = e.Exported, e.Total
	case events.TypeLog:
		p.appendLog(e.Line)
	case events.TypeError:
		p.LastErr = e.Message
	case events.TypeState:
		if e.State != nil {
			c := e.State.Counts()
			p.Counts = &c
			p.Paused = e.State.IsPaused
			p.Exported, p.Total = c.Exported(), c.Total
		}
	case events.TypeComplete:
		p.Done = true
		p.Paused = false
		p.Counts = e.Counts
		if e.Counts != nil {
			p.Exported, p.Total = e.Counts.Exported(), e.Counts.Total
		}
	}
}

func (p *ProgressTracker) appendLog(line string) {
	if line == "" {
		return
	}
	p.logs = append(p.logs, line)
	if over := len(p.logs) - p.maxLogs; over > 0 {
		p.logs = append(p.logs[:0:0], p.logs[over:]...)
	}
}

func (p *ProgressTracker) Logs() []string {
	return append([]string(nil), p.logs...)
}

func (p *ProgressTracker) Percent() float64 {
	if p.Total == 0 {
		return 0
	}
	return float64(p.Exported) / float64(p.Total)
}

func (p *ProgressTracker) View() string {
	var b strings.Builder
	b.WriteString(styles.TitleStyle.Render("Exporting documents"))
	b.WriteString("\n")

	b.WriteString(p.bar.ViewAs(p.Percent()))
	b.WriteString(fmt.Sprintf("  %d/%d\n", p.Exported, p.Total))

	switch {
	case p.Done:
		b.WriteString(styles.StatusDone.Render("Finished"))
	case p.Paused:
		b.WriteString(styles.PausedStyle.Render("Paused"))
	default:
		b.WriteString(styles.StatusRunning.Render("Running"))
	}
	if p.Counts != nil {
		b.WriteString(styles.MutedStyle.Render(fmt.Sprintf("  done %d  failed %d  skipped %d  pending %d",
			p.Counts.Success-p.Counts.Skipped, p.Counts.Failed, p.Counts.Skipped, p.Counts.Pending+p.Counts.InProgress)))
	}
	b.WriteString("\n\n")

	for _, line := range p.logs {
		b.WriteString(styles.TextStyle.Render(runewidth.Truncate(line, p.width-2, "…")))
		b.WriteString("\n")
	}
	if p.LastErr != "" {
		b.WriteString(styles.StatusFailed.Render("Error: " + p.LastErr))
		b.WriteString("\n")
	}
	return b.String()
}

// PlainLine renders a one-line progress summary for non-interactive output.
func PlainLine(exported, total int, width int) string {
	if width < 10 {
		width = 10
	}
	filled := 0
	if total > 0 {
		filled = min(exported*width/total, width)
	}
	return fmt.Sprintf("[%s%s] %d/%d", strings.Repeat("#", filled), strings.Repeat("-", width-filled), exported, total)
}
