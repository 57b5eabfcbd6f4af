package styles

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/kerbaras/docport/pkg/data"
)

var (
	// Color palette
	Primary    = lipgloss.Color("#FF6B9D")
	Secondary  = lipgloss.Color("#C792EA")
	Success    = lipgloss.Color("#C3E88D")
	Warning    = lipgloss.Color("#FFCB6B")
	Error      = lipgloss.Color("#F07178")
	Info       = lipgloss.Color("#82AAFF")
	Muted      = lipgloss.Color("#546E7A")
	Foreground = lipgloss.Color("#EEFFFF")
)

var (
	TitleStyle = lipgloss.NewStyle().
			Foreground(Primary).
			Bold(true).
			MarginBottom(1)

	SubtitleStyle = lipgloss.NewStyle().
			Foreground(Secondary).
			Italic(true)

	TextStyle = lipgloss.NewStyle().
			Foreground(Foreground)

	MutedStyle = lipgloss.NewStyle().
			Foreground(Muted)

	StatusPending = lipgloss.NewStyle().
			Foreground(Muted)

	StatusRunning = lipgloss.NewStyle().
			Foreground(Info).
			Bold(true)

	StatusDone = lipgloss.NewStyle().
			Foreground(Success).
			Bold(true)

	StatusSkipped = lipgloss.NewStyle().
			Foreground(Warning)

	StatusFailed = lipgloss.NewStyle().
			Foreground(Error).
			Bold(true)

	PausedStyle = lipgloss.NewStyle().
			Foreground(Warning).
			Bold(true)

	TableHeaderStyle = lipgloss.NewStyle().
				Foreground(Primary).
				Bold(true).
				BorderStyle(lipgloss.NormalBorder()).
				BorderBottom(true).
				BorderForeground(Muted)

	TableCellStyle = lipgloss.NewStyle().
			Padding(0, 1)

	HelpStyle = lipgloss.NewStyle().
			Foreground(Muted).
			Italic(true).
			MarginTop(1)
)

// StatusStyle picks the style of a document status. Skipped documents are
// successes that were never exported.
func StatusStyle(status data.Status, skipped bool) lipgloss.Style {
	switch status {
	case data.StatusInProgress:
		return StatusRunning
	case data.StatusSuccess:
		if skipped {
			return StatusSkipped
		}
		return StatusDone
	case data.StatusFailed:
		return StatusFailed
	default:
		return StatusPending
	}
}

// StatusLabel is the short text shown for a document status.
func StatusLabel(status data.Status, skipped bool) string {
	switch status {
	case data.StatusInProgress:
		return "running"
	case data.StatusSuccess:
		if skipped {
			return "skipped"
		}
		return "done"
	case data.StatusFailed:
		return "failed"
	default:
		return "pending"
	}
}
