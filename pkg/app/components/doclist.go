package components

import (
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/lipgloss"
	"github.com/kerbaras/docport/pkg/app/styles"
	"github.com/kerbaras/docport/pkg/data"
	"github.com/mattn/go-runewidth"
)

type DocFilter string

const (
	FilterAll     DocFilter = "all"
	FilterFailed  DocFilter = "failed"
	FilterPending DocFilter = "pending"
	FilterDone    DocFilter = "done"
)

// DocList renders the manifest of a job as a table.
type DocList struct {
	Docs   []*data.DocumentRef
	Filter DocFilter
	Width  int
	Height int
}

func NewDocList(docs []*data.DocumentRef) *DocList {
	return &DocList{
		Docs:   docs,
		Filter: FilterAll,
		Width:  100,
		Height: 20,
	}
}

// Visible returns the documents the filter keeps, in manifest order.
func (l *DocList) Visible() []*data.DocumentRef {
	out := make([]*data.DocumentRef, 0, len(l.Docs))
	for _, d := range l.Docs {
		if l.keep(d) {
			out = append(out, d)
		}
	}
	return out
}

func (l *DocList) keep(d *data.DocumentRef) bool {
	switch l.Filter {
	case FilterFailed:
		return d.Status == data.StatusFailed
	case FilterPending:
		return d.Status.IsResumable()
	case FilterDone:
		return d.Status == data.StatusSuccess
	default:
		return true
	}
}

func (l *DocList) columns() []table.Column {
	statusW, kindW, formatW, timeW := 8, 10, 6, 8
	pathW := l.Width - statusW - kindW - formatW - timeW - 10
	if pathW < 20 {
		pathW = 20
	}
	return []table.Column{
		{Title: "Status", Width: statusW},
		{Title: "Type", Width: kindW},
		{Title: "Document", Width: pathW},
		{Title: "Format", Width: formatW},
		{Title: "Time", Width: timeW},
	}
}

func (l *DocList) Rows() []table.Row {
	cols := l.columns()
	var rows []table.Row
	for _, d := range l.Visible() {
		rows = append(rows, table.Row{
			styles.StatusStyle(d.Status, d.Skipped).Render(styles.StatusLabel(d.Status, d.Skipped)),
			runewidth.Truncate(d.Kind, cols[1].Width, "…"),
			runewidth.Truncate(DocumentPath(d), cols[2].Width, "…"),
			d.Format,
			formatDuration(d.Duration),
		})
	}
	return rows
}

func (l *DocList) View() string {
	visible := l.Visible()
	if len(visible) == 0 {
		msg := styles.MutedStyle.Render("No documents")
		return lipgloss.Place(l.Width, 3, lipgloss.Center, lipgloss.Center, msg)
	}

	t := table.New(
		table.WithColumns(l.columns()),
		table.WithRows(l.Rows()),
		table.WithHeight(min(len(visible)+3, max(l.Height, 3))),
		table.WithFocused(false),
	)
	s := table.DefaultStyles()
	s.Header = styles.TableHeaderStyle
	s.Cell = styles.TableCellStyle
	s.Selected = lipgloss.NewStyle()
	t.SetStyles(s)

	var b strings.Builder
	b.WriteString(t.View())
	b.WriteString("\n")

	var failures []string
	for _, d := range visible {
		if d.Status == data.StatusFailed && d.Error != "" {
			failures = append(failures, runewidth.Truncate(fmt.Sprintf("%s: %s", DocumentPath(d), d.Error), l.Width, "…"))
		}
	}
	if len(failures) > 0 {
		b.WriteString("\n")
		b.WriteString(styles.StatusFailed.Render("Failures"))
		b.WriteString("\n")
		for _, f := range failures {
			b.WriteString(styles.MutedStyle.Render(f))
			b.WriteString("\n")
		}
	}
	return b.String()
}

// Summary renders the counts line shown above the table.
func Summary(s *data.JobState) string {
	c := s.Counts()
	state := "idle"
	switch {
	case s.IsExporting && s.IsPaused:
		state = styles.PausedStyle.Render("paused")
	case s.IsExporting:
		state = styles.StatusRunning.Render("exporting")
	}
	return fmt.Sprintf("%s  %d documents in %d folders: %s done, %s failed, %s skipped, %d pending",
		state, c.Total, s.FolderCount,
		styles.StatusDone.Render(fmt.Sprint(c.Success-c.Skipped)),
		styles.StatusFailed.Render(fmt.Sprint(c.Failed)),
		styles.StatusSkipped.Render(fmt.Sprint(c.Skipped)),
		c.Pending+c.InProgress)
}

// DocumentPath is the folder path and title joined with slashes.
func DocumentPath(d *data.DocumentRef) string {
	return path.Join(append(append([]string{}, d.FolderPath...), d.Title)...)
}

func formatDuration(ms int64) string {
	if ms <= 0 {
		return ""
	}
	d := time.Duration(ms) * time.Millisecond
	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	return d.Round(time.Second).String()
}
