package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/wesm/mailidx/internal/query"
)

// Monochrome theme - adaptive for light and dark terminals
var (
	bgBase   = lipgloss.AdaptiveColor{Light: "#ffffff", Dark: "#000000"}
	bgCursor = lipgloss.AdaptiveColor{Light: "#e0e0e0", Dark: "#282828"}

	// Title bar and footer - bold with visible background
	titleBarStyle = lipgloss.NewStyle().
			Bold(true).
			Background(lipgloss.AdaptiveColor{Light: "#e0e0e0", Dark: "#333333"}).
			Foreground(lipgloss.AdaptiveColor{Light: "#000000", Dark: "#ffffff"})

	footerStyle = titleBarStyle

	// Cursor row: subtle lighter background
	cursorRowStyle = lipgloss.NewStyle().
			Bold(true).
			Background(bgCursor)

	// Normal rows need background to clear old content
	normalRowStyle = lipgloss.NewStyle().
			Background(bgBase)

	labelStyle = lipgloss.NewStyle().
			Bold(true)

	errorStyle = lipgloss.NewStyle().
			Bold(true).
			Background(bgBase)

	highlightStyle = lipgloss.NewStyle().
			Foreground(lipgloss.AdaptiveColor{Light: "#000000", Dark: "#000000"}).
			Background(lipgloss.AdaptiveColor{Light: "#e8d44d", Dark: "#e8d44d"}).
			Bold(true)
)

// Listing column widths in terminal cells.
const (
	rankWidth    = 4
	addressWidth = 20
	dateWidth    = 9
	minSubject   = 10
)

// View implements tea.Model.
func (m Model) View() string {
	if m.quitting {
		return ""
	}
	if m.width == 0 {
		return "Loading..."
	}

	var body string
	switch m.state {
	case StateDetail:
		body = m.detail.View()
	default:
		body = m.listingView()
	}
	return strings.Join([]string{
		m.titleBar(),
		body,
		m.footerView(),
		m.commandLine(),
	}, "\n")
}

func (m Model) titleBar() string {
	title := "mailidx email browser"
	if m.version != "" {
		title += " " + m.version
	}
	if q := m.session.QueryString(); q != "" {
		title += "  [" + q + "]"
	}
	return titleBarStyle.Render(padRight(truncateRunes(title, m.width), m.width))
}

// listingView renders one row per result on the current page, padded to the
// page size so the footer stays at the bottom.
func (m Model) listingView() string {
	pageSize := max(m.height-chromeLines, 1)
	lines := make([]string, 0, pageSize)
	if m.window != nil {
		for _, it := range m.window.Items {
			if len(lines) == pageSize {
				break
			}
			lines = append(lines, m.renderRow(it))
		}
	}
	for len(lines) < pageSize {
		lines = append(lines, normalRowStyle.Render(strings.Repeat(" ", m.width)))
	}
	return strings.Join(lines, "\n")
}

// renderRow formats a result as rank, address, date and subject columns.
func (m Model) renderRow(it query.Item) string {
	subjectWidth := max(m.width-(rankWidth+3+addressWidth+2+dateWidth+2), minSubject)
	row := fmt.Sprintf("%s   %s (%s) %s",
		padLeft(truncateRunes(fmt.Sprint(it.Rank+1), rankWidth), rankWidth),
		cell(listAddress(it.Payload.From, it.Payload.To, m.myAddresses), addressWidth),
		padLeft(listDate(it.Payload.Date, m.now(), m.loc), dateWidth),
		cell(subjectOrDefault(it.Payload.Title), subjectWidth),
	)
	row = padRight(row, m.width)
	if it.Rank == m.session.Cursor() {
		return cursorRowStyle.Render(row)
	}
	return normalRowStyle.Render(row)
}

// footerText summarizes the current page.
func (m Model) footerText() string {
	n := m.window.Len()
	if n == 0 {
		return "No matches"
	}
	return fmt.Sprintf("Showing %d-%d of about %d matching emails.",
		m.window.Offset+1, m.window.Offset+n, m.window.EstimatedTotal)
}

func (m Model) footerView() string {
	if m.err != nil {
		return errorStyle.Render(padRight(truncateRunes("Error: "+m.err.Error(), m.width), m.width))
	}
	return footerStyle.Render(padRight(m.footerText(), m.width))
}

// commandLine shows the query input while searching, otherwise key help.
func (m Model) commandLine() string {
	if m.searching {
		return m.searchInput.View()
	}
	if m.state == StateDetail {
		return m.help.View(detailHelp{m.keys})
	}
	return m.help.View(listingHelp{m.keys})
}

// detailContent renders the selected message's stored fields.
func (m Model) detailContent() string {
	if m.selected == nil {
		return "No message selected."
	}
	p := m.selected.Payload
	width := m.width
	if width <= 0 {
		width = 80
	}

	var b strings.Builder
	field := func(label, value string) {
		if value == "" {
			return
		}
		b.WriteString(labelStyle.Render(fmt.Sprintf("%-9s", label+":")))
		b.WriteString(truncateRunes(value, max(width-9, 1)))
		b.WriteString("\n")
	}
	field("From", p.From)
	field("To", p.To)
	field("Cc", p.Cc)
	field("Subject", subjectOrDefault(p.Title))
	field("Date", p.Date)
	field("Mailbox", fmt.Sprintf("%s #%d", p.Filename, p.MessageNum))
	field("Key", m.selected.KeyTerm)
	b.WriteString("\n")

	for _, line := range wrapText(p.Sample, width) {
		b.WriteString(highlightTerms(line, m.session.QueryString()))
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}
