package tui

import (
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
)

// KeyMap defines the browser keybindings.
type KeyMap struct {
	Up       key.Binding
	Down     key.Binding
	PageUp   key.Binding
	PageDown key.Binding
	Open     key.Binding
	Back     key.Binding
	Search   key.Binding
	Quit     key.Binding
}

// DefaultKeyMap returns the default set of keybindings.
func DefaultKeyMap() KeyMap {
	return KeyMap{
		Up: key.NewBinding(
			key.WithKeys("up", "k"),
			key.WithHelp("k/↑", "up"),
		),
		Down: key.NewBinding(
			key.WithKeys("down", "j"),
			key.WithHelp("j/↓", "down"),
		),
		PageUp: key.NewBinding(
			key.WithKeys("pgup"),
			key.WithHelp("pgup", "prev page"),
		),
		PageDown: key.NewBinding(
			key.WithKeys("pgdown"),
			key.WithHelp("pgdn", "next page"),
		),
		Open: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "open"),
		),
		Back: key.NewBinding(
			key.WithKeys("i", "q", "esc"),
			key.WithHelp("i/q", "back"),
		),
		Search: key.NewBinding(
			key.WithKeys("/"),
			key.WithHelp("/", "search"),
		),
		Quit: key.NewBinding(
			key.WithKeys("q", "esc", "ctrl+c"),
			key.WithHelp("q", "quit"),
		),
	}
}

// listingHelp implements help.KeyMap for the listing state.
type listingHelp struct{ KeyMap }

func (h listingHelp) ShortHelp() []key.Binding {
	return []key.Binding{h.Down, h.Up, h.PageDown, h.PageUp, h.Open, h.Search, h.Quit}
}

func (h listingHelp) FullHelp() [][]key.Binding { return [][]key.Binding{h.ShortHelp()} }

// detailHelp implements help.KeyMap for the detail state.
type detailHelp struct{ KeyMap }

func (h detailHelp) ShortHelp() []key.Binding {
	return []key.Binding{h.Down, h.Up, h.Back, h.Search}
}

func (h detailHelp) FullHelp() [][]key.Binding { return [][]key.Binding{h.ShortHelp()} }

// handleKeyPress routes a key to the search input or the current state.
func (m Model) handleKeyPress(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.String() == "ctrl+c" {
		m.quitting = true
		return m, tea.Quit
	}
	if m.searching {
		return m.handleSearchKeys(msg)
	}
	if key.Matches(msg, m.keys.Search) {
		return m, m.openSearch()
	}
	if m.navigate(msg) {
		return m, nil
	}

	switch m.state {
	case StateListing:
		return m.handleListingKeys(msg)
	case StateDetail:
		return m.handleDetailKeys(msg)
	}
	return m, nil
}

// navigate applies cursor movement keys. It reports whether msg was one.
func (m *Model) navigate(msg tea.KeyMsg) bool {
	switch {
	case key.Matches(msg, m.keys.Up):
		m.session.MoveCursor(-1)
	case key.Matches(msg, m.keys.Down):
		m.session.MoveCursor(1)
	case key.Matches(msg, m.keys.PageUp):
		m.session.Page(-1)
	case key.Matches(msg, m.keys.PageDown):
		m.session.Page(1)
	default:
		return false
	}
	m.refresh()
	return true
}

func (m Model) handleListingKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Open):
		m.state = StateDetail
		m.refresh()
	case key.Matches(msg, m.keys.Quit):
		m.quitting = true
		return m, tea.Quit
	}
	return m, nil
}

func (m Model) handleDetailKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Matches(msg, m.keys.Back) {
		m.state = StateListing
		return m, nil
	}
	var cmd tea.Cmd
	m.detail, cmd = m.detail.Update(msg)
	return m, cmd
}

// handleSearchKeys drives the inline query input.
func (m Model) handleSearchKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEnter:
		m.searching = false
		m.searchInput.Blur()
		m.session.SetQuery(strings.TrimSpace(m.searchInput.Value()))
		m.state = StateListing
		m.refresh()
		return m, nil
	case tea.KeyEsc:
		m.searching = false
		m.searchInput.Blur()
		return m, nil
	}

	var cmd tea.Cmd
	m.searchInput, cmd = m.searchInput.Update(msg)
	return m, cmd
}

func (m *Model) openSearch() tea.Cmd {
	m.searching = true
	m.searchInput.SetValue(m.session.QueryString())
	m.searchInput.CursorEnd()
	return m.searchInput.Focus()
}
