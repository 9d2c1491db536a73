// Package tui provides the terminal search browser for mailidx.
package tui

import (
	"context"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/wesm/mailidx/internal/query"
)

// State is the browser's current screen.
type State int

const (
	StateListing State = iota
	StateDetail
)

func (s State) String() string {
	switch s {
	case StateListing:
		return "listing"
	case StateDetail:
		return "detail"
	default:
		return "unknown"
	}
}

// chromeLines is the number of rows used by the title bar, the footer and
// the command line.
const chromeLines = 3

// Options configuration for TUI.
type Options struct {
	Version string

	// MyAddresses lists the user's own addresses. Messages sent from one of
	// them are listed by recipient.
	MyAddresses []string

	// Now and Location control date display; they default to time.Now and
	// time.Local.
	Now      func() time.Time
	Location *time.Location
}

// Model is the browser model following the Elm architecture. Searches run
// synchronously through the session whenever the page changes.
type Model struct {
	ctx     context.Context
	session *query.Session
	keys    KeyMap

	version     string
	myAddresses map[string]bool
	now         func() time.Time
	loc         *time.Location

	state State

	// Current page and the item under the cursor, refreshed after every
	// session change.
	window   *query.Window
	selected *query.Item
	err      error

	searching   bool
	searchInput textinput.Model

	detail viewport.Model
	help   help.Model

	width  int
	height int

	quitting bool
}

// New creates a browser over session. ctx bounds every search it runs.
func New(ctx context.Context, session *query.Session, opts Options) Model {
	ti := textinput.New()
	ti.Prompt = "/"
	ti.Placeholder = "search"
	ti.CharLimit = 500

	vp := viewport.New(0, 0)
	vp.KeyMap = detailScrollKeys(vp.KeyMap)

	mine := make(map[string]bool, len(opts.MyAddresses))
	for _, a := range opts.MyAddresses {
		mine[normalizeAddress(a)] = true
	}

	m := Model{
		ctx:         ctx,
		session:     session,
		keys:        DefaultKeyMap(),
		version:     opts.Version,
		myAddresses: mine,
		now:         opts.Now,
		loc:         opts.Location,
		state:       StateListing,
		searchInput: ti,
		detail:      vp,
		help:        help.New(),
	}
	if m.now == nil {
		m.now = time.Now
	}
	if m.loc == nil {
		m.loc = time.Local
	}
	return m
}

// detailScrollKeys leaves the arrow and page keys to result navigation and
// scrolls the detail view with less-style keys instead.
func detailScrollKeys(km viewport.KeyMap) viewport.KeyMap {
	km.PageDown = key.NewBinding(key.WithKeys(" ", "f"))
	km.PageUp = key.NewBinding(key.WithKeys("b"))
	km.HalfPageDown = key.NewBinding(key.WithKeys("d", "ctrl+d"))
	km.HalfPageUp = key.NewBinding(key.WithKeys("u", "ctrl+u"))
	km.Down = key.NewBinding(key.WithKeys("ctrl+n"))
	km.Up = key.NewBinding(key.WithKeys("ctrl+p"))
	return km
}

// Init implements tea.Model. Nothing is fetched until the terminal size,
// and therefore the page size, is known.
func (m Model) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKeyPress(msg)

	case tea.WindowSizeMsg:
		m.width = max(msg.Width, 0)
		m.height = max(msg.Height, 0)
		m.session.SetPageSize(m.height - chromeLines)
		m.detail.Width = m.width
		m.detail.Height = max(m.height-chromeLines, 1)
		m.searchInput.Width = max(m.width-2, 1)
		m.help.Width = m.width
		m.refresh()
		return m, nil
	}
	return m, nil
}

// refresh fetches the current page through the session (a no-op when it is
// cached) and updates the selected item and detail content.
func (m *Model) refresh() {
	w, err := m.session.Window(m.ctx)
	if err != nil {
		m.err = err
		m.window = nil
		m.selected = nil
		m.setDetailContent()
		return
	}
	m.err = nil
	m.window = w
	m.selected = nil
	if it, ok := w.At(m.session.Cursor()); ok {
		m.selected = &it
	}
	m.setDetailContent()
}

func (m *Model) setDetailContent() {
	m.detail.SetContent(m.detailContent())
	m.detail.GotoTop()
}

// State returns the current screen.
func (m Model) State() State { return m.state }

// Searching reports whether the query input is open.
func (m Model) Searching() bool { return m.searching }

// Quitting reports whether the browser has been asked to exit.
func (m Model) Quitting() bool { return m.quitting }

// Err returns the error of the last search, if any.
func (m Model) Err() error { return m.err }
