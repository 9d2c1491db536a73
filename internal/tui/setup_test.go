package tui

import (
	"context"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"github.com/wesm/mailidx/internal/query"
	"github.com/wesm/mailidx/internal/query/querytest"
	"github.com/wesm/mailidx/internal/search"
)

// ansiStart is the escape sequence prefix found in styled terminal output.
const ansiStart = "\x1b["

// colorProfileMu serializes tests that mutate the global lipgloss color profile.
var colorProfileMu sync.Mutex

// forceColorProfile sets lipgloss to ANSI color output for tests that assert
// on styled output. It acquires colorProfileMu to prevent data races with
// parallel tests and restores the original profile via t.Cleanup.
func forceColorProfile(t *testing.T) {
	t.Helper()
	colorProfileMu.Lock()
	orig := lipgloss.ColorProfile()
	lipgloss.SetColorProfile(termenv.ANSI)
	t.Cleanup(func() {
		lipgloss.SetColorProfile(orig)
		colorProfileMu.Unlock()
	})
}

var ansiPattern = regexp.MustCompile(`\x1b\[[0-9;?]*[ -/]*[@-~]`)

func stripANSI(s string) string {
	return ansiPattern.ReplaceAllString(s, "")
}

// testNow is the fixed clock used by browser tests.
var testNow = time.Date(2024, 1, 1, 18, 0, 0, 0, time.UTC)

// TestModelBuilder helps construct Model instances for testing.
type TestModelBuilder struct {
	items       []query.Item
	engine      *querytest.MockEngine
	query       string
	width       int
	height      int
	myAddresses []string
	sessionOpts []query.SessionOption
}

func NewBuilder() *TestModelBuilder {
	return &TestModelBuilder{width: 100, height: 13}
}

func (b *TestModelBuilder) WithItems(items ...query.Item) *TestModelBuilder {
	b.items = items
	return b
}

func (b *TestModelBuilder) WithEngine(eng *querytest.MockEngine) *TestModelBuilder {
	b.engine = eng
	return b
}

func (b *TestModelBuilder) WithQuery(q string) *TestModelBuilder {
	b.query = q
	return b
}

func (b *TestModelBuilder) WithSize(width, height int) *TestModelBuilder {
	b.width = width
	b.height = height
	return b
}

func (b *TestModelBuilder) WithMyAddresses(addrs ...string) *TestModelBuilder {
	b.myAddresses = addrs
	return b
}

func (b *TestModelBuilder) WithSessionOptions(opts ...query.SessionOption) *TestModelBuilder {
	b.sessionOpts = opts
	return b
}

// Build returns the model after its first WindowSizeMsg, so the first page
// is already fetched. A zero width skips the resize.
func (b *TestModelBuilder) Build(t *testing.T) (Model, *querytest.MockEngine) {
	t.Helper()
	eng := b.engine
	if eng == nil {
		eng = &querytest.MockEngine{Results: b.items}
	}
	session := query.NewSession(eng, search.NewParser(nil), b.query, b.sessionOpts...)
	m := New(context.Background(), session, Options{
		Version:     "test123",
		MyAddresses: b.myAddresses,
		Now:         func() time.Time { return testNow },
		Location:    time.UTC,
	})
	if b.width > 0 {
		m, _ = sendMsg(t, m, tea.WindowSizeMsg{Width: b.width, Height: b.height})
	}
	return m, eng
}

// sendKey sends a key through Update and returns the concrete Model.
func sendKey(t *testing.T, m Model, k tea.KeyMsg) (Model, tea.Cmd) {
	t.Helper()
	newM, cmd := m.Update(k)
	return newM.(Model), cmd
}

// sendMsg sends any tea.Msg through Update and returns the concrete Model.
func sendMsg(t *testing.T, m Model, msg tea.Msg) (Model, tea.Cmd) {
	t.Helper()
	newM, cmd := m.Update(msg)
	return newM.(Model), cmd
}

// typeText sends each rune of s as a key press.
func typeText(t *testing.T, m Model, s string) Model {
	t.Helper()
	for _, r := range s {
		m, _ = sendKey(t, m, keyRune(r))
	}
	return m
}

// keyRune returns a KeyMsg for a printable rune.
func keyRune(r rune) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}}
}

func keyEnter() tea.KeyMsg { return tea.KeyMsg{Type: tea.KeyEnter} }
func keyEsc() tea.KeyMsg { return tea.KeyMsg{Type: tea.KeyEscape} }
func keyDown() tea.KeyMsg { return tea.KeyMsg{Type: tea.KeyDown} }
func keyUp() tea.KeyMsg { return tea.KeyMsg{Type: tea.KeyUp} }
func keyPgDown() tea.KeyMsg { return tea.KeyMsg{Type: tea.KeyPgDown} }
func keyPgUp() tea.KeyMsg { return tea.KeyMsg{Type: tea.KeyPgUp} }
func keyCtrlC() tea.KeyMsg { return tea.KeyMsg{Type: tea.KeyCtrlC} }
func keyBackspace() tea.KeyMsg { return tea.KeyMsg{Type: tea.KeyBackspace} }

// assertState checks the browser state and session position.
func assertState(t *testing.T, m Model, state State, offset, cursor int) {
	t.Helper()
	if m.State() != state {
		t.Errorf("state = %v, want %v", m.State(), state)
	}
	if got := m.session.Offset(); got != offset {
		t.Errorf("offset = %d, want %d", got, offset)
	}
	if got := m.session.Cursor(); got != cursor {
		t.Errorf("cursor = %d, want %d", got, cursor)
	}
}

// assertQuitCmd checks whether cmd is tea.Quit.
func assertQuitCmd(t *testing.T, cmd tea.Cmd, want bool) {
	t.Helper()
	got := false
	if cmd != nil {
		_, got = cmd().(tea.QuitMsg)
	}
	if got != want {
		t.Errorf("quit cmd = %v, want %v", got, want)
	}
}

// viewLines splits a rendered view into lines without styling.
func viewLines(view string) []string {
	return strings.Split(stripANSI(view), "\n")
}
