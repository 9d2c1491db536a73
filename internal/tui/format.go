package tui

import (
	"slices"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
	_ "github.com/emersion/go-message/charset"
	"github.com/emersion/go-message/mail"
	"github.com/mattn/go-runewidth"
	"github.com/wesm/mailidx/internal/mime"
	"github.com/wesm/mailidx/internal/search"
)

// parseAddress splits a header value into display name and address,
// decoding encoded words. Unparseable values come back as the address.
func parseAddress(s string) (name, addr string) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", ""
	}
	a, err := mail.ParseAddress(s)
	if err != nil {
		if list, lerr := mail.ParseAddressList(s); lerr == nil && len(list) > 0 {
			return list[0].Name, list[0].Address
		}
		return "", s
	}
	return a.Name, a.Address
}

func normalizeAddress(addr string) string {
	return strings.ToLower(strings.TrimSpace(addr))
}

// listAddress chooses what the address column shows: the sender, or
// "To <recipient>" for mail the user sent.
func listAddress(from, to string, mine map[string]bool) string {
	name, addr := parseAddress(from)
	if mine[normalizeAddress(addr)] {
		toName, toAddr := parseAddress(to)
		if toName != "" {
			return "To " + toName
		}
		return "To " + toAddr
	}
	if name != "" {
		return name
	}
	return addr
}

// listDate formats a Date header for the listing: day and time for mail from
// the last 24 hours, otherwise the date. Unparseable dates show nothing.
func listDate(header string, now time.Time, loc *time.Location) string {
	t, err := mime.ParseDate(header)
	if err != nil {
		return ""
	}
	if t.Before(now.Add(-24*time.Hour)) || t.After(now) {
		return t.In(loc).Format("02 Jan 06")
	}
	return t.In(loc).Format("Mon 15:04")
}

// subjectOrDefault returns the subject, or a placeholder when it is empty.
func subjectOrDefault(title string) string {
	if strings.TrimSpace(title) == "" {
		return "(No subject)"
	}
	return title
}

// highlightTerms highlights the query's words in text.
func highlightTerms(text, queryStr string) string {
	if queryStr == "" || text == "" {
		return text
	}
	return applyHighlight(text, search.HighlightWords(queryStr))
}

// applyHighlight renders every case-insensitive occurrence of terms in text
// with highlightStyle. Overlapping matches form one highlighted run.
func applyHighlight(text string, terms []string) string {
	if len(terms) == 0 {
		return text
	}
	orig := []rune(text)
	folded := []rune(strings.ToLower(text))
	if len(folded) != len(orig) {
		// Lowercasing changed the rune count; offsets would not line up.
		return text
	}

	marked := make([]bool, len(orig))
	found := false
	for _, term := range terms {
		t := []rune(strings.ToLower(term))
		if len(t) == 0 {
			continue
		}
		for i := 0; i+len(t) <= len(folded); {
			if !slices.Equal(folded[i:i+len(t)], t) {
				i++
				continue
			}
			for j := i; j < i+len(t); j++ {
				marked[j] = true
			}
			found = true
			i += len(t)
		}
	}
	if !found {
		return text
	}

	var sb strings.Builder
	for i := 0; i < len(orig); {
		j := i
		for j < len(orig) && marked[j] == marked[i] {
			j++
		}
		if marked[i] {
			sb.WriteString(highlightStyle.Render(string(orig[i:j])))
		} else {
			sb.WriteString(string(orig[i:j]))
		}
		i = j
	}
	return sb.String()
}

// padRight fills s with trailing spaces to width cells, cutting it when it
// is wider. ANSI sequences do not count towards the width.
func padRight(s string, width int) string {
	sw := lipgloss.Width(s)
	if sw >= width {
		return ansi.Truncate(s, width, "")
	}
	return s + strings.Repeat(" ", width-sw)
}

// padLeft right-aligns s in width cells.
func padLeft(s string, width int) string {
	sw := lipgloss.Width(s)
	if sw >= width {
		return ansi.Truncate(s, width, "")
	}
	return strings.Repeat(" ", width-sw) + s
}

var controlReplacer = strings.NewReplacer("\n", " ", "\r", "", "\t", " ")

// truncateRunes flattens s onto one line and cuts it to maxWidth cells.
// Wide runes count as two cells.
func truncateRunes(s string, maxWidth int) string {
	s = controlReplacer.Replace(s)
	if runewidth.StringWidth(s) <= maxWidth {
		return s
	}
	return runewidth.Truncate(s, maxWidth, "")
}

// cell fits s into exactly width terminal cells, left-aligned.
func cell(s string, width int) string {
	return padRight(truncateRunes(s, width), width)
}

// wrapText splits text into lines of at most width cells, keeping existing
// line breaks and breaking long lines at a space where one falls in the
// second half of the line.
func wrapText(text string, width int) []string {
	if width <= 0 {
		width = 80
	}
	var out []string
	for _, line := range strings.Split(text, "\n") {
		out = append(out, wrapLine([]rune(line), width)...)
	}
	return out
}

func wrapLine(runes []rune, width int) []string {
	if runewidth.StringWidth(string(runes)) <= width {
		return []string{string(runes)}
	}
	var out []string
	for len(runes) > 0 {
		used, cut, space := 0, 0, -1
		for i, r := range runes {
			used += runewidth.RuneWidth(r)
			if used > width {
				break
			}
			cut = i + 1
			if r == ' ' {
				space = i
			}
		}
		switch {
		case cut == 0:
			cut = 1 // a single rune wider than the line
		case cut < len(runes) && space > cut/2:
			cut = space
		}
		out = append(out, string(runes[:cut]))
		runes = runes[cut:]
		for len(runes) > 0 && runes[0] == ' ' {
			runes = runes[1:]
		}
	}
	return out
}
