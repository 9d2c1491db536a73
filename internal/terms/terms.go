// Package terms turns spans of plain text into normalized index terms.
//
// The scanner recognises three shapes of token: dotted acronyms ("N.A.S.A"),
// words with an optional interior ampersand ("AT&T"), and words carrying a
// trailing "#" or "+"/"-" run ("C#", "C++"). Each accepted token is lower-cased
// and stemmed; tokens that start with an uppercase letter additionally produce
// an unstemmed capitalized variant so exact-case queries stay possible.
package terms

import (
	"strings"
	"unicode"
)

// MaxTermLength is the exclusive upper bound on term length, in runes.
// Longer tokens are almost always base64 or URL debris.
const MaxTermLength = 64

// Term is a single index term.
type Term struct {
	// Text is the normalized term without its field prefix.
	Text string

	// Prefix names the structured field the term belongs to ("A", "XT", ...).
	// Empty for free-text terms.
	Prefix string

	// Position is the term position for phrase matching. Zero means the term
	// is unpositioned; positioned terms start at 1.
	Position int

	// Weight is the within-document frequency increment.
	Weight int

	// Capitalized marks the unstemmed variant emitted for tokens that start
	// with an uppercase letter.
	Capitalized bool
}

// Key returns the full term string as stored in the index.
func (t Term) Key() string {
	if t.Capitalized {
		return CapitalizedPrefix(t.Prefix) + t.Text
	}
	return t.Prefix + t.Text
}

// CapitalizedPrefix returns the prefix used for capitalized variants of terms
// in the given field. Multi-character prefixes get a ":R" marker so the marker
// cannot be confused with the first letter of the term.
func CapitalizedPrefix(prefix string) string {
	if len(prefix) > 1 && !strings.HasSuffix(prefix, ":") {
		return prefix + ":R"
	}
	return prefix + "R"
}

// Scanner produces terms from a text span one at a time.
// A Scanner is not restartable; create a new one to scan again.
type Scanner struct {
	text   []rune
	next   int
	prefix string
	stem   Stemmer
	pos    *int

	pending    Term
	hasPending bool
}

// NewScanner returns a scanner over text. Terms carry the given field prefix.
// When pos is non-nil the scanner advances *pos once per accepted token and
// stamps terms with the new value; when nil, terms are unpositioned.
func NewScanner(text, prefix string, stem Stemmer, pos *int) *Scanner {
	if stem == nil {
		stem = Identity
	}
	return &Scanner{
		text:   []rune(text),
		prefix: prefix,
		stem:   stem,
		pos:    pos,
	}
}

// Next returns the next term. The second result is false once the input is
// exhausted.
func (s *Scanner) Next() (Term, bool) {
	if s.hasPending {
		s.hasPending = false
		return s.pending, true
	}

	for {
		raw, upper, ok := s.scan()
		if !ok {
			return Term{}, false
		}
		lower := strings.ToLower(raw)
		if len([]rune(lower)) >= MaxTermLength {
			continue
		}

		position := 0
		if s.pos != nil {
			*s.pos++
			position = *s.pos
		}

		stemmed := s.stem.Stem(lower)
		if stemmed == "" {
			stemmed = lower
		}
		t := Term{Text: stemmed, Prefix: s.prefix, Position: position, Weight: 1}
		if !upper {
			return t, true
		}

		s.pending = t
		s.hasPending = true
		return Term{Text: lower, Prefix: s.prefix, Position: position, Weight: 1, Capitalized: true}, true
	}
}

// scan finds the next raw token. It reports whether the token started with
// an uppercase letter.
func (s *Scanner) scan() (string, bool, bool) {
	first := s.next
	for first < len(s.text) && !isAlnum(s.text[first]) {
		first++
	}
	if first == len(s.text) {
		s.next = first
		return "", false, false
	}

	upper := unicode.IsUpper(s.text[first])
	if upper {
		if term, end, ok := s.acronym(first); ok {
			s.next = end
			return term, true, true
		}
	}

	term, end := s.word(first)
	s.next = end
	return term, upper, true
}

// acronym tries to read a dotted acronym such as "N.A.S.A" starting at first.
// A single trailing dot is part of the acronym. The acronym must be followed
// by a non-alphanumeric rune or the end of the text.
func (s *Scanner) acronym(first int) (string, int, bool) {
	text := s.text
	var b strings.Builder
	b.WriteRune(text[first])
	letters := 1

	j := first + 1
	for j < len(text) && text[j] == '.' {
		if j+1 < len(text) && unicode.IsUpper(text[j+1]) {
			b.WriteRune(text[j+1])
			letters++
			j += 2
			continue
		}
		j++
		break
	}

	if letters < 2 || (j < len(text) && isAlnum(text[j])) {
		return "", 0, false
	}
	return b.String(), j, true
}

// word reads an alphanumeric run starting at first, including interior
// ampersands and an optional "#" or "+"/"-" suffix.
func (s *Scanner) word(first int) (string, int) {
	text := s.text
	var b strings.Builder

	j := first
	for j < len(text) && isAlnum(text[j]) {
		b.WriteRune(text[j])
		j++
		if j+1 < len(text) && text[j] == '&' && isAlnum(text[j+1]) {
			b.WriteRune('&')
			j++
		}
	}

	if j == len(text) || !isSuffixRune(text[j]) {
		return b.String(), j
	}

	k := j
	var suffix string
	if text[k] == '#' {
		for k < len(text) && text[k] == '#' {
			k++
		}
		suffix = "#"
	} else {
		for k < len(text) && isPlusMinus(text[k]) {
			k++
		}
		suffix = string(text[j:k])
	}

	// A suffix glued to more word characters is not a suffix ("foo#bar").
	if k < len(text) && isAlnum(text[k]) {
		return b.String(), j
	}
	b.WriteString(suffix)
	return b.String(), k
}

func isAlnum(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}

func isPlusMinus(r rune) bool {
	return r == '+' || r == '-'
}

func isSuffixRune(r rune) bool {
	return r == '#' || isPlusMinus(r)
}

// Collect drains a new scanner over text and returns every term it yields.
func Collect(text, prefix string, stem Stemmer, pos *int) []Term {
	var out []Term
	s := NewScanner(text, prefix, stem, pos)
	for {
		t, ok := s.Next()
		if !ok {
			return out
		}
		out = append(out, t)
	}
}
