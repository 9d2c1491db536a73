package search

import (
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/wesm/mailidx/internal/terms"
)

func utcDate(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func timePtr(v time.Time) *time.Time { return &v }

func fixedParser(stem terms.Stemmer) *Parser {
	p := NewParser(stem)
	p.Now = func() time.Time { return utcDate(2024, 6, 15) }
	return p
}

func TestParse(t *testing.T) {
	tests := []struct {
		name  string
		query string
		want  string
	}{
		{"empty", "", "<all>"},
		{"whitespace", "   ", "<all>"},
		{"punctuation only", "...", "<all>"},
		{"single word", "hello", "hello"},
		{"capitalized word", "Hello", "Rhello"},
		{"implicit or", "hello world", "(hello OR world)"},
		{"explicit or", "hello OR world", "(hello OR world)"},
		{"explicit and", "hello AND world", "(hello AND world)"},
		{"and chain", "a AND b AND c", "(a AND b AND c)"},
		{"and binds tighter", "a b AND c", "(a OR (b AND c))"},
		{"not", "hello NOT world", "(hello AND_NOT world)"},
		{"leading not", "NOT spam", "(<all> AND_NOT spam)"},
		{"lowercase operators are words", "this and that", "(this OR and OR that)"},
		{"dangling operator", "AND", "<all>"},
		{"leading or", "OR hello", "hello"},
		{"required", "+hello world", "(hello AND_MAYBE world)"},
		{"all required", "+a +b", "(a AND b)"},
		{"excluded", "hello -spam", "(hello AND_NOT spam)"},
		{"only excluded", "-spam", "(<all> AND_NOT spam)"},
		{"phrase", `"hello world"`, `"hello world"`},
		{"capitalized phrase", `"Hello world"`, `"Rhello world"`},
		{"single word phrase", `"hello"`, "hello"},
		{"excluded phrase", `-"buy now" deal`, `(deal AND_NOT "buy now")`},
		{"unterminated phrase", `"hello world`, `"hello world"`},
		{"hyphenated word is a phrase", "e-mail", `"e mail"`},
		{"suffix word", "C++", "Rc++"},
		{"from", "from:alice", "Aalice"},
		{"author capitalized", "author:Alice", "ARalice"},
		{"field name case", "FROM:alice", "Aalice"},
		{"to address", "to:bob@example.com", "(XTbob AND XTexample AND XTcom)"},
		{"cc", "cc:carol", "XTcarol"},
		{"subject phrase", `subject:"quarterly report"`, "(Squarterly AND Sreport)"},
		{"title", "title:report", "Sreport"},
		{"filename", "file:inbox", "XFILENAMEinbox"},
		{"unknown field", "unknown:thing", `"unknown thing"`},
		{"required field", "+from:alice report", "(Aalice AND_MAYBE report)"},
		{"year filter", "year:2024", "(<all> FILTER Y2024)"},
		{
			"filters group by prefix",
			"year:2023 year:2024 month:2024-03 report",
			"(report FILTER ((Y2023 OR Y2024) AND M202403))",
		},
		{"month digits", "month:202403", "(<all> FILTER M202403)"},
		{"day filter", "date:2024-01-15", "(<all> FILTER D20240115)"},
		{"day alias", "day:20240115", "(<all> FILTER D20240115)"},
		{"fortnight from date", "fortnight:2024-01-31", "(<all> FILTER W2024012)"},
		{"fortnight digits", "fortnight:2024011", "(<all> FILTER W2024011)"},
		{"excluded filter", "-year:2020 x", "(x AND_NOT Y2020)"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := fixedParser(nil).Parse(tt.query)
			if got.Raw != tt.query {
				t.Errorf("Raw = %q, want %q", got.Raw, tt.query)
			}
			if s := got.Root.String(); s != tt.want {
				t.Errorf("Parse(%q) = %s, want %s", tt.query, s, tt.want)
			}
		})
	}
}

func TestParse_DateRanges(t *testing.T) {
	tests := []struct {
		name       string
		query      string
		wantAfter  *time.Time
		wantBefore *time.Time
	}{
		{"after and before", "after:2024-01-01 before:2024-02-01", timePtr(utcDate(2024, 1, 1)), timePtr(utcDate(2024, 2, 1))},
		{"slash format", "after:2024/03/05", timePtr(utcDate(2024, 3, 5)), nil},
		{"newer than days", "newer_than:7d", timePtr(utcDate(2024, 6, 8)), nil},
		{"newer than weeks", "newer_than:2w", timePtr(utcDate(2024, 6, 1)), nil},
		{"older than months", "older_than:1m", nil, timePtr(utcDate(2024, 5, 15))},
		{"older than years", "older_than:1y", nil, timePtr(utcDate(2023, 6, 15))},
		{"invalid date ignored", "after:notadate", nil, nil},
		{"invalid relative ignored", "newer_than:soon", nil, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := fixedParser(nil).Parse(tt.query)
			if diff := cmp.Diff(tt.wantAfter, got.After); diff != "" {
				t.Errorf("After mismatch (-want +got):\n%s", diff)
			}
			if diff := cmp.Diff(tt.wantBefore, got.Before); diff != "" {
				t.Errorf("Before mismatch (-want +got):\n%s", diff)
			}
			if got.Root.Op != OpMatchAll {
				t.Errorf("Root = %s, want <all>", got.Root)
			}
		})
	}
}

func TestQuery_MatchesAll(t *testing.T) {
	tests := map[string]bool{
		"":                 true,
		"after:notadate":   true,
		"hello":            false,
		"year:2024":        false,
		"after:2024-01-01": false,
		"-spam":            false,
	}
	for query, want := range tests {
		if got := Parse(query).MatchesAll(); got != want {
			t.Errorf("Parse(%q).MatchesAll() = %v, want %v", query, got, want)
		}
	}
}

func TestQuery_String(t *testing.T) {
	q := fixedParser(nil).Parse("hello after:2024-01-01")
	if got, want := q.String(), "hello after:2024-01-01"; got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
}

func TestParse_UsesStemmer(t *testing.T) {
	stem := terms.StemmerFunc(func(w string) string { return strings.TrimSuffix(w, "s") })
	tests := map[string]string{
		"cats":             "cat",
		"Cats":             "Rcats",
		`"running cats"`:   `"running cat"`,
		"from:cats":        "Acat",
		"dogs AND cats":    "(dog AND cat)",
		"year:2024 things": "(thing FILTER Y2024)",
	}
	for query, want := range tests {
		if got := fixedParser(stem).Parse(query).Root.String(); got != want {
			t.Errorf("Parse(%q) = %s, want %s", query, got, want)
		}
	}
}

func TestTokenize(t *testing.T) {
	tests := []struct {
		query string
		want  []string
	}{
		{"", nil},
		{"a  b\tc", []string{"a", "b", "c"}},
		{`"a b" c`, []string{`"a b"`, "c"}},
		{`subject:"a b" c`, []string{`subject:"a b"`, "c"}},
		{`-"a b"`, []string{`-"a b"`}},
		{`"a b`, []string{`"a b`}},
		{`x"a b"y`, []string{`x"a b"`, "y"}},
	}
	for _, tt := range tests {
		got := tokenize(tt.query)
		if diff := cmp.Diff(tt.want, got, cmpopts.EquateEmpty()); diff != "" {
			t.Errorf("tokenize(%q) mismatch (-want +got):\n%s", tt.query, diff)
		}
	}
}

func TestParseDate(t *testing.T) {
	tests := []struct {
		input string
		want  *time.Time
	}{
		{"2024-01-15", timePtr(utcDate(2024, 1, 15))},
		{"2024/01/15", timePtr(utcDate(2024, 1, 15))},
		{"20240115", timePtr(utcDate(2024, 1, 15))},
		{" 2024-01-15 ", timePtr(utcDate(2024, 1, 15))},
		{"2024", nil},
		{"yesterday", nil},
	}
	for _, tt := range tests {
		if diff := cmp.Diff(tt.want, parseDate(tt.input)); diff != "" {
			t.Errorf("parseDate(%q) mismatch (-want +got):\n%s", tt.input, diff)
		}
	}
}

func TestHighlightWords(t *testing.T) {
	tests := []struct {
		query string
		want  []string
	}{
		{"", nil},
		{"hello world", []string{"hello", "world"}},
		{"Hello AND hello OR NOT world", []string{"Hello", "world"}},
		{`from:alice subject:"weekly report"`, []string{"alice", "weekly", "report"}},
		{"+budget -draft", []string{"budget"}},
		{"year:2024 before:2024-01-01 newer_than:7d lunch", []string{"lunch"}},
		{"http://example.com", []string{"http://example.com"}},
	}
	for _, tt := range tests {
		got := HighlightWords(tt.query)
		if diff := cmp.Diff(tt.want, got, cmpopts.EquateEmpty()); diff != "" {
			t.Errorf("HighlightWords(%q) mismatch (-want +got):\n%s", tt.query, diff)
		}
	}
}
