package mbox

import (
	"strings"
	"time"
)

// Separator is a parsed mbox "From " line.
type Separator struct {
	Sender string
	Date   time.Time
}

// ctime-style layouts seen after the sender in separator lines. Time zone
// tokens are stripped before matching and applied afterwards.
var separatorLayouts = []string{
	"Mon Jan 2 15:04:05 2006",
	"Mon Jan 2 15:04 2006",
	"Jan 2 15:04:05 2006",
	"Jan 2 15:04 2006",
}

var zoneAbbrevs = map[string]int{
	"UTC": 0, "GMT": 0, "UT": 0, "Z": 0,
	"EST": -5, "EDT": -4,
	"CST": -6, "CDT": -5,
	"MST": -7, "MDT": -6,
	"PST": -8, "PDT": -7,
}

// ParseSeparator parses an mbox separator line of the form
// "From <sender> <ctime date> [zone] [trailing...]". The zone may sit before
// or after the year. It reports false for lines that merely start with "From ".
func ParseSeparator(line string) (Separator, bool) {
	line = strings.TrimRight(line, "\r\n")
	if !strings.HasPrefix(line, "From ") {
		return Separator{}, false
	}
	fields := strings.Fields(line[len("From "):])
	if len(fields) < 5 {
		return Separator{}, false
	}
	sender, rest := fields[0], fields[1:]

	var dateFields []string
	offset, zoned := 0, false
	for _, f := range rest {
		if !zoned {
			if off, ok := zoneOffset(f); ok {
				offset, zoned = off, true
				continue
			}
		}
		dateFields = append(dateFields, f)
	}

	for _, layout := range separatorLayouts {
		n := strings.Count(layout, " ") + 1
		if len(dateFields) < n {
			continue
		}
		t, err := time.Parse(layout, strings.Join(dateFields[:n], " "))
		if err != nil {
			continue
		}
		if zoned {
			t = time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), 0,
				time.FixedZone("", offset))
		}
		return Separator{Sender: sender, Date: t}, true
	}
	return Separator{}, false
}

// zoneOffset recognises "+hhmm", "-hh:mm" and a few common abbreviations,
// returning the offset in seconds east of UTC.
func zoneOffset(tok string) (int, bool) {
	tok = strings.Trim(tok, "()")
	if h, ok := zoneAbbrevs[strings.ToUpper(tok)]; ok && tok == strings.ToUpper(tok) {
		return h * 3600, true
	}
	if len(tok) < 5 || (tok[0] != '+' && tok[0] != '-') {
		return 0, false
	}
	digits := strings.Replace(tok[1:], ":", "", 1)
	if len(digits) != 4 {
		return 0, false
	}
	n := 0
	for _, c := range digits {
		if c < '0' || c > '9' {
			return 0, false
		}
		n = n*10 + int(c-'0')
	}
	secs := (n/100)*3600 + (n%100)*60
	if tok[0] == '-' {
		secs = -secs
	}
	return secs, true
}
