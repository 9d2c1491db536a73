// Package mime parses raw RFC 5322 messages into the header strings and
// leaf body parts the document builder indexes.
package mime

import (
	"bytes"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/jhillyerd/enmime"
	"github.com/wesm/mailidx/internal/textutil"
)

// Part is a leaf MIME part.
type Part struct {
	// ContentType is the lower-cased media type without parameters.
	ContentType string

	// Text is the decoded UTF-8 content. It is only filled for text/* parts.
	Text string

	Filename string
}

// Message is a parsed email. Header values are decoded from RFC 2047 and
// repaired to valid UTF-8 but otherwise left as written.
type Message struct {
	From      string
	To        string
	Cc        string
	Subject   string
	Date      string
	MessageID string

	// Parts lists every leaf part in document order.
	Parts []Part

	// Errors collects non-fatal problems reported by the MIME parser.
	Errors []string
}

// ErrEmptyMessage is returned for input with no headers and no body.
var ErrEmptyMessage = errors.New("empty message")

// Parse parses raw message bytes.
func Parse(raw []byte) (*Message, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, ErrEmptyMessage
	}
	env, err := enmime.ReadEnvelope(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("parse mime: %w", err)
	}

	header := func(name string) string {
		return textutil.EnsureUTF8(strings.TrimSpace(env.GetHeader(name)))
	}
	msg := &Message{
		From:      header("From"),
		To:        header("To"),
		Cc:        header("Cc"),
		Subject:   header("Subject"),
		Date:      header("Date"),
		MessageID: header("Message-ID"),
	}
	msg.Parts = appendLeaves(msg.Parts, env.Root)
	for _, e := range env.Errors {
		msg.Errors = append(msg.Errors, e.Error())
	}
	return msg, nil
}

func appendLeaves(out []Part, p *enmime.Part) []Part {
	if p == nil {
		return out
	}
	if p.FirstChild == nil {
		part := Part{ContentType: MediaType(p.ContentType), Filename: p.FileName}
		if strings.HasPrefix(part.ContentType, "text/") {
			part.Text = textutil.EnsureUTF8(string(p.Content))
		}
		return append(out, part)
	}
	for c := p.FirstChild; c != nil; c = c.NextSibling {
		out = appendLeaves(out, c)
	}
	return out
}

// MediaType strips parameters from a Content-Type value and lower-cases it.
// An empty value is text/plain, the RFC 2045 default.
func MediaType(contentType string) string {
	ct := strings.ToLower(contentType)
	if idx := strings.Index(ct, ";"); idx >= 0 {
		ct = ct[:idx]
	}
	ct = strings.TrimSpace(ct)
	if ct == "" {
		return "text/plain"
	}
	return ct
}

// TextParts returns the text of every leaf with the given media type.
func (m *Message) TextParts(mediaType string) []string {
	var out []string
	for _, p := range m.Parts {
		if p.ContentType == mediaType {
			out = append(out, p.Text)
		}
	}
	return out
}

// Fallback layouts for dates net/mail rejects.
var dateFormats = []string{
	"Mon, 2 Jan 2006 15:04:05 -0700",
	"Mon, 2 Jan 2006 15:04:05 MST",
	"Mon, 2 Jan 2006 15:04 -0700",
	"2 Jan 2006 15:04:05 -0700",
	"2 Jan 2006 15:04:05 MST",
	"Mon, 2 Jan 06 15:04:05 -0700",
	time.RFC850,
	time.ANSIC,
	time.UnixDate,
	time.RFC3339,
	"2006-01-02 15:04:05 -0700",
	"2006-01-02 15:04:05",
}

// ErrBadDate is returned by ParseDate when no known layout matches.
var ErrBadDate = errors.New("unparseable date")

// ParseDate parses an email Date header and returns it in UTC.
func ParseDate(s string) (time.Time, error) {
	s = strings.Join(strings.Fields(s), " ")
	if s == "" {
		return time.Time{}, ErrBadDate
	}
	if t, err := mail.ParseDate(s); err == nil {
		return t.UTC(), nil
	}

	candidates := []string{s}
	if idx := strings.LastIndex(s, "("); idx > 0 {
		candidates = append([]string{strings.TrimSpace(s[:idx])}, s)
	}
	for _, c := range candidates {
		for _, layout := range dateFormats {
			if t, err := time.Parse(layout, c); err == nil {
				return t.UTC(), nil
			}
		}
	}
	return time.Time{}, fmt.Errorf("%w: %q", ErrBadDate, s)
}
