package email

import (
	"encoding/base64"
	"fmt"
	"strings"
)

type part struct {
	contentType string
	body        string
	filename    string
	binary      bool
}

// MessageBuilder constructs MIME messages with a fluent API.
// By default, messages use \n line endings matching Go raw string literals.
type MessageBuilder struct {
	from       string
	to         string
	cc         string
	subject    string
	date       string
	messageID  string
	headerKeys []string
	headerVals []string
	parts      []part
	boundary   string
	crlf       bool
	noSubject  bool
}

// NewMessage creates a MessageBuilder with a single text/plain body part.
func NewMessage() *MessageBuilder {
	return &MessageBuilder{
		from:     "sender@example.com",
		to:       "recipient@example.com",
		date:     "Mon, 01 Jan 2024 12:00:00 +0000",
		subject:  "Test Message",
		boundary: "boundary123",
		parts: []part{{
			contentType: `text/plain; charset="utf-8"`,
			body:        "This is a test message body.",
		}},
	}
}

// From sets the From header.
func (b *MessageBuilder) From(v string) *MessageBuilder { b.from = v; return b }

// To sets the To header.
func (b *MessageBuilder) To(v string) *MessageBuilder { b.to = v; return b }

// Cc sets the Cc header.
func (b *MessageBuilder) Cc(v string) *MessageBuilder { b.cc = v; return b }

// Subject sets the Subject header. Use NoSubject() to omit it entirely.
func (b *MessageBuilder) Subject(v string) *MessageBuilder {
	b.subject = v
	b.noSubject = false
	return b
}

// NoSubject omits the Subject header from the output.
func (b *MessageBuilder) NoSubject() *MessageBuilder { b.noSubject = true; return b }

// Date sets the Date header. An empty value omits it.
func (b *MessageBuilder) Date(v string) *MessageBuilder { b.date = v; return b }

// MessageID sets the Message-ID header. An empty value omits it.
func (b *MessageBuilder) MessageID(v string) *MessageBuilder { b.messageID = v; return b }

// Body replaces the text of the first body part.
func (b *MessageBuilder) Body(v string) *MessageBuilder { b.parts[0].body = v; return b }

// ContentType overrides the Content-Type of the first body part.
func (b *MessageBuilder) ContentType(v string) *MessageBuilder { b.parts[0].contentType = v; return b }

// Header adds an arbitrary header.
func (b *MessageBuilder) Header(key, value string) *MessageBuilder {
	b.headerKeys = append(b.headerKeys, key)
	b.headerVals = append(b.headerVals, value)
	return b
}

// Boundary sets the multipart boundary string.
func (b *MessageBuilder) Boundary(v string) *MessageBuilder { b.boundary = v; return b }

// AddPart appends an inline body part. Adding any part makes the message
// multipart/mixed.
func (b *MessageBuilder) AddPart(contentType, body string) *MessageBuilder {
	b.parts = append(b.parts, part{contentType: contentType, body: body})
	return b
}

// WithAttachment appends a base64 encoded attachment.
func (b *MessageBuilder) WithAttachment(filename, contentType string, data []byte) *MessageBuilder {
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	b.parts = append(b.parts, part{
		contentType: contentType,
		body:        base64.StdEncoding.EncodeToString(data),
		filename:    filename,
		binary:      true,
	})
	return b
}

// CRLF switches to \r\n line endings (RFC 5322 compliant).
func (b *MessageBuilder) CRLF() *MessageBuilder { b.crlf = true; return b }

// Bytes builds the complete MIME message.
func (b *MessageBuilder) Bytes() []byte {
	nl := "\n"
	if b.crlf {
		nl = "\r\n"
	}

	var s strings.Builder
	s.WriteString("From: " + b.from + nl)
	s.WriteString("To: " + b.to + nl)
	if b.cc != "" {
		s.WriteString("Cc: " + b.cc + nl)
	}
	if !b.noSubject {
		s.WriteString("Subject: " + b.subject + nl)
	}
	if b.date != "" {
		s.WriteString("Date: " + b.date + nl)
	}
	if b.messageID != "" {
		s.WriteString("Message-ID: " + b.messageID + nl)
	}
	for i, k := range b.headerKeys {
		s.WriteString(k + ": " + b.headerVals[i] + nl)
	}

	if len(b.parts) == 1 {
		s.WriteString("Content-Type: " + b.parts[0].contentType + nl)
		s.WriteString(nl)
		s.WriteString(b.parts[0].body + nl)
		return []byte(s.String())
	}

	s.WriteString("MIME-Version: 1.0" + nl)
	s.WriteString(fmt.Sprintf("Content-Type: multipart/mixed; boundary=%q", b.boundary) + nl)
	s.WriteString(nl)
	for _, p := range b.parts {
		s.WriteString("--" + b.boundary + nl)
		if p.filename != "" {
			s.WriteString(fmt.Sprintf("Content-Type: %s; name=%q", p.contentType, p.filename) + nl)
			s.WriteString(fmt.Sprintf("Content-Disposition: attachment; filename=%q", p.filename) + nl)
		} else {
			s.WriteString("Content-Type: " + p.contentType + nl)
		}
		if p.binary {
			s.WriteString("Content-Transfer-Encoding: base64" + nl)
		}
		s.WriteString(nl)
		s.WriteString(p.body + nl)
	}
	s.WriteString("--" + b.boundary + "--" + nl)
	return []byte(s.String())
}
