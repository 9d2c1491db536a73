package testutil

import (
	"context"
	"math/rand/v2"
	"time"

	"github.com/wesm/mailidx/internal/document"
	"github.com/wesm/mailidx/internal/mime"
	"github.com/wesm/mailidx/internal/terms"
)

// DocumentBuilder provides a fluent API for constructing indexed documents
// in tests. Documents go through the real document builder with an
// unstemmed term stream, so queries in tests match literal words.
type DocumentBuilder struct {
	msg mime.Message
	src document.Source
}

// NewDocument creates a builder with sensible defaults.
func NewDocument(messageID string) *DocumentBuilder {
	return &DocumentBuilder{
		msg: mime.Message{
			From:      "Sender <sender@example.com>",
			To:        "Recipient <recipient@example.com>",
			Subject:   "Test Subject",
			Date:      "Mon, 01 Jan 2024 12:00:00 +0000",
			MessageID: messageID,
		},
		src: document.Source{Filename: "inbox", MessageNum: 1},
	}
}

func (b *DocumentBuilder) WithFrom(s string) *DocumentBuilder {
	b.msg.From = s
	return b
}

func (b *DocumentBuilder) WithTo(s string) *DocumentBuilder {
	b.msg.To = s
	return b
}

func (b *DocumentBuilder) WithCc(s string) *DocumentBuilder {
	b.msg.Cc = s
	return b
}

func (b *DocumentBuilder) WithSubject(s string) *DocumentBuilder {
	b.msg.Subject = s
	return b
}

// WithDate sets the Date header. An empty value leaves the document
// without date terms.
func (b *DocumentBuilder) WithDate(s string) *DocumentBuilder {
	b.msg.Date = s
	return b
}

// WithSentAt sets the Date header from t.
func (b *DocumentBuilder) WithSentAt(t time.Time) *DocumentBuilder {
	b.msg.Date = t.Format(time.RFC1123Z)
	return b
}

// WithBody appends a text/plain part.
func (b *DocumentBuilder) WithBody(text string) *DocumentBuilder {
	b.msg.Parts = append(b.msg.Parts, mime.Part{ContentType: "text/plain", Text: text})
	return b
}

func (b *DocumentBuilder) WithSource(filename string, messageNum int) *DocumentBuilder {
	b.src = document.Source{Filename: filename, MessageNum: messageNum}
	return b
}

// Build returns the document. It panics if the builder fails, which
// cannot happen with a background context.
func (b *DocumentBuilder) Build() *document.Document {
	env := document.Env{Hostname: "test.example.com", Rand: rand.New(rand.NewPCG(1, 1))}
	msg := b.msg
	doc, err := document.NewBuilder(env, terms.Identity, nil).Build(context.Background(), &msg, b.src)
	if err != nil {
		panic(err)
	}
	return doc
}
