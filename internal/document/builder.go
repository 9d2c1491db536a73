package document

import (
	"context"
	"log/slog"
	"strings"
	"unicode"

	"github.com/wesm/mailidx/internal/mime"
	"github.com/wesm/mailidx/internal/terms"
)

const (
	// PositionGap separates body parts and header fields so phrases never
	// match across them.
	PositionGap = 100

	// MaxSampleLength is the sample budget in runes.
	MaxSampleLength = 300

	ellipsis = "..."
)

// Builder turns parsed messages into Documents.
type Builder struct {
	env    Env
	stem   terms.Stemmer
	html   mime.HTMLConverter
	logger *slog.Logger
}

// Option configures a Builder.
type Option func(*Builder)

// WithLogger sets the logger used for conversion failures.
func WithLogger(l *slog.Logger) Option {
	return func(b *Builder) { b.logger = l }
}

// NewBuilder returns a Builder. A nil stemmer indexes words unstemmed and a
// nil converter uses mime.LibraryConverter.
func NewBuilder(env Env, stem terms.Stemmer, html mime.HTMLConverter, opts ...Option) *Builder {
	if stem == nil {
		stem = terms.Identity
	}
	if html == nil {
		html = mime.LibraryConverter{}
	}
	b := &Builder{env: env, stem: stem, html: html, logger: slog.Default()}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Build assembles the document for msg. Term order is fixed: structured
// header terms, body parts, then the headers again as positioned free text.
// An unparseable Date header only drops the date terms.
func (b *Builder) Build(ctx context.Context, msg *mime.Message, src Source) (*Document, error) {
	messageID := msg.MessageID
	if strings.Trim(strings.TrimSpace(messageID), "<>") == "" {
		messageID = b.env.SyntheticMessageID()
	}
	doc := &Document{KeyTerm: KeyTerm(messageID)}

	add := func(text, prefix string, pos *int) {
		doc.Terms = append(doc.Terms, terms.Collect(text, prefix, b.stem, pos)...)
	}

	add(msg.From, PrefixAuthor, nil)
	add(msg.To, PrefixRecipient, nil)
	add(msg.Cc, PrefixRecipient, nil)
	add(msg.Subject, PrefixSubject, nil)
	add(src.Filename, PrefixFilename, nil)

	pos := 0
	for _, part := range msg.Parts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		switch part.ContentType {
		case "text/plain":
			add(part.Text, "", &pos)
		case "text/html":
			text, err := b.html.ToText(ctx, part.Text)
			if err != nil {
				if ctx.Err() != nil {
					return nil, ctx.Err()
				}
				b.logger.Warn("html conversion failed", "key", doc.KeyTerm, "error", err)
			} else {
				add(text, "", &pos)
			}
		}
		pos += PositionGap
	}

	for _, h := range []string{msg.From, msg.To, msg.Cc, msg.Subject, msg.Date} {
		pos += PositionGap
		add(h, "", &pos)
	}

	if t, err := mime.ParseDate(msg.Date); err == nil {
		doc.SentAt = t
		doc.DateTerms = DateTerms(t)
	}

	doc.Payload = Payload{
		From:       msg.From,
		To:         msg.To,
		Cc:         msg.Cc,
		Title:      msg.Subject,
		Date:       msg.Date,
		Sample:     Sample(msg.TextParts("text/plain"), MaxSampleLength),
		Filename:   src.Filename,
		MessageNum: src.MessageNum,
	}
	return doc, nil
}

// Sample builds a display excerpt of at most roughly budget runes from the
// given parts, joined by "...". A part that fits is taken whole. A part
// that does not is cut at the last word end inside the budget, or when there
// is none, at half the remaining budget followed by "...". Nothing is taken
// after a cut part.
func Sample(parts []string, budget int) string {
	var out []rune
	for _, p := range parts {
		text := []rune(strings.TrimSpace(p))
		if len(text) == 0 {
			continue
		}
		if len(out) > 0 {
			if len(out) >= budget {
				break
			}
			out = append(out, []rune(ellipsis)...)
		}
		remaining := budget - len(out)
		if remaining <= 0 {
			break
		}
		if len(text) <= remaining {
			out = append(out, text...)
			continue
		}
		out = append(out, cut(text, remaining)...)
		break
	}
	return string(out)
}

// cut shortens text, which is longer than limit, to a whole-word prefix
// within limit runes.
func cut(text []rune, limit int) []rune {
	j := limit
	for j > 0 && isWordRune(text[j]) {
		j--
	}
	if j == 0 {
		n := limit / 2
		return append(append([]rune(nil), text[:n]...), []rune(ellipsis)...)
	}
	for j > 0 && !isWordRune(text[j]) {
		j--
	}
	return text[:j+1]
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}
