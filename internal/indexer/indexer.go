// Package indexer reads mbox files and writes one index document per message.
package indexer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/wesm/mailidx/internal/document"
	"github.com/wesm/mailidx/internal/mbox"
	"github.com/wesm/mailidx/internal/mime"
	"github.com/wesm/mailidx/internal/store"
)

// CheckpointStore persists how far each mailbox has been indexed.
type CheckpointStore interface {
	GetCheckpoint(ctx context.Context, mailbox string) (store.Checkpoint, bool, error)
	PutCheckpoint(ctx context.Context, mailbox string, cp store.Checkpoint) error
}

// Index is the storage the indexer writes to. *store.Store implements it.
type Index interface {
	CheckpointStore
	ReplaceDocument(ctx context.Context, doc *document.Document) error
	Flush(ctx context.Context) error
}

// Summary reports the outcome of indexing one or more mailboxes.
type Summary struct {
	Path string

	// Messages counts documents written.
	Messages int
	// Errors counts messages that could not be indexed.
	Errors int

	Resumed     bool
	StartOffset int64
	FinalOffset int64
	Checkpoint  bool

	Duration time.Duration
}

func (s *Summary) add(o *Summary) {
	s.Messages += o.Messages
	s.Errors += o.Errors
	s.Duration += o.Duration
}

const defaultMaxMessageBytes int64 = 128 << 20 // 128 MiB

// Indexer indexes mbox files sequentially.
type Indexer struct {
	index           Index
	builder         *document.Builder
	fresh           Freshness
	logger          *slog.Logger
	maxMessageBytes int64
}

// Option configures an Indexer.
type Option func(*Indexer)

// WithFreshness sets the policy deciding when a mailbox may resume from its
// checkpoint. The default is NeverFresh.
func WithFreshness(f Freshness) Option {
	return func(ix *Indexer) { ix.fresh = f }
}

// WithLogger sets the logger. The default is slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(ix *Indexer) { ix.logger = l }
}

// WithMaxMessageBytes limits the size of a single message. Larger messages
// are counted as errors and skipped.
func WithMaxMessageBytes(n int64) Option {
	return func(ix *Indexer) { ix.maxMessageBytes = n }
}

// New creates an Indexer writing documents built by builder to index.
func New(index Index, builder *document.Builder, opts ...Option) *Indexer {
	ix := &Indexer{
		index:           index,
		builder:         builder,
		fresh:           NeverFresh{},
		logger:          slog.Default(),
		maxMessageBytes: defaultMaxMessageBytes,
	}
	for _, opt := range opts {
		opt(ix)
	}
	return ix
}

// IndexMailboxes indexes each path in turn. A mailbox that fails does not
// stop the others; its error is returned joined with any others once all
// are done. Cancellation stops immediately.
func (ix *Indexer) IndexMailboxes(ctx context.Context, paths []string) ([]*Summary, *Summary, error) {
	total := &Summary{}
	var (
		summaries []*Summary
		errs      []error
	)
	for _, path := range paths {
		s, err := ix.IndexMailbox(ctx, path)
		if s != nil {
			summaries = append(summaries, s)
			total.add(s)
		}
		if err != nil {
			if ctx.Err() != nil {
				return summaries, total, err
			}
			ix.logger.Error("mailbox failed", "path", path, "error", err)
			errs = append(errs, err)
		}
	}
	return summaries, total, errors.Join(errs...)
}

// IndexMailbox indexes one mbox file. A valid checkpoint lets it resume
// after the last message of a previous pass. Messages that fail to parse or
// index are logged and counted without stopping the pass.
func (ix *Indexer) IndexMailbox(ctx context.Context, path string) (*Summary, error) {
	started := time.Now()
	summary := &Summary{Path: path}

	mailboxID, err := MailboxID(path)
	if err != nil {
		return nil, err
	}
	log := ix.logger.With("mailbox", path)

	var from store.Checkpoint
	cp, ok, err := ix.index.GetCheckpoint(ctx, mailboxID)
	if err != nil {
		return nil, err
	}
	switch {
	case ok && ix.fresh.IncrementallyIndexable(mailboxID, cp):
		from = cp
		summary.Resumed = true
		log.Info("resuming", "offset", cp.Offset, "messages", cp.MessageCount)
	case ok:
		log.Info("checkpoint not usable, indexing from the start", "offset", cp.Offset)
	}
	summary.StartOffset = from.Offset

	r, f, err := mbox.Open(mailboxID, from.Offset)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	r.SetMaxMessageBytes(ix.maxMessageBytes)

	num := from.MessageCount
	for {
		if err := ctx.Err(); err != nil {
			summary.Duration = time.Since(started)
			return summary, fmt.Errorf("index %s: %w", path, err)
		}

		msg, err := r.Next()
		if err == io.EOF {
			break
		}
		if errors.Is(err, mbox.ErrMessageTooLarge) {
			summary.Errors++
			log.Warn("skipping message", "message_num", num, "error", err)
			num++
			continue
		}
		if err != nil {
			summary.Duration = time.Since(started)
			return summary, fmt.Errorf("read %s: %w", path, err)
		}

		src := document.Source{Filename: path, MessageNum: num}
		num++
		if err := ix.indexMessage(ctx, msg, src); err != nil {
			if ctx.Err() != nil {
				summary.Duration = time.Since(started)
				return summary, fmt.Errorf("index %s: %w", path, ctx.Err())
			}
			summary.Errors++
			log.Warn("failed to index message", "message_num", src.MessageNum, "offset", msg.Offset, "error", err)
			continue
		}
		summary.Messages++
	}

	if err := ix.index.Flush(ctx); err != nil {
		summary.Duration = time.Since(started)
		return summary, err
	}

	summary.FinalOffset = r.Resume()
	next := store.Checkpoint{Offset: summary.FinalOffset, MessageCount: num}
	if info, err := f.Stat(); err == nil {
		next.FileSize = info.Size()
	}
	if ix.fresh.IncrementallyIndexable(mailboxID, next) {
		if err := ix.index.PutCheckpoint(ctx, mailboxID, next); err != nil {
			summary.Duration = time.Since(started)
			return summary, err
		}
		summary.Checkpoint = true
	}

	summary.Duration = time.Since(started)
	log.Info("indexed mailbox", "messages", summary.Messages, "errors", summary.Errors, "duration", summary.Duration.Round(time.Millisecond))
	return summary, nil
}

// indexMessage parses, builds and stores one message. Panics are turned
// into errors so one bad message cannot end the pass.
func (ix *Indexer) indexMessage(ctx context.Context, msg *mbox.Message, src document.Source) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()

	parsed, err := mime.Parse(msg.Raw)
	if err != nil {
		return fmt.Errorf("parse: %w", err)
	}
	for _, e := range parsed.Errors {
		ix.logger.Debug("mime warning", "message_num", src.MessageNum, "warning", e)
	}

	doc, err := ix.builder.Build(ctx, parsed, src)
	if err != nil {
		return fmt.Errorf("build: %w", err)
	}

	// A message without a Date header gets no date terms and no display
	// date. Its separator date only orders it among the results.
	if parsed.Date == "" {
		ix.logger.Debug("missing date header", "message_num", src.MessageNum)
		if sep, ok := mbox.ParseSeparator(msg.Separator); ok {
			doc.SentAt = sep.Date.UTC()
		}
	}
	return ix.index.ReplaceDocument(ctx, doc)
}

// MailboxID returns the identifier a mailbox's checkpoint is stored under:
// its absolute path with symlinks resolved.
func MailboxID(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("abs path: %w", err)
	}
	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		return resolved, nil
	}
	if _, err := os.Stat(abs); err != nil {
		return "", fmt.Errorf("open mbox: %w", err)
	}
	return abs, nil
}
