// Package mbox reads messages out of Unix mbox files one at a time.
//
// Each message is preceded by a "From " separator line. Body lines matching
// ^>+From are unescaped by dropping one '>' (mboxrd). Every message records
// the byte offset of its separator so an indexing pass can resume part way
// through a file.
package mbox

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
)

const maxLineBytes = 32 << 20

// ErrMessageTooLarge is returned by Next for a message over the reader's
// size limit. The reader is positioned at the following separator, so the
// caller may keep reading.
var ErrMessageTooLarge = errors.New("mbox message exceeds max size")

// Message is one message from an mbox stream.
type Message struct {
	// Offset is the stream offset of the message's separator line.
	Offset int64

	// Separator is the raw separator line without its line ending.
	Separator string

	// Raw holds the RFC 5322 headers and body, unescaped.
	Raw []byte
}

type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}

// Reader iterates over the messages of an mbox stream.
type Reader struct {
	cr *countingReader
	br *bufio.Reader

	pending       string
	pendingOffset int64
	hasPending    bool
	eof           bool

	maxMessageBytes int64
	unescape        bool
}

// NewReader returns a Reader over r. When r is also an io.Seeker, offsets are
// absolute positions in the underlying stream, so a reader over a file that
// was seeked first still reports file offsets.
func NewReader(r io.Reader) *Reader {
	cr := &countingReader{r: r}
	if s, ok := r.(io.Seeker); ok {
		if off, err := s.Seek(0, io.SeekCurrent); err == nil {
			cr.n = off
		}
	}
	return &Reader{cr: cr, br: bufio.NewReader(cr), unescape: true}
}

// SetMaxMessageBytes limits the size of a single message. Zero or a negative
// value disables the limit.
func (r *Reader) SetMaxMessageBytes(n int64) { r.maxMessageBytes = n }

// SetUnescapeFrom turns mboxrd unescaping on or off. It is on by default.
func (r *Reader) SetUnescapeFrom(enabled bool) { r.unescape = enabled }

// Offset is the number of bytes consumed from the stream, excluding data
// still sitting in the read buffer.
func (r *Reader) Offset() int64 {
	return r.cr.n - int64(r.br.Buffered())
}

// Resume returns the offset a later pass should start from: the separator of
// the next unread message, or the end of the consumed data.
func (r *Reader) Resume() int64 {
	if r.hasPending {
		return r.pendingOffset
	}
	return r.Offset()
}

// Next returns the next message, or io.EOF when the stream is exhausted.
// Data before the first separator is skipped.
func (r *Reader) Next() (*Message, error) {
	if r.eof {
		return nil, io.EOF
	}

	if !r.hasPending {
		for {
			start := r.Offset()
			line, err := r.readLine()
			if err != nil && err != io.EOF {
				return nil, err
			}
			if isSeparator(line) {
				r.stash(line, start)
				break
			}
			if err == io.EOF {
				r.eof = true
				return nil, io.EOF
			}
		}
	}

	msg := &Message{Offset: r.pendingOffset, Separator: r.pending}
	r.hasPending = false

	var raw bytes.Buffer
	tooLarge := false
	for {
		start := r.Offset()
		line, err := r.readLine()
		if len(line) > 0 {
			if isSeparator(line) {
				r.stash(line, start)
				break
			}
			if !tooLarge {
				if r.unescape {
					line = unescapeFrom(line)
				}
				if r.maxMessageBytes > 0 && int64(raw.Len()+len(line)) > r.maxMessageBytes {
					tooLarge = true
					raw.Reset()
				} else {
					raw.Write(line)
				}
			}
		}
		if err == io.EOF {
			r.eof = true
			break
		}
		if err != nil {
			return nil, err
		}
	}

	if tooLarge {
		return nil, fmt.Errorf("%w: message at offset %d over %d bytes",
			ErrMessageTooLarge, msg.Offset, r.maxMessageBytes)
	}
	msg.Raw = raw.Bytes()
	return msg, nil
}

func (r *Reader) stash(line []byte, offset int64) {
	r.pending = string(bytes.TrimRight(line, "\r\n"))
	r.pendingOffset = offset
	r.hasPending = true
}

func (r *Reader) readLine() ([]byte, error) {
	var out []byte
	for {
		b, err := r.br.ReadSlice('\n')
		out = append(out, b...)
		if len(out) > maxLineBytes {
			return nil, fmt.Errorf("mbox line exceeds %d bytes", maxLineBytes)
		}
		if errors.Is(err, bufio.ErrBufferFull) {
			continue
		}
		return out, err
	}
}

func isSeparator(line []byte) bool {
	if !bytes.HasPrefix(line, []byte("From ")) {
		return false
	}
	_, ok := ParseSeparator(string(line))
	return ok
}

func unescapeFrom(line []byte) []byte {
	i := 0
	for i < len(line) && line[i] == '>' {
		i++
	}
	if i > 0 && bytes.HasPrefix(line[i:], []byte("From ")) {
		return line[1:]
	}
	return line
}

// Open opens the mbox file at path positioned at offset and returns a
// Reader over it along with the file, which the caller must close.
func Open(path string, offset int64) (*Reader, *os.File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open mbox: %w", err)
	}
	if offset > 0 {
		if _, err := f.Seek(offset, io.SeekStart); err != nil {
			f.Close()
			return nil, nil, fmt.Errorf("seek mbox to %d: %w", offset, err)
		}
	}
	return NewReader(f), f, nil
}
