// Package email provides test helpers for constructing raw RFC 5322 email
// messages and mbox files.
package email

import (
	"bytes"
	"strings"
)

// DefaultSeparator is the "From " line Mbox writes before each message.
const DefaultSeparator = "From sender@example.com Mon Jan  1 12:00:00 2024"

// Mbox joins messages into an mbox file, escaping body lines that start
// with "From " (mboxrd).
func Mbox(messages ...[]byte) []byte {
	var buf bytes.Buffer
	for _, raw := range messages {
		buf.WriteString(DefaultSeparator + "\n")
		text := strings.ReplaceAll(string(raw), "\r\n", "\n")
		for _, line := range strings.SplitAfter(text, "\n") {
			if line == "" {
				continue
			}
			if strings.HasPrefix(strings.TrimLeft(line, ">"), "From ") {
				buf.WriteByte('>')
			}
			buf.WriteString(line)
		}
		if !strings.HasSuffix(text, "\n") {
			buf.WriteByte('\n')
		}
		buf.WriteByte('\n')
	}
	return buf.Bytes()
}
