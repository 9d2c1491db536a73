// Package document builds the searchable representation of one email.
package document

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"math/rand/v2"
	"os"
	"strings"
	"time"

	"github.com/wesm/mailidx/internal/terms"
)

// Field prefixes.
const (
	PrefixAuthor    = "A"
	PrefixRecipient = "XT"
	PrefixSubject   = "S"
	PrefixFilename  = "XFILENAME"
	PrefixDay       = "D"
	PrefixMonth     = "M"
	PrefixYear      = "Y"
	PrefixFortnight = "W"
	PrefixKey       = "Q:"
)

const (
	// MaxKeyLength is the longest key term, in bytes.
	MaxKeyLength = 240

	keyHashLength = 32
)

// Document is one email ready to be written to the index. It is built
// fresh per message and must not be modified after being handed to the
// store.
type Document struct {
	// KeyTerm uniquely identifies the message. Writing a document whose key
	// already exists replaces the old one.
	KeyTerm string

	// Terms holds structured and free-text terms in emission order.
	Terms []terms.Term

	// DateTerms holds the day, month, year and fortnight bucket terms. It is
	// empty when the Date header could not be parsed.
	DateTerms []string

	// SentAt is the parsed Date header in UTC, or the zero time.
	SentAt time.Time

	Payload Payload
}

// Source identifies where a message came from.
type Source struct {
	Filename   string
	MessageNum int
}

// Env carries the process identity used to invent message ids.
type Env struct {
	Hostname string
	Rand     *rand.Rand
}

// NewEnv returns an Env for this host with a randomly seeded generator.
func NewEnv() Env {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "localhost"
	}
	return Env{Hostname: host, Rand: rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))}
}

// syntheticIDRange bounds the local part of invented message ids.
const syntheticIDRange = 4 << 30 * 1023

// SyntheticMessageID invents a message id for a message that has none.
func (e Env) SyntheticMessageID() string {
	r := e.Rand
	if r == nil {
		r = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	host := e.Hostname
	if host == "" {
		host = "localhost"
	}
	return fmt.Sprintf("%d@mailidx.%s", r.Int64N(syntheticIDRange), host)
}

// KeyTerm derives the key term for a Message-ID header value. Surrounding
// whitespace and angle brackets are dropped. Keys over MaxKeyLength bytes
// keep their first MaxKeyLength-32 bytes followed by the hex MD5 of the
// rest.
func KeyTerm(messageID string) string {
	id := strings.Trim(strings.TrimSpace(messageID), "<>")
	key := PrefixKey + id
	if len(key) <= MaxKeyLength {
		return key
	}
	cut := MaxKeyLength - keyHashLength
	sum := md5.Sum([]byte(key[cut:]))
	return key[:cut] + hex.EncodeToString(sum[:])
}

// DateTerms returns the bucket terms for t, which should be in UTC.
// The fortnight bucket drops the last digit of the day and folds the 30th
// and 31st into the third bucket of the month.
func DateTerms(t time.Time) []string {
	day := t.Format("20060102")
	bucket := day[:len(day)-1]
	if strings.HasSuffix(bucket, "3") {
		bucket = bucket[:len(bucket)-1] + "2"
	}
	return []string{
		PrefixDay + day,
		PrefixMonth + day[:6],
		PrefixYear + day[:4],
		PrefixFortnight + bucket,
	}
}
