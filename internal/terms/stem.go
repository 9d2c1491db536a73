package terms

import (
	"fmt"
	"strings"

	"github.com/kljensen/snowball"
)

// Stemmer maps a lower-cased word to its stem.
type Stemmer interface {
	Stem(word string) string
}

// StemmerFunc adapts a plain function to the Stemmer interface.
type StemmerFunc func(word string) string

// Stem calls f(word).
func (f StemmerFunc) Stem(word string) string { return f(word) }

// Identity is a Stemmer that returns words unchanged.
var Identity Stemmer = StemmerFunc(func(word string) string { return word })

// Languages lists the stemming languages accepted by NewStemmer.
var Languages = []string{"english", "spanish", "french", "russian", "swedish", "norwegian", "hungarian"}

type snowballStemmer struct {
	language string
}

func (s snowballStemmer) Stem(word string) string {
	stemmed, err := snowball.Stem(word, s.language, true)
	if err != nil {
		return word
	}
	return stemmed
}

// NewStemmer returns a snowball stemmer for language. The empty string and
// "none" select the identity stemmer.
func NewStemmer(language string) (Stemmer, error) {
	lang := strings.ToLower(strings.TrimSpace(language))
	if lang == "" || lang == "none" {
		return Identity, nil
	}
	for _, l := range Languages {
		if l == lang {
			return snowballStemmer{language: lang}, nil
		}
	}
	return nil, fmt.Errorf("unsupported stemming language %q (want one of %s, or none)",
		language, strings.Join(Languages, ", "))
}
