// Package words holds the fixed vocabulary the word loop draws from.
package words

import (
	"crypto/rand"
	"errors"
	"log/slog"
	"math/big"
	"strings"

	"github.com/samber/lo"
)

// DefaultVocabulary is used when no word list is configured.
var DefaultVocabulary = []string{"cat", "dog", "mouse", "horse", "fox"}

// ErrEmptyVocabulary is returned when a vocabulary has no usable words.
var ErrEmptyVocabulary = errors.New("vocabulary is empty")

// Source picks words uniformly at random from an immutable vocabulary.
type Source struct {
	words []string
}

// NewSource normalizes vocab and returns a Source over it.
func NewSource(vocab []string) (*Source, error) {
	normalized := Normalize(vocab)
	if len(normalized) == 0 {
		return nil, ErrEmptyVocabulary
	}
	return &Source{words: normalized}, nil
}

// Normalize trims every entry, drops blanks and removes duplicates while
// keeping the first occurrence order.
func Normalize(vocab []string) []string {
	trimmed := lo.Map(vocab, func(w string, _ int) string {
		return strings.TrimSpace(w)
	})
	return lo.Uniq(lo.Compact(trimmed))
}

// Pick returns a random word from the vocabulary.
func (s *Source) Pick() string {
	n, err := rand.Int(rand.Reader, big.NewInt(int64(len(s.words))))
	if err != nil {
		slog.Warn("Error generating random number, using fallback", "error", err)
		return s.words[0]
	}
	return s.words[n.Int64()]
}

// Words returns a copy of the vocabulary.
func (s *Source) Words() []string {
	return append([]string(nil), s.words...)
}

// Len returns the vocabulary size.
func (s *Source) Len() int {
	return len(s.words)
}

// Contains reports whether word is part of the vocabulary.
func (s *Source) Contains(word string) bool {
	return lo.Contains(s.words, word)
}
