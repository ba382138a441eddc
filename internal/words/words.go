// Package words produces the per-match word challenge.
package words

import (
	"math/rand/v2"
	"strings"
)

// Source generates match word lists from a fixed vocabulary.
// The zero-value methods are pure and safe for concurrent use.
type Source struct {
	vocab []string
}

// NewSource returns a Source backed by the embedded English vocabulary.
func NewSource() *Source {
	return &Source{vocab: vocabulary}
}

// NewSourceWithVocab returns a Source over a custom vocabulary.
// Used by tests that need deterministic short vocabularies.
func NewSourceWithVocab(vocab []string) *Source {
	return &Source{vocab: vocab}
}

// Generate returns count words drawn from the vocabulary. Adjacent
// duplicates are avoided when the vocabulary allows it.
func (s *Source) Generate(count int) []string {
	out := make([]string, 0, count)
	prev := ""
	for len(out) < count {
		w := s.vocab[rand.IntN(len(s.vocab))]
		if w == prev && len(s.vocab) > 1 {
			continue
		}
		out = append(out, w)
		prev = w
	}
	return out
}

// Join composes the challenge text clients type against: words joined
// by single spaces, no trailing space.
func Join(words []string) string {
	return strings.Join(words, " ")
}
