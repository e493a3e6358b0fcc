// Package titleindex provides fuzzy title search: titles are normalized,
// turned into L2-normalized TF-IDF vectors over a closed vocabulary, and
// queries are ranked by cosine similarity.
package titleindex

import (
	"strings"
)

// Token is a single term and its position in the normalized text.
type Token struct {
	Term     string
	Position int
}

// minTermLen drops one-character terms such as the "2" in "Toy Story 2".
const minTermLen = 2

// Normalize removes every character outside [A-Za-z0-9 ] and case-folds the
// result. Runs of spaces are kept as-is.
func Normalize(text string) string {
	var b strings.Builder
	b.Grow(len(text))
	for i := 0; i < len(text); i++ {
		c := text[i]
		switch {
		case c >= 'A' && c <= 'Z':
			b.WriteByte(c + ('a' - 'A'))
		case c >= 'a' && c <= 'z', c >= '0' && c <= '9', c == ' ':
			b.WriteByte(c)
		}
	}
	return b.String()
}

// Tokenize normalizes text and splits it into terms of at least two
// characters.
func Tokenize(text string) []Token {
	words := strings.Fields(Normalize(text))
	tokens := make([]Token, 0, len(words))
	pos := 0
	for _, word := range words {
		if len(word) < minTermLen {
			continue
		}
		tokens = append(tokens, Token{
			Term:     word,
			Position: pos,
		})
		pos++
	}
	return tokens
}

// termCounts returns the raw count of each term in text.
func termCounts(text string) map[string]int {
	tokens := Tokenize(text)
	counts := make(map[string]int, len(tokens))
	for _, t := range tokens {
		counts[t.Term]++
	}
	return counts
}
