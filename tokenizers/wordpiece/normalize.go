package wordpiece

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// Text normalization and pre-tokenization helpers, following the
// BertNormalizer / BertPreTokenizer behavior of HuggingFace tokenizers.

// cleanText removes control characters and folds all whitespace to plain spaces.
func cleanText(text string) string {
	var result strings.Builder
	for _, r := range text {
		if r == 0 || r == 0xFFFD || isControl(r) {
			continue
		}
		if isWhitespace(r) {
			result.WriteRune(' ')
		} else {
			result.WriteRune(r)
		}
	}
	return result.String()
}

// lowerAndStripAccents lowercases and removes combining marks after NFD
// decomposition ("café" -> "cafe").
func lowerAndStripAccents(word string) string {
	word = strings.ToLower(word)
	decomposed := norm.NFD.String(word)
	var result strings.Builder
	result.Grow(len(word))
	for _, r := range decomposed {
		if !unicode.Is(unicode.Mn, r) { // Mn = Mark, Nonspacing
			result.WriteRune(r)
		}
	}
	return result.String()
}

// bertPreTokenize splits text on whitespace and punctuation, keeping each
// punctuation rune as its own word.
func bertPreTokenize(text string) []string {
	var words []string
	var current strings.Builder

	flush := func() {
		if current.Len() > 0 {
			words = append(words, current.String())
			current.Reset()
		}
	}
	for _, r := range text {
		switch {
		case isWhitespace(r):
			flush()
		case isPunctuation(r):
			flush()
			words = append(words, string(r))
		default:
			current.WriteRune(r)
		}
	}
	flush()
	return words
}

// joinWordPieces merges decoded tokens back to text, gluing continuation
// subwords (those starting with prefix) to the previous token.
func joinWordPieces(tokens []string, prefix string) string {
	var result strings.Builder
	for i, token := range tokens {
		if strings.HasPrefix(token, prefix) {
			result.WriteString(strings.TrimPrefix(token, prefix))
			continue
		}
		if i > 0 {
			result.WriteString(" ")
		}
		result.WriteString(token)
	}
	return result.String()
}

func isWhitespace(r rune) bool {
	if r == ' ' || r == '\t' || r == '\n' || r == '\r' {
		return true
	}
	return unicode.Is(unicode.Zs, r)
}

func isControl(r rune) bool {
	if r == '\t' || r == '\n' || r == '\r' {
		return false
	}
	return unicode.IsControl(r)
}

func isPunctuation(r rune) bool {
	// ASCII punctuation first, then the unicode Punct categories.
	if (r >= 33 && r <= 47) || (r >= 58 && r <= 64) ||
		(r >= 91 && r <= 96) || (r >= 123 && r <= 126) {
		return true
	}
	return unicode.IsPunct(r)
}
