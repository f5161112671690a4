// Package align implements the label realignment step of a token-classification
// pipeline: mapping word-level category labels onto the subword token sequence
// produced by a tokenizer.
//
// Subword tokenizers split one word into one or more tokens, and insert
// special tokens ([CLS], [SEP], padding) that come from no word at all. The
// training loss and the evaluation metric both operate per token, so the
// word-level labels must be re-spread over the token positions: the first
// subword of each word keeps the word's label, everything else gets
// labels.Ignore.
package align

import (
	"github.com/pkg/errors"

	"github.com/DrueStaples08/go-ner-pipeline/labels"
	"github.com/DrueStaples08/go-ner-pipeline/tokenizers/api"
)

// Realign maps word-level label ids onto token positions.
//
// wordLabels holds one label id per input word. wordIDs holds one entry per
// output token position: the index of the originating word, or api.NoWord for
// special tokens and padding. The result has the same length as wordIDs:
//
//   - positions with api.NoWord get labels.Ignore;
//   - the first position of each contiguous run of one word index gets the
//     word's label;
//   - the remaining positions of the run get labels.Ignore.
//
// A word index outside [0, len(wordLabels)) means the token-to-word map is
// malformed and Realign fails immediately; clamping would silently corrupt
// the training labels.
//
// Realign is a pure function with no hidden state: it is safe to call
// concurrently across examples and yields identical output on identical input.
func Realign(wordLabels []int, wordIDs []int) ([]int, error) {
	aligned := make([]int, len(wordIDs))
	prev := api.NoWord
	for t, w := range wordIDs {
		switch {
		case w == api.NoWord:
			aligned[t] = labels.Ignore
		case w < 0 || w >= len(wordLabels):
			return nil, errors.Errorf(
				"malformed token-to-word map: word index %d at token position %d out of range [0,%d)",
				w, t, len(wordLabels))
		case w != prev:
			aligned[t] = wordLabels[w]
		default:
			aligned[t] = labels.Ignore
		}
		prev = w
	}
	return aligned, nil
}

// CheckContiguous reports the first word index that appears in two
// non-adjacent runs of wordIDs, if any. Contiguous tokenizers never produce
// that shape; a hit signals an anomaly in the upstream tokenizer rather than
// an error in the map's individual entries. Realign still handles such a map
// run-by-run (each run's first token re-emits the word's label).
func CheckContiguous(wordIDs []int) (word int, ok bool) {
	seen := make(map[int]bool)
	prev := api.NoWord
	for _, w := range wordIDs {
		if w != api.NoWord && w != prev {
			if seen[w] {
				return w, false
			}
			seen[w] = true
		}
		prev = w
	}
	return 0, true
}
