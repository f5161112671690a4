// Package sentencepiece implements an api.WordTokenizer based on the
// SentencePiece tokenizer.
//
// For token-classification datasets the words arrive pre-split, so
// EncodeWords runs the SentencePiece processor word by word and assigns every
// piece of word w the word index w; the BOS/EOS markers carry api.NoWord.
package sentencepiece

import (
	esentencepiece "github.com/eliben/go-sentencepiece"
	"github.com/pkg/errors"

	"github.com/DrueStaples08/go-ner-pipeline/tokenizers/api"
)

// New creates a SentencePiece tokenizer from a local "tokenizer.model" file,
// which must be a SentencePiece Model proto.
func New(modelPath string) (*Tokenizer, error) {
	proc, err := esentencepiece.NewProcessorFromPath(modelPath)
	if err != nil {
		return nil, errors.Wrapf(err, "can't create sentencepiece tokenizer from %q", modelPath)
	}
	return &Tokenizer{
		Processor: proc,
		Info:      proc.ModelInfo(),
	}, nil
}

// Tokenizer implements api.WordTokenizer based on the SentencePiece tokenizer by Google.
type Tokenizer struct {
	*esentencepiece.Processor
	Info *esentencepiece.ModelInfo
}

// Compile time asserts that sentencepiece.Tokenizer implements the tokenizer interfaces.
var (
	_ api.Tokenizer     = &Tokenizer{}
	_ api.WordTokenizer = &Tokenizer{}
)

// Encode returns the text encoded into a sequence of ids.
func (p *Tokenizer) Encode(text string) []int {
	tokens := p.Processor.Encode(text)
	return sliceMap(tokens, func(t esentencepiece.Token) int { return t.ID })
}

// EncodeWords encodes a pre-split word sequence, one SentencePiece encoding
// call per word, so every output piece is attributable to exactly one word.
// BOS/EOS are added when the model defines them.
func (p *Tokenizer) EncodeWords(words []string) (api.WordEncoding, error) {
	enc := api.WordEncoding{
		IDs:     make([]int, 0, len(words)+2),
		Tokens:  make([]string, 0, len(words)+2),
		WordIDs: make([]int, 0, len(words)+2),
	}
	appendToken := func(id int, text string, wordIdx int) {
		enc.IDs = append(enc.IDs, id)
		enc.Tokens = append(enc.Tokens, text)
		enc.WordIDs = append(enc.WordIDs, wordIdx)
	}

	if p.Info.BeginningOfSentenceID >= 0 {
		appendToken(p.Info.BeginningOfSentenceID, "<s>", api.NoWord)
	}
	for w, word := range words {
		pieces := p.Processor.Encode(word)
		if len(pieces) == 0 {
			return api.WordEncoding{}, errors.Errorf("word %d (%q) produced no pieces", w, word)
		}
		for _, piece := range pieces {
			appendToken(piece.ID, piece.Text, w)
		}
	}
	if p.Info.EndOfSentenceID >= 0 {
		appendToken(p.Info.EndOfSentenceID, "</s>", api.NoWord)
	}
	return enc, nil
}

// Decode returns the text from a sequence of ids.
func (p *Tokenizer) Decode(ids []int) string {
	return p.Processor.Decode(ids)
}

// SpecialTokenID returns the id for the given special token, or an error if not known.
func (p *Tokenizer) SpecialTokenID(token api.SpecialToken) (int, error) {
	switch token {
	case api.TokUnknown:
		return p.Info.UnknownID, nil
	case api.TokPad:
		return p.Info.PadID, nil
	case api.TokBeginningOfSentence:
		return p.Info.BeginningOfSentenceID, nil
	case api.TokEndOfSentence:
		return p.Info.EndOfSentenceID, nil
	default:
		return 0, errors.Errorf("unknown special token: %s (%d)", token, int(token))
	}
}

// sliceMap executes the given function sequentially for every element on in, and returns a mapped slice.
func sliceMap[In, Out any](in []In, fn func(e In) Out) (out []Out) {
	out = make([]Out, len(in))
	for ii, e := range in {
		out[ii] = fn(e)
	}
	return
}
