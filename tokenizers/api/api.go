// Package api defines the Tokenizer API shared by the tokenizer backends.
// It's a separate package to break the cyclic dependency, so users can import
// `tokenizers` subpackages and get the default implementations.
package api

// NoWord marks token positions that do not originate from any input word:
// start/end markers, padding and other special tokens inserted by the
// tokenizer rather than produced from the text.
const NoWord = -1

// WordEncoding is the result of encoding a pre-split word sequence.
//
// WordIDs has one entry per output token position: either the index of the
// word that produced the token, or NoWord. Consecutive positions may share a
// word index when a word splits into several subwords; the label realigner
// consumes exactly this map.
type WordEncoding struct {
	IDs     []int    // token ids
	Tokens  []string // token strings, same length as IDs
	WordIDs []int    // originating word index per token, or NoWord
}

// Tokenizer interface allows one to convert text to "tokens" (integer ids) and back.
//
// It also allows mapping of special tokens: tokens with a common semantic (like padding)
// but that may map to different ids (int) for different tokenizers.
type Tokenizer interface {
	Encode(text string) []int
	Decode([]int) string

	// SpecialTokenID returns ID for given special token if registered, or an error if not.
	SpecialTokenID(token SpecialToken) (int, error)
}

// WordTokenizer extends Tokenizer for token-classification datasets, where
// examples arrive pre-split into words and every word carries a label.
type WordTokenizer interface {
	Tokenizer

	// EncodeWords encodes a pre-split word sequence and reports, for every
	// output token, the index of the word it came from (or NoWord).
	EncodeWords(words []string) (WordEncoding, error)
}

// SpecialToken is an enum of commonly used special tokens.
type SpecialToken int

const (
	TokBeginningOfSentence SpecialToken = iota
	TokEndOfSentence
	TokUnknown
	TokPad
	TokMask
	TokClassification
	TokSeparator
	TokSpecialTokensCount
)

var specialTokenNames = [TokSpecialTokensCount]string{
	"beginning_of_sentence",
	"end_of_sentence",
	"unknown",
	"pad",
	"mask",
	"classification",
	"separator",
}

// String implements fmt.Stringer.
func (s SpecialToken) String() string {
	if s < 0 || s >= TokSpecialTokensCount {
		return "invalid_special_token"
	}
	return specialTokenNames[s]
}

// Config holds tokenizer behavior usually read from tokenizer_config.json.
// Backends fall back to it when tokenizer.json doesn't register a special
// token itself.
type Config struct {
	Lowercase      bool `json:"do_lower_case"`
	ModelMaxLength int  `json:"model_max_length"`

	UnkToken  string `json:"unk_token"`
	PadToken  string `json:"pad_token"`
	ClsToken  string `json:"cls_token"`
	SepToken  string `json:"sep_token"`
	MaskToken string `json:"mask_token"`
	BosToken  string `json:"bos_token"`
	EosToken  string `json:"eos_token"`
}
