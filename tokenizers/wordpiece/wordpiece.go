// Package wordpiece implements a WordPiece tokenizer for HuggingFace's
// tokenizer.json format (the "fast" BERT-style tokenizers).
//
// Besides plain text encoding, it encodes pre-split word sequences and
// reports, for every output token, the index of the word it came from. That
// token-to-word map is the input of the label realigner, which is how NER
// datasets (one label per word) become per-token training targets.
package wordpiece

import (
	"encoding/json"
	"os"
	"unicode/utf8"

	"github.com/pkg/errors"

	"github.com/DrueStaples08/go-ner-pipeline/tokenizers/api"
)

// tokenizerJSON is the subset of HuggingFace's tokenizer.json this backend reads.
type tokenizerJSON struct {
	Version     string       `json:"version"`
	AddedTokens []AddedToken `json:"added_tokens"`
	Normalizer  *normalizer  `json:"normalizer"`
	Model       model        `json:"model"`
}

// AddedToken represents a special token added to the vocabulary.
type AddedToken struct {
	ID      int    `json:"id"`
	Content string `json:"content"`
	Special bool   `json:"special"`
}

type normalizer struct {
	Type      string `json:"type"`
	Lowercase bool   `json:"lowercase"`
}

type model struct {
	Type                    string         `json:"type"`
	Vocab                   map[string]int `json:"vocab"`
	UnkToken                string         `json:"unk_token"`
	ContinuingSubwordPrefix string         `json:"continuing_subword_prefix"`
	MaxInputCharsPerWord    int            `json:"max_input_chars_per_word"`
}

// Tokenizer implements api.WordTokenizer for WordPiece tokenizer.json files.
type Tokenizer struct {
	config      *api.Config
	vocab       map[string]int
	idToToken   map[int]string
	addedTokens map[string]int

	prefix         string // continuing subword prefix, usually "##"
	maxInputChars  int
	modelMaxLength int // encoding truncation limit, 0 means unlimited
	lowercase      bool

	// Special token IDs, -1 when absent.
	unkID  int
	padID  int
	clsID  int
	sepID  int
	maskID int
}

// Compile time asserts that Tokenizer implements the tokenizer interfaces.
var (
	_ api.Tokenizer     = &Tokenizer{}
	_ api.WordTokenizer = &Tokenizer{}
)

// New creates a WordPiece tokenizer from a local tokenizer.json file path.
func New(config *api.Config, filePath string) (*Tokenizer, error) {
	content, err := os.ReadFile(filePath)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read tokenizer.json file %q", filePath)
	}
	return NewFromContent(config, content)
}

// NewFromContent creates a WordPiece tokenizer from tokenizer.json content.
func NewFromContent(config *api.Config, content []byte) (*Tokenizer, error) {
	var tj tokenizerJSON
	if err := json.Unmarshal(content, &tj); err != nil {
		return nil, errors.Wrapf(err, "failed to parse tokenizer.json")
	}
	if tj.Model.Type != "" && tj.Model.Type != "WordPiece" {
		return nil, errors.Errorf("unsupported tokenizer model type %q, only WordPiece is supported", tj.Model.Type)
	}

	t := &Tokenizer{
		config:      config,
		vocab:       tj.Model.Vocab,
		idToToken:   make(map[int]string, len(tj.Model.Vocab)+len(tj.AddedTokens)),
		addedTokens: make(map[string]int, len(tj.AddedTokens)),
		prefix:      tj.Model.ContinuingSubwordPrefix,
		unkID:       -1,
		padID:       -1,
		clsID:       -1,
		sepID:       -1,
		maskID:      -1,
	}
	if t.vocab == nil {
		t.vocab = make(map[string]int)
	}
	if t.prefix == "" {
		t.prefix = "##"
	}
	t.maxInputChars = tj.Model.MaxInputCharsPerWord
	if t.maxInputChars == 0 {
		t.maxInputChars = 100
	}
	if tj.Normalizer != nil {
		t.lowercase = tj.Normalizer.Lowercase
	}
	if config != nil {
		if config.Lowercase {
			t.lowercase = true
		}
		t.modelMaxLength = config.ModelMaxLength
	}

	// Build reverse vocab (id -> token).
	for token, id := range t.vocab {
		t.idToToken[id] = token
	}
	for _, at := range tj.AddedTokens {
		t.addedTokens[at.Content] = at.ID
		t.idToToken[at.ID] = at.Content
	}

	t.resolveSpecialTokens(&tj)
	return t, nil
}

// resolveSpecialTokens maps special tokens from tokenizer.json and the config
// to their IDs.
func (t *Tokenizer) resolveSpecialTokens(tj *tokenizerJSON) {
	if tj.Model.UnkToken != "" {
		if id, ok := t.vocab[tj.Model.UnkToken]; ok {
			t.unkID = id
		}
	}

	for _, at := range tj.AddedTokens {
		if !at.Special {
			continue
		}
		switch at.Content {
		case "[UNK]", "<unk>":
			t.unkID = at.ID
		case "[PAD]", "<pad>":
			t.padID = at.ID
		case "[CLS]", "<s>":
			t.clsID = at.ID
		case "[SEP]", "</s>":
			t.sepID = at.ID
		case "[MASK]", "<mask>":
			t.maskID = at.ID
		}
	}

	// Fall back to config special token names.
	if t.config == nil {
		return
	}
	lookup := func(name string, id *int) {
		if *id != -1 || name == "" {
			return
		}
		if vid, ok := t.vocab[name]; ok {
			*id = vid
		} else if aid, ok := t.addedTokens[name]; ok {
			*id = aid
		}
	}
	lookup(t.config.UnkToken, &t.unkID)
	lookup(t.config.PadToken, &t.padID)
	lookup(t.config.ClsToken, &t.clsID)
	lookup(t.config.SepToken, &t.sepID)
	lookup(t.config.MaskToken, &t.maskID)
}

// EncodeWords encodes a pre-split word sequence as
//
//	[CLS] subwords(word 0) subwords(word 1) ... [SEP]
//
// and fills WordIDs with the originating word index per token, api.NoWord for
// the special tokens. A word not representable by the vocabulary becomes a
// single [UNK] token that still owns its word index, so the invariant
// "every word produces at least one token" holds for any in-vocabulary or
// out-of-vocabulary word.
//
// When the config sets ModelMaxLength, longer encodings are truncated to it;
// the final [SEP] is kept so truncated sequences stay well-formed.
func (t *Tokenizer) EncodeWords(words []string) (api.WordEncoding, error) {
	enc := api.WordEncoding{
		IDs:     make([]int, 0, len(words)+2),
		Tokens:  make([]string, 0, len(words)+2),
		WordIDs: make([]int, 0, len(words)+2),
	}
	appendToken := func(id, wordIdx int) {
		enc.IDs = append(enc.IDs, id)
		enc.Tokens = append(enc.Tokens, t.idToToken[id])
		enc.WordIDs = append(enc.WordIDs, wordIdx)
	}

	if t.clsID >= 0 {
		appendToken(t.clsID, api.NoWord)
	}
	for w, word := range words {
		ids := t.wordPiece(t.normalizeWord(word))
		if len(ids) == 0 {
			return api.WordEncoding{}, errors.Errorf(
				"word %d (%q) produced no tokens and no unknown token is defined", w, word)
		}
		for _, id := range ids {
			appendToken(id, w)
		}
	}
	if t.sepID >= 0 {
		appendToken(t.sepID, api.NoWord)
	}
	if t.modelMaxLength > 0 && len(enc.IDs) > t.modelMaxLength {
		enc = t.truncate(enc)
	}
	return enc, nil
}

// truncate cuts the encoding to modelMaxLength tokens, keeping the final
// separator when the tokenizer defines one.
func (t *Tokenizer) truncate(enc api.WordEncoding) api.WordEncoding {
	keep := t.modelMaxLength
	if t.sepID >= 0 {
		keep--
	}
	enc.IDs = enc.IDs[:keep]
	enc.Tokens = enc.Tokens[:keep]
	enc.WordIDs = enc.WordIDs[:keep]
	if t.sepID >= 0 {
		enc.IDs = append(enc.IDs, t.sepID)
		enc.Tokens = append(enc.Tokens, t.idToToken[t.sepID])
		enc.WordIDs = append(enc.WordIDs, api.NoWord)
	}
	return enc
}

// Encode converts free text to a sequence of token IDs, truncated to the
// config's ModelMaxLength when set. No special tokens are added; use
// EncodeWords for training examples.
func (t *Tokenizer) Encode(text string) []int {
	var ids []int
	for _, word := range bertPreTokenize(cleanText(text)) {
		ids = append(ids, t.wordPiece(t.normalizeWord(word))...)
	}
	if t.modelMaxLength > 0 && len(ids) > t.modelMaxLength {
		ids = ids[:t.modelMaxLength]
	}
	return ids
}

// normalizeWord applies the BertNormalizer steps to a single word.
func (t *Tokenizer) normalizeWord(word string) string {
	if t.lowercase {
		word = lowerAndStripAccents(word)
	}
	return word
}

// wordPiece tokenizes a single normalized word with greedy longest-match-first
// WordPiece. The whole word collapses to [UNK] when any piece is missing from
// the vocabulary.
func (t *Tokenizer) wordPiece(word string) []int {
	if word == "" {
		return nil
	}
	// Added tokens (like literal "[MASK]" in text) bypass the subword model.
	if id, ok := t.addedTokens[word]; ok {
		return []int{id}
	}
	if utf8.RuneCountInString(word) > t.maxInputChars {
		return t.unkOrNil()
	}

	var tokens []int
	start := 0
	for start < len(word) {
		end := len(word)
		found := false
		for start < end {
			substr := word[start:end]
			if start > 0 {
				substr = t.prefix + substr
			}
			if id, ok := t.vocab[substr]; ok {
				tokens = append(tokens, id)
				found = true
				break
			}
			end--
		}
		if !found {
			return t.unkOrNil()
		}
		start = end
	}
	return tokens
}

func (t *Tokenizer) unkOrNil() []int {
	if t.unkID >= 0 {
		return []int{t.unkID}
	}
	return nil
}

// Decode converts a sequence of token IDs back to text, merging continuation
// subwords and skipping ids not present in the vocabulary.
func (t *Tokenizer) Decode(ids []int) string {
	var tokens []string
	for _, id := range ids {
		if token, ok := t.idToToken[id]; ok {
			tokens = append(tokens, token)
		}
	}
	return joinWordPieces(tokens, t.prefix)
}

// SpecialTokenID returns the ID for a given special token.
func (t *Tokenizer) SpecialTokenID(token api.SpecialToken) (int, error) {
	switch token {
	case api.TokUnknown:
		if t.unkID >= 0 {
			return t.unkID, nil
		}
	case api.TokPad:
		if t.padID >= 0 {
			return t.padID, nil
		}
	case api.TokMask:
		if t.maskID >= 0 {
			return t.maskID, nil
		}
	case api.TokClassification, api.TokBeginningOfSentence:
		// BERT-style models use CLS as the sequence start marker.
		if t.clsID >= 0 {
			return t.clsID, nil
		}
	case api.TokSeparator, api.TokEndOfSentence:
		if t.sepID >= 0 {
			return t.sepID, nil
		}
	}
	return 0, errors.Errorf("special token %s not found", token)
}

// VocabSize returns the size of the vocabulary including added tokens.
func (t *Tokenizer) VocabSize() int {
	return len(t.idToToken)
}

// TokenToID converts a token string to its ID.
func (t *Tokenizer) TokenToID(token string) (int, bool) {
	if id, ok := t.addedTokens[token]; ok {
		return id, true
	}
	id, ok := t.vocab[token]
	return id, ok
}

// IDToToken converts a token ID to its string.
func (t *Tokenizer) IDToToken(id int) (string, bool) {
	token, ok := t.idToToken[id]
	return token, ok
}
