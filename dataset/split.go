package dataset

import (
	"strings"

	"github.com/pkg/errors"

	"github.com/DrueStaples08/go-ner-pipeline/labels"
)

// Corpora conventionally ship as one file per split (train/validation/test).
// Loading is two-phase: the raw records of every split are needed first to
// build the label vocabulary over the whole corpus, then each split resolves
// against that vocabulary.

// SplitFiles names the file of each corpus split. Empty entries load as empty
// splits, so corpora without a test file (say) need no special casing.
type SplitFiles struct {
	Train      string
	Validation string
	Test       string
}

// SplitRecords holds the raw records of each corpus split.
type SplitRecords struct {
	Train      []Record
	Validation []Record
	Test       []Record
}

// Split holds the resolved examples of each corpus split.
type Split struct {
	Train      []Example
	Validation []Example
	Test       []Example
}

// LoadRecords reads raw records from path, dispatching on the file extension:
// .parquet files are read as parquet, anything else as JSON lines.
func LoadRecords(path string) ([]Record, error) {
	if strings.HasSuffix(path, ".parquet") {
		return ReadParquet(path)
	}
	return LoadJSONL(path)
}

// LoadSplitRecords loads the raw records of every named split file.
func LoadSplitRecords(files SplitFiles) (*SplitRecords, error) {
	load := func(name, path string) ([]Record, error) {
		if path == "" {
			return nil, nil
		}
		records, err := LoadRecords(path)
		if err != nil {
			return nil, errors.WithMessagef(err, "%s split", name)
		}
		return records, nil
	}

	var s SplitRecords
	var err error
	if s.Train, err = load("train", files.Train); err != nil {
		return nil, err
	}
	if s.Validation, err = load("validation", files.Validation); err != nil {
		return nil, err
	}
	if s.Test, err = load("test", files.Test); err != nil {
		return nil, err
	}
	return &s, nil
}

// All returns the records of every split, train first. Useful to build the
// label vocabulary over the whole corpus, so a tag appearing only in the
// validation or test split still resolves.
func (s *SplitRecords) All() []Record {
	all := make([]Record, 0, len(s.Train)+len(s.Validation)+len(s.Test))
	all = append(all, s.Train...)
	all = append(all, s.Validation...)
	all = append(all, s.Test...)
	return all
}

// Resolve resolves every split against the vocabulary, failing fast with the
// split name on the first bad record.
func (s *SplitRecords) Resolve(vocab *labels.Vocabulary) (*Split, error) {
	resolve := func(name string, records []Record) ([]Example, error) {
		if len(records) == 0 {
			return nil, nil
		}
		examples, err := ResolveAll(records, vocab)
		if err != nil {
			return nil, errors.WithMessagef(err, "%s split", name)
		}
		return examples, nil
	}

	var split Split
	var err error
	if split.Train, err = resolve("train", s.Train); err != nil {
		return nil, err
	}
	if split.Validation, err = resolve("validation", s.Validation); err != nil {
		return nil, err
	}
	if split.Test, err = resolve("test", s.Test); err != nil {
		return nil, err
	}
	return &split, nil
}
