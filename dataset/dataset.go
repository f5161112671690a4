// Package dataset loads word-labelled corpora for token classification.
//
// A corpus arrives as records of pre-split words with one string tag per
// word (the CoNLL shape). Records resolve against a labels.Vocabulary into
// Examples carrying label ids. Two storage formats are supported: JSON lines
// for small corpora and parquet for the real ones.
package dataset

import (
	"bufio"
	"encoding/json"
	"io"
	"os"
	"slices"

	"github.com/pkg/errors"

	"github.com/DrueStaples08/go-ner-pipeline/labels"
)

// Record is one raw corpus entry: pre-split words with one tag name per word.
type Record struct {
	Words []string `json:"words" parquet:"words,list"`
	Tags  []string `json:"tags" parquet:"tags,list"`
}

// Example is a resolved record: the same words with label ids from a
// labels.Vocabulary. Invariant: len(Words) == len(Tags).
type Example struct {
	Words []string
	Tags  []int
}

// Resolve converts a raw record into an Example, failing fast on a
// words/tags length mismatch or an unknown tag name.
func Resolve(rec Record, vocab *labels.Vocabulary) (Example, error) {
	if len(rec.Words) != len(rec.Tags) {
		return Example{}, errors.Errorf(
			"record has %d words but %d tags", len(rec.Words), len(rec.Tags))
	}
	ex := Example{
		Words: rec.Words,
		Tags:  make([]int, len(rec.Tags)),
	}
	for i, tag := range rec.Tags {
		id, err := vocab.ID(tag)
		if err != nil {
			return Example{}, errors.WithMessagef(err, "resolving tag of word %d (%q)", i, rec.Words[i])
		}
		ex.Tags[i] = id
	}
	return ex, nil
}

// ResolveAll resolves every record, annotating failures with the record index.
func ResolveAll(records []Record, vocab *labels.Vocabulary) ([]Example, error) {
	examples := make([]Example, len(records))
	for i, rec := range records {
		ex, err := Resolve(rec, vocab)
		if err != nil {
			return nil, errors.WithMessagef(err, "record %d", i)
		}
		examples[i] = ex
	}
	return examples, nil
}

// CollectTags scans records and returns the distinct tag names, ordered with
// the outside label first (id 0 by convention) and the rest sorted, ready for
// labels.FromNames.
func CollectTags(records []Record) []string {
	seen := make(map[string]bool)
	var names []string
	hasOutside := false
	for _, rec := range records {
		for _, tag := range rec.Tags {
			if seen[tag] {
				continue
			}
			seen[tag] = true
			if tag == labels.Outside {
				hasOutside = true
				continue
			}
			names = append(names, tag)
		}
	}
	slices.Sort(names)
	if hasOutside {
		names = append([]string{labels.Outside}, names...)
	}
	return names
}

// ReadJSONL reads records from a JSON-lines stream, one record per line.
// Blank lines are skipped.
func ReadJSONL(r io.Reader) ([]Record, error) {
	var records []Record
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		raw := scanner.Bytes()
		if len(raw) == 0 {
			continue
		}
		var rec Record
		if err := json.Unmarshal(raw, &rec); err != nil {
			return nil, errors.Wrapf(err, "parsing line %d", line)
		}
		records = append(records, rec)
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "reading JSONL stream")
	}
	return records, nil
}

// LoadJSONL reads records from a JSON-lines file.
func LoadJSONL(path string) ([]Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open %q", path)
	}
	defer f.Close()
	records, err := ReadJSONL(f)
	if err != nil {
		return nil, errors.WithMessagef(err, "while reading %q", path)
	}
	return records, nil
}
