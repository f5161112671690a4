package dataset

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DrueStaples08/go-ner-pipeline/labels"
)

func writeTempJSONL(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadSplitRecords(t *testing.T) {
	dir := t.TempDir()
	files := SplitFiles{
		Train: writeTempJSONL(t, dir, "train.jsonl",
			`{"words": ["Anna", "Schmidt"], "tags": ["B-person", "I-person"]}
{"words": ["Nothing"], "tags": ["O"]}
`),
		Validation: writeTempJSONL(t, dir, "validation.jsonl",
			`{"words": ["Berlin"], "tags": ["B-location"]}
`),
		// No test split.
	}

	splits, err := LoadSplitRecords(files)
	require.NoError(t, err)
	assert.Len(t, splits.Train, 2)
	assert.Len(t, splits.Validation, 1)
	assert.Empty(t, splits.Test)
	assert.Len(t, splits.All(), 3)

	// The validation-only tag must make it into the corpus-wide vocabulary.
	names := CollectTags(splits.All())
	assert.Contains(t, names, "B-location")

	vocab, err := labels.FromNames(names)
	require.NoError(t, err)
	resolved, err := splits.Resolve(vocab)
	require.NoError(t, err)
	assert.Len(t, resolved.Train, 2)
	assert.Len(t, resolved.Validation, 1)
	assert.Empty(t, resolved.Test)
}

func TestLoadSplitRecords_ParquetFile(t *testing.T) {
	dir := t.TempDir()
	records := []Record{{Words: []string{"Berlin"}, Tags: []string{"B-location"}}}
	path := filepath.Join(dir, "test.parquet")
	require.NoError(t, WriteParquet(path, records))

	splits, err := LoadSplitRecords(SplitFiles{Test: path})
	require.NoError(t, err)
	assert.Equal(t, records, splits.Test)
}

func TestLoadSplitRecords_NamesFailingSplit(t *testing.T) {
	dir := t.TempDir()
	files := SplitFiles{
		Train: writeTempJSONL(t, dir, "train.jsonl",
			`{"words": ["fine"], "tags": ["O"]}
`),
		Validation: filepath.Join(dir, "does-not-exist.jsonl"),
	}

	_, err := LoadSplitRecords(files)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "validation split")
}

func TestSplitRecords_Resolve_NamesFailingSplit(t *testing.T) {
	vocab, err := labels.FromNames([]string{"O"})
	require.NoError(t, err)

	splits := &SplitRecords{
		Train: []Record{{Words: []string{"fine"}, Tags: []string{"O"}}},
		Test:  []Record{{Words: []string{"broken"}, Tags: []string{"B-ship"}}},
	}
	_, err = splits.Resolve(vocab)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "test split")
	assert.Contains(t, err.Error(), "unknown label")
}
