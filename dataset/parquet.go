package dataset

import (
	"bytes"
	"maps"
	"os"
	"slices"

	"github.com/edsrzf/mmap-go"
	"github.com/parquet-go/parquet-go"
	"github.com/pkg/errors"
)

// Parquet storage for corpora and for the aligned output of the pipeline.
// Files are read through a memory map: parquet needs random access
// (io.ReaderAt) and corpus files can be large.

// AlignedRecord is one tokenized, realigned example as persisted by the
// pipeline: ready-to-batch token ids with per-token label ids (the ignore
// sentinel included, so the loss-side filtering contract survives the round
// trip).
type AlignedRecord struct {
	IDs    []int32 `parquet:"ids,list"`
	Labels []int32 `parquet:"labels,list"`
}

// ReadParquet reads raw corpus records from a parquet file.
func ReadParquet(path string) ([]Record, error) {
	return readParquetFile[Record](path)
}

// WriteParquet writes raw corpus records to a parquet file.
func WriteParquet(path string, records []Record) error {
	return writeParquetFile(path, records)
}

// ReadAlignedParquet reads tokenized-and-realigned examples from a parquet file.
func ReadAlignedParquet(path string) ([]AlignedRecord, error) {
	return readParquetFile[AlignedRecord](path)
}

// WriteAlignedParquet writes tokenized-and-realigned examples to a parquet
// file. Metadata entries (the run id, say) are stored as file-level key/value
// metadata, so the output carries its provenance; LookupParquetMetadata reads
// them back.
func WriteAlignedParquet(path string, records []AlignedRecord, metadata map[string]string) error {
	options := make([]parquet.WriterOption, 0, len(metadata))
	for _, key := range slices.Sorted(maps.Keys(metadata)) {
		options = append(options, parquet.KeyValueMetadata(key, metadata[key]))
	}
	return writeParquetFile(path, records, options...)
}

// LookupParquetMetadata returns the file-level key/value metadata entry for
// key, and whether it is present.
func LookupParquetMetadata(path, key string) (string, bool, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", false, errors.Wrapf(err, "failed to open %q", path)
	}
	defer f.Close()

	m, err := mmap.Map(f, mmap.RDONLY, 0)
	if err != nil {
		return "", false, errors.Wrapf(err, "failed to mmap %q", path)
	}
	defer m.Unmap()

	pf, err := parquet.OpenFile(bytes.NewReader(m), int64(len(m)))
	if err != nil {
		return "", false, errors.Wrapf(err, "failed to open parquet file %q", path)
	}
	value, ok := pf.Lookup(key)
	return value, ok, nil
}

func readParquetFile[T any](path string) ([]T, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open %q", path)
	}
	defer f.Close()

	m, err := mmap.Map(f, mmap.RDONLY, 0)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to mmap %q", path)
	}
	defer m.Unmap()

	rows, err := parquet.Read[T](bytes.NewReader(m), int64(len(m)))
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read parquet rows from %q", path)
	}
	return rows, nil
}

func writeParquetFile[T any](path string, rows []T, options ...parquet.WriterOption) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "failed to create %q", path)
	}
	if err := parquet.Write(f, rows, options...); err != nil {
		_ = f.Close()
		return errors.Wrapf(err, "failed to write parquet rows to %q", path)
	}
	if err := f.Close(); err != nil {
		return errors.Wrapf(err, "failed to close %q", path)
	}
	return nil
}
