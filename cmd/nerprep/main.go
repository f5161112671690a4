// nerprep runs the offline part of a token-classification pipeline: it loads
// a word-labelled corpus split by file (train/validation/test), tokenizes
// every example, realigns the word-level labels onto the subword tokens and
// writes one parquet file per split, ready for a training loop to batch and
// consume. The label vocabulary is built over the whole corpus, so a tag seen
// only in the validation or test split still resolves.
//
// Example:
//
//	nerprep -tokenizer tokenizer.json -train train.jsonl -validation dev.jsonl -out train.aligned.parquet
//
// The tokenizer flag also accepts an https:// URL; the file is then fetched
// once into the local cache directory.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"runtime"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"

	"github.com/DrueStaples08/go-ner-pipeline/align"
	"github.com/DrueStaples08/go-ner-pipeline/batch"
	"github.com/DrueStaples08/go-ner-pipeline/dataset"
	"github.com/DrueStaples08/go-ner-pipeline/hub"
	"github.com/DrueStaples08/go-ner-pipeline/labels"
	"github.com/DrueStaples08/go-ner-pipeline/tokenizers/api"
	"github.com/DrueStaples08/go-ner-pipeline/tokenizers/wordpiece"
)

var (
	flagTokenizer  = flag.String("tokenizer", "", "Path or URL of a WordPiece tokenizer.json file.")
	flagTrain      = flag.String("train", "", "Training corpus file with one {\"words\": [...], \"tags\": [...]} JSON object per line, or a .parquet file with the same columns.")
	flagValidation = flag.String("validation", "", "Optional validation corpus file, same format as -train.")
	flagTest       = flag.String("test", "", "Optional test corpus file, same format as -train.")
	flagOut        = flag.String("out", "", "Output parquet file for the aligned training examples. Other splits derive their file name from it (e.g. out.validation.parquet).")
	flagCacheDir   = flag.String("cache_dir", defaultCacheDir(), "Directory for downloaded assets.")
	flagMaxLength  = flag.Int("max_length", 0, "Truncate token sequences to this length, 0 disables truncation.")
	flagBatchSize  = flag.Int("batch_size", 32, "Batch size used for the collation statistics.")
	flagWorkers    = flag.Int("workers", runtime.GOMAXPROCS(0), "Concurrent tokenization workers.")
)

func defaultCacheDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".nerprep-cache"
	}
	return home + "/.cache/nerprep"
}

func main() {
	klog.InitFlags(nil)
	flag.Parse()
	if *flagTokenizer == "" || *flagTrain == "" || *flagOut == "" {
		flag.Usage()
		os.Exit(2)
	}
	if err := run(context.Background()); err != nil {
		klog.Exitf("nerprep failed: %+v", err)
	}
}

func run(ctx context.Context) error {
	runID := uuid.NewString()
	klog.V(1).Infof("starting run %s", runID)

	tokenizerPath := *flagTokenizer
	if strings.HasPrefix(tokenizerPath, "http://") || strings.HasPrefix(tokenizerPath, "https://") {
		cache := hub.New(*flagCacheDir)
		localPath, err := cache.Download(ctx, tokenizerPath, "tokenizer.json")
		if err != nil {
			return errors.WithMessagef(err, "fetching tokenizer %q", tokenizerPath)
		}
		tokenizerPath = localPath
	}
	tok, err := wordpiece.New(nil, tokenizerPath)
	if err != nil {
		return err
	}

	records, err := dataset.LoadSplitRecords(dataset.SplitFiles{
		Train:      *flagTrain,
		Validation: *flagValidation,
		Test:       *flagTest,
	})
	if err != nil {
		return err
	}
	vocab, err := labels.FromNames(dataset.CollectTags(records.All()))
	if err != nil {
		return err
	}
	splits, err := records.Resolve(vocab)
	if err != nil {
		return err
	}

	padID, err := tok.SpecialTokenID(api.TokPad)
	if err != nil {
		return errors.WithMessage(err, "tokenizer defines no padding token")
	}
	collator := batch.Collator{PadID: padID, MaxLength: *flagMaxLength}

	var summaries []splitSummary
	for _, split := range []struct {
		name     string
		examples []dataset.Example
	}{
		{"train", splits.Train},
		{"validation", splits.Validation},
		{"test", splits.Test},
	} {
		if len(split.examples) == 0 {
			continue
		}
		outPath := splitOutputPath(*flagOut, split.name)
		klog.V(1).Infof("processing %s split: %d examples -> %s",
			split.name, len(split.examples), outPath)

		summary, err := processSplit(tok, collator, split.examples, outPath, map[string]string{
			"run_id": runID,
			"split":  split.name,
		})
		if err != nil {
			return errors.WithMessagef(err, "%s split", split.name)
		}
		summary.name = split.name
		summaries = append(summaries, summary)
	}

	fmt.Println(renderSummary(runID, vocab, summaries))
	return nil
}

// splitOutputPath derives the output file of a split from the -out flag: the
// train split writes to -out verbatim, other splits insert their name before
// the extension.
func splitOutputPath(out, split string) string {
	if split == "train" {
		return out
	}
	if ext := ".parquet"; strings.HasSuffix(out, ext) {
		return strings.TrimSuffix(out, ext) + "." + split + ext
	}
	return out + "." + split
}

// splitSummary aggregates the counters of one processed split.
type splitSummary struct {
	name            string
	examples        int
	stats           encodeStats
	batches         int
	paddedPositions int
}

func processSplit(tok api.WordTokenizer, collator batch.Collator, examples []dataset.Example, outPath string, metadata map[string]string) (splitSummary, error) {
	summary := splitSummary{examples: len(examples)}

	encoded, stats, err := encodeAll(tok, examples)
	if err != nil {
		return summary, err
	}
	summary.stats = stats

	batches, paddedPositions, err := collateAll(collator, encoded, *flagBatchSize)
	if err != nil {
		return summary, err
	}
	summary.batches = len(batches)
	summary.paddedPositions = paddedPositions

	aligned := make([]dataset.AlignedRecord, len(encoded))
	for i, enc := range encoded {
		aligned[i] = dataset.AlignedRecord{
			IDs:    toInt32(enc.IDs),
			Labels: toInt32(enc.Labels),
		}
	}
	if err := dataset.WriteAlignedParquet(outPath, aligned, metadata); err != nil {
		return summary, err
	}
	return summary, nil
}

// encodeStats aggregates per-example counters across the worker pool.
type encodeStats struct {
	tokens        int
	ignored       int
	contiguityHit int
}

// encodeAll tokenizes and realigns every example. Realignment is a pure
// function per example, so the work fans out over a fixed worker pool;
// results land in their original slots and order is preserved.
func encodeAll(tok api.WordTokenizer, examples []dataset.Example) ([]batch.Encoded, encodeStats, error) {
	encoded := make([]batch.Encoded, len(examples))
	errs := make([]error, len(examples))
	statsPerExample := make([]encodeStats, len(examples))

	workers := *flagWorkers
	if workers < 1 {
		workers = 1
	}
	indices := make(chan int)
	var wg sync.WaitGroup
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range indices {
				encoded[i], statsPerExample[i], errs[i] = encodeOne(tok, examples[i])
			}
		}()
	}
	for i := range examples {
		indices <- i
	}
	close(indices)
	wg.Wait()

	var stats encodeStats
	for i, err := range errs {
		if err != nil {
			return nil, stats, errors.WithMessagef(err, "example %d", i)
		}
		stats.tokens += statsPerExample[i].tokens
		stats.ignored += statsPerExample[i].ignored
		stats.contiguityHit += statsPerExample[i].contiguityHit
	}
	return encoded, stats, nil
}

func encodeOne(tok api.WordTokenizer, ex dataset.Example) (batch.Encoded, encodeStats, error) {
	var stats encodeStats
	enc, err := tok.EncodeWords(ex.Words)
	if err != nil {
		return batch.Encoded{}, stats, err
	}
	if len(enc.IDs) != len(enc.WordIDs) {
		return batch.Encoded{}, stats, errors.Errorf(
			"tokenizer returned %d ids but %d word ids", len(enc.IDs), len(enc.WordIDs))
	}
	if word, ok := align.CheckContiguous(enc.WordIDs); !ok {
		// Upstream tokenizer anomaly; the realigner still treats each run independently.
		klog.Warningf("word index %d appears in non-adjacent runs (words: %v)", word, ex.Words)
		stats.contiguityHit++
	}
	alignedLabels, err := align.Realign(ex.Tags, enc.WordIDs)
	if err != nil {
		return batch.Encoded{}, stats, err
	}
	stats.tokens = len(alignedLabels)
	for _, l := range alignedLabels {
		if l == labels.Ignore {
			stats.ignored++
		}
	}
	return batch.Encoded{IDs: enc.IDs, Labels: alignedLabels}, stats, nil
}

// collateAll groups the encoded examples into batches and reports how many
// positions the dynamic padding added, a useful signal for bucketing choices.
func collateAll(c batch.Collator, encoded []batch.Encoded, batchSize int) ([]batch.Batch, int, error) {
	if batchSize < 1 {
		return nil, 0, errors.Errorf("batch size must be positive, got %d", batchSize)
	}
	var batches []batch.Batch
	padded := 0
	for start := 0; start < len(encoded); start += batchSize {
		end := min(start+batchSize, len(encoded))
		b, err := c.Collate(encoded[start:end])
		if err != nil {
			return nil, 0, errors.WithMessagef(err, "batch starting at example %d", start)
		}
		for _, mask := range b.Mask {
			for _, m := range mask {
				if m == 0 {
					padded++
				}
			}
		}
		batches = append(batches, b)
	}
	return batches, padded, nil
}

var (
	summaryBoxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			Padding(0, 2)
	summaryTitleStyle = lipgloss.NewStyle().Bold(true)
	summaryKeyStyle   = lipgloss.NewStyle().Faint(true)
)

func renderSummary(runID string, vocab *labels.Vocabulary, summaries []splitSummary) string {
	row := func(key string, value any) string {
		return fmt.Sprintf("%s %v", summaryKeyStyle.Render(key+":"), value)
	}
	lines := []string{
		summaryTitleStyle.Render("nerprep " + runID),
		row("labels", strings.Join(vocab.Names(), " ")),
	}
	for _, s := range summaries {
		lines = append(lines,
			summaryTitleStyle.Render(s.name),
			row("examples", s.examples),
			row("tokens", s.stats.tokens),
			row("ignored positions", fmt.Sprintf("%d (%.1f%%)", s.stats.ignored, percent(s.stats.ignored, s.stats.tokens))),
			row("batches", s.batches),
			row("padded positions", s.paddedPositions),
		)
		if s.stats.contiguityHit > 0 {
			lines = append(lines, row("non-contiguous word maps", s.stats.contiguityHit))
		}
	}
	return summaryBoxStyle.Render(strings.Join(lines, "\n"))
}

func percent(part, total int) float64 {
	if total == 0 {
		return 0
	}
	return 100 * float64(part) / float64(total)
}

func toInt32(values []int) []int32 {
	out := make([]int32, len(values))
	for i, v := range values {
		out[i] = int32(v)
	}
	return out
}
