// Package metrics implements entity-level evaluation for sequence labelling
// (the seqeval contract): predicted and true BIO tag sequences are compared
// as whole entities, so a prediction scores only when entity type, start and
// end all match.
//
// Inputs arrive as aligned label ids straight from the model and the
// collator; FilterIgnored strips the ignore-sentinel positions before any
// scoring, which is the fixed downstream contract of the label realigner.
package metrics

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/pkg/errors"

	"github.com/DrueStaples08/go-ner-pipeline/labels"
)

// FilterIgnored removes every position whose true label is labels.Ignore from
// both sequences. The filter predicate is fixed by the realigner's output
// convention: truth equals the ignore sentinel.
func FilterIgnored(pred, truth []int) ([]int, []int, error) {
	if len(pred) != len(truth) {
		return nil, nil, errors.Errorf(
			"predicted and true label sequences have different lengths (%d vs %d)",
			len(pred), len(truth))
	}
	fp := make([]int, 0, len(pred))
	ft := make([]int, 0, len(truth))
	for i, tl := range truth {
		if tl == labels.Ignore {
			continue
		}
		fp = append(fp, pred[i])
		ft = append(ft, tl)
	}
	return fp, ft, nil
}

// Entity is a contiguous span of one entity type, end exclusive, in word/token positions.
type Entity struct {
	Type  string
	Start int
	End   int
}

// Entities decodes BIO tags into entity spans. An outside (or blank) tag
// closes the open span; a B- tag always opens a new entity; an I- tag
// continues the open entity of the same type, or opens a new one when there
// is nothing to continue (loose corpora produce those).
func Entities(tags []string) []Entity {
	var entities []Entity
	open := -1 // index into entities of the currently open span
	openType := ""
	for i, tag := range tags {
		if labels.IsOutside(tag) {
			open = -1
			continue
		}
		prefix, entityType := labels.ParseTag(tag)
		switch {
		case prefix == 'B', open == -1, entityType != openType:
			entities = append(entities, Entity{Type: entityType, Start: i, End: i + 1})
			open = len(entities) - 1
			openType = entityType
		default:
			entities[open].End = i + 1
		}
	}
	return entities
}

// Score holds precision/recall/F1 for one entity type (or overall).
type Score struct {
	Precision float64
	Recall    float64
	F1        float64
	Support   int // number of true entities
}

// Report is the evaluation result over a corpus of sequences.
type Report struct {
	PerType  map[string]Score
	Overall  Score
	Accuracy float64 // token-level accuracy over non-ignored positions
}

type counts struct {
	tp, fp, fn int
}

func (c counts) score(support int) Score {
	s := Score{Support: support}
	if c.tp+c.fp > 0 {
		s.Precision = float64(c.tp) / float64(c.tp+c.fp)
	}
	if c.tp+c.fn > 0 {
		s.Recall = float64(c.tp) / float64(c.tp+c.fn)
	}
	if s.Precision+s.Recall > 0 {
		s.F1 = 2 * s.Precision * s.Recall / (s.Precision + s.Recall)
	}
	return s
}

// Evaluate scores predicted against true aligned label id sequences. Ignored
// positions are filtered per sequence before decoding; label ids resolve to
// tag names through the vocabulary.
func Evaluate(pred, truth [][]int, vocab *labels.Vocabulary) (*Report, error) {
	if len(pred) != len(truth) {
		return nil, errors.Errorf(
			"got %d predicted sequences but %d true sequences", len(pred), len(truth))
	}

	perType := make(map[string]counts)
	support := make(map[string]int)
	var overall counts
	correctTokens, totalTokens := 0, 0

	for i := range pred {
		fp, ft, err := FilterIgnored(pred[i], truth[i])
		if err != nil {
			return nil, errors.WithMessagef(err, "sequence %d", i)
		}
		predTags, err := idsToTags(fp, vocab)
		if err != nil {
			return nil, errors.WithMessagef(err, "sequence %d (predicted)", i)
		}
		trueTags, err := idsToTags(ft, vocab)
		if err != nil {
			return nil, errors.WithMessagef(err, "sequence %d (true)", i)
		}

		for j := range trueTags {
			totalTokens++
			if predTags[j] == trueTags[j] {
				correctTokens++
			}
		}

		predEntities := Entities(predTags)
		trueEntities := Entities(trueTags)
		trueSet := make(map[Entity]bool, len(trueEntities))
		for _, e := range trueEntities {
			trueSet[e] = true
			support[e.Type]++
		}
		matched := make(map[Entity]bool, len(predEntities))
		for _, e := range predEntities {
			c := perType[e.Type]
			if trueSet[e] && !matched[e] {
				matched[e] = true
				c.tp++
				overall.tp++
			} else {
				c.fp++
				overall.fp++
			}
			perType[e.Type] = c
		}
		for _, e := range trueEntities {
			if !matched[e] {
				c := perType[e.Type]
				c.fn++
				perType[e.Type] = c
				overall.fn++
			}
		}
	}

	report := &Report{PerType: make(map[string]Score, len(perType))}
	totalSupport := 0
	for _, n := range support {
		totalSupport += n
	}
	for entityType, c := range perType {
		report.PerType[entityType] = c.score(support[entityType])
	}
	// Entity types with true entities but no predictions at all.
	for entityType, n := range support {
		if _, ok := report.PerType[entityType]; !ok {
			report.PerType[entityType] = counts{fn: n}.score(n)
		}
	}
	report.Overall = overall.score(totalSupport)
	if totalTokens > 0 {
		report.Accuracy = float64(correctTokens) / float64(totalTokens)
	}
	return report, nil
}

func idsToTags(ids []int, vocab *labels.Vocabulary) ([]string, error) {
	tags := make([]string, len(ids))
	for i, id := range ids {
		name, err := vocab.Name(id)
		if err != nil {
			return nil, errors.WithMessagef(err, "position %d", i)
		}
		tags[i] = name
	}
	return tags, nil
}

// String renders a classification report, one row per entity type plus the
// overall line.
func (r *Report) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%-16s %9s %9s %9s %9s\n", "", "precision", "recall", "f1", "support")
	for _, entityType := range slices.Sorted(maps.Keys(r.PerType)) {
		s := r.PerType[entityType]
		fmt.Fprintf(&sb, "%-16s %9.3f %9.3f %9.3f %9d\n",
			entityType, s.Precision, s.Recall, s.F1, s.Support)
	}
	fmt.Fprintf(&sb, "%-16s %9.3f %9.3f %9.3f %9d\n",
		"overall", r.Overall.Precision, r.Overall.Recall, r.Overall.F1, r.Overall.Support)
	fmt.Fprintf(&sb, "token accuracy: %.3f\n", r.Accuracy)
	return sb.String()
}
