// Package batch groups tokenized, label-realigned examples into padded
// training batches.
//
// Padding is dynamic: every batch is padded to its own longest sequence, not
// to a global maximum. Token ids pad with the tokenizer's pad id, labels pad
// with labels.Ignore and the attention mask pads with zero, so padded
// positions never reach the loss or the metrics. Realignment must already
// have happened per example; the collator only pads and stacks.
package batch

import (
	"github.com/gomlx/gomlx/pkg/core/tensors"
	"github.com/pkg/errors"

	"github.com/DrueStaples08/go-ner-pipeline/labels"
)

// Encoded is one tokenized and realigned example, ready for batching.
type Encoded struct {
	IDs    []int // token ids
	Labels []int // aligned label ids, labels.Ignore on excluded positions
}

// Batch is a group of examples padded to a common length.
type Batch struct {
	IDs    [][]int // [batch][seq] token ids, padded with the collator's pad id
	Labels [][]int // [batch][seq] label ids, padded with labels.Ignore
	Mask   [][]int // [batch][seq] attention mask, 1 on real tokens, 0 on padding
}

// Size returns the number of examples in the batch.
func (b Batch) Size() int { return len(b.IDs) }

// SeqLen returns the padded sequence length.
func (b Batch) SeqLen() int {
	if len(b.IDs) == 0 {
		return 0
	}
	return len(b.IDs[0])
}

// Collator pads groups of encoded examples.
type Collator struct {
	// PadID is the token id used to fill padded positions.
	PadID int

	// MaxLength truncates sequences longer than this before padding.
	// Zero means no truncation.
	MaxLength int
}

// Collate pads the examples to the length of the longest one (after optional
// truncation). An example whose IDs and Labels lengths differ is an
// integration error in the upstream tokenizer call and fails the whole batch.
func (c Collator) Collate(examples []Encoded) (Batch, error) {
	if len(examples) == 0 {
		return Batch{}, errors.New("cannot collate an empty batch")
	}

	width := 0
	for i, ex := range examples {
		if len(ex.IDs) != len(ex.Labels) {
			return Batch{}, errors.Errorf(
				"example %d: token ids and aligned labels have different lengths (%d vs %d)",
				i, len(ex.IDs), len(ex.Labels))
		}
		n := len(ex.IDs)
		if c.MaxLength > 0 && n > c.MaxLength {
			n = c.MaxLength
		}
		if n > width {
			width = n
		}
	}

	b := Batch{
		IDs:    make([][]int, len(examples)),
		Labels: make([][]int, len(examples)),
		Mask:   make([][]int, len(examples)),
	}
	for i, ex := range examples {
		n := len(ex.IDs)
		if c.MaxLength > 0 && n > c.MaxLength {
			n = c.MaxLength
		}
		ids := make([]int, width)
		labs := make([]int, width)
		mask := make([]int, width)
		copy(ids, ex.IDs[:n])
		copy(labs, ex.Labels[:n])
		for t := 0; t < n; t++ {
			mask[t] = 1
		}
		for t := n; t < width; t++ {
			ids[t] = c.PadID
			labs[t] = labels.Ignore
		}
		b.IDs[i] = ids
		b.Labels[i] = labs
		b.Mask[i] = mask
	}
	return b, nil
}

// Tensors converts the batch to GoMLX tensors of shape [batch, seq], dtype
// int32, for the downstream training loop.
func (b Batch) Tensors() (ids, labs, mask *tensors.Tensor) {
	rows, cols := b.Size(), b.SeqLen()
	return tensors.FromFlatDataAndDimensions(flattenInt32(b.IDs), rows, cols),
		tensors.FromFlatDataAndDimensions(flattenInt32(b.Labels), rows, cols),
		tensors.FromFlatDataAndDimensions(flattenInt32(b.Mask), rows, cols)
}

func flattenInt32(rows [][]int) []int32 {
	if len(rows) == 0 {
		return nil
	}
	flat := make([]int32, 0, len(rows)*len(rows[0]))
	for _, row := range rows {
		for _, v := range row {
			flat = append(flat, int32(v))
		}
	}
	return flat
}
