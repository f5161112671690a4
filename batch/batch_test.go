package batch

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DrueStaples08/go-ner-pipeline/labels"
)

func TestCollate_PadsWithDistinctFillValues(t *testing.T) {
	c := Collator{PadID: 0}
	examples := []Encoded{
		{IDs: []int{101, 7, 8, 9, 102}, Labels: []int{labels.Ignore, 1, 2, 3, labels.Ignore}},
		{IDs: []int{101, 7, 102}, Labels: []int{labels.Ignore, 1, labels.Ignore}},
	}

	b, err := c.Collate(examples)
	require.NoError(t, err)
	require.Equal(t, 2, b.Size())
	require.Equal(t, 5, b.SeqLen())

	// First example untouched.
	assert.Equal(t, examples[0].IDs, b.IDs[0])
	assert.Equal(t, examples[0].Labels, b.Labels[0])
	assert.Equal(t, []int{1, 1, 1, 1, 1}, b.Mask[0])

	// Second example: padded positions share indices but differ in fill value.
	assert.Equal(t, []int{101, 7, 102, 0, 0}, b.IDs[1])
	assert.Equal(t, []int{labels.Ignore, 1, labels.Ignore, labels.Ignore, labels.Ignore}, b.Labels[1])
	assert.Equal(t, []int{1, 1, 1, 0, 0}, b.Mask[1])

	for tpos := 3; tpos < 5; tpos++ {
		assert.Equal(t, labels.Ignore, b.Labels[1][tpos], "padded label at %d must be the ignore sentinel", tpos)
		assert.Equal(t, c.PadID, b.IDs[1][tpos], "padded id at %d must be the pad id", tpos)
	}
}

func TestCollate_Truncation(t *testing.T) {
	c := Collator{PadID: 0, MaxLength: 3}
	examples := []Encoded{
		{IDs: []int{101, 7, 8, 9, 102}, Labels: []int{labels.Ignore, 1, 2, 3, labels.Ignore}},
		{IDs: []int{101, 102}, Labels: []int{labels.Ignore, labels.Ignore}},
	}

	b, err := c.Collate(examples)
	require.NoError(t, err)
	assert.Equal(t, 3, b.SeqLen())
	assert.Equal(t, []int{101, 7, 8}, b.IDs[0])
	assert.Equal(t, []int{labels.Ignore, 1, 2}, b.Labels[0])
	assert.Equal(t, []int{101, 102, 0}, b.IDs[1])
}

func TestCollate_Errors(t *testing.T) {
	c := Collator{PadID: 0}

	_, err := c.Collate(nil)
	assert.Error(t, err)

	_, err = c.Collate([]Encoded{{IDs: []int{1, 2}, Labels: []int{labels.Ignore}}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "different lengths")
}

func TestTensors(t *testing.T) {
	c := Collator{PadID: 0}
	b, err := c.Collate([]Encoded{
		{IDs: []int{101, 7, 102}, Labels: []int{labels.Ignore, 2, labels.Ignore}},
		{IDs: []int{101, 102}, Labels: []int{labels.Ignore, labels.Ignore}},
	})
	require.NoError(t, err)

	ids, labs, mask := b.Tensors()
	assert.Equal(t, []int{2, 3}, ids.Shape().Dimensions)
	assert.Equal(t, []int{2, 3}, labs.Shape().Dimensions)
	assert.Equal(t, []int{2, 3}, mask.Shape().Dimensions)
}
