package labels

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromNames(t *testing.T) {
	v, err := FromNames([]string{"O", "B-person", "I-person", "B-organization", "I-organization"})
	require.NoError(t, err)
	require.Equal(t, 5, v.Len())

	// Bijection in both directions.
	for id, name := range v.Names() {
		gotName, err := v.Name(id)
		require.NoError(t, err)
		assert.Equal(t, name, gotName)

		gotID, err := v.ID(name)
		require.NoError(t, err)
		assert.Equal(t, id, gotID)
	}
}

func TestFromNames_Invalid(t *testing.T) {
	_, err := FromNames([]string{"O", "B-person", "O"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate label")

	_, err = FromNames([]string{"O", ""})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "empty label name")
}

func TestVocabulary_OutOfRange(t *testing.T) {
	v, err := FromNames([]string{"O"})
	require.NoError(t, err)

	_, err = v.Name(1)
	assert.Error(t, err)
	_, err = v.Name(-1)
	assert.Error(t, err)
	_, err = v.ID("B-person")
	assert.Error(t, err)

	// Ignore is never a valid label id.
	_, err = v.Name(Ignore)
	assert.Error(t, err)
}

func TestVocabulary_NamesIsACopy(t *testing.T) {
	v, err := FromNames([]string{"O", "B-person"})
	require.NoError(t, err)

	names := v.Names()
	names[0] = "mutated"

	name, err := v.Name(0)
	require.NoError(t, err)
	assert.Equal(t, "O", name)
}

func TestParseTag(t *testing.T) {
	tests := []struct {
		tag        string
		wantPrefix byte
		wantEntity string
	}{
		{"O", 'O', ""},
		{"B-person", 'B', "person"},
		{"I-person", 'I', "person"},
		{"B-organization", 'B', "organization"},
		{"MISC", 'I', "MISC"}, // loose corpora without explicit prefixes
	}

	for _, tt := range tests {
		t.Run(tt.tag, func(t *testing.T) {
			prefix, entity := ParseTag(tt.tag)
			assert.Equal(t, tt.wantPrefix, prefix)
			assert.Equal(t, tt.wantEntity, entity)
		})
	}
}

func TestIsOutside(t *testing.T) {
	assert.True(t, IsOutside("O"))
	assert.True(t, IsOutside(""))
	assert.False(t, IsOutside("B-person"))
}
