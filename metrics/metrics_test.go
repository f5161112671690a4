package metrics

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DrueStaples08/go-ner-pipeline/labels"
)

func testVocabulary(t *testing.T) *labels.Vocabulary {
	t.Helper()
	v, err := labels.FromNames([]string{"O", "B-person", "I-person", "B-location", "I-location"})
	require.NoError(t, err)
	return v
}

func TestFilterIgnored(t *testing.T) {
	pred := []int{1, 2, 0, 3, 4}
	truth := []int{labels.Ignore, 2, 0, labels.Ignore, 4}

	fp, ft, err := FilterIgnored(pred, truth)
	require.NoError(t, err)
	assert.Equal(t, []int{2, 0, 4}, fp)
	assert.Equal(t, []int{2, 0, 4}, ft)
}

func TestFilterIgnored_LengthMismatch(t *testing.T) {
	_, _, err := FilterIgnored([]int{1}, []int{1, 2})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "different lengths")
}

func TestFilterIgnored_AllIgnored(t *testing.T) {
	fp, ft, err := FilterIgnored([]int{1, 2}, []int{labels.Ignore, labels.Ignore})
	require.NoError(t, err)
	assert.Empty(t, fp)
	assert.Empty(t, ft)
}

func TestEntities(t *testing.T) {
	tests := []struct {
		name string
		tags []string
		want []Entity
	}{
		{
			name: "no entities",
			tags: []string{"O", "O", "O"},
			want: nil,
		},
		{
			name: "single multi-word entity",
			tags: []string{"B-person", "I-person", "O"},
			want: []Entity{{Type: "person", Start: 0, End: 2}},
		},
		{
			name: "adjacent entities of same type",
			tags: []string{"B-person", "B-person"},
			want: []Entity{
				{Type: "person", Start: 0, End: 1},
				{Type: "person", Start: 1, End: 2},
			},
		},
		{
			name: "type switch inside a run",
			tags: []string{"B-person", "I-location"},
			want: []Entity{
				{Type: "person", Start: 0, End: 1},
				{Type: "location", Start: 1, End: 2},
			},
		},
		{
			name: "dangling I- opens a new entity",
			tags: []string{"O", "I-person", "I-person"},
			want: []Entity{{Type: "person", Start: 1, End: 3}},
		},
		{
			name: "blank tag closes the span like an outside tag",
			tags: []string{"B-person", "", "I-person"},
			want: []Entity{
				{Type: "person", Start: 0, End: 1},
				{Type: "person", Start: 2, End: 3},
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Entities(tt.tags))
		})
	}
}

func TestEvaluate_PerfectPredictions(t *testing.T) {
	vocab := testVocabulary(t)
	truth := [][]int{
		{labels.Ignore, 1, 2, 0, 3, labels.Ignore},
		{labels.Ignore, 0, 0, labels.Ignore},
	}

	report, err := Evaluate(truth, truth, vocab)
	require.NoError(t, err)
	assert.Equal(t, 1.0, report.Overall.Precision)
	assert.Equal(t, 1.0, report.Overall.Recall)
	assert.Equal(t, 1.0, report.Overall.F1)
	assert.Equal(t, 1.0, report.Accuracy)
	assert.Equal(t, 2, report.Overall.Support) // one person, one location
}

func TestEvaluate_PartialMatch(t *testing.T) {
	vocab := testVocabulary(t)

	// Truth: person(0,2), location(3,4). Ignored positions interleaved.
	truth := [][]int{{labels.Ignore, 1, 2, 0, 3, labels.Ignore}}
	// Prediction: person span truncated to (0,1) -> miss; location correct.
	pred := [][]int{{labels.Ignore, 1, 0, 0, 3, labels.Ignore}}

	report, err := Evaluate(pred, truth, vocab)
	require.NoError(t, err)

	// Entities: pred has person(0,1) [wrong span] and location(3,4) [right].
	assert.InDelta(t, 0.5, report.Overall.Precision, 1e-9)
	assert.InDelta(t, 0.5, report.Overall.Recall, 1e-9)
	assert.InDelta(t, 0.5, report.Overall.F1, 1e-9)

	person := report.PerType["person"]
	assert.Equal(t, 0.0, person.F1)
	assert.Equal(t, 1, person.Support)

	location := report.PerType["location"]
	assert.Equal(t, 1.0, location.F1)

	// 3 of 4 scored tokens correct.
	assert.InDelta(t, 0.75, report.Accuracy, 1e-9)
}

func TestEvaluate_MissedType(t *testing.T) {
	vocab := testVocabulary(t)
	truth := [][]int{{1, 2, 0}} // one person entity
	pred := [][]int{{0, 0, 0}}  // predicts nothing

	report, err := Evaluate(pred, truth, vocab)
	require.NoError(t, err)
	person, ok := report.PerType["person"]
	require.True(t, ok, "types with zero predictions must still be reported")
	assert.Equal(t, 0.0, person.Recall)
	assert.Equal(t, 1, person.Support)
	assert.Equal(t, 1, report.Overall.Support)
}

func TestEvaluate_Errors(t *testing.T) {
	vocab := testVocabulary(t)

	_, err := Evaluate([][]int{{0}}, [][]int{{0}, {0}}, vocab)
	assert.Error(t, err)

	_, err = Evaluate([][]int{{99}}, [][]int{{0}}, vocab)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "out of range")
}

func TestReport_String(t *testing.T) {
	vocab := testVocabulary(t)
	truth := [][]int{{1, 2, 0, 3}}
	report, err := Evaluate(truth, truth, vocab)
	require.NoError(t, err)

	out := report.String()
	assert.Contains(t, out, "person")
	assert.Contains(t, out, "location")
	assert.Contains(t, out, "overall")
	assert.Contains(t, out, "token accuracy")
}
