package scoring

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func abcd(id string, answer int) Item {
	return Item{ID: id, Options: []string{"A", "B", "C", "D"}, Answer: answer}
}

func TestScoreSingleQuestion(t *testing.T) {
	marks := NewMarks(4, -1)

	tests := []struct {
		name     string
		answers  map[string]string
		correct  int
		wrong    int
		skipped  int
		obtained string
		status   Status
	}{
		{"correct answer earns the mark", map[string]string{"q1": "B"}, 1, 0, 0, "4", StatusCorrect},
		{"wrong answer adds the negative mark", map[string]string{"q1": "C"}, 0, 1, 0, "-1", StatusIncorrect},
		{"missing answer is skipped", map[string]string{}, 0, 0, 1, "0", StatusSkipped},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := Score([]Item{abcd("q1", 1)}, tt.answers, marks)

			assert.Equal(t, 1, res.Total)
			assert.Equal(t, tt.correct, res.Correct)
			assert.Equal(t, tt.wrong, res.Wrong)
			assert.Equal(t, tt.skipped, res.Skipped)
			assert.Equal(t, tt.correct+tt.wrong, res.Attempted)
			assert.True(t, decimal.RequireFromString(tt.obtained).Equal(res.Obtained), "obtained %s", res.Obtained)
			require.Len(t, res.Items, 1)
			assert.Equal(t, tt.status, res.Items[0].Status)
			assert.Equal(t, "B", res.Items[0].CorrectOption)
		})
	}
}

func TestScoreComparesByOptionText(t *testing.T) {
	// Options 0 and 1 share text, so either selection counts as correct.
	items := []Item{{ID: "q1", Options: []string{"same", "same", "x", "y"}, Answer: 1}}

	res := Score(items, map[string]string{"q1": "same"}, NewMarks(1, 0))

	assert.Equal(t, 1, res.Correct)
}

func TestScoreAggregates(t *testing.T) {
	items := []Item{abcd("q1", 0), abcd("q2", 1), abcd("q3", 2), abcd("q4", 3)}
	answers := map[string]string{"q1": "A", "q2": "B", "q3": "A"}

	res := Score(items, answers, NewMarks(2, -0.5))

	assert.Equal(t, 4, res.Total)
	assert.Equal(t, 3, res.Attempted)
	assert.Equal(t, 2, res.Correct)
	assert.Equal(t, 1, res.Wrong)
	assert.Equal(t, 1, res.Skipped)
	assert.Equal(t, "3.5", res.Obtained.String())
	assert.Equal(t, "8", res.MaxScore.String())
	assert.Equal(t, "43.75", res.Percentage.String())
	assert.Equal(t, "-0.5", res.Items[2].ScoreImpact.String())
	assert.Nil(t, res.Items[3].Selected)
}

func TestScoreZeroMarksHasZeroPercentage(t *testing.T) {
	res := Score([]Item{abcd("q1", 0)}, map[string]string{"q1": "A"}, NewMarks(0, 0))

	assert.True(t, res.Percentage.IsZero())
	assert.True(t, res.MaxScore.IsZero())
}

func TestScoreIsDeterministic(t *testing.T) {
	items := []Item{abcd("q1", 0), abcd("q2", 3)}
	answers := map[string]string{"q1": "A", "q2": "C"}

	first := Score(items, answers, NewMarks(1, -0.25))
	second := Score(items, answers, NewMarks(1, -0.25))

	assert.Equal(t, first, second)
}

func TestCorrectOptionOutOfRange(t *testing.T) {
	assert.Equal(t, "", Item{Options: []string{"A"}, Answer: 3}.CorrectOption())
	assert.Equal(t, "", Item{Options: []string{"A"}, Answer: -1}.CorrectOption())
}
