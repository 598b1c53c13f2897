// Package scoring grades an answer set against a question list.
//
// Answers are compared by option text, not by index: a stored answer is
// correct when it equals the option found at the question's answer index.
// Two options with identical text are therefore indistinguishable.
package scoring

import (
	"github.com/shopspring/decimal"
)

type Status string

const (
	StatusCorrect   Status = "correct"
	StatusIncorrect Status = "incorrect"
	StatusSkipped   Status = "skipped"
)

// Item is the minimal view of a question needed for grading.
type Item struct {
	ID      string
	Options []string
	Answer  int
}

// CorrectOption returns the option text at the answer index, or "" when the
// index does not address an option.
func (it Item) CorrectOption() string {
	if it.Answer < 0 || it.Answer >= len(it.Options) {
		return ""
	}
	return it.Options[it.Answer]
}

type Marks struct {
	Correct  decimal.Decimal
	Negative decimal.Decimal
}

func NewMarks(correct, negative float64) Marks {
	return Marks{Correct: decimal.NewFromFloat(correct), Negative: decimal.NewFromFloat(negative)}
}

type ItemResult struct {
	QuestionID    string          `json:"questionId"`
	Selected      *string         `json:"selected"`
	CorrectOption string          `json:"correctOption"`
	Status        Status          `json:"status"`
	ScoreImpact   decimal.Decimal `json:"scoreImpact"`
}

type Result struct {
	Total      int             `json:"total"`
	Attempted  int             `json:"attempted"`
	Correct    int             `json:"correct"`
	Wrong      int             `json:"wrong"`
	Skipped    int             `json:"skipped"`
	Obtained   decimal.Decimal `json:"obtained"`
	MaxScore   decimal.Decimal `json:"maxScore"`
	Percentage decimal.Decimal `json:"percentage"`
	Items      []ItemResult    `json:"items"`
}

var hundred = decimal.NewFromInt(100)

// Score is pure: the same questions, answers and marks always give the same result.
// The negative mark is added for each wrong answer, keeping its sign.
func Score(items []Item, answers map[string]string, marks Marks) Result {
	res := Result{
		Total:    len(items),
		Obtained: decimal.Zero,
		Items:    make([]ItemResult, 0, len(items)),
	}

	for _, it := range items {
		ir := ItemResult{QuestionID: it.ID, CorrectOption: it.CorrectOption(), ScoreImpact: decimal.Zero}
		selected, ok := answers[it.ID]
		switch {
		case !ok:
			ir.Status = StatusSkipped
			res.Skipped++
		case selected == ir.CorrectOption:
			ir.Selected = &selected
			ir.Status = StatusCorrect
			ir.ScoreImpact = marks.Correct
			res.Correct++
		default:
			ir.Selected = &selected
			ir.Status = StatusIncorrect
			ir.ScoreImpact = marks.Negative
			res.Wrong++
		}
		res.Obtained = res.Obtained.Add(ir.ScoreImpact)
		res.Items = append(res.Items, ir)
	}

	res.Attempted = res.Correct + res.Wrong
	res.MaxScore = marks.Correct.Mul(decimal.NewFromInt(int64(res.Total)))
	res.Percentage = decimal.Zero
	if res.MaxScore.IsPositive() {
		res.Percentage = res.Obtained.Div(res.MaxScore).Mul(hundred).Round(2)
	}
	return res
}
