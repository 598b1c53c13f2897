package model_test

import (
	"testing"

	"mocktest_backend/internal/model"

	"github.com/stretchr/testify/assert"
)

func TestMockTestTable(t *testing.T) {
	test := model.MockTest{Name: "Mock", IndividualMarks: 4, NegativeMarking: -1, Duration: 180}
	test.EnsureID()

	assert.Equal(t, "mock_tests", test.TableName())
	assert.NotEmpty(t, test.ID)
}

func TestQuestionPublicHidesAnswer(t *testing.T) {
	q := model.Question{
		TestID:   "t-1",
		Question: "2+2",
		Options:  []string{"3", "4", "5", "6"},
		Answer:   1,
		Subjects: []string{"maths"},
	}
	q.EnsureID()

	pub := q.Public()
	assert.Equal(t, q.ID, pub.ID)
	assert.Equal(t, []string{"3", "4", "5", "6"}, pub.Options)
	assert.Equal(t, "maths", q.PrimarySubject())

	pub.Options[0] = "changed"
	assert.Equal(t, "3", q.Options[0], "the public view owns its slices")
}
