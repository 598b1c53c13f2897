package model

import (
	"time"

	"gorm.io/datatypes"
)

type SubmitReason string

const (
	SubmitManual  SubmitReason = "manual"
	SubmitTimeout SubmitReason = "timeout"
)

// TestAttempt is the stored outcome of one submitted session.
type TestAttempt struct {
	UUIDBase        `bson:",inline"`
	TestID          string                      `gorm:"index;type:varchar(36);not null" json:"testId" bson:"testId"`
	CandidateID     string                      `gorm:"index;size:64;not null" json:"candidateId" bson:"candidateId"`
	Title           string                      `gorm:"size:255" json:"title" bson:"title"`
	QuestionIDs     datatypes.JSONSlice[string] `json:"questionIds" bson:"questionIds"`
	Answers         datatypes.JSONMap           `json:"answers" bson:"answers"`
	IndividualMarks float64                     `json:"individualMarks" bson:"individualMarks"`
	NegativeMarking float64                     `json:"negativeMarking" bson:"negativeMarking"`
	Correct         int                         `json:"correct" bson:"correct"`
	Wrong           int                         `json:"wrong" bson:"wrong"`
	Skipped         int                         `json:"skipped" bson:"skipped"`
	Score           float64                     `json:"score" bson:"score"`
	Reason          SubmitReason                `gorm:"size:16" json:"reason" bson:"reason"`
	StartedAt       time.Time                   `json:"startedAt" bson:"startedAt"`
	SubmittedAt     time.Time                   `json:"submittedAt" bson:"submittedAt"`
}

func (TestAttempt) TableName() string {
	return "test_attempts"
}

// AnswerMap converts the stored JSON map back to question id -> option text.
func (a *TestAttempt) AnswerMap() map[string]string {
	out := make(map[string]string, len(a.Answers))
	for k, v := range a.Answers {
		if s, ok := v.(string); ok {
			out[k] = s
		}
	}
	return out
}
