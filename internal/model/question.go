package model

import "gorm.io/datatypes"

type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

// OptionCount is the fixed number of options on every question.
const OptionCount = 4

// swagger:model Question
type Question struct {
	UUIDBase   `bson:",inline"`
	TestID     string                      `gorm:"index;type:varchar(36);not null" json:"testId" bson:"testId" validate:"required"`
	Question   string                      `gorm:"type:text;not null" json:"question" bson:"question" validate:"required"`
	Options    datatypes.JSONSlice[string] `gorm:"not null" json:"options" bson:"options" validate:"len=4,dive,required"`
	Answer     int                         `gorm:"not null" json:"answer" bson:"answer" validate:"gte=0,lte=3"`
	Difficulty Difficulty                  `gorm:"size:10;not null;default:'easy'" json:"difficulty" bson:"difficulty" validate:"oneof=easy medium hard"`
	Subjects   datatypes.JSONSlice[string] `json:"subjects" bson:"subjects"`
	ImageURL   *string                     `gorm:"size:512" json:"imageUrl" bson:"imageUrl"`
}

func (Question) TableName() string {
	return "questions"
}

// PrimarySubject is the first subject tag, or "" when the question has none.
func (q *Question) PrimarySubject() string {
	if len(q.Subjects) == 0 {
		return ""
	}
	return q.Subjects[0]
}

// PublicQuestion is what a candidate sees while an attempt is running.
type PublicQuestion struct {
	ID         string     `json:"_id"`
	Question   string     `json:"question"`
	Options    []string   `json:"options"`
	Difficulty Difficulty `json:"difficulty"`
	Subjects   []string   `json:"subjects"`
	ImageURL   *string    `json:"imageUrl"`
}

func (q *Question) Public() PublicQuestion {
	return PublicQuestion{
		ID:         q.ID,
		Question:   q.Question,
		Options:    append([]string(nil), q.Options...),
		Difficulty: q.Difficulty,
		Subjects:   append([]string(nil), q.Subjects...),
		ImageURL:   q.ImageURL,
	}
}
