package model

// MockTest is a test definition. NegativeMarking is added per wrong answer,
// so a penalty is stored as a negative number.
// swagger:model MockTest
type MockTest struct {
	UUIDBase        `bson:",inline"`
	Name            string  `gorm:"size:255;not null" json:"name" bson:"name" binding:"required"`
	IndividualMarks float64 `gorm:"not null;default:1" json:"individualMarks" bson:"individualMarks" binding:"gte=0"`
	NegativeMarking float64 `gorm:"not null;default:0" json:"negativeMarking" bson:"negativeMarking"`
	Duration        int     `gorm:"not null" json:"duration" bson:"duration" binding:"required,gt=0"` // minutes
}

func (MockTest) TableName() string {
	return "mock_tests"
}
