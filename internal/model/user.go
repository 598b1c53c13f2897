package model

type UserRole string

const (
	Candidate UserRole = "candidate"
	Admin     UserRole = "admin"
)

// swagger:model User
type User struct {
	UUIDBase `bson:",inline"`
	Username string   `gorm:"size:100;uniqueIndex;not null" json:"username" bson:"username"`
	Password string   `gorm:"size:100;not null" json:"-" bson:"password"`
	Role     UserRole `gorm:"size:20;not null;default:'admin'" json:"role" bson:"role"`
}

func (User) TableName() string {
	return "users"
}
