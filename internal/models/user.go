package models

// User is a registered account. Users are never deleted by the application.
type User struct {
	BaseModel

	Email    string `gorm:"type:varchar(255);uniqueIndex;not null" json:"email"`
	Password string `gorm:"not null" json:"-"`
}
