package models

import "time"

// User represents a testaustime account
type User struct {
	ID         int       `json:"id" gorm:"primaryKey;autoIncrement"`
	Username   string    `json:"username" gorm:"uniqueIndex;not null"`
	ExternalID *string   `json:"-" gorm:"column:external_id;uniqueIndex"` // TestausID user id
	PlatformID *string   `json:"platform_id,omitempty" gorm:"column:platform_id"`
	AuthToken  string    `json:"-" gorm:"column:auth_token;uniqueIndex;not null"` // Never expose the session token in JSON
	CreatedAt  time.Time `json:"created_at"`
}

// TableName specifies the table name for User
func (User) TableName() string {
	return "users"
}
