package models

import "time"

// Login outcomes recorded in the audit trail
const (
	LoginOutcomeSuccess = "success"
	LoginOutcomeFailed  = "failed"
)

// LoginEvent records the outcome of a single OAuth callback. It never holds
// the authorization code, the provider credential or the session token.
type LoginEvent struct {
	ID         int64     `json:"id" gorm:"primaryKey;autoIncrement"`
	ExternalID *string   `json:"external_id,omitempty" gorm:"column:external_id"`
	Outcome    string    `json:"outcome" gorm:"not null"`
	ErrorKind  *string   `json:"error_kind,omitempty" gorm:"column:error_kind"`
	RemoteAddr *string   `json:"remote_addr,omitempty" gorm:"column:remote_addr"`
	CreatedAt  time.Time `json:"created_at"`
}

// TableName specifies the table name for LoginEvent
func (LoginEvent) TableName() string {
	return "login_events"
}
