package models

import "time"

// Notification represents an event message targeted to a specific user, used
// to refresh dependent views when an evaluation is submitted.
type Notification struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    uint      `gorm:"not null;index" json:"user_id"`
	Type      string    `gorm:"size:64" json:"type"`
	Message   string    `gorm:"type:text" json:"message"`
	Read      bool      `gorm:"not null;default:false" json:"read"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NotificationTypeEvaluationSubmitted tags events emitted after a successful
// evaluation submit.
const NotificationTypeEvaluationSubmitted = "evaluation_submitted"
