package models

import "time"

// Student represents a platform user that can join groups and evaluate peers.
type Student struct {
	ID              uint      `gorm:"primaryKey" json:"id"`
	FirstName       string    `gorm:"size:255;not null" json:"first_name"`
	LastName        string    `gorm:"size:255;not null" json:"last_name"`
	Email           string    `gorm:"size:255;uniqueIndex;not null" json:"email"`
	ProfileImageURL string    `gorm:"size:512" json:"profile_image_url"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// FullName joins the student's first and last name for display.
func (s Student) FullName() string {
	if s.FirstName == "" {
		return s.LastName
	}
	if s.LastName == "" {
		return s.FirstName
	}
	return s.FirstName + " " + s.LastName
}
