// internal/models/user.go
package models

import (
	"time"
)

type User struct {
	ID          string    `json:"id"`
	FirstName   string    `json:"first_name"`
	LastName    string    `json:"last_name"`
	Email       string    `json:"email"`
	PhoneNumber string    `json:"phone_number"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Contact is what a registrant submits about themselves; it resolves to a User.
type Contact struct {
	FirstName   string
	LastName    string
	Email       string
	PhoneNumber string
}
