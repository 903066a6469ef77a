package models

import "time"

// User is a stored account. PasswordHash never leaves the service.
type User struct {
	ID           int       `db:"id" json:"id"`
	Email        string    `db:"email" json:"email"`
	PasswordHash string    `db:"password_hash" json:"-"`
	DisplayName  string    `db:"display_name" json:"display_name"`
	PhotoURL     string    `db:"photo_url" json:"photo_url"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}

// UserProfile is the public snapshot of a user embedded into messages and
// returned alongside auth tokens.
type UserProfile struct {
	ID          int    `json:"id"`
	Email       string `json:"email"`
	DisplayName string `json:"display_name"`
	PhotoURL    string `json:"photo_url"`
}

// Profile returns the public snapshot of the user.
func (u User) Profile() UserProfile {
	return UserProfile{
		ID:          u.ID,
		Email:       u.Email,
		DisplayName: u.DisplayName,
		PhotoURL:    u.PhotoURL,
	}
}
