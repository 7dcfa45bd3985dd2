package model

import "time"

// Instructor is a staff account. Admins are instructors with the admin flag;
// they additionally manage accounts.
type Instructor struct {
	ID           int       `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	IsAdmin      bool      `json:"is_admin"`
	CreatedAt    time.Time `json:"created_at"`
}

// InstructorLoginRequest is the payload for instructor/admin login.
type InstructorLoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=6"`
}
