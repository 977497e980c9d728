// Package model defines data structures and request schemas for the gateway.
package model

import (
	"time"
)

// User is an identity record as held by storage.
type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	FullName     *string   `json:"fullName,omitempty"`
	Avatar       *string   `json:"avatar,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// PublicUser is the only user shape written to clients.
type PublicUser struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Username  string    `json:"username"`
	FullName  *string   `json:"fullName,omitempty"`
	Avatar    *string   `json:"avatar,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Public strips the password hash from a user.
func (u *User) Public() *PublicUser {
	if u == nil {
		return nil
	}
	return &PublicUser{
		ID:        u.ID,
		Email:     u.Email,
		Username:  u.Username,
		FullName:  u.FullName,
		Avatar:    u.Avatar,
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
	}
}

// RegisterRequest is the request to create a new account.
type RegisterRequest struct {
	Email    string  `json:"email" validate:"required,email"`
	Username string  `json:"username" validate:"required,min=3,max=50"`
	Password string  `json:"password" validate:"required,min=6,max=72,maxbytes=72"`
	FullName *string `json:"fullName,omitempty" validate:"omitempty,max=100"`
}

// LoginRequest is the request to log in with email and password.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// UpdateUserRequest carries the profile fields a user may change.
// Nil fields are left untouched.
type UpdateUserRequest struct {
	FullName *string `json:"fullName,omitempty" validate:"omitempty,max=100"`
	Avatar   *string `json:"avatar,omitempty" validate:"omitempty,url,max=2048"`
}

// ChangePasswordRequest is the request to replace the current password.
type ChangePasswordRequest struct {
	CurrentPassword string `json:"currentPassword" validate:"required"`
	NewPassword     string `json:"newPassword" validate:"required,min=6,max=72,maxbytes=72"`
}

// AuthResponse is returned after registration and login.
type AuthResponse struct {
	User  *PublicUser `json:"user"`
	Token string      `json:"token"`
}
