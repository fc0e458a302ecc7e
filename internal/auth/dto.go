package auth

import (
	"github.com/lumera-social/lumera-backend/internal/users"
)

// LoginRequest is the payload for credential-based login.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// LoginResponse carries the access token and the authenticated user.
type LoginResponse struct {
	AccessToken string         `json:"access_token"`
	User        *users.UserDTO `json:"user"`
}

// RegisterResponse carries the freshly created user.
type RegisterResponse struct {
	User *users.UserDTO `json:"user"`
}
