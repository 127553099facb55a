package handlers

import (
	"time"

	"github.com/pribylovaa/go-session-auth/internal/models"
)

// SignupRequest — тело POST /api/auth/signup.
type SignupRequest struct {
	Name     string `json:"name"`
	Surname  string `json:"surname"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginRequest — тело POST /api/auth/login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// AuthResponse — ответ signup/login.
type AuthResponse struct {
	Token     string            `json:"token"`
	ExpiresAt time.Time         `json:"expires_at"`
	User      models.PublicUser `json:"user"`
}

// MeResponse — ответ GET /api/auth/me.
type MeResponse struct {
	User models.PublicUser `json:"user"`
}

func authFromResult(res *models.AuthResult) AuthResponse {
	return AuthResponse{
		Token:     res.Token,
		ExpiresAt: res.ExpiresAt,
		User:      res.User,
	}
}
