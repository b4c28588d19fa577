package models

import (
	"time"

	"github.com/nexuscrm/salescrm/pkg/constants"
)

// UserSession is the authenticated caller, built from validated token claims.
type UserSession struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
	Role  string `json:"role"`
}

// IsAdmin reports whether the caller has the admin role.
func (u *UserSession) IsAdmin() bool {
	return u != nil && u.Role == constants.RoleAdmin
}

// UserProfile is a row of user_profiles.
type UserProfile struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	FullName     *string   `json:"full_name"`
	Role         string    `json:"role"`
	AvatarURL    *string   `json:"avatar_url"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// DisplayName falls back to the email when no full name is set.
func (p *UserProfile) DisplayName() string {
	if p.FullName != nil && *p.FullName != "" {
		return *p.FullName
	}
	return p.Email
}

// UpdateProfileInput is the PATCH /auth/me body.
type UpdateProfileInput struct {
	FullName  *string `json:"full_name" binding:"omitempty,max=200"`
	AvatarURL *string `json:"avatar_url" binding:"omitempty,max=2048"`
}

// RegisterInput is the POST /auth/register body.
type RegisterInput struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
	FullName string `json:"full_name" binding:"max=200"`
}

// LoginInput is the POST /auth/login body.
type LoginInput struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// AuthResult is returned by login and register.
type AuthResult struct {
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expires_at"`
	User      *UserProfile `json:"user"`
}
