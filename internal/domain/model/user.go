//revive:disable-next-line:var-naming // legacy package name widely used across the project
package model

import (
	"errors"
	"strings"
	"time"

	domainauth "github.com/tiwed/auth-api/internal/domain/auth"
)

const maxEmailLen = 254

// User represents a registered account. PasswordHash and MFASecret never
// leave the server; they are excluded from JSON serialization.
type User struct {
	ID              string          `json:"id"                   db:"id"`
	Email           string          `json:"email"                db:"email"`
	PasswordHash    *string         `json:"-"                    db:"password_hash"`
	FullName        string          `json:"fullName"             db:"full_name"`
	Role            domainauth.Role `json:"role"                 db:"role"`
	IsEmailVerified bool            `json:"isEmailVerified"      db:"is_email_verified"`
	IsActive        bool            `json:"isActive"             db:"is_active"`
	Provider        *string         `json:"provider,omitempty"   db:"provider"`
	ProviderID      *string         `json:"providerId,omitempty" db:"provider_id"`
	MFAEnabled      bool            `json:"mfaEnabled"           db:"mfa_enabled"`
	MFASecret       *string         `json:"-"                    db:"mfa_secret"`
	AvatarURL       *string         `json:"avatarUrl,omitempty"  db:"avatar_url"`
	CreatedAt       time.Time       `json:"createdAt"            db:"created_at"`
	UpdatedAt       time.Time       `json:"updatedAt"            db:"updated_at"`
}

// HasPassword reports whether the account has a local password set.
// Social-only accounts have none and must use federated login.
func (u *User) HasPassword() bool {
	return u.PasswordHash != nil && *u.PasswordHash != ""
}

// CreateUserRequest represents parameters to create a User.
type CreateUserRequest struct {
	Email           string
	PasswordHash    *string
	FullName        string
	Role            domainauth.Role
	IsEmailVerified bool
	Provider        *string
	ProviderID      *string
	AvatarURL       *string
}

// Validate checks required fields before persistence.
func (r *CreateUserRequest) Validate() error {
	email := strings.TrimSpace(r.Email)
	if email == "" {
		return errors.New("email is required")
	}
	if len(email) > maxEmailLen || !strings.Contains(email, "@") {
		return errors.New("email is invalid")
	}
	if strings.TrimSpace(r.FullName) == "" {
		return errors.New("full name is required")
	}
	if r.Role == "" {
		return errors.New("role is required")
	}
	return nil
}

// UpdateUserRequest represents a partial update to a User. Nil fields are
// left unchanged.
type UpdateUserRequest struct {
	FullName        *string
	PasswordHash    *string
	IsEmailVerified *bool
	Provider        *string
	ProviderID      *string
	MFAEnabled      *bool
	MFASecret       *string
	AvatarURL       *string
}

// Empty reports whether the update would change nothing.
func (r *UpdateUserRequest) Empty() bool {
	return r.FullName == nil && r.PasswordHash == nil && r.IsEmailVerified == nil &&
		r.Provider == nil && r.ProviderID == nil && r.MFAEnabled == nil &&
		r.MFASecret == nil && r.AvatarURL == nil
}
