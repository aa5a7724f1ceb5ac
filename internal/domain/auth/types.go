package auth

// Package auth contains domain-level types for tokens, sessions, and
// federated identities. It is pure and free of framework/adapter concerns.

import "time"

// Role represents an application's authorization role.
// Keep string form for easy persistence and token claims.
type Role string

const (
	RoleAdmin Role = "ADMIN"
	RoleUser  Role = "USER"
)

// TokenPurpose tags a signed token with what it may be used for.
// A token presented for a purpose it was not issued with fails verification.
type TokenPurpose string

const (
	// PurposeAccess is a short-lived credential presented on API requests.
	PurposeAccess TokenPurpose = "access"
	// PurposeRefresh is a long-lived credential used only to mint new pairs.
	PurposeRefresh TokenPurpose = "refresh"
	// PurposeEmailVerify is a single-use token mailed at registration.
	PurposeEmailVerify TokenPurpose = "verify"
	// PurposePasswordReset is a single-use token mailed on forgot-password.
	PurposePasswordReset TokenPurpose = "reset"
)

// Valid reports whether the purpose is one this system issues.
func (p TokenPurpose) Valid() bool {
	switch p {
	case PurposeAccess, PurposeRefresh, PurposeEmailVerify, PurposePasswordReset:
		return true
	default:
		return false
	}
}

// CacheKey returns the session-cache key for this purpose and subject,
// e.g. "refresh:42". At most one token per key is valid at any time.
func (p TokenPurpose) CacheKey(userID string) string {
	return string(p) + ":" + userID
}

// Claims is the claim set carried inside a signed token. Immutable once
// issued; verified, never mutated.
type Claims struct {
	UserID    string
	Role      Role
	Email     string
	Purpose   TokenPurpose
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// TokenPair is an access/refresh token pair minted together.
type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// Identity represents the verified principal returned by a federated
// identity provider. Ephemeral: consumed once to find-or-create a local
// user, never persisted as-is.
type Identity struct {
	ProviderID    string // provider subject id ("sub")
	Email         string
	EmailVerified bool
	Name          string
	Picture       string
}

// Principal is the resolved identity bound to a request context after
// the guard admits it.
type Principal struct {
	UserID string
	Role   Role
}

// IsAdmin reports whether the principal carries the admin role.
func (p Principal) IsAdmin() bool { return p.Role == RoleAdmin }
