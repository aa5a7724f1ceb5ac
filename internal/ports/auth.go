package ports

// Package ports defines interfaces (hexagonal ports) for auth-related behavior.
// Implementations live in internal/adapters; orchestration in internal/service.

import (
	"context"
	"time"

	domainauth "github.com/tiwed/auth-api/internal/domain/auth"
	"github.com/tiwed/auth-api/internal/domain/model"
)

// TokenCodec encodes, signs, and verifies compact signed tokens.
// Issue and Verify are pure functions of their input and the server secret.
type TokenCodec interface {
	// Issue signs the claims with the given purpose and expiry = now + ttl.
	Issue(claims domainauth.Claims, purpose domainauth.TokenPurpose, ttl time.Duration) (string, error)

	// Verify checks the signature, structure, purpose, and expiry of a token
	// and returns the embedded claims. The signature check precedes the
	// expiry check.
	Verify(token string, purpose domainauth.TokenPurpose) (domainauth.Claims, error)
}

// ErrCacheMiss is returned by SessionCache.Get when a key is absent or
// expired; the two states are indistinguishable.
type cacheMissError struct{}

func (cacheMissError) Error() string { return "cache miss" }

var ErrCacheMiss error = cacheMissError{}

// SessionCache is a key/value store with per-key expiry used to record the
// single currently-valid token per (subject, purpose). TTL enforcement
// belongs to the store; absence after TTL is indistinguishable from an
// explicit delete and both mean "no active session".
type SessionCache interface {
	// Get returns the cached value, or ErrCacheMiss when absent or expired.
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// ResolveInput carries the federated-login material handed to a broker.
// Credential may be a provider authorization code or a pre-issued identity
// assertion; callers are not always able to label it correctly.
type ResolveInput struct {
	Credential  string
	RedirectURI string
}

// IdentityBroker disambiguates and validates federated-login material and
// returns a normalized identity. It never issues local tokens.
type IdentityBroker interface {
	Resolve(ctx context.Context, in ResolveInput) (domainauth.Identity, error)
}

// SecondFactor generates shared secrets and verifies time-windowed codes.
type SecondFactor interface {
	// GenerateSecret returns a new random base32 shared secret.
	GenerateSecret() (string, error)

	// Verify reports whether code matches the secret within the configured
	// time step and skew tolerance. No side effects and no rate limiting.
	Verify(secret, code string) bool

	// ProvisioningURI returns the otpauth:// enrollment URI for the secret.
	ProvisioningURI(account, secret string) (string, error)
}

// UserRepository persists and retrieves user records.
type UserRepository interface {
	FindByEmail(ctx context.Context, email string) (*model.User, error)
	FindByID(ctx context.Context, id string) (*model.User, error)
	FindByProvider(ctx context.Context, provider, providerID string) (*model.User, error)
	Create(ctx context.Context, req *model.CreateUserRequest) (*model.User, error)
	Update(ctx context.Context, id string, req *model.UpdateUserRequest) (*model.User, error)
}

// Mailer delivers one-time-token notifications. The core only supplies the
// recipient and the token string, never the transport.
type Mailer interface {
	SendEmailVerification(ctx context.Context, to, token string) error
	SendPasswordReset(ctx context.Context, to, token string) error
}
