package devauth

// Package devauth provides a config-driven IdentityBroker for local
// development. It accepts any non-empty credential and returns the
// configured identity, so social-login flows can be exercised without a
// real provider registration.

import (
	"context"
	"errors"

	domainauth "github.com/tiwed/auth-api/internal/domain/auth"
	"github.com/tiwed/auth-api/internal/ports"
)

// Config controls the dev broker's fixed identity.
type Config struct {
	ProviderID string // default "dev-user"
	Email      string
	Name       string
}

// Broker implements ports.IdentityBroker for local development. Resolve
// skips all verification and returns the configured identity.
type Broker struct {
	identity domainauth.Identity
}

var _ ports.IdentityBroker = (*Broker)(nil)

// NewBroker constructs a dev broker from Config.
func NewBroker(cfg Config) (*Broker, error) {
	if cfg.Email == "" {
		return nil, errors.New("dev auth: Email is required")
	}
	providerID := cfg.ProviderID
	if providerID == "" {
		providerID = "dev-user"
	}
	return &Broker{
		identity: domainauth.Identity{
			ProviderID:    providerID,
			Email:         cfg.Email,
			EmailVerified: true,
			Name:          cfg.Name,
		},
	}, nil
}

// Resolve ignores the credential content but still rejects an empty one,
// matching the contract callers rely on.
func (b *Broker) Resolve(_ context.Context, in ports.ResolveInput) (domainauth.Identity, error) {
	if in.Credential == "" {
		return domainauth.Identity{}, errors.New("dev auth: credential is required")
	}
	return b.identity, nil
}
