package bootstrap

import (
	"context"

	domainauth "github.com/tiwed/auth-api/internal/domain/auth"
	apperrors "github.com/tiwed/auth-api/internal/errors"
	"github.com/tiwed/auth-api/internal/ports"
)

// disabledBroker rejects every federated login. Used when no provider
// client is configured so the endpoint fails cleanly instead of at wiring
// time.
type disabledBroker struct{}

var _ ports.IdentityBroker = disabledBroker{}

func (disabledBroker) Resolve(context.Context, ports.ResolveInput) (domainauth.Identity, error) {
	return domainauth.Identity{}, apperrors.Validation("federated login is not configured")
}
