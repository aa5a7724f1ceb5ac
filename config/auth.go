package config

import "time"

// TokenConfig controls signed-token issuance.
type TokenConfig struct {
	// Secret is the HMAC signing key. Must be at least 32 bytes.
	Secret string `env:"SECRET,required"`

	// Issuer is embedded in every issued token.
	Issuer string `env:"ISSUER" envDefault:"tiwed-auth"`

	// AccessTTL is the access-token lifetime.
	AccessTTL time.Duration `env:"ACCESS_TTL" envDefault:"15m"`

	// RefreshTTL is the refresh-token lifetime.
	RefreshTTL time.Duration `env:"REFRESH_TTL" envDefault:"168h"`
}

// GoogleConfig contains the federated-login client registration.
type GoogleConfig struct {
	ClientID     string `env:"CLIENT_ID"`
	ClientSecret string `env:"CLIENT_SECRET"`
}

// Enabled reports whether Google federated login is configured.
func (g GoogleConfig) Enabled() bool {
	return g.ClientID != "" && g.ClientSecret != ""
}

// MFAConfig controls TOTP second-factor settings.
type MFAConfig struct {
	// Issuer appears in authenticator apps next to the account label.
	Issuer string `env:"ISSUER" envDefault:"Tiwed"`

	// EncryptionKey protects stored TOTP secrets at rest. Must be exactly
	// 32 bytes when set; empty stores secrets with a noop marker.
	EncryptionKey string `env:"ENCRYPTION_KEY"`
}

// AuthConfig groups all authentication-related configuration.
type AuthConfig struct {
	Token  TokenConfig  `envPrefix:"TOKEN_"`
	Google GoogleConfig `envPrefix:"GOOGLE_"`
	MFA    MFAConfig    `envPrefix:"MFA_"`

	// DevEmail enables the development identity broker in dev mode:
	// social login resolves every credential to this address.
	DevEmail string `env:"DEV_EMAIL"`
}

// Sanitize applies guardrails to auth configuration values.
func (a *AuthConfig) Sanitize() {
	if a.Token.AccessTTL <= 0 {
		a.Token.AccessTTL = 15 * time.Minute
	}
	if a.Token.RefreshTTL <= 0 {
		a.Token.RefreshTTL = 7 * 24 * time.Hour
	}
	// The refresh token must outlive the access token or rotation is moot.
	if a.Token.RefreshTTL < a.Token.AccessTTL {
		a.Token.RefreshTTL = a.Token.AccessTTL
	}
}
