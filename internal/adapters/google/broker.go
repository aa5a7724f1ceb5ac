package google

// Package google validates federated-login material against Google.
// The input is one opaque string that may be an authorization code or a
// pre-issued ID token; client SDKs are known to mislabel the field, so
// the broker disambiguates structurally rather than trusting the label.

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	gooidc "github.com/coreos/go-oidc/v3/oidc"
	domainauth "github.com/tiwed/auth-api/internal/domain/auth"
	"github.com/tiwed/auth-api/internal/ports"
	"golang.org/x/oauth2"
)

const (
	defaultTokenEndpoint   = "https://oauth2.googleapis.com/token"
	defaultJWKSURL         = "https://www.googleapis.com/oauth2/v3/certs"
	defaultExchangeTimeout = 10 * time.Second
)

var defaultIssuers = []string{"https://accounts.google.com", "accounts.google.com"}

var (
	// ErrInvalidCredential is returned when an identity assertion fails
	// signature, issuer, or audience verification.
	ErrInvalidCredential = errors.New("invalid external credential")
	// ErrExchangeFailed is returned when the code exchange with the
	// provider's token endpoint fails. Never retried here.
	ErrExchangeFailed = errors.New("external exchange failed")
	// ErrRedirectURIRequired is returned when the credential is an
	// authorization code but no redirect URI was supplied.
	ErrRedirectURIRequired = errors.New("redirect URI is required for an authorization code")
)

// Config holds broker configuration. Endpoint fields default to Google's
// published endpoints and exist so tests can stand in a local provider.
type Config struct {
	ClientID        string
	ClientSecret    string
	TokenEndpoint   string
	JWKSURL         string
	Issuers         []string
	HTTPClient      *http.Client // Optional, defaults to a 30s-timeout client
	ExchangeTimeout time.Duration
}

// Broker implements ports.IdentityBroker for Google. It never issues local
// tokens; it only produces a normalized identity for the caller to act on.
type Broker struct {
	cfg        Config
	httpClient *http.Client
	verifiers  []*gooidc.IDTokenVerifier
}

var _ ports.IdentityBroker = (*Broker)(nil)

// NewBroker validates configuration and builds verifiers over a shared
// remote key set. The key set is fetched lazily on first verification.
func NewBroker(cfg Config) (*Broker, error) {
	if cfg.ClientID == "" {
		return nil, errors.New("client ID is required")
	}
	if cfg.ClientSecret == "" {
		return nil, errors.New("client secret is required")
	}
	if cfg.TokenEndpoint == "" {
		cfg.TokenEndpoint = defaultTokenEndpoint
	}
	if cfg.JWKSURL == "" {
		cfg.JWKSURL = defaultJWKSURL
	}
	if len(cfg.Issuers) == 0 {
		cfg.Issuers = defaultIssuers
	}
	if cfg.ExchangeTimeout <= 0 {
		cfg.ExchangeTimeout = defaultExchangeTimeout
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}

	keyCtx := gooidc.ClientContext(context.Background(), httpClient)
	keySet := gooidc.NewRemoteKeySet(keyCtx, cfg.JWKSURL)

	verifiers := make([]*gooidc.IDTokenVerifier, 0, len(cfg.Issuers))
	for _, issuer := range cfg.Issuers {
		verifiers = append(verifiers, gooidc.NewVerifier(issuer, keySet, &gooidc.Config{
			ClientID: cfg.ClientID,
		}))
	}

	return &Broker{cfg: cfg, httpClient: httpClient, verifiers: verifiers}, nil
}

// Resolve disambiguates the credential, performs a code exchange when
// needed, verifies the resulting assertion, and returns the identity.
func (b *Broker) Resolve(ctx context.Context, in ports.ResolveInput) (domainauth.Identity, error) {
	credential := strings.TrimSpace(in.Credential)
	if credential == "" {
		return domainauth.Identity{}, fmt.Errorf("%w: empty credential", ErrInvalidCredential)
	}

	if looksLikeAssertion(credential) {
		return b.verifyAssertion(ctx, credential)
	}

	if in.RedirectURI == "" {
		return domainauth.Identity{}, ErrRedirectURIRequired
	}

	rawAssertion, err := b.exchangeCode(ctx, credential, in.RedirectURI)
	if err != nil {
		return domainauth.Identity{}, err
	}
	return b.verifyAssertion(ctx, rawAssertion)
}

// looksLikeAssertion reports whether the string is structurally a signed
// assertion: at least two dot separators, and either the standard compact
// JWT preamble or exactly three segments. Anything else is treated as an
// authorization code. Known compatibility shim; see the provider SDK
// mislabeling note above.
func looksLikeAssertion(raw string) bool {
	if strings.Count(raw, ".") < 2 {
		return false
	}
	return strings.HasPrefix(raw, "eyJ") || len(strings.Split(raw, ".")) == 3
}

// exchangeCode trades an authorization code for the provider's token
// response and extracts the identity assertion from it. The network call
// carries an explicit timeout and is never retried.
func (b *Broker) exchangeCode(ctx context.Context, code, redirectURI string) (string, error) {
	conf := &oauth2.Config{
		ClientID:     b.cfg.ClientID,
		ClientSecret: b.cfg.ClientSecret,
		RedirectURL:  redirectURI,
		Endpoint:     oauth2.Endpoint{TokenURL: b.cfg.TokenEndpoint},
	}

	ctx, cancel := context.WithTimeout(ctx, b.cfg.ExchangeTimeout)
	defer cancel()
	ctx = context.WithValue(ctx, oauth2.HTTPClient, b.httpClient)

	token, err := conf.Exchange(ctx, code)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrExchangeFailed, err)
	}

	raw, ok := token.Extra("id_token").(string)
	if !ok || raw == "" {
		return "", fmt.Errorf("%w: token response carries no id_token", ErrExchangeFailed)
	}
	return raw, nil
}

// idTokenClaims is the subset of provider claims the broker consumes.
type idTokenClaims struct {
	Subject       string `json:"sub"`
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	Name          string `json:"name"`
	Picture       string `json:"picture"`
}

// verifyAssertion checks the assertion against the provider's signing keys
// for each known issuer value, constrained to this application's audience.
func (b *Broker) verifyAssertion(ctx context.Context, raw string) (domainauth.Identity, error) {
	ctx = gooidc.ClientContext(ctx, b.httpClient)

	var lastErr error
	for _, verifier := range b.verifiers {
		idToken, err := verifier.Verify(ctx, raw)
		if err != nil {
			lastErr = err
			continue
		}

		var claims idTokenClaims
		if claimsErr := idToken.Claims(&claims); claimsErr != nil {
			return domainauth.Identity{}, fmt.Errorf("%w: parse claims: %v", ErrInvalidCredential, claimsErr)
		}
		if claims.Subject == "" {
			return domainauth.Identity{}, fmt.Errorf("%w: assertion carries no subject", ErrInvalidCredential)
		}

		return domainauth.Identity{
			ProviderID:    claims.Subject,
			Email:         claims.Email,
			EmailVerified: claims.EmailVerified,
			Name:          claims.Name,
			Picture:       claims.Picture,
		}, nil
	}

	return domainauth.Identity{}, fmt.Errorf("%w: %v", ErrInvalidCredential, lastErr)
}
