package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	domainauth "github.com/tiwed/auth-api/internal/domain/auth"
	"github.com/tiwed/auth-api/internal/domain/model"
	"github.com/tiwed/auth-api/internal/ports"
)

const (
	defaultAccessTTL  = 15 * time.Minute
	defaultRefreshTTL = 7 * 24 * time.Hour
)

var (
	// ErrSessionRevoked is raised when a structurally valid token is not
	// the one currently recorded for its subject: reuse after rotation,
	// a token from a revoked session, or a stale token after logout.
	ErrSessionRevoked = errors.New("session revoked")

	// ErrOneTimeTokenInvalid is raised when a reset/verify token does not
	// match the cached copy, including replay after consumption.
	ErrOneTimeTokenInvalid = errors.New("one-time token invalid or already used")
)

// TokenAuthorityOptions groups dependencies for TokenAuthority.
type TokenAuthorityOptions struct {
	Codec      ports.TokenCodec
	Cache      ports.SessionCache
	AccessTTL  time.Duration // defaults to 15m
	RefreshTTL time.Duration // defaults to 7d
	Logger     *slog.Logger
}

// TokenAuthority issues, verifies, and revokes bearer credentials and owns
// the session-record lifecycle in the cache. At most one token per
// (subject, purpose) is valid at any time; issuing overwrites, revoking
// deletes, and verification cross-checks the cached copy.
type TokenAuthority struct {
	codec      ports.TokenCodec
	cache      ports.SessionCache
	accessTTL  time.Duration
	refreshTTL time.Duration
	logger     *slog.Logger
}

// NewTokenAuthority constructs a TokenAuthority. One instance per process,
// shared by the guard and the authentication service.
func NewTokenAuthority(opts TokenAuthorityOptions) *TokenAuthority {
	if opts.AccessTTL <= 0 {
		opts.AccessTTL = defaultAccessTTL
	}
	if opts.RefreshTTL <= 0 {
		opts.RefreshTTL = defaultRefreshTTL
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &TokenAuthority{
		codec:      opts.Codec,
		cache:      opts.Cache,
		accessTTL:  opts.AccessTTL,
		refreshTTL: opts.RefreshTTL,
		logger:     logger,
	}
}

// claimsFor builds the claim set embedded in tokens for a user.
func claimsFor(user *model.User) domainauth.Claims {
	return domainauth.Claims{
		UserID: user.ID,
		Role:   user.Role,
		Email:  user.Email,
	}
}

// IssueAccessToken issues a short-lived access token and records it as the
// only valid access token for the user. Any prior access token stops
// verifying against the cache the moment the new one is written.
func (a *TokenAuthority) IssueAccessToken(ctx context.Context, user *model.User) (string, error) {
	token, err := a.codec.Issue(claimsFor(user), domainauth.PurposeAccess, a.accessTTL)
	if err != nil {
		return "", fmt.Errorf("issue access token: %w", err)
	}

	key := domainauth.PurposeAccess.CacheKey(user.ID)
	if err := a.cache.Set(ctx, key, token, a.accessTTL); err != nil {
		return "", fmt.Errorf("record access token: %w", err)
	}
	return token, nil
}

// IssueRefreshToken invalidates any prior refresh session and issues a new
// long-lived refresh token. The delete runs unconditionally before the
// write: a crash between the two leaves no valid session rather than two.
func (a *TokenAuthority) IssueRefreshToken(ctx context.Context, user *model.User) (string, error) {
	key := domainauth.PurposeRefresh.CacheKey(user.ID)
	if err := a.cache.Delete(ctx, key); err != nil {
		return "", fmt.Errorf("invalidate prior refresh session: %w", err)
	}

	token, err := a.codec.Issue(claimsFor(user), domainauth.PurposeRefresh, a.refreshTTL)
	if err != nil {
		return "", fmt.Errorf("issue refresh token: %w", err)
	}

	if err := a.cache.Set(ctx, key, token, a.refreshTTL); err != nil {
		return "", fmt.Errorf("record refresh token: %w", err)
	}
	return token, nil
}

// IssuePair mints a fresh access+refresh pair for a user.
func (a *TokenAuthority) IssuePair(ctx context.Context, user *model.User) (domainauth.TokenPair, error) {
	access, err := a.IssueAccessToken(ctx, user)
	if err != nil {
		return domainauth.TokenPair{}, err
	}
	refresh, err := a.IssueRefreshToken(ctx, user)
	if err != nil {
		return domainauth.TokenPair{}, err
	}
	return domainauth.TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

// CheckRefresh verifies a refresh token's signature, expiry, and
// currency against the cache and returns its claims. The presented
// token must both verify and equal the cached copy. CheckRefresh does
// not mint or invalidate anything; rotation happens when the caller
// issues the next pair, whose delete-then-set supersedes this token.
// Failures surface as ErrSessionRevoked or a codec error; the
// distinction is for logs only.
func (a *TokenAuthority) CheckRefresh(ctx context.Context, refreshToken string) (domainauth.Claims, error) {
	claims, err := a.codec.Verify(refreshToken, domainauth.PurposeRefresh)
	if err != nil {
		return domainauth.Claims{}, fmt.Errorf("verify refresh token: %w", err)
	}

	key := domainauth.PurposeRefresh.CacheKey(claims.UserID)
	cached, err := a.cache.Get(ctx, key)
	if err != nil || cached != refreshToken {
		a.logger.InfoContext(ctx, "refresh token rejected",
			slog.String("user_id", claims.UserID),
			slog.Bool("cache_miss", err != nil))
		return domainauth.Claims{}, ErrSessionRevoked
	}

	return claims, nil
}

// VerifyAccess checks an access token's signature, expiry, and currency
// against the cache and returns the resolved principal. Read-only: it
// never extends expiry or mutates the cache.
func (a *TokenAuthority) VerifyAccess(ctx context.Context, token string) (domainauth.Principal, error) {
	claims, err := a.codec.Verify(token, domainauth.PurposeAccess)
	if err != nil {
		return domainauth.Principal{}, fmt.Errorf("verify access token: %w", err)
	}

	key := domainauth.PurposeAccess.CacheKey(claims.UserID)
	cached, err := a.cache.Get(ctx, key)
	if err != nil || cached != token {
		return domainauth.Principal{}, ErrSessionRevoked
	}

	return domainauth.Principal{UserID: claims.UserID, Role: claims.Role}, nil
}

// IssueOneTimeToken issues a single-use token for password reset or email
// verification and records it under its own keyspace.
func (a *TokenAuthority) IssueOneTimeToken(
	ctx context.Context,
	user *model.User,
	purpose domainauth.TokenPurpose,
	ttl time.Duration,
) (string, error) {
	if purpose != domainauth.PurposeEmailVerify && purpose != domainauth.PurposePasswordReset {
		return "", fmt.Errorf("purpose %q is not a one-time purpose", purpose)
	}

	token, err := a.codec.Issue(claimsFor(user), purpose, ttl)
	if err != nil {
		return "", fmt.Errorf("issue %s token: %w", purpose, err)
	}

	if err := a.cache.Set(ctx, purpose.CacheKey(user.ID), token, ttl); err != nil {
		return "", fmt.Errorf("record %s token: %w", purpose, err)
	}
	return token, nil
}

// ConsumeOneTimeToken verifies a single-use token, compares it to the
// cached copy, and deletes the cache entry on success. A consumed token
// cannot be replayed even inside its TTL window.
func (a *TokenAuthority) ConsumeOneTimeToken(
	ctx context.Context,
	token string,
	purpose domainauth.TokenPurpose,
) (domainauth.Claims, error) {
	claims, err := a.codec.Verify(token, purpose)
	if err != nil {
		return domainauth.Claims{}, fmt.Errorf("verify %s token: %w", purpose, err)
	}

	key := purpose.CacheKey(claims.UserID)
	cached, err := a.cache.Get(ctx, key)
	if err != nil || cached != token {
		return domainauth.Claims{}, ErrOneTimeTokenInvalid
	}

	if err := a.cache.Delete(ctx, key); err != nil {
		return domainauth.Claims{}, fmt.Errorf("consume %s token: %w", purpose, err)
	}
	return claims, nil
}

// RevokeAll deletes the user's access and refresh session records. Called
// on logout and password change; previously issued tokens keep verifying
// cryptographically but no longer match any cached session.
func (a *TokenAuthority) RevokeAll(ctx context.Context, userID string) error {
	if err := a.cache.Delete(ctx, domainauth.PurposeAccess.CacheKey(userID)); err != nil {
		return fmt.Errorf("revoke access session: %w", err)
	}
	if err := a.cache.Delete(ctx, domainauth.PurposeRefresh.CacheKey(userID)); err != nil {
		return fmt.Errorf("revoke refresh session: %w", err)
	}
	return nil
}
