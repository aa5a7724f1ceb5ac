package jwt

// Package jwt implements the signed-token codec on top of golang-jwt.
// Tokens are HS256-signed compact JWTs carrying a purpose claim; a token
// presented for the wrong purpose fails verification the same way a
// tampered one does.

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	domainauth "github.com/tiwed/auth-api/internal/domain/auth"
)

const minSecretLen = 32

var (
	// ErrTokenInvalid is returned on signature mismatch, malformed
	// structure, unparsable claims, or purpose mismatch.
	ErrTokenInvalid = errors.New("token invalid")
	// ErrTokenExpired is returned when the token is well-formed and
	// correctly signed but past its embedded expiry.
	ErrTokenExpired = errors.New("token expired")
)

// Config holds codec configuration. Instances are immutable after NewCodec.
type Config struct {
	// Secret is the server-held HMAC key. Must be at least 32 bytes.
	Secret []byte
	// Issuer is embedded in and required of every token when non-empty.
	Issuer string
	// Leeway tolerated on expiry checks. Must be small; zero is fine.
	Leeway time.Duration
}

// Codec issues and verifies signed tokens. Safe for concurrent use.
type Codec struct {
	cfg    Config
	parser *jwt.Parser
}

// tokenClaims is the wire shape of the claim set.
type tokenClaims struct {
	UserID  string `json:"uid"`
	Role    string `json:"role,omitempty"`
	Email   string `json:"email,omitempty"`
	Purpose string `json:"purpose"`
	jwt.RegisteredClaims
}

// NewCodec validates the configuration and returns a ready codec.
func NewCodec(cfg Config) (*Codec, error) {
	if len(cfg.Secret) < minSecretLen {
		return nil, fmt.Errorf("token secret must be at least %d bytes", minSecretLen)
	}
	if cfg.Leeway < 0 || cfg.Leeway > 2*time.Minute {
		return nil, errors.New("invalid leeway configuration")
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithLeeway(cfg.Leeway),
		jwt.WithExpirationRequired(),
	}
	if cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(cfg.Issuer))
	}

	return &Codec{cfg: cfg, parser: jwt.NewParser(opts...)}, nil
}

// Issue signs the claims for the given purpose with expiry = now + ttl.
// It has no side effects beyond reading the clock and entropy pool.
func (c *Codec) Issue(
	claims domainauth.Claims,
	purpose domainauth.TokenPurpose,
	ttl time.Duration,
) (string, error) {
	if claims.UserID == "" {
		return "", errors.New("claims require a subject")
	}
	if !purpose.Valid() {
		return "", fmt.Errorf("unknown token purpose %q", purpose)
	}
	if ttl <= 0 {
		return "", errors.New("ttl must be positive")
	}

	now := time.Now()
	tc := tokenClaims{
		UserID:  claims.UserID,
		Role:    string(claims.Role),
		Email:   claims.Email,
		Purpose: string(purpose),
		RegisteredClaims: jwt.RegisteredClaims{
			// jti makes every issued token unique even within one clock
			// second, so rotation always produces a distinct string.
			ID:        uuid.NewString(),
			Subject:   claims.UserID,
			Issuer:    c.cfg.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, tc)
	signed, err := token.SignedString(c.cfg.Secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Verify checks signature, structure, issuer, expiry, and purpose, and
// returns the embedded claims. golang-jwt verifies the signature before
// validating time claims, so a forged token never reports as "expired".
func (c *Codec) Verify(token string, purpose domainauth.TokenPurpose) (domainauth.Claims, error) {
	var tc tokenClaims
	parsed, err := c.parser.ParseWithClaims(token, &tc, func(t *jwt.Token) (any, error) {
		return c.cfg.Secret, nil
	})
	if err != nil {
		return domainauth.Claims{}, mapParseError(err)
	}
	if !parsed.Valid {
		return domainauth.Claims{}, ErrTokenInvalid
	}

	if tc.Purpose != string(purpose) {
		return domainauth.Claims{}, fmt.Errorf("%w: purpose mismatch", ErrTokenInvalid)
	}
	if tc.UserID == "" {
		return domainauth.Claims{}, fmt.Errorf("%w: missing subject", ErrTokenInvalid)
	}

	out := domainauth.Claims{
		UserID:  tc.UserID,
		Role:    domainauth.Role(tc.Role),
		Email:   tc.Email,
		Purpose: domainauth.TokenPurpose(tc.Purpose),
	}
	if tc.IssuedAt != nil {
		out.IssuedAt = tc.IssuedAt.Time
	}
	if tc.ExpiresAt != nil {
		out.ExpiresAt = tc.ExpiresAt.Time
	}
	return out, nil
}

// mapParseError collapses golang-jwt errors into the codec's two sentinels.
// Expiry is only reported for tokens whose signature already verified.
func mapParseError(err error) error {
	if errors.Is(err, jwt.ErrTokenExpired) && !errors.Is(err, jwt.ErrTokenSignatureInvalid) {
		return fmt.Errorf("%w: %s", ErrTokenExpired, "exp elapsed")
	}
	return fmt.Errorf("%w: %v", ErrTokenInvalid, err)
}
