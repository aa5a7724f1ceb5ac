package totp

// Package totp implements the time-based second factor on pquerna/otp.
// The challenge is stateless: the shared secret lives on the user record
// and rate limiting is a collaborator concern.

import (
	"crypto/rand"
	"encoding/base32"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
)

const secretBytes = 20 // 160-bit secrets per RFC 4226

var b32 = base32.StdEncoding.WithPadding(base32.NoPadding)

// Challenge generates shared secrets and verifies submitted codes.
// The zero value is not usable; construct with NewChallenge.
type Challenge struct {
	issuer string
	opts   totp.ValidateOpts
}

// NewChallenge returns a challenge with a 30s step, 6 digits, and one
// step of clock-skew tolerance either side.
func NewChallenge(issuer string) *Challenge {
	return &Challenge{
		issuer: issuer,
		opts: totp.ValidateOpts{
			Period:    30,
			Skew:      1,
			Digits:    otp.DigitsSix,
			Algorithm: otp.AlgorithmSHA1,
		},
	}
}

// GenerateSecret returns a new cryptographically random base32 secret.
func (c *Challenge) GenerateSecret() (string, error) {
	buf := make([]byte, secretBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate totp secret: %w", err)
	}
	return b32.EncodeToString(buf), nil
}

// Verify reports whether code matches the TOTP derived from secret within
// the current time window or one adjacent window. No side effects.
func (c *Challenge) Verify(secret, code string) bool {
	code = strings.TrimSpace(code)
	if secret == "" || code == "" {
		return false
	}
	ok, err := totp.ValidateCustom(code, secret, time.Now().UTC(), c.opts)
	return err == nil && ok
}

// ProvisioningURI returns the otpauth:// URI an authenticator app enrolls
// from, embedding the issuer and account label.
func (c *Challenge) ProvisioningURI(account, secret string) (string, error) {
	if account == "" {
		return "", errors.New("account is required")
	}
	raw, err := b32.DecodeString(strings.ToUpper(secret))
	if err != nil {
		return "", fmt.Errorf("decode totp secret: %w", err)
	}

	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      c.issuer,
		AccountName: account,
		Secret:      raw,
		Period:      c.opts.Period,
		Digits:      c.opts.Digits,
		Algorithm:   c.opts.Algorithm,
	})
	if err != nil {
		return "", fmt.Errorf("build provisioning key: %w", err)
	}
	return key.URL(), nil
}
