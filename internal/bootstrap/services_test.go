package bootstrap

import (
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tiwed/auth-api/config"
)

func testConfig() *config.AppConfig {
	cfg := &config.AppConfig{}
	cfg.Auth.Token.Secret = "0123456789abcdef0123456789abcdef"
	cfg.Auth.Token.Issuer = "tiwed-test"
	cfg.Auth.Token.AccessTTL = 15 * time.Minute
	cfg.Auth.Token.RefreshTTL = 7 * 24 * time.Hour
	cfg.Auth.MFA.Issuer = "Tiwed"
	cfg.Redis.KeyPrefix = "auth:"
	cfg.Mail.Host = "localhost"
	cfg.Mail.Port = 587
	cfg.Mail.From = "no-reply@tiwed.local"
	cfg.HTTP.BaseURL = "http://localhost:8080"
	return cfg
}

func newDeps(t *testing.T, cfg *config.AppConfig) *ServiceDeps {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return &ServiceDeps{Config: cfg, RedisClient: client}
}

func TestNewServices(t *testing.T) {
	svcs, err := NewServices(newDeps(t, testConfig()))
	require.NoError(t, err)
	assert.NotNil(t, svcs.Auth)
	assert.NotNil(t, svcs.Authority)
}

func TestNewServices_ShortSecretRejected(t *testing.T) {
	cfg := testConfig()
	cfg.Auth.Token.Secret = "too-short"

	_, err := NewServices(newDeps(t, cfg))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "token codec")
}

func TestNewServices_BadMFAEncryptionKeyRejected(t *testing.T) {
	cfg := testConfig()
	cfg.Auth.MFA.EncryptionKey = "not-32-bytes"

	_, err := NewServices(newDeps(t, cfg))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mfa secret encryptor")
}

func TestNewServices_GoogleBrokerEnabled(t *testing.T) {
	cfg := testConfig()
	cfg.Auth.Google.ClientID = "client-id"
	cfg.Auth.Google.ClientSecret = "client-secret"

	svcs, err := NewServices(newDeps(t, cfg))
	require.NoError(t, err)
	assert.NotNil(t, svcs.Auth)
}

func TestStartHTTPServer_NilSafe(t *testing.T) {
	assert.Nil(t, StartHTTPServer(nil))
	assert.Nil(t, StartHTTPServer(&HTTPServerConfig{}))
}
