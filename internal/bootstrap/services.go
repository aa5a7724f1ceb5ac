package bootstrap

import (
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/tiwed/auth-api/config"
	"github.com/tiwed/auth-api/internal/adapters/devauth"
	"github.com/tiwed/auth-api/internal/adapters/google"
	jwtcodec "github.com/tiwed/auth-api/internal/adapters/jwt"
	redisadapter "github.com/tiwed/auth-api/internal/adapters/redis"
	"github.com/tiwed/auth-api/internal/adapters/smtp"
	"github.com/tiwed/auth-api/internal/adapters/totp"
	"github.com/tiwed/auth-api/internal/data"
	"github.com/tiwed/auth-api/internal/data/cryptoutil"
	"github.com/tiwed/auth-api/internal/observability/statsd"
	"github.com/tiwed/auth-api/internal/ports"
	"github.com/tiwed/auth-api/internal/service"
)

// ServiceDeps groups the shared infrastructure services are built on.
type ServiceDeps struct {
	Config      *config.AppConfig
	DB          *sql.DB
	RedisClient redis.UniversalClient
	Logger      *slog.Logger
}

// ServiceContainer holds the constructed service graph.
type ServiceContainer struct {
	Auth      *service.AuthService
	Authority *service.TokenAuthority
	Metrics   *statsd.Client
}

// NewServices wires adapters and services from configuration. Federated
// login degrades to a disabled broker when no Google client is
// configured.
func NewServices(deps *ServiceDeps) (*ServiceContainer, error) {
	cfg := deps.Config
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	codec, err := jwtcodec.NewCodec(jwtcodec.Config{
		Secret: []byte(cfg.Auth.Token.Secret),
		Issuer: cfg.Auth.Token.Issuer,
	})
	if err != nil {
		return nil, fmt.Errorf("build token codec: %w", err)
	}

	cache := redisadapter.NewSessionCacheWithPrefix(deps.RedisClient, cfg.Redis.KeyPrefix)

	authority := service.NewTokenAuthority(service.TokenAuthorityOptions{
		Codec:      codec,
		Cache:      cache,
		AccessTTL:  cfg.Auth.Token.AccessTTL,
		RefreshTTL: cfg.Auth.Token.RefreshTTL,
		Logger:     logger,
	})

	var broker ports.IdentityBroker
	switch {
	case cfg.Auth.Google.Enabled():
		broker, err = google.NewBroker(google.Config{
			ClientID:     cfg.Auth.Google.ClientID,
			ClientSecret: cfg.Auth.Google.ClientSecret,
		})
		if err != nil {
			return nil, fmt.Errorf("build identity broker: %w", err)
		}
	case cfg.IsDev && cfg.Auth.DevEmail != "":
		broker, err = devauth.NewBroker(devauth.Config{Email: cfg.Auth.DevEmail})
		if err != nil {
			return nil, fmt.Errorf("build dev identity broker: %w", err)
		}
		logger.Warn("federated login using dev broker", "email", cfg.Auth.DevEmail)
	default:
		logger.Info("federated login disabled", "reason", "no google client configured")
		broker = disabledBroker{}
	}

	frontendURL := cfg.HTTP.FrontendURL
	if frontendURL == "" {
		frontendURL = cfg.HTTP.BaseURL
	}
	mailer, err := smtp.NewMailer(smtp.Config{
		Host:        cfg.Mail.Host,
		Port:        cfg.Mail.Port,
		Username:    cfg.Mail.Username,
		Password:    cfg.Mail.Password,
		From:        cfg.Mail.From,
		FrontendURL: frontendURL,
		Timeout:     cfg.Mail.Timeout,
		RetryLimit:  cfg.Mail.RetryLimit,
	})
	if err != nil {
		return nil, fmt.Errorf("build mailer: %w", err)
	}

	var enc cryptoutil.Encryptor = cryptoutil.NoopEncryptor{}
	if key := cfg.Auth.MFA.EncryptionKey; key != "" {
		enc, err = cryptoutil.NewAESGCMEncryptor([]byte(key))
		if err != nil {
			return nil, fmt.Errorf("build mfa secret encryptor: %w", err)
		}
	} else {
		logger.Warn("mfa secrets stored without at-rest encryption", "reason", "no encryption key configured")
	}

	authSvc := service.NewAuthService(service.AuthServiceOptions{
		Users:  data.NewUserRepo(deps.DB, enc),
		Tokens: authority,
		Broker: broker,
		MFA:    totp.NewChallenge(cfg.Auth.MFA.Issuer),
		Mailer: mailer,
		Logger: logger,
	})

	metrics, err := statsd.NewClient(statsd.Config{
		Enabled: cfg.Statsd.Enabled,
		Address: cfg.Statsd.Addr,
		Prefix:  cfg.Statsd.Prefix,
		Logger:  logger,
	})
	if err != nil {
		return nil, fmt.Errorf("build metrics client: %w", err)
	}

	return &ServiceContainer{Auth: authSvc, Authority: authority, Metrics: metrics}, nil
}
