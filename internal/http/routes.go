package httpx

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/tiwed/auth-api/internal/observability/statsd"
	"github.com/tiwed/auth-api/internal/service"
)

// RouterServices holds the services needed by the HTTP router.
type RouterServices struct {
	Auth      *service.AuthService
	Authority *service.TokenAuthority
	// RefreshTTL propagates the refresh-token lifetime to cookie expiry.
	RefreshTTL time.Duration
	// SecureCookies should be true everywhere except local development.
	SecureCookies bool
	// Metrics is optional; when set, every response emits a counter and
	// duration timing.
	Metrics statsd.Sink
	Logger  *slog.Logger
}

// route binds a ServeMux pattern to a handler with an explicit public
// marker. Everything not marked public goes through the bearer-token
// guard.
type route struct {
	pattern string
	handler http.HandlerFunc
	public  bool
}

// NewRouter creates and configures the HTTP router.
func NewRouter(services RouterServices) http.Handler {
	logger := services.Logger
	if logger == nil {
		logger = slog.Default()
	}

	handlers := &AuthHandlers{
		Svc:           services.Auth,
		RefreshTTL:    services.RefreshTTL,
		SecureCookies: services.SecureCookies,
	}
	guard := &Guard{Authority: services.Authority, Logger: logger}

	routes := []route{
		{pattern: "GET /healthz", handler: healthHandler, public: true},
		{pattern: "HEAD /healthz", handler: healthHandler, public: true},

		{pattern: "POST /auth/register", handler: handlers.Register, public: true},
		{pattern: "POST /auth/login", handler: handlers.Login, public: true},
		{pattern: "POST /auth/social-login", handler: handlers.SocialLogin, public: true},
		{pattern: "POST /auth/mfa/verify", handler: handlers.VerifyMFA, public: true},
		{pattern: "POST /auth/refresh", handler: handlers.Refresh, public: true},
		{pattern: "POST /auth/verify-email", handler: handlers.VerifyEmail, public: true},
		{pattern: "POST /auth/resend-verification", handler: handlers.ResendVerification, public: true},
		{pattern: "POST /auth/forgot-password", handler: handlers.ForgotPassword, public: true},
		{pattern: "POST /auth/reset-password", handler: handlers.ResetPassword, public: true},

		{pattern: "POST /auth/logout", handler: handlers.Logout},
		{pattern: "POST /auth/change-password", handler: handlers.ChangePassword},
		{pattern: "GET /auth/account", handler: handlers.Account},
		{pattern: "PATCH /auth/account", handler: handlers.UpdateAccount},
		{pattern: "POST /auth/mfa/enroll", handler: handlers.EnrollMFA},
		{pattern: "POST /auth/mfa/activate", handler: handlers.ActivateMFA},
		{pattern: "POST /auth/mfa/disable", handler: handlers.DisableMFA},
	}

	mux := http.NewServeMux()
	for _, rt := range routes {
		var h http.Handler = rt.handler
		if !rt.public {
			h = guard.Protect(h)
		}
		mux.Handle(rt.pattern, h)
	}

	var handler http.Handler = mux
	if services.Metrics != nil {
		handler = Metrics(services.Metrics)(handler)
	}
	handler = Logging(logger)(handler)
	handler = Recover(logger)(handler)
	return handler
}
