package config

// HTTPConfig contains HTTP server configuration.
type HTTPConfig struct {
	// Addr is the address to bind the HTTP server to.
	Addr string `env:"HTTP_ADDR" envDefault:":8080"`

	// BaseURL is the base URL of the application (e.g., "https://auth.example.com").
	BaseURL string `env:"APP_BASE_URL" envDefault:"http://localhost:8080"`

	// FrontendURL is the base URL for links in verification and reset
	// emails. Defaults to BaseURL when empty.
	FrontendURL string `env:"APP_FRONTEND_URL" envDefault:""`
}
