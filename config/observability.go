package config

// StatsdConfig controls StatsD metrics emission. Disabled by default;
// when disabled the client is a no-op.
type StatsdConfig struct {
	Enabled bool   `env:"ENABLED" envDefault:"false"`
	Addr    string `env:"ADDR" envDefault:"127.0.0.1:8125"`
	Prefix  string `env:"PREFIX" envDefault:"tiwed.auth"`
}
