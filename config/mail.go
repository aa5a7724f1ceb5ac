package config

import "time"

// MailConfig contains SMTP delivery configuration.
type MailConfig struct {
	Host     string `env:"HOST" envDefault:"localhost"`
	Port     int    `env:"PORT" envDefault:"587"`
	Username string `env:"USERNAME" envDefault:""`
	Password string `env:"PASSWORD" envDefault:""`
	From     string `env:"FROM" envDefault:"no-reply@tiwed.local"`

	// Timeout bounds one delivery attempt.
	Timeout time.Duration `env:"TIMEOUT" envDefault:"20s"`

	// RetryLimit is the number of retries after a failed first attempt,
	// so a limit of 3 allows up to four deliveries in total.
	RetryLimit int `env:"RETRY_LIMIT" envDefault:"3"`
}

// Sanitize applies guardrails to mail configuration values.
func (m *MailConfig) Sanitize() {
	if m.Port <= 0 || m.Port > 65535 {
		m.Port = 587
	}
	if m.Timeout <= 0 {
		m.Timeout = 20 * time.Second
	}
	if m.RetryLimit < 1 {
		m.RetryLimit = 1
	}
}
