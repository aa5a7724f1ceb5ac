package smtp

// Package smtp delivers one-time-token emails over SMTP. Delivery runs
// after session state is already committed, so a failure here never rolls
// tokens back; callers surface it as an external-service error.

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/smtp"
	"strings"
	"time"
)

// Config captures the subset of SMTP behaviour we need.
type Config struct {
	Host        string
	Port        int
	Username    string
	Password    string
	From        string
	FrontendURL string
	Timeout     time.Duration
	RetryLimit  int

	// SendFunc overrides the transport, for tests. Defaults to smtp.SendMail.
	SendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

// Mailer sends verification and password-reset emails with a small fixed
// retry budget.
type Mailer struct {
	addr        string
	auth        smtp.Auth
	from        string
	frontendURL string
	timeout     time.Duration
	retryLimit  int
	send        func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

// NewMailer builds a Mailer. Callers should pass a validated config.
func NewMailer(cfg Config) (*Mailer, error) {
	if strings.TrimSpace(cfg.Host) == "" {
		return nil, errors.New("smtp host is required")
	}
	if cfg.Port <= 0 {
		return nil, errors.New("smtp port is required")
	}
	if strings.TrimSpace(cfg.From) == "" {
		return nil, errors.New("smtp from address is required")
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	retries := cfg.RetryLimit
	if retries < 0 {
		retries = 0
	}

	var auth smtp.Auth
	if cfg.Username != "" {
		auth = smtp.PlainAuth("", cfg.Username, cfg.Password, cfg.Host)
	}

	send := cfg.SendFunc
	if send == nil {
		send = smtp.SendMail
	}

	return &Mailer{
		addr:        net.JoinHostPort(cfg.Host, fmt.Sprintf("%d", cfg.Port)),
		auth:        auth,
		from:        strings.TrimSpace(cfg.From),
		frontendURL: strings.TrimRight(cfg.FrontendURL, "/"),
		timeout:     timeout,
		retryLimit:  retries,
		send:        send,
	}, nil
}

// SendEmailVerification mails the email-verification link for the token.
func (m *Mailer) SendEmailVerification(ctx context.Context, to, token string) error {
	link := m.frontendURL + "/verify-email?token=" + token
	body := "Click the link below to verify your email:\r\n" + link + "\r\n"
	return m.deliver(ctx, to, "Verify your email", body)
}

// SendPasswordReset mails the password-reset link for the token.
func (m *Mailer) SendPasswordReset(ctx context.Context, to, token string) error {
	link := m.frontendURL + "/reset-password?token=" + token
	body := "Click the link below to reset your password:\r\n" + link + "\r\n"
	return m.deliver(ctx, to, "Reset your password", body)
}

// deliver sends one message, retrying with a short fixed backoff.
func (m *Mailer) deliver(ctx context.Context, to, subject, body string) error {
	if strings.TrimSpace(to) == "" {
		return errors.New("recipient is required")
	}
	msg := m.compose(to, subject, body)

	attempts := m.retryLimit + 1
	var lastErr error
	for attempt := range attempts {
		err := m.sendWithTimeout(ctx, to, msg)
		if err == nil {
			return nil
		}
		lastErr = err
		if attempt < attempts-1 {
			timer := time.NewTimer(time.Second)
			select {
			case <-ctx.Done():
				if !timer.Stop() {
					<-timer.C
				}
				return ctx.Err()
			case <-timer.C:
			}
		}
	}
	return fmt.Errorf("send mail to %s: %w", to, lastErr)
}

// sendWithTimeout bounds a single delivery attempt. net/smtp has no
// context support, so the attempt runs in a goroutine and the caller
// abandons it on timeout.
func (m *Mailer) sendWithTimeout(ctx context.Context, to string, msg []byte) error {
	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- m.send(m.addr, m.auth, m.from, []string{to}, msg)
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return fmt.Errorf("smtp send timed out: %w", ctx.Err())
	}
}

func (m *Mailer) compose(to, subject, body string) []byte {
	var b strings.Builder
	b.WriteString("From: " + m.from + "\r\n")
	b.WriteString("To: " + to + "\r\n")
	b.WriteString("Subject: " + subject + "\r\n")
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=utf-8\r\n")
	b.WriteString("\r\n")
	b.WriteString(body)
	return []byte(b.String())
}
