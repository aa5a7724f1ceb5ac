package auth

// Package auth contains simple hand-written test doubles for auth ports.
// These are lightweight and suitable for unit tests without codegen.

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	domainauth "github.com/tiwed/auth-api/internal/domain/auth"
	"github.com/tiwed/auth-api/internal/domain/model"
	apperrors "github.com/tiwed/auth-api/internal/errors"
	"github.com/tiwed/auth-api/internal/ports"
)

// Ensure compile-time conformance to ports.
var (
	_ ports.UserRepository = (*MemoryUserRepo)(nil)
	_ ports.SessionCache   = (*MemorySessionCache)(nil)
	_ ports.IdentityBroker = (*MockIdentityBroker)(nil)
	_ ports.SecondFactor   = (*MockSecondFactor)(nil)
	_ ports.Mailer         = (*RecordingMailer)(nil)
)

// MemoryUserRepo is an in-memory ports.UserRepository. It mirrors the
// database adapter's behavior: case-insensitive unique emails, not-found
// and conflict errors from the shared taxonomy.
type MemoryUserRepo struct {
	mu    sync.Mutex
	users map[string]*model.User

	// CreateErr, when set, is returned from Create.
	CreateErr error
}

// NewMemoryUserRepo creates an empty MemoryUserRepo.
func NewMemoryUserRepo() *MemoryUserRepo {
	return &MemoryUserRepo{users: make(map[string]*model.User)}
}

// Seed inserts a user directly, bypassing validation.
func (r *MemoryUserRepo) Seed(user *model.User) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	cp := *user
	r.users[user.ID] = &cp
}

func (r *MemoryUserRepo) Create(_ context.Context, req *model.CreateUserRequest) (*model.User, error) {
	if r.CreateErr != nil {
		return nil, r.CreateErr
	}
	if err := req.Validate(); err != nil {
		return nil, apperrors.Validation(err.Error())
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	email := strings.ToLower(strings.TrimSpace(req.Email))
	for _, u := range r.users {
		if strings.EqualFold(u.Email, email) {
			return nil, apperrors.ValidationField("email", "email already exists")
		}
	}

	now := time.Now().UTC()
	user := &model.User{
		ID:              uuid.NewString(),
		Email:           email,
		PasswordHash:    req.PasswordHash,
		FullName:        strings.TrimSpace(req.FullName),
		Role:            req.Role,
		IsEmailVerified: req.IsEmailVerified,
		IsActive:        true,
		Provider:        req.Provider,
		ProviderID:      req.ProviderID,
		AvatarURL:       req.AvatarURL,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	r.users[user.ID] = user
	cp := *user
	return &cp, nil
}

func (r *MemoryUserRepo) FindByEmail(_ context.Context, email string) (*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if strings.EqualFold(u.Email, strings.TrimSpace(email)) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, apperrors.NotFound("user not found")
}

func (r *MemoryUserRepo) FindByID(_ context.Context, id string) (*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return nil, apperrors.NotFound("user not found")
	}
	cp := *u
	return &cp, nil
}

func (r *MemoryUserRepo) FindByProvider(_ context.Context, provider, providerID string) (*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Provider != nil && *u.Provider == provider &&
			u.ProviderID != nil && *u.ProviderID == providerID {
			cp := *u
			return &cp, nil
		}
	}
	return nil, apperrors.NotFound("user not found")
}

func (r *MemoryUserRepo) Update(_ context.Context, id string, req *model.UpdateUserRequest) (*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return nil, apperrors.NotFound("user not found")
	}

	if req.FullName != nil {
		u.FullName = strings.TrimSpace(*req.FullName)
	}
	if req.PasswordHash != nil {
		u.PasswordHash = req.PasswordHash
	}
	if req.IsEmailVerified != nil {
		u.IsEmailVerified = *req.IsEmailVerified
	}
	if req.Provider != nil {
		u.Provider = req.Provider
	}
	if req.ProviderID != nil {
		u.ProviderID = req.ProviderID
	}
	if req.MFAEnabled != nil {
		u.MFAEnabled = *req.MFAEnabled
	}
	if req.MFASecret != nil {
		u.MFASecret = req.MFASecret
	}
	if req.AvatarURL != nil {
		u.AvatarURL = req.AvatarURL
	}
	u.UpdatedAt = time.Now().UTC()

	cp := *u
	return &cp, nil
}

type cacheEntry struct {
	value     string
	expiresAt time.Time
}

// MemorySessionCache is an in-memory ports.SessionCache with real TTL
// behavior driven by a replaceable clock.
type MemorySessionCache struct {
	mu      sync.Mutex
	entries map[string]cacheEntry

	// Now can be swapped for a fixed clock in tests. Defaults to time.Now.
	Now func() time.Time
}

// NewMemorySessionCache creates an empty MemorySessionCache.
func NewMemorySessionCache() *MemorySessionCache {
	return &MemorySessionCache{
		entries: make(map[string]cacheEntry),
		Now:     time.Now,
	}
}

func (c *MemorySessionCache) Get(_ context.Context, key string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok || c.Now().After(e.expiresAt) {
		delete(c.entries, key)
		return "", ports.ErrCacheMiss
	}
	return e.value, nil
}

func (c *MemorySessionCache) Set(_ context.Context, key, value string, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = cacheEntry{value: value, expiresAt: c.Now().Add(ttl)}
	return nil
}

func (c *MemorySessionCache) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
	return nil
}

// Len returns the number of live entries.
func (c *MemorySessionCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// MockIdentityBroker returns a canned identity or error.
type MockIdentityBroker struct {
	Identity domainauth.Identity
	Err      error

	mu    sync.Mutex
	calls []ports.ResolveInput
}

func (b *MockIdentityBroker) Resolve(_ context.Context, in ports.ResolveInput) (domainauth.Identity, error) {
	b.mu.Lock()
	b.calls = append(b.calls, in)
	b.mu.Unlock()
	if b.Err != nil {
		return domainauth.Identity{}, b.Err
	}
	return b.Identity, nil
}

// Calls returns the inputs Resolve has seen.
func (b *MockIdentityBroker) Calls() []ports.ResolveInput {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]ports.ResolveInput(nil), b.calls...)
}

// MockSecondFactor accepts exactly one code per secret: "000000" unless
// AcceptCode overrides it.
type MockSecondFactor struct {
	AcceptCode string
	Secret     string
	SecretErr  error
}

func (m *MockSecondFactor) GenerateSecret() (string, error) {
	if m.SecretErr != nil {
		return "", m.SecretErr
	}
	if m.Secret != "" {
		return m.Secret, nil
	}
	return "JBSWY3DPEHPK3PXP", nil
}

func (m *MockSecondFactor) Verify(_, code string) bool {
	accept := m.AcceptCode
	if accept == "" {
		accept = "000000"
	}
	return code == accept
}

func (m *MockSecondFactor) ProvisioningURI(account, secret string) (string, error) {
	return "otpauth://totp/test:" + account + "?secret=" + secret, nil
}

// SentMail records one delivery request.
type SentMail struct {
	Kind  string // "verification" or "reset"
	To    string
	Token string
}

// RecordingMailer records deliveries instead of sending them.
type RecordingMailer struct {
	mu   sync.Mutex
	sent []SentMail

	// Err, when set, is returned from both send methods.
	Err error
}

func (m *RecordingMailer) SendEmailVerification(_ context.Context, to, token string) error {
	return m.record("verification", to, token)
}

func (m *RecordingMailer) SendPasswordReset(_ context.Context, to, token string) error {
	return m.record("reset", to, token)
}

func (m *RecordingMailer) record(kind, to, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.sent = append(m.sent, SentMail{Kind: kind, To: to, Token: token})
	return nil
}

// Sent returns all recorded deliveries.
func (m *RecordingMailer) Sent() []SentMail {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]SentMail(nil), m.sent...)
}

// LastToken returns the token of the most recent delivery of kind, or "".
func (m *RecordingMailer) LastToken(kind string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.sent) - 1; i >= 0; i-- {
		if m.sent[i].Kind == kind {
			return m.sent[i].Token
		}
	}
	return ""
}
