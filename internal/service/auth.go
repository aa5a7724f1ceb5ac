package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	domainauth "github.com/tiwed/auth-api/internal/domain/auth"
	"github.com/tiwed/auth-api/internal/domain/model"
	apperrors "github.com/tiwed/auth-api/internal/errors"
	"github.com/tiwed/auth-api/internal/ports"
)

const (
	bcryptCost     = 12
	minPasswordLen = 8

	verifyTokenTTL = 24 * time.Hour
	resetTokenTTL  = 15 * time.Minute

	googleProvider = "google"
)

// AuthServiceOptions groups dependencies for AuthService.
type AuthServiceOptions struct {
	Users  ports.UserRepository
	Tokens *TokenAuthority
	Broker ports.IdentityBroker
	MFA    ports.SecondFactor
	Mailer ports.Mailer
	Logger *slog.Logger
}

// AuthService orchestrates registration, login, federated login, session
// rotation, and account-recovery flows. It owns password hashing and the
// rule that credential failures collapse into one generic unauthorized
// error so responses never reveal which check failed.
type AuthService struct {
	users  ports.UserRepository
	tokens *TokenAuthority
	broker ports.IdentityBroker
	mfa    ports.SecondFactor
	mailer ports.Mailer
	logger *slog.Logger
}

// NewAuthService constructs a new AuthService.
func NewAuthService(opts AuthServiceOptions) *AuthService {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &AuthService{
		users:  opts.Users,
		tokens: opts.Tokens,
		broker: opts.Broker,
		mfa:    opts.MFA,
		mailer: opts.Mailer,
		logger: logger,
	}
}

func errInvalidCredentials() error {
	return apperrors.Unauthorized("invalid email or password")
}

// RegisterInput groups parameters for Register.
type RegisterInput struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	FullName string `json:"fullName"`
}

// Register creates a local account and emails a verification token. The
// account cannot log in until the token is consumed. Mail delivery
// failures do not fail registration; the token can be re-requested.
func (s *AuthService) Register(ctx context.Context, input RegisterInput) (*model.User, error) {
	if err := validatePassword(input.Password); err != nil {
		return nil, err
	}

	hash, err := hashPassword(input.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user, err := s.users.Create(ctx, &model.CreateUserRequest{
		Email:        input.Email,
		PasswordHash: &hash,
		FullName:     input.FullName,
		Role:         domainauth.RoleUser,
	})
	if err != nil {
		return nil, err
	}

	s.sendVerificationEmail(ctx, user)
	return user, nil
}

// ResendVerification re-issues the email-verification token for an
// unverified account. Always reports success so the endpoint cannot be
// used to discover which emails are registered.
func (s *AuthService) ResendVerification(ctx context.Context, email string) error {
	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		if apperrors.IsNotFound(err) {
			s.logger.InfoContext(ctx, "verification requested for unknown email")
			return nil
		}
		return err
	}
	if user.IsEmailVerified {
		return nil
	}
	s.sendVerificationEmail(ctx, user)
	return nil
}

// sendVerificationEmail issues a fresh verification token and mails it.
// Issuing supersedes any outstanding token for the same user.
func (s *AuthService) sendVerificationEmail(ctx context.Context, user *model.User) {
	token, err := s.tokens.IssueOneTimeToken(ctx, user, domainauth.PurposeEmailVerify, verifyTokenTTL)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to issue verification token",
			slog.String("user_id", user.ID), slog.Any("err", err))
		return
	}
	if err := s.mailer.SendEmailVerification(ctx, user.Email, token); err != nil {
		s.logger.ErrorContext(ctx, "failed to send verification email",
			slog.String("user_id", user.ID), slog.Any("err", err))
	}
}

// LoginInput groups parameters for Login.
type LoginInput struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	MFACode  string `json:"mfaCode,omitempty"`
}

// LoginResult is the outcome of a credential or federated login. When
// MFARequired is set the credentials were accepted but no tokens were
// issued; the client must retry with a second-factor code.
type LoginResult struct {
	User        *model.User
	Tokens      domainauth.TokenPair
	MFARequired bool
}

// Login authenticates an email/password pair and issues a token pair.
// Unknown email, missing password, wrong password, and deactivated
// account all produce the same unauthorized error.
func (s *AuthService) Login(ctx context.Context, input LoginInput) (*LoginResult, error) {
	user, err := s.users.FindByEmail(ctx, input.Email)
	if err != nil {
		if apperrors.IsNotFound(err) {
			return nil, errInvalidCredentials()
		}
		return nil, err
	}

	if !user.IsActive || !user.HasPassword() {
		return nil, errInvalidCredentials()
	}
	if bcrypt.CompareHashAndPassword([]byte(*user.PasswordHash), []byte(input.Password)) != nil {
		return nil, errInvalidCredentials()
	}

	if !user.IsEmailVerified {
		return nil, apperrors.Unauthorized("email address not verified")
	}

	if user.MFAEnabled {
		if input.MFACode == "" {
			return &LoginResult{User: user, MFARequired: true}, nil
		}
		if user.MFASecret == nil || !s.mfa.Verify(*user.MFASecret, input.MFACode) {
			return nil, apperrors.Unauthorized("invalid verification code")
		}
	}

	pair, err := s.tokens.IssuePair(ctx, user)
	if err != nil {
		return nil, err
	}
	return &LoginResult{User: user, Tokens: pair}, nil
}

// VerifyMFA completes a login that stopped at the MFA gate. The code is
// checked against the enrolled secret and a fresh token pair is issued.
func (s *AuthService) VerifyMFA(ctx context.Context, userID, code string) (*LoginResult, error) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if apperrors.IsNotFound(err) {
			return nil, apperrors.Unauthorized("invalid verification code")
		}
		return nil, err
	}
	if !user.IsActive || !user.MFAEnabled || user.MFASecret == nil {
		return nil, apperrors.Unauthorized("invalid verification code")
	}
	if !s.mfa.Verify(*user.MFASecret, code) {
		return nil, apperrors.Unauthorized("invalid verification code")
	}

	pair, err := s.tokens.IssuePair(ctx, user)
	if err != nil {
		return nil, err
	}
	return &LoginResult{User: user, Tokens: pair}, nil
}

// SocialLoginInput carries federated-login material. Credential may be an
// authorization code or an identity assertion; the broker decides which.
type SocialLoginInput struct {
	Credential  string `json:"credential"`
	RedirectURI string `json:"redirectUri,omitempty"`
}

// SocialLogin resolves a federated identity and signs the user in,
// creating or linking the local account as needed. Matching precedence:
// provider identity first, then email. Federated logins bypass the MFA
// gate; the provider already authenticated the user.
func (s *AuthService) SocialLogin(ctx context.Context, input SocialLoginInput) (*LoginResult, error) {
	identity, err := s.broker.Resolve(ctx, ports.ResolveInput{
		Credential:  input.Credential,
		RedirectURI: input.RedirectURI,
	})
	if err != nil {
		s.logger.WarnContext(ctx, "federated identity resolution failed", slog.Any("err", err))
		return nil, apperrors.Unauthorized("invalid federated credential")
	}

	user, err := s.findOrCreateFederated(ctx, identity)
	if err != nil {
		return nil, err
	}
	if !user.IsActive {
		return nil, errInvalidCredentials()
	}

	pair, err := s.tokens.IssuePair(ctx, user)
	if err != nil {
		return nil, err
	}
	return &LoginResult{User: user, Tokens: pair}, nil
}

func (s *AuthService) findOrCreateFederated(ctx context.Context, identity domainauth.Identity) (*model.User, error) {
	user, err := s.users.FindByProvider(ctx, googleProvider, identity.ProviderID)
	if err == nil {
		return user, nil
	}
	if !apperrors.IsNotFound(err) {
		return nil, err
	}

	// No provider link yet. An existing local account with the same email
	// gets linked instead of duplicated.
	user, err = s.users.FindByEmail(ctx, identity.Email)
	if err == nil {
		update := &model.UpdateUserRequest{
			Provider:   ptr(googleProvider),
			ProviderID: ptr(identity.ProviderID),
		}
		if identity.EmailVerified && !user.IsEmailVerified {
			update.IsEmailVerified = ptr(true)
		}
		if identity.Picture != "" && user.AvatarURL == nil {
			update.AvatarURL = ptr(identity.Picture)
		}
		return s.users.Update(ctx, user.ID, update)
	}
	if !apperrors.IsNotFound(err) {
		return nil, err
	}

	name := identity.Name
	if strings.TrimSpace(name) == "" {
		name = identity.Email
	}
	req := &model.CreateUserRequest{
		Email:           identity.Email,
		FullName:        name,
		Role:            domainauth.RoleUser,
		IsEmailVerified: identity.EmailVerified,
		Provider:        ptr(googleProvider),
		ProviderID:      ptr(identity.ProviderID),
	}
	if identity.Picture != "" {
		req.AvatarURL = ptr(identity.Picture)
	}
	return s.users.Create(ctx, req)
}

// Refresh rotates a refresh token into a fresh pair. The account is
// re-loaded before minting so a deleted or deactivated user cannot keep
// a session alive by rotating; issuing the new pair supersedes the
// presented token. Any rotation failure surfaces as unauthorized; the
// caller cannot distinguish a forged token from a revoked session or a
// dead account.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (domainauth.TokenPair, error) {
	claims, err := s.tokens.CheckRefresh(ctx, refreshToken)
	if err != nil {
		if errors.Is(err, ErrSessionRevoked) {
			return domainauth.TokenPair{}, apperrors.Unauthorized("session revoked")
		}
		return domainauth.TokenPair{}, apperrors.Unauthorized("invalid refresh token")
	}

	user, err := s.users.FindByID(ctx, claims.UserID)
	if err != nil {
		if apperrors.IsNotFound(err) {
			return domainauth.TokenPair{}, apperrors.Unauthorized("session revoked")
		}
		return domainauth.TokenPair{}, err
	}
	if !user.IsActive {
		return domainauth.TokenPair{}, apperrors.Unauthorized("session revoked")
	}

	return s.tokens.IssuePair(ctx, user)
}

// Logout revokes the user's current sessions.
func (s *AuthService) Logout(ctx context.Context, userID string) error {
	return s.tokens.RevokeAll(ctx, userID)
}

// VerifyEmail consumes an email-verification token and marks the account
// verified. The token is single-use.
func (s *AuthService) VerifyEmail(ctx context.Context, token string) error {
	claims, err := s.tokens.ConsumeOneTimeToken(ctx, token, domainauth.PurposeEmailVerify)
	if err != nil {
		return apperrors.Unauthorized("invalid or expired verification token")
	}

	if _, err := s.users.Update(ctx, claims.UserID, &model.UpdateUserRequest{
		IsEmailVerified: ptr(true),
	}); err != nil {
		return err
	}
	return nil
}

// ForgotPassword issues a password-reset token and emails it. Always
// reports success, even for unknown emails, so the endpoint cannot be
// used to enumerate accounts.
func (s *AuthService) ForgotPassword(ctx context.Context, email string) error {
	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		if apperrors.IsNotFound(err) {
			s.logger.InfoContext(ctx, "password reset requested for unknown email")
			return nil
		}
		return err
	}

	token, err := s.tokens.IssueOneTimeToken(ctx, user, domainauth.PurposePasswordReset, resetTokenTTL)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to issue reset token",
			slog.String("user_id", user.ID), slog.Any("err", err))
		return nil
	}
	if err := s.mailer.SendPasswordReset(ctx, user.Email, token); err != nil {
		s.logger.ErrorContext(ctx, "failed to send reset email",
			slog.String("user_id", user.ID), slog.Any("err", err))
	}
	return nil
}

// ResetPassword consumes a reset token, sets the new password, and
// revokes all existing sessions for the account.
func (s *AuthService) ResetPassword(ctx context.Context, token, newPassword string) error {
	if err := validatePassword(newPassword); err != nil {
		return err
	}

	claims, err := s.tokens.ConsumeOneTimeToken(ctx, token, domainauth.PurposePasswordReset)
	if err != nil {
		return apperrors.Validation("invalid or expired reset token")
	}

	hash, err := hashPassword(newPassword)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	if _, err := s.users.Update(ctx, claims.UserID, &model.UpdateUserRequest{
		PasswordHash: &hash,
	}); err != nil {
		return err
	}
	return s.tokens.RevokeAll(ctx, claims.UserID)
}

// ChangePassword verifies the current password, sets the new one, and
// revokes all sessions so stolen tokens die with the old password.
func (s *AuthService) ChangePassword(ctx context.Context, userID, currentPassword, newPassword string) error {
	if err := validatePassword(newPassword); err != nil {
		return err
	}

	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return err
	}
	if !user.HasPassword() {
		return apperrors.Validation("account has no local password; use password reset to set one")
	}
	if bcrypt.CompareHashAndPassword([]byte(*user.PasswordHash), []byte(currentPassword)) != nil {
		return apperrors.Validation("current password is incorrect")
	}

	hash, err := hashPassword(newPassword)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	if _, err := s.users.Update(ctx, userID, &model.UpdateUserRequest{
		PasswordHash: &hash,
	}); err != nil {
		return err
	}
	return s.tokens.RevokeAll(ctx, userID)
}

// MFAEnrollment is returned by EnrollMFA for provisioning an
// authenticator app.
type MFAEnrollment struct {
	Secret          string `json:"secret"`
	ProvisioningURI string `json:"provisioningUri"`
}

// EnrollMFA generates a new shared secret and stores it on the account
// without enabling enforcement. Enforcement starts at ActivateMFA, after
// the user proves the authenticator works.
func (s *AuthService) EnrollMFA(ctx context.Context, userID string) (*MFAEnrollment, error) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user.MFAEnabled {
		return nil, apperrors.Conflict("multi-factor authentication is already enabled")
	}

	secret, err := s.mfa.GenerateSecret()
	if err != nil {
		return nil, fmt.Errorf("generate mfa secret: %w", err)
	}
	uri, err := s.mfa.ProvisioningURI(user.Email, secret)
	if err != nil {
		return nil, fmt.Errorf("build provisioning uri: %w", err)
	}

	if _, err := s.users.Update(ctx, userID, &model.UpdateUserRequest{
		MFASecret: &secret,
	}); err != nil {
		return nil, err
	}
	return &MFAEnrollment{Secret: secret, ProvisioningURI: uri}, nil
}

// ActivateMFA turns on MFA enforcement after verifying a code against the
// enrolled secret.
func (s *AuthService) ActivateMFA(ctx context.Context, userID, code string) error {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return err
	}
	if user.MFASecret == nil || *user.MFASecret == "" {
		return apperrors.Validation("no enrollment in progress; enroll first")
	}
	if !s.mfa.Verify(*user.MFASecret, code) {
		return apperrors.Unauthorized("invalid verification code")
	}

	_, err = s.users.Update(ctx, userID, &model.UpdateUserRequest{
		MFAEnabled: ptr(true),
	})
	return err
}

// DisableMFA turns off MFA enforcement after verifying a current code.
func (s *AuthService) DisableMFA(ctx context.Context, userID, code string) error {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return err
	}
	if !user.MFAEnabled || user.MFASecret == nil {
		return apperrors.Validation("multi-factor authentication is not enabled")
	}
	if !s.mfa.Verify(*user.MFASecret, code) {
		return apperrors.Unauthorized("invalid verification code")
	}

	empty := ""
	_, err = s.users.Update(ctx, userID, &model.UpdateUserRequest{
		MFAEnabled: ptr(false),
		MFASecret:  &empty,
	})
	return err
}

// Account returns the user's own account record.
func (s *AuthService) Account(ctx context.Context, userID string) (*model.User, error) {
	return s.users.FindByID(ctx, userID)
}

// UpdateAccountInput groups self-service profile fields.
type UpdateAccountInput struct {
	FullName  *string `json:"fullName,omitempty"`
	AvatarURL *string `json:"avatarUrl,omitempty"`
}

// UpdateAccount applies a partial profile update to the user's own
// account.
func (s *AuthService) UpdateAccount(ctx context.Context, userID string, input UpdateAccountInput) (*model.User, error) {
	if input.FullName != nil && strings.TrimSpace(*input.FullName) == "" {
		return nil, apperrors.ValidationField("fullName", "full name cannot be empty")
	}
	return s.users.Update(ctx, userID, &model.UpdateUserRequest{
		FullName:  input.FullName,
		AvatarURL: input.AvatarURL,
	})
}

func validatePassword(password string) error {
	if len(password) < minPasswordLen {
		return apperrors.ValidationField("password", "password must be at least 8 characters")
	}
	return nil
}

func hashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

func ptr[T any](v T) *T { return &v }
