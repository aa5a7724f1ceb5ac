package httpx

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/tiwed/auth-api/internal/service"
)

const (
	refreshCookieName = "refresh_token"
	// refreshCookiePath scopes the cookie to the rotation endpoint so the
	// long-lived token never rides along on other requests.
	refreshCookiePath = "/auth/refresh"
)

// AuthHandlers exposes the authentication service over HTTP.
type AuthHandlers struct {
	Svc *service.AuthService
	// RefreshTTL bounds the refresh cookie lifetime. Matches the token TTL.
	RefreshTTL time.Duration
	// SecureCookies disables the Secure flag for local development only.
	SecureCookies bool
}

type messageResponse struct {
	Message string `json:"message"`
}

// Register handles POST /auth/register.
func (h *AuthHandlers) Register(w http.ResponseWriter, r *http.Request) {
	var input service.RegisterInput
	if !DecodeJSON(w, r, &input) {
		return
	}

	if _, err := h.Svc.Register(r.Context(), input); err != nil {
		RenderError(w, err)
		return
	}
	WriteJSON(w, http.StatusCreated, messageResponse{
		Message: "registration successful; check your email for a verification link",
	})
}

// Login handles POST /auth/login.
func (h *AuthHandlers) Login(w http.ResponseWriter, r *http.Request) {
	var input service.LoginInput
	if !DecodeJSON(w, r, &input) {
		return
	}

	result, err := h.Svc.Login(r.Context(), input)
	if err != nil {
		RenderError(w, err)
		return
	}
	h.writeLoginResult(w, result, false)
}

// VerifyMFA handles POST /auth/mfa/verify.
func (h *AuthHandlers) VerifyMFA(w http.ResponseWriter, r *http.Request) {
	var input struct {
		UserID string `json:"userId"`
		Code   string `json:"code"`
	}
	if !DecodeJSON(w, r, &input) {
		return
	}

	result, err := h.Svc.VerifyMFA(r.Context(), input.UserID, input.Code)
	if err != nil {
		RenderError(w, err)
		return
	}
	h.writeLoginResult(w, result, false)
}

// SocialLogin handles POST /auth/social-login.
func (h *AuthHandlers) SocialLogin(w http.ResponseWriter, r *http.Request) {
	var input service.SocialLoginInput
	if !DecodeJSON(w, r, &input) {
		return
	}

	result, err := h.Svc.SocialLogin(r.Context(), input)
	if err != nil {
		RenderError(w, err)
		return
	}
	h.writeLoginResult(w, result, true)
}

// Refresh handles POST /auth/refresh. The refresh token arrives via the
// path-scoped cookie, with a JSON body fallback for non-browser clients.
func (h *AuthHandlers) Refresh(w http.ResponseWriter, r *http.Request) {
	token := h.refreshTokenFromRequest(r)
	if token == "" {
		WriteError(w, ErrorParams{
			Code:    http.StatusUnauthorized,
			ErrCode: "unauthorized",
			Err:     errors.New("refresh token required"),
		})
		return
	}

	pair, err := h.Svc.Refresh(r.Context(), token)
	if err != nil {
		h.clearRefreshCookie(w)
		RenderError(w, err)
		return
	}

	h.setRefreshCookie(w, pair.RefreshToken)
	WriteJSON(w, http.StatusOK, pair)
}

// Logout handles POST /auth/logout (authenticated).
func (h *AuthHandlers) Logout(w http.ResponseWriter, r *http.Request) {
	principal, ok := PrincipalFromContext(r.Context())
	if !ok {
		WriteError(w, ErrorParams{
			Code:    http.StatusUnauthorized,
			ErrCode: "unauthorized",
			Err:     errors.New("authentication required"),
		})
		return
	}

	if err := h.Svc.Logout(r.Context(), principal.UserID); err != nil {
		RenderError(w, err)
		return
	}
	h.clearRefreshCookie(w)
	WriteJSON(w, http.StatusOK, messageResponse{Message: "logged out"})
}

// VerifyEmail handles POST /auth/verify-email.
func (h *AuthHandlers) VerifyEmail(w http.ResponseWriter, r *http.Request) {
	var input struct {
		Token string `json:"token"`
	}
	if !DecodeJSON(w, r, &input) {
		return
	}

	if err := h.Svc.VerifyEmail(r.Context(), input.Token); err != nil {
		RenderError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, messageResponse{Message: "email verified"})
}

// ResendVerification handles POST /auth/resend-verification.
func (h *AuthHandlers) ResendVerification(w http.ResponseWriter, r *http.Request) {
	var input struct {
		Email string `json:"email"`
	}
	if !DecodeJSON(w, r, &input) {
		return
	}

	if err := h.Svc.ResendVerification(r.Context(), input.Email); err != nil {
		RenderError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, messageResponse{
		Message: "if the account exists and is unverified, a new link has been sent",
	})
}

// ForgotPassword handles POST /auth/forgot-password. The response is the
// same whether or not the email exists.
func (h *AuthHandlers) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	var input struct {
		Email string `json:"email"`
	}
	if !DecodeJSON(w, r, &input) {
		return
	}

	if err := h.Svc.ForgotPassword(r.Context(), input.Email); err != nil {
		RenderError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, messageResponse{
		Message: "if the account exists, a reset link has been sent",
	})
}

// ResetPassword handles POST /auth/reset-password.
func (h *AuthHandlers) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var input struct {
		Token       string `json:"token"`
		NewPassword string `json:"newPassword"`
	}
	if !DecodeJSON(w, r, &input) {
		return
	}

	if err := h.Svc.ResetPassword(r.Context(), input.Token, input.NewPassword); err != nil {
		RenderError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, messageResponse{Message: "password updated; please log in again"})
}

// ChangePassword handles POST /auth/change-password (authenticated).
func (h *AuthHandlers) ChangePassword(w http.ResponseWriter, r *http.Request) {
	principal, ok := PrincipalFromContext(r.Context())
	if !ok {
		WriteError(w, ErrorParams{
			Code:    http.StatusUnauthorized,
			ErrCode: "unauthorized",
			Err:     errors.New("authentication required"),
		})
		return
	}

	var input struct {
		OldPassword string `json:"oldPassword"`
		NewPassword string `json:"newPassword"`
	}
	if !DecodeJSON(w, r, &input) {
		return
	}

	if err := h.Svc.ChangePassword(r.Context(), principal.UserID, input.OldPassword, input.NewPassword); err != nil {
		RenderError(w, err)
		return
	}
	h.clearRefreshCookie(w)
	WriteJSON(w, http.StatusOK, messageResponse{Message: "password updated; please log in again"})
}

// Account handles GET /auth/account (authenticated).
func (h *AuthHandlers) Account(w http.ResponseWriter, r *http.Request) {
	principal, _ := PrincipalFromContext(r.Context())

	user, err := h.Svc.Account(r.Context(), principal.UserID)
	if err != nil {
		RenderError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, user)
}

// UpdateAccount handles PATCH /auth/account (authenticated).
func (h *AuthHandlers) UpdateAccount(w http.ResponseWriter, r *http.Request) {
	principal, _ := PrincipalFromContext(r.Context())

	var input service.UpdateAccountInput
	if !DecodeJSON(w, r, &input) {
		return
	}

	user, err := h.Svc.UpdateAccount(r.Context(), principal.UserID, input)
	if err != nil {
		RenderError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, user)
}

// EnrollMFA handles POST /auth/mfa/enroll (authenticated).
func (h *AuthHandlers) EnrollMFA(w http.ResponseWriter, r *http.Request) {
	principal, _ := PrincipalFromContext(r.Context())

	enrollment, err := h.Svc.EnrollMFA(r.Context(), principal.UserID)
	if err != nil {
		RenderError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, enrollment)
}

// ActivateMFA handles POST /auth/mfa/activate (authenticated).
func (h *AuthHandlers) ActivateMFA(w http.ResponseWriter, r *http.Request) {
	principal, _ := PrincipalFromContext(r.Context())

	var input struct {
		Code string `json:"code"`
	}
	if !DecodeJSON(w, r, &input) {
		return
	}

	if err := h.Svc.ActivateMFA(r.Context(), principal.UserID, input.Code); err != nil {
		RenderError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, messageResponse{Message: "multi-factor authentication enabled"})
}

// DisableMFA handles POST /auth/mfa/disable (authenticated).
func (h *AuthHandlers) DisableMFA(w http.ResponseWriter, r *http.Request) {
	principal, _ := PrincipalFromContext(r.Context())

	var input struct {
		Code string `json:"code"`
	}
	if !DecodeJSON(w, r, &input) {
		return
	}

	if err := h.Svc.DisableMFA(r.Context(), principal.UserID, input.Code); err != nil {
		RenderError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, messageResponse{Message: "multi-factor authentication disabled"})
}

// writeLoginResult renders a login outcome with the token pair at the
// top level. A completed login also sets the refresh cookie; an
// MFA-gated login returns only the gate signal. Federated logins
// include the user record so a first sign-in sees the created account.
func (h *AuthHandlers) writeLoginResult(w http.ResponseWriter, result *service.LoginResult, includeUser bool) {
	if result.MFARequired {
		WriteJSON(w, http.StatusOK, map[string]any{
			"mfaRequired": true,
			"userId":      result.User.ID,
		})
		return
	}

	h.setRefreshCookie(w, result.Tokens.RefreshToken)
	body := map[string]any{
		"accessToken":  result.Tokens.AccessToken,
		"refreshToken": result.Tokens.RefreshToken,
	}
	if includeUser {
		body["user"] = result.User
	}
	WriteJSON(w, http.StatusOK, body)
}

func (h *AuthHandlers) refreshTokenFromRequest(r *http.Request) string {
	if c, err := r.Cookie(refreshCookieName); err == nil && c.Value != "" {
		return c.Value
	}

	var body struct {
		RefreshToken string `json:"refreshToken"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err == nil {
		return body.RefreshToken
	}
	return ""
}

func (h *AuthHandlers) setRefreshCookie(w http.ResponseWriter, token string) {
	ttl := h.RefreshTTL
	if ttl <= 0 {
		ttl = 7 * 24 * time.Hour
	}
	http.SetCookie(w, &http.Cookie{
		Name:     refreshCookieName,
		Value:    token,
		Path:     refreshCookiePath,
		MaxAge:   int(ttl / time.Second),
		HttpOnly: true,
		Secure:   h.SecureCookies,
		SameSite: http.SameSiteStrictMode,
	})
}

func (h *AuthHandlers) clearRefreshCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     refreshCookieName,
		Value:    "",
		Path:     refreshCookiePath,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.SecureCookies,
		SameSite: http.SameSiteStrictMode,
	})
}
