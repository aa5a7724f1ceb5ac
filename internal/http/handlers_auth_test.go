package httpx

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	jwtcodec "github.com/tiwed/auth-api/internal/adapters/jwt"
	mocksauth "github.com/tiwed/auth-api/internal/mocks/auth"
	"github.com/tiwed/auth-api/internal/service"
)

type testServer struct {
	handler http.Handler
	mailer  *mocksauth.RecordingMailer
	users   *mocksauth.MemoryUserRepo
	broker  *mocksauth.MockIdentityBroker
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	codec, err := jwtcodec.NewCodec(jwtcodec.Config{
		Secret: []byte("0123456789abcdef0123456789abcdef"),
		Issuer: "tiwed-test",
	})
	require.NoError(t, err)

	users := mocksauth.NewMemoryUserRepo()
	cache := mocksauth.NewMemorySessionCache()
	broker := &mocksauth.MockIdentityBroker{}
	mailer := &mocksauth.RecordingMailer{}
	authority := service.NewTokenAuthority(service.TokenAuthorityOptions{Codec: codec, Cache: cache})
	svc := service.NewAuthService(service.AuthServiceOptions{
		Users:  users,
		Tokens: authority,
		Broker: broker,
		MFA:    &mocksauth.MockSecondFactor{},
		Mailer: mailer,
	})

	return &testServer{
		handler: NewRouter(RouterServices{Auth: svc, Authority: authority}),
		mailer:  mailer,
		users:   users,
		broker:  broker,
	}
}

func (ts *testServer) do(t *testing.T, method, path string, body any, opts ...func(*http.Request)) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for _, opt := range opts {
		opt(req)
	}

	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	return rec
}

func withBearer(token string) func(*http.Request) {
	return func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+token) }
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

type tokenPairBody struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

type loginBody struct {
	User struct {
		ID    string `json:"id"`
		Email string `json:"email"`
	} `json:"user"`
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	MFARequired  bool   `json:"mfaRequired"`
}

// registerAndLogin drives a user through register + verify + login and
// returns the login response.
func registerAndLogin(t *testing.T, ts *testServer) loginBody {
	t.Helper()

	rec := ts.do(t, http.MethodPost, "/auth/register", map[string]string{
		"email": "ada@example.com", "password": "s3cret-password", "fullName": "Ada",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = ts.do(t, http.MethodPost, "/auth/verify-email", map[string]string{
		"token": ts.mailer.LastToken("verification"),
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = ts.do(t, http.MethodPost, "/auth/login", map[string]string{
		"email": "ada@example.com", "password": "s3cret-password",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	return decodeBody[loginBody](t, rec)
}

func TestHealthz_Public(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestProtectedRoute_RequiresBearer(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodGet, "/auth/account", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = ts.do(t, http.MethodGet, "/auth/account", nil, withBearer("not-a-token"))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRegisterLoginAccountFlow(t *testing.T) {
	ts := newTestServer(t)
	login := registerAndLogin(t, ts)
	require.NotEmpty(t, login.AccessToken)

	rec := ts.do(t, http.MethodGet, "/auth/account", nil, withBearer(login.AccessToken))
	require.Equal(t, http.StatusOK, rec.Code)
	account := decodeBody[map[string]any](t, rec)
	assert.Equal(t, "ada@example.com", account["email"])
	// Secret material never serializes.
	assert.NotContains(t, rec.Body.String(), "passwordHash")
	assert.NotContains(t, rec.Body.String(), "mfaSecret")
}

func TestLogin_BeforeVerificationRejected(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPost, "/auth/register", map[string]string{
		"email": "ada@example.com", "password": "s3cret-password", "fullName": "Ada",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = ts.do(t, http.MethodPost, "/auth/login", map[string]string{
		"email": "ada@example.com", "password": "s3cret-password",
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestLogin_TokenPairAtTopLevel(t *testing.T) {
	ts := newTestServer(t)
	_ = registerAndLogin(t, ts)

	rec := ts.do(t, http.MethodPost, "/auth/login", map[string]string{
		"email": "ada@example.com", "password": "s3cret-password",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Contains(t, body, "accessToken")
	assert.Contains(t, body, "refreshToken")
	assert.NotContains(t, body, "tokens")
	assert.NotContains(t, body, "user")
}

func TestLogin_SetsScopedRefreshCookie(t *testing.T) {
	ts := newTestServer(t)
	_ = registerAndLogin(t, ts)

	rec := ts.do(t, http.MethodPost, "/auth/login", map[string]string{
		"email": "ada@example.com", "password": "s3cret-password",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	c := cookies[0]
	assert.Equal(t, "refresh_token", c.Name)
	assert.Equal(t, "/auth/refresh", c.Path)
	assert.True(t, c.HttpOnly)
	assert.NotEmpty(t, c.Value)
}

func TestRefresh_ViaCookie(t *testing.T) {
	ts := newTestServer(t)
	login := registerAndLogin(t, ts)

	rec := ts.do(t, http.MethodPost, "/auth/refresh", nil, func(r *http.Request) {
		r.AddCookie(&http.Cookie{Name: "refresh_token", Value: login.RefreshToken})
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	pair := decodeBody[tokenPairBody](t, rec)
	assert.NotEmpty(t, pair.AccessToken)
	assert.NotEqual(t, login.RefreshToken, pair.RefreshToken)
}

func TestRefresh_ViaBodyAndReuseRejected(t *testing.T) {
	ts := newTestServer(t)
	login := registerAndLogin(t, ts)

	rec := ts.do(t, http.MethodPost, "/auth/refresh", map[string]string{
		"refreshToken": login.RefreshToken,
	})
	require.Equal(t, http.StatusOK, rec.Code)

	// The consumed token is rejected and the cookie is cleared.
	rec = ts.do(t, http.MethodPost, "/auth/refresh", map[string]string{
		"refreshToken": login.RefreshToken,
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, "refresh_token", cookies[0].Name)
	assert.Empty(t, cookies[0].Value)
	assert.Negative(t, cookies[0].MaxAge)
}

func TestRefresh_MissingToken(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPost, "/auth/refresh", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestLogout_RevokesAccess(t *testing.T) {
	ts := newTestServer(t)
	login := registerAndLogin(t, ts)

	rec := ts.do(t, http.MethodPost, "/auth/logout", nil, withBearer(login.AccessToken))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = ts.do(t, http.MethodGet, "/auth/account", nil, withBearer(login.AccessToken))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestForgotResetPasswordFlow(t *testing.T) {
	ts := newTestServer(t)
	login := registerAndLogin(t, ts)

	// Unknown email answers identically to a known one.
	recUnknown := ts.do(t, http.MethodPost, "/auth/forgot-password", map[string]string{
		"email": "nobody@example.com",
	})
	recKnown := ts.do(t, http.MethodPost, "/auth/forgot-password", map[string]string{
		"email": "ada@example.com",
	})
	assert.Equal(t, http.StatusOK, recUnknown.Code)
	assert.Equal(t, http.StatusOK, recKnown.Code)
	assert.Equal(t, recUnknown.Body.String(), recKnown.Body.String())

	resetToken := ts.mailer.LastToken("reset")
	rec := ts.do(t, http.MethodPost, "/auth/reset-password", map[string]string{
		"token": resetToken, "newPassword": "brand-new-password",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	// Replaying the consumed token is a bad request, not an auth failure.
	rec = ts.do(t, http.MethodPost, "/auth/reset-password", map[string]string{
		"token": resetToken, "newPassword": "brand-new-password",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())

	// The reset revoked the old session.
	rec = ts.do(t, http.MethodGet, "/auth/account", nil, withBearer(login.AccessToken))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = ts.do(t, http.MethodPost, "/auth/login", map[string]string{
		"email": "ada@example.com", "password": "brand-new-password",
	})
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestChangePassword_WrongCurrent(t *testing.T) {
	ts := newTestServer(t)
	login := registerAndLogin(t, ts)

	rec := ts.do(t, http.MethodPost, "/auth/change-password", map[string]string{
		"oldPassword": "wrong-password", "newPassword": "brand-new-password",
	}, withBearer(login.AccessToken))
	assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
}

func TestMFAEnrollActivateLoginFlow(t *testing.T) {
	ts := newTestServer(t)
	login := registerAndLogin(t, ts)

	rec := ts.do(t, http.MethodPost, "/auth/mfa/enroll", nil, withBearer(login.AccessToken))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	enrollment := decodeBody[map[string]string](t, rec)
	assert.NotEmpty(t, enrollment["secret"])
	assert.Contains(t, enrollment["provisioningUri"], "otpauth://")

	rec = ts.do(t, http.MethodPost, "/auth/mfa/activate", map[string]string{"code": "000000"},
		withBearer(login.AccessToken))
	require.Equal(t, http.StatusOK, rec.Code)

	// Password alone now stops at the MFA gate.
	rec = ts.do(t, http.MethodPost, "/auth/login", map[string]string{
		"email": "ada@example.com", "password": "s3cret-password",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	gate := decodeBody[map[string]any](t, rec)
	assert.Equal(t, true, gate["mfaRequired"])
	userID, _ := gate["userId"].(string)
	require.NotEmpty(t, userID)

	rec = ts.do(t, http.MethodPost, "/auth/mfa/verify", map[string]string{
		"userId": userID, "code": "000000",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	completed := decodeBody[loginBody](t, rec)
	assert.NotEmpty(t, completed.AccessToken)
}

func TestSocialLogin_OverHTTP(t *testing.T) {
	ts := newTestServer(t)
	ts.broker.Identity.ProviderID = "sub-123"
	ts.broker.Identity.Email = "ada@example.com"
	ts.broker.Identity.EmailVerified = true
	ts.broker.Identity.Name = "Ada Lovelace"

	rec := ts.do(t, http.MethodPost, "/auth/social-login", map[string]string{
		"credential": "header.payload.sig",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	login := decodeBody[loginBody](t, rec)
	assert.Equal(t, "ada@example.com", login.User.Email)
	assert.NotEmpty(t, login.AccessToken)
	assert.NotEmpty(t, login.RefreshToken)
	assert.NotContains(t, rec.Body.String(), `"tokens"`)
}

func TestInvalidJSONBody(t *testing.T) {
	ts := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/auth/login", bytes.NewBufferString("{not json"))
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
