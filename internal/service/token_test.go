package service

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	jwtcodec "github.com/tiwed/auth-api/internal/adapters/jwt"
	redisadapter "github.com/tiwed/auth-api/internal/adapters/redis"
	domainauth "github.com/tiwed/auth-api/internal/domain/auth"
	"github.com/tiwed/auth-api/internal/domain/model"
	"github.com/tiwed/auth-api/internal/testutil"
)

func newTestAuthority(t *testing.T) (*TokenAuthority, *miniredis.Miniredis) {
	t.Helper()

	mr, client := testutil.NewTestRedis(t)

	codec, err := jwtcodec.NewCodec(jwtcodec.Config{
		Secret: []byte("0123456789abcdef0123456789abcdef"),
		Issuer: "tiwed-auth",
	})
	require.NoError(t, err)

	authority := NewTokenAuthority(TokenAuthorityOptions{
		Codec: codec,
		Cache: redisadapter.NewSessionCache(client),
	})
	return authority, mr
}

func testUser() *model.User {
	return &model.User{
		ID:    "user-1",
		Email: "a@x.com",
		Role:  domainauth.RoleUser,
	}
}

func TestTokenAuthority_IssueAccessTokenSupersedes(t *testing.T) {
	authority, _ := newTestAuthority(t)
	ctx := context.Background()
	user := testUser()

	first, err := authority.IssueAccessToken(ctx, user)
	require.NoError(t, err)

	_, err = authority.VerifyAccess(ctx, first)
	require.NoError(t, err)

	second, err := authority.IssueAccessToken(ctx, user)
	require.NoError(t, err)
	require.NotEqual(t, first, second)

	// Only the most recent access token is honored.
	_, err = authority.VerifyAccess(ctx, first)
	assert.ErrorIs(t, err, ErrSessionRevoked)

	principal, err := authority.VerifyAccess(ctx, second)
	require.NoError(t, err)
	assert.Equal(t, "user-1", principal.UserID)
	assert.Equal(t, domainauth.RoleUser, principal.Role)
}

func TestTokenAuthority_CheckRefreshHonorsOnlyCurrentToken(t *testing.T) {
	authority, _ := newTestAuthority(t)
	ctx := context.Background()
	user := testUser()

	refresh, err := authority.IssueRefreshToken(ctx, user)
	require.NoError(t, err)

	claims, err := authority.CheckRefresh(ctx, refresh)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserID)

	// Issuing the next pair supersedes the checked token.
	pair, err := authority.IssuePair(ctx, user)
	require.NoError(t, err)
	assert.NotEqual(t, refresh, pair.RefreshToken)

	_, err = authority.CheckRefresh(ctx, refresh)
	require.ErrorIs(t, err, ErrSessionRevoked)

	_, err = authority.CheckRefresh(ctx, pair.RefreshToken)
	require.NoError(t, err)
}

func TestTokenAuthority_CheckRefreshRejectsForgedToken(t *testing.T) {
	authority, _ := newTestAuthority(t)
	ctx := context.Background()

	_, err := authority.CheckRefresh(ctx, "not.a.token")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrSessionRevoked)
}

func TestTokenAuthority_RevokeAllInvalidatesBothTokens(t *testing.T) {
	authority, _ := newTestAuthority(t)
	ctx := context.Background()
	user := testUser()

	pair, err := authority.IssuePair(ctx, user)
	require.NoError(t, err)

	require.NoError(t, authority.RevokeAll(ctx, user.ID))

	// Signature and expiry are still individually valid, but neither token
	// matches a cached session any longer.
	_, err = authority.VerifyAccess(ctx, pair.AccessToken)
	assert.ErrorIs(t, err, ErrSessionRevoked)
	_, err = authority.CheckRefresh(ctx, pair.RefreshToken)
	assert.ErrorIs(t, err, ErrSessionRevoked)
}

func TestTokenAuthority_RefreshExpiryInCache(t *testing.T) {
	authority, mr := newTestAuthority(t)
	ctx := context.Background()

	refresh, err := authority.IssueRefreshToken(ctx, testUser())
	require.NoError(t, err)

	// Cache entry death is equivalent to revocation even while the token
	// itself remains cryptographically valid.
	mr.FastForward(8 * 24 * time.Hour)

	_, err = authority.CheckRefresh(ctx, refresh)
	assert.Error(t, err)
}

func TestTokenAuthority_OneTimeTokenSingleUse(t *testing.T) {
	authority, _ := newTestAuthority(t)
	ctx := context.Background()
	user := testUser()

	token, err := authority.IssueOneTimeToken(ctx, user, domainauth.PurposePasswordReset, 15*time.Minute)
	require.NoError(t, err)

	claims, err := authority.ConsumeOneTimeToken(ctx, token, domainauth.PurposePasswordReset)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserID)

	// Second consumption inside the TTL window must fail.
	_, err = authority.ConsumeOneTimeToken(ctx, token, domainauth.PurposePasswordReset)
	assert.ErrorIs(t, err, ErrOneTimeTokenInvalid)
}

func TestTokenAuthority_OneTimeTokenSuperseded(t *testing.T) {
	authority, _ := newTestAuthority(t)
	ctx := context.Background()
	user := testUser()

	first, err := authority.IssueOneTimeToken(ctx, user, domainauth.PurposePasswordReset, 15*time.Minute)
	require.NoError(t, err)
	_, err = authority.IssueOneTimeToken(ctx, user, domainauth.PurposePasswordReset, 15*time.Minute)
	require.NoError(t, err)

	// Issuing a second reset token overwrites the first.
	_, err = authority.ConsumeOneTimeToken(ctx, first, domainauth.PurposePasswordReset)
	assert.ErrorIs(t, err, ErrOneTimeTokenInvalid)
}

func TestTokenAuthority_OneTimeTokenWrongPurpose(t *testing.T) {
	authority, _ := newTestAuthority(t)
	ctx := context.Background()

	_, err := authority.IssueOneTimeToken(ctx, testUser(), domainauth.PurposeAccess, time.Minute)
	require.Error(t, err)

	token, err := authority.IssueOneTimeToken(ctx, testUser(), domainauth.PurposeEmailVerify, time.Minute)
	require.NoError(t, err)

	// A verify-purpose token cannot be consumed as a reset token.
	_, err = authority.ConsumeOneTimeToken(ctx, token, domainauth.PurposePasswordReset)
	require.Error(t, err)
}

func TestTokenAuthority_VerifyAccessRejectsRefreshToken(t *testing.T) {
	authority, _ := newTestAuthority(t)
	ctx := context.Background()

	refresh, err := authority.IssueRefreshToken(ctx, testUser())
	require.NoError(t, err)

	_, err = authority.VerifyAccess(ctx, refresh)
	require.Error(t, err)
}
