package ebay

import (
	"context"
	"testing"
	"time"

	"easyflip-backend/internal/domain"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

func TestCipher(t *testing.T) {
	c, err := NewCipher(testKey)
	require.NoError(t, err)
	sealed, err := c.Seal("v^1.1#secret")
	require.NoError(t, err)
	assert.NotContains(t, sealed, "secret")
	plain, err := c.Open(sealed)
	require.NoError(t, err)
	assert.Equal(t, "v^1.1#secret", plain)

	again, err := c.Seal("v^1.1#secret")
	require.NoError(t, err)
	assert.NotEqual(t, sealed, again, "nonce must differ per seal")

	_, err = c.Open(sealed[:len(sealed)-4] + "AAAA")
	assert.ErrorIs(t, err, ErrDecryptFailed)
	_, err = NewCipher("short")
	assert.ErrorIs(t, err, ErrInvalidKey)
}

func TestTokenStore_SaveLoadScope(t *testing.T) {
	env := setupEbayTest(t)
	ctx := context.Background()
	uid := uuid.New()

	_, _, err := env.tokens.Load(ctx, uid)
	assert.ErrorIs(t, err, ErrNotConnected)

	exp := time.Now().Add(time.Hour).UTC().Truncate(time.Second)
	require.NoError(t, env.tokens.Save(ctx, uid, &oauth2.Token{AccessToken: "at", RefreshToken: "rt", Expiry: exp}, "sell.inventory"))

	var row domain.EbayToken
	require.NoError(t, env.db.First(&row, "user_id = ?", uid).Error)
	assert.NotEqual(t, "at", row.AccessToken)

	tok, _, err := env.tokens.Load(ctx, uid)
	require.NoError(t, err)
	assert.Equal(t, "at", tok.AccessToken)
	assert.Equal(t, "rt", tok.RefreshToken)

	// A refresh without a new refresh token keeps the old one.
	require.NoError(t, env.tokens.Save(ctx, uid, &oauth2.Token{AccessToken: "at2", Expiry: exp}, ""))
	tok, _, err = env.tokens.Load(ctx, uid)
	require.NoError(t, err)
	assert.Equal(t, "at2", tok.AccessToken)
	assert.Equal(t, "rt", tok.RefreshToken)

	env.mr.Del(scopeKey(uid))
	scope, err := env.tokens.Scope(ctx, uid)
	require.NoError(t, err)
	assert.Equal(t, "sell.inventory", scope)
	assert.True(t, env.mr.Exists(scopeKey(uid)))
}

func TestTokenStore_ClearAll(t *testing.T) {
	env := setupEbayTest(t)
	ctx := context.Background()
	uid := uuid.New()
	require.NoError(t, env.tokens.Save(ctx, uid, &oauth2.Token{AccessToken: "at"}, "sell.inventory"))
	require.NoError(t, env.mr.Set(userStateKey(uid), "st-1"))
	require.NoError(t, env.mr.Set(stateKey("st-1"), `{"status":"pending"}`))
	require.NoError(t, env.mr.Set(appTokenKey, "shared"))

	require.NoError(t, env.tokens.ClearAll(ctx, uid))

	var n int64
	env.db.Model(&domain.EbayToken{}).Count(&n)
	assert.Equal(t, int64(0), n)
	assert.False(t, env.mr.Exists(scopeKey(uid)))
	assert.False(t, env.mr.Exists(userStateKey(uid)))
	assert.False(t, env.mr.Exists(stateKey("st-1")))
	assert.True(t, env.mr.Exists(appTokenKey), "application token is not user scoped")
}

func TestTokenStore_ClearAllReportsRedisFailure(t *testing.T) {
	env := setupEbayTest(t)
	uid := uuid.New()
	require.NoError(t, env.tokens.Save(context.Background(), uid, &oauth2.Token{AccessToken: "at"}, ""))
	env.mr.Close()

	assert.Error(t, env.tokens.ClearAll(context.Background(), uid))
	var n int64
	env.db.Model(&domain.EbayToken{}).Count(&n)
	assert.Equal(t, int64(0), n, "database removal still runs")
}

func TestTokenStore_AppTokenCached(t *testing.T) {
	env := setupEbayTest(t)
	ctx := context.Background()

	tok, err := env.tokens.AppToken(ctx, env.client)
	require.NoError(t, err)
	assert.Equal(t, "access-client_credentials", tok.AccessToken)
	assert.Equal(t, "Bearer", tok.TokenType)

	_, err = env.tokens.AppToken(ctx, env.client)
	require.NoError(t, err)
	assert.Equal(t, []string{"client_credentials"}, env.fake.tokenGrants)
	assert.True(t, env.mr.TTL(appTokenKey) > 0)
}
