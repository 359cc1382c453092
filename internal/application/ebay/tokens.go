package ebay

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"easyflip-backend/internal/domain"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/multierr"
	"golang.org/x/crypto/nacl/secretbox"
	"golang.org/x/oauth2"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	appTokenKey     = "ebay:app_token"
	scopeKeyPrefix  = "ebay:token_scope:"
	stateKeyPrefix  = "ebay:oauth:state:"
	userStateKeyPfx = "ebay:oauth:user:"
	scopeCacheTTL   = 24 * time.Hour
	appTokenLeeway  = time.Minute
	nonceSize       = 24
)

var (
	ErrNotConnected  = errors.New("eBay account is not connected")
	ErrInvalidKey    = errors.New("TOKEN_ENCRYPTION_KEY must be 64 hex characters")
	ErrDecryptFailed = errors.New("stored eBay token could not be decrypted")
)

// Cipher seals tokens at rest with NaCl secretbox.
type Cipher struct {
	key [32]byte
}

func NewCipher(hexKey string) (*Cipher, error) {
	raw, err := hex.DecodeString(hexKey)
	if err != nil || len(raw) != 32 {
		return nil, ErrInvalidKey
	}
	c := &Cipher{}
	copy(c.key[:], raw)
	return c, nil
}

// Seal returns base64(nonce || box).
func (c *Cipher) Seal(plaintext string) (string, error) {
	var nonce [nonceSize]byte
	if _, err := io.ReadFull(rand.Reader, nonce[:]); err != nil {
		return "", err
	}
	out := secretbox.Seal(nonce[:], []byte(plaintext), &nonce, &c.key)
	return base64.StdEncoding.EncodeToString(out), nil
}

func (c *Cipher) Open(sealed string) (string, error) {
	if sealed == "" {
		return "", nil
	}
	raw, err := base64.StdEncoding.DecodeString(sealed)
	if err != nil || len(raw) < nonceSize+secretbox.Overhead {
		return "", ErrDecryptFailed
	}
	var nonce [nonceSize]byte
	copy(nonce[:], raw[:nonceSize])
	plain, ok := secretbox.Open(nil, raw[nonceSize:], &nonce, &c.key)
	if !ok {
		return "", ErrDecryptFailed
	}
	return string(plain), nil
}

// TokenStore owns every piece of stored eBay credential state for a user:
// the encrypted token row, the cached scope and the pending OAuth state pointer.
type TokenStore struct {
	DB     *gorm.DB
	Rdb    *redis.Client
	Cipher *Cipher
}

func scopeKey(userID uuid.UUID) string     { return scopeKeyPrefix + userID.String() }
func userStateKey(userID uuid.UUID) string { return userStateKeyPfx + userID.String() }
func stateKey(state string) string         { return stateKeyPrefix + state }

// Save encrypts and upserts the user's token.
func (s *TokenStore) Save(ctx context.Context, userID uuid.UUID, tok *oauth2.Token, scope string) error {
	access, err := s.Cipher.Seal(tok.AccessToken)
	if err != nil {
		return err
	}
	refresh := ""
	if tok.RefreshToken != "" {
		if refresh, err = s.Cipher.Seal(tok.RefreshToken); err != nil {
			return err
		}
	}
	row := domain.EbayToken{
		UserID:       userID,
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    tok.TokenType,
		Scope:        scope,
		ExpiresAt:    tok.Expiry,
	}
	upd := []string{"access_token", "token_type", "expires_at", "updated_at"}
	if refresh != "" {
		upd = append(upd, "refresh_token")
	}
	if scope != "" {
		upd = append(upd, "scope")
	}
	if err := s.DB.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns(upd),
	}).Create(&row).Error; err != nil {
		return fmt.Errorf("save ebay token: %w", err)
	}
	if scope != "" {
		if err := s.Rdb.Set(ctx, scopeKey(userID), scope, scopeCacheTTL).Err(); err != nil {
			return fmt.Errorf("cache ebay scope: %w", err)
		}
	}
	return nil
}

// Load returns the decrypted token and its row.
func (s *TokenStore) Load(ctx context.Context, userID uuid.UUID) (*oauth2.Token, *domain.EbayToken, error) {
	var row domain.EbayToken
	if err := s.DB.WithContext(ctx).Where("user_id = ?", userID).First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, ErrNotConnected
		}
		return nil, nil, err
	}
	access, err := s.Cipher.Open(row.AccessToken)
	if err != nil {
		return nil, nil, err
	}
	refresh, err := s.Cipher.Open(row.RefreshToken)
	if err != nil {
		return nil, nil, err
	}
	return &oauth2.Token{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    row.TokenType,
		Expiry:       row.ExpiresAt,
	}, &row, nil
}

// Scope returns the granted scope string, from cache when possible.
func (s *TokenStore) Scope(ctx context.Context, userID uuid.UUID) (string, error) {
	if v, err := s.Rdb.Get(ctx, scopeKey(userID)).Result(); err == nil {
		return v, nil
	} else if !errors.Is(err, redis.Nil) {
		return "", err
	}
	var row domain.EbayToken
	if err := s.DB.WithContext(ctx).Select("scope").Where("user_id = ?", userID).First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", ErrNotConnected
		}
		return "", err
	}
	_ = s.Rdb.Set(ctx, scopeKey(userID), row.Scope, scopeCacheTTL).Err()
	return row.Scope, nil
}

// ClearAll removes every stored credential key for the user: the token row,
// the scope cache, the pending state pointer and the state it points at.
// Every removal is attempted; failures are combined.
func (s *TokenStore) ClearAll(ctx context.Context, userID uuid.UUID) error {
	errs := []error{s.DB.WithContext(ctx).Where("user_id = ?", userID).Delete(&domain.EbayToken{}).Error}

	keys := []string{scopeKey(userID), userStateKey(userID)}
	if st, err := s.Rdb.Get(ctx, userStateKey(userID)).Result(); err == nil && st != "" {
		keys = append(keys, stateKey(st))
	} else if err != nil && !errors.Is(err, redis.Nil) {
		errs = append(errs, err)
	}
	errs = append(errs, s.Rdb.Del(ctx, keys...).Err())
	return multierr.Combine(errs...)
}

type persistingSource struct {
	ctx    context.Context
	store  *TokenStore
	userID uuid.UUID
	base   oauth2.TokenSource
	last   string
}

// Token writes refreshed tokens back so the next request starts from them.
func (p *persistingSource) Token() (*oauth2.Token, error) {
	tok, err := p.base.Token()
	if err != nil {
		return nil, err
	}
	tok = bearer(tok)
	if tok.AccessToken != p.last {
		p.last = tok.AccessToken
		if err := p.store.Save(p.ctx, p.userID, tok, ""); err != nil {
			return nil, err
		}
	}
	return tok, nil
}

// UserTokenSource loads the user's grant and returns a refreshing source.
func (s *TokenStore) UserTokenSource(ctx context.Context, client *Client, userID uuid.UUID) (oauth2.TokenSource, error) {
	tok, _, err := s.Load(ctx, userID)
	if err != nil {
		return nil, err
	}
	return oauth2.ReuseTokenSource(tok, &persistingSource{
		ctx:    ctx,
		store:  s,
		userID: userID,
		base:   client.UserTokenSource(ctx, tok),
		last:   tok.AccessToken,
	}), nil
}

type cachedAppToken struct {
	AccessToken string    `json:"access_token"`
	TokenType   string    `json:"token_type"`
	Expiry      time.Time `json:"expiry"`
}

// AppToken returns the shared client-credentials token, cached in Redis until expiry.
func (s *TokenStore) AppToken(ctx context.Context, client *Client) (*oauth2.Token, error) {
	if raw, err := s.Rdb.Get(ctx, appTokenKey).Bytes(); err == nil {
		var c cachedAppToken
		if json.Unmarshal(raw, &c) == nil && time.Until(c.Expiry) > appTokenLeeway {
			return &oauth2.Token{AccessToken: c.AccessToken, TokenType: c.TokenType, Expiry: c.Expiry}, nil
		}
	} else if !errors.Is(err, redis.Nil) {
		return nil, err
	}
	tok, err := client.FetchAppToken(ctx)
	if err != nil {
		return nil, err
	}
	ttl := time.Until(tok.Expiry) - appTokenLeeway
	if tok.Expiry.IsZero() {
		ttl = time.Hour
	}
	if ttl > 0 {
		b, _ := json.Marshal(cachedAppToken{AccessToken: tok.AccessToken, TokenType: tok.TokenType, Expiry: tok.Expiry})
		_ = s.Rdb.Set(ctx, appTokenKey, b, ttl).Err()
	}
	return tok, nil
}
