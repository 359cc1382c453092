package middleware

import (
	"errors"
	"strings"

	"easyflip-backend/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const userLocal = "user"

var (
	ErrMissingToken = errors.New("missing bearer token")
	ErrInvalidToken = errors.New("invalid access token")
)

// AuthUser is the verified caller, taken from Supabase access token claims.
type AuthUser struct {
	ID        uuid.UUID
	Email     string
	Name      string
	AvatarURL string
}

// SupabaseClaims is the subset of the Supabase Auth JWT we read.
type SupabaseClaims struct {
	Email        string                 `json:"email"`
	Role         string                 `json:"role"`
	UserMetadata map[string]interface{} `json:"user_metadata"`
	jwt.RegisteredClaims
}

// TokenVerifier validates Supabase access tokens (HS256, project JWT secret).
type TokenVerifier struct {
	Secret string
}

// Verify parses the token and returns the caller it belongs to.
func (v *TokenVerifier) Verify(token string) (*AuthUser, error) {
	if v == nil || v.Secret == "" {
		return nil, ErrInvalidToken
	}
	claims := &SupabaseClaims{}
	_, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, ErrInvalidToken
		}
		return []byte(v.Secret), nil
	}, jwt.WithExpirationRequired())
	if err != nil {
		return nil, ErrInvalidToken
	}
	if claims.Role != "" && claims.Role != "authenticated" {
		return nil, ErrInvalidToken
	}
	id, err := uuid.Parse(claims.Subject)
	if err != nil {
		return nil, ErrInvalidToken
	}
	return &AuthUser{
		ID:        id,
		Email:     claims.Email,
		Name:      metaString(claims.UserMetadata, "full_name", "name"),
		AvatarURL: metaString(claims.UserMetadata, "avatar_url", "picture"),
	}, nil
}

func metaString(m map[string]interface{}, keys ...string) string {
	for _, k := range keys {
		if s, ok := m[k].(string); ok && s != "" {
			return s
		}
	}
	return ""
}

// RequireAuth rejects requests without a valid "Authorization: Bearer <token>".
func RequireAuth(v *TokenVerifier) fiber.Handler {
	return func(c *fiber.Ctx) error {
		header := c.Get(fiber.HeaderAuthorization)
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || strings.TrimSpace(token) == "" {
			return response.Unauthorized(c, "Unauthorized")
		}
		user, err := v.Verify(strings.TrimSpace(token))
		if err != nil {
			return response.Unauthorized(c, "Unauthorized")
		}
		c.Locals(userLocal, user)
		return c.Next()
	}
}

// GetUser returns the verified caller (nil if the route is public).
func GetUser(c *fiber.Ctx) *AuthUser {
	u, _ := c.Locals(userLocal).(*AuthUser)
	return u
}

// SetUser is used by tests and internal routes to inject a caller.
func SetUser(c *fiber.Ctx, u *AuthUser) {
	c.Locals(userLocal, u)
}
