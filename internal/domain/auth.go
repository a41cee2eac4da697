package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type TokenType string

const (
	TokenTypeAccess  TokenType = "access"
	TokenTypeRefresh TokenType = "refresh"
)

// Claims is the verified content of a bearer token. Subject is kept as the raw claim string so callers
// can tell a bad signature apart from a subject that is not a user ID.
type Claims struct {
	Subject   string
	Email     string
	Type      TokenType
	TokenID   string
	ExpiresAt time.Time
}

type TokenPair struct {
	AccessToken  string
	RefreshToken string
}

// IssuedTokens carries the refresh token's ID and lifetime so it can be recorded as active.
type IssuedTokens struct {
	TokenPair
	RefreshTokenID  string
	RefreshTokenTTL time.Duration
}

// AccessTokenVerifier validates signature, expiry and token type of an access token.
type AccessTokenVerifier interface {
	VerifyAccessToken(token string) (*Claims, error)
}

type TokenIssuer interface {
	AccessTokenVerifier
	Issue(userID uuid.UUID, email string) (*IssuedTokens, error)
	VerifyRefreshToken(token string) (*Claims, error)
}

// RefreshTokenStore tracks refresh tokens that have not been used or revoked.
type RefreshTokenStore interface {
	Save(ctx context.Context, tokenID string, userID uuid.UUID, ttl time.Duration) error
	// Consume removes the token and reports whether it was still active.
	Consume(ctx context.Context, tokenID string) (bool, error)
	Revoke(ctx context.Context, tokenID string) error
}

type PasswordHasher interface {
	Hash(password string) (string, error)
	Compare(hash, password string) error
}
