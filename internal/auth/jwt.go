package auth

import (
	"errors"
	"fmt"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/reigncloud/reigncloud/internal/domain"
)

type tokenClaims struct {
	Email string           `json:"email"`
	Type  domain.TokenType `json:"typ"`
	jwtlib.RegisteredClaims
}

// TokenManager signs and verifies access and refresh tokens with a shared HMAC secret.
type TokenManager struct {
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	clock      clockwork.Clock
}

func NewTokenManager(secret string, accessTTL, refreshTTL time.Duration, clock clockwork.Clock) *TokenManager {
	return &TokenManager{
		secret:     []byte(secret),
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		clock:      clock,
	}
}

// Issue signs a fresh access/refresh pair. Each token gets its own jti.
func (m *TokenManager) Issue(userID uuid.UUID, email string) (*domain.IssuedTokens, error) {
	now := m.clock.Now()

	access, _, err := m.sign(userID, email, domain.TokenTypeAccess, now, m.accessTTL)
	if err != nil {
		return nil, err
	}
	refresh, refreshID, err := m.sign(userID, email, domain.TokenTypeRefresh, now, m.refreshTTL)
	if err != nil {
		return nil, err
	}

	return &domain.IssuedTokens{
		TokenPair:       domain.TokenPair{AccessToken: access, RefreshToken: refresh},
		RefreshTokenID:  refreshID,
		RefreshTokenTTL: m.refreshTTL,
	}, nil
}

func (m *TokenManager) sign(userID uuid.UUID, email string, typ domain.TokenType, now time.Time, ttl time.Duration) (string, string, error) {
	id := uuid.NewString()
	claims := tokenClaims{
		Email: email,
		Type:  typ,
		RegisteredClaims: jwtlib.RegisteredClaims{
			Subject:   userID.String(),
			ID:        id,
			IssuedAt:  jwtlib.NewNumericDate(now),
			ExpiresAt: jwtlib.NewNumericDate(now.Add(ttl)),
		},
	}

	signed, err := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", "", fmt.Errorf("failed to sign %s token: %w", typ, err)
	}
	return signed, id, nil
}

func (m *TokenManager) VerifyAccessToken(token string) (*domain.Claims, error) {
	return m.verify(token, domain.TokenTypeAccess)
}

func (m *TokenManager) VerifyRefreshToken(token string) (*domain.Claims, error) {
	return m.verify(token, domain.TokenTypeRefresh)
}

// verify checks signature, algorithm, expiry and token type. All failures wrap domain.ErrInvalidToken.
// The subject is returned as-is; callers decide whether it is a valid user ID.
func (m *TokenManager) verify(token string, want domain.TokenType) (*domain.Claims, error) {
	if token == "" {
		return nil, domain.ErrInvalidToken
	}

	var claims tokenClaims
	_, err := jwtlib.ParseWithClaims(token, &claims, func(t *jwtlib.Token) (any, error) {
		if _, ok := t.Method.(*jwtlib.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected alg: %v", t.Header["alg"])
		}
		return m.secret, nil
	},
		jwtlib.WithValidMethods([]string{jwtlib.SigningMethodHS256.Alg()}),
		jwtlib.WithExpirationRequired(),
		jwtlib.WithTimeFunc(m.clock.Now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrInvalidToken, err)
	}

	if claims.Type != want {
		return nil, fmt.Errorf("%w: expected %s token, got %q", domain.ErrInvalidToken, want, claims.Type)
	}

	out := &domain.Claims{
		Subject: claims.Subject,
		Email:   claims.Email,
		Type:    claims.Type,
		TokenID: claims.ID,
	}
	if claims.ExpiresAt != nil {
		out.ExpiresAt = claims.ExpiresAt.Time
	}
	return out, nil
}

// SubjectID parses the subject claim as a user ID.
func SubjectID(claims *domain.Claims) (uuid.UUID, error) {
	id, err := uuid.Parse(claims.Subject)
	if err != nil {
		return uuid.Nil, errors.Join(domain.ErrMalformedClaim, err)
	}
	return id, nil
}
