package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	"github.com/reigncloud/reigncloud/internal/domain"
)

const refreshKeyPrefix = "refresh:"

// RefreshTokenStore keeps one key per active refresh token, expiring with the token itself.
type RefreshTokenStore struct {
	rdb *goredis.Client
}

func NewRefreshTokenStore(rdb *goredis.Client) *RefreshTokenStore {
	return &RefreshTokenStore{rdb: rdb}
}

func refreshKey(tokenID string) string {
	return refreshKeyPrefix + tokenID
}

func (s *RefreshTokenStore) Save(ctx context.Context, tokenID string, userID uuid.UUID, ttl time.Duration) error {
	if err := s.rdb.Set(ctx, refreshKey(tokenID), userID.String(), ttl).Err(); err != nil {
		return fmt.Errorf("failed to save refresh token: %w: %w", domain.ErrStoreUnavailable, err)
	}
	return nil
}

// Consume deletes the token atomically and reports whether it was active. A token can be consumed once.
func (s *RefreshTokenStore) Consume(ctx context.Context, tokenID string) (bool, error) {
	err := s.rdb.GetDel(ctx, refreshKey(tokenID)).Err()
	if errors.Is(err, goredis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to consume refresh token: %w: %w", domain.ErrStoreUnavailable, err)
	}
	return true, nil
}

func (s *RefreshTokenStore) Revoke(ctx context.Context, tokenID string) error {
	if err := s.rdb.Del(ctx, refreshKey(tokenID)).Err(); err != nil {
		return fmt.Errorf("failed to revoke refresh token: %w: %w", domain.ErrStoreUnavailable, err)
	}
	return nil
}
