package redis

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	"github.com/reigncloud/reigncloud/internal/domain"
	"github.com/stretchr/testify/assert"
)

func TestRefreshTokenStore_UnreachableRedis(t *testing.T) {
	rdb := goredis.NewClient(&goredis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 200 * time.Millisecond,
		MaxRetries:  -1,
	})
	t.Cleanup(func() { _ = rdb.Close() })
	store := NewRefreshTokenStore(rdb)
	ctx := context.Background()

	assert.ErrorIs(t, store.Save(ctx, "jti", uuid.New(), time.Minute), domain.ErrStoreUnavailable)

	active, err := store.Consume(ctx, "jti")
	assert.ErrorIs(t, err, domain.ErrStoreUnavailable)
	assert.False(t, active)

	assert.ErrorIs(t, store.Revoke(ctx, "jti"), domain.ErrStoreUnavailable)
}
