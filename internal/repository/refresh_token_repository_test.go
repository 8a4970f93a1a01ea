package repository

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/session-gate/internal/domain"
)

// newTestRedis connects to REDIS_TEST_ADDR and skips when it is unset or unreachable.
func newTestRedis(t *testing.T) *redis.Client {
	t.Helper()
	addr := os.Getenv("REDIS_TEST_ADDR")
	if addr == "" {
		t.Skip("REDIS_TEST_ADDR not set")
	}
	client := redis.NewClient(&redis.Options{Addr: addr, DB: 15})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		t.Skipf("redis at %s unreachable: %v", addr, err)
	}
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestRefreshTokens_RotateWithReuseGrace(t *testing.T) {
	client := newTestRedis(t)
	repo := NewRefreshTokenRepository(client)
	ctx := context.Background()

	original, err := repo.Issue(ctx, "user-1", time.Hour)
	require.NoError(t, err)

	first, err := repo.Rotate(ctx, original, time.Hour, 300*time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, "user-1", first.SubjectID)
	assert.NotEqual(t, original, first.Token)
	assert.False(t, first.Replayed)

	replay, err := repo.Rotate(ctx, original, time.Hour, 300*time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, first.Token, replay.Token)
	assert.True(t, replay.Replayed)

	time.Sleep(400 * time.Millisecond)
	_, err = repo.Rotate(ctx, original, time.Hour, 300*time.Millisecond)
	assert.ErrorIs(t, err, domain.ErrRefreshTokenNotFound)

	next, err := repo.Rotate(ctx, first.Token, time.Hour, 0)
	require.NoError(t, err)
	assert.Equal(t, "user-1", next.SubjectID)

	_, err = repo.Rotate(ctx, first.Token, time.Hour, 0)
	assert.ErrorIs(t, err, domain.ErrRefreshTokenNotFound, "no grace means single use")
}

func TestRefreshTokens_IssueExpiresAndRevoke(t *testing.T) {
	client := newTestRedis(t)
	repo := NewRefreshTokenRepository(client)
	ctx := context.Background()

	token, err := repo.Issue(ctx, "user-2", time.Hour)
	require.NoError(t, err)
	ttl, err := client.PTTL(ctx, refreshKeyPrefix+token).Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, 59*time.Minute)

	require.NoError(t, repo.Revoke(ctx, token))
	_, err = repo.Rotate(ctx, token, time.Hour, time.Minute)
	assert.ErrorIs(t, err, domain.ErrRefreshTokenNotFound)

	_, err = repo.Rotate(ctx, "never-issued", time.Hour, time.Minute)
	assert.ErrorIs(t, err, domain.ErrRefreshTokenNotFound)
}

func TestParseRotation(t *testing.T) {
	rot, err := parseRotation([]interface{}{int64(1), "user-1\nnext"})
	require.NoError(t, err)
	assert.Equal(t, Rotation{SubjectID: "user-1", Token: "next"}, rot)

	rot, err = parseRotation([]interface{}{int64(0), "user-1\nnext"})
	require.NoError(t, err)
	assert.True(t, rot.Replayed)

	_, err = parseRotation([]interface{}{int64(1), "garbage"})
	assert.Error(t, err)
	_, err = parseRotation(nil)
	assert.Error(t, err)
}
