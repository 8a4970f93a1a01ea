package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/spec-kit/session-gate/internal/domain"
)

const (
	refreshKeyPrefix = "refresh:"
	rotatedKeyPrefix = "refresh_rotated:"
)

// Rotation is the outcome of exchanging a refresh token.
type Rotation struct {
	SubjectID string
	Token     string
	// Replayed is set when the token had already been rotated inside the
	// reuse grace window and the existing successor was returned.
	Replayed bool
}

// RefreshTokenRepository stores opaque refresh tokens mapped to their subject.
type RefreshTokenRepository interface {
	Issue(ctx context.Context, subjectID string, ttl time.Duration) (string, error)
	// Rotate exchanges token for a successor valid for ttl. For grace after the
	// exchange, presenting token again yields the same successor.
	Rotate(ctx context.Context, token string, ttl, grace time.Duration) (Rotation, error)
	Revoke(ctx context.Context, token string) error
}

type refreshTokenRepository struct {
	client *redis.Client
}

// NewRefreshTokenRepository returns a Redis-backed implementation.
func NewRefreshTokenRepository(client *redis.Client) RefreshTokenRepository {
	return &refreshTokenRepository{client: client}
}

func (r *refreshTokenRepository) Issue(ctx context.Context, subjectID string, ttl time.Duration) (string, error) {
	token := uuid.NewString()
	if err := r.client.Set(ctx, refreshKeyPrefix+token, subjectID, ttl).Err(); err != nil {
		return "", fmt.Errorf("store refresh token: %w", err)
	}
	return token, nil
}

// KEYS: live token, rotation marker, successor. ARGV: successor, ttl ms, grace ms.
var rotateScript = redis.NewScript(`
local rotated = redis.call('GET', KEYS[2])
if rotated then
  return {0, rotated}
end
local subject = redis.call('GET', KEYS[1])
if not subject then
  return false
end
redis.call('DEL', KEYS[1])
redis.call('SET', KEYS[3], subject, 'PX', ARGV[2])
if tonumber(ARGV[3]) > 0 then
  redis.call('SET', KEYS[2], subject .. '\n' .. ARGV[1], 'PX', ARGV[3])
end
return {1, subject .. '\n' .. ARGV[1]}
`)

func (r *refreshTokenRepository) Rotate(ctx context.Context, token string, ttl, grace time.Duration) (Rotation, error) {
	successor := uuid.NewString()
	keys := []string{refreshKeyPrefix + token, rotatedKeyPrefix + token, refreshKeyPrefix + successor}
	res, err := rotateScript.Run(ctx, r.client, keys, successor, ttl.Milliseconds(), grace.Milliseconds()).Slice()
	if errors.Is(err, redis.Nil) {
		return Rotation{}, domain.ErrRefreshTokenNotFound
	}
	if err != nil {
		return Rotation{}, fmt.Errorf("rotate refresh token: %w", err)
	}
	return parseRotation(res)
}

func parseRotation(res []interface{}) (Rotation, error) {
	if len(res) != 2 {
		return Rotation{}, fmt.Errorf("rotate refresh token: unexpected reply %v", res)
	}
	fresh, _ := res[0].(int64)
	pair, _ := res[1].(string)
	subjectID, next, ok := strings.Cut(pair, "\n")
	if !ok || subjectID == "" || next == "" {
		return Rotation{}, fmt.Errorf("rotate refresh token: malformed rotation %q", pair)
	}
	return Rotation{SubjectID: subjectID, Token: next, Replayed: fresh == 0}, nil
}

func (r *refreshTokenRepository) Revoke(ctx context.Context, token string) error {
	if err := r.client.Del(ctx, refreshKeyPrefix+token, rotatedKeyPrefix+token).Err(); err != nil {
		return fmt.Errorf("revoke refresh token: %w", err)
	}
	return nil
}
