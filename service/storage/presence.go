package storage

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"rentchat/logger"
	"rentchat/tools/errs"
)

// SetKV is the subset of redis.Cmdable presence needs.
type SetKV interface {
	SAdd(ctx context.Context, key string, members ...interface{}) *redis.IntCmd
	SRem(ctx context.Context, key string, members ...interface{}) *redis.IntCmd
	SMembers(ctx context.Context, key string) *redis.StringSliceCmd
	Expire(ctx context.Context, key string, expiration time.Duration) *redis.BoolCmd
}

// Presence mirrors room membership into Redis sets. It is informational only;
// the in-process room registry stays authoritative for delivery.
type Presence struct {
	kv      SetKV
	ttl     time.Duration
	timeout time.Duration
}

func NewPresence(kv SetKV, ttl time.Duration) *Presence {
	if ttl <= 0 {
		ttl = 2 * time.Hour
	}
	return &Presence{kv: kv, ttl: ttl, timeout: 2 * time.Second}
}

// presence key: rental:presence:<room>
// members are user ids, the TTL is renewed on every join
func presenceKey(room string) string { return "rental:presence:" + room }

func (p *Presence) Joined(room, userID string) {
	ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
	defer cancel()

	key := presenceKey(room)
	if err := p.kv.SAdd(ctx, key, userID).Err(); err != nil {
		logger.Warn("presence add failed", zap.String("room", room), zap.String("user", userID), zap.Error(err))
		return
	}
	if err := p.kv.Expire(ctx, key, p.ttl).Err(); err != nil {
		logger.Warn("presence expire failed", zap.String("room", room), zap.Error(err))
	}
}

func (p *Presence) Left(room, userID string) {
	ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
	defer cancel()

	if err := p.kv.SRem(ctx, presenceKey(room), userID).Err(); err != nil {
		logger.Warn("presence remove failed", zap.String("room", room), zap.String("user", userID), zap.Error(err))
	}
}

// Members lists the users currently present in room.
func (p *Presence) Members(ctx context.Context, room string) ([]string, error) {
	out, err := p.kv.SMembers(ctx, presenceKey(room)).Result()
	if err != nil {
		return nil, errs.ErrStore.WrapMsg("presence members", "room", room, "cause", err.Error())
	}
	return out, nil
}
