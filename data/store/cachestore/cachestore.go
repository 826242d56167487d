// Package cachestore puts a Redis read-through cache in front of the property
// lookups of any store. Users, chats and messages always go to the backing
// store: token verification must see a deleted user at once.
package cachestore

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"rentchat/data/store"
	"rentchat/logger"
	"rentchat/module/rental/model"
)

// KV is the subset of redis.Cmdable the cache needs.
type KV interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
}

type Store struct {
	store.Store
	kv  KV
	ttl time.Duration
}

func New(backing store.Store, kv KV, ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &Store{Store: backing, kv: kv, ttl: ttl}
}

func propertyKey(id string) string { return "rental:property:" + id }

func (s *Store) FindPropertyByID(ctx context.Context, id string) (*model.Property, error) {
	var p model.Property
	if s.load(ctx, propertyKey(id), &p) {
		return &p, nil
	}
	got, err := s.Store.FindPropertyByID(ctx, id)
	if err != nil {
		return nil, err
	}
	s.save(ctx, propertyKey(id), got)
	return got, nil
}

// load reports a hit. Cache errors degrade to a miss.
func (s *Store) load(ctx context.Context, key string, dst any) bool {
	raw, err := s.kv.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false
	}
	if err != nil {
		logger.Warn("cache get failed", zap.String("key", key), zap.Error(err))
		return false
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		logger.Warn("cache entry corrupt", zap.String("key", key), zap.Error(err))
		return false
	}
	return true
}

func (s *Store) save(ctx context.Context, key string, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		return
	}
	if err := s.kv.Set(ctx, key, b, s.ttl).Err(); err != nil {
		logger.Warn("cache set failed", zap.String("key", key), zap.Error(err))
	}
}
