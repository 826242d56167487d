package storage

import (
	"context"
	"errors"
	"sort"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rentchat/tools/errs"
)

type fakeSets struct {
	sets    map[string]map[string]struct{}
	expires map[string]time.Duration
	fail    error
}

func newFakeSets() *fakeSets {
	return &fakeSets{sets: map[string]map[string]struct{}{}, expires: map[string]time.Duration{}}
}

func (f *fakeSets) SAdd(_ context.Context, key string, members ...interface{}) *redis.IntCmd {
	if f.fail != nil {
		return redis.NewIntResult(0, f.fail)
	}
	s := f.sets[key]
	if s == nil {
		s = map[string]struct{}{}
		f.sets[key] = s
	}
	for _, m := range members {
		s[m.(string)] = struct{}{}
	}
	return redis.NewIntResult(int64(len(members)), nil)
}

func (f *fakeSets) SRem(_ context.Context, key string, members ...interface{}) *redis.IntCmd {
	for _, m := range members {
		delete(f.sets[key], m.(string))
	}
	return redis.NewIntResult(int64(len(members)), nil)
}

func (f *fakeSets) SMembers(_ context.Context, key string) *redis.StringSliceCmd {
	if f.fail != nil {
		return redis.NewStringSliceResult(nil, f.fail)
	}
	out := make([]string, 0, len(f.sets[key]))
	for m := range f.sets[key] {
		out = append(out, m)
	}
	sort.Strings(out)
	return redis.NewStringSliceResult(out, nil)
}

func (f *fakeSets) Expire(_ context.Context, key string, ttl time.Duration) *redis.BoolCmd {
	f.expires[key] = ttl
	return redis.NewBoolResult(true, nil)
}

func TestPresenceJoinLeave(t *testing.T) {
	kv := newFakeSets()
	p := NewPresence(kv, time.Minute)

	p.Joined("p1|t1", "t1")
	p.Joined("p1|t1", "o1")
	p.Left("p1|t1", "t1")

	members, err := p.Members(context.Background(), "p1|t1")
	require.NoError(t, err)
	assert.Equal(t, []string{"o1"}, members)
	assert.Equal(t, time.Minute, kv.expires["rental:presence:p1|t1"])
}

func TestPresenceFailures(t *testing.T) {
	kv := newFakeSets()
	kv.fail = errors.New("connection refused")
	p := NewPresence(kv, 0)

	assert.NotPanics(t, func() { p.Joined("r", "u") })
	assert.Empty(t, kv.expires)

	_, err := p.Members(context.Background(), "r")
	assert.True(t, errors.Is(err, errs.ErrStore))
}
