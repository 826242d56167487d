package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromEnvDefaults(t *testing.T) {
	c, err := FromEnv([]string{"JWT_SECRET=s3cret", "PATH=/usr/bin"})
	require.NoError(t, err)
	assert.Equal(t, ":8080", c.HTTPAddr)
	assert.Equal(t, StoreMemory, c.StoreDriver)
	assert.Equal(t, EventsNone, c.EventsDriver)
	assert.Equal(t, 25*time.Second, c.WSPingInterval)
	assert.Equal(t, int64(1), c.NodeID)
}

func TestFromEnvTyped(t *testing.T) {
	c, err := FromEnv([]string{
		"JWT_SECRET=s3cret",
		"JWT_TTL=30m",
		"NODE_ID=7",
		"STORE_DRIVER=Postgres",
		"DATABASE_URL=postgres://localhost/rental",
		"REDIS_DB=2",
		"EVENTS_DRIVER=kafka",
		"KAFKA_BROKERS=k1:9092, k2:9092",
		"WS_ALLOWED_ORIGINS=https://a.example,https://b.example",
		"ALLOW_DEV_TOKENS=true",
		"WS_READ_LIMIT=1024",
	})
	require.NoError(t, err)
	assert.Equal(t, 30*time.Minute, c.JWTTTL)
	assert.Equal(t, int64(7), c.NodeID)
	assert.Equal(t, StorePostgres, c.StoreDriver)
	assert.Equal(t, 2, c.RedisDB)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, c.KafkaBrokers)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, c.WSAllowedOrigins)
	assert.True(t, c.AllowDevTokens)
	assert.Equal(t, int64(1024), c.WSReadLimit)
}

func TestFromEnvInvalid(t *testing.T) {
	cases := map[string][]string{
		"no secret":       {},
		"bad driver":      {"JWT_SECRET=x", "STORE_DRIVER=sqlite"},
		"postgres no url": {"JWT_SECRET=x", "STORE_DRIVER=postgres"},
		"mongo no uri":    {"JWT_SECRET=x", "STORE_DRIVER=mongo"},
		"nats no url":     {"JWT_SECRET=x", "EVENTS_DRIVER=nats"},
		"bad events":      {"JWT_SECRET=x", "EVENTS_DRIVER=sqs"},
		"bad duration":    {"JWT_SECRET=x", "JWT_TTL=soon"},
		"node range":      {"JWT_SECRET=x", "NODE_ID=5000"},
	}
	for name, env := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := FromEnv(env)
			assert.Error(t, err)
		})
	}
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "test.env")
	require.NoError(t, os.WriteFile(file, []byte("JWT_SECRET=from-file\nHTTP_ADDR=:9999\n"), 0o600))
	t.Setenv("HTTP_ADDR", ":7000")
	// restored on cleanup; absent while loading so the file value applies
	t.Setenv("JWT_SECRET", "")
	require.NoError(t, os.Unsetenv("JWT_SECRET"))

	c, err := Load(file, filepath.Join(dir, "missing.env"))
	require.NoError(t, err)
	assert.Equal(t, "from-file", c.JWTSecret)
	// variables already in the environment win over the file
	assert.Equal(t, ":7000", c.HTTPAddr)
}
