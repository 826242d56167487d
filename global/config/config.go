// Package config loads the process configuration from an optional .env file
// and the environment.
package config

import (
	"errors"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/mitchellh/mapstructure"

	"rentchat/tools/errs"
)

const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"
	StoreMongo    = "mongo"

	EventsNone  = "none"
	EventsNats  = "nats"
	EventsKafka = "kafka"
)

type AppConfig struct {
	HTTPAddr string `mapstructure:"HTTP_ADDR"`
	GRPCAddr string `mapstructure:"GRPC_ADDR"`
	NodeID   int64  `mapstructure:"NODE_ID"` // snowflake node

	JWTSecret string        `mapstructure:"JWT_SECRET"`
	JWTTTL    time.Duration `mapstructure:"JWT_TTL"`

	StoreDriver   string `mapstructure:"STORE_DRIVER"`
	DatabaseURL   string `mapstructure:"DATABASE_URL"`
	MongoURI      string `mapstructure:"MONGO_URI"`
	MongoDatabase string `mapstructure:"MONGO_DATABASE"`

	// Redis is optional; when set it backs the lookup cache and room presence.
	RedisAddr     string        `mapstructure:"REDIS_ADDR"`
	RedisPassword string        `mapstructure:"REDIS_PASSWORD"`
	RedisDB       int           `mapstructure:"REDIS_DB"`
	PresenceTTL   time.Duration `mapstructure:"PRESENCE_TTL"`
	CacheTTL      time.Duration `mapstructure:"CACHE_TTL"`

	EventsDriver string   `mapstructure:"EVENTS_DRIVER"`
	NatsURL      []string `mapstructure:"NATS_URL"`
	NatsSubject  string   `mapstructure:"NATS_SUBJECT"`
	KafkaBrokers []string `mapstructure:"KAFKA_BROKERS"`
	KafkaTopic   string   `mapstructure:"KAFKA_TOPIC"`

	LogLevel string `mapstructure:"LOG_LEVEL"`
	LogEnv   string `mapstructure:"LOG_ENV"`

	WSSendQueue      int           `mapstructure:"WS_SEND_QUEUE"`
	WSReadLimit      int64         `mapstructure:"WS_READ_LIMIT"`
	WSPingInterval   time.Duration `mapstructure:"WS_PING_INTERVAL"`
	WSAllowedOrigins []string      `mapstructure:"WS_ALLOWED_ORIGINS"`

	AllowDevTokens bool `mapstructure:"ALLOW_DEV_TOKENS"`
}

func Default() AppConfig {
	return AppConfig{
		HTTPAddr:       ":8080",
		GRPCAddr:       ":50052",
		NodeID:         1,
		JWTTTL:         2 * time.Hour,
		StoreDriver:    StoreMemory,
		MongoDatabase:  "rental",
		PresenceTTL:    2 * time.Hour,
		CacheTTL:       5 * time.Minute,
		EventsDriver:   EventsNone,
		NatsSubject:    "rental.chat.message",
		KafkaTopic:     "rental.chat.message",
		LogLevel:       "info",
		LogEnv:         "development",
		WSSendQueue:    256,
		WSReadLimit:    64 << 10,
		WSPingInterval: 25 * time.Second,
	}
}

// Load reads files (default ".env") into the environment without overriding
// variables that are already set, then decodes the environment over Default().
// Missing files are ignored.
func Load(files ...string) (*AppConfig, error) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, errs.WrapMsg(err, "load env file", "file", f)
		}
	}
	return FromEnv(os.Environ())
}

// FromEnv decodes KEY=VALUE pairs over Default().
func FromEnv(environ []string) (*AppConfig, error) {
	vars := make(map[string]any, len(environ))
	for _, kv := range environ {
		k, v, ok := strings.Cut(kv, "=")
		if !ok || v == "" {
			continue
		}
		vars[k] = v
	}

	c := Default()
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &c,
		WeaklyTypedInput: true,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		),
	})
	if err != nil {
		return nil, errs.Wrap(err)
	}
	if err := dec.Decode(vars); err != nil {
		return nil, errs.WrapMsg(err, "decode config")
	}
	if err := c.norm(); err != nil {
		return nil, err
	}
	return &c, nil
}

func (c *AppConfig) norm() error {
	c.StoreDriver = strings.ToLower(strings.TrimSpace(c.StoreDriver))
	c.EventsDriver = strings.ToLower(strings.TrimSpace(c.EventsDriver))
	c.NatsURL = trimAll(c.NatsURL)
	c.KafkaBrokers = trimAll(c.KafkaBrokers)
	c.WSAllowedOrigins = trimAll(c.WSAllowedOrigins)

	if c.JWTSecret == "" {
		return errs.New("JWT_SECRET is required")
	}
	switch c.StoreDriver {
	case StoreMemory:
	case StorePostgres:
		if c.DatabaseURL == "" {
			return errs.New("DATABASE_URL is required", "driver", c.StoreDriver)
		}
	case StoreMongo:
		if c.MongoURI == "" {
			return errs.New("MONGO_URI is required", "driver", c.StoreDriver)
		}
	default:
		return errs.New("unknown STORE_DRIVER", "driver", c.StoreDriver)
	}
	switch c.EventsDriver {
	case EventsNone:
	case EventsNats:
		if len(c.NatsURL) == 0 {
			return errs.New("NATS_URL is required", "driver", c.EventsDriver)
		}
	case EventsKafka:
		if len(c.KafkaBrokers) == 0 {
			return errs.New("KAFKA_BROKERS is required", "driver", c.EventsDriver)
		}
	default:
		return errs.New("unknown EVENTS_DRIVER", "driver", c.EventsDriver)
	}
	if c.NodeID < 0 || c.NodeID > 1023 {
		return errs.New("NODE_ID out of range", "node", c.NodeID)
	}
	return nil
}

func trimAll(in []string) []string {
	out := in[:0]
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
