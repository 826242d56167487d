package mgostore

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"rentchat/tools/errs"
)

const (
	defaultMaxPoolSize = 100
	defaultMaxRetry    = 3
)

// Config represents the MongoDB configuration.
type Config struct {
	Uri         string
	Address     []string
	Database    string
	Username    string
	Password    string
	AuthSource  string
	MaxPoolSize int
	MaxRetry    int
	NodeID      int64 // snowflake node for chat and message ids
}

func (c *Config) norm() error {
	if c.Uri == "" && len(c.Address) == 0 {
		return errs.New("mongo uri or address is required")
	}
	if c.Database == "" {
		return errs.New("mongo database is required")
	}
	if c.MaxPoolSize <= 0 {
		c.MaxPoolSize = defaultMaxPoolSize
	}
	if c.MaxRetry <= 0 {
		c.MaxRetry = defaultMaxRetry
	}
	return nil
}

func (c *Config) clientOptions() *options.ClientOptions {
	var opts *options.ClientOptions
	if c.Uri != "" {
		opts = options.Client().ApplyURI(c.Uri)
	} else {
		opts = options.Client().SetHosts(c.Address)
	}
	opts.SetMaxPoolSize(uint64(c.MaxPoolSize))
	if c.Username != "" {
		opts.SetAuth(options.Credential{
			Username:   c.Username,
			Password:   c.Password,
			AuthSource: c.AuthSource,
		})
	}
	return opts
}

// connect dials and pings, retrying transient failures up to MaxRetry times.
func connect(ctx context.Context, c *Config) (*mongo.Client, error) {
	if err := c.norm(); err != nil {
		return nil, err
	}
	opts := c.clientOptions()
	var (
		cli *mongo.Client
		err error
	)
	for i := 0; i < c.MaxRetry; i++ {
		cli, err = dial(ctx, opts)
		if err == nil {
			return cli, nil
		}
		if !shouldRetry(ctx, err) {
			break
		}
		time.Sleep(time.Second / 2)
	}
	return nil, errs.WrapMsg(err, "failed to connect to MongoDB", "database", c.Database)
}

func dial(ctx context.Context, opts *options.ClientOptions) (*mongo.Client, error) {
	cli, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, err
	}
	if err := cli.Ping(ctx, nil); err != nil {
		_ = cli.Disconnect(context.Background())
		return nil, err
	}
	return cli, nil
}

// shouldRetry is false once ctx is done or the server rejected the credentials
// (codes 13 Unauthorized, 18 AuthenticationFailed).
func shouldRetry(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return false
	}
	var cmdErr mongo.CommandError
	if errors.As(err, &cmdErr) {
		return cmdErr.Code != 13 && cmdErr.Code != 18
	}
	return true
}
