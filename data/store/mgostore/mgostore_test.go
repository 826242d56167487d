package mgostore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"rentchat/module/rental/model"
	"rentchat/tools/errs"
)

func TestChatUpsertDocuments(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	filter := pairFilter("p1", "t1")
	assert.Equal(t, bson.M{"property_id": "p1", "tenant_id": "t1"}, filter)

	update := chatInsert("c1", model.NewChat{PropertyID: "p1", TenantID: "t1", OwnerID: "o1"}, now)
	set, ok := update["$setOnInsert"].(bson.M)
	require.True(t, ok)
	assert.Equal(t, "c1", set["_id"])
	assert.Equal(t, "o1", set["owner_id"])
	assert.NotContains(t, set, "property_id", "pair fields come from the filter on insert")
}

func TestClassify(t *testing.T) {
	assert.True(t, errors.Is(classify(mongo.ErrNoDocuments, "chat"), errs.ErrNotFound))
	assert.True(t, errors.Is(classify(errors.New("socket closed"), "chat"), errs.ErrStore))
	assert.NoError(t, classify(nil, "chat"))
}

func TestShouldRetry(t *testing.T) {
	ctx := context.Background()
	assert.True(t, shouldRetry(ctx, errors.New("server selection timeout")))
	assert.False(t, shouldRetry(ctx, mongo.CommandError{Code: 18}))

	done, cancel := context.WithCancel(ctx)
	cancel()
	assert.False(t, shouldRetry(done, errors.New("x")))
}

func TestConfigNorm(t *testing.T) {
	c := Config{}
	assert.Error(t, c.norm())

	c = Config{Uri: "mongodb://localhost:27017", Database: "rental"}
	require.NoError(t, c.norm())
	assert.Equal(t, defaultMaxPoolSize, c.MaxPoolSize)
	assert.Equal(t, defaultMaxRetry, c.MaxRetry)
}
