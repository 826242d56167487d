// Package mgostore implements store.Store on MongoDB.
package mgostore

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"rentchat/data/store"
	"rentchat/module/rental/model"
	"rentchat/tools/errs"
	"rentchat/tools/ids"
)

const (
	collUsers      = "users"
	collProperties = "properties"
	collChats      = "chats"
	collMessages   = "messages"
)

type Store struct {
	cli   *mongo.Client
	db    *mongo.Database
	ids   *ids.Generator
	clock func() time.Time
}

var _ store.Store = (*Store)(nil)

func New(ctx context.Context, c Config) (*Store, error) {
	cli, err := connect(ctx, &c)
	if err != nil {
		return nil, err
	}
	return &Store{cli: cli, db: cli.Database(c.Database), ids: ids.NewGenerator(c.NodeID), clock: time.Now}, nil
}

// EnsureIndexes creates the unique chat pair index and the history index.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	_, err := s.db.Collection(collChats).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "property_id", Value: 1}, {Key: "tenant_id", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return classify(err, "index chats")
	}
	_, err = s.db.Collection(collMessages).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: historySort(),
	})
	return classify(err, "index messages")
}

func (s *Store) Close(ctx context.Context) error {
	return s.cli.Disconnect(ctx)
}

func (s *Store) FindUserByID(ctx context.Context, id string) (*model.User, error) {
	var u model.User
	if err := s.db.Collection(collUsers).FindOne(ctx, bson.M{"_id": id}).Decode(&u); err != nil {
		return nil, classify(err, "user", "userId", id)
	}
	return &u, nil
}

func (s *Store) FindPropertyByID(ctx context.Context, id string) (*model.Property, error) {
	var p model.Property
	if err := s.db.Collection(collProperties).FindOne(ctx, bson.M{"_id": id}).Decode(&p); err != nil {
		return nil, classify(err, "property", "propertyId", id)
	}
	return &p, nil
}

func (s *Store) FindChatByID(ctx context.Context, id string) (*model.Chat, error) {
	var c model.Chat
	if err := s.db.Collection(collChats).FindOne(ctx, bson.M{"_id": id}).Decode(&c); err != nil {
		return nil, classify(err, "chat", "chatId", id)
	}
	return &c, nil
}

func (s *Store) FindChatByPropertyAndTenant(ctx context.Context, propertyID, tenantID string) (*model.Chat, error) {
	var c model.Chat
	err := s.db.Collection(collChats).FindOne(ctx, pairFilter(propertyID, tenantID)).Decode(&c)
	if err != nil {
		return nil, classify(err, "chat", "propertyId", propertyID, "tenantId", tenantID)
	}
	return &c, nil
}

func (s *Store) CreateChat(ctx context.Context, in model.NewChat) (*model.Chat, error) {
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)
	var c model.Chat
	err := s.db.Collection(collChats).FindOneAndUpdate(ctx,
		pairFilter(in.PropertyID, in.TenantID),
		chatInsert(s.ids.NextString(), in, s.clock().UTC()),
		opts,
	).Decode(&c)
	if mongo.IsDuplicateKeyError(err) {
		// lost the upsert race against the unique index; the winner's row is there now
		return s.FindChatByPropertyAndTenant(ctx, in.PropertyID, in.TenantID)
	}
	if err != nil {
		return nil, classify(err, "create chat", "propertyId", in.PropertyID, "tenantId", in.TenantID)
	}
	return &c, nil
}

func (s *Store) ListMessagesByChat(ctx context.Context, chatID string) ([]model.Message, error) {
	cur, err := s.db.Collection(collMessages).Find(ctx,
		bson.M{"chat_id": chatID},
		options.Find().SetSort(historySort()),
	)
	if err != nil {
		return nil, classify(err, "list messages", "chatId", chatID)
	}
	out := make([]model.Message, 0)
	if err := cur.All(ctx, &out); err != nil {
		return nil, classify(err, "list messages", "chatId", chatID)
	}
	return out, nil
}

func (s *Store) CreateMessage(ctx context.Context, in model.NewMessage) (*model.Message, error) {
	m := model.Message{
		ID:        s.ids.NextString(),
		ChatID:    in.ChatID,
		SenderID:  in.SenderID,
		Content:   in.Content,
		Read:      in.Read,
		Type:      store.MessageType(in.Type),
		CreatedAt: s.clock().UTC().Truncate(time.Millisecond),
	}
	if _, err := s.db.Collection(collMessages).InsertOne(ctx, m); err != nil {
		return nil, classify(err, "create message", "chatId", in.ChatID)
	}
	return &m, nil
}

func pairFilter(propertyID, tenantID string) bson.M {
	return bson.M{"property_id": propertyID, "tenant_id": tenantID}
}

func chatInsert(id string, in model.NewChat, now time.Time) bson.M {
	return bson.M{"$setOnInsert": bson.M{
		"_id":        id,
		"owner_id":   in.OwnerID,
		"created_at": now,
	}}
}

func historySort() bson.D {
	return bson.D{{Key: "chat_id", Value: 1}, {Key: "created_at", Value: 1}, {Key: "_id", Value: 1}}
}

func classify(err error, msg string, kv ...any) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, mongo.ErrNoDocuments) {
		return errs.ErrNotFound.WrapMsg(msg, kv...)
	}
	return errs.ErrStore.WrapMsg(msg, append(kv, "cause", err.Error())...)
}
