// Package pgstore implements store.Store on PostgreSQL through a pgx pool.
package pgstore

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"rentchat/data/store"
	"rentchat/module/rental/model"
	"rentchat/tools/errs"
	"rentchat/tools/ids"
)

const schema = `
CREATE TABLE IF NOT EXISTS users (
	id         TEXT PRIMARY KEY,
	name       TEXT NOT NULL DEFAULT '',
	role       TEXT NOT NULL CHECK (role IN ('tenant', 'owner')),
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE TABLE IF NOT EXISTS properties (
	id         TEXT PRIMARY KEY,
	owner_id   TEXT NOT NULL REFERENCES users(id),
	title      TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE TABLE IF NOT EXISTS chats (
	id          TEXT PRIMARY KEY,
	property_id TEXT NOT NULL REFERENCES properties(id),
	tenant_id   TEXT NOT NULL REFERENCES users(id),
	owner_id    TEXT NOT NULL REFERENCES users(id),
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE (property_id, tenant_id)
);
CREATE TABLE IF NOT EXISTS messages (
	id         TEXT PRIMARY KEY,
	chat_id    TEXT NOT NULL REFERENCES chats(id),
	sender_id  TEXT NOT NULL REFERENCES users(id),
	content    TEXT NOT NULL,
	read       BOOLEAN NOT NULL DEFAULT false,
	type       TEXT NOT NULL DEFAULT 'text',
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS messages_chat_created_idx ON messages (chat_id, created_at, id);
`

const (
	sqlFindUser     = `SELECT id, name, role, created_at FROM users WHERE id = $1`
	sqlFindProperty = `SELECT id, owner_id, title, created_at FROM properties WHERE id = $1`
	sqlFindChat     = `SELECT id, property_id, tenant_id, owner_id, created_at FROM chats WHERE id = $1`
	sqlFindChatPair = `SELECT id, property_id, tenant_id, owner_id, created_at FROM chats
		WHERE property_id = $1 AND tenant_id = $2`

	// The no-op update makes RETURNING yield the existing row on conflict.
	sqlUpsertChat = `INSERT INTO chats (id, property_id, tenant_id, owner_id, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (property_id, tenant_id) DO UPDATE SET property_id = EXCLUDED.property_id
		RETURNING id, property_id, tenant_id, owner_id, created_at`

	sqlListMessages = `SELECT id, chat_id, sender_id, content, read, type, created_at FROM messages
		WHERE chat_id = $1 ORDER BY created_at ASC, id ASC`
	sqlInsertMessage = `INSERT INTO messages (id, chat_id, sender_id, content, read, type, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, chat_id, sender_id, content, read, type, created_at`
)

type Config struct {
	URL      string
	MaxConns int32
	NodeID   int64 // snowflake node for chat and message ids
}

type Store struct {
	pool  *pgxpool.Pool
	ids   *ids.Generator
	clock func() time.Time
}

var _ store.Store = (*Store)(nil)

func New(ctx context.Context, c Config) (*Store, error) {
	pc, err := pgxpool.ParseConfig(c.URL)
	if err != nil {
		return nil, errs.WrapMsg(err, "parse database url")
	}
	if c.MaxConns > 0 {
		pc.MaxConns = c.MaxConns
	}
	pool, err := pgxpool.NewWithConfig(ctx, pc)
	if err != nil {
		return nil, errs.WrapMsg(err, "connect postgres")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, errs.WrapMsg(err, "ping postgres")
	}
	return &Store{pool: pool, ids: ids.NewGenerator(c.NodeID), clock: time.Now}, nil
}

// Migrate creates the tables if they do not exist.
func (s *Store) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, schema)
	return classify(err, "migrate")
}

func (s *Store) Close() { s.pool.Close() }

func (s *Store) FindUserByID(ctx context.Context, id string) (*model.User, error) {
	var u model.User
	var role string
	err := s.pool.QueryRow(ctx, sqlFindUser, id).Scan(&u.ID, &u.Name, &role, &u.CreatedAt)
	if err != nil {
		return nil, classify(err, "user", "userId", id)
	}
	u.Role = model.Role(role)
	return &u, nil
}

func (s *Store) FindPropertyByID(ctx context.Context, id string) (*model.Property, error) {
	var p model.Property
	err := s.pool.QueryRow(ctx, sqlFindProperty, id).Scan(&p.ID, &p.OwnerID, &p.Title, &p.CreatedAt)
	if err != nil {
		return nil, classify(err, "property", "propertyId", id)
	}
	return &p, nil
}

func (s *Store) FindChatByID(ctx context.Context, id string) (*model.Chat, error) {
	c, err := scanChat(s.pool.QueryRow(ctx, sqlFindChat, id))
	if err != nil {
		return nil, classify(err, "chat", "chatId", id)
	}
	return c, nil
}

func (s *Store) FindChatByPropertyAndTenant(ctx context.Context, propertyID, tenantID string) (*model.Chat, error) {
	c, err := scanChat(s.pool.QueryRow(ctx, sqlFindChatPair, propertyID, tenantID))
	if err != nil {
		return nil, classify(err, "chat", "propertyId", propertyID, "tenantId", tenantID)
	}
	return c, nil
}

func (s *Store) CreateChat(ctx context.Context, in model.NewChat) (*model.Chat, error) {
	row := s.pool.QueryRow(ctx, sqlUpsertChat,
		s.ids.NextString(), in.PropertyID, in.TenantID, in.OwnerID, s.clock().UTC())
	c, err := scanChat(row)
	if err != nil {
		return nil, classify(err, "create chat", "propertyId", in.PropertyID, "tenantId", in.TenantID)
	}
	return c, nil
}

func (s *Store) ListMessagesByChat(ctx context.Context, chatID string) ([]model.Message, error) {
	rows, err := s.pool.Query(ctx, sqlListMessages, chatID)
	if err != nil {
		return nil, classify(err, "list messages", "chatId", chatID)
	}
	out, err := pgx.CollectRows(rows, func(r pgx.CollectableRow) (model.Message, error) {
		var m model.Message
		err := r.Scan(&m.ID, &m.ChatID, &m.SenderID, &m.Content, &m.Read, &m.Type, &m.CreatedAt)
		return m, err
	})
	if err != nil {
		return nil, classify(err, "list messages", "chatId", chatID)
	}
	return out, nil
}

func (s *Store) CreateMessage(ctx context.Context, in model.NewMessage) (*model.Message, error) {
	var m model.Message
	err := s.pool.QueryRow(ctx, sqlInsertMessage,
		s.ids.NextString(), in.ChatID, in.SenderID, in.Content, in.Read, store.MessageType(in.Type), s.clock().UTC(),
	).Scan(&m.ID, &m.ChatID, &m.SenderID, &m.Content, &m.Read, &m.Type, &m.CreatedAt)
	if err != nil {
		return nil, classify(err, "create message", "chatId", in.ChatID)
	}
	return &m, nil
}

func scanChat(row pgx.Row) (*model.Chat, error) {
	var c model.Chat
	if err := row.Scan(&c.ID, &c.PropertyID, &c.TenantID, &c.OwnerID, &c.CreatedAt); err != nil {
		return nil, err
	}
	return &c, nil
}

// classify maps pgx errors onto the store error contract.
func classify(err error, msg string, kv ...any) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return errs.ErrNotFound.WrapMsg(msg, kv...)
	}
	return errs.ErrStore.WrapMsg(msg, append(kv, "cause", err.Error())...)
}
