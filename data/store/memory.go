package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"rentchat/module/rental/model"
	"rentchat/tools/errs"
	"rentchat/tools/ids"
)

// Memory keeps everything in process maps. Each operation is atomic under one
// mutex, which also makes CreateChat race-free.
type Memory struct {
	mu         sync.RWMutex
	users      map[string]model.User
	properties map[string]model.Property
	chats      map[string]model.Chat
	chatByPair map[string]string          // property|tenant -> chat id
	messages   map[string][]model.Message // chat id -> messages in creation order

	ids   *ids.Generator
	clock func() time.Time
}

func NewMemory() *Memory {
	return &Memory{
		users:      make(map[string]model.User),
		properties: make(map[string]model.Property),
		chats:      make(map[string]model.Chat),
		chatByPair: make(map[string]string),
		messages:   make(map[string][]model.Message),
		ids:        ids.NewGenerator(1),
		clock:      time.Now,
	}
}

// SetClock replaces the time source; tests use it to control createdAt.
func (m *Memory) SetClock(clock func() time.Time) {
	m.mu.Lock()
	m.clock = clock
	m.mu.Unlock()
}

func (m *Memory) PutUser(u model.User) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u.CreatedAt.IsZero() {
		u.CreatedAt = m.clock().UTC()
	}
	m.users[u.ID] = u
}

func (m *Memory) DeleteUser(id string) {
	m.mu.Lock()
	delete(m.users, id)
	m.mu.Unlock()
}

func (m *Memory) PutProperty(p model.Property) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = m.clock().UTC()
	}
	m.properties[p.ID] = p
}

// Counts returns the number of chats and messages stored.
func (m *Memory) Counts() (chats, messages int) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, ms := range m.messages {
		messages += len(ms)
	}
	return len(m.chats), messages
}

func pairKey(propertyID, tenantID string) string {
	return propertyID + "|" + tenantID
}

func (m *Memory) FindUserByID(_ context.Context, id string) (*model.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[id]
	if !ok {
		return nil, errs.ErrNotFound.WrapMsg("user", "userId", id)
	}
	return &u, nil
}

func (m *Memory) FindPropertyByID(_ context.Context, id string) (*model.Property, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.properties[id]
	if !ok {
		return nil, errs.ErrNotFound.WrapMsg("property", "propertyId", id)
	}
	return &p, nil
}

func (m *Memory) FindChatByID(_ context.Context, id string) (*model.Chat, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.chats[id]
	if !ok {
		return nil, errs.ErrNotFound.WrapMsg("chat", "chatId", id)
	}
	return &c, nil
}

func (m *Memory) FindChatByPropertyAndTenant(_ context.Context, propertyID, tenantID string) (*model.Chat, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.chatByPair[pairKey(propertyID, tenantID)]
	if !ok {
		return nil, errs.ErrNotFound.WrapMsg("chat", "propertyId", propertyID, "tenantId", tenantID)
	}
	c := m.chats[id]
	return &c, nil
}

func (m *Memory) CreateChat(_ context.Context, in model.NewChat) (*model.Chat, error) {
	if in.PropertyID == "" || in.TenantID == "" || in.OwnerID == "" {
		return nil, errs.ErrProtocol.WrapMsg("incomplete chat", "propertyId", in.PropertyID, "tenantId", in.TenantID)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	key := pairKey(in.PropertyID, in.TenantID)
	if id, ok := m.chatByPair[key]; ok {
		c := m.chats[id]
		return &c, nil
	}
	c := model.Chat{
		ID:         m.ids.NextString(),
		PropertyID: in.PropertyID,
		TenantID:   in.TenantID,
		OwnerID:    in.OwnerID,
		CreatedAt:  m.clock().UTC(),
	}
	m.chats[c.ID] = c
	m.chatByPair[key] = c.ID
	return &c, nil
}

func (m *Memory) ListMessagesByChat(_ context.Context, chatID string) ([]model.Message, error) {
	m.mu.RLock()
	out := append([]model.Message(nil), m.messages[chatID]...)
	m.mu.RUnlock()
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (m *Memory) CreateMessage(_ context.Context, in model.NewMessage) (*model.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.chats[in.ChatID]; !ok {
		return nil, errs.ErrNotFound.WrapMsg("chat", "chatId", in.ChatID)
	}
	msg := model.Message{
		ID:        m.ids.NextString(),
		ChatID:    in.ChatID,
		SenderID:  in.SenderID,
		Content:   in.Content,
		Read:      in.Read,
		Type:      MessageType(in.Type),
		CreatedAt: m.clock().UTC(),
	}
	m.messages[in.ChatID] = append(m.messages[in.ChatID], msg)
	return &msg, nil
}
