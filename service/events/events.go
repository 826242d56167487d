// Package events publishes relayed chat messages to downstream consumers
// (notifications, search indexing) over NATS or Kafka. Publishing is best
// effort: the message is already persisted and delivered when an event goes out.
package events

import (
	"context"
	"encoding/json"

	"rentchat/module/rental/model"
	"rentchat/tools/errs"
)

// Header names carried on every event.
const (
	HeaderChatID   = "chat-id"
	HeaderSenderID = "sender-id"
)

type MessageRelayed struct {
	ChatID     string        `json:"chatId"`
	PropertyID string        `json:"propertyId"`
	TenantID   string        `json:"tenantId"`
	OwnerID    string        `json:"ownerId"`
	Message    model.Message `json:"message"`
}

// NewMessageRelayed builds the event for a message stored in chat.
func NewMessageRelayed(chat *model.Chat, m *model.Message) MessageRelayed {
	return MessageRelayed{
		ChatID:     chat.ID,
		PropertyID: chat.PropertyID,
		TenantID:   chat.TenantID,
		OwnerID:    chat.OwnerID,
		Message:    *m,
	}
}

func (e MessageRelayed) encode() ([]byte, error) {
	b, err := json.Marshal(e)
	if err != nil {
		return nil, errs.WrapMsg(err, "encode event", "chatId", e.ChatID)
	}
	return b, nil
}

type Publisher interface {
	Publish(ctx context.Context, e MessageRelayed) error
	Close() error
}

// Noop drops every event.
type Noop struct{}

func (Noop) Publish(context.Context, MessageRelayed) error { return nil }
func (Noop) Close() error                                  { return nil }
