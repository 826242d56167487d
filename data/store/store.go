// Package store defines the persistence contract of the chat gateway and an
// in-memory implementation. Absent records are reported as errs.ErrNotFound;
// any other failure is reported as errs.ErrStore.
package store

import (
	"context"

	"rentchat/module/rental/model"
)

type Store interface {
	FindUserByID(ctx context.Context, id string) (*model.User, error)
	FindPropertyByID(ctx context.Context, id string) (*model.Property, error)
	FindChatByID(ctx context.Context, id string) (*model.Chat, error)
	FindChatByPropertyAndTenant(ctx context.Context, propertyID, tenantID string) (*model.Chat, error)

	// CreateChat is an upsert on (PropertyID, TenantID): when a chat for the pair
	// already exists it is returned unchanged, so concurrent creators converge.
	CreateChat(ctx context.Context, in model.NewChat) (*model.Chat, error)

	// ListMessagesByChat returns messages ordered by creation time ascending.
	ListMessagesByChat(ctx context.Context, chatID string) ([]model.Message, error)
	CreateMessage(ctx context.Context, in model.NewMessage) (*model.Message, error)
}

// MessageType returns t or the default message type.
func MessageType(t string) string {
	if t == "" {
		return model.DefaultMessageType
	}
	return t
}
