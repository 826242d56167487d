package handlers

import (
	"context"

	"go.uber.org/zap"

	"rentchat/logger"
	"rentchat/module/rental/model"
	"rentchat/service/chat"
	"rentchat/tools/errs"
)

type JoinHandler struct{ g *chat.Gateway }

func NewJoinHandler(g *chat.Gateway) chat.Handler { return &JoinHandler{g: g} }

func (h *JoinHandler) Type() chat.FrameType { return chat.FrameJoin }

// Handle attaches the socket to a conversation and replays its history. Every
// failure after the frame is parsed closes the socket.
func (h *JoinHandler) Handle(ctx context.Context, c *chat.Conn, f chat.Inbound) error {
	jf, ok := f.(*chat.JoinFrame)
	if !ok {
		return errs.ErrProtocol.WrapMsg("unexpected frame", "type", f.Type())
	}
	if c.Session.State() == chat.StateActive {
		h.g.Rooms().UnregisterSocket(c.Socket)
	}
	if err := c.Session.BeginJoin(); err != nil {
		return err
	}

	user, err := authenticate(ctx, h.g, jf.Token, jf.UserID)
	if err != nil {
		return chat.Terminal(err)
	}

	prop, err := h.g.Store().FindPropertyByID(ctx, jf.PropertyID)
	if err != nil {
		return chat.Terminal(err)
	}
	if user.Role == model.RoleOwner && jf.ChatID == "" {
		if prop.OwnerID != user.ID {
			return chat.Terminal(errs.ErrAuthorization.WrapMsg("property belongs to another owner", "propertyId", prop.ID))
		}
		return browse(h.g, c, user)
	}

	var conv *model.Chat
	switch user.Role {
	case model.RoleTenant:
		// a tenant's chat id in the frame is ignored; the pair decides the chat
		conv, err = h.g.ResolveTenantChat(ctx, prop.ID, user.ID, prop.OwnerID)
	case model.RoleOwner:
		conv, err = ownerChat(ctx, h.g, user, prop, jf.ChatID)
	}
	if err != nil {
		return chat.Terminal(err)
	}

	history, err := h.g.Store().ListMessagesByChat(ctx, conv.ID)
	if err != nil {
		return chat.Terminal(err)
	}

	room := chat.RoomKeyOf(conv.PropertyID, conv.TenantID)
	if err := c.Session.Activate(user, prop.ID, conv.ID, room); err != nil {
		return chat.Terminal(err)
	}
	if stale := h.g.Rooms().Enter(room, user.ID, c.Socket, chat.EncodeHistory(conv.ID, history)); stale != nil {
		logger.Info("replaced stale room entry",
			zap.String("room", string(room)), zap.String("user", user.ID), zap.String("stale", stale.ID()))
	}

	h.g.Metrics().Joins.WithLabelValues(string(user.Role)).Inc()
	logger.Debug("joined", zap.String("conn", c.Session.ConnID), zap.String("user", user.ID),
		zap.String("chat", conv.ID), zap.Int("history", len(history)))
	return nil
}

func ownerChat(ctx context.Context, g *chat.Gateway, user *model.User, prop *model.Property, chatID string) (*model.Chat, error) {
	conv, err := g.Store().FindChatByID(ctx, chatID)
	if err != nil {
		return nil, err
	}
	if conv.OwnerID != user.ID {
		return nil, errs.ErrAuthorization.WrapMsg("chat belongs to another owner", "chatId", chatID)
	}
	if conv.PropertyID != prop.ID {
		return nil, errs.ErrAuthorization.WrapMsg("chat is not about this property", "chatId", chatID)
	}
	return conv, nil
}

func browse(g *chat.Gateway, c *chat.Conn, user *model.User) error {
	if err := c.Session.Browse(user); err != nil {
		return chat.Terminal(err)
	}
	g.Metrics().Joins.WithLabelValues(chat.JoinBrowse).Inc()
	logger.Debug("owner browsing", zap.String("conn", c.Session.ConnID), zap.String("user", user.ID))
	return nil
}
