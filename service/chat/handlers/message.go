package handlers

import (
	"context"

	"go.uber.org/zap"

	"rentchat/logger"
	"rentchat/module/rental/model"
	"rentchat/service/chat"
	"rentchat/tools/errs"
)

// MessageHandler relays a message: resolve the chat, authorize the sender,
// persist, then broadcast the stored form to the chat's room. Failures are
// reported to the sender and leave the socket open.
type MessageHandler struct{ g *chat.Gateway }

func NewMessageHandler(g *chat.Gateway) chat.Handler { return &MessageHandler{g: g} }

func (h *MessageHandler) Type() chat.FrameType { return chat.FrameMessage }

func (h *MessageHandler) Handle(ctx context.Context, c *chat.Conn, f chat.Inbound) error {
	mf, ok := f.(*chat.MessageFrame)
	if !ok {
		return errs.ErrProtocol.WrapMsg("unexpected frame", "type", f.Type())
	}
	sess := c.Session
	if !sess.IsActive() {
		return errs.ErrProtocol.WrapMsg("join required before sending", "state", sess.State())
	}

	chatID := mf.ChatID
	if chatID == "" {
		// the join already resolved (or created) the session's chat
		chatID = sess.ChatID()
	}
	conv, err := h.g.Store().FindChatByID(ctx, chatID)
	if err != nil {
		return err
	}
	if !conv.IsParticipant(sess.UserID()) {
		return errs.ErrAuthorization.WrapMsg("sender is not a participant", "chatId", conv.ID, "userId", sess.UserID())
	}

	msg, err := h.g.Store().CreateMessage(ctx, model.NewMessage{
		ChatID:   conv.ID,
		SenderID: sess.UserID(),
		Content:  mf.Content,
		Read:     false,
		Type:     mf.MsgType,
	})
	if err != nil {
		return err
	}

	room := chat.RoomKeyOf(conv.PropertyID, conv.TenantID)
	n := h.g.Rooms().Broadcast(room, chat.EncodeMessage(*msg))
	h.g.Metrics().Relayed.Inc()
	logger.Debug("relayed", zap.String("chat", conv.ID), zap.String("message", msg.ID), zap.Int("delivered", n))

	h.g.Publish(ctx, conv, msg)
	return nil
}
