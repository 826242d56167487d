package handlers

import (
	"context"

	"rentchat/module/rental/model"
	"rentchat/service/chat"
	"rentchat/tools/errs"
)

// SubscribeOwnerHandler authenticates an owner socket without a room. A later
// join with a chat id attaches it.
type SubscribeOwnerHandler struct{ g *chat.Gateway }

func NewSubscribeOwnerHandler(g *chat.Gateway) chat.Handler { return &SubscribeOwnerHandler{g: g} }

func (h *SubscribeOwnerHandler) Type() chat.FrameType { return chat.FrameSubscribeOwner }

func (h *SubscribeOwnerHandler) Handle(ctx context.Context, c *chat.Conn, f chat.Inbound) error {
	sf, ok := f.(*chat.SubscribeOwnerFrame)
	if !ok {
		return errs.ErrProtocol.WrapMsg("unexpected frame", "type", f.Type())
	}
	if c.Session.State() == chat.StateActive {
		h.g.Rooms().UnregisterSocket(c.Socket)
	}
	if err := c.Session.BeginJoin(); err != nil {
		return err
	}
	user, err := authenticate(ctx, h.g, sf.Token, sf.UserID)
	if err != nil {
		return chat.Terminal(err)
	}
	if user.Role != model.RoleOwner {
		return chat.Terminal(errs.ErrAuthorization.WrapMsg("only owners can subscribe", "role", user.Role))
	}
	return browse(h.g, c, user)
}
