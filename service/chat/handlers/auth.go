package handlers

import (
	"context"

	"rentchat/module/rental/model"
	"rentchat/service/chat"
	"rentchat/tools/errs"
)

// authenticate verifies token and, when the frame names a user, checks that it
// is the token's subject.
func authenticate(ctx context.Context, g *chat.Gateway, token, claimedUserID string) (*model.User, error) {
	user, err := g.Verifier().Verify(ctx, token)
	if err != nil {
		return nil, err
	}
	if claimedUserID != "" && claimedUserID != user.ID {
		return nil, errs.ErrAuthentication.WrapMsg("userId does not match credential")
	}
	if !user.Role.Valid() {
		return nil, errs.ErrAuthorization.WrapMsg("unknown role", "role", user.Role)
	}
	return user, nil
}

// Register installs every frame handler on g.
func Register(g *chat.Gateway) {
	d := g.Disp()
	d.Register(NewJoinHandler(g))
	d.Register(NewSubscribeOwnerHandler(g))
	d.Register(NewMessageHandler(g))
}
