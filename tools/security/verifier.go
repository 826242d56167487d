package security

import (
	"context"
	"errors"

	"rentchat/module/rental/model"
	"rentchat/tools/errs"
)

type UserFinder interface {
	FindUserByID(ctx context.Context, id string) (*model.User, error)
}

// Verifier resolves a bearer token to a user that still exists.
type Verifier struct {
	opts  Options
	users UserFinder
}

func NewVerifier(opts Options, users UserFinder) *Verifier {
	return &Verifier{opts: opts, users: users}
}

func (v *Verifier) Options() Options { return v.opts }

func (v *Verifier) Verify(ctx context.Context, token string) (*model.User, error) {
	claims, err := Verify(v.opts, token)
	if err != nil {
		return nil, err
	}
	u, err := v.users.FindUserByID(ctx, claims.Subject)
	if errors.Is(err, errs.ErrNotFound) {
		return nil, errs.ErrAuthentication.WrapMsg("subject no longer exists", "userId", claims.Subject)
	}
	if err != nil {
		return nil, err
	}
	return u, nil
}
