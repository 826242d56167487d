package security

import (
	"context"
	"errors"
	"testing"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rentchat/module/rental/model"
	"rentchat/tools/errs"
)

var secret = []byte("test-secret")

type userMap map[string]*model.User

func (m userMap) FindUserByID(_ context.Context, id string) (*model.User, error) {
	if u, ok := m[id]; ok {
		return u, nil
	}
	return nil, errs.ErrNotFound.WrapMsg("user", "userId", id)
}

func TestGenerateVerify(t *testing.T) {
	opts := DefaultOptions(secret)
	tok, exp, err := Generate(opts, "u1", "tenant")
	require.NoError(t, err)
	assert.True(t, exp.After(time.Now()))

	claims, err := Verify(opts, tok)
	require.NoError(t, err)
	assert.Equal(t, "u1", claims.Subject)
	assert.Equal(t, "tenant", claims.Role)
}

func TestVerifyRejects(t *testing.T) {
	opts := DefaultOptions(secret)

	expiredOpts := opts
	expiredOpts.TTL = time.Hour
	expiredOpts.Now = func() time.Time { return time.Now().Add(-3 * time.Hour) }
	expired, _, err := Generate(expiredOpts, "u1", "tenant")
	require.NoError(t, err)

	foreign, _, err := Generate(DefaultOptions([]byte("other-secret")), "u1", "tenant")
	require.NoError(t, err)

	none := jwtlib.NewWithClaims(jwtlib.SigningMethodNone, jwtlib.RegisteredClaims{
		Subject:   "u1",
		ExpiresAt: jwtlib.NewNumericDate(time.Now().Add(time.Hour)),
	})
	unsigned, err := none.SignedString(jwtlib.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	cases := map[string]string{
		"empty":     "",
		"malformed": "not-a-jwt",
		"expired":   expired,
		"foreign":   foreign,
		"alg none":  unsigned,
	}
	for name, tok := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Verify(opts, tok)
			require.Error(t, err)
			assert.True(t, errors.Is(err, errs.ErrAuthentication), err.Error())
		})
	}
}

func TestVerifierRejectsDeletedSubject(t *testing.T) {
	opts := DefaultOptions(secret)
	users := userMap{"u1": {ID: "u1", Role: model.RoleTenant}}
	v := NewVerifier(opts, users)

	tok, _, err := Generate(opts, "u1", "tenant")
	require.NoError(t, err)

	u, err := v.Verify(context.Background(), tok)
	require.NoError(t, err)
	assert.Equal(t, model.RoleTenant, u.Role)

	delete(users, "u1")
	_, err = v.Verify(context.Background(), tok)
	assert.Equal(t, errs.AuthenticationError, errs.CodeOf(err))
}

func TestUnsupportedAlg(t *testing.T) {
	_, _, err := Generate(Options{Secret: secret, Alg: "RS256"}, "u1", "")
	assert.Error(t, err)
}
