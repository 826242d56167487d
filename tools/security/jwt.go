package security

import (
	"errors"
	"fmt"
	"strings"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"

	"rentchat/tools/errs"
)

// Options controls signing and TTL.
type Options struct {
	Secret []byte           // HMAC key (from JWT_SECRET)
	Alg    string           // HS256/HS384/HS512, default HS256
	TTL    time.Duration    // token lifetime, default 2h
	Now    func() time.Time // nil => time.Now
}

type Claims struct {
	Role string `json:"role,omitempty"`
	jwtlib.RegisteredClaims
}

func DefaultOptions(secret []byte) Options {
	return Options{Secret: secret, Alg: "HS256", TTL: 2 * time.Hour}
}

func (o Options) now() time.Time {
	if o.Now == nil {
		return time.Now()
	}
	return o.Now()
}

// Generate signs a token whose subject is userID.
func Generate(opts Options, userID, role string) (token string, expireAt time.Time, err error) {
	method, err := signingMethod(opts.Alg)
	if err != nil {
		return "", time.Time{}, err
	}
	if len(opts.Secret) == 0 {
		return "", time.Time{}, errors.New("jwt secret is empty")
	}
	ttl := opts.TTL
	if ttl <= 0 {
		ttl = 2 * time.Hour
	}
	now := opts.now()
	exp := now.Add(ttl)

	claims := Claims{
		Role: role,
		RegisteredClaims: jwtlib.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwtlib.NewNumericDate(now),
			NotBefore: jwtlib.NewNumericDate(now),
			ExpiresAt: jwtlib.NewNumericDate(exp),
		},
	}
	signed, err := jwtlib.NewWithClaims(method, claims).SignedString(opts.Secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, exp, nil
}

// Verify checks signature, algorithm and expiry and returns the claims. Every
// failure is an AuthenticationError.
func Verify(opts Options, token string) (*Claims, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, errs.ErrAuthentication.WrapMsg("missing credential")
	}
	method, err := signingMethod(opts.Alg)
	if err != nil {
		return nil, err
	}
	claims := &Claims{}
	parsed, err := jwtlib.ParseWithClaims(token, claims, func(t *jwtlib.Token) (interface{}, error) {
		return opts.Secret, nil
	},
		jwtlib.WithValidMethods([]string{method.Alg()}),
		jwtlib.WithExpirationRequired(),
		jwtlib.WithTimeFunc(opts.now),
	)
	switch {
	case errors.Is(err, jwtlib.ErrTokenExpired):
		return nil, errs.ErrAuthentication.WrapMsg("token expired")
	case errors.Is(err, jwtlib.ErrTokenMalformed):
		return nil, errs.ErrAuthentication.WrapMsg("malformed token")
	case errors.Is(err, jwtlib.ErrTokenSignatureInvalid):
		return nil, errs.ErrAuthentication.WrapMsg("invalid signature")
	case err != nil:
		return nil, errs.ErrAuthentication.WrapMsg("invalid token", "reason", err)
	}
	if !parsed.Valid || claims.Subject == "" {
		return nil, errs.ErrAuthentication.WrapMsg("invalid token")
	}
	return claims, nil
}

func signingMethod(alg string) (jwtlib.SigningMethod, error) {
	switch strings.ToUpper(strings.TrimSpace(alg)) {
	case "", "HS256":
		return jwtlib.SigningMethodHS256, nil
	case "HS384":
		return jwtlib.SigningMethodHS384, nil
	case "HS512":
		return jwtlib.SigningMethodHS512, nil
	default:
		return nil, fmt.Errorf("unsupported alg: %s (use HS256/HS384/HS512)", alg)
	}
}
