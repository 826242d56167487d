package security

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"rentchat/module/rental/model"
	"rentchat/tools/errs"
)

// CtxUserKey holds the authenticated *model.User.
const CtxUserKey = "rentchat.user"

// TokenVerifier resolves a bearer token to a user.
type TokenVerifier interface {
	Verify(ctx context.Context, token string) (*model.User, error)
}

type Options struct {
	HeaderToken string // checked before Authorization, default "X-Auth-Token"
	QueryToken  string // query parameter fallback, empty disables
}

func DefaultOptions() *Options {
	return &Options{HeaderToken: "X-Auth-Token"}
}

// Middleware authenticates the request and stores the user under CtxUserKey.
// Failures abort with 401 and a CodeError body.
func Middleware(v TokenVerifier, opts *Options) gin.HandlerFunc {
	if opts == nil {
		opts = DefaultOptions()
	}
	return func(c *gin.Context) {
		token := extractToken(c, opts)
		user, err := v.Verify(c.Request.Context(), token)
		if err != nil {
			status := http.StatusUnauthorized
			body := errs.ErrAuthentication
			if errs.CodeOf(err) == errs.TransientStoreError {
				status, body = http.StatusServiceUnavailable, errs.ErrStore
			}
			c.AbortWithStatusJSON(status, body)
			return
		}
		c.Set(CtxUserKey, user)
		c.Next()
	}
}

func extractToken(c *gin.Context, opts *Options) string {
	if opts.HeaderToken != "" {
		if t := strings.TrimSpace(c.GetHeader(opts.HeaderToken)); t != "" {
			return t
		}
	}
	if authz := strings.TrimSpace(c.GetHeader("Authorization")); len(authz) > 7 && strings.EqualFold(authz[:7], "bearer ") {
		return strings.TrimSpace(authz[7:])
	}
	if opts.QueryToken != "" {
		return strings.TrimSpace(c.Query(opts.QueryToken))
	}
	return ""
}

// UserFrom returns the user set by Middleware.
func UserFrom(c *gin.Context) (*model.User, bool) {
	v, ok := c.Get(CtxUserKey)
	if !ok {
		return nil, false
	}
	u, ok := v.(*model.User)
	return u, ok
}
