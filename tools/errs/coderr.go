package errs

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	pkgerrors "github.com/pkg/errors"
)

// Error codes shared by the gateway and the REST surface.
const (
	ProtocolError       = 400
	AuthenticationError = 401
	AuthorizationError  = 403
	NotFoundError       = 404
	ServerInternalError = 500
	TransientStoreError = 503
)

var (
	ErrProtocol       = NewCodeError(ProtocolError, "malformed frame")
	ErrAuthentication = NewCodeError(AuthenticationError, "authentication failed")
	ErrAuthorization  = NewCodeError(AuthorizationError, "not authorized")
	ErrNotFound       = NewCodeError(NotFoundError, "not found")
	ErrInternal       = NewCodeError(ServerInternalError, "internal error")
	ErrStore          = NewCodeError(TransientStoreError, "store unavailable")
)

type CodeError struct {
	Code   int    `json:"code"`
	Msg    string `json:"msg"`
	Detail string `json:"detail,omitempty"`
}

func NewCodeError(code int, msg string) *CodeError {
	return &CodeError{Code: code, Msg: msg}
}

func (e *CodeError) Error() string {
	v := make([]string, 0, 3)
	v = append(v, strconv.Itoa(e.Code), e.Msg)
	if e.Detail != "" {
		v = append(v, e.Detail)
	}
	return strings.Join(v, " ")
}

// Is matches any CodeError carrying the same code, so errors.Is(err, ErrNotFound)
// holds for every not-found error regardless of its detail.
func (e *CodeError) Is(target error) bool {
	var t *CodeError
	if !errors.As(target, &t) || t == nil {
		return false
	}
	return e.Code == t.Code
}

func (e *CodeError) clone() *CodeError {
	return &CodeError{Code: e.Code, Msg: e.Msg, Detail: e.Detail}
}

func (e *CodeError) WithDetail(detail string) *CodeError {
	out := e.clone()
	if out.Detail == "" {
		out.Detail = detail
	} else {
		out.Detail += ", " + detail
	}
	return out
}

// Wrap returns the error with a stack attached.
func (e *CodeError) Wrap() error {
	return pkgerrors.WithStack(e.clone())
}

// WrapMsg clones the error, appends msg and the key/value pairs to its detail and
// attaches a stack.
func (e *CodeError) WrapMsg(msg string, kv ...any) error {
	out := e.clone()
	if msg != "" || len(kv) > 0 {
		out = out.WithDetail(toString(msg, kv))
	}
	return pkgerrors.WithStack(out)
}

// New returns a plain error with a stack; kv pairs are appended to msg.
func New(msg string, kv ...any) error {
	return pkgerrors.New(toString(msg, kv))
}

// Wrap attaches a stack to a plain error.
func Wrap(err error) error {
	if err == nil {
		return nil
	}
	return pkgerrors.WithStack(err)
}

func WrapMsg(err error, msg string, kv ...any) error {
	if err == nil {
		return nil
	}
	return pkgerrors.Wrap(err, toString(msg, kv))
}

// As returns the first CodeError in err's chain.
func As(err error) (*CodeError, bool) {
	var ce *CodeError
	if errors.As(err, &ce) {
		return ce, true
	}
	return nil, false
}

// CodeOf returns the code of the first CodeError in err's chain, or 0.
func CodeOf(err error) int {
	if ce, ok := As(err); ok {
		return ce.Code
	}
	return 0
}

func toString(msg string, kv []any) string {
	if len(kv) == 0 {
		return msg
	}
	var sb strings.Builder
	sb.WriteString(msg)
	for i := 0; i < len(kv); i += 2 {
		if sb.Len() > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(fmt.Sprint(kv[i]))
		sb.WriteString("=")
		if i+1 < len(kv) {
			sb.WriteString(fmt.Sprint(kv[i+1]))
		} else {
			sb.WriteString("MISSING")
		}
	}
	return sb.String()
}
