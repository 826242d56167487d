package chat

import (
	"context"
	"errors"

	"rentchat/tools/errs"
)

type terminalError struct{ error }

func (e terminalError) Unwrap() error { return e.error }

// Terminal marks err as fatal for the connection: the error frame is sent and
// the socket is closed afterwards.
func Terminal(err error) error {
	if err == nil {
		return nil
	}
	return terminalError{err}
}

func IsTerminal(err error) bool {
	var t terminalError
	return errors.As(err, &t)
}

// classify maps any handler error onto the error taxonomy.
func classify(err error) *errs.CodeError {
	if ce, ok := errs.As(err); ok {
		return ce
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return errs.ErrStore
	}
	return errs.ErrInternal
}

// ErrorText is what the client sees. Store and internal failures stay generic.
func ErrorText(err error) string {
	ce := classify(err)
	switch ce.Code {
	case errs.ServerInternalError, errs.TransientStoreError:
		return ce.Msg
	}
	if ce.Detail == "" {
		return ce.Msg
	}
	return ce.Msg + ": " + ce.Detail
}
