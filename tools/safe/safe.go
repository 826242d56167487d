package safe

import (
	"rentchat/logger"
	"rentchat/tools/errs"

	"go.uber.org/zap"
)

// Go starts f in a goroutine that recovers from panic, so one misbehaving
// connection cannot take the process down. onPanic may be nil.
func Go(name string, f func(), onPanic func(err error)) {
	go func() {
		defer Recover(name, onPanic)
		f()
	}()
}

// Recover must be deferred directly.
func Recover(name string, onPanic func(err error)) {
	r := recover()
	if r == nil {
		return
	}
	err := errs.ErrPanic(r)
	logger.Error("panic recovered", zap.String("goroutine", name), zap.Error(err))
	if onPanic != nil {
		onPanic(err)
	}
}
