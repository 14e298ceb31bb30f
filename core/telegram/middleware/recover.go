package middleware

import (
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"

	"github.com/m3rciful/docshelf/core/logger"
	"github.com/m3rciful/docshelf/core/metrics"
	tghelpers "github.com/m3rciful/docshelf/core/telegram/helpers"

	tele "gopkg.in/telebot.v4"
)

// ErrHandlerPanic wraps a recovered panic so it flows to OnError like any
// other handler failure.
var ErrHandlerPanic = errors.New("handler panic")

// RecoverMiddleware turns a handler panic into ErrHandlerPanic. The stack is
// logged with the update's correlation fields.
func RecoverMiddleware(next tele.HandlerFunc) tele.HandlerFunc {
	return func(c tele.Context) (err error) {
		defer func() {
			r := recover()
			if r == nil {
				return
			}
			metrics.HandlerPanics.Inc()
			logger.TG.ErrorContext(tghelpers.BuildContext(c), "panic recovered",
				slog.String("event", "tg.panic"),
				slog.String("kind", UpdateKind(c.Update())),
				slog.Any("err", r),
				slog.String("stack", string(debug.Stack())),
			)
			err = fmt.Errorf("%w: %v", ErrHandlerPanic, r)
		}()
		return next(c)
	}
}
