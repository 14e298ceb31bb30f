package middleware

import (
	"errors"
	"log/slog"

	"github.com/m3rciful/docshelf/core/logger"
	"github.com/m3rciful/docshelf/core/telegram/serial"

	tele "gopkg.in/telebot.v4"
)

// SerialOptions configures SerialMiddleware.
type SerialOptions struct {
	Queue *serial.Queue
	// Inline lists update kinds handled on the caller goroutine instead of a lane.
	Inline map[string]struct{}
	// OnError receives errors returned by handlers that ran on a lane.
	OnError func(error, tele.Context)
}

// SerialMiddleware hands each update to the sender's lane so updates from one
// user are handled strictly in arrival order while different users interleave.
// Telebot must run in synchronous mode for arrival order to be meaningful.
func SerialMiddleware(opts SerialOptions) tele.MiddlewareFunc {
	return func(next tele.HandlerFunc) tele.HandlerFunc {
		if opts.Queue == nil {
			return next
		}
		return func(c tele.Context) error {
			if _, ok := opts.Inline[UpdateKind(c.Update())]; ok {
				return next(c)
			}
			key := senderID(c)
			err := opts.Queue.Submit(key, func() {
				if err := next(c); err != nil && opts.OnError != nil {
					opts.OnError(err, c)
				}
			})
			if errors.Is(err, serial.ErrClosed) {
				logger.TG.Warn("serial queue closed",
					slog.String("event", "tg.serial"),
					slog.Int64("user_id", key),
				)
				return nil
			}
			return err
		}
	}
}
