package telegram

import (
	"context"

	"github.com/m3rciful/docshelf/app/chat"
	"github.com/m3rciful/docshelf/app/dispatch"
	tghelpers "github.com/m3rciful/docshelf/core/telegram/helpers"
	"github.com/m3rciful/docshelf/core/telegram/router"

	tele "gopkg.in/telebot.v4"
)

// Dispatcher is the part of dispatch.Router the adapter needs.
type Dispatcher interface {
	Handle(ctx context.Context, ev chat.Event, r chat.Responder) (dispatch.Result, error)
}

// Handler converts each update and hands it to d. The route and outcome
// chosen by d are recorded for the handler summary.
func Handler(d Dispatcher) tele.HandlerFunc {
	return func(c tele.Context) error {
		ev, ok := EventFrom(c)
		if !ok {
			router.SetOutcome(c, "unsupported", "ignored")
			return nil
		}
		ctx := tghelpers.BuildContext(c)
		res, err := d.Handle(ctx, ev, NewResponder(c))
		router.SetOutcome(c, res.Handler, res.Outcome)
		return err
	}
}
