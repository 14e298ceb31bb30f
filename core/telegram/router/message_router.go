package router

import (
	tg "github.com/m3rciful/docshelf/core/telegram"
	"github.com/m3rciful/docshelf/core/telegram/middleware"

	tele "gopkg.in/telebot.v4"
)

// Endpoints lists every update endpoint an UpdateRoutes handler is bound to.
var Endpoints = []string{
	tele.OnText,
	tele.OnDocument,
	tele.OnPhoto,
	tele.OnVideo,
	tele.OnAudio,
	tele.OnVoice,
	tele.OnSticker,
	tele.OnCallback,
	tele.OnCheckout,
	tele.OnPayment,
}

// UpdateOptions customises UpdateRoutes.
type UpdateOptions struct {
	// AnswerCallbacks answers callback queries the handler left unanswered so
	// the client's spinner stops.
	AnswerCallbacks bool
}

// UpdateRoutes binds one handler to every endpoint in Endpoints. Commands
// arrive through tele.OnText because none are registered as endpoints, so the
// handler sees every update and owns precedence between them.
func UpdateRoutes(h tele.HandlerFunc, opts UpdateOptions) []tg.Route {
	if h == nil {
		return nil
	}
	handler := func(c tele.Context) error {
		name := "update." + middleware.UpdateKind(c.Update())
		return handleWithSummary(c, name, func() error {
			err := h(c)
			if opts.AnswerCallbacks && c.Callback() != nil && !CallbackAnswered(c) {
				_ = c.Respond()
			}
			return err
		})
	}

	routes := make([]tg.Route, 0, len(Endpoints))
	for _, ep := range Endpoints {
		routes = append(routes, tg.Route{Endpoint: ep, Handler: handler})
	}
	return routes
}

const answeredKey = "cb_answered"

// MarkCallbackAnswered records that the handler already answered the callback.
func MarkCallbackAnswered(c tele.Context) {
	c.Set(answeredKey, true)
}

// CallbackAnswered reports whether MarkCallbackAnswered was called.
func CallbackAnswered(c tele.Context) bool {
	v, _ := c.Get(answeredKey).(bool)
	return v
}
