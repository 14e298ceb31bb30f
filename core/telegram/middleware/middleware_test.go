package middleware

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/m3rciful/docshelf/core/logger"
	"github.com/m3rciful/docshelf/core/metrics"
	tghelpers "github.com/m3rciful/docshelf/core/telegram/helpers"

	tele "gopkg.in/telebot.v4"
)

func offlineContext(t *testing.T, upd tele.Update) tele.Context {
	t.Helper()
	bot, err := tele.NewBot(tele.Settings{Offline: true})
	if err != nil {
		t.Fatalf("offline bot: %v", err)
	}
	return bot.NewContext(upd)
}

func TestRecoverMiddlewareReturnsError(t *testing.T) {
	before := testutil.ToFloat64(metrics.HandlerPanics)
	h := RecoverMiddleware(func(tele.Context) error { panic("boom") })

	c := offlineContext(t, tele.Update{ID: 5, Message: &tele.Message{Sender: &tele.User{ID: 7}, Chat: &tele.Chat{ID: 7}}})
	err := h(c)
	if !errors.Is(err, ErrHandlerPanic) {
		t.Fatalf("err = %v, want ErrHandlerPanic", err)
	}
	if got := testutil.ToFloat64(metrics.HandlerPanics) - before; got != 1 {
		t.Fatalf("panic counter delta = %v", got)
	}
}

func TestRecoverMiddlewarePassesThrough(t *testing.T) {
	want := errors.New("plain")
	h := RecoverMiddleware(func(tele.Context) error { return want })
	if err := h(offlineContext(t, tele.Update{ID: 1})); !errors.Is(err, want) {
		t.Fatalf("err = %v", err)
	}
}

func TestUpdateKind(t *testing.T) {
	cases := map[string]tele.Update{
		KindPreCheckout: {PreCheckoutQuery: &tele.PreCheckoutQuery{ID: "q"}},
		KindPayment:     {Message: &tele.Message{Payment: &tele.Payment{}}},
		KindCallback:    {Callback: &tele.Callback{ID: "c"}},
		KindMessage:     {Message: &tele.Message{Text: "hi"}},
		KindInlineQuery: {Query: &tele.Query{ID: "i"}},
		KindOther:       {},
	}
	for want, upd := range cases {
		if got := UpdateKind(upd); got != want {
			t.Errorf("UpdateKind = %s, want %s", got, want)
		}
	}
}

func TestLoggerMiddlewareSeedsContext(t *testing.T) {
	upd := tele.Update{ID: 9, PreCheckoutQuery: &tele.PreCheckoutQuery{ID: "q", Sender: &tele.User{ID: 42}}}
	c := offlineContext(t, upd)

	var seen string
	h := LoggerMiddleware(func(c tele.Context) error {
		ctx := tghelpers.BuildContext(c)
		seen = logger.RIDFrom(ctx)
		if logger.ChatIDFrom(ctx) != 42 {
			t.Errorf("chat id = %d, want sender id for pre-checkout", logger.ChatIDFrom(ctx))
		}
		return nil
	})
	if err := h(c); err != nil {
		t.Fatal(err)
	}
	if seen != logger.BuildRID(9, 42, 42) {
		t.Fatalf("rid = %q", seen)
	}
}
