package telegram

import (
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/m3rciful/docshelf/core/telegram/middleware"
	"github.com/m3rciful/docshelf/core/telegram/serial"

	tele "gopkg.in/telebot.v4"
)

func TestDefaultChainKeepsPaymentsInUserOrder(t *testing.T) {
	bot, err := tele.NewBot(tele.Settings{Offline: true})
	if err != nil {
		t.Fatal(err)
	}
	q := serial.New(serial.Options{})

	var (
		mu      sync.Mutex
		got     []string
		started = make(chan struct{})
		release = make(chan struct{})
	)
	h := tele.HandlerFunc(func(c tele.Context) error {
		kind := middleware.UpdateKind(c.Update())
		if kind == middleware.KindMessage {
			close(started)
			<-release
		}
		mu.Lock()
		got = append(got, kind)
		mu.Unlock()
		return nil
	})
	mws := DefaultMiddlewares(ChainOptions{Queue: q})
	for i := len(mws) - 1; i >= 0; i-- {
		h = mws[i].Use(h)
	}
	snapshot := func() []string {
		mu.Lock()
		defer mu.Unlock()
		return slices.Clone(got)
	}

	user := &tele.User{ID: 7}
	chat := &tele.Chat{ID: 7}
	text := tele.Update{ID: 1, Message: &tele.Message{Text: "doc_1 tap", Sender: user, Chat: chat}}
	checkout := tele.Update{ID: 2, PreCheckoutQuery: &tele.PreCheckoutQuery{ID: "q", Sender: user, Payload: "docshelf.sub:1m:100"}}
	payment := tele.Update{ID: 3, Message: &tele.Message{Sender: user, Chat: chat, Payment: &tele.Payment{Payload: "docshelf.sub:1m:100"}}}

	if err := h(bot.NewContext(text)); err != nil {
		t.Fatal(err)
	}
	select {
	case <-started:
	case <-time.After(2 * time.Second):
		t.Fatal("text update never reached the handler")
	}
	for _, upd := range []tele.Update{checkout, payment} {
		if err := h(bot.NewContext(upd)); err != nil {
			t.Fatal(err)
		}
	}

	// Only the pre-checkout answer may overtake the blocked message.
	time.Sleep(20 * time.Millisecond)
	if s := snapshot(); !slices.Equal(s, []string{middleware.KindPreCheckout}) {
		t.Fatalf("while blocked: %v", s)
	}

	close(release)
	q.Close()
	want := []string{middleware.KindPreCheckout, middleware.KindMessage, middleware.KindPayment}
	if s := snapshot(); !slices.Equal(s, want) {
		t.Fatalf("order = %v, want %v", s, want)
	}
}
