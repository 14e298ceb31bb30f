package telegram

import (
	"slices"
	"testing"
	"time"

	coreconfig "github.com/m3rciful/docshelf/core/config"

	tele "gopkg.in/telebot.v4"
)

func TestBuildPollerLongPoll(t *testing.T) {
	p := BuildPoller(PollerOptions{RunMode: "longpoll"})
	lp, ok := p.(*tele.LongPoller)
	if !ok {
		t.Fatalf("poller = %T, want *tele.LongPoller", p)
	}
	if lp.Timeout != defaultLongPollTimeout {
		t.Fatalf("timeout = %v", lp.Timeout)
	}
	if !slices.Contains(lp.AllowedUpdates, "pre_checkout_query") {
		t.Fatalf("allowed updates %v miss pre_checkout_query", lp.AllowedUpdates)
	}

	lp = BuildPoller(PollerOptions{LongPollTimeoutSeconds: 25}).(*tele.LongPoller)
	if lp.Timeout != 25*time.Second {
		t.Fatalf("timeout = %v", lp.Timeout)
	}
}

func TestBuildPollerWebhook(t *testing.T) {
	cfg := &coreconfig.Config{
		Telegram: coreconfig.TelegramConfig{RunMode: coreconfig.RunModeWebhook},
		Webhook: coreconfig.WebhookConfig{
			URL:         "https://bot.example.org/hook",
			Listen:      "0.0.0.0",
			Port:        8443,
			SecretToken: "s3cret",
		},
	}
	wh, ok := BuildPoller(PollerOptionsFrom(cfg)).(*tele.Webhook)
	if !ok {
		t.Fatal("expected webhook poller")
	}
	if wh.Listen != "0.0.0.0:8443" || wh.SecretToken != "s3cret" || wh.Endpoint.PublicURL != cfg.Webhook.URL {
		t.Fatalf("unexpected webhook %+v", wh)
	}
	if !slices.Equal(wh.AllowedUpdates, AllowedUpdates) {
		t.Fatalf("allowed updates = %v", wh.AllowedUpdates)
	}
}

func TestPollerOptionsIsWebhook(t *testing.T) {
	for mode, want := range map[string]bool{"webhook": true, " Webhook ": true, "longpoll": false, "": false} {
		if got := (PollerOptions{RunMode: mode}).IsWebhook(); got != want {
			t.Fatalf("IsWebhook(%q) = %v", mode, got)
		}
	}
}
