package telegram

import (
	"cmp"
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	coreconfig "github.com/m3rciful/docshelf/core/config"
	"github.com/m3rciful/docshelf/core/logger"
	tghelpers "github.com/m3rciful/docshelf/core/telegram/helpers"
	tgsender "github.com/m3rciful/docshelf/core/telegram/sender"
	"github.com/m3rciful/docshelf/core/telegram/serial"

	tele "gopkg.in/telebot.v4"
)

// Middleware is a named global middleware installed with bot.Use.
type Middleware struct {
	Name string
	Use  func(next tele.HandlerFunc) tele.HandlerFunc
}

// Route binds Handler to Endpoint through tele.Bot.Handle.
type Route struct {
	Endpoint any
	Handler  tele.HandlerFunc
}

// RunOptions configures RunTelegram.
type RunOptions struct {
	Config   *coreconfig.Config
	Registry *Registry

	// Dispatcher is built from DispatcherOptions when nil.
	DispatcherOptions tgsender.Options
	Dispatcher        *tgsender.Dispatcher

	// Queue is closed, and so drained, once the poller has stopped.
	Queue *serial.Queue

	Middlewares []Middleware
	Routes      []Route

	DisableWebhookCleanup   bool
	DisableHelperDispatcher bool

	OnStart func(ctx context.Context, rt Runtime) error
	OnStop  func(ctx context.Context, rt Runtime) error
}

// Runtime is what lifecycle hooks get to see.
type Runtime struct {
	Dispatcher *tgsender.Dispatcher
	Registry   *Registry
}

// RunTelegram builds the bot, installs middlewares and routes, publishes the
// command menu and serves updates until ctx is done. Cancellation is a clean
// stop and returns nil.
func RunTelegram(ctx context.Context, opts RunOptions) error {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg := opts.Config
	if cfg == nil {
		return errors.New("telegram: nil config")
	}
	reg := opts.Registry
	if reg == nil {
		reg = NewRegistry()
	}

	pollerOpts := PollerOptionsFrom(cfg)
	began := time.Now()
	bot, err := tele.NewBot(tele.Settings{
		Token:  cfg.Telegram.Token,
		Poller: BuildPoller(pollerOpts),
		Client: BuildHTTPClient(pollerOpts.LongPollTimeout()),
		// The serial middleware fans updates out to per-user lanes, so telebot
		// itself must hand them over in arrival order.
		Synchronous: true,
		OnError:     OnError,
	})
	if err != nil {
		return errors.Join(errors.New("telegram: bot init"), err)
	}
	logMode(ctx, pollerOpts, time.Since(began))
	if !pollerOpts.IsWebhook() && !opts.DisableWebhookCleanup {
		dropWebhook(ctx, bot)
	}

	disp := opts.Dispatcher
	if disp == nil {
		disp = tgsender.NewDispatcher(opts.DispatcherOptions)
	}
	if !opts.DisableHelperDispatcher {
		tghelpers.SetDispatcher(disp)
	}
	release := func() {
		disp.Close()
		if !opts.DisableHelperDispatcher {
			tghelpers.SetDispatcher(nil)
		}
	}

	install(bot, opts)
	if err := reg.Publish(bot, cfg.Telegram.AdminID); err != nil {
		logger.TWire.LogAttrs(ctx, slog.LevelError, "register.commands.fail",
			slog.String("err", logger.SanitizeLimit(err.Error(), 256)),
		)
	}

	rt := Runtime{Dispatcher: disp, Registry: reg}
	if opts.OnStart != nil {
		if err := opts.OnStart(ctx, rt); err != nil {
			release()
			return err
		}
	}

	runErr := serve(ctx, bot)
	if opts.Queue != nil {
		opts.Queue.Close()
	}
	var stopErr error
	if opts.OnStop != nil {
		stopErr = opts.OnStop(ctx, rt)
	}
	release()
	return cmp.Or(stopErr, runErr)
}

func install(bot *tele.Bot, opts RunOptions) {
	for _, mw := range opts.Middlewares {
		if mw.Use != nil {
			bot.Use(mw.Use)
		}
	}
	for _, r := range opts.Routes {
		if r.Endpoint != nil && r.Handler != nil {
			bot.Handle(r.Endpoint, r.Handler)
		}
	}
	logger.TWire.LogAttrs(context.Background(), slog.LevelInfo, "register.done",
		slog.Int("middlewares", len(opts.Middlewares)),
		slog.Int("routes", len(opts.Routes)),
	)
}

// serve blocks in bot.Start until ctx is done or the poller exits on its own.
func serve(ctx context.Context, bot *tele.Bot) error {
	done := make(chan struct{})
	go func() {
		defer close(done)
		bot.Start()
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		bot.Stop()
		<-done
		if errors.Is(ctx.Err(), context.Canceled) {
			return nil
		}
		return ctx.Err()
	}
}

func logMode(ctx context.Context, p PollerOptions, took time.Duration) {
	attrs := []slog.Attr{
		slog.String("event", "mode"),
		slog.Duration("duration", logger.RoundMS(took)),
	}
	if p.IsWebhook() {
		attrs = append(attrs,
			slog.String("mode", "webhook"),
			slog.String("public_url", p.Webhook.URL),
			slog.Bool("secret_token", p.Webhook.SecretToken != ""),
		)
	} else {
		attrs = append(attrs,
			slog.String("mode", "polling"),
			slog.Duration("poll_timeout", p.LongPollTimeout()),
		)
	}
	logger.TG.LogAttrs(ctx, slog.LevelInfo, "telegram mode", attrs...)
}

// dropWebhook removes a webhook left over from an earlier webhook deployment;
// getUpdates is refused while one is set. Pending updates are kept.
func dropWebhook(ctx context.Context, bot *tele.Bot) {
	if err := bot.RemoveWebhook(false); err != nil {
		msg := err.Error()
		if bot.Token != "" {
			msg = strings.ReplaceAll(msg, bot.Token, "<token>")
		}
		logger.TG.LogAttrs(ctx, slog.LevelWarn, "webhook cleanup failed",
			slog.String("event", "webhook.delete"),
			slog.String("err", logger.SanitizeLimit(msg, 256)),
		)
		return
	}
	logger.TG.LogAttrs(ctx, slog.LevelInfo, "webhook removed", slog.String("event", "webhook.delete"))
}

// OnError logs handler errors that reached telebot or a serial lane.
func OnError(err error, c tele.Context) {
	if err == nil {
		return
	}
	ctx := context.Background()
	if c != nil {
		ctx = tghelpers.BuildContext(c)
	}
	logger.TG.LogAttrs(ctx, slog.LevelError, "handler error",
		slog.String("event", "tg.error"),
		slog.String("err", logger.SanitizeLimit(err.Error(), 256)),
	)
}
