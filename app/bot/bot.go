// Package bot assembles the docshelf services on top of the shared bot runtime.
package bot

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/m3rciful/docshelf/app/billing"
	appconfig "github.com/m3rciful/docshelf/app/config"
	"github.com/m3rciful/docshelf/app/dispatch"
	"github.com/m3rciful/docshelf/app/ingest"
	"github.com/m3rciful/docshelf/app/storage"
	apptg "github.com/m3rciful/docshelf/app/telegram"
	"github.com/m3rciful/docshelf/core/bootstrap"
	corecmd "github.com/m3rciful/docshelf/core/cmd"
	"github.com/m3rciful/docshelf/core/logger"
	"github.com/m3rciful/docshelf/core/metrics"
	coretelegram "github.com/m3rciful/docshelf/core/telegram"
	tghelpers "github.com/m3rciful/docshelf/core/telegram/helpers"
	"github.com/m3rciful/docshelf/core/telegram/router"
	"github.com/m3rciful/docshelf/core/telegram/sender"
	"github.com/m3rciful/docshelf/core/telegram/serial"
	"github.com/m3rciful/docshelf/core/telegram/state"
	"github.com/m3rciful/docshelf/migrations"

	tele "gopkg.in/telebot.v4"
)

const shutdownTimeout = 10 * time.Second

// App holds the wired services and the infrastructure they run on.
type App struct {
	cfg      *appconfig.Config
	infra    *bootstrap.Result
	store    storage.Store
	sessions state.Manager
	router   *dispatch.Router
}

// Bootstrap matches corecmd.Options.Bootstrap.
func Bootstrap(ctx context.Context, carrier corecmd.ConfigCarrier) (corecmd.TelegramApp, error) {
	cfg, ok := carrier.(*appconfig.Config)
	if !ok {
		return nil, fmt.Errorf("bot: unexpected config type %T", carrier)
	}
	infra, err := bootstrap.Run(ctx, bootstrap.Options{
		Config:     &cfg.Config,
		Database:   cfg.Database,
		Migrations: migrations.FS,
	})
	if err != nil {
		return nil, err
	}
	return New(cfg, infra, storage.NewSQLStore(infra.DB)), nil
}

// New wires the services over store. infra may be nil in tests.
func New(cfg *appconfig.Config, infra *bootstrap.Result, store storage.Store) *App {
	sessions := state.NewMemoryManager()
	bill := billing.NewService(billing.Options{
		Store:         store,
		Catalog:       billing.NewCatalog(cfg.Payments.Plans),
		Currency:      cfg.Payments.Currency,
		ProviderToken: cfg.Payments.ProviderToken,
	})
	machine := ingest.New(ingest.Options{
		Store:       store,
		Sessions:    sessions,
		AdminID:     cfg.Telegram.AdminID,
		PDFOnly:     cfg.Ingest.PDFOnly == nil || *cfg.Ingest.PDFOnly,
		MaxTitleLen: cfg.Ingest.MaxTitleLen,
	})
	return &App{
		cfg:      cfg,
		infra:    infra,
		store:    store,
		sessions: sessions,
		router: dispatch.New(dispatch.Options{
			Store:          store,
			Billing:        bill,
			Ingest:         machine,
			AdminID:        cfg.Telegram.AdminID,
			SupportContact: cfg.Payments.SupportContact,
		}),
	}
}

// Registry returns the command menu published to Telegram.
func Registry() *coretelegram.Registry {
	reg := coretelegram.NewRegistry()
	for _, c := range dispatch.Commands {
		reg.RegisterCommand(c)
	}
	return reg
}

// TelegramRunOptions implements corecmd.TelegramApp.
func (a *App) TelegramRunOptions() (coretelegram.RunOptions, error) {
	queue := serial.New(serial.Options{
		OnPending: func(n int) { metrics.SerialPending.Set(float64(n)) },
	})
	core := &a.cfg.Config

	return coretelegram.RunOptions{
		Config:   core,
		Registry: Registry(),
		Queue:    queue,
		DispatcherOptions: sender.Options{
			MaxRetries: 2,
			GlobalRPS:  core.Telegram.SendRPS,
		},
		Middlewares: coretelegram.DefaultMiddlewares(coretelegram.ChainOptions{
			Config:    core,
			Queue:     queue,
			OnLimited: onLimited,
			OnError:   coretelegram.OnError,
		}),
		Routes: router.UpdateRoutes(apptg.Handler(a.router), router.UpdateOptions{AnswerCallbacks: true}),
		OnStart: func(ctx context.Context, rt coretelegram.Runtime) error {
			logger.L.Info("services wired",
				slog.String("component", "app"),
				slog.String("event", "wire"),
				slog.Int("commands", rt.Registry.Len()),
				slog.Int("plans", len(a.cfg.Payments.Plans)),
				slog.String("currency", a.cfg.Payments.Currency),
			)
			return nil
		},
		OnStop: func(ctx context.Context, _ coretelegram.Runtime) error {
			logger.L.Info("closing infrastructure",
				slog.String("component", "app"),
				slog.String("event", "shutdown"),
				slog.Int("sessions_dropped", a.sessions.Len()),
			)
			closeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
			defer cancel()
			return a.infra.Close(closeCtx)
		},
	}, nil
}

// onLimited tells a throttled user to slow down. Callback presses get a
// toast instead of a chat message.
func onLimited(c tele.Context) error {
	if c.Callback() != nil {
		router.MarkCallbackAnswered(c)
		return c.Respond(&tele.CallbackResponse{Text: "Too many requests, please wait a moment."})
	}
	return tghelpers.SendText(c, "Too many requests, please wait a moment.")
}
