package telegram

import (
	"strings"

	coreconfig "github.com/m3rciful/docshelf/core/config"
	"github.com/m3rciful/docshelf/core/telegram/middleware"
	"github.com/m3rciful/docshelf/core/telegram/serial"

	tele "gopkg.in/telebot.v4"
)

// ChainOptions feeds DefaultMiddlewares.
type ChainOptions struct {
	Config    *coreconfig.Config
	Queue     *serial.Queue
	OnLimited tele.HandlerFunc
	OnError   func(error, tele.Context)
}

// DefaultMiddlewares builds the shared middleware chain for bots. Everything
// after "serial" runs on the sender's lane.
func DefaultMiddlewares(opts ChainOptions) []Middleware {
	mws := []Middleware{
		{Name: "update_metrics", Use: middleware.UpdateMetricsMiddleware},
	}

	if cfg := opts.Config; cfg != nil && cfg.RateLimit.RPS > 0 {
		ex := make(map[string]struct{}, len(cfg.RateLimit.ExcludeUpdates))
		for _, t := range cfg.RateLimit.ExcludeUpdates {
			ex[strings.ToLower(t)] = struct{}{}
		}
		mws = append(mws, Middleware{
			Name: "rate_limit",
			Use: middleware.RateLimitMiddleware(middleware.RateLimitOptions{
				RPS:       cfg.RateLimit.RPS,
				Burst:     cfg.RateLimit.Burst,
				Exclude:   ex,
				OnLimited: opts.OnLimited,
			}),
		})
	}

	if opts.Queue != nil {
		mws = append(mws, Middleware{
			Name: "serial",
			Use: middleware.SerialMiddleware(middleware.SerialOptions{
				Queue: opts.Queue,
				// Pre-checkout answers are read-only and due within 10s, so they
				// skip the user's backlog. Payments settle on the lane like
				// everything else.
				Inline: map[string]struct{}{
					middleware.KindPreCheckout: {},
				},
				OnError: opts.OnError,
			}),
		})
	}

	mws = append(mws,
		Middleware{Name: "recover", Use: middleware.RecoverMiddleware},
		Middleware{Name: "logger", Use: middleware.LoggerMiddleware},
	)

	return mws
}
