package middleware

import (
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/m3rciful/docshelf/core/logger"
	"github.com/m3rciful/docshelf/core/metrics"
	"log/slog"

	tele "gopkg.in/telebot.v4"
)

// RateLimitOptions configures behaviour of the rate limit middleware.
type RateLimitOptions struct {
	RPS       float64
	Burst     int
	Exclude   map[string]struct{}
	OnLimited tele.HandlerFunc
	// IdleTTL drops buckets of users not seen for this long.
	IdleTTL time.Duration
}

type bucket struct {
	lim  *rate.Limiter
	seen time.Time
}

// RateLimitMiddleware returns a middleware that applies a per-user token bucket.
// Payments and pre-checkout queries always pass.
func RateLimitMiddleware(opts RateLimitOptions) tele.MiddlewareFunc {
	if opts.Burst <= 0 {
		opts.Burst = 1
	}
	if opts.IdleTTL <= 0 {
		opts.IdleTTL = 10 * time.Minute
	}
	var (
		mu      sync.Mutex
		buckets = make(map[int64]*bucket)
		sweepAt time.Time
	)
	allow := func(userID int64, now time.Time) bool {
		mu.Lock()
		defer mu.Unlock()
		if now.After(sweepAt) {
			for id, b := range buckets {
				if now.Sub(b.seen) > opts.IdleTTL {
					delete(buckets, id)
				}
			}
			sweepAt = now.Add(opts.IdleTTL)
		}
		b, ok := buckets[userID]
		if !ok {
			b = &bucket{lim: rate.NewLimiter(rate.Limit(opts.RPS), opts.Burst)}
			buckets[userID] = b
		}
		b.seen = now
		return b.lim.AllowN(now, 1)
	}

	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			user := c.Sender()
			if user == nil || opts.RPS <= 0 {
				return next(c)
			}

			kind := UpdateKind(c.Update())
			if kind == KindPayment || kind == KindPreCheckout {
				return next(c)
			}
			if _, skip := opts.Exclude[kind]; skip {
				return next(c)
			}

			if allow(user.ID, time.Now()) {
				return next(c)
			}

			metrics.RateLimited.Inc()
			attrs := []any{
				slog.String("event", "tg.rate_limit"),
				slog.Int64("user_id", user.ID),
				slog.String("kind", kind),
			}
			if chat := c.Chat(); chat != nil {
				attrs = append(attrs, slog.Int64("chat_id", chat.ID))
			}
			logger.TG.Warn("rate limit", attrs...)
			if opts.OnLimited != nil {
				_ = opts.OnLimited(c)
			}
			return nil
		}
	}
}
