// Package billing validates purchase intents and settles confirmed payments
// into subscription windows.
package billing

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/m3rciful/docshelf/app/access"
	"github.com/m3rciful/docshelf/app/chat"
	"github.com/m3rciful/docshelf/app/storage"
	"github.com/m3rciful/docshelf/core/logger"
	"github.com/m3rciful/docshelf/core/metrics"
	"github.com/m3rciful/docshelf/core/tracing"
)

// SubscriptionMonth is the length of one purchased month.
const SubscriptionMonth = 30 * 24 * time.Hour

const component = "service.payments"

// NextExpiry extends from the current expiry while it is still in the future,
// otherwise from now.
func NextExpiry(current *time.Time, now time.Time, months int) time.Time {
	base := now
	if access.IsSubscribed(current, now) {
		base = *current
	}
	return base.Add(time.Duration(months) * SubscriptionMonth)
}

// Options configures a Service.
type Options struct {
	Store         storage.Store
	Catalog       Catalog
	Currency      string
	ProviderToken string
	// Now defaults to time.Now.
	Now func() time.Time
	// Attempts and Backoff control persistence retries during settlement.
	Attempts int
	Backoff  time.Duration
}

// Service owns pre-checkout validation and settlement.
type Service struct {
	store    storage.Store
	catalog  Catalog
	currency string
	token    string
	now      func() time.Time
	attempts int
	backoff  time.Duration
}

// NewService applies defaults to opts.
func NewService(opts Options) *Service {
	s := &Service{
		store:    opts.Store,
		catalog:  opts.Catalog,
		currency: strings.ToUpper(strings.TrimSpace(opts.Currency)),
		token:    opts.ProviderToken,
		now:      opts.Now,
		attempts: opts.Attempts,
		backoff:  opts.Backoff,
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.attempts <= 0 {
		s.attempts = 3
	}
	if s.backoff < 0 {
		s.backoff = 0
	} else if opts.Backoff == 0 {
		s.backoff = 200 * time.Millisecond
	}
	return s
}

// Catalog returns the configured plans.
func (s *Service) Catalog() Catalog { return s.catalog }

// Currency returns the invoice currency.
func (s *Service) Currency() string { return s.currency }

// Invoice builds the Telegram invoice for plan.
func (s *Service) Invoice(p Plan) chat.Invoice {
	days := p.Months * 30
	return chat.Invoice{
		Title:         "Subscription: " + p.Label,
		Description:   "Unlimited access to every document in the catalog for " + plural(days, "day") + ".",
		Payload:       EncodePayload(p.Months, p.Price),
		Currency:      s.currency,
		ProviderToken: s.token,
		Prices:        []chat.Price{{Label: p.Label, Amount: p.Price}},
	}
}

// ValidateCheckout decides a pre-checkout query. A non-nil error is always a
// *PaymentValidationError whose Reason should be sent back to Telegram.
func (s *Service) ValidateCheckout(ctx context.Context, c chat.Checkout) error {
	err := s.validateCheckout(c)
	outcome := "accepted"
	if err != nil {
		outcome = "rejected"
		var pv *PaymentValidationError
		errors.As(err, &pv)
		logger.Warn(ctx, component, "checkout.rejected",
			slog.String("payload", c.Payload),
			slog.String("currency", c.Currency),
			slog.Int("amount", c.Total),
			slog.String("reason", pv.Kind),
		)
	} else {
		logger.Info(ctx, component, "checkout.accepted",
			slog.String("payload", c.Payload),
			slog.Int("amount", c.Total),
		)
	}
	metrics.CheckoutsTotal.WithLabelValues(outcome).Inc()
	return err
}

func (s *Service) validateCheckout(c chat.Checkout) error {
	in, err := ParsePayload(c.Payload)
	if err != nil {
		return err
	}
	p, err := s.catalog.Match(in)
	if err != nil {
		return err
	}
	if !strings.EqualFold(c.Currency, s.currency) {
		return invalid(CodeCurrencyMismatch, "This invoice uses an unsupported currency.")
	}
	if c.Total != p.Price {
		return invalid(CodeTotalMismatch, "The payment amount does not match the plan price.")
	}
	return nil
}

// Receipt is a confirmed payment together with the payer.
type Receipt struct {
	User    storage.NewUser
	Payment chat.Payment
}

// Settlement is the subscription state after a receipt was applied.
type Settlement struct {
	UserID    int64
	Months    int
	Previous  *time.Time
	ExpiresAt time.Time
	// Duplicate is set when the charge had already been settled; nothing
	// was written.
	Duplicate bool
}

// Settle applies a confirmed payment. It either persists the extension, finds
// the charge already settled, or returns an error; it never drops a payment
// silently. Persistence failures are retried before surfacing.
func (s *Service) Settle(ctx context.Context, r Receipt) (st Settlement, err error) {
	ctx, span := tracing.Start(ctx, "billing", "billing.settle",
		attribute.Int64("user_id", r.User.ExternalID),
		attribute.String("charge_id", r.Payment.TelegramChargeID),
	)
	defer func() { tracing.End(span, err) }()

	in, err := ParsePayload(r.Payment.Payload)
	if err != nil {
		metrics.Settlements.WithLabelValues("invalid").Inc()
		logger.Error(ctx, component, "payment.invalid",
			slog.Int64("user_id", r.User.ExternalID),
			slog.String("charge_id", r.Payment.TelegramChargeID),
			slog.String("payload", r.Payment.Payload),
			slog.String("err", err.Error()),
		)
		return Settlement{}, err
	}
	s.warnOnMismatch(ctx, r, in)

	for attempt := 1; ; attempt++ {
		st, err = s.settleOnce(ctx, r, in)
		if err == nil || !retryable(err) || attempt >= s.attempts {
			break
		}
		logger.Warn(ctx, component, "payment.retry",
			slog.String("charge_id", r.Payment.TelegramChargeID),
			slog.Int("attempt", attempt),
			slog.String("err", err.Error()),
		)
		if werr := sleep(ctx, time.Duration(attempt)*s.backoff); werr != nil {
			err = errors.Join(err, werr)
			break
		}
	}

	switch {
	case err != nil:
		metrics.Settlements.WithLabelValues("failed").Inc()
		logger.Error(ctx, component, "payment.settle.failed",
			slog.Int64("user_id", r.User.ExternalID),
			slog.String("charge_id", r.Payment.TelegramChargeID),
			slog.String("payload", r.Payment.Payload),
			slog.String("err", err.Error()),
		)
		return Settlement{}, err
	case st.Duplicate:
		metrics.Settlements.WithLabelValues("duplicate").Inc()
		logger.Info(ctx, component, "payment.duplicate",
			slog.Int64("user_id", r.User.ExternalID),
			slog.String("charge_id", r.Payment.TelegramChargeID),
			slog.Bool("duplicate", true),
		)
	default:
		metrics.Settlements.WithLabelValues("settled").Inc()
		logger.Info(ctx, component, "payment.settled",
			slog.Int64("user_id", r.User.ExternalID),
			slog.String("charge_id", r.Payment.TelegramChargeID),
			slog.Int("months", st.Months),
			slog.Int("amount", r.Payment.Total),
			slog.String("currency", r.Payment.Currency),
			slog.Time("expires_at", st.ExpiresAt),
		)
	}
	return st, nil
}

func (s *Service) settleOnce(ctx context.Context, r Receipt, in Intent) (Settlement, error) {
	var st Settlement
	err := s.store.InTx(ctx, func(tx storage.Store) error {
		u, err := storage.EnsureUser(ctx, tx, r.User)
		if err != nil {
			return err
		}

		prior, err := tx.FindPaymentByChargeID(ctx, r.Payment.TelegramChargeID)
		switch {
		case err == nil:
			st = Settlement{UserID: u.ID, Months: prior.Months, ExpiresAt: prior.ExpiresAt, Duplicate: true}
			if u.SubscriptionExpiresAt != nil {
				st.ExpiresAt = *u.SubscriptionExpiresAt
			}
			return nil
		case !errors.Is(err, storage.ErrNotFound):
			return err
		}

		next := NextExpiry(u.SubscriptionExpiresAt, s.now().UTC(), in.Months)
		if _, err := tx.RecordPayment(ctx, storage.NewPayment{
			UserID:           u.ID,
			TelegramChargeID: r.Payment.TelegramChargeID,
			ProviderChargeID: r.Payment.ProviderChargeID,
			Payload:          r.Payment.Payload,
			Currency:         r.Payment.Currency,
			Amount:           r.Payment.Total,
			Months:           in.Months,
			ExpiresAt:        next,
		}); err != nil {
			return err
		}
		if err := tx.ExtendSubscription(ctx, u.ID, next); err != nil {
			return err
		}
		st = Settlement{UserID: u.ID, Months: in.Months, Previous: u.SubscriptionExpiresAt, ExpiresAt: next}
		return nil
	})
	return st, err
}

// warnOnMismatch logs a receipt whose amount or currency disagree with the
// intent or the catalog. The payment is settled regardless.
func (s *Service) warnOnMismatch(ctx context.Context, r Receipt, in Intent) {
	var problems []string
	if _, err := s.catalog.Match(in); err != nil {
		problems = append(problems, err.(*PaymentValidationError).Kind)
	}
	if !strings.EqualFold(r.Payment.Currency, s.currency) {
		problems = append(problems, CodeCurrencyMismatch)
	}
	if r.Payment.Total != in.Price {
		problems = append(problems, CodeTotalMismatch)
	}
	if len(problems) == 0 {
		return
	}
	logger.Warn(ctx, component, "payment.mismatch",
		slog.String("charge_id", r.Payment.TelegramChargeID),
		slog.String("payload", r.Payment.Payload),
		slog.String("currency", r.Payment.Currency),
		slog.Int("amount", r.Payment.Total),
		slog.String("reason", strings.Join(problems, ",")),
	)
}

// retryable reports whether a settlement attempt may succeed when repeated.
// A conflict means a concurrent settlement of the same charge committed
// first; the next attempt observes it as a duplicate.
func retryable(err error) bool {
	return storage.IsPersistence(err) || errors.Is(err, storage.ErrConflict)
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func plural(n int, unit string) string {
	if n == 1 {
		return "1 " + unit
	}
	return strconv.Itoa(n) + " " + unit + "s"
}
