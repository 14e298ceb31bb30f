package billing_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/m3rciful/docshelf/app/billing"
	"github.com/m3rciful/docshelf/app/chat"
	"github.com/m3rciful/docshelf/app/storage"
	"github.com/m3rciful/docshelf/app/storage/storagetest"
)

var t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

var plans = []billing.Plan{
	{Months: 1, Price: 100, Label: "1 month"},
	{Months: 3, Price: 250, Label: "3 months"},
	{Months: 12, Price: 900, Label: "12 months"},
}

type clock struct{ now time.Time }

func (c *clock) Now() time.Time { return c.now }

func newService(store storage.Store, c *clock) *billing.Service {
	return billing.NewService(billing.Options{
		Store:    store,
		Catalog:  billing.NewCatalog(plans),
		Currency: "XTR",
		Now:      c.Now,
		Backoff:  time.Millisecond,
	})
}

func receipt(userID int64, charge string, months, price int) billing.Receipt {
	return billing.Receipt{
		User: storage.NewUser{ExternalID: userID, DisplayName: "Reader"},
		Payment: chat.Payment{
			Currency:         "XTR",
			Total:            price,
			Payload:          billing.EncodePayload(months, price),
			TelegramChargeID: charge,
			ProviderChargeID: "prov-" + charge,
		},
	}
}

func TestParsePayload(t *testing.T) {
	in, err := billing.ParsePayload("docshelf.sub:3m:250")
	require.NoError(t, err)
	assert.Equal(t, billing.Intent{Months: 3, Price: 250}, in)
	assert.Equal(t, "docshelf.sub:3m:250", in.String())

	cases := map[string]string{
		"":                      billing.CodeUnknownPayload,
		"other.sub:3m:250":      billing.CodeUnknownPayload,
		"docshelf.sub:3:250":    billing.CodeBadDuration,
		"docshelf.sub:m:250":    billing.CodeBadDuration,
		"docshelf.sub:0m:250":   billing.CodeBadDuration,
		"docshelf.sub:37m:250":  billing.CodeBadDuration,
		"docshelf.sub:3m:abc":   billing.CodeBadPrice,
		"docshelf.sub:3m:-1":    billing.CodeBadPrice,
		"docshelf.sub:3m":       billing.CodeUnknownPayload,
		"docshelf.sub:3m:250:x": billing.CodeUnknownPayload,
	}
	for payload, code := range cases {
		_, err := billing.ParsePayload(payload)
		var pv *billing.PaymentValidationError
		require.ErrorAs(t, err, &pv, payload)
		assert.Equal(t, code, pv.Code(), payload)
		assert.NotEmpty(t, pv.Reason)
	}
}

func TestCatalog(t *testing.T) {
	c := billing.NewCatalog([]billing.Plan{
		{Months: 12, Price: 900},
		{Months: 1, Price: 100},
		{Months: 1, Price: 999},
	})
	got := c.Plans()
	require.Len(t, got, 2)
	assert.Equal(t, 1, got[0].Months)
	assert.Equal(t, 100, got[0].Price)

	_, err := c.Match(billing.Intent{Months: 12, Price: 900})
	assert.NoError(t, err)
	_, err = c.Match(billing.Intent{Months: 6, Price: 500})
	assert.ErrorContains(t, err, billing.CodeUnknownPlan)
	_, err = c.Match(billing.Intent{Months: 12, Price: 1})
	assert.ErrorContains(t, err, billing.CodePriceMismatch)
}

func TestNextExpiry(t *testing.T) {
	future := t0.Add(5 * 24 * time.Hour)
	past := t0.Add(-5 * 24 * time.Hour)

	assert.Equal(t, t0.Add(30*24*time.Hour), billing.NextExpiry(nil, t0, 1))
	assert.Equal(t, future.Add(90*24*time.Hour), billing.NextExpiry(&future, t0, 3))
	assert.Equal(t, t0.Add(30*24*time.Hour), billing.NextExpiry(&past, t0, 1))
	// An expiry exactly at now has lapsed.
	assert.Equal(t, t0.Add(30*24*time.Hour), billing.NextExpiry(&t0, t0, 1))
}

func TestValidateCheckout(t *testing.T) {
	svc := newService(storagetest.New(t), &clock{now: t0})
	ctx := context.Background()

	ok := chat.Checkout{ID: "q1", Currency: "XTR", Total: 250, Payload: "docshelf.sub:3m:250"}
	require.NoError(t, svc.ValidateCheckout(ctx, ok))

	cases := []struct {
		name string
		mod  func(*chat.Checkout)
		code string
	}{
		{"unknown prefix", func(c *chat.Checkout) { c.Payload = "shop:3m:250" }, billing.CodeUnknownPayload},
		{"missing duration", func(c *chat.Checkout) { c.Payload = "docshelf.sub:3:250" }, billing.CodeBadDuration},
		{"unknown plan", func(c *chat.Checkout) { c.Payload = "docshelf.sub:6m:500"; c.Total = 500 }, billing.CodeUnknownPlan},
		{"stale price", func(c *chat.Checkout) { c.Payload = "docshelf.sub:3m:200"; c.Total = 200 }, billing.CodePriceMismatch},
		{"wrong total", func(c *chat.Checkout) { c.Total = 249 }, billing.CodeTotalMismatch},
		{"wrong currency", func(c *chat.Checkout) { c.Currency = "USD" }, billing.CodeCurrencyMismatch},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := ok
			tc.mod(&c)
			err := svc.ValidateCheckout(ctx, c)
			var pv *billing.PaymentValidationError
			require.ErrorAs(t, err, &pv)
			assert.Equal(t, tc.code, pv.Code())
		})
	}
}

func TestSettleStacksOnUnexpiredSubscription(t *testing.T) {
	store := storagetest.New(t)
	c := &clock{now: t0}
	svc := newService(store, c)
	ctx := context.Background()

	st, err := svc.Settle(ctx, receipt(42, "ch-1", 1, 100))
	require.NoError(t, err)
	assert.False(t, st.Duplicate)
	assert.Nil(t, st.Previous)
	assert.True(t, st.ExpiresAt.Equal(t0.Add(30*24*time.Hour)))

	c.now = t0.Add(10 * 24 * time.Hour)
	st, err = svc.Settle(ctx, receipt(42, "ch-2", 3, 250))
	require.NoError(t, err)
	assert.True(t, st.ExpiresAt.Equal(t0.Add(120*24*time.Hour)), st.ExpiresAt)

	u, err := store.FindUserByExternalID(ctx, 42)
	require.NoError(t, err)
	require.NotNil(t, u.SubscriptionExpiresAt)
	assert.True(t, u.SubscriptionExpiresAt.Equal(t0.Add(120*24*time.Hour)))
}

func TestSettleAfterLapseStartsFromNow(t *testing.T) {
	store := storagetest.New(t)
	c := &clock{now: t0}
	svc := newService(store, c)
	ctx := context.Background()

	_, err := svc.Settle(ctx, receipt(7, "ch-1", 1, 100))
	require.NoError(t, err)

	c.now = t0.Add(45 * 24 * time.Hour)
	st, err := svc.Settle(ctx, receipt(7, "ch-2", 1, 100))
	require.NoError(t, err)
	assert.True(t, st.ExpiresAt.Equal(c.now.Add(30*24*time.Hour)), st.ExpiresAt)
}

func TestSettleDuplicateChargeDoesNotExtendTwice(t *testing.T) {
	store := storagetest.New(t)
	svc := newService(store, &clock{now: t0})
	ctx := context.Background()

	first, err := svc.Settle(ctx, receipt(9, "ch-dup", 3, 250))
	require.NoError(t, err)

	again, err := svc.Settle(ctx, receipt(9, "ch-dup", 3, 250))
	require.NoError(t, err)
	assert.True(t, again.Duplicate)
	assert.True(t, again.ExpiresAt.Equal(first.ExpiresAt))

	st, err := store.Stats(ctx, t0)
	require.NoError(t, err)
	assert.EqualValues(t, 1, st.Payments)
	assert.EqualValues(t, 1, st.Users)
}

func TestSettleInvalidPayloadIsNeverSilent(t *testing.T) {
	store := storagetest.New(t)
	svc := newService(store, &clock{now: t0})
	ctx := context.Background()

	r := receipt(11, "ch-bad", 1, 100)
	r.Payment.Payload = "garbage"
	_, err := svc.Settle(ctx, r)
	var pv *billing.PaymentValidationError
	require.ErrorAs(t, err, &pv)

	_, err = store.FindUserByExternalID(ctx, 11)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestSettleMismatchStillSettles(t *testing.T) {
	svc := newService(storagetest.New(t), &clock{now: t0})

	r := receipt(12, "ch-odd", 3, 250)
	r.Payment.Total = 1
	st, err := svc.Settle(context.Background(), r)
	require.NoError(t, err)
	assert.Equal(t, 3, st.Months)
}

func TestSettleRetriesPersistenceFailures(t *testing.T) {
	faulty := storagetest.NewFaulty(storagetest.New(t))
	faulty.FailOn("ExtendSubscription", &storage.PersistenceError{Op: "extend subscription", Err: errors.New("io")}, 2)
	svc := newService(faulty, &clock{now: t0})
	ctx := context.Background()

	st, err := svc.Settle(ctx, receipt(13, "ch-retry", 1, 100))
	require.NoError(t, err)
	assert.False(t, st.Duplicate)
	assert.Equal(t, 3, faulty.Calls("InTx"))

	u, err := faulty.FindUserByExternalID(ctx, 13)
	require.NoError(t, err)
	require.NotNil(t, u.SubscriptionExpiresAt)
	assert.True(t, u.SubscriptionExpiresAt.Equal(t0.Add(30*24*time.Hour)))
}

func TestSettleSurfacesPersistentFailure(t *testing.T) {
	faulty := storagetest.NewFaulty(storagetest.New(t))
	faulty.FailOn("RecordPayment", &storage.PersistenceError{Op: "record payment", Err: errors.New("disk full")}, -1)
	svc := newService(faulty, &clock{now: t0})

	_, err := svc.Settle(context.Background(), receipt(14, "ch-fail", 1, 100))
	require.Error(t, err)
	assert.True(t, storage.IsPersistence(err))
	assert.Equal(t, 3, faulty.Calls("RecordPayment"))
}

func TestSettleStopsRetryingWhenContextEnds(t *testing.T) {
	faulty := storagetest.NewFaulty(storagetest.New(t))
	faulty.FailOn("RecordPayment", &storage.PersistenceError{Op: "record payment", Err: errors.New("busy")}, -1)
	svc := billing.NewService(billing.Options{
		Store:    faulty,
		Catalog:  billing.NewCatalog(plans),
		Currency: "XTR",
		Now:      (&clock{now: t0}).Now,
		Backoff:  time.Hour,
	})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := svc.Settle(ctx, receipt(15, "ch-ctx", 1, 100))
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestInvoice(t *testing.T) {
	svc := billing.NewService(billing.Options{Catalog: billing.NewCatalog(plans), Currency: "xtr"})
	inv := svc.Invoice(plans[1])
	assert.Equal(t, "XTR", inv.Currency)
	assert.Equal(t, "docshelf.sub:3m:250", inv.Payload)
	assert.Equal(t, 250, inv.Total())
	assert.Contains(t, inv.Description, "90 days")
}
