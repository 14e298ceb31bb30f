package storage_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/m3rciful/docshelf/app/storage"
	"github.com/m3rciful/docshelf/app/storage/storagetest"
)

var t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func TestCreateAndFindUser(t *testing.T) {
	s := storagetest.New(t).WithClock(storagetest.Fixed(t0))
	ctx := context.Background()

	handle := "reader"
	u, err := s.CreateUser(ctx, storage.NewUser{ExternalID: 100, DisplayName: "Ann", Handle: &handle})
	require.NoError(t, err)
	assert.NotZero(t, u.ID)

	got, err := s.FindUserByExternalID(ctx, 100)
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)
	assert.Equal(t, "Ann", got.DisplayName)
	require.NotNil(t, got.Handle)
	assert.Equal(t, "reader", *got.Handle)
	assert.Nil(t, got.SubscriptionExpiresAt)
	assert.True(t, got.CreatedAt.Equal(t0))

	_, err = s.FindUserByExternalID(ctx, 999)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestCreateUserConflict(t *testing.T) {
	s := storagetest.New(t)
	ctx := context.Background()

	_, err := s.CreateUser(ctx, storage.NewUser{ExternalID: 1})
	require.NoError(t, err)
	_, err = s.CreateUser(ctx, storage.NewUser{ExternalID: 1})
	assert.ErrorIs(t, err, storage.ErrConflict)

	var ce *storage.ConflictError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "users.external_id", ce.Field)
}

func TestExtendSubscription(t *testing.T) {
	s := storagetest.New(t)
	ctx := context.Background()

	u, err := s.CreateUser(ctx, storage.NewUser{ExternalID: 5})
	require.NoError(t, err)

	exp := t0.Add(30 * 24 * time.Hour)
	require.NoError(t, s.ExtendSubscription(ctx, u.ID, exp))

	got, err := s.FindUserByExternalID(ctx, 5)
	require.NoError(t, err)
	require.NotNil(t, got.SubscriptionExpiresAt)
	assert.True(t, got.SubscriptionExpiresAt.Equal(exp))

	assert.ErrorIs(t, s.ExtendSubscription(ctx, 12345, exp), storage.ErrNotFound)
}

func TestDocumentsOrderedAndUnique(t *testing.T) {
	s := storagetest.New(t)
	ctx := context.Background()

	docs, err := s.ListDocuments(ctx)
	require.NoError(t, err)
	assert.Empty(t, docs)

	a, err := s.CreateDocument(ctx, storage.NewDocument{Title: "Algebra Notes", Price: 0, FileID: "f1"})
	require.NoError(t, err)
	b, err := s.CreateDocument(ctx, storage.NewDocument{Title: "Physics", Price: 12000, FileID: "f2"})
	require.NoError(t, err)
	assert.Greater(t, b.ID, a.ID)

	_, err = s.CreateDocument(ctx, storage.NewDocument{Title: "Again", FileID: "f1"})
	assert.ErrorIs(t, err, storage.ErrConflict)

	docs, err = s.ListDocuments(ctx)
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, "Algebra Notes", docs[0].Title)
	assert.Equal(t, 12000, docs[1].Price)

	got, err := s.FindDocumentByID(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, "f2", got.FileID)

	_, err = s.FindDocumentByID(ctx, 404)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestRecordPaymentDuplicateCharge(t *testing.T) {
	s := storagetest.New(t)
	ctx := context.Background()

	u, err := s.CreateUser(ctx, storage.NewUser{ExternalID: 9})
	require.NoError(t, err)

	np := storage.NewPayment{
		UserID:           u.ID,
		TelegramChargeID: "tg-1",
		Payload:          "docshelf.sub:1m:100",
		Currency:         "XTR",
		Amount:           100,
		Months:           1,
		ExpiresAt:        t0,
	}
	p, err := s.RecordPayment(ctx, np)
	require.NoError(t, err)
	assert.NotZero(t, p.ID)

	_, err = s.RecordPayment(ctx, np)
	assert.ErrorIs(t, err, storage.ErrConflict)

	found, err := s.FindPaymentByChargeID(ctx, "tg-1")
	require.NoError(t, err)
	assert.Equal(t, p.ID, found.ID)
	assert.True(t, found.ExpiresAt.Equal(t0))

	_, err = s.FindPaymentByChargeID(ctx, "tg-missing")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestInTxRollsBackOnError(t *testing.T) {
	s := storagetest.New(t)
	ctx := context.Background()
	boom := errors.New("boom")

	err := s.InTx(ctx, func(tx storage.Store) error {
		if _, err := tx.CreateDocument(ctx, storage.NewDocument{Title: "Half", FileID: "half"}); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	docs, err := s.ListDocuments(ctx)
	require.NoError(t, err)
	assert.Empty(t, docs, "partial write must not be visible")
}

func TestInTxNested(t *testing.T) {
	s := storagetest.New(t)
	ctx := context.Background()

	err := s.InTx(ctx, func(tx storage.Store) error {
		return tx.InTx(ctx, func(inner storage.Store) error {
			_, err := inner.CreateDocument(ctx, storage.NewDocument{Title: "Nested", FileID: "n"})
			return err
		})
	})
	require.NoError(t, err)

	docs, err := s.ListDocuments(ctx)
	require.NoError(t, err)
	assert.Len(t, docs, 1)
}

func TestStats(t *testing.T) {
	s := storagetest.New(t)
	ctx := context.Background()

	a, err := s.CreateUser(ctx, storage.NewUser{ExternalID: 1})
	require.NoError(t, err)
	b, err := s.CreateUser(ctx, storage.NewUser{ExternalID: 2})
	require.NoError(t, err)
	require.NoError(t, s.ExtendSubscription(ctx, a.ID, t0.Add(time.Hour)))
	require.NoError(t, s.ExtendSubscription(ctx, b.ID, t0.Add(-time.Hour)))
	_, err = s.CreateDocument(ctx, storage.NewDocument{Title: "Doc", FileID: "d"})
	require.NoError(t, err)

	st, err := s.Stats(ctx, t0)
	require.NoError(t, err)
	assert.Equal(t, storage.Stats{Users: 2, Documents: 1, ActiveSubscribers: 1, Payments: 0}, st)
}

func TestEnsureUserCreatesOnce(t *testing.T) {
	s := storagetest.New(t)
	ctx := context.Background()

	first, err := storage.EnsureUser(ctx, s, storage.NewUser{ExternalID: 77, DisplayName: "Bo"})
	require.NoError(t, err)
	second, err := storage.EnsureUser(ctx, s, storage.NewUser{ExternalID: 77, DisplayName: "Renamed"})
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, "Bo", second.DisplayName)
}

func TestEnsureUserResolvesLostRace(t *testing.T) {
	s := storagetest.New(t)
	ctx := context.Background()

	// The lookup misses, then another writer inserts before our insert lands.
	racy := &racingStore{Store: s}
	u, err := storage.EnsureUser(ctx, racy, storage.NewUser{ExternalID: 55})
	require.NoError(t, err)
	assert.Equal(t, int64(55), u.ExternalID)

	st, err := s.Stats(ctx, t0)
	require.NoError(t, err)
	assert.Equal(t, int64(1), st.Users)
}

func TestEnsureUserConcurrent(t *testing.T) {
	s := storagetest.New(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	ids := make([]int64, 8)
	errs := make([]error, 8)
	for i := range ids {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			u, err := storage.EnsureUser(ctx, s, storage.NewUser{ExternalID: 3})
			ids[i], errs[i] = u.ID, err
		}(i)
	}
	wg.Wait()

	for i := range ids {
		require.NoError(t, errs[i])
		assert.Equal(t, ids[0], ids[i])
	}
}

func TestPersistenceErrorsAreClassified(t *testing.T) {
	f := storagetest.NewFaulty(storagetest.New(t))
	f.FailOn("ListDocuments", &storage.PersistenceError{Op: "list documents", Err: errors.New("disk gone")}, 1)

	_, err := f.ListDocuments(context.Background())
	assert.True(t, storage.IsPersistence(err))
	assert.False(t, errors.Is(err, storage.ErrNotFound))

	_, err = f.ListDocuments(context.Background())
	assert.NoError(t, err)
}

type racingStore struct {
	storage.Store
	raced bool
}

func (r *racingStore) FindUserByExternalID(ctx context.Context, id int64) (storage.User, error) {
	if !r.raced {
		r.raced = true
		if _, err := r.Store.CreateUser(ctx, storage.NewUser{ExternalID: id}); err != nil {
			return storage.User{}, err
		}
		return storage.User{}, &storage.NotFoundError{Entity: "user"}
	}
	return r.Store.FindUserByExternalID(ctx, id)
}
