// Package storagetest provides sqlite-backed stores for package tests.
package storagetest

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/m3rciful/docshelf/app/storage"
	coredatabase "github.com/m3rciful/docshelf/core/database"
	"github.com/m3rciful/docshelf/migrations"
)

// New returns a SQLStore over a fresh migrated sqlite database in t.TempDir().
func New(t testing.TB) *storage.SQLStore {
	t.Helper()
	cfg := coredatabase.Config{
		Driver: coredatabase.DriverSQLite,
		Path:   filepath.Join(t.TempDir(), "docshelf.db"),
	}
	db, err := coredatabase.Connect(context.Background(), cfg)
	if err != nil {
		t.Fatalf("storagetest: connect: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	if err := coredatabase.RunMigrations(context.Background(), cfg, migrations.FS); err != nil {
		t.Fatalf("storagetest: migrate: %v", err)
	}
	return storage.NewSQLStore(db)
}

// Fixed returns a clock that always reports t.
func Fixed(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

// Faulty wraps a Store and fails selected operations. Failures are keyed by
// method name ("CreateDocument", "ExtendSubscription", ...). A positive count
// fails that many calls; a negative count fails forever.
type Faulty struct {
	storage.Store

	mu    sync.Mutex
	errs  map[string]error
	count map[string]int
	calls map[string]int
}

// NewFaulty wraps s.
func NewFaulty(s storage.Store) *Faulty {
	return &Faulty{
		Store: s,
		errs:  make(map[string]error),
		count: make(map[string]int),
		calls: make(map[string]int),
	}
}

// FailOn makes the next times calls to op return err.
func (f *Faulty) FailOn(op string, err error, times int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errs[op] = err
	f.count[op] = times
}

// Calls reports how many times op was invoked.
func (f *Faulty) Calls(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[op]
}

func (f *Faulty) check(op string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[op]++
	n := f.count[op]
	if n == 0 {
		return nil
	}
	if n > 0 {
		f.count[op] = n - 1
	}
	return f.errs[op]
}

func (f *Faulty) wrapTx(s storage.Store) storage.Store {
	return &faultyTx{Store: s, f: f}
}

// faultyTx applies f's failures to the transaction-scoped store.
type faultyTx struct {
	storage.Store
	f *Faulty
}

func (f *Faulty) FindUserByExternalID(ctx context.Context, id int64) (storage.User, error) {
	if err := f.check("FindUserByExternalID"); err != nil {
		return storage.User{}, err
	}
	return f.Store.FindUserByExternalID(ctx, id)
}

func (f *Faulty) CreateUser(ctx context.Context, u storage.NewUser) (storage.User, error) {
	if err := f.check("CreateUser"); err != nil {
		return storage.User{}, err
	}
	return f.Store.CreateUser(ctx, u)
}

func (f *Faulty) CreateDocument(ctx context.Context, d storage.NewDocument) (storage.Document, error) {
	if err := f.check("CreateDocument"); err != nil {
		return storage.Document{}, err
	}
	return f.Store.CreateDocument(ctx, d)
}

func (f *Faulty) ListDocuments(ctx context.Context) ([]storage.Document, error) {
	if err := f.check("ListDocuments"); err != nil {
		return nil, err
	}
	return f.Store.ListDocuments(ctx)
}

func (f *Faulty) FindDocumentByID(ctx context.Context, id int64) (storage.Document, error) {
	if err := f.check("FindDocumentByID"); err != nil {
		return storage.Document{}, err
	}
	return f.Store.FindDocumentByID(ctx, id)
}

func (f *Faulty) InTx(ctx context.Context, fn func(storage.Store) error) error {
	if err := f.check("InTx"); err != nil {
		return err
	}
	return f.Store.InTx(ctx, func(s storage.Store) error { return fn(f.wrapTx(s)) })
}

func (t *faultyTx) ExtendSubscription(ctx context.Context, userID int64, at time.Time) error {
	if err := t.f.check("ExtendSubscription"); err != nil {
		return err
	}
	return t.Store.ExtendSubscription(ctx, userID, at)
}

func (t *faultyTx) RecordPayment(ctx context.Context, p storage.NewPayment) (storage.Payment, error) {
	if err := t.f.check("RecordPayment"); err != nil {
		return storage.Payment{}, err
	}
	return t.Store.RecordPayment(ctx, p)
}

func (t *faultyTx) CreateDocument(ctx context.Context, d storage.NewDocument) (storage.Document, error) {
	if err := t.f.check("CreateDocument"); err != nil {
		return storage.Document{}, err
	}
	return t.Store.CreateDocument(ctx, d)
}

func (t *faultyTx) InTx(ctx context.Context, fn func(storage.Store) error) error {
	return fn(t)
}

var (
	_ storage.Store = (*Faulty)(nil)
	_ storage.Store = (*faultyTx)(nil)
)
