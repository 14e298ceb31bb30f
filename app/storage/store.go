// Package storage persists users, documents and payments over sqlx. Both
// PostgreSQL (lib/pq) and sqlite (modernc.org/sqlite) are supported.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/m3rciful/docshelf/core/logger"
)

// Store is the transactional CRUD contract the bot's services depend on.
type Store interface {
	FindUserByExternalID(ctx context.Context, externalID int64) (User, error)
	CreateUser(ctx context.Context, u NewUser) (User, error)
	ExtendSubscription(ctx context.Context, userID int64, expiresAt time.Time) error

	ListDocuments(ctx context.Context) ([]Document, error)
	FindDocumentByID(ctx context.Context, id int64) (Document, error)
	CreateDocument(ctx context.Context, d NewDocument) (Document, error)

	RecordPayment(ctx context.Context, p NewPayment) (Payment, error)
	FindPaymentByChargeID(ctx context.Context, chargeID string) (Payment, error)

	Stats(ctx context.Context, now time.Time) (Stats, error)

	// InTx runs fn inside one transaction. Calls nested in fn reuse it.
	InTx(ctx context.Context, fn func(Store) error) error
}

type querier interface {
	GetContext(ctx context.Context, dest any, query string, args ...any) error
	SelectContext(ctx context.Context, dest any, query string, args ...any) error
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	Rebind(query string) string
}

// SQLStore implements Store over *sqlx.DB.
type SQLStore struct {
	db  *sqlx.DB
	q   querier
	tx  bool
	now func() time.Time
}

// NewSQLStore wraps db. Queries are written with '?' placeholders and rebound
// for the driver in use.
func NewSQLStore(db *sqlx.DB) *SQLStore {
	return &SQLStore{db: db, q: db, now: time.Now}
}

// WithClock returns a copy of s that stamps created_at using now.
func (s *SQLStore) WithClock(now func() time.Time) *SQLStore {
	cp := *s
	cp.now = now
	return &cp
}

func (s *SQLStore) stamp() time.Time {
	return s.now().UTC()
}

func (s *SQLStore) get(ctx context.Context, dest any, query string, args ...any) error {
	return s.q.GetContext(ctx, dest, s.q.Rebind(query), args...)
}

func (s *SQLStore) sel(ctx context.Context, dest any, query string, args ...any) error {
	return s.q.SelectContext(ctx, dest, s.q.Rebind(query), args...)
}

func (s *SQLStore) exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return s.q.ExecContext(ctx, s.q.Rebind(query), args...)
}

const userColumns = `id, external_id, display_name, handle, subscription_expires_at, created_at`

// FindUserByExternalID returns the user with the given Telegram id.
func (s *SQLStore) FindUserByExternalID(ctx context.Context, externalID int64) (User, error) {
	var u User
	err := s.get(ctx, &u, `SELECT `+userColumns+` FROM users WHERE external_id = ?`, externalID)
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, &NotFoundError{Entity: "user"}
	}
	if err != nil {
		return User{}, wrap("find user", "", err)
	}
	return normalizeUser(u), nil
}

// CreateUser inserts a user; a duplicate external id yields *ConflictError.
func (s *SQLStore) CreateUser(ctx context.Context, nu NewUser) (User, error) {
	u := User{
		ExternalID:  nu.ExternalID,
		DisplayName: truncateRunes(nu.DisplayName, 100),
		Handle:      nu.Handle,
		CreatedAt:   s.stamp(),
	}
	if u.Handle != nil {
		h := truncateRunes(*u.Handle, 50)
		u.Handle = &h
	}
	err := s.get(ctx, &u.ID,
		`INSERT INTO users (external_id, display_name, handle, created_at) VALUES (?, ?, ?, ?) RETURNING id`,
		u.ExternalID, u.DisplayName, u.Handle, u.CreatedAt,
	)
	if err != nil {
		return User{}, wrap("create user", "users.external_id", err)
	}
	return u, nil
}

// ExtendSubscription sets the user's expiry.
func (s *SQLStore) ExtendSubscription(ctx context.Context, userID int64, expiresAt time.Time) error {
	res, err := s.exec(ctx, `UPDATE users SET subscription_expires_at = ? WHERE id = ?`, expiresAt.UTC(), userID)
	if err != nil {
		return wrap("extend subscription", "", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return wrap("extend subscription", "", err)
	}
	if n == 0 {
		return &NotFoundError{Entity: "user"}
	}
	return nil
}

const documentColumns = `id, title, price, file_id, created_at`

// ListDocuments returns every document ordered by id.
func (s *SQLStore) ListDocuments(ctx context.Context) ([]Document, error) {
	docs := []Document{}
	if err := s.sel(ctx, &docs, `SELECT `+documentColumns+` FROM documents ORDER BY id`); err != nil {
		return nil, wrap("list documents", "", err)
	}
	for i := range docs {
		docs[i].CreatedAt = docs[i].CreatedAt.UTC()
	}
	return docs, nil
}

// FindDocumentByID returns one document.
func (s *SQLStore) FindDocumentByID(ctx context.Context, id int64) (Document, error) {
	var d Document
	err := s.get(ctx, &d, `SELECT `+documentColumns+` FROM documents WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return Document{}, &NotFoundError{Entity: "document"}
	}
	if err != nil {
		return Document{}, wrap("find document", "", err)
	}
	d.CreatedAt = d.CreatedAt.UTC()
	return d, nil
}

// CreateDocument inserts a document; a duplicate file id yields *ConflictError.
func (s *SQLStore) CreateDocument(ctx context.Context, nd NewDocument) (Document, error) {
	d := Document{
		Title:     nd.Title,
		Price:     nd.Price,
		FileID:    nd.FileID,
		CreatedAt: s.stamp(),
	}
	err := s.get(ctx, &d.ID,
		`INSERT INTO documents (title, price, file_id, created_at) VALUES (?, ?, ?, ?) RETURNING id`,
		d.Title, d.Price, d.FileID, d.CreatedAt,
	)
	if err != nil {
		return Document{}, wrap("create document", "documents.file_id", err)
	}
	return d, nil
}

// RecordPayment appends to the payment ledger; a duplicate Telegram charge id
// yields *ConflictError.
func (s *SQLStore) RecordPayment(ctx context.Context, np NewPayment) (Payment, error) {
	p := Payment{
		UserID:           np.UserID,
		TelegramChargeID: np.TelegramChargeID,
		ProviderChargeID: np.ProviderChargeID,
		Payload:          np.Payload,
		Currency:         np.Currency,
		Amount:           np.Amount,
		Months:           np.Months,
		ExpiresAt:        np.ExpiresAt.UTC(),
		CreatedAt:        s.stamp(),
	}
	err := s.get(ctx, &p.ID,
		`INSERT INTO payments (user_id, telegram_charge_id, provider_charge_id, payload, currency, amount, months, expires_at, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?) RETURNING id`,
		p.UserID, p.TelegramChargeID, p.ProviderChargeID, p.Payload, p.Currency, p.Amount, p.Months, p.ExpiresAt, p.CreatedAt,
	)
	if err != nil {
		return Payment{}, wrap("record payment", "payments.telegram_charge_id", err)
	}
	return p, nil
}

// FindPaymentByChargeID looks a payment up by its Telegram charge id.
func (s *SQLStore) FindPaymentByChargeID(ctx context.Context, chargeID string) (Payment, error) {
	var p Payment
	err := s.get(ctx, &p,
		`SELECT id, user_id, telegram_charge_id, provider_charge_id, payload, currency, amount, months, expires_at, created_at
		 FROM payments WHERE telegram_charge_id = ?`, chargeID)
	if errors.Is(err, sql.ErrNoRows) {
		return Payment{}, &NotFoundError{Entity: "payment"}
	}
	if err != nil {
		return Payment{}, wrap("find payment", "", err)
	}
	p.ExpiresAt = p.ExpiresAt.UTC()
	p.CreatedAt = p.CreatedAt.UTC()
	return p, nil
}

// Stats counts users, documents, active subscribers and payments.
func (s *SQLStore) Stats(ctx context.Context, now time.Time) (Stats, error) {
	var st Stats
	err := s.get(ctx, &st, `SELECT
		(SELECT COUNT(*) FROM users) AS users,
		(SELECT COUNT(*) FROM documents) AS documents,
		(SELECT COUNT(*) FROM users WHERE subscription_expires_at > ?) AS active_subscribers,
		(SELECT COUNT(*) FROM payments) AS payments`, now.UTC())
	if err != nil {
		return Stats{}, wrap("stats", "", err)
	}
	return st, nil
}

// InTx runs fn in a transaction, committing when fn returns nil.
func (s *SQLStore) InTx(ctx context.Context, fn func(Store) error) (err error) {
	if s.tx {
		return fn(s)
	}
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return wrap("begin tx", "", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
				logger.DB.Warn("rollback failed",
					slog.String("event", "db.tx"),
					slog.String("err", rbErr.Error()),
				)
			}
		}
	}()

	if err = fn(&SQLStore{db: s.db, q: tx, tx: true, now: s.now}); err != nil {
		return err
	}
	if cerr := tx.Commit(); cerr != nil {
		return wrap("commit tx", "", cerr)
	}
	return nil
}

func normalizeUser(u User) User {
	u.CreatedAt = u.CreatedAt.UTC()
	if u.SubscriptionExpiresAt != nil {
		t := u.SubscriptionExpiresAt.UTC()
		u.SubscriptionExpiresAt = &t
	}
	return u
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

var _ Store = (*SQLStore)(nil)
