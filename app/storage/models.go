package storage

import "time"

// User is a Telegram account that has interacted with the bot.
type User struct {
	ID                    int64      `db:"id"`
	ExternalID            int64      `db:"external_id"`
	DisplayName           string     `db:"display_name"`
	Handle                *string    `db:"handle"`
	SubscriptionExpiresAt *time.Time `db:"subscription_expires_at"`
	CreatedAt             time.Time  `db:"created_at"`
}

// NewUser carries the fields needed to register a user.
type NewUser struct {
	ExternalID  int64
	DisplayName string
	Handle      *string
}

// Document is a catalog entry pointing at a file in Telegram's file store.
type Document struct {
	ID        int64     `db:"id"`
	Title     string    `db:"title"`
	Price     int       `db:"price"`
	FileID    string    `db:"file_id"`
	CreatedAt time.Time `db:"created_at"`
}

// NewDocument carries the fields captured by the ingestion dialog.
type NewDocument struct {
	Title  string
	Price  int
	FileID string
}

// Payment is a settled Telegram payment.
type Payment struct {
	ID               int64     `db:"id"`
	UserID           int64     `db:"user_id"`
	TelegramChargeID string    `db:"telegram_charge_id"`
	ProviderChargeID string    `db:"provider_charge_id"`
	Payload          string    `db:"payload"`
	Currency         string    `db:"currency"`
	Amount           int       `db:"amount"`
	Months           int       `db:"months"`
	ExpiresAt        time.Time `db:"expires_at"`
	CreatedAt        time.Time `db:"created_at"`
}

// NewPayment is the ledger row written by settlement.
type NewPayment struct {
	UserID           int64
	TelegramChargeID string
	ProviderChargeID string
	Payload          string
	Currency         string
	Amount           int
	Months           int
	ExpiresAt        time.Time
}

// Stats summarises the store for the admin.
type Stats struct {
	Users             int64 `db:"users"`
	Documents         int64 `db:"documents"`
	ActiveSubscribers int64 `db:"active_subscribers"`
	Payments          int64 `db:"payments"`
}
