package store

import "context"

// Each interface below is one single-table adapter: an independent,
// non-transactional CRUD capability over exactly one entity type. Cross-table
// coordination is the composite layer's job.

// UserTable accesses the aggregate root rows.
type UserTable interface {
	Create(ctx context.Context, u User) (*User, error)
	GetByID(ctx context.Context, id string) (*User, error)
	GetByExternalID(ctx context.Context, externalID string) (*User, error)
	Update(ctx context.Context, id string, patch UserPatch) error
	Delete(ctx context.Context, id string) error
}

// WalletTable accesses the balance satellite.
type WalletTable interface {
	Create(ctx context.Context, w Wallet) (*Wallet, error)
	GetByUserID(ctx context.Context, userID string) (*Wallet, error)
	// AddPoints applies delta atomically and returns the updated wallet.
	// A negative delta that would cross zero fails with
	// ErrInsufficientBalance and leaves the row untouched.
	AddPoints(ctx context.Context, userID string, delta int64) (*Wallet, error)
	AddPaidAmount(ctx context.Context, userID string, cents int64) error
	DeleteByUserID(ctx context.Context, userID string) error
}

// StatsTable accesses the activity-counter satellite.
type StatsTable interface {
	Create(ctx context.Context, s ActivityStats) (*ActivityStats, error)
	GetByUserID(ctx context.Context, userID string) (*ActivityStats, error)
	IncrementSessionCount(ctx context.Context, userID string) error
	IncrementMessageCount(ctx context.Context, userID string, n int64) error
	TouchLastActive(ctx context.Context, userID string) error
	DeleteByUserID(ctx context.Context, userID string) error
}

// LedgerTable accesses the append-only point records.
type LedgerTable interface {
	Create(ctx context.Context, rec PointRecord) (*PointRecord, error)
	Delete(ctx context.Context, id string) error
	ListByUser(ctx context.Context, userID string, limit int) ([]PointRecord, error)
	// SumDeltas reconciles the ledger against the wallet balance.
	SumDeltas(ctx context.Context, userID string) (int64, error)
}

// CheckinTable accesses daily check-in rows, unique per (user, day).
type CheckinTable interface {
	Create(ctx context.Context, c DailyCheckin) (*DailyCheckin, error)
	GetByUserDay(ctx context.Context, userID, day string) (*DailyCheckin, error)
	Delete(ctx context.Context, id string) error
}

// TaskTable accesses image task rows.
type TaskTable interface {
	Create(ctx context.Context, t ImageTask) (*ImageTask, error)
	GetByID(ctx context.Context, id string) (*ImageTask, error)
	Update(ctx context.Context, id string, patch TaskPatch) error
	Delete(ctx context.Context, id string) error
	ListByUser(ctx context.Context, userID string, limit int) ([]ImageTask, error)
}

// OrderTable accesses payment order rows, unique per order ref.
type OrderTable interface {
	Create(ctx context.Context, o PaymentOrder) (*PaymentOrder, error)
	GetByRef(ctx context.Context, orderRef string) (*PaymentOrder, error)
	Update(ctx context.Context, orderRef string, patch OrderPatch) error
	Delete(ctx context.Context, id string) error
	ListByUser(ctx context.Context, userID string, limit int) ([]PaymentOrder, error)
}

// SessionTable accesses the user/session association rows.
type SessionTable interface {
	Create(ctx context.Context, s Session) (*Session, error)
	GetBySessionID(ctx context.Context, sessionID string) (*Session, error)
	Delete(ctx context.Context, id string) error
}

// SessionRecordTable accesses session detail rows.
type SessionRecordTable interface {
	Create(ctx context.Context, r SessionRecord) (*SessionRecord, error)
	GetBySessionID(ctx context.Context, sessionID string) (*SessionRecord, error)
	Update(ctx context.Context, id string, patch SessionRecordPatch) error
	Delete(ctx context.Context, id string) error
}

// ActionTable accesses the append-only action log.
type ActionTable interface {
	Create(ctx context.Context, a ActionRecord) (*ActionRecord, error)
	Delete(ctx context.Context, id string) error
	ListByUser(ctx context.Context, userID string, limit int) ([]ActionRecord, error)
}

// Tables bundles one adapter per table from a single schema family. The
// composite repositories are written against this bundle, so the same
// transaction logic runs unchanged over the legacy SQLite schema, the new
// Postgres schema, or the in-memory test store.
type Tables struct {
	Users          UserTable
	Wallets        WalletTable
	Stats          StatsTable
	Ledger         LedgerTable
	Checkins       CheckinTable
	Tasks          TaskTable
	Orders         OrderTable
	Sessions       SessionTable
	SessionRecords SessionRecordTable
	Actions        ActionTable
}
