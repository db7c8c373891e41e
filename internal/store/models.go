package store

import "time"

// User represents the aggregate root row shared by both schemas.
type User struct {
	ID         string
	ExternalID string
	Username   *string
	FirstName  *string
	LastName   *string
	UTMSource  *string
	IsActive   bool
	CreatedAt  time.Time
}

// UserPatch carries optional user field updates.
type UserPatch struct {
	Username  *string
	FirstName *string
	LastName  *string
	UTMSource *string
	IsActive  *bool
}

// Wallet is the 1:1 balance satellite of a user.
type Wallet struct {
	UserID           string
	Points           int64
	TotalPaidCents   int64
	TotalPointsSpent int64
	Level            int
	FirstAdd         bool
	UpdatedAt        time.Time
}

// ActivityStats is the 1:1 usage-counter satellite of a user.
type ActivityStats struct {
	UserID            string
	SessionCount      int64
	TotalMessagesSent int64
	FirstActiveAt     time.Time
	LastActiveAt      time.Time
}

// PointRecord is an append-only ledger row. Rows are immutable after
// creation; compensation either hard-deletes the row or inserts an inverse
// entry, never edits it in place.
type PointRecord struct {
	ID           string
	UserID       string
	Delta        int64
	ActionType   string
	Description  string
	BalanceAfter int64
	EventID      string
	CreatedAt    time.Time
}

// DailyCheckin marks one check-in per (user, day).
type DailyCheckin struct {
	ID           string
	UserID       string
	Day          string // YYYY-MM-DD
	PointsEarned int64
	CreatedAt    time.Time
}

// Task statuses. A terminal state is reachable from pending/processing only.
const (
	TaskPending    = "pending"
	TaskProcessing = "processing"
	TaskCompleted  = "completed"
	TaskFailed     = "failed"
)

// ImageTask is a paid unit of work whose cost is held in points.
type ImageTask struct {
	ID         string
	UserID     string
	Kind       string
	Status     string
	PointsCost int64
	LedgerID   string
	Payload    map[string]any
	ResultURL  *string
	ErrorMsg   *string
	Refunded   bool
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// TaskPatch carries optional task field updates.
type TaskPatch struct {
	Status    *string
	ResultURL *string
	ErrorMsg  *string
	Refunded  *bool
}

// Order statuses mirror the payment gateway lifecycle.
const (
	OrderPending   = "pending"
	OrderCompleted = "completed"
	OrderFailed    = "failed"
	OrderCancelled = "cancelled"
)

// PaymentOrder is a row in the payment orders table, keyed by the gateway
// order reference.
type PaymentOrder struct {
	ID            string
	UserID        string
	OrderRef      string
	AmountCents   int64
	Status        string
	Method        string
	PointsAwarded int64
	ErrorMsg      *string
	PaidAt        *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// OrderPatch carries optional order field updates. ClearPaidAt resets the
// paid timestamp to NULL, which a plain nil PaidAt cannot express.
type OrderPatch struct {
	Status      *string
	ErrorMsg    *string
	PaidAt      *time.Time
	ClearPaidAt bool
}

// Session is the user/session association row.
type Session struct {
	ID        string
	UserID    string
	SessionID string
	CreatedAt time.Time
}

// SessionRecord holds the mutable per-session detail row.
type SessionRecord struct {
	ID           string
	UserID       string
	SessionID    string
	StartedAt    time.Time
	EndedAt      *time.Time
	DurationSec  *int64
	MessageCount int64
	Summary      *string
}

// SessionRecordPatch carries optional session record updates. ClearEnded
// reverts a close: ended_at, duration_sec, and summary go back to NULL.
type SessionRecordPatch struct {
	EndedAt      *time.Time
	DurationSec  *int64
	MessageCount *int64
	Summary      *string
	ClearEnded   bool
}

// ActionRecord is an append-only log of a user action inside a session.
type ActionRecord struct {
	ID         string
	UserID     string
	SessionID  string
	ActionType string
	Parameters map[string]any
	Context    *string
	Status     string
	PointsCost int64
	CreatedAt  time.Time
}
