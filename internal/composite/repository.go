package composite

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"pointsbot/internal/metrics"
	"pointsbot/internal/store"
)

func newRowID() string { return uuid.NewString() }

// UserRepository owns the user aggregate root and its satellites.
type UserRepository interface {
	Register(ctx context.Context, p RegisterParams) (*UserView, error)
	GetView(ctx context.Context, externalID string) (*UserView, error)
	Update(ctx context.Context, externalID string, patch store.UserPatch) error
	Deactivate(ctx context.Context, externalID string) error
}

// PointsRepository owns every balance-affecting operation.
type PointsRepository interface {
	DailyCheckIn(ctx context.Context, userID string) (*CheckInResult, error)
	AdjustBalance(ctx context.Context, userID string, delta int64, actionType, description string) (*BalanceChange, error)
	CreateTaskWithDeduction(ctx context.Context, userID, kind string, payload map[string]any) (*store.ImageTask, error)
	CompleteTask(ctx context.Context, taskID, resultURL string) error
	FailTask(ctx context.Context, taskID, errMsg string) error
	RefundTask(ctx context.Context, taskID string) (*BalanceChange, error)
	CreatePendingOrder(ctx context.Context, p OrderParams) (*store.PaymentOrder, error)
	ProcessPaymentSuccess(ctx context.Context, orderRef string, paidAt time.Time) (*BalanceChange, error)
	ProcessPaymentFailure(ctx context.Context, orderRef, errMsg string) error
	History(ctx context.Context, userID string, limit int) ([]store.PointRecord, error)
	VerifyLedger(ctx context.Context, userID string) (*LedgerCheck, error)
}

// SessionRepository owns session lifecycle writes across three tables.
type SessionRepository interface {
	Open(ctx context.Context, userID, sessionID string) (*SessionInfo, error)
	Close(ctx context.Context, sessionID string, messageCount *int64, summary *string) (*SessionInfo, error)
	Touch(ctx context.Context, sessionID string, messages int64) error
	GetInfo(ctx context.Context, sessionID string) (*SessionInfo, error)
}

// ActionRepository owns the append-only action log plus its stats side
// effects.
type ActionRepository interface {
	Record(ctx context.Context, p ActionParams) (*store.ActionRecord, error)
	ListByUser(ctx context.Context, userID string, limit int) ([]store.ActionRecord, error)
}

// RegisterParams carries registration input. ExternalID is the chat
// platform identity and must be unique. ID, when set, forces the surrogate
// key; the migration layer uses it to keep the same key across schemas.
type RegisterParams struct {
	ID         string
	ExternalID string
	Username   *string
	FirstName  *string
	LastName   *string
	UTMSource  *string
}

// OrderParams carries pending payment order input. Points is the package
// size purchased; it is fixed at order creation and credited on success.
type OrderParams struct {
	UserID      string
	OrderRef    string
	AmountCents int64
	Method      string
	Points      int64
}

// ActionParams carries one action log entry.
type ActionParams struct {
	UserID     string
	SessionID  string
	Kind       string
	Parameters map[string]any
	Context    *string
	Status     string
	PointsCost int64
}

// UserView merges the user root with both satellites into the read shape
// handlers and the shadow verifier compare on.
type UserView struct {
	User              store.User
	Points            int64
	TotalPaidCents    int64
	TotalPointsSpent  int64
	Level             int
	SessionCount      int64
	TotalMessagesSent int64
}

// CheckInResult reports a successful daily check-in.
type CheckInResult struct {
	Day          string
	PointsEarned int64
	NewBalance   int64
}

// BalanceChange reports one applied wallet mutation and its ledger entry.
type BalanceChange struct {
	UserID       string
	Delta        int64
	BalanceAfter int64
	LedgerID     string
}

// LedgerCheck reconciles the wallet balance against the ledger sum.
type LedgerCheck struct {
	UserID        string
	WalletBalance int64
	LedgerSum     int64
	Consistent    bool
}

// SessionInfo merges the association row with the mutable record.
type SessionInfo struct {
	Session store.Session
	Record  store.SessionRecord
}

// Repositories bundles the four composite repositories built over one table
// family. Balance operations share one keyed mutex so concurrent mutations
// of the same user serialize inside the process.
type Repositories struct {
	Users    UserRepository
	Points   PointsRepository
	Sessions SessionRepository
	Actions  ActionRepository
}

// deps is the shared plumbing every repository embeds.
type deps struct {
	tables  store.Tables
	cfg     Config
	logger  *slog.Logger
	metrics *metrics.Metrics
	locks   *keyedMutex
	now     func() time.Time
	newID   func() string
}

// Option adjusts repository construction, mainly for tests.
type Option func(*deps)

// WithClock replaces the wall clock.
func WithClock(now func() time.Time) Option {
	return func(d *deps) { d.now = now }
}

// WithIDFunc replaces the row ID generator.
func WithIDFunc(newID func() string) Option {
	return func(d *deps) { d.newID = newID }
}

// New builds the repository bundle over one table family.
func New(tables store.Tables, cfg Config, logger *slog.Logger, m *metrics.Metrics, opts ...Option) *Repositories {
	if logger == nil {
		logger = slog.Default()
	}
	d := &deps{
		tables:  tables,
		cfg:     cfg,
		logger:  logger.With("component", "composite"),
		metrics: m,
		locks:   newKeyedMutex(),
		now:     time.Now,
		newID:   newRowID,
	}
	for _, opt := range opts {
		opt(d)
	}
	return &Repositories{
		Users:    &userRepo{deps: d},
		Points:   &pointsRepo{deps: d},
		Sessions: &sessionRepo{deps: d},
		Actions:  &actionRepo{deps: d},
	}
}

// run wraps Scope execution with timing and outcome metrics.
func (d *deps) run(ctx context.Context, op string, body func(*Scope) error) error {
	start := d.now()
	err := Run(ctx, d.logger, d.metrics, op, body)
	outcome := "success"
	switch {
	case err == nil:
	case isPartialRollback(err):
		outcome = "partial_rollback"
	default:
		outcome = "failed"
	}
	d.metrics.ObserveOp(op, outcome, time.Since(start))
	return err
}

func isPartialRollback(err error) bool {
	var pre *PartialRollbackError
	return errors.As(err, &pre)
}
