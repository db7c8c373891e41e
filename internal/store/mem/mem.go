// Package mem implements the single-table store adapters in memory. It backs
// the composite-layer tests: operations are cheap, deterministic, and any
// single adapter call can be made to fail on demand so rollback paths can be
// exercised step by step.
package mem

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"pointsbot/internal/store"
)

// Store holds every table in maps guarded by one mutex. Each adapter call is
// an independent, non-transactional operation, mirroring the contract of the
// SQL-backed families.
type Store struct {
	mu sync.Mutex

	users          map[string]store.User
	wallets        map[string]store.Wallet
	stats          map[string]store.ActivityStats
	ledger         map[string]store.PointRecord
	checkins       map[string]store.DailyCheckin
	tasks          map[string]store.ImageTask
	orders         map[string]store.PaymentOrder
	sessions       map[string]store.Session
	sessionRecords map[string]store.SessionRecord
	actions        map[string]store.ActionRecord

	seq   int64
	order map[string]int64 // row id -> insertion sequence

	faults map[string]*fault
}

type fault struct {
	err       error
	remaining int // <0 means forever
}

// NewStore returns an empty in-memory store.
func NewStore() *Store {
	return &Store{
		users:          map[string]store.User{},
		wallets:        map[string]store.Wallet{},
		stats:          map[string]store.ActivityStats{},
		ledger:         map[string]store.PointRecord{},
		checkins:       map[string]store.DailyCheckin{},
		tasks:          map[string]store.ImageTask{},
		orders:         map[string]store.PaymentOrder{},
		sessions:       map[string]store.Session{},
		sessionRecords: map[string]store.SessionRecord{},
		actions:        map[string]store.ActionRecord{},
		order:          map[string]int64{},
		faults:         map[string]*fault{},
	}
}

// Tables exposes the adapter bundle backed by this store.
func (s *Store) Tables() store.Tables {
	return store.Tables{
		Users:          &userTable{s},
		Wallets:        &walletTable{s},
		Stats:          &statsTable{s},
		Ledger:         &ledgerTable{s},
		Checkins:       &checkinTable{s},
		Tasks:          &taskTable{s},
		Orders:         &orderTable{s},
		Sessions:       &sessionTable{s},
		SessionRecords: &sessionRecordTable{s},
		Actions:        &actionTable{s},
	}
}

// FailWith makes every call to the named operation (e.g. "ledger.create")
// return err until cleared with ClearFaults.
func (s *Store) FailWith(op string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.faults[op] = &fault{err: err, remaining: -1}
}

// FailNextWith fails only the next n calls to the named operation.
func (s *Store) FailNextWith(op string, err error, n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.faults[op] = &fault{err: err, remaining: n}
}

// ClearFaults removes all injected faults.
func (s *Store) ClearFaults() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.faults = map[string]*fault{}
}

// checkFault must be called with s.mu held.
func (s *Store) checkFault(op string) error {
	f, ok := s.faults[op]
	if !ok {
		return nil
	}
	if f.remaining == 0 {
		return nil
	}
	if f.remaining > 0 {
		f.remaining--
	}
	return f.err
}

func (s *Store) nextSeq(id string) {
	s.seq++
	s.order[id] = s.seq
}

func now() time.Time { return time.Now().UTC() }

func orDefault(id string) string {
	if id == "" {
		return uuid.NewString()
	}
	return id
}
