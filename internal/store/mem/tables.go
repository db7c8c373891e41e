package mem

import (
	"context"
	"sort"

	"pointsbot/internal/store"
)

type userTable struct{ s *Store }

func (t *userTable) Create(_ context.Context, u store.User) (*store.User, error) {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	if err := t.s.checkFault("users.create"); err != nil {
		return nil, err
	}
	for _, existing := range t.s.users {
		if existing.ExternalID == u.ExternalID {
			return nil, store.ErrConflict
		}
	}
	u.ID = orDefault(u.ID)
	u.IsActive = true
	u.CreatedAt = now()
	t.s.users[u.ID] = u
	t.s.nextSeq(u.ID)
	out := u
	return &out, nil
}

func (t *userTable) GetByID(_ context.Context, id string) (*store.User, error) {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	if err := t.s.checkFault("users.get"); err != nil {
		return nil, err
	}
	u, ok := t.s.users[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	out := u
	return &out, nil
}

func (t *userTable) GetByExternalID(_ context.Context, externalID string) (*store.User, error) {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	if err := t.s.checkFault("users.get"); err != nil {
		return nil, err
	}
	for _, u := range t.s.users {
		if u.ExternalID == externalID {
			out := u
			return &out, nil
		}
	}
	return nil, store.ErrNotFound
}

func (t *userTable) Update(_ context.Context, id string, patch store.UserPatch) error {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	if err := t.s.checkFault("users.update"); err != nil {
		return err
	}
	u, ok := t.s.users[id]
	if !ok {
		return store.ErrNotFound
	}
	if patch.Username != nil {
		u.Username = patch.Username
	}
	if patch.FirstName != nil {
		u.FirstName = patch.FirstName
	}
	if patch.LastName != nil {
		u.LastName = patch.LastName
	}
	if patch.UTMSource != nil {
		u.UTMSource = patch.UTMSource
	}
	if patch.IsActive != nil {
		u.IsActive = *patch.IsActive
	}
	t.s.users[id] = u
	return nil
}

func (t *userTable) Delete(_ context.Context, id string) error {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	if err := t.s.checkFault("users.delete"); err != nil {
		return err
	}
	if _, ok := t.s.users[id]; !ok {
		return store.ErrNotFound
	}
	delete(t.s.users, id)
	return nil
}

type walletTable struct{ s *Store }

func (t *walletTable) Create(_ context.Context, w store.Wallet) (*store.Wallet, error) {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	if err := t.s.checkFault("wallets.create"); err != nil {
		return nil, err
	}
	if _, ok := t.s.wallets[w.UserID]; ok {
		return nil, store.ErrConflict
	}
	w.UpdatedAt = now()
	t.s.wallets[w.UserID] = w
	out := w
	return &out, nil
}

func (t *walletTable) GetByUserID(_ context.Context, userID string) (*store.Wallet, error) {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	if err := t.s.checkFault("wallets.get"); err != nil {
		return nil, err
	}
	w, ok := t.s.wallets[userID]
	if !ok {
		return nil, store.ErrNotFound
	}
	out := w
	return &out, nil
}

func (t *walletTable) AddPoints(_ context.Context, userID string, delta int64) (*store.Wallet, error) {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	if err := t.s.checkFault("wallets.addPoints"); err != nil {
		return nil, err
	}
	w, ok := t.s.wallets[userID]
	if !ok {
		return nil, store.ErrNotFound
	}
	if w.Points+delta < 0 {
		return nil, store.ErrInsufficientBalance
	}
	w.Points += delta
	if delta < 0 {
		w.TotalPointsSpent += -delta
	}
	w.UpdatedAt = now()
	t.s.wallets[userID] = w
	out := w
	return &out, nil
}

func (t *walletTable) AddPaidAmount(_ context.Context, userID string, cents int64) error {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	if err := t.s.checkFault("wallets.addPaidAmount"); err != nil {
		return err
	}
	w, ok := t.s.wallets[userID]
	if !ok {
		return store.ErrNotFound
	}
	w.TotalPaidCents += cents
	w.FirstAdd = true
	w.UpdatedAt = now()
	t.s.wallets[userID] = w
	return nil
}

func (t *walletTable) DeleteByUserID(_ context.Context, userID string) error {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	if err := t.s.checkFault("wallets.delete"); err != nil {
		return err
	}
	if _, ok := t.s.wallets[userID]; !ok {
		return store.ErrNotFound
	}
	delete(t.s.wallets, userID)
	return nil
}

type statsTable struct{ s *Store }

func (t *statsTable) Create(_ context.Context, st store.ActivityStats) (*store.ActivityStats, error) {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	if err := t.s.checkFault("stats.create"); err != nil {
		return nil, err
	}
	if _, ok := t.s.stats[st.UserID]; ok {
		return nil, store.ErrConflict
	}
	ts := now()
	st.FirstActiveAt = ts
	st.LastActiveAt = ts
	t.s.stats[st.UserID] = st
	out := st
	return &out, nil
}

func (t *statsTable) GetByUserID(_ context.Context, userID string) (*store.ActivityStats, error) {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	if err := t.s.checkFault("stats.get"); err != nil {
		return nil, err
	}
	st, ok := t.s.stats[userID]
	if !ok {
		return nil, store.ErrNotFound
	}
	out := st
	return &out, nil
}

func (t *statsTable) IncrementSessionCount(_ context.Context, userID string) error {
	return t.bump("stats.incrementSession", userID, func(st *store.ActivityStats) {
		st.SessionCount++
	})
}

func (t *statsTable) IncrementMessageCount(_ context.Context, userID string, n int64) error {
	return t.bump("stats.incrementMessages", userID, func(st *store.ActivityStats) {
		st.TotalMessagesSent += n
	})
}

func (t *statsTable) TouchLastActive(_ context.Context, userID string) error {
	return t.bump("stats.touch", userID, func(*store.ActivityStats) {})
}

func (t *statsTable) bump(op, userID string, mutate func(*store.ActivityStats)) error {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	if err := t.s.checkFault(op); err != nil {
		return err
	}
	st, ok := t.s.stats[userID]
	if !ok {
		return store.ErrNotFound
	}
	mutate(&st)
	st.LastActiveAt = now()
	t.s.stats[userID] = st
	return nil
}

func (t *statsTable) DeleteByUserID(_ context.Context, userID string) error {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	if err := t.s.checkFault("stats.delete"); err != nil {
		return err
	}
	if _, ok := t.s.stats[userID]; !ok {
		return store.ErrNotFound
	}
	delete(t.s.stats, userID)
	return nil
}

type ledgerTable struct{ s *Store }

func (t *ledgerTable) Create(_ context.Context, rec store.PointRecord) (*store.PointRecord, error) {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	if err := t.s.checkFault("ledger.create"); err != nil {
		return nil, err
	}
	rec.ID = orDefault(rec.ID)
	rec.EventID = orDefault(rec.EventID)
	rec.CreatedAt = now()
	t.s.ledger[rec.ID] = rec
	t.s.nextSeq(rec.ID)
	out := rec
	return &out, nil
}

func (t *ledgerTable) Delete(_ context.Context, id string) error {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	if err := t.s.checkFault("ledger.delete"); err != nil {
		return err
	}
	if _, ok := t.s.ledger[id]; !ok {
		return store.ErrNotFound
	}
	delete(t.s.ledger, id)
	return nil
}

func (t *ledgerTable) ListByUser(_ context.Context, userID string, limit int) ([]store.PointRecord, error) {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	if err := t.s.checkFault("ledger.list"); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 20
	}
	var records []store.PointRecord
	for _, rec := range t.s.ledger {
		if rec.UserID == userID {
			records = append(records, rec)
		}
	}
	sort.Slice(records, func(i, j int) bool {
		return t.s.order[records[i].ID] > t.s.order[records[j].ID]
	})
	if len(records) > limit {
		records = records[:limit]
	}
	return records, nil
}

func (t *ledgerTable) SumDeltas(_ context.Context, userID string) (int64, error) {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	if err := t.s.checkFault("ledger.sum"); err != nil {
		return 0, err
	}
	var sum int64
	for _, rec := range t.s.ledger {
		if rec.UserID == userID {
			sum += rec.Delta
		}
	}
	return sum, nil
}

type checkinTable struct{ s *Store }

func (t *checkinTable) Create(_ context.Context, c store.DailyCheckin) (*store.DailyCheckin, error) {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	if err := t.s.checkFault("checkins.create"); err != nil {
		return nil, err
	}
	for _, existing := range t.s.checkins {
		if existing.UserID == c.UserID && existing.Day == c.Day {
			return nil, store.ErrConflict
		}
	}
	c.ID = orDefault(c.ID)
	c.CreatedAt = now()
	t.s.checkins[c.ID] = c
	out := c
	return &out, nil
}

func (t *checkinTable) GetByUserDay(_ context.Context, userID, day string) (*store.DailyCheckin, error) {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	if err := t.s.checkFault("checkins.get"); err != nil {
		return nil, err
	}
	for _, c := range t.s.checkins {
		if c.UserID == userID && c.Day == day {
			out := c
			return &out, nil
		}
	}
	return nil, store.ErrNotFound
}

func (t *checkinTable) Delete(_ context.Context, id string) error {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	if err := t.s.checkFault("checkins.delete"); err != nil {
		return err
	}
	if _, ok := t.s.checkins[id]; !ok {
		return store.ErrNotFound
	}
	delete(t.s.checkins, id)
	return nil
}

type taskTable struct{ s *Store }

func (t *taskTable) Create(_ context.Context, task store.ImageTask) (*store.ImageTask, error) {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	if err := t.s.checkFault("tasks.create"); err != nil {
		return nil, err
	}
	task.ID = orDefault(task.ID)
	ts := now()
	task.CreatedAt = ts
	task.UpdatedAt = ts
	t.s.tasks[task.ID] = task
	t.s.nextSeq(task.ID)
	out := task
	return &out, nil
}

func (t *taskTable) GetByID(_ context.Context, id string) (*store.ImageTask, error) {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	if err := t.s.checkFault("tasks.get"); err != nil {
		return nil, err
	}
	task, ok := t.s.tasks[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	out := task
	return &out, nil
}

func (t *taskTable) Update(_ context.Context, id string, patch store.TaskPatch) error {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	if err := t.s.checkFault("tasks.update"); err != nil {
		return err
	}
	task, ok := t.s.tasks[id]
	if !ok {
		return store.ErrNotFound
	}
	if patch.Status != nil {
		task.Status = *patch.Status
	}
	if patch.ResultURL != nil {
		task.ResultURL = patch.ResultURL
	}
	if patch.ErrorMsg != nil {
		task.ErrorMsg = patch.ErrorMsg
	}
	if patch.Refunded != nil {
		task.Refunded = *patch.Refunded
	}
	task.UpdatedAt = now()
	t.s.tasks[id] = task
	return nil
}

func (t *taskTable) Delete(_ context.Context, id string) error {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	if err := t.s.checkFault("tasks.delete"); err != nil {
		return err
	}
	if _, ok := t.s.tasks[id]; !ok {
		return store.ErrNotFound
	}
	delete(t.s.tasks, id)
	return nil
}

func (t *taskTable) ListByUser(_ context.Context, userID string, limit int) ([]store.ImageTask, error) {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	if err := t.s.checkFault("tasks.list"); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 20
	}
	var tasks []store.ImageTask
	for _, task := range t.s.tasks {
		if task.UserID == userID {
			tasks = append(tasks, task)
		}
	}
	sort.Slice(tasks, func(i, j int) bool {
		return t.s.order[tasks[i].ID] > t.s.order[tasks[j].ID]
	})
	if len(tasks) > limit {
		tasks = tasks[:limit]
	}
	return tasks, nil
}

type orderTable struct{ s *Store }

func (t *orderTable) Create(_ context.Context, o store.PaymentOrder) (*store.PaymentOrder, error) {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	if err := t.s.checkFault("orders.create"); err != nil {
		return nil, err
	}
	for _, existing := range t.s.orders {
		if existing.OrderRef == o.OrderRef {
			return nil, store.ErrConflict
		}
	}
	o.ID = orDefault(o.ID)
	ts := now()
	o.CreatedAt = ts
	o.UpdatedAt = ts
	t.s.orders[o.ID] = o
	t.s.nextSeq(o.ID)
	out := o
	return &out, nil
}

func (t *orderTable) GetByRef(_ context.Context, orderRef string) (*store.PaymentOrder, error) {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	if err := t.s.checkFault("orders.get"); err != nil {
		return nil, err
	}
	for _, o := range t.s.orders {
		if o.OrderRef == orderRef {
			out := o
			return &out, nil
		}
	}
	return nil, store.ErrNotFound
}

func (t *orderTable) Update(_ context.Context, orderRef string, patch store.OrderPatch) error {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	if err := t.s.checkFault("orders.update"); err != nil {
		return err
	}
	for id, o := range t.s.orders {
		if o.OrderRef == orderRef {
			if patch.Status != nil {
				o.Status = *patch.Status
			}
			if patch.ErrorMsg != nil {
				o.ErrorMsg = patch.ErrorMsg
			}
			if patch.ClearPaidAt {
				o.PaidAt = nil
			} else if patch.PaidAt != nil {
				o.PaidAt = patch.PaidAt
			}
			o.UpdatedAt = now()
			t.s.orders[id] = o
			return nil
		}
	}
	return store.ErrNotFound
}

func (t *orderTable) Delete(_ context.Context, id string) error {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	if err := t.s.checkFault("orders.delete"); err != nil {
		return err
	}
	if _, ok := t.s.orders[id]; !ok {
		return store.ErrNotFound
	}
	delete(t.s.orders, id)
	return nil
}

func (t *orderTable) ListByUser(_ context.Context, userID string, limit int) ([]store.PaymentOrder, error) {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	if err := t.s.checkFault("orders.list"); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 20
	}
	var orders []store.PaymentOrder
	for _, o := range t.s.orders {
		if o.UserID == userID {
			orders = append(orders, o)
		}
	}
	sort.Slice(orders, func(i, j int) bool {
		return t.s.order[orders[i].ID] > t.s.order[orders[j].ID]
	})
	if len(orders) > limit {
		orders = orders[:limit]
	}
	return orders, nil
}

type sessionTable struct{ s *Store }

func (t *sessionTable) Create(_ context.Context, sess store.Session) (*store.Session, error) {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	if err := t.s.checkFault("sessions.create"); err != nil {
		return nil, err
	}
	for _, existing := range t.s.sessions {
		if existing.SessionID == sess.SessionID {
			return nil, store.ErrConflict
		}
	}
	sess.ID = orDefault(sess.ID)
	sess.CreatedAt = now()
	t.s.sessions[sess.ID] = sess
	out := sess
	return &out, nil
}

func (t *sessionTable) GetBySessionID(_ context.Context, sessionID string) (*store.Session, error) {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	if err := t.s.checkFault("sessions.get"); err != nil {
		return nil, err
	}
	for _, sess := range t.s.sessions {
		if sess.SessionID == sessionID {
			out := sess
			return &out, nil
		}
	}
	return nil, store.ErrNotFound
}

func (t *sessionTable) Delete(_ context.Context, id string) error {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	if err := t.s.checkFault("sessions.delete"); err != nil {
		return err
	}
	if _, ok := t.s.sessions[id]; !ok {
		return store.ErrNotFound
	}
	delete(t.s.sessions, id)
	return nil
}

type sessionRecordTable struct{ s *Store }

func (t *sessionRecordTable) Create(_ context.Context, r store.SessionRecord) (*store.SessionRecord, error) {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	if err := t.s.checkFault("sessionRecords.create"); err != nil {
		return nil, err
	}
	r.ID = orDefault(r.ID)
	t.s.sessionRecords[r.ID] = r
	out := r
	return &out, nil
}

func (t *sessionRecordTable) GetBySessionID(_ context.Context, sessionID string) (*store.SessionRecord, error) {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	if err := t.s.checkFault("sessionRecords.get"); err != nil {
		return nil, err
	}
	for _, r := range t.s.sessionRecords {
		if r.SessionID == sessionID {
			out := r
			return &out, nil
		}
	}
	return nil, store.ErrNotFound
}

func (t *sessionRecordTable) Update(_ context.Context, id string, patch store.SessionRecordPatch) error {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	if err := t.s.checkFault("sessionRecords.update"); err != nil {
		return err
	}
	r, ok := t.s.sessionRecords[id]
	if !ok {
		return store.ErrNotFound
	}
	if patch.ClearEnded {
		r.EndedAt = nil
		r.DurationSec = nil
		r.Summary = nil
	} else {
		if patch.EndedAt != nil {
			r.EndedAt = patch.EndedAt
		}
		if patch.DurationSec != nil {
			r.DurationSec = patch.DurationSec
		}
		if patch.Summary != nil {
			r.Summary = patch.Summary
		}
	}
	if patch.MessageCount != nil {
		r.MessageCount = *patch.MessageCount
	}
	t.s.sessionRecords[id] = r
	return nil
}

func (t *sessionRecordTable) Delete(_ context.Context, id string) error {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	if err := t.s.checkFault("sessionRecords.delete"); err != nil {
		return err
	}
	if _, ok := t.s.sessionRecords[id]; !ok {
		return store.ErrNotFound
	}
	delete(t.s.sessionRecords, id)
	return nil
}

type actionTable struct{ s *Store }

func (t *actionTable) Create(_ context.Context, a store.ActionRecord) (*store.ActionRecord, error) {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	if err := t.s.checkFault("actions.create"); err != nil {
		return nil, err
	}
	a.ID = orDefault(a.ID)
	a.CreatedAt = now()
	t.s.actions[a.ID] = a
	t.s.nextSeq(a.ID)
	out := a
	return &out, nil
}

func (t *actionTable) Delete(_ context.Context, id string) error {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	if err := t.s.checkFault("actions.delete"); err != nil {
		return err
	}
	if _, ok := t.s.actions[id]; !ok {
		return store.ErrNotFound
	}
	delete(t.s.actions, id)
	return nil
}

func (t *actionTable) ListByUser(_ context.Context, userID string, limit int) ([]store.ActionRecord, error) {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	if err := t.s.checkFault("actions.list"); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 20
	}
	var records []store.ActionRecord
	for _, a := range t.s.actions {
		if a.UserID == userID {
			records = append(records, a)
		}
	}
	sort.Slice(records, func(i, j int) bool {
		return t.s.order[records[i].ID] > t.s.order[records[j].ID]
	})
	if len(records) > limit {
		records = records[:limit]
	}
	return records, nil
}
