package migration

import (
	"context"
	"sync"
	"time"

	"pointsbot/internal/composite"
	"pointsbot/internal/store"
)

// The parallel-test decorators keep the legacy repository authoritative and
// replay every successful write against the new-schema repository through
// the verifier. Reads are never replayed. Shadow outcomes, including
// errors, cannot reach the caller.

type verifiedUsers struct {
	primary composite.UserRepository
	shadow  composite.UserRepository
	v       *Verifier
}

func (u *verifiedUsers) Register(ctx context.Context, p composite.RegisterParams) (*composite.UserView, error) {
	view, err := u.primary.Register(ctx, p)
	if err != nil {
		return nil, err
	}
	u.v.Verify("users.register", func(ctx context.Context) ([]FieldDiff, error) {
		// Pin the surrogate key so later userID-keyed replays resolve in
		// the shadow schema.
		p := p
		p.ID = view.User.ID
		sv, err := u.shadow.Register(ctx, p)
		if err != nil {
			return nil, err
		}
		var diffs []FieldDiff
		if sv.User.ExternalID != view.User.ExternalID {
			diffs = append(diffs, Diff("external_id", view.User.ExternalID, sv.User.ExternalID))
		}
		if sv.Points != view.Points {
			diffs = append(diffs, Diff("points", view.Points, sv.Points))
		}
		if sv.Level != view.Level {
			diffs = append(diffs, Diff("level", view.Level, sv.Level))
		}
		return diffs, nil
	})
	return view, nil
}

func (u *verifiedUsers) GetView(ctx context.Context, externalID string) (*composite.UserView, error) {
	return u.primary.GetView(ctx, externalID)
}

func (u *verifiedUsers) Update(ctx context.Context, externalID string, patch store.UserPatch) error {
	if err := u.primary.Update(ctx, externalID, patch); err != nil {
		return err
	}
	u.v.Verify("users.update", func(ctx context.Context) ([]FieldDiff, error) {
		return nil, u.shadow.Update(ctx, externalID, patch)
	})
	return nil
}

func (u *verifiedUsers) Deactivate(ctx context.Context, externalID string) error {
	if err := u.primary.Deactivate(ctx, externalID); err != nil {
		return err
	}
	u.v.Verify("users.deactivate", func(ctx context.Context) ([]FieldDiff, error) {
		return nil, u.shadow.Deactivate(ctx, externalID)
	})
	return nil
}

type verifiedPoints struct {
	primary composite.PointsRepository
	shadow  composite.PointsRepository
	v       *Verifier

	// Task rows get independent surrogate IDs in each schema, so replays of
	// by-ID task operations need the shadow twin of each primary task.
	taskIDs sync.Map // primary task ID -> shadow task ID
}

func (p *verifiedPoints) DailyCheckIn(ctx context.Context, userID string) (*composite.CheckInResult, error) {
	res, err := p.primary.DailyCheckIn(ctx, userID)
	if err != nil {
		return nil, err
	}
	p.v.Verify("points.daily_checkin", func(ctx context.Context) ([]FieldDiff, error) {
		sr, err := p.shadow.DailyCheckIn(ctx, userID)
		if err != nil {
			return nil, err
		}
		var diffs []FieldDiff
		if sr.Day != res.Day {
			diffs = append(diffs, Diff("day", res.Day, sr.Day))
		}
		if sr.PointsEarned != res.PointsEarned {
			diffs = append(diffs, Diff("points_earned", res.PointsEarned, sr.PointsEarned))
		}
		return diffs, nil
	})
	return res, nil
}

func (p *verifiedPoints) AdjustBalance(ctx context.Context, userID string, delta int64, actionType, description string) (*composite.BalanceChange, error) {
	change, err := p.primary.AdjustBalance(ctx, userID, delta, actionType, description)
	if err != nil {
		return nil, err
	}
	p.v.Verify("points.adjust_balance", func(ctx context.Context) ([]FieldDiff, error) {
		sc, err := p.shadow.AdjustBalance(ctx, userID, delta, actionType, description)
		if err != nil {
			return nil, err
		}
		return diffBalanceChange(change, sc), nil
	})
	return change, nil
}

func (p *verifiedPoints) CreateTaskWithDeduction(ctx context.Context, userID, kind string, payload map[string]any) (*store.ImageTask, error) {
	task, err := p.primary.CreateTaskWithDeduction(ctx, userID, kind, payload)
	if err != nil {
		return nil, err
	}
	p.v.Verify("points.create_task", func(ctx context.Context) ([]FieldDiff, error) {
		st, err := p.shadow.CreateTaskWithDeduction(ctx, userID, kind, payload)
		if err != nil {
			return nil, err
		}
		p.taskIDs.Store(task.ID, st.ID)
		var diffs []FieldDiff
		if st.Kind != task.Kind {
			diffs = append(diffs, Diff("kind", task.Kind, st.Kind))
		}
		if st.Status != task.Status {
			diffs = append(diffs, Diff("status", task.Status, st.Status))
		}
		if st.PointsCost != task.PointsCost {
			diffs = append(diffs, Diff("points_cost", task.PointsCost, st.PointsCost))
		}
		return diffs, nil
	})
	return task, nil
}

func (p *verifiedPoints) CompleteTask(ctx context.Context, taskID, resultURL string) error {
	if err := p.primary.CompleteTask(ctx, taskID, resultURL); err != nil {
		return err
	}
	if shadowID, ok := p.shadowTaskID(taskID); ok {
		p.v.Verify("points.complete_task", func(ctx context.Context) ([]FieldDiff, error) {
			err := p.shadow.CompleteTask(ctx, shadowID, resultURL)
			if err == nil {
				// Completed is terminal, no further by-ID replays.
				p.taskIDs.Delete(taskID)
			}
			return nil, err
		})
	}
	return nil
}

func (p *verifiedPoints) FailTask(ctx context.Context, taskID, errMsg string) error {
	if err := p.primary.FailTask(ctx, taskID, errMsg); err != nil {
		return err
	}
	if shadowID, ok := p.shadowTaskID(taskID); ok {
		p.v.Verify("points.fail_task", func(ctx context.Context) ([]FieldDiff, error) {
			return nil, p.shadow.FailTask(ctx, shadowID, errMsg)
		})
	}
	return nil
}

func (p *verifiedPoints) RefundTask(ctx context.Context, taskID string) (*composite.BalanceChange, error) {
	change, err := p.primary.RefundTask(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if shadowID, ok := p.shadowTaskID(taskID); ok {
		p.v.Verify("points.refund_task", func(ctx context.Context) ([]FieldDiff, error) {
			sc, err := p.shadow.RefundTask(ctx, shadowID)
			if err != nil {
				return nil, err
			}
			// Refunded is terminal, no further by-ID replays.
			p.taskIDs.Delete(taskID)
			return diffBalanceChange(change, sc), nil
		})
	}
	return change, nil
}

func (p *verifiedPoints) CreatePendingOrder(ctx context.Context, op composite.OrderParams) (*store.PaymentOrder, error) {
	order, err := p.primary.CreatePendingOrder(ctx, op)
	if err != nil {
		return nil, err
	}
	p.v.Verify("points.create_order", func(ctx context.Context) ([]FieldDiff, error) {
		so, err := p.shadow.CreatePendingOrder(ctx, op)
		if err != nil {
			return nil, err
		}
		var diffs []FieldDiff
		if so.OrderRef != order.OrderRef {
			diffs = append(diffs, Diff("order_ref", order.OrderRef, so.OrderRef))
		}
		if so.AmountCents != order.AmountCents {
			diffs = append(diffs, Diff("amount_cents", order.AmountCents, so.AmountCents))
		}
		if so.Status != order.Status {
			diffs = append(diffs, Diff("status", order.Status, so.Status))
		}
		return diffs, nil
	})
	return order, nil
}

func (p *verifiedPoints) ProcessPaymentSuccess(ctx context.Context, orderRef string, paidAt time.Time) (*composite.BalanceChange, error) {
	change, err := p.primary.ProcessPaymentSuccess(ctx, orderRef, paidAt)
	if err != nil {
		return nil, err
	}
	p.v.Verify("points.payment_success", func(ctx context.Context) ([]FieldDiff, error) {
		sc, err := p.shadow.ProcessPaymentSuccess(ctx, orderRef, paidAt)
		if err != nil {
			return nil, err
		}
		return diffBalanceChange(change, sc), nil
	})
	return change, nil
}

func (p *verifiedPoints) ProcessPaymentFailure(ctx context.Context, orderRef, errMsg string) error {
	if err := p.primary.ProcessPaymentFailure(ctx, orderRef, errMsg); err != nil {
		return err
	}
	p.v.Verify("points.payment_failure", func(ctx context.Context) ([]FieldDiff, error) {
		return nil, p.shadow.ProcessPaymentFailure(ctx, orderRef, errMsg)
	})
	return nil
}

func (p *verifiedPoints) History(ctx context.Context, userID string, limit int) ([]store.PointRecord, error) {
	return p.primary.History(ctx, userID, limit)
}

func (p *verifiedPoints) VerifyLedger(ctx context.Context, userID string) (*composite.LedgerCheck, error) {
	return p.primary.VerifyLedger(ctx, userID)
}

func (p *verifiedPoints) shadowTaskID(primaryID string) (string, bool) {
	v, ok := p.taskIDs.Load(primaryID)
	if !ok {
		return "", false
	}
	return v.(string), true
}

func diffBalanceChange(primary, shadow *composite.BalanceChange) []FieldDiff {
	var diffs []FieldDiff
	if shadow.Delta != primary.Delta {
		diffs = append(diffs, Diff("delta", primary.Delta, shadow.Delta))
	}
	if shadow.BalanceAfter != primary.BalanceAfter {
		diffs = append(diffs, Diff("balance_after", primary.BalanceAfter, shadow.BalanceAfter))
	}
	return diffs
}

type verifiedSessions struct {
	primary composite.SessionRepository
	shadow  composite.SessionRepository
	v       *Verifier
}

func (s *verifiedSessions) Open(ctx context.Context, userID, sessionID string) (*composite.SessionInfo, error) {
	info, err := s.primary.Open(ctx, userID, sessionID)
	if err != nil {
		return nil, err
	}
	s.v.Verify("sessions.open", func(ctx context.Context) ([]FieldDiff, error) {
		si, err := s.shadow.Open(ctx, userID, sessionID)
		if err != nil {
			return nil, err
		}
		var diffs []FieldDiff
		if si.Session.SessionID != info.Session.SessionID {
			diffs = append(diffs, Diff("session_id", info.Session.SessionID, si.Session.SessionID))
		}
		return diffs, nil
	})
	return info, nil
}

func (s *verifiedSessions) Close(ctx context.Context, sessionID string, messageCount *int64, summary *string) (*composite.SessionInfo, error) {
	info, err := s.primary.Close(ctx, sessionID, messageCount, summary)
	if err != nil {
		return nil, err
	}
	s.v.Verify("sessions.close", func(ctx context.Context) ([]FieldDiff, error) {
		si, err := s.shadow.Close(ctx, sessionID, messageCount, summary)
		if err != nil {
			return nil, err
		}
		var diffs []FieldDiff
		if (si.Record.EndedAt != nil) != (info.Record.EndedAt != nil) {
			diffs = append(diffs, Diff("ended", info.Record.EndedAt != nil, si.Record.EndedAt != nil))
		}
		if si.Record.MessageCount != info.Record.MessageCount {
			diffs = append(diffs, Diff("message_count", info.Record.MessageCount, si.Record.MessageCount))
		}
		return diffs, nil
	})
	return info, nil
}

func (s *verifiedSessions) Touch(ctx context.Context, sessionID string, messages int64) error {
	if err := s.primary.Touch(ctx, sessionID, messages); err != nil {
		return err
	}
	s.v.Verify("sessions.touch", func(ctx context.Context) ([]FieldDiff, error) {
		return nil, s.shadow.Touch(ctx, sessionID, messages)
	})
	return nil
}

func (s *verifiedSessions) GetInfo(ctx context.Context, sessionID string) (*composite.SessionInfo, error) {
	return s.primary.GetInfo(ctx, sessionID)
}

type verifiedActions struct {
	primary composite.ActionRepository
	shadow  composite.ActionRepository
	v       *Verifier
}

func (a *verifiedActions) Record(ctx context.Context, p composite.ActionParams) (*store.ActionRecord, error) {
	rec, err := a.primary.Record(ctx, p)
	if err != nil {
		return nil, err
	}
	a.v.Verify("actions.record", func(ctx context.Context) ([]FieldDiff, error) {
		sr, err := a.shadow.Record(ctx, p)
		if err != nil {
			return nil, err
		}
		var diffs []FieldDiff
		if sr.ActionType != rec.ActionType {
			diffs = append(diffs, Diff("action_type", rec.ActionType, sr.ActionType))
		}
		if sr.Status != rec.Status {
			diffs = append(diffs, Diff("status", rec.Status, sr.Status))
		}
		if sr.PointsCost != rec.PointsCost {
			diffs = append(diffs, Diff("points_cost", rec.PointsCost, sr.PointsCost))
		}
		return diffs, nil
	})
	return rec, nil
}

func (a *verifiedActions) ListByUser(ctx context.Context, userID string, limit int) ([]store.ActionRecord, error) {
	return a.primary.ListByUser(ctx, userID, limit)
}
