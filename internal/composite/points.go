package composite

import (
	"context"
	"fmt"
	"time"

	"pointsbot/internal/store"
)

type pointsRepo struct {
	*deps
}

// DailyCheckIn awards the daily reward once per (user, UTC day). The unique
// constraint on the check-in row is the real gate; the pre-read only makes
// the common repeat case cheap.
func (r *pointsRepo) DailyCheckIn(ctx context.Context, userID string) (*CheckInResult, error) {
	unlock := r.locks.Lock(userID)
	defer unlock()

	day := r.now().UTC().Format("2006-01-02")

	if _, err := r.tables.Checkins.GetByUserDay(ctx, userID, day); err == nil {
		return nil, ErrAlreadyCheckedIn
	} else if !store.IsNotFound(err) {
		return nil, fmt.Errorf("check existing check-in: %w", err)
	}

	var result *CheckInResult
	err := r.run(ctx, "points.daily_checkin", func(s *Scope) error {
		checkin, err := r.tables.Checkins.Create(ctx, store.DailyCheckin{
			ID:           r.newID(),
			UserID:       userID,
			Day:          day,
			PointsEarned: r.cfg.CheckinReward,
			CreatedAt:    r.now(),
		})
		if err != nil {
			if store.IsConflict(err) {
				return ErrAlreadyCheckedIn
			}
			return fmt.Errorf("create check-in: %w", err)
		}
		s.OnRollback("delete check-in", func(ctx context.Context) error {
			return r.tables.Checkins.Delete(ctx, checkin.ID)
		})

		change, err := r.mutateBalance(ctx, s, userID, r.cfg.CheckinReward, "daily_checkin", "daily check-in reward")
		if err != nil {
			return err
		}

		result = &CheckInResult{
			Day:          day,
			PointsEarned: r.cfg.CheckinReward,
			NewBalance:   change.BalanceAfter,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	r.logger.Info("daily check-in", "user_id", userID, "day", day, "balance", result.NewBalance)
	return result, nil
}

// AdjustBalance applies an arbitrary signed delta with a ledger entry.
// Deductions that would cross zero fail before any write.
func (r *pointsRepo) AdjustBalance(ctx context.Context, userID string, delta int64, actionType, description string) (*BalanceChange, error) {
	unlock := r.locks.Lock(userID)
	defer unlock()

	var change *BalanceChange
	err := r.run(ctx, "points.adjust_balance", func(s *Scope) error {
		var err error
		change, err = r.mutateBalance(ctx, s, userID, delta, actionType, description)
		return err
	})
	if err != nil {
		return nil, err
	}
	return change, nil
}

// CreateTaskWithDeduction charges the task cost and creates the task row.
// Either both happen or neither does; the task row keeps the ledger entry ID
// so a later refund can point back at the original charge.
func (r *pointsRepo) CreateTaskWithDeduction(ctx context.Context, userID, kind string, payload map[string]any) (*store.ImageTask, error) {
	unlock := r.locks.Lock(userID)
	defer unlock()

	cost := r.cfg.TaskCost(kind)

	var task *store.ImageTask
	err := r.run(ctx, "points.create_task", func(s *Scope) error {
		change, err := r.mutateBalance(ctx, s, userID, -cost, kind, "task charge: "+kind)
		if err != nil {
			return err
		}

		task, err = r.tables.Tasks.Create(ctx, store.ImageTask{
			ID:         r.newID(),
			UserID:     userID,
			Kind:       kind,
			Status:     store.TaskPending,
			PointsCost: cost,
			LedgerID:   change.LedgerID,
			Payload:    payload,
			CreatedAt:  r.now(),
			UpdatedAt:  r.now(),
		})
		if err != nil {
			return fmt.Errorf("create task: %w", err)
		}
		s.OnRollback("delete task", func(ctx context.Context) error {
			return r.tables.Tasks.Delete(ctx, task.ID)
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	r.logger.Info("task created", "user_id", userID, "task_id", task.ID, "kind", kind, "cost", cost)
	return task, nil
}

func (r *pointsRepo) CompleteTask(ctx context.Context, taskID, resultURL string) error {
	status := store.TaskCompleted
	patch := store.TaskPatch{Status: &status, ResultURL: &resultURL}
	if err := r.tables.Tasks.Update(ctx, taskID, patch); err != nil {
		return fmt.Errorf("complete task: %w", err)
	}
	return nil
}

func (r *pointsRepo) FailTask(ctx context.Context, taskID, errMsg string) error {
	status := store.TaskFailed
	patch := store.TaskPatch{Status: &status, ErrorMsg: &errMsg}
	if err := r.tables.Tasks.Update(ctx, taskID, patch); err != nil {
		return fmt.Errorf("fail task: %w", err)
	}
	return nil
}

// RefundTask returns the charge of a failed task. Only failed, not yet
// refunded tasks qualify; a repeat call reports ErrTaskNotRefundable, so
// webhook retries cannot double-credit.
func (r *pointsRepo) RefundTask(ctx context.Context, taskID string) (*BalanceChange, error) {
	task, err := r.tables.Tasks.GetByID(ctx, taskID)
	if err != nil {
		return nil, fmt.Errorf("get task: %w", err)
	}

	unlock := r.locks.Lock(task.UserID)
	defer unlock()

	// Re-read under the lock; a concurrent refund may have won.
	task, err = r.tables.Tasks.GetByID(ctx, taskID)
	if err != nil {
		return nil, fmt.Errorf("get task: %w", err)
	}
	if task.Refunded || task.Status != store.TaskFailed {
		return nil, ErrTaskNotRefundable
	}

	var change *BalanceChange
	err = r.run(ctx, "points.refund_task", func(s *Scope) error {
		refunded := true
		if err := r.tables.Tasks.Update(ctx, taskID, store.TaskPatch{Refunded: &refunded}); err != nil {
			return fmt.Errorf("mark refunded: %w", err)
		}
		s.OnRollback("unmark refunded", func(ctx context.Context) error {
			notRefunded := false
			return r.tables.Tasks.Update(ctx, taskID, store.TaskPatch{Refunded: &notRefunded})
		})

		change, err = r.mutateBalance(ctx, s, task.UserID, task.PointsCost, "task_refund", "refund for failed task "+taskID)
		return err
	})
	if err != nil {
		return nil, err
	}

	r.logger.Info("task refunded", "user_id", task.UserID, "task_id", taskID, "points", task.PointsCost)
	return change, nil
}

// CreatePendingOrder records a payment order before redirecting the user to
// the gateway. Duplicate order refs return ErrAlreadyExists.
func (r *pointsRepo) CreatePendingOrder(ctx context.Context, p OrderParams) (*store.PaymentOrder, error) {
	order, err := r.tables.Orders.Create(ctx, store.PaymentOrder{
		ID:            r.newID(),
		UserID:        p.UserID,
		OrderRef:      p.OrderRef,
		AmountCents:   p.AmountCents,
		Status:        store.OrderPending,
		Method:        p.Method,
		PointsAwarded: p.Points,
		CreatedAt:     r.now(),
		UpdatedAt:     r.now(),
	})
	if err != nil {
		if store.IsConflict(err) {
			return nil, ErrAlreadyExists
		}
		return nil, fmt.Errorf("create order: %w", err)
	}
	return order, nil
}

// ProcessPaymentSuccess settles a pending order: marks it completed and
// credits its points with a ledger entry. Gateways retry webhooks, so a
// second call for a completed order is a no-op that reports the stored
// outcome.
func (r *pointsRepo) ProcessPaymentSuccess(ctx context.Context, orderRef string, paidAt time.Time) (*BalanceChange, error) {
	order, err := r.tables.Orders.GetByRef(ctx, orderRef)
	if err != nil {
		return nil, fmt.Errorf("get order: %w", err)
	}

	unlock := r.locks.Lock(order.UserID)
	defer unlock()

	order, err = r.tables.Orders.GetByRef(ctx, orderRef)
	if err != nil {
		return nil, fmt.Errorf("get order: %w", err)
	}
	if order.Status == store.OrderCompleted {
		wallet, err := r.tables.Wallets.GetByUserID(ctx, order.UserID)
		if err != nil {
			return nil, fmt.Errorf("get wallet: %w", err)
		}
		return &BalanceChange{
			UserID:       order.UserID,
			Delta:        order.PointsAwarded,
			BalanceAfter: wallet.Points,
		}, nil
	}
	if order.Status != store.OrderPending {
		return nil, fmt.Errorf("process payment: order %s is %s", orderRef, order.Status)
	}

	var change *BalanceChange
	err = r.run(ctx, "points.payment_success", func(s *Scope) error {
		prevStatus := order.Status
		prevPaidAt := order.PaidAt
		completed := store.OrderCompleted
		if err := r.tables.Orders.Update(ctx, orderRef, store.OrderPatch{Status: &completed, PaidAt: &paidAt}); err != nil {
			return fmt.Errorf("complete order: %w", err)
		}
		s.OnRollback("revert order status", func(ctx context.Context) error {
			return r.tables.Orders.Update(ctx, orderRef, store.OrderPatch{
				Status:      &prevStatus,
				PaidAt:      prevPaidAt,
				ClearPaidAt: prevPaidAt == nil,
			})
		})

		change, err = r.mutateBalance(ctx, s, order.UserID, order.PointsAwarded, "purchase", "points purchase "+orderRef)
		if err != nil {
			return err
		}

		if err := r.tables.Wallets.AddPaidAmount(ctx, order.UserID, order.AmountCents); err != nil {
			return fmt.Errorf("add paid amount: %w", err)
		}
		s.OnRollback("revert paid amount", func(ctx context.Context) error {
			return r.tables.Wallets.AddPaidAmount(ctx, order.UserID, -order.AmountCents)
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	r.logger.Info("payment settled", "user_id", order.UserID, "order_ref", orderRef, "points", order.PointsAwarded)
	return change, nil
}

// ProcessPaymentFailure marks a pending order failed. Terminal orders are
// left untouched.
func (r *pointsRepo) ProcessPaymentFailure(ctx context.Context, orderRef, errMsg string) error {
	order, err := r.tables.Orders.GetByRef(ctx, orderRef)
	if err != nil {
		return fmt.Errorf("get order: %w", err)
	}
	if order.Status != store.OrderPending {
		return nil
	}
	failed := store.OrderFailed
	if err := r.tables.Orders.Update(ctx, orderRef, store.OrderPatch{Status: &failed, ErrorMsg: &errMsg}); err != nil {
		return fmt.Errorf("fail order: %w", err)
	}
	return nil
}

// History returns the most recent ledger entries, newest first.
func (r *pointsRepo) History(ctx context.Context, userID string, limit int) ([]store.PointRecord, error) {
	recs, err := r.tables.Ledger.ListByUser(ctx, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list ledger: %w", err)
	}
	return recs, nil
}

// VerifyLedger compares the wallet balance against the ledger sum.
func (r *pointsRepo) VerifyLedger(ctx context.Context, userID string) (*LedgerCheck, error) {
	wallet, err := r.tables.Wallets.GetByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("get wallet: %w", err)
	}
	sum, err := r.tables.Ledger.SumDeltas(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("sum ledger: %w", err)
	}
	return &LedgerCheck{
		UserID:        userID,
		WalletBalance: wallet.Points,
		LedgerSum:     sum,
		Consistent:    wallet.Points == sum,
	}, nil
}

// mutateBalance applies one wallet delta plus its ledger entry inside an
// already running Scope. The caller must hold the user lock.
func (r *pointsRepo) mutateBalance(ctx context.Context, s *Scope, userID string, delta int64, actionType, description string) (*BalanceChange, error) {
	wallet, err := r.tables.Wallets.AddPoints(ctx, userID, delta)
	if err != nil {
		if store.IsInsufficientBalance(err) {
			return nil, ErrInsufficientBalance
		}
		return nil, fmt.Errorf("apply delta: %w", err)
	}
	s.OnRollback("revert wallet delta", func(ctx context.Context) error {
		_, err := r.tables.Wallets.AddPoints(ctx, userID, -delta)
		return err
	})

	rec, err := r.tables.Ledger.Create(ctx, store.PointRecord{
		ID:           r.newID(),
		UserID:       userID,
		Delta:        delta,
		ActionType:   actionType,
		Description:  description,
		BalanceAfter: wallet.Points,
		EventID:      r.newID(),
		CreatedAt:    r.now(),
	})
	if err != nil {
		return nil, fmt.Errorf("append ledger: %w", err)
	}
	s.OnRollback("delete ledger entry", func(ctx context.Context) error {
		return r.tables.Ledger.Delete(ctx, rec.ID)
	})

	return &BalanceChange{
		UserID:       userID,
		Delta:        delta,
		BalanceAfter: wallet.Points,
		LedgerID:     rec.ID,
	}, nil
}
