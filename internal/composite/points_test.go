package composite

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"pointsbot/internal/store"
)

func TestDailyCheckInOncePerDay(t *testing.T) {
	repos, st := newTestRepos(t)
	ctx := context.Background()
	view := register(t, repos, "ext-1")

	res, err := repos.Points.DailyCheckIn(ctx, view.User.ID)
	if err != nil {
		t.Fatalf("first check-in: %v", err)
	}
	if res.PointsEarned != DefaultCheckinReward {
		t.Fatalf("expected reward %d, got %d", DefaultCheckinReward, res.PointsEarned)
	}
	if res.NewBalance != DefaultSignupBonus+DefaultCheckinReward {
		t.Fatalf("unexpected balance %d", res.NewBalance)
	}

	if _, err := repos.Points.DailyCheckIn(ctx, view.User.ID); !errors.Is(err, ErrAlreadyCheckedIn) {
		t.Fatalf("expected ErrAlreadyCheckedIn, got %v", err)
	}

	// Exactly one credit despite the repeat call.
	recs, err := st.Tables().Ledger.ListByUser(ctx, view.User.ID, 10)
	if err != nil {
		t.Fatalf("list ledger: %v", err)
	}
	if len(recs) != 2 { // signup bonus + one check-in
		t.Fatalf("expected 2 ledger rows, got %d", len(recs))
	}
}

func TestDailyCheckInRollsBackOnLedgerFailure(t *testing.T) {
	repos, st := newTestRepos(t)
	ctx := context.Background()
	view := register(t, repos, "ext-1")

	boom := errors.New("injected")
	st.FailWith("ledger.create", boom)
	if _, err := repos.Points.DailyCheckIn(ctx, view.User.ID); !errors.Is(err, boom) {
		t.Fatalf("expected injected error, got %v", err)
	}
	st.ClearFaults()

	wallet, err := st.Tables().Wallets.GetByUserID(ctx, view.User.ID)
	if err != nil {
		t.Fatalf("get wallet: %v", err)
	}
	if wallet.Points != DefaultSignupBonus {
		t.Fatalf("balance must be restored to %d, got %d", DefaultSignupBonus, wallet.Points)
	}

	// The check-in row was compensated, so the same day succeeds on retry.
	if _, err := repos.Points.DailyCheckIn(ctx, view.User.ID); err != nil {
		t.Fatalf("retry after rollback: %v", err)
	}
}

func TestAdjustBalanceInsufficient(t *testing.T) {
	repos, st := newTestRepos(t)
	ctx := context.Background()
	view := register(t, repos, "ext-1")

	_, err := repos.Points.AdjustBalance(ctx, view.User.ID, -(DefaultSignupBonus + 1), "task", "too much")
	if !errors.Is(err, ErrInsufficientBalance) {
		t.Fatalf("expected ErrInsufficientBalance, got %v", err)
	}

	wallet, err := st.Tables().Wallets.GetByUserID(ctx, view.User.ID)
	if err != nil {
		t.Fatalf("get wallet: %v", err)
	}
	if wallet.Points != DefaultSignupBonus {
		t.Fatalf("failed deduction must not change balance, got %d", wallet.Points)
	}
	recs, _ := st.Tables().Ledger.ListByUser(ctx, view.User.ID, 10)
	if len(recs) != 1 {
		t.Fatalf("failed deduction must not append ledger rows, got %d", len(recs))
	}
}

func TestConcurrentDeductionsNeverGoNegative(t *testing.T) {
	repos, st := newTestRepos(t)
	ctx := context.Background()
	view := register(t, repos, "ext-1") // balance 50

	const unit = 10
	const attempts = 20 // 200 points requested against 50

	var wg sync.WaitGroup
	var mu sync.Mutex
	successes := 0

	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := repos.Points.AdjustBalance(ctx, view.User.ID, -unit, "task", "concurrent")
			if err == nil {
				mu.Lock()
				successes++
				mu.Unlock()
			} else if !errors.Is(err, ErrInsufficientBalance) {
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if successes != DefaultSignupBonus/unit {
		t.Fatalf("expected %d successes, got %d", DefaultSignupBonus/unit, successes)
	}
	wallet, _ := st.Tables().Wallets.GetByUserID(ctx, view.User.ID)
	if wallet.Points != 0 {
		t.Fatalf("expected exhausted balance, got %d", wallet.Points)
	}
}

func TestLedgerReconciliation(t *testing.T) {
	repos, _ := newTestRepos(t)
	ctx := context.Background()
	view := register(t, repos, "ext-1")

	ops := []int64{-10, 20, -5, -15, 30}
	for _, delta := range ops {
		if _, err := repos.Points.AdjustBalance(ctx, view.User.ID, delta, "test", ""); err != nil {
			t.Fatalf("adjust %d: %v", delta, err)
		}
	}

	check, err := repos.Points.VerifyLedger(ctx, view.User.ID)
	if err != nil {
		t.Fatalf("verify ledger: %v", err)
	}
	if !check.Consistent {
		t.Fatalf("ledger sum %d != wallet balance %d", check.LedgerSum, check.WalletBalance)
	}
}

func TestCreateTaskWithDeduction(t *testing.T) {
	repos, st := newTestRepos(t)
	ctx := context.Background()
	view := register(t, repos, "ext-1")

	task, err := repos.Points.CreateTaskWithDeduction(ctx, view.User.ID, TaskQuickEnhance, map[string]any{"prompt": "hd"})
	if err != nil {
		t.Fatalf("create task: %v", err)
	}
	if task.Status != store.TaskPending {
		t.Fatalf("expected pending task, got %s", task.Status)
	}
	if task.PointsCost != 10 {
		t.Fatalf("expected cost 10, got %d", task.PointsCost)
	}
	if task.LedgerID == "" {
		t.Fatal("task must reference its charge ledger entry")
	}

	wallet, _ := st.Tables().Wallets.GetByUserID(ctx, view.User.ID)
	if wallet.Points != DefaultSignupBonus-10 {
		t.Fatalf("expected balance %d, got %d", DefaultSignupBonus-10, wallet.Points)
	}
}

func TestCreateTaskRollsBackChargeOnTaskFailure(t *testing.T) {
	repos, st := newTestRepos(t)
	ctx := context.Background()
	view := register(t, repos, "ext-1")

	boom := errors.New("injected")
	st.FailWith("tasks.create", boom)
	if _, err := repos.Points.CreateTaskWithDeduction(ctx, view.User.ID, TaskQuickEnhance, nil); !errors.Is(err, boom) {
		t.Fatalf("expected injected error, got %v", err)
	}
	st.ClearFaults()

	wallet, _ := st.Tables().Wallets.GetByUserID(ctx, view.User.ID)
	if wallet.Points != DefaultSignupBonus {
		t.Fatalf("charge must be compensated, got balance %d", wallet.Points)
	}
	recs, _ := st.Tables().Ledger.ListByUser(ctx, view.User.ID, 10)
	if len(recs) != 1 {
		t.Fatalf("charge ledger row must be deleted, got %d rows", len(recs))
	}
}

func TestRefundTaskOnlyOnce(t *testing.T) {
	repos, st := newTestRepos(t)
	ctx := context.Background()
	view := register(t, repos, "ext-1")

	task, err := repos.Points.CreateTaskWithDeduction(ctx, view.User.ID, TaskCustomEnhance, nil)
	if err != nil {
		t.Fatalf("create task: %v", err)
	}
	if err := repos.Points.FailTask(ctx, task.ID, "upstream timeout"); err != nil {
		t.Fatalf("fail task: %v", err)
	}

	change, err := repos.Points.RefundTask(ctx, task.ID)
	if err != nil {
		t.Fatalf("refund: %v", err)
	}
	if change.Delta != task.PointsCost {
		t.Fatalf("expected refund of %d, got %d", task.PointsCost, change.Delta)
	}
	if change.BalanceAfter != DefaultSignupBonus {
		t.Fatalf("expected restored balance %d, got %d", DefaultSignupBonus, change.BalanceAfter)
	}

	if _, err := repos.Points.RefundTask(ctx, task.ID); !errors.Is(err, ErrTaskNotRefundable) {
		t.Fatalf("second refund must be rejected, got %v", err)
	}
	wallet, _ := st.Tables().Wallets.GetByUserID(ctx, view.User.ID)
	if wallet.Points != DefaultSignupBonus {
		t.Fatalf("second refund must not credit again, got %d", wallet.Points)
	}
}

func TestRefundRequiresFailedTask(t *testing.T) {
	repos, _ := newTestRepos(t)
	ctx := context.Background()
	view := register(t, repos, "ext-1")

	task, err := repos.Points.CreateTaskWithDeduction(ctx, view.User.ID, TaskQuickEnhance, nil)
	if err != nil {
		t.Fatalf("create task: %v", err)
	}
	if _, err := repos.Points.RefundTask(ctx, task.ID); !errors.Is(err, ErrTaskNotRefundable) {
		t.Fatalf("pending task must not be refundable, got %v", err)
	}

	if err := repos.Points.CompleteTask(ctx, task.ID, "https://cdn.example/result.png"); err != nil {
		t.Fatalf("complete task: %v", err)
	}
	if _, err := repos.Points.RefundTask(ctx, task.ID); !errors.Is(err, ErrTaskNotRefundable) {
		t.Fatalf("completed task must not be refundable, got %v", err)
	}
}

func TestPaymentLifecycle(t *testing.T) {
	repos, st := newTestRepos(t)
	ctx := context.Background()
	view := register(t, repos, "ext-1")

	order, err := repos.Points.CreatePendingOrder(ctx, OrderParams{
		UserID:      view.User.ID,
		OrderRef:    "ord-1",
		AmountCents: 990,
		Method:      "qris",
		Points:      100,
	})
	if err != nil {
		t.Fatalf("create order: %v", err)
	}
	if order.Status != store.OrderPending {
		t.Fatalf("expected pending order, got %s", order.Status)
	}

	if _, err := repos.Points.CreatePendingOrder(ctx, OrderParams{UserID: view.User.ID, OrderRef: "ord-1"}); !errors.Is(err, ErrAlreadyExists) {
		t.Fatalf("duplicate order ref must conflict, got %v", err)
	}

	paidAt := time.Now()
	change, err := repos.Points.ProcessPaymentSuccess(ctx, "ord-1", paidAt)
	if err != nil {
		t.Fatalf("payment success: %v", err)
	}
	if change.Delta != 100 || change.BalanceAfter != DefaultSignupBonus+100 {
		t.Fatalf("unexpected credit: %+v", change)
	}

	// Webhook retry: same outcome, no double credit.
	again, err := repos.Points.ProcessPaymentSuccess(ctx, "ord-1", paidAt)
	if err != nil {
		t.Fatalf("payment retry: %v", err)
	}
	if again.BalanceAfter != DefaultSignupBonus+100 {
		t.Fatalf("retry must not credit again, got balance %d", again.BalanceAfter)
	}

	wallet, _ := st.Tables().Wallets.GetByUserID(ctx, view.User.ID)
	if wallet.TotalPaidCents != 990 {
		t.Fatalf("expected paid total 990, got %d", wallet.TotalPaidCents)
	}
}

func TestPaymentSuccessRollsBackOnLedgerFailure(t *testing.T) {
	repos, st := newTestRepos(t)
	ctx := context.Background()
	view := register(t, repos, "ext-1")

	if _, err := repos.Points.CreatePendingOrder(ctx, OrderParams{
		UserID: view.User.ID, OrderRef: "ord-1", AmountCents: 990, Points: 100,
	}); err != nil {
		t.Fatalf("create order: %v", err)
	}

	boom := errors.New("injected")
	st.FailWith("ledger.create", boom)
	if _, err := repos.Points.ProcessPaymentSuccess(ctx, "ord-1", time.Now()); !errors.Is(err, boom) {
		t.Fatalf("expected injected error, got %v", err)
	}
	st.ClearFaults()

	order, _ := st.Tables().Orders.GetByRef(ctx, "ord-1")
	if order.Status != store.OrderPending {
		t.Fatalf("order status must be compensated to pending, got %s", order.Status)
	}
	if order.PaidAt != nil {
		t.Fatalf("paid_at must be compensated back to nil, got %v", *order.PaidAt)
	}
	wallet, _ := st.Tables().Wallets.GetByUserID(ctx, view.User.ID)
	if wallet.Points != DefaultSignupBonus {
		t.Fatalf("credit must be compensated, got %d", wallet.Points)
	}

	// The compensated order is still settleable once the fault clears.
	change, err := repos.Points.ProcessPaymentSuccess(ctx, "ord-1", time.Now())
	if err != nil {
		t.Fatalf("settle after rollback: %v", err)
	}
	if change.BalanceAfter != DefaultSignupBonus+100 {
		t.Fatalf("expected balance %d, got %d", DefaultSignupBonus+100, change.BalanceAfter)
	}
}

func TestPaymentFailureIsTerminalOnlyFromPending(t *testing.T) {
	repos, st := newTestRepos(t)
	ctx := context.Background()
	view := register(t, repos, "ext-1")

	if _, err := repos.Points.CreatePendingOrder(ctx, OrderParams{
		UserID: view.User.ID, OrderRef: "ord-1", AmountCents: 990, Points: 100,
	}); err != nil {
		t.Fatalf("create order: %v", err)
	}
	if _, err := repos.Points.ProcessPaymentSuccess(ctx, "ord-1", time.Now()); err != nil {
		t.Fatalf("payment success: %v", err)
	}

	// A late failure callback must not clobber the completed order.
	if err := repos.Points.ProcessPaymentFailure(ctx, "ord-1", "expired"); err != nil {
		t.Fatalf("late failure callback: %v", err)
	}
	order, _ := st.Tables().Orders.GetByRef(ctx, "ord-1")
	if order.Status != store.OrderCompleted {
		t.Fatalf("completed order must stay completed, got %s", order.Status)
	}
}

// End-to-end walk through the documented scenario: signup bonus 50, charge
// 10, oversized charge rejected, failed task refunded back to 50.
func TestPointsEndToEndScenario(t *testing.T) {
	repos, st := newTestRepos(t)
	ctx := context.Background()
	view := register(t, repos, "u1")

	task, err := repos.Points.CreateTaskWithDeduction(ctx, view.User.ID, TaskQuickEnhance, nil)
	if err != nil {
		t.Fatalf("create task: %v", err)
	}
	wallet, _ := st.Tables().Wallets.GetByUserID(ctx, view.User.ID)
	if wallet.Points != 40 {
		t.Fatalf("expected balance 40, got %d", wallet.Points)
	}

	if _, err := repos.Points.AdjustBalance(ctx, view.User.ID, -100, "task", "oversized"); !errors.Is(err, ErrInsufficientBalance) {
		t.Fatalf("expected ErrInsufficientBalance, got %v", err)
	}
	wallet, _ = st.Tables().Wallets.GetByUserID(ctx, view.User.ID)
	if wallet.Points != 40 {
		t.Fatalf("balance must still be 40, got %d", wallet.Points)
	}

	if err := repos.Points.FailTask(ctx, task.ID, "render failed"); err != nil {
		t.Fatalf("fail task: %v", err)
	}
	change, err := repos.Points.RefundTask(ctx, task.ID)
	if err != nil {
		t.Fatalf("refund: %v", err)
	}
	if change.BalanceAfter != 50 {
		t.Fatalf("expected balance restored to 50, got %d", change.BalanceAfter)
	}

	check, err := repos.Points.VerifyLedger(ctx, view.User.ID)
	if err != nil {
		t.Fatalf("verify ledger: %v", err)
	}
	if !check.Consistent {
		t.Fatalf("ledger must reconcile: %+v", check)
	}
}
