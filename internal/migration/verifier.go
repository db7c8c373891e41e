package migration

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"pointsbot/internal/metrics"
)

// summaryEvery controls how often the verifier logs its running match rate.
const summaryEvery = 100

// defaultVerifyTimeout bounds one shadow replay.
const defaultVerifyTimeout = 10 * time.Second

// FieldDiff names one field whose authoritative and shadow values disagree.
type FieldDiff struct {
	Field   string
	Primary any
	Shadow  any
}

// Diff is a FieldDiff constructor kept short because comparison sites stack
// many of these.
func Diff(field string, primary, shadow any) FieldDiff {
	return FieldDiff{Field: field, Primary: primary, Shadow: shadow}
}

// Verifier runs shadow replays as detached tasks. A nil Verifier is valid
// and drops every sample, which is how stable and migrated modes run.
type Verifier struct {
	service string
	logger  *slog.Logger
	metrics *metrics.Metrics
	stats   *Stats
	timeout time.Duration

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewVerifier builds a verifier for one service. stats may be shared with a
// diagnostics endpoint.
func NewVerifier(service string, logger *slog.Logger, m *metrics.Metrics, stats *Stats) *Verifier {
	if logger == nil {
		logger = slog.Default()
	}
	if stats == nil {
		stats = NewStats()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Verifier{
		service: service,
		logger:  logger.With("component", "verifier", "service", service),
		metrics: m,
		stats:   stats,
		timeout: defaultVerifyTimeout,
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Verify schedules one shadow replay. check replays the write against the
// shadow repository and reports differing fields. The task never blocks the
// caller; its panics and errors are counted as mismatches and logged, never
// propagated.
func (v *Verifier) Verify(op string, check func(ctx context.Context) ([]FieldDiff, error)) {
	if v == nil {
		return
	}
	v.wg.Add(1)
	go func() {
		defer v.wg.Done()

		ctx, cancel := context.WithTimeout(v.ctx, v.timeout)
		defer cancel()

		diffs, err := v.runCheck(ctx, op, check)
		matched := err == nil && len(diffs) == 0
		total := v.stats.Record(matched)
		v.metrics.ObserveVerifierSample(v.service, matched)

		if !matched {
			attrs := []any{"op", op}
			if err != nil {
				attrs = append(attrs, "error", err)
			}
			for _, d := range diffs {
				attrs = append(attrs, "field."+d.Field, fmt.Sprintf("%v != %v", d.Primary, d.Shadow))
			}
			v.logger.Warn("consistency mismatch", attrs...)
		}

		if total%summaryEvery == 0 {
			snap := v.stats.Snapshot()
			v.logger.Info("verification summary",
				"total", snap.Total,
				"matched", snap.Matched,
				"mismatched", snap.Mismatched,
				"match_rate", snap.MatchRate)
		}
	}()
}

// runCheck isolates the recover so a panicking comparison is just another
// failed sample.
func (v *Verifier) runCheck(ctx context.Context, op string, check func(ctx context.Context) ([]FieldDiff, error)) (diffs []FieldDiff, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("verifier panic in %s: %v", op, r)
		}
	}()
	return check(ctx)
}

// Stats returns the running counters. Safe on a nil Verifier.
func (v *Verifier) Stats() StatsSnapshot {
	if v == nil {
		return StatsSnapshot{}
	}
	return v.stats.Snapshot()
}

// Drain waits for in-flight verification tasks. If ctx expires first the
// remaining tasks are cancelled and awaited, so none outlive the process
// teardown.
func (v *Verifier) Drain(ctx context.Context) error {
	if v == nil {
		return nil
	}
	defer v.cancel()

	done := make(chan struct{})
	go func() {
		v.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		v.cancel()
		<-done
		return ctx.Err()
	}
}
