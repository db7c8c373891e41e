package composite

import (
	"context"
	"fmt"

	"pointsbot/internal/store"
)

type actionRepo struct {
	*deps
}

// Action kinds with dedicated stats handling. Anything else only refreshes
// the last-active timestamp.
const (
	ActionStartSession = "start_session"
	ActionNewSession   = "new_session"
	ActionSendMessage  = "send_message"
	ActionTextMessage  = "text_message"
	ActionImageMessage = "image_message"
)

// Record appends one action log entry and updates activity stats. The log
// insert is authoritative; the stats update is deliberately best-effort, a
// lost counter bump is acceptable while a lost action row is not.
func (r *actionRepo) Record(ctx context.Context, p ActionParams) (*store.ActionRecord, error) {
	status := p.Status
	if status == "" {
		status = "completed"
	}

	rec, err := r.tables.Actions.Create(ctx, store.ActionRecord{
		ID:         r.newID(),
		UserID:     p.UserID,
		SessionID:  p.SessionID,
		ActionType: p.Kind,
		Parameters: p.Parameters,
		Context:    p.Context,
		Status:     status,
		PointsCost: p.PointsCost,
		CreatedAt:  r.now(),
	})
	if err != nil {
		return nil, fmt.Errorf("record action: %w", err)
	}

	if err := r.applyStats(ctx, p.UserID, p.Kind); err != nil {
		r.logger.Warn("stats update failed", "user_id", p.UserID, "action", p.Kind, "error", err)
		r.metrics.IncError("action_stats")
	}

	return rec, nil
}

func (r *actionRepo) ListByUser(ctx context.Context, userID string, limit int) ([]store.ActionRecord, error) {
	recs, err := r.tables.Actions.ListByUser(ctx, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list actions: %w", err)
	}
	return recs, nil
}

// applyStats maps an action kind onto the matching counter.
func (r *actionRepo) applyStats(ctx context.Context, userID, kind string) error {
	switch kind {
	case ActionStartSession, ActionNewSession:
		return r.tables.Stats.IncrementSessionCount(ctx, userID)
	case ActionSendMessage, ActionTextMessage, ActionImageMessage:
		return r.tables.Stats.IncrementMessageCount(ctx, userID, 1)
	default:
		return r.tables.Stats.TouchLastActive(ctx, userID)
	}
}
