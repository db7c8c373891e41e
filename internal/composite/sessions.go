package composite

import (
	"context"
	"fmt"

	"pointsbot/internal/store"
)

type sessionRepo struct {
	*deps
}

// Open creates the association row, the detail record, and bumps the user's
// session counter. The counter increment runs last so its failure unwinds
// both row creations.
func (r *sessionRepo) Open(ctx context.Context, userID, sessionID string) (*SessionInfo, error) {
	var info *SessionInfo

	err := r.run(ctx, "sessions.open", func(s *Scope) error {
		now := r.now()
		sess, err := r.tables.Sessions.Create(ctx, store.Session{
			ID:        r.newID(),
			UserID:    userID,
			SessionID: sessionID,
			CreatedAt: now,
		})
		if err != nil {
			if store.IsConflict(err) {
				return ErrAlreadyExists
			}
			return fmt.Errorf("create session: %w", err)
		}
		s.OnRollback("delete session", func(ctx context.Context) error {
			return r.tables.Sessions.Delete(ctx, sess.ID)
		})

		rec, err := r.tables.SessionRecords.Create(ctx, store.SessionRecord{
			ID:        r.newID(),
			UserID:    userID,
			SessionID: sessionID,
			StartedAt: now,
		})
		if err != nil {
			return fmt.Errorf("create session record: %w", err)
		}
		s.OnRollback("delete session record", func(ctx context.Context) error {
			return r.tables.SessionRecords.Delete(ctx, rec.ID)
		})

		if err := r.tables.Stats.IncrementSessionCount(ctx, userID); err != nil {
			return fmt.Errorf("increment session count: %w", err)
		}

		info = &SessionInfo{Session: *sess, Record: *rec}
		return nil
	})
	if err != nil {
		return nil, err
	}

	r.logger.Info("session opened", "user_id", userID, "session_id", sessionID)
	return info, nil
}

// Close ends an open session, stamps its duration, and optionally fixes the
// final message count reported by the caller. Closing twice returns
// ErrSessionAlreadyClosed and leaves the stored end time alone.
func (r *sessionRepo) Close(ctx context.Context, sessionID string, messageCount *int64, summary *string) (*SessionInfo, error) {
	unlock := r.locks.Lock("session:" + sessionID)
	defer unlock()

	rec, err := r.tables.SessionRecords.GetBySessionID(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("get session record: %w", err)
	}
	if rec.EndedAt != nil {
		return nil, ErrSessionAlreadyClosed
	}

	err = r.run(ctx, "sessions.close", func(s *Scope) error {
		endedAt := r.now()
		duration := int64(endedAt.Sub(rec.StartedAt).Seconds())
		if duration < 0 {
			duration = 0
		}
		patch := store.SessionRecordPatch{
			EndedAt:      &endedAt,
			DurationSec:  &duration,
			MessageCount: messageCount,
			Summary:      summary,
		}
		if err := r.tables.SessionRecords.Update(ctx, rec.ID, patch); err != nil {
			return fmt.Errorf("close session record: %w", err)
		}
		prevCount := rec.MessageCount
		s.OnRollback("reopen session record", func(ctx context.Context) error {
			return r.tables.SessionRecords.Update(ctx, rec.ID, store.SessionRecordPatch{
				MessageCount: &prevCount,
				ClearEnded:   true,
			})
		})

		if err := r.tables.Stats.TouchLastActive(ctx, rec.UserID); err != nil {
			return fmt.Errorf("touch last active: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	r.logger.Info("session closed", "user_id", rec.UserID, "session_id", sessionID)
	return r.GetInfo(ctx, sessionID)
}

// Touch adds messages to the session record and the user's lifetime counter.
func (r *sessionRepo) Touch(ctx context.Context, sessionID string, messages int64) error {
	unlock := r.locks.Lock("session:" + sessionID)
	defer unlock()

	rec, err := r.tables.SessionRecords.GetBySessionID(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("get session record: %w", err)
	}
	if rec.EndedAt != nil {
		return ErrSessionAlreadyClosed
	}

	return r.run(ctx, "sessions.touch", func(s *Scope) error {
		prev := rec.MessageCount
		next := prev + messages
		if err := r.tables.SessionRecords.Update(ctx, rec.ID, store.SessionRecordPatch{MessageCount: &next}); err != nil {
			return fmt.Errorf("update message count: %w", err)
		}
		s.OnRollback("restore message count", func(ctx context.Context) error {
			return r.tables.SessionRecords.Update(ctx, rec.ID, store.SessionRecordPatch{MessageCount: &prev})
		})

		if err := r.tables.Stats.IncrementMessageCount(ctx, rec.UserID, messages); err != nil {
			return fmt.Errorf("increment message count: %w", err)
		}
		return nil
	})
}

// GetInfo returns the merged session read shape.
func (r *sessionRepo) GetInfo(ctx context.Context, sessionID string) (*SessionInfo, error) {
	sess, err := r.tables.Sessions.GetBySessionID(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	rec, err := r.tables.SessionRecords.GetBySessionID(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("get session record: %w", err)
	}
	return &SessionInfo{Session: *sess, Record: *rec}, nil
}
