package migration

import (
	"context"
	"errors"
	"log/slog"

	"pointsbot/internal/composite"
	"pointsbot/internal/metrics"
)

// Services is the repository set the rest of the process talks to. Each
// field is the legacy implementation, the new one, or a parallel-test
// decorator, chosen once at startup.
type Services struct {
	Users    composite.UserRepository
	Points   composite.PointsRepository
	Sessions composite.SessionRepository
	Actions  composite.ActionRepository

	verifiers map[string]*Verifier
}

// Select wires each service to its configured stage. legacy and next are
// complete repository bundles over the old and new schema.
func Select(modes Modes, legacy, next *composite.Repositories, logger *slog.Logger, m *metrics.Metrics) *Services {
	s := &Services{verifiers: map[string]*Verifier{}}

	switch modes.Users {
	case ModeMigrated:
		s.Users = next.Users
	case ModeParallelTest:
		v := NewVerifier("users", logger, m, NewStats())
		s.verifiers["users"] = v
		s.Users = &verifiedUsers{primary: legacy.Users, shadow: next.Users, v: v}
	default:
		s.Users = legacy.Users
	}

	switch modes.Points {
	case ModeMigrated:
		s.Points = next.Points
	case ModeParallelTest:
		v := NewVerifier("points", logger, m, NewStats())
		s.verifiers["points"] = v
		s.Points = &verifiedPoints{primary: legacy.Points, shadow: next.Points, v: v}
	default:
		s.Points = legacy.Points
	}

	switch modes.Sessions {
	case ModeMigrated:
		s.Sessions = next.Sessions
	case ModeParallelTest:
		v := NewVerifier("sessions", logger, m, NewStats())
		s.verifiers["sessions"] = v
		s.Sessions = &verifiedSessions{primary: legacy.Sessions, shadow: next.Sessions, v: v}
	default:
		s.Sessions = legacy.Sessions
	}

	switch modes.Actions {
	case ModeMigrated:
		s.Actions = next.Actions
	case ModeParallelTest:
		v := NewVerifier("actions", logger, m, NewStats())
		s.verifiers["actions"] = v
		s.Actions = &verifiedActions{primary: legacy.Actions, shadow: next.Actions, v: v}
	default:
		s.Actions = legacy.Actions
	}

	return s
}

// VerifierStats snapshots every active verifier, keyed by service name.
// Services not in parallel_test mode are absent.
func (s *Services) VerifierStats() map[string]StatsSnapshot {
	out := make(map[string]StatsSnapshot, len(s.verifiers))
	for name, v := range s.verifiers {
		out[name] = v.Stats()
	}
	return out
}

// Drain waits for every in-flight verification task before shutdown.
func (s *Services) Drain(ctx context.Context) error {
	var errs []error
	for _, v := range s.verifiers {
		if err := v.Drain(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
