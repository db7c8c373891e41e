// Package migration selects which composite repository implementation is
// authoritative for each service and runs the shadow verification protocol
// that validates the new schema against live traffic before cutover.
package migration

import "fmt"

// Mode is a per-service migration stage. It is fixed at construction; a
// stage change requires a restart.
type Mode string

const (
	// ModeStable routes everything to the legacy repository.
	ModeStable Mode = "stable"

	// ModeParallelTest keeps the legacy repository authoritative and
	// replays each successful write against the new repository in the
	// background, comparing results.
	ModeParallelTest Mode = "parallel_test"

	// ModeMigrated routes everything to the new repository.
	ModeMigrated Mode = "migrated"
)

// ParseMode validates a configured mode value. Unknown values are a startup
// error, never a silent default.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeStable, ModeParallelTest, ModeMigrated:
		return Mode(s), nil
	default:
		return "", fmt.Errorf("migration: unknown mode %q (want stable, parallel_test, or migrated)", s)
	}
}

// Modes holds the stage of each service.
type Modes struct {
	Users    Mode
	Points   Mode
	Sessions Mode
	Actions  Mode
}

// ParseModes validates all four service stages at once.
func ParseModes(users, points, sessions, actions string) (Modes, error) {
	var m Modes
	var err error
	if m.Users, err = ParseMode(users); err != nil {
		return Modes{}, fmt.Errorf("users service: %w", err)
	}
	if m.Points, err = ParseMode(points); err != nil {
		return Modes{}, fmt.Errorf("points service: %w", err)
	}
	if m.Sessions, err = ParseMode(sessions); err != nil {
		return Modes{}, fmt.Errorf("sessions service: %w", err)
	}
	if m.Actions, err = ParseMode(actions); err != nil {
		return Modes{}, fmt.Errorf("actions service: %w", err)
	}
	return m, nil
}
