package migration

import "testing"

func TestParseMode(t *testing.T) {
	for _, valid := range []string{"stable", "parallel_test", "migrated"} {
		m, err := ParseMode(valid)
		if err != nil {
			t.Fatalf("parse %q: %v", valid, err)
		}
		if string(m) != valid {
			t.Fatalf("parse %q: got %q", valid, m)
		}
	}

	for _, invalid := range []string{"", "Stable", "parallel", "shadow", "migrating"} {
		if _, err := ParseMode(invalid); err == nil {
			t.Fatalf("expected error for %q", invalid)
		}
	}
}

func TestParseModesFailsFast(t *testing.T) {
	m, err := ParseModes("stable", "parallel_test", "migrated", "stable")
	if err != nil {
		t.Fatalf("parse modes: %v", err)
	}
	if m.Points != ModeParallelTest || m.Sessions != ModeMigrated {
		t.Fatalf("unexpected modes: %+v", m)
	}

	if _, err := ParseModes("stable", "bogus", "stable", "stable"); err == nil {
		t.Fatal("expected error for invalid points mode")
	}
}

func TestStatsCounters(t *testing.T) {
	s := NewStats()
	s.Record(true)
	s.Record(true)
	s.Record(false)

	snap := s.Snapshot()
	if snap.Total != 3 || snap.Matched != 2 || snap.Mismatched != 1 {
		t.Fatalf("unexpected snapshot: %+v", snap)
	}
	if snap.MatchRate < 0.66 || snap.MatchRate > 0.67 {
		t.Fatalf("unexpected match rate: %v", snap.MatchRate)
	}
}
