package status_test

import (
	"testing"
	"time"

	"tenderscout/sync-service/internal/status"
)

// ── Parse ──────────────────────────────────────────────────────────────────

func TestParse_ValidValues(t *testing.T) {
	valid := []string{"open", "closing_soon", "closed"}
	for _, s := range valid {
		got, err := status.Parse(s)
		if err != nil {
			t.Errorf("Parse(%q) returned unexpected error: %v", s, err)
		}
		if string(got) != s {
			t.Errorf("Parse(%q) = %q, want %q", s, got, s)
		}
	}
}

func TestParse_InvalidValues(t *testing.T) {
	for _, s := range []string{"", "OPEN", "awarded", " open"} {
		if _, err := status.Parse(s); err == nil {
			t.Errorf("Parse(%q) expected error, got nil", s)
		}
	}
}

// ── IsTransitionAllowed ────────────────────────────────────────────────────

func TestIsTransitionAllowed_Forward(t *testing.T) {
	cases := []struct {
		from status.Status
		to   status.Status
	}{
		{status.StatusOpen, status.StatusClosingSoon},
		{status.StatusClosingSoon, status.StatusClosed},
		{status.StatusOpen, status.StatusClosed}, // lazy catch-up
	}
	for _, c := range cases {
		if !status.IsTransitionAllowed(c.from, c.to) {
			t.Errorf("IsTransitionAllowed(%s → %s) should be true", c.from, c.to)
		}
	}
}

func TestIsTransitionAllowed_Backwards(t *testing.T) {
	cases := []struct {
		from status.Status
		to   status.Status
	}{
		{status.StatusClosingSoon, status.StatusOpen},
		{status.StatusClosed, status.StatusOpen},
		{status.StatusClosed, status.StatusClosingSoon},
	}
	for _, c := range cases {
		if status.IsTransitionAllowed(c.from, c.to) {
			t.Errorf("IsTransitionAllowed(%s → %s) should be false (backwards)", c.from, c.to)
		}
	}
}

func TestIsTransitionAllowed_Self(t *testing.T) {
	all := []status.Status{status.StatusOpen, status.StatusClosingSoon, status.StatusClosed}
	for _, s := range all {
		if status.IsTransitionAllowed(s, s) {
			t.Errorf("IsTransitionAllowed(%s → %s) should be false (self)", s, s)
		}
	}
}

// closed is terminal — no outgoing transitions regardless of target.
func TestIsTransitionAllowed_FromClosed(t *testing.T) {
	targets := []status.Status{status.StatusOpen, status.StatusClosingSoon, status.StatusClosed}
	for _, to := range targets {
		if status.IsTransitionAllowed(status.StatusClosed, to) {
			t.Errorf("IsTransitionAllowed(closed → %s) should be false (terminal state)", to)
		}
	}
}

// ── ForDeadline ────────────────────────────────────────────────────────────

func TestForDeadline_Derivation(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	in3d := now.Add(3 * 24 * time.Hour)
	in10d := now.Add(10 * 24 * time.Hour)
	past := now.Add(-24 * time.Hour)

	cases := []struct {
		name     string
		current  status.Status
		deadline *time.Time
		want     status.Status
	}{
		{"open far deadline stays open", status.StatusOpen, &in10d, status.StatusOpen},
		{"open within horizon", status.StatusOpen, &in3d, status.StatusClosingSoon},
		{"open past deadline catches up to closed", status.StatusOpen, &past, status.StatusClosed},
		{"closing_soon past deadline", status.StatusClosingSoon, &past, status.StatusClosed},
		{"closing_soon far deadline never reverts", status.StatusClosingSoon, &in10d, status.StatusClosingSoon},
		{"nil deadline untouched", status.StatusOpen, nil, status.StatusOpen},
		{"nil deadline untouched closing_soon", status.StatusClosingSoon, nil, status.StatusClosingSoon},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got := status.ForDeadline(c.current, c.deadline, now)
			if got != c.want {
				t.Errorf("ForDeadline(%s, %v) = %s, want %s", c.current, c.deadline, got, c.want)
			}
		})
	}
}

// A deadline exactly at now counts as passed.
func TestForDeadline_DeadlineAtNow(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	if got := status.ForDeadline(status.StatusOpen, &now, now); got != status.StatusClosed {
		t.Errorf("ForDeadline(open, deadline == now) = %s, want closed", got)
	}
}

// A deadline exactly at the horizon boundary is closing_soon.
func TestForDeadline_HorizonBoundary(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	boundary := now.Add(status.ClosingSoonHorizon)
	if got := status.ForDeadline(status.StatusOpen, &boundary, now); got != status.StatusClosingSoon {
		t.Errorf("ForDeadline(open, deadline at horizon) = %s, want closing_soon", got)
	}
}

// Status never regresses across repeated passes, whatever the deadline does.
func TestForDeadline_Monotonic(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	future := now.Add(30 * 24 * time.Hour)

	deadlines := []*time.Time{nil, &future, &now}
	for _, d := range deadlines {
		if got := status.ForDeadline(status.StatusClosed, d, now); got != status.StatusClosed {
			t.Errorf("ForDeadline(closed, %v) = %s, closed must be terminal", d, got)
		}
	}

	// Repeated evaluation is idempotent once a state is reached.
	past := now.Add(-time.Hour)
	first := status.ForDeadline(status.StatusOpen, &past, now)
	second := status.ForDeadline(first, &past, now)
	if first != status.StatusClosed || second != status.StatusClosed {
		t.Errorf("repeated passes: got %s then %s, want closed/closed", first, second)
	}
}
