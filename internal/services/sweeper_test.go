package services

import (
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestIdleSweeper_RunOnce(t *testing.T) {
	now := time.Date(2026, 2, 16, 10, 0, 0, 0, time.UTC)
	var seen time.Time

	s := NewIdleSweeper(func(at time.Time) int {
		seen = at
		return 2
	}, 0)

	if s.interval != defaultSweepInterval {
		t.Fatalf("expected default interval, got %s", s.interval)
	}
	if got := s.runOnce(now); got != 2 {
		t.Fatalf("expected 2 removed sessions, got %d", got)
	}
	if !seen.Equal(now) {
		t.Fatalf("expected sweep to receive the tick time")
	}
}

func TestIdleSweeper_StopIsIdempotent(t *testing.T) {
	s := NewIdleSweeper(func(time.Time) int { return 0 }, time.Hour)
	s.Start()
	s.Stop()
	s.Stop()
}

func TestSweepInterval(t *testing.T) {
	tests := []struct {
		idle     time.Duration
		expected time.Duration
	}{
		{10 * time.Second, 10 * time.Second},
		{2 * time.Minute, 30 * time.Second},
		{2 * time.Hour, 5 * time.Minute},
	}

	for _, tc := range tests {
		if got := SweepInterval(tc.idle); got != tc.expected {
			t.Errorf("SweepInterval(%s): expected %s, got %s", tc.idle, tc.expected, got)
		}
	}
}

func TestUpdateChannel(t *testing.T) {
	id := uuid.MustParse("7d444840-9dc0-11d1-b245-5ffdce74fad2")
	if got := UpdateChannel(id); got != "tutor_updates:7d444840-9dc0-11d1-b245-5ffdce74fad2" {
		t.Errorf("Expected channel name with session id, got %q", got)
	}
}
