package cache

import (
	"testing"
	"time"
)

func TestIsFreshAt(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	cases := []struct {
		name        string
		lastUpdated time.Time
		validity    int
		want        bool
	}{
		{"zero timestamp never fresh", time.Time{}, 5, false},
		{"zero timestamp never fresh even with huge window", time.Time{}, 100000, false},
		{"just synced", now, 5, true},
		{"inside window", now.Add(-4 * time.Minute), 5, true},
		{"exactly at boundary", now.Add(-5 * time.Minute), 5, true},
		{"past boundary", now.Add(-5*time.Minute - time.Second), 5, false},
		{"zero validity only accepts same instant", now.Add(-time.Second), 0, false},
		{"zero validity same instant", now, 0, true},
		{"wide window", now.Add(-50 * time.Minute), 60, true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := isFreshAt(now, tc.lastUpdated, tc.validity); got != tc.want {
				t.Fatalf("isFreshAt(%v, %d) = %v, want %v", tc.lastUpdated, tc.validity, got, tc.want)
			}
		})
	}
}

func TestIsFreshUsesWallClock(t *testing.T) {
	if !IsFresh(time.Now(), DefaultValidityMinutes) {
		t.Fatalf("a record synced now must be fresh")
	}
	if IsFresh(time.Now().Add(-time.Hour), DefaultValidityMinutes) {
		t.Fatalf("an hour-old record must be stale with the default window")
	}
}
