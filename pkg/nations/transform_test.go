package nations

import (
	"testing"
	"time"

	"github.com/small-frappuccino/ally/pkg/pnw"
)

func TestNationFromRawDefaults(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	n := nationFromRaw(pnw.RawNation{}, 6, now)
	if n.NationID != 6 {
		t.Fatalf("missing id must fall back to the requested id, got %d", n.NationID)
	}
	if n.NationName != "" || n.LeaderName != "" || n.DiscordHandle != "" {
		t.Fatalf("missing strings must default empty: %+v", n)
	}
	if n.Soldiers != 0 || n.Tanks != 0 || n.Aircraft != 0 || n.Ships != 0 || n.Spies != 0 {
		t.Fatalf("missing military counts must default to 0: %+v", n)
	}
	if n.AllianceID != 0 || n.AllianceName != "" {
		t.Fatalf("missing alliance must default empty: %+v", n)
	}
	if !n.LastActive.IsZero() {
		t.Fatalf("missing last_active must be zero time")
	}
	if !n.LastSyncedAt.Equal(now) {
		t.Fatalf("last_synced_at must be stamped with now, got %v", n.LastSyncedAt)
	}
}

func TestNationFromRawFullRecord(t *testing.T) {
	now := time.Now().UTC()
	score := 1234.5
	infra := 2000.0
	active := "2025-05-30T10:00:00+00:00"
	raw := pnw.RawNation{
		ID:               strp("6"),
		NationName:       strp("Testopia"),
		LeaderName:       strp("Tester"),
		Discord:          strp("alice"),
		AlliancePosition: strp("OFFICER"),
		Alliance:         &pnw.RawAllianceRef{ID: strp("790"), Name: strp("Arrgh")},
		NumCities:        intp(2),
		Score:            &score,
		Soldiers:         intp(100),
		Tanks:            intp(50),
		LastActive:       &active,
		Cities: []pnw.RawCity{
			{ID: strp("1"), Name: strp("Capital"), Infrastructure: &infra},
			{ID: strp("2")},
		},
	}

	n := nationFromRaw(raw, 6, now)
	if n.NationID != 6 || n.NationName != "Testopia" || n.DiscordHandle != "alice" {
		t.Fatalf("unexpected nation: %+v", n)
	}
	if n.AllianceID != 790 || n.AllianceName != "Arrgh" || n.AlliancePosition != "OFFICER" {
		t.Fatalf("alliance ref not mapped: %+v", n)
	}
	if n.Score != 1234.5 || n.Soldiers != 100 || n.Tanks != 50 {
		t.Fatalf("counts not mapped: %+v", n)
	}
	if len(n.Cities) != 2 || n.Cities[0].Infrastructure != 2000 || n.Cities[1].Name != "" {
		t.Fatalf("cities not mapped: %+v", n.Cities)
	}
	if n.LastActive.IsZero() {
		t.Fatalf("last_active should have parsed")
	}
}

func TestParseAPITimeLayouts(t *testing.T) {
	cases := []string{
		"2025-05-30T10:00:00Z",
		"2025-05-30 10:00:00+00:00",
		"2025-05-30 10:00:00",
	}
	for _, c := range cases {
		if parseAPITime(&c).IsZero() {
			t.Fatalf("failed to parse %q", c)
		}
	}

	garbage := "not-a-time"
	if !parseAPITime(&garbage).IsZero() {
		t.Fatalf("garbage input must map to zero time")
	}
	if !parseAPITime(nil).IsZero() {
		t.Fatalf("nil input must map to zero time")
	}
}
