package nations

import (
	"strconv"
	"time"

	"github.com/small-frappuccino/ally/pkg/pnw"
	"github.com/small-frappuccino/ally/pkg/storage"
)

// nationFromRaw maps a raw API nation onto the canonical stored shape.
// Missing optional fields get explicit defaults: empty strings for names and
// handles, zero for military counts and scores, zero time for last_active.
func nationFromRaw(raw pnw.RawNation, requestedID int, now time.Time) *storage.Nation {
	n := &storage.Nation{
		NationID:         atoiOr(raw.ID, requestedID),
		NationName:       strOr(raw.NationName, ""),
		LeaderName:       strOr(raw.LeaderName, ""),
		DiscordHandle:    strOr(raw.Discord, ""),
		AlliancePosition: strOr(raw.AlliancePosition, ""),
		NumCities:        intOr(raw.NumCities, 0),
		Score:            floatOr(raw.Score, 0),
		Soldiers:         intOr(raw.Soldiers, 0),
		Tanks:            intOr(raw.Tanks, 0),
		Aircraft:         intOr(raw.Aircraft, 0),
		Ships:            intOr(raw.Ships, 0),
		Spies:            intOr(raw.Spies, 0),
		LastActive:       parseAPITime(raw.LastActive),
		LastSyncedAt:     now.UTC(),
	}

	if raw.Alliance != nil {
		n.AllianceID = atoiOr(raw.Alliance.ID, 0)
		n.AllianceName = strOr(raw.Alliance.Name, "")
	}
	for _, c := range raw.Cities {
		n.Cities = append(n.Cities, storage.City{
			ID:             atoiOr(c.ID, 0),
			Name:           strOr(c.Name, ""),
			Infrastructure: floatOr(c.Infrastructure, 0),
		})
	}

	return n
}

func strOr(p *string, def string) string {
	if p == nil {
		return def
	}
	return *p
}

func intOr(p *int, def int) int {
	if p == nil {
		return def
	}
	return *p
}

func floatOr(p *float64, def float64) float64 {
	if p == nil {
		return def
	}
	return *p
}

// atoiOr parses the API's string ids; numbers are transported as strings.
func atoiOr(p *string, def int) int {
	if p == nil {
		return def
	}
	id, err := strconv.Atoi(*p)
	if err != nil {
		return def
	}
	return id
}

var apiTimeLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05-07:00",
	"2006-01-02 15:04:05",
}

// parseAPITime tolerates the timestamp formats the API has been observed to
// emit; unparseable or absent values map to the zero time.
func parseAPITime(p *string) time.Time {
	if p == nil || *p == "" {
		return time.Time{}
	}
	for _, layout := range apiTimeLayouts {
		if t, err := time.Parse(layout, *p); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}
