package alliances

import (
	"sort"
	"strconv"
	"time"

	"github.com/small-frappuccino/ally/pkg/pnw"
	"github.com/small-frappuccino/ally/pkg/storage"
)

// allianceFromRaw maps a raw API alliance onto the canonical stored shape.
// Positions are sorted stable by rank level ascending before storage. When
// the API flags no position as leader, the highest-level position is treated
// as the leadership position.
func allianceFromRaw(raw pnw.RawAlliance, requestedID int, now time.Time) *storage.Alliance {
	a := &storage.Alliance{
		AllianceID:   atoiOr(raw.ID, requestedID),
		Name:         strOr(raw.Name),
		Acronym:      strOr(raw.Acronym),
		Color:        strOr(raw.Color),
		Score:        floatOr(raw.Score),
		DiscordLink:  strOr(raw.DiscordLink),
		LastSyncedAt: now.UTC(),
	}

	hasLeader := false
	for _, p := range raw.Positions {
		pos := storage.AlliancePosition{
			ID:       atoiOr(p.ID, 0),
			Name:     strOr(p.Name),
			Level:    intOr(p.PositionLevel),
			IsLeader: boolOr(p.Leader),
			Perms: storage.PositionPermissions{
				ViewBank:         boolOr(p.ViewBank),
				WithdrawBank:     boolOr(p.WithdrawBank),
				AcceptApplicants: boolOr(p.AcceptApplicants),
				RemoveMembers:    boolOr(p.RemoveApplicants),
			},
		}
		if pos.IsLeader {
			hasLeader = true
		}
		a.Positions = append(a.Positions, pos)
	}

	sort.SliceStable(a.Positions, func(i, j int) bool {
		return a.Positions[i].Level < a.Positions[j].Level
	})

	// No leader flag from the API: the highest rank level is the leadership
	// position. After the ascending sort that is the last entry.
	if !hasLeader && len(a.Positions) > 0 {
		a.Positions[len(a.Positions)-1].IsLeader = true
	}

	return a
}

func strOr(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

func intOr(p *int) int {
	if p == nil {
		return 0
	}
	return *p
}

func floatOr(p *float64) float64 {
	if p == nil {
		return 0
	}
	return *p
}

func boolOr(p *bool) bool {
	if p == nil {
		return false
	}
	return *p
}

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
