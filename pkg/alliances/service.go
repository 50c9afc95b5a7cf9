package alliances

import (
	"context"
	"log/slog"
	"time"

	"github.com/small-frappuccino/ally/pkg/cache"
	"github.com/small-frappuccino/ally/pkg/pnw"
	"github.com/small-frappuccino/ally/pkg/storage"
)

// Store is the slice of the persistent store the alliance pipeline needs.
// *storage.Store satisfies it.
type Store interface {
	AllianceByID(allianceID int) (*storage.Alliance, error)
	UpsertAlliance(a *storage.Alliance) error
}

// Service is the alliance refresh pipeline. It follows the same store-first
// algorithm as the nation pipeline with the alliance transform.
type Service struct {
	store Store
	api   pnw.Client
	now   func() time.Time
}

// NewService builds an alliance service over the given store and API client.
func NewService(store Store, api pnw.Client) *Service {
	return &Service{
		store: store,
		api:   api,
		now:   time.Now,
	}
}

// RefreshOptions tune one lookup. The zero value means "default validity
// window, no forced refresh".
type RefreshOptions struct {
	ValidityMinutes int
	ForceRefresh    bool
}

func (o RefreshOptions) validity() int {
	if o.ValidityMinutes <= 0 {
		return cache.DefaultValidityMinutes
	}
	return o.ValidityMinutes
}

// AllianceByID returns a fresh-enough alliance record, refreshing from the
// PnW API when the stored copy is stale or absent. A nil record with a nil
// error means the alliance could not be refreshed; store errors propagate.
func (s *Service) AllianceByID(ctx context.Context, allianceID int, opts RefreshOptions) (*storage.Alliance, error) {
	slog.Debug("alliance lookup", "alliance_id", allianceID, "validity_mins", opts.validity(), "force", opts.ForceRefresh)

	if !opts.ForceRefresh {
		stored, err := s.store.AllianceByID(allianceID)
		if err != nil {
			return nil, err
		}
		if stored != nil && cache.IsFresh(stored.LastSyncedAt, opts.validity()) {
			slog.Debug("alliance store hit", "alliance_id", allianceID, "last_synced_at", stored.LastSyncedAt)
			return stored, nil
		}
	}

	raw, err := s.api.QueryAlliances(ctx, []int{allianceID})
	if err != nil {
		slog.Error("alliance refresh failed", "alliance_id", allianceID, "error", err)
		return nil, nil
	}
	if len(raw) == 0 {
		slog.Debug("alliance not found upstream", "alliance_id", allianceID)
		return nil, nil
	}
	a := allianceFromRaw(raw[0], allianceID, s.now())

	if err := s.store.UpsertAlliance(a); err != nil {
		return nil, err
	}
	slog.Debug("alliance refreshed", "alliance_id", allianceID)
	return a, nil
}

// LeadershipPosition returns the alliance's leadership position: the one
// flagged as leader, or nil when the alliance has no positions.
func LeadershipPosition(a *storage.Alliance) *storage.AlliancePosition {
	if a == nil {
		return nil
	}
	for i := range a.Positions {
		if a.Positions[i].IsLeader {
			return &a.Positions[i]
		}
	}
	return nil
}
