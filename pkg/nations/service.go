package nations

import (
	"context"
	"log/slog"
	"time"

	"github.com/small-frappuccino/ally/pkg/cache"
	"github.com/small-frappuccino/ally/pkg/pnw"
	"github.com/small-frappuccino/ally/pkg/storage"
)

// Store is the slice of the persistent store the nation pipeline needs.
// *storage.Store satisfies it.
type Store interface {
	NationByID(nationID int) (*storage.Nation, error)
	UpsertNation(n *storage.Nation) error
	VerificationByNationID(nationID int) (*storage.Verification, error)
	VerificationByUsername(discordUsername string) (*storage.Verification, error)
	UpsertVerification(v *storage.Verification) error
}

// Service is the nation refresh pipeline: store-first reads with a freshness
// window, falling back to the PnW API and replacing the stored record.
type Service struct {
	store Store
	api   pnw.Client
	now   func() time.Time
}

// NewService builds a nation service over the given store and API client.
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
	// ValidityMinutes is the freshness tolerance; <= 0 applies
	// cache.DefaultValidityMinutes.
	ValidityMinutes int

	// ForceRefresh skips the store check and always hits the API.
	ForceRefresh bool
}

func (o RefreshOptions) validity() int {
	if o.ValidityMinutes <= 0 {
		return cache.DefaultValidityMinutes
	}
	return o.ValidityMinutes
}

// NationByID returns a fresh-enough nation record, refreshing from the PnW
// API when the stored copy is stale or absent.
//
// A nil record with a nil error means the nation could not be refreshed:
// either the API call failed or it returned no rows. Callers must not read
// that as "the nation does not exist". Store errors propagate; there is no
// fallback once the store is unreachable.
func (s *Service) NationByID(ctx context.Context, nationID int, opts RefreshOptions) (*storage.Nation, error) {
	slog.Debug("nation lookup", "nation_id", nationID, "validity_mins", opts.validity(), "force", opts.ForceRefresh)

	if !opts.ForceRefresh {
		stored, err := s.store.NationByID(nationID)
		if err != nil {
			return nil, err
		}
		if stored != nil && cache.IsFresh(stored.LastSyncedAt, opts.validity()) {
			slog.Debug("nation store hit", "nation_id", nationID, "last_synced_at", stored.LastSyncedAt)
			return stored, nil
		}
	}

	raw, err := s.api.QueryNations(ctx, []int{nationID})
	if err != nil {
		slog.Error("nation refresh failed", "nation_id", nationID, "error", err)
		return nil, nil
	}
	if len(raw) == 0 {
		slog.Debug("nation not found upstream", "nation_id", nationID)
		return nil, nil
	}
	// The id filter should match at most one nation; if the API ever returns
	// more, only the first row is used.
	n := nationFromRaw(raw[0], nationID, s.now())

	if err := s.store.UpsertNation(n); err != nil {
		return nil, err
	}
	slog.Debug("nation refreshed", "nation_id", nationID)
	return n, nil
}
