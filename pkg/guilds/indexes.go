package guilds

import "github.com/small-frappuccino/ally/pkg/storage"

// Derived index reads. Each is a cache-through over a query that scans every
// guild document, so hits are served from the cache for the index TTL rather
// than the shorter per-guild TTL.

// AllReferencedAllianceIDs returns the set of alliance ids referenced by any
// guild, excluding guilds without one.
func (s *Service) AllReferencedAllianceIDs() ([]int, error) {
	if v, ok := s.cache.Get(keyAllAllianceIDs); ok {
		if ids, ok := v.([]int); ok {
			return ids, nil
		}
	}

	ids, err := s.store.DistinctAllianceIDs()
	if err != nil {
		return nil, err
	}
	_ = s.cache.Set(keyAllAllianceIDs, ids, s.indexTTL)
	return ids, nil
}

// AllReferencedNationIDs returns the set of nation ids referenced by any
// managed channel across all guilds.
func (s *Service) AllReferencedNationIDs() ([]int, error) {
	if v, ok := s.cache.Get(keyAllNationIDs); ok {
		if ids, ok := v.([]int); ok {
			return ids, nil
		}
	}

	ids, err := s.store.DistinctManagedNationIDs()
	if err != nil {
		return nil, err
	}
	_ = s.cache.Set(keyAllNationIDs, ids, s.indexTTL)
	return ids, nil
}

// GuildsReferencingNation returns the first guild whose managed channels
// reference the nation, with the matching channel ids, or nil when no guild
// does. Misses on unknown nations are not cached.
func (s *Service) GuildsReferencingNation(nationID int) (*storage.GuildChannelRefs, error) {
	key := nationGuildKey(nationID)
	if v, ok := s.cache.Get(key); ok {
		if ref, ok := v.(*storage.GuildChannelRefs); ok {
			return ref, nil
		}
	}

	refs, err := s.store.GuildsReferencingNation(nationID)
	if err != nil {
		return nil, err
	}
	if len(refs) == 0 {
		return nil, nil
	}
	ref := &refs[0]
	_ = s.cache.Set(key, ref, s.indexTTL)
	return ref, nil
}
