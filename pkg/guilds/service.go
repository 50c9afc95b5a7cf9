package guilds

import (
	"errors"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/small-frappuccino/ally/pkg/cache"
	"github.com/small-frappuccino/ally/pkg/storage"
)

// Store is the slice of the persistent store the guild layer needs.
// *storage.Store satisfies it.
type Store interface {
	GuildConfigByID(guildID string) (*storage.GuildConfig, error)
	UpsertGuildConfig(cfg *storage.GuildConfig) error
	UpdateManagedChannel(guildID, channelID string, mc storage.ManagedChannel) error
	DistinctAllianceIDs() ([]int, error)
	DistinctManagedNationIDs() ([]int, error)
	GuildsReferencingNation(nationID int) ([]storage.GuildChannelRefs, error)
}

// IndexInvalidation selects how the aggregate index caches react to guild
// writes.
type IndexInvalidation int

const (
	// InvalidateOnWrite drops the aggregate index entries whenever a guild
	// document changes, trading recomputation cost for immediate visibility.
	InvalidateOnWrite IndexInvalidation = iota

	// InvalidateOnTTLOnly lets aggregate entries age out on their own TTL.
	// A newly linked channel may not show up in the reverse lookups until
	// the index TTL elapses.
	InvalidateOnTTLOnly
)

// Cache TTLs. The aggregate indexes are rebuilt by scanning every guild
// document, so they are cached longer than the per-guild point lookup.
const (
	DefaultConfigTTL = 5 * time.Minute
	DefaultIndexTTL  = time.Hour
)

const (
	keyGuildConfigPrefix = "guild_config:"
	keyAllAllianceIDs    = "all_alliance_ids"
	keyAllNationIDs      = "all_nation_ids"
	keyNationGuildPrefix = "guild_by_managed_nation_id:"
)

var (
	// ErrGuildNotFound is returned for operations on a guild that has no
	// configuration document.
	ErrGuildNotFound = errors.New("guild is not configured")

	// ErrNoAuditConfig is returned when an audit operation targets a guild
	// without audit settings.
	ErrNoAuditConfig = errors.New("guild has no audit configuration")

	// ErrDuplicateAuditLevel is returned when an audit level name already exists.
	ErrDuplicateAuditLevel = errors.New("audit level name already exists")
)

// Service serves guild configuration through the key-value cache and keeps
// the derived reverse indexes consistent with guild writes. The store is the
// source of truth; the cache is a best-effort accelerator that any miss
// safely falls back from.
type Service struct {
	store        Store
	cache        cache.Cache
	configTTL    time.Duration
	indexTTL     time.Duration
	invalidation IndexInvalidation
	now          func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithConfigTTL overrides the per-guild document cache TTL.
func WithConfigTTL(ttl time.Duration) Option {
	return func(s *Service) { s.configTTL = ttl }
}

// WithIndexTTL overrides the aggregate index cache TTL.
func WithIndexTTL(ttl time.Duration) Option {
	return func(s *Service) { s.indexTTL = ttl }
}

// WithIndexInvalidation selects the aggregate invalidation policy.
func WithIndexInvalidation(mode IndexInvalidation) Option {
	return func(s *Service) { s.invalidation = mode }
}

// NewService builds a guild service over the given store and cache.
func NewService(store Store, c cache.Cache, opts ...Option) *Service {
	s := &Service{
		store:        store,
		cache:        c,
		configTTL:    DefaultConfigTTL,
		indexTTL:     DefaultIndexTTL,
		invalidation: InvalidateOnWrite,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func configKey(guildID string) string { return keyGuildConfigPrefix + guildID }

// cloneConfig deep-copies a guild document so cached state never shares
// memory with callers.
func cloneConfig(cfg *storage.GuildConfig) *storage.GuildConfig {
	if cfg == nil {
		return nil
	}
	out := *cfg
	out.Admins = append([]string(nil), cfg.Admins...)
	if cfg.ManagedChannels != nil {
		out.ManagedChannels = make(map[string]storage.ManagedChannel, len(cfg.ManagedChannels))
		for k, v := range cfg.ManagedChannels {
			out.ManagedChannels[k] = v
		}
	}
	if cfg.ApplicationSettings != nil {
		as := *cfg.ApplicationSettings
		if cfg.ApplicationSettings.Audit != nil {
			audit := *cfg.ApplicationSettings.Audit
			audit.MMRSlabs = append([]storage.AuditLevel(nil), cfg.ApplicationSettings.Audit.MMRSlabs...)
			as.Audit = &audit
		}
		if cfg.ApplicationSettings.Roles != nil {
			roles := *cfg.ApplicationSettings.Roles
			as.Roles = &roles
		}
		out.ApplicationSettings = &as
	}
	return &out
}

func nationGuildKey(nationID int) string {
	return keyNationGuildPrefix + strconv.Itoa(nationID)
}

// Config returns the guild configuration document, consulting the cache
// before the store. Unknown guilds return (nil, nil) and are not cached.
// The returned document is a detached copy; mutating it does not touch the
// cached one.
func (s *Service) Config(guildID string) (*storage.GuildConfig, error) {
	if v, ok := s.cache.Get(configKey(guildID)); ok {
		if cfg, ok := v.(*storage.GuildConfig); ok {
			return cloneConfig(cfg), nil
		}
	}

	cfg, err := s.store.GuildConfigByID(guildID)
	if err != nil {
		return nil, err
	}
	if cfg == nil {
		return nil, nil
	}
	_ = s.cache.Set(configKey(guildID), cfg, s.configTTL)
	return cloneConfig(cfg), nil
}

// PutConfig upserts the whole guild document, refreshes the direct cache
// entry and applies the configured index invalidation policy.
func (s *Service) PutConfig(cfg *storage.GuildConfig) error {
	if cfg == nil || cfg.GuildID == "" {
		return errors.New("guild config is empty")
	}
	if err := s.store.UpsertGuildConfig(cfg); err != nil {
		return err
	}
	_ = s.cache.Set(configKey(cfg.GuildID), cloneConfig(cfg), s.configTTL)
	s.invalidateAggregates()
	slog.Debug("guild config stored", "guild_id", cfg.GuildID, "managed_channels", len(cfg.ManagedChannels))
	return nil
}

// PatchManagedChannel writes a single managed-channel record, invalidates
// the direct cache entry and applies the configured index invalidation
// policy. The patch is never merged into the cached document in place; the
// next read reloads the store's view so cache and store cannot disagree on
// the partial-update shape.
func (s *Service) PatchManagedChannel(guildID, channelID string, mc storage.ManagedChannel) error {
	if err := s.store.UpdateManagedChannel(guildID, channelID, mc); err != nil {
		return err
	}
	_ = s.cache.Delete(configKey(guildID))
	s.invalidateAggregates()
	return nil
}

// invalidateAggregates applies the configured index invalidation policy
// after a guild write. Under InvalidateOnWrite the global sets and every
// reverse-map entry are dropped; a rebinding patch can stale entries for
// nation ids the caller no longer references, so the whole prefix goes.
func (s *Service) invalidateAggregates() {
	if s.invalidation != InvalidateOnWrite {
		return
	}
	_ = s.cache.Delete(keyAllAllianceIDs)
	_ = s.cache.Delete(keyAllNationIDs)
	for _, k := range s.cache.Keys() {
		if strings.HasPrefix(k, keyNationGuildPrefix) {
			_ = s.cache.Delete(k)
		}
	}
}

// LinkChannel binds a guild channel to a nation as a managed channel.
func (s *Service) LinkChannel(guildID, channelID string, nationID int, channelType string) error {
	cfg, err := s.Config(guildID)
	if err != nil {
		return err
	}
	if cfg == nil {
		return ErrGuildNotFound
	}
	if channelType == "" {
		channelType = "text_channel"
	}
	return s.PatchManagedChannel(guildID, channelID, storage.ManagedChannel{
		NationID:    nationID,
		ChannelType: channelType,
		CreatedAt:   s.now().UTC(),
	})
}

// NationIDForChannel returns the nation bound to a managed channel, or 0
// when the guild or channel is unknown.
func (s *Service) NationIDForChannel(guildID, channelID string) (int, error) {
	cfg, err := s.Config(guildID)
	if err != nil {
		return 0, err
	}
	if cfg == nil {
		return 0, nil
	}
	mc, ok := cfg.ManagedChannels[channelID]
	if !ok {
		return 0, nil
	}
	return mc.NationID, nil
}

// AddAuditLevel appends an audit MMR slab to the guild's audit settings,
// rejecting duplicate names. It reads the store directly so a stale cached
// document can never be the base of the write.
func (s *Service) AddAuditLevel(guildID string, level storage.AuditLevel) error {
	cfg, err := s.store.GuildConfigByID(guildID)
	if err != nil {
		return err
	}
	if cfg == nil {
		return ErrGuildNotFound
	}
	if cfg.ApplicationSettings == nil || cfg.ApplicationSettings.Audit == nil {
		return ErrNoAuditConfig
	}
	for _, existing := range cfg.ApplicationSettings.Audit.MMRSlabs {
		if existing.Name == level.Name {
			return ErrDuplicateAuditLevel
		}
	}
	cfg.ApplicationSettings.Audit.MMRSlabs = append(cfg.ApplicationSettings.Audit.MMRSlabs, level)
	return s.PutConfig(cfg)
}

