package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// Store wraps an embedded SQLite database holding the durable copies of
// nation and alliance records, verification records and per-guild
// configuration. It uses modernc.org/sqlite for CGO-less builds.
//
// Managed channels are a child table of guilds rather than a nested map
// field, which keeps the reverse-lookup queries (distinct nation ids, guilds
// referencing a nation) plain indexed SQL.
type Store struct {
	dbPath string
	db     *sql.DB
}

// NewStore creates a new Store pointing to dbPath. Call Init() before using it.
func NewStore(dbPath string) *Store {
	return &Store{dbPath: dbPath}
}

// Init opens the SQLite database, configures pragmas, and ensures the schema exists.
func (s *Store) Init() error {
	if s.db != nil {
		return nil
	}
	if s.dbPath == "" {
		return fmt.Errorf("db path is empty")
	}
	if err := os.MkdirAll(filepath.Dir(s.dbPath), 0o755); err != nil {
		return fmt.Errorf("failed to create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", s.dbPath)
	if err != nil {
		return fmt.Errorf("open sqlite: %w", err)
	}

	// Pragmas for durability and concurrency
	if _, err := db.Exec(`PRAGMA journal_mode=WAL;`); err != nil {
		_ = db.Close()
		return fmt.Errorf("set WAL: %w", err)
	}
	if _, err := db.Exec(`PRAGMA foreign_keys=ON;`); err != nil {
		_ = db.Close()
		return fmt.Errorf("enable FKs: %w", err)
	}
	if _, err := db.Exec(`PRAGMA busy_timeout=5000;`); err != nil {
		_ = db.Close()
		return fmt.Errorf("set busy_timeout: %w", err)
	}
	if _, err := db.Exec(`PRAGMA synchronous=NORMAL;`); err != nil {
		_ = db.Close()
		return fmt.Errorf("set synchronous: %w", err)
	}

	if err := ensureSchema(db); err != nil {
		_ = db.Close()
		return err
	}

	s.db = db
	return nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// NationByID returns the stored nation record, or nil if absent.
func (s *Store) NationByID(nationID int) (*Nation, error) {
	if s.db == nil {
		return nil, fmt.Errorf("store not initialized")
	}

	row := s.db.QueryRow(
		`SELECT nation_id, nation_name, leader_name, discord, alliance_id, alliance_name,
		        alliance_position, num_cities, score, soldiers, tanks, aircraft, ships, spies,
		        cities, last_active, last_synced_at
		 FROM nations WHERE nation_id=?`,
		nationID,
	)

	var n Nation
	var cities string
	var lastActive sql.NullTime
	if err := row.Scan(
		&n.NationID,
		&n.NationName,
		&n.LeaderName,
		&n.DiscordHandle,
		&n.AllianceID,
		&n.AllianceName,
		&n.AlliancePosition,
		&n.NumCities,
		&n.Score,
		&n.Soldiers,
		&n.Tanks,
		&n.Aircraft,
		&n.Ships,
		&n.Spies,
		&cities,
		&lastActive,
		&n.LastSyncedAt,
	); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	if lastActive.Valid {
		n.LastActive = lastActive.Time
	}
	if cities != "" {
		if err := json.Unmarshal([]byte(cities), &n.Cities); err != nil {
			return nil, fmt.Errorf("decode cities for nation %d: %w", nationID, err)
		}
	}
	return &n, nil
}

// UpsertNation replaces the stored record for a nation. Refresh always
// re-derives the complete record, so every column is overwritten.
func (s *Store) UpsertNation(n *Nation) error {
	if s.db == nil {
		return fmt.Errorf("store not initialized")
	}
	if n == nil || n.NationID == 0 {
		return fmt.Errorf("nation record is empty")
	}

	cities, err := json.Marshal(n.Cities)
	if err != nil {
		return fmt.Errorf("encode cities for nation %d: %w", n.NationID, err)
	}
	var lastActive any
	if !n.LastActive.IsZero() {
		lastActive = n.LastActive.UTC()
	}

	_, err = s.db.Exec(
		`INSERT INTO nations (nation_id, nation_name, leader_name, discord, alliance_id, alliance_name,
		                      alliance_position, num_cities, score, soldiers, tanks, aircraft, ships, spies,
		                      cities, last_active, last_synced_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(nation_id) DO UPDATE SET
		   nation_name=excluded.nation_name,
		   leader_name=excluded.leader_name,
		   discord=excluded.discord,
		   alliance_id=excluded.alliance_id,
		   alliance_name=excluded.alliance_name,
		   alliance_position=excluded.alliance_position,
		   num_cities=excluded.num_cities,
		   score=excluded.score,
		   soldiers=excluded.soldiers,
		   tanks=excluded.tanks,
		   aircraft=excluded.aircraft,
		   ships=excluded.ships,
		   spies=excluded.spies,
		   cities=excluded.cities,
		   last_active=excluded.last_active,
		   last_synced_at=excluded.last_synced_at`,
		n.NationID, n.NationName, n.LeaderName, n.DiscordHandle, n.AllianceID, n.AllianceName,
		n.AlliancePosition, n.NumCities, n.Score, n.Soldiers, n.Tanks, n.Aircraft, n.Ships, n.Spies,
		string(cities), lastActive, n.LastSyncedAt.UTC(),
	)
	return err
}

// AllianceByID returns the stored alliance record, or nil if absent.
func (s *Store) AllianceByID(allianceID int) (*Alliance, error) {
	if s.db == nil {
		return nil, fmt.Errorf("store not initialized")
	}

	row := s.db.QueryRow(
		`SELECT alliance_id, name, acronym, color, score, discord_link, positions, last_synced_at
		 FROM alliances WHERE alliance_id=?`,
		allianceID,
	)

	var a Alliance
	var positions string
	if err := row.Scan(
		&a.AllianceID,
		&a.Name,
		&a.Acronym,
		&a.Color,
		&a.Score,
		&a.DiscordLink,
		&positions,
		&a.LastSyncedAt,
	); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	if positions != "" {
		if err := json.Unmarshal([]byte(positions), &a.Positions); err != nil {
			return nil, fmt.Errorf("decode positions for alliance %d: %w", allianceID, err)
		}
	}
	return &a, nil
}

// UpsertAlliance replaces the stored record for an alliance.
func (s *Store) UpsertAlliance(a *Alliance) error {
	if s.db == nil {
		return fmt.Errorf("store not initialized")
	}
	if a == nil || a.AllianceID == 0 {
		return fmt.Errorf("alliance record is empty")
	}

	positions, err := json.Marshal(a.Positions)
	if err != nil {
		return fmt.Errorf("encode positions for alliance %d: %w", a.AllianceID, err)
	}

	_, err = s.db.Exec(
		`INSERT INTO alliances (alliance_id, name, acronym, color, score, discord_link, positions, last_synced_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(alliance_id) DO UPDATE SET
		   name=excluded.name,
		   acronym=excluded.acronym,
		   color=excluded.color,
		   score=excluded.score,
		   discord_link=excluded.discord_link,
		   positions=excluded.positions,
		   last_synced_at=excluded.last_synced_at`,
		a.AllianceID, a.Name, a.Acronym, a.Color, a.Score, a.DiscordLink, string(positions), a.LastSyncedAt.UTC(),
	)
	return err
}

// VerificationByNationID returns the verification record for a nation, or nil if absent.
func (s *Store) VerificationByNationID(nationID int) (*Verification, error) {
	return s.verificationWhere(`nation_id=?`, nationID)
}

// VerificationByUsername returns the verification record for a Discord username, or nil if absent.
func (s *Store) VerificationByUsername(discordUsername string) (*Verification, error) {
	return s.verificationWhere(`discord_username=?`, discordUsername)
}

func (s *Store) verificationWhere(where string, arg any) (*Verification, error) {
	if s.db == nil {
		return nil, fmt.Errorf("store not initialized")
	}
	row := s.db.QueryRow(
		`SELECT nation_id, discord_username, expires_at, verified_at FROM verifications WHERE `+where,
		arg,
	)
	var v Verification
	if err := row.Scan(&v.NationID, &v.DiscordUsername, &v.ExpiresAt, &v.VerifiedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &v, nil
}

// UpsertVerification inserts or refreshes a verification record. Re-verifying
// an existing nation extends the trust window and rebinds the username.
func (s *Store) UpsertVerification(v *Verification) error {
	if s.db == nil {
		return fmt.Errorf("store not initialized")
	}
	if v == nil || v.NationID == 0 || v.DiscordUsername == "" {
		return fmt.Errorf("verification record is incomplete")
	}
	_, err := s.db.Exec(
		`INSERT INTO verifications (nation_id, discord_username, expires_at, verified_at)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT(nation_id) DO UPDATE SET
		   discord_username=excluded.discord_username,
		   expires_at=excluded.expires_at,
		   verified_at=excluded.verified_at`,
		v.NationID, v.DiscordUsername, v.ExpiresAt.UTC(), v.VerifiedAt.UTC(),
	)
	return err
}

// GuildConfigByID loads a guild configuration document, including its managed
// channels, or nil if the guild is unknown.
func (s *Store) GuildConfigByID(guildID string) (*GuildConfig, error) {
	if s.db == nil {
		return nil, fmt.Errorf("store not initialized")
	}

	row := s.db.QueryRow(
		`SELECT guild_id, guild_name, alliance_id, alliance_name, welcome_channel, verified_role,
		        unverified_role, admins, application_settings, data_validity_mins, date_format
		 FROM guilds WHERE guild_id=?`,
		guildID,
	)

	var cfg GuildConfig
	var admins string
	var appSettings sql.NullString
	if err := row.Scan(
		&cfg.GuildID,
		&cfg.GuildName,
		&cfg.AllianceID,
		&cfg.AllianceName,
		&cfg.WelcomeChannelID,
		&cfg.VerifiedRoleID,
		&cfg.UnverifiedRoleID,
		&admins,
		&appSettings,
		&cfg.DataValidityMins,
		&cfg.DateFormat,
	); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	if admins != "" {
		if err := json.Unmarshal([]byte(admins), &cfg.Admins); err != nil {
			return nil, fmt.Errorf("decode admins for guild %s: %w", guildID, err)
		}
	}
	if appSettings.Valid && appSettings.String != "" {
		cfg.ApplicationSettings = &ApplicationSettings{}
		if err := json.Unmarshal([]byte(appSettings.String), cfg.ApplicationSettings); err != nil {
			return nil, fmt.Errorf("decode application settings for guild %s: %w", guildID, err)
		}
	}

	channels, err := s.managedChannels(guildID)
	if err != nil {
		return nil, err
	}
	cfg.ManagedChannels = channels
	return &cfg, nil
}

func (s *Store) managedChannels(guildID string) (map[string]ManagedChannel, error) {
	rows, err := s.db.Query(
		`SELECT channel_id, nation_id, channel_type, created_at, build_template, war_chest_template
		 FROM managed_channels WHERE guild_id=?`,
		guildID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	channels := make(map[string]ManagedChannel)
	for rows.Next() {
		var channelID string
		var mc ManagedChannel
		var createdAt sql.NullTime
		if err := rows.Scan(&channelID, &mc.NationID, &mc.ChannelType, &createdAt, &mc.BuildTemplate, &mc.WarChestTemplate); err != nil {
			return nil, err
		}
		if createdAt.Valid {
			mc.CreatedAt = createdAt.Time
		}
		channels[channelID] = mc
	}
	return channels, rows.Err()
}

// UpsertGuildConfig replaces a guild configuration document atomically,
// including the full managed-channel set.
func (s *Store) UpsertGuildConfig(cfg *GuildConfig) error {
	if s.db == nil {
		return fmt.Errorf("store not initialized")
	}
	if cfg == nil || cfg.GuildID == "" {
		return fmt.Errorf("guild config is empty")
	}

	admins, err := json.Marshal(cfg.Admins)
	if err != nil {
		return fmt.Errorf("encode admins for guild %s: %w", cfg.GuildID, err)
	}
	var appSettings any
	if cfg.ApplicationSettings != nil {
		b, err := json.Marshal(cfg.ApplicationSettings)
		if err != nil {
			return fmt.Errorf("encode application settings for guild %s: %w", cfg.GuildID, err)
		}
		appSettings = string(b)
	}

	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(
		`INSERT INTO guilds (guild_id, guild_name, alliance_id, alliance_name, welcome_channel,
		                     verified_role, unverified_role, admins, application_settings,
		                     data_validity_mins, date_format)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(guild_id) DO UPDATE SET
		   guild_name=excluded.guild_name,
		   alliance_id=excluded.alliance_id,
		   alliance_name=excluded.alliance_name,
		   welcome_channel=excluded.welcome_channel,
		   verified_role=excluded.verified_role,
		   unverified_role=excluded.unverified_role,
		   admins=excluded.admins,
		   application_settings=excluded.application_settings,
		   data_validity_mins=excluded.data_validity_mins,
		   date_format=excluded.date_format`,
		cfg.GuildID, cfg.GuildName, cfg.AllianceID, cfg.AllianceName, cfg.WelcomeChannelID,
		cfg.VerifiedRoleID, cfg.UnverifiedRoleID, string(admins), appSettings,
		cfg.DataValidityMins, cfg.DateFormat,
	); err != nil {
		return err
	}

	// Replace the channel set wholesale: the document is the unit of write.
	if _, err := tx.Exec(`DELETE FROM managed_channels WHERE guild_id=?`, cfg.GuildID); err != nil {
		return err
	}
	for channelID, mc := range cfg.ManagedChannels {
		if err := insertManagedChannel(tx, cfg.GuildID, channelID, mc); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// UpdateManagedChannel writes a single managed-channel record without
// touching sibling channels or the rest of the guild document.
func (s *Store) UpdateManagedChannel(guildID, channelID string, mc ManagedChannel) error {
	if s.db == nil {
		return fmt.Errorf("store not initialized")
	}
	if guildID == "" || channelID == "" {
		return fmt.Errorf("guild and channel ids are required")
	}

	var createdAt any
	if !mc.CreatedAt.IsZero() {
		createdAt = mc.CreatedAt.UTC()
	}
	_, err := s.db.Exec(
		`INSERT INTO managed_channels (guild_id, channel_id, nation_id, channel_type, created_at, build_template, war_chest_template)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(guild_id, channel_id) DO UPDATE SET
		   nation_id=excluded.nation_id,
		   channel_type=excluded.channel_type,
		   created_at=excluded.created_at,
		   build_template=excluded.build_template,
		   war_chest_template=excluded.war_chest_template`,
		guildID, channelID, mc.NationID, mc.ChannelType, createdAt, mc.BuildTemplate, mc.WarChestTemplate,
	)
	return err
}

// DistinctAllianceIDs returns the set of alliance ids referenced by any guild,
// excluding guilds with no alliance configured.
func (s *Store) DistinctAllianceIDs() ([]int, error) {
	if s.db == nil {
		return nil, fmt.Errorf("store not initialized")
	}
	return s.intColumn(`SELECT DISTINCT alliance_id FROM guilds WHERE alliance_id IS NOT NULL AND alliance_id != 0 ORDER BY alliance_id`)
}

// DistinctManagedNationIDs returns the set of nation ids referenced by any
// managed channel across all guilds.
func (s *Store) DistinctManagedNationIDs() ([]int, error) {
	if s.db == nil {
		return nil, fmt.Errorf("store not initialized")
	}
	return s.intColumn(`SELECT DISTINCT nation_id FROM managed_channels ORDER BY nation_id`)
}

func (s *Store) intColumn(query string) ([]int, error) {
	rows, err := s.db.Query(query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []int
	for rows.Next() {
		var id int
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// GuildsReferencingNation returns, per guild, the managed-channel ids bound to
// the given nation, ordered by guild id for a stable first match.
func (s *Store) GuildsReferencingNation(nationID int) ([]GuildChannelRefs, error) {
	if s.db == nil {
		return nil, fmt.Errorf("store not initialized")
	}
	rows, err := s.db.Query(
		`SELECT guild_id, channel_id FROM managed_channels WHERE nation_id=? ORDER BY guild_id, channel_id`,
		nationID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var refs []GuildChannelRefs
	for rows.Next() {
		var guildID, channelID string
		if err := rows.Scan(&guildID, &channelID); err != nil {
			return nil, err
		}
		if len(refs) > 0 && refs[len(refs)-1].GuildID == guildID {
			last := &refs[len(refs)-1]
			last.ChannelIDs = append(last.ChannelIDs, channelID)
			continue
		}
		refs = append(refs, GuildChannelRefs{GuildID: guildID, ChannelIDs: []string{channelID}})
	}
	return refs, rows.Err()
}

func insertManagedChannel(tx *sql.Tx, guildID, channelID string, mc ManagedChannel) error {
	var createdAt any
	if !mc.CreatedAt.IsZero() {
		createdAt = mc.CreatedAt.UTC()
	}
	_, err := tx.Exec(
		`INSERT INTO managed_channels (guild_id, channel_id, nation_id, channel_type, created_at, build_template, war_chest_template)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		guildID, channelID, mc.NationID, mc.ChannelType, createdAt, mc.BuildTemplate, mc.WarChestTemplate,
	)
	return err
}

// ensureSchema creates required tables and indexes if they don't exist.
func ensureSchema(db *sql.DB) error {
	const createNations = `
CREATE TABLE IF NOT EXISTS nations (
  nation_id         INTEGER PRIMARY KEY,
  nation_name       TEXT NOT NULL DEFAULT '',
  leader_name       TEXT NOT NULL DEFAULT '',
  discord           TEXT NOT NULL DEFAULT '',
  alliance_id       INTEGER NOT NULL DEFAULT 0,
  alliance_name     TEXT NOT NULL DEFAULT '',
  alliance_position TEXT NOT NULL DEFAULT '',
  num_cities        INTEGER NOT NULL DEFAULT 0,
  score             REAL NOT NULL DEFAULT 0,
  soldiers          INTEGER NOT NULL DEFAULT 0,
  tanks             INTEGER NOT NULL DEFAULT 0,
  aircraft          INTEGER NOT NULL DEFAULT 0,
  ships             INTEGER NOT NULL DEFAULT 0,
  spies             INTEGER NOT NULL DEFAULT 0,
  cities            TEXT NOT NULL DEFAULT '[]',
  last_active       TIMESTAMP,
  last_synced_at    TIMESTAMP NOT NULL
);`

	const createAlliances = `
CREATE TABLE IF NOT EXISTS alliances (
  alliance_id    INTEGER PRIMARY KEY,
  name           TEXT NOT NULL DEFAULT '',
  acronym        TEXT NOT NULL DEFAULT '',
  color          TEXT NOT NULL DEFAULT '',
  score          REAL NOT NULL DEFAULT 0,
  discord_link   TEXT NOT NULL DEFAULT '',
  positions      TEXT NOT NULL DEFAULT '[]',
  last_synced_at TIMESTAMP NOT NULL
);`

	const createVerifications = `
CREATE TABLE IF NOT EXISTS verifications (
  nation_id        INTEGER PRIMARY KEY,
  discord_username TEXT NOT NULL,
  expires_at       TIMESTAMP NOT NULL,
  verified_at      TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_verifications_username ON verifications(discord_username);`

	const createGuilds = `
CREATE TABLE IF NOT EXISTS guilds (
  guild_id             TEXT PRIMARY KEY,
  guild_name           TEXT NOT NULL DEFAULT '',
  alliance_id          INTEGER NOT NULL DEFAULT 0,
  alliance_name        TEXT NOT NULL DEFAULT '',
  welcome_channel      TEXT NOT NULL DEFAULT '',
  verified_role        TEXT NOT NULL DEFAULT '',
  unverified_role      TEXT NOT NULL DEFAULT '',
  admins               TEXT NOT NULL DEFAULT '[]',
  application_settings TEXT,
  data_validity_mins   INTEGER NOT NULL DEFAULT 5,
  date_format          TEXT NOT NULL DEFAULT ''
);`

	const createManagedChannels = `
CREATE TABLE IF NOT EXISTS managed_channels (
  guild_id           TEXT NOT NULL,
  channel_id         TEXT NOT NULL,
  nation_id          INTEGER NOT NULL,
  channel_type       TEXT NOT NULL DEFAULT '',
  created_at         TIMESTAMP,
  build_template     TEXT NOT NULL DEFAULT '',
  war_chest_template TEXT NOT NULL DEFAULT '',
  PRIMARY KEY (guild_id, channel_id)
);
CREATE INDEX IF NOT EXISTS idx_managed_channels_nation ON managed_channels(nation_id);`

	stmts := []string{
		createNations,
		createAlliances,
		createVerifications,
		createGuilds,
		createManagedChannels,
	}
	for _, sqlText := range stmts {
		if _, err := db.Exec(sqlText); err != nil {
			return fmt.Errorf("create schema: %w", err)
		}
	}
	return nil
}
