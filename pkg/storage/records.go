package storage

import "time"

// Nation is the canonical stored representation of a Politics & War nation.
// It is owned by the nation refresh pipeline and mutated only by full
// replace-on-refresh; LastSyncedAt stamps the replace.
type Nation struct {
	NationID         int
	NationName       string
	LeaderName       string
	DiscordHandle    string
	AllianceID       int
	AllianceName     string
	AlliancePosition string
	NumCities        int
	Score            float64
	Soldiers         int
	Tanks            int
	Aircraft         int
	Ships            int
	Spies            int
	Cities           []City
	LastActive       time.Time
	LastSyncedAt     time.Time
}

// City is one entry in a nation's city list.
type City struct {
	ID             int     `json:"id"`
	Name           string  `json:"name"`
	Infrastructure float64 `json:"infrastructure"`
}

// Alliance is the canonical stored representation of a PnW alliance,
// including its ordered position list. Same lifecycle as Nation.
type Alliance struct {
	AllianceID   int
	Name         string
	Acronym      string
	Color        string
	Score        float64
	DiscordLink  string
	Positions    []AlliancePosition
	LastSyncedAt time.Time
}

// AlliancePosition is one rank within an alliance, ordered by Level ascending.
type AlliancePosition struct {
	ID       int                 `json:"id"`
	Name     string              `json:"name"`
	Level    int                 `json:"level"`
	IsLeader bool                `json:"is_leader"`
	Perms    PositionPermissions `json:"permissions"`
}

// PositionPermissions is the permission set carried by an alliance position.
type PositionPermissions struct {
	ViewBank         bool `json:"view_bank"`
	WithdrawBank     bool `json:"withdraw_bank"`
	AcceptApplicants bool `json:"accept_applicants"`
	RemoveMembers    bool `json:"remove_members"`
}

// Verification binds a Discord username to a nation id for a fixed trust
// window (15 days from the last successful verification). ExpiresAt is a
// trust window, independent of any data-freshness timestamp.
type Verification struct {
	NationID        int
	DiscordUsername string
	ExpiresAt       time.Time
	VerifiedAt      time.Time
}

// GuildConfig is the per-guild configuration document. The whole document is
// the unit of cache invalidation; ManagedChannels is keyed by channel id and a
// channel id never appears twice within one guild.
type GuildConfig struct {
	GuildID             string
	GuildName           string
	AllianceID          int
	AllianceName        string
	WelcomeChannelID    string
	VerifiedRoleID      string
	UnverifiedRoleID    string
	Admins              []string
	ApplicationSettings *ApplicationSettings
	ManagedChannels     map[string]ManagedChannel
	DataValidityMins    int
	DateFormat          string
}

// ManagedChannel binds one guild channel to a nation plus per-channel
// template fields.
type ManagedChannel struct {
	NationID         int
	ChannelType      string
	CreatedAt        time.Time
	BuildTemplate    string
	WarChestTemplate string
}

// ApplicationSettings is the optional nested application/onboarding
// configuration of a guild.
type ApplicationSettings struct {
	ApplicationCategoryID string        `json:"application_category_id,omitempty"`
	MembershipRoleID      string        `json:"membership_role,omitempty"`
	IARoleID              string        `json:"ia_role,omitempty"`
	Audit                 *AuditConfig  `json:"audit,omitempty"`
	Roles                 *CommandRoles `json:"roles,omitempty"`
}

// CommandRoles maps command groups to the role allowed to run them.
type CommandRoles struct {
	Audit    string `json:"audit,omitempty"`
	Build    string `json:"build,omitempty"`
	WarChest string `json:"warChest,omitempty"`
}

// AuditConfig configures the guild's audit workflow.
type AuditConfig struct {
	AuditRoleID    string       `json:"audit_role_id"`
	AuditChannelID string       `json:"audit_channel_id"`
	MMRSlabs       []AuditLevel `json:"audit_mmr_slabs"`
}

// AuditLevel is one MMR slab: required military improvements per city for a
// city-count range.
type AuditLevel struct {
	Label     string `json:"label,omitempty"`
	Name      string `json:"name"`
	Barracks  int    `json:"barracks"`
	Factories int    `json:"factories"`
	Hangars   int    `json:"hangars"`
	Drydocks  int    `json:"drydocks"`
	MinCity   int    `json:"min_city"`
	MaxCity   int    `json:"max_city"`
	LevelID   string `json:"levelId"`
}

// GuildChannelRefs is the reverse-lookup projection: the guild whose managed
// channels reference a nation, with the referencing channel ids.
type GuildChannelRefs struct {
	GuildID    string
	ChannelIDs []string
}
