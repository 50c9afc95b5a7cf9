package storage

import (
	"path/filepath"
	"reflect"
	"testing"
	"time"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s := NewStore(filepath.Join(t.TempDir(), "ally.db"))
	if err := s.Init(); err != nil {
		t.Fatalf("init store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestNationRoundTrip(t *testing.T) {
	s := newTestStore(t)

	if n, err := s.NationByID(6); err != nil || n != nil {
		t.Fatalf("expected (nil, nil) for absent nation, got (%v, %v)", n, err)
	}

	synced := time.Now().UTC().Truncate(time.Second)
	in := &Nation{
		NationID:         6,
		NationName:       "Testopia",
		LeaderName:       "Tester",
		DiscordHandle:    "alice",
		AllianceID:       790,
		AllianceName:     "Arrgh",
		AlliancePosition: "MEMBER",
		NumCities:        11,
		Score:            1234.5,
		Soldiers:         15000,
		Tanks:            1250,
		Cities: []City{
			{ID: 1, Name: "Capital", Infrastructure: 2000},
			{ID: 2, Name: "Port", Infrastructure: 1500},
		},
		LastSyncedAt: synced,
	}
	if err := s.UpsertNation(in); err != nil {
		t.Fatalf("upsert nation: %v", err)
	}

	out, err := s.NationByID(6)
	if err != nil {
		t.Fatalf("nation by id: %v", err)
	}
	if out == nil {
		t.Fatalf("expected stored nation")
	}
	if out.NationName != "Testopia" || out.AllianceID != 790 || out.Soldiers != 15000 {
		t.Fatalf("unexpected nation: %+v", out)
	}
	if !reflect.DeepEqual(out.Cities, in.Cities) {
		t.Fatalf("cities did not round-trip: %+v", out.Cities)
	}
	if out.LastSyncedAt.Before(synced) {
		t.Fatalf("last_synced_at lost precision: %v < %v", out.LastSyncedAt, synced)
	}

	// Full replace: a second upsert overwrites every column, including ones
	// that went back to their zero value.
	in2 := &Nation{NationID: 6, NationName: "Testopia II", LastSyncedAt: time.Now().UTC()}
	if err := s.UpsertNation(in2); err != nil {
		t.Fatalf("second upsert: %v", err)
	}
	out, err = s.NationByID(6)
	if err != nil {
		t.Fatalf("nation by id: %v", err)
	}
	if out.NationName != "Testopia II" || out.Soldiers != 0 || out.AllianceID != 0 {
		t.Fatalf("upsert was not a full replace: %+v", out)
	}
	if len(out.Cities) != 0 {
		t.Fatalf("expected empty city list after replace, got %+v", out.Cities)
	}
}

func TestAllianceRoundTripKeepsPositionOrder(t *testing.T) {
	s := newTestStore(t)

	if a, err := s.AllianceByID(790); err != nil || a != nil {
		t.Fatalf("expected (nil, nil) for absent alliance, got (%v, %v)", a, err)
	}

	in := &Alliance{
		AllianceID:  790,
		Name:        "Arrgh",
		Acronym:     "AR",
		Color:       "black",
		Score:       98765.4,
		DiscordLink: "https://discord.gg/arrgh",
		Positions: []AlliancePosition{
			{ID: 1, Name: "Applicant", Level: 0},
			{ID: 2, Name: "Member", Level: 2, Perms: PositionPermissions{ViewBank: true}},
			{ID: 3, Name: "Captain", Level: 9, IsLeader: true, Perms: PositionPermissions{ViewBank: true, WithdrawBank: true, AcceptApplicants: true, RemoveMembers: true}},
		},
		LastSyncedAt: time.Now().UTC(),
	}
	if err := s.UpsertAlliance(in); err != nil {
		t.Fatalf("upsert alliance: %v", err)
	}

	out, err := s.AllianceByID(790)
	if err != nil {
		t.Fatalf("alliance by id: %v", err)
	}
	if out == nil || out.Name != "Arrgh" {
		t.Fatalf("unexpected alliance: %+v", out)
	}
	if !reflect.DeepEqual(out.Positions, in.Positions) {
		t.Fatalf("positions did not round-trip in order: %+v", out.Positions)
	}
}

func TestVerificationLookups(t *testing.T) {
	s := newTestStore(t)

	if v, err := s.VerificationByUsername("alice"); err != nil || v != nil {
		t.Fatalf("expected (nil, nil) for absent verification, got (%v, %v)", v, err)
	}

	now := time.Now().UTC()
	v := &Verification{NationID: 6, DiscordUsername: "alice", ExpiresAt: now.Add(15 * 24 * time.Hour), VerifiedAt: now}
	if err := s.UpsertVerification(v); err != nil {
		t.Fatalf("upsert verification: %v", err)
	}

	byName, err := s.VerificationByUsername("alice")
	if err != nil {
		t.Fatalf("by username: %v", err)
	}
	if byName == nil || byName.NationID != 6 {
		t.Fatalf("unexpected verification: %+v", byName)
	}
	byID, err := s.VerificationByNationID(6)
	if err != nil {
		t.Fatalf("by nation id: %v", err)
	}
	if byID == nil || byID.DiscordUsername != "alice" {
		t.Fatalf("unexpected verification: %+v", byID)
	}

	// Re-verification rebinds the username and extends the window.
	v2 := &Verification{NationID: 6, DiscordUsername: "alice#new", ExpiresAt: now.Add(30 * 24 * time.Hour), VerifiedAt: now}
	if err := s.UpsertVerification(v2); err != nil {
		t.Fatalf("re-verify: %v", err)
	}
	byID, err = s.VerificationByNationID(6)
	if err != nil {
		t.Fatalf("by nation id: %v", err)
	}
	if byID.DiscordUsername != "alice#new" || !byID.ExpiresAt.After(now.Add(20*24*time.Hour)) {
		t.Fatalf("re-verification did not update record: %+v", byID)
	}
}

func TestVerificationMissingFieldsRejected(t *testing.T) {
	s := newTestStore(t)
	if err := s.UpsertVerification(&Verification{NationID: 0, DiscordUsername: "x"}); err == nil {
		t.Fatalf("expected error for missing nation id")
	}
	if err := s.UpsertVerification(&Verification{NationID: 1}); err == nil {
		t.Fatalf("expected error for missing username")
	}
}

func testGuildConfig(guildID string) *GuildConfig {
	return &GuildConfig{
		GuildID:          guildID,
		GuildName:        "Test Guild",
		AllianceID:       790,
		AllianceName:     "Arrgh",
		WelcomeChannelID: "chan-welcome",
		VerifiedRoleID:   "role-verified",
		UnverifiedRoleID: "role-unverified",
		Admins:           []string{"admin1", "admin2"},
		ApplicationSettings: &ApplicationSettings{
			MembershipRoleID: "role-member",
			IARoleID:         "role-ia",
			Audit: &AuditConfig{
				AuditRoleID:    "role-audit",
				AuditChannelID: "chan-audit",
				MMRSlabs: []AuditLevel{
					{Name: "c1-10", Barracks: 5, Factories: 0, MinCity: 1, MaxCity: 10, LevelID: "lvl1"},
				},
			},
			Roles: &CommandRoles{Audit: "role-audit-cmd", Build: "role-build-cmd", WarChest: "role-wc-cmd"},
		},
		ManagedChannels: map[string]ManagedChannel{
			"chan-a": {NationID: 6, ChannelType: "text_channel", CreatedAt: time.Now().UTC().Truncate(time.Second)},
			"chan-b": {NationID: 7, ChannelType: "applicant_ticket", BuildTemplate: "b-template"},
		},
		DataValidityMins: 5,
		DateFormat:       "2006-01-02",
	}
}

func TestGuildConfigRoundTrip(t *testing.T) {
	s := newTestStore(t)

	if cfg, err := s.GuildConfigByID("g1"); err != nil || cfg != nil {
		t.Fatalf("expected (nil, nil) for unknown guild, got (%v, %v)", cfg, err)
	}

	in := testGuildConfig("g1")
	if err := s.UpsertGuildConfig(in); err != nil {
		t.Fatalf("upsert guild config: %v", err)
	}

	out, err := s.GuildConfigByID("g1")
	if err != nil {
		t.Fatalf("guild config by id: %v", err)
	}
	if out == nil || out.GuildName != "Test Guild" || out.AllianceID != 790 {
		t.Fatalf("unexpected config: %+v", out)
	}
	if !reflect.DeepEqual(out.Admins, in.Admins) {
		t.Fatalf("admins did not round-trip: %v", out.Admins)
	}
	if out.ApplicationSettings == nil || out.ApplicationSettings.Audit == nil ||
		len(out.ApplicationSettings.Audit.MMRSlabs) != 1 {
		t.Fatalf("application settings did not round-trip: %+v", out.ApplicationSettings)
	}
	if out.ApplicationSettings.Roles == nil || out.ApplicationSettings.Roles.WarChest != "role-wc-cmd" {
		t.Fatalf("command roles did not round-trip: %+v", out.ApplicationSettings.Roles)
	}
	if len(out.ManagedChannels) != 2 {
		t.Fatalf("expected 2 managed channels, got %d", len(out.ManagedChannels))
	}
	if out.ManagedChannels["chan-a"].NationID != 6 || out.ManagedChannels["chan-b"].BuildTemplate != "b-template" {
		t.Fatalf("managed channels did not round-trip: %+v", out.ManagedChannels)
	}
}

func TestGuildConfigUpsertIsIdempotent(t *testing.T) {
	s := newTestStore(t)
	in := testGuildConfig("g1")

	if err := s.UpsertGuildConfig(in); err != nil {
		t.Fatalf("first upsert: %v", err)
	}
	if err := s.UpsertGuildConfig(in); err != nil {
		t.Fatalf("second upsert: %v", err)
	}

	ids, err := s.intColumn(`SELECT COUNT(*) FROM guilds`)
	if err != nil {
		t.Fatalf("count guilds: %v", err)
	}
	if ids[0] != 1 {
		t.Fatalf("expected exactly one guild row, got %d", ids[0])
	}
	out, err := s.GuildConfigByID("g1")
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if len(out.ManagedChannels) != 2 {
		t.Fatalf("channel rows duplicated or lost: %d", len(out.ManagedChannels))
	}
}

func TestUpdateManagedChannelLeavesSiblingsIntact(t *testing.T) {
	s := newTestStore(t)
	in := testGuildConfig("g1")
	if err := s.UpsertGuildConfig(in); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	before, err := s.GuildConfigByID("g1")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	siblingBefore := before.ManagedChannels["chan-b"]

	patched := ManagedChannel{NationID: 99, ChannelType: "support_ticket", WarChestTemplate: "wc"}
	if err := s.UpdateManagedChannel("g1", "chan-a", patched); err != nil {
		t.Fatalf("update managed channel: %v", err)
	}

	after, err := s.GuildConfigByID("g1")
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if got := after.ManagedChannels["chan-a"]; got.NationID != 99 || got.WarChestTemplate != "wc" {
		t.Fatalf("patch not applied: %+v", got)
	}
	if !reflect.DeepEqual(after.ManagedChannels["chan-b"], siblingBefore) {
		t.Fatalf("sibling channel mutated: %+v vs %+v", after.ManagedChannels["chan-b"], siblingBefore)
	}
}

func TestDerivedIndexQueries(t *testing.T) {
	s := newTestStore(t)

	g1 := testGuildConfig("g1")
	g2 := testGuildConfig("g2")
	g2.AllianceID = 1234
	g2.ManagedChannels = map[string]ManagedChannel{
		"chan-x": {NationID: 6},
	}
	g3 := testGuildConfig("g3")
	g3.AllianceID = 0 // no alliance configured
	g3.ManagedChannels = nil

	for _, cfg := range []*GuildConfig{g1, g2, g3} {
		if err := s.UpsertGuildConfig(cfg); err != nil {
			t.Fatalf("upsert %s: %v", cfg.GuildID, err)
		}
	}

	allianceIDs, err := s.DistinctAllianceIDs()
	if err != nil {
		t.Fatalf("distinct alliance ids: %v", err)
	}
	if !reflect.DeepEqual(allianceIDs, []int{790, 1234}) {
		t.Fatalf("unexpected alliance ids: %v", allianceIDs)
	}

	nationIDs, err := s.DistinctManagedNationIDs()
	if err != nil {
		t.Fatalf("distinct nation ids: %v", err)
	}
	if !reflect.DeepEqual(nationIDs, []int{6, 7}) {
		t.Fatalf("unexpected nation ids: %v", nationIDs)
	}

	refs, err := s.GuildsReferencingNation(6)
	if err != nil {
		t.Fatalf("guilds referencing nation: %v", err)
	}
	if len(refs) != 2 {
		t.Fatalf("expected 2 guilds referencing nation 6, got %v", refs)
	}
	if refs[0].GuildID != "g1" || !reflect.DeepEqual(refs[0].ChannelIDs, []string{"chan-a"}) {
		t.Fatalf("unexpected first ref: %+v", refs[0])
	}
	if refs[1].GuildID != "g2" || !reflect.DeepEqual(refs[1].ChannelIDs, []string{"chan-x"}) {
		t.Fatalf("unexpected second ref: %+v", refs[1])
	}

	refs, err = s.GuildsReferencingNation(424242)
	if err != nil {
		t.Fatalf("guilds referencing unknown nation: %v", err)
	}
	if len(refs) != 0 {
		t.Fatalf("expected no refs, got %v", refs)
	}
}
