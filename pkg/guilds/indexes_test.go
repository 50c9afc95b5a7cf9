package guilds

import (
	"reflect"
	"testing"
	"time"

	"github.com/small-frappuccino/ally/pkg/cache"
	"github.com/small-frappuccino/ally/pkg/storage"
)

func TestAllReferencedAllianceIDsCacheThrough(t *testing.T) {
	svc, store := newTestService(t)
	store.guilds["g1"] = seedConfig("g1")
	g2 := seedConfig("g2")
	g2.AllianceID = 1234
	store.guilds["g2"] = g2

	ids, err := svc.AllReferencedAllianceIDs()
	if err != nil {
		t.Fatalf("alliance ids: %v", err)
	}
	if !reflect.DeepEqual(ids, []int{790, 1234}) {
		t.Fatalf("unexpected ids: %v", ids)
	}

	if _, err := svc.AllReferencedAllianceIDs(); err != nil {
		t.Fatalf("alliance ids: %v", err)
	}
	if store.indexReads != 1 {
		t.Fatalf("expected second read cached, index reads = %d", store.indexReads)
	}
}

func TestAllReferencedNationIDs(t *testing.T) {
	svc, store := newTestService(t)
	store.guilds["g1"] = seedConfig("g1")

	ids, err := svc.AllReferencedNationIDs()
	if err != nil {
		t.Fatalf("nation ids: %v", err)
	}
	if !reflect.DeepEqual(ids, []int{6, 7}) {
		t.Fatalf("unexpected ids: %v", ids)
	}
	if _, err := svc.AllReferencedNationIDs(); err != nil {
		t.Fatalf("nation ids: %v", err)
	}
	if store.indexReads != 1 {
		t.Fatalf("expected second read cached, index reads = %d", store.indexReads)
	}
}

func TestGuildsReferencingNationFirstMatch(t *testing.T) {
	svc, store := newTestService(t)
	store.guilds["g1"] = seedConfig("g1")
	g2 := seedConfig("g2")
	g2.ManagedChannels = map[string]storage.ManagedChannel{
		"chan-x": {NationID: 6},
	}
	store.guilds["g2"] = g2

	ref, err := svc.GuildsReferencingNation(6)
	if err != nil {
		t.Fatalf("refs: %v", err)
	}
	if ref == nil || ref.GuildID != "g1" {
		t.Fatalf("expected first matching guild g1, got %+v", ref)
	}
	if !reflect.DeepEqual(ref.ChannelIDs, []string{"chan-a"}) {
		t.Fatalf("unexpected channel keys: %v", ref.ChannelIDs)
	}

	ref, err = svc.GuildsReferencingNation(424242)
	if err != nil {
		t.Fatalf("refs: %v", err)
	}
	if ref != nil {
		t.Fatalf("expected nil for unreferenced nation, got %+v", ref)
	}
}

func TestTTLOnlyModeKeepsAggregatesAcrossWrites(t *testing.T) {
	store := newFakeStore()
	c := cache.NewTTLMap(time.Minute, 0)
	t.Cleanup(c.Close)
	svc := NewService(store, c, WithIndexInvalidation(InvalidateOnTTLOnly))

	if err := svc.PutConfig(seedConfig("g1")); err != nil {
		t.Fatalf("put: %v", err)
	}
	if _, err := svc.AllReferencedNationIDs(); err != nil {
		t.Fatalf("nation ids: %v", err)
	}
	primed := store.indexReads

	// Another write: under TTL-only invalidation the aggregate entry
	// survives and may serve bounded-stale data until its TTL lapses.
	g2 := seedConfig("g2")
	if err := svc.PutConfig(g2); err != nil {
		t.Fatalf("put: %v", err)
	}
	if _, err := svc.AllReferencedNationIDs(); err != nil {
		t.Fatalf("nation ids: %v", err)
	}
	if store.indexReads != primed {
		t.Fatalf("TTL-only mode must not drop aggregate entries on write, index reads = %d", store.indexReads)
	}
}

func TestOnWriteModeRefreshesReverseMapAfterLink(t *testing.T) {
	svc, _ := newTestService(t) // default InvalidateOnWrite
	if err := svc.PutConfig(seedConfig("g1")); err != nil {
		t.Fatalf("put: %v", err)
	}

	if ref, err := svc.GuildsReferencingNation(42); err != nil || ref != nil {
		t.Fatalf("expected no refs yet, got (%v, %v)", ref, err)
	}

	if err := svc.LinkChannel("g1", "chan-new", 42, ""); err != nil {
		t.Fatalf("link: %v", err)
	}

	ref, err := svc.GuildsReferencingNation(42)
	if err != nil {
		t.Fatalf("refs: %v", err)
	}
	if ref == nil || ref.GuildID != "g1" || !reflect.DeepEqual(ref.ChannelIDs, []string{"chan-new"}) {
		t.Fatalf("newly linked channel not visible, got %+v", ref)
	}
}

func TestTTLOnlyModeKeepsReverseEntriesAcrossWrites(t *testing.T) {
	store := newFakeStore()
	c := cache.NewTTLMap(time.Minute, 0)
	t.Cleanup(c.Close)
	svc := NewService(store, c, WithIndexInvalidation(InvalidateOnTTLOnly))

	if err := svc.PutConfig(seedConfig("g1")); err != nil {
		t.Fatalf("put: %v", err)
	}
	if _, err := svc.GuildsReferencingNation(6); err != nil {
		t.Fatalf("refs: %v", err)
	}
	primed := store.indexReads

	if err := svc.PutConfig(seedConfig("g1")); err != nil {
		t.Fatalf("second put: %v", err)
	}
	if err := svc.PatchManagedChannel("g1", "chan-b", storage.ManagedChannel{NationID: 7, ChannelType: "support_ticket"}); err != nil {
		t.Fatalf("patch: %v", err)
	}

	if _, err := svc.GuildsReferencingNation(6); err != nil {
		t.Fatalf("refs: %v", err)
	}
	if store.indexReads != primed {
		t.Fatalf("TTL-only mode must not drop reverse-map entries on write, index reads = %d (primed %d)", store.indexReads, primed)
	}
}
