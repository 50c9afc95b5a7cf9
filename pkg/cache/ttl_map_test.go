package cache

import (
	"testing"
	"time"
)

func TestTTLMapSetGetDelete(t *testing.T) {
	m := NewTTLMap(time.Minute, 0)
	defer m.Close()

	if _, ok := m.Get("missing"); ok {
		t.Fatalf("expected miss for absent key")
	}

	if err := m.Set("k", 42, 0); err != nil {
		t.Fatalf("set: %v", err)
	}
	v, ok := m.Get("k")
	if !ok {
		t.Fatalf("expected hit after set")
	}
	if v.(int) != 42 {
		t.Fatalf("unexpected value: %v", v)
	}

	if err := m.Delete("k"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, ok := m.Get("k"); ok {
		t.Fatalf("expected miss after delete")
	}
	if err := m.Delete("k"); err != nil {
		t.Fatalf("delete absent key: %v", err)
	}
}

func TestTTLMapExpiry(t *testing.T) {
	m := NewTTLMap(0, 0)
	defer m.Close()

	if err := m.Set("short", "v", 10*time.Millisecond); err != nil {
		t.Fatalf("set: %v", err)
	}
	if !m.Has("short") {
		t.Fatalf("expected key before expiry")
	}

	time.Sleep(25 * time.Millisecond)

	if _, ok := m.Get("short"); ok {
		t.Fatalf("expected expired key to miss")
	}
	if m.Has("short") {
		t.Fatalf("expected Has false after expiry")
	}
}

func TestTTLMapLastWriterWins(t *testing.T) {
	m := NewTTLMap(time.Minute, 0)
	defer m.Close()

	_ = m.Set("k", "first", 0)
	_ = m.Set("k", "second", 0)

	v, ok := m.Get("k")
	if !ok || v.(string) != "second" {
		t.Fatalf("expected last write to win, got %v", v)
	}
}

func TestTTLMapKeysAndSizeSkipExpired(t *testing.T) {
	m := NewTTLMap(0, 0)
	defer m.Close()

	_ = m.Set("live", 1, time.Minute)
	_ = m.Set("dead", 1, 5*time.Millisecond)
	time.Sleep(15 * time.Millisecond)

	if m.Size() != 1 {
		t.Fatalf("expected size 1, got %d", m.Size())
	}
	keys := m.Keys()
	if len(keys) != 1 || keys[0] != "live" {
		t.Fatalf("unexpected keys: %v", keys)
	}

	if err := m.Clear(); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if m.Size() != 0 {
		t.Fatalf("expected empty cache after clear")
	}
}
