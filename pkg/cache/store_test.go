package cache

import (
	"bytes"
	"testing"
	"time"
)

func TestStore_SetGet(t *testing.T) {
	s := NewStore()
	defer s.Close()

	s.Set("bootstrap:static", []byte(`{"events":[]}`), time.Minute)

	got, ok := s.Get("bootstrap:static")
	if !ok {
		t.Fatal("Get() miss for freshly set key")
	}
	if !bytes.Equal(got, []byte(`{"events":[]}`)) {
		t.Errorf("Get() = %q, want stored payload", got)
	}

	if _, ok := s.Get("fixtures:all"); ok {
		t.Error("Get() hit for absent key")
	}
}

func TestStore_Expiry(t *testing.T) {
	s := NewStore()
	defer s.Close()

	s.Set("live:gameweek:4", []byte("stats"), 10*time.Millisecond)

	if _, ok := s.Get("live:gameweek:4"); !ok {
		t.Fatal("Get() miss before expiry")
	}

	time.Sleep(25 * time.Millisecond)

	if _, ok := s.Get("live:gameweek:4"); ok {
		t.Error("Get() hit after TTL elapsed")
	}
}

func TestStore_ZeroTTLNeverExpires(t *testing.T) {
	s := NewStore()
	defer s.Close()

	s.Set("fixtures:all", []byte("fixtures"), 0)

	time.Sleep(15 * time.Millisecond)

	if _, ok := s.Get("fixtures:all"); !ok {
		t.Error("Get() miss for zero-TTL entry")
	}
}

func TestStore_Invalidate(t *testing.T) {
	s := NewStore()
	defer s.Close()

	s.Set("bootstrap:static", []byte("x"), time.Minute)
	s.Invalidate("bootstrap:static")

	if _, ok := s.Get("bootstrap:static"); ok {
		t.Error("Get() hit after Invalidate()")
	}
}

func TestStore_InvalidatePattern(t *testing.T) {
	s := NewStore()
	defer s.Close()

	s.Set("fixtures:gameweek:4", []byte("a"), time.Minute)
	s.Set("live:gameweek:4", []byte("b"), time.Minute)
	s.Set("live:gameweek:5", []byte("c"), time.Minute)
	s.Set("bootstrap:static", []byte("d"), time.Minute)

	removed := s.InvalidatePattern(PatternGameweek(4))
	if removed != 2 {
		t.Errorf("InvalidatePattern() removed %d keys, want 2", removed)
	}

	if _, ok := s.Get("fixtures:gameweek:4"); ok {
		t.Error("gameweek 4 fixtures key survived pattern invalidation")
	}
	if _, ok := s.Get("live:gameweek:5"); !ok {
		t.Error("gameweek 5 key was removed by a gameweek 4 pattern")
	}
	if _, ok := s.Get("bootstrap:static"); !ok {
		t.Error("bootstrap key was removed by a gameweek pattern")
	}
}

func TestStore_InvalidatePatternPrefix(t *testing.T) {
	s := NewStore()
	defer s.Close()

	s.Set("players:enriched", []byte("a"), time.Minute)
	s.Set("players:enriched:top", []byte("b"), time.Minute)

	removed := s.InvalidatePattern(PatternEnrichedPlayers())
	if removed != 2 {
		t.Errorf("InvalidatePattern() removed %d keys, want 2", removed)
	}
}

func TestStore_ScheduleInvalidation(t *testing.T) {
	s := NewStore()
	defer s.Close()

	s.Set("bootstrap:static", []byte("x"), time.Hour)
	s.ScheduleInvalidation("bootstrap:static", time.Now().Add(15*time.Millisecond))

	if _, ok := s.Get("bootstrap:static"); !ok {
		t.Fatal("Get() miss before scheduled invalidation fired")
	}

	time.Sleep(50 * time.Millisecond)

	if _, ok := s.Get("bootstrap:static"); ok {
		t.Error("Get() hit after scheduled invalidation fired")
	}
}

func TestStore_ScheduleInvalidationReplaces(t *testing.T) {
	s := NewStore()
	defer s.Close()

	s.Set("bootstrap:static", []byte("x"), time.Hour)

	// The near schedule is replaced by a far one; the entry must
	// survive the near instant.
	s.ScheduleInvalidation("bootstrap:static", time.Now().Add(15*time.Millisecond))
	s.ScheduleInvalidation("bootstrap:static", time.Now().Add(time.Hour))

	time.Sleep(50 * time.Millisecond)

	if _, ok := s.Get("bootstrap:static"); !ok {
		t.Error("entry removed by a schedule that should have been replaced")
	}
}

func TestStore_ScheduleInvalidationPast(t *testing.T) {
	s := NewStore()
	defer s.Close()

	s.Set("bootstrap:static", []byte("x"), time.Hour)
	s.ScheduleInvalidation("bootstrap:static", time.Now().Add(-time.Second))

	if _, ok := s.Get("bootstrap:static"); ok {
		t.Error("Get() hit after past-instant schedule, want immediate invalidation")
	}
}

func TestStore_KeysAndLen(t *testing.T) {
	s := NewStore()
	defer s.Close()

	s.Set("fixtures:gameweek:4", []byte("a"), time.Minute)
	s.Set("live:gameweek:4", []byte("b"), time.Minute)
	s.Set("bootstrap:static", []byte("c"), time.Minute)

	if got := s.Len(); got != 3 {
		t.Errorf("Len() = %d, want 3", got)
	}

	keys := s.Keys("*:gameweek:4")
	if len(keys) != 2 {
		t.Errorf("Keys(*:gameweek:4) = %v, want 2 keys", keys)
	}
	for _, key := range keys {
		if key != "fixtures:gameweek:4" && key != "live:gameweek:4" {
			t.Errorf("Keys() returned unexpected key %q", key)
		}
	}

	if keys := s.Keys("player:*"); len(keys) != 0 {
		t.Errorf("Keys(player:*) = %v, want none", keys)
	}
}
