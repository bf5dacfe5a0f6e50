package auth

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"
)

var bg = context.Background()

func TestMemoryStore_RevokeAndIsRevoked(t *testing.T) {
	store := NewMemoryRevocationStore(time.Hour)
	defer store.Close()

	jti := "token-abc-123"
	_ = store.Revoke(bg, jti, "", time.Now().Add(time.Hour))

	if ok, _ := store.IsRevoked(bg, jti); !ok {
		t.Errorf("expected JTI %q to be revoked", jti)
	}
	if ok, _ := store.IsRevoked(bg, "unknown-jti"); ok {
		t.Error("expected unknown JTI to not be revoked")
	}
}

func TestMemoryStore_RevokeAllForUser(t *testing.T) {
	store := NewMemoryRevocationStore(time.Hour)
	defer store.Close()

	_ = store.Revoke(bg, "jti-1", "user-42", time.Now().Add(time.Hour))
	_ = store.Revoke(bg, "jti-2", "user-42", time.Now().Add(time.Hour))
	_ = store.Revoke(bg, "jti-3", "user-99", time.Now().Add(time.Hour))

	now := time.Now()
	count, err := store.RevokeAllForUser(bg, "user-42", now)
	if err != nil {
		t.Fatal(err)
	}
	if count != 2 {
		t.Errorf("expected 2 known tokens for user-42, got %d", count)
	}

	cutoff, ok, _ := store.UserCutoff(bg, "user-42")
	if want := now.Truncate(time.Second); !ok || !cutoff.Equal(want) {
		t.Errorf("expected cutoff %v, got %v (%v)", want, cutoff, ok)
	}
	if _, ok, _ := store.UserCutoff(bg, "user-99"); ok {
		t.Error("expected no cutoff for user-99")
	}
}

func TestMemoryStore_RevokeAllForUnknownUser(t *testing.T) {
	store := NewMemoryRevocationStore(time.Hour)
	defer store.Close()

	count, _ := store.RevokeAllForUser(bg, "nobody", time.Now())
	if count != 0 {
		t.Errorf("expected 0, got %d", count)
	}
	if _, ok, _ := store.UserCutoff(bg, "nobody"); !ok {
		t.Error("cutoff should be recorded even without known tokens")
	}
}

func TestMemoryStore_CleanupRemovesExpired(t *testing.T) {
	store := NewMemoryRevocationStore(time.Minute)
	defer store.Close()

	now := time.Now()
	_ = store.Revoke(bg, "expired", "user-1", now.Add(-time.Second))
	_ = store.Revoke(bg, "live", "user-1", now.Add(time.Hour))
	_, _ = store.RevokeAllForUser(bg, "user-2", now.Add(-2*time.Minute))

	store.cleanup(now)

	if ok, _ := store.IsRevoked(bg, "expired"); ok {
		t.Error("expected expired entry to be removed")
	}
	if ok, _ := store.IsRevoked(bg, "live"); !ok {
		t.Error("expected live entry to remain")
	}
	if len(store.byUser["user-1"]) != 1 {
		t.Errorf("expected user mapping trimmed to 1, got %v", store.byUser["user-1"])
	}
	if _, ok, _ := store.UserCutoff(bg, "user-2"); ok {
		t.Error("expected stale cutoff to be removed")
	}
}

func TestMemoryStore_CleanupDropsEmptyUserMapping(t *testing.T) {
	store := NewMemoryRevocationStore(time.Hour)
	defer store.Close()

	_ = store.Revoke(bg, "only", "user-7", time.Now().Add(-time.Second))
	store.cleanup(time.Now())

	if _, ok := store.byUser["user-7"]; ok {
		t.Error("expected empty user mapping to be deleted")
	}
}

func TestMemoryStore_EntriesSortedByExpiry(t *testing.T) {
	store := NewMemoryRevocationStore(time.Hour)
	defer store.Close()

	now := time.Now()
	_ = store.Revoke(bg, "jti-b", "", now.Add(2*time.Hour))
	_ = store.Revoke(bg, "jti-a", "user-1", now.Add(time.Hour))

	entries, _ := store.Entries(bg)
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].JTI != "jti-a" || entries[0].UserID != "user-1" {
		t.Errorf("unexpected first entry %+v", entries[0])
	}
	if store.Count() != 2 {
		t.Errorf("expected count 2, got %d", store.Count())
	}
}

func TestMemoryStore_ConcurrentAccess(t *testing.T) {
	store := NewMemoryRevocationStore(time.Hour)
	defer store.Close()

	var wg sync.WaitGroup
	const goroutines = 100
	wg.Add(goroutines * 2)

	for i := 0; i < goroutines; i++ {
		jti := fmt.Sprintf("jti-%d", i)
		go func() {
			defer wg.Done()
			_ = store.Revoke(bg, jti, "user", time.Now().Add(time.Hour))
		}()
		go func() {
			defer wg.Done()
			_, _ = store.IsRevoked(bg, jti)
		}()
	}
	wg.Wait()

	if store.Count() != goroutines {
		t.Errorf("expected %d entries, got %d", goroutines, store.Count())
	}
}

func TestMemoryStore_CloseIdempotent(t *testing.T) {
	store := NewMemoryRevocationStore(time.Hour)
	store.Close()
	store.Close()

	_ = store.Revoke(bg, "jti-after-close", "", time.Now().Add(time.Hour))
	if ok, _ := store.IsRevoked(bg, "jti-after-close"); !ok {
		t.Error("expected store to still work after Close")
	}
}

func TestMemoryStore_RevokeMovesOwner(t *testing.T) {
	store := NewMemoryRevocationStore(time.Hour)
	defer store.Close()

	_ = store.Revoke(bg, "shared", "user-1", time.Now().Add(time.Hour))
	_ = store.Revoke(bg, "shared", "user-2", time.Now().Add(time.Hour))

	if n, _ := store.RevokeAllForUser(bg, "user-1", time.Now()); n != 0 {
		t.Errorf("user-1 still owns %d tokens", n)
	}
	if n, _ := store.RevokeAllForUser(bg, "user-2", time.Now()); n != 1 {
		t.Errorf("user-2 owns %d tokens, want 1", n)
	}
}
