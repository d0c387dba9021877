package session

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	"taskdeck/api/internal/store"
)

// mapUserLookup resolves user ids from a mutable map, so tests can change a
// user's role between save and lookup.
type mapUserLookup map[string]store.User

func (m mapUserLookup) GetUserByID(ctx context.Context, id string) (store.User, error) {
	u, ok := m[id]
	if !ok {
		return store.User{}, store.ErrNotFound
	}
	return u, nil
}

func newTestStore(t *testing.T, users mapUserLookup) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rs, err := NewRedisStore("redis://"+mr.Addr(), users)
	if err != nil {
		t.Fatalf("NewRedisStore: %v", err)
	}
	t.Cleanup(func() { rs.Close() })
	return rs, mr
}

func TestRefreshSessionRoundTrip(t *testing.T) {
	users := mapUserLookup{"u1": {ID: "u1", DisplayName: "Dana", Role: "member"}}
	rs, _ := newTestStore(t, users)
	ctx := context.Background()

	if err := rs.SaveRefreshSession(ctx, "hash-1", "u1", time.Now().Add(24*time.Hour)); err != nil {
		t.Fatalf("SaveRefreshSession: %v", err)
	}

	user, err := rs.LookupRefreshSession(ctx, "hash-1")
	if err != nil {
		t.Fatalf("LookupRefreshSession: %v", err)
	}
	if user.ID != "u1" || user.DisplayName != "Dana" {
		t.Errorf("user = %+v", user)
	}
}

func TestLookupReflectsRoleChange(t *testing.T) {
	// Only the user id lives in redis; the user record is re-read on every
	// lookup, so a promotion shows up on the next refresh.
	users := mapUserLookup{"u1": {ID: "u1", Role: "member"}}
	rs, _ := newTestStore(t, users)
	ctx := context.Background()

	if err := rs.SaveRefreshSession(ctx, "hash-1", "u1", time.Now().Add(time.Hour)); err != nil {
		t.Fatalf("SaveRefreshSession: %v", err)
	}

	users["u1"] = store.User{ID: "u1", Role: "admin"}

	user, err := rs.LookupRefreshSession(ctx, "hash-1")
	if err != nil {
		t.Fatalf("LookupRefreshSession: %v", err)
	}
	if user.Role != "admin" {
		t.Errorf("role = %q, want admin", user.Role)
	}
}

func TestLookupExpiredSession(t *testing.T) {
	rs, mr := newTestStore(t, mapUserLookup{"u1": {ID: "u1"}})
	ctx := context.Background()

	if err := rs.SaveRefreshSession(ctx, "hash-1", "u1", time.Now().Add(time.Second)); err != nil {
		t.Fatalf("SaveRefreshSession: %v", err)
	}
	mr.FastForward(2 * time.Second)

	if _, err := rs.LookupRefreshSession(ctx, "hash-1"); err == nil {
		t.Error("expired session still resolved")
	}
}

func TestLookupUnknownHash(t *testing.T) {
	rs, _ := newTestStore(t, mapUserLookup{})
	if _, err := rs.LookupRefreshSession(context.Background(), "never-saved"); err == nil {
		t.Error("unknown hash resolved")
	}
}

func TestRevokeRefreshSession(t *testing.T) {
	users := mapUserLookup{"u1": {ID: "u1"}, "u2": {ID: "u2"}}
	rs, _ := newTestStore(t, users)
	ctx := context.Background()
	expires := time.Now().Add(time.Hour)

	if err := rs.SaveRefreshSession(ctx, "hash-1", "u1", expires); err != nil {
		t.Fatalf("save hash-1: %v", err)
	}
	if err := rs.SaveRefreshSession(ctx, "hash-2", "u2", expires); err != nil {
		t.Fatalf("save hash-2: %v", err)
	}

	if err := rs.RevokeRefreshSession(ctx, "hash-1"); err != nil {
		t.Fatalf("RevokeRefreshSession: %v", err)
	}

	if _, err := rs.LookupRefreshSession(ctx, "hash-1"); err == nil {
		t.Error("revoked session still resolved")
	}
	if user, err := rs.LookupRefreshSession(ctx, "hash-2"); err != nil || user.ID != "u2" {
		t.Errorf("unrelated session affected: %+v, %v", user, err)
	}

	// Revoking a hash that was never saved is a no-op.
	if err := rs.RevokeRefreshSession(ctx, "never-saved"); err != nil {
		t.Errorf("revoke unknown hash: %v", err)
	}
}

func TestSaveRejectsPastExpiry(t *testing.T) {
	rs, _ := newTestStore(t, mapUserLookup{"u1": {ID: "u1"}})
	if err := rs.SaveRefreshSession(context.Background(), "hash-1", "u1", time.Now().Add(-time.Minute)); err == nil {
		t.Error("session saved with expiry in the past")
	}
}
