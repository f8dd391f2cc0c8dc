package userstore_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/mortise-io/mortise/userstore"
)

func containsUser(users []*userstore.User, id string) bool {
	for _, u := range users {
		if u.ID == id {
			return true
		}
	}
	return false
}

func TestClaims_RoundTrip(t *testing.T) {
	s := newTestStore()
	ctx := context.Background()
	u := newTestUser()
	mustCreate(t, s, u)

	admin := userstore.Claim{Type: "role", Value: "admin"}
	if err := s.AddClaims(ctx, u, []userstore.Claim{admin}); err != nil {
		t.Fatalf("AddClaims: %v", err)
	}

	claims, err := s.GetClaims(ctx, u)
	if err != nil {
		t.Fatalf("GetClaims: %v", err)
	}
	if len(claims) != 1 || claims[0] != admin {
		t.Fatalf("expected exactly [%+v], got %+v", admin, claims)
	}

	holders, err := s.GetUsersForClaim(ctx, "role")
	if err != nil {
		t.Fatalf("GetUsersForClaim: %v", err)
	}
	if !containsUser(holders, u.ID) {
		t.Errorf("claim index does not include user %s", u.ID)
	}

	if err := s.RemoveClaims(ctx, u, []userstore.Claim{admin}); err != nil {
		t.Fatalf("RemoveClaims: %v", err)
	}
	claims, err = s.GetClaims(ctx, u)
	if err != nil {
		t.Fatalf("GetClaims after remove: %v", err)
	}
	if len(claims) != 0 {
		t.Errorf("expected empty claim list, got %+v", claims)
	}
	holders, err = s.GetUsersForClaim(ctx, "role")
	if err != nil {
		t.Fatalf("GetUsersForClaim after remove: %v", err)
	}
	if containsUser(holders, u.ID) {
		t.Errorf("claim index still includes user %s", u.ID)
	}
}

func TestGetClaims_EmptyWhenNoneRecorded(t *testing.T) {
	s := newTestStore()
	u := newTestUser()
	mustCreate(t, s, u)

	claims, err := s.GetClaims(context.Background(), u)
	if err != nil {
		t.Fatalf("GetClaims: %v", err)
	}
	if len(claims) != 0 {
		t.Errorf("expected no claims, got %+v", claims)
	}
}

func TestReplaceClaim_ReplacesAllMatches(t *testing.T) {
	s := newTestStore()
	ctx := context.Background()
	u := newTestUser()
	mustCreate(t, s, u)

	old := userstore.Claim{Type: "role", Value: "editor"}
	other := userstore.Claim{Type: "plan", Value: "pro"}
	if err := s.AddClaims(ctx, u, []userstore.Claim{old, other, old}); err != nil {
		t.Fatalf("AddClaims: %v", err)
	}

	repl := userstore.Claim{Type: "role", Value: "admin"}
	if err := s.ReplaceClaim(ctx, u, old, repl); err != nil {
		t.Fatalf("ReplaceClaim: %v", err)
	}

	claims, err := s.GetClaims(ctx, u)
	if err != nil {
		t.Fatalf("GetClaims: %v", err)
	}
	var replaced, untouched, leftovers int
	for _, c := range claims {
		switch c {
		case repl:
			replaced++
		case other:
			untouched++
		case old:
			leftovers++
		}
	}
	if replaced != 2 || untouched != 1 || leftovers != 0 {
		t.Errorf("unexpected claim list after replace: %+v", claims)
	}

	holders, err := s.GetUsersForClaim(ctx, "role")
	if err != nil {
		t.Fatalf("GetUsersForClaim: %v", err)
	}
	if !containsUser(holders, u.ID) {
		t.Errorf("replacement claim type lost index entry")
	}
}

func TestReplaceClaim_SameTypeKeepsIndexEntry(t *testing.T) {
	s := newTestStore()
	ctx := context.Background()
	u := newTestUser()
	mustCreate(t, s, u)

	if err := s.AddClaims(ctx, u, []userstore.Claim{{Type: "role", Value: "v0"}}); err != nil {
		t.Fatalf("AddClaims: %v", err)
	}

	// Replacing a claim's value keeps its type: the old and new index
	// entries share one field, so the replace must never leave it deleted.
	// Repeat to shake out scheduling-dependent outcomes.
	for i := 0; i < 50; i++ {
		old := userstore.Claim{Type: "role", Value: fmt.Sprintf("v%d", i)}
		repl := userstore.Claim{Type: "role", Value: fmt.Sprintf("v%d", i+1)}
		if err := s.ReplaceClaim(ctx, u, old, repl); err != nil {
			t.Fatalf("ReplaceClaim #%d: %v", i, err)
		}
		holders, err := s.GetUsersForClaim(ctx, "role")
		if err != nil {
			t.Fatalf("GetUsersForClaim #%d: %v", i, err)
		}
		if !containsUser(holders, u.ID) {
			t.Fatalf("claim index entry lost after same-type replace #%d", i)
		}
	}
}

func TestReplaceClaim_TypeChangeSwapsIndexEntries(t *testing.T) {
	s := newTestStore()
	ctx := context.Background()
	u := newTestUser()
	mustCreate(t, s, u)

	old := userstore.Claim{Type: "role", Value: "admin"}
	if err := s.AddClaims(ctx, u, []userstore.Claim{old}); err != nil {
		t.Fatalf("AddClaims: %v", err)
	}

	repl := userstore.Claim{Type: "group", Value: "admins"}
	if err := s.ReplaceClaim(ctx, u, old, repl); err != nil {
		t.Fatalf("ReplaceClaim: %v", err)
	}

	holders, err := s.GetUsersForClaim(ctx, "role")
	if err != nil {
		t.Fatalf("GetUsersForClaim(role): %v", err)
	}
	if containsUser(holders, u.ID) {
		t.Errorf("old claim type still indexes user %s", u.ID)
	}
	holders, err = s.GetUsersForClaim(ctx, "group")
	if err != nil {
		t.Fatalf("GetUsersForClaim(group): %v", err)
	}
	if !containsUser(holders, u.ID) {
		t.Errorf("new claim type does not index user %s", u.ID)
	}
}

func TestReplaceClaim_NoMatchIsNoOp(t *testing.T) {
	s := newTestStore()
	ctx := context.Background()
	u := newTestUser()
	mustCreate(t, s, u)

	err := s.ReplaceClaim(ctx, u,
		userstore.Claim{Type: "role", Value: "ghost"},
		userstore.Claim{Type: "role", Value: "admin"})
	if err != nil {
		t.Fatalf("ReplaceClaim: %v", err)
	}

	holders, err := s.GetUsersForClaim(ctx, "role")
	if err != nil {
		t.Fatalf("GetUsersForClaim: %v", err)
	}
	if containsUser(holders, u.ID) {
		t.Errorf("no-op replace fabricated an index entry")
	}
}

func TestGetUsersForClaim_SkipsDeletedUsers(t *testing.T) {
	s := newTestStore()
	ctx := context.Background()

	alive := newTestUser()
	mustCreate(t, s, alive)
	doomed := &userstore.User{ID: "doomed", NormalizedUserName: "DOOMED"}
	mustCreate(t, s, doomed)

	claim := []userstore.Claim{{Type: "role", Value: "admin"}}
	if err := s.AddClaims(ctx, alive, claim); err != nil {
		t.Fatalf("AddClaims(alive): %v", err)
	}
	if err := s.AddClaims(ctx, doomed, claim); err != nil {
		t.Fatalf("AddClaims(doomed): %v", err)
	}

	// Deleting the user strands its claim index entry; the lookup must
	// skip it silently.
	if err := s.Delete(ctx, doomed); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	holders, err := s.GetUsersForClaim(ctx, "role")
	if err != nil {
		t.Fatalf("GetUsersForClaim: %v", err)
	}
	if len(holders) != 1 || holders[0].ID != alive.ID {
		t.Errorf("expected only the live user, got %+v", holders)
	}
}

func TestGetUsersForClaim_ManyHolders(t *testing.T) {
	s := newTestStore()
	ctx := context.Background()

	const n = 25 // more holders than the fan-out bound
	ids := make(map[string]bool, n)
	for i := 0; i < n; i++ {
		u := newTestUser()
		u.NormalizedUserName = u.ID
		mustCreate(t, s, u)
		if err := s.AddClaims(ctx, u, []userstore.Claim{{Type: "beta", Value: "yes"}}); err != nil {
			t.Fatalf("AddClaims: %v", err)
		}
		ids[u.ID] = true
	}

	holders, err := s.GetUsersForClaim(ctx, "beta")
	if err != nil {
		t.Fatalf("GetUsersForClaim: %v", err)
	}
	if len(holders) != n {
		t.Fatalf("expected %d holders, got %d", n, len(holders))
	}
	for _, h := range holders {
		if !ids[h.ID] {
			t.Errorf("unexpected holder %s", h.ID)
		}
	}
}
