package userstore

import (
	"context"
	"fmt"
	"sync"

	"github.com/mortise-io/mortise/internal/keyspace"
)

// GetClaims returns the user's claim list; empty when none are recorded.
func (s *Store) GetClaims(ctx context.Context, u *User) ([]Claim, error) {
	if err := checkUser(ctx, u); err != nil {
		return nil, err
	}
	var claims []Claim
	if err := s.loadList(ctx, u.ID, keyspace.FieldClaims, &claims); err != nil {
		return nil, err
	}
	return claims, nil
}

// AddClaims appends claims to the user's list and records each one in its
// claim-type index. The list write and the index writes run concurrently
// and are all awaited; the batch is not atomic, so a mid-flight backend
// fault can apply it partially and concurrent writers to the same user's
// claims can lose updates.
func (s *Store) AddClaims(ctx context.Context, u *User, claims []Claim) error {
	if err := checkUser(ctx, u); err != nil {
		return err
	}
	if len(claims) == 0 {
		return nil
	}

	current, err := s.GetClaims(ctx, u)
	if err != nil {
		return err
	}
	updated := append(current, claims...)

	sets, _ := claimIndexOps(s.cfg.KeyPrefix, u.ID, claims, nil)
	writes := make([]func() error, 0, len(sets)+1)
	writes = append(writes, func() error {
		return s.saveList(ctx, u.ID, keyspace.FieldClaims, updated)
	})
	for _, op := range sets {
		op := op
		writes = append(writes, func() error {
			return s.kv.HSet(ctx, op.key, op.field, op.value)
		})
	}
	return runConcurrent(writes...)
}

// ReplaceClaim rewrites every claim matching old to repl, swaps the
// claim-type index entry, and persists the rewritten list. When no claim
// matches, nothing is written.
func (s *Store) ReplaceClaim(ctx context.Context, u *User, old, repl Claim) error {
	if err := checkUser(ctx, u); err != nil {
		return err
	}

	current, err := s.GetClaims(ctx, u)
	if err != nil {
		return err
	}

	matched := false
	for i, c := range current {
		if c.Type == old.Type && c.Value == old.Value {
			current[i] = repl
			matched = true
		}
	}
	if !matched {
		return nil
	}

	// When the type is unchanged both claims map to the same index field:
	// the insert alone overwrites it. Emitting a delete too would race the
	// insert and could strand the entry.
	removed := []Claim{old}
	if old.Type == repl.Type {
		removed = nil
	}
	sets, dels := claimIndexOps(s.cfg.KeyPrefix, u.ID, []Claim{repl}, removed)
	writes := make([]func() error, 0, len(sets)+len(dels)+1)
	writes = append(writes, func() error {
		return s.saveList(ctx, u.ID, keyspace.FieldClaims, current)
	})
	for _, op := range dels {
		op := op
		writes = append(writes, func() error {
			return s.kv.HDel(ctx, op.key, op.field)
		})
	}
	for _, op := range sets {
		op := op
		writes = append(writes, func() error {
			return s.kv.HSet(ctx, op.key, op.field, op.value)
		})
	}
	return runConcurrent(writes...)
}

// RemoveClaims drops every claim matching an entry of claims from the
// user's list, deletes the corresponding claim-type index entries, and
// persists the filtered list.
//
// The claim-type index holds a single value per (type, user): removing one
// of several claims sharing a type drops the index entry even though
// another claim of that type remains on the list.
func (s *Store) RemoveClaims(ctx context.Context, u *User, claims []Claim) error {
	if err := checkUser(ctx, u); err != nil {
		return err
	}
	if len(claims) == 0 {
		return nil
	}

	current, err := s.GetClaims(ctx, u)
	if err != nil {
		return err
	}

	drop := make(map[Claim]bool, len(claims))
	for _, c := range claims {
		drop[c] = true
	}
	kept := current[:0]
	for _, c := range current {
		if !drop[c] {
			kept = append(kept, c)
		}
	}

	_, dels := claimIndexOps(s.cfg.KeyPrefix, u.ID, nil, claims)
	writes := make([]func() error, 0, len(dels)+1)
	writes = append(writes, func() error {
		return s.saveList(ctx, u.ID, keyspace.FieldClaims, kept)
	})
	for _, op := range dels {
		op := op
		writes = append(writes, func() error {
			return s.kv.HDel(ctx, op.key, op.field)
		})
	}
	return runConcurrent(writes...)
}

// GetUsersForClaim returns every user holding a claim of the given type.
// The claim-type index is scanned once, then the owning records are
// resolved on a bounded worker pool (Config.FanOutLimit); index entries
// whose user no longer exists are skipped.
func (s *Store) GetUsersForClaim(ctx context.Context, claimType string) ([]*User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if claimType == "" {
		return nil, fmt.Errorf("%w: claim type is empty", ErrInvalidArgument)
	}

	entries, err := s.kv.HGetAll(ctx, keyspace.ClaimIndex(s.cfg.KeyPrefix, claimType))
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, nil
	}

	ids := make(chan string, len(entries))
	for id := range entries {
		ids <- id
	}
	close(ids)

	var (
		mu    sync.Mutex
		users []*User
		wg    sync.WaitGroup
	)
	errs := make(chan error, s.cfg.FanOutLimit)

	workers := s.cfg.FanOutLimit
	if workers > len(entries) {
		workers = len(entries)
	}
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for id := range ids {
				u, err := s.FindByID(ctx, id)
				if err != nil {
					errs <- err
					return
				}
				if u == nil {
					continue
				}
				mu.Lock()
				users = append(users, u)
				mu.Unlock()
			}
		}()
	}

	wg.Wait()
	close(errs)
	if err := <-errs; err != nil {
		return nil, err
	}
	return users, nil
}
