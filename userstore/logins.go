package userstore

import (
	"context"
	"fmt"

	"github.com/mortise-io/mortise/internal/keyspace"
)

// GetLogins returns the user's federated login list; empty when none are
// recorded.
func (s *Store) GetLogins(ctx context.Context, u *User) ([]Login, error) {
	if err := checkUser(ctx, u); err != nil {
		return nil, err
	}
	var logins []Login
	if err := s.loadList(ctx, u.ID, keyspace.FieldLogins, &logins); err != nil {
		return nil, err
	}
	return logins, nil
}

// AddLogin appends a login to the user's list and records it in the
// provider index. Like the claim batch, the two writes run concurrently
// with no atomicity across them.
func (s *Store) AddLogin(ctx context.Context, u *User, login Login) error {
	if err := checkUser(ctx, u); err != nil {
		return err
	}
	if login.Provider == "" || login.ProviderKey == "" {
		return fmt.Errorf("%w: login provider and provider key are required", ErrInvalidArgument)
	}

	current, err := s.GetLogins(ctx, u)
	if err != nil {
		return err
	}
	updated := append(current, login)

	sets, _ := loginIndexOps(s.cfg.KeyPrefix, u.ID, []Login{login}, nil)
	return runConcurrent(
		func() error { return s.saveList(ctx, u.ID, keyspace.FieldLogins, updated) },
		func() error { return s.kv.HSet(ctx, sets[0].key, sets[0].field, sets[0].value) },
	)
}

// RemoveLogin drops the login matching (provider, providerKey) from the
// user's list and deletes the provider index entry.
func (s *Store) RemoveLogin(ctx context.Context, u *User, provider, providerKey string) error {
	if err := checkUser(ctx, u); err != nil {
		return err
	}
	if provider == "" || providerKey == "" {
		return fmt.Errorf("%w: login provider and provider key are required", ErrInvalidArgument)
	}

	current, err := s.GetLogins(ctx, u)
	if err != nil {
		return err
	}
	kept := current[:0]
	for _, l := range current {
		if l.Provider != provider || l.ProviderKey != providerKey {
			kept = append(kept, l)
		}
	}

	_, dels := loginIndexOps(s.cfg.KeyPrefix, u.ID, nil, []Login{{Provider: provider, ProviderKey: providerKey}})
	return runConcurrent(
		func() error { return s.saveList(ctx, u.ID, keyspace.FieldLogins, kept) },
		func() error { return s.kv.HDel(ctx, dels[0].key, dels[0].field) },
	)
}

// FindByLogin resolves (provider, providerKey) through the provider index
// and loads the owning user. The owner's login list is then checked for
// the exact pair, guarding against a stale index entry; a miss at any step
// yields (nil, nil).
func (s *Store) FindByLogin(ctx context.Context, provider, providerKey string) (*User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if provider == "" || providerKey == "" {
		return nil, fmt.Errorf("%w: login provider and provider key are required", ErrInvalidArgument)
	}

	id, ok, err := s.kv.HGet(ctx, keyspace.LoginIndex(s.cfg.KeyPrefix, provider), providerKey)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	u, err := s.FindByID(ctx, id)
	if err != nil || u == nil {
		return nil, err
	}
	logins, err := s.GetLogins(ctx, u)
	if err != nil {
		return nil, err
	}
	for _, l := range logins {
		if l.Provider == provider && l.ProviderKey == providerKey {
			return u, nil
		}
	}
	return nil, nil
}
