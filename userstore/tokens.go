package userstore

import (
	"context"

	"github.com/mortise-io/mortise/internal/keyspace"
)

// GetTokens returns the user's bearer token list; empty when none are
// recorded. Tokens carry no secondary index - they are only ever fetched
// by owning user.
func (s *Store) GetTokens(ctx context.Context, u *User) ([]Token, error) {
	if err := checkUser(ctx, u); err != nil {
		return nil, err
	}
	var tokens []Token
	if err := s.loadList(ctx, u.ID, keyspace.FieldTokens, &tokens); err != nil {
		return nil, err
	}
	return tokens, nil
}

// SaveTokens overwrites the user's entire token list in a single write
// (replace-all, not merge).
func (s *Store) SaveTokens(ctx context.Context, u *User, tokens []Token) error {
	if err := checkUser(ctx, u); err != nil {
		return err
	}
	return s.saveList(ctx, u.ID, keyspace.FieldTokens, tokens)
}
