// Package memkv provides an in-memory kv.Store for tests and local
// development. All operations and transaction commits are serialized on a
// single mutex, so a committed transaction is observed atomically.
package memkv

import (
	"context"
	"sync"

	"github.com/mortise-io/mortise/kv"
)

// Store is an in-memory hash store.
type Store struct {
	mu sync.Mutex
	// hashes maps key -> field -> value.
	hashes map[string]map[string]string
}

// New creates an empty Store.
func New() *Store {
	return &Store{hashes: make(map[string]map[string]string)}
}

// HGet returns a single field.
func (s *Store) HGet(ctx context.Context, key, field string) (string, bool, error) {
	if err := ctx.Err(); err != nil {
		return "", false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.hashes[key][field]
	return v, ok, nil
}

// HSet writes a single field.
func (s *Store) HSet(ctx context.Context, key, field, value string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.set(key, field, value)
	return nil
}

// HDel removes fields. Missing fields are ignored.
func (s *Store) HDel(ctx context.Context, key string, fields ...string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, f := range fields {
		s.del(key, f)
	}
	return nil
}

// HGetAll returns a copy of every field of a key.
func (s *Store) HGetAll(ctx context.Context, key string) (map[string]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]string, len(s.hashes[key]))
	for f, v := range s.hashes[key] {
		out[f] = v
	}
	return out, nil
}

// Begin starts a conditional transaction.
func (s *Store) Begin() kv.Tx {
	return &tx{store: s}
}

// set and del assume s.mu is held.
func (s *Store) set(key, field, value string) {
	h, ok := s.hashes[key]
	if !ok {
		h = make(map[string]string)
		s.hashes[key] = h
	}
	h[field] = value
}

func (s *Store) del(key, field string) {
	h, ok := s.hashes[key]
	if !ok {
		return
	}
	delete(h, field)
	if len(h) == 0 {
		delete(s.hashes, key)
	}
}

type cond struct {
	key, field string
	value      *string
}

type op struct {
	key, field, value string
	delete            bool
}

type tx struct {
	store *Store
	conds []cond
	ops   []op
}

func (t *tx) Require(key, field string, value *string) {
	t.conds = append(t.conds, cond{key: key, field: field, value: value})
}

func (t *tx) Set(key, field, value string) {
	t.ops = append(t.ops, op{key: key, field: field, value: value})
}

func (t *tx) Del(key, field string) {
	t.ops = append(t.ops, op{key: key, field: field, delete: true})
}

// Commit checks every precondition and applies every staged write under
// one lock acquisition.
func (t *tx) Commit(ctx context.Context) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	t.store.mu.Lock()
	defer t.store.mu.Unlock()

	for _, c := range t.conds {
		stored, ok := t.store.hashes[c.key][c.field]
		if c.value == nil {
			if ok {
				return false, nil
			}
			continue
		}
		if !ok || stored != *c.value {
			return false, nil
		}
	}

	for _, o := range t.ops {
		if o.delete {
			t.store.del(o.key, o.field)
		} else {
			t.store.set(o.key, o.field, o.value)
		}
	}
	return true, nil
}
