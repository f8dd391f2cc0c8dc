// Package rediskv implements kv.Store on Redis, where the hash-store
// contract maps one-to-one onto HGET/HSET/HDEL/HGETALL. Conditional
// transactions use optimistic locking: precondition keys are WATCHed, the
// guarded fields compared, and the staged writes applied with MULTI/EXEC.
// A concurrent writer invalidating a watched key aborts the EXEC, which
// surfaces as a failed commit exactly like a precondition mismatch.
//
// WATCH is key-granular: a concurrent write to any field of a watched
// hash aborts the EXEC even when the guarded field itself is unchanged.
// A commit can therefore fail although its preconditions still hold;
// retrying with the same expected values succeeds.
package rediskv

import (
	"context"
	"errors"

	"github.com/redis/go-redis/v9"

	"github.com/mortise-io/mortise/kv"
)

// Store adapts a Redis client to the kv.Store contract.
type Store struct {
	client redis.UniversalClient
}

// New creates a Store on top of a Redis client.
func New(client redis.UniversalClient) *Store {
	return &Store{client: client}
}

// HGet returns a single hash field.
func (s *Store) HGet(ctx context.Context, key, field string) (string, bool, error) {
	v, err := s.client.HGet(ctx, key, field).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}

// HSet writes a single hash field.
func (s *Store) HSet(ctx context.Context, key, field, value string) error {
	return s.client.HSet(ctx, key, field, value).Err()
}

// HDel removes hash fields.
func (s *Store) HDel(ctx context.Context, key string, fields ...string) error {
	if len(fields) == 0 {
		return nil
	}
	return s.client.HDel(ctx, key, fields...).Err()
}

// HGetAll returns every field of a hash; missing keys yield an empty map.
func (s *Store) HGetAll(ctx context.Context, key string) (map[string]string, error) {
	return s.client.HGetAll(ctx, key).Result()
}

// Begin starts a conditional transaction backed by WATCH/MULTI/EXEC.
func (s *Store) Begin() kv.Tx {
	return &tx{store: s}
}

type cond struct {
	key, field string
	value      *string
}

type write struct {
	key, field, value string
	delete            bool
}

type tx struct {
	store  *Store
	conds  []cond
	writes []write
}

func (t *tx) Require(key, field string, value *string) {
	t.conds = append(t.conds, cond{key: key, field: field, value: value})
}

func (t *tx) Set(key, field, value string) {
	t.writes = append(t.writes, write{key: key, field: field, value: value})
}

func (t *tx) Del(key, field string) {
	t.writes = append(t.writes, write{key: key, field: field, delete: true})
}

func (t *tx) stage(ctx context.Context, pipe redis.Pipeliner) {
	for _, w := range t.writes {
		if w.delete {
			pipe.HDel(ctx, w.key, w.field)
		} else {
			pipe.HSet(ctx, w.key, w.field, w.value)
		}
	}
}

// Commit verifies the preconditions under WATCH and applies the staged
// writes in one MULTI/EXEC. A mismatched precondition or a concurrent
// write to a watched key yields (false, nil).
func (t *tx) Commit(ctx context.Context) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	// No preconditions: a plain MULTI/EXEC pipeline is already atomic.
	if len(t.conds) == 0 {
		if len(t.writes) == 0 {
			return true, nil
		}
		_, err := t.store.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			t.stage(ctx, pipe)
			return nil
		})
		if err != nil {
			return false, err
		}
		return true, nil
	}

	watch := make([]string, 0, len(t.conds))
	seen := make(map[string]bool, len(t.conds))
	for _, c := range t.conds {
		if !seen[c.key] {
			seen[c.key] = true
			watch = append(watch, c.key)
		}
	}

	mismatch := false
	err := t.store.client.Watch(ctx, func(rt *redis.Tx) error {
		for _, c := range t.conds {
			stored, err := rt.HGet(ctx, c.key, c.field).Result()
			switch {
			case errors.Is(err, redis.Nil):
				if c.value != nil {
					mismatch = true
					return nil
				}
			case err != nil:
				return err
			default:
				if c.value == nil || *c.value != stored {
					mismatch = true
					return nil
				}
			}
		}
		_, err := rt.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			t.stage(ctx, pipe)
			return nil
		})
		return err
	}, watch...)

	if errors.Is(err, redis.TxFailedErr) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return !mismatch, nil
}
