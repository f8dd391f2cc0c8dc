// Package kv defines the capability interface mortise requires from a
// hash-oriented key-value backend.
//
// A backend exposes named hashes: each key holds a set of field -> value
// pairs. Beyond plain field reads and writes, a backend must provide a
// conditional transaction: an ordered batch of field writes and deletes
// gated by field-equality preconditions, committed all-or-nothing.
//
// Implementations in this module:
//
//   - [github.com/mortise-io/mortise/kv/memkv] - in-memory, for tests and
//     local development
//   - [github.com/mortise-io/mortise/kv/dynamokv] - DynamoDB
//   - [github.com/mortise-io/mortise/kv/rediskv] - Redis
package kv

import "context"

// Store is the minimal hash-store capability surface.
//
// Plain operations carry no atomicity guarantee relative to each other;
// only a committed [Tx] is atomic.
type Store interface {
	// HGet returns the value of a single field. The boolean reports
	// whether the field exists.
	HGet(ctx context.Context, key, field string) (string, bool, error)

	// HSet writes a single field.
	HSet(ctx context.Context, key, field, value string) error

	// HDel removes fields. Missing fields are not an error.
	HDel(ctx context.Context, key string, fields ...string) error

	// HGetAll returns every field of a key. A missing key yields an
	// empty map.
	HGetAll(ctx context.Context, key string) (map[string]string, error)

	// Begin starts a conditional transaction. Nothing touches the
	// backend until Commit.
	Begin() Tx
}

// Tx is a conditional write batch. Preconditions and writes are staged
// locally; Commit submits them as one atomic unit.
type Tx interface {
	// Require adds a precondition on a field. A non-nil value demands
	// the stored field equal *value; nil demands the field be absent.
	Require(key, field string, value *string)

	// Set stages a field write.
	Set(key, field, value string)

	// Del stages a field delete.
	Del(key, field string)

	// Commit submits the batch. It returns (false, nil) when a
	// precondition did not hold - no staged write was applied - and
	// (true, nil) when every write committed. Any other failure is a
	// backend error, returned as-is.
	Commit(ctx context.Context) (bool, error)
}
