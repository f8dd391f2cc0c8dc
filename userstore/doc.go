// Package userstore persists identity aggregates - users plus their
// claims, federated logins, and bearer tokens - in a hash-oriented
// key-value backend, keeping four denormalized lookup indexes in sync with
// the primary record.
//
// # Storage layout
//
// Each user occupies one hash key holding the codec-encoded record, a
// string-encoded version token, and the three sub-collection lists.
// Four index hashes resolve non-primary attributes to user ids:
//
//   - normalized username -> id
//   - normalized email -> id
//   - (provider, provider key) -> id, one hash per provider
//   - claim type: id -> claim value, one hash per type
//
// # Concurrency
//
// Create, Update, Delete, SetNormalizedUserName, and SetNormalizedEmail
// each run as a single conditional transaction on the backend, gated on
// the aggregate's version token (or, for Create, on the absence of the
// record). The token strictly increases on every successful guarded
// mutation; a stale token yields [ErrConcurrentModification] and the
// caller re-reads and retries. The store performs no internal retries and
// takes no in-process locks.
//
// The claim, login, and token sub-protocols sit outside that transaction:
// they are unconditional read-modify-write batches whose writes run
// concurrently and are awaited together. A backend fault mid-batch can
// leave the batch partially applied, and two concurrent writers to the
// same user's sub-collection can lose updates. Callers retry the whole
// logical operation.
//
// # Known limitations
//
//   - Delete does not cascade: a deleted user's claim/login/token lists
//     and their index entries remain until cleaned up out-of-band (see
//     the stream package).
//   - Name and email uniqueness is enforced only through ownership of the
//     index field, not a separate constraint.
//
// # Errors
//
//   - [ErrDuplicateKey] - id already taken on Create
//   - [ErrConcurrentModification] - version-token precondition failed
//   - [ErrInvalidArgument] - nil/empty/malformed argument, caught before I/O
//
// Absent users are reported as (nil, nil), not as an error. Backend faults
// propagate to the caller unwrapped.
package userstore
