package userstore

import (
	"context"
	"fmt"
	"sync"

	"github.com/mortise-io/mortise/internal/keyspace"
	"github.com/mortise-io/mortise/kv"
)

// Store persists identity aggregates in a hash-oriented key-value backend,
// maintaining the name, email, login-provider, and claim-type indexes and
// enforcing optimistic concurrency through the backend's conditional
// transaction.
type Store struct {
	kv  kv.Store
	cfg Config
}

// New creates a Store on top of a backend.
func New(backend kv.Store, cfg Config) *Store {
	cfg.validate()
	return &Store{kv: backend, cfg: cfg}
}

func (s *Store) userKey(id string) string {
	return keyspace.User(s.cfg.KeyPrefix, id)
}

func (s *Store) encodeUser(u *User) (string, error) {
	data, err := s.cfg.Codec.Marshal(u)
	if err != nil {
		return "", fmt.Errorf("encode user record: %w", err)
	}
	return data, nil
}

func (s *Store) decodeUser(data string) (*User, error) {
	var u User
	if err := s.cfg.Codec.Unmarshal(data, &u); err != nil {
		return nil, fmt.Errorf("decode user record: %w", err)
	}
	return &u, nil
}

// stageOps adds index deltas to a pending transaction.
func stageOps(tx kv.Tx, sets, dels []fieldOp) {
	for _, op := range dels {
		tx.Del(op.key, op.field)
	}
	for _, op := range sets {
		tx.Set(op.key, op.field, op.value)
	}
}

// checkUser validates the arguments shared by every mutation.
func checkUser(ctx context.Context, u *User) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if u == nil {
		return fmt.Errorf("%w: user is nil", ErrInvalidArgument)
	}
	if u.ID == "" {
		return fmt.Errorf("%w: user id is empty", ErrInvalidArgument)
	}
	return nil
}

// Create writes a new aggregate: the primary record, its version token,
// the name index entry, and the email index entry when an email is
// present, all inside one conditional transaction whose precondition is
// that no record exists under the id. A failed precondition yields
// ErrDuplicateKey with nothing written. On success u.Version holds the
// baseline token.
func (s *Store) Create(ctx context.Context, u *User) error {
	if err := checkUser(ctx, u); err != nil {
		return err
	}
	if u.NormalizedUserName == "" {
		return fmt.Errorf("%w: normalized user name is empty", ErrInvalidArgument)
	}

	data, err := s.encodeUser(u)
	if err != nil {
		return err
	}

	key := s.userKey(u.ID)
	version := formatVersion(versionBase)

	tx := s.kv.Begin()
	tx.Require(key, keyspace.FieldData, nil)
	tx.Set(key, keyspace.FieldData, data)
	tx.Set(key, keyspace.FieldVersion, version)
	nameSets, nameDels := nameIndexOps(s.cfg.KeyPrefix, nil, u)
	stageOps(tx, nameSets, nameDels)
	emailSets, emailDels := emailIndexOps(s.cfg.KeyPrefix, nil, u)
	stageOps(tx, emailSets, emailDels)

	ok, err := tx.Commit(ctx)
	if err != nil {
		return err
	}
	if !ok {
		return ErrDuplicateKey
	}
	u.Version = version
	return nil
}

// Update overwrites the primary record and refreshes the name and email
// index entries, gated on the caller-held version token. A stale token
// yields ErrConcurrentModification and leaves the stored record untouched.
// On success u.Version holds the incremented token.
//
// Update refreshes index entries but does not delete stale ones: a caller
// that changes the normalized name or email directly on the aggregate must
// use SetNormalizedUserName / SetNormalizedEmail instead, which swap the
// affected entry inside the same guarded transaction.
func (s *Store) Update(ctx context.Context, u *User) error {
	if err := checkUser(ctx, u); err != nil {
		return err
	}
	if u.NormalizedUserName == "" {
		return fmt.Errorf("%w: normalized user name is empty", ErrInvalidArgument)
	}
	next, err := bumpVersion(u.Version)
	if err != nil {
		return err
	}
	data, err := s.encodeUser(u)
	if err != nil {
		return err
	}

	key := s.userKey(u.ID)

	tx := s.kv.Begin()
	tx.Require(key, keyspace.FieldVersion, &u.Version)
	tx.Set(key, keyspace.FieldData, data)
	tx.Set(key, keyspace.FieldVersion, next)
	nameSets, _ := nameIndexOps(s.cfg.KeyPrefix, u, u)
	stageOps(tx, nameSets, nil)
	emailSets, _ := emailIndexOps(s.cfg.KeyPrefix, u, u)
	stageOps(tx, emailSets, nil)

	ok, err := tx.Commit(ctx)
	if err != nil {
		return err
	}
	if !ok {
		return ErrConcurrentModification
	}
	u.Version = next
	return nil
}

// Delete removes the primary record, the version token, the name index
// entry, and the email index entry when present, gated on the caller-held
// version token. A stale token yields ErrConcurrentModification.
//
// Delete does not cascade: the user's claim, login, and token lists and
// their index entries survive as orphans. See the package documentation
// and the stream package for the out-of-band cleanup path.
func (s *Store) Delete(ctx context.Context, u *User) error {
	if err := checkUser(ctx, u); err != nil {
		return err
	}
	if _, err := parseVersion(u.Version); err != nil {
		return err
	}

	key := s.userKey(u.ID)

	tx := s.kv.Begin()
	tx.Require(key, keyspace.FieldVersion, &u.Version)
	tx.Del(key, keyspace.FieldData)
	tx.Del(key, keyspace.FieldVersion)
	_, nameDels := nameIndexOps(s.cfg.KeyPrefix, u, nil)
	stageOps(tx, nil, nameDels)
	_, emailDels := emailIndexOps(s.cfg.KeyPrefix, u, nil)
	stageOps(tx, nil, emailDels)

	ok, err := tx.Commit(ctx)
	if err != nil {
		return err
	}
	if !ok {
		return ErrConcurrentModification
	}
	return nil
}

// FindByID loads a user by id. A missing user yields (nil, nil). The
// returned aggregate carries the current version token, read separately
// from the record.
func (s *Store) FindByID(ctx context.Context, id string) (*User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if id == "" {
		return nil, fmt.Errorf("%w: user id is empty", ErrInvalidArgument)
	}

	key := s.userKey(id)
	data, ok, err := s.kv.HGet(ctx, key, keyspace.FieldData)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	u, err := s.decodeUser(data)
	if err != nil {
		return nil, err
	}
	version, ok, err := s.kv.HGet(ctx, key, keyspace.FieldVersion)
	if err != nil {
		return nil, err
	}
	if ok {
		u.Version = version
	}
	return u, nil
}

// FindByName resolves a normalized username through the name index, then
// loads the owning user. An index entry pointing at a since-deleted record
// resolves to (nil, nil).
func (s *Store) FindByName(ctx context.Context, normalizedName string) (*User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if normalizedName == "" {
		return nil, fmt.Errorf("%w: normalized user name is empty", ErrInvalidArgument)
	}
	id, ok, err := s.kv.HGet(ctx, keyspace.NameIndex(s.cfg.KeyPrefix), normalizedName)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	return s.FindByID(ctx, id)
}

// FindByEmail resolves a normalized email through the email index, then
// loads the owning user.
func (s *Store) FindByEmail(ctx context.Context, normalizedEmail string) (*User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if normalizedEmail == "" {
		return nil, fmt.Errorf("%w: normalized email is empty", ErrInvalidArgument)
	}
	id, ok, err := s.kv.HGet(ctx, keyspace.EmailIndex(s.cfg.KeyPrefix), normalizedEmail)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	return s.FindByID(ctx, id)
}

// SetNormalizedUserName renames a user: inside one guarded transaction it
// deletes the old name index entry, inserts the new one, rewrites the
// record, and bumps the version token. Setting the name the user already
// holds is a no-op. A stale token yields ErrConcurrentModification.
func (s *Store) SetNormalizedUserName(ctx context.Context, u *User, normalizedName string) error {
	if err := checkUser(ctx, u); err != nil {
		return err
	}
	if normalizedName == "" {
		return fmt.Errorf("%w: normalized user name is empty", ErrInvalidArgument)
	}
	if normalizedName == u.NormalizedUserName {
		return nil
	}
	next, err := bumpVersion(u.Version)
	if err != nil {
		return err
	}

	prev := *u
	renamed := *u
	renamed.NormalizedUserName = normalizedName
	data, err := s.encodeUser(&renamed)
	if err != nil {
		return err
	}

	key := s.userKey(u.ID)

	tx := s.kv.Begin()
	tx.Require(key, keyspace.FieldVersion, &u.Version)
	tx.Set(key, keyspace.FieldData, data)
	tx.Set(key, keyspace.FieldVersion, next)
	sets, dels := nameIndexOps(s.cfg.KeyPrefix, &prev, &renamed)
	stageOps(tx, sets, dels)

	ok, err := tx.Commit(ctx)
	if err != nil {
		return err
	}
	if !ok {
		return ErrConcurrentModification
	}
	u.NormalizedUserName = normalizedName
	u.Version = next
	return nil
}

// SetNormalizedEmail changes a user's lookup email following the same
// guarded swap as SetNormalizedUserName. An empty new email removes the
// index entry.
func (s *Store) SetNormalizedEmail(ctx context.Context, u *User, normalizedEmail string) error {
	if err := checkUser(ctx, u); err != nil {
		return err
	}
	if normalizedEmail == u.NormalizedEmail {
		return nil
	}
	next, err := bumpVersion(u.Version)
	if err != nil {
		return err
	}

	prev := *u
	changed := *u
	changed.NormalizedEmail = normalizedEmail
	data, err := s.encodeUser(&changed)
	if err != nil {
		return err
	}

	key := s.userKey(u.ID)

	tx := s.kv.Begin()
	tx.Require(key, keyspace.FieldVersion, &u.Version)
	tx.Set(key, keyspace.FieldData, data)
	tx.Set(key, keyspace.FieldVersion, next)
	sets, dels := emailIndexOps(s.cfg.KeyPrefix, &prev, &changed)
	stageOps(tx, sets, dels)

	ok, err := tx.Commit(ctx)
	if err != nil {
		return err
	}
	if !ok {
		return ErrConcurrentModification
	}
	u.NormalizedEmail = normalizedEmail
	u.Version = next
	return nil
}

// loadList reads and decodes one sub-collection field of a user's key.
// A missing field decodes to the zero value of out.
func (s *Store) loadList(ctx context.Context, id, field string, out any) error {
	data, ok, err := s.kv.HGet(ctx, s.userKey(id), field)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}
	if err := s.cfg.Codec.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode %s list: %w", field, err)
	}
	return nil
}

// saveList encodes and writes one sub-collection field.
func (s *Store) saveList(ctx context.Context, id, field string, list any) error {
	data, err := s.cfg.Codec.Marshal(list)
	if err != nil {
		return fmt.Errorf("encode %s list: %w", field, err)
	}
	return s.kv.HSet(ctx, s.userKey(id), field, data)
}

// runConcurrent executes independent writes concurrently and waits for all
// of them, returning the first error. There is no atomicity across the
// batch: a mid-flight backend fault can leave it partially applied, and
// the caller retries the whole logical operation.
func runConcurrent(fns ...func() error) error {
	var wg sync.WaitGroup
	errs := make(chan error, len(fns))

	for _, fn := range fns {
		wg.Add(1)
		go func(fn func() error) {
			defer wg.Done()
			if err := fn(); err != nil {
				errs <- err
			}
		}(fn)
	}

	wg.Wait()
	close(errs)
	return <-errs
}
