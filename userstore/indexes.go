package userstore

import "github.com/mortise-io/mortise/internal/keyspace"

// fieldOp is one staged index write or delete.
type fieldOp struct {
	key   string
	field string
	value string
}

// Index maintenance is expressed as pure delta rules: given the previous
// and next state of a record, each rule returns the index writes and
// deletes required to keep its index in sync. A nil prev means the record
// is being created; a nil next means it is being deleted.

// nameIndexOps keeps the normalized-username index in sync.
func nameIndexOps(prefix string, prev, next *User) (sets, dels []fieldOp) {
	key := keyspace.NameIndex(prefix)
	if prev != nil && prev.NormalizedUserName != "" &&
		(next == nil || next.NormalizedUserName != prev.NormalizedUserName) {
		dels = append(dels, fieldOp{key: key, field: prev.NormalizedUserName})
	}
	if next != nil && next.NormalizedUserName != "" {
		sets = append(sets, fieldOp{key: key, field: next.NormalizedUserName, value: next.ID})
	}
	return sets, dels
}

// emailIndexOps keeps the normalized-email index in sync. Records without
// an email have no entry.
func emailIndexOps(prefix string, prev, next *User) (sets, dels []fieldOp) {
	key := keyspace.EmailIndex(prefix)
	if prev != nil && prev.NormalizedEmail != "" &&
		(next == nil || next.NormalizedEmail != prev.NormalizedEmail) {
		dels = append(dels, fieldOp{key: key, field: prev.NormalizedEmail})
	}
	if next != nil && next.NormalizedEmail != "" {
		sets = append(sets, fieldOp{key: key, field: next.NormalizedEmail, value: next.ID})
	}
	return sets, dels
}

// claimIndexOps maps claim additions and removals for one user onto the
// per-claim-type indexes (field: user id, value: claim value).
func claimIndexOps(prefix, userID string, added, removed []Claim) (sets, dels []fieldOp) {
	for _, c := range added {
		sets = append(sets, fieldOp{
			key:   keyspace.ClaimIndex(prefix, c.Type),
			field: userID,
			value: c.Value,
		})
	}
	for _, c := range removed {
		dels = append(dels, fieldOp{
			key:   keyspace.ClaimIndex(prefix, c.Type),
			field: userID,
		})
	}
	return sets, dels
}

// loginIndexOps maps login additions and removals for one user onto the
// per-provider indexes (field: provider key, value: user id).
func loginIndexOps(prefix, userID string, added, removed []Login) (sets, dels []fieldOp) {
	for _, l := range added {
		sets = append(sets, fieldOp{
			key:   keyspace.LoginIndex(prefix, l.Provider),
			field: l.ProviderKey,
			value: userID,
		})
	}
	for _, l := range removed {
		dels = append(dels, fieldOp{
			key:   keyspace.LoginIndex(prefix, l.Provider),
			field: l.ProviderKey,
		})
	}
	return sets, dels
}
