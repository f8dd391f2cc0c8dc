// Package keyspace computes the hash keys and field names under which user
// records, sub-collections, and secondary indexes are stored.
package keyspace

import "fmt"

// Fields of a user's hash key.
const (
	// FieldData holds the codec-encoded user record.
	FieldData = "data"

	// FieldVersion holds the string-encoded version token.
	FieldVersion = "ver"

	// FieldClaims, FieldLogins, and FieldTokens hold the codec-encoded
	// per-user sub-collection lists.
	FieldClaims = "claims"
	FieldLogins = "logins"
	FieldTokens = "tokens"
)

// User returns the hash key holding one user's record, version token, and
// sub-collection lists.
func User(prefix, id string) string {
	return fmt.Sprintf("%s:u:%s", prefix, id)
}

// NameIndex returns the hash key of the normalized-username index
// (field: normalized name, value: user id).
func NameIndex(prefix string) string {
	return prefix + ":idx:name"
}

// EmailIndex returns the hash key of the normalized-email index
// (field: normalized email, value: user id).
func EmailIndex(prefix string) string {
	return prefix + ":idx:email"
}

// LoginIndex returns the hash key of one provider's login index
// (field: provider key, value: user id).
func LoginIndex(prefix, provider string) string {
	return fmt.Sprintf("%s:idx:login:%s", prefix, provider)
}

// ClaimIndex returns the hash key of one claim type's index
// (field: user id, value: claim value).
func ClaimIndex(prefix, claimType string) string {
	return fmt.Sprintf("%s:idx:claim:%s", prefix, claimType)
}
