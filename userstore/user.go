package userstore

import "github.com/google/uuid"

// User is the identity aggregate: the primary record plus its version
// token. The store owns the persisted form; callers work on copies.
type User struct {
	// ID is the immutable identity key.
	ID string `json:"id"`

	// UserName is the display form of the username.
	UserName string `json:"user_name,omitempty"`

	// NormalizedUserName is the lookup form of the username. It must be
	// unique across the store (enforced through name-index ownership).
	NormalizedUserName string `json:"normalized_user_name"`

	// Email is the display form of the email address.
	Email string `json:"email,omitempty"`

	// NormalizedEmail is the lookup form of the email. When present it
	// must be unique across the store (enforced through email-index
	// ownership).
	NormalizedEmail string `json:"normalized_email,omitempty"`

	// Attributes holds profile fields the store treats as opaque.
	Attributes map[string]string `json:"attributes,omitempty"`

	// Version is the optimistic-concurrency token: a string-encoded
	// integer, stored separately from the record and never serialized
	// with it. Mutated in place by successful Create/Update/rename
	// operations.
	Version string `json:"-"`
}

// NewUser returns a User with a fresh random id. Normalization of the
// username is the caller's concern; NewUser stores it verbatim in both
// forms as a convenience.
func NewUser(userName string) *User {
	return &User{
		ID:                 uuid.NewString(),
		UserName:           userName,
		NormalizedUserName: userName,
	}
}

// Claim is a (type, value) authorization attribute scoped to one user.
type Claim struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

// Login binds a federated identity (provider, provider key) to a user.
type Login struct {
	Provider    string `json:"provider"`
	ProviderKey string `json:"provider_key"`
	DisplayName string `json:"display_name,omitempty"`
}

// Token is a named bearer credential issued by a provider for one user.
type Token struct {
	Provider string `json:"provider"`
	Name     string `json:"name"`
	Value    string `json:"value"`
}
