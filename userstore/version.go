package userstore

import (
	"fmt"
	"strconv"
)

// versionBase is the token assigned by Create. Every guarded mutation
// afterwards writes the previous token plus one.
const versionBase int64 = 1

// formatVersion renders a version counter as its stored string form.
func formatVersion(v int64) string {
	return strconv.FormatInt(v, 10)
}

// parseVersion decodes a caller-held version token. A token that is not a
// string-encoded integer is a client error, not a wildcard: mutations
// reject it with ErrInvalidArgument before issuing any I/O, rather than
// letting the backend's equality check fail and masquerade as a
// concurrency conflict.
func parseVersion(token string) (int64, error) {
	v, err := strconv.ParseInt(token, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: malformed version token %q", ErrInvalidArgument, token)
	}
	return v, nil
}

// bumpVersion returns the successor token of the caller-held token.
func bumpVersion(token string) (string, error) {
	v, err := parseVersion(token)
	if err != nil {
		return "", err
	}
	return formatVersion(v + 1), nil
}
