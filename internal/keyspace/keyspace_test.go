package keyspace

import "testing"

func TestKeys(t *testing.T) {
	tests := []struct {
		name string
		got  string
		want string
	}{
		{"user", User("p", "u1"), "p:u:u1"},
		{"name index", NameIndex("p"), "p:idx:name"},
		{"email index", EmailIndex("p"), "p:idx:email"},
		{"login index", LoginIndex("p", "google"), "p:idx:login:google"},
		{"claim index", ClaimIndex("p", "role"), "p:idx:claim:role"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("got %q, want %q", tt.got, tt.want)
			}
		})
	}
}

func TestKeys_DistinctAcrossPrefixes(t *testing.T) {
	if User("a", "u1") == User("b", "u1") {
		t.Error("prefixes do not namespace user keys")
	}
	if ClaimIndex("p", "a") == ClaimIndex("p", "b") {
		t.Error("claim types do not separate index keys")
	}
}
