package userstore

import "github.com/mortise-io/mortise/codec"

// Config holds configuration for the Store.
type Config struct {
	// KeyPrefix namespaces every hash key the store touches, so several
	// stores can share one backend.
	// Default: "mortise"
	KeyPrefix string

	// Codec serializes user records and sub-collection lists.
	// Default: codec.JSON{}
	Codec codec.Codec

	// FanOutLimit caps the number of concurrent record reads issued
	// while resolving the users holding a claim type.
	// Default: 8
	FanOutLimit int
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		KeyPrefix:   "mortise",
		Codec:       codec.JSON{},
		FanOutLimit: 8,
	}
}

// validate ensures config values are usable, filling in defaults.
func (c *Config) validate() {
	if c.KeyPrefix == "" {
		c.KeyPrefix = "mortise"
	}
	if c.Codec == nil {
		c.Codec = codec.JSON{}
	}
	if c.FanOutLimit < 1 {
		c.FanOutLimit = 8
	}
}
