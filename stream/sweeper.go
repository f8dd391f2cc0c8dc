// Package stream provides a DynamoDB Streams handler that garbage-collects
// the orphans a user deletion leaves behind.
//
// The store's Delete removes only the primary record, its version token,
// and the name/email index entries; the user's claim, login, and token
// lists and their secondary-index entries stay in place. When the store
// runs on the DynamoDB backend, wiring this handler to the table's stream
// sweeps those leftovers out-of-band without changing the store's
// write-path semantics.
package stream

import (
	"context"
	"log/slog"
	"strings"

	"github.com/aws/aws-lambda-go/events"

	"github.com/mortise-io/mortise/codec"
	"github.com/mortise-io/mortise/internal/keyspace"
	"github.com/mortise-io/mortise/kv"
	"github.com/mortise-io/mortise/userstore"
)

// Config holds configuration for the sweeper.
type Config struct {
	// KeyPrefix must match the store's key prefix.
	// Default: "mortise"
	KeyPrefix string

	// Codec must match the store's codec.
	// Default: codec.JSON{}
	Codec codec.Codec
}

func (c *Config) validate() {
	if c.KeyPrefix == "" {
		c.KeyPrefix = "mortise"
	}
	if c.Codec == nil {
		c.Codec = codec.JSON{}
	}
}

// Handler processes DynamoDB stream events for orphan cleanup.
type Handler struct {
	kv     kv.Store
	cfg    Config
	logger *slog.Logger
}

// NewHandler creates a stream handler.
func NewHandler(backend kv.Store, cfg Config, logger *slog.Logger) *Handler {
	cfg.validate()
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{kv: backend, cfg: cfg, logger: logger}
}

// HandleUserRemoved processes stream events, sweeping sub-collection
// leftovers for every user record the event shows as removed. Designed to
// be used as an AWS Lambda handler.
func (h *Handler) HandleUserRemoved(ctx context.Context, event events.DynamoDBEvent) error {
	for _, record := range event.Records {
		if err := h.processRecord(ctx, record); err != nil {
			h.logger.Error("failed to process record",
				"eventID", record.EventID,
				"error", err,
			)
			return err // Will retry, eventually DLQ
		}
	}
	return nil
}

// processRecord sweeps one stream record. Only records where a user key's
// primary record disappeared are of interest: a REMOVE of the whole item,
// or a MODIFY that dropped the data field while sub-collection fields
// survived.
func (h *Handler) processRecord(ctx context.Context, record events.DynamoDBEventRecord) error {
	if record.EventName != "MODIFY" && record.EventName != "REMOVE" {
		return nil
	}

	key := getStringAttr(record.Change.Keys, "k")
	id, ok := userIDFromKey(h.cfg.KeyPrefix, key)
	if !ok {
		return nil
	}

	hadData := hasAttr(record.Change.OldImage, keyspace.FieldData)
	hasData := hasAttr(record.Change.NewImage, keyspace.FieldData)
	if !hadData || hasData {
		return nil
	}

	h.logger.Info("sweeping removed user",
		"userID", id,
		"event", record.EventName,
	)

	// Index entries are derived from the old image so no read of the
	// (already mutated) user key is needed. Each delete is idempotent;
	// failures are logged and retried on the next delivery.
	var claims []userstore.Claim
	if raw := getStringAttr(record.Change.OldImage, keyspace.FieldClaims); raw != "" {
		if err := h.cfg.Codec.Unmarshal(raw, &claims); err != nil {
			h.logger.Warn("undecodable claim list, skipping claim indexes",
				"userID", id,
				"error", err,
			)
		}
	}
	for _, c := range claims {
		if err := h.kv.HDel(ctx, keyspace.ClaimIndex(h.cfg.KeyPrefix, c.Type), id); err != nil {
			return err
		}
	}

	var logins []userstore.Login
	if raw := getStringAttr(record.Change.OldImage, keyspace.FieldLogins); raw != "" {
		if err := h.cfg.Codec.Unmarshal(raw, &logins); err != nil {
			h.logger.Warn("undecodable login list, skipping login indexes",
				"userID", id,
				"error", err,
			)
		}
	}
	for _, l := range logins {
		if err := h.kv.HDel(ctx, keyspace.LoginIndex(h.cfg.KeyPrefix, l.Provider), l.ProviderKey); err != nil {
			return err
		}
	}

	if err := h.kv.HDel(ctx, key,
		keyspace.FieldClaims, keyspace.FieldLogins, keyspace.FieldTokens); err != nil {
		return err
	}

	h.logger.Info("sweep completed",
		"userID", id,
		"claimIndexes", len(claims),
		"loginIndexes", len(logins),
	)
	return nil
}

// userIDFromKey extracts the user id from a user hash key, reporting false
// for keys outside the user keyspace (index hashes, foreign prefixes).
func userIDFromKey(prefix, key string) (string, bool) {
	id, ok := strings.CutPrefix(key, keyspace.User(prefix, ""))
	if !ok || id == "" {
		return "", false
	}
	return id, true
}

// getStringAttr extracts a string attribute from a stream image.
func getStringAttr(image map[string]events.DynamoDBAttributeValue, key string) string {
	if v, ok := image[key]; ok && v.DataType() == events.DataTypeString {
		return v.String()
	}
	return ""
}

func hasAttr(image map[string]events.DynamoDBAttributeValue, key string) bool {
	_, ok := image[key]
	return ok
}
