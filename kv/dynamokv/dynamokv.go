// Package dynamokv implements kv.Store on DynamoDB. Every hash key maps to
// one item in a single table: the partition key attribute holds the hash
// key and the remaining attributes are its fields. Conditional
// transactions map onto TransactWriteItems, with preconditions expressed
// as condition expressions on the affected items.
package dynamokv

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/mortise-io/mortise/kv"
)

// keyAttr is the partition key attribute holding the hash key.
const keyAttr = "k"

// Config holds configuration for the adapter.
type Config struct {
	// Table is the DynamoDB table holding every hash.
	// Default: "mortise_hashes"
	Table string
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{Table: "mortise_hashes"}
}

// validate ensures config values are usable.
func (c *Config) validate() {
	if c.Table == "" {
		c.Table = "mortise_hashes"
	}
}

// Store adapts a DynamoDB client to the kv.Store contract.
type Store struct {
	client *dynamodb.Client
	cfg    Config
}

// New creates a Store on top of a DynamoDB client.
func New(client *dynamodb.Client, cfg Config) *Store {
	cfg.validate()
	return &Store{client: client, cfg: cfg}
}

func (s *Store) pk(key string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		keyAttr: &types.AttributeValueMemberS{Value: key},
	}
}

// HGet reads a single field via a projected GetItem.
func (s *Store) HGet(ctx context.Context, key, field string) (string, bool, error) {
	result, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:                aws.String(s.cfg.Table),
		Key:                      s.pk(key),
		ProjectionExpression:     aws.String("#f"),
		ExpressionAttributeNames: map[string]string{"#f": field},
	})
	if err != nil {
		return "", false, err
	}
	attr, ok := result.Item[field].(*types.AttributeValueMemberS)
	if !ok {
		return "", false, nil
	}
	return attr.Value, true, nil
}

// HSet writes a single field. The item is created on first write.
func (s *Store) HSet(ctx context.Context, key, field, value string) error {
	_, err := s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                aws.String(s.cfg.Table),
		Key:                      s.pk(key),
		UpdateExpression:         aws.String("SET #f = :v"),
		ExpressionAttributeNames: map[string]string{"#f": field},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":v": &types.AttributeValueMemberS{Value: value},
		},
	})
	return err
}

// HDel removes fields. Missing fields are not an error.
func (s *Store) HDel(ctx context.Context, key string, fields ...string) error {
	if len(fields) == 0 {
		return nil
	}
	expr := newExprBuilder()
	for _, f := range fields {
		expr.remove(f)
	}
	_, err := s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                aws.String(s.cfg.Table),
		Key:                      s.pk(key),
		UpdateExpression:         aws.String(expr.updateExpression()),
		ExpressionAttributeNames: expr.names,
	})
	return err
}

// HGetAll reads the whole item and strips the partition key attribute.
func (s *Store) HGetAll(ctx context.Context, key string) (map[string]string, error) {
	result, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.cfg.Table),
		Key:       s.pk(key),
	})
	if err != nil {
		return nil, err
	}
	if result.Item == nil {
		return map[string]string{}, nil
	}
	delete(result.Item, keyAttr)

	fields := make(map[string]string, len(result.Item))
	if err := attributevalue.UnmarshalMap(result.Item, &fields); err != nil {
		return nil, err
	}
	return fields, nil
}

// Begin starts a conditional transaction backed by TransactWriteItems.
func (s *Store) Begin() kv.Tx {
	return &tx{store: s}
}
