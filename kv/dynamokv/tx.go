package dynamokv

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

type cond struct {
	key, field string
	value      *string
}

type write struct {
	key, field, value string
	delete            bool
}

type tx struct {
	store  *Store
	conds  []cond
	writes []write
}

func (t *tx) Require(key, field string, value *string) {
	t.conds = append(t.conds, cond{key: key, field: field, value: value})
}

func (t *tx) Set(key, field, value string) {
	t.writes = append(t.writes, write{key: key, field: field, value: value})
}

func (t *tx) Del(key, field string) {
	t.writes = append(t.writes, write{key: key, field: field, delete: true})
}

// Commit folds the staged operations into one TransactWriteItems call.
// DynamoDB allows each item to appear only once per transaction, so
// operations are grouped by hash key first: a key with writes becomes a
// conditional Update carrying that key's preconditions, a key with only
// preconditions becomes a ConditionCheck.
func (t *tx) Commit(ctx context.Context) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	items := t.buildItems()
	if len(items) == 0 {
		return true, nil
	}

	_, err := t.store.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: items,
	})
	if err == nil {
		return true, nil
	}

	var txErr *types.TransactionCanceledException
	if errors.As(err, &txErr) {
		for _, reason := range txErr.CancellationReasons {
			if reason.Code != nil && *reason.Code == "ConditionalCheckFailed" {
				return false, nil
			}
		}
	}
	return false, err
}

// buildItems groups staged operations by key, in first-seen order, and
// renders one transact item per key.
func (t *tx) buildItems() []types.TransactWriteItem {
	var order []string
	groups := make(map[string]*exprBuilder)

	group := func(key string) *exprBuilder {
		b, ok := groups[key]
		if !ok {
			b = newExprBuilder()
			groups[key] = b
			order = append(order, key)
		}
		return b
	}

	for _, c := range t.conds {
		group(c.key).require(c.field, c.value)
	}
	for _, w := range t.writes {
		if w.delete {
			group(w.key).remove(w.field)
		} else {
			group(w.key).set(w.field, w.value)
		}
	}

	items := make([]types.TransactWriteItem, 0, len(order))
	for _, key := range order {
		b := groups[key]
		updateExpr := b.updateExpression()
		condExpr := b.conditionExpression()

		if updateExpr == "" {
			if condExpr == "" {
				continue
			}
			items = append(items, types.TransactWriteItem{
				ConditionCheck: &types.ConditionCheck{
					TableName:                 aws.String(t.store.cfg.Table),
					Key:                       t.store.pk(key),
					ConditionExpression:       aws.String(condExpr),
					ExpressionAttributeNames:  b.names,
					ExpressionAttributeValues: b.valuesOrNil(),
				},
			})
			continue
		}

		update := &types.Update{
			TableName:                 aws.String(t.store.cfg.Table),
			Key:                       t.store.pk(key),
			UpdateExpression:          aws.String(updateExpr),
			ExpressionAttributeNames:  b.names,
			ExpressionAttributeValues: b.valuesOrNil(),
		}
		if condExpr != "" {
			update.ConditionExpression = aws.String(condExpr)
		}
		items = append(items, types.TransactWriteItem{Update: update})
	}
	return items
}

// exprBuilder accumulates update and condition clauses with generated
// attribute placeholders.
type exprBuilder struct {
	names   map[string]string
	values  map[string]types.AttributeValue
	sets    []string
	removes []string
	conds   []string
	n       int
}

func newExprBuilder() *exprBuilder {
	return &exprBuilder{
		names:  make(map[string]string),
		values: make(map[string]types.AttributeValue),
	}
}

func (e *exprBuilder) next() int {
	e.n++
	return e.n - 1
}

func (e *exprBuilder) set(field, value string) {
	i := e.next()
	nameKey := fmt.Sprintf("#a%d", i)
	valueKey := fmt.Sprintf(":v%d", i)
	e.names[nameKey] = field
	e.values[valueKey] = &types.AttributeValueMemberS{Value: value}
	e.sets = append(e.sets, fmt.Sprintf("%s = %s", nameKey, valueKey))
}

func (e *exprBuilder) remove(field string) {
	i := e.next()
	nameKey := fmt.Sprintf("#a%d", i)
	e.names[nameKey] = field
	e.removes = append(e.removes, nameKey)
}

func (e *exprBuilder) require(field string, value *string) {
	i := e.next()
	nameKey := fmt.Sprintf("#a%d", i)
	e.names[nameKey] = field
	if value == nil {
		e.conds = append(e.conds, fmt.Sprintf("attribute_not_exists(%s)", nameKey))
		return
	}
	valueKey := fmt.Sprintf(":v%d", i)
	e.values[valueKey] = &types.AttributeValueMemberS{Value: *value}
	e.conds = append(e.conds, fmt.Sprintf("%s = %s", nameKey, valueKey))
}

func (e *exprBuilder) updateExpression() string {
	var parts []string
	if len(e.sets) > 0 {
		parts = append(parts, "SET "+strings.Join(e.sets, ", "))
	}
	if len(e.removes) > 0 {
		parts = append(parts, "REMOVE "+strings.Join(e.removes, ", "))
	}
	return strings.Join(parts, " ")
}

func (e *exprBuilder) conditionExpression() string {
	return strings.Join(e.conds, " AND ")
}

// valuesOrNil returns nil in place of an empty value map, which the
// DynamoDB API rejects.
func (e *exprBuilder) valuesOrNil() map[string]types.AttributeValue {
	if len(e.values) == 0 {
		return nil
	}
	return e.values
}
