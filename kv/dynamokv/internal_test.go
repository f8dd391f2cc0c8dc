package dynamokv

import (
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

func testTx() *tx {
	cfg := DefaultConfig()
	return &tx{store: &Store{cfg: cfg}}
}

func TestBuildItems_GroupsByKey(t *testing.T) {
	ver := "3"
	tr := testTx()
	tr.Require("user", "ver", &ver)
	tr.Set("user", "data", "{}")
	tr.Set("user", "ver", "4")
	tr.Set("idx", "ALICE", "u1")
	tr.Del("idx", "OLD")

	items := tr.buildItems()
	if len(items) != 2 {
		t.Fatalf("expected 2 transact items, got %d", len(items))
	}

	// First-seen order: the guarded key first.
	user := items[0].Update
	if user == nil {
		t.Fatal("expected Update item for guarded key")
	}
	if user.ConditionExpression == nil || *user.ConditionExpression == "" {
		t.Error("guarded key lost its condition expression")
	}
	if got := user.Key["k"].(*types.AttributeValueMemberS).Value; got != "user" {
		t.Errorf("unexpected key: %q", got)
	}

	idx := items[1].Update
	if idx == nil {
		t.Fatal("expected Update item for index key")
	}
	if idx.ConditionExpression != nil {
		t.Error("unguarded key carries a condition expression")
	}
	if *idx.UpdateExpression == "" {
		t.Error("index update expression is empty")
	}
}

func TestBuildItems_ConditionOnlyKeyBecomesCheck(t *testing.T) {
	tr := testTx()
	tr.Require("parent", "data", nil)
	tr.Set("child", "data", "{}")

	items := tr.buildItems()
	if len(items) != 2 {
		t.Fatalf("expected 2 transact items, got %d", len(items))
	}
	if items[0].ConditionCheck == nil {
		t.Fatal("expected ConditionCheck for condition-only key")
	}
	if got := *items[0].ConditionCheck.ConditionExpression; got != "attribute_not_exists(#a0)" {
		t.Errorf("unexpected condition expression: %q", got)
	}
	if items[0].ConditionCheck.ExpressionAttributeValues != nil {
		t.Error("absence check must not carry attribute values")
	}
}

func TestExprBuilder_UpdateExpression(t *testing.T) {
	e := newExprBuilder()
	e.set("data", "{}")
	e.set("ver", "2")
	e.remove("stale")

	want := "SET #a0 = :v0, #a1 = :v1 REMOVE #a2"
	if got := e.updateExpression(); got != want {
		t.Errorf("got %q, want %q", got, want)
	}
	if e.names["#a2"] != "stale" {
		t.Errorf("unexpected names: %v", e.names)
	}
	if v := e.values[":v1"].(*types.AttributeValueMemberS).Value; v != "2" {
		t.Errorf("unexpected value binding: %v", e.values)
	}
}

func TestExprBuilder_ConditionExpression(t *testing.T) {
	ver := "7"
	e := newExprBuilder()
	e.require("ver", &ver)
	e.require("data", nil)

	want := "#a0 = :v0 AND attribute_not_exists(#a1)"
	if got := e.conditionExpression(); got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestExprBuilder_ValuesOrNil(t *testing.T) {
	e := newExprBuilder()
	e.remove("f")
	if e.valuesOrNil() != nil {
		t.Error("expected nil for empty value map")
	}
	e.set("g", "1")
	if e.valuesOrNil() == nil {
		t.Error("expected non-nil value map")
	}
}

func TestConfigValidate(t *testing.T) {
	var cfg Config
	cfg.validate()
	if cfg.Table != "mortise_hashes" {
		t.Errorf("expected default table, got %q", cfg.Table)
	}
}
