package save

import (
	"errors"
	"testing"

	"github.com/jacentio/changeset/store"
)

func insertDoc(body map[string]any) *Document {
	return &Document{Op: OpInsert, Body: store.Document(body)}
}

func TestResolveFixups_RewritesPlaceholders(t *testing.T) {
	line := insertDoc(map[string]any{"orderId": "temp-1"})
	upd := &Document{Op: OpUpdate, Delta: store.Document{"orderId": "temp-2"}}
	kept := insertDoc(map[string]any{"orderId": "o-9"})

	fixups := []pendingFixup{
		{doc: line, field: "orderId", value: "temp-1"},
		{doc: upd, field: "orderId", value: "temp-2"},
		{doc: kept, field: "orderId", value: "o-9"},
	}
	mappings := []KeyMapping{
		{TypeName: "Order", TempValue: "temp-1", RealValue: "o-1"},
		{TypeName: "Order", TempValue: "temp-2", RealValue: "o-2"},
	}

	n, err := resolveFixups(fixups, mappings)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 2 {
		t.Errorf("expected 2 rewrites, got %d", n)
	}
	if line.Body["orderId"] != "o-1" {
		t.Errorf("expected insert body rewritten to o-1, got %v", line.Body["orderId"])
	}
	if upd.Delta["orderId"] != "o-2" {
		t.Errorf("expected update delta rewritten to o-2, got %v", upd.Delta["orderId"])
	}
	if kept.Body["orderId"] != "o-9" {
		t.Errorf("expected real key untouched, got %v", kept.Body["orderId"])
	}
}

func TestResolveFixups_SingleLevel(t *testing.T) {
	doc := insertDoc(map[string]any{"parentId": "a"})
	mappings := []KeyMapping{
		{TempValue: "a", RealValue: "b"},
		{TempValue: "b", RealValue: "c"},
	}

	if _, err := resolveFixups([]pendingFixup{{doc: doc, field: "parentId", value: "a"}}, mappings); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if doc.Body["parentId"] != "b" {
		t.Errorf("expected one-level resolution to b, got %v", doc.Body["parentId"])
	}
}

func TestResolveFixups_FirstMappingWins(t *testing.T) {
	doc := insertDoc(map[string]any{"ref": "temp"})
	mappings := []KeyMapping{
		{TypeName: "A", TempValue: "temp", RealValue: "first"},
		{TypeName: "B", TempValue: "temp", RealValue: "second"},
	}

	if _, err := resolveFixups([]pendingFixup{{doc: doc, field: "ref", value: "temp"}}, mappings); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if doc.Body["ref"] != "first" {
		t.Errorf("expected first mapping to win, got %v", doc.Body["ref"])
	}
}

func TestResolveFixups_NumericWidths(t *testing.T) {
	doc := insertDoc(map[string]any{"ref": float64(-1)})
	mappings := []KeyMapping{{TempValue: int64(-1), RealValue: int64(42)}}

	n, err := resolveFixups([]pendingFixup{{doc: doc, field: "ref", value: float64(-1)}}, mappings)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 1 || doc.Body["ref"] != int64(42) {
		t.Errorf("expected -1 resolved to 42, got %v (%d rewrites)", doc.Body["ref"], n)
	}
}

func TestResolveFixups_UnresolvedInvalidValue(t *testing.T) {
	doc := insertDoc(map[string]any{"orderId": "temp-404"})
	invalid := &Error{Kind: KindValidation, Op: "prepare", Field: "orderId", Value: "temp-404", Msg: "invalid value"}

	_, err := resolveFixups([]pendingFixup{{doc: doc, field: "orderId", value: "temp-404", invalid: invalid}}, nil)
	if !errors.Is(err, ErrValidation) {
		t.Errorf("expected validation error for unresolved invalid value, got %v", err)
	}
}

func TestResolveFixups_SkipsDeletes(t *testing.T) {
	doc := &Document{Op: OpDelete}
	n, err := resolveFixups([]pendingFixup{{doc: doc, field: "x", value: "temp-1"}},
		[]KeyMapping{{TempValue: "temp-1", RealValue: "r"}})
	if err != nil || n != 0 {
		t.Errorf("expected deletes to be skipped, got n=%d err=%v", n, err)
	}
}
