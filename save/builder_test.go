package save

import (
	"errors"
	"testing"
)

func TestBuildGroups_FirstSeenOrder(t *testing.T) {
	entities := []*Entity{
		NewEntity("Order", StateAdded, nil),
		NewEntity("Line", StateAdded, nil),
		NewEntity("Order", StateModified, nil),
		nil,
	}

	groups, order, err := buildGroups(entities, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(order) != 2 || order[0] != "Order" || order[1] != "Line" {
		t.Errorf("expected order [Order Line], got %v", order)
	}
	if len(groups["Order"]) != 2 || len(groups["Line"]) != 1 {
		t.Errorf("unexpected group sizes: %d orders, %d lines", len(groups["Order"]), len(groups["Line"]))
	}
}

func TestBuildGroups_FilterSkips(t *testing.T) {
	entities := []*Entity{
		NewEntity("Order", StateAdded, map[string]any{"keep": true}),
		NewEntity("Order", StateAdded, map[string]any{"keep": false}),
		NewEntity("Line", StateAdded, map[string]any{"keep": false}),
	}
	filter := func(e *Entity) (bool, error) {
		return e.Fields["keep"] == true, nil
	}

	groups, order, err := buildGroups(entities, filter)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(order) != 1 || len(groups["Order"]) != 1 {
		t.Errorf("expected only one kept Order, got order %v", order)
	}
	if _, ok := groups["Line"]; ok {
		t.Error("expected fully filtered type to be absent")
	}
}

func TestBuildGroups_FilterErrorAborts(t *testing.T) {
	boom := errors.New("boom")
	entities := []*Entity{NewEntity("Order", StateAdded, nil)}

	groups, _, err := buildGroups(entities, func(*Entity) (bool, error) { return false, boom })
	if !errors.Is(err, boom) {
		t.Fatalf("expected wrapped filter error, got %v", err)
	}
	var e *Error
	if !errors.As(err, &e) || e.Op != "build change set" {
		t.Errorf("expected build change set context, got %v", err)
	}
	if groups != nil {
		t.Error("expected no partial groups")
	}
}

func TestBuildGroups_FilterPanic(t *testing.T) {
	entities := []*Entity{NewEntity("Order", StateAdded, nil)}
	_, _, err := buildGroups(entities, func(*Entity) (bool, error) { panic("bad filter") })
	if !errors.Is(err, ErrInternal) {
		t.Errorf("expected internal error, got %v", err)
	}
}
