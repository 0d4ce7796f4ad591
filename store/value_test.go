package store

import (
	"testing"
	"time"

	"github.com/rs/xid"
)

func TestKeyString(t *testing.T) {
	id := xid.New()
	ts := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)

	tests := []struct {
		name string
		a, b any
		same bool
	}{
		{"same string", "k1", "k1", true},
		{"string vs number", "1", 1, false},
		{"int widths", int64(5), 5.0, true},
		{"uint vs int", uint8(5), int32(5), true},
		{"binary id vs bytes", id, id.Bytes(), true},
		{"time zones", ts, ts.In(time.FixedZone("X", 3600)), true},
		{"bools", true, true, true},
		{"nil", nil, nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := KeyString(tt.a) == KeyString(tt.b)
			if got != tt.same {
				t.Errorf("expected same=%v for %q and %q", tt.same, KeyString(tt.a), KeyString(tt.b))
			}
		})
	}
}

func TestValuesEqual(t *testing.T) {
	id := xid.New()
	now := time.Now()

	tests := []struct {
		name     string
		a, b     any
		expected bool
	}{
		{"nil nil", nil, nil, true},
		{"nil vs value", nil, 0, false},
		{"int8 vs int64", int8(3), int64(3), true},
		{"float vs int", 3.5, int64(3), false},
		{"xid vs bytes", id, id.Bytes(), true},
		{"bytes vs string", []byte("a"), "a", false},
		{"times", now, now.UTC(), true},
		{"strings", "a", "a", true},
		{"slices", []any{"a"}, []any{"a"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ValuesEqual(tt.a, tt.b); got != tt.expected {
				t.Errorf("expected %v, got %v", tt.expected, got)
			}
		})
	}
}

func TestMatches_AbsentFieldMatchesNil(t *testing.T) {
	doc := Document{"_id": "a"}
	if !matches(doc, map[string]any{"version": nil}) {
		t.Error("expected absent field to match nil")
	}
	if matches(doc, map[string]any{"version": 1}) {
		t.Error("expected absent field not to match 1")
	}
}
