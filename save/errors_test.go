package save

import (
	"errors"
	"net/http"
	"testing"

	"github.com/jacentio/changeset/store"
)

func TestError_IsSentinel(t *testing.T) {
	tests := []struct {
		kind     Kind
		sentinel error
		status   int
	}{
		{KindValidation, ErrValidation, http.StatusBadRequest},
		{KindConflict, ErrConflict, http.StatusConflict},
		{KindNotFound, ErrNotFound, http.StatusNotFound},
		{KindInternal, ErrInternal, http.StatusInternalServerError},
		{KindPartialFailure, ErrPartialFailure, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.kind.String(), func(t *testing.T) {
			err := &Error{Kind: tt.kind, Op: "test"}
			if !errors.Is(err, tt.sentinel) {
				t.Errorf("expected %v to match %v", err, tt.sentinel)
			}
			if tt.kind.Status() != tt.status {
				t.Errorf("expected status %d, got %d", tt.status, tt.kind.Status())
			}
			if KindOf(err) != tt.kind {
				t.Errorf("expected KindOf %v, got %v", tt.kind, KindOf(err))
			}
		})
	}
}

func TestError_Message(t *testing.T) {
	err := &Error{Kind: KindValidation, Op: "prepare", TypeName: "Order", Key: "o1", Field: "total",
		Value: "x", Msg: "invalid value", Err: errors.New("not a number")}
	expected := "changeset: prepare: invalid value (type Order, key o1, field total, value x): not a number"
	if err.Error() != expected {
		t.Errorf("expected %q, got %q", expected, err.Error())
	}
}

func TestKindOf_PlainError(t *testing.T) {
	if KindOf(errors.New("x")) != KindInternal {
		t.Error("expected plain errors to be internal")
	}
	if ResultOf(errors.New("x")) != nil {
		t.Error("expected no result on plain errors")
	}
}

func TestWrapHookError(t *testing.T) {
	plain := wrapHookError("before save hook", errors.New("nope"))
	if plain.Kind != KindInternal || plain.Op != "before save hook" {
		t.Errorf("expected internal hook error, got %+v", plain)
	}

	typed := wrapHookError("before save hook", &Error{Kind: KindValidation, Msg: "bad tag"})
	if !errors.Is(typed, ErrValidation) {
		t.Errorf("expected hook validation error to keep its kind, got %v", typed)
	}
}

func TestClassify(t *testing.T) {
	plain := &TypeMetadata{TypeName: "Tag"}
	versioned := &TypeMetadata{TypeName: "Order", ConcurrencyField: &FieldMetadata{Name: "v"}}
	ins := &Document{Op: OpInsert, Key: "k", Entity: NewEntity("Tag", StateAdded, nil)}
	upd := &Document{Op: OpUpdate, Key: "k", Entity: NewEntity("Tag", StateModified, nil)}
	del := &Document{Op: OpDelete, Key: "k", Entity: NewEntity("Tag", StateDeleted, nil)}

	tests := []struct {
		name        string
		md          *TypeMetadata
		doc         *Document
		n           int
		err         error
		kind        Kind
		concurrency bool
	}{
		{"insert ok", plain, ins, 1, nil, 0, false},
		{"insert duplicate", plain, ins, 0, store.ErrDuplicateKey, KindConflict, false},
		{"insert wrong count", plain, ins, 0, nil, KindInternal, false},
		{"insert store error", plain, ins, 0, errors.New("io"), KindInternal, false},
		{"update ok", plain, upd, 1, nil, 0, false},
		{"update not found", plain, upd, 0, nil, KindNotFound, false},
		{"update stale token", versioned, upd, 0, nil, KindNotFound, true},
		{"update many", plain, upd, 2, nil, KindInternal, false},
		{"delete not found", plain, del, 0, nil, KindNotFound, false},
		{"delete duplicate error is internal", plain, del, 0, store.ErrDuplicateKey, KindInternal, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			entry := classify(tt.md, tt.doc, tt.n, tt.err)
			if tt.kind == 0 {
				if entry != nil {
					t.Errorf("expected success, got %+v", entry)
				}
				return
			}
			if entry == nil {
				t.Fatal("expected an error entry")
			}
			if entry.Kind != tt.kind || entry.Status != tt.kind.Status() {
				t.Errorf("expected kind %v, got %v (status %d)", tt.kind, entry.Kind, entry.Status)
			}
			if entry.Concurrency != tt.concurrency {
				t.Errorf("expected concurrency %v, got %v", tt.concurrency, entry.Concurrency)
			}
			if entry.Key != "k" || entry.TypeName != tt.md.TypeName {
				t.Errorf("expected entry to identify %s/k, got %s/%v", tt.md.TypeName, entry.TypeName, entry.Key)
			}
		})
	}
}

func TestAggregator_FrozenIgnoresRecords(t *testing.T) {
	a := newAggregator()
	md := &TypeMetadata{TypeName: "Tag"}
	a.record(md, &Document{Op: OpInsert, Key: "a", Entity: NewEntity("Tag", StateAdded, nil)}, 1, nil)
	res := a.freeze()
	a.record(md, &Document{Op: OpInsert, Key: "b", Entity: NewEntity("Tag", StateAdded, nil)}, 1, nil)

	if len(res.InsertedKeys) != 1 || res.InsertedKeys[0].Key != "a" {
		t.Errorf("expected only the pre-freeze record, got %+v", res.InsertedKeys)
	}
}

func TestKind_TextRoundTrip(t *testing.T) {
	for k := KindValidation; k <= KindPartialFailure; k++ {
		text, _ := k.MarshalText()
		var got Kind
		if err := got.UnmarshalText(text); err != nil {
			t.Fatalf("unexpected error for %s: %v", text, err)
		}
		if got != k {
			t.Errorf("expected %v, got %v", k, got)
		}
	}
	var k Kind
	if err := k.UnmarshalText([]byte("bogus")); err == nil {
		t.Error("expected error for unknown kind")
	}
}
