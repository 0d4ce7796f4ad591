package store

import "context"

// Document is a field mapping as written to or read from a collection.
type Document map[string]any

// Clone returns a shallow copy of d.
func (d Document) Clone() Document {
	if d == nil {
		return nil
	}
	c := make(Document, len(d))
	for k, v := range d {
		c[k] = v
	}
	return c
}

// Filter selects a single document by key, optionally requiring additional
// fields to hold the given values.
type Filter struct {
	// Key is the value of the collection's key field.
	Key any

	// Match maps field names to values that must be stored for the filter to match.
	// A nil value matches an absent or null field.
	Match map[string]any
}

// Store opens collections.
type Store interface {
	// Collection returns a handle to the named collection whose documents are keyed by keyField.
	Collection(ctx context.Context, name, keyField string) (Collection, error)
}

// Collection is a keyed set of documents.
type Collection interface {
	// Name returns the collection name.
	Name() string

	// Insert writes doc as a new document and returns the number of documents created.
	Insert(ctx context.Context, doc Document) (int, error)

	// Update applies delta to the document selected by filter and returns the number matched.
	Update(ctx context.Context, filter Filter, delta Document) (int, error)

	// Remove deletes the document selected by filter and returns the number removed.
	Remove(ctx context.Context, filter Filter) (int, error)
}
