package store

import "errors"

var (
	// ErrDuplicateKey is returned by Insert when a document with the same key already exists.
	ErrDuplicateKey = errors.New("changeset: duplicate key")

	// ErrCollectionNotFound is returned when the backing collection does not exist.
	ErrCollectionNotFound = errors.New("changeset: collection not found")

	// ErrNotFound is returned by lookups when the document doesn't exist or is soft-deleted.
	ErrNotFound = errors.New("changeset: document not found")
)
