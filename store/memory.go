package store

import (
	"context"
	"fmt"
	"sync"
)

// MemoryStore keeps collections in process memory.
type MemoryStore struct {
	mu          sync.Mutex
	strict      bool
	collections map[string]*memoryCollection
}

// NewMemory creates an empty MemoryStore that creates collections on first use.
func NewMemory() *MemoryStore {
	return &MemoryStore{collections: make(map[string]*memoryCollection)}
}

// NewStrictMemory creates an empty MemoryStore that only serves collections
// registered with CreateCollection.
func NewStrictMemory() *MemoryStore {
	m := NewMemory()
	m.strict = true
	return m
}

// CreateCollection registers an empty collection.
func (m *MemoryStore) CreateCollection(name, keyField string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.collections[name]; !ok {
		m.collections[name] = &memoryCollection{store: m, name: name, keyField: keyField, docs: make(map[string]Document)}
	}
}

// Collection implements Store.
func (m *MemoryStore) Collection(_ context.Context, name, keyField string) (Collection, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.collections[name]
	if !ok {
		if m.strict {
			return nil, fmt.Errorf("%w: %s", ErrCollectionNotFound, name)
		}
		c = &memoryCollection{store: m, name: name, keyField: keyField, docs: make(map[string]Document)}
		m.collections[name] = c
	}
	return c, nil
}

// Get returns a copy of the document stored under key.
func (m *MemoryStore) Get(collection string, key any) (Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.collections[collection]
	if !ok {
		return nil, ErrNotFound
	}
	doc, ok := c.docs[KeyString(key)]
	if !ok {
		return nil, ErrNotFound
	}
	return doc.Clone(), nil
}

// Len returns the number of documents in collection.
func (m *MemoryStore) Len(collection string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c, ok := m.collections[collection]; ok {
		return len(c.docs)
	}
	return 0
}

type memoryCollection struct {
	store    *MemoryStore
	name     string
	keyField string
	docs     map[string]Document
}

func (c *memoryCollection) Name() string { return c.name }

func (c *memoryCollection) Insert(_ context.Context, doc Document) (int, error) {
	c.store.mu.Lock()
	defer c.store.mu.Unlock()
	k := KeyString(doc[c.keyField])
	if _, exists := c.docs[k]; exists {
		return 0, ErrDuplicateKey
	}
	c.docs[k] = doc.Clone()
	return 1, nil
}

func (c *memoryCollection) Update(_ context.Context, filter Filter, delta Document) (int, error) {
	c.store.mu.Lock()
	defer c.store.mu.Unlock()
	doc, ok := c.docs[KeyString(filter.Key)]
	if !ok || !matches(doc, filter.Match) {
		return 0, nil
	}
	for field, v := range delta {
		if field == c.keyField {
			continue
		}
		doc[field] = v
	}
	return 1, nil
}

func (c *memoryCollection) Remove(_ context.Context, filter Filter) (int, error) {
	c.store.mu.Lock()
	defer c.store.mu.Unlock()
	k := KeyString(filter.Key)
	doc, ok := c.docs[k]
	if !ok || !matches(doc, filter.Match) {
		return 0, nil
	}
	delete(c.docs, k)
	return 1, nil
}
