package store

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/xid"
	"github.com/vmihailenco/msgpack/v5"
	"go.etcd.io/bbolt"
)

// BoltStore keeps each collection in its own bbolt bucket, with documents
// encoded as msgpack maps under their canonical key string.
type BoltStore struct {
	bdb *bbolt.DB
}

// OpenBolt opens (or creates) the database file at path.
func OpenBolt(path string) (*BoltStore, error) {
	bopt := &bbolt.Options{}
	*bopt = *bbolt.DefaultOptions
	bopt.Timeout = 5 * time.Second
	bopt.FreelistType = bbolt.FreelistMapType

	bdb, err := bbolt.Open(path, 0666, bopt)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	return &BoltStore{bdb: bdb}, nil
}

// Close closes the underlying database.
func (s *BoltStore) Close() error {
	return s.bdb.Close()
}

// Collection implements Store, creating the bucket on first use.
func (s *BoltStore) Collection(_ context.Context, name, keyField string) (Collection, error) {
	err := s.bdb.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(name))
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("create bucket %s: %w", name, err)
	}
	return &boltCollection{bdb: s.bdb, name: name, keyField: keyField}, nil
}

// Get returns the document stored under key.
func (s *BoltStore) Get(collection string, key any) (Document, error) {
	var doc Document
	err := s.bdb.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(collection))
		if b == nil {
			return ErrNotFound
		}
		data := b.Get([]byte(KeyString(key)))
		if data == nil {
			return ErrNotFound
		}
		var err error
		doc, err = decodeDocument(data)
		return err
	})
	return doc, err
}

type boltCollection struct {
	bdb      *bbolt.DB
	name     string
	keyField string
}

func (c *boltCollection) Name() string { return c.name }

func (c *boltCollection) Insert(_ context.Context, doc Document) (int, error) {
	k := []byte(KeyString(doc[c.keyField]))
	data, err := encodeDocument(doc)
	if err != nil {
		return 0, err
	}
	err = c.bdb.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(c.name))
		if b.Get(k) != nil {
			return ErrDuplicateKey
		}
		return b.Put(k, data)
	})
	if err != nil {
		return 0, err
	}
	return 1, nil
}

func (c *boltCollection) Update(_ context.Context, filter Filter, delta Document) (int, error) {
	k := []byte(KeyString(filter.Key))
	n := 0
	err := c.bdb.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(c.name))
		data := b.Get(k)
		if data == nil {
			return nil
		}
		doc, err := decodeDocument(data)
		if err != nil {
			return err
		}
		if !matches(doc, filter.Match) {
			return nil
		}
		for field, v := range delta {
			if field == c.keyField {
				continue
			}
			doc[field] = v
		}
		data, err = encodeDocument(doc)
		if err != nil {
			return err
		}
		n = 1
		return b.Put(k, data)
	})
	if err != nil {
		return 0, err
	}
	return n, nil
}

func (c *boltCollection) Remove(_ context.Context, filter Filter) (int, error) {
	k := []byte(KeyString(filter.Key))
	n := 0
	err := c.bdb.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(c.name))
		data := b.Get(k)
		if data == nil {
			return nil
		}
		doc, err := decodeDocument(data)
		if err != nil {
			return err
		}
		if !matches(doc, filter.Match) {
			return nil
		}
		n = 1
		return b.Delete(k)
	})
	if err != nil {
		return 0, err
	}
	return n, nil
}

// encodeDocument stores binary ids as raw bytes so they decode to []byte.
func encodeDocument(doc Document) ([]byte, error) {
	m := make(map[string]any, len(doc))
	for k, v := range doc {
		if id, ok := v.(xid.ID); ok {
			v = id.Bytes()
		}
		m[k] = v
	}
	data, err := msgpack.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("encode document: %w", err)
	}
	return data, nil
}

func decodeDocument(data []byte) (Document, error) {
	var doc Document
	if err := msgpack.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode document: %w", err)
	}
	if doc == nil {
		doc = Document{}
	}
	return doc, nil
}
