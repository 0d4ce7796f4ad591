// Package store defines the document store contract used by change-set saves
// and provides three backends for it.
//
// A [Store] hands out [Collection] handles. Each collection is keyed by a
// single field and supports three calls, each reporting an affected-document
// count or an error:
//
//	Insert(ctx, doc)            // 1 on success, ErrDuplicateKey when the key exists
//	Update(ctx, filter, delta)  // 1 when the filter matched, 0 otherwise
//	Remove(ctx, filter)         // 1 when the filter matched, 0 otherwise
//
// A [Filter] always names the key and may carry extra equality conditions,
// which is how optimistic concurrency tokens are enforced.
//
// # Backends
//
//   - [MemoryStore] - process-local maps, used by tests and tooling
//   - [DynamoStore] - one DynamoDB table per collection, conditional writes
//   - [BoltStore] - one bbolt bucket per collection, msgpack-encoded documents
//
// # Errors
//
//   - [ErrDuplicateKey] - insert found an existing document with the same key
//   - [ErrCollectionNotFound] - the backing table does not exist
//   - [ErrNotFound] - document lookup found nothing (or a soft-deleted item)
package store
