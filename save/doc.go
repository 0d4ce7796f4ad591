// Package save persists a batch of entity mutations (a change set) to a
// document store.
//
// A batch goes through these phases:
//
//	building     entities are grouped by type, optionally filtered
//	preparing    metadata is reviewed and every entity becomes one insert,
//	             update or delete; added entities get server keys
//	fixing up    foreign keys holding a placeholder key are rewritten to
//	             the real key
//	dispatching  every operation is issued concurrently
//	completing   the after-save hook runs, then the outcome is delivered
//
// Preparation is fail-fast: any error ends the batch before the first store
// call. Dispatch is fail-soft: each failed operation becomes an [ErrorEntry]
// and the batch ends with [ErrPartialFailure] carrying the full [Result].
// The store is not transactional, so successful writes of a partially
// failed batch remain.
//
// # Usage
//
//	res, err := save.SaveBatch(ctx, st, req,
//	    save.WithLogger(logger),
//	    save.WithBeforeSave(func(ctx context.Context, s *save.Saver, next func()) error {
//	        next()
//	        return nil
//	    }),
//	)
//
// Or, with an explicit callback:
//
//	s := save.New(st, req, func(res *save.Result, err error) { ... })
//	s.AddEntity(auditEntry)
//	s.Save(ctx)
//
// # Placeholder keys
//
// An added entity may carry a client-chosen placeholder in Aspect.TempKey.
// If its type generates keys (AutoKeyRandomUUID or AutoKeyBinaryID) the
// server assigns a real key and records a [KeyMapping]. Foreign-key fields of
// other entities in the same batch that hold the placeholder are rewritten
// before dispatch. Resolution is one level deep.
//
// # Errors
//
//   - [ErrValidation] - unknown type, bad state, conversion failure, bad metadata
//   - [ErrConflict] - duplicate key on insert
//   - [ErrNotFound] - update or delete matched nothing
//   - [ErrInternal] - hook, store or malformed-result failure
//   - [ErrPartialFailure] - terminal error of a batch with error entries
package save
