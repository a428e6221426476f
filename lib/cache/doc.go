// Package cache implements AsyncCache, a generic single-flight cache of lazily
// computed values with explicit invalidation.
//
// Every higher level cache of the client (collections, routing maps, replica
// addresses, database account) is built on top of it.
//
// Semantics:
//
//   - Get(ctx, key, obsolete, factory): if no entry exists, the factory is
//     started and the caller waits for it. Concurrent callers for the same key
//     converge on the same computation. If an entry exists and is still running,
//     or resolved to a value different from obsolete, that entry is returned as
//     is. Only when the resolved value equals obsolete is a new computation
//     raced in; the first caller to swap the slot wins and every other caller
//     waits on the winner.
//
//   - Refresh(ctx, key, factory) replaces a completed entry with a new
//     computation. In-flight entries are left alone.
//
//   - Set and Remove are direct overrides.
//
//   - Failed computations are never cached. The failing entry is removed from
//     the map, so the next Get starts a fresh computation.
//
// The zero value of V is interpreted as "no obsolete value". Values should
// therefore be pointers (or other comparable handles) whose zero value never
// appears as a real result.
//
// The slots live in a xsync.MapOf; its Compute method is used as the compare
// and swap primitive on a single slot. No lock is held while a factory runs.
package cache
