// Package lru implements a fixed-capacity least-recently-used cache
// holding weak references to its values.
//
// The cache never keeps a value alive: each entry is a [weak.Pointer],
// so a cached value survives only as long as some caller holds a
// strong pointer to it. The cache is an accelerator for values owned
// elsewhere - typically a pin table that holds strong references while
// a value is in use - not an owner itself.
//
// Entries die two ways. When an insert finds the cache at capacity,
// the least-recently-used entry is evicted to make room. When a Get
// finds that an entry's value has been collected, the dead entry is
// purged and the lookup reports a miss; this lazy sweep is the only
// reclamation path, so Len may count dead entries until they are
// looked up.
//
// A Cache is not safe for concurrent use.
package lru
