package aspcheck

import "time"

// Store is the cache contract the Scheduler consults. A Lookup never
// parses; a miss is reported as false.
type Store interface {
	// Lookup returns the stored result for key, if any
	Lookup(key CacheKey) (ParseResult, bool)

	// Store records result under key, replacing any previous entry
	Store(key CacheKey, result ParseResult) error

	// Sweep deletes persisted entries older than maxAge
	Sweep(maxAge time.Duration) (int, error)

	Close() error
}

// Backend persists entries by their hex key. Implementations are not
// required to be safe for concurrent use; Cache serializes every call.
type Backend interface {
	// Get returns ErrEntryNotFound for a missing key and an error wrapping
	// ErrCorruptEntry for an undecodable one.
	Get(key string) (CacheEntry, error)
	Put(key string, entry CacheEntry) error
	// Sweep removes entries stored before cutoff and any it cannot decode.
	Sweep(cutoff time.Time) (int, error)
	Close() error
}
