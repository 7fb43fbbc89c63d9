// Package store is the record store facade: the persistence boundary the
// order and influence services read from and write to. Two backends are
// provided, selected per deployment: an in-memory store (tests, demos)
// and postgres. Both guarantee read-after-write per entity and detect
// concurrent writes through an optimistic version check; callers treat
// read-validate-write as a critical section per entity id and never
// retry internally.
package store

import "errors"

var (
	// ErrNotFound means no entity exists under the requested id.
	ErrNotFound = errors.New("record not found")
	// ErrConflict means a concurrent write was detected: the put carried
	// a stale version, or an insert hit an existing id.
	ErrConflict = errors.New("concurrent write conflict")
)

// Drivers.
const (
	DriverMemory   = "memory"
	DriverPostgres = "postgres"
)
