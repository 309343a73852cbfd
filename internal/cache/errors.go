package cache

import "fmt"

// StoreError is a ledger operation failure: opening the database,
// recording a row, or running a query. The ledger is advisory, so
// callers usually degrade to uncached operation instead of failing.
type StoreError struct {
	Op  string // "open", "record", "lookup", "history"
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("ledger %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }
