// Package index holds the interface shared by the disk B+ tree and the
// pebble-backed reference index.
package index

import "github.com/btree-query-bench/bpindex/dbms/record"

// Index maps int32 keys to record locators. Duplicate keys are allowed.
type Index interface {
	Insert(key int32, loc record.Locator) error
	// Lookup returns every locator stored under key, in insertion order.
	Lookup(key int32) ([]record.Locator, error)
	// Range iterates over all entries with start <= key <= end.
	Range(start, end int32) (Iterator, error)
	Close() error
}

// Iterator allows scanning over a range of entries in key order.
type Iterator interface {
	Next() bool
	Key() int32
	Locator() record.Locator
	Error() error
	Close() error
}
