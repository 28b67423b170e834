// Package lsm wraps Pebble (CockroachDB's LSM storage engine) behind the
// common Index interface so it can be benchmarked alongside the disk B+ tree
// and used as a reference when checking it.
package lsm

import (
	"encoding/binary"
	"math"

	"github.com/btree-query-bench/bpindex/dbms/dberr"
	"github.com/btree-query-bench/bpindex/dbms/index"
	"github.com/btree-query-bench/bpindex/dbms/record"
	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/pebble"
	"go.uber.org/zap"
)

const (
	prefixEntry = 'k'
	entryKeyLen = 1 + 4 + 8 // prefix, key, sequence
)

var seqKey = []byte("m/seq")

// Options configures the LSM.
type Options struct {
	// MemTableSize bounds each memtable in bytes.
	MemTableSize uint64
	Logger       *zap.Logger
}

// DefaultOptions returns the options the benchmark runs with.
func DefaultOptions() Options {
	return Options{MemTableSize: 16 << 20}
}

// LSM stores every (key, locator) pair under its own pebble key. A sequence
// number appended to the key keeps duplicates apart and in insertion order.
type LSM struct {
	db  *pebble.DB
	seq uint64
}

var _ index.Index = (*LSM)(nil)

// Open opens (or creates) a Pebble database at the given directory path.
func Open(dir string, opts Options) (*LSM, error) {
	if opts.MemTableSize == 0 {
		opts.MemTableSize = DefaultOptions().MemTableSize
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	db, err := pebble.Open(dir, &pebble.Options{
		MemTableSize: opts.MemTableSize,
		// Keep spare memtables so one can be flushed while another is active.
		MemTableStopWritesThreshold: 4,
		L0CompactionThreshold:       4,
		L0StopWritesThreshold:       12,
		Logger:                      opts.Logger.Named("pebble").Sugar(),
	})
	if err != nil {
		return nil, dberr.Wrap(dberr.ErrOpenFailed, err, "lsm: open %s", dir)
	}

	l := &LSM{db: db}
	val, closer, err := db.Get(seqKey)
	switch {
	case err == nil:
		if len(val) == 8 {
			l.seq = binary.BigEndian.Uint64(val)
		}
		closer.Close()
	case errors.Is(err, pebble.ErrNotFound):
	default:
		_ = db.Close()
		return nil, dberr.Wrap(dberr.ErrReadFailed, err, "lsm: read sequence in %s", dir)
	}
	return l, nil
}

// Close cleanly shuts down Pebble, flushing any in-memory state.
func (l *LSM) Close() error {
	if l.db == nil {
		return dberr.New(dberr.ErrCloseFailed, "lsm: close: not open")
	}
	err := l.db.Close()
	l.db = nil
	if err != nil {
		return dberr.Wrap(dberr.ErrCloseFailed, err, "lsm: close")
	}
	return nil
}

// Insert adds (key, loc). The sequence counter is persisted in the same
// batch.
func (l *LSM) Insert(key int32, loc record.Locator) error {
	if l.db == nil {
		return dberr.New(dberr.ErrInvalidMode, "lsm: insert: not open")
	}
	var v [record.LocatorSize]byte
	loc.Put(v[:])
	var s [8]byte
	binary.BigEndian.PutUint64(s[:], l.seq+1)

	b := l.db.NewBatch()
	defer b.Close()
	if err := b.Set(encodeKey(key, l.seq), v[:], nil); err != nil {
		return dberr.Wrap(dberr.ErrWriteFailed, err, "lsm: insert %d", key)
	}
	if err := b.Set(seqKey, s[:], nil); err != nil {
		return dberr.Wrap(dberr.ErrWriteFailed, err, "lsm: insert %d", key)
	}
	if err := b.Commit(pebble.NoSync); err != nil {
		return dberr.Wrap(dberr.ErrWriteFailed, err, "lsm: insert %d", key)
	}
	l.seq++
	return nil
}

// Lookup returns all locators stored under key, oldest first.
func (l *LSM) Lookup(key int32) ([]record.Locator, error) {
	it, err := l.Range(key, key)
	if err != nil {
		return nil, err
	}
	defer it.Close()
	var locs []record.Locator
	for it.Next() {
		locs = append(locs, it.Locator())
	}
	if err := it.Error(); err != nil {
		return nil, err
	}
	if len(locs) == 0 {
		return nil, dberr.New(dberr.ErrRecordNotFound, "lsm: key %d", key)
	}
	return locs, nil
}

// Range returns an iterator over all keys in [start, end] inclusive.
func (l *LSM) Range(start, end int32) (index.Iterator, error) {
	if l.db == nil {
		return nil, dberr.New(dberr.ErrInvalidMode, "lsm: range: not open")
	}
	if start > end {
		return &rangeIterator{}, nil
	}
	iter, err := l.db.NewIter(&pebble.IterOptions{
		LowerBound: encodeKey(start, 0),
		UpperBound: upperBound(end),
	})
	if err != nil {
		return nil, dberr.Wrap(dberr.ErrReadFailed, err, "lsm: range [%d, %d]", start, end)
	}
	iter.First()
	return &rangeIterator{iter: iter, first: true}, nil
}

// ─── Key encoding ─────────────────────────────────────────────────────────────

// encodeKey builds 'k' | key with the sign bit flipped | seq, all big-endian,
// so byte order matches (key, seq) order.
func encodeKey(k int32, seq uint64) []byte {
	b := make([]byte, entryKeyLen)
	b[0] = prefixEntry
	binary.BigEndian.PutUint32(b[1:5], uint32(k)^(1<<31))
	binary.BigEndian.PutUint64(b[5:], seq)
	return b
}

func decodeKey(b []byte) (int32, bool) {
	if len(b) != entryKeyLen || b[0] != prefixEntry {
		return 0, false
	}
	return int32(binary.BigEndian.Uint32(b[1:5]) ^ (1 << 31)), true
}

// upperBound is the exclusive pebble bound just past every entry for k.
func upperBound(k int32) []byte {
	if k == math.MaxInt32 {
		return []byte{prefixEntry + 1}
	}
	return encodeKey(k+1, 0)
}

// ─── Range Iterator ───────────────────────────────────────────────────────────

type rangeIterator struct {
	iter  *pebble.Iterator
	first bool
	key   int32
	loc   record.Locator
	err   error
}

func (it *rangeIterator) Next() bool {
	if it.iter == nil || it.err != nil {
		return false
	}
	var valid bool
	if it.first {
		// iter.First() was already called in Range(); just check validity.
		it.first = false
		valid = it.iter.Valid()
	} else {
		valid = it.iter.Next()
	}
	if !valid {
		if err := it.iter.Error(); err != nil {
			it.err = dberr.Wrap(dberr.ErrReadFailed, err, "lsm: iterate")
		}
		return false
	}
	k, ok := decodeKey(it.iter.Key())
	if !ok || len(it.iter.Value()) != record.LocatorSize {
		it.err = dberr.New(dberr.ErrInvalidFileFormat, "lsm: malformed entry %x", it.iter.Key())
		return false
	}
	it.key = k
	it.loc = record.ReadLocator(it.iter.Value())
	return true
}

func (it *rangeIterator) Key() int32              { return it.key }
func (it *rangeIterator) Locator() record.Locator { return it.loc }
func (it *rangeIterator) Error() error            { return it.err }

func (it *rangeIterator) Close() error {
	if it.iter == nil {
		return nil
	}
	err := it.iter.Close()
	it.iter = nil
	return err
}
