// Package memindex keeps index entries in a sorted in-memory slice. It is the
// baseline the benchmark compares the disk structures against and the model
// the tree tests check results with.
package memindex

import (
	"slices"

	"github.com/btree-query-bench/bpindex/dbms/dberr"
	"github.com/btree-query-bench/bpindex/dbms/index"
	"github.com/btree-query-bench/bpindex/dbms/record"
)

var _ index.Index = (*ListIndex)(nil)

type Data struct {
	Key int32
	Loc record.Locator
}

// ListIndex holds entries ordered by key; equal keys keep insertion order.
type ListIndex struct {
	Data   []Data
	closed bool
}

func NewListIndex() *ListIndex {
	return &ListIndex{
		Data: make([]Data, 0),
	}
}

// upper returns the position after the last entry with a key <= key.
func (l *ListIndex) upper(key int32) int {
	i, _ := slices.BinarySearchFunc(l.Data, key, func(d Data, k int32) int {
		if d.Key <= k {
			return -1
		}
		return 1
	})
	return i
}

// lower returns the position of the first entry with a key >= key.
func (l *ListIndex) lower(key int32) int {
	i, _ := slices.BinarySearchFunc(l.Data, key, func(d Data, k int32) int {
		if d.Key < k {
			return -1
		}
		return 1
	})
	return i
}

func (l *ListIndex) Insert(key int32, loc record.Locator) error {
	if l.closed {
		return dberr.New(dberr.ErrInvalidMode, "memindex: insert: closed")
	}
	l.Data = slices.Insert(l.Data, l.upper(key), Data{Key: key, Loc: loc})
	return nil
}

func (l *ListIndex) Lookup(key int32) ([]record.Locator, error) {
	if l.closed {
		return nil, dberr.New(dberr.ErrInvalidMode, "memindex: lookup: closed")
	}
	var locs []record.Locator
	for i := l.lower(key); i < len(l.Data) && l.Data[i].Key == key; i++ {
		locs = append(locs, l.Data[i].Loc)
	}
	if len(locs) == 0 {
		return nil, dberr.New(dberr.ErrRecordNotFound, "memindex: key %d", key)
	}
	return locs, nil
}

func (l *ListIndex) Range(start, end int32) (index.Iterator, error) {
	if l.closed {
		return nil, dberr.New(dberr.ErrInvalidMode, "memindex: range: closed")
	}
	it := &ListIterator{cur: -1}
	if start <= end {
		it.data = l.Data[l.lower(start):l.upper(end)]
	}
	return it, nil
}

func (l *ListIndex) Len() int { return len(l.Data) }

func (l *ListIndex) Close() error {
	if l.closed {
		return dberr.New(dberr.ErrCloseFailed, "memindex: close: already closed")
	}
	l.closed = true
	return nil
}

type ListIterator struct {
	data []Data
	cur  int
}

func (it *ListIterator) Next() bool {
	if it.cur+1 >= len(it.data) {
		return false
	}
	it.cur++
	return true
}

func (it *ListIterator) Key() int32              { return it.data[it.cur].Key }
func (it *ListIterator) Locator() record.Locator { return it.data[it.cur].Loc }
func (it *ListIterator) Error() error            { return nil }
func (it *ListIterator) Close() error            { return nil }
