package main

import (
	"math/rand"

	"github.com/btree-query-bench/bpindex/dbms/dberr"
	"github.com/btree-query-bench/bpindex/dbms/index"
	"github.com/btree-query-bench/bpindex/dbms/record"
	"github.com/cockroachdb/errors"
)

type WorkloadType string

const (
	OLTP      WorkloadType = "OLTP (90/10)"
	OLAP      WorkloadType = "OLAP (10/90)"
	Reporting WorkloadType = "Reporting (Range)"
)

// rangeSpan is how many keys one Reporting scan covers.
const rangeSpan = 100

// Workload drives one index with a fixed random source. Inserted entries get
// fresh locators so duplicates stay distinguishable.
type Workload struct {
	rng  *rand.Rand
	next int64
}

func NewWorkload(seed int64) *Workload {
	return &Workload{rng: rand.New(rand.NewSource(seed))}
}

func (w *Workload) locator() record.Locator {
	loc := record.Locator{PageID: int32(w.next / 64), SlotID: int32(w.next % 64)}
	w.next++
	return loc
}

// Load inserts keys 0..n-1 in order.
func (w *Workload) Load(idx index.Index, n int) error {
	for k := 0; k < n; k++ {
		if err := idx.Insert(int32(k), w.locator()); err != nil {
			return err
		}
	}
	return nil
}

// Execute runs a mixed distribution of ops over keys in [0, ops).
func (w *Workload) Execute(idx index.Index, wType WorkloadType, ops int) error {
	for i := 0; i < ops; i++ {
		choice := w.rng.Intn(100)
		key := int32(w.rng.Intn(ops))

		var err error
		switch wType {
		case OLTP:
			if choice < 90 {
				_, err = idx.Lookup(key)
			} else {
				err = idx.Insert(key, w.locator())
			}
		case OLAP:
			if choice < 10 {
				_, err = idx.Lookup(key)
			} else {
				err = idx.Insert(key, w.locator())
			}
		case Reporting:
			err = scan(idx, key, key+rangeSpan)
		}
		if err != nil && !errors.Is(err, dberr.ErrRecordNotFound) {
			return errors.Wrapf(err, "%s op %d", wType, i)
		}
	}
	return nil
}

func scan(idx index.Index, start, end int32) error {
	it, err := idx.Range(start, end)
	if err != nil {
		return err
	}
	for it.Next() {
	}
	return errors.CombineErrors(it.Error(), it.Close())
}
