package pager

import (
	"strconv"
	"sync"

	"github.com/btree-query-bench/bpindex/dbms/dberr"
	"github.com/dgraph-io/ristretto/v2"
)

// RistrettoCache adapts a ristretto cache to the Cache interface. Each page
// costs one unit, so maxPages bounds the number of resident pages. A cached
// page is only returned into a buffer of the same size.
//
// ristretto cannot enumerate its keys, so InvalidateFile bumps a per-file
// generation that is part of every key; pages of older generations become
// unreachable and age out through the normal admission policy.
type RistrettoCache struct {
	c *ristretto.Cache[string, []byte]

	mu  sync.Mutex
	gen map[uint64]uint64
}

// NewRistrettoCache builds a cache holding at most maxPages pages.
func NewRistrettoCache(maxPages int) (*RistrettoCache, error) {
	if maxPages < 1 {
		return nil, dberr.New(dberr.ErrInvalidAttribute, "pager: ristretto cache of %d pages", maxPages)
	}
	c, err := ristretto.NewCache(&ristretto.Config[string, []byte]{
		NumCounters: int64(maxPages) * 10,
		MaxCost:     int64(maxPages),
		BufferItems: 64,
		// Count pages only, not ristretto's per-item bookkeeping.
		IgnoreInternalCost: true,
	})
	if err != nil {
		return nil, dberr.Wrap(dberr.ErrInvalidAttribute, err, "pager: ristretto cache")
	}
	return &RistrettoCache{c: c, gen: make(map[uint64]uint64)}, nil
}

func (r *RistrettoCache) Get(file uint64, id PageID, dst []byte) bool {
	v, ok := r.c.Get(r.key(file, id))
	if !ok || len(v) != len(dst) {
		return false
	}
	copy(dst, v)
	return true
}

func (r *RistrettoCache) Put(file uint64, id PageID, src []byte) {
	r.c.Set(r.key(file, id), append([]byte(nil), src...), 1)
	// Sets are buffered; wait so a following Invalidate cannot be overtaken.
	r.c.Wait()
}

func (r *RistrettoCache) Invalidate(file uint64, id PageID) {
	r.c.Del(r.key(file, id))
	r.c.Wait()
}

func (r *RistrettoCache) InvalidateFile(file uint64) {
	r.mu.Lock()
	r.gen[file]++
	r.mu.Unlock()
}

// Close stops ristretto's background goroutines.
func (r *RistrettoCache) Close() {
	r.c.Close()
}

func (r *RistrettoCache) key(file uint64, id PageID) string {
	r.mu.Lock()
	g := r.gen[file]
	r.mu.Unlock()

	b := make([]byte, 0, 48)
	b = strconv.AppendUint(b, file, 16)
	b = append(b, '/')
	b = strconv.AppendUint(b, g, 16)
	b = append(b, '/')
	b = strconv.AppendInt(b, int64(id), 10)
	return string(b)
}
