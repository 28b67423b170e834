package pager

import (
	"sync"
)

// Cache holds copies of pages keyed by the identity of the file they came
// from. A cache may be shared by several pagers.
type Cache interface {
	// Get copies the cached page into dst and reports whether it was present.
	// A page cached with a different size than dst is a miss.
	Get(file uint64, id PageID, dst []byte) bool
	// Put stores a copy of src.
	Put(file uint64, id PageID, src []byte)
	// Invalidate drops the page if cached.
	Invalidate(file uint64, id PageID)
	// InvalidateFile drops every page of the file.
	InvalidateFile(file uint64)
}

// ─── Clock cache ──────────────────────────────────────────────────────────────

type clockSlot struct {
	file         uint64
	id           PageID
	lastAccessed uint64 // 0 means the slot is empty
	buf          []byte
}

// ClockCache is a fixed number of page slots with least-recently-accessed
// replacement. Every hit or fill stamps the slot with the next value of a
// logical clock; a fill takes the first empty slot, otherwise the slot with
// the smallest stamp (lowest index on ties).
type ClockCache struct {
	mu       sync.Mutex
	slots    []clockSlot
	clock    uint64
	pageSize int
}

// NewClockCache returns a cache of n slots, each holding one page of
// pageSize bytes.
func NewClockCache(n, pageSize int) *ClockCache {
	if n < 1 {
		n = 1
	}
	c := &ClockCache{
		slots:    make([]clockSlot, n),
		pageSize: pageSize,
	}
	for i := range c.slots {
		c.slots[i].buf = make([]byte, pageSize)
	}
	return c
}

func (c *ClockCache) Get(file uint64, id PageID, dst []byte) bool {
	if len(dst) != c.pageSize {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	i := c.find(file, id)
	if i < 0 {
		return false
	}
	c.clock++
	c.slots[i].lastAccessed = c.clock
	copy(dst, c.slots[i].buf)
	return true
}

// Put ignores pages whose size differs from the slot size.
func (c *ClockCache) Put(file uint64, id PageID, src []byte) {
	if len(src) != c.pageSize {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	i := c.find(file, id)
	if i < 0 {
		i = c.victim()
	}
	c.clock++
	s := &c.slots[i]
	s.file, s.id, s.lastAccessed = file, id, c.clock
	copy(s.buf, src)
}

func (c *ClockCache) Invalidate(file uint64, id PageID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if i := c.find(file, id); i >= 0 {
		c.slots[i].reset()
	}
}

func (c *ClockCache) InvalidateFile(file uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := range c.slots {
		if c.slots[i].lastAccessed != 0 && c.slots[i].file == file {
			c.slots[i].reset()
		}
	}
}

// Len reports the number of occupied slots.
func (c *ClockCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for i := range c.slots {
		if c.slots[i].lastAccessed != 0 {
			n++
		}
	}
	return n
}

// Contains reports whether the page is cached without touching its stamp.
func (c *ClockCache) Contains(file uint64, id PageID) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.find(file, id) >= 0
}

func (c *ClockCache) find(file uint64, id PageID) int {
	for i := range c.slots {
		s := &c.slots[i]
		if s.lastAccessed != 0 && s.file == file && s.id == id {
			return i
		}
	}
	return -1
}

func (c *ClockCache) victim() int {
	v := 0
	for i := range c.slots {
		if c.slots[i].lastAccessed == 0 {
			return i
		}
		if c.slots[i].lastAccessed < c.slots[v].lastAccessed {
			v = i
		}
	}
	return v
}

func (s *clockSlot) reset() {
	s.file = 0
	s.id = 0
	s.lastAccessed = 0
}
