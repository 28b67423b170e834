package pager

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClockCacheEvictsLeastRecentlyAccessed(t *testing.T) {
	c := NewClockCache(3, testPageSize)
	const f = 42

	c.Put(f, 1, page('1'))
	c.Put(f, 2, page('2'))
	c.Put(f, 3, page('3'))

	dst := make([]byte, testPageSize)
	// Touch 1 so that 2 becomes the oldest.
	require.True(t, c.Get(f, 1, dst))

	c.Put(f, 4, page('4'))
	assert.True(t, c.Contains(f, 1))
	assert.False(t, c.Contains(f, 2))
	assert.True(t, c.Contains(f, 3))
	assert.True(t, c.Contains(f, 4))

	require.True(t, c.Get(f, 4, dst))
	assert.Equal(t, page('4'), dst)
}

func TestClockCacheFillsEmptySlotFirst(t *testing.T) {
	c := NewClockCache(3, testPageSize)
	c.Put(1, 1, page('a'))
	c.Put(1, 2, page('b'))
	c.Put(1, 3, page('c'))

	// Freeing the middle slot makes it the next fill target even though
	// page 1 has the oldest stamp.
	c.Invalidate(1, 2)
	c.Put(1, 9, page('z'))
	assert.True(t, c.Contains(1, 1))
	assert.True(t, c.Contains(1, 3))
	assert.True(t, c.Contains(1, 9))
	assert.Equal(t, 3, c.Len())
}

func TestClockCacheKeysIncludeFile(t *testing.T) {
	c := NewClockCache(4, testPageSize)
	c.Put(1, 7, page('a'))
	c.Put(2, 7, page('b'))

	dst := make([]byte, testPageSize)
	require.True(t, c.Get(1, 7, dst))
	assert.Equal(t, page('a'), dst)
	require.True(t, c.Get(2, 7, dst))
	assert.Equal(t, page('b'), dst)

	c.InvalidateFile(1)
	assert.False(t, c.Get(1, 7, dst))
	assert.True(t, c.Get(2, 7, dst))
}

func TestClockCacheCopiesPages(t *testing.T) {
	c := NewClockCache(1, testPageSize)
	src := page('a')
	c.Put(1, 1, src)
	src[0] = 'x'

	dst := make([]byte, testPageSize)
	require.True(t, c.Get(1, 1, dst))
	assert.Equal(t, byte('a'), dst[0])
}

func TestRistrettoCache(t *testing.T) {
	_, err := NewRistrettoCache(0)
	require.Error(t, err)

	c, err := NewRistrettoCache(16)
	require.NoError(t, err)
	defer c.Close()

	dst := make([]byte, testPageSize)
	assert.False(t, c.Get(1, 1, dst))

	// ristretto may refuse an admission; it must never return wrong bytes.
	c.Put(1, 1, page('a'))
	if c.Get(1, 1, dst) {
		assert.Equal(t, page('a'), dst)
	}

	c.Invalidate(1, 1)
	assert.False(t, c.Get(1, 1, dst))

	c.Put(1, 2, page('b'))
	c.InvalidateFile(1)
	assert.False(t, c.Get(1, 2, dst))
}

func TestRistrettoCacheHoldsManyPages(t *testing.T) {
	c, err := NewRistrettoCache(64)
	require.NoError(t, err)
	defer c.Close()

	big := func(fill byte) []byte { return bytes.Repeat([]byte{fill}, 1024) }
	for id := PageID(0); id < 32; id++ {
		c.Put(7, id, big(byte(id)))
	}
	dst := make([]byte, 1024)
	resident := 0
	for id := PageID(0); id < 32; id++ {
		if c.Get(7, id, dst) {
			assert.Equal(t, big(byte(id)), dst)
			resident++
		}
	}
	assert.GreaterOrEqual(t, resident, 28)

	// A page cached at one size is not served into a buffer of another.
	assert.False(t, c.Get(7, 0, make([]byte, 512)))
	assert.False(t, c.Get(7, 0, make([]byte, 2048)))
}

func TestClockCacheIgnoresOtherPageSizes(t *testing.T) {
	c := NewClockCache(4, 8)

	c.Put(1, 1, bytes.Repeat([]byte{'a'}, 16))
	assert.Equal(t, 0, c.Len())
	dst := bytes.Repeat([]byte{'z'}, 16)
	assert.False(t, c.Get(1, 1, dst))
	assert.Equal(t, bytes.Repeat([]byte{'z'}, 16), dst)

	c.Put(1, 2, bytes.Repeat([]byte{'b'}, 8))
	assert.False(t, c.Get(1, 2, make([]byte, 16)))
	assert.False(t, c.Get(1, 2, make([]byte, 4)))
	small := make([]byte, 8)
	require.True(t, c.Get(1, 2, small))
	assert.Equal(t, bytes.Repeat([]byte{'b'}, 8), small)
}
