package record

import (
	"fmt"
	"testing"

	"github.com/btree-query-bench/bpindex/dbms/dberr"
	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocatorEncoding(t *testing.T) {
	b := make([]byte, LocatorSize)
	Locator{PageID: 7, SlotID: -2}.Put(b)
	assert.Equal(t, []byte{7, 0, 0, 0, 0xfe, 0xff, 0xff, 0xff}, b)
	assert.Equal(t, Locator{PageID: 7, SlotID: -2}, ReadLocator(b))
	assert.Equal(t, "{7,-2}", Locator{7, -2}.String())
}

func TestStoreAppendAssignsSequentialSlots(t *testing.T) {
	s, err := OpenStore(t.TempDir(), StoreOptions{SlotsPerPage: 3})
	require.NoError(t, err)
	defer s.Close()

	var locs []Locator
	for i := 0; i < 7; i++ {
		loc, err := s.Append(int32(i*10), []byte(fmt.Sprint(i)))
		require.NoError(t, err)
		locs = append(locs, loc)
	}
	assert.Equal(t, []Locator{{0, 0}, {0, 1}, {0, 2}, {1, 0}, {1, 1}, {1, 2}, {2, 0}}, locs)

	key, val, err := s.Read(Locator{1, 1})
	require.NoError(t, err)
	assert.Equal(t, int32(40), key)
	assert.Equal(t, []byte("4"), val)

	_, _, err = s.Read(Locator{9, 9})
	assert.True(t, errors.Is(err, dberr.ErrRecordNotFound))
}

func TestStoreReopenContinuesNumbering(t *testing.T) {
	dir := t.TempDir()
	s, err := OpenStore(dir, StoreOptions{SlotsPerPage: 2})
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		_, err := s.Append(int32(i), []byte("v"))
		require.NoError(t, err)
	}
	require.NoError(t, s.Close())

	s, err = OpenStore(dir, StoreOptions{SlotsPerPage: 2})
	require.NoError(t, err)
	defer s.Close()
	assert.Equal(t, int64(3), s.Count())
	loc, err := s.Append(3, []byte("w"))
	require.NoError(t, err)
	assert.Equal(t, Locator{1, 1}, loc)
}

func TestStoreReadOnly(t *testing.T) {
	dir := t.TempDir()
	s, err := OpenStore(dir, StoreOptions{})
	require.NoError(t, err)
	loc, err := s.Append(5, []byte("five"))
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s, err = OpenStore(dir, StoreOptions{ReadOnly: true})
	require.NoError(t, err)
	defer s.Close()

	_, err = s.Append(6, []byte("six"))
	assert.True(t, errors.Is(err, dberr.ErrFileReadOnly))
	key, val, err := s.Read(loc)
	require.NoError(t, err)
	assert.Equal(t, int32(5), key)
	assert.Equal(t, []byte("five"), val)
}

func TestStoreClosed(t *testing.T) {
	s, err := OpenStore(t.TempDir(), StoreOptions{})
	require.NoError(t, err)
	loc, err := s.Append(1, []byte("one"))
	require.NoError(t, err)
	require.NoError(t, s.Close())

	_, _, err = s.Read(loc)
	assert.True(t, errors.Is(err, dberr.ErrInvalidMode))
	_, err = s.Append(2, []byte("two"))
	assert.True(t, errors.Is(err, dberr.ErrInvalidMode))
	assert.True(t, errors.Is(s.Close(), dberr.ErrCloseFailed))
}
