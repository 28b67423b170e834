package memindex

import (
	"math"
	"testing"

	"github.com/btree-query-bench/bpindex/dbms/dberr"
	"github.com/btree-query-bench/bpindex/dbms/record"
	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func keys(t *testing.T, l *ListIndex, start, end int32) []int32 {
	t.Helper()
	it, err := l.Range(start, end)
	require.NoError(t, err)
	defer it.Close()
	var out []int32
	for it.Next() {
		out = append(out, it.Key())
	}
	return out
}

func TestInsertKeepsOrder(t *testing.T) {
	l := NewListIndex()
	for i, k := range []int32{5, -3, 5, math.MaxInt32, 9, math.MinInt32, 5} {
		require.NoError(t, l.Insert(k, record.Locator{PageID: 0, SlotID: int32(i)}))
	}
	assert.Equal(t, 7, l.Len())
	assert.Equal(t, []int32{math.MinInt32, -3, 5, 5, 5, 9, math.MaxInt32}, keys(t, l, math.MinInt32, math.MaxInt32))

	locs, err := l.Lookup(5)
	require.NoError(t, err)
	assert.Equal(t, []record.Locator{{PageID: 0, SlotID: 0}, {PageID: 0, SlotID: 2}, {PageID: 0, SlotID: 6}}, locs)

	_, err = l.Lookup(6)
	assert.True(t, errors.Is(err, dberr.ErrRecordNotFound))
}

func TestRange(t *testing.T) {
	l := NewListIndex()
	for k := int32(0); k < 20; k += 2 {
		require.NoError(t, l.Insert(k, record.Locator{}))
	}
	assert.Equal(t, []int32{4, 6, 8}, keys(t, l, 3, 8))
	assert.Equal(t, []int32{18}, keys(t, l, 18, 100))
	assert.Nil(t, keys(t, l, 5, 5))
	assert.Nil(t, keys(t, l, 8, 3))
	assert.Nil(t, keys(t, l, 30, 40))
}

func TestClosed(t *testing.T) {
	l := NewListIndex()
	require.NoError(t, l.Close())
	assert.True(t, errors.Is(l.Insert(1, record.Locator{}), dberr.ErrInvalidMode))
	_, err := l.Lookup(1)
	assert.True(t, errors.Is(err, dberr.ErrInvalidMode))
	assert.True(t, errors.Is(l.Close(), dberr.ErrCloseFailed))
}
