package btpage

import (
	"encoding/binary"
	"testing"

	"github.com/btree-query-bench/bpindex/dbms/dberr"
	"github.com/btree-query-bench/bpindex/dbms/pager"
	"github.com/btree-query-bench/bpindex/dbms/record"
	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLayoutCapacities(t *testing.T) {
	tests := []struct {
		pageSize      int
		leaf, inner   int
		leafT, innerT int
	}{
		{1024, 84, 125, 43, 63},
		{4096, 340, 509, 171, 255},
		{45, 3, 3, 2, 2},
	}
	for _, tt := range tests {
		l, err := NewLayout(tt.pageSize)
		require.NoError(t, err)
		assert.Equal(t, tt.leaf, l.MaxLeafKeys, "page %d", tt.pageSize)
		assert.Equal(t, tt.inner, l.MaxInternalKeys, "page %d", tt.pageSize)
		assert.Equal(t, tt.leafT, l.MinFill(true), "page %d", tt.pageSize)
		assert.Equal(t, tt.innerT, l.MinFill(false), "page %d", tt.pageSize)
	}
}

func TestLayoutRejectsTinyPages(t *testing.T) {
	for _, size := range []int{32, 41, 44} {
		_, err := NewLayout(size)
		assert.True(t, errors.Is(err, dberr.ErrInvalidAttribute), "page %d", size)
	}
}

func TestLeafRoundTrip(t *testing.T) {
	l, err := NewLayout(pager.DefaultPageSize)
	require.NoError(t, err)

	in := &Node{
		Leaf:     true,
		PageID:   3,
		Keys:     []int32{-5, 1, 1, 900},
		Locators: []record.Locator{{PageID: 1, SlotID: 0}, {PageID: 1, SlotID: 1}, {PageID: 2, SlotID: 7}, {PageID: 40, SlotID: 3}},
		Next:     9,
	}
	buf := make([]byte, l.PageSize)
	require.NoError(t, l.Encode(in, buf))

	assert.Equal(t, TypeLeaf, buf[OffType])
	assert.Equal(t, uint32(4), binary.LittleEndian.Uint32(buf[OffCount:]))
	assert.Equal(t, uint32(9), binary.LittleEndian.Uint32(buf[OffNext:]))
	assert.Equal(t, uint32(1), binary.LittleEndian.Uint32(buf[OffKeys+4:]))
	// Locators start right after the full key array.
	off := OffKeys + l.MaxLeafKeys*KeySize
	assert.Equal(t, record.Locator{PageID: 1, SlotID: 0}, record.ReadLocator(buf[off:]))
	assert.Equal(t, record.Locator{PageID: 40, SlotID: 3}, record.ReadLocator(buf[off+3*LocatorSize:]))

	out, err := l.Decode(buf, 3)
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestInternalRoundTrip(t *testing.T) {
	l, err := NewLayout(pager.DefaultPageSize)
	require.NoError(t, err)

	in := &Node{
		PageID:   1,
		Keys:     []int32{10, 20},
		Children: []pager.PageID{2, 3, 4},
		Next:     pager.InvalidPage,
	}
	buf := make([]byte, l.PageSize)
	require.NoError(t, l.Encode(in, buf))
	assert.Equal(t, TypeInternal, buf[OffType])

	off := OffKeys + l.MaxInternalKeys*KeySize
	assert.Equal(t, uint32(4), binary.LittleEndian.Uint32(buf[off+2*ChildIDSize:]))

	out, err := l.Decode(buf, 1)
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestEncodeValidatesArity(t *testing.T) {
	l, err := NewLayout(pager.DefaultPageSize)
	require.NoError(t, err)
	buf := make([]byte, l.PageSize)

	err = l.Encode(&Node{Leaf: true, Keys: []int32{1}}, buf)
	assert.True(t, errors.Is(err, dberr.ErrInvalidFileFormat))

	err = l.Encode(&Node{Keys: []int32{1}, Children: []pager.PageID{2}}, buf)
	assert.True(t, errors.Is(err, dberr.ErrInvalidFileFormat))

	big := &Node{Leaf: true, Keys: make([]int32, l.MaxLeafKeys+1), Locators: make([]record.Locator, l.MaxLeafKeys+1)}
	err = l.Encode(big, buf)
	assert.True(t, errors.Is(err, dberr.ErrNodeFull))
}

func TestDecodeRejectsBadCount(t *testing.T) {
	l, err := NewLayout(pager.DefaultPageSize)
	require.NoError(t, err)
	buf := make([]byte, l.PageSize)
	buf[OffType] = TypeLeaf
	binary.LittleEndian.PutUint32(buf[OffCount:], uint32(l.MaxLeafKeys+1))

	_, err = l.Decode(buf, 5)
	assert.True(t, errors.Is(err, dberr.ErrInvalidFileFormat))
}

func TestDecodeDoesNotCheckOrder(t *testing.T) {
	l, err := NewLayout(pager.DefaultPageSize)
	require.NoError(t, err)
	buf := make([]byte, l.PageSize)
	require.NoError(t, l.Encode(&Node{
		Leaf:     true,
		Keys:     []int32{9, 3},
		Locators: []record.Locator{{}, {}},
		Next:     pager.InvalidPage,
	}, buf))

	n, err := l.Decode(buf, 2)
	require.NoError(t, err)
	assert.Equal(t, []int32{9, 3}, n.Keys)
}

func TestMetaRoundTrip(t *testing.T) {
	buf := make([]byte, pager.DefaultPageSize)
	buf[100] = 0xff
	EncodeMeta(Meta{RootID: 17, Height: 3}, buf)
	assert.Equal(t, byte(0), buf[100])
	assert.Equal(t, Meta{RootID: 17, Height: 3}, DecodeMeta(buf))

	EncodeMeta(Meta{RootID: pager.InvalidPage}, buf)
	assert.Equal(t, []byte{0xff, 0xff, 0xff, 0xff, 0, 0, 0, 0}, buf[:MetaSize])
}
