// Package btpage provides the on-disk layout of a B+ tree node page and the
// in-memory Node it decodes to.
//
// Page layout (little endian):
//
//	[0]      1 byte   node type (TypeInternal / TypeLeaf)
//	[1-4]    4 bytes  key count n
//	[5-8]    4 bytes  next leaf page ID (leaves only, InvalidPage if none)
//	[9..]    key array, capacity × 4 bytes
//	         then, for leaves:    MaxLeafKeys × 8-byte record locators
//	              for internals:  (MaxInternalKeys+1) × 4-byte child page IDs
//	         zero padding up to the page size
//
// Capacities follow from the page size, see Layout.
//
// Page 0 of an index file is the metadata page:
//
//	[0-3]    4 bytes  root page ID (InvalidPage when empty)
//	[4-7]    4 bytes  tree height
package btpage

import (
	"encoding/binary"

	"github.com/btree-query-bench/bpindex/dbms/dberr"
	"github.com/btree-query-bench/bpindex/dbms/pager"
	"github.com/btree-query-bench/bpindex/dbms/record"
)

const (
	TypeInternal = byte(0)
	TypeLeaf     = byte(1)

	OffType  = 0
	OffCount = 1
	OffNext  = 5
	OffKeys  = 9

	HeaderSize  = OffKeys
	KeySize     = 4
	ChildIDSize = 4
	LocatorSize = record.LocatorSize

	OffMetaRoot   = 0
	OffMetaHeight = 4
	MetaSize      = 8

	// Smallest capacities the split geometry works with.
	minLeafKeys     = 3
	minInternalKeys = 3
)

// Layout holds the capacities derived from a page size.
type Layout struct {
	PageSize        int
	MaxLeafKeys     int
	MaxInternalKeys int
}

// NewLayout derives node capacities for pageSize bytes per page.
func NewLayout(pageSize int) (Layout, error) {
	l := Layout{
		PageSize:        pageSize,
		MaxLeafKeys:     (pageSize - HeaderSize) / (KeySize + LocatorSize),
		MaxInternalKeys: (pageSize-HeaderSize)/(KeySize+ChildIDSize) - 1,
	}
	if l.MaxLeafKeys < minLeafKeys || l.MaxInternalKeys < minInternalKeys {
		return Layout{}, dberr.New(dberr.ErrInvalidAttribute,
			"btpage: page size %d leaves room for %d leaf / %d internal keys",
			pageSize, l.MaxLeafKeys, l.MaxInternalKeys)
	}
	return l, nil
}

// MaxKeys is the key capacity for the given node type.
func (l Layout) MaxKeys(leaf bool) int {
	if leaf {
		return l.MaxLeafKeys
	}
	return l.MaxInternalKeys
}

// MinFill is the minimum-degree threshold t = ceil((maxKeys+1)/2).
func (l Layout) MinFill(leaf bool) int {
	return (l.MaxKeys(leaf) + 2) / 2
}

// offTail is where the locator or child array starts.
func (l Layout) offTail(leaf bool) int {
	return OffKeys + l.MaxKeys(leaf)*KeySize
}

// Decode reads the node stored in buf, which came from page id. Key order is
// not checked; a count outside the node's capacity is reported as a format
// error instead of being trusted.
func (l Layout) Decode(buf []byte, id pager.PageID) (*Node, error) {
	if len(buf) < l.PageSize {
		return nil, dberr.New(dberr.ErrInvalidFileFormat, "btpage: page %d: %d bytes, want %d", id, len(buf), l.PageSize)
	}
	leaf := buf[OffType] == TypeLeaf
	n := int(int32(binary.LittleEndian.Uint32(buf[OffCount : OffCount+4])))
	if n < 0 || n > l.MaxKeys(leaf) {
		return nil, dberr.New(dberr.ErrInvalidFileFormat, "btpage: page %d: key count %d out of range", id, n)
	}

	node := &Node{
		Leaf:   leaf,
		PageID: id,
		Next:   pager.PageID(int32(binary.LittleEndian.Uint32(buf[OffNext : OffNext+4]))),
		Keys:   make([]int32, n),
	}
	for i := 0; i < n; i++ {
		o := OffKeys + i*KeySize
		node.Keys[i] = int32(binary.LittleEndian.Uint32(buf[o : o+KeySize]))
	}

	tail := l.offTail(leaf)
	if leaf {
		node.Locators = make([]record.Locator, n)
		for i := 0; i < n; i++ {
			node.Locators[i] = record.ReadLocator(buf[tail+i*LocatorSize:])
		}
		return node, nil
	}
	node.Next = pager.InvalidPage
	node.Children = make([]pager.PageID, n+1)
	for i := 0; i <= n; i++ {
		o := tail + i*ChildIDSize
		node.Children[i] = pager.PageID(int32(binary.LittleEndian.Uint32(buf[o : o+ChildIDSize])))
	}
	return node, nil
}

// Encode writes node into buf, zeroing everything it does not use.
func (l Layout) Encode(node *Node, buf []byte) error {
	if len(buf) < l.PageSize {
		return dberr.New(dberr.ErrInvalidFileFormat, "btpage: encode into %d bytes, want %d", len(buf), l.PageSize)
	}
	n := len(node.Keys)
	if n > l.MaxKeys(node.Leaf) {
		return dberr.New(dberr.ErrNodeFull, "btpage: page %d: %d keys, capacity %d", node.PageID, n, l.MaxKeys(node.Leaf))
	}
	if node.Leaf && len(node.Locators) != n {
		return dberr.New(dberr.ErrInvalidFileFormat, "btpage: leaf %d: %d keys, %d locators", node.PageID, n, len(node.Locators))
	}
	if !node.Leaf && len(node.Children) != n+1 {
		return dberr.New(dberr.ErrInvalidFileFormat, "btpage: internal %d: %d keys, %d children", node.PageID, n, len(node.Children))
	}

	buf = buf[:l.PageSize]
	clear(buf)

	if node.Leaf {
		buf[OffType] = TypeLeaf
	} else {
		buf[OffType] = TypeInternal
	}
	binary.LittleEndian.PutUint32(buf[OffCount:OffCount+4], uint32(n))
	next := node.Next
	if !node.Leaf {
		next = pager.InvalidPage
	}
	binary.LittleEndian.PutUint32(buf[OffNext:OffNext+4], uint32(int32(next)))

	for i, k := range node.Keys {
		o := OffKeys + i*KeySize
		binary.LittleEndian.PutUint32(buf[o:o+KeySize], uint32(k))
	}

	tail := l.offTail(node.Leaf)
	if node.Leaf {
		for i, loc := range node.Locators {
			loc.Put(buf[tail+i*LocatorSize:])
		}
		return nil
	}
	for i, c := range node.Children {
		o := tail + i*ChildIDSize
		binary.LittleEndian.PutUint32(buf[o:o+ChildIDSize], uint32(int32(c)))
	}
	return nil
}

// Meta is the content of the metadata page.
type Meta struct {
	RootID pager.PageID
	Height int32
}

// EncodeMeta writes m into a zeroed page buffer.
func EncodeMeta(m Meta, buf []byte) {
	clear(buf)
	binary.LittleEndian.PutUint32(buf[OffMetaRoot:OffMetaRoot+4], uint32(int32(m.RootID)))
	binary.LittleEndian.PutUint32(buf[OffMetaHeight:OffMetaHeight+4], uint32(m.Height))
}

// DecodeMeta reads the metadata page.
func DecodeMeta(buf []byte) Meta {
	return Meta{
		RootID: pager.PageID(int32(binary.LittleEndian.Uint32(buf[OffMetaRoot : OffMetaRoot+4]))),
		Height: int32(binary.LittleEndian.Uint32(buf[OffMetaHeight : OffMetaHeight+4])),
	}
}
