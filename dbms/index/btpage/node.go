package btpage

import (
	"slices"

	"github.com/btree-query-bench/bpindex/dbms/dberr"
	"github.com/btree-query-bench/bpindex/dbms/pager"
	"github.com/btree-query-bench/bpindex/dbms/record"
)

// Node is one decoded tree page.
//
// Leaf nodes carry one locator per key and a link to the next leaf.
// Internal nodes carry len(Keys)+1 children; child i holds keys below
// Keys[i], the last child keys at or above the last separator.
type Node struct {
	Leaf     bool
	PageID   pager.PageID
	Keys     []int32
	Locators []record.Locator // leaves only
	Children []pager.PageID   // internal nodes only
	Next     pager.PageID     // leaves only
}

// NewLeaf returns an empty leaf owned by page id.
func NewLeaf(id pager.PageID) *Node {
	return &Node{Leaf: true, PageID: id, Next: pager.InvalidPage}
}

// NewInternal returns an internal node with a single child and no keys.
func NewInternal(id, child pager.PageID) *Node {
	return &Node{PageID: id, Children: []pager.PageID{child}, Next: pager.InvalidPage}
}

// Count is the number of keys in the node.
func (n *Node) Count() int { return len(n.Keys) }

// Full reports whether the node is at capacity under layout l.
func (n *Node) Full(l Layout) bool {
	return len(n.Keys) >= l.MaxKeys(n.Leaf)
}

// LowerBound returns the first index whose key is >= key.
func (n *Node) LowerBound(key int32) int {
	lo, hi := 0, len(n.Keys)
	for lo < hi {
		m := (lo + hi) / 2
		if n.Keys[m] < key {
			lo = m + 1
		} else {
			hi = m
		}
	}
	return lo
}

// UpperBound returns the first index whose key is > key. Inserting there
// keeps equal keys in arrival order.
func (n *Node) UpperBound(key int32) int {
	lo, hi := 0, len(n.Keys)
	for lo < hi {
		m := (lo + hi) / 2
		if n.Keys[m] <= key {
			lo = m + 1
		} else {
			hi = m
		}
	}
	return lo
}

// InsertEntry places (key, loc) into a leaf after any equal keys and returns
// the slot it landed in.
func (n *Node) InsertEntry(l Layout, key int32, loc record.Locator) (int, error) {
	if !n.Leaf {
		return 0, dberr.New(dberr.ErrInvalidCursor, "btpage: insert entry into internal page %d", n.PageID)
	}
	if n.Full(l) {
		return 0, dberr.New(dberr.ErrNodeFull, "btpage: leaf %d holds %d keys", n.PageID, len(n.Keys))
	}
	i := n.UpperBound(key)
	n.Keys = slices.Insert(n.Keys, i, key)
	n.Locators = slices.Insert(n.Locators, i, loc)
	return i, nil
}

// InsertSeparator places key at index i of an internal node with right as
// the child directly after it.
func (n *Node) InsertSeparator(l Layout, i int, key int32, right pager.PageID) error {
	if n.Leaf {
		return dberr.New(dberr.ErrInvalidFileFormat, "btpage: separator into leaf %d", n.PageID)
	}
	if n.Full(l) {
		return dberr.New(dberr.ErrNodeFull, "btpage: internal %d holds %d keys", n.PageID, len(n.Keys))
	}
	n.Keys = slices.Insert(n.Keys, i, key)
	n.Children = slices.Insert(n.Children, i+1, right)
	return nil
}

// ReadEntry returns the entry at index i of a leaf.
func (n *Node) ReadEntry(i int) (int32, record.Locator, error) {
	if !n.Leaf || i < 0 || i >= len(n.Keys) {
		return 0, record.Locator{}, dberr.New(dberr.ErrInvalidCursor, "btpage: entry %d of page %d", i, n.PageID)
	}
	return n.Keys[i], n.Locators[i], nil
}
