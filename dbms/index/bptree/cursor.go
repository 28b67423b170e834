package bptree

import (
	"fmt"

	"github.com/btree-query-bench/bpindex/dbms/dberr"
	"github.com/btree-query-bench/bpindex/dbms/index"
	"github.com/btree-query-bench/bpindex/dbms/index/btpage"
	"github.com/btree-query-bench/bpindex/dbms/pager"
	"github.com/btree-query-bench/bpindex/dbms/record"
	"go.uber.org/zap"
)

// Cursor points at one entry of a leaf. A cursor whose PageID is
// pager.InvalidPage is exhausted.
type Cursor struct {
	PageID pager.PageID
	Entry  int
}

// Done reports whether the cursor ran off the end of the leaf chain.
func (c Cursor) Done() bool { return c.PageID == pager.InvalidPage }

func (c Cursor) String() string { return fmt.Sprintf("(%d,%d)", c.PageID, c.Entry) }

var exhausted = Cursor{PageID: pager.InvalidPage}

// Locate returns a cursor on the first entry whose key is >= key. The cursor
// is exhausted when every key is smaller.
func (t *Tree) Locate(key int32) (Cursor, error) {
	if err := t.checkOpen("locate"); err != nil {
		return exhausted, err
	}
	if t.root == pager.InvalidPage {
		return exhausted, dberr.New(dberr.ErrEndOfTree, "bptree: locate %d: empty tree", key)
	}
	node, err := t.readNode(t.root)
	if err != nil {
		return exhausted, err
	}
	// Internal nodes route to the first separator >= key so that the leftmost
	// copy of a repeated key is found.
	for !node.Leaf {
		if node, err = t.readNode(node.Children[node.LowerBound(key)]); err != nil {
			return exhausted, err
		}
	}
	c, err := t.seek(node, node.LowerBound(key))
	t.log.Debug("locate", zap.Int32("key", key), zap.Stringer("cursor", c))
	return c, err
}

// seek returns a cursor on entry i of leaf, following the leaf chain while i
// is past the end of the current leaf.
func (t *Tree) seek(leaf *btpage.Node, i int) (Cursor, error) {
	for i >= leaf.Count() {
		if leaf.Next == pager.InvalidPage {
			return exhausted, nil
		}
		next, err := t.readNode(leaf.Next)
		if err != nil {
			return exhausted, err
		}
		if !next.Leaf {
			return exhausted, dberr.New(dberr.ErrInvalidFileFormat,
				"bptree: leaf %d links to internal page %d", leaf.PageID, next.PageID)
		}
		leaf, i = next, 0
	}
	return Cursor{PageID: leaf.PageID, Entry: i}, nil
}

// ReadForward returns the entry under c and the cursor after it. Past the
// last entry of a leaf the cursor moves to entry 0 of the next leaf.
func (t *Tree) ReadForward(c Cursor) (int32, record.Locator, Cursor, error) {
	if err := t.checkOpen("read forward"); err != nil {
		return 0, record.Locator{}, exhausted, err
	}
	if c.Done() {
		return 0, record.Locator{}, exhausted, dberr.New(dberr.ErrEndOfTree, "bptree: read forward past the last leaf")
	}
	node, err := t.readNode(c.PageID)
	if err != nil {
		return 0, record.Locator{}, exhausted, err
	}
	key, loc, err := node.ReadEntry(c.Entry)
	if err != nil {
		return 0, record.Locator{}, exhausted, err
	}
	next := Cursor{PageID: c.PageID, Entry: c.Entry + 1}
	if next.Entry >= node.Count() {
		next = Cursor{PageID: node.Next}
	}
	return key, loc, next, nil
}

// MinimumKey returns the smallest key in the tree.
func (t *Tree) MinimumKey() (int32, error) {
	leaf, err := t.edgeLeaf("minimum key", false)
	if err != nil {
		return 0, err
	}
	// The leftmost leaf stays empty until a key below the first one arrives.
	c, err := t.seek(leaf, 0)
	if err != nil {
		return 0, err
	}
	if c.Done() {
		return 0, dberr.New(dberr.ErrEndOfTree, "bptree: minimum key: no entries")
	}
	key, _, _, err := t.ReadForward(c)
	return key, err
}

// MaximumKey returns the largest key in the tree.
func (t *Tree) MaximumKey() (int32, error) {
	leaf, err := t.edgeLeaf("maximum key", true)
	if err != nil {
		return 0, err
	}
	if leaf.Count() == 0 {
		return 0, dberr.New(dberr.ErrEndOfTree, "bptree: maximum key: rightmost leaf %d is empty", leaf.PageID)
	}
	return leaf.Keys[leaf.Count()-1], nil
}

// edgeLeaf descends along the first (or last) child pointers.
func (t *Tree) edgeLeaf(op string, last bool) (*btpage.Node, error) {
	if err := t.checkOpen(op); err != nil {
		return nil, err
	}
	if t.root == pager.InvalidPage {
		return nil, dberr.New(dberr.ErrEndOfTree, "bptree: %s: empty tree", op)
	}
	node, err := t.readNode(t.root)
	for err == nil && !node.Leaf {
		i := 0
		if last {
			i = len(node.Children) - 1
		}
		node, err = t.readNode(node.Children[i])
	}
	return node, err
}

// Lookup returns the locators stored under key in insertion order.
func (t *Tree) Lookup(key int32) ([]record.Locator, error) {
	if err := t.checkOpen("lookup"); err != nil {
		return nil, err
	}
	var locs []record.Locator
	if t.root != pager.InvalidPage {
		c, err := t.Locate(key)
		if err != nil {
			return nil, err
		}
		for !c.Done() {
			k, loc, next, err := t.ReadForward(c)
			if err != nil {
				return nil, err
			}
			if k != key {
				break
			}
			locs = append(locs, loc)
			c = next
		}
	}
	if len(locs) == 0 {
		return nil, dberr.New(dberr.ErrRecordNotFound, "bptree: key %d", key)
	}
	return locs, nil
}

// Range returns an iterator over the entries with start <= key <= end.
func (t *Tree) Range(start, end int32) (index.Iterator, error) {
	if err := t.checkOpen("range"); err != nil {
		return nil, err
	}
	it := &RangeIterator{tree: t, end: end, cur: exhausted}
	if t.root == pager.InvalidPage || start > end {
		return it, nil
	}
	c, err := t.Locate(start)
	if err != nil {
		return nil, err
	}
	it.cur = c
	return it, nil
}

// RangeIterator walks the leaf chain from a located cursor.
type RangeIterator struct {
	tree *Tree
	end  int32
	cur  Cursor
	key  int32
	loc  record.Locator
	err  error
}

func (it *RangeIterator) Next() bool {
	if it.err != nil || it.cur.Done() {
		return false
	}
	k, loc, next, err := it.tree.ReadForward(it.cur)
	if err != nil {
		it.err = err
		return false
	}
	if k > it.end {
		it.cur = exhausted
		return false
	}
	it.key, it.loc, it.cur = k, loc, next
	return true
}

func (it *RangeIterator) Key() int32              { return it.key }
func (it *RangeIterator) Locator() record.Locator { return it.loc }
func (it *RangeIterator) Error() error            { return it.err }
func (it *RangeIterator) Close() error            { it.cur = exhausted; return nil }
