package bptree

import (
	"slices"

	"github.com/btree-query-bench/bpindex/dbms/dberr"
	"github.com/btree-query-bench/bpindex/dbms/index/btpage"
	"github.com/btree-query-bench/bpindex/dbms/pager"
	"github.com/btree-query-bench/bpindex/dbms/record"
	"go.uber.org/zap"
)

// Insert adds (key, loc) to the tree. Equal keys are kept in insertion order.
//
// A failure part way through a split is not rolled back and can leave the
// file inconsistent.
func (t *Tree) Insert(key int32, loc record.Locator) error {
	if err := t.checkOpen("insert"); err != nil {
		return err
	}
	if t.readOnly {
		return dberr.New(dberr.ErrFileReadOnly, "bptree: insert %d", key)
	}
	t.log.Debug("insert", zap.Int32("key", key), zap.Stringer("loc", loc))

	var root *btpage.Node
	var err error
	if t.root == pager.InvalidPage {
		root, err = t.bootstrap(key)
	} else {
		root, err = t.readNode(t.root)
	}
	if err != nil {
		return err
	}
	if root.Full(t.layout) {
		if root, err = t.grow(root); err != nil {
			return err
		}
	}
	return t.insertNonFull(root, key, loc)
}

// bootstrap builds the first tree: an internal root with separator key over
// an empty left leaf and an empty right leaf. The metadata page is written
// first when the file is new.
func (t *Tree) bootstrap(key int32) (*btpage.Node, error) {
	if t.nextPage == 0 {
		t.allocPage()
		if err := t.writeMeta(); err != nil {
			return nil, err
		}
	}

	right := btpage.NewLeaf(t.allocPage())
	if err := t.writeNode(right.PageID, right); err != nil {
		return nil, err
	}
	left := btpage.NewLeaf(t.allocPage())
	left.Next = right.PageID
	if err := t.writeNode(left.PageID, left); err != nil {
		return nil, err
	}
	root := btpage.NewInternal(t.allocPage(), left.PageID)
	if err := root.InsertSeparator(t.layout, 0, key, right.PageID); err != nil {
		return nil, err
	}
	if err := t.writeNode(root.PageID, root); err != nil {
		return nil, err
	}

	t.root, t.height = root.PageID, 1
	t.log.Debug("bootstrap",
		zap.Int32("root", int32(root.PageID)),
		zap.Int32("left", int32(left.PageID)),
		zap.Int32("right", int32(right.PageID)))
	return root, nil
}

// grow puts a new root above the full old root and splits the old root
// under it. Height grows by one.
func (t *Tree) grow(old *btpage.Node) (*btpage.Node, error) {
	root := btpage.NewInternal(t.allocPage(), old.PageID)
	if err := t.writeNode(root.PageID, root); err != nil {
		return nil, err
	}
	if _, _, err := t.splitChild(root, 0, old); err != nil {
		return nil, err
	}
	t.root = root.PageID
	t.height++
	t.log.Debug("grow", zap.Int32("root", int32(root.PageID)), zap.Int32("height", t.height))
	return root, nil
}

// insertNonFull descends from node, which must not be full, splitting every
// full child before stepping into it, and inserts into the leaf it reaches.
func (t *Tree) insertNonFull(node *btpage.Node, key int32, loc record.Locator) error {
	for !node.Leaf {
		i := node.UpperBound(key)
		child, err := t.readNode(node.Children[i])
		if err != nil {
			return err
		}
		if child.Full(t.layout) {
			left, right, err := t.splitChild(node, i, child)
			if err != nil {
				return err
			}
			child = left
			if key >= node.Keys[i] {
				child = right
			}
		}
		node = child
	}
	if _, err := node.InsertEntry(t.layout, key, loc); err != nil {
		return err
	}
	return t.writeNode(node.PageID, node)
}

// splitChild splits the full child at index i of parent into child and a new
// right sibling, and inserts the separator into parent. A leaf moves its upper
// MinFill entries to the sibling; an internal node promotes its middle key.
// Exactly one page is allocated. Pages are written right sibling first, then
// child, then parent.
func (t *Tree) splitChild(parent *btpage.Node, i int, child *btpage.Node) (*btpage.Node, *btpage.Node, error) {
	if parent.Leaf {
		return nil, nil, dberr.New(dberr.ErrInvalidFileFormat, "bptree: split under leaf %d", parent.PageID)
	}
	n := child.Count()
	mid := n / 2
	if child.Leaf {
		mid = n - t.layout.MinFill(true)
	}
	right := &btpage.Node{Leaf: child.Leaf, PageID: t.allocPage(), Next: pager.InvalidPage}

	var sep int32
	if child.Leaf {
		right.Keys = slices.Clone(child.Keys[mid:])
		right.Locators = slices.Clone(child.Locators[mid:])
		right.Next = child.Next
		child.Keys = child.Keys[:mid:mid]
		child.Locators = child.Locators[:mid:mid]
		child.Next = right.PageID
		sep = right.Keys[0]
	} else {
		sep = child.Keys[mid]
		right.Keys = slices.Clone(child.Keys[mid+1:])
		right.Children = slices.Clone(child.Children[mid+1:])
		child.Keys = child.Keys[:mid:mid]
		child.Children = child.Children[: mid+1 : mid+1]
	}
	if err := parent.InsertSeparator(t.layout, i, sep, right.PageID); err != nil {
		return nil, nil, err
	}

	if err := t.writeNode(right.PageID, right); err != nil {
		return nil, nil, err
	}
	if err := t.writeNode(child.PageID, child); err != nil {
		return nil, nil, err
	}
	if err := t.writeNode(parent.PageID, parent); err != nil {
		return nil, nil, err
	}
	t.log.Debug("split",
		zap.Bool("leaf", child.Leaf),
		zap.Int32("page", int32(child.PageID)),
		zap.Int32("right", int32(right.PageID)),
		zap.Int32("separator", sep))
	return child, right, nil
}
