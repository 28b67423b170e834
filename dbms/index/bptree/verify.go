package bptree

import (
	"fmt"
	"strings"

	"github.com/btree-query-bench/bpindex/dbms/dberr"
	"github.com/btree-query-bench/bpindex/dbms/index/btpage"
	"github.com/btree-query-bench/bpindex/dbms/pager"
)

// Report summarizes a structural check of the tree.
type Report struct {
	Height        int32
	InternalNodes int
	Leaves        int
	Entries       int
	// LeafFill is the average share of leaf capacity in use.
	LeafFill float64
	Problems []string
}

// OK reports whether the check found nothing wrong.
func (r Report) OK() bool { return len(r.Problems) == 0 }

// bounds constrains the keys of a subtree: lo <= key <= hi where set.
// Repeated keys may sit on both sides of an equal separator, so both ends
// are inclusive.
type bounds struct {
	lo, hi       int32
	hasLo, hasHi bool
}

func (b bounds) contains(k int32) bool {
	return (!b.hasLo || k >= b.lo) && (!b.hasHi || k <= b.hi)
}

type verifier struct {
	t      *Tree
	report *Report
	seen   map[pager.PageID]bool
	leaves []*btpage.Node
}

func (v *verifier) problem(format string, args ...interface{}) {
	v.report.Problems = append(v.report.Problems, fmt.Sprintf(format, args...))
}

// Verify walks the whole tree and checks key order within nodes, separator
// bounds, that every leaf sits at depth Height, and that the leaf chain
// visits the leaves left to right in ascending key order. Structural
// problems are listed in the report and returned as an InvalidFileFormat
// error; I/O errors abort the walk.
func (t *Tree) Verify() (Report, error) {
	r := Report{Height: t.height}
	if err := t.checkOpen("verify"); err != nil {
		return r, err
	}
	if t.root == pager.InvalidPage {
		return r, nil
	}
	v := &verifier{t: t, report: &r, seen: make(map[pager.PageID]bool)}
	if err := v.walk(t.root, 0, bounds{}); err != nil {
		return r, err
	}
	v.checkChain()

	if r.Leaves > 0 {
		r.LeafFill = float64(r.Entries) / float64(r.Leaves*t.layout.MaxLeafKeys)
	}
	if !r.OK() {
		return r, dberr.New(dberr.ErrInvalidFileFormat, "bptree: verify: %s", strings.Join(r.Problems, "; "))
	}
	return r, nil
}

func (v *verifier) walk(id pager.PageID, depth int32, b bounds) error {
	if v.seen[id] {
		v.problem("page %d reached twice", id)
		return nil
	}
	v.seen[id] = true

	n, err := v.t.readNode(id)
	if err != nil {
		return err
	}
	for i := 1; i < n.Count(); i++ {
		if n.Keys[i] < n.Keys[i-1] {
			v.problem("page %d: key %d at %d follows %d", id, n.Keys[i], i, n.Keys[i-1])
		}
	}
	for _, k := range n.Keys {
		if !b.contains(k) {
			v.problem("page %d: key %d outside separator bounds", id, k)
			break
		}
	}

	if n.Leaf {
		if depth != v.t.height {
			v.problem("leaf %d at depth %d, height is %d", id, depth, v.t.height)
		}
		v.report.Leaves++
		v.report.Entries += n.Count()
		v.leaves = append(v.leaves, n)
		return nil
	}

	v.report.InternalNodes++
	for i, c := range n.Children {
		cb := b
		if i > 0 {
			cb.lo, cb.hasLo = n.Keys[i-1], true
		}
		if i < n.Count() {
			cb.hi, cb.hasHi = n.Keys[i], true
		}
		if err := v.walk(c, depth+1, cb); err != nil {
			return err
		}
	}
	return nil
}

// checkChain compares the sibling links with the left-to-right leaf order
// found by the walk.
func (v *verifier) checkChain() {
	var last int32
	var haveLast bool
	for i, l := range v.leaves {
		want := pager.InvalidPage
		if i+1 < len(v.leaves) {
			want = v.leaves[i+1].PageID
		}
		if l.Next != want {
			v.problem("leaf %d links to %d, want %d", l.PageID, l.Next, want)
		}
		// Only the leftmost leaf may be empty; it is created empty when the
		// tree is first built.
		if l.Count() == 0 && i > 0 {
			v.problem("leaf %d is empty", l.PageID)
		}
		if l.Count() > 0 {
			if haveLast && l.Keys[0] < last {
				v.problem("leaf %d starts at %d below previous leaf end %d", l.PageID, l.Keys[0], last)
			}
			last, haveLast = l.Keys[l.Count()-1], true
		}
	}
}
