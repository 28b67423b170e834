package bptree

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/btree-query-bench/bpindex/dbms/index/btpage"
	"github.com/btree-query-bench/bpindex/dbms/pager"
)

// Dump writes a level-order listing of every node to w.
func (t *Tree) Dump(w io.Writer) error {
	if err := t.checkOpen("dump"); err != nil {
		return err
	}
	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "root=%d height=%d pages=%d leaf_cap=%d internal_cap=%d\n",
		t.root, t.height, t.nextPage, t.layout.MaxLeafKeys, t.layout.MaxInternalKeys)
	if t.root == pager.InvalidPage {
		fmt.Fprintln(bw, "(empty tree)")
		return bw.Flush()
	}

	level := []pager.PageID{t.root}
	for depth := 0; len(level) > 0; depth++ {
		fmt.Fprintf(bw, "level %d:\n", depth)
		var next []pager.PageID
		for _, id := range level {
			n, err := t.readNode(id)
			if err != nil {
				bw.Flush()
				return err
			}
			if n.Leaf {
				fmt.Fprintf(bw, "  leaf[%d] n=%d keys=%v locs=%v next=%d\n", id, n.Count(), n.Keys, n.Locators, n.Next)
				continue
			}
			fmt.Fprintf(bw, "  internal[%d] n=%d keys=%v children=%v\n", id, n.Count(), n.Keys, n.Children)
			next = append(next, n.Children...)
		}
		level = next
	}
	return bw.Flush()
}

// ExportDOT writes the tree as a Graphviz digraph. Render it with
// `dot -Tpng tree.dot -o tree.png`.
func (t *Tree) ExportDOT(w io.Writer) error {
	if err := t.checkOpen("export"); err != nil {
		return err
	}
	bw := bufio.NewWriter(w)
	fmt.Fprintln(bw, "digraph BPTree {")
	fmt.Fprintln(bw, `  graph [ranksep=0.8, nodesep=0.5, bgcolor="#ffffff", rankdir=TB];`)
	fmt.Fprintln(bw, `  node [shape=none, fontname="Helvetica", fontsize=10];`)
	fmt.Fprintln(bw, `  edge [arrowsize=0.8, color="#444444"];`)

	if t.root != pager.InvalidPage {
		var leaves []*btpage.Node
		var walk func(id pager.PageID) error
		walk = func(id pager.PageID) error {
			n, err := t.readNode(id)
			if err != nil {
				return err
			}
			fill := 100 * float64(n.Count()) / float64(t.layout.MaxKeys(n.Leaf))
			if n.Leaf {
				fmt.Fprintf(bw, "  p%d [label=%s];\n", id, leafLabel(n, fill))
				leaves = append(leaves, n)
				return nil
			}
			fmt.Fprintf(bw, "  p%d [label=%s];\n", id, internalLabel(n, fill))
			for i, c := range n.Children {
				if err := walk(c); err != nil {
					return err
				}
				fmt.Fprintf(bw, "  p%d:f%d -> p%d;\n", id, i, c)
			}
			return nil
		}
		if err := walk(t.root); err != nil {
			bw.Flush()
			return err
		}

		if len(leaves) > 1 {
			fmt.Fprint(bw, "  { rank=same;")
			for _, l := range leaves {
				fmt.Fprintf(bw, " p%d;", l.PageID)
			}
			fmt.Fprintln(bw, " }")
		}
		for _, l := range leaves {
			if l.Next != pager.InvalidPage {
				fmt.Fprintf(bw, "  p%d:next -> p%d [style=dashed, color=\"#03A9F4\", constraint=false];\n", l.PageID, l.Next)
			}
		}
	}
	fmt.Fprintln(bw, "}")
	return bw.Flush()
}

func leafLabel(n *btpage.Node, fill float64) string {
	var b strings.Builder
	fmt.Fprintf(&b, `<<TABLE BORDER="0" CELLBORDER="1" CELLSPACING="0" CELLPADDING="4">`+
		`<TR><TD COLSPAN="2" BGCOLOR="#D5E8D4"><B>PAGE %d (LEAF)</B><BR/><FONT POINT-SIZE="8">Fill: %.1f%%</FONT></TD></TR>`+
		`<TR><TD BGCOLOR="#F5F5F5" ALIGN="LEFT">`, n.PageID, fill)
	for i, k := range n.Keys {
		fmt.Fprintf(&b, `<B>%d</B> <FONT COLOR="#666666">%s</FONT><BR/>`, k, n.Locators[i])
	}
	if n.Count() == 0 {
		b.WriteString("-")
	}
	next := "NULL"
	if n.Next != pager.InvalidPage {
		next = fmt.Sprint(n.Next)
	}
	fmt.Fprintf(&b, `</TD><TD PORT="next" BGCOLOR="#E1F5FE">Next: %s</TD></TR></TABLE>>`, next)
	return b.String()
}

func internalLabel(n *btpage.Node, fill float64) string {
	var b strings.Builder
	fmt.Fprintf(&b, `<<TABLE BORDER="0" CELLBORDER="1" CELLSPACING="0" CELLPADDING="4">`+
		`<TR><TD COLSPAN="%d" BGCOLOR="#DAE8FC"><B>PAGE %d (INTERNAL)</B><BR/><FONT POINT-SIZE="8">Fill: %.1f%%</FONT></TD></TR><TR>`,
		2*n.Count()+1, n.PageID, fill)
	for i, k := range n.Keys {
		fmt.Fprintf(&b, `<TD PORT="f%d" BGCOLOR="#E1F5FE">P:%d</TD><TD BGCOLOR="#FFFFFF"><B>%d</B></TD>`, i, n.Children[i], k)
	}
	last := n.Count()
	fmt.Fprintf(&b, `<TD PORT="f%d" BGCOLOR="#E1F5FE">P:%d</TD></TR></TABLE>>`, last, n.Children[last])
	return b.String()
}
