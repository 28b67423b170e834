package main

import (
	"bytes"
	"encoding/csv"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/btree-query-bench/bpindex/dbms/index/bptree"
	"github.com/btree-query-bench/bpindex/dbms/index/lsm"
	"github.com/btree-query-bench/bpindex/dbms/pager"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWorkloadAgainstTree(t *testing.T) {
	tree, err := bptree.Open(filepath.Join(t.TempDir(), "w.idx"), pager.ReadWrite, bptree.DefaultOptions().WithPageSize(128))
	require.NoError(t, err)
	defer tree.Close()

	w := NewWorkload(7)
	require.NoError(t, w.Load(tree, 300))
	require.NoError(t, w.Execute(tree, OLTP, 150))
	require.NoError(t, w.Execute(tree, OLAP, 150))
	require.NoError(t, w.Execute(tree, Reporting, 20))

	report, err := tree.Verify()
	require.NoError(t, err)
	assert.Equal(t, w.next, int64(report.Entries))
}

func TestWorkloadIsDeterministic(t *testing.T) {
	dir := t.TempDir()
	a, err := lsm.Open(filepath.Join(dir, "a"), lsm.DefaultOptions())
	require.NoError(t, err)
	defer a.Close()
	b, err := bptree.Open(filepath.Join(dir, "b.idx"), pager.ReadWrite, bptree.DefaultOptions())
	require.NoError(t, err)
	defer b.Close()

	wa, wb := NewWorkload(3), NewWorkload(3)
	require.NoError(t, wa.Load(a, 100))
	require.NoError(t, wb.Load(b, 100))
	require.NoError(t, wa.Execute(a, OLAP, 100))
	require.NoError(t, wb.Execute(b, OLAP, 100))

	la, err := a.Lookup(42)
	require.NoError(t, err)
	lb, err := b.Lookup(42)
	require.NoError(t, err)
	assert.Equal(t, la, lb)
}

func TestRun(t *testing.T) {
	out := filepath.Join(t.TempDir(), "results")
	var buf bytes.Buffer
	old := stdout
	stdout = &buf
	t.Cleanup(func() { stdout = old })

	require.Equal(t, 0, run([]string{"bmark", "-n", "200", "-page-size", "256", "-out", out}))
	assert.Contains(t, buf.String(), "Testing BPlusTree (Config: clock)")
	assert.Contains(t, buf.String(), "Testing LSM-Tree (Config: pebble)")
	assert.Contains(t, buf.String(), "Testing SortedList (Config: memory)")

	f, err := os.Open(filepath.Join(out, "results.csv"))
	require.NoError(t, err)
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 1+5*4)
	assert.Equal(t, csvHeader, rows[0])

	// The uncached tree never hits.
	for _, r := range rows[1:] {
		hits, err := strconv.ParseInt(r[7], 10, 64)
		require.NoError(t, err)
		if r[1] == bptree.CacheNone {
			assert.Zero(t, hits, "%v", r)
		}
	}

	info, err := os.Stat(filepath.Join(out, "latency.png"))
	require.NoError(t, err)
	assert.Positive(t, info.Size())
}

func TestRun_BadFlags(t *testing.T) {
	assert.Equal(t, 1, run([]string{"bmark", "-n", "1"}))
	assert.Equal(t, 1, run([]string{"bmark", "-bogus"}))
	assert.Equal(t, 0, run([]string{"bmark", "-h"}))
}
