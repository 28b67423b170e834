package bptree_test

import (
	"math"
	"math/rand"
	"path/filepath"
	"testing"

	"github.com/btree-query-bench/bpindex/dbms/index"
	"github.com/btree-query-bench/bpindex/dbms/index/bptree"
	"github.com/btree-query-bench/bpindex/dbms/index/lsm"
	"github.com/btree-query-bench/bpindex/dbms/index/memindex"
	"github.com/btree-query-bench/bpindex/dbms/pager"
	"github.com/btree-query-bench/bpindex/dbms/record"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type pair struct {
	key int32
	loc record.Locator
}

func collect(t *testing.T, idx index.Index, start, end int32) []pair {
	t.Helper()
	it, err := idx.Range(start, end)
	require.NoError(t, err)
	defer it.Close()
	var out []pair
	for it.Next() {
		out = append(out, pair{it.Key(), it.Locator()})
	}
	require.NoError(t, it.Error())
	return out
}

// TestMatchesPebble runs the same inserts through the B+ tree and the pebble
// index and compares ranges and lookups.
func TestMatchesPebble(t *testing.T) {
	dir := t.TempDir()
	tree, err := bptree.Open(filepath.Join(dir, "ref.idx"), pager.ReadWrite, bptree.DefaultOptions().WithPageSize(128))
	require.NoError(t, err)
	defer tree.Close()
	ref, err := lsm.Open(filepath.Join(dir, "lsm"), lsm.DefaultOptions())
	require.NoError(t, err)
	defer ref.Close()

	rng := rand.New(rand.NewSource(42))
	for i := 0; i < 3000; i++ {
		k := int32(rng.Intn(2000)) - 1000
		loc := record.Locator{PageID: int32(i / 64), SlotID: int32(i % 64)}
		require.NoError(t, tree.Insert(k, loc))
		require.NoError(t, ref.Insert(k, loc))
	}

	for i := 0; i < 50; i++ {
		a := int32(rng.Intn(2400)) - 1200
		b := a + int32(rng.Intn(300))
		assert.Equal(t, collect(t, ref, a, b), collect(t, tree, a, b), "range [%d, %d]", a, b)
	}
	assert.Equal(t, collect(t, ref, -2000, 2000), collect(t, tree, -2000, 2000))

	for k := int32(-1000); k < 1000; k += 17 {
		want, wantErr := ref.Lookup(k)
		got, gotErr := tree.Lookup(k)
		assert.Equal(t, wantErr == nil, gotErr == nil, "key %d", k)
		assert.Equal(t, want, got, "key %d", k)
	}

	_, err = tree.Verify()
	require.NoError(t, err)
}

// TestMatchesSortedList checks a tiny-page tree with many duplicates against
// the in-memory sorted list.
func TestMatchesSortedList(t *testing.T) {
	tree, err := bptree.Open(filepath.Join(t.TempDir(), "list.idx"), pager.ReadWrite, bptree.DefaultOptions().WithPageSize(45))
	require.NoError(t, err)
	defer tree.Close()
	ref := memindex.NewListIndex()

	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 1500; i++ {
		k := int32(rng.Intn(40))
		loc := record.Locator{PageID: int32(i), SlotID: 1}
		require.NoError(t, tree.Insert(k, loc))
		require.NoError(t, ref.Insert(k, loc))
	}

	assert.Equal(t, collect(t, ref, math.MinInt32, math.MaxInt32), collect(t, tree, math.MinInt32, math.MaxInt32))
	for k := int32(-1); k <= 40; k++ {
		want, wantErr := ref.Lookup(k)
		got, gotErr := tree.Lookup(k)
		assert.Equal(t, wantErr == nil, gotErr == nil, "key %d", k)
		assert.Equal(t, want, got, "key %d", k)
	}

	report, err := tree.Verify()
	require.NoError(t, err)
	assert.Equal(t, ref.Len(), report.Entries)
}
