// Command bmark loads the disk B+ tree under each page cache mode, plus an
// in-memory sorted list and the pebble LSM for comparison, runs a fixed set
// of workloads against each and writes the latencies as CSV plus a bar chart.
package main

import (
	"encoding/csv"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/btree-query-bench/bpindex/dbms/index"
	"github.com/btree-query-bench/bpindex/dbms/index/bptree"
	"github.com/btree-query-bench/bpindex/dbms/index/lsm"
	"github.com/btree-query-bench/bpindex/dbms/index/memindex"
	"github.com/btree-query-bench/bpindex/dbms/pager"
	"github.com/cockroachdb/errors"
	"github.com/dustin/go-humanize"
	"go.uber.org/zap"
)

var stdout io.Writer = os.Stdout

func main() {
	os.Exit(run(os.Args))
}

func run(args []string) int {
	fs := flag.NewFlagSet("bmark", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	n := fs.Int("n", 100000, "Keys loaded before the workloads run")
	out := fs.String("out", "results", "Directory for index files, CSV and chart")
	pageSize := fs.Int("page-size", pager.DefaultPageSize, "B+ tree page size in bytes")
	cachePages := fs.Int("cache-pages", bptree.DefaultCachePages, "Pages held by the B+ tree cache")
	seed := fs.Int64("seed", 1, "Workload random seed")
	noLSM := fs.Bool("no-lsm", false, "Skip the pebble LSM")
	verbose := fs.Bool("v", false, "Debug logging")
	if err := fs.Parse(args[1:]); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 1
	}
	if *n < 2 {
		fmt.Fprintln(os.Stderr, "Error: -n must be at least 2")
		return 1
	}

	log, err := newLogger(*verbose)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	defer log.Sync()

	b := &bench{out: *out, n: *n, seed: *seed, log: log}
	opts := bptree.DefaultOptions().WithPageSize(*pageSize).WithLogger(log)
	if err := b.runAll(opts, *cachePages, !*noLSM); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	fmt.Fprintf(stdout, "Benchmark complete. Results in %s\n", *out)
	return 0
}

func newLogger(verbose bool) (*zap.Logger, error) {
	if verbose {
		return zap.NewDevelopment()
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	return cfg.Build()
}

type bench struct {
	out     string
	n       int
	seed    int64
	log     *zap.Logger
	results []BenchResult
}

func (b *bench) runAll(opts bptree.Options, cachePages int, withLSM bool) error {
	if err := os.MkdirAll(b.out, 0755); err != nil {
		return errors.Wrapf(err, "create %s", b.out)
	}
	noStats := func() pager.Stats { return pager.Stats{} }

	list := memindex.NewListIndex()
	err := b.runSuite("SortedList", "memory", list, noStats)
	if err := errors.CombineErrors(err, list.Close()); err != nil {
		return err
	}

	for _, mode := range []string{bptree.CacheClock, bptree.CacheRistretto, bptree.CacheNone} {
		path := filepath.Join(b.out, "bptree-"+mode+".idx")
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return errors.Wrapf(err, "remove %s", path)
		}
		tree, err := bptree.Open(path, pager.ReadWrite, opts.WithCache(mode, cachePages))
		if err != nil {
			return err
		}
		err = b.runSuite("BPlusTree", mode, tree, tree.Stats)
		if err := errors.CombineErrors(err, tree.Close()); err != nil {
			return err
		}
	}

	if withLSM {
		dir := filepath.Join(b.out, "lsm")
		if err := os.RemoveAll(dir); err != nil {
			return errors.Wrapf(err, "remove %s", dir)
		}
		l, err := lsm.Open(dir, lsm.Options{Logger: b.log})
		if err != nil {
			return err
		}
		err = b.runSuite("LSM-Tree", "pebble", l, noStats)
		if err := errors.CombineErrors(err, l.Close()); err != nil {
			return err
		}
	}

	if err := b.writeCSV(filepath.Join(b.out, "results.csv")); err != nil {
		return err
	}
	return SaveChart(b.results, filepath.Join(b.out, "latency.png"))
}

// runSuite loads n keys, then runs the OLTP, OLAP and range workloads. stats
// reports the page I/O of idx so far.
func (b *bench) runSuite(name, conf string, idx index.Index, stats func() pager.Stats) error {
	fmt.Fprintf(stdout, "Testing %s (Config: %s)\n", name, conf)
	w := NewWorkload(b.seed)

	phase := func(op string, ops int, fn func() error) error {
		before := stats()
		start := time.Now()
		if err := fn(); err != nil {
			return errors.Wrapf(err, "%s %s %s", name, conf, op)
		}
		lat := time.Since(start).Nanoseconds() / int64(ops)
		after := stats()
		mem := GetDetailedMem()
		b.results = append(b.results, BenchResult{
			Name:      name,
			Config:    conf,
			Operation: op,
			LatencyNs: lat,
			MemMB:     mem.AllocMB,
			Objects:   mem.HeapObjects,
			PageReads: after.Reads - before.Reads,
			CacheHits: after.CacheHits - before.CacheHits,
		})
		fmt.Fprintf(stdout, "  %-16s %10s ns/op  %s heap objects\n",
			op, humanize.Comma(lat), humanize.Comma(int64(mem.HeapObjects)))
		return nil
	}

	if err := phase("Load", b.n, func() error { return w.Load(idx, b.n) }); err != nil {
		return err
	}
	if err := phase("Workload_OLTP", b.n/2, func() error { return w.Execute(idx, OLTP, b.n/2) }); err != nil {
		return err
	}
	if err := phase("Workload_OLAP", b.n/2, func() error { return w.Execute(idx, OLAP, b.n/2) }); err != nil {
		return err
	}
	return phase("Workload_Range", 100, func() error { return w.Execute(idx, Reporting, 100) })
}

func (b *bench) writeCSV(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "create %s", path)
	}
	defer f.Close()
	w := csv.NewWriter(f)
	if err := w.Write(csvHeader); err != nil {
		return err
	}
	for _, r := range b.results {
		if err := Record(w, r); err != nil {
			return err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return errors.Wrapf(err, "write %s", path)
	}
	return f.Close()
}
