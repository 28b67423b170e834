package main

import (
	"flag"
	"fmt"
	"io"
	"math"
	"math/rand"
	"os"
	"strconv"
	"time"

	"github.com/btree-query-bench/bpindex/dbms/dberr"
	"github.com/btree-query-bench/bpindex/dbms/index/bptree"
	"github.com/btree-query-bench/bpindex/dbms/pager"
	"github.com/btree-query-bench/bpindex/dbms/record"
	"github.com/cockroachdb/errors"
	"github.com/dustin/go-humanize"
	"go.uber.org/zap"
)

// treeFlags are the options every command accepts.
type treeFlags struct {
	pageSize   int
	cache      string
	cachePages int
	verbose    bool
}

func (f *treeFlags) register(fs *flag.FlagSet) {
	fs.IntVar(&f.pageSize, "page-size", pager.DefaultPageSize, "Page size in bytes")
	fs.StringVar(&f.cache, "cache", bptree.CacheClock, "Page cache: clock, ristretto or none")
	fs.IntVar(&f.cachePages, "cache-pages", bptree.DefaultCachePages, "Pages held by the cache")
	fs.BoolVar(&f.verbose, "v", false, "Debug logging")
}

func (f *treeFlags) options() (bptree.Options, *zap.Logger, error) {
	log, err := newLogger(f.verbose)
	if err != nil {
		return bptree.Options{}, nil, err
	}
	opts := bptree.DefaultOptions().
		WithPageSize(f.pageSize).
		WithCache(f.cache, f.cachePages).
		WithLogger(log)
	return opts, log, opts.Validate()
}

// newLogger logs at debug level in development format with -v, otherwise
// only warnings and errors as JSON.
func newLogger(verbose bool) (*zap.Logger, error) {
	if verbose {
		return zap.NewDevelopment()
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	return cfg.Build()
}

// parseName parses args and returns the single positional NAME. When ok is
// false the command should exit with code.
func parseName(fs *flag.FlagSet, args []string) (name string, code int, ok bool) {
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return "", 0, false
		}
		return "", 1, false
	}
	if fs.NArg() != 1 {
		fmt.Fprintf(stderr, "Error: %s needs exactly one NAME argument\n", fs.Name())
		return "", 1, false
	}
	return fs.Arg(0), 0, true
}

func fail(err error) int {
	fmt.Fprintf(stderr, "Error: %v (code %d)\n", err, dberr.Code(err))
	return 1
}

func toKey(flagName string, v int) (int32, error) {
	if v < math.MinInt32 || v > math.MaxInt32 {
		return 0, dberr.New(dberr.ErrInvalidAttribute, "-%s %d does not fit a 32-bit key", flagName, v)
	}
	return int32(v), nil
}

// loadCmd appends n records with keys start..start+n-1 and indexes them.
func loadCmd(args []string) int {
	fs := flag.NewFlagSet("load", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var tf treeFlags
	tf.register(fs)
	n := fs.Int("n", 1000, "Number of records to append")
	start := fs.Int("start", 0, "First key")
	shuffle := fs.Bool("shuffle", false, "Insert keys in random order")
	seed := fs.Int64("seed", 1, "Random seed for -shuffle")

	name, code, ok := parseName(fs, args)
	if !ok {
		return code
	}
	if *n < 0 {
		return fail(dberr.New(dberr.ErrInvalidAttribute, "-n %d", *n))
	}
	first, err := toKey("start", *start)
	if err != nil {
		return fail(err)
	}
	if *n > 0 {
		if _, err := toKey("start", *start+*n-1); err != nil {
			return fail(err)
		}
	}
	opts, log, err := tf.options()
	if err != nil {
		return fail(err)
	}
	defer log.Sync()

	keys := make([]int32, *n)
	for i := range keys {
		keys[i] = first + int32(i)
	}
	if *shuffle {
		rng := rand.New(rand.NewSource(*seed))
		rng.Shuffle(len(keys), func(i, j int) { keys[i], keys[j] = keys[j], keys[i] })
	}

	store, err := record.OpenStore(name+".tbl", record.StoreOptions{Logger: log})
	if err != nil {
		return fail(err)
	}
	tree, err := bptree.Open(name+".idx", pager.ReadWrite, opts)
	if err != nil {
		_ = store.Close()
		return fail(err)
	}

	began := time.Now()
	err = func() error {
		for _, k := range keys {
			loc, err := store.Append(k, []byte(strconv.Itoa(int(k))))
			if err != nil {
				return err
			}
			if err := tree.Insert(k, loc); err != nil {
				return err
			}
		}
		return nil
	}()
	elapsed := time.Since(began)
	height, pages := tree.Height(), tree.PageCount()
	err = errors.CombineErrors(err, tree.Close())
	err = errors.CombineErrors(err, store.Close())
	if err != nil {
		return fail(err)
	}

	fmt.Fprintf(stdout, "Loaded %s records into %s.idx in %v\n",
		humanize.Comma(int64(len(keys))), name, elapsed.Round(time.Millisecond))
	fmt.Fprintf(stdout, "  Height: %d\n", height)
	fmt.Fprintf(stdout, "  Pages:  %s\n", humanize.Comma(int64(pages)))
	return 0
}

// searchCmd prints the entries for one key or a key range.
func searchCmd(args []string) int {
	fs := flag.NewFlagSet("search", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var tf treeFlags
	tf.register(fs)
	key := fs.Int("key", 0, "Look up exactly this key")
	from := fs.Int("from", math.MinInt32, "Range start (inclusive)")
	to := fs.Int("to", math.MaxInt32, "Range end (inclusive)")
	limit := fs.Int("limit", 0, "Stop after this many entries, 0 for all")
	records := fs.Bool("records", false, "Print the stored record of every entry")

	name, code, ok := parseName(fs, args)
	if !ok {
		return code
	}
	exact := false
	fs.Visit(func(f *flag.Flag) {
		if f.Name == "key" {
			exact = true
		}
	})
	opts, log, err := tf.options()
	if err != nil {
		return fail(err)
	}
	defer log.Sync()

	tree, err := bptree.Open(name+".idx", pager.ReadOnly, opts)
	if err != nil {
		return fail(err)
	}
	defer tree.Close()

	var store *record.Store
	if *records {
		store, err = record.OpenStore(name+".tbl", record.StoreOptions{ReadOnly: true, Logger: log})
		if err != nil {
			return fail(err)
		}
		defer store.Close()
	}
	emit := func(k int32, loc record.Locator) error {
		if store == nil {
			fmt.Fprintf(stdout, "%d\t%s\n", k, loc)
			return nil
		}
		_, payload, err := store.Read(loc)
		if err != nil {
			return err
		}
		fmt.Fprintf(stdout, "%d\t%s\t%q\n", k, loc, payload)
		return nil
	}

	if exact {
		k, err := toKey("key", *key)
		if err != nil {
			return fail(err)
		}
		locs, err := tree.Lookup(k)
		if err != nil {
			return fail(err)
		}
		for _, loc := range locs {
			if err := emit(k, loc); err != nil {
				return fail(err)
			}
		}
		return 0
	}

	lo, err := toKey("from", *from)
	if err != nil {
		return fail(err)
	}
	hi, err := toKey("to", *to)
	if err != nil {
		return fail(err)
	}
	it, err := tree.Range(lo, hi)
	if err != nil {
		return fail(err)
	}
	defer it.Close()
	count := 0
	for (*limit <= 0 || count < *limit) && it.Next() {
		if err := emit(it.Key(), it.Locator()); err != nil {
			return fail(err)
		}
		count++
	}
	if err := it.Error(); err != nil {
		return fail(err)
	}
	fmt.Fprintf(stderr, "%s entries\n", humanize.Comma(int64(count)))
	return 0
}

// statCmd prints the shape of the tree and the size of its file.
func statCmd(args []string) int {
	fs := flag.NewFlagSet("stat", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var tf treeFlags
	tf.register(fs)

	name, code, ok := parseName(fs, args)
	if !ok {
		return code
	}
	opts, log, err := tf.options()
	if err != nil {
		return fail(err)
	}
	defer log.Sync()

	path := name + ".idx"
	info, err := os.Stat(path)
	if err != nil {
		return fail(dberr.Wrap(dberr.ErrOpenFailed, err, "stat %s", path))
	}
	tree, err := bptree.Open(path, pager.ReadOnly, opts)
	if err != nil {
		return fail(err)
	}
	defer tree.Close()

	l := tree.Layout()
	fmt.Fprintf(stdout, "File:            %s (%s)\n", path, humanize.IBytes(uint64(info.Size())))
	fmt.Fprintf(stdout, "Page size:       %d\n", l.PageSize)
	fmt.Fprintf(stdout, "Pages:           %s\n", humanize.Comma(int64(tree.PageCount())))
	fmt.Fprintf(stdout, "Capacity:        %d per leaf, %d per internal node\n", l.MaxLeafKeys, l.MaxInternalKeys)
	fmt.Fprintf(stdout, "Root:            %d\n", tree.RootID())
	fmt.Fprintf(stdout, "Height:          %d\n", tree.Height())
	if tree.Empty() {
		fmt.Fprintln(stdout, "Entries:         0")
		return 0
	}

	minKey, err := tree.MinimumKey()
	if err != nil {
		return fail(err)
	}
	maxKey, err := tree.MaximumKey()
	if err != nil {
		return fail(err)
	}
	r, verr := tree.Verify()
	fmt.Fprintf(stdout, "Keys:            %d .. %d\n", minKey, maxKey)
	fmt.Fprintf(stdout, "Entries:         %s\n", humanize.Comma(int64(r.Entries)))
	fmt.Fprintf(stdout, "Nodes:           %s leaves, %s internal\n",
		humanize.Comma(int64(r.Leaves)), humanize.Comma(int64(r.InternalNodes)))
	fmt.Fprintf(stdout, "Leaf fill:       %.1f%%\n", 100*r.LeafFill)
	st := tree.Stats()
	fmt.Fprintf(stdout, "Page reads:      %s (%s cache hits)\n", humanize.Comma(st.Reads), humanize.Comma(st.CacheHits))
	if verr != nil {
		return fail(verr)
	}
	return 0
}

// dumpCmd writes the node listing or a DOT graph.
func dumpCmd(args []string) int {
	fs := flag.NewFlagSet("dump", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var tf treeFlags
	tf.register(fs)
	dot := fs.Bool("dot", false, "Write Graphviz DOT instead of a node listing")
	out := fs.String("o", "", "Output file (default stdout)")

	name, code, ok := parseName(fs, args)
	if !ok {
		return code
	}
	opts, log, err := tf.options()
	if err != nil {
		return fail(err)
	}
	defer log.Sync()

	tree, err := bptree.Open(name+".idx", pager.ReadOnly, opts)
	if err != nil {
		return fail(err)
	}
	defer tree.Close()

	var w io.Writer = stdout
	if *out != "" {
		f, err := os.Create(*out)
		if err != nil {
			return fail(dberr.Wrap(dberr.ErrOpenFailed, err, "dump to %s", *out))
		}
		defer f.Close()
		w = f
	}
	if *dot {
		err = tree.ExportDOT(w)
	} else {
		err = tree.Dump(w)
	}
	if err != nil {
		return fail(err)
	}
	return 0
}

// verifyCmd checks the tree and exits non-zero on any structural problem.
func verifyCmd(args []string) int {
	fs := flag.NewFlagSet("verify", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var tf treeFlags
	tf.register(fs)

	name, code, ok := parseName(fs, args)
	if !ok {
		return code
	}
	opts, log, err := tf.options()
	if err != nil {
		return fail(err)
	}
	defer log.Sync()

	tree, err := bptree.Open(name+".idx", pager.ReadOnly, opts)
	if err != nil {
		return fail(err)
	}
	defer tree.Close()

	r, err := tree.Verify()
	for _, p := range r.Problems {
		fmt.Fprintf(stdout, "FAIL  %s\n", p)
	}
	if err != nil {
		return fail(err)
	}
	fmt.Fprintf(stdout, "OK  height %d, %s leaves, %s entries\n",
		r.Height, humanize.Comma(int64(r.Leaves)), humanize.Comma(int64(r.Entries)))
	return 0
}
