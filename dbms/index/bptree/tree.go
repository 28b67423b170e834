// Package bptree implements a disk-backed B+ tree mapping int32 keys to
// record locators.
//
// Page 0 of the index file holds the root page ID and the tree height; every
// other page holds one node (see package btpage). Nodes are split
// preemptively on the way down during insertion, so a full node is never
// asked to take one more entry. Leaves are linked through their Next field
// for range scans. Keys may repeat; equal keys come back in insertion order.
//
// A Tree is not safe for concurrent use.
package bptree

import (
	"github.com/btree-query-bench/bpindex/dbms/dberr"
	"github.com/btree-query-bench/bpindex/dbms/index"
	"github.com/btree-query-bench/bpindex/dbms/index/btpage"
	"github.com/btree-query-bench/bpindex/dbms/pager"
	"github.com/cockroachdb/errors"
	"go.uber.org/zap"
)

// Cache modes accepted by Options.CacheMode.
const (
	CacheClock     = "clock"
	CacheRistretto = "ristretto"
	CacheNone      = "none"

	DefaultCachePages = 64
)

// Options configures a Tree.
type Options struct {
	PageSize   int    // bytes per page, default pager.DefaultPageSize
	CacheMode  string // clock, ristretto or none
	CachePages int    // pages held by the cache built for CacheMode

	// Cache, when set, is used instead of building one from CacheMode. It is
	// not closed by the tree, so one cache can serve several trees.
	Cache pager.Cache

	Logger  *zap.Logger
	Metrics *pager.Metrics
}

// DefaultOptions returns the default tree options.
func DefaultOptions() Options {
	return Options{
		PageSize:   pager.DefaultPageSize,
		CacheMode:  CacheClock,
		CachePages: DefaultCachePages,
	}
}

// Validate reports the first unusable setting.
func (o Options) Validate() error {
	if _, err := btpage.NewLayout(o.PageSize); err != nil {
		return err
	}
	if o.Cache != nil {
		return nil
	}
	switch o.CacheMode {
	case CacheNone:
		return nil
	case CacheClock, CacheRistretto:
		if o.CachePages < 1 {
			return dberr.New(dberr.ErrInvalidAttribute, "bptree: %s cache of %d pages", o.CacheMode, o.CachePages)
		}
		return nil
	}
	return dberr.New(dberr.ErrInvalidAttribute, "bptree: unknown cache mode %q", o.CacheMode)
}

func (o Options) WithPageSize(n int) Options { o.PageSize = n; return o }

func (o Options) WithCache(mode string, pages int) Options {
	o.CacheMode, o.CachePages = mode, pages
	return o
}

func (o Options) WithLogger(l *zap.Logger) Options { o.Logger = l; return o }

func (o Options) WithMetrics(m *pager.Metrics) Options { o.Metrics = m; return o }

// buildCache returns the cache for a newly opened pager and a function that
// releases it.
func (o Options) buildCache() (pager.Cache, func(), error) {
	if o.Cache != nil {
		return o.Cache, func() {}, nil
	}
	switch o.CacheMode {
	case CacheClock:
		return pager.NewClockCache(o.CachePages, o.PageSize), func() {}, nil
	case CacheRistretto:
		c, err := pager.NewRistrettoCache(o.CachePages)
		if err != nil {
			return nil, nil, err
		}
		return c, c.Close, nil
	}
	return nil, func() {}, nil
}

// Tree is a B+ tree stored in a single page file.
type Tree struct {
	opts   Options
	layout btpage.Layout
	log    *zap.Logger

	pg       *pager.Pager
	release  func()
	root     pager.PageID
	height   int32
	nextPage pager.PageID // allocator; equals pg.EndPageID() between operations
	readOnly bool
	open     bool

	buf []byte // page scratch
}

var _ index.Index = (*Tree)(nil)

// New returns an unopened tree configured by opts.
func New(opts Options) (*Tree, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	layout, _ := btpage.NewLayout(opts.PageSize)
	return &Tree{
		opts:   opts,
		layout: layout,
		log:    opts.Logger.Named("bptree"),
		root:   pager.InvalidPage,
		buf:    make([]byte, opts.PageSize),
	}, nil
}

// Open is New followed by Tree.Open.
func Open(path string, mode pager.Mode, opts Options) (*Tree, error) {
	t, err := New(opts)
	if err != nil {
		return nil, err
	}
	if err := t.Open(path, mode); err != nil {
		return nil, err
	}
	return t, nil
}

// Open attaches the tree to the index file at path. An empty file yields an
// empty tree and is left untouched until the first insert.
func (t *Tree) Open(path string, mode pager.Mode) error {
	if t.open {
		return dberr.New(dberr.ErrOpenFailed, "bptree: open %s: %s is already open", path, t.pg.Path())
	}
	cache, release, err := t.opts.buildCache()
	if err != nil {
		return err
	}
	pg, err := pager.Open(path, mode, pager.Options{
		PageSize: t.opts.PageSize,
		Cache:    cache,
		Logger:   t.opts.Logger,
		Metrics:  t.opts.Metrics,
	})
	if err != nil {
		release()
		return err
	}

	t.pg = pg
	t.release = release
	t.readOnly = pg.Mode() == pager.ReadOnly
	t.nextPage = pg.EndPageID()
	t.root = pager.InvalidPage
	t.height = 0

	if pg.EndPageID() > 0 {
		if err := t.readMeta(); err != nil {
			_ = pg.Close()
			release()
			t.reset()
			return err
		}
	}
	t.open = true
	t.log.Debug("open",
		zap.String("path", path),
		zap.Stringer("mode", mode),
		zap.Int32("root", int32(t.root)),
		zap.Int32("height", t.height),
		zap.Int32("pages", int32(t.nextPage)))
	return nil
}

// Close persists the root and height to page 0 (read-write only) and closes
// the file. The pager is closed even if the metadata write fails.
func (t *Tree) Close() error {
	if !t.open {
		return dberr.New(dberr.ErrCloseFailed, "bptree: close: not open")
	}
	var err error
	if !t.readOnly && t.nextPage > 0 {
		err = t.writeMeta()
		if end := t.pg.EndPageID(); end != t.nextPage {
			t.log.Error("allocator out of sync with page file",
				zap.Int32("next_page", int32(t.nextPage)),
				zap.Int32("end_page", int32(end)))
		}
	}
	err = errors.CombineErrors(err, t.pg.Close())
	t.release()
	t.reset()
	return err
}

func (t *Tree) reset() {
	t.pg = nil
	t.release = nil
	t.root = pager.InvalidPage
	t.height = 0
	t.nextPage = 0
	t.readOnly = false
	t.open = false
}

// RootID is the page holding the root node, pager.InvalidPage when empty.
func (t *Tree) RootID() pager.PageID { return t.root }

// Height is the number of edges from the root to any leaf; 0 when empty.
func (t *Tree) Height() int32 { return t.height }

// PageCount is the number of pages in use, metadata page included.
func (t *Tree) PageCount() int { return int(t.nextPage) }

func (t *Tree) Layout() btpage.Layout { return t.layout }
func (t *Tree) ReadOnly() bool        { return t.readOnly }
func (t *Tree) Empty() bool           { return t.root == pager.InvalidPage }

// Stats returns the I/O counters of the underlying pager.
func (t *Tree) Stats() pager.Stats {
	if t.pg == nil {
		return pager.Stats{}
	}
	return t.pg.Stats()
}

func (t *Tree) checkOpen(op string) error {
	if !t.open {
		return dberr.New(dberr.ErrInvalidMode, "bptree: %s: tree is not open", op)
	}
	return nil
}

func (t *Tree) readMeta() error {
	if err := t.pg.Read(0, t.buf); err != nil {
		return err
	}
	m := btpage.DecodeMeta(t.buf)
	end := t.pg.EndPageID()
	switch {
	case m.RootID == pager.InvalidPage && m.Height == 0:
	case m.RootID >= 1 && m.RootID < end && m.Height >= 0:
	default:
		return dberr.New(dberr.ErrInvalidFileFormat,
			"bptree: %s: metadata root %d height %d with %d pages", t.pg.Path(), m.RootID, m.Height, end)
	}
	t.root, t.height = m.RootID, m.Height
	return nil
}

func (t *Tree) writeMeta() error {
	btpage.EncodeMeta(btpage.Meta{RootID: t.root, Height: t.height}, t.buf)
	return t.pg.Write(0, t.buf)
}

// allocPage hands out the next page ID. The caller must write that page
// before allocating another one.
func (t *Tree) allocPage() pager.PageID {
	id := t.nextPage
	t.nextPage++
	return id
}

func (t *Tree) readNode(id pager.PageID) (*btpage.Node, error) {
	if id < 1 {
		return nil, dberr.New(dberr.ErrInvalidPageID, "bptree: node page %d", id)
	}
	if err := t.pg.Read(id, t.buf); err != nil {
		return nil, err
	}
	return t.layout.Decode(t.buf, id)
}

func (t *Tree) writeNode(id pager.PageID, n *btpage.Node) error {
	if n.PageID != id {
		t.log.Warn("node written to foreign page",
			zap.Int32("owner", int32(n.PageID)),
			zap.Int32("page", int32(id)))
	}
	if err := t.layout.Encode(n, t.buf); err != nil {
		return err
	}
	return t.pg.Write(id, t.buf)
}
