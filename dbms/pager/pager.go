// Package pager implements fixed-size block I/O over a single file.
//
// Pages are addressed by a zero-based PageID; page k lives at byte offset
// k*pageSize. The pager tracks the end of the file in page units and never
// shrinks it. An optional Cache sits in front of reads; it is a pure
// performance layer and every read returns the same bytes with or without it.
package pager

import (
	"io"
	"os"
	"path/filepath"

	"github.com/btree-query-bench/bpindex/dbms/dberr"
	"github.com/cespare/xxhash/v2"
	"github.com/cockroachdb/errors"
	"go.uber.org/zap"
)

const (
	DefaultPageSize = 1024

	InvalidPage PageID = -1
)

// PageID identifies a page of the backing file.
type PageID int32

// Mode selects how the backing file is opened.
type Mode int

const (
	ReadOnly Mode = iota
	ReadWrite
)

func (m Mode) String() string {
	switch m {
	case ReadOnly:
		return "r"
	case ReadWrite:
		return "w"
	default:
		return "?"
	}
}

// ParseMode accepts the single-letter modes "r" and "w" (either case).
func ParseMode(s string) (Mode, error) {
	switch s {
	case "r", "R":
		return ReadOnly, nil
	case "w", "W":
		return ReadWrite, nil
	}
	return 0, dberr.New(dberr.ErrInvalidMode, "pager: mode %q", s)
}

// Options configures a Pager.
type Options struct {
	// PageSize is the size of every page in bytes.
	PageSize int

	// Cache is consulted before disk reads. Nil disables caching.
	Cache Cache

	// Logger receives cache and I/O traces at debug level.
	Logger *zap.Logger

	// Metrics, when set, counts reads, writes and cache hits.
	Metrics *Metrics
}

// Stats counts the physical I/O a pager has performed since it was opened.
type Stats struct {
	Reads       int64
	Writes      int64
	CacheHits   int64
	CacheMisses int64
}

// Pager manages a file of fixed-size pages.
type Pager struct {
	file     *os.File
	path     string
	fileID   uint64
	mode     Mode
	pageSize int
	endPage  PageID // one past the highest page ever written

	cache   Cache
	log     *zap.Logger
	metrics *Metrics
	stats   Stats
}

// Open opens the page file at path. ReadWrite creates the file if it does not
// exist; ReadOnly requires it to exist.
func Open(path string, mode Mode, opts Options) (*Pager, error) {
	flag := os.O_RDONLY
	switch mode {
	case ReadOnly:
	case ReadWrite:
		flag = os.O_RDWR | os.O_CREATE
	default:
		return nil, dberr.New(dberr.ErrInvalidMode, "pager: open %s", path)
	}
	if opts.PageSize <= 0 {
		opts.PageSize = DefaultPageSize
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	f, err := os.OpenFile(path, flag, 0644)
	if err != nil {
		return nil, dberr.Wrap(dberr.ErrOpenFailed, err, "pager: open %s", path)
	}

	size, err := f.Seek(0, io.SeekEnd)
	if err != nil {
		_ = f.Close()
		return nil, dberr.Wrap(dberr.ErrSeekFailed, err, "pager: size of %s", path)
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}

	p := &Pager{
		file:     f,
		path:     path,
		fileID:   xxhash.Sum64String(abs),
		mode:     mode,
		pageSize: opts.PageSize,
		endPage:  PageID(size / int64(opts.PageSize)),
		cache:    opts.Cache,
		log:      opts.Logger.Named("pager"),
		metrics:  opts.Metrics,
	}
	p.log.Debug("open",
		zap.String("path", path),
		zap.Stringer("mode", mode),
		zap.Int32("end_page", int32(p.endPage)))
	return p, nil
}

// Read fills buf with page id. buf must hold at least one page.
func (p *Pager) Read(id PageID, buf []byte) error {
	if id < 0 || id >= p.endPage {
		return dberr.New(dberr.ErrInvalidPageID, "pager: read page %d of %d", id, p.endPage)
	}
	if len(buf) < p.pageSize {
		return dberr.New(dberr.ErrReadFailed, "pager: read buffer %d bytes, page is %d", len(buf), p.pageSize)
	}
	buf = buf[:p.pageSize]

	if p.cache != nil {
		if p.cache.Get(p.fileID, id, buf) {
			p.stats.CacheHits++
			p.metrics.cacheHit()
			p.log.Debug("cache hit", zap.Int32("page", int32(id)))
			return nil
		}
		p.stats.CacheMisses++
		p.metrics.cacheMiss()
	}

	if err := p.readPageFromDisk(id, buf); err != nil {
		return err
	}
	if p.cache != nil {
		p.cache.Put(p.fileID, id, buf)
	}
	return nil
}

// Write stores buf as page id. Writing at or past the end extends the file.
func (p *Pager) Write(id PageID, buf []byte) error {
	if id < 0 {
		return dberr.New(dberr.ErrInvalidPageID, "pager: write page %d", id)
	}
	if p.file == nil {
		return dberr.New(dberr.ErrWriteFailed, "pager: write page %d: file closed", id)
	}
	if p.mode == ReadOnly {
		return dberr.New(dberr.ErrFileReadOnly, "pager: write page %d to %s", id, p.path)
	}
	if len(buf) < p.pageSize {
		return dberr.New(dberr.ErrWriteFailed, "pager: write buffer %d bytes, page is %d", len(buf), p.pageSize)
	}

	if err := p.writePageToDisk(id, buf[:p.pageSize]); err != nil {
		return err
	}
	if p.cache != nil {
		p.cache.Invalidate(p.fileID, id)
	}
	if id >= p.endPage {
		p.endPage = id + 1
	}
	return nil
}

// Close releases the file and drops every cached page that belongs to it.
func (p *Pager) Close() error {
	if p.file == nil {
		return dberr.New(dberr.ErrCloseFailed, "pager: close %s: not open", p.path)
	}
	if p.cache != nil {
		p.cache.InvalidateFile(p.fileID)
	}
	err := p.file.Close()
	p.file = nil
	p.endPage = 0
	if err != nil {
		return dberr.Wrap(dberr.ErrCloseFailed, err, "pager: close %s", p.path)
	}
	p.log.Debug("close", zap.String("path", p.path), zap.Int64("reads", p.stats.Reads), zap.Int64("writes", p.stats.Writes))
	return nil
}

// EndPageID reports one past the highest page in the file.
func (p *Pager) EndPageID() PageID {
	return p.endPage
}

func (p *Pager) PageSize() int { return p.pageSize }
func (p *Pager) Path() string  { return p.path }
func (p *Pager) Mode() Mode    { return p.mode }
func (p *Pager) Stats() Stats  { return p.stats }

// FileID is the identity under which this file's pages are cached.
func (p *Pager) FileID() uint64 { return p.fileID }

// --- internal helpers ---

func (p *Pager) offset(id PageID) int64 {
	return int64(id) * int64(p.pageSize)
}

func (p *Pager) readPageFromDisk(id PageID, buf []byte) error {
	n, err := p.file.ReadAt(buf, p.offset(id))
	if n < len(buf) {
		if err == nil || errors.Is(err, io.EOF) {
			err = io.ErrUnexpectedEOF
		}
		return dberr.Wrap(dberr.ErrReadFailed, err, "pager: read page %d", id)
	}
	p.stats.Reads++
	p.metrics.read()
	return nil
}

func (p *Pager) writePageToDisk(id PageID, buf []byte) error {
	if _, err := p.file.WriteAt(buf, p.offset(id)); err != nil {
		return dberr.Wrap(dberr.ErrWriteFailed, err, "pager: write page %d", id)
	}
	p.stats.Writes++
	p.metrics.write()
	return nil
}
