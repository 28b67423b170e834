package record

import (
	"encoding/binary"

	"github.com/btree-query-bench/bpindex/dbms/dberr"
	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/pebble"
	"go.uber.org/zap"
)

const DefaultSlotsPerPage = 64

var countKey = []byte("m/count")

// StoreOptions configures a record Store.
type StoreOptions struct {
	// SlotsPerPage is how many records share one locator page.
	SlotsPerPage int
	ReadOnly     bool
	Logger       *zap.Logger
}

// Store keeps (key, payload) records in pebble and addresses them with
// sequential locators: record n lives at {n / SlotsPerPage, n % SlotsPerPage}.
type Store struct {
	db           *pebble.DB
	slotsPerPage int64
	count        int64
	readOnly     bool
}

// OpenStore opens (or, unless read-only, creates) a record store in dir.
func OpenStore(dir string, opts StoreOptions) (*Store, error) {
	if opts.SlotsPerPage <= 0 {
		opts.SlotsPerPage = DefaultSlotsPerPage
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	db, err := pebble.Open(dir, &pebble.Options{
		ReadOnly:         opts.ReadOnly,
		ErrorIfNotExists: opts.ReadOnly,
		Logger:           opts.Logger.Named("pebble").Sugar(),
	})
	if err != nil {
		return nil, dberr.Wrap(dberr.ErrOpenFailed, err, "record: open %s", dir)
	}
	s := &Store{db: db, slotsPerPage: int64(opts.SlotsPerPage), readOnly: opts.ReadOnly}

	val, closer, err := db.Get(countKey)
	switch {
	case err == nil:
		if len(val) == 8 {
			s.count = int64(binary.BigEndian.Uint64(val))
		}
		closer.Close()
	case errors.Is(err, pebble.ErrNotFound):
	default:
		_ = db.Close()
		return nil, dberr.Wrap(dberr.ErrReadFailed, err, "record: read count in %s", dir)
	}
	return s, nil
}

// Append stores a record and returns its locator.
func (s *Store) Append(key int32, value []byte) (Locator, error) {
	if s.db == nil {
		return Locator{}, dberr.New(dberr.ErrInvalidMode, "record: append: not open")
	}
	if s.readOnly {
		return Locator{}, dberr.New(dberr.ErrFileReadOnly, "record: append")
	}
	loc := Locator{
		PageID: int32(s.count / s.slotsPerPage),
		SlotID: int32(s.count % s.slotsPerPage),
	}

	rec := make([]byte, 4+len(value))
	binary.LittleEndian.PutUint32(rec[:4], uint32(key))
	copy(rec[4:], value)

	var cnt [8]byte
	binary.BigEndian.PutUint64(cnt[:], uint64(s.count+1))

	b := s.db.NewBatch()
	defer b.Close()
	if err := b.Set(encodeLocator(loc), rec, nil); err != nil {
		return Locator{}, dberr.Wrap(dberr.ErrWriteFailed, err, "record: append %s", loc)
	}
	if err := b.Set(countKey, cnt[:], nil); err != nil {
		return Locator{}, dberr.Wrap(dberr.ErrWriteFailed, err, "record: append %s", loc)
	}
	if err := b.Commit(pebble.NoSync); err != nil {
		return Locator{}, dberr.Wrap(dberr.ErrWriteFailed, err, "record: append %s", loc)
	}
	s.count++
	return loc, nil
}

// Read returns the key and payload stored at loc.
func (s *Store) Read(loc Locator) (int32, []byte, error) {
	if s.db == nil {
		return 0, nil, dberr.New(dberr.ErrInvalidMode, "record: read %s: not open", loc)
	}
	val, closer, err := s.db.Get(encodeLocator(loc))
	if errors.Is(err, pebble.ErrNotFound) {
		return 0, nil, dberr.New(dberr.ErrRecordNotFound, "record: %s", loc)
	}
	if err != nil {
		return 0, nil, dberr.Wrap(dberr.ErrReadFailed, err, "record: read %s", loc)
	}
	defer closer.Close()
	if len(val) < 4 {
		return 0, nil, dberr.New(dberr.ErrInvalidFileFormat, "record: %s holds %d bytes", loc, len(val))
	}
	key := int32(binary.LittleEndian.Uint32(val[:4]))
	// val is only valid until closer.Close(), so we copy it.
	payload := make([]byte, len(val)-4)
	copy(payload, val[4:])
	return key, payload, nil
}

// Count reports how many records have been appended.
func (s *Store) Count() int64 { return s.count }

// Close flushes and closes the underlying pebble database.
func (s *Store) Close() error {
	if s.db == nil {
		return dberr.New(dberr.ErrCloseFailed, "record: close: not open")
	}
	err := s.db.Close()
	s.db = nil
	if err != nil {
		return dberr.Wrap(dberr.ErrCloseFailed, err, "record: close")
	}
	return nil
}

// encodeLocator builds the pebble key for loc. Big-endian keeps the records
// ordered by locator.
func encodeLocator(loc Locator) []byte {
	k := make([]byte, 9)
	k[0] = 'r'
	binary.BigEndian.PutUint32(k[1:5], uint32(loc.PageID))
	binary.BigEndian.PutUint32(k[5:9], uint32(loc.SlotID))
	return k
}
