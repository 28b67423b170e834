// Package dberr defines the error kinds shared by the pager, the node codec
// and the tree index.
//
// Every error returned by this module is marked with exactly one of the
// sentinels below, so callers can branch with errors.Is while the wrapped
// cause (usually an *fs.PathError) stays reachable as well.
package dberr

import (
	"github.com/cockroachdb/errors"
)

var (
	ErrOpenFailed        = errors.New("file open failed")
	ErrCloseFailed       = errors.New("file close failed")
	ErrSeekFailed        = errors.New("file seek failed")
	ErrReadFailed        = errors.New("file read failed")
	ErrWriteFailed       = errors.New("file write failed")
	ErrInvalidMode       = errors.New("invalid file mode")
	ErrInvalidPageID     = errors.New("invalid page id")
	ErrInvalidCursor     = errors.New("invalid cursor")
	ErrRecordNotFound    = errors.New("record not found")
	ErrEndOfTree         = errors.New("end of tree")
	ErrInvalidAttribute  = errors.New("invalid attribute")
	ErrInvalidFileFormat = errors.New("invalid file format")
	ErrNodeFull          = errors.New("node full")
	ErrFileReadOnly      = errors.New("file is read only")
)

// codes pairs each kind with the numeric code the CLI reports. An error
// marked twice resolves to the earlier entry.
var codes = []struct {
	kind error
	code int
}{
	{ErrOpenFailed, -1001},
	{ErrCloseFailed, -1002},
	{ErrSeekFailed, -1003},
	{ErrReadFailed, -1004},
	{ErrWriteFailed, -1005},
	{ErrInvalidMode, -1006},
	{ErrInvalidPageID, -1007},
	{ErrInvalidFileFormat, -1009},
	{ErrNodeFull, -1010},
	{ErrInvalidCursor, -1011},
	{ErrRecordNotFound, -1012},
	{ErrEndOfTree, -1013},
	{ErrInvalidAttribute, -1014},
	{ErrFileReadOnly, -1015},
}

// Wrap attaches context to cause and marks the result with kind. When cause
// is nil the kind itself is wrapped, so the returned error is never nil.
func Wrap(kind, cause error, format string, args ...interface{}) error {
	if cause == nil {
		return errors.Wrapf(kind, format, args...)
	}
	return errors.Mark(errors.Wrapf(cause, format, args...), kind)
}

// New returns a fresh error of the given kind.
func New(kind error, format string, args ...interface{}) error {
	return errors.Wrapf(kind, format, args...)
}

// Kind reports the sentinel err is marked with, or nil when err carries none.
func Kind(err error) error {
	if err == nil {
		return nil
	}
	for _, c := range codes {
		if errors.Is(err, c.kind) {
			return c.kind
		}
	}
	return nil
}

// Code maps err to its legacy numeric code. Zero means success and -1 an
// unclassified failure.
func Code(err error) int {
	if err == nil {
		return 0
	}
	for _, c := range codes {
		if errors.Is(err, c.kind) {
			return c.code
		}
	}
	return -1
}
