package dberr

import (
	"io/fs"
	"os"
	"path/filepath"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWrapKeepsKindAndCause(t *testing.T) {
	_, cause := os.Open(filepath.Join(t.TempDir(), "missing.idx"))
	require.Error(t, cause)

	err := Wrap(ErrOpenFailed, cause, "pager: open %s", "missing.idx")
	assert.True(t, errors.Is(err, ErrOpenFailed))
	assert.True(t, errors.Is(err, fs.ErrNotExist))
	assert.False(t, errors.Is(err, ErrReadFailed))
	assert.Contains(t, err.Error(), "pager: open missing.idx")
}

func TestWrapNilCause(t *testing.T) {
	err := Wrap(ErrInvalidPageID, nil, "page %d", 7)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidPageID))
	assert.Equal(t, "page 7: invalid page id", err.Error())
}

func TestCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, 0},
		{"open", New(ErrOpenFailed, "x"), -1001},
		{"invalid pid", New(ErrInvalidPageID, "x"), -1007},
		{"format", New(ErrInvalidFileFormat, "x"), -1009},
		{"cursor", New(ErrInvalidCursor, "x"), -1011},
		{"not found", New(ErrRecordNotFound, "x"), -1012},
		{"end of tree", New(ErrEndOfTree, "x"), -1013},
		{"read only", New(ErrFileReadOnly, "x"), -1015},
		{"unclassified", errors.New("boom"), -1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Code(tt.err))
		})
	}
}

func TestKind(t *testing.T) {
	assert.Nil(t, Kind(nil))
	assert.Nil(t, Kind(errors.New("plain")))
	assert.Equal(t, ErrNodeFull, Kind(errors.Wrap(New(ErrNodeFull, "leaf 3"), "insert")))
}
