package batch

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/mitchellh/go-homedir"
)

// ErrUnsupportedFormat is returned by Open for an unknown file extension.
var ErrUnsupportedFormat = errors.New("unsupported table format")

// Store reads and writes a Table at a fixed location.
type Store interface {
	Load() (*Table, error)
	// Save persists t. Implementations that keep typed cells only rewrite
	// the header and the columns reported by t.Written.
	Save(t *Table) error
	Path() string
}

// Options selects the part of a workbook to use.
type Options struct {
	// Sheet is the XLSX worksheet. Empty means the first sheet.
	Sheet string
}

// Open returns the Store for path, chosen by its extension.
func Open(path string, opts Options) (Store, error) {
	expanded, err := homedir.Expand(path)
	if err != nil {
		return nil, fmt.Errorf("failed to expand table path %q: %w", path, err)
	}

	switch ext := strings.ToLower(filepath.Ext(expanded)); ext {
	case ".csv":
		return &csvStore{path: expanded}, nil
	case ".xlsx", ".xlsm":
		return &xlsxStore{path: expanded, sheet: opts.Sheet}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}
}
