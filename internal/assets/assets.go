// Package assets provides access to bundled datasets by name.
package assets

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// Opener opens a bundled asset by name. Implementations should treat names
// as opaque identifiers, not paths.
type Opener interface {
	Open(name string) (io.ReadCloser, error)
}

// Dir serves assets from a directory on disk.
type Dir struct {
	root string
}

// NewDir returns an Opener reading from root.
func NewDir(root string) *Dir {
	return &Dir{root: root}
}

// Open opens the named asset. Names containing path separators or parent
// references are rejected.
func (d *Dir) Open(name string) (io.ReadCloser, error) {
	if name == "" || name != filepath.Base(name) || strings.HasPrefix(name, ".") {
		return nil, fmt.Errorf("invalid asset name: %q", name)
	}
	f, err := os.Open(filepath.Join(d.root, name))
	if err != nil {
		return nil, fmt.Errorf("open asset %q: %w", name, err)
	}
	return f, nil
}
