package resource

import (
	"os"

	"github.com/nczempin/httpd-go/errors"
)

// Dir serves a directory on disk. Access goes through os.Root, so symlinks
// pointing outside the directory are refused as well as ".." segments.
type Dir struct {
	*FS
	root *os.Root
}

// OpenDir opens path as the server root
func OpenDir(path string) (*Dir, error) {
	root, err := os.OpenRoot(path)
	if err != nil {
		return nil, errors.NewResourceError(errors.ResourceErrorIO, "open root "+path, err)
	}
	return &Dir{
		FS:   NewFS(root.FS()),
		root: root,
	}, nil
}

// Name returns the path the root was opened with
func (d *Dir) Name() string {
	return d.root.Name()
}

// Close releases the root directory handle
func (d *Dir) Close() error {
	return d.root.Close()
}
