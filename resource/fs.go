package resource

import (
	stderrors "errors"
	"fmt"
	"io"
	"io/fs"
	"strings"
	"syscall"

	"github.com/nczempin/httpd-go/errors"
	"github.com/nczempin/httpd-go/mime"
)

// FS serves targets from any fs.FS. With testing/fstest.MapFS it is the
// in-memory provider used in tests.
type FS struct {
	fsys fs.FS
}

// NewFS creates a provider over fsys
func NewFS(fsys fs.FS) *FS {
	return &FS{fsys: fsys}
}

// Resolve stats name and classifies it as a file or directory. Entries that
// are neither (sockets, devices) are reported as not found.
func (p *FS) Resolve(name string) (*Target, error) {
	if !fs.ValidPath(name) {
		return nil, errors.NewResourceError(
			errors.ResourceErrorForbiddenPath,
			fmt.Sprintf("invalid path %q", name),
			nil,
		)
	}

	info, err := fs.Stat(p.fsys, name)
	if err != nil {
		return nil, classify(err, "stat "+name)
	}

	switch {
	case info.IsDir():
		return &Target{
			Kind:    KindDirectory,
			Path:    name,
			ModTime: info.ModTime(),
		}, nil
	case info.Mode().IsRegular():
		return &Target{
			Kind:     KindFile,
			Path:     name,
			Size:     info.Size(),
			MimeType: mime.ForPath(name),
			ModTime:  info.ModTime(),
		}, nil
	default:
		return nil, errors.NewResourceError(
			errors.ResourceErrorNotFound,
			fmt.Sprintf("%s is not a regular file", name),
			nil,
		)
	}
}

// ReadRange reads [start, end] of target. A file shorter than the range
// (truncated since Resolve) is an I/O error.
func (p *FS) ReadRange(target *Target, start, end int64) ([]byte, error) {
	if err := checkRange(target, start, end); err != nil {
		return nil, err
	}

	f, err := p.fsys.Open(target.Path)
	if err != nil {
		return nil, classify(err, "open "+target.Path)
	}
	defer f.Close()

	var r io.Reader
	switch file := f.(type) {
	case io.ReaderAt:
		r = io.NewSectionReader(file, start, end-start+1)
	case io.Seeker:
		if _, err := file.Seek(start, io.SeekStart); err != nil {
			return nil, classify(err, "seek "+target.Path)
		}
		r = f
	default:
		if _, err := io.CopyN(io.Discard, f, start); err != nil {
			return nil, classify(err, "skip "+target.Path)
		}
		r = f
	}

	buf := make([]byte, end-start+1)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, classify(err, "read "+target.Path)
	}
	return buf, nil
}

// ListChildren reads the directory entries of target, sorted by name
func (p *FS) ListChildren(target *Target) ([]Entry, error) {
	if !target.IsDir() {
		return nil, errors.NewInvalidArgumentError(target.Path + " is not a directory")
	}

	dirEntries, err := fs.ReadDir(p.fsys, target.Path)
	if err != nil {
		return nil, classify(err, "read dir "+target.Path)
	}

	entries := make([]Entry, 0, len(dirEntries))
	for _, dirEntry := range dirEntries {
		entries = append(entries, Entry{Name: dirEntry.Name(), IsDir: dirEntry.IsDir()})
	}
	return entries, nil
}

func checkRange(target *Target, start, end int64) error {
	if target.IsDir() {
		return errors.NewInvalidArgumentError(target.Path + " is a directory")
	}
	if start < 0 || start > end || end >= target.Size {
		return errors.NewInvalidArgumentError(
			fmt.Sprintf("range %d-%d outside of %d bytes", start, end, target.Size),
		)
	}
	return nil
}

// classify maps filesystem errors onto resource error kinds. os.Root does
// not export its escape error, so it is matched by message.
func classify(err error, message string) error {
	kind := errors.ResourceErrorIO
	switch {
	case stderrors.Is(err, fs.ErrNotExist), stderrors.Is(err, syscall.ENOTDIR):
		kind = errors.ResourceErrorNotFound
	case stderrors.Is(err, fs.ErrInvalid), stderrors.Is(err, fs.ErrPermission):
		kind = errors.ResourceErrorForbiddenPath
	case strings.Contains(err.Error(), "escapes from parent"):
		kind = errors.ResourceErrorForbiddenPath
	case stderrors.Is(err, io.ErrUnexpectedEOF), stderrors.Is(err, io.EOF):
		message += ": file shorter than expected"
	}
	return errors.NewResourceError(kind, message, err)
}
