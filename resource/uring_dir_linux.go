//go:build linux

package resource

import (
	"fmt"

	"github.com/iceber/iouring-go"
	"go.uber.org/multierr"
	"golang.org/x/sys/unix"

	"github.com/nczempin/httpd-go/errors"
)

const uringEntries = 64

// UringDir is a Dir whose ranged reads are submitted through io_uring
type UringDir struct {
	*Dir
	iour *iouring.IOURing
}

// OpenUringDir opens path as the server root with an io_uring instance for
// file reads
func OpenUringDir(path string) (*UringDir, error) {
	dir, err := OpenDir(path)
	if err != nil {
		return nil, err
	}

	iour, err := iouring.New(uringEntries)
	if err != nil {
		dir.Close()
		return nil, errors.NewTransportError(
			errors.TransportErrorIoUringInit,
			"failed to initialize io_uring",
			err,
		)
	}

	return &UringDir{Dir: dir, iour: iour}, nil
}

// ReadRange reads [start, end] of target with pread requests on the ring
func (d *UringDir) ReadRange(target *Target, start, end int64) ([]byte, error) {
	if err := checkRange(target, start, end); err != nil {
		return nil, err
	}

	f, err := d.root.Open(target.Path)
	if err != nil {
		return nil, classify(err, "open "+target.Path)
	}
	defer f.Close()

	fd := int(f.Fd())
	length := end - start + 1
	// Read-ahead hint only; the reads below do not depend on it.
	_ = unix.Fadvise(fd, start, length, unix.FADV_SEQUENTIAL)

	buf := make([]byte, length)
	ch := make(chan iouring.Result, 1)
	for read := int64(0); read < length; {
		prepReq := iouring.Pread(fd, buf[read:], uint64(start+read))
		if _, err := d.iour.SubmitRequest(prepReq, ch); err != nil {
			return nil, errors.NewResourceError(
				errors.ResourceErrorIO,
				"failed to submit read request",
				err,
			)
		}

		result := <-ch
		n, err := result.ReturnInt()
		if err != nil {
			return nil, classify(err, "pread "+target.Path)
		}
		if n == 0 {
			return nil, errors.NewResourceError(
				errors.ResourceErrorIO,
				fmt.Sprintf("read %s: file shorter than expected", target.Path),
				nil,
			)
		}
		read += int64(n)
	}

	return buf, nil
}

// Close releases the ring and the root handle
func (d *UringDir) Close() error {
	return multierr.Combine(d.iour.Close(), d.Dir.Close())
}
