//go:build !linux

package resource

import "github.com/nczempin/httpd-go/errors"

// UringDir is only available on Linux
type UringDir struct {
	*Dir
}

// OpenUringDir always fails outside Linux
func OpenUringDir(path string) (*UringDir, error) {
	return nil, errors.NewTransportError(
		errors.TransportErrorIoUringInit,
		"io_uring is only supported on linux",
		nil,
	)
}
