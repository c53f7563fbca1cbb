// Package resource exposes the filesystem to the dispatcher: path
// cleaning, target resolution, ranged reads and directory listings.
package resource

import (
	"strings"
	"time"

	"github.com/nczempin/httpd-go/errors"
)

// Kind distinguishes files from directories
type Kind int

const (
	KindFile Kind = iota
	KindDirectory
)

// Target is a resolved filesystem entry. Path is slash-separated and
// relative to the provider's root, "." being the root itself.
type Target struct {
	Kind     Kind
	Path     string
	Size     int64
	MimeType string
	ModTime  time.Time
}

// IsDir reports whether the target is a directory
func (t *Target) IsDir() bool {
	return t.Kind == KindDirectory
}

// Entry is one child of a directory
type Entry struct {
	Name  string
	IsDir bool
}

// Provider is the filesystem capability consumed by the dispatcher
type Provider interface {
	// Resolve looks up a cleaned path (see CleanPath). It fails with
	// ResourceErrorNotFound, ResourceErrorForbiddenPath or ResourceErrorIO.
	Resolve(name string) (*Target, error)

	// ReadRange returns the bytes [start, end] of a file target.
	ReadRange(target *Target, start, end int64) ([]byte, error)

	// ListChildren returns the entries of a directory target sorted by name.
	ListChildren(target *Target) ([]Entry, error)
}

// CleanPath turns a decoded request path into a root-relative name.
// Empty and "." segments are dropped; a ".." that would climb above the
// root fails with ResourceErrorForbiddenPath.
func CleanPath(requestPath string) (string, error) {
	var segments []string
	for _, segment := range strings.Split(requestPath, "/") {
		switch segment {
		case "", ".":
			continue
		case "..":
			if len(segments) == 0 {
				return "", errors.NewResourceError(
					errors.ResourceErrorForbiddenPath,
					"path escapes the root",
					nil,
				)
			}
			segments = segments[:len(segments)-1]
		default:
			if strings.ContainsRune(segment, '\\') {
				return "", errors.NewResourceError(
					errors.ResourceErrorForbiddenPath,
					"backslash in path segment",
					nil,
				)
			}
			segments = append(segments, segment)
		}
	}

	if len(segments) == 0 {
		return ".", nil
	}
	return strings.Join(segments, "/"), nil
}
