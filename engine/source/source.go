// Package source provides the byte sources and archives an import reads external
// references through.
package source

import (
	"context"
	"strings"

	"github.com/pkg/errors"
)

// ErrNotFound is returned (wrapped) when a reference does not exist.
var ErrNotFound = errors.New("reference not found")

// Source reads the bytes behind a reference. Implementations must be safe for concurrent use.
type Source interface {
	// ReadBytes returns the full content behind ref.
	//
	// Parameters:
	//   - ctx: cancels the read
	//   - ref: a slash-separated path or an absolute URL
	//
	// Returns:
	//   - []byte: the content
	//   - error: error if the read fails, wrapping ErrNotFound when ref does not exist
	ReadBytes(ctx context.Context, ref string) ([]byte, error)
}

// Func adapts a function to Source.
type Func func(ctx context.Context, ref string) ([]byte, error)

// ReadBytes calls f.
func (f Func) ReadBytes(ctx context.Context, ref string) ([]byte, error) {
	return f(ctx, ref)
}

// IsURL reports whether ref is an http or https URL.
func IsURL(ref string) bool {
	lower := strings.ToLower(ref)
	return strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://")
}

// router sends URLs to one source and paths to another.
type router struct {
	files Source
	web   Source
}

// NewRouter creates a source that reads http(s) references from web and everything else from files.
//
// Parameters:
//   - files: the source for paths
//   - web: the source for URLs, nil to reject URLs
//
// Returns:
//   - Source: the routing source
func NewRouter(files, web Source) Source {
	return &router{files: files, web: web}
}

func (r *router) ReadBytes(ctx context.Context, ref string) ([]byte, error) {
	if IsURL(ref) {
		if r.web == nil {
			return nil, errors.Errorf("no web source configured for %s", ref)
		}
		return r.web.ReadBytes(ctx, ref)
	}
	if r.files == nil {
		return nil, errors.Errorf("no file source configured for %s", ref)
	}
	return r.files.ReadBytes(ctx, ref)
}

// NewDefault returns the source the loader uses when none is configured: files under root
// (the working directory when root is ""), URLs over HTTP, with concurrent reads of the
// same reference collapsed into one.
//
// Parameters:
//   - root: the directory relative paths resolve against
//
// Returns:
//   - Source: the default source
func NewDefault(root string) Source {
	return NewDedup(NewRouter(NewDirSource(root), NewHTTPSource()))
}
