package source

import (
	"context"

	"golang.org/x/sync/singleflight"
)

// Dedup collapses concurrent reads of the same reference into one read of the wrapped source.
// Callers receive the same slice and must not modify it.
type Dedup struct {
	src   Source
	group singleflight.Group
}

// NewDedup wraps src.
//
// Parameters:
//   - src: the wrapped source
//
// Returns:
//   - *Dedup: the de-duplicating source
func NewDedup(src Source) *Dedup {
	return &Dedup{src: src}
}

// ReadBytes reads ref, sharing the result with concurrent callers for the same ref.
// The shared read runs with the first caller's context; a caller whose own context ends
// first returns early with its context error.
func (d *Dedup) ReadBytes(ctx context.Context, ref string) ([]byte, error) {
	ch := d.group.DoChan(ref, func() (any, error) {
		return d.src.ReadBytes(ctx, ref)
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case r := <-ch:
		if r.Err != nil {
			return nil, r.Err
		}
		return r.Val.([]byte), nil
	}
}
