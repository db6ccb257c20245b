package loader

import "context"

// ByteSource fetches the bytes of an external reference (a side-loaded buffer or image).
// ReadBytes is called from worker goroutines and must be safe for concurrent use.
type ByteSource interface {
	// ReadBytes returns the full content of ref.
	//
	// Parameters:
	//   - ctx: the import context
	//   - ref: the reference resolved against the import's base location
	//
	// Returns:
	//   - []byte: the content
	//   - error: error if the reference cannot be read
	ReadBytes(ctx context.Context, ref string) ([]byte, error)
}

// Archive exposes the entries of a packed asset bundle that accompanies an import.
type Archive interface {
	// Entry returns the named entry.
	//
	// Parameters:
	//   - name: the entry path relative to the archive root
	//
	// Returns:
	//   - []byte: the entry content
	//   - bool: false when the archive has no such entry
	//   - error: error if the entry exists but cannot be read
	Entry(name string) ([]byte, bool, error)
}
