package source

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
)

// DirSource reads references from the local filesystem.
type DirSource struct {
	root string
}

// NewDirSource creates a file source. Relative references resolve against root; absolute
// references are read as they are.
//
// Parameters:
//   - root: the base directory, "" for the working directory
//
// Returns:
//   - *DirSource: the source
func NewDirSource(root string) *DirSource {
	return &DirSource{root: root}
}

// ReadBytes reads the file behind ref.
func (s *DirSource) ReadBytes(ctx context.Context, ref string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p, err := s.resolve(ref)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(p)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, errors.Wrapf(ErrNotFound, "%s", p)
		}
		return nil, errors.Wrapf(err, "read %s", p)
	}
	return data, nil
}

func (s *DirSource) resolve(ref string) (string, error) {
	if strings.HasPrefix(ref, "file://") {
		ref = strings.TrimPrefix(ref, "file://")
	}
	p := filepath.FromSlash(ref)
	if filepath.IsAbs(p) || s.root == "" {
		return filepath.Clean(p), nil
	}
	joined := filepath.Join(s.root, p)
	rel, err := filepath.Rel(s.root, joined)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", errors.Errorf("reference %s escapes %s", ref, s.root)
	}
	return joined, nil
}
