package source

import (
	"archive/zip"
	"bytes"
	"io"
	"path"
	"sort"
	"strings"
	"sync"

	"github.com/pkg/errors"
)

// ZipArchive serves references from a zip file held in memory. Entries are decompressed on
// first access and kept.
type ZipArchive struct {
	mu      sync.Mutex
	entries map[string]*zip.File
	cache   map[string][]byte
}

// NewZipArchive opens a zip archive from its bytes.
//
// Parameters:
//   - data: the archive bytes
//
// Returns:
//   - *ZipArchive: the archive
//   - error: error if data is not a zip archive
func NewZipArchive(data []byte) (*ZipArchive, error) {
	r, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, errors.Wrap(err, "open zip archive")
	}
	a := &ZipArchive{
		entries: make(map[string]*zip.File, len(r.File)),
		cache:   make(map[string][]byte),
	}
	for _, f := range r.File {
		if f.FileInfo().IsDir() {
			continue
		}
		a.entries[path.Clean(f.Name)] = f
	}
	return a, nil
}

// Entry returns the content of the named entry.
//
// Parameters:
//   - name: a slash-separated entry path
//
// Returns:
//   - []byte: the entry content
//   - bool: false when the archive has no such entry
//   - error: error if the entry cannot be decompressed
func (a *ZipArchive) Entry(name string) ([]byte, bool, error) {
	name = path.Clean(strings.TrimPrefix(name, "/"))
	a.mu.Lock()
	defer a.mu.Unlock()
	if data, ok := a.cache[name]; ok {
		return data, true, nil
	}
	f, ok := a.entries[name]
	if !ok {
		return nil, false, nil
	}
	rc, err := f.Open()
	if err != nil {
		return nil, true, errors.Wrapf(err, "open zip entry %s", name)
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, true, errors.Wrapf(err, "read zip entry %s", name)
	}
	a.cache[name] = data
	return data, true, nil
}

// Names returns the entry names in sorted order.
func (a *ZipArchive) Names() []string {
	names := make([]string, 0, len(a.entries))
	for n := range a.entries {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// SceneEntry returns the first .gltf or .glb entry in name order, preferring the shallowest path.
//
// Returns:
//   - string: the entry name
//   - bool: false when the archive holds no scene
func (a *ZipArchive) SceneEntry() (string, bool) {
	best, depth := "", -1
	for _, n := range a.Names() {
		ext := strings.ToLower(path.Ext(n))
		if ext != ".gltf" && ext != ".glb" {
			continue
		}
		d := strings.Count(n, "/")
		if depth < 0 || d < depth {
			best, depth = n, d
		}
	}
	return best, depth >= 0
}
