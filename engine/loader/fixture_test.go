package loader

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"math"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/Carmen-Shannon/oxy-import/common"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

// gltfFixture assembles small glTF documents whose accessors live in a single buffer.
type gltfFixture struct {
	bin       []byte
	views     []map[string]any
	accessors []map[string]any
	fields    map[string]any
}

func newGLTFFixture() *gltfFixture {
	return &gltfFixture{fields: make(map[string]any)}
}

// set assigns a top-level document property.
func (f *gltfFixture) set(key string, v any) *gltfFixture {
	f.fields[key] = v
	return f
}

// addView appends data, 4-byte aligned, and returns its buffer view index.
func (f *gltfFixture) addView(data []byte) int {
	for len(f.bin)%4 != 0 {
		f.bin = append(f.bin, 0)
	}
	f.views = append(f.views, map[string]any{"buffer": 0, "byteOffset": len(f.bin), "byteLength": len(data)})
	f.bin = append(f.bin, data...)
	return len(f.views) - 1
}

func (f *gltfFixture) addAccessor(acc map[string]any) int {
	f.accessors = append(f.accessors, acc)
	return len(f.accessors) - 1
}

func (f *gltfFixture) addFloats(accessorType string, values ...float32) int {
	buf := make([]byte, 4*len(values))
	for i, v := range values {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	view := f.addView(buf)
	return f.addAccessor(map[string]any{
		"bufferView":    view,
		"componentType": gltfComponentTypeFloat,
		"count":         len(values) / gltfAccessorTypeComponentCount(accessorType),
		"type":          accessorType,
	})
}

func (f *gltfFixture) addIndices(values ...uint16) int {
	buf := make([]byte, 2*len(values))
	for i, v := range values {
		binary.LittleEndian.PutUint16(buf[i*2:], v)
	}
	view := f.addView(buf)
	return f.addAccessor(map[string]any{
		"bufferView":    view,
		"componentType": gltfComponentTypeUnsignedShort,
		"count":         len(values),
		"type":          gltfAccessorTypeScalar,
	})
}

func (f *gltfFixture) addBytes(accessorType string, normalized bool, values ...uint8) int {
	view := f.addView(values)
	return f.addAccessor(map[string]any{
		"bufferView":    view,
		"componentType": gltfComponentTypeUnsignedByte,
		"normalized":    normalized,
		"count":         len(values) / gltfAccessorTypeComponentCount(accessorType),
		"type":          accessorType,
	})
}

// addTriangle adds the triangle (0,0,0) (1,0,0) (0,1,0) and returns a primitive referencing it.
func (f *gltfFixture) addTriangle() map[string]any {
	pos := f.addFloats(gltfAccessorTypeVec3, 0, 0, 0, 1, 0, 0, 0, 1, 0)
	idx := f.addIndices(0, 1, 2)
	return map[string]any{
		"attributes": map[string]any{"POSITION": pos},
		"indices":    idx,
	}
}

// document returns the document with its single buffer described by buffer.
func (f *gltfFixture) document(buffer map[string]any) map[string]any {
	doc := map[string]any{"asset": map[string]any{"version": "2.0"}}
	if len(f.views) > 0 {
		doc["bufferViews"] = f.views
		doc["buffers"] = []any{buffer}
	}
	if len(f.accessors) > 0 {
		doc["accessors"] = f.accessors
	}
	for k, v := range f.fields {
		doc[k] = v
	}
	return doc
}

// json encodes the document with its buffer embedded as a data URI.
func (f *gltfFixture) json(t *testing.T) []byte {
	t.Helper()
	data, err := json.Marshal(f.document(map[string]any{
		"byteLength": len(f.bin),
		"uri":        "data:application/octet-stream;base64," + base64.StdEncoding.EncodeToString(f.bin),
	}))
	require.NoError(t, err)
	return data
}

// glb encodes the document as a GLB container with the buffer in the BIN chunk.
func (f *gltfFixture) glb(t *testing.T) []byte {
	t.Helper()
	jsonData, err := json.Marshal(f.document(map[string]any{"byteLength": len(f.bin)}))
	require.NoError(t, err)
	return encodeGLB(jsonData, f.bin)
}

func encodeGLB(jsonData, bin []byte) []byte {
	pad := func(b []byte, fill byte) []byte {
		for len(b)%4 != 0 {
			b = append(b, fill)
		}
		return b
	}
	jsonData = pad(append([]byte(nil), jsonData...), ' ')
	bin = pad(append([]byte(nil), bin...), 0)

	length := 12 + 8 + len(jsonData)
	if len(bin) > 0 {
		length += 8 + len(bin)
	}
	var out bytes.Buffer
	_ = binary.Write(&out, binary.LittleEndian, []uint32{gltfGLBMagic, gltfGLBVersion, uint32(length)})
	_ = binary.Write(&out, binary.LittleEndian, []uint32{uint32(len(jsonData)), gltfGLBChunkJSON})
	out.Write(jsonData)
	if len(bin) > 0 {
		_ = binary.Write(&out, binary.LittleEndian, []uint32{uint32(len(bin)), gltfGLBChunkBIN})
		out.Write(bin)
	}
	return out.Bytes()
}

// encodePNG returns a w×h PNG whose top row is red and whose other rows are blue.
func encodePNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			c := color.RGBA{B: 255, A: 255}
			if y == 0 {
				c = color.RGBA{R: 255, A: 255}
			}
			img.Set(x, y, c)
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func pngDataURI(data []byte) string {
	return "data:image/png;base64," + encodeBase64(data)
}

func encodeBase64(data []byte) string {
	return base64.StdEncoding.EncodeToString(data)
}

// memorySource serves references from a map and counts reads.
type memorySource struct {
	mu    sync.Mutex
	files map[string][]byte
	reads atomic.Int32
	refs  []string
}

func newMemorySource(files map[string][]byte) *memorySource {
	return &memorySource{files: files}
}

func (s *memorySource) ReadBytes(_ context.Context, ref string) ([]byte, error) {
	s.reads.Add(1)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.refs = append(s.refs, ref)
	data, ok := s.files[ref]
	if !ok {
		return nil, errors.Errorf("%s: not found", ref)
	}
	return data, nil
}

// fakeDecompressor returns fixed geometry.
type fakeDecompressor struct {
	geometry   *DecodedGeometry
	convention common.AxisMask
	requests   atomic.Int32
}

func (d *fakeDecompressor) AxisConvention() common.AxisMask {
	return d.convention
}

func (d *fakeDecompressor) DecodeGeometry(_ context.Context, _ GeometryRequest) (*DecodedGeometry, error) {
	d.requests.Add(1)
	g := *d.geometry
	g.Positions = append([][3]float32(nil), d.geometry.Positions...)
	g.Indices = append([]uint32(nil), d.geometry.Indices...)
	return &g, nil
}

// newTestLoader returns a loader running jobs inline.
func newTestLoader(options ...LoaderBuilderOption) Loader {
	return NewLoader(append([]LoaderBuilderOption{WithInlineJobs()}, options...)...)
}

func intPtr(v int) *int {
	return &v
}
