package loader

import (
	"encoding/binary"
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// parseFixture parses data and publishes its buffer the way the buffer stage would.
func parseFixture(t *testing.T, data []byte, bin []byte) gltfParser {
	t.Helper()
	cache := NewImportCache()
	p := newGLTFParser(nil, cache)
	require.NoError(t, p.Parse(data))
	if bin != nil {
		require.NoError(t, cache.Publish(KindBuffer, 0, bin))
	}
	return p
}

func TestParse_JSON(t *testing.T) {
	f := newGLTFFixture()
	prim := f.addTriangle()
	f.set("meshes", []any{map[string]any{"name": "tri", "primitives": []any{prim}}})

	p := parseFixture(t, f.json(t), nil)
	doc := p.Document()
	require.NotNil(t, doc)
	assert.Equal(t, "2.0", doc.Asset.Version)
	require.Len(t, doc.Meshes, 1)
	assert.Equal(t, "tri", doc.Meshes[0].Name)
	assert.Nil(t, p.BinaryChunk())
}

func TestParse_GLB(t *testing.T) {
	f := newGLTFFixture()
	pos := f.addFloats(gltfAccessorTypeVec3, 1, 2, 3, 4, 5, 6)

	p := parseFixture(t, f.glb(t), f.bin)
	assert.Equal(t, len(f.bin), len(p.BinaryChunk()))

	v, err := p.ReadVec3Accessor(pos)
	require.NoError(t, err)
	assert.Equal(t, [][3]float32{{1, 2, 3}, {4, 5, 6}}, v)
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{"not json", []byte("{not json")},
		{"version 1", []byte(`{"asset":{"version":"1.0"}}`)},
		{"truncated glb", []byte{0x67, 0x6C, 0x54, 0x46, 2, 0, 0, 0}},
		{"glb length past data", func() []byte {
			b := encodeGLB([]byte(`{"asset":{"version":"2.0"}}`), nil)
			binary.LittleEndian.PutUint32(b[8:], uint32(len(b)+16))
			return b
		}()},
		{"glb without json chunk", func() []byte {
			b := encodeGLB([]byte(`{"asset":{"version":"2.0"}}`), nil)
			binary.LittleEndian.PutUint32(b[16:], gltfGLBChunkBIN)
			return b
		}()},
		{"glb version 1", func() []byte {
			b := encodeGLB([]byte(`{"asset":{"version":"2.0"}}`), nil)
			binary.LittleEndian.PutUint32(b[4:], 1)
			return b
		}()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := newGLTFParser(nil, NewImportCache()).Parse(tt.data)
			require.Error(t, err)
			kind, ok := KindOf(err)
			assert.True(t, ok)
			assert.Equal(t, ErrParse, kind)
		})
	}
}

func TestReadFloats_Normalized(t *testing.T) {
	f := newGLTFFixture()
	acc := f.addBytes(gltfAccessorTypeVec2, true, 0, 255, 51, 102)
	raw := f.addBytes(gltfAccessorTypeVec2, false, 0, 255, 51, 102)
	p := parseFixture(t, f.json(t), f.bin)

	v, err := p.ReadVec2Accessor(acc)
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float32{0, 1}, v[0][:], 1e-6)
	assert.InDeltaSlice(t, []float32{0.2, 0.4}, v[1][:], 1e-6)

	r, err := p.ReadVec2Accessor(raw)
	require.NoError(t, err)
	assert.Equal(t, [][2]float32{{0, 255}, {51, 102}}, r)
}

func TestReadFloats_Strided(t *testing.T) {
	f := newGLTFFixture()
	// Two VEC2 elements interleaved with 4 bytes of padding each.
	buf := make([]byte, 24)
	for i, v := range []float32{1, 2} {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	for i, v := range []float32{3, 4} {
		binary.LittleEndian.PutUint32(buf[12+i*4:], math.Float32bits(v))
	}
	view := f.addView(buf)
	f.views[view]["byteStride"] = 12
	acc := f.addAccessor(map[string]any{"bufferView": view, "componentType": gltfComponentTypeFloat, "count": 2, "type": gltfAccessorTypeVec2})

	p := parseFixture(t, f.json(t), f.bin)
	v, err := p.ReadVec2Accessor(acc)
	require.NoError(t, err)
	assert.Equal(t, [][2]float32{{1, 2}, {3, 4}}, v)
}

func TestReadFloats_Sparse(t *testing.T) {
	f := newGLTFFixture()
	idxView := f.addView([]byte{1, 3})
	valBuf := make([]byte, 8)
	binary.LittleEndian.PutUint32(valBuf, math.Float32bits(10))
	binary.LittleEndian.PutUint32(valBuf[4:], math.Float32bits(30))
	valView := f.addView(valBuf)

	// No bufferView: the base is zero-filled.
	acc := f.addAccessor(map[string]any{
		"componentType": gltfComponentTypeFloat,
		"count":         4,
		"type":          gltfAccessorTypeScalar,
		"sparse": map[string]any{
			"count":   2,
			"indices": map[string]any{"bufferView": idxView, "componentType": gltfComponentTypeUnsignedByte},
			"values":  map[string]any{"bufferView": valView},
		},
	})
	p := parseFixture(t, f.json(t), f.bin)

	v, err := p.ReadScalarAccessor(acc)
	require.NoError(t, err)
	assert.Equal(t, []float32{0, 10, 0, 30}, v)
}

func TestReadFloats_SparseIndexOutOfRange(t *testing.T) {
	f := newGLTFFixture()
	idxView := f.addView([]byte{9})
	valView := f.addView(make([]byte, 4))
	acc := f.addAccessor(map[string]any{
		"componentType": gltfComponentTypeFloat,
		"count":         2,
		"type":          gltfAccessorTypeScalar,
		"sparse": map[string]any{
			"count":   1,
			"indices": map[string]any{"bufferView": idxView, "componentType": gltfComponentTypeUnsignedByte},
			"values":  map[string]any{"bufferView": valView},
		},
	})
	p := parseFixture(t, f.json(t), f.bin)

	_, err := p.ReadScalarAccessor(acc)
	kind, _ := KindOf(err)
	assert.Equal(t, ErrReferenceOutOfRange, kind)
}

func TestReadAccessor_Errors(t *testing.T) {
	f := newGLTFFixture()
	vec3 := f.addFloats(gltfAccessorTypeVec3, 1, 2, 3)
	past := f.addAccessor(map[string]any{"bufferView": 0, "componentType": gltfComponentTypeFloat, "count": 2, "type": gltfAccessorTypeVec3})
	p := parseFixture(t, f.json(t), f.bin)

	_, err := p.ReadVec2Accessor(vec3)
	kind, _ := KindOf(err)
	assert.Equal(t, ErrInvalidData, kind)

	_, err = p.ReadVec3Accessor(past)
	kind, _ = KindOf(err)
	assert.Equal(t, ErrReferenceOutOfRange, kind)

	_, err = p.ReadVec3Accessor(42)
	kind, _ = KindOf(err)
	assert.Equal(t, ErrReferenceOutOfRange, kind)

	_, err = p.ReadIndicesAccessor(vec3)
	assert.Error(t, err)
}

func TestReadAccessor_OversizedCounts(t *testing.T) {
	f := newGLTFFixture()
	vec3 := f.addFloats(gltfAccessorTypeVec3, 1, 2, 3, 4, 5, 6)
	idxView := f.addView([]byte{0})
	valView := f.addView(make([]byte, 4))
	sparse := func(indexOffset, valueOffset int) map[string]any {
		return map[string]any{
			"count":   1,
			"indices": map[string]any{"bufferView": idxView, "byteOffset": indexOffset, "componentType": gltfComponentTypeUnsignedByte},
			"values":  map[string]any{"bufferView": valView, "byteOffset": valueOffset},
		}
	}
	huge := f.addAccessor(map[string]any{"bufferView": 0, "componentType": gltfComponentTypeFloat, "count": 1 << 40, "type": gltfAccessorTypeVec3})
	wrapping := f.addAccessor(map[string]any{"bufferView": 0, "componentType": gltfComponentTypeFloat, "count": 1 << 61, "type": gltfAccessorTypeVec3})
	farOffset := f.addAccessor(map[string]any{"bufferView": 0, "byteOffset": 1 << 62, "componentType": gltfComponentTypeFloat, "count": 1, "type": gltfAccessorTypeVec3})
	unbacked := f.addAccessor(map[string]any{"componentType": gltfComponentTypeFloat, "count": 1 << 62, "type": gltfAccessorTypeScalar})
	negIndices := f.addAccessor(map[string]any{"componentType": gltfComponentTypeFloat, "count": 2, "type": gltfAccessorTypeScalar, "sparse": sparse(-1, 0)})
	negValues := f.addAccessor(map[string]any{"componentType": gltfComponentTypeFloat, "count": 2, "type": gltfAccessorTypeScalar, "sparse": sparse(0, -4)})
	p := parseFixture(t, f.json(t), f.bin)

	v, err := p.ReadVec3Accessor(vec3)
	require.NoError(t, err)
	assert.Len(t, v, 2)

	for name, acc := range map[string]int{
		"count past view":        huge,
		"count overflowing size": wrapping,
		"offset past view":       farOffset,
		"unbacked count":         unbacked,
		"negative sparse index":  negIndices,
		"negative sparse value":  negValues,
	} {
		t.Run(name, func(t *testing.T) {
			_, _, err := p.ReadFloats(acc)
			requireKind(t, err, ErrReferenceOutOfRange)
		})
	}
}

func TestReadAccessor_BufferNotLoaded(t *testing.T) {
	f := newGLTFFixture()
	acc := f.addFloats(gltfAccessorTypeScalar, 1)
	p := parseFixture(t, f.json(t), nil)

	_, err := p.ReadScalarAccessor(acc)
	kind, _ := KindOf(err)
	assert.Equal(t, ErrInvalidData, kind)
}

func TestReadIndicesAndJoints(t *testing.T) {
	f := newGLTFFixture()
	idx := f.addIndices(0, 65535, 7)
	joints := f.addBytes(gltfAccessorTypeVec4, false, 0, 1, 2, 3, 4, 5, 6, 7)
	p := parseFixture(t, f.json(t), f.bin)

	v, err := p.ReadIndicesAccessor(idx)
	require.NoError(t, err)
	assert.Equal(t, []uint32{0, 65535, 7}, v)

	j, err := p.ReadJointsAccessor(joints)
	require.NoError(t, err)
	assert.Equal(t, [][4]uint32{{0, 1, 2, 3}, {4, 5, 6, 7}}, j)
}

func TestReadColorAccessor_RGB(t *testing.T) {
	f := newGLTFFixture()
	acc := f.addFloats(gltfAccessorTypeVec3, 0.5, 0.25, 1)
	p := parseFixture(t, f.json(t), f.bin)

	c, err := p.ReadColorAccessor(acc)
	require.NoError(t, err)
	assert.Equal(t, [][4]float32{{0.5, 0.25, 1, 1}}, c)
}

func TestDecodeDataURI(t *testing.T) {
	data, mime, err := gltfDecodeDataURI("data:image/png;base64,AQID")
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3}, data)
	assert.Equal(t, "image/png", mime)

	_, _, err = gltfDecodeDataURI("data:text/plain,hello")
	assert.Error(t, err)
	_, _, err = gltfDecodeDataURI("file.bin")
	assert.ErrorIs(t, err, errInvalidDataURI)
}

func TestReadFloatComponent_SignedNormalizedClamps(t *testing.T) {
	assert.Equal(t, float32(-1), readFloatComponent([]byte{0x80}, gltfComponentTypeByte, true))
	assert.Equal(t, float32(1), readFloatComponent([]byte{0x7f}, gltfComponentTypeByte, true))
	assert.Equal(t, float32(-1), readFloatComponent([]byte{0x00, 0x80}, gltfComponentTypeShort, true))
}

func TestParse_ExtensionPayloads(t *testing.T) {
	doc := map[string]any{
		"asset":          map[string]any{"version": "2.0"},
		"extensionsUsed": []string{ExtMaterialsEmissiveStrength, "VENDOR_unknown"},
		"materials": []any{map[string]any{
			"extensions": map[string]any{
				ExtMaterialsEmissiveStrength: map[string]any{"emissiveStrength": 4},
				"VENDOR_unknown":             map[string]any{"x": 1},
			},
		}},
	}
	data, err := json.Marshal(doc)
	require.NoError(t, err)

	p := parseFixture(t, data, nil)
	mat := &p.Document().Materials[0]
	es, ok := mat.extension(ExtMaterialsEmissiveStrength).(*EmissiveStrength)
	require.True(t, ok)
	require.NotNil(t, es.Strength)
	assert.Equal(t, float32(4), *es.Strength)
	assert.Nil(t, mat.extension("VENDOR_unknown"))
}

func TestParse_MalformedExtension(t *testing.T) {
	data := []byte(`{"asset":{"version":"2.0"},"textures":[{"extensions":{"EXT_texture_webp":{"source":3}}}]}`)
	err := newGLTFParser(nil, NewImportCache()).Parse(data)
	kind, ok := KindOf(err)
	require.True(t, ok)
	assert.Equal(t, ErrReferenceOutOfRange, kind)
}
