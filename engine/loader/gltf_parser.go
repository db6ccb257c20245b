package loader

import (
	"bytes"
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"io"
	"math"
	"strings"

	"github.com/pkg/errors"
)

// Common errors returned by the parser
var (
	errInvalidGLTFVersion = errors.New("invalid glTF version: must be 2.0")
	errInvalidGLBMagic    = errors.New("invalid GLB magic number")
	errInvalidGLBVersion  = errors.New("invalid GLB version: must be 2")
	errMissingJSONChunk   = errors.New("GLB file missing JSON chunk")
	errInvalidDataURI     = errors.New("invalid data URI")
)

// gltfParserImpl is the implementation of the gltfParser interface.
type gltfParserImpl struct {
	registry       *ExtensionRegistry
	cache          *ImportCache
	document       *gltfDocument
	glbBinaryChunk []byte
}

// gltfParser defines the interface for parsing glTF/GLB containers and reading typed accessor data.
// Accessor reads resolve buffers from the import cache, so they are only valid once the buffer
// stage has published the referenced buffers.
// This is internal to the loader package.
type gltfParser interface {
	// Parse parses a glTF JSON document or GLB container and decodes its extension objects.
	// GLB is detected by its magic number.
	//
	// Parameters:
	//   - data: the container bytes
	//
	// Returns:
	//   - error: an ErrParse ImportError if the container is malformed
	Parse(data []byte) error

	// Document returns the parsed glTF document.
	// Returns nil if Parse has not been called successfully.
	//
	// Returns:
	//   - *gltfDocument: the parsed document or nil
	Document() *gltfDocument

	// BinaryChunk returns the GLB BIN chunk, nil for JSON containers.
	//
	// Returns:
	//   - []byte: the binary chunk
	BinaryChunk() []byte

	// ReadBufferView returns the bytes of a buffer view.
	//
	// Parameters:
	//   - viewIndex: the index of the buffer view
	//
	// Returns:
	//   - []byte: the view's bytes, aliasing the cached buffer
	//   - error: error if the view or its buffer is out of range or not loaded
	ReadBufferView(viewIndex int) ([]byte, error)

	// ReadFloats reads an accessor of any component type as float32 values, applying
	// normalization and sparse substitution.
	//
	// Parameters:
	//   - accessorIndex: the index of the accessor
	//
	// Returns:
	//   - []float32: count*components values
	//   - int: the number of components per element
	//   - error: error if reading fails
	ReadFloats(accessorIndex int) ([]float32, int, error)

	// ReadVec2Accessor reads an accessor as vec2 float data.
	//
	// Parameters:
	//   - accessorIndex: the index of the accessor
	//
	// Returns:
	//   - [][2]float32: the vec2 data
	//   - error: error if reading fails
	ReadVec2Accessor(accessorIndex int) ([][2]float32, error)

	// ReadVec3Accessor reads an accessor as vec3 float data.
	//
	// Parameters:
	//   - accessorIndex: the index of the accessor
	//
	// Returns:
	//   - [][3]float32: the vec3 data
	//   - error: error if reading fails
	ReadVec3Accessor(accessorIndex int) ([][3]float32, error)

	// ReadVec4Accessor reads an accessor as vec4 float data.
	//
	// Parameters:
	//   - accessorIndex: the index of the accessor
	//
	// Returns:
	//   - [][4]float32: the vec4 data
	//   - error: error if reading fails
	ReadVec4Accessor(accessorIndex int) ([][4]float32, error)

	// ReadColorAccessor reads a VEC3 or VEC4 color accessor as RGBA.
	//
	// Parameters:
	//   - accessorIndex: the index of the accessor
	//
	// Returns:
	//   - [][4]float32: the RGBA colors, alpha 1 for VEC3 input
	//   - error: error if reading fails
	ReadColorAccessor(accessorIndex int) ([][4]float32, error)

	// ReadScalarAccessor reads an accessor as scalar float data.
	//
	// Parameters:
	//   - accessorIndex: the index of the accessor
	//
	// Returns:
	//   - []float32: the scalar data
	//   - error: error if reading fails
	ReadScalarAccessor(accessorIndex int) ([]float32, error)

	// ReadMat4Accessor reads an accessor as mat4 float data.
	//
	// Parameters:
	//   - accessorIndex: the index of the accessor
	//
	// Returns:
	//   - [][16]float32: the mat4 data
	//   - error: error if reading fails
	ReadMat4Accessor(accessorIndex int) ([][16]float32, error)

	// ReadIndicesAccessor reads an accessor as index data (uint32).
	// Handles UNSIGNED_BYTE, UNSIGNED_SHORT, and UNSIGNED_INT component types.
	//
	// Parameters:
	//   - accessorIndex: the index of the accessor
	//
	// Returns:
	//   - []uint32: the index data (converted to uint32)
	//   - error: error if reading fails
	ReadIndicesAccessor(accessorIndex int) ([]uint32, error)

	// ReadJointsAccessor reads an accessor as joint indices (vec4 uint).
	// Handles UNSIGNED_BYTE and UNSIGNED_SHORT component types.
	//
	// Parameters:
	//   - accessorIndex: the index of the accessor
	//
	// Returns:
	//   - [][4]uint32: the joint indices (converted to uint32)
	//   - error: error if reading fails
	ReadJointsAccessor(accessorIndex int) ([][4]uint32, error)

	// AccessorCount returns an accessor's element count.
	//
	// Parameters:
	//   - accessorIndex: the index of the accessor
	//
	// Returns:
	//   - int: the element count
	//   - error: error if the index is out of range
	AccessorCount(accessorIndex int) (int, error)
}

var _ gltfParser = &gltfParserImpl{}

// newGLTFParser creates a new glTF parser instance.
//
// Parameters:
//   - registry: the registry used to decode extension objects
//   - cache: the import cache holding loaded buffers
//
// Returns:
//   - gltfParser: a new parser instance
func newGLTFParser(registry *ExtensionRegistry, cache *ImportCache) gltfParser {
	if registry == nil {
		registry = DefaultExtensionRegistry()
	}
	return &gltfParserImpl{registry: registry, cache: cache}
}

func (p *gltfParserImpl) Document() *gltfDocument {
	return p.document
}

func (p *gltfParserImpl) BinaryChunk() []byte {
	return p.glbBinaryChunk
}

func (p *gltfParserImpl) Parse(data []byte) error {
	jsonData := data
	if len(data) >= 4 && binary.LittleEndian.Uint32(data[:4]) == gltfGLBMagic {
		var err error
		jsonData, p.glbBinaryChunk, err = splitGLB(data)
		if err != nil {
			return &ImportError{Kind: ErrParse, Entity: entityDocument, Index: -1, Err: err}
		}
	}

	var doc gltfDocument
	if err := json.Unmarshal(jsonData, &doc); err != nil {
		return wrapImportError(ErrParse, entityDocument, -1, err, "failed to parse glTF JSON")
	}
	if !strings.HasPrefix(doc.Asset.Version, "2.") {
		return &ImportError{Kind: ErrParse, Entity: entityDocument, Index: -1, Err: errors.Wrapf(errInvalidGLTFVersion, "got %q", doc.Asset.Version)}
	}
	if err := p.registry.attachAll(&doc); err != nil {
		return err
	}

	p.document = &doc
	return nil
}

// splitGLB validates a GLB container and returns its JSON and BIN chunks.
// Reference: https://registry.khronos.org/glTF/specs/2.0/glTF-2.0.html#glb-file-format-specification
func splitGLB(data []byte) ([]byte, []byte, error) {
	if len(data) < 12 {
		return nil, nil, errors.New("GLB file too small")
	}

	r := bytes.NewReader(data)

	var header gltfGLBHeader
	if err := binary.Read(r, binary.LittleEndian, &header); err != nil {
		return nil, nil, errors.Wrap(err, "failed to read GLB header")
	}
	if header.Magic != gltfGLBMagic {
		return nil, nil, errInvalidGLBMagic
	}
	if header.Version != gltfGLBVersion {
		return nil, nil, errInvalidGLBVersion
	}
	if header.Length < 12 || int(header.Length) > len(data) {
		return nil, nil, errors.Errorf("GLB length %d does not fit data size %d", header.Length, len(data))
	}
	r = bytes.NewReader(data[12:header.Length])

	var jsonData, binData []byte
	for chunk := 0; ; chunk++ {
		var chunkHeader gltfGLBChunkHeader
		if err := binary.Read(r, binary.LittleEndian, &chunkHeader); err != nil {
			if err == io.EOF {
				break
			}
			return nil, nil, errors.Wrap(err, "failed to read chunk header")
		}
		if int64(chunkHeader.ChunkLength) > int64(r.Len()) {
			return nil, nil, errors.Errorf("chunk %d length %d exceeds container", chunk, chunkHeader.ChunkLength)
		}

		chunkData := make([]byte, chunkHeader.ChunkLength)
		if _, err := io.ReadFull(r, chunkData); err != nil {
			return nil, nil, errors.Wrap(err, "failed to read chunk data")
		}

		switch {
		case chunk == 0 && chunkHeader.ChunkType != gltfGLBChunkJSON:
			return nil, nil, errMissingJSONChunk
		case chunkHeader.ChunkType == gltfGLBChunkJSON && jsonData == nil:
			jsonData = chunkData
		case chunkHeader.ChunkType == gltfGLBChunkBIN && binData == nil:
			binData = chunkData
		}
	}

	if jsonData == nil {
		return nil, nil, errMissingJSONChunk
	}
	return jsonData, binData, nil
}

// gltfDecodeDataURI decodes a base64 data URI.
// Format: data:[<mediatype>][;base64],<data>
//
// Returns:
//   - []byte: the decoded payload
//   - string: the media type, empty when absent
//   - error: error if the URI is malformed
func gltfDecodeDataURI(uri string) ([]byte, string, error) {
	if !strings.HasPrefix(uri, "data:") {
		return nil, "", errInvalidDataURI
	}
	commaIdx := strings.Index(uri, ",")
	if commaIdx < 0 {
		return nil, "", errInvalidDataURI
	}

	header := uri[5:commaIdx]
	dataStr := uri[commaIdx+1:]

	if !strings.HasSuffix(header, ";base64") {
		return nil, "", errors.Errorf("unsupported data URI encoding: %s", header)
	}

	data, err := base64.StdEncoding.DecodeString(dataStr)
	if err != nil {
		return nil, "", errors.Wrap(err, "failed to decode base64")
	}
	return data, strings.TrimSuffix(header, ";base64"), nil
}

// --- Buffer & Accessor Data Reading ---

func (p *gltfParserImpl) buffer(index int) ([]byte, error) {
	if index < 0 || index >= len(p.document.Buffers) {
		return nil, newImportError(ErrReferenceOutOfRange, entityBuffer, index, "buffer index out of range")
	}
	data, ok := Lookup[[]byte](p.cache, KindBuffer, index)
	if !ok {
		return nil, newImportError(ErrInvalidData, entityBuffer, index, "buffer not loaded")
	}
	return data, nil
}

func (p *gltfParserImpl) ReadBufferView(viewIndex int) ([]byte, error) {
	if p.document == nil {
		return nil, errors.New("no document loaded")
	}
	if viewIndex < 0 || viewIndex >= len(p.document.BufferViews) {
		return nil, newImportError(ErrReferenceOutOfRange, entityView, viewIndex, "bufferView index out of range")
	}
	bv := &p.document.BufferViews[viewIndex]
	buf, err := p.buffer(bv.Buffer)
	if err != nil {
		return nil, err
	}
	if bv.ByteOffset < 0 || bv.ByteLength < 0 || bv.ByteOffset+bv.ByteLength > len(buf) {
		return nil, newImportError(ErrReferenceOutOfRange, entityView, viewIndex,
			"range [%d, %d) exceeds buffer %d of %d bytes", bv.ByteOffset, bv.ByteOffset+bv.ByteLength, bv.Buffer, len(buf))
	}
	return buf[bv.ByteOffset : bv.ByteOffset+bv.ByteLength], nil
}

func (p *gltfParserImpl) accessor(accessorIndex int) (*gltfAccessor, error) {
	if p.document == nil {
		return nil, errors.New("no document loaded")
	}
	if accessorIndex < 0 || accessorIndex >= len(p.document.Accessors) {
		return nil, newImportError(ErrReferenceOutOfRange, entityAccessor, accessorIndex, "accessor index out of range")
	}
	return &p.document.Accessors[accessorIndex], nil
}

func (p *gltfParserImpl) AccessorCount(accessorIndex int) (int, error) {
	acc, err := p.accessor(accessorIndex)
	if err != nil {
		return 0, err
	}
	return acc.Count, nil
}

// readAccessorElements returns the accessor's elements tightly packed, with stride removed.
// Accessors without a buffer view yield zeroed elements.
func (p *gltfParserImpl) readAccessorElements(accessorIndex int, acc *gltfAccessor) ([]byte, int, error) {
	componentSize := gltfComponentTypeSize(acc.ComponentType)
	componentCount := gltfAccessorTypeComponentCount(acc.Type)
	if componentSize == 0 || componentCount == 0 {
		return nil, 0, newImportError(ErrInvalidData, entityAccessor, accessorIndex,
			"unsupported accessor layout: type=%s, componentType=%d", acc.Type, acc.ComponentType)
	}
	elementSize := componentSize * componentCount
	if acc.Count < 0 {
		return nil, 0, newImportError(ErrInvalidData, entityAccessor, accessorIndex, "negative count")
	}
	if acc.Count == 0 {
		return []byte{}, elementSize, nil
	}

	if acc.BufferView == nil {
		if acc.Count > maxUnbackedAccessorBytes/elementSize {
			return nil, 0, newImportError(ErrReferenceOutOfRange, entityAccessor, accessorIndex,
				"count %d of an accessor without bufferView exceeds %d bytes", acc.Count, maxUnbackedAccessorBytes)
		}
		return make([]byte, acc.Count*elementSize), elementSize, nil
	}

	view, err := p.ReadBufferView(*acc.BufferView)
	if err != nil {
		return nil, 0, err
	}
	stride := elementSize
	if bv := &p.document.BufferViews[*acc.BufferView]; bv.ByteStride != nil && *bv.ByteStride > 0 {
		stride = *bv.ByteStride
	}
	// The last element must start at or before len(view)-elementSize; dividing keeps it overflow free.
	room := len(view) - elementSize
	if acc.ByteOffset < 0 || acc.ByteOffset > room || acc.Count-1 > (room-acc.ByteOffset)/stride {
		return nil, 0, newImportError(ErrReferenceOutOfRange, entityAccessor, accessorIndex,
			"%d elements at offset %d with stride %d exceed bufferView %d of %d bytes",
			acc.Count, acc.ByteOffset, stride, *acc.BufferView, len(view))
	}

	result := make([]byte, acc.Count*elementSize)
	for i := 0; i < acc.Count; i++ {
		srcOffset := acc.ByteOffset + i*stride
		dstOffset := i * elementSize
		copy(result[dstOffset:dstOffset+elementSize], view[srcOffset:srcOffset+elementSize])
	}
	return result, elementSize, nil
}

// applySparse substitutes the sparse elements into packed element data.
func (p *gltfParserImpl) applySparse(accessorIndex int, acc *gltfAccessor, data []byte, elementSize int) error {
	sp := acc.Sparse
	if sp == nil || sp.Count == 0 {
		return nil
	}
	idxView, err := p.ReadBufferView(sp.Indices.BufferView)
	if err != nil {
		return err
	}
	valView, err := p.ReadBufferView(sp.Values.BufferView)
	if err != nil {
		return err
	}
	idxSize := gltfComponentTypeSize(sp.Indices.ComponentType)
	if idxSize == 0 || sp.Indices.ComponentType == gltfComponentTypeFloat {
		return newImportError(ErrInvalidData, entityAccessor, accessorIndex, "invalid sparse index component type %d", sp.Indices.ComponentType)
	}
	if sp.Count < 0 || sp.Indices.ByteOffset < 0 || sp.Values.ByteOffset < 0 {
		return newImportError(ErrReferenceOutOfRange, entityAccessor, accessorIndex,
			"negative sparse count or offset: count=%d, indices=%d, values=%d", sp.Count, sp.Indices.ByteOffset, sp.Values.ByteOffset)
	}
	if !fitsIn(sp.Indices.ByteOffset, sp.Count, idxSize, len(idxView)) || !fitsIn(sp.Values.ByteOffset, sp.Count, elementSize, len(valView)) {
		return newImportError(ErrReferenceOutOfRange, entityAccessor, accessorIndex, "sparse storage exceeds its bufferViews")
	}

	for i := 0; i < sp.Count; i++ {
		target := int(readUintComponent(idxView[sp.Indices.ByteOffset+i*idxSize:], sp.Indices.ComponentType))
		if target >= acc.Count {
			return newImportError(ErrReferenceOutOfRange, entityAccessor, accessorIndex, "sparse index %d out of range", target)
		}
		src := valView[sp.Values.ByteOffset+i*elementSize:]
		copy(data[target*elementSize:(target+1)*elementSize], src[:elementSize])
	}
	return nil
}

// readPacked reads the accessor's packed elements with sparse substitution applied.
func (p *gltfParserImpl) readPacked(accessorIndex int) (*gltfAccessor, []byte, error) {
	acc, err := p.accessor(accessorIndex)
	if err != nil {
		return nil, nil, err
	}
	data, elementSize, err := p.readAccessorElements(accessorIndex, acc)
	if err != nil {
		return nil, nil, err
	}
	if err := p.applySparse(accessorIndex, acc, data, elementSize); err != nil {
		return nil, nil, err
	}
	return acc, data, nil
}

func (p *gltfParserImpl) ReadFloats(accessorIndex int) ([]float32, int, error) {
	acc, data, err := p.readPacked(accessorIndex)
	if err != nil {
		return nil, 0, err
	}
	componentSize := gltfComponentTypeSize(acc.ComponentType)
	componentCount := gltfAccessorTypeComponentCount(acc.Type)

	result := make([]float32, acc.Count*componentCount)
	for i := range result {
		result[i] = readFloatComponent(data[i*componentSize:], acc.ComponentType, acc.Normalized)
	}
	return result, componentCount, nil
}

// readTyped reads an accessor of the expected element type as packed float values.
func (p *gltfParserImpl) readTyped(accessorIndex int, accessorType string) ([]float32, int, error) {
	acc, err := p.accessor(accessorIndex)
	if err != nil {
		return nil, 0, err
	}
	if acc.Type != accessorType {
		return nil, 0, newImportError(ErrInvalidData, entityAccessor, accessorIndex,
			"accessor is not %s: type=%s, componentType=%d", accessorType, acc.Type, acc.ComponentType)
	}
	values, _, err := p.ReadFloats(accessorIndex)
	if err != nil {
		return nil, 0, err
	}
	return values, acc.Count, nil
}

func (p *gltfParserImpl) ReadVec2Accessor(accessorIndex int) ([][2]float32, error) {
	values, count, err := p.readTyped(accessorIndex, gltfAccessorTypeVec2)
	if err != nil {
		return nil, err
	}
	result := make([][2]float32, count)
	for i := range result {
		copy(result[i][:], values[i*2:])
	}
	return result, nil
}

func (p *gltfParserImpl) ReadVec3Accessor(accessorIndex int) ([][3]float32, error) {
	values, count, err := p.readTyped(accessorIndex, gltfAccessorTypeVec3)
	if err != nil {
		return nil, err
	}
	result := make([][3]float32, count)
	for i := range result {
		copy(result[i][:], values[i*3:])
	}
	return result, nil
}

func (p *gltfParserImpl) ReadVec4Accessor(accessorIndex int) ([][4]float32, error) {
	values, count, err := p.readTyped(accessorIndex, gltfAccessorTypeVec4)
	if err != nil {
		return nil, err
	}
	result := make([][4]float32, count)
	for i := range result {
		copy(result[i][:], values[i*4:])
	}
	return result, nil
}

func (p *gltfParserImpl) ReadColorAccessor(accessorIndex int) ([][4]float32, error) {
	acc, err := p.accessor(accessorIndex)
	if err != nil {
		return nil, err
	}
	switch acc.Type {
	case gltfAccessorTypeVec4:
		return p.ReadVec4Accessor(accessorIndex)
	case gltfAccessorTypeVec3:
		rgb, err := p.ReadVec3Accessor(accessorIndex)
		if err != nil {
			return nil, err
		}
		result := make([][4]float32, len(rgb))
		for i, c := range rgb {
			result[i] = [4]float32{c[0], c[1], c[2], 1}
		}
		return result, nil
	default:
		return nil, newImportError(ErrInvalidData, entityAccessor, accessorIndex, "unsupported color accessor type %s", acc.Type)
	}
}

func (p *gltfParserImpl) ReadScalarAccessor(accessorIndex int) ([]float32, error) {
	values, _, err := p.readTyped(accessorIndex, gltfAccessorTypeScalar)
	return values, err
}

func (p *gltfParserImpl) ReadMat4Accessor(accessorIndex int) ([][16]float32, error) {
	values, count, err := p.readTyped(accessorIndex, gltfAccessorTypeMat4)
	if err != nil {
		return nil, err
	}
	result := make([][16]float32, count)
	for i := range result {
		copy(result[i][:], values[i*16:])
	}
	return result, nil
}

func (p *gltfParserImpl) ReadIndicesAccessor(accessorIndex int) ([]uint32, error) {
	acc, data, err := p.readPacked(accessorIndex)
	if err != nil {
		return nil, err
	}
	if acc.Type != gltfAccessorTypeScalar {
		return nil, newImportError(ErrInvalidData, entityAccessor, accessorIndex, "index accessor is not SCALAR: type=%s", acc.Type)
	}

	size := gltfComponentTypeSize(acc.ComponentType)
	switch acc.ComponentType {
	case gltfComponentTypeUnsignedByte, gltfComponentTypeUnsignedShort, gltfComponentTypeUnsignedInt:
	default:
		return nil, newImportError(ErrInvalidData, entityAccessor, accessorIndex, "unsupported index component type: %d", acc.ComponentType)
	}

	result := make([]uint32, acc.Count)
	for i := range result {
		result[i] = readUintComponent(data[i*size:], acc.ComponentType)
	}
	return result, nil
}

func (p *gltfParserImpl) ReadJointsAccessor(accessorIndex int) ([][4]uint32, error) {
	acc, data, err := p.readPacked(accessorIndex)
	if err != nil {
		return nil, err
	}
	if acc.Type != gltfAccessorTypeVec4 {
		return nil, newImportError(ErrInvalidData, entityAccessor, accessorIndex, "joints accessor is not VEC4: type=%s", acc.Type)
	}

	size := gltfComponentTypeSize(acc.ComponentType)
	switch acc.ComponentType {
	case gltfComponentTypeUnsignedByte, gltfComponentTypeUnsignedShort:
	default:
		return nil, newImportError(ErrInvalidData, entityAccessor, accessorIndex, "unsupported joints component type: %d", acc.ComponentType)
	}

	result := make([][4]uint32, acc.Count)
	for i := range result {
		for c := 0; c < 4; c++ {
			result[i][c] = readUintComponent(data[(i*4+c)*size:], acc.ComponentType)
		}
	}
	return result, nil
}

// --- Helper Functions ---

// maxUnbackedAccessorBytes caps the zero-filled storage of an accessor without a bufferView.
const maxUnbackedAccessorBytes = 1 << 28

// fitsIn reports whether count items of size bytes starting at offset fit in length bytes.
func fitsIn(offset, count, size, length int) bool {
	return offset <= length && count <= (length-offset)/size
}

// readUintComponent reads one unsigned integer component.
func readUintComponent(b []byte, componentType int) uint32 {
	switch componentType {
	case gltfComponentTypeByte, gltfComponentTypeUnsignedByte:
		return uint32(b[0])
	case gltfComponentTypeShort, gltfComponentTypeUnsignedShort:
		return uint32(binary.LittleEndian.Uint16(b))
	default:
		return binary.LittleEndian.Uint32(b)
	}
}

// readFloatComponent reads one component as float32, mapping normalized integers to [0, 1] or [-1, 1].
func readFloatComponent(b []byte, componentType int, normalized bool) float32 {
	switch componentType {
	case gltfComponentTypeFloat:
		return math.Float32frombits(binary.LittleEndian.Uint32(b))
	case gltfComponentTypeByte:
		v := float32(int8(b[0]))
		if normalized {
			return max(v/127, -1)
		}
		return v
	case gltfComponentTypeUnsignedByte:
		v := float32(b[0])
		if normalized {
			return v / 255
		}
		return v
	case gltfComponentTypeShort:
		v := float32(int16(binary.LittleEndian.Uint16(b)))
		if normalized {
			return max(v/32767, -1)
		}
		return v
	case gltfComponentTypeUnsignedShort:
		v := float32(binary.LittleEndian.Uint16(b))
		if normalized {
			return v / 65535
		}
		return v
	case gltfComponentTypeUnsignedInt:
		v := float32(binary.LittleEndian.Uint32(b))
		if normalized {
			return v / 4294967295
		}
		return v
	}
	return 0
}

// gltfComponentTypeSize returns the byte size of a component type.
func gltfComponentTypeSize(componentType int) int {
	switch componentType {
	case gltfComponentTypeByte, gltfComponentTypeUnsignedByte:
		return 1
	case gltfComponentTypeShort, gltfComponentTypeUnsignedShort:
		return 2
	case gltfComponentTypeUnsignedInt, gltfComponentTypeFloat:
		return 4
	default:
		return 0
	}
}

// gltfAccessorTypeComponentCount returns the number of components for an accessor type.
func gltfAccessorTypeComponentCount(accessorType string) int {
	switch accessorType {
	case gltfAccessorTypeScalar:
		return 1
	case gltfAccessorTypeVec2:
		return 2
	case gltfAccessorTypeVec3:
		return 3
	case gltfAccessorTypeVec4:
		return 4
	case gltfAccessorTypeMat2:
		return 4
	case gltfAccessorTypeMat3:
		return 9
	case gltfAccessorTypeMat4:
		return 16
	default:
		return 0
	}
}
