package loader

import (
	"context"
	"fmt"

	"github.com/Carmen-Shannon/oxy-import/common"
	"github.com/Carmen-Shannon/oxy-import/engine/model"
	"github.com/chewxy/math32"
	"go.uber.org/zap"
)

// gltfMeshExtractorImpl is the implementation of the gltfMeshExtractor interface.
type gltfMeshExtractorImpl struct {
	ic      *importContext
	units   []primitiveKey
	meshes  map[int][]*model.Geometry
	pending map[primitiveKey]*externalJob
}

// gltfMeshExtractor defines the interface for decoding mesh primitives into engine-ready Geometry.
// Every primitive is one unit of the mesh stage; compressed primitives decode on the worker pool.
type gltfMeshExtractor interface {
	// ExtractPrimitive decodes one uncompressed primitive.
	//
	// Parameters:
	//   - meshIndex: the index of the mesh in the document
	//   - primIndex: the index of the primitive within the mesh
	//
	// Returns:
	//   - *model.Geometry: the geometry, nil for unsupported topologies
	//   - error: error if the primitive data is invalid
	ExtractPrimitive(meshIndex, primIndex int) (*model.Geometry, error)

	// Task returns the mesh stage.
	//
	// Returns:
	//   - Task: the stage task
	Task() Task
}

var _ gltfMeshExtractor = &gltfMeshExtractorImpl{}

// newGLTFMeshExtractor creates a new mesh extractor.
//
// Parameters:
//   - ic: the import context
//
// Returns:
//   - gltfMeshExtractor: the mesh extractor
func newGLTFMeshExtractor(ic *importContext) gltfMeshExtractor {
	e := &gltfMeshExtractorImpl{
		ic:      ic,
		meshes:  make(map[int][]*model.Geometry),
		pending: make(map[primitiveKey]*externalJob),
	}
	for m := range ic.doc.Meshes {
		n := len(ic.doc.Meshes[m].Primitives)
		if n == 0 {
			e.units = append(e.units, primitiveKey{mesh: m, primitive: -1})
			continue
		}
		for p := 0; p < n; p++ {
			e.units = append(e.units, primitiveKey{mesh: m, primitive: p})
		}
	}
	return e
}

// SelectIndexFormat picks the narrowest index width able to address count vertices.
//
// Parameters:
//   - count: the primitive's vertex count
//
// Returns:
//   - model.IndexFormat: IndexFormatUint16 for counts up to 65535, IndexFormatUint32 otherwise
func SelectIndexFormat(count int) model.IndexFormat {
	if count <= 65535 {
		return model.IndexFormatUint16
	}
	return model.IndexFormatUint32
}

func (e *gltfMeshExtractorImpl) Task() Task {
	return newStageTask(StageMesh, len(e.units), e.ic.progress, e.extractUnit)
}

func (e *gltfMeshExtractorImpl) extractUnit(ctx context.Context, i int) StepResult {
	key := e.units[i]
	if key.primitive < 0 {
		return e.publishMesh(key.mesh)
	}

	if job, ok := e.pending[key]; ok {
		if !job.Done() {
			return stepYield
		}
		delete(e.pending, key)
		dg, err := jobResult[*DecodedGeometry](job)
		if err != nil || dg == nil {
			if err == nil {
				err = fmt.Errorf("decompressor returned no geometry")
			}
			return stepFailed(wrapImportError(ErrInvalidData, entityMesh, key.mesh, err,
				fmt.Sprintf("primitive %d decompression", key.primitive)))
		}
		if len(dg.Joints) > 0 || len(dg.Weights) > 0 {
			e.ic.compressedSkinning[key] = dg
		}
		geom, err := e.finishGeometry(key, dg, e.ic.caps.Decompressor.AxisConvention(), true)
		if err != nil {
			return stepFailed(err)
		}
		return e.addPrimitive(key, geom)
	}

	prim := &e.ic.doc.Meshes[key.mesh].Primitives[key.primitive]
	if draco, ok := prim.extension(ExtDracoMeshCompression).(*DracoMeshCompression); ok {
		if e.ic.caps.Decompressor != nil {
			if prim.mode() != gltfPrimitiveModeTriangles {
				e.warnTopology(key, prim.mode())
				return e.addPrimitive(key, nil)
			}
			job, err := e.submitCompressed(ctx, key, draco)
			if err != nil {
				return stepFailed(err)
			}
			e.pending[key] = job
			return stepContinue
		}
		if !e.hasUncompressedFallback(prim) {
			return stepFailed(newImportError(ErrRequiredExtensionUnsupported, entityMesh, key.mesh,
				"primitive %d is compressed, has no uncompressed fallback, and no geometry decompressor is configured", key.primitive))
		}
		e.ic.warn(newImportError(ErrMissingOptionalCapability, entityMesh, key.mesh,
			"primitive %d: no geometry decompressor configured, reading uncompressed attributes", key.primitive))
	}

	geom, err := e.ExtractPrimitive(key.mesh, key.primitive)
	if err != nil {
		return stepFailed(err)
	}
	return e.addPrimitive(key, geom)
}

func (e *gltfMeshExtractorImpl) warnTopology(key primitiveKey, mode int) {
	name, ok := gltfPrimitiveModeNames[mode]
	if !ok {
		name = fmt.Sprintf("mode %d", mode)
	}
	e.ic.warn(newImportError(ErrUnsupportedTopology, entityMesh, key.mesh, "primitive %d uses %s, only TRIANGLES is supported", key.primitive, name))
}

// hasUncompressedFallback reports whether a compressed primitive's POSITION accessor points at real data.
func (e *gltfMeshExtractorImpl) hasUncompressedFallback(prim *gltfPrimitive) bool {
	a, ok := prim.Attributes["POSITION"]
	if !ok || a < 0 || a >= len(e.ic.doc.Accessors) {
		return false
	}
	acc := &e.ic.doc.Accessors[a]
	return acc.BufferView != nil || acc.Sparse != nil
}

// addPrimitive stores a decoded primitive and publishes the mesh after its last primitive.
func (e *gltfMeshExtractorImpl) addPrimitive(key primitiveKey, geom *model.Geometry) StepResult {
	prims, ok := e.meshes[key.mesh]
	if !ok {
		prims = make([]*model.Geometry, len(e.ic.doc.Meshes[key.mesh].Primitives))
		e.meshes[key.mesh] = prims
	}
	prims[key.primitive] = geom
	if key.primitive < len(prims)-1 {
		return stepDone
	}
	return e.publishMesh(key.mesh)
}

func (e *gltfMeshExtractorImpl) publishMesh(mesh int) StepResult {
	prims := e.meshes[mesh]
	if prims == nil {
		prims = []*model.Geometry{}
	}
	delete(e.meshes, mesh)
	if err := e.ic.cache.Publish(KindMesh, mesh, prims); err != nil {
		return stepFailed(wrapImportError(ErrInvalidData, entityMesh, mesh, err, "publish mesh"))
	}
	return stepDone
}

func (e *gltfMeshExtractorImpl) submitCompressed(ctx context.Context, key primitiveKey, draco *DracoMeshCompression) (*externalJob, error) {
	blob, err := e.ic.parser.ReadBufferView(draco.BufferView)
	if err != nil {
		return nil, wrapImportError(ErrReferenceOutOfRange, entityMesh, key.mesh, err, "compressed primitive buffer view")
	}

	req := GeometryRequest{
		Data:       blob,
		Attributes: draco.Attributes,
		JointsID:   -1,
		WeightsID:  -1,
	}
	if id, ok := draco.Attributes["JOINTS_0"]; ok {
		req.JointsID = id
	}
	if id, ok := draco.Attributes["WEIGHTS_0"]; ok {
		req.WeightsID = id
	}

	decompressor := e.ic.caps.Decompressor
	e.ic.logger.Debug("decompressing primitive", zap.Int("mesh", key.mesh), zap.Int("primitive", key.primitive), zap.Int("bytes", len(blob)))
	return e.ic.jobs.submit(ctx, fmt.Sprintf("decompress mesh %d primitive %d", key.mesh, key.primitive),
		func(ctx context.Context) (any, error) {
			return decompressor.DecodeGeometry(ctx, req)
		}), nil
}

func (e *gltfMeshExtractorImpl) ExtractPrimitive(meshIndex, primIndex int) (*model.Geometry, error) {
	doc := e.ic.doc
	if meshIndex < 0 || meshIndex >= len(doc.Meshes) {
		return nil, newImportError(ErrReferenceOutOfRange, entityMesh, meshIndex, "mesh index out of range")
	}
	if primIndex < 0 || primIndex >= len(doc.Meshes[meshIndex].Primitives) {
		return nil, newImportError(ErrReferenceOutOfRange, entityMesh, meshIndex, "primitive %d out of range", primIndex)
	}
	prim := &doc.Meshes[meshIndex].Primitives[primIndex]
	key := primitiveKey{mesh: meshIndex, primitive: primIndex}

	if prim.mode() != gltfPrimitiveModeTriangles {
		e.warnTopology(key, prim.mode())
		return nil, nil
	}

	fail := func(err error, what string) error {
		return wrapImportError(ErrInvalidData, entityMesh, meshIndex, err, fmt.Sprintf("primitive %d: %s", primIndex, what))
	}

	posAccessor, ok := prim.Attributes["POSITION"]
	if !ok {
		return nil, newImportError(ErrInvalidData, entityMesh, meshIndex, "primitive %d has no POSITION attribute", primIndex)
	}

	var dg DecodedGeometry
	var err error
	if dg.Positions, err = e.ic.parser.ReadVec3Accessor(posAccessor); err != nil {
		return nil, fail(err, "positions")
	}
	if a, ok := prim.Attributes["NORMAL"]; ok {
		if dg.Normals, err = e.ic.parser.ReadVec3Accessor(a); err != nil {
			return nil, fail(err, "normals")
		}
	}
	if a, ok := prim.Attributes["TANGENT"]; ok {
		if dg.Tangents, err = e.ic.parser.ReadVec4Accessor(a); err != nil {
			return nil, fail(err, "tangents")
		}
	}
	for set := range dg.UVs {
		if a, ok := prim.Attributes[fmt.Sprintf("TEXCOORD_%d", set)]; ok {
			if dg.UVs[set], err = e.ic.parser.ReadVec2Accessor(a); err != nil {
				return nil, fail(err, "texcoords")
			}
		}
	}
	if a, ok := prim.Attributes["COLOR_0"]; ok {
		if dg.Colors, err = e.ic.parser.ReadColorAccessor(a); err != nil {
			return nil, fail(err, "colors")
		}
	}
	if prim.Indices != nil {
		if dg.Indices, err = e.ic.parser.ReadIndicesAccessor(*prim.Indices); err != nil {
			return nil, fail(err, "indices")
		}
	}

	return e.finishGeometry(key, &dg, 0, false)
}

// finishGeometry validates decoded attribute data and post-processes it into the target
// convention: handedness, winding, V flip, generated normals and tangents, bounds and index width.
//
// Parameters:
//   - key: the primitive
//   - dg: the decoded attributes, modified in place
//   - convention: the axes dg is already negated on relative to the source convention
//   - compressed: whether dg came from a decompressor
//
// Returns:
//   - *model.Geometry: the geometry
//   - error: an ErrInvalidData ImportError on inconsistent attribute counts or indices
func (e *gltfMeshExtractorImpl) finishGeometry(key primitiveKey, dg *DecodedGeometry, convention common.AxisMask, compressed bool) (*model.Geometry, error) {
	n := len(dg.Positions)
	invalid := func(format string, args ...any) error {
		return newImportError(ErrInvalidData, entityMesh, key.mesh, "primitive %d: %s", key.primitive, fmt.Sprintf(format, args...))
	}
	if n == 0 {
		return nil, invalid("no vertices")
	}
	lengths := map[string]int{"NORMAL": len(dg.Normals), "TANGENT": len(dg.Tangents), "COLOR_0": len(dg.Colors)}
	for set, uv := range dg.UVs {
		lengths[fmt.Sprintf("TEXCOORD_%d", set)] = len(uv)
	}
	for attr, l := range lengths {
		if l != 0 && l != n {
			return nil, invalid("%s has %d elements, POSITION has %d", attr, l, n)
		}
	}

	indices := dg.Indices
	if indices == nil {
		indices = make([]uint32, n)
		for i := range indices {
			indices[i] = uint32(i)
		}
	}
	if len(indices)%3 != 0 {
		return nil, invalid("%d indices do not form a triangle list", len(indices))
	}
	for _, idx := range indices {
		if int(idx) >= n {
			return nil, invalid("index %d exceeds vertex count %d", idx, n)
		}
	}

	corr := common.Correction(convention, common.TargetConvention)
	for i := range dg.Positions {
		dg.Positions[i] = common.FlipVec3(dg.Positions[i], corr)
	}
	for i := range dg.Normals {
		dg.Normals[i] = common.FlipVec3(dg.Normals[i], corr)
	}
	for i := range dg.Tangents {
		dg.Tangents[i] = common.FlipTangent(dg.Tangents[i], corr)
	}
	if corr.Odd() {
		for i := 0; i+2 < len(indices); i += 3 {
			indices[i+1], indices[i+2] = indices[i+2], indices[i+1]
		}
	}
	for _, uv := range dg.UVs {
		for i := range uv {
			uv[i][1] = 1 - uv[i][1]
		}
	}

	if dg.Normals == nil {
		dg.Normals = generateNormals(dg.Positions, indices)
	}
	if dg.Tangents == nil {
		dg.Tangents = generateTangents(dg.Positions, dg.Normals, dg.UVs[0], indices)
	}

	mesh := &e.ic.doc.Meshes[key.mesh]
	base := common.Coalesce(mesh.Name, fmt.Sprintf("mesh_%d", key.mesh))
	if key.primitive > 0 {
		base = fmt.Sprintf("%s_prim%d", base, key.primitive)
	}

	geom := &model.Geometry{
		Name:           e.ic.names.unique(nameCategoryMesh, base, fmt.Sprintf("mesh_%d", key.mesh)),
		MeshIndex:      key.mesh,
		PrimitiveIndex: key.primitive,
		Positions:      dg.Positions,
		Normals:        dg.Normals,
		Tangents:       dg.Tangents,
		UVs:            dg.UVs,
		Colors:         dg.Colors,
		IndexFormat:    SelectIndexFormat(n),
		Compressed:     compressed,
	}
	geom.BoundingMin, geom.BoundingMax = gltfCalculateBoundingBox(dg.Positions)
	if geom.IndexFormat == model.IndexFormatUint16 {
		geom.Indices16 = make([]uint16, len(indices))
		for i, idx := range indices {
			geom.Indices16[i] = uint16(idx)
		}
	} else {
		geom.Indices32 = indices
	}
	return geom, nil
}

// gltfCalculateBoundingBox computes the axis-aligned bounding box for positions.
func gltfCalculateBoundingBox(positions [][3]float32) ([3]float32, [3]float32) {
	if len(positions) == 0 {
		return [3]float32{}, [3]float32{}
	}

	bmin := [3]float32{math32.MaxFloat32, math32.MaxFloat32, math32.MaxFloat32}
	bmax := [3]float32{-math32.MaxFloat32, -math32.MaxFloat32, -math32.MaxFloat32}
	for _, pos := range positions {
		for j := 0; j < 3; j++ {
			bmin[j] = math32.Min(bmin[j], pos[j])
			bmax[j] = math32.Max(bmax[j], pos[j])
		}
	}
	return bmin, bmax
}

// generateNormals computes smooth vertex normals from the triangle geometry. For each triangle,
// the face normal is the cross product of its two edges, accumulated (area-weighted) onto every
// vertex of that triangle. Vertices touched by no usable triangle get +Y.
//
// Parameters:
//   - positions: the vertex positions
//   - indices: the triangle list
//
// Returns:
//   - [][3]float32: one unit normal per vertex
func generateNormals(positions [][3]float32, indices []uint32) [][3]float32 {
	accum := make([][3]float32, len(positions))
	for i := 0; i+2 < len(indices); i += 3 {
		i0, i1, i2 := indices[i], indices[i+1], indices[i+2]
		p0 := positions[i0]
		face := common.Cross3(common.Sub3(positions[i1], p0), common.Sub3(positions[i2], p0))
		for _, idx := range [3]uint32{i0, i1, i2} {
			accum[idx][0] += face[0]
			accum[idx][1] += face[1]
			accum[idx][2] += face[2]
		}
	}

	normals := make([][3]float32, len(positions))
	for i, a := range accum {
		n, ok := common.Normalize3(a)
		if !ok {
			n = [3]float32{0, 1, 0}
		}
		normals[i] = n
	}
	return normals
}

// generateTangents computes per-vertex tangents with the UV-gradient method: per-triangle
// tangent and bitangent directions from UV differences are accumulated per vertex, then
// orthonormalized against the normal. W stores handedness (±1).
//
// Parameters:
//   - positions: the vertex positions
//   - normals: the vertex normals
//   - uvs: the UV set driving the tangent frame, may be nil
//   - indices: the triangle list
//
// Returns:
//   - [][4]float32: one tangent per vertex
func generateTangents(positions, normals [][3]float32, uvs [][2]float32, indices []uint32) [][4]float32 {
	n := len(positions)
	tan := make([][3]float32, n)
	btan := make([][3]float32, n)

	if len(uvs) == n {
		for i := 0; i+2 < len(indices); i += 3 {
			i0, i1, i2 := indices[i], indices[i+1], indices[i+2]
			edge1 := common.Sub3(positions[i1], positions[i0])
			edge2 := common.Sub3(positions[i2], positions[i0])
			duv1 := [2]float32{uvs[i1][0] - uvs[i0][0], uvs[i1][1] - uvs[i0][1]}
			duv2 := [2]float32{uvs[i2][0] - uvs[i0][0], uvs[i2][1] - uvs[i0][1]}

			det := duv1[0]*duv2[1] - duv1[1]*duv2[0]
			if det == 0 {
				continue
			}
			inv := 1 / det
			var t, b [3]float32
			for c := 0; c < 3; c++ {
				t[c] = inv * (duv2[1]*edge1[c] - duv1[1]*edge2[c])
				b[c] = inv * (duv1[0]*edge2[c] - duv2[0]*edge1[c])
			}
			for _, idx := range [3]uint32{i0, i1, i2} {
				for c := 0; c < 3; c++ {
					tan[idx][c] += t[c]
					btan[idx][c] += b[c]
				}
			}
		}
	}

	tangents := make([][4]float32, n)
	for i := range tangents {
		normal := normals[i]
		// Gram-Schmidt: T' = normalize(T - N * dot(N, T))
		d := common.Dot3(normal, tan[i])
		ortho, ok := common.Normalize3([3]float32{
			tan[i][0] - normal[0]*d,
			tan[i][1] - normal[1]*d,
			tan[i][2] - normal[2]*d,
		})
		if !ok {
			tangents[i] = [4]float32{1, 0, 0, 1}
			continue
		}
		w := float32(1)
		if common.Dot3(common.Cross3(normal, ortho), btan[i]) < 0 {
			w = -1
		}
		tangents[i] = [4]float32{ortho[0], ortho[1], ortho[2], w}
	}
	return tangents
}
