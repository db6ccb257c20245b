package loader

import (
	"context"
	"fmt"

	"github.com/Carmen-Shannon/oxy-import/common"
	"github.com/Carmen-Shannon/oxy-import/engine/model"
)

// gltfMorphExtractor decodes morph targets into blend shapes and attaches them, with their
// default weights, to the objects instancing each mesh. One mesh per unit.
type gltfMorphExtractor struct {
	ic *importContext
}

func newGLTFMorphExtractor(ic *importContext) *gltfMorphExtractor {
	return &gltfMorphExtractor{ic: ic}
}

func (e *gltfMorphExtractor) task() Task {
	return newStageTask(StageMorphTarget, len(e.ic.doc.Meshes), e.ic.progress, e.extractUnit)
}

func (e *gltfMorphExtractor) extractUnit(_ context.Context, m int) StepResult {
	shapes, err := GetOrDecode(e.ic.cache, KindMorph, m, func() ([][]*model.BlendShape, error) {
		return e.extractMesh(m)
	})
	if err != nil {
		return stepFailed(err)
	}

	mesh := &e.ic.doc.Meshes[m]
	counts := make([]int, len(mesh.Primitives))
	total := 0
	for p := range mesh.Primitives {
		counts[p] = len(mesh.Primitives[p].Targets)
		total += counts[p]
	}
	if total == 0 {
		return stepDone
	}

	meshWeights, ok := distributeMorphWeights(mesh.Weights, counts)
	if !ok {
		e.ic.warn(newImportError(ErrInvalidData, entityMesh, m,
			"%d default weights do not match %d morph targets, using zero weights", len(mesh.Weights), total))
	}

	for _, node := range e.ic.meshNodes[m] {
		weights := meshWeights
		if nw := e.ic.doc.Nodes[node].Weights; len(nw) > 0 {
			if weights, ok = distributeMorphWeights(nw, counts); !ok {
				e.ic.warn(newImportError(ErrInvalidData, entityNode, node,
					"%d weights do not match %d morph targets, using zero weights", len(nw), total))
			}
		}
		objs, _ := Lookup[[]*model.SceneObject](e.ic.cache, KindNode, node)
		for _, obj := range objs {
			if obj.Geometry == nil || shapes[obj.PrimitiveIndex] == nil {
				continue
			}
			obj.BlendShapes = shapes[obj.PrimitiveIndex]
			obj.BlendWeights = append([]float32(nil), weights[obj.PrimitiveIndex]...)
		}
	}
	return stepDone
}

// extractMesh decodes the morph targets of every primitive of a mesh. Skipped primitives get nil.
func (e *gltfMorphExtractor) extractMesh(m int) ([][]*model.BlendShape, error) {
	mesh := &e.ic.doc.Meshes[m]
	geoms, _ := Lookup[[]*model.Geometry](e.ic.cache, KindMesh, m)

	var targetNames []string
	if mesh.Extras != nil {
		targetNames = mesh.Extras.TargetNames
	}

	out := make([][]*model.BlendShape, len(mesh.Primitives))
	for p := range mesh.Primitives {
		prim := &mesh.Primitives[p]
		if len(prim.Targets) == 0 || p >= len(geoms) || geoms[p] == nil {
			continue
		}
		vertexCount := geoms[p].VertexCount()
		names := make(map[string]struct{}, len(prim.Targets))
		shapes := make([]*model.BlendShape, len(prim.Targets))
		for t, target := range prim.Targets {
			fallback := fmt.Sprintf("morph_%d_%d", m, t)
			base := fallback
			if t < len(targetNames) && targetNames[t] != "" {
				base = targetNames[t]
			}
			shape := &model.BlendShape{Name: reserveName(names, base, fallback), TargetIndex: t}

			var err error
			if shape.PositionDeltas, err = e.readDeltas(m, p, t, target, "POSITION", vertexCount); err != nil {
				return nil, err
			}
			if shape.NormalDeltas, err = e.readDeltas(m, p, t, target, "NORMAL", vertexCount); err != nil {
				return nil, err
			}
			if shape.TangentDeltas, err = e.readDeltas(m, p, t, target, "TANGENT", vertexCount); err != nil {
				return nil, err
			}
			shapes[t] = shape
		}
		out[p] = shapes
	}
	return out, nil
}

func (e *gltfMorphExtractor) readDeltas(m, p, t int, target map[string]int, attr string, vertexCount int) ([][3]float32, error) {
	a, ok := target[attr]
	if !ok {
		return nil, nil
	}
	deltas, err := e.ic.parser.ReadVec3Accessor(a)
	if err != nil {
		return nil, wrapImportError(ErrInvalidData, entityMesh, m, err, fmt.Sprintf("primitive %d target %d %s", p, t, attr))
	}
	if len(deltas) != vertexCount {
		return nil, newImportError(ErrInvalidData, entityMesh, m,
			"primitive %d target %d: %d %s deltas for %d vertices", p, t, len(deltas), attr, vertexCount)
	}
	for i := range deltas {
		deltas[i] = common.FlipVec3(deltas[i], common.TargetConvention)
	}
	return deltas, nil
}

// distributeMorphWeights splits a mesh- or node-level weight list over primitives.
// When every primitive with targets has the same count N and N weights are given, each such
// primitive uses them all; otherwise weights are consumed in primitive order when their number
// equals the total target count. Anything else yields zero weights and ok=false.
//
// Parameters:
//   - weights: the default weights, may be empty
//   - counts: the morph target count of each primitive
//
// Returns:
//   - [][]float32: one weight slice per primitive
//   - bool: false when the weights could not be matched to the targets
func distributeMorphWeights(weights []float32, counts []int) ([][]float32, bool) {
	out := make([][]float32, len(counts))
	total, uniform := 0, -1
	for p, c := range counts {
		out[p] = make([]float32, c)
		total += c
		if c == 0 {
			continue
		}
		if uniform == -1 {
			uniform = c
		} else if uniform != c {
			uniform = -2
		}
	}
	if len(weights) == 0 {
		return out, true
	}

	switch {
	case uniform > 0 && len(weights) == uniform:
		for p := range out {
			copy(out[p], weights)
		}
	case len(weights) == total:
		offset := 0
		for p := range out {
			copy(out[p], weights[offset:offset+counts[p]])
			offset += counts[p]
		}
	default:
		return out, false
	}
	return out, true
}
