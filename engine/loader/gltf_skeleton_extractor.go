package loader

import (
	"context"
	"fmt"

	"github.com/Carmen-Shannon/oxy-import/common"
	"github.com/Carmen-Shannon/oxy-import/engine/model"
	"github.com/chewxy/math32"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// gltfSkeletonExtractorImpl is the implementation of the gltfSkeletonExtractor interface.
type gltfSkeletonExtractorImpl struct {
	ic *importContext
}

// gltfSkeletonExtractor defines the interface for decoding skins and binding them to the
// instantiated scene objects. It runs after the scene graph is built, so joints resolve to objects.
type gltfSkeletonExtractor interface {
	// ExtractSkin decodes a skin by index. An unusable skin returns an ErrInvalidSkin ImportError.
	//
	// Parameters:
	//   - skinIndex: the index of the skin to extract
	//
	// Returns:
	//   - *model.Skin: the skin with bones in joint order
	//   - error: error if the skin is invalid or references missing data
	ExtractSkin(skinIndex int) (*model.Skin, error)

	// Task returns the skin stage, one skin per unit.
	//
	// Returns:
	//   - Task: the stage task
	Task() Task
}

var _ gltfSkeletonExtractor = &gltfSkeletonExtractorImpl{}

// newGLTFSkeletonExtractor creates a new skeleton extractor.
//
// Parameters:
//   - ic: the import context
//
// Returns:
//   - gltfSkeletonExtractor: the skeleton extractor
func newGLTFSkeletonExtractor(ic *importContext) gltfSkeletonExtractor {
	return &gltfSkeletonExtractorImpl{ic: ic}
}

func (e *gltfSkeletonExtractorImpl) Task() Task {
	return newStageTask(StageSkin, len(e.ic.doc.Skins), e.ic.progress, e.extractUnit)
}

func (e *gltfSkeletonExtractorImpl) extractUnit(_ context.Context, i int) StepResult {
	skin, err := e.ExtractSkin(i)
	if err != nil {
		var ie *ImportError
		if !errors.As(err, &ie) || ie.Kind != ErrInvalidSkin {
			return stepFailed(err)
		}
		e.ic.warn(ie)
		skin = nil
	}
	if err := e.ic.cache.Publish(KindSkin, i, skin); err != nil {
		return stepFailed(wrapImportError(ErrInvalidData, entitySkin, i, err, "publish skin"))
	}
	if skin == nil {
		return stepDone
	}
	if err := e.bind(i, skin); err != nil {
		return stepFailed(err)
	}
	return stepDone
}

func (e *gltfSkeletonExtractorImpl) ExtractSkin(skinIndex int) (*model.Skin, error) {
	doc := e.ic.doc
	if skinIndex < 0 || skinIndex >= len(doc.Skins) {
		return nil, newImportError(ErrReferenceOutOfRange, entitySkin, skinIndex, "skin index out of range")
	}
	src := &doc.Skins[skinIndex]

	if len(src.Joints) == 0 {
		return nil, newImportError(ErrInvalidSkin, entitySkin, skinIndex, "skin has no joints")
	}

	var ibms [][16]float32
	if src.InverseBindMatrices != nil {
		var err error
		if ibms, err = e.ic.parser.ReadMat4Accessor(*src.InverseBindMatrices); err != nil {
			return nil, wrapImportError(ErrInvalidData, entitySkin, skinIndex, err, "inverse bind matrices")
		}
		if len(ibms) != len(src.Joints) {
			return nil, newImportError(ErrInvalidSkin, entitySkin, skinIndex,
				"%d inverse bind matrices for %d joints", len(ibms), len(src.Joints))
		}
	}

	skin := &model.Skin{
		Name:  fmt.Sprintf("skin_%d", skinIndex),
		Index: skinIndex,
		Bones: make([]model.Bone, len(src.Joints)),
	}
	if src.Name != "" {
		skin.Name = common.SanitizeFileName(src.Name)
	}

	boneOfNode := make(map[int]int32, len(src.Joints))
	for b, joint := range src.Joints {
		if joint < 0 || joint >= len(doc.Nodes) {
			return nil, newImportError(ErrReferenceOutOfRange, entitySkin, skinIndex, "joint node %d out of range", joint)
		}
		objs, ok := Lookup[[]*model.SceneObject](e.ic.cache, KindNode, joint)
		if !ok || len(objs) == 0 {
			return nil, newImportError(ErrInvalidSkin, entitySkin, skinIndex, "joint node %d is not part of the scene", joint)
		}
		ibm := common.Identity4()
		if ibms != nil {
			ibm = ibms[b]
		}
		skin.Bones[b] = model.Bone{
			Name:              objs[0].Name,
			ParentIndex:       -1,
			InverseBindMatrix: common.FlipMatrix(ibm, common.TargetConvention),
			Object:            objs[0],
		}
		boneOfNode[joint] = int32(b)
	}

	for b := range skin.Bones {
		for p := skin.Bones[b].Object.Parent; p != nil; p = p.Parent {
			if parent, ok := boneOfNode[p.NodeIndex]; ok && p.NodeIndex >= 0 {
				skin.Bones[b].ParentIndex = parent
				break
			}
		}
	}

	if src.Skeleton != nil {
		if *src.Skeleton < 0 || *src.Skeleton >= len(doc.Nodes) {
			return nil, newImportError(ErrReferenceOutOfRange, entitySkin, skinIndex, "skeleton node %d out of range", *src.Skeleton)
		}
		if objs, ok := Lookup[[]*model.SceneObject](e.ic.cache, KindNode, *src.Skeleton); ok && len(objs) > 0 {
			skin.Root = objs[0]
		}
	}
	return skin, nil
}

// bind attaches the skin and per-vertex bone weights to every object of every node using it.
func (e *gltfSkeletonExtractorImpl) bind(skinIndex int, skin *model.Skin) error {
	for _, node := range e.ic.skinNodes[skinIndex] {
		n := &e.ic.doc.Nodes[node]
		if n.Mesh == nil {
			continue
		}
		weights, err := GetOrDecode(e.ic.cache, KindBoneWeights, *n.Mesh, func() ([][]model.BoneWeight, error) {
			return e.meshBoneWeights(*n.Mesh)
		})
		if err != nil {
			return err
		}
		objs, _ := Lookup[[]*model.SceneObject](e.ic.cache, KindNode, node)
		for _, obj := range objs {
			if obj.Geometry == nil {
				continue
			}
			w := weights[obj.PrimitiveIndex]
			if w == nil {
				e.ic.logger.Debug("skinned primitive has no joint weights",
					zap.Int("node", node), zap.Int("primitive", obj.PrimitiveIndex))
				continue
			}
			if len(w) != obj.Geometry.VertexCount() {
				return newImportError(ErrInvalidData, entityMesh, *n.Mesh,
					"primitive %d: %d bone weights for %d vertices", obj.PrimitiveIndex, len(w), obj.Geometry.VertexCount())
			}
			for v := range w {
				for k := 0; k < 4; k++ {
					if w[v].Weights[k] > 0 && int(w[v].Joints[k]) >= len(skin.Bones) {
						return newImportError(ErrReferenceOutOfRange, entitySkin, skinIndex,
							"vertex %d of %s references joint %d, skin has %d", v, obj.Path, w[v].Joints[k], len(skin.Bones))
					}
				}
			}
			obj.Skin = skin
			obj.BoneWeights = w
		}
	}
	return nil
}

// meshBoneWeights reads and normalizes JOINTS_0/WEIGHTS_0 for every primitive of a mesh.
// Primitives without skinning channels get a nil entry.
func (e *gltfSkeletonExtractorImpl) meshBoneWeights(mesh int) ([][]model.BoneWeight, error) {
	prims := e.ic.doc.Meshes[mesh].Primitives
	out := make([][]model.BoneWeight, len(prims))
	for p := range prims {
		joints, weights, err := e.skinningChannels(mesh, p)
		if err != nil {
			return nil, err
		}
		if joints == nil || weights == nil {
			continue
		}
		if len(joints) != len(weights) {
			return nil, newImportError(ErrInvalidData, entityMesh, mesh,
				"primitive %d: %d joint entries for %d weight entries", p, len(joints), len(weights))
		}
		bw := make([]model.BoneWeight, len(joints))
		for v := range joints {
			bw[v] = normalizeBoneWeight(joints[v], weights[v])
		}
		out[p] = bw
	}
	return out, nil
}

func (e *gltfSkeletonExtractorImpl) skinningChannels(mesh, prim int) ([][4]uint32, [][4]float32, error) {
	if dg, ok := e.ic.compressedSkinning[primitiveKey{mesh: mesh, primitive: prim}]; ok {
		return dg.Joints, dg.Weights, nil
	}
	p := &e.ic.doc.Meshes[mesh].Primitives[prim]
	jointsAcc, hasJoints := p.Attributes["JOINTS_0"]
	weightsAcc, hasWeights := p.Attributes["WEIGHTS_0"]
	if !hasJoints || !hasWeights {
		return nil, nil, nil
	}
	joints, err := e.ic.parser.ReadJointsAccessor(jointsAcc)
	if err != nil {
		return nil, nil, wrapImportError(ErrInvalidData, entityMesh, mesh, err, fmt.Sprintf("primitive %d: joints", prim))
	}
	weights, err := e.ic.parser.ReadVec4Accessor(weightsAcc)
	if err != nil {
		return nil, nil, wrapImportError(ErrInvalidData, entityMesh, mesh, err, fmt.Sprintf("primitive %d: weights", prim))
	}
	return joints, weights, nil
}

// normalizeBoneWeight scales four influences to sum to 1. Negative and NaN weights count as 0;
// when nothing usable remains the vertex is bound fully to its first joint.
//
// Parameters:
//   - joints: the joint indices
//   - weights: the raw weights
//
// Returns:
//   - model.BoneWeight: the normalized influences
func normalizeBoneWeight(joints [4]uint32, weights [4]float32) model.BoneWeight {
	var sum float32
	for k, w := range weights {
		if math32.IsNaN(w) || w < 0 {
			weights[k] = 0
			continue
		}
		sum += w
	}
	if sum <= 0 || math32.IsInf(sum, 0) {
		return model.BoneWeight{Joints: joints, Weights: [4]float32{1, 0, 0, 0}}
	}
	for k := range weights {
		weights[k] /= sum
	}
	return model.BoneWeight{Joints: joints, Weights: weights}
}
