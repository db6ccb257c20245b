package loader

import (
	"context"
	"fmt"

	"github.com/Carmen-Shannon/oxy-import/common"
	"github.com/Carmen-Shannon/oxy-import/engine/model"
)

// sceneVisit is one node instantiation in depth-first order.
type sceneVisit struct {
	node   int
	parent int // -1 for scene roots
}

// gltfSceneBuilder instantiates the default scene's node hierarchy, one node per unit.
type gltfSceneBuilder struct {
	ic       *importContext
	scene    int
	order    []sceneVisit
	stage    *stageTask
	siblings map[*model.SceneObject]map[string]struct{}
}

func newGLTFSceneBuilder(ic *importContext) *gltfSceneBuilder {
	return &gltfSceneBuilder{ic: ic, siblings: make(map[*model.SceneObject]map[string]struct{})}
}

// task returns the node stage. The traversal order is computed, and the graph validated,
// on the first resume.
func (b *gltfSceneBuilder) task() Task {
	return TaskFunc(func(ctx context.Context) StepResult {
		if b.stage == nil {
			if err := b.plan(); err != nil {
				return stepFailed(err)
			}
			b.ic.root = &model.SceneObject{
				Name:           b.ic.name,
				NodeIndex:      -1,
				PrimitiveIndex: -1,
				Local:          model.IdentityTransform(),
			}
			b.stage = newStageTask(StageNode, len(b.order), b.ic.progress, b.instantiate)
		}
		return b.stage.Resume(ctx)
	})
}

// defaultScene returns the scene to instantiate: the document's `scene`, else scene 0.
func defaultScene(doc *gltfDocument) (int, error) {
	if len(doc.Scenes) == 0 {
		return -1, newImportError(ErrInvalidData, entityScene, -1, "document has no scenes")
	}
	if doc.Scene == nil {
		return 0, nil
	}
	if *doc.Scene < 0 || *doc.Scene >= len(doc.Scenes) {
		return -1, newImportError(ErrReferenceOutOfRange, entityScene, *doc.Scene, "default scene out of range")
	}
	return *doc.Scene, nil
}

// plan computes the depth-first instantiation order. A node index outside the node array
// or a node reached twice (a cycle or a shared child) is fatal.
func (b *gltfSceneBuilder) plan() error {
	doc := b.ic.doc
	scene, err := defaultScene(doc)
	if err != nil {
		return err
	}
	b.scene = scene
	roots := doc.Scenes[scene].Nodes
	if len(roots) == 0 {
		return newImportError(ErrInvalidData, entityScene, scene, "scene has no root nodes")
	}

	seen := make([]bool, len(doc.Nodes))
	stack := make([]sceneVisit, 0, len(roots))
	for i := len(roots) - 1; i >= 0; i-- {
		stack = append(stack, sceneVisit{node: roots[i], parent: -1})
	}
	for len(stack) > 0 {
		v := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if v.node < 0 || v.node >= len(doc.Nodes) {
			if v.parent < 0 {
				return newImportError(ErrReferenceOutOfRange, entityScene, scene, "root node %d out of range", v.node)
			}
			return newImportError(ErrReferenceOutOfRange, entityNode, v.parent, "child node %d out of range", v.node)
		}
		if seen[v.node] {
			return newImportError(ErrInvalidData, entityNode, v.node, "node reached twice; the hierarchy has a cycle or a shared child")
		}
		seen[v.node] = true
		b.order = append(b.order, v)

		children := doc.Nodes[v.node].Children
		for i := len(children) - 1; i >= 0; i-- {
			stack = append(stack, sceneVisit{node: children[i], parent: v.node})
		}
	}
	return nil
}

func (b *gltfSceneBuilder) instantiate(_ context.Context, i int) StepResult {
	v := b.order[i]
	doc := b.ic.doc
	node := &doc.Nodes[v.node]

	parent := b.ic.root
	if v.parent >= 0 {
		objs, ok := Lookup[[]*model.SceneObject](b.ic.cache, KindNode, v.parent)
		if !ok || len(objs) == 0 {
			return stepFailed(newImportError(ErrInvalidData, entityNode, v.node, "parent node %d not instantiated", v.parent))
		}
		parent = objs[0]
	}

	base := common.Coalesce(node.Name, fmt.Sprintf("node_%d", v.node))
	local := convertNodeTransform(node)
	obj := b.newObject(parent, base, v.node, local)
	objs := []*model.SceneObject{obj}

	if node.Mesh != nil {
		m := *node.Mesh
		if m < 0 || m >= len(doc.Meshes) {
			return stepFailed(newImportError(ErrReferenceOutOfRange, entityNode, v.node, "mesh %d out of range", m))
		}
		geoms, _ := Lookup[[]*model.Geometry](b.ic.cache, KindMesh, m)
		for p := range doc.Meshes[m].Primitives {
			target := obj
			if p > 0 {
				target = b.newObject(parent, fmt.Sprintf("%s_prim%d", base, p), v.node, local)
				objs = append(objs, target)
			}
			target.PrimitiveIndex = p
			if p < len(geoms) && geoms[p] != nil {
				mat, err := b.ic.material(doc.Meshes[m].Primitives[p].Material)
				if err != nil {
					return stepFailed(err)
				}
				target.Geometry = geoms[p]
				target.Material = mat
			}
		}
		b.ic.meshNodes[m] = append(b.ic.meshNodes[m], v.node)
	}

	if node.Skin != nil {
		s := *node.Skin
		if s < 0 || s >= len(doc.Skins) {
			return stepFailed(newImportError(ErrReferenceOutOfRange, entityNode, v.node, "skin %d out of range", s))
		}
		b.ic.skinNodes[s] = append(b.ic.skinNodes[s], v.node)
	}

	if err := b.ic.cache.Publish(KindNode, v.node, objs); err != nil {
		return stepFailed(wrapImportError(ErrInvalidData, entityNode, v.node, err, "publish node"))
	}
	return stepDone
}

// newObject creates a child of parent whose name is unique among its siblings, which keeps
// hierarchy paths unique.
func (b *gltfSceneBuilder) newObject(parent *model.SceneObject, base string, node int, local model.Transform) *model.SceneObject {
	set, ok := b.siblings[parent]
	if !ok {
		set = make(map[string]struct{})
		b.siblings[parent] = set
	}
	name := reserveName(set, base, fmt.Sprintf("node_%d", node))

	path := name
	if parent.Path != "" {
		path = parent.Path + "/" + name
	}
	obj := &model.SceneObject{
		Name:           name,
		Path:           path,
		NodeIndex:      node,
		PrimitiveIndex: -1,
		Local:          local,
		Parent:         parent,
	}
	parent.Children = append(parent.Children, obj)
	return obj
}

// convertNodeTransform returns a node's local transform in the target convention.
// Matrices are decomposed first; TRS components default to the identity.
func convertNodeTransform(node *gltfNode) model.Transform {
	t := model.IdentityTransform()
	if node.Matrix != nil {
		t.Translation, t.Rotation, t.Scale = common.DecomposeMatrix(*node.Matrix)
	} else {
		if node.Translation != nil {
			t.Translation = *node.Translation
		}
		if node.Rotation != nil {
			t.Rotation = common.NormalizeQuaternion(*node.Rotation)
		}
		if node.Scale != nil {
			t.Scale = *node.Scale
		}
	}
	t.Translation = common.FlipVec3(t.Translation, common.TargetConvention)
	t.Rotation = common.FlipQuaternion(t.Rotation, common.TargetConvention)
	return t
}
