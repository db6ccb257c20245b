package model

import (
	"github.com/Carmen-Shannon/oxy-import/common"
)

// model is the implementation of the Model interface.
type model struct {
	name        string
	root        *SceneObject
	meshes      [][]*Geometry
	materials   []*common.ImportedMaterial
	textures    []*common.ImportedTexture
	skins       []*Skin
	animations  []*AnimationClip
	nodeObjects [][]*SceneObject
	warnings    []ImportWarning
}

// Model defines the interface for an imported scene.
// A Model is an engine-agnostic container holding the instantiated object hierarchy together
// with the decoded resources it references. It is produced by the Loader when an import completes.
type Model interface {
	// Name retrieves the model identifier.
	//
	// Returns:
	//   - string: the model name
	Name() string

	// Root retrieves the synthetic root object the scene's root nodes are parented to.
	//
	// Returns:
	//   - *SceneObject: the root object
	Root() *SceneObject

	// Meshes retrieves the decoded primitives grouped by source mesh index.
	// Skipped primitives are nil placeholders so indices stay aligned with the source.
	//
	// Returns:
	//   - [][]*Geometry: primitives per mesh
	Meshes() [][]*Geometry

	// Materials retrieves the decoded materials by source index, followed by the default
	// material when a primitive references none.
	//
	// Returns:
	//   - []*common.ImportedMaterial: the materials
	Materials() []*common.ImportedMaterial

	// Textures retrieves the decoded textures by source index. Textures whose image failed to decode are nil.
	//
	// Returns:
	//   - []*common.ImportedTexture: the textures
	Textures() []*common.ImportedTexture

	// Skins retrieves the decoded skins by source index. Skipped skins are nil.
	//
	// Returns:
	//   - []*Skin: the skins
	Skins() []*Skin

	// Animations retrieves the animation clips by source index followed by the static pose clip.
	// Clips with a failed channel are nil.
	//
	// Returns:
	//   - []*AnimationClip: the animation clips
	Animations() []*AnimationClip

	// AnimationNames returns the names of all decoded animation clips.
	//
	// Returns:
	//   - []string: the animation clip names
	AnimationNames() []string

	// GetAnimationIndex returns the index of an animation by name, or -1 if not found.
	//
	// Parameters:
	//   - name: the animation clip name to search for
	//
	// Returns:
	//   - int: the animation index, or -1 if not found
	GetAnimationIndex(name string) int

	// NodeObjects returns the objects instantiated for a source node, nil when the node is not part of the scene.
	//
	// Parameters:
	//   - node: the source node index
	//
	// Returns:
	//   - []*SceneObject: the node's objects, the first being the node object itself
	NodeObjects(node int) []*SceneObject

	// Warnings returns the recoverable problems recorded during import.
	//
	// Returns:
	//   - []ImportWarning: the warnings in the order they were raised
	Warnings() []ImportWarning

	// ObjectCount returns the number of objects in the hierarchy, excluding the root.
	//
	// Returns:
	//   - int: the object count
	ObjectCount() int
}

var _ Model = &model{}

// NewModel creates a new Model instance with the specified options applied.
//
// Parameters:
//   - options: a variadic list of ModelBuilderOption functions to configure the Model
//
// Returns:
//   - Model: a new instance of Model configured with the provided options
func NewModel(options ...ModelBuilderOption) Model {
	m := &model{}
	for _, opt := range options {
		opt(m)
	}
	if m.root == nil {
		m.root = &SceneObject{Name: m.name, NodeIndex: -1, PrimitiveIndex: -1, Local: IdentityTransform()}
	}
	return m
}

func (m *model) Name() string {
	return m.name
}

func (m *model) Root() *SceneObject {
	return m.root
}

func (m *model) Meshes() [][]*Geometry {
	return m.meshes
}

func (m *model) Materials() []*common.ImportedMaterial {
	return m.materials
}

func (m *model) Textures() []*common.ImportedTexture {
	return m.textures
}

func (m *model) Skins() []*Skin {
	return m.skins
}

func (m *model) Animations() []*AnimationClip {
	return m.animations
}

func (m *model) AnimationNames() []string {
	names := make([]string, 0, len(m.animations))
	for _, anim := range m.animations {
		if anim != nil {
			names = append(names, anim.Name)
		}
	}
	return names
}

func (m *model) GetAnimationIndex(name string) int {
	for i, anim := range m.animations {
		if anim != nil && anim.Name == name {
			return i
		}
	}
	return -1
}

func (m *model) NodeObjects(node int) []*SceneObject {
	if node < 0 || node >= len(m.nodeObjects) {
		return nil
	}
	return m.nodeObjects[node]
}

func (m *model) Warnings() []ImportWarning {
	return m.warnings
}

func (m *model) ObjectCount() int {
	count := 0
	m.root.Walk(func(*SceneObject) bool {
		count++
		return true
	})
	return count - 1
}
