package model

import (
	"github.com/Carmen-Shannon/oxy-import/common"
)

// ModelBuilderOption is a functional option for configuring a Model via NewModel.
type ModelBuilderOption func(*model)

// WithName is an option builder that sets the name of the Model.
//
// Parameters:
//   - name: the model identifier
//
// Returns:
//   - ModelBuilderOption: a function that applies the name option to a model
func WithName(name string) ModelBuilderOption {
	return func(m *model) {
		m.name = name
	}
}

// WithRoot is an option builder that sets the root object of the hierarchy.
//
// Parameters:
//   - root: the synthetic root object
//
// Returns:
//   - ModelBuilderOption: a function that applies the root option to a model
func WithRoot(root *SceneObject) ModelBuilderOption {
	return func(m *model) {
		m.root = root
	}
}

// WithMeshes is an option builder that sets the decoded primitives grouped by mesh.
//
// Parameters:
//   - meshes: primitives per source mesh
//
// Returns:
//   - ModelBuilderOption: a function that applies the meshes option to a model
func WithMeshes(meshes [][]*Geometry) ModelBuilderOption {
	return func(m *model) {
		m.meshes = meshes
	}
}

// WithMaterials is an option builder that sets the decoded materials.
//
// Parameters:
//   - materials: the materials by source index
//
// Returns:
//   - ModelBuilderOption: a function that applies the materials option to a model
func WithMaterials(materials []*common.ImportedMaterial) ModelBuilderOption {
	return func(m *model) {
		m.materials = materials
	}
}

// WithTextures is an option builder that sets the decoded textures.
//
// Parameters:
//   - textures: the textures by source index
//
// Returns:
//   - ModelBuilderOption: a function that applies the textures option to a model
func WithTextures(textures []*common.ImportedTexture) ModelBuilderOption {
	return func(m *model) {
		m.textures = textures
	}
}

// WithSkins is an option builder that sets the decoded skins.
//
// Parameters:
//   - skins: the skins by source index
//
// Returns:
//   - ModelBuilderOption: a function that applies the skins option to a model
func WithSkins(skins []*Skin) ModelBuilderOption {
	return func(m *model) {
		m.skins = skins
	}
}

// WithAnimations is an option builder that sets the animation clips of the Model.
//
// Parameters:
//   - animations: the animation clips to set
//
// Returns:
//   - ModelBuilderOption: a function that applies the animations option to a model
func WithAnimations(animations []*AnimationClip) ModelBuilderOption {
	return func(m *model) {
		m.animations = animations
	}
}

// WithNodeObjects is an option builder that sets the node to objects map.
//
// Parameters:
//   - nodeObjects: objects per source node index
//
// Returns:
//   - ModelBuilderOption: a function that applies the node objects option to a model
func WithNodeObjects(nodeObjects [][]*SceneObject) ModelBuilderOption {
	return func(m *model) {
		m.nodeObjects = nodeObjects
	}
}

// WithWarnings is an option builder that sets the recorded import warnings.
//
// Parameters:
//   - warnings: the warnings to set
//
// Returns:
//   - ModelBuilderOption: a function that applies the warnings option to a model
func WithWarnings(warnings []ImportWarning) ModelBuilderOption {
	return func(m *model) {
		m.warnings = warnings
	}
}
