package loader

import (
	"context"
	"fmt"

	"github.com/Carmen-Shannon/oxy-import/common"
)

// gltfMaterialExtractorImpl is the implementation of the gltfMaterialExtractor interface.
type gltfMaterialExtractorImpl struct {
	ic *importContext
}

// gltfMaterialExtractor defines the interface for building ImportedMaterials from a parsed
// document. Textures must already be published by the texture stage.
type gltfMaterialExtractor interface {
	// ExtractMaterial builds a single material by index.
	//
	// Parameters:
	//   - materialIndex: the index of the material in the document
	//
	// Returns:
	//   - *common.ImportedMaterial: the material
	//   - error: error if a texture reference is out of range
	ExtractMaterial(materialIndex int) (*common.ImportedMaterial, error)

	// Task returns the material stage, one material per unit.
	//
	// Returns:
	//   - Task: the stage task
	Task() Task
}

var _ gltfMaterialExtractor = &gltfMaterialExtractorImpl{}

// newGLTFMaterialExtractor creates a new material extractor.
//
// Parameters:
//   - ic: the import context
//
// Returns:
//   - gltfMaterialExtractor: the material extractor
func newGLTFMaterialExtractor(ic *importContext) gltfMaterialExtractor {
	return &gltfMaterialExtractorImpl{ic: ic}
}

func (e *gltfMaterialExtractorImpl) Task() Task {
	return newStageTask(StageMaterial, len(e.ic.doc.Materials), e.ic.progress, func(_ context.Context, i int) StepResult {
		_, err := GetOrDecode(e.ic.cache, KindMaterial, i, func() (*common.ImportedMaterial, error) {
			return e.ExtractMaterial(i)
		})
		if err != nil {
			return stepFailed(wrapImportError(ErrInvalidData, entityMaterial, i, err, "material"))
		}
		return stepDone
	})
}

func (e *gltfMaterialExtractorImpl) ExtractMaterial(materialIndex int) (*common.ImportedMaterial, error) {
	doc := e.ic.doc
	if materialIndex < 0 || materialIndex >= len(doc.Materials) {
		return nil, newImportError(ErrReferenceOutOfRange, entityMaterial, materialIndex, "material index out of range")
	}
	mat := &doc.Materials[materialIndex]

	result := newDefaultMaterial(e.ic.names.unique(nameCategoryMaterial, mat.Name, fmt.Sprintf("material_%d", materialIndex)))
	result.Index = materialIndex
	result.DoubleSided = mat.DoubleSided

	switch common.AlphaMode(mat.AlphaMode) {
	case common.AlphaMask:
		result.AlphaMode = common.AlphaMask
	case common.AlphaBlend:
		result.AlphaMode = common.AlphaBlend
	}
	if mat.AlphaCutoff != nil {
		result.AlphaCutoff = *mat.AlphaCutoff
	}

	var err error
	slot := func(kind common.TextureSlotKind, info *gltfTextureInfo, scale float32) {
		if err != nil || info == nil {
			return
		}
		result.Slots[kind], err = e.textureSlot(materialIndex, info, scale)
	}

	// Specular-glossiness takes precedence over the core model when both are present.
	if sg, ok := mat.extension(ExtPbrSpecularGlossiness).(*PbrSpecularGlossiness); ok {
		result.Model = common.ShadingSpecularGlossiness
		result.BaseColor = materialDefaults.Diffuse
		if sg.DiffuseFactor != nil {
			result.BaseColor = *sg.DiffuseFactor
		}
		if sg.SpecularFactor != nil {
			result.Specular = *sg.SpecularFactor
		}
		if sg.GlossinessFactor != nil {
			result.Glossiness = *sg.GlossinessFactor
		}
		slot(common.SlotBaseColor, sg.DiffuseTexture, 1)
		slot(common.SlotSpecularGlossiness, sg.SpecularGlossinessTexture, 1)
	} else if pbr := mat.PbrMetallicRoughness; pbr != nil {
		if pbr.BaseColorFactor != nil {
			result.BaseColor = *pbr.BaseColorFactor
		}
		if pbr.MetallicFactor != nil {
			result.Metallic = *pbr.MetallicFactor
		}
		if pbr.RoughnessFactor != nil {
			result.Roughness = *pbr.RoughnessFactor
		}
		slot(common.SlotBaseColor, pbr.BaseColorTexture, 1)
		slot(common.SlotMetallicRoughness, pbr.MetallicRoughnessTexture, 1)
	}

	if n := mat.NormalTexture; n != nil {
		slot(common.SlotNormal, &n.gltfTextureInfo, derefOr(n.Scale, materialDefaults.NormalScale))
	}
	if o := mat.OcclusionTexture; o != nil {
		slot(common.SlotOcclusion, &o.gltfTextureInfo, derefOr(o.Strength, materialDefaults.OcclusionStrength))
	}
	slot(common.SlotEmissive, mat.EmissiveTexture, 1)
	if err != nil {
		return nil, err
	}

	if mat.EmissiveFactor != nil {
		result.Emissive = *mat.EmissiveFactor
	}
	strength := materialDefaults.EmissiveStrength
	if es, ok := mat.extension(ExtMaterialsEmissiveStrength).(*EmissiveStrength); ok {
		strength = derefOr(es.Strength, strength)
	}
	for i := range result.Emissive {
		result.Emissive[i] *= strength
	}

	return result, nil
}

// textureSlot binds a texture reference. Textures that kept the source row order get a UV
// transform that undoes the vertex V flip.
func (e *gltfMaterialExtractorImpl) textureSlot(materialIndex int, info *gltfTextureInfo, scale float32) (common.TextureSlot, error) {
	if info.Index < 0 || info.Index >= len(e.ic.doc.Textures) {
		return common.TextureSlot{}, newImportError(ErrReferenceOutOfRange, entityMaterial, materialIndex,
			"texture index %d out of range", info.Index)
	}
	tex, _ := Lookup[*common.ImportedTexture](e.ic.cache, KindTexture, info.Index)

	s := common.TextureSlot{
		Texture:  tex,
		TexCoord: info.TexCoord,
		Scale:    scale,
		UVScale:  [2]float32{1, 1},
	}
	if tex != nil && !tex.FlippedY() {
		s.UVScale = [2]float32{1, -1}
		s.UVOffset = [2]float32{0, 1}
	}
	return s, nil
}

// newDefaultMaterial returns a material holding the static defaults.
//
// Parameters:
//   - name: the material name
//
// Returns:
//   - *common.ImportedMaterial: the material, Index -1
func newDefaultMaterial(name string) *common.ImportedMaterial {
	m := &common.ImportedMaterial{
		Name:        name,
		Index:       -1,
		Model:       common.ShadingMetallicRoughness,
		BaseColor:   materialDefaults.BaseColor,
		Metallic:    materialDefaults.Metallic,
		Roughness:   materialDefaults.Roughness,
		Specular:    materialDefaults.Specular,
		Glossiness:  materialDefaults.Glossiness,
		Emissive:    materialDefaults.Emissive,
		AlphaMode:   materialDefaults.AlphaMode,
		AlphaCutoff: materialDefaults.AlphaCutoff,
	}
	for i := range m.Slots {
		m.Slots[i].Scale = 1
		m.Slots[i].UVScale = [2]float32{1, 1}
	}
	return m
}

func derefOr[T any](p *T, fallback T) T {
	if p == nil {
		return fallback
	}
	return *p
}
