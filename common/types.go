// package common contains common types that are used throughout this importer. They are not interface-wrapped structs, just plain structs that express
// commonly used data-types.
package common

import (
	"fmt"

	"github.com/cogentcore/webgpu/wgpu"
)

// TextureStagingData holds RGBA pixel data for a texture pending upload by a host renderer.
type TextureStagingData struct {
	// Pixels is the byte slice representing the actual pixel data for the texture. It should be in RGBA format, with 4 bytes per pixel.
	Pixels []byte
	// Width is the width of the texture in pixels.
	Width uint32
	// Height is the height of the texture in pixels.
	Height uint32
}

// SamplerStagingData holds the configuration for a sampler binding pending GPU creation.
// Importers fill it from the source sampler description so that hosts can create samplers without re-reading the document.
type SamplerStagingData struct {
	// AddressModeU, AddressModeV, AddressModeW specify the addressing mode for texture coordinates outside the [0, 1] range in each dimension (U, V, W).
	AddressModeU, AddressModeV, AddressModeW wgpu.AddressMode
	// MagFilter and MinFilter specify the filtering mode for magnification and minification.
	MagFilter, MinFilter wgpu.FilterMode
	// MipmapFilter specifies the filtering mode for mipmap level selection.
	MipmapFilter wgpu.MipmapFilterMode
	// LodMinClamp and LodMaxClamp specify the minimum and maximum level of detail (LOD) for mipmapping.
	LodMinClamp, LodMaxClamp float32
	// MaxAnisotropy specifies the maximum anisotropy level for anisotropic filtering.
	MaxAnisotropy uint16
}

// DefaultSamplerStagingData returns linear filtering with repeat wrapping, the glTF defaults.
func DefaultSamplerStagingData() SamplerStagingData {
	return SamplerStagingData{
		AddressModeU:  wgpu.AddressModeRepeat,
		AddressModeV:  wgpu.AddressModeRepeat,
		AddressModeW:  wgpu.AddressModeRepeat,
		MagFilter:     wgpu.FilterModeLinear,
		MinFilter:     wgpu.FilterModeLinear,
		MipmapFilter:  wgpu.MipmapFilterModeLinear,
		LodMinClamp:   0,
		LodMaxClamp:   32,
		MaxAnisotropy: 1,
	}
}

// PixelFormat identifies the layout of DecodedImage.Pixels.
type PixelFormat int

const (
	// PixelFormatRGBA8 is 4 bytes per pixel, row-major.
	PixelFormatRGBA8 PixelFormat = iota
	// PixelFormatTranscoded is an opaque GPU block format produced by a texture transcoder.
	PixelFormatTranscoded
)

// DecodedImage is the decoded content of one source image.
type DecodedImage struct {
	// Width and Height are the image dimensions in pixels.
	Width, Height int

	// Pixels holds the decoded data in Format layout.
	Pixels []byte

	// Format describes Pixels.
	Format PixelFormat

	// FormatName is the transcoder's name for a PixelFormatTranscoded payload (e.g. "bc7").
	FormatName string

	// MimeType is the detected source MIME type.
	MimeType string

	// FlippedY is true when rows are stored bottom-up, i.e. already flipped relative to the
	// source image's top-left origin. Raster decodes flip, transcoded images do not.
	FlippedY bool
}

// ImportedTexture represents a decoded texture: an image paired with sampler settings.
// Two textures may share the same Image when they reference the same source image.
type ImportedTexture struct {
	// Name is a unique, filesystem-legal identifier for this texture.
	Name string

	// Index is the texture index in the source document.
	Index int

	// ImageIndex is the index of the source image that produced Image.
	ImageIndex int

	// Image is the decoded image.
	Image *DecodedImage

	// SamplerData holds GPU sampler parameters extracted from the model file.
	SamplerData SamplerStagingData
}

// FlippedY reports whether the texture's image rows were flipped during decode.
func (t *ImportedTexture) FlippedY() bool {
	return t != nil && t.Image != nil && t.Image.FlippedY
}

// StagingData returns the texture's pixels in upload form.
// Only RGBA8 images can be staged this way; transcoded images must be uploaded by a host that understands the block format.
//
// Returns:
//   - TextureStagingData: the RGBA pixel data with its dimensions
//   - error: error if the texture holds no RGBA8 image
func (t *ImportedTexture) StagingData() (TextureStagingData, error) {
	if t == nil || t.Image == nil {
		return TextureStagingData{}, fmt.Errorf("texture has no decoded image")
	}
	if t.Image.Format != PixelFormatRGBA8 {
		return TextureStagingData{}, fmt.Errorf("texture %q holds transcoded %s data", t.Name, t.Image.FormatName)
	}
	return TextureStagingData{
		Pixels: t.Image.Pixels,
		Width:  uint32(t.Image.Width),
		Height: uint32(t.Image.Height),
	}, nil
}

// ShadingModel selects the material parameterisation.
type ShadingModel int

const (
	// ShadingMetallicRoughness is the core glTF PBR model.
	ShadingMetallicRoughness ShadingModel = iota
	// ShadingSpecularGlossiness is the KHR_materials_pbrSpecularGlossiness model.
	ShadingSpecularGlossiness
)

// String returns the model name.
func (m ShadingModel) String() string {
	if m == ShadingSpecularGlossiness {
		return "specular-glossiness"
	}
	return "metallic-roughness"
}

// AlphaMode is the material alpha rendering mode.
type AlphaMode string

const (
	AlphaOpaque AlphaMode = "OPAQUE"
	AlphaMask   AlphaMode = "MASK"
	AlphaBlend  AlphaMode = "BLEND"
)

// TextureSlotKind names one of the material texture slots.
type TextureSlotKind int

const (
	// SlotBaseColor is the base color texture (diffuse texture for specular-glossiness).
	SlotBaseColor TextureSlotKind = iota
	SlotMetallicRoughness
	SlotSpecularGlossiness
	SlotNormal
	SlotOcclusion
	SlotEmissive

	// TextureSlotCount is the number of slots.
	TextureSlotCount
)

// TextureSlot binds a texture to a material slot.
type TextureSlot struct {
	// Texture is the decoded texture, nil when the slot is empty.
	Texture *ImportedTexture

	// TexCoord is the UV set used to sample the texture.
	TexCoord int

	// Scale is the normal scale or occlusion strength, 1 for other slots.
	Scale float32

	// UVScale and UVOffset form the UV transform applied when sampling.
	// Textures that were not flipped during decode get a (1, -1) scale and (0, 1) offset
	// so that every slot samples correctly against the flipped vertex UVs.
	UVScale, UVOffset [2]float32
}

// ImportedMaterial represents material properties from an imported model file.
type ImportedMaterial struct {
	// Name is a unique, filesystem-legal material identifier.
	Name string

	// Index is the material index in the source document (-1 for the default material).
	Index int

	// Model is the shading model.
	Model ShadingModel

	// BaseColor is the albedo color (RGBA); the diffuse factor for specular-glossiness.
	BaseColor [4]float32

	// Metallic factor (0.0 = dielectric, 1.0 = metal).
	Metallic float32

	// Roughness factor (0.0 = smooth, 1.0 = rough).
	Roughness float32

	// Specular is the specular color for specular-glossiness.
	Specular [3]float32

	// Glossiness factor for specular-glossiness.
	Glossiness float32

	// Emissive is the emissive color multiplied by any emissive strength.
	Emissive [3]float32

	// AlphaMode is fixed once the material is decoded.
	AlphaMode AlphaMode

	// AlphaCutoff is used by AlphaMask.
	AlphaCutoff float32

	// DoubleSided disables back-face culling.
	DoubleSided bool

	// Slots holds the texture slots indexed by TextureSlotKind.
	Slots [TextureSlotCount]TextureSlot
}

// Texture returns the texture bound to a slot, or nil.
func (m *ImportedMaterial) Texture(kind TextureSlotKind) *ImportedTexture {
	if m == nil || kind < 0 || kind >= TextureSlotCount {
		return nil
	}
	return m.Slots[kind].Texture
}
