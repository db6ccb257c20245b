package loader

import (
	"encoding/json"
	"sort"

	"github.com/pkg/errors"
)

// Extension names understood by the default registry.
const (
	ExtDracoMeshCompression      = "KHR_draco_mesh_compression"
	ExtTextureBasisu             = "KHR_texture_basisu"
	ExtTextureWebP               = "EXT_texture_webp"
	ExtPbrSpecularGlossiness     = "KHR_materials_pbrSpecularGlossiness"
	ExtMaterialsEmissiveStrength = "KHR_materials_emissive_strength"
	ExtMeshQuantization          = "KHR_mesh_quantization"
)

// --- Payloads ---

// ExtensionPayload is the decoded, purely structural content of one extension object.
// The concrete payload types form a closed set keyed by ExtensionName.
type ExtensionPayload interface {
	// ExtensionName returns the extension the payload was decoded for.
	//
	// Returns:
	//   - string: the extension name
	ExtensionName() string
}

// DracoMeshCompression records where a primitive's compressed blob lives and how its
// attributes map to compressor IDs.
type DracoMeshCompression struct {
	BufferView int            `json:"bufferView"`
	Attributes map[string]int `json:"attributes"`
}

// TextureBasisu names the KTX2 image that replaces a texture's source.
type TextureBasisu struct {
	Source int `json:"source"`
}

// TextureWebP names the WebP image that replaces a texture's source.
type TextureWebP struct {
	Source int `json:"source"`
}

// PbrSpecularGlossiness is the specular-glossiness material model.
type PbrSpecularGlossiness struct {
	DiffuseFactor             *[4]float32      `json:"diffuseFactor,omitempty"`
	DiffuseTexture            *gltfTextureInfo `json:"diffuseTexture,omitempty"`
	SpecularFactor            *[3]float32      `json:"specularFactor,omitempty"`
	GlossinessFactor          *float32         `json:"glossinessFactor,omitempty"`
	SpecularGlossinessTexture *gltfTextureInfo `json:"specularGlossinessTexture,omitempty"`
}

// EmissiveStrength scales a material's emissive factor.
type EmissiveStrength struct {
	Strength *float32 `json:"emissiveStrength,omitempty"`
}

// MeshQuantization marks a document whose attributes may use integer component types.
// The accessor readers handle those types unconditionally, so the payload carries no data.
type MeshQuantization struct{}

func (*DracoMeshCompression) ExtensionName() string  { return ExtDracoMeshCompression }
func (*TextureBasisu) ExtensionName() string         { return ExtTextureBasisu }
func (*TextureWebP) ExtensionName() string           { return ExtTextureWebP }
func (*PbrSpecularGlossiness) ExtensionName() string { return ExtPbrSpecularGlossiness }
func (*EmissiveStrength) ExtensionName() string      { return ExtMaterialsEmissiveStrength }
func (*MeshQuantization) ExtensionName() string      { return ExtMeshQuantization }

// --- Registry ---

// ExtensionDecoder turns a raw extension object into its payload. It must not resolve
// resources; it may validate indices against the document.
type ExtensionDecoder func(doc *gltfDocument, raw json.RawMessage) (ExtensionPayload, error)

// CapabilityCheck reports whether an extension can be executed with the given capabilities.
type CapabilityCheck func(caps Capabilities) bool

type extensionEntry struct {
	decode     ExtensionDecoder
	executable CapabilityCheck
}

// ExtensionRegistry maps extension names to decoders and execution requirements.
// A registry is owned by one Loader; it is not shared process state.
type ExtensionRegistry struct {
	entries map[string]extensionEntry
}

// NewExtensionRegistry creates an empty registry.
//
// Returns:
//   - *ExtensionRegistry: the registry
func NewExtensionRegistry() *ExtensionRegistry {
	return &ExtensionRegistry{entries: make(map[string]extensionEntry)}
}

// DefaultExtensionRegistry returns a registry with every built-in extension registered.
//
// Returns:
//   - *ExtensionRegistry: the registry
func DefaultExtensionRegistry() *ExtensionRegistry {
	r := NewExtensionRegistry()
	r.Register(ExtDracoMeshCompression, decodeDracoMeshCompression, func(c Capabilities) bool { return c.Decompressor != nil })
	r.Register(ExtTextureBasisu, decodeTextureSource[TextureBasisu], func(c Capabilities) bool { return c.Transcoder != nil })
	r.Register(ExtTextureWebP, decodeTextureSource[TextureWebP], nil)
	r.Register(ExtPbrSpecularGlossiness, decodeStructural[PbrSpecularGlossiness], nil)
	r.Register(ExtMaterialsEmissiveStrength, decodeStructural[EmissiveStrength], nil)
	r.Register(ExtMeshQuantization, func(*gltfDocument, json.RawMessage) (ExtensionPayload, error) {
		return &MeshQuantization{}, nil
	}, nil)
	return r
}

// Register adds or replaces an extension.
//
// Parameters:
//   - name: the extension name
//   - decode: the payload decoder
//   - executable: the capability requirement, nil when the extension needs no optional component
func (r *ExtensionRegistry) Register(name string, decode ExtensionDecoder, executable CapabilityCheck) {
	r.entries[name] = extensionEntry{decode: decode, executable: executable}
}

// Known reports whether name has a registered decoder.
func (r *ExtensionRegistry) Known(name string) bool {
	_, ok := r.entries[name]
	return ok
}

// Executable reports whether name is registered and its requirements are met by caps.
func (r *ExtensionRegistry) Executable(name string, caps Capabilities) bool {
	e, ok := r.entries[name]
	if !ok {
		return false
	}
	return e.executable == nil || e.executable(caps)
}

// Names returns the registered extension names in sorted order.
func (r *ExtensionRegistry) Names() []string {
	names := make([]string, 0, len(r.entries))
	for n := range r.entries {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Decode runs the decoder registered for name.
//
// Parameters:
//   - doc: the document being parsed
//   - name: the extension name
//   - raw: the extension object
//
// Returns:
//   - ExtensionPayload: the payload, nil when name is not registered
//   - error: error if the object is malformed
func (r *ExtensionRegistry) Decode(doc *gltfDocument, name string, raw json.RawMessage) (ExtensionPayload, error) {
	e, ok := r.entries[name]
	if !ok {
		return nil, nil
	}
	return e.decode(doc, raw)
}

// attach decodes every registered extension object on an entity.
func (r *ExtensionRegistry) attach(doc *gltfDocument, ext *gltfExtensible, entity string, index int) error {
	for name, raw := range ext.Extensions {
		payload, err := r.Decode(doc, name, raw)
		if err != nil {
			return wrapImportError(ErrParse, entity, index, err, "extension "+name)
		}
		if payload == nil {
			continue
		}
		if ext.payloads == nil {
			ext.payloads = make(map[string]ExtensionPayload, len(ext.Extensions))
		}
		ext.payloads[name] = payload
	}
	return nil
}

// attachAll decodes the extension objects of every entity kind that carries them and
// records required extensions that have no decoder.
func (r *ExtensionRegistry) attachAll(doc *gltfDocument) error {
	for i := range doc.Textures {
		if err := r.attach(doc, &doc.Textures[i].gltfExtensible, entityTexture, i); err != nil {
			return err
		}
	}
	for i := range doc.Materials {
		if err := r.attach(doc, &doc.Materials[i].gltfExtensible, entityMaterial, i); err != nil {
			return err
		}
	}
	for i := range doc.Meshes {
		for p := range doc.Meshes[i].Primitives {
			if err := r.attach(doc, &doc.Meshes[i].Primitives[p].gltfExtensible, entityMesh, i); err != nil {
				return err
			}
		}
	}
	for i := range doc.Nodes {
		if err := r.attach(doc, &doc.Nodes[i].gltfExtensible, entityNode, i); err != nil {
			return err
		}
	}

	doc.unknownRequired = doc.unknownRequired[:0]
	for _, name := range doc.ExtensionsRequired {
		if !r.Known(name) {
			doc.unknownRequired = append(doc.unknownRequired, name)
		}
	}
	return nil
}

// checkRequiredExtensions fails when a required extension is unknown or cannot be executed
// with caps. It runs before any buffer is read.
//
// Parameters:
//   - doc: the parsed document
//   - r: the registry used for parsing
//   - caps: the configured optional decoders
//
// Returns:
//   - error: an ErrRequiredExtensionUnsupported ImportError, or nil
func checkRequiredExtensions(doc *gltfDocument, r *ExtensionRegistry, caps Capabilities) error {
	if len(doc.unknownRequired) > 0 {
		return newImportError(ErrRequiredExtensionUnsupported, entityExtension, -1,
			"required extension %s is not supported", doc.unknownRequired[0])
	}
	for _, name := range doc.ExtensionsRequired {
		if !r.Executable(name, caps) {
			return newImportError(ErrRequiredExtensionUnsupported, entityExtension, -1,
				"required extension %s cannot be executed: no decoder configured", name)
		}
	}
	return nil
}

// --- Built-in Decoders ---

// decodeStructural unmarshals raw into a fresh T.
func decodeStructural[T any, P interface {
	*T
	ExtensionPayload
}](_ *gltfDocument, raw json.RawMessage) (ExtensionPayload, error) {
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, err
	}
	return P(&v), nil
}

// decodeTextureSource decodes an image-replacing texture extension and checks its source index.
func decodeTextureSource[T TextureBasisu | TextureWebP](doc *gltfDocument, raw json.RawMessage) (ExtensionPayload, error) {
	var src struct {
		Source *int `json:"source"`
	}
	if err := json.Unmarshal(raw, &src); err != nil {
		return nil, err
	}
	if src.Source == nil {
		return nil, errors.New("missing source")
	}
	if *src.Source < 0 || *src.Source >= len(doc.Images) {
		return nil, newImportError(ErrReferenceOutOfRange, entityImage, *src.Source, "texture extension source out of range")
	}
	var v T
	switch p := any(&v).(type) {
	case *TextureBasisu:
		p.Source = *src.Source
		return p, nil
	case *TextureWebP:
		p.Source = *src.Source
		return p, nil
	}
	return nil, errors.New("unsupported texture extension type")
}

func decodeDracoMeshCompression(doc *gltfDocument, raw json.RawMessage) (ExtensionPayload, error) {
	var v struct {
		BufferView *int           `json:"bufferView"`
		Attributes map[string]int `json:"attributes"`
	}
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, err
	}
	if v.BufferView == nil {
		return nil, errors.New("missing bufferView")
	}
	if *v.BufferView < 0 || *v.BufferView >= len(doc.BufferViews) {
		return nil, newImportError(ErrReferenceOutOfRange, entityView, *v.BufferView, "compressed primitive bufferView out of range")
	}
	return &DracoMeshCompression{BufferView: *v.BufferView, Attributes: v.Attributes}, nil
}
