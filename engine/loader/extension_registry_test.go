package loader

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultExtensionRegistry(t *testing.T) {
	r := DefaultExtensionRegistry()
	assert.Equal(t, []string{
		ExtTextureWebP,
		ExtDracoMeshCompression,
		ExtMaterialsEmissiveStrength,
		ExtPbrSpecularGlossiness,
		ExtMeshQuantization,
		ExtTextureBasisu,
	}, r.Names())

	assert.True(t, r.Known(ExtDracoMeshCompression))
	assert.False(t, r.Executable(ExtDracoMeshCompression, Capabilities{}))
	assert.True(t, r.Executable(ExtDracoMeshCompression, Capabilities{Decompressor: &fakeDecompressor{}}))
	assert.True(t, r.Executable(ExtTextureWebP, Capabilities{}))
	assert.False(t, r.Executable("VENDOR_unknown", Capabilities{}))
}

func TestRegistry_CustomExtension(t *testing.T) {
	r := NewExtensionRegistry()
	r.Register("VENDOR_marker", func(*gltfDocument, json.RawMessage) (ExtensionPayload, error) {
		return &MeshQuantization{}, nil
	}, nil)
	assert.Equal(t, []string{"VENDOR_marker"}, r.Names())

	payload, err := r.Decode(&gltfDocument{}, "VENDOR_marker", json.RawMessage(`{}`))
	require.NoError(t, err)
	assert.NotNil(t, payload)

	payload, err = r.Decode(&gltfDocument{}, "VENDOR_other", json.RawMessage(`{}`))
	require.NoError(t, err)
	assert.Nil(t, payload)
}

func TestCheckRequiredExtensions(t *testing.T) {
	tests := []struct {
		name     string
		required []string
		caps     Capabilities
		wantErr  bool
	}{
		{name: "none"},
		{name: "structural", required: []string{ExtMeshQuantization}},
		{name: "unknown", required: []string{"VENDOR_unknown"}, wantErr: true},
		{name: "draco without decompressor", required: []string{ExtDracoMeshCompression}, wantErr: true},
		{name: "draco with decompressor", required: []string{ExtDracoMeshCompression}, caps: Capabilities{Decompressor: &fakeDecompressor{}}},
		{name: "basisu without transcoder", required: []string{ExtTextureBasisu}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := DefaultExtensionRegistry()
			doc := &gltfDocument{ExtensionsRequired: tt.required}
			require.NoError(t, r.attachAll(doc))

			err := checkRequiredExtensions(doc, r, tt.caps)
			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}
			kind, ok := KindOf(err)
			require.True(t, ok)
			assert.Equal(t, ErrRequiredExtensionUnsupported, kind)
		})
	}
}

func TestDecodeDracoMeshCompression(t *testing.T) {
	doc := &gltfDocument{BufferViews: make([]gltfBufferView, 2)}

	p, err := decodeDracoMeshCompression(doc, json.RawMessage(`{"bufferView":1,"attributes":{"POSITION":0}}`))
	require.NoError(t, err)
	d := p.(*DracoMeshCompression)
	assert.Equal(t, 1, d.BufferView)
	assert.Equal(t, map[string]int{"POSITION": 0}, d.Attributes)

	_, err = decodeDracoMeshCompression(doc, json.RawMessage(`{"attributes":{}}`))
	assert.Error(t, err)
	_, err = decodeDracoMeshCompression(doc, json.RawMessage(`{"bufferView":2}`))
	assert.Error(t, err)
}
