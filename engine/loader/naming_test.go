package loader

import (
	"strings"
	"testing"

	"github.com/Carmen-Shannon/oxy-import/engine/model"
	"github.com/chewxy/math32"
	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"
)

func TestNameRegistry_Unique(t *testing.T) {
	r := newNameRegistry()
	assert.Equal(t, "Body", r.unique(nameCategoryMesh, "Body", "mesh_0"))
	assert.Equal(t, "body_1", r.unique(nameCategoryMesh, "body", "mesh_1"))
	assert.Equal(t, "Body_2", r.unique(nameCategoryMesh, "Body", "mesh_2"))
	// Categories are independent.
	assert.Equal(t, "Body", r.unique(nameCategoryMaterial, "Body", "material_0"))
	// Illegal characters are replaced; empty names take the fallback.
	assert.Equal(t, "a_b_c", r.unique(nameCategoryTexture, "a/b:c", "texture_0"))
	assert.Equal(t, "texture_1", r.unique(nameCategoryTexture, " .. ", "texture_1"))
}

func TestReserveName_Property(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		set := make(map[string]struct{})
		bases := rapid.SliceOf(rapid.SampledFrom([]string{"a", "A", "a_1", "", "x/y", "Mesh"})).Draw(t, "bases")
		seen := make(map[string]bool)
		for _, b := range bases {
			name := reserveName(set, b, "fallback")
			lower := strings.ToLower(name)
			if seen[lower] {
				t.Fatalf("name %q handed out twice", name)
			}
			seen[lower] = true
			if strings.ContainsAny(name, `<>:"/\|?*`) || name == "" {
				t.Fatalf("illegal name %q", name)
			}
		}
	})
}

func TestSelectIndexFormat(t *testing.T) {
	assert.Equal(t, model.IndexFormatUint16, SelectIndexFormat(3))
	assert.Equal(t, model.IndexFormatUint16, SelectIndexFormat(65535))
	assert.Equal(t, model.IndexFormatUint32, SelectIndexFormat(65536))
}

func TestDistributeMorphWeights(t *testing.T) {
	tests := []struct {
		name    string
		weights []float32
		counts  []int
		want    [][]float32
		ok      bool
	}{
		{"no weights", nil, []int{2, 0}, [][]float32{{0, 0}, {}}, true},
		{"shared by uniform primitives", []float32{0.5, 1}, []int{2, 2}, [][]float32{{0.5, 1}, {0.5, 1}}, true},
		{"sequential", []float32{0.1, 0.2, 0.3}, []int{1, 2}, [][]float32{{0.1}, {0.2, 0.3}}, true},
		{"primitive without targets", []float32{0.7}, []int{0, 1}, [][]float32{{}, {0.7}}, true},
		{"mismatch", []float32{1, 1, 1, 1, 1}, []int{1, 2}, [][]float32{{0}, {0, 0}}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := distributeMorphWeights(tt.weights, tt.counts)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNormalizeBoneWeight_Property(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		var weights [4]float32
		for k := range weights {
			weights[k] = rapid.Float32Range(-1, 10).Draw(t, "weight")
		}
		joints := [4]uint32{1, 2, 3, 4}

		bw := normalizeBoneWeight(joints, weights)
		if bw.Joints != joints {
			t.Fatalf("joints changed: %v", bw.Joints)
		}
		var sum float32
		for k, w := range bw.Weights {
			if w < 0 || math32.IsNaN(w) {
				t.Fatalf("weight %d is %v", k, w)
			}
			if weights[k] <= 0 && w != 0 && !(k == 0 && bw.Weights == [4]float32{1, 0, 0, 0}) {
				t.Fatalf("non-positive input %v became %v", weights[k], w)
			}
			sum += w
		}
		if math32.Abs(sum-1) > 1e-5 {
			t.Fatalf("weights %v sum to %v", bw.Weights, sum)
		}
	})
}

func TestNormalizeBoneWeight_Degenerate(t *testing.T) {
	bw := normalizeBoneWeight([4]uint32{5, 6, 7, 8}, [4]float32{0, -1, math32.NaN(), 0})
	assert.Equal(t, [4]float32{1, 0, 0, 0}, bw.Weights)

	bw = normalizeBoneWeight([4]uint32{}, [4]float32{2, 2, 0, 0})
	assert.Equal(t, [4]float32{0.5, 0.5, 0, 0}, bw.Weights)
}

func TestDisplayName(t *testing.T) {
	assert.Equal(t, "Fox", displayName("assets/Fox.glb"))
	assert.Equal(t, "scene", displayName(`C:\models\scene.gltf`))
	assert.Equal(t, "model", displayName("https://example.com/a/model.gltf"))
	assert.Equal(t, "plain", displayName("plain"))
}
