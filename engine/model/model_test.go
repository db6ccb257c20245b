package model

import (
	"testing"

	"github.com/chewxy/math32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func linearCurve(prop CurveProperty, keys ...Keyframe) *AnimationCurve {
	return &AnimationCurve{Property: prop, Interpolation: InterpolationLinear, Keys: keys}
}

func TestAnimationCurve_EvaluateLinear(t *testing.T) {
	c := linearCurve(CurveTranslation,
		Keyframe{Time: 1, Value: []float32{0, 0, 0}},
		Keyframe{Time: 3, Value: []float32{2, 4, -2}},
	)
	assert.Equal(t, []float32{0, 0, 0}, c.Evaluate(0))
	assert.Equal(t, []float32{1, 2, -1}, c.Evaluate(2))
	assert.Equal(t, []float32{2, 4, -2}, c.Evaluate(10))
	assert.Equal(t, float32(3), c.Duration())

	// The result is a copy.
	v := c.Evaluate(0)
	v[0] = 99
	assert.Equal(t, float32(0), c.Keys[0].Value[0])
}

func TestAnimationCurve_EvaluateStep(t *testing.T) {
	c := &AnimationCurve{
		Property:      CurveScale,
		Interpolation: InterpolationStep,
		Keys: []Keyframe{
			{Time: 0, Value: []float32{1, 1, 1}},
			{Time: 1, Value: []float32{2, 2, 2}},
		},
	}
	assert.Equal(t, []float32{1, 1, 1}, c.Evaluate(0.99))
	assert.Equal(t, []float32{2, 2, 2}, c.Evaluate(1))
}

func TestAnimationCurve_EvaluateCubic(t *testing.T) {
	c := &AnimationCurve{
		Property:      CurveBlendWeight,
		Interpolation: InterpolationCubicSpline,
		Keys: []Keyframe{
			{Time: 0, Value: []float32{0}, InTangent: []float32{0}, OutTangent: []float32{0}},
			{Time: 2, Value: []float32{1}, InTangent: []float32{0}, OutTangent: []float32{0}},
		},
	}
	// Flat tangents give the smoothstep curve.
	assert.InDelta(t, 0.5, c.Evaluate(1)[0], 1e-6)
	assert.InDelta(t, 0.15625, c.Evaluate(0.5)[0], 1e-6)

	// Tangents scale with the key interval.
	c.Keys[0].OutTangent = []float32{1}
	assert.InDelta(t, 0.5+0.125*2, c.Evaluate(1)[0], 1e-6)
}

func TestAnimationCurve_EvaluateRotationTakesShortArc(t *testing.T) {
	s := math32.Sqrt(0.5)
	c := linearCurve(CurveRotation,
		Keyframe{Time: 0, Value: []float32{0, 0, 0, 1}},
		// -q for a 90 degree turn about Y.
		Keyframe{Time: 1, Value: []float32{0, -s, 0, -s}},
	)
	q := c.Evaluate(0.5)
	require.Len(t, q, 4)
	assert.Greater(t, q[3], float32(0))
	assert.Greater(t, q[1], float32(0))
	assert.InDelta(t, 1, q[0]*q[0]+q[1]*q[1]+q[2]*q[2]+q[3]*q[3], 1e-5)
}

func TestAnimationCurve_EvaluateEmpty(t *testing.T) {
	assert.Nil(t, (&AnimationCurve{}).Evaluate(1))
	assert.Equal(t, float32(0), (&AnimationCurve{}).Duration())
}

func TestAnimationCurve_LinearStaysBetweenKeys(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		a := rapid.Float32Range(-10, 10).Draw(t, "a")
		b := rapid.Float32Range(-10, 10).Draw(t, "b")
		at := rapid.Float32Range(-1, 2).Draw(t, "t")
		c := linearCurve(CurveBlendWeight,
			Keyframe{Time: 0, Value: []float32{a}},
			Keyframe{Time: 1, Value: []float32{b}},
		)
		v := c.Evaluate(at)[0]
		lo, hi := math32.Min(a, b), math32.Max(a, b)
		if v < lo-1e-5 || v > hi+1e-5 {
			t.Fatalf("value %v outside [%v, %v]", v, lo, hi)
		}
	})
}

func TestNewAnimationClip(t *testing.T) {
	clip := NewAnimationClip("Walk", 2, []AnimationCurve{
		{TargetPath: "Hips", Keys: []Keyframe{{Time: 0.5}}},
		{TargetPath: "Hips/Spine", Keys: []Keyframe{{Time: 0}, {Time: 1.25}}},
		{TargetPath: "Hips", Property: CurveRotation, Keys: []Keyframe{{Time: 1}}},
	})
	assert.Equal(t, float32(1.25), clip.Duration)
	assert.Len(t, clip.CurvesFor("Hips"), 2)
	assert.Len(t, clip.CurvesFor("Hips/Spine"), 1)
	assert.Empty(t, clip.CurvesFor("Head"))
}

func buildHierarchy() *SceneObject {
	root := &SceneObject{Name: "root", NodeIndex: -1}
	arm := &SceneObject{Name: "Arm", Path: "Arm", Parent: root}
	hand := &SceneObject{Name: "Hand", Path: "Arm/Hand", Parent: arm}
	leg := &SceneObject{Name: "Leg", Path: "Leg", Parent: root}
	arm.Children = []*SceneObject{hand}
	root.Children = []*SceneObject{arm, leg}
	return root
}

func TestSceneObject_FindAndWalk(t *testing.T) {
	root := buildHierarchy()
	assert.Same(t, root, root.Find(""))
	assert.Equal(t, "Hand", root.Find("Arm/Hand").Name)
	assert.Equal(t, "Leg", root.Find("Leg").Name)
	assert.Nil(t, root.Find("Arm/Foot"))

	var visited []string
	root.Walk(func(o *SceneObject) bool {
		visited = append(visited, o.Path)
		return o.Path != "Arm"
	})
	assert.Equal(t, []string{"", "Arm", "Leg"}, visited)
}

func TestModel_Accessors(t *testing.T) {
	clips := []*AnimationClip{NewAnimationClip("Walk", 0, nil), nil, NewAnimationClip("Static Pose", -1, nil)}
	root := buildHierarchy()
	m := NewModel(
		WithName("fox.glb"),
		WithRoot(root),
		WithAnimations(clips),
		WithNodeObjects([][]*SceneObject{{root.Children[0]}}),
		WithWarnings([]ImportWarning{{Kind: "invalid skin", Entity: "skin"}}),
	)

	assert.Equal(t, "fox.glb", m.Name())
	assert.Equal(t, 3, m.ObjectCount())
	assert.Equal(t, []string{"Walk", "Static Pose"}, m.AnimationNames())
	assert.Equal(t, 2, m.GetAnimationIndex("Static Pose"))
	assert.Equal(t, -1, m.GetAnimationIndex("Run"))
	assert.Equal(t, "Arm", m.NodeObjects(0)[0].Name)
	assert.Nil(t, m.NodeObjects(1))
	assert.Nil(t, m.NodeObjects(-1))
	assert.Len(t, m.Warnings(), 1)

	assert.Equal(t, 0, NewModel().ObjectCount())
}

func TestGeometry_Indices(t *testing.T) {
	g := &Geometry{IndexFormat: IndexFormatUint16, Indices16: []uint16{0, 2, 1}}
	assert.Equal(t, 3, g.IndexCount())
	assert.Equal(t, uint32(2), g.Index(1))

	g = &Geometry{IndexFormat: IndexFormatUint32, Indices32: []uint32{70000}}
	assert.Equal(t, 1, g.IndexCount())
	assert.Equal(t, uint32(70000), g.Index(0))
	assert.Equal(t, "uint32", IndexFormatUint32.String())
}
