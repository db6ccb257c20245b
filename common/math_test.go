package common

import (
	"testing"

	"github.com/chewxy/math32"
	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"
)

func axisMask() *rapid.Generator[AxisMask] {
	return rapid.Custom(func(t *rapid.T) AxisMask {
		return AxisMask(rapid.IntRange(0, 7).Draw(t, "mask"))
	})
}

func vec3() *rapid.Generator[[3]float32] {
	return rapid.Custom(func(t *rapid.T) [3]float32 {
		return [3]float32{
			rapid.Float32Range(-100, 100).Draw(t, "x"),
			rapid.Float32Range(-100, 100).Draw(t, "y"),
			rapid.Float32Range(-100, 100).Draw(t, "z"),
		}
	})
}

func unitQuaternion() *rapid.Generator[[4]float32] {
	return rapid.Custom(func(t *rapid.T) [4]float32 {
		q := [4]float32{
			rapid.Float32Range(-1, 1).Draw(t, "qx"),
			rapid.Float32Range(-1, 1).Draw(t, "qy"),
			rapid.Float32Range(-1, 1).Draw(t, "qz"),
			rapid.Float32Range(0.1, 1).Draw(t, "qw"),
		}
		return NormalizeQuaternion(q)
	})
}

func TestAxisMask(t *testing.T) {
	assert.False(t, AxisMask(0).Odd())
	assert.True(t, AxisZ.Odd())
	assert.False(t, (AxisX | AxisZ).Odd())
	assert.True(t, (AxisX | AxisY | AxisZ).Odd())

	assert.Equal(t, AxisZ, Correction(0, TargetConvention))
	assert.Equal(t, AxisMask(0), Correction(TargetConvention, TargetConvention))
	assert.Equal(t, AxisX|AxisZ, Correction(AxisX, AxisZ))
}

func TestFlip_Involution(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		m := axisMask().Draw(t, "m")
		v := vec3().Draw(t, "v")
		if got := FlipVec3(FlipVec3(v, m), m); got != v {
			t.Fatalf("FlipVec3 twice: %v != %v", got, v)
		}
		q := unitQuaternion().Draw(t, "q")
		if got := FlipQuaternion(FlipQuaternion(q, m), m); got != q {
			t.Fatalf("FlipQuaternion twice: %v != %v", got, q)
		}
		tan := [4]float32{v[0], v[1], v[2], 1}
		if got := FlipTangent(FlipTangent(tan, m), m); got != tan {
			t.Fatalf("FlipTangent twice: %v != %v", got, tan)
		}
	})
}

func TestFlipQuaternion_Z(t *testing.T) {
	assert.Equal(t, [4]float32{1, 2, -3, -4}, FlipQuaternion([4]float32{1, 2, 3, 4}, AxisZ))
	assert.Equal(t, [4]float32{1, 2, 3, 4}, FlipQuaternion([4]float32{1, 2, 3, 4}, 0))
}

// Converting a TRS and composing must equal composing and then conjugating the matrix.
func TestFlipMatrix_MatchesFlippedTRS(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		m := axisMask().Draw(t, "m")
		tr := vec3().Draw(t, "t")
		q := unitQuaternion().Draw(t, "q")
		s := [3]float32{
			rapid.Float32Range(0.1, 5).Draw(t, "sx"),
			rapid.Float32Range(0.1, 5).Draw(t, "sy"),
			rapid.Float32Range(0.1, 5).Draw(t, "sz"),
		}

		want := FlipMatrix(ComposeTRS(tr, q, s), m)
		got := ComposeTRS(FlipVec3(tr, m), FlipQuaternion(q, m), s)
		for i := range want {
			if math32.Abs(want[i]-got[i]) > 1e-3 {
				t.Fatalf("element %d: %v != %v", i, got[i], want[i])
			}
		}
	})
}

func TestDecomposeMatrix_RoundTrip(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		tr := vec3().Draw(t, "t")
		q := unitQuaternion().Draw(t, "q")
		s := [3]float32{
			rapid.Float32Range(0.5, 3).Draw(t, "sx"),
			rapid.Float32Range(0.5, 3).Draw(t, "sy"),
			rapid.Float32Range(0.5, 3).Draw(t, "sz"),
		}

		gotT, gotQ, gotS := DecomposeMatrix(ComposeTRS(tr, q, s))
		if gotT != tr {
			t.Fatalf("translation %v != %v", gotT, tr)
		}
		for i := range s {
			if math32.Abs(gotS[i]-s[i]) > 1e-3 {
				t.Fatalf("scale %v != %v", gotS, s)
			}
		}
		// q and -q are the same rotation.
		dot := gotQ[0]*q[0] + gotQ[1]*q[1] + gotQ[2]*q[2] + gotQ[3]*q[3]
		if math32.Abs(math32.Abs(dot)-1) > 1e-3 {
			t.Fatalf("rotation %v != %v", gotQ, q)
		}
	})
}

func TestMul4_Identity(t *testing.T) {
	a := ComposeTRS([3]float32{1, 2, 3}, [4]float32{0, 0, 0, 1}, [3]float32{2, 2, 2})
	id := Identity4()
	out := make([]float32, 16)
	Mul4(out, a[:], id[:])
	assert.Equal(t, a[:], out)
	Mul4(out, id[:], a[:])
	assert.Equal(t, a[:], out)
}

func TestVectorHelpers(t *testing.T) {
	n, ok := Normalize3([3]float32{0, 3, 4})
	assert.True(t, ok)
	assert.InDeltaSlice(t, []float32{0, 0.6, 0.8}, n[:], 1e-6)

	_, ok = Normalize3([3]float32{})
	assert.False(t, ok)

	assert.Equal(t, [3]float32{0, 0, 1}, Cross3([3]float32{1, 0, 0}, [3]float32{0, 1, 0}))
	assert.Equal(t, float32(32), Dot3([3]float32{1, 2, 3}, [3]float32{4, 5, 6}))
	assert.Equal(t, [3]float32{-3, -3, -3}, Sub3([3]float32{1, 2, 3}, [3]float32{4, 5, 6}))
	assert.Equal(t, [4]float32{0, 0, 0, 1}, NormalizeQuaternion([4]float32{}))
}

func TestSanitizeFileName(t *testing.T) {
	assert.Equal(t, "a_b_c", SanitizeFileName("a/b:c"))
	assert.Equal(t, "tab_name", SanitizeFileName(" tab\tname. "))
	assert.Equal(t, "", SanitizeFileName(" ... "))
	assert.Equal(t, "x", Coalesce("", "x", "y"))
	assert.Equal(t, 0, Coalesce(0, 0))
}
