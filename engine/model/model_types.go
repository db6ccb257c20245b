package model

import (
	"sort"
	"strings"

	"github.com/Carmen-Shannon/oxy-import/common"
	"github.com/chewxy/math32"
)

// --- Transform & Skeleton Types ---

// Transform represents a decomposed local transform.
type Transform struct {
	// Translation is the position offset.
	Translation [3]float32

	// Rotation is the orientation as a quaternion (x, y, z, w).
	Rotation [4]float32

	// Scale is the scale factor along each axis.
	Scale [3]float32
}

// IdentityTransform returns the rest transform: no translation, identity rotation, unit scale.
func IdentityTransform() Transform {
	return Transform{
		Rotation: [4]float32{0, 0, 0, 1},
		Scale:    [3]float32{1, 1, 1},
	}
}

// Bone represents a single joint of a skin.
type Bone struct {
	// Name is the bone's identifier (the joint object's name).
	Name string

	// ParentIndex is the index of the closest ancestor that is also a joint of the same skin (-1 for root bones).
	ParentIndex int32

	// InverseBindMatrix transforms from model space to bone space at bind pose, in the target convention.
	InverseBindMatrix [16]float32

	// Object is the scene object the joint resolved to.
	Object *SceneObject
}

// Skin represents a decoded, valid skin. Bones are in source joint order, so vertex joint
// indices address Bones directly.
type Skin struct {
	// Name is the skin identifier.
	Name string

	// Index is the skin index in the source document.
	Index int

	// Bones are the skin joints.
	Bones []Bone

	// Root is the skeleton root object, nil when the source does not name one.
	Root *SceneObject
}

// BoneWeight holds the four joint influences of a vertex. Weights sum to 1.
type BoneWeight struct {
	Joints  [4]uint32
	Weights [4]float32
}

// --- Geometry Types ---

// IndexFormat is the integer width chosen for a primitive's index buffer.
type IndexFormat int

const (
	// IndexFormatUint16 is used when the primitive has at most 65535 vertices.
	IndexFormatUint16 IndexFormat = iota
	// IndexFormatUint32 is used for larger primitives.
	IndexFormatUint32
)

// String returns the format name.
func (f IndexFormat) String() string {
	if f == IndexFormatUint32 {
		return "uint32"
	}
	return "uint16"
}

// Geometry is the decoded vertex and index data of one mesh primitive, in the target convention.
type Geometry struct {
	// Name is a unique, filesystem-legal identifier.
	Name string

	// MeshIndex and PrimitiveIndex locate the primitive in the source document.
	MeshIndex, PrimitiveIndex int

	// Positions are the vertex positions.
	Positions [][3]float32

	// Normals are the vertex normals (generated when the source omits them).
	Normals [][3]float32

	// Tangents are xyz tangents with handedness in W (generated when the source omits them).
	Tangents [][4]float32

	// UVs holds up to four texture coordinate sets; V is already re-mapped to 1 - v.
	UVs [4][][2]float32

	// Colors are RGBA vertex colors, nil when absent.
	Colors [][4]float32

	// IndexFormat selects which of Indices16 / Indices32 is populated.
	IndexFormat IndexFormat

	// Indices16 holds the triangle list when IndexFormat is IndexFormatUint16.
	Indices16 []uint16

	// Indices32 holds the triangle list when IndexFormat is IndexFormatUint32.
	Indices32 []uint32

	// BoundingMin is the minimum corner of the axis-aligned bounding box.
	BoundingMin [3]float32

	// BoundingMax is the maximum corner of the axis-aligned bounding box.
	BoundingMax [3]float32

	// Compressed is true when the primitive came from a geometry compression extension.
	Compressed bool
}

// VertexCount returns the number of vertices.
func (g *Geometry) VertexCount() int {
	return len(g.Positions)
}

// IndexCount returns the number of indices.
func (g *Geometry) IndexCount() int {
	if g.IndexFormat == IndexFormatUint32 {
		return len(g.Indices32)
	}
	return len(g.Indices16)
}

// Index returns the i-th index widened to uint32.
func (g *Geometry) Index(i int) uint32 {
	if g.IndexFormat == IndexFormatUint32 {
		return g.Indices32[i]
	}
	return uint32(g.Indices16[i])
}

// BlendShape is one morph target of a primitive, expressed as per-vertex deltas.
type BlendShape struct {
	// Name is derived from the mesh and target indices unless the source names its targets.
	Name string

	// TargetIndex is the target's index within its primitive.
	TargetIndex int

	// PositionDeltas, NormalDeltas and TangentDeltas are nil when the target omits the attribute.
	PositionDeltas [][3]float32
	NormalDeltas   [][3]float32
	TangentDeltas  [][3]float32
}

// --- Scene Graph ---

// SceneObject is one instantiated hierarchy node. A source node whose mesh has several
// primitives produces one object per primitive; the extra objects are siblings that share
// the node's parent and local transform.
type SceneObject struct {
	// Name is the object's name; sibling objects for extra primitives get a primitive suffix.
	Name string

	// Path is the slash-separated hierarchy path from the scene root.
	Path string

	// NodeIndex is the source node index (-1 for the synthetic root).
	NodeIndex int

	// PrimitiveIndex is the mesh primitive rendered by this object, -1 when it has none.
	PrimitiveIndex int

	// Local is the local transform in the target convention.
	Local Transform

	// Parent is nil only for the root.
	Parent *SceneObject

	// Children are the child objects in instantiation order.
	Children []*SceneObject

	// Geometry is the primitive's geometry; nil for non-mesh nodes and skipped primitives.
	Geometry *Geometry

	// Material is the primitive's material.
	Material *common.ImportedMaterial

	// Skin is the skin binding, nil when the node has no skin or its skin was skipped.
	Skin *Skin

	// BoneWeights holds one entry per vertex when Skin is set.
	BoneWeights []BoneWeight

	// BlendShapes are the primitive's morph targets.
	BlendShapes []*BlendShape

	// BlendWeights are the default-pose weights, one per blend shape.
	BlendWeights []float32
}

// Walk visits the object and its descendants depth-first. Returning false from fn stops descent into that object's children.
//
// Parameters:
//   - fn: visitor called for every object
func (o *SceneObject) Walk(fn func(*SceneObject) bool) {
	if o == nil || !fn(o) {
		return
	}
	for _, c := range o.Children {
		c.Walk(fn)
	}
}

// Find returns the descendant (or self) with the given hierarchy path, or nil.
func (o *SceneObject) Find(path string) *SceneObject {
	var found *SceneObject
	o.Walk(func(so *SceneObject) bool {
		if found != nil {
			return false
		}
		if so.Path == path {
			found = so
			return false
		}
		return so.Path == "" || strings.HasPrefix(path, so.Path+"/")
	})
	return found
}

// --- Animation Types ---

// CurveProperty identifies the animated property of a curve.
type CurveProperty int

const (
	CurveTranslation CurveProperty = iota
	CurveRotation
	CurveScale
	// CurveBlendWeight animates one blend shape weight.
	CurveBlendWeight
)

// String returns the property name.
func (p CurveProperty) String() string {
	switch p {
	case CurveTranslation:
		return "translation"
	case CurveRotation:
		return "rotation"
	case CurveScale:
		return "scale"
	default:
		return "weight"
	}
}

// Interpolation is the keyframe interpolation mode of a curve.
type Interpolation int

const (
	InterpolationLinear Interpolation = iota
	InterpolationStep
	InterpolationCubicSpline
)

// Keyframe is a single curve key. InTangent and OutTangent are only set for cubic spline curves.
type Keyframe struct {
	Time       float32
	Value      []float32
	InTangent  []float32
	OutTangent []float32
}

// AnimationCurve animates one property of one scene object.
type AnimationCurve struct {
	// TargetPath is the hierarchy path of the animated object.
	TargetPath string

	// Property is the animated property.
	Property CurveProperty

	// BlendShape is the blend shape name for CurveBlendWeight curves.
	BlendShape string

	// Interpolation is the keyframe interpolation mode.
	Interpolation Interpolation

	// Keys are sorted by time.
	Keys []Keyframe
}

// Evaluate samples the curve at time t. Times before the first key or after the last key clamp.
// Rotation curves are re-normalized after interpolation.
//
// Parameters:
//   - t: the sample time in seconds
//
// Returns:
//   - []float32: the sampled value, nil for an empty curve
func (c *AnimationCurve) Evaluate(t float32) []float32 {
	n := len(c.Keys)
	if n == 0 {
		return nil
	}
	if n == 1 || t <= c.Keys[0].Time {
		return append([]float32(nil), c.Keys[0].Value...)
	}
	if t >= c.Keys[n-1].Time {
		return append([]float32(nil), c.Keys[n-1].Value...)
	}

	i := sort.Search(n, func(i int) bool { return c.Keys[i].Time > t })
	k0, k1 := c.Keys[i-1], c.Keys[i]
	dt := k1.Time - k0.Time
	u := float32(0)
	if dt > 0 {
		u = (t - k0.Time) / dt
	}

	out := make([]float32, len(k0.Value))
	switch c.Interpolation {
	case InterpolationStep:
		copy(out, k0.Value)
		return out
	case InterpolationCubicSpline:
		u2, u3 := u*u, u*u*u
		h00 := 2*u3 - 3*u2 + 1
		h10 := u3 - 2*u2 + u
		h01 := -2*u3 + 3*u2
		h11 := u3 - u2
		for j := range out {
			out[j] = h00*k0.Value[j] + h01*k1.Value[j]
			if j < len(k0.OutTangent) {
				out[j] += h10 * dt * k0.OutTangent[j]
			}
			if j < len(k1.InTangent) {
				out[j] += h11 * dt * k1.InTangent[j]
			}
		}
	default:
		sign := float32(1)
		if c.Property == CurveRotation {
			// nlerp along the shorter arc
			var dot float32
			for j := range k0.Value {
				dot += k0.Value[j] * k1.Value[j]
			}
			if dot < 0 {
				sign = -1
			}
		}
		for j := range out {
			out[j] = k0.Value[j] + (sign*k1.Value[j]-k0.Value[j])*u
		}
	}

	if c.Property == CurveRotation && len(out) == 4 {
		q := common.NormalizeQuaternion([4]float32{out[0], out[1], out[2], out[3]})
		copy(out, q[:])
	}
	return out
}

// Duration returns the time of the last key.
func (c *AnimationCurve) Duration() float32 {
	if len(c.Keys) == 0 {
		return 0
	}
	return c.Keys[len(c.Keys)-1].Time
}

// AnimationClip is a named set of curves.
type AnimationClip struct {
	// Name is a unique, filesystem-legal clip name.
	Name string

	// Index is the source animation index (-1 for the static pose clip).
	Index int

	// Duration is the length of the clip in seconds.
	Duration float32

	// Curves are grouped by target path in channel order.
	Curves []AnimationCurve
}

// CurvesFor returns the clip's curves targeting the given hierarchy path.
func (a *AnimationClip) CurvesFor(path string) []*AnimationCurve {
	var out []*AnimationCurve
	for i := range a.Curves {
		if a.Curves[i].TargetPath == path {
			out = append(out, &a.Curves[i])
		}
	}
	return out
}

// computeDuration returns the longest curve duration.
func computeDuration(curves []AnimationCurve) float32 {
	var d float32
	for i := range curves {
		d = math32.Max(d, curves[i].Duration())
	}
	return d
}

// NewAnimationClip builds a clip and derives its duration from the curves.
//
// Parameters:
//   - name: the clip name
//   - index: the source animation index
//   - curves: the clip curves
//
// Returns:
//   - *AnimationClip: the clip
func NewAnimationClip(name string, index int, curves []AnimationCurve) *AnimationClip {
	return &AnimationClip{
		Name:     name,
		Index:    index,
		Duration: computeDuration(curves),
		Curves:   curves,
	}
}

// --- Diagnostics ---

// ImportWarning records a recoverable problem that left a placeholder in the result.
type ImportWarning struct {
	// Kind is the error kind name (e.g. "invalid skin").
	Kind string

	// Entity is the entity kind (e.g. "skin", "animation").
	Entity string

	// Index is the entity index.
	Index int

	// Message is the human-readable cause.
	Message string
}
