package loader

import (
	"context"
	"fmt"

	"github.com/Carmen-Shannon/oxy-import/common"
	"github.com/Carmen-Shannon/oxy-import/engine/model"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// StaticPoseClipName is the name of the clip holding every object's default pose.
const StaticPoseClipName = "Static Pose"

// animationUnit is one unit of the animation stage: a channel, the close of a clip
// (channel == len(channels)), or the static pose (anim == -1).
type animationUnit struct {
	anim, channel int
}

// gltfAnimationExtractorImpl is the implementation of the gltfAnimationExtractor interface.
type gltfAnimationExtractorImpl struct {
	ic     *importContext
	units  []animationUnit
	curves []model.AnimationCurve
	failed bool
}

// gltfAnimationExtractor defines the interface for decoding animations into clips of curves
// keyed by object hierarchy path. Channels are decoded one per unit; a failed channel drops
// its whole clip with a warning.
type gltfAnimationExtractor interface {
	// ExtractChannel decodes one channel into curves, one per targeted object (or blend shape).
	//
	// Parameters:
	//   - animIndex: the index of the animation in the document
	//   - channelIndex: the index of the channel within the animation
	//
	// Returns:
	//   - []model.AnimationCurve: the channel's curves
	//   - error: an ErrAnimationChannel ImportError
	ExtractChannel(animIndex, channelIndex int) ([]model.AnimationCurve, error)

	// StaticPose builds the clip holding the default transform of every object and zero
	// weights for every blend shape.
	//
	// Returns:
	//   - *model.AnimationClip: the static pose clip
	StaticPose() *model.AnimationClip

	// Task returns the animation stage.
	//
	// Returns:
	//   - Task: the stage task
	Task() Task
}

var _ gltfAnimationExtractor = &gltfAnimationExtractorImpl{}

// newGLTFAnimationExtractor creates a new animation extractor.
//
// Parameters:
//   - ic: the import context
//
// Returns:
//   - gltfAnimationExtractor: the animation extractor
func newGLTFAnimationExtractor(ic *importContext) gltfAnimationExtractor {
	e := &gltfAnimationExtractorImpl{ic: ic}
	for a := range ic.doc.Animations {
		for c := 0; c <= len(ic.doc.Animations[a].Channels); c++ {
			e.units = append(e.units, animationUnit{anim: a, channel: c})
		}
	}
	e.units = append(e.units, animationUnit{anim: -1})
	return e
}

func (e *gltfAnimationExtractorImpl) Task() Task {
	return newStageTask(StageAnimation, len(e.units), e.ic.progress, e.extractUnit)
}

func (e *gltfAnimationExtractorImpl) extractUnit(_ context.Context, i int) StepResult {
	u := e.units[i]
	if u.anim < 0 {
		return e.publish(len(e.ic.doc.Animations), e.StaticPose())
	}

	anim := &e.ic.doc.Animations[u.anim]
	if u.channel == len(anim.Channels) {
		var clip *model.AnimationClip
		if !e.failed {
			name := e.ic.names.unique(nameCategoryClip, anim.Name, fmt.Sprintf("animation_%d", u.anim))
			clip = model.NewAnimationClip(name, u.anim, e.curves)
			e.ic.logger.Debug("animation decoded",
				zap.String("clip", clip.Name), zap.Int("curves", len(clip.Curves)), zap.Float32("duration", clip.Duration))
		}
		e.curves, e.failed = nil, false
		return e.publish(u.anim, clip)
	}

	if e.failed {
		return stepDone
	}
	curves, err := e.ExtractChannel(u.anim, u.channel)
	if err != nil {
		var ie *ImportError
		if !errors.As(err, &ie) {
			ie = &ImportError{Kind: ErrAnimationChannel, Entity: entityAnimation, Index: u.anim, Err: err}
		}
		e.ic.warn(ie)
		e.failed = true
		return stepDone
	}
	e.curves = append(e.curves, curves...)
	return stepDone
}

func (e *gltfAnimationExtractorImpl) publish(index int, clip *model.AnimationClip) StepResult {
	if err := e.ic.cache.Publish(KindAnimation, index, clip); err != nil {
		return stepFailed(wrapImportError(ErrInvalidData, entityAnimation, index, err, "publish animation"))
	}
	return stepDone
}

func (e *gltfAnimationExtractorImpl) ExtractChannel(animIndex, channelIndex int) ([]model.AnimationCurve, error) {
	doc := e.ic.doc
	anim := &doc.Animations[animIndex]
	ch := &anim.Channels[channelIndex]
	fail := func(format string, args ...any) error {
		return &ImportError{
			Kind:   ErrAnimationChannel,
			Entity: entityAnimation,
			Index:  animIndex,
			Err:    errors.Errorf("channel %d: %s", channelIndex, fmt.Sprintf(format, args...)),
		}
	}
	wrap := func(err error, what string) error {
		return &ImportError{
			Kind:   ErrAnimationChannel,
			Entity: entityAnimation,
			Index:  animIndex,
			Err:    errors.Wrapf(err, "channel %d: %s", channelIndex, what),
		}
	}

	if ch.Target.Node == nil {
		return nil, nil
	}
	node := *ch.Target.Node
	if node < 0 || node >= len(doc.Nodes) {
		return nil, fail("target node %d does not exist", node)
	}
	objs, ok := Lookup[[]*model.SceneObject](e.ic.cache, KindNode, node)
	if !ok || len(objs) == 0 {
		return nil, fail("target node %d is not part of the scene", node)
	}
	if ch.Sampler < 0 || ch.Sampler >= len(anim.Samplers) {
		return nil, fail("sampler %d out of range", ch.Sampler)
	}
	sampler := &anim.Samplers[ch.Sampler]

	var interp model.Interpolation
	switch common.Coalesce(sampler.Interpolation, gltfAnimInterpolationLinear) {
	case gltfAnimInterpolationLinear:
		interp = model.InterpolationLinear
	case gltfAnimInterpolationStep:
		interp = model.InterpolationStep
	case gltfAnimInterpolationCubicSpline:
		interp = model.InterpolationCubicSpline
	default:
		return nil, fail("unknown interpolation %q", sampler.Interpolation)
	}

	var property model.CurveProperty
	var morphOffsets []int
	width := 0
	switch ch.Target.Path {
	case gltfAnimPathTranslation:
		property, width = model.CurveTranslation, 3
	case gltfAnimPathRotation:
		property, width = model.CurveRotation, 4
	case gltfAnimPathScale:
		property, width = model.CurveScale, 3
	case gltfAnimPathWeights:
		property = model.CurveBlendWeight
		m := doc.Nodes[node].Mesh
		if m == nil || len(doc.Meshes[*m].Primitives) == 0 {
			return nil, fail("weights target node %d has no mesh", node)
		}
		width, morphOffsets = morphChannelLayout(&doc.Meshes[*m])
		if width == 0 {
			return nil, fail("weights target node %d has no morph targets", node)
		}
	default:
		return nil, fail("unsupported target path %q", ch.Target.Path)
	}

	times, err := e.ic.parser.ReadScalarAccessor(sampler.Input)
	if err != nil {
		return nil, wrap(err, "input")
	}
	values, _, err := e.ic.parser.ReadFloats(sampler.Output)
	if err != nil {
		return nil, wrap(err, "output")
	}
	stride := width
	if interp == model.InterpolationCubicSpline {
		stride = 3 * width
	}
	if len(times) == 0 {
		return nil, fail("sampler has no keyframes")
	}
	if len(values) != len(times)*stride {
		return nil, fail("%d output values for %d keyframes of width %d (%s)", len(values), len(times), width, ch.Target.Path)
	}

	if property == model.CurveBlendWeight {
		return weightCurves(objs, times, values, width, morphOffsets, interp)
	}

	keys := make([]model.Keyframe, len(times))
	for k, t := range times {
		base := k * stride
		key := model.Keyframe{Time: t}
		if interp == model.InterpolationCubicSpline {
			key.InTangent = convertChannelValue(property, values[base:base+width])
			key.Value = convertChannelValue(property, values[base+width:base+2*width])
			key.OutTangent = convertChannelValue(property, values[base+2*width:base+3*width])
		} else {
			key.Value = convertChannelValue(property, values[base:base+width])
		}
		keys[k] = key
	}

	// Objects for extra primitives share the node's transform, so they share its curves.
	curves := make([]model.AnimationCurve, len(objs))
	for i, obj := range objs {
		curves[i] = model.AnimationCurve{TargetPath: obj.Path, Property: property, Interpolation: interp, Keys: keys}
	}
	return curves, nil
}

// weightCurves fans a weights channel out into one curve per blend shape of every object.
// Frame k of value v is values[k*width + v], or the middle third of a cubic spline triple;
// target t of an object's primitive p is value offsets[p]+t.
func weightCurves(objs []*model.SceneObject, times, values []float32, width int, offsets []int, interp model.Interpolation) ([]model.AnimationCurve, error) {
	cubic := interp == model.InterpolationCubicSpline
	var curves []model.AnimationCurve
	for _, obj := range objs {
		offset := 0
		if obj.PrimitiveIndex >= 0 && obj.PrimitiveIndex < len(offsets) {
			offset = offsets[obj.PrimitiveIndex]
		}
		for t, shape := range obj.BlendShapes {
			v := offset + t
			if v >= width {
				break
			}
			if shape == nil {
				continue
			}
			keys := make([]model.Keyframe, len(times))
			for k, time := range times {
				key := model.Keyframe{Time: time}
				if cubic {
					base := k * 3 * width
					key.InTangent = []float32{values[base+v]}
					key.Value = []float32{values[base+width+v]}
					key.OutTangent = []float32{values[base+2*width+v]}
				} else {
					key.Value = []float32{values[k*width+v]}
				}
				keys[k] = key
			}
			curves = append(curves, model.AnimationCurve{
				TargetPath:    obj.Path,
				Property:      model.CurveBlendWeight,
				BlendShape:    shape.Name,
				Interpolation: interp,
				Keys:          keys,
			})
		}
	}
	if len(curves) == 0 {
		return nil, errors.New("weights target has no decoded blend shapes")
	}
	return curves, nil
}

// convertChannelValue copies one keyframe vector into the target convention.
// Tangents convert like values since the conversion is linear.
func convertChannelValue(property model.CurveProperty, v []float32) []float32 {
	out := append([]float32(nil), v...)
	switch property {
	case model.CurveTranslation:
		p := common.FlipVec3([3]float32{out[0], out[1], out[2]}, common.TargetConvention)
		copy(out, p[:])
	case model.CurveRotation:
		q := common.FlipQuaternion([4]float32{out[0], out[1], out[2], out[3]}, common.TargetConvention)
		copy(out, q[:])
	}
	return out
}

// morphChannelLayout returns the number of values per keyframe of a weights channel
// targeting mesh, and the offset of each primitive's first target within a keyframe.
// The layout mirrors distributeMorphWeights: primitives sharing one target count read the
// same values, otherwise targets are numbered in primitive order.
func morphChannelLayout(mesh *gltfMesh) (int, []int) {
	offsets := make([]int, len(mesh.Primitives))
	total, widest, uniform := 0, 0, -1
	for p := range mesh.Primitives {
		c := len(mesh.Primitives[p].Targets)
		total += c
		widest = max(widest, c)
		switch {
		case c == 0:
		case uniform == -1:
			uniform = c
		case uniform != c:
			uniform = -2
		}
	}
	width := max(len(mesh.Weights), widest)
	if width != uniform && width == total {
		offset := 0
		for p := range mesh.Primitives {
			offsets[p] = offset
			offset += len(mesh.Primitives[p].Targets)
		}
	}
	return width, offsets
}

func (e *gltfAnimationExtractorImpl) StaticPose() *model.AnimationClip {
	var curves []model.AnimationCurve
	pose := func(path string, property model.CurveProperty, shape string, value []float32) {
		curves = append(curves, model.AnimationCurve{
			TargetPath:    path,
			Property:      property,
			BlendShape:    shape,
			Interpolation: model.InterpolationStep,
			Keys:          []model.Keyframe{{Time: 0, Value: value}},
		})
	}

	if e.ic.root != nil {
		e.ic.root.Walk(func(obj *model.SceneObject) bool {
			if obj == e.ic.root {
				return true
			}
			l := obj.Local
			pose(obj.Path, model.CurveTranslation, "", append([]float32(nil), l.Translation[:]...))
			pose(obj.Path, model.CurveRotation, "", append([]float32(nil), l.Rotation[:]...))
			pose(obj.Path, model.CurveScale, "", append([]float32(nil), l.Scale[:]...))
			for _, shape := range obj.BlendShapes {
				if shape == nil {
					continue
				}
				pose(obj.Path, model.CurveBlendWeight, shape.Name, []float32{0})
			}
			return true
		})
	}
	name := e.ic.names.unique(nameCategoryClip, StaticPoseClipName, StaticPoseClipName)
	return model.NewAnimationClip(name, -1, curves)
}
