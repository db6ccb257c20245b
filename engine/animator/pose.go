// Package animator samples imported animation clips on the CPU and derives the world
// matrices and skinning palettes a host needs to draw a posed model.
package animator

import (
	"github.com/Carmen-Shannon/oxy-import/common"
	"github.com/Carmen-Shannon/oxy-import/engine/model"
)

// Pose is a sampled state of a model's hierarchy. Transforms are in the target convention.
type Pose struct {
	// Locals holds the local transform of every object by hierarchy path.
	Locals map[string]model.Transform

	// Weights holds the blend shape weights of every morphed object by hierarchy path,
	// in BlendShapes order.
	Weights map[string][]float32

	root   *model.SceneObject
	worlds map[*model.SceneObject][16]float32
}

// restPose builds a pose from the objects' imported local transforms and default weights.
func restPose(root *model.SceneObject) *Pose {
	p := &Pose{
		Locals:  make(map[string]model.Transform),
		Weights: make(map[string][]float32),
		root:    root,
	}
	root.Walk(func(o *model.SceneObject) bool {
		p.Locals[o.Path] = o.Local
		if len(o.BlendShapes) > 0 {
			w := make([]float32, len(o.BlendShapes))
			copy(w, o.BlendWeights)
			p.Weights[o.Path] = w
		}
		return true
	})
	return p
}

// apply overwrites the pose with the clip's curves sampled at t. Curves for unknown paths are ignored.
func (p *Pose) apply(clip *model.AnimationClip, t float32) {
	if clip == nil {
		return
	}
	for i := range clip.Curves {
		c := &clip.Curves[i]
		local, ok := p.Locals[c.TargetPath]
		if !ok {
			continue
		}
		v := c.Evaluate(t)
		switch c.Property {
		case model.CurveTranslation:
			if len(v) == 3 {
				copy(local.Translation[:], v)
			}
		case model.CurveRotation:
			if len(v) == 4 {
				copy(local.Rotation[:], v)
			}
		case model.CurveScale:
			if len(v) == 3 {
				copy(local.Scale[:], v)
			}
		case model.CurveBlendWeight:
			if len(v) == 1 {
				p.setWeight(c.TargetPath, c.BlendShape, v[0])
			}
			continue
		}
		p.Locals[c.TargetPath] = local
	}
	p.worlds = nil
}

func (p *Pose) setWeight(path, shape string, w float32) {
	weights := p.Weights[path]
	obj := p.root.Find(path)
	if obj == nil {
		return
	}
	for k, s := range obj.BlendShapes {
		if s != nil && s.Name == shape && k < len(weights) {
			weights[k] = w
			return
		}
	}
}

// blend moves the pose towards other by f in [0, 1]: translation, scale and weights
// interpolate linearly, rotations along the shorter arc.
func (p *Pose) blend(other *Pose, f float32) {
	for path, a := range p.Locals {
		b, ok := other.Locals[path]
		if !ok {
			continue
		}
		var out model.Transform
		for j := 0; j < 3; j++ {
			out.Translation[j] = a.Translation[j] + (b.Translation[j]-a.Translation[j])*f
			out.Scale[j] = a.Scale[j] + (b.Scale[j]-a.Scale[j])*f
		}
		sign := float32(1)
		if a.Rotation[0]*b.Rotation[0]+a.Rotation[1]*b.Rotation[1]+a.Rotation[2]*b.Rotation[2]+a.Rotation[3]*b.Rotation[3] < 0 {
			sign = -1
		}
		var q [4]float32
		for j := range q {
			q[j] = a.Rotation[j] + (sign*b.Rotation[j]-a.Rotation[j])*f
		}
		out.Rotation = common.NormalizeQuaternion(q)
		p.Locals[path] = out
	}
	for path, a := range p.Weights {
		b := other.Weights[path]
		for k := range a {
			if k < len(b) {
				a[k] += (b[k] - a[k]) * f
			}
		}
	}
	p.worlds = nil
}

// computeWorlds composes local transforms down the hierarchy.
func (p *Pose) computeWorlds() {
	p.worlds = make(map[*model.SceneObject][16]float32, len(p.Locals))
	p.root.Walk(func(o *model.SceneObject) bool {
		l := p.Locals[o.Path]
		local := common.ComposeTRS(l.Translation, l.Rotation, l.Scale)
		if o.Parent == nil {
			p.worlds[o] = local
			return true
		}
		parent := p.worlds[o.Parent]
		var world [16]float32
		common.Mul4(world[:], parent[:], local[:])
		p.worlds[o] = world
		return true
	})
}

// World returns the model-space matrix of the object at path.
//
// Parameters:
//   - path: the hierarchy path
//
// Returns:
//   - [16]float32: the column-major matrix
//   - bool: false when the path is not in the hierarchy
func (p *Pose) World(path string) ([16]float32, bool) {
	obj := p.root.Find(path)
	if obj == nil {
		return [16]float32{}, false
	}
	if p.worlds == nil {
		p.computeWorlds()
	}
	return p.worlds[obj], true
}

// SkinPalette returns one skinning matrix per bone: the joint's model-space matrix times its
// inverse bind matrix. Bones whose joint object is missing get the identity.
//
// Parameters:
//   - skin: the skin, typically SceneObject.Skin
//
// Returns:
//   - [][16]float32: the palette in bone order, nil for a nil skin
func (p *Pose) SkinPalette(skin *model.Skin) [][16]float32 {
	if skin == nil {
		return nil
	}
	if p.worlds == nil {
		p.computeWorlds()
	}
	palette := make([][16]float32, len(skin.Bones))
	for i, bone := range skin.Bones {
		world, ok := p.worlds[bone.Object]
		if !ok {
			palette[i] = common.Identity4()
			continue
		}
		common.Mul4(palette[i][:], world[:], bone.InverseBindMatrix[:])
	}
	return palette
}
