package animator

import (
	"sync"

	"github.com/Carmen-Shannon/oxy-import/engine/model"
	"github.com/chewxy/math32"
	"go.uber.org/zap"
)

// instanceState holds the playback state of one animated instance.
type instanceState struct {
	clip int

	time, speed                 float32
	loop, blending              bool
	blendTo                     int
	blendToTime                 float32
	blendDuration, blendElapsed float32
}

// animator is the implementation of the Animator interface.
type animator struct {
	mu     sync.Mutex
	model  model.Model
	logger *zap.Logger

	instances []instanceState
}

// Animator defines the public interface for sampling an imported model's animation clips.
//
// The Animator keeps per-instance playback state (clip, time, speed, looping, cross-fade) and
// samples the model's clips on the CPU into a Pose: local transforms and blend shape weights per
// hierarchy path, from which world matrices and skinning palettes are derived. Clip indices
// address Model.Animations(); clips that failed to import are nil and cannot be played.
type Animator interface {
	// Model returns the animated model.
	//
	// Returns:
	//   - model.Model: the model
	Model() model.Model

	// AddInstance registers a new instance playing the model's last clip, the static pose.
	//
	// Returns:
	//   - uint32: the index of the new instance
	AddInstance() uint32

	// RemoveInstance removes the instance at the given index using a swap-remove strategy.
	//
	// Parameters:
	//   - index: the instance index to remove
	//
	// Returns:
	//   - uint32: the old last index that was swapped into the removed slot (only meaningful when bool is true)
	//   - bool: true if the last instance was swapped into the removed slot
	RemoveInstance(index uint32) (uint32, bool)

	// InstanceCount returns the number of registered instances.
	//
	// Returns:
	//   - uint32: the number of instances
	InstanceCount() uint32

	// PlayAnimation starts a clip from the beginning at normal speed, cancelling any blend.
	//
	// Parameters:
	//   - instance: the instance index
	//   - clip: the clip index
	//   - loop: whether playback wraps at the clip's end
	//
	// Returns:
	//   - bool: false if the instance or clip does not exist
	PlayAnimation(instance uint32, clip int, loop bool) bool

	// BlendToAnimation cross-fades an instance from its current clip to another.
	//
	// Parameters:
	//   - instance: the instance index
	//   - clip: the target clip index
	//   - blendDuration: the fade time in seconds
	//
	// Returns:
	//   - bool: false if the instance or clip does not exist
	BlendToAnimation(instance uint32, clip int, blendDuration float32) bool

	// SetAnimationTime sets the playback position of an instance.
	//
	// Parameters:
	//   - instance: the instance index
	//   - t: the time in seconds
	SetAnimationTime(instance uint32, t float32)

	// SetAnimationSpeed sets the playback rate of an instance.
	//
	// Parameters:
	//   - instance: the instance index
	//   - speed: the rate, 1 for normal speed
	SetAnimationSpeed(instance uint32, speed float32)

	// IsBlending reports whether an instance is cross-fading.
	IsBlending(instance uint32) bool

	// BlendProgress returns the cross-fade progress of an instance in [0, 1), 0 when not blending.
	BlendProgress(instance uint32) float32

	// CancelBlend stops a cross-fade and keeps the current clip.
	CancelBlend(instance uint32)

	// PrepareFrame advances every instance by deltaTime, wrapping looping clips and resolving finished blends.
	//
	// Parameters:
	//   - deltaTime: elapsed time since the last frame in seconds
	PrepareFrame(deltaTime float32)

	// Pose samples an instance at its current playback position.
	//
	// Parameters:
	//   - instance: the instance index
	//
	// Returns:
	//   - *Pose: the sampled pose, nil if the instance does not exist
	Pose(instance uint32) *Pose
}

var _ Animator = &animator{}

// NewAnimator creates an Animator for m.
//
// Parameters:
//   - m: the imported model
//   - options: animator options
//
// Returns:
//   - Animator: the animator
func NewAnimator(m model.Model, options ...AnimatorBuilderOption) Animator {
	a := &animator{model: m, logger: zap.NewNop()}
	for _, opt := range options {
		opt(a)
	}
	a.logger = a.logger.With(zap.String("component", "animator"), zap.String("model", m.Name()))
	return a
}

func (a *animator) Model() model.Model {
	return a.model
}

func (a *animator) AddInstance() uint32 {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.instances = append(a.instances, instanceState{clip: len(a.model.Animations()) - 1, speed: 1})
	return uint32(len(a.instances) - 1)
}

func (a *animator) RemoveInstance(index uint32) (uint32, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	n := uint32(len(a.instances))
	if index >= n {
		return 0, false
	}
	last := n - 1
	swapped := index != last
	if swapped {
		a.instances[index] = a.instances[last]
	}
	a.instances = a.instances[:last]
	return last, swapped
}

func (a *animator) InstanceCount() uint32 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return uint32(len(a.instances))
}

// clipAt returns the clip at index, nil when out of range or skipped during import.
func (a *animator) clipAt(index int) *model.AnimationClip {
	clips := a.model.Animations()
	if index < 0 || index >= len(clips) {
		return nil
	}
	return clips[index]
}

func (a *animator) PlayAnimation(instance uint32, clip int, loop bool) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if instance >= uint32(len(a.instances)) {
		return false
	}
	if a.clipAt(clip) == nil {
		a.logger.Warn("cannot play missing clip", zap.Int("clip", clip))
		return false
	}
	a.instances[instance] = instanceState{clip: clip, speed: 1, loop: loop}
	return true
}

func (a *animator) BlendToAnimation(instance uint32, clip int, blendDuration float32) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if instance >= uint32(len(a.instances)) {
		return false
	}
	if a.clipAt(clip) == nil {
		a.logger.Warn("cannot blend to missing clip", zap.Int("clip", clip))
		return false
	}
	state := &a.instances[instance]
	if blendDuration <= 0 {
		state.clip, state.time = clip, 0
		state.blending = false
		return true
	}
	state.blending = true
	state.blendTo = clip
	state.blendToTime = 0
	state.blendDuration = blendDuration
	state.blendElapsed = 0
	return true
}

func (a *animator) SetAnimationTime(instance uint32, t float32) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if instance >= uint32(len(a.instances)) {
		return
	}
	a.instances[instance].time = t
}

func (a *animator) SetAnimationSpeed(instance uint32, speed float32) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if instance >= uint32(len(a.instances)) {
		return
	}
	a.instances[instance].speed = speed
}

func (a *animator) IsBlending(instance uint32) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if instance >= uint32(len(a.instances)) {
		return false
	}
	return a.instances[instance].blending
}

func (a *animator) BlendProgress(instance uint32) float32 {
	a.mu.Lock()
	defer a.mu.Unlock()
	if instance >= uint32(len(a.instances)) {
		return 0
	}
	state := &a.instances[instance]
	if !state.blending {
		return 0
	}
	return state.blendElapsed / state.blendDuration
}

func (a *animator) CancelBlend(instance uint32) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if instance >= uint32(len(a.instances)) {
		return
	}
	a.instances[instance].blending = false
	a.instances[instance].blendElapsed = 0
}

// wrap applies looping to a playback time.
func (a *animator) wrap(clip int, t float32, loop bool) float32 {
	c := a.clipAt(clip)
	if !loop || c == nil || c.Duration <= 0 || t <= c.Duration {
		return t
	}
	return math32.Mod(t, c.Duration)
}

func (a *animator) PrepareFrame(deltaTime float32) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for i := range a.instances {
		state := &a.instances[i]
		state.time = a.wrap(state.clip, state.time+deltaTime*state.speed, state.loop)

		if !state.blending {
			continue
		}
		state.blendElapsed += deltaTime
		state.blendToTime = a.wrap(state.blendTo, state.blendToTime+deltaTime*state.speed, state.loop)
		if state.blendElapsed >= state.blendDuration {
			state.clip = state.blendTo
			state.time = state.blendToTime
			state.blending = false
			state.blendElapsed = 0
		}
	}
}

func (a *animator) Pose(instance uint32) *Pose {
	a.mu.Lock()
	if instance >= uint32(len(a.instances)) {
		a.mu.Unlock()
		return nil
	}
	state := a.instances[instance]
	a.mu.Unlock()

	p := restPose(a.model.Root())
	p.apply(a.clipAt(state.clip), state.time)
	if state.blending {
		target := restPose(a.model.Root())
		target.apply(a.clipAt(state.blendTo), state.blendToTime)
		p.blend(target, state.blendElapsed/state.blendDuration)
	}
	return p
}
