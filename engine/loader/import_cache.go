package loader

import (
	"sync"

	"github.com/pkg/errors"
)

// ResourceKind identifies a category of decoded intermediate resource.
type ResourceKind int

const (
	// KindBuffer holds raw buffer bytes ([]byte).
	KindBuffer ResourceKind = iota
	// KindImage holds decoded images (*common.DecodedImage).
	KindImage
	// KindTexture holds texture resources (*common.ImportedTexture).
	KindTexture
	// KindMaterial holds built materials (*common.ImportedMaterial).
	KindMaterial
	// KindMesh holds a mesh's primitives ([]*model.Geometry).
	KindMesh
	// KindNode holds a node's objects ([]*model.SceneObject).
	KindNode
	// KindSkin holds built skins (*model.Skin).
	KindSkin
	// KindBoneWeights holds per-primitive bone weights of a mesh ([][]model.BoneWeight).
	KindBoneWeights
	// KindMorph holds per-primitive blend shapes of a mesh ([][]*model.BlendShape).
	KindMorph
	// KindAnimation holds decoded clips (*model.AnimationClip).
	KindAnimation
)

var resourceKindNames = [...]string{"buffer", "image", "texture", "material", "mesh", "node", "skin", "bone weights", "morph", "animation"}

// String returns the kind name.
func (k ResourceKind) String() string {
	if k < 0 || int(k) >= len(resourceKindNames) {
		return "unknown"
	}
	return resourceKindNames[k]
}

var (
	errCacheReleased    = errors.New("import cache released")
	errAlreadyPublished = errors.New("cache slot already published")
)

type cacheKey struct {
	kind  ResourceKind
	index int
}

// ImportCache is the (kind, index) addressed store of decoded resources for one import.
// Each slot is written at most once; published values are never mutated afterwards.
type ImportCache struct {
	mu       sync.Mutex
	entries  map[cacheKey]any
	decodes  map[cacheKey]int
	released bool
}

// NewImportCache creates an empty cache.
//
// Returns:
//   - *ImportCache: the cache
func NewImportCache() *ImportCache {
	return &ImportCache{
		entries: make(map[cacheKey]any),
		decodes: make(map[cacheKey]int),
	}
}

// GetOrDecode returns the cached resource for (kind, index), running decode on the first call.
// A failed decode stores nothing, so a later call may retry.
// decode runs without the cache lock held and may itself read other slots.
//
// Parameters:
//   - c: the cache
//   - kind: the resource kind
//   - index: the entity index
//   - decode: produces the resource when the slot is empty
//
// Returns:
//   - T: the cached or freshly decoded resource
//   - error: the decode error, or an error if the cache was released or holds another type
func GetOrDecode[T any](c *ImportCache, kind ResourceKind, index int, decode func() (T, error)) (T, error) {
	var zero T
	key := cacheKey{kind, index}

	c.mu.Lock()
	if c.released {
		c.mu.Unlock()
		return zero, errCacheReleased
	}
	if v, ok := c.entries[key]; ok {
		c.mu.Unlock()
		t, ok := v.(T)
		if !ok {
			return zero, errors.Errorf("cache slot %s %d holds %T", kind, index, v)
		}
		return t, nil
	}
	c.mu.Unlock()

	v, err := decode()
	if err != nil {
		return zero, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.released {
		return zero, errCacheReleased
	}
	// A slot published while decode ran keeps its first value.
	if existing, ok := c.entries[key]; ok {
		t, ok := existing.(T)
		if !ok {
			return zero, errors.Errorf("cache slot %s %d holds %T", kind, index, existing)
		}
		return t, nil
	}
	c.decodes[key]++
	c.entries[key] = v
	return v, nil
}

// Lookup returns a published resource without decoding.
//
// Parameters:
//   - c: the cache
//   - kind: the resource kind
//   - index: the entity index
//
// Returns:
//   - T: the resource, zero when absent
//   - bool: true if the slot is populated with a T
func Lookup[T any](c *ImportCache, kind ResourceKind, index int) (T, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.entries[cacheKey{kind, index}]
	if !ok {
		var zero T
		return zero, false
	}
	t, ok := v.(T)
	return t, ok
}

// Publish stores a resource built outside GetOrDecode.
//
// Parameters:
//   - kind: the resource kind
//   - index: the entity index
//   - v: the resource
//
// Returns:
//   - error: error if the slot is already populated or the cache was released
func (c *ImportCache) Publish(kind ResourceKind, index int, v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.released {
		return errCacheReleased
	}
	key := cacheKey{kind, index}
	if _, ok := c.entries[key]; ok {
		return errors.Wrapf(errAlreadyPublished, "%s %d", kind, index)
	}
	c.decodes[key]++
	c.entries[key] = v
	return nil
}

// DecodeCount returns how many times the slot was populated. It is at most 1.
func (c *ImportCache) DecodeCount(kind ResourceKind, index int) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.decodes[cacheKey{kind, index}]
}

// Len returns the number of populated slots.
func (c *ImportCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Release drops every resource. Later reads miss and later writes fail.
func (c *ImportCache) Release() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.released = true
	c.entries = make(map[cacheKey]any)
}

// Released reports whether Release was called.
func (c *ImportCache) Released() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.released
}
