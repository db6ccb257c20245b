package loader

import (
	"fmt"
	"strings"

	"github.com/Carmen-Shannon/oxy-import/common"
)

// Naming categories. Names only need to be unique within their category.
const (
	nameCategoryMaterial = "material"
	nameCategoryTexture  = "texture"
	nameCategoryMesh     = "mesh"
	nameCategoryClip     = "clip"
)

// nameRegistry hands out filesystem-legal names that are unique within a category.
// Comparison is case-insensitive so names stay distinct on case-folding filesystems.
type nameRegistry struct {
	taken map[string]map[string]struct{}
}

func newNameRegistry() *nameRegistry {
	return &nameRegistry{taken: make(map[string]map[string]struct{})}
}

// unique returns base sanitized, with a numeric suffix when the name is already taken.
//
// Parameters:
//   - category: the naming scope
//   - base: the preferred name
//   - fallback: used when base sanitizes to nothing
//
// Returns:
//   - string: the reserved name
func (r *nameRegistry) unique(category, base, fallback string) string {
	set, ok := r.taken[category]
	if !ok {
		set = make(map[string]struct{})
		r.taken[category] = set
	}
	return reserveName(set, base, fallback)
}

// reserveName reserves a sanitized variant of base in set.
func reserveName(set map[string]struct{}, base, fallback string) string {
	name := common.SanitizeFileName(base)
	if name == "" {
		name = common.SanitizeFileName(fallback)
	}
	if name == "" {
		name = "unnamed"
	}

	candidate := name
	for n := 1; ; n++ {
		key := strings.ToLower(candidate)
		if _, clash := set[key]; !clash {
			set[key] = struct{}{}
			return candidate
		}
		candidate = fmt.Sprintf("%s_%d", name, n)
	}
}
