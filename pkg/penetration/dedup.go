package penetration

import "github.com/chazu/sleeve/pkg/model"

// EqualityComparer defines an equivalence relation over T together with a
// hash consistent with it: Equal(a, b) implies Hash(a) == Hash(b).
type EqualityComparer[T any] interface {
	Equal(a, b T) bool
	Hash(v T) uint64
}

// HitComparer treats two ray hits as equal when they land on the same
// physical wall: same container and same element. Distances are ignored.
//
// A nil hit never equals anything, including another nil hit, so every
// nil survives Distinct.
type HitComparer struct{}

// Equal reports whether a and b hit the same surface.
func (HitComparer) Equal(a, b *model.RayHit) bool {
	if a == nil || b == nil {
		return false
	}
	return a.Surface.Equal(b.Surface)
}

// Hash returns the surface hash of h, or 0 for nil.
func (HitComparer) Hash(h *model.RayHit) uint64 {
	if h == nil {
		return 0
	}
	return h.Surface.Hash()
}

// Distinct returns the items of in with later duplicates removed, keeping
// the first item of each equivalence class in its original position. It
// makes a single pass, bucketing by hash. The input is not modified.
func Distinct[T any](in []T, cmp EqualityComparer[T]) []T {
	out := make([]T, 0, len(in))
	seen := make(map[uint64][]T, len(in))

next:
	for _, v := range in {
		h := cmp.Hash(v)
		for _, s := range seen[h] {
			if cmp.Equal(s, v) {
				continue next
			}
		}
		seen[h] = append(seen[h], v)
		out = append(out, v)
	}
	return out
}

// Dedup returns hits with at most one hit per surface, keeping the first
// hit for each surface in input order.
func Dedup(hits []model.RayHit) []model.RayHit {
	ptrs := make([]*model.RayHit, len(hits))
	for i := range hits {
		ptrs[i] = &hits[i]
	}

	kept := Distinct[*model.RayHit](ptrs, HitComparer{})
	out := make([]model.RayHit, len(kept))
	for i, h := range kept {
		out[i] = *h
	}
	return out
}
