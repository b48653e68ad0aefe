package learning

import (
	"sort"
)

// Recommendation is a ranked tool with its current session weight.
type Recommendation struct {
	Tool   string  `json:"tool"`
	Weight float64 `json:"weight"`
}

// WeightVector maps every catalog tool to a non-negative weight.
// Its key set is fixed at construction.
type WeightVector struct {
	weights map[string]float64
}

// NewWeightVector returns a zero vector over the catalog.
func NewWeightVector(c *Catalog) *WeightVector {
	w := &WeightVector{weights: make(map[string]float64, c.Len())}
	for _, id := range c.ids {
		w.weights[id] = 0
	}
	return w
}

// DecayAll multiplies every weight by alpha.
func (w *WeightVector) DecayAll(alpha float64) {
	for id, v := range w.weights {
		w.weights[id] = v * alpha
	}
}

// Blend adds amount to tool's weight. It reports false, leaving the vector
// untouched, when tool is not in the vector.
func (w *WeightVector) Blend(tool string, amount float64) bool {
	v, ok := w.weights[tool]
	if !ok {
		return false
	}
	w.weights[tool] = v + amount
	return true
}

// Get returns tool's weight and whether it is present.
func (w *WeightVector) Get(tool string) (float64, bool) {
	v, ok := w.weights[tool]
	return v, ok
}

// Len returns the number of tools in the vector.
func (w *WeightVector) Len() int { return len(w.weights) }

// Clone returns an independent copy.
func (w *WeightVector) Clone() *WeightVector {
	return &WeightVector{weights: w.Snapshot()}
}

// Snapshot returns a copy of the underlying map.
func (w *WeightVector) Snapshot() map[string]float64 {
	out := make(map[string]float64, len(w.weights))
	for id, v := range w.weights {
		out[id] = v
	}
	return out
}

// TopK returns up to k tools ordered by weight descending, ties broken by
// tool id ascending. Tools named in exclude are skipped.
func (w *WeightVector) TopK(k int, exclude ...string) []Recommendation {
	if k <= 0 {
		return []Recommendation{}
	}

	skip := make(map[string]struct{}, len(exclude))
	for _, id := range exclude {
		skip[id] = struct{}{}
	}

	all := make([]Recommendation, 0, len(w.weights))
	for id, v := range w.weights {
		if _, ok := skip[id]; ok {
			continue
		}
		all = append(all, Recommendation{Tool: id, Weight: v})
	}

	sort.Slice(all, func(i, j int) bool {
		if all[i].Weight != all[j].Weight {
			return all[i].Weight > all[j].Weight
		}
		return all[i].Tool < all[j].Tool
	})

	if len(all) > k {
		all = all[:k]
	}
	return all
}
