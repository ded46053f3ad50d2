package scene

import (
	"cmp"
	"slices"
)

// PaintOrder returns the visible sources sorted bottom to top.
// The sort is stable by ZIndex, so equal indexes keep insertion order and the
// earlier source paints first. The compositor and the pipeline builder both
// layer through this function.
func PaintOrder(sources []Source) []Source {
	out := make([]Source, 0, len(sources))
	for _, src := range sources {
		if src.Visible {
			out = append(out, src)
		}
	}
	slices.SortStableFunc(out, func(a, b Source) int {
		return cmp.Compare(a.ZIndex, b.ZIndex)
	})
	return out
}
