package ecs

import "sort"

// Each2 visits instances that have both component A and B, in ascending ID
// order so systems that act on the result (damage, kills) stay deterministic
// across runs. It scans the smaller store and probes the larger one.
func Each2[A, B any](sa *Store[A], sb *Store[B], fn func(EntityID, *A, *B)) {
	ids := make([]EntityID, 0, min(sa.Len(), sb.Len()))
	if sa.Len() <= sb.Len() {
		for id := range sa.data {
			if _, ok := sb.data[id]; ok {
				ids = append(ids, id)
			}
		}
	} else {
		for id := range sb.data {
			if _, ok := sa.data[id]; ok {
				ids = append(ids, id)
			}
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	for _, id := range ids {
		a, okA := sa.data[id]
		b, okB := sb.data[id]
		// fn may have removed components of instances later in the list.
		if okA && okB {
			fn(id, a, b)
		}
	}
}
