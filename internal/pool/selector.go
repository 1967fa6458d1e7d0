// selector.go - Candidate filtering and best-pool selection.

package pool

// Filter retains pools servicing the requested denomination that still
// have deposit capacity.
func Filter(pools []*Snapshot, denomination int64) []*Snapshot {
	var out []*Snapshot
	for _, p := range pools {
		if p.Denomination == denomination && !p.IsFull() {
			out = append(out, p)
		}
	}
	return out
}

// SelectBest picks the candidate with the most unique depositors, breaking
// ties by earliest creation height: older pools are less likely to have
// been adversarially seeded. Returns nil when there are no candidates.
func SelectBest(candidates []*Snapshot) *Snapshot {
	var best *Snapshot
	bestUnique := -1
	for _, c := range candidates {
		unique := countUnique(c)
		switch {
		case unique > bestUnique:
			best, bestUnique = c, unique
		case unique == bestUnique && best != nil && c.CreationHeight < best.CreationHeight:
			best = c
		}
	}
	return best
}
