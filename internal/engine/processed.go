// =============================================================================
// zx12 - Processed-Segment Set
// =============================================================================

package engine

// processedSet tracks which segment indices one transaction's interpretation
// has claimed. It is created per Interpret call and threaded through every
// pass, never shared across transactions, which is what keeps independent
// transactions safe to interpret in parallel.
//
// The exactly-once invariant lives here: an index is claimed at most once,
// and every pass skips indices that are already claimed.
type processedSet struct {
	claimed []bool
	count   int
}

// newProcessedSet sizes the set for a stream of n segments.
func newProcessedSet(n int) *processedSet {
	return &processedSet{claimed: make([]bool, n)}
}

// Claimed reports whether index i has been claimed. Out-of-range indices
// report true so callers never act on them.
func (p *processedSet) Claimed(i int) bool {
	if i < 0 || i >= len(p.claimed) {
		return true
	}
	return p.claimed[i]
}

// Claim marks index i processed. Returns false if it was already claimed or
// out of range, in which case nothing changes.
func (p *processedSet) Claim(i int) bool {
	if p.Claimed(i) {
		return false
	}
	p.claimed[i] = true
	p.count++
	return true
}

// ClaimAll marks every index processed, atomically: if any index is already
// claimed, none are marked and false is returned. This is what makes group
// claiming all-or-nothing.
func (p *processedSet) ClaimAll(indices []int) bool {
	for _, i := range indices {
		if p.Claimed(i) {
			return false
		}
	}
	for _, i := range indices {
		p.claimed[i] = true
		p.count++
	}
	return true
}

// Count returns how many indices have been claimed.
func (p *processedSet) Count() int {
	return p.count
}
