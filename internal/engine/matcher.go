// =============================================================================
// zx12 - Segment and Group Matching
// =============================================================================

package engine

import (
	"github.com/LibrePPS/zx12-go/internal/schema"
	"github.com/LibrePPS/zx12-go/internal/types"
)

// matches reports whether a segment satisfies a definition's id and
// qualifier constraints.
func matches(def *schema.SegmentDefinition, seg types.Segment) bool {
	if seg.ID() != def.ID {
		return false
	}
	return matchesQualifier(def.Qualifier, seg)
}

// matchesQualifier checks the (position, expected value) constraint; a nil
// qualifier always matches.
func matchesQualifier(q *schema.Qualifier, seg types.Segment) bool {
	if q == nil {
		return true
	}
	v, ok := seg.Element(q.SegPos)
	return ok && v == q.Expected
}

// groupClaim is the result of a successful contiguous group claim: the
// claimed indices and the member segments keyed by id, lead included.
type groupClaim struct {
	leadIndex int
	indices   []int
	members   map[string]types.Segment
}

// findFirstMatch returns the first unprocessed index in [lo, hi) whose
// segment matches the definition, or -1.
func (r *run) findFirstMatch(def *schema.SegmentDefinition, lo, hi int) int {
	for i := lo; i < hi; i++ {
		if !r.processed.Claimed(i) && matches(def, r.segs[i]) {
			return i
		}
	}
	return -1
}

// nextUnprocessed returns the first unprocessed index in [lo, hi), or -1.
func (r *run) nextUnprocessed(lo, hi int) int {
	for i := lo; i < hi; i++ {
		if !r.processed.Claimed(i) {
			return i
		}
	}
	return -1
}

// tryClaimGroup attempts to claim a contiguous group starting at index
// start: the lead segment must match the definition, and each subsequent
// group member id must be the very next unprocessed segment, in declared
// order with no gaps. On success every consumed index is claimed atomically;
// on failure nothing is claimed and the caller falls back to ungrouped
// handling of the lead segment.
func (r *run) tryClaimGroup(def *schema.SegmentDefinition, start, hi int) (*groupClaim, bool) {
	if r.processed.Claimed(start) || !matches(def, r.segs[start]) {
		return nil, false
	}

	claim := &groupClaim{
		leadIndex: start,
		indices:   []int{start},
		members:   map[string]types.Segment{def.ID: r.segs[start]},
	}

	cur := start
	for _, member := range def.Group[1:] {
		next := r.nextUnprocessed(cur+1, hi)
		if next < 0 || r.segs[next].ID() != member {
			return nil, false
		}
		claim.indices = append(claim.indices, next)
		claim.members[member] = r.segs[next]
		cur = next
	}

	if !r.processed.ClaimAll(claim.indices) {
		return nil, false
	}
	return claim, true
}
