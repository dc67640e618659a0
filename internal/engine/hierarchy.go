// =============================================================================
// zx12 - Hierarchical (HL) Engine
// =============================================================================
//
// X12 hierarchies arrive as flat HL segments: HL01 is the node id, HL02 the
// parent id ("" for roots), HL03 the level code. The document supplies the
// tree instance; the schema's level definitions supply the grammar. Pass 1
// collects the nodes in one scan and claims the HL segments; pass 2 walks
// the forest parent-before-child, applying each node's level definition over
// the node's segment window.
//
// A node's window runs from its HL segment to the next HL at the same or a
// shallower depth: each node owns the segments between itself and its next
// sibling/uncle, including everything its descendants will claim.
//
// =============================================================================

package engine

import "fmt"

// hlSegmentID is the hierarchical level segment tag.
const hlSegmentID = "HL"

// HL data element positions (0-based, per the position convention).
const (
	hlPosID        = 0
	hlPosParentID  = 1
	hlPosLevelCode = 2
)

// hlNode is one node of the document's HL forest.
type hlNode struct {
	id           string
	parentID     string
	levelCode    string
	segmentIndex int
	parent       int // node index, -1 for roots
	children     []int
	depth        int
}

// =============================================================================
// DRIVER
// =============================================================================

// runHierarchy builds the HL forest restricted to [lo, hi) and applies the
// schema's level definitions in tree order, attaching output under root.
// The only fatal conditions in the whole engine live here: an HL id/parent
// relation that is not a forest.
func (r *run) runHierarchy(lo, hi int, root map[string]any) error {
	nodes, err := r.collectHLNodes(lo, hi)
	if err != nil {
		return err
	}
	if len(nodes) == 0 {
		return nil
	}
	if err := linkHLNodes(nodes); err != nil {
		return err
	}

	for i := range nodes {
		if nodes[i].parent < 0 {
			r.visitHLNode(nodes, i, hi, root)
		}
	}
	return nil
}

// =============================================================================
// PASS 1 - FOREST CONSTRUCTION
// =============================================================================

// collectHLNodes scans the window for unprocessed HL segments, claims them,
// and extracts (id, parent id, level code). Node order follows stream order.
func (r *run) collectHLNodes(lo, hi int) ([]hlNode, error) {
	var nodes []hlNode
	seen := map[string]bool{}

	for i := lo; i < hi; i++ {
		if r.processed.Claimed(i) || r.segs[i].ID() != hlSegmentID {
			continue
		}
		r.processed.Claim(i)

		id, ok := r.segs[i].Element(hlPosID)
		if !ok || id == "" {
			return nil, &StructuralError{Reason: "HL segment has no hierarchical id", SegmentIndex: i}
		}
		if seen[id] {
			return nil, &StructuralError{Reason: fmt.Sprintf("duplicate HL id %q", id), SegmentIndex: i}
		}
		seen[id] = true

		parentID, _ := r.segs[i].Element(hlPosParentID)
		levelCode, _ := r.segs[i].Element(hlPosLevelCode)
		nodes = append(nodes, hlNode{
			id:           id,
			parentID:     parentID,
			levelCode:    levelCode,
			segmentIndex: i,
			parent:       -1,
		})
	}
	return nodes, nil
}

// linkHLNodes resolves parent references and computes depths. A parent id
// that names no node, or a parent chain that never reaches a root, is
// structural corruption.
func linkHLNodes(nodes []hlNode) error {
	byID := make(map[string]int, len(nodes))
	for i := range nodes {
		byID[nodes[i].id] = i
	}

	for i := range nodes {
		if nodes[i].parentID == "" {
			continue
		}
		pi, ok := byID[nodes[i].parentID]
		if !ok {
			return &StructuralError{
				Reason:       fmt.Sprintf("HL %q references unknown parent %q", nodes[i].id, nodes[i].parentID),
				SegmentIndex: nodes[i].segmentIndex,
			}
		}
		nodes[i].parent = pi
		nodes[pi].children = append(nodes[pi].children, i)
	}

	for i := range nodes {
		depth := 0
		for j := i; nodes[j].parent >= 0; j = nodes[j].parent {
			depth++
			if depth > len(nodes) {
				return &StructuralError{
					Reason:       fmt.Sprintf("HL parent chain through %q forms a cycle", nodes[i].id),
					SegmentIndex: nodes[i].segmentIndex,
				}
			}
		}
		nodes[i].depth = depth
	}
	return nil
}

// =============================================================================
// PASS 2 - TREE-ORDER APPLICATION
// =============================================================================

// visitHLNode applies one node's level definition over its window and
// recurses into its children. A level code the schema does not describe is
// skipped (its own passes do not run) but its children are still visited,
// attaching to the nearest mapped ancestor's instance.
func (r *run) visitHLNode(nodes []hlNode, idx, hi int, parentObj map[string]any) {
	node := &nodes[idx]
	end := hlBoundary(nodes, idx, hi)

	def := r.schema.Level(node.levelCode)
	if def == nil {
		for _, c := range node.children {
			r.visitHLNode(nodes, c, end, parentObj)
		}
		return
	}

	instance := map[string]any{}
	r.applyDefs(def.SegmentDefs, node.segmentIndex, end, instance)
	for i := range def.NonHierarchicalLoops {
		r.attachLoop(&def.NonHierarchicalLoops[i], node.segmentIndex, end, instance)
	}
	for _, c := range node.children {
		r.visitHLNode(nodes, c, end, instance)
	}

	if def.OutputArray == "" {
		mergeObject(parentObj, instance)
		return
	}
	if err := appendToArray(parentObj, def.OutputArray, instance); err != nil {
		r.diags = append(r.diags, Diagnostic{
			Kind:         DiagSchemaConfig,
			SegmentID:    hlSegmentID,
			SegmentIndex: node.segmentIndex,
			ElementPos:   -1,
			Message:      err.Error(),
		})
	}
}

// hlBoundary returns the node's window end: the segment index of the next
// HL node at the same or a shallower depth, capped by the enclosing window.
func hlBoundary(nodes []hlNode, idx, hi int) int {
	for j := idx + 1; j < len(nodes); j++ {
		if nodes[j].depth <= nodes[idx].depth {
			if nodes[j].segmentIndex < hi {
				return nodes[j].segmentIndex
			}
			break
		}
	}
	return hi
}
