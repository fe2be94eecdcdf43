package geometry

import (
	"github.com/erbuka/pathtracing/pkg/core"
)

// maxTreeDepth caps the recursion of the space tree build
const maxTreeDepth = 100

// duplicationLimit is the ratio of child references to input triangles
// above which a split is rejected and the node becomes a leaf
const duplicationLimit = 1.5

// SpaceTreeNode is a node in the space partition. Triangles is non-empty at
// leaves and at nodes whose split was rejected.
type SpaceTreeNode struct {
	Bounds    core.BoundingBox
	Triangles []int32 // indices into the owning tree's triangle slice
	Left      *SpaceTreeNode
	Right     *SpaceTreeNode
}

// SpaceTree is a binary spatial index over a triangle set. It is immutable
// once built and safe for concurrent queries.
type SpaceTree struct {
	Root      *SpaceTreeNode
	triangles []Triangle
}

// BuildSpaceTree partitions triangles inside bounds. The slice is not copied
// and must not be modified while the tree is in use.
func BuildSpaceTree(triangles []Triangle, bounds core.BoundingBox) *SpaceTree {
	tree := &SpaceTree{triangles: triangles}
	if len(triangles) == 0 {
		return tree
	}

	indices := make([]int32, len(triangles))
	for i := range indices {
		indices[i] = int32(i)
	}

	tree.Root = tree.build(indices, bounds, 0)
	return tree
}

// build recursively splits the triangle set, cycling the axis with depth
func (st *SpaceTree) build(indices []int32, bounds core.BoundingBox, depth int) *SpaceTreeNode {
	node := &SpaceTreeNode{Bounds: bounds}

	if len(indices) <= 1 || depth >= maxTreeDepth {
		node.Triangles = indices
		return node
	}

	axis := core.Axis(depth % 3)

	// Mean of every vertex coordinate along the axis, a cheap median proxy
	sum := 0.0
	for _, idx := range indices {
		tri := &st.triangles[idx]
		for i := 0; i < 3; i++ {
			sum += tri.vertices[i].Position.Axis(axis)
		}
	}
	split := sum / float64(3*len(indices))

	leftBounds, rightBounds := bounds.Split(axis, split)

	var left, right []int32
	for _, idx := range indices {
		tri := &st.triangles[idx]
		inLeft, inRight := false, false
		for i := 0; i < 3; i++ {
			value := tri.vertices[i].Position.Axis(axis)
			if value <= split {
				inLeft = true
			}
			if value >= split {
				inRight = true
			}
		}
		if inLeft {
			left = append(left, idx)
		}
		if inRight {
			right = append(right, idx)
		}
	}

	if float64(len(left)+len(right)) > duplicationLimit*float64(len(indices)) {
		node.Triangles = indices
		return node
	}

	if len(left) > 0 {
		node.Left = st.build(left, leftBounds, depth+1)
	}
	if len(right) > 0 {
		node.Right = st.build(right, rightBounds, depth+1)
	}

	return node
}

// Intersect returns the hit closest to the ray origin
func (st *SpaceTree) Intersect(ray core.Ray) RaycastResult {
	if st.Root == nil {
		return Miss
	}

	best := Miss
	bestDistance := 0.0
	st.intersectNode(st.Root, ray, &best, &bestDistance)
	return best
}

// intersectNode tests the node's own triangles, then both children
func (st *SpaceTree) intersectNode(node *SpaceTreeNode, ray core.Ray, best *RaycastResult, bestDistance *float64) {
	if !node.Bounds.Intersect(ray) {
		return
	}

	for _, idx := range node.Triangles {
		result := st.triangles[idx].Intersect(ray)
		if !result.Hit {
			continue
		}
		distance := result.Position.Subtract(ray.Origin).LengthSquared()
		if !best.Hit || distance < *bestDistance {
			*best = result
			*bestDistance = distance
		}
	}

	if node.Left != nil {
		st.intersectNode(node.Left, ray, best, bestDistance)
	}
	if node.Right != nil {
		st.intersectNode(node.Right, ray, best, bestDistance)
	}
}

// SpaceTreeStats contains statistics about the tree structure
type SpaceTreeStats struct {
	TotalNodes     int
	LeafNodes      int
	MaxDepth       int
	AvgLeafDepth   float64
	Triangles      int // distinct triangles indexed
	TriangleRefs   int // triangle references stored across all nodes
	FallbackLeaves int // nodes that rejected their split
}

// Stats walks the tree and collects structural statistics
func (st *SpaceTree) Stats() SpaceTreeStats {
	stats := SpaceTreeStats{Triangles: len(st.triangles)}
	if st.Root == nil {
		return stats
	}

	st.collectStats(st.Root, 0, &stats)

	if stats.LeafNodes > 0 {
		stats.AvgLeafDepth = stats.AvgLeafDepth / float64(stats.LeafNodes)
	}
	return stats
}

// collectStats recursively accumulates statistics
func (st *SpaceTree) collectStats(node *SpaceTreeNode, depth int, stats *SpaceTreeStats) {
	stats.TotalNodes++
	stats.TriangleRefs += len(node.Triangles)

	if depth > stats.MaxDepth {
		stats.MaxDepth = depth
	}

	if node.Left == nil && node.Right == nil {
		stats.LeafNodes++
		stats.AvgLeafDepth += float64(depth)
		if len(node.Triangles) > 1 && depth < maxTreeDepth {
			stats.FallbackLeaves++
		}
		return
	}

	if node.Left != nil {
		st.collectStats(node.Left, depth+1, stats)
	}
	if node.Right != nil {
		st.collectStats(node.Right, depth+1, stats)
	}
}
