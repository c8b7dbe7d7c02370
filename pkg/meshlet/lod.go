package meshlet

import (
	"github.com/chewxy/math32"

	"github.com/Faultbox/clusterview/pkg/math"
)

// BuildLODHierarchy replaces mm.Nodes with a bottom-up hierarchy: one leaf
// per meshlet, then levels grouping LODGroupSize consecutive nodes of the
// level below, until a level has a single node or maxLevels levels exist.
// Every parent sphere encloses its children's spheres.
func BuildLODHierarchy(mm *MeshletMesh, maxLevels int) {
	mm.Nodes = mm.Nodes[:0]
	mm.Levels = mm.Levels[:0]
	if len(mm.Meshlets) == 0 {
		return
	}

	for i := range mm.Meshlets {
		n := ClusterNode{
			MeshletStart: uint32(i),
			MeshletCount: 1,
			ParentIndex:  NoParent,
		}
		if i < len(mm.Bounds) {
			n.BoundCenter = mm.Bounds[i].Center
			n.BoundRadius = mm.Bounds[i].Radius
		}
		mm.Nodes = append(mm.Nodes, n)
	}
	level := NodeRange{Start: 0, Count: uint32(len(mm.Meshlets))}
	mm.Levels = append(mm.Levels, level)

	for depth := 1; depth < maxLevels && level.Count > 1; depth++ {
		next := NodeRange{Start: uint32(len(mm.Nodes))}
		for first := level.Start; first < level.Start+level.Count; first += LODGroupSize {
			count := min(uint32(LODGroupSize), level.Start+level.Count-first)
			parentIndex := next.Start + next.Count
			parent := groupNodes(mm.Nodes[first : first+count])
			parent.ChildStart = first
			parent.ChildCount = count
			parent.ParentIndex = NoParent
			parent.LODError = float32(depth) * LODErrorStep
			parent.Level = uint32(depth)

			for c := first; c < first+count; c++ {
				mm.Nodes[c].ParentIndex = parentIndex
			}
			mm.Nodes = append(mm.Nodes, parent)
			next.Count++
		}
		mm.Levels = append(mm.Levels, next)
		level = next
	}
}

// groupNodes returns a node whose sphere circumscribes the bounding box of
// the children's spheres and whose meshlet range spans theirs.
func groupNodes(children []ClusterNode) ClusterNode {
	r := math.Vec3{X: children[0].BoundRadius, Y: children[0].BoundRadius, Z: children[0].BoundRadius}
	lo := children[0].BoundCenter.Sub(r)
	hi := children[0].BoundCenter.Add(r)
	start := children[0].MeshletStart
	end := start + children[0].MeshletCount
	for _, c := range children[1:] {
		r := math.Vec3{X: c.BoundRadius, Y: c.BoundRadius, Z: c.BoundRadius}
		lo = lo.Min(c.BoundCenter.Sub(r))
		hi = hi.Max(c.BoundCenter.Add(r))
		start = min(start, c.MeshletStart)
		end = max(end, c.MeshletStart+c.MeshletCount)
	}

	center := lo.Add(hi).Scale(0.5)
	corner := hi.Sub(center)
	return ClusterNode{
		BoundCenter:  center,
		BoundRadius:  math32.Sqrt(corner.Dot(corner)),
		MeshletStart: start,
		MeshletCount: end - start,
	}
}
