package meshlet

import (
	"github.com/chewxy/math32"

	"github.com/Faultbox/clusterview/pkg/math"
	"github.com/Faultbox/clusterview/pkg/mesh"
)

// minConeSpread is the smallest dot product between a triangle normal and
// the cone axis for which a cone is still worth testing.
const minConeSpread = 0.1

// ComputeClusterBounds returns the bounding sphere of the given source
// vertices: centered on their bounding box, radius to the farthest vertex.
// The cone test is left disabled. No vertices yields a zero sphere.
func ComputeClusterBounds(positions []math.Vec3, vertices []uint32) Bounds {
	b := Bounds{ConeCutoff: 1}
	if len(vertices) == 0 {
		return b
	}

	lo, hi := positions[vertices[0]], positions[vertices[0]]
	for _, v := range vertices[1:] {
		lo = lo.Min(positions[v])
		hi = hi.Max(positions[v])
	}
	b.Center = lo.Add(hi).Scale(0.5)

	var r2 float32
	for _, v := range vertices {
		d := positions[v].Sub(b.Center)
		r2 = math32.Max(r2, d.Dot(d))
	}
	b.Radius = math32.Sqrt(r2)
	b.ConeApex = b.Center
	return b
}

// ComputeClusterCone fills the normal cone of b from the meshlet's
// triangles. Axis is the mean face normal; the apex is pulled back along
// the axis until every triangle plane lies in front of it. Clusters whose
// normals spread too far keep the disabled cutoff.
func ComputeClusterCone(b *Bounds, positions []math.Vec3, vertices []uint32, tris []Triangle) {
	normals := make([]math.Vec3, 0, len(tris))
	var sum math.Vec3
	for _, t := range tris {
		p0, p1, p2 := positions[vertices[t[0]]], positions[vertices[t[1]]], positions[vertices[t[2]]]
		n := p1.Sub(p0).Cross(p2.Sub(p0))
		if n.Length() == 0 {
			continue
		}
		n = n.Normalize()
		normals = append(normals, n)
		sum = sum.Add(n)
	}
	axis := sum.Normalize()
	if len(normals) == 0 || axis == (math.Vec3{}) {
		return
	}

	minDot := float32(1)
	for _, n := range normals {
		minDot = math32.Min(minDot, n.Dot(axis))
	}
	if minDot <= minConeSpread {
		return
	}

	var maxT float32
	i := 0
	for _, t := range tris {
		p0, p1, p2 := positions[vertices[t[0]]], positions[vertices[t[1]]], positions[vertices[t[2]]]
		if p1.Sub(p0).Cross(p2.Sub(p0)).Length() == 0 {
			continue
		}
		n := normals[i]
		i++
		// distance along -axis from the center to this triangle's plane
		dist := b.Center.Sub(p0).Dot(n) / axis.Dot(n)
		maxT = math32.Max(maxT, dist)
	}

	b.ConeAxis = axis
	b.ConeApex = b.Center.Sub(axis.Scale(maxT))
	b.ConeCutoff = math32.Sqrt(1 - minDot*minDot)
}

// computeMeshBounds sets the overall box and sphere of a clustered mesh.
func computeMeshBounds(mm *MeshletMesh) {
	box := mesh.BoundsOf(mm.Source.Positions)
	mm.Box = box
	mm.SphereCenter = box.Center()
	var r2 float32
	for _, p := range mm.Source.Positions {
		d := p.Sub(mm.SphereCenter)
		r2 = math32.Max(r2, d.Dot(d))
	}
	mm.SphereRadius = math32.Sqrt(r2)
}
