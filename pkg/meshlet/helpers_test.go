package meshlet

import (
	"sort"

	"github.com/Faultbox/clusterview/pkg/math"
	"github.com/Faultbox/clusterview/pkg/mesh"
)

// disconnected returns n triangles that share no vertices, laid out on a
// loose grid.
func disconnected(n int) *mesh.Mesh {
	m := &mesh.Mesh{}
	for i := 0; i < n; i++ {
		o := math.Vec3{X: float32(i%30) * 3, Z: float32(i/30) * 3}
		base := uint32(len(m.Positions))
		m.Positions = append(m.Positions, o, o.Add(math.Vec3{X: 1}), o.Add(math.Vec3{Z: 1}))
		m.TexCoords = append(m.TexCoords, math.Vec2{}, math.Vec2{X: 1}, math.Vec2{Y: 1})
		m.Indices = append(m.Indices, base, base+1, base+2)
	}
	return m
}

// canonical rotates a triangle so its smallest index comes first while
// keeping the winding.
func canonical(a, b, c uint32) [3]uint32 {
	switch {
	case a <= b && a <= c:
		return [3]uint32{a, b, c}
	case b <= a && b <= c:
		return [3]uint32{b, c, a}
	default:
		return [3]uint32{c, a, b}
	}
}

// triangleSet returns the sorted canonical triangles of an index list.
func triangleSet(indices []uint32) [][3]uint32 {
	out := make([][3]uint32, 0, len(indices)/3)
	for i := 0; i+2 < len(indices); i += 3 {
		out = append(out, canonical(indices[i], indices[i+1], indices[i+2]))
	}
	sort.Slice(out, func(i, j int) bool {
		for k := 0; k < 3; k++ {
			if out[i][k] != out[j][k] {
				return out[i][k] < out[j][k]
			}
		}
		return false
	})
	return out
}

func testMeshes() map[string]*mesh.Mesh {
	return map[string]*mesh.Mesh{
		"grid":         mesh.Grid(20),
		"geosphere":    mesh.Geosphere(1, 3),
		"box":          mesh.Box(math.Vec3{X: 1, Y: 1, Z: 1}),
		"disconnected": disconnected(300),
	}
}
