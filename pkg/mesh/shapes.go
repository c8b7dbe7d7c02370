package mesh

import (
	"github.com/chewxy/math32"

	"github.com/Faultbox/clusterview/pkg/math"
)

// Geosphere returns a subdivided icosahedron of the given radius. Each
// subdivision level splits every triangle into four.
func Geosphere(radius float32, subdivisions int) *Mesh {
	t := (1 + math32.Sqrt(5)) / 2
	positions := []math.Vec3{
		{X: -1, Y: t}, {X: 1, Y: t}, {X: -1, Y: -t}, {X: 1, Y: -t},
		{Y: -1, Z: t}, {Y: 1, Z: t}, {Y: -1, Z: -t}, {Y: 1, Z: -t},
		{X: t, Z: -1}, {X: t, Z: 1}, {X: -t, Z: -1}, {X: -t, Z: 1},
	}
	for i := range positions {
		positions[i] = positions[i].Normalize()
	}
	indices := []uint32{
		0, 11, 5, 0, 5, 1, 0, 1, 7, 0, 7, 10, 0, 10, 11,
		1, 5, 9, 5, 11, 4, 11, 10, 2, 10, 7, 6, 7, 1, 8,
		3, 9, 4, 3, 4, 2, 3, 2, 6, 3, 6, 8, 3, 8, 9,
		4, 9, 5, 2, 4, 11, 6, 2, 10, 8, 6, 7, 9, 8, 1,
	}

	for s := 0; s < subdivisions; s++ {
		mid := make(map[[2]uint32]uint32)
		midpoint := func(a, b uint32) uint32 {
			key := [2]uint32{min(a, b), max(a, b)}
			if idx, ok := mid[key]; ok {
				return idx
			}
			idx := uint32(len(positions))
			positions = append(positions, positions[a].Add(positions[b]).Normalize())
			mid[key] = idx
			return idx
		}
		next := make([]uint32, 0, len(indices)*4)
		for i := 0; i < len(indices); i += 3 {
			a, b, c := indices[i], indices[i+1], indices[i+2]
			ab, bc, ca := midpoint(a, b), midpoint(b, c), midpoint(c, a)
			next = append(next,
				a, ab, ca,
				b, bc, ab,
				c, ca, bc,
				ab, bc, ca,
			)
		}
		indices = next
	}

	normals := make([]math.Vec3, len(positions))
	copy(normals, positions)
	for i := range positions {
		positions[i] = positions[i].Scale(radius)
	}

	m := &Mesh{Positions: positions, Normals: normals, Indices: indices}
	m.Complete()
	return m
}

// Box returns an axis-aligned box centered on the origin with four
// vertices per face.
func Box(size math.Vec3) *Mesh {
	h := size.Scale(0.5)
	faces := []struct {
		n, u, v math.Vec3
	}{
		{math.Vec3{X: 1}, math.Vec3{Z: -1}, math.Vec3{Y: 1}},
		{math.Vec3{X: -1}, math.Vec3{Z: 1}, math.Vec3{Y: 1}},
		{math.Vec3{Y: 1}, math.Vec3{X: 1}, math.Vec3{Z: -1}},
		{math.Vec3{Y: -1}, math.Vec3{X: 1}, math.Vec3{Z: 1}},
		{math.Vec3{Z: 1}, math.Vec3{X: 1}, math.Vec3{Y: 1}},
		{math.Vec3{Z: -1}, math.Vec3{X: -1}, math.Vec3{Y: 1}},
	}

	m := &Mesh{}
	for _, f := range faces {
		base := uint32(len(m.Positions))
		for _, c := range [4]math.Vec2{{X: -1, Y: -1}, {X: 1, Y: -1}, {X: 1, Y: 1}, {X: -1, Y: 1}} {
			p := f.n.Add(f.u.Scale(c.X)).Add(f.v.Scale(c.Y))
			m.Positions = append(m.Positions, math.Vec3{X: p.X * h.X, Y: p.Y * h.Y, Z: p.Z * h.Z})
			m.Normals = append(m.Normals, f.n)
			m.TexCoords = append(m.TexCoords, math.Vec2{X: (c.X + 1) / 2, Y: (1 - c.Y) / 2})
		}
		m.Indices = append(m.Indices, base, base+1, base+2, base, base+2, base+3)
	}
	m.Complete()
	return m
}

// Grid returns an n x n quad grid on the XZ plane spanning [0, n] with
// shared vertices, 2*n*n triangles.
func Grid(n int) *Mesh {
	m := &Mesh{}
	for z := 0; z <= n; z++ {
		for x := 0; x <= n; x++ {
			m.Positions = append(m.Positions, math.Vec3{X: float32(x), Z: float32(z)})
			m.TexCoords = append(m.TexCoords, math.Vec2{X: float32(x) / float32(n), Y: float32(z) / float32(n)})
		}
	}
	row := uint32(n + 1)
	for z := uint32(0); z < uint32(n); z++ {
		for x := uint32(0); x < uint32(n); x++ {
			i := z*row + x
			m.Indices = append(m.Indices, i, i+row, i+1, i+1, i+row, i+row+1)
		}
	}
	m.Complete()
	return m
}
