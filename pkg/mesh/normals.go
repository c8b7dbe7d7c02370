package mesh

import (
	"github.com/Faultbox/clusterview/pkg/math"
)

// ComputeNormals returns area-weighted vertex normals. Vertices not used by
// any triangle get +Y.
func ComputeNormals(positions []math.Vec3, indices []uint32) []math.Vec3 {
	normals := make([]math.Vec3, len(positions))
	for t := 0; t+2 < len(indices); t += 3 {
		a, b, c := indices[t], indices[t+1], indices[t+2]
		// Cross product length is twice the area, which gives the weighting.
		n := positions[b].Sub(positions[a]).Cross(positions[c].Sub(positions[a]))
		normals[a] = normals[a].Add(n)
		normals[b] = normals[b].Add(n)
		normals[c] = normals[c].Add(n)
	}
	for i, n := range normals {
		if n.Length() == 0 {
			normals[i] = math.Vec3{Y: 1}
			continue
		}
		normals[i] = n.Normalize()
	}
	return normals
}

// SmoothNormals averages normals of vertices that share a position, which
// hides seams where a loader split vertices on texture coordinates.
func SmoothNormals(positions, normals []math.Vec3) {
	const epsilon float32 = 0.001

	byPos := make(map[[3]int32][]int)
	for i, p := range positions {
		key := [3]int32{int32(p.X / epsilon), int32(p.Y / epsilon), int32(p.Z / epsilon)}
		byPos[key] = append(byPos[key], i)
	}

	for _, idxs := range byPos {
		if len(idxs) < 2 {
			continue
		}
		var sum math.Vec3
		for _, idx := range idxs {
			sum = sum.Add(normals[idx])
		}
		avg := sum.Normalize()
		for _, idx := range idxs {
			normals[idx] = avg
		}
	}
}

// ComputeTangents derives per-vertex tangents from texture coordinate
// gradients, orthogonalized against the normal.
func ComputeTangents(positions, normals []math.Vec3, uvs []math.Vec2, indices []uint32) []math.Vec3 {
	tangents := make([]math.Vec3, len(positions))
	if len(uvs) == len(positions) {
		for t := 0; t+2 < len(indices); t += 3 {
			a, b, c := indices[t], indices[t+1], indices[t+2]
			e1 := positions[b].Sub(positions[a])
			e2 := positions[c].Sub(positions[a])
			d1 := uvs[b].Sub(uvs[a])
			d2 := uvs[c].Sub(uvs[a])
			det := d1.X*d2.Y - d2.X*d1.Y
			if det == 0 {
				continue
			}
			tan := e1.Scale(d2.Y).Sub(e2.Scale(d1.Y)).Scale(1 / det)
			tangents[a] = tangents[a].Add(tan)
			tangents[b] = tangents[b].Add(tan)
			tangents[c] = tangents[c].Add(tan)
		}
	}

	for i := range tangents {
		n := math.Vec3{Y: 1}
		if i < len(normals) {
			n = normals[i]
		}
		// Gram-Schmidt
		tan := tangents[i].Sub(n.Scale(n.Dot(tangents[i])))
		if tan.Length() < 1e-6 {
			tan = perpendicular(n)
		}
		tangents[i] = tan.Normalize()
	}
	return tangents
}

// perpendicular returns some unit vector orthogonal to n.
func perpendicular(n math.Vec3) math.Vec3 {
	axis := math.Vec3{X: 1}
	if n.X > 0.9 || n.X < -0.9 {
		axis = math.Vec3{Y: 1}
	}
	return axis.Sub(n.Scale(n.Dot(axis))).Normalize()
}
