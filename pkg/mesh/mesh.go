// Package mesh defines the flat indexed triangle mesh consumed by the
// cluster builder, plus helpers to fill in missing attributes and generate
// fallback shapes.
package mesh

import (
	"errors"
	"fmt"

	"github.com/Faultbox/clusterview/pkg/math"
)

// Validation errors.
var (
	ErrIndexCount       = errors.New("index count is not a multiple of 3")
	ErrIndexOutOfRange  = errors.New("index out of range")
	ErrAttributeLength  = errors.New("attribute length does not match vertex count")
	ErrMissingTexCoords = errors.New("texture coordinates missing")
)

// Mesh is an indexed triangle list. All attribute slices share the vertex
// count of Positions; Normals and Tangents may be nil.
type Mesh struct {
	Positions []math.Vec3
	Normals   []math.Vec3
	TexCoords []math.Vec2
	Tangents  []math.Vec3
	Indices   []uint32
}

// AABB is an axis-aligned bounding box.
type AABB struct {
	Min, Max math.Vec3
}

// Center returns the box midpoint.
func (b AABB) Center() math.Vec3 {
	return b.Min.Add(b.Max).Scale(0.5)
}

// Extent returns the half size of the box.
func (b AABB) Extent() math.Vec3 {
	return b.Max.Sub(b.Min).Scale(0.5)
}

// VertexCount returns the number of vertices.
func (m *Mesh) VertexCount() int {
	return len(m.Positions)
}

// TriangleCount returns the number of triangles.
func (m *Mesh) TriangleCount() int {
	return len(m.Indices) / 3
}

// Empty reports whether the mesh has nothing to cluster.
func (m *Mesh) Empty() bool {
	return m == nil || len(m.Positions) == 0 || len(m.Indices) == 0
}

// Validate checks the index list and attribute lengths.
func (m *Mesh) Validate() error {
	n := len(m.Positions)
	if len(m.Indices)%3 != 0 {
		return fmt.Errorf("%w: %d indices", ErrIndexCount, len(m.Indices))
	}
	for i, idx := range m.Indices {
		if int(idx) >= n {
			return fmt.Errorf("%w: indices[%d] = %d, vertex count %d", ErrIndexOutOfRange, i, idx, n)
		}
	}
	if m.Normals != nil && len(m.Normals) != n {
		return fmt.Errorf("%w: %d normals for %d vertices", ErrAttributeLength, len(m.Normals), n)
	}
	if m.Tangents != nil && len(m.Tangents) != n {
		return fmt.Errorf("%w: %d tangents for %d vertices", ErrAttributeLength, len(m.Tangents), n)
	}
	if len(m.TexCoords) != n {
		if len(m.TexCoords) == 0 && n > 0 {
			return ErrMissingTexCoords
		}
		return fmt.Errorf("%w: %d texcoords for %d vertices", ErrAttributeLength, len(m.TexCoords), n)
	}
	return nil
}

// Bounds returns the bounding box of all positions.
func (m *Mesh) Bounds() AABB {
	return BoundsOf(m.Positions)
}

// BoundsOf returns the bounding box of the given points. An empty slice
// yields a zero box.
func BoundsOf(points []math.Vec3) AABB {
	if len(points) == 0 {
		return AABB{}
	}
	b := AABB{Min: points[0], Max: points[0]}
	for _, p := range points[1:] {
		b.Min = b.Min.Min(p)
		b.Max = b.Max.Max(p)
	}
	return b
}

// Complete fills in attributes a loader left out: spherical texture
// coordinates, smooth normals and tangents.
func (m *Mesh) Complete() {
	if len(m.TexCoords) == 0 {
		m.TexCoords = SphericalUV(m.Positions)
	}
	if m.Normals == nil {
		m.Normals = ComputeNormals(m.Positions, m.Indices)
	}
	if m.Tangents == nil {
		m.Tangents = ComputeTangents(m.Positions, m.Normals, m.TexCoords, m.Indices)
	}
}
