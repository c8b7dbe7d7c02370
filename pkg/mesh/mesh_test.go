package mesh

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Faultbox/clusterview/pkg/math"
)

func triangle() *Mesh {
	return &Mesh{
		Positions: []math.Vec3{{X: 0}, {X: 1}, {Y: 1}},
		TexCoords: []math.Vec2{{}, {X: 1}, {Y: 1}},
		Indices:   []uint32{0, 1, 2},
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(m *Mesh)
		want   error
	}{
		{"valid", func(m *Mesh) {}, nil},
		{"index count", func(m *Mesh) { m.Indices = append(m.Indices, 0) }, ErrIndexCount},
		{"index range", func(m *Mesh) { m.Indices[2] = 3 }, ErrIndexOutOfRange},
		{"normals length", func(m *Mesh) { m.Normals = []math.Vec3{{}} }, ErrAttributeLength},
		{"tangents length", func(m *Mesh) { m.Tangents = make([]math.Vec3, 4) }, ErrAttributeLength},
		{"uv length", func(m *Mesh) { m.TexCoords = m.TexCoords[:2] }, ErrAttributeLength},
		{"uv missing", func(m *Mesh) { m.TexCoords = nil }, ErrMissingTexCoords},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := triangle()
			tt.mutate(m)
			err := m.Validate()
			if tt.want == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestEmpty(t *testing.T) {
	var nilMesh *Mesh
	assert.True(t, nilMesh.Empty())
	assert.True(t, (&Mesh{}).Empty())
	assert.True(t, (&Mesh{Positions: []math.Vec3{{}}}).Empty())
	assert.False(t, triangle().Empty())
}

func TestBoundsOf(t *testing.T) {
	b := BoundsOf([]math.Vec3{{X: -1, Y: 2, Z: 0}, {X: 3, Y: -2, Z: 1}})
	assert.Equal(t, math.Vec3{X: -1, Y: -2, Z: 0}, b.Min)
	assert.Equal(t, math.Vec3{X: 3, Y: 2, Z: 1}, b.Max)
	assert.Equal(t, math.Vec3{X: 1, Y: 0, Z: 0.5}, b.Center())
	assert.Equal(t, AABB{}, BoundsOf(nil))
}

func TestComputeNormalsFacesWinding(t *testing.T) {
	m := triangle()
	normals := ComputeNormals(m.Positions, m.Indices)
	require.Len(t, normals, 3)
	for _, n := range normals {
		assert.InDelta(t, 1, n.Z, 1e-6)
	}
}

func TestComputeTangentsOrthogonal(t *testing.T) {
	m := Grid(4)
	require.Len(t, m.Tangents, len(m.Positions))
	for i := range m.Tangents {
		assert.InDelta(t, 1, m.Tangents[i].Length(), 1e-4)
		assert.InDelta(t, 0, m.Tangents[i].Dot(m.Normals[i]), 1e-4)
	}
}

func TestSphericalUVRange(t *testing.T) {
	g := Geosphere(2, 1)
	for _, uv := range g.TexCoords {
		assert.True(t, uv.X >= 0 && uv.X <= 1, "u out of range: %v", uv)
		assert.True(t, uv.Y >= 0 && uv.Y <= 1, "v out of range: %v", uv)
	}
	// Top of the sphere maps to v = 0.
	uv := SphericalUV([]math.Vec3{{Y: -1}, {Y: 1}})
	assert.InDelta(t, 0, uv[1].Y, 1e-6)
	assert.InDelta(t, 1, uv[0].Y, 1e-6)
}

func TestGeosphere(t *testing.T) {
	tests := []struct {
		subdiv    int
		vertices  int
		triangles int
	}{
		{0, 12, 20},
		{1, 42, 80},
		{2, 162, 320},
	}
	for _, tt := range tests {
		g := Geosphere(3, tt.subdiv)
		require.NoError(t, g.Validate())
		assert.Equal(t, tt.vertices, g.VertexCount())
		assert.Equal(t, tt.triangles, g.TriangleCount())
		for _, p := range g.Positions {
			assert.InDelta(t, 3, p.Length(), 1e-4)
		}
	}
}

func TestBoxAndGrid(t *testing.T) {
	box := Box(math.Vec3{X: 2, Y: 4, Z: 6})
	require.NoError(t, box.Validate())
	assert.Equal(t, 24, box.VertexCount())
	assert.Equal(t, 12, box.TriangleCount())
	b := box.Bounds()
	assert.Equal(t, math.Vec3{X: -1, Y: -2, Z: -3}, b.Min)
	assert.Equal(t, math.Vec3{X: 1, Y: 2, Z: 3}, b.Max)

	grid := Grid(3)
	require.NoError(t, grid.Validate())
	assert.Equal(t, 16, grid.VertexCount())
	assert.Equal(t, 18, grid.TriangleCount())
}

func TestSmoothNormals(t *testing.T) {
	positions := []math.Vec3{{X: 1}, {X: 1}, {Y: 5}}
	normals := []math.Vec3{{X: 1}, {Y: 1}, {Z: 1}}
	SmoothNormals(positions, normals)
	assert.Equal(t, normals[0], normals[1])
	assert.InDelta(t, 1, normals[0].Length(), 1e-6)
	assert.Equal(t, math.Vec3{Z: 1}, normals[2])
}
