package formats

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/Faultbox/clusterview/pkg/math"
)

const quadOBJ = `# unit quad
mtllib quad.mtl
o Quad
v 0 0 0
v 1 0 0
v 1 1 0
v 0 1 0
vt 0 0
vt 1 0
vt 1 1
vt 0 1
vn 0 0 1
usemtl default
s off
f 1/1/1 2/2/1 3/3/1 4/4/1
`

func TestParseOBJ_Quad(t *testing.T) {
	obj, err := ParseOBJ([]byte(quadOBJ))
	if err != nil {
		t.Fatalf("failed to parse quad: %v", err)
	}

	m := obj.Mesh
	if len(m.Positions) != 4 {
		t.Errorf("expected 4 vertices, got %d", len(m.Positions))
	}
	if len(m.Indices) != 6 {
		t.Errorf("expected 2 triangles, got %d indices", len(m.Indices))
	}
	want := []uint32{0, 1, 2, 0, 2, 3}
	for i, idx := range want {
		if m.Indices[i] != idx {
			t.Errorf("index %d: expected %d, got %d", i, idx, m.Indices[i])
		}
	}
	if obj.Faces != 1 {
		t.Errorf("expected 1 face, got %d", obj.Faces)
	}
	if !obj.HasTexCoords || !obj.HasNormals {
		t.Error("expected texcoords and normals from file")
	}
	if obj.MaterialLib != "quad.mtl" {
		t.Errorf("expected material lib 'quad.mtl', got %q", obj.MaterialLib)
	}
	if len(obj.Objects) != 1 || obj.Objects[0] != "Quad" {
		t.Errorf("unexpected objects %v", obj.Objects)
	}

	// V is flipped to a top-left origin.
	if m.TexCoords[0] != (math.Vec2{X: 0, Y: 1}) {
		t.Errorf("expected flipped uv (0,1), got %v", m.TexCoords[0])
	}
	if m.Normals[2] != (math.Vec3{Z: 1}) {
		t.Errorf("expected +Z normal, got %v", m.Normals[2])
	}
	if len(m.Tangents) != 4 {
		t.Errorf("expected generated tangents, got %d", len(m.Tangents))
	}
	if err := m.Validate(); err != nil {
		t.Errorf("parsed mesh does not validate: %v", err)
	}
}

func TestParseOBJ_SharedCorners(t *testing.T) {
	src := `
v 0 0 0
v 1 0 0
v 0 1 0
v 1 1 0
vt 0 0
f 1/1 2/1 3/1
f 2/1 4/1 3/1
f 2 4 3
`
	obj, err := ParseOBJ([]byte(src))
	if err != nil {
		t.Fatalf("failed to parse: %v", err)
	}
	// The last face uses corners without texcoords, which are distinct vertices.
	if got := len(obj.Mesh.Positions); got != 7 {
		t.Errorf("expected 7 vertices, got %d", got)
	}
	if got := obj.Mesh.TriangleCount(); got != 3 {
		t.Errorf("expected 3 triangles, got %d", got)
	}
}

func TestParseOBJ_NegativeIndices(t *testing.T) {
	src := `
v 0 0 0
v 1 0 0
v 0 1 0
f -3 -2 -1
`
	obj, err := ParseOBJ([]byte(src))
	if err != nil {
		t.Fatalf("failed to parse: %v", err)
	}
	if obj.Mesh.Positions[obj.Mesh.Indices[0]] != (math.Vec3{}) {
		t.Errorf("expected -3 to resolve to the first vertex")
	}
	if obj.Mesh.Positions[obj.Mesh.Indices[2]] != (math.Vec3{Y: 1}) {
		t.Errorf("expected -1 to resolve to the last vertex")
	}
}

func TestParseOBJ_GeneratesAttributes(t *testing.T) {
	src := `
v 0 0 0
v 1 0 0
v 0 0 -1
f 1 2 3
`
	obj, err := ParseOBJ([]byte(src))
	if err != nil {
		t.Fatalf("failed to parse: %v", err)
	}
	if obj.HasTexCoords || obj.HasNormals {
		t.Error("expected generated attributes")
	}
	m := obj.Mesh
	if len(m.TexCoords) != 3 || len(m.Normals) != 3 {
		t.Fatalf("expected generated uv and normals, got %d and %d", len(m.TexCoords), len(m.Normals))
	}
	// Counter-clockwise seen from above.
	if n := m.Normals[0]; n.Y < 0.99 {
		t.Errorf("expected +Y face normal, got %v", n)
	}
}

func TestParseOBJ_MixedNormals(t *testing.T) {
	src := `
v 0 0 0
v 1 0 0
v 0 0 -1
vn 0 1 0
f 1//1 2 3
`
	obj, err := ParseOBJ([]byte(src))
	if err != nil {
		t.Fatalf("failed to parse: %v", err)
	}
	for i, n := range obj.Mesh.Normals {
		if n == (math.Vec3{}) {
			t.Errorf("normal %d left zero", i)
		}
	}
}

func TestParseOBJ_Errors(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want error
	}{
		{"short vertex", "v 1 2\n", ErrMalformedOBJ},
		{"bad float", "v 1 x 2\n", ErrMalformedOBJ},
		{"two corner face", "v 0 0 0\nv 1 0 0\nf 1 2\n", ErrMalformedOBJ},
		{"zero index", "v 0 0 0\nv 1 0 0\nv 0 1 0\nf 0 1 2\n", ErrMalformedOBJ},
		{"index past end", "v 0 0 0\nv 1 0 0\nv 0 1 0\nf 1 2 4\n", ErrOBJIndexOutOfRange},
		{"texcoord past end", "v 0 0 0\nv 1 0 0\nv 0 1 0\nf 1/1 2/1 3/1\n", ErrOBJIndexOutOfRange},
		{"too many slashes", "v 0 0 0\nf 1/1/1/1 1 1\n", ErrMalformedOBJ},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseOBJ([]byte(tt.src))
			if !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestParseOBJ_Empty(t *testing.T) {
	obj, err := ParseOBJ([]byte("# nothing here\n\n"))
	if err != nil {
		t.Fatalf("empty OBJ should parse: %v", err)
	}
	if !obj.Mesh.Empty() {
		t.Error("expected empty mesh")
	}
}

func TestParseOBJFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "quad.obj")
	if err := os.WriteFile(path, []byte(quadOBJ), 0644); err != nil {
		t.Fatalf("failed to write test file: %v", err)
	}
	obj, err := ParseOBJFile(path)
	if err != nil {
		t.Fatalf("failed to parse file: %v", err)
	}
	if obj.Mesh.TriangleCount() != 2 {
		t.Errorf("expected 2 triangles, got %d", obj.Mesh.TriangleCount())
	}

	if _, err := ParseOBJFile(filepath.Join(t.TempDir(), "missing.obj")); err == nil {
		t.Error("expected error for missing file")
	}
}
