package formats

import (
	"bufio"
	"fmt"
	"io"

	"github.com/Faultbox/clusterview/pkg/mesh"
)

// OBJGroup names a run of consecutive triangles.
type OBJGroup struct {
	Name      string
	Triangles int
}

// WriteOBJ writes the vertices of m and the triangle list indices. Each
// group becomes a g statement before its triangles; triangles past the
// last group are written ungrouped. Texture V is flipped back to the OBJ
// bottom-left origin.
func WriteOBJ(w io.Writer, m *mesh.Mesh, indices []uint32, groups []OBJGroup) error {
	if len(indices)%3 != 0 {
		return fmt.Errorf("write OBJ: %d indices is not a triangle list", len(indices))
	}
	n := uint32(len(m.Positions))
	for _, idx := range indices {
		if idx >= n {
			return fmt.Errorf("write OBJ: %w: %d >= %d", ErrOBJIndexOutOfRange, idx, n)
		}
	}
	hasUV := len(m.TexCoords) == len(m.Positions)
	hasNormal := len(m.Normals) == len(m.Positions)

	bw := bufio.NewWriter(w)
	for _, p := range m.Positions {
		fmt.Fprintf(bw, "v %g %g %g\n", p.X, p.Y, p.Z)
	}
	if hasUV {
		for _, uv := range m.TexCoords {
			fmt.Fprintf(bw, "vt %g %g\n", uv.X, 1-uv.Y)
		}
	}
	if hasNormal {
		for _, nv := range m.Normals {
			fmt.Fprintf(bw, "vn %g %g %g\n", nv.X, nv.Y, nv.Z)
		}
	}

	group, left := 0, -1
	for t := 0; t*3 < len(indices); t++ {
		for left <= 0 && group < len(groups) {
			fmt.Fprintf(bw, "g %s\n", groups[group].Name)
			left = groups[group].Triangles
			group++
		}
		left--
		bw.WriteString("f")
		for _, idx := range indices[t*3 : t*3+3] {
			writeCorner(bw, idx+1, hasUV, hasNormal)
		}
		bw.WriteByte('\n')
	}
	return bw.Flush()
}

func writeCorner(bw *bufio.Writer, i uint32, hasUV, hasNormal bool) {
	switch {
	case hasUV && hasNormal:
		fmt.Fprintf(bw, " %d/%d/%d", i, i, i)
	case hasUV:
		fmt.Fprintf(bw, " %d/%d", i, i)
	case hasNormal:
		fmt.Fprintf(bw, " %d//%d", i, i)
	default:
		fmt.Fprintf(bw, " %d", i)
	}
}
