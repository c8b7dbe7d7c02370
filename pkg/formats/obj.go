package formats

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/Faultbox/clusterview/pkg/math"
	"github.com/Faultbox/clusterview/pkg/mesh"
)

// OBJ format errors.
var (
	ErrMalformedOBJ       = errors.New("malformed OBJ")
	ErrOBJIndexOutOfRange = errors.New("OBJ index out of range")
)

// OBJ is a parsed Wavefront OBJ file flattened to one indexed mesh.
type OBJ struct {
	Mesh *mesh.Mesh

	// Objects lists the o/g names in file order.
	Objects     []string
	MaterialLib string

	// Whether the attributes came from the file or were generated.
	HasTexCoords bool
	HasNormals   bool

	Faces int // polygons before triangulation
}

// objCorner is the resolved (position, texcoord, normal) index triple of a
// face corner. -1 means absent.
type objCorner struct {
	p, t, n int
}

type objParser struct {
	positions []math.Vec3
	texCoords []math.Vec2
	normals   []math.Vec3

	out     *mesh.Mesh
	cache   map[objCorner]uint32
	corners []uint32
	result  *OBJ
}

// ParseOBJ parses OBJ text. Polygons are fan-triangulated and each
// distinct v/vt/vn corner becomes one vertex. Texture V is flipped to a
// top-left origin. Missing texture coordinates are generated with a
// spherical projection; missing normals are computed from the faces.
func ParseOBJ(data []byte) (*OBJ, error) {
	p := &objParser{
		out:    &mesh.Mesh{},
		cache:  make(map[objCorner]uint32),
		result: &OBJ{},
	}

	sc := bufio.NewScanner(bytes.NewReader(data))
	sc.Buffer(make([]byte, 64*1024), 16*1024*1024)
	line := 0
	for sc.Scan() {
		line++
		if err := p.parseLine(sc.Text()); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("reading OBJ: %w", err)
	}
	return p.finish(), nil
}

func (p *objParser) parseLine(text string) error {
	if i := strings.IndexByte(text, '#'); i >= 0 {
		text = text[:i]
	}
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return nil
	}

	switch fields[0] {
	case "v":
		v, err := parseFloats(fields[1:], 3)
		if err != nil {
			return err
		}
		p.positions = append(p.positions, math.Vec3{X: v[0], Y: v[1], Z: v[2]})
	case "vt":
		v, err := parseFloats(fields[1:], 2)
		if err != nil {
			return err
		}
		p.texCoords = append(p.texCoords, math.Vec2{X: v[0], Y: 1 - v[1]})
	case "vn":
		v, err := parseFloats(fields[1:], 3)
		if err != nil {
			return err
		}
		p.normals = append(p.normals, math.Vec3{X: v[0], Y: v[1], Z: v[2]}.Normalize())
	case "f":
		return p.parseFace(fields[1:])
	case "o", "g":
		if len(fields) > 1 {
			p.result.Objects = append(p.result.Objects, strings.Join(fields[1:], " "))
		}
	case "mtllib":
		if len(fields) > 1 {
			p.result.MaterialLib = strings.Join(fields[1:], " ")
		}
	}
	// usemtl, s, l, p and unknown statements are ignored.
	return nil
}

func parseFloats(fields []string, want int) ([]float32, error) {
	if len(fields) < want {
		return nil, fmt.Errorf("%w: want %d components, got %d", ErrMalformedOBJ, want, len(fields))
	}
	out := make([]float32, want)
	for i := 0; i < want; i++ {
		f, err := strconv.ParseFloat(fields[i], 32)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedOBJ, err)
		}
		out[i] = float32(f)
	}
	return out, nil
}

func (p *objParser) parseFace(fields []string) error {
	if len(fields) < 3 {
		return fmt.Errorf("%w: face with %d corners", ErrMalformedOBJ, len(fields))
	}
	p.corners = p.corners[:0]
	for _, f := range fields {
		c, err := p.resolveCorner(f)
		if err != nil {
			return err
		}
		p.corners = append(p.corners, p.vertex(c))
	}
	for i := 1; i+1 < len(p.corners); i++ {
		p.out.Indices = append(p.out.Indices, p.corners[0], p.corners[i], p.corners[i+1])
	}
	p.result.Faces++
	return nil
}

// resolveCorner parses "p", "p/t", "p//n" or "p/t/n", with negative
// indices counting back from the latest element.
func (p *objParser) resolveCorner(s string) (objCorner, error) {
	parts := strings.Split(s, "/")
	if len(parts) > 3 || parts[0] == "" {
		return objCorner{}, fmt.Errorf("%w: corner %q", ErrMalformedOBJ, s)
	}
	c := objCorner{p: -1, t: -1, n: -1}
	var err error
	if c.p, err = resolveIndex(parts[0], len(p.positions)); err != nil {
		return c, err
	}
	if len(parts) > 1 && parts[1] != "" {
		if c.t, err = resolveIndex(parts[1], len(p.texCoords)); err != nil {
			return c, err
		}
	}
	if len(parts) > 2 && parts[2] != "" {
		if c.n, err = resolveIndex(parts[2], len(p.normals)); err != nil {
			return c, err
		}
	}
	return c, nil
}

func resolveIndex(s string, count int) (int, error) {
	i, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("%w: index %q", ErrMalformedOBJ, s)
	}
	switch {
	case i > 0:
		i--
	case i < 0:
		i += count
	default:
		return 0, fmt.Errorf("%w: index 0", ErrMalformedOBJ)
	}
	if i < 0 || i >= count {
		return 0, fmt.Errorf("%w: %s of %d", ErrOBJIndexOutOfRange, s, count)
	}
	return i, nil
}

func (p *objParser) vertex(c objCorner) uint32 {
	if idx, ok := p.cache[c]; ok {
		return idx
	}
	idx := uint32(len(p.out.Positions))
	p.out.Positions = append(p.out.Positions, p.positions[c.p])
	if c.t >= 0 {
		p.out.TexCoords = append(p.out.TexCoords, p.texCoords[c.t])
	} else {
		p.out.TexCoords = append(p.out.TexCoords, math.Vec2{})
	}
	if c.n >= 0 {
		p.out.Normals = append(p.out.Normals, p.normals[c.n])
	} else {
		p.out.Normals = append(p.out.Normals, math.Vec3{})
	}
	p.cache[c] = idx
	return idx
}

func (p *objParser) finish() *OBJ {
	m := p.out
	p.result.HasTexCoords = len(p.texCoords) > 0
	p.result.HasNormals = len(p.normals) > 0
	if !p.result.HasTexCoords {
		m.TexCoords = nil
	}
	if !p.result.HasNormals {
		m.Normals = nil
	} else {
		fillMissingNormals(m)
	}
	if len(m.Positions) > 0 {
		m.Complete()
	}
	p.result.Mesh = m
	return p.result
}

// fillMissingNormals replaces the normals of corners that had none with
// face-derived ones.
func fillMissingNormals(m *mesh.Mesh) {
	var computed []math.Vec3
	for i, n := range m.Normals {
		if n != (math.Vec3{}) {
			continue
		}
		if computed == nil {
			computed = mesh.ComputeNormals(m.Positions, m.Indices)
		}
		m.Normals[i] = computed[i]
	}
}

// ParseOBJFile reads and parses an OBJ file.
func ParseOBJFile(path string) (*OBJ, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading OBJ file: %w", err)
	}
	return ParseOBJ(data)
}
