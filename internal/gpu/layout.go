package gpu

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/Faultbox/clusterview/pkg/math"
	"github.com/Faultbox/clusterview/pkg/meshlet"
)

// Shade modes written into FrameConstants.ShadeMode.
const (
	ShadeSolid uint32 = iota
	ShadeClusterColor
	ShadeTexture
)

// FrameConstants is the per-frame uniform block.
type FrameConstants struct {
	View          math.Mat4
	Proj          math.Mat4
	ViewProj      math.Mat4
	InvView       math.Mat4
	Eye           math.Vec4
	Planes        [6]math.Vec4
	LightDir      math.Vec4
	TargetSize    math.Vec2
	ClusterCount  uint32
	InstanceCount uint32
	ShadeMode     uint32
	TaskGroupSize uint32
	_             [2]uint32
}

// Vertex is one entry of the source vertex table.
type Vertex struct {
	Position math.Vec3
	Normal   math.Vec3
	UV       math.Vec2
	Tangent  math.Vec3
}

// MeshletVertex is a vertex of the pre-expanded fallback buffer: the
// source attributes plus the meshlet it came from.
// Offsets: position 0, normal 12, uv 24, tangent 32, meshlet 44.
type MeshletVertex struct {
	Position  math.Vec3
	Normal    math.Vec3
	UV        math.Vec2
	Tangent   math.Vec3
	MeshletID uint32
}

// GPUMeshlet mirrors meshlet.Meshlet.
type GPUMeshlet struct {
	VertexOffset    uint32
	VertexCount     uint32
	PrimitiveOffset uint32
	PrimitiveCount  uint32
}

// GPUBounds mirrors meshlet.Bounds with vec4 alignment.
type GPUBounds struct {
	Center     math.Vec3
	Radius     float32
	ConeApex   math.Vec3
	_          float32
	ConeAxis   math.Vec3
	ConeCutoff float32
}

// GPUInstance is one placement record.
type GPUInstance struct {
	World     math.Mat4
	Normal    math.Mat4
	MeshIndex uint32
	_         [3]uint32
}

// Record strides in bytes.
var (
	FrameConstantsSize  = binary.Size(FrameConstants{})
	VertexStride        = binary.Size(Vertex{})
	MeshletVertexStride = binary.Size(MeshletVertex{})
	MeshletStride       = binary.Size(GPUMeshlet{})
	BoundsStride        = binary.Size(GPUBounds{})
	InstanceStride      = binary.Size(GPUInstance{})
)

// IndexStride is the element width of index and primitive buffers.
const IndexStride = 4

// PackTriangle widens three local indices to one 32-bit element.
func PackTriangle(t meshlet.Triangle) uint32 {
	return uint32(t[0]) | uint32(t[1])<<8 | uint32(t[2])<<16
}

// UnpackTriangle reverses PackTriangle.
func UnpackTriangle(p uint32) meshlet.Triangle {
	return meshlet.Triangle{uint8(p), uint8(p >> 8), uint8(p >> 16)}
}

// ToGPUMeshlets converts the meshlet table.
func ToGPUMeshlets(ms []meshlet.Meshlet) []GPUMeshlet {
	out := make([]GPUMeshlet, len(ms))
	for i, m := range ms {
		out[i] = GPUMeshlet(m)
	}
	return out
}

// ToGPUBounds converts the bounds table.
func ToGPUBounds(bs []meshlet.Bounds) []GPUBounds {
	out := make([]GPUBounds, len(bs))
	for i, b := range bs {
		out[i] = GPUBounds{Center: b.Center, Radius: b.Radius, ConeApex: b.ConeApex, ConeAxis: b.ConeAxis, ConeCutoff: b.ConeCutoff}
	}
	return out
}

// Bounds converts back to the geometry type.
func (b GPUBounds) Bounds() meshlet.Bounds {
	return meshlet.Bounds{Center: b.Center, Radius: b.Radius, ConeApex: b.ConeApex, ConeAxis: b.ConeAxis, ConeCutoff: b.ConeCutoff}
}

// PackPrimitives widens the primitive table.
func PackPrimitives(tris []meshlet.Triangle) []uint32 {
	out := make([]uint32, len(tris))
	for i, t := range tris {
		out[i] = PackTriangle(t)
	}
	return out
}

// Encode serializes fixed-size records little-endian.
func Encode(data any) ([]byte, error) {
	var buf bytes.Buffer
	if err := binary.Write(&buf, binary.LittleEndian, data); err != nil {
		return nil, fmt.Errorf("encode %T: %w", data, err)
	}
	return buf.Bytes(), nil
}

// Decode parses little-endian records into dst, which must be a pointer
// or a slice sized for the data.
func Decode(data []byte, dst any) error {
	if err := binary.Read(bytes.NewReader(data), binary.LittleEndian, dst); err != nil {
		return fmt.Errorf("decode %T: %w", dst, err)
	}
	return nil
}

// DecodeSlice decodes as many stride-sized T records as data holds.
func DecodeSlice[T any](data []byte, stride int) ([]T, error) {
	if stride <= 0 || len(data)%stride != 0 {
		return nil, fmt.Errorf("decode: %d bytes is not a multiple of stride %d", len(data), stride)
	}
	out := make([]T, len(data)/stride)
	if len(out) == 0 {
		return out, nil
	}
	if err := Decode(data, out); err != nil {
		return nil, err
	}
	return out, nil
}
