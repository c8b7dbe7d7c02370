// Package meshlet partitions triangle meshes into bounded clusters
// (meshlets), computes their culling bounds and groups them into a
// bounding-volume LOD hierarchy.
package meshlet

import (
	"errors"
	"fmt"

	"github.com/Faultbox/clusterview/pkg/math"
	"github.com/Faultbox/clusterview/pkg/mesh"
)

// Cluster limits.
const (
	MaxVertices   = 64
	MaxPrimitives = 124
)

// Hierarchy parameters.
const (
	LODGroupSize        = 4
	DefaultMaxLODLevels = 8
	LODErrorStep        = 0.1
)

// NoParent marks a root node.
const NoParent = ^uint32(0)

// ErrInvalidCluster is returned by Validate for inconsistent tables.
var ErrInvalidCluster = errors.New("invalid cluster")

// Meshlet references ranges of the shared vertex-index and primitive tables.
type Meshlet struct {
	VertexOffset    uint32
	VertexCount     uint32
	PrimitiveOffset uint32
	PrimitiveCount  uint32
}

// Triangle holds three local indices into a meshlet's vertex range.
type Triangle [3]uint8

// Bounds is the culling volume of one meshlet in object space.
// ConeCutoff == 1 means the cone test is disabled.
type Bounds struct {
	Center     math.Vec3
	Radius     float32
	ConeApex   math.Vec3
	ConeAxis   math.Vec3
	ConeCutoff float32
}

// ConeDisabled reports whether the normal cone carries no information.
func (b Bounds) ConeDisabled() bool {
	return b.ConeCutoff >= 1
}

// ClusterNode is one entry of the LOD hierarchy arena. Leaves cover one
// meshlet; internal nodes reference ChildCount consecutive nodes of the
// level below starting at ChildStart.
type ClusterNode struct {
	BoundCenter  math.Vec3
	BoundRadius  float32
	LODError     float32
	MeshletStart uint32
	MeshletCount uint32
	ChildStart   uint32
	ChildCount   uint32
	ParentIndex  uint32
	Level        uint32
}

// IsLeaf reports whether the node references a meshlet directly.
func (n ClusterNode) IsLeaf() bool {
	return n.ChildCount == 0
}

// IsRoot reports whether the node has no parent.
func (n ClusterNode) IsRoot() bool {
	return n.ParentIndex == NoParent
}

// NodeRange is a contiguous run of nodes forming one hierarchy level.
type NodeRange struct {
	Start, Count uint32
}

// MeshletMesh is the clustered form of a mesh. It is built once and then
// only read.
type MeshletMesh struct {
	Source *mesh.Mesh

	Meshlets            []Meshlet
	Bounds              []Bounds
	UniqueVertexIndices []uint32
	PrimitiveIndices    []Triangle

	Nodes  []ClusterNode
	Levels []NodeRange

	Box          mesh.AABB
	SphereCenter math.Vec3
	SphereRadius float32
}

// ClusterCount returns the number of meshlets.
func (mm *MeshletMesh) ClusterCount() int {
	return len(mm.Meshlets)
}

// TriangleCount returns the number of triangles across all meshlets.
func (mm *MeshletMesh) TriangleCount() int {
	return len(mm.PrimitiveIndices)
}

// VertexCount returns the source vertex count.
func (mm *MeshletMesh) VertexCount() int {
	if mm.Source == nil {
		return 0
	}
	return len(mm.Source.Positions)
}

// ClusterVertices returns the source vertex indices of meshlet i.
func (mm *MeshletMesh) ClusterVertices(i int) []uint32 {
	m := mm.Meshlets[i]
	return mm.UniqueVertexIndices[m.VertexOffset : m.VertexOffset+m.VertexCount]
}

// ClusterTriangles returns the local triangles of meshlet i.
func (mm *MeshletMesh) ClusterTriangles(i int) []Triangle {
	m := mm.Meshlets[i]
	return mm.PrimitiveIndices[m.PrimitiveOffset : m.PrimitiveOffset+m.PrimitiveCount]
}

// Roots returns the indices of all parentless nodes.
func (mm *MeshletMesh) Roots() []uint32 {
	var roots []uint32
	for i, n := range mm.Nodes {
		if n.IsRoot() {
			roots = append(roots, uint32(i))
		}
	}
	return roots
}

// Validate checks the cluster limits and that every table range and local
// index resolves.
func (mm *MeshletMesh) Validate() error {
	for i, m := range mm.Meshlets {
		if m.VertexCount > MaxVertices || m.PrimitiveCount > MaxPrimitives {
			return fmt.Errorf("%w: meshlet %d has %d vertices, %d primitives", ErrInvalidCluster, i, m.VertexCount, m.PrimitiveCount)
		}
		if int(m.VertexOffset+m.VertexCount) > len(mm.UniqueVertexIndices) ||
			int(m.PrimitiveOffset+m.PrimitiveCount) > len(mm.PrimitiveIndices) {
			return fmt.Errorf("%w: meshlet %d range outside tables", ErrInvalidCluster, i)
		}
		for _, tri := range mm.ClusterTriangles(i) {
			for _, l := range tri {
				if uint32(l) >= m.VertexCount {
					return fmt.Errorf("%w: meshlet %d local index %d >= %d", ErrInvalidCluster, i, l, m.VertexCount)
				}
			}
		}
		if mm.Source != nil {
			for _, v := range mm.ClusterVertices(i) {
				if int(v) >= len(mm.Source.Positions) {
					return fmt.Errorf("%w: meshlet %d vertex %d out of range", ErrInvalidCluster, i, v)
				}
			}
		}
	}
	if len(mm.Bounds) != 0 && len(mm.Bounds) != len(mm.Meshlets) {
		return fmt.Errorf("%w: %d bounds for %d meshlets", ErrInvalidCluster, len(mm.Bounds), len(mm.Meshlets))
	}
	return nil
}

// Flatten expands every meshlet back into a triangle list of source vertex
// indices, in meshlet order.
func (mm *MeshletMesh) Flatten() []uint32 {
	out := make([]uint32, 0, len(mm.PrimitiveIndices)*3)
	for i := range mm.Meshlets {
		verts := mm.ClusterVertices(i)
		for _, tri := range mm.ClusterTriangles(i) {
			out = append(out, verts[tri[0]], verts[tri[1]], verts[tri[2]])
		}
	}
	return out
}
