package cluster

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/Faultbox/clusterview/internal/gpu"
	"github.com/Faultbox/clusterview/pkg/mesh"
	"github.com/Faultbox/clusterview/pkg/meshlet"
)

// meshResources are the device buffers of one uploaded mesh.
type meshResources struct {
	mm *meshlet.MeshletMesh

	vertices      gpu.Buffer
	meshlets      gpu.Buffer
	bounds        gpu.Buffer
	vertexIndices gpu.Buffer
	primitives    gpu.Buffer
	frames        [FrameSlots]gpu.Buffer

	fallbackVertices   gpu.Buffer
	fallbackIndices    gpu.Buffer
	fallbackIndexCount int

	instances     gpu.Buffer
	instanceCount int
}

func (res *meshResources) empty() bool {
	return res.mm.ClusterCount() == 0
}

func (res *meshResources) destroy(dev gpu.Device) {
	for _, b := range []gpu.Buffer{res.vertices, res.meshlets, res.bounds, res.vertexIndices, res.primitives, res.fallbackVertices, res.fallbackIndices, res.instances} {
		if b != nil {
			dev.DestroyBuffer(b)
		}
	}
	for _, b := range res.frames {
		if b != nil {
			dev.DestroyBuffer(b)
		}
	}
}

// UploadMesh uploads mm as mesh meshIndex, replacing whatever was there.
// Instances already set for that index are uploaded with it. Cached
// statistics are reset.
func (r *Renderer) UploadMesh(mm *meshlet.MeshletMesh, meshIndex int) error {
	if mm == nil {
		return fmt.Errorf("upload mesh %d: nil mesh", meshIndex)
	}
	if meshIndex < 0 {
		return fmt.Errorf("upload mesh: negative index %d", meshIndex)
	}
	if err := r.checkMeshCapacity(mm, meshIndex); err != nil {
		return fmt.Errorf("upload mesh %d: %w", meshIndex, err)
	}
	if err := r.checkGroups(uint32(meshIndex), mm.ClusterCount(), r.instancesOf(uint32(meshIndex))); err != nil {
		return fmt.Errorf("upload mesh %d: %w", meshIndex, err)
	}

	res := &meshResources{mm: mm}
	if !res.empty() {
		if err := r.uploadTables(res); err != nil {
			res.destroy(r.dev)
			return fmt.Errorf("upload mesh %d: %w", meshIndex, err)
		}
		if r.path == PathFallback {
			if err := r.uploadFallback(res); err != nil {
				res.destroy(r.dev)
				return fmt.Errorf("upload mesh %d: %w", meshIndex, err)
			}
		}
	} else {
		r.log.Warn("mesh has no clusters, nothing will be drawn for it", zap.Int("mesh", meshIndex))
	}
	up, err := r.stageInstances(res, meshIndex, r.instances)
	if err != nil {
		res.destroy(r.dev)
		return fmt.Errorf("upload mesh %d: %w", meshIndex, err)
	}
	res.commitInstances(r.dev, up)

	for len(r.meshes) <= meshIndex {
		r.meshes = append(r.meshes, nil)
	}
	if old := r.meshes[meshIndex]; old != nil {
		old.destroy(r.dev)
	}
	r.meshes[meshIndex] = res
	r.resetStats()

	r.log.Info("mesh uploaded",
		zap.Int("mesh", meshIndex),
		zap.Int("clusters", mm.ClusterCount()),
		zap.Int("triangles", mm.TriangleCount()),
		zap.Int("vertices", mm.VertexCount()),
		zap.Stringer("path", r.path),
	)
	return nil
}

// checkMeshCapacity rejects meshes whose tables exceed the renderer or
// device limits.
func (r *Renderer) checkMeshCapacity(mm *meshlet.MeshletMesh, meshIndex int) error {
	clusters := mm.ClusterCount()
	if r.cfg.MaxClusters > 0 && clusters > r.cfg.MaxClusters {
		return &CapacityError{Resource: "clusters", Requested: clusters, Limit: r.cfg.MaxClusters}
	}
	tables := []struct {
		name  string
		bytes int
	}{
		{"vertex table", mm.VertexCount() * gpu.VertexStride},
		{"meshlet table", clusters * gpu.MeshletStride},
		{"bounds table", clusters * gpu.BoundsStride},
		{"vertex index table", len(mm.UniqueVertexIndices) * gpu.IndexStride},
		{"primitive table", len(mm.PrimitiveIndices) * gpu.IndexStride},
		{"instance buffer", r.instancesOf(uint32(meshIndex)) * gpu.InstanceStride},
	}
	for _, t := range tables {
		if err := r.checkBytes(t.name, t.bytes); err != nil {
			return err
		}
	}
	if r.path == PathFallback {
		return r.checkFallbackCapacity(mm)
	}
	return nil
}

// checkFallbackCapacity rejects meshes whose pre-expanded draw buffers
// exceed the device buffer limit.
func (r *Renderer) checkFallbackCapacity(mm *meshlet.MeshletMesh) error {
	if err := r.checkBytes("fallback vertex buffer", len(mm.UniqueVertexIndices)*gpu.MeshletVertexStride); err != nil {
		return err
	}
	return r.checkBytes("fallback index buffer", len(mm.PrimitiveIndices)*3*gpu.IndexStride)
}

func (r *Renderer) checkBytes(name string, bytes int) error {
	if limit := r.caps.MaxStorageBufferBytes; limit > 0 && bytes > limit {
		return &CapacityError{Resource: name + " bytes", Requested: bytes, Limit: limit}
	}
	return nil
}

func (r *Renderer) createBuffer(label string, usage gpu.BufferUsage, stride int, records any) (gpu.Buffer, error) {
	data, err := gpu.Encode(records)
	if err != nil {
		return nil, err
	}
	buf, err := r.dev.CreateBuffer(gpu.BufferDesc{Label: label, Usage: usage, Size: len(data), Stride: stride}, data)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", label, err)
	}
	return buf, nil
}

// uploadTables creates the buffers the task and mesh stages read.
func (r *Renderer) uploadTables(res *meshResources) error {
	mm := res.mm
	var err error
	if res.vertices, err = r.createBuffer("vertices", gpu.UsageStorage, gpu.VertexStride, VertexTable(mm.Source)); err != nil {
		return err
	}
	if res.meshlets, err = r.createBuffer("meshlets", gpu.UsageStorage, gpu.MeshletStride, gpu.ToGPUMeshlets(mm.Meshlets)); err != nil {
		return err
	}
	if res.bounds, err = r.createBuffer("bounds", gpu.UsageStorage, gpu.BoundsStride, gpu.ToGPUBounds(mm.Bounds)); err != nil {
		return err
	}
	if res.vertexIndices, err = r.createBuffer("vertex-indices", gpu.UsageStorage, gpu.IndexStride, mm.UniqueVertexIndices); err != nil {
		return err
	}
	if res.primitives, err = r.createBuffer("primitives", gpu.UsageStorage, gpu.IndexStride, gpu.PackPrimitives(mm.PrimitiveIndices)); err != nil {
		return err
	}
	for i := range res.frames {
		res.frames[i], err = r.dev.CreateBuffer(gpu.BufferDesc{
			Label: fmt.Sprintf("frame-%d", i),
			Usage: gpu.UsageUniform,
			Size:  gpu.FrameConstantsSize,
		}, nil)
		if err != nil {
			return fmt.Errorf("create frame constants: %w", err)
		}
	}
	return nil
}

// uploadFallback creates the pre-expanded draw buffers once per mesh.
func (r *Renderer) uploadFallback(res *meshResources) error {
	if res.empty() || res.fallbackVertices != nil {
		return nil
	}
	verts, indices := ExpandFallback(res.mm)
	var err error
	if res.fallbackVertices, err = r.createBuffer("fallback-vertices", gpu.UsageVertex, gpu.MeshletVertexStride, verts); err != nil {
		return err
	}
	if res.fallbackIndices, err = r.createBuffer("fallback-indices", gpu.UsageIndex, gpu.IndexStride, indices); err != nil {
		return err
	}
	res.fallbackIndexCount = len(indices)
	return nil
}

// VertexTable converts the source attributes to device vertices. Missing
// normals and tangents are left zero.
func VertexTable(m *mesh.Mesh) []gpu.Vertex {
	if m == nil {
		return nil
	}
	out := make([]gpu.Vertex, len(m.Positions))
	for i, p := range m.Positions {
		v := gpu.Vertex{Position: p}
		if i < len(m.Normals) {
			v.Normal = m.Normals[i]
		}
		if i < len(m.TexCoords) {
			v.UV = m.TexCoords[i]
		}
		if i < len(m.Tangents) {
			v.Tangent = m.Tangents[i]
		}
		out[i] = v
	}
	return out
}

// ExpandFallback lays every meshlet out as its own vertex range tagged with
// the meshlet index, and returns indices into that buffer. Drawing the
// result reproduces the mesh with per-cluster identity intact.
func ExpandFallback(mm *meshlet.MeshletMesh) ([]gpu.MeshletVertex, []uint32) {
	verts := make([]gpu.MeshletVertex, 0, len(mm.UniqueVertexIndices))
	indices := make([]uint32, 0, len(mm.PrimitiveIndices)*3)
	src := VertexTable(mm.Source)
	for i := range mm.Meshlets {
		base := uint32(len(verts))
		for _, vi := range mm.ClusterVertices(i) {
			v := src[vi]
			verts = append(verts, gpu.MeshletVertex{
				Position:  v.Position,
				Normal:    v.Normal,
				UV:        v.UV,
				Tangent:   v.Tangent,
				MeshletID: uint32(i),
			})
		}
		for _, tri := range mm.ClusterTriangles(i) {
			indices = append(indices, base+uint32(tri[0]), base+uint32(tri[1]), base+uint32(tri[2]))
		}
	}
	return verts, indices
}

// groupsFor is the task group count one instance of a mesh needs.
func groupsFor(clusters int) int {
	return (clusters + gpu.TaskGroupSize - 1) / gpu.TaskGroupSize
}
