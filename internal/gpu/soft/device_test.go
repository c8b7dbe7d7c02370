package soft

import (
	"sort"
	"testing"

	"github.com/chewxy/math32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Faultbox/clusterview/internal/gpu"
	"github.com/Faultbox/clusterview/pkg/culling"
	"github.com/Faultbox/clusterview/pkg/math"
	"github.com/Faultbox/clusterview/pkg/mesh"
	"github.com/Faultbox/clusterview/pkg/meshlet"
)

type scene struct {
	dev   *Device
	mm    *meshlet.MeshletMesh
	frame gpu.Buffer
	world []math.Mat4
}

func mustBuffer(t *testing.T, d *Device, label string, records any) gpu.Buffer {
	t.Helper()
	data, err := gpu.Encode(records)
	require.NoError(t, err)
	buf, err := d.CreateBuffer(gpu.BufferDesc{Label: label, Usage: gpu.UsageStorage}, data)
	require.NoError(t, err)
	return buf
}

func newScene(t *testing.T, m *mesh.Mesh, world ...math.Mat4) *scene {
	t.Helper()
	mm, err := meshlet.Build(m, meshlet.DefaultOptions())
	require.NoError(t, err)

	d := New(Config{KeepOutput: true})
	verts := make([]gpu.Vertex, len(m.Positions))
	for i := range verts {
		verts[i] = gpu.Vertex{Position: m.Positions[i], Normal: m.Normals[i], UV: m.TexCoords[i], Tangent: m.Tangents[i]}
	}
	instances := make([]gpu.GPUInstance, len(world))
	for i, w := range world {
		instances[i] = gpu.GPUInstance{World: w, Normal: w.InverseTranspose()}
	}

	d.Bind(gpu.SlotVertices, mustBuffer(t, d, "vertices", verts))
	d.Bind(gpu.SlotMeshlets, mustBuffer(t, d, "meshlets", gpu.ToGPUMeshlets(mm.Meshlets)))
	d.Bind(gpu.SlotBounds, mustBuffer(t, d, "bounds", gpu.ToGPUBounds(mm.Bounds)))
	d.Bind(gpu.SlotVertexIndices, mustBuffer(t, d, "vertex-indices", mm.UniqueVertexIndices))
	d.Bind(gpu.SlotPrimitives, mustBuffer(t, d, "primitives", gpu.PackPrimitives(mm.PrimitiveIndices)))
	d.Bind(gpu.SlotInstances, mustBuffer(t, d, "instances", instances))

	frame, err := d.CreateBuffer(gpu.BufferDesc{Label: "frame", Usage: gpu.UsageUniform, Size: gpu.FrameConstantsSize}, nil)
	require.NoError(t, err)
	d.Bind(gpu.SlotFrame, frame)
	return &scene{dev: d, mm: mm, frame: frame, world: world}
}

func (s *scene) setCamera(t *testing.T, eye, target math.Vec3) culling.Frustum {
	t.Helper()
	view := math.LookAt(eye, target, math.Vec3{Y: 1})
	proj := math.Perspective(math32.Pi/3, 1, 0.1, 500)
	vp := proj.Mul(view)
	f := culling.ExtractFrustum(vp)

	fc := gpu.FrameConstants{
		View: view, Proj: proj, ViewProj: vp, InvView: view.Inverse(),
		Eye:           math.Vec4{eye.X, eye.Y, eye.Z, 1},
		ClusterCount:  uint32(s.mm.ClusterCount()),
		InstanceCount: uint32(len(s.world)),
		TaskGroupSize: gpu.TaskGroupSize,
	}
	for i, p := range f {
		fc.Planes[i] = math.Vec4{p.Normal.X, p.Normal.Y, p.Normal.Z, p.D}
	}
	data, err := gpu.Encode(fc)
	require.NoError(t, err)
	require.NoError(t, s.dev.WriteBuffer(s.frame, 0, data))
	return f
}

func (s *scene) groups() int {
	return (s.mm.ClusterCount() + gpu.TaskGroupSize - 1) / gpu.TaskGroupSize * len(s.world)
}

// expected runs the same test as two plain passes: filter, then map.
func (s *scene) expected(f culling.Frustum, eye math.Vec3) (refs []ClusterRef, triangles int) {
	for inst, w := range s.world {
		tr := culling.NewTransform(w)
		for ci, b := range s.mm.Bounds {
			if culling.ClusterVisible(b, &tr, &f, eye) {
				refs = append(refs, ClusterRef{Instance: uint32(inst), Meshlet: uint32(ci)})
				triangles += int(s.mm.Meshlets[ci].PrimitiveCount)
			}
		}
	}
	return refs, triangles
}

func sortRefs(refs []ClusterRef) []ClusterRef {
	out := append([]ClusterRef(nil), refs...)
	sort.Slice(out, func(i, j int) bool {
		if out[i].Instance != out[j].Instance {
			return out[i].Instance < out[j].Instance
		}
		return out[i].Meshlet < out[j].Meshlet
	})
	return out
}

func TestDispatchMatchesSequentialPasses(t *testing.T) {
	s := newScene(t, mesh.Grid(48), math.Identity(), math.Translate(60, 0, 0), math.Translate(0, 0, -300))

	cameras := []struct{ eye, target math.Vec3 }{
		{math.Vec3{X: 24, Y: 60, Z: 24}, math.Vec3{X: 24, Z: 24}},
		{math.Vec3{X: -10, Y: 3, Z: 0}, math.Vec3{X: 50, Z: 10}},
		{math.Vec3{X: 24, Y: 5, Z: 100}, math.Vec3{X: 24, Z: 0}},
	}
	for i, c := range cameras {
		f := s.setCamera(t, c.eye, c.target)
		require.NoError(t, s.dev.DispatchMesh(s.groups()))
		s.dev.Submit()

		refs, tris := s.expected(f, c.eye)
		out := s.dev.LastOutput()
		assert.Equal(t, sortRefs(refs), sortRefs(out.Clusters), "camera %d", i)
		assert.Equal(t, tris, len(out.Indices)/3, "camera %d", i)

		counters := s.dev.Counters()
		assert.True(t, counters.Valid)
		assert.Equal(t, uint64(len(refs)), counters.VisibleClusters)
		assert.Equal(t, uint64(tris), counters.Triangles)
		assert.Equal(t, uint64(s.groups()), counters.TaskGroups)
	}
}

func TestDispatchAllVisibleEmitsWholeMesh(t *testing.T) {
	m := mesh.Geosphere(1, 3)
	s := newScene(t, m, math.Identity())
	s.setCamera(t, math.Vec3{Z: 10}, math.Vec3{})
	require.NoError(t, s.dev.DispatchMesh(s.groups()))
	s.dev.Submit()

	out := s.dev.LastOutput()
	assert.Len(t, out.Clusters, s.mm.ClusterCount())
	assert.Equal(t, m.TriangleCount(), len(out.Indices)/3)
	for _, idx := range out.Indices {
		require.Less(t, int(idx), len(out.Vertices))
	}
	// Emitted positions are the source positions placed by the instance.
	for _, v := range out.Vertices {
		assert.InDelta(t, 1, v.World.Length(), 1e-4)
		assert.InDelta(t, 1, v.Normal.Length(), 1e-4)
	}
}

func TestCountersLagOneSubmission(t *testing.T) {
	s := newScene(t, mesh.Grid(8), math.Identity())
	s.setCamera(t, math.Vec3{X: 4, Y: 20, Z: 4}, math.Vec3{X: 4, Z: 4})

	assert.False(t, s.dev.Counters().Valid)
	require.NoError(t, s.dev.DispatchMesh(s.groups()))
	assert.False(t, s.dev.Counters().Valid, "counters of the open submission are not readable")

	s.dev.Submit()
	first := s.dev.Counters()
	assert.True(t, first.Valid)
	assert.NotZero(t, first.VisibleClusters)

	// An empty submission replaces them.
	s.dev.Submit()
	assert.Zero(t, s.dev.Counters().VisibleClusters)
}

func TestDispatchRequiresBindings(t *testing.T) {
	d := New(Config{})
	assert.Error(t, d.DispatchMesh(1))
	assert.NoError(t, d.DispatchMesh(0))
}

func TestDispatchGroupLimit(t *testing.T) {
	d := New(Config{MaxDispatchGroups: 4})
	err := d.DispatchMesh(5)
	assert.ErrorIs(t, err, gpu.ErrOutOfRange)
}

func TestBuffers(t *testing.T) {
	d := New(Config{MaxStorageBufferBytes: 64})

	_, err := d.CreateBuffer(gpu.BufferDesc{Label: "big", Usage: gpu.UsageStorage, Size: 65}, nil)
	assert.ErrorIs(t, err, gpu.ErrOutOfRange)

	buf, err := d.CreateBuffer(gpu.BufferDesc{Label: "small", Usage: gpu.UsageUniform, Size: 8}, []byte{1, 2})
	require.NoError(t, err)
	assert.Equal(t, 8, buf.Size())
	assert.Equal(t, "small", buf.Label())

	require.NoError(t, d.WriteBuffer(buf, 4, []byte{9, 9, 9, 9}))
	assert.ErrorIs(t, d.WriteBuffer(buf, 6, []byte{1, 2, 3}), gpu.ErrOutOfRange)

	data, err := d.ReadBuffer(buf)
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 0, 0, 9, 9, 9, 9}, data)
}

func TestDrawIndexedRecordsDraw(t *testing.T) {
	d := New(Config{})
	vb, err := d.CreateBuffer(gpu.BufferDesc{Usage: gpu.UsageVertex, Size: 3 * gpu.MeshletVertexStride}, nil)
	require.NoError(t, err)
	ib, err := d.CreateBuffer(gpu.BufferDesc{Usage: gpu.UsageIndex, Size: 3 * gpu.IndexStride}, nil)
	require.NoError(t, err)

	require.NoError(t, d.DrawIndexed(vb, ib, 3, 4))
	assert.ErrorIs(t, d.DrawIndexed(vb, ib, 6, 1), gpu.ErrOutOfRange)
	require.NoError(t, d.DrawIndexed(vb, ib, 3, 0))
	d.Submit()

	require.Len(t, d.LastDraws(), 1)
	assert.Equal(t, 4, d.LastDraws()[0].InstanceCount)
	assert.Equal(t, uint64(4), d.Counters().Triangles)
	assert.Equal(t, uint64(1), d.Counters().Draws)
}
