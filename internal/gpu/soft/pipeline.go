package soft

import (
	"fmt"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/Faultbox/clusterview/internal/gpu"
	"github.com/Faultbox/clusterview/pkg/culling"
	"github.com/Faultbox/clusterview/pkg/math"
)

// OutVertex is a vertex emitted by the mesh stage.
type OutVertex struct {
	Clip      math.Vec4
	World     math.Vec3
	Normal    math.Vec3
	UV        math.Vec2
	MeshletID uint32
	Instance  uint32
}

// ClusterRef names one visible (instance, meshlet) pair.
type ClusterRef struct {
	Instance uint32
	Meshlet  uint32
}

// Output is the geometry the mesh stage handed to rasterization.
type Output struct {
	Vertices []OutVertex
	Indices  []uint32
	Clusters []ClusterRef
}

func (o *Output) append(other *Output) {
	base := uint32(len(o.Vertices))
	o.Vertices = append(o.Vertices, other.Vertices...)
	for _, idx := range other.Indices {
		o.Indices = append(o.Indices, base+idx)
	}
	o.Clusters = append(o.Clusters, other.Clusters...)
}

// stageInputs are the decoded bindings one dispatch reads.
type stageInputs struct {
	frame         gpu.FrameConstants
	frustum       culling.Frustum
	vertices      []gpu.Vertex
	meshlets      []gpu.GPUMeshlet
	bounds        []gpu.GPUBounds
	vertexIndices []uint32
	primitives    []uint32
	instances     []gpu.GPUInstance
	transforms    []culling.Transform
}

func (d *Device) loadInputs() (*stageInputs, error) {
	for s := gpu.SlotFrame; s < gpu.SlotCount; s++ {
		if d.bindings[s] == nil {
			return nil, fmt.Errorf("dispatch: nothing bound at slot %v", s)
		}
	}
	in := &stageInputs{}
	frame := d.bindings[gpu.SlotFrame]
	if frame.Size() < gpu.FrameConstantsSize {
		return nil, fmt.Errorf("dispatch: frame buffer is %d bytes, need %d", frame.Size(), gpu.FrameConstantsSize)
	}
	if err := gpu.Decode(frame.data[:gpu.FrameConstantsSize], &in.frame); err != nil {
		return nil, err
	}
	for i, p := range in.frame.Planes {
		in.frustum[i] = culling.Plane{Normal: p.XYZ(), D: p[3]}
	}

	var err error
	if in.vertices, err = decoded[gpu.Vertex](d.bindings[gpu.SlotVertices], gpu.VertexStride); err != nil {
		return nil, err
	}
	if in.meshlets, err = decoded[gpu.GPUMeshlet](d.bindings[gpu.SlotMeshlets], gpu.MeshletStride); err != nil {
		return nil, err
	}
	if in.bounds, err = decoded[gpu.GPUBounds](d.bindings[gpu.SlotBounds], gpu.BoundsStride); err != nil {
		return nil, err
	}
	if in.vertexIndices, err = decoded[uint32](d.bindings[gpu.SlotVertexIndices], gpu.IndexStride); err != nil {
		return nil, err
	}
	if in.primitives, err = decoded[uint32](d.bindings[gpu.SlotPrimitives], gpu.IndexStride); err != nil {
		return nil, err
	}
	if in.instances, err = decoded[gpu.GPUInstance](d.bindings[gpu.SlotInstances], gpu.InstanceStride); err != nil {
		return nil, err
	}
	if int(in.frame.ClusterCount) > len(in.meshlets) || len(in.bounds) < len(in.meshlets) {
		return nil, fmt.Errorf("dispatch: cluster count %d exceeds %d meshlets / %d bounds", in.frame.ClusterCount, len(in.meshlets), len(in.bounds))
	}

	in.transforms = make([]culling.Transform, len(in.instances))
	for i, inst := range in.instances {
		t := culling.NewTransform(inst.World)
		t.Normal = inst.Normal
		in.transforms[i] = t
	}
	return in, nil
}

// groupResult is what one task group produced.
type groupResult struct {
	visible uint32
	out     Output
}

// DispatchMesh implements gpu.Device. Each task group maps to
// (instance, first cluster) = (g / groupsPerInstance, g % groupsPerInstance * groupSize).
func (d *Device) DispatchMesh(groups int) error {
	if groups <= 0 {
		return nil
	}
	if groups > d.cfg.MaxDispatchGroups {
		return fmt.Errorf("dispatch: %w: %d groups, limit %d", gpu.ErrOutOfRange, groups, d.cfg.MaxDispatchGroups)
	}
	in, err := d.loadInputs()
	if err != nil {
		return err
	}

	groupSize := int(in.frame.TaskGroupSize)
	if groupSize <= 0 {
		groupSize = gpu.TaskGroupSize
	}
	clusters := int(in.frame.ClusterCount)
	if clusters == 0 {
		return nil
	}
	perInstance := (clusters + groupSize - 1) / groupSize

	results := make([]groupResult, groups)
	var eg errgroup.Group
	eg.SetLimit(d.cfg.Workers)
	for g := 0; g < groups; g++ {
		eg.Go(func() error {
			inst := g / perInstance
			if inst >= len(in.instances) {
				return nil
			}
			first := (g % perInstance) * groupSize
			res, err := runTaskGroup(in, uint32(inst), first, min(groupSize, clusters-first))
			if err != nil {
				return fmt.Errorf("task group %d: %w", g, err)
			}
			results[g] = res
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return err
	}

	d.current.TaskGroups += uint64(groups)
	for i := range results {
		r := &results[i]
		d.current.VisibleClusters += uint64(r.visible)
		d.current.Triangles += uint64(len(r.out.Indices) / 3)
		d.current.Vertices += uint64(len(r.out.Vertices))
		if d.cfg.KeepOutput {
			d.output.append(&r.out)
		}
	}
	return nil
}

// runTaskGroup runs one lane per cluster. Lanes vote concurrently into a
// group-local payload; the payload is read only after every lane passed
// the barrier. The mesh stage then runs once per payload entry.
func runTaskGroup(in *stageInputs, inst uint32, first, lanes int) (groupResult, error) {
	payload := make([]uint32, lanes)
	var count atomic.Uint32
	eye := in.frame.Eye.XYZ()
	t := &in.transforms[inst]

	var barrier sync.WaitGroup
	barrier.Add(lanes)
	for lane := 0; lane < lanes; lane++ {
		go func(lane int) {
			defer barrier.Done()
			ci := uint32(first + lane)
			if culling.ClusterVisible(in.bounds[ci].Bounds(), t, &in.frustum, eye) {
				payload[count.Add(1)-1] = ci
			}
		}(lane)
	}
	barrier.Wait()

	visible := count.Load()
	res := groupResult{visible: visible}
	for _, ci := range payload[:visible] {
		if err := runMeshStage(in, inst, ci, &res.out); err != nil {
			return res, err
		}
	}
	return res, nil
}

// runMeshStage expands one visible meshlet: its unique vertices go to
// clip space and its local triangles are remapped onto them.
func runMeshStage(in *stageInputs, inst, ci uint32, out *Output) error {
	m := in.meshlets[ci]
	if int(m.VertexOffset+m.VertexCount) > len(in.vertexIndices) || int(m.PrimitiveOffset+m.PrimitiveCount) > len(in.primitives) {
		return fmt.Errorf("meshlet %d references data outside its tables", ci)
	}
	world := in.instances[inst].World
	normal := in.instances[inst].Normal

	base := uint32(len(out.Vertices))
	for _, vi := range in.vertexIndices[m.VertexOffset : m.VertexOffset+m.VertexCount] {
		if int(vi) >= len(in.vertices) {
			return fmt.Errorf("meshlet %d vertex %d out of range", ci, vi)
		}
		v := in.vertices[vi]
		wp := world.TransformPoint(v.Position)
		out.Vertices = append(out.Vertices, OutVertex{
			Clip:      in.frame.ViewProj.MulVec4(math.Vec4{wp.X, wp.Y, wp.Z, 1}),
			World:     wp,
			Normal:    normal.TransformDirection(v.Normal).Normalize(),
			UV:        v.UV,
			MeshletID: ci,
			Instance:  inst,
		})
	}
	for _, p := range in.primitives[m.PrimitiveOffset : m.PrimitiveOffset+m.PrimitiveCount] {
		tri := gpu.UnpackTriangle(p)
		for _, l := range tri {
			if uint32(l) >= m.VertexCount {
				return fmt.Errorf("meshlet %d local index %d >= %d", ci, l, m.VertexCount)
			}
			out.Indices = append(out.Indices, base+uint32(l))
		}
	}
	out.Clusters = append(out.Clusters, ClusterRef{Instance: inst, Meshlet: ci})
	return nil
}
