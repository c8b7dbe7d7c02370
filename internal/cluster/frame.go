package cluster

import (
	"fmt"

	"github.com/Faultbox/clusterview/internal/gpu"
	"github.com/Faultbox/clusterview/pkg/culling"
	"github.com/Faultbox/clusterview/pkg/math"
)

// Render issues one frame for every uploaded mesh that has instances.
// Statistics are taken from the device counters of the previous frame
// before new work is issued. With no clusters uploaded it does nothing.
func (r *Renderer) Render(cam Camera, target Target, opts RenderOptions) error {
	if r.ClusterCount() == 0 {
		return nil
	}
	r.readStats()

	view := cam.View()
	proj := cam.Projection()
	viewProj := proj.Mul(view)
	frustum := culling.ExtractFrustum(viewProj)
	eye := cam.Position()

	base := gpu.FrameConstants{
		View:          view,
		Proj:          proj,
		ViewProj:      viewProj,
		InvView:       view.Inverse(),
		Eye:           math.Vec4{eye.X, eye.Y, eye.Z, 1},
		LightDir:      math.Vec4{r.cfg.LightDir.X, r.cfg.LightDir.Y, r.cfg.LightDir.Z, 0},
		TargetSize:    math.Vec2{X: float32(target.Width), Y: float32(target.Height)},
		ShadeMode:     opts.ShadeMode(r.texture != nil),
		TaskGroupSize: gpu.TaskGroupSize,
	}
	for i, p := range frustum {
		base.Planes[i] = math.Vec4{p.Normal.X, p.Normal.Y, p.Normal.Z, p.D}
	}

	r.dev.BindTexture(r.texture)
	slot := int(r.frame % FrameSlots)
	err := r.issue(base, slot)

	r.dev.Submit()
	r.drawn, r.drawing = r.drawing, 0
	r.frame++
	r.submitted++
	return err
}

func (r *Renderer) issue(base gpu.FrameConstants, slot int) error {
	for i, res := range r.meshes {
		if res == nil || res.empty() || res.instanceCount == 0 {
			continue
		}
		fc := base
		fc.ClusterCount = uint32(res.mm.ClusterCount())
		fc.InstanceCount = uint32(res.instanceCount)
		data, err := gpu.Encode(fc)
		if err != nil {
			return fmt.Errorf("render mesh %d: %w", i, err)
		}
		if err := r.dev.WriteBuffer(res.frames[slot], 0, data); err != nil {
			return fmt.Errorf("render mesh %d: frame constants: %w", i, err)
		}

		r.dev.Bind(gpu.SlotFrame, res.frames[slot])
		r.dev.Bind(gpu.SlotInstances, res.instances)
		switch r.path {
		case PathTwoStage:
			r.dev.Bind(gpu.SlotVertices, res.vertices)
			r.dev.Bind(gpu.SlotMeshlets, res.meshlets)
			r.dev.Bind(gpu.SlotBounds, res.bounds)
			r.dev.Bind(gpu.SlotVertexIndices, res.vertexIndices)
			r.dev.Bind(gpu.SlotPrimitives, res.primitives)
			if err := r.dev.DispatchMesh(groupsFor(res.mm.ClusterCount()) * res.instanceCount); err != nil {
				return fmt.Errorf("render mesh %d: %w", i, err)
			}
		case PathFallback:
			if err := r.dev.DrawIndexed(res.fallbackVertices, res.fallbackIndices, res.fallbackIndexCount, res.instanceCount); err != nil {
				return fmt.Errorf("render mesh %d: %w", i, err)
			}
			r.drawing += uint64(res.mm.ClusterCount() * res.instanceCount)
		}
	}
	return nil
}

// Preview runs the visibility test on the CPU for the current camera and
// returns, per instance, the clusters that would pass it. It issues no
// device work.
func (r *Renderer) Preview(cam Camera) [][]uint32 {
	frustum := culling.ExtractFrustum(cam.Projection().Mul(cam.View()))
	eye := cam.Position()
	out := make([][]uint32, len(r.instances))
	for i, inst := range r.instances {
		if int(inst.MeshIndex) >= len(r.meshes) || r.meshes[inst.MeshIndex] == nil {
			continue
		}
		t := culling.NewTransform(inst.World)
		t.Normal = inst.NormalMatrix
		out[i] = culling.VisibleClusters(r.meshes[inst.MeshIndex].mm, &t, &frustum, eye)
	}
	return out
}
