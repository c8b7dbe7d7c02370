package cluster

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/Faultbox/clusterview/internal/gpu"
	"github.com/Faultbox/clusterview/pkg/math"
)

// Instance places an uploaded mesh in the world.
type Instance struct {
	World        math.Mat4
	NormalMatrix math.Mat4
	MeshIndex    uint32
}

// NewInstance returns an instance of mesh meshIndex with its normal matrix
// derived from world.
func NewInstance(world math.Mat4, meshIndex uint32) Instance {
	return Instance{World: world, NormalMatrix: world.InverseTranspose(), MeshIndex: meshIndex}
}

// SetInstances replaces the whole instance set. Instances of a mesh index
// that is not uploaded yet are kept and drawn once it is. On error the
// previous set and its buffers stay in place.
func (r *Renderer) SetInstances(instances []Instance) error {
	if len(instances) > r.cfg.MaxInstances {
		return fmt.Errorf("set instances: %w", &CapacityError{Resource: "instances", Requested: len(instances), Limit: r.cfg.MaxInstances})
	}
	if err := r.checkDispatch(instances); err != nil {
		return fmt.Errorf("set instances: %w", err)
	}

	staged := make([]instanceUpload, 0, len(r.meshes))
	for i, res := range r.meshes {
		if res == nil {
			continue
		}
		up, err := r.stageInstances(res, i, instances)
		if err != nil {
			r.discardInstances(staged)
			return fmt.Errorf("set instances: mesh %d: %w", i, err)
		}
		staged = append(staged, up)
	}
	if err := r.writeInstances(staged); err != nil {
		r.discardInstances(staged)
		return fmt.Errorf("set instances: %w", err)
	}

	r.instances = append(r.instances[:0], instances...)
	for _, up := range staged {
		r.meshes[up.mesh].commitInstances(r.dev, up)
	}
	r.resetDynamicStats()
	r.log.Debug("instances set", zap.Int("count", len(instances)))
	return nil
}

// Instances returns the current instance set.
func (r *Renderer) Instances() []Instance {
	return r.instances
}

// checkDispatch rejects instance sets whose task dispatch for some mesh
// would exceed the device group limit.
func (r *Renderer) checkDispatch(instances []Instance) error {
	perMesh := make(map[uint32]int)
	for _, inst := range instances {
		perMesh[inst.MeshIndex]++
	}
	for idx, count := range perMesh {
		if int(idx) >= len(r.meshes) || r.meshes[idx] == nil {
			continue
		}
		if err := r.checkGroups(idx, r.meshes[idx].mm.ClusterCount(), count); err != nil {
			return err
		}
	}
	return nil
}

func (r *Renderer) checkGroups(meshIndex uint32, clusters, instances int) error {
	limit := r.caps.MaxDispatchGroups
	if !r.caps.TwoStage || limit <= 0 {
		return nil
	}
	if groups := groupsFor(clusters) * instances; groups > limit {
		return &CapacityError{Resource: fmt.Sprintf("task groups of mesh %d", meshIndex), Requested: groups, Limit: limit}
	}
	return nil
}

func (r *Renderer) instancesOf(meshIndex uint32) int {
	n := 0
	for _, inst := range r.instances {
		if inst.MeshIndex == meshIndex {
			n++
		}
	}
	return n
}

// instanceUpload is the pending instance buffer of one mesh. Either buf
// is a new buffer replacing the old one, or data is written over the old
// buffer of the same size.
type instanceUpload struct {
	mesh  int
	count int
	buf   gpu.Buffer
	data  []byte
}

func instanceRecords(instances []Instance, meshIndex uint32) []gpu.GPUInstance {
	var records []gpu.GPUInstance
	for _, inst := range instances {
		if inst.MeshIndex == meshIndex {
			records = append(records, gpu.GPUInstance{World: inst.World, Normal: inst.NormalMatrix, MeshIndex: inst.MeshIndex})
		}
	}
	return records
}

// stageInstances prepares the instance buffer of res for instances. res is
// not modified.
func (r *Renderer) stageInstances(res *meshResources, meshIndex int, instances []Instance) (instanceUpload, error) {
	records := instanceRecords(instances, uint32(meshIndex))
	up := instanceUpload{mesh: meshIndex, count: len(records)}
	if len(records) == 0 || res.empty() {
		return up, nil
	}
	if err := r.checkBytes("instance buffer", len(records)*gpu.InstanceStride); err != nil {
		return up, err
	}
	if res.instances != nil && res.instances.Size() == len(records)*gpu.InstanceStride {
		data, err := gpu.Encode(records)
		if err != nil {
			return up, err
		}
		up.data = data
		return up, nil
	}
	buf, err := r.createBuffer("instances", gpu.UsageStorage, gpu.InstanceStride, records)
	if err != nil {
		return up, err
	}
	up.buf = buf
	return up, nil
}

// writeInstances performs the in-place writes of staged. If one fails the
// buffers already written get the current instance set back.
func (r *Renderer) writeInstances(staged []instanceUpload) error {
	for k, up := range staged {
		if up.data == nil {
			continue
		}
		if err := r.dev.WriteBuffer(r.meshes[up.mesh].instances, 0, up.data); err != nil {
			r.restoreInstances(staged[:k])
			return fmt.Errorf("mesh %d: write instances: %w", up.mesh, err)
		}
	}
	return nil
}

func (r *Renderer) restoreInstances(written []instanceUpload) {
	for _, up := range written {
		if up.data == nil {
			continue
		}
		data, err := gpu.Encode(instanceRecords(r.instances, uint32(up.mesh)))
		if err == nil {
			err = r.dev.WriteBuffer(r.meshes[up.mesh].instances, 0, data)
		}
		if err != nil {
			r.log.Warn("instance buffer not restored", zap.Int("mesh", up.mesh), zap.Error(err))
		}
	}
}

func (r *Renderer) discardInstances(staged []instanceUpload) {
	for _, up := range staged {
		if up.buf != nil {
			r.dev.DestroyBuffer(up.buf)
		}
	}
}

// commitInstances installs a staged upload, releasing a replaced buffer.
func (res *meshResources) commitInstances(dev gpu.Device, up instanceUpload) {
	if up.data == nil {
		if res.instances != nil {
			dev.DestroyBuffer(res.instances)
		}
		res.instances = up.buf
	}
	res.instanceCount = up.count
}
