// Package gpu defines the submission contract between the cluster renderer
// and a graphics device, plus the binary layouts of every buffer the
// cluster shaders read.
package gpu

import (
	"errors"
	"fmt"
)

// TaskGroupSize is the number of clusters one task-stage group tests.
const TaskGroupSize = 32

// Errors returned by devices.
var (
	ErrUnsupported   = errors.New("operation not supported by device")
	ErrInvalidBuffer = errors.New("invalid buffer")
	ErrOutOfRange    = errors.New("write outside buffer")
)

// Slot is a shader binding point.
type Slot int

// Binding slots shared with the shader programs.
const (
	SlotFrame Slot = iota
	SlotVertices
	SlotMeshlets
	SlotBounds
	SlotVertexIndices
	SlotPrimitives
	SlotInstances
	SlotCount
)

var slotNames = [...]string{"frame", "vertices", "meshlets", "bounds", "vertex-indices", "primitives", "instances"}

// String implements fmt.Stringer.
func (s Slot) String() string {
	if s >= 0 && int(s) < len(slotNames) {
		return slotNames[s]
	}
	return fmt.Sprintf("Slot(%d)", int(s))
}

// BufferUsage says how a buffer is bound.
type BufferUsage int

// Buffer usages.
const (
	UsageStorage BufferUsage = iota
	UsageUniform
	UsageVertex
	UsageIndex
)

// BufferDesc describes a buffer to create.
type BufferDesc struct {
	Label  string
	Usage  BufferUsage
	Size   int
	Stride int
}

// Buffer is a device allocation.
type Buffer interface {
	Label() string
	Size() int
}

// Texture is an opaque sampled image.
type Texture interface {
	Width() int
	Height() int
}

// Capabilities reports what a device can do. Queried once.
type Capabilities struct {
	Name                  string
	TwoStage              bool
	MaxStorageBufferBytes int
	MaxDispatchGroups     int
}

// Counters are pipeline statistics of one completed submission.
type Counters struct {
	TaskGroups      uint64
	VisibleClusters uint64
	Triangles       uint64
	Vertices        uint64
	Draws           uint64
	Valid           bool
}

// Device accepts buffer uploads and frame submissions. Work issued between
// two Submit calls forms one submission; Counters reports the submission
// before the current one.
type Device interface {
	Capabilities() Capabilities

	CreateBuffer(desc BufferDesc, data []byte) (Buffer, error)
	WriteBuffer(buf Buffer, offset int, data []byte) error
	DestroyBuffer(buf Buffer)

	Bind(slot Slot, buf Buffer)
	BindTexture(tex Texture)

	// DispatchMesh runs the task stage over groups task groups. The task
	// stage launches the mesh stage for the clusters it found visible.
	DispatchMesh(groups int) error
	// DrawIndexed draws indexCount indices instanceCount times, reading
	// per-instance transforms from SlotInstances.
	DrawIndexed(vertices, indices Buffer, indexCount, instanceCount int) error

	Submit()
	Counters() Counters
}
