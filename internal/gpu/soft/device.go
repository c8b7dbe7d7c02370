// Package soft implements gpu.Device on the CPU. The task and mesh stages
// run as goroutines with the same group structure a GPU dispatch has.
package soft

import (
	"fmt"
	"runtime"

	"github.com/Faultbox/clusterview/internal/gpu"
)

// Config controls the software device.
type Config struct {
	// Workers bounds how many task groups run at once. Zero means GOMAXPROCS.
	Workers int
	// KeepOutput retains the mesh-stage geometry of each submission.
	KeepOutput            bool
	MaxStorageBufferBytes int
	MaxDispatchGroups     int
}

// DefaultConfig returns limits comparable to a desktop GPU.
func DefaultConfig() Config {
	return Config{
		MaxStorageBufferBytes: 1 << 30,
		MaxDispatchGroups:     1 << 22,
	}
}

// DrawCall records one DrawIndexed.
type DrawCall struct {
	Vertices      gpu.Buffer
	Indices       gpu.Buffer
	IndexCount    int
	InstanceCount int
}

// Device is a CPU implementation of gpu.Device.
type Device struct {
	cfg      Config
	bindings [gpu.SlotCount]*buffer
	texture  gpu.Texture

	current   gpu.Counters
	completed gpu.Counters

	output     Output
	lastOutput Output
	draws      []DrawCall
	lastDraws  []DrawCall
}

// New creates a software device.
func New(cfg Config) *Device {
	def := DefaultConfig()
	if cfg.MaxStorageBufferBytes == 0 {
		cfg.MaxStorageBufferBytes = def.MaxStorageBufferBytes
	}
	if cfg.MaxDispatchGroups == 0 {
		cfg.MaxDispatchGroups = def.MaxDispatchGroups
	}
	if cfg.Workers <= 0 {
		cfg.Workers = runtime.GOMAXPROCS(0)
	}
	return &Device{cfg: cfg}
}

// Capabilities implements gpu.Device.
func (d *Device) Capabilities() gpu.Capabilities {
	return gpu.Capabilities{
		Name:                  "software",
		TwoStage:              true,
		MaxStorageBufferBytes: d.cfg.MaxStorageBufferBytes,
		MaxDispatchGroups:     d.cfg.MaxDispatchGroups,
	}
}

type buffer struct {
	desc    gpu.BufferDesc
	data    []byte
	version int

	decoded        any
	decodedVersion int
}

func (b *buffer) Label() string { return b.desc.Label }
func (b *buffer) Size() int     { return len(b.data) }

// CreateBuffer implements gpu.Device.
func (d *Device) CreateBuffer(desc gpu.BufferDesc, data []byte) (gpu.Buffer, error) {
	size := desc.Size
	if size == 0 {
		size = len(data)
	}
	if len(data) > size {
		return nil, fmt.Errorf("%w: %q initial data %d > size %d", gpu.ErrOutOfRange, desc.Label, len(data), size)
	}
	if desc.Usage == gpu.UsageStorage && size > d.cfg.MaxStorageBufferBytes {
		return nil, fmt.Errorf("%w: %q is %d bytes, limit %d", gpu.ErrOutOfRange, desc.Label, size, d.cfg.MaxStorageBufferBytes)
	}
	b := &buffer{desc: desc, data: make([]byte, size), version: 1}
	copy(b.data, data)
	return b, nil
}

// WriteBuffer implements gpu.Device.
func (d *Device) WriteBuffer(buf gpu.Buffer, offset int, data []byte) error {
	b, ok := buf.(*buffer)
	if !ok || b == nil {
		return gpu.ErrInvalidBuffer
	}
	if offset < 0 || offset+len(data) > len(b.data) {
		return fmt.Errorf("%w: %q [%d, %d) of %d", gpu.ErrOutOfRange, b.desc.Label, offset, offset+len(data), len(b.data))
	}
	copy(b.data[offset:], data)
	b.version++
	return nil
}

// DestroyBuffer implements gpu.Device.
func (d *Device) DestroyBuffer(buf gpu.Buffer) {
	b, ok := buf.(*buffer)
	if !ok {
		return
	}
	for i, bound := range d.bindings {
		if bound == b {
			d.bindings[i] = nil
		}
	}
	b.data = nil
	b.decoded = nil
}

// Bind implements gpu.Device.
func (d *Device) Bind(slot gpu.Slot, buf gpu.Buffer) {
	if slot < 0 || slot >= gpu.SlotCount {
		return
	}
	b, _ := buf.(*buffer)
	d.bindings[slot] = b
}

// BindTexture implements gpu.Device.
func (d *Device) BindTexture(tex gpu.Texture) {
	d.texture = tex
}

// Texture returns the bound texture.
func (d *Device) Texture() gpu.Texture {
	return d.texture
}

// DrawIndexed implements gpu.Device. The draw is recorded, not rasterized.
func (d *Device) DrawIndexed(vertices, indices gpu.Buffer, indexCount, instanceCount int) error {
	if indexCount <= 0 || instanceCount <= 0 {
		return nil
	}
	vb, ok := vertices.(*buffer)
	if !ok || vb == nil {
		return fmt.Errorf("draw: vertex %w", gpu.ErrInvalidBuffer)
	}
	ib, ok := indices.(*buffer)
	if !ok || ib == nil {
		return fmt.Errorf("draw: index %w", gpu.ErrInvalidBuffer)
	}
	if indexCount*gpu.IndexStride > ib.Size() {
		return fmt.Errorf("draw: %w: %d indices in %d bytes", gpu.ErrOutOfRange, indexCount, ib.Size())
	}
	d.draws = append(d.draws, DrawCall{Vertices: vb, Indices: ib, IndexCount: indexCount, InstanceCount: instanceCount})
	d.current.Draws++
	d.current.Triangles += uint64(indexCount/3) * uint64(instanceCount)
	d.current.Vertices += uint64(indexCount) * uint64(instanceCount)
	return nil
}

// Submit closes the current submission. Its counters become visible
// through Counters until the next Submit.
func (d *Device) Submit() {
	d.completed = d.current
	d.completed.Valid = true
	d.current = gpu.Counters{}

	d.lastOutput = d.output
	d.output = Output{}
	d.lastDraws = d.draws
	d.draws = nil
}

// Counters implements gpu.Device.
func (d *Device) Counters() gpu.Counters {
	return d.completed
}

// LastOutput returns the mesh-stage geometry of the last submission when
// KeepOutput is set.
func (d *Device) LastOutput() Output {
	return d.lastOutput
}

// LastDraws returns the indexed draws of the last submission.
func (d *Device) LastDraws() []DrawCall {
	return d.lastDraws
}

// ReadBuffer returns a copy of a buffer's contents.
func (d *Device) ReadBuffer(buf gpu.Buffer) ([]byte, error) {
	b, ok := buf.(*buffer)
	if !ok || b == nil {
		return nil, gpu.ErrInvalidBuffer
	}
	return append([]byte(nil), b.data...), nil
}

// decoded returns the buffer contents as T records, caching the result
// until the buffer is written again.
func decoded[T any](b *buffer, stride int) ([]T, error) {
	if b.decoded != nil && b.decodedVersion == b.version {
		if v, ok := b.decoded.([]T); ok {
			return v, nil
		}
	}
	v, err := gpu.DecodeSlice[T](b.data, stride)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", b.desc.Label, err)
	}
	b.decoded = v
	b.decodedVersion = b.version
	return v, nil
}
