// Package gldevice implements gpu.Device on an OpenGL 4.1 core context.
//
// OpenGL 4.1 has neither mesh shaders nor storage buffers, so the culled
// path is emulated: a software device runs the task and mesh stages and
// its compacted output is streamed into a dynamic vertex buffer at Submit.
// The fallback path draws the pre-expanded buffers natively with
// instancing. Every buffer lives in the software device; vertex, index
// and instance buffers also get a GL copy the first time a draw needs them.
package gldevice

import (
	"fmt"
	"unsafe"

	"github.com/go-gl/gl/v4.1-core/gl"
	"go.uber.org/zap"

	"github.com/Faultbox/clusterview/internal/engine/renderer"
	"github.com/Faultbox/clusterview/internal/engine/shader"
	"github.com/Faultbox/clusterview/internal/gpu"
	"github.com/Faultbox/clusterview/internal/gpu/soft"
	"github.com/Faultbox/clusterview/internal/logger"
)

// nativeMeshShaderExt is probed and logged. The 4.1 core bindings cannot
// drive it, so its presence does not change the capabilities.
const nativeMeshShaderExt = "GL_NV_mesh_shader"

// Config controls the GL device.
type Config struct {
	// EmulateTaskStage reports two-stage support and runs it on the CPU.
	EmulateTaskStage bool
	// Workers bounds the emulator's parallel task groups.
	Workers int
}

// Device is a gpu.Device backed by OpenGL. It must be used from the
// thread that owns the context.
type Device struct {
	cfg  Config
	emu  *soft.Device
	caps gpu.Capabilities
	log  *zap.Logger

	names    map[gpu.Buffer]uint32
	bindings [gpu.SlotCount]gpu.Buffer
	texture  *Texture

	drawProgram   *shader.Program
	streamProgram *shader.Program
	drawVAO       uint32
	stream        streamBuffers
	frame         gpu.FrameConstants
}

// New creates the device on the current context. renderer.Init must have
// run first; info is what it returned.
func New(cfg Config, info renderer.Info) (*Device, error) {
	d := &Device{
		cfg:   cfg,
		emu:   soft.New(soft.Config{Workers: cfg.Workers, KeepOutput: true}),
		log:   logger.Named("gldevice"),
		names: make(map[gpu.Buffer]uint32),
	}

	limits := d.emu.Capabilities()
	d.caps = gpu.Capabilities{
		Name:                  info.Renderer,
		TwoStage:              cfg.EmulateTaskStage,
		MaxStorageBufferBytes: limits.MaxStorageBufferBytes,
		MaxDispatchGroups:     limits.MaxDispatchGroups,
	}
	d.log.Info("mesh shader probe",
		zap.String("extension", nativeMeshShaderExt),
		zap.Bool("advertised", info.HasExtension(nativeMeshShaderExt)),
		zap.Bool("emulated", cfg.EmulateTaskStage),
	)

	var err error
	if d.drawProgram, err = shader.New("cluster-draw", drawVertexShader, fragmentShader); err != nil {
		return nil, err
	}
	if d.streamProgram, err = shader.New("cluster-stream", streamVertexShader, fragmentShader); err != nil {
		d.drawProgram.Delete()
		return nil, err
	}
	gl.GenVertexArrays(1, &d.drawVAO)
	d.stream.init()

	if err := renderer.CheckError("gldevice init"); err != nil {
		d.Close()
		return nil, err
	}
	return d, nil
}

// Close releases every GL object the device created.
func (d *Device) Close() {
	for buf, name := range d.names {
		gl.DeleteBuffers(1, &name)
		delete(d.names, buf)
	}
	d.stream.destroy()
	if d.drawVAO != 0 {
		gl.DeleteVertexArrays(1, &d.drawVAO)
		d.drawVAO = 0
	}
	if d.drawProgram != nil {
		d.drawProgram.Delete()
	}
	if d.streamProgram != nil {
		d.streamProgram.Delete()
	}
}

// Capabilities implements gpu.Device.
func (d *Device) Capabilities() gpu.Capabilities {
	return d.caps
}

// CreateBuffer implements gpu.Device.
func (d *Device) CreateBuffer(desc gpu.BufferDesc, data []byte) (gpu.Buffer, error) {
	return d.emu.CreateBuffer(desc, data)
}

// WriteBuffer implements gpu.Device.
func (d *Device) WriteBuffer(buf gpu.Buffer, offset int, data []byte) error {
	if err := d.emu.WriteBuffer(buf, offset, data); err != nil {
		return err
	}
	if name, ok := d.names[buf]; ok && len(data) > 0 {
		gl.BindBuffer(gl.ARRAY_BUFFER, name)
		gl.BufferSubData(gl.ARRAY_BUFFER, offset, len(data), unsafe.Pointer(&data[0]))
		gl.BindBuffer(gl.ARRAY_BUFFER, 0)
	}
	return nil
}

// DestroyBuffer implements gpu.Device.
func (d *Device) DestroyBuffer(buf gpu.Buffer) {
	if name, ok := d.names[buf]; ok {
		gl.DeleteBuffers(1, &name)
		delete(d.names, buf)
	}
	for i, b := range d.bindings {
		if b == buf {
			d.bindings[i] = nil
		}
	}
	d.emu.DestroyBuffer(buf)
}

// Bind implements gpu.Device.
func (d *Device) Bind(slot gpu.Slot, buf gpu.Buffer) {
	if slot < 0 || slot >= gpu.SlotCount {
		return
	}
	d.bindings[slot] = buf
	d.emu.Bind(slot, buf)
}

// BindTexture implements gpu.Device. Only textures created by this
// package are sampled.
func (d *Device) BindTexture(tex gpu.Texture) {
	d.emu.BindTexture(tex)
	d.texture, _ = tex.(*Texture)
}

// DispatchMesh implements gpu.Device. The emulated stages run now; their
// geometry is drawn at Submit.
func (d *Device) DispatchMesh(groups int) error {
	if !d.caps.TwoStage {
		return gpu.ErrUnsupported
	}
	frame, err := d.boundFrame()
	if err != nil {
		return err
	}
	d.frame = frame
	return d.emu.DispatchMesh(groups)
}

// DrawIndexed implements gpu.Device with glDrawElementsInstanced.
func (d *Device) DrawIndexed(vertices, indices gpu.Buffer, indexCount, instanceCount int) error {
	if err := d.emu.DrawIndexed(vertices, indices, indexCount, instanceCount); err != nil {
		return err
	}
	if indexCount <= 0 || instanceCount <= 0 {
		return nil
	}
	frame, err := d.boundFrame()
	if err != nil {
		return err
	}
	vb, err := d.resident(vertices)
	if err != nil {
		return err
	}
	ib, err := d.resident(indices)
	if err != nil {
		return err
	}
	inst, err := d.resident(d.bindings[gpu.SlotInstances])
	if err != nil {
		return fmt.Errorf("draw: instances: %w", err)
	}

	gl.BindVertexArray(d.drawVAO)
	bindMeshletVertexLayout(vb)
	bindInstanceLayout(inst)
	gl.BindBuffer(gl.ELEMENT_ARRAY_BUFFER, ib)

	d.drawProgram.Use()
	d.drawProgram.SetMat4("uViewProj", frame.ViewProj)
	d.setShading(d.drawProgram, frame)
	gl.DrawElementsInstanced(gl.TRIANGLES, int32(indexCount), gl.UNSIGNED_INT, nil, int32(instanceCount))
	gl.BindVertexArray(0)

	return renderer.CheckError("draw indexed")
}

// Submit implements gpu.Device. Emulated mesh-stage output of the closing
// submission is drawn here.
func (d *Device) Submit() {
	d.emu.Submit()
	out := d.emu.LastOutput()
	if len(out.Indices) == 0 {
		return
	}
	d.stream.upload(out)
	d.streamProgram.Use()
	d.setShading(d.streamProgram, d.frame)
	d.stream.draw()
	if err := renderer.CheckError("stream draw"); err != nil {
		d.log.Warn("emulated draw failed", zap.Error(err))
	}
}

// Counters implements gpu.Device.
func (d *Device) Counters() gpu.Counters {
	return d.emu.Counters()
}

// ReadPixels reads the RGBA8 back buffer, bottom row first.
func (d *Device) ReadPixels(width, height int) []byte {
	pixels := make([]byte, width*height*4)
	if len(pixels) == 0 {
		return pixels
	}
	gl.PixelStorei(gl.PACK_ALIGNMENT, 1)
	gl.ReadPixels(0, 0, int32(width), int32(height), gl.RGBA, gl.UNSIGNED_BYTE, unsafe.Pointer(&pixels[0]))
	return pixels
}

func (d *Device) boundFrame() (gpu.FrameConstants, error) {
	var f gpu.FrameConstants
	buf := d.bindings[gpu.SlotFrame]
	if buf == nil {
		return f, fmt.Errorf("nothing bound at slot %v", gpu.SlotFrame)
	}
	data, err := d.emu.ReadBuffer(buf)
	if err != nil {
		return f, err
	}
	if len(data) < gpu.FrameConstantsSize {
		return f, fmt.Errorf("frame buffer is %d bytes, need %d", len(data), gpu.FrameConstantsSize)
	}
	err = gpu.Decode(data[:gpu.FrameConstantsSize], &f)
	return f, err
}

// resident returns the GL name holding buf, uploading it on first use.
// Uploads go through ARRAY_BUFFER; a name can be bound to any target later.
func (d *Device) resident(buf gpu.Buffer) (uint32, error) {
	if buf == nil {
		return 0, gpu.ErrInvalidBuffer
	}
	if name, ok := d.names[buf]; ok {
		return name, nil
	}
	data, err := d.emu.ReadBuffer(buf)
	if err != nil {
		return 0, err
	}
	var name uint32
	gl.GenBuffers(1, &name)
	gl.BindBuffer(gl.ARRAY_BUFFER, name)
	var ptr unsafe.Pointer
	if len(data) > 0 {
		ptr = unsafe.Pointer(&data[0])
	}
	gl.BufferData(gl.ARRAY_BUFFER, len(data), ptr, gl.STATIC_DRAW)
	gl.BindBuffer(gl.ARRAY_BUFFER, 0)
	d.names[buf] = name
	d.log.Debug("buffer resident", zap.String("label", buf.Label()), zap.Int("bytes", len(data)))
	return name, nil
}

func (d *Device) setShading(p *shader.Program, f gpu.FrameConstants) {
	p.SetVec3("uLightDir", f.LightDir[0], f.LightDir[1], f.LightDir[2])
	p.SetInt("uShadeMode", int32(f.ShadeMode))
	p.SetInt("uTexture", 0)
	gl.ActiveTexture(gl.TEXTURE0)
	if d.texture != nil {
		gl.BindTexture(gl.TEXTURE_2D, d.texture.id)
	} else {
		gl.BindTexture(gl.TEXTURE_2D, 0)
	}
}

// bindMeshletVertexLayout points attributes 0-3 at a gpu.MeshletVertex
// buffer.
func bindMeshletVertexLayout(vb uint32) {
	stride := int32(gpu.MeshletVertexStride)
	gl.BindBuffer(gl.ARRAY_BUFFER, vb)
	gl.VertexAttribPointer(0, 3, gl.FLOAT, false, stride, gl.PtrOffset(0))
	gl.EnableVertexAttribArray(0)
	gl.VertexAttribPointer(1, 3, gl.FLOAT, false, stride, gl.PtrOffset(12))
	gl.EnableVertexAttribArray(1)
	gl.VertexAttribPointer(2, 2, gl.FLOAT, false, stride, gl.PtrOffset(24))
	gl.EnableVertexAttribArray(2)
	gl.VertexAttribIPointer(3, 1, gl.UNSIGNED_INT, stride, gl.PtrOffset(44))
	gl.EnableVertexAttribArray(3)
}

// bindInstanceLayout points attributes 4-7 at the world matrix columns
// and 8-10 at the normal matrix columns of a gpu.GPUInstance buffer.
func bindInstanceLayout(inst uint32) {
	stride := int32(gpu.InstanceStride)
	gl.BindBuffer(gl.ARRAY_BUFFER, inst)
	for col := uint32(0); col < 4; col++ {
		loc := 4 + col
		gl.VertexAttribPointer(loc, 4, gl.FLOAT, false, stride, gl.PtrOffset(int(col*16)))
		gl.EnableVertexAttribArray(loc)
		gl.VertexAttribDivisor(loc, 1)
	}
	for col := uint32(0); col < 3; col++ {
		loc := 8 + col
		gl.VertexAttribPointer(loc, 3, gl.FLOAT, false, stride, gl.PtrOffset(int(64+col*16)))
		gl.EnableVertexAttribArray(loc)
		gl.VertexAttribDivisor(loc, 1)
	}
	gl.BindBuffer(gl.ARRAY_BUFFER, 0)
}
