package gldevice

import (
	"unsafe"

	"github.com/go-gl/gl/v4.1-core/gl"

	"github.com/Faultbox/clusterview/internal/gpu/soft"
	"github.com/Faultbox/clusterview/pkg/math"
)

// streamVertex is the GL layout of one emulated mesh-stage vertex.
// Offsets: clip 0, normal 16, uv 28, meshlet 36.
type streamVertex struct {
	Clip      math.Vec4
	Normal    math.Vec3
	UV        math.Vec2
	MeshletID uint32
}

const streamStride = int32(unsafe.Sizeof(streamVertex{}))

// streamBuffers hold the per-frame emulated output. Storage grows and is
// orphaned each frame.
type streamBuffers struct {
	vao, vbo, ibo uint32
	vboCap        int
	iboCap        int
	count         int32
	scratch       []streamVertex
}

func (s *streamBuffers) init() {
	gl.GenVertexArrays(1, &s.vao)
	gl.GenBuffers(1, &s.vbo)
	gl.GenBuffers(1, &s.ibo)

	gl.BindVertexArray(s.vao)
	gl.BindBuffer(gl.ARRAY_BUFFER, s.vbo)
	gl.VertexAttribPointer(0, 4, gl.FLOAT, false, streamStride, gl.PtrOffset(0))
	gl.EnableVertexAttribArray(0)
	gl.VertexAttribPointer(1, 3, gl.FLOAT, false, streamStride, gl.PtrOffset(16))
	gl.EnableVertexAttribArray(1)
	gl.VertexAttribPointer(2, 2, gl.FLOAT, false, streamStride, gl.PtrOffset(28))
	gl.EnableVertexAttribArray(2)
	gl.VertexAttribIPointer(3, 1, gl.UNSIGNED_INT, streamStride, gl.PtrOffset(36))
	gl.EnableVertexAttribArray(3)
	gl.BindBuffer(gl.ELEMENT_ARRAY_BUFFER, s.ibo)
	gl.BindVertexArray(0)
	gl.BindBuffer(gl.ARRAY_BUFFER, 0)
}

func (s *streamBuffers) upload(out soft.Output) {
	s.scratch = s.scratch[:0]
	for _, v := range out.Vertices {
		s.scratch = append(s.scratch, streamVertex{Clip: v.Clip, Normal: v.Normal, UV: v.UV, MeshletID: v.MeshletID})
	}

	gl.BindVertexArray(s.vao)
	vbytes := len(s.scratch) * int(streamStride)
	gl.BindBuffer(gl.ARRAY_BUFFER, s.vbo)
	if vbytes > s.vboCap {
		s.vboCap = vbytes
	}
	gl.BufferData(gl.ARRAY_BUFFER, s.vboCap, nil, gl.STREAM_DRAW)
	gl.BufferSubData(gl.ARRAY_BUFFER, 0, vbytes, unsafe.Pointer(&s.scratch[0]))

	ibytes := len(out.Indices) * 4
	if ibytes > s.iboCap {
		s.iboCap = ibytes
	}
	gl.BufferData(gl.ELEMENT_ARRAY_BUFFER, s.iboCap, nil, gl.STREAM_DRAW)
	gl.BufferSubData(gl.ELEMENT_ARRAY_BUFFER, 0, ibytes, unsafe.Pointer(&out.Indices[0]))
	gl.BindVertexArray(0)
	gl.BindBuffer(gl.ARRAY_BUFFER, 0)

	s.count = int32(len(out.Indices))
}

func (s *streamBuffers) draw() {
	if s.count == 0 {
		return
	}
	gl.BindVertexArray(s.vao)
	gl.DrawElements(gl.TRIANGLES, s.count, gl.UNSIGNED_INT, nil)
	gl.BindVertexArray(0)
}

func (s *streamBuffers) destroy() {
	if s.vao != 0 {
		gl.DeleteVertexArrays(1, &s.vao)
	}
	if s.vbo != 0 {
		gl.DeleteBuffers(1, &s.vbo)
	}
	if s.ibo != 0 {
		gl.DeleteBuffers(1, &s.ibo)
	}
	*s = streamBuffers{}
}
