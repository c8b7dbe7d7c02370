package gldevice

import (
	"errors"
	"image"
	"unsafe"

	"github.com/go-gl/gl/v4.1-core/gl"
)

// ErrEmptyImage is returned for zero-sized texture uploads.
var ErrEmptyImage = errors.New("empty image")

// Texture is a mipmapped RGBA8 GL texture. It satisfies gpu.Texture.
type Texture struct {
	id            uint32
	width, height int
}

// NewTexture uploads img with trilinear filtering and repeat wrapping.
func NewTexture(img *image.RGBA) (*Texture, error) {
	w, h := img.Rect.Dx(), img.Rect.Dy()
	if w == 0 || h == 0 {
		return nil, ErrEmptyImage
	}
	pix := img.Pix
	if img.Stride != w*4 || img.Rect.Min != (image.Point{}) {
		pix = make([]byte, 0, w*h*4)
		for y := img.Rect.Min.Y; y < img.Rect.Max.Y; y++ {
			off := img.PixOffset(img.Rect.Min.X, y)
			pix = append(pix, img.Pix[off:off+w*4]...)
		}
	}

	t := &Texture{width: w, height: h}
	gl.GenTextures(1, &t.id)
	gl.BindTexture(gl.TEXTURE_2D, t.id)
	gl.PixelStorei(gl.UNPACK_ALIGNMENT, 1)
	gl.TexImage2D(gl.TEXTURE_2D, 0, gl.RGBA8, int32(w), int32(h), 0, gl.RGBA, gl.UNSIGNED_BYTE, unsafe.Pointer(&pix[0]))
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MIN_FILTER, gl.LINEAR_MIPMAP_LINEAR)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MAG_FILTER, gl.LINEAR)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_WRAP_S, gl.REPEAT)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_WRAP_T, gl.REPEAT)
	gl.GenerateMipmap(gl.TEXTURE_2D)
	gl.BindTexture(gl.TEXTURE_2D, 0)
	return t, nil
}

// Width implements gpu.Texture.
func (t *Texture) Width() int { return t.width }

// Height implements gpu.Texture.
func (t *Texture) Height() int { return t.height }

// ID returns the GL texture name.
func (t *Texture) ID() uint32 { return t.id }

// Delete releases the texture.
func (t *Texture) Delete() {
	if t.id != 0 {
		gl.DeleteTextures(1, &t.id)
		t.id = 0
	}
}
