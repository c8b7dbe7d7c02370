package texture

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"golang.org/x/image/bmp"
)

// tgaHeader builds an 18-byte header for a width x height image.
func tgaHeader(imageType byte, width, height, bpp int, descriptor byte) []byte {
	h := make([]byte, 18)
	h[2] = imageType
	h[12], h[13] = byte(width), byte(width>>8)
	h[14], h[15] = byte(height), byte(height>>8)
	h[16] = byte(bpp)
	h[17] = descriptor
	return h
}

func TestDecodeTGA_Uncompressed(t *testing.T) {
	// 2x1 bottom-up, BGR
	data := append(tgaHeader(TGATypeUncompressed, 2, 1, 24, 0), 0, 0, 255, 255, 0, 0)
	img, err := DecodeTGA(data)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if got := img.RGBAAt(0, 0); got != (color.RGBA{R: 255, A: 255}) {
		t.Errorf("pixel 0: expected red, got %v", got)
	}
	if got := img.RGBAAt(1, 0); got != (color.RGBA{B: 255, A: 255}) {
		t.Errorf("pixel 1: expected blue, got %v", got)
	}
}

func TestDecodeTGA_Orientation(t *testing.T) {
	// 1x2, first pixel in file is green, second is white.
	pixels := []byte{0, 255, 0, 255, 255, 255, 255, 255}
	bottomUp, err := DecodeTGA(append(tgaHeader(TGATypeUncompressed, 1, 2, 32, 0), pixels...))
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if got := bottomUp.RGBAAt(0, 1); got.G != 255 || got.R != 0 {
		t.Errorf("bottom-up file should put the first pixel on the last row, got %v", got)
	}

	topDown, err := DecodeTGA(append(tgaHeader(TGATypeUncompressed, 1, 2, 32, 0x20), pixels...))
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if got := topDown.RGBAAt(0, 0); got.G != 255 || got.R != 0 {
		t.Errorf("top-down file should put the first pixel on the first row, got %v", got)
	}
}

func TestDecodeTGA_RLE(t *testing.T) {
	// 4x1: a run of 3 red pixels, then one raw blue pixel.
	data := tgaHeader(TGATypeRLE, 4, 1, 24, 0x20)
	data = append(data, 0x82, 0, 0, 255)
	data = append(data, 0x00, 255, 0, 0)
	img, err := DecodeTGA(data)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	for x := 0; x < 3; x++ {
		if got := img.RGBAAt(x, 0); got.R != 255 {
			t.Errorf("pixel %d: expected red, got %v", x, got)
		}
	}
	if got := img.RGBAAt(3, 0); got.B != 255 {
		t.Errorf("pixel 3: expected blue, got %v", got)
	}

	if _, err := DecodeTGA(data[:len(data)-4]); err == nil {
		t.Error("expected error for truncated RLE data")
	}
}

func TestDecodeTGA_Errors(t *testing.T) {
	if _, err := DecodeTGA([]byte{1, 2, 3}); err == nil {
		t.Error("expected error for short data")
	}
	mapped := tgaHeader(TGATypeUncompressed, 1, 1, 24, 0)
	mapped[1] = 1
	if _, err := DecodeTGA(mapped); !errors.Is(err, ErrUnsupportedTGA) {
		t.Errorf("expected ErrUnsupportedTGA for color map, got %v", err)
	}
	if _, err := DecodeTGA(tgaHeader(3, 1, 1, 8, 0)); !errors.Is(err, ErrUnsupportedTGA) {
		t.Errorf("expected ErrUnsupportedTGA for grayscale, got %v", err)
	}
	if _, err := DecodeTGA(tgaHeader(TGATypeUncompressed, 4, 4, 24, 0)); err == nil {
		t.Error("expected error for missing pixel data")
	}
}

func testImage() *image.RGBA {
	img := Checker(2, 1, color.RGBA{R: 255, G: 255, B: 255, A: 255}, color.RGBA{A: 255})
	img.SetRGBA(0, 0, color.RGBA{R: 255, A: 255})
	img.SetRGBA(1, 1, color.RGBA{G: 255, A: 255})
	return img
}

func TestDecodePNGAndBMP(t *testing.T) {
	var pngBuf, bmpBuf bytes.Buffer
	if err := png.Encode(&pngBuf, testImage()); err != nil {
		t.Fatalf("png encode: %v", err)
	}
	if err := bmp.Encode(&bmpBuf, testImage()); err != nil {
		t.Fatalf("bmp encode: %v", err)
	}

	for ext, data := range map[string][]byte{".png": pngBuf.Bytes(), "BMP": bmpBuf.Bytes()} {
		img, err := Decode(data, ext)
		if err != nil {
			t.Fatalf("%s: decode failed: %v", ext, err)
		}
		if img.Bounds().Dx() != 2 || img.Bounds().Dy() != 2 {
			t.Errorf("%s: expected 2x2, got %v", ext, img.Bounds())
		}
		if got := img.RGBAAt(0, 0); got.R != 255 || got.G != 0 || got.B != 0 {
			t.Errorf("%s: expected red at origin, got %v", ext, got)
		}
		if got := img.RGBAAt(1, 1); got.G != 255 || got.R != 0 {
			t.Errorf("%s: expected green at (1,1), got %v", ext, got)
		}
	}

	if _, err := Decode([]byte("not an image"), ".xyz"); err == nil {
		t.Error("expected error for unknown data")
	}
}

func TestLoad(t *testing.T) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, testImage()); err != nil {
		t.Fatalf("png encode: %v", err)
	}
	path := filepath.Join(t.TempDir(), "diffuse.png")
	if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}
	img, err := Load(path)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if img.Bounds().Dx() != 2 {
		t.Errorf("unexpected bounds %v", img.Bounds())
	}
	if _, err := Load(filepath.Join(t.TempDir(), "missing.tga")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestToRGBAOffsetOrigin(t *testing.T) {
	sub := testImage().SubImage(image.Rect(1, 1, 2, 2))
	img := ToRGBA(sub)
	if img.Bounds() != image.Rect(0, 0, 1, 1) {
		t.Fatalf("expected origin-based bounds, got %v", img.Bounds())
	}
	if got := img.RGBAAt(0, 0); got.G != 255 {
		t.Errorf("expected green, got %v", got)
	}
}

func TestChecker(t *testing.T) {
	a := color.RGBA{R: 255, A: 255}
	b := color.RGBA{B: 255, A: 255}
	img := Checker(8, 2, a, b)
	if img.RGBAAt(0, 0) != a || img.RGBAAt(4, 0) != b || img.RGBAAt(4, 4) != a || img.RGBAAt(0, 7) != b {
		t.Error("unexpected checker layout")
	}
}
