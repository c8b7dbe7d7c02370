// Package renderer owns process-wide OpenGL state: loader initialization,
// driver info, viewport and per-frame clears.
package renderer

import (
	"fmt"
	"strings"

	"github.com/go-gl/gl/v4.1-core/gl"
	"go.uber.org/zap"

	"github.com/Faultbox/clusterview/internal/logger"
)

// Info describes the current GL driver.
type Info struct {
	Version    string
	Renderer   string
	Vendor     string
	Extensions []string
}

// HasExtension reports whether the driver advertises ext.
func (i Info) HasExtension(ext string) bool {
	for _, e := range i.Extensions {
		if e == ext {
			return true
		}
	}
	return false
}

// Init loads GL function pointers and sets default state.
// Must be called AFTER the OpenGL context is created.
func Init() (Info, error) {
	if err := gl.Init(); err != nil {
		return Info{}, fmt.Errorf("failed to initialize OpenGL: %w", err)
	}

	info := Info{
		Version:  gl.GoStr(gl.GetString(gl.VERSION)),
		Renderer: gl.GoStr(gl.GetString(gl.RENDERER)),
		Vendor:   gl.GoStr(gl.GetString(gl.VENDOR)),
	}
	var n int32
	gl.GetIntegerv(gl.NUM_EXTENSIONS, &n)
	for i := int32(0); i < n; i++ {
		info.Extensions = append(info.Extensions, gl.GoStr(gl.GetStringi(gl.EXTENSIONS, uint32(i))))
	}
	logger.Info("OpenGL initialized",
		zap.String("version", info.Version),
		zap.String("renderer", info.Renderer),
		zap.String("vendor", info.Vendor),
		zap.Int("extensions", len(info.Extensions)),
	)

	gl.Enable(gl.DEPTH_TEST)
	gl.DepthFunc(gl.LESS)
	gl.ClearColor(0.1, 0.1, 0.15, 1.0)
	return info, nil
}

// Resize handles window resize.
func Resize(width, height int) {
	gl.Viewport(0, 0, int32(width), int32(height))
	logger.Debug("viewport resized",
		zap.Int("width", width),
		zap.Int("height", height),
	)
}

// Begin starts a new frame.
func Begin() {
	gl.Clear(gl.COLOR_BUFFER_BIT | gl.DEPTH_BUFFER_BIT)
}

// CheckError drains the GL error queue into one error.
func CheckError(op string) error {
	var codes []string
	for code := gl.GetError(); code != gl.NO_ERROR; code = gl.GetError() {
		codes = append(codes, fmt.Sprintf("0x%04X", code))
	}
	if len(codes) == 0 {
		return nil
	}
	return fmt.Errorf("%s: GL error %s", op, strings.Join(codes, ", "))
}
