// Package cluster renders meshlet meshes through a gpu.Device, either with
// per-cluster culling in a task stage or as one pre-expanded indexed draw.
package cluster

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/Faultbox/clusterview/internal/gpu"
	"github.com/Faultbox/clusterview/internal/logger"
	"github.com/Faultbox/clusterview/pkg/math"
	"github.com/Faultbox/clusterview/pkg/meshlet"
)

// FrameSlots is the depth of the per-frame constant buffer ring.
const FrameSlots = 3

// Path is the render path chosen at initialization.
type Path int

// Render paths.
const (
	PathTwoStage Path = iota
	PathFallback
)

// String implements fmt.Stringer.
func (p Path) String() string {
	switch p {
	case PathTwoStage:
		return "two-stage"
	case PathFallback:
		return "fallback"
	default:
		return fmt.Sprintf("Path(%d)", int(p))
	}
}

// ErrCapacityExceeded is matched by every *CapacityError.
var ErrCapacityExceeded = errors.New("capacity exceeded")

// CapacityError reports an upload that does not fit the device limits.
type CapacityError struct {
	Resource  string
	Requested int
	Limit     int
}

func (e *CapacityError) Error() string {
	return fmt.Sprintf("%s: %d requested, limit %d: %v", e.Resource, e.Requested, e.Limit, ErrCapacityExceeded)
}

// Is reports whether target is ErrCapacityExceeded.
func (e *CapacityError) Is(target error) bool {
	return target == ErrCapacityExceeded
}

// Config holds renderer settings.
type Config struct {
	ForceFallback bool
	// MaxClusters caps the clusters of one mesh. Zero means no cap beyond
	// the device limits.
	MaxClusters  int
	MaxInstances int
	LightDir     math.Vec3
}

// DefaultConfig returns the renderer defaults.
func DefaultConfig() Config {
	return Config{
		MaxClusters:  1 << 20,
		MaxInstances: 4096,
		LightDir:     math.Vec3{X: 0.3, Y: 1, Z: 0.5}.Normalize(),
	}
}

// Camera supplies the matrices of one frame.
type Camera interface {
	View() math.Mat4
	Projection() math.Mat4
	Position() math.Vec3
}

// Target is the render target a frame is drawn into.
type Target struct {
	Width  int
	Height int
}

// RenderOptions are the visualization toggles of one frame.
type RenderOptions struct {
	ShowClusterColors bool
	UseTexture        bool
}

// ShadeMode resolves the toggles. The texture wins over cluster colors
// when both are on and a texture is bound.
func (o RenderOptions) ShadeMode(hasTexture bool) uint32 {
	switch {
	case o.UseTexture && hasTexture:
		return gpu.ShadeTexture
	case o.ShowClusterColors:
		return gpu.ShadeClusterColor
	default:
		return gpu.ShadeSolid
	}
}

// Renderer draws uploaded meshes for a set of instances.
type Renderer struct {
	dev  gpu.Device
	cfg  Config
	caps gpu.Capabilities
	path Path
	log  *zap.Logger

	meshes    []*meshResources
	instances []Instance
	texture   gpu.Texture

	frame     uint64
	submitted int // submissions since the last upload
	drawing   uint64 // cluster instances drawn by the fallback path this frame
	drawn     uint64 // the same for the previous submission
	stats     Stats
}

// New creates a renderer and resolves its path from the device
// capabilities.
func New(dev gpu.Device, cfg Config) *Renderer {
	def := DefaultConfig()
	if cfg.MaxInstances <= 0 {
		cfg.MaxInstances = def.MaxInstances
	}
	if cfg.LightDir == (math.Vec3{}) {
		cfg.LightDir = def.LightDir
	}

	r := &Renderer{
		dev:  dev,
		cfg:  cfg,
		caps: dev.Capabilities(),
		log:  logger.Named("cluster"),
	}
	switch {
	case cfg.ForceFallback:
		r.path = PathFallback
		r.log.Info("fallback path forced by config", zap.String("device", r.caps.Name))
	case !r.caps.TwoStage:
		r.path = PathFallback
		r.log.Info("device has no task/mesh stage, using fallback path", zap.String("device", r.caps.Name))
	default:
		r.path = PathTwoStage
		r.log.Info("using two-stage culled path", zap.String("device", r.caps.Name))
	}
	r.stats.Path = r.path
	return r
}

// Path returns the active render path.
func (r *Renderer) Path() Path {
	return r.path
}

// TogglePath switches between the two paths. It fails when the device has
// no task stage. Fallback buffers are built on first use.
func (r *Renderer) TogglePath() (Path, error) {
	if !r.caps.TwoStage {
		return r.path, fmt.Errorf("toggle path: %w: %s has no task stage", gpu.ErrUnsupported, r.caps.Name)
	}
	next := PathFallback
	if r.path == PathFallback {
		next = PathTwoStage
	}
	if next == PathFallback {
		for i, res := range r.meshes {
			if res == nil {
				continue
			}
			if err := r.checkFallbackCapacity(res.mm); err != nil {
				return r.path, fmt.Errorf("toggle path: mesh %d: %w", i, err)
			}
			if err := r.uploadFallback(res); err != nil {
				return r.path, fmt.Errorf("toggle path: mesh %d: %w", i, err)
			}
		}
	}
	r.path = next
	r.stats.Path = next
	r.resetDynamicStats()
	r.log.Info("render path switched", zap.Stringer("path", next))
	return next, nil
}

// SetTexture sets the diffuse texture. Nil unbinds it.
func (r *Renderer) SetTexture(tex gpu.Texture) {
	r.texture = tex
}

// SetLightDir sets the direction towards the light used by the next
// Render. A zero vector is ignored.
func (r *Renderer) SetLightDir(dir math.Vec3) {
	if dir == (math.Vec3{}) {
		return
	}
	r.cfg.LightDir = dir.Normalize()
}

// LightDir returns the current light direction.
func (r *Renderer) LightDir() math.Vec3 {
	return r.cfg.LightDir
}

// HasTexture reports whether a diffuse texture is set.
func (r *Renderer) HasTexture() bool {
	return r.texture != nil
}

// Mesh returns the mesh uploaded at index, or nil.
func (r *Renderer) Mesh(index int) *meshlet.MeshletMesh {
	if index < 0 || index >= len(r.meshes) || r.meshes[index] == nil {
		return nil
	}
	return r.meshes[index].mm
}

// Close releases every device buffer.
func (r *Renderer) Close() {
	for i, res := range r.meshes {
		if res != nil {
			res.destroy(r.dev)
			r.meshes[i] = nil
		}
	}
	r.meshes = nil
}
