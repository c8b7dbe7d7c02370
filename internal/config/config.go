// Package config handles viewer configuration loading and management.
package config

import (
	"errors"
	"fmt"
)

// Config holds all viewer settings.
type Config struct {
	Graphics GraphicsConfig `yaml:"graphics"`
	Renderer RendererConfig `yaml:"renderer"`
	Mesh     MeshConfig     `yaml:"mesh"`
	Scene    SceneConfig    `yaml:"scene"`
	Camera   CameraConfig   `yaml:"camera"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// GraphicsConfig holds window settings.
type GraphicsConfig struct {
	Width      int  `yaml:"width"`
	Height     int  `yaml:"height"`
	Fullscreen bool `yaml:"fullscreen"`
	VSync      bool `yaml:"vsync"`
}

// RendererConfig selects the cluster render path and its limits.
type RendererConfig struct {
	// ForceFallback skips the culled path even when the device has it.
	ForceFallback bool `yaml:"force_fallback"`
	// EmulateTaskStage runs the task and mesh stages on the CPU for
	// OpenGL devices without native support.
	EmulateTaskStage  bool `yaml:"emulate_task_stage"`
	MaxClusters       int  `yaml:"max_clusters"`
	MaxInstances      int  `yaml:"max_instances"`
	ShowClusterColors bool `yaml:"show_cluster_colors"`
	UseTexture        bool `yaml:"use_texture"`
}

// MeshConfig controls what gets loaded and how it is clustered.
type MeshConfig struct {
	Path         string `yaml:"path"`
	Texture      string `yaml:"texture"`
	Strategy     string `yaml:"strategy"`
	MaxLODLevels int    `yaml:"max_lod_levels"`
	ComputeCones bool   `yaml:"compute_cones"`
	// Fallback shape when Path is empty or fails to load: geosphere or box.
	FallbackShape string `yaml:"fallback_shape"`
	Subdivisions  int    `yaml:"subdivisions"`
}

// SceneConfig lays out the instance grid.
type SceneConfig struct {
	GridX   int     `yaml:"grid_x"`
	GridZ   int     `yaml:"grid_z"`
	Spacing float32 `yaml:"spacing"`
	Spin    bool    `yaml:"spin"`
	// Sun angles in degrees. SunOrbit is degrees per second while the
	// orbit is toggled on.
	SunAzimuth   float32 `yaml:"sun_azimuth"`
	SunElevation float32 `yaml:"sun_elevation"`
	SunOrbit     float32 `yaml:"sun_orbit"`
}

// CameraConfig holds the fly camera settings.
type CameraConfig struct {
	FovDegrees  float32 `yaml:"fov_degrees"`
	Near        float32 `yaml:"near"`
	Far         float32 `yaml:"far"`
	MoveSpeed   float32 `yaml:"move_speed"`
	Sensitivity float32 `yaml:"sensitivity"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level   string `yaml:"level"`
	LogFile string `yaml:"log_file"`
}

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		Graphics: GraphicsConfig{
			Width:  1280,
			Height: 720,
			VSync:  true,
		},
		Renderer: RendererConfig{
			EmulateTaskStage:  true,
			MaxClusters:       1 << 20,
			MaxInstances:      4096,
			ShowClusterColors: true,
		},
		Mesh: MeshConfig{
			Strategy:      "locality",
			MaxLODLevels:  8,
			FallbackShape: "geosphere",
			Subdivisions:  5,
		},
		Scene: SceneConfig{
			GridX:        3,
			GridZ:        3,
			Spacing:      3,
			SunAzimuth:   30,
			SunElevation: 55,
			SunOrbit:     20,
		},
		Camera: CameraConfig{
			FovDegrees:  60,
			Near:        0.1,
			Far:         500,
			MoveSpeed:   5,
			Sensitivity: 0.003,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// ErrInvalid is wrapped by every Validate failure.
var ErrInvalid = errors.New("invalid config")

// Validate checks value ranges.
func (c *Config) Validate() error {
	switch {
	case c.Graphics.Width <= 0 || c.Graphics.Height <= 0:
		return fmt.Errorf("%w: window size %dx%d", ErrInvalid, c.Graphics.Width, c.Graphics.Height)
	case c.Renderer.MaxClusters <= 0 || c.Renderer.MaxInstances <= 0:
		return fmt.Errorf("%w: renderer limits must be positive", ErrInvalid)
	case c.Mesh.MaxLODLevels <= 0:
		return fmt.Errorf("%w: max_lod_levels %d", ErrInvalid, c.Mesh.MaxLODLevels)
	case c.Mesh.Subdivisions < 0 || c.Mesh.Subdivisions > 8:
		return fmt.Errorf("%w: subdivisions %d outside [0, 8]", ErrInvalid, c.Mesh.Subdivisions)
	case c.Mesh.FallbackShape != "geosphere" && c.Mesh.FallbackShape != "box":
		return fmt.Errorf("%w: fallback_shape %q", ErrInvalid, c.Mesh.FallbackShape)
	case c.Scene.GridX <= 0 || c.Scene.GridZ <= 0:
		return fmt.Errorf("%w: instance grid %dx%d", ErrInvalid, c.Scene.GridX, c.Scene.GridZ)
	case c.Scene.GridX*c.Scene.GridZ > c.Renderer.MaxInstances:
		return fmt.Errorf("%w: %d instances exceed max_instances %d", ErrInvalid, c.Scene.GridX*c.Scene.GridZ, c.Renderer.MaxInstances)
	case c.Camera.Near <= 0 || c.Camera.Far <= c.Camera.Near:
		return fmt.Errorf("%w: clip range [%v, %v]", ErrInvalid, c.Camera.Near, c.Camera.Far)
	case c.Camera.FovDegrees <= 0 || c.Camera.FovDegrees >= 180:
		return fmt.Errorf("%w: fov %v", ErrInvalid, c.Camera.FovDegrees)
	}
	return nil
}
