// Package viewer implements the interactive cluster viewer: window, input,
// camera and the per-frame loop around the cluster renderer.
package viewer

import (
	"errors"
	"fmt"
	"image/color"
	"path/filepath"
	"strings"
	"time"

	"github.com/chewxy/math32"
	"github.com/sqweek/dialog"
	"github.com/veandco/go-sdl2/sdl"
	"go.uber.org/zap"

	"github.com/Faultbox/clusterview/internal/assets"
	"github.com/Faultbox/clusterview/internal/cluster"
	"github.com/Faultbox/clusterview/internal/config"
	"github.com/Faultbox/clusterview/internal/engine/camera"
	"github.com/Faultbox/clusterview/internal/engine/debug"
	"github.com/Faultbox/clusterview/internal/engine/input"
	"github.com/Faultbox/clusterview/internal/engine/lighting"
	"github.com/Faultbox/clusterview/internal/engine/picking"
	"github.com/Faultbox/clusterview/internal/engine/renderer"
	"github.com/Faultbox/clusterview/internal/engine/texture"
	"github.com/Faultbox/clusterview/internal/engine/window"
	"github.com/Faultbox/clusterview/internal/gpu/gldevice"
	"github.com/Faultbox/clusterview/internal/logger"
	"github.com/Faultbox/clusterview/pkg/math"
)

const (
	title        = "clusterview"
	statsPeriod  = 500 * time.Millisecond
	spinSpeed    = 0.5 // radians per second
	wheelStep    = 1.15
	screenshotTo = "screenshots"
)

// Viewer is the main viewer instance.
type Viewer struct {
	cfg     *config.Config
	running bool
	log     *zap.Logger

	window   *window.Window
	input    *input.Input
	device   *gldevice.Device
	renderer *cluster.Renderer
	assets   *assets.Manager
	camera   *camera.FlyCamera
	shots    *debug.Screenshotter

	asset   *assets.Asset
	texture *gldevice.Texture
	grid    cluster.Grid
	opts    cluster.RenderOptions

	width, height int // drawable pixels
	spin          float32
	spinning      bool
	sunAzimuth    float32
	orbiting      bool
	mouseLook     bool
	screenshot    bool
	pending       chan string
}

// New creates the window, the GL device and the renderer, then loads the
// configured mesh.
func New(cfg *config.Config) (*Viewer, error) {
	v := &Viewer{
		cfg:        cfg,
		log:        logger.Named("viewer"),
		input:      input.New(),
		shots:      debug.NewScreenshotter(screenshotTo, title),
		grid:       cluster.Grid{X: cfg.Scene.GridX, Z: cfg.Scene.GridZ, Spacing: cfg.Scene.Spacing},
		spinning:   cfg.Scene.Spin,
		sunAzimuth: cfg.Scene.SunAzimuth,
		pending:    make(chan string, 1),
		opts: cluster.RenderOptions{
			ShowClusterColors: cfg.Renderer.ShowClusterColors,
			UseTexture:        cfg.Renderer.UseTexture,
		},
	}
	v.log.Info("initializing viewer",
		zap.Int("width", cfg.Graphics.Width),
		zap.Int("height", cfg.Graphics.Height),
	)

	opts, err := assets.OptionsFromConfig(cfg.Mesh)
	if err != nil {
		return nil, err
	}
	v.assets = assets.NewManager(opts)

	// Window first, it creates the GL context
	v.window, err = window.New(window.Config{
		Title:      title,
		Width:      cfg.Graphics.Width,
		Height:     cfg.Graphics.Height,
		Fullscreen: cfg.Graphics.Fullscreen,
		VSync:      cfg.Graphics.VSync,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create window: %w", err)
	}

	info, err := renderer.Init()
	if err != nil {
		v.window.Close()
		return nil, err
	}
	v.device, err = gldevice.New(gldevice.Config{EmulateTaskStage: cfg.Renderer.EmulateTaskStage}, info)
	if err != nil {
		v.window.Close()
		return nil, fmt.Errorf("failed to create device: %w", err)
	}
	v.renderer = cluster.New(v.device, cluster.Config{
		ForceFallback: cfg.Renderer.ForceFallback,
		MaxClusters:   cfg.Renderer.MaxClusters,
		MaxInstances:  cfg.Renderer.MaxInstances,
		LightDir:      lighting.SunDirection(v.sunAzimuth, cfg.Scene.SunElevation),
	})

	v.camera = camera.NewFlyCamera(cfg.Camera.FovDegrees, cfg.Camera.Near, cfg.Camera.Far)
	v.camera.Sensitivity = cfg.Camera.Sensitivity
	v.resize(v.window.DrawableSize())

	v.loadTexture(cfg.Mesh.Texture)
	if err := v.loadMesh(cfg.Mesh.Path, false); err != nil {
		v.Close()
		return nil, err
	}

	v.log.Info("viewer initialized", zap.Stringer("path", v.renderer.Path()))
	return v, nil
}

// Run starts the main loop.
func (v *Viewer) Run() error {
	v.running = true

	lastTime := time.Now()
	frameCount := 0
	statsTimer := time.Now()

	v.log.Info("starting main loop")

	for v.running {
		now := time.Now()
		dt := float32(now.Sub(lastTime).Seconds())
		lastTime = now

		// 1. Process input
		if v.input.Update() {
			v.running = false
			break
		}
		v.handleEvents()

		// 2. Update scene state
		if err := v.update(dt); err != nil {
			return fmt.Errorf("update error: %w", err)
		}

		// 3. Render
		if err := v.render(); err != nil {
			return fmt.Errorf("render error: %w", err)
		}

		// 4. Present
		v.window.SwapBuffers()

		frameCount++
		if elapsed := time.Since(statsTimer); elapsed >= statsPeriod {
			v.reportStats(float64(frameCount) / elapsed.Seconds())
			frameCount = 0
			statsTimer = time.Now()
		}
	}
	return nil
}

// Close releases viewer resources.
func (v *Viewer) Close() {
	v.log.Info("closing viewer")
	if v.renderer != nil {
		v.renderer.Close()
	}
	if v.texture != nil {
		v.texture.Delete()
	}
	if v.device != nil {
		v.device.Close()
	}
	if v.assets != nil {
		v.assets.Close()
	}
	if v.window != nil {
		v.window.Close()
	}
}

func (v *Viewer) handleEvents() {
	for _, e := range v.input.Events() {
		switch e.Type {
		case input.EventWindowResize:
			v.resize(v.window.DrawableSize())
		case input.EventKeyDown:
			if !e.Repeat {
				v.handleKey(e.Key)
			}
		case input.EventMouseDown:
			switch e.Button {
			case sdl.BUTTON_RIGHT:
				v.mouseLook = true
				v.window.SetMouseCaptured(true)
			case sdl.BUTTON_LEFT:
				v.pick(e.MouseX, e.MouseY)
			}
		case input.EventMouseUp:
			if e.Button == sdl.BUTTON_RIGHT {
				v.mouseLook = false
				v.window.SetMouseCaptured(false)
			}
		case input.EventMouseMove:
			if v.mouseLook {
				v.camera.HandleMouse(float32(e.DeltaX), float32(e.DeltaY))
			}
		case input.EventMouseWheel:
			v.camera.MoveSpeed *= math32.Pow(wheelStep, e.Wheel)
		case input.EventFileDrop:
			v.openDropped(e.Path)
		}
	}

	select {
	case path := <-v.pending:
		if err := v.loadMesh(path, false); err != nil {
			v.log.Error("failed to open mesh", zap.String("path", path), zap.Error(err))
		}
	default:
	}
}

func (v *Viewer) handleKey(key sdl.Scancode) {
	switch key {
	case sdl.SCANCODE_ESCAPE:
		v.running = false
	case sdl.SCANCODE_M:
		v.opts.ShowClusterColors = !v.opts.ShowClusterColors
		v.log.Info("cluster colors", zap.Bool("on", v.opts.ShowClusterColors))
	case sdl.SCANCODE_T:
		v.opts.UseTexture = !v.opts.UseTexture
		v.log.Info("texture", zap.Bool("on", v.opts.UseTexture), zap.Bool("loaded", v.renderer.HasTexture()))
	case sdl.SCANCODE_F:
		if _, err := v.renderer.TogglePath(); err != nil {
			v.log.Warn("cannot switch render path", zap.Error(err))
		}
	case sdl.SCANCODE_O:
		v.openFileDialog()
	case sdl.SCANCODE_R:
		if v.asset != nil && v.asset.OBJ != nil {
			if err := v.loadMesh(v.asset.Name, true); err != nil {
				v.log.Error("reload failed", zap.Error(err))
			}
		}
	case sdl.SCANCODE_C:
		v.spinning = !v.spinning
	case sdl.SCANCODE_L:
		v.orbiting = !v.orbiting
	case sdl.SCANCODE_HOME:
		v.fitCamera()
	case sdl.SCANCODE_F11:
		v.window.ToggleFullscreen()
	case sdl.SCANCODE_F12:
		v.screenshot = true
	}
}

func (v *Viewer) update(dt float32) error {
	forward := v.input.Axis(sdl.SCANCODE_S, sdl.SCANCODE_W)
	right := v.input.Axis(sdl.SCANCODE_A, sdl.SCANCODE_D)
	up := v.input.Axis(sdl.SCANCODE_Q, sdl.SCANCODE_E)
	if v.input.IsKeyHeld(sdl.SCANCODE_LSHIFT) {
		dt *= 4
	}
	v.camera.Move(forward, right, up, dt)

	if v.orbiting {
		v.sunAzimuth = lighting.Orbit(v.sunAzimuth, v.cfg.Scene.SunOrbit, dt)
		v.renderer.SetLightDir(lighting.SunDirection(v.sunAzimuth, v.cfg.Scene.SunElevation))
	}
	if v.spinning {
		v.spin = math32.Mod(v.spin+spinSpeed*dt, 2*math32.Pi)
		return v.placeInstances()
	}
	return nil
}

func (v *Viewer) render() error {
	renderer.Begin()
	err := v.renderer.Render(v.camera, cluster.Target{Width: v.width, Height: v.height}, v.opts)
	if v.screenshot {
		v.screenshot = false
		v.saveScreenshot()
	}
	return err
}

func (v *Viewer) resize(width, height int) {
	v.width, v.height = width, height
	renderer.Resize(width, height)
	v.camera.SetViewport(width, height)
}

// loadMesh uploads the mesh at path, or the fallback shape when path is
// empty or unreadable.
func (v *Viewer) loadMesh(path string, reload bool) error {
	var a *assets.Asset
	var err error
	if reload {
		a, err = v.assets.Reload(path)
	} else {
		a, err = v.assets.LoadOrShape(path, v.cfg.Mesh.FallbackShape, v.cfg.Mesh.Subdivisions)
	}
	if err != nil {
		return err
	}
	if err := v.renderer.UploadMesh(a.Mesh, 0); err != nil {
		return fmt.Errorf("upload %s: %w", a.Name, err)
	}
	v.asset = a
	if err := v.placeInstances(); err != nil {
		return err
	}
	v.fitCamera()
	v.window.SetTitle(fmt.Sprintf("%s - %s", title, filepath.Base(a.Name)))
	return nil
}

func (v *Viewer) placeInstances() error {
	mm := v.asset.Mesh
	return v.renderer.SetInstances(v.grid.Instances(mm.SphereCenter, mm.SphereRadius, v.spin))
}

func (v *Viewer) fitCamera() {
	if v.asset == nil {
		return
	}
	center, radius := v.grid.Bounds(v.asset.Mesh.SphereRadius)
	v.camera.FitSphere(center, radius)
	v.camera.MoveSpeed = math32.Max(v.camera.MoveSpeed, v.cfg.Camera.MoveSpeed)
}

// loadTexture loads the configured diffuse texture, or a checkerboard.
func (v *Viewer) loadTexture(path string) {
	img := texture.Checker(256, 8, color.RGBA{R: 230, G: 230, B: 230, A: 255}, color.RGBA{R: 60, G: 60, B: 70, A: 255})
	if path != "" {
		loaded, err := texture.Load(path)
		if err != nil {
			v.log.Warn("texture load failed, using checkerboard", zap.String("path", path), zap.Error(err))
		} else {
			img = loaded
		}
	}
	tex, err := gldevice.NewTexture(img)
	if err != nil {
		v.log.Warn("texture upload failed", zap.Error(err))
		return
	}
	if v.texture != nil {
		v.texture.Delete()
	}
	v.texture = tex
	v.renderer.SetTexture(tex)
}

func (v *Viewer) openDropped(path string) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".tga", ".png", ".bmp", ".jpg", ".jpeg":
		v.loadTexture(path)
		v.opts.UseTexture = true
	default:
		if err := v.loadMesh(path, false); err != nil {
			v.log.Error("failed to open dropped file", zap.String("path", path), zap.Error(err))
		}
	}
}

// openFileDialog shows a native file dialog. The result is queued and
// loaded on the main thread.
func (v *Viewer) openFileDialog() {
	go func() {
		filename, err := dialog.File().
			Filter("Wavefront OBJ", "obj").
			Filter("All Files", "*").
			Title("Open Mesh").
			Load()
		if err != nil {
			if !errors.Is(err, dialog.ErrCancelled) {
				v.log.Warn("file dialog failed", zap.Error(err))
			}
			return
		}
		select {
		case v.pending <- filename:
		default:
		}
	}()
}

func (v *Viewer) pick(x, y int) {
	if v.asset == nil {
		return
	}
	w, h := v.window.Size()
	vp := v.camera.Projection().Mul(v.camera.View())
	ray := picking.ScreenToRay(float32(x), float32(y), float32(w), float32(h), vp.Inverse())

	instances := v.renderer.Instances()
	worlds := make([]math.Mat4, len(instances))
	for i, in := range instances {
		worlds[i] = in.World
	}
	hit, ok := picking.PickInstances(ray, worlds, v.asset.Mesh)
	if !ok {
		v.log.Info("pick: no cluster under cursor")
		return
	}
	b := v.asset.Mesh.Bounds[hit.Cluster]
	m := v.asset.Mesh.Meshlets[hit.Cluster]
	v.log.Info("picked cluster",
		zap.Int("instance", hit.Instance),
		zap.Int("cluster", hit.Cluster),
		zap.Int("triangle", hit.Triangle),
		zap.Uint32("vertices", m.VertexCount),
		zap.Uint32("triangles", m.PrimitiveCount),
		zap.Float32("radius", b.Radius),
		zap.Bool("cone", !b.ConeDisabled()),
		zap.Float32("distance", hit.WorldDistance),
	)
}

func (v *Viewer) saveScreenshot() {
	path, err := v.shots.CapturePixels(v.device.ReadPixels(v.width, v.height), v.width, v.height)
	if err != nil {
		v.log.Error("screenshot failed", zap.Error(err))
		return
	}
	v.log.Info("screenshot saved", zap.String("path", path))
}

func (v *Viewer) reportStats(fps float64) {
	s := v.renderer.Stats()
	v.log.Info("stats",
		zap.Stringer("path", s.Path),
		zap.Int("instances", s.Instances),
		zap.Int("clusters", s.Clusters),
		zap.Uint64("visible_clusters", s.VisibleClusters),
		zap.Uint64("rendered_triangles", s.RenderedTriangles),
		zap.Float64("fps", fps),
	)
	name := ""
	if v.asset != nil {
		name = filepath.Base(v.asset.Name)
	}
	v.window.SetTitle(fmt.Sprintf("%s - %s | %s | clusters %d/%d | tris %d | %.0f fps",
		title, name, s.Path, s.VisibleClusters, s.Clusters*max(s.Instances, 1), s.RenderedTriangles, fps))
}
