// Package assets loads meshes from disk or generates fallback shapes and
// caches the clustered result.
package assets

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/Faultbox/clusterview/internal/config"
	"github.com/Faultbox/clusterview/internal/logger"
	"github.com/Faultbox/clusterview/pkg/formats"
	"github.com/Faultbox/clusterview/pkg/math"
	"github.com/Faultbox/clusterview/pkg/mesh"
	"github.com/Faultbox/clusterview/pkg/meshlet"
)

// ErrUnknownShape is returned for fallback shape names other than
// geosphere and box.
var ErrUnknownShape = errors.New("unknown shape")

// Asset is a clustered mesh ready for upload.
type Asset struct {
	Name string
	Mesh *meshlet.MeshletMesh
	// OBJ is nil for generated shapes.
	OBJ       *formats.OBJ
	BuildTime time.Duration
}

// Manager builds assets with one set of cluster options.
type Manager struct {
	opts  meshlet.Options
	cache *Cache
	log   *zap.Logger
}

// NewManager creates a new asset manager.
func NewManager(opts meshlet.Options) *Manager {
	return &Manager{
		opts:  opts,
		cache: NewCache(),
		log:   logger.Named("assets"),
	}
}

// OptionsFromConfig converts the mesh section of the config.
func OptionsFromConfig(cfg config.MeshConfig) (meshlet.Options, error) {
	strategy, err := meshlet.ParseStrategy(cfg.Strategy)
	if err != nil {
		return meshlet.Options{}, err
	}
	return meshlet.Options{
		Strategy:     strategy,
		MaxLODLevels: cfg.MaxLODLevels,
		ComputeCones: cfg.ComputeCones,
	}, nil
}

// Options returns the cluster options assets are built with.
func (m *Manager) Options() meshlet.Options {
	return m.opts
}

// Load parses and clusters an OBJ file.
func (m *Manager) Load(path string) (*Asset, error) {
	if a, ok := m.cache.Get(path); ok {
		return a, nil
	}
	obj, err := formats.ParseOBJFile(path)
	if err != nil {
		return nil, fmt.Errorf("loading %s: %w", path, err)
	}
	a, err := m.build(path, obj.Mesh)
	if err != nil {
		return nil, fmt.Errorf("loading %s: %w", path, err)
	}
	a.OBJ = obj
	m.cache.Set(path, a)
	return a, nil
}

// Reload drops the cached build of path and loads it again.
func (m *Manager) Reload(path string) (*Asset, error) {
	m.cache.Delete(path)
	return m.Load(path)
}

// Shape generates and clusters a fallback shape.
func (m *Manager) Shape(name string, subdivisions int) (*Asset, error) {
	key := fmt.Sprintf("shape:%s:%d", name, subdivisions)
	if a, ok := m.cache.Get(key); ok {
		return a, nil
	}
	var src *mesh.Mesh
	switch name {
	case "geosphere":
		src = mesh.Geosphere(1, subdivisions)
	case "box":
		src = mesh.Box(math.Vec3{X: 1.5, Y: 1.5, Z: 1.5})
	default:
		return nil, fmt.Errorf("%w %q", ErrUnknownShape, name)
	}
	a, err := m.build(name, src)
	if err != nil {
		return nil, err
	}
	m.cache.Set(key, a)
	return a, nil
}

// LoadOrShape loads path, or the fallback shape when path is empty or
// fails to load.
func (m *Manager) LoadOrShape(path, shape string, subdivisions int) (*Asset, error) {
	if path != "" {
		a, err := m.Load(path)
		if err == nil {
			return a, nil
		}
		m.log.Warn("mesh load failed, using fallback shape", zap.String("path", path), zap.String("shape", shape), zap.Error(err))
	}
	return m.Shape(shape, subdivisions)
}

func (m *Manager) build(name string, src *mesh.Mesh) (*Asset, error) {
	start := time.Now()
	mm, err := meshlet.Build(src, m.opts)
	if err != nil {
		return nil, err
	}
	a := &Asset{Name: name, Mesh: mm, BuildTime: time.Since(start)}
	m.log.Info("mesh clustered",
		zap.String("name", name),
		zap.Stringer("strategy", m.opts.Strategy),
		zap.Int("vertices", src.VertexCount()),
		zap.Int("triangles", src.TriangleCount()),
		zap.Int("clusters", mm.ClusterCount()),
		zap.Int("lod_levels", len(mm.Levels)),
		zap.Duration("took", a.BuildTime),
	)
	return a, nil
}

// CacheStats returns cache hits and misses.
func (m *Manager) CacheStats() (hits, misses int) {
	return m.cache.Stats()
}

// Close drops every cached asset.
func (m *Manager) Close() {
	m.cache.Clear()
}

// Cache is a simple in-memory cache for built assets.
type Cache struct {
	data map[string]*Asset
	mu   sync.Mutex

	// Stats
	hits   int
	misses int
}

// NewCache creates a new cache.
func NewCache() *Cache {
	return &Cache{
		data: make(map[string]*Asset),
	}
}

// Get retrieves an item from cache.
func (c *Cache) Get(key string) (*Asset, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	a, ok := c.data[key]
	if ok {
		c.hits++
	} else {
		c.misses++
	}
	return a, ok
}

// Set stores an item in cache.
func (c *Cache) Set(key string, a *Asset) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = a
}

// Delete removes one entry.
func (c *Cache) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.data, key)
}

// Clear clears the cache.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data = make(map[string]*Asset)
	c.hits = 0
	c.misses = 0
}

// Stats returns cache statistics.
func (c *Cache) Stats() (hits, misses int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hits, c.misses
}
