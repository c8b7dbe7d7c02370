// clustertool is a CLI utility for clustering meshes and inspecting culling
// results without a window.
package main

import (
	"flag"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/chewxy/math32"

	"github.com/Faultbox/clusterview/internal/assets"
	"github.com/Faultbox/clusterview/internal/cluster"
	"github.com/Faultbox/clusterview/internal/gpu/soft"
	"github.com/Faultbox/clusterview/internal/logger"
	"github.com/Faultbox/clusterview/pkg/formats"
	"github.com/Faultbox/clusterview/pkg/math"
	"github.com/Faultbox/clusterview/pkg/meshlet"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	command := os.Args[1]
	args := os.Args[2:]

	var err error
	switch command {
	case "info":
		err = cmdInfo(args)
	case "build":
		err = cmdBuild(args)
	case "cull":
		err = cmdCull(args)
	case "flatten":
		err = cmdFlatten(args)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`clustertool - meshlet cluster utility

Usage:
  clustertool <command> [options] <mesh>

<mesh> is an OBJ file or shape:geosphere[:subdivisions] / shape:box.

Commands:
  info <mesh>                  Show mesh and cluster statistics
  build [-v] <mesh>            Cluster a mesh and print the fill histogram
  cull [-grid 3x3] [-eye x,y,z] [-target x,y,z] [-fallback] <mesh>
                               Render two frames on the software device
  flatten <mesh> <out.obj>     Write the clustered mesh, one group per cluster

Common options:
  -strategy locality|sequential   Cluster strategy (default locality)
  -cones                          Compute normal cones
  -lod N                          Maximum LOD levels (default 8)
  -debug                          Enable debug logging

Examples:
  clustertool info bunny.obj
  clustertool build -strategy sequential shape:geosphere:5
  clustertool cull -grid 8x8 -eye 0,4,20 bunny.obj
  clustertool flatten bunny.obj bunny_clusters.obj`)
}

// commonFlags are shared by every command.
type commonFlags struct {
	strategy string
	cones    bool
	lod      int
	debug    bool
}

func newFlagSet(name string) (*flag.FlagSet, *commonFlags) {
	fs := flag.NewFlagSet(name, flag.ExitOnError)
	c := &commonFlags{}
	fs.StringVar(&c.strategy, "strategy", "locality", "Cluster strategy")
	fs.BoolVar(&c.cones, "cones", false, "Compute normal cones")
	fs.IntVar(&c.lod, "lod", meshlet.DefaultMaxLODLevels, "Maximum LOD levels")
	fs.BoolVar(&c.debug, "debug", false, "Enable debug logging")
	return fs, c
}

func (c *commonFlags) load(input string) (*assets.Asset, error) {
	level := "warn"
	if c.debug {
		level = "debug"
	}
	if err := logger.Init(level, ""); err != nil {
		return nil, err
	}
	strategy, err := meshlet.ParseStrategy(c.strategy)
	if err != nil {
		return nil, err
	}
	m := assets.NewManager(meshlet.Options{Strategy: strategy, MaxLODLevels: c.lod, ComputeCones: c.cones})

	if rest, ok := strings.CutPrefix(input, "shape:"); ok {
		name, sub, _ := strings.Cut(rest, ":")
		subdivisions := 4
		if sub != "" {
			if subdivisions, err = strconv.Atoi(sub); err != nil {
				return nil, fmt.Errorf("bad subdivisions %q", sub)
			}
		}
		return m.Shape(name, subdivisions)
	}
	return m.Load(input)
}

func cmdInfo(args []string) error {
	fs, common := newFlagSet("info")
	fs.Parse(args)
	if fs.NArg() < 1 {
		return fmt.Errorf("usage: clustertool info <mesh>")
	}
	a, err := common.load(fs.Arg(0))
	if err != nil {
		return err
	}
	mm := a.Mesh

	fmt.Printf("Mesh: %s\n", a.Name)
	if a.OBJ != nil {
		fmt.Printf("Faces: %d (texcoords: %v, normals: %v)\n", a.OBJ.Faces, a.OBJ.HasTexCoords, a.OBJ.HasNormals)
		if len(a.OBJ.Objects) > 0 {
			fmt.Printf("Objects: %s\n", strings.Join(a.OBJ.Objects, ", "))
		}
	}
	fmt.Printf("Vertices: %d\n", mm.Source.VertexCount())
	fmt.Printf("Triangles: %d\n", mm.TriangleCount())
	fmt.Printf("Clusters: %d\n", mm.ClusterCount())
	fmt.Printf("Built in: %v\n", a.BuildTime)
	if mm.ClusterCount() == 0 {
		return nil
	}

	cones := 0
	for _, b := range mm.Bounds {
		if !b.ConeDisabled() {
			cones++
		}
	}
	fmt.Printf("Avg vertices/cluster: %.1f\n", float64(mm.VertexCount())/float64(mm.ClusterCount()))
	fmt.Printf("Avg triangles/cluster: %.1f\n", float64(mm.TriangleCount())/float64(mm.ClusterCount()))
	fmt.Printf("Clusters with cones: %d\n", cones)
	fmt.Printf("Bounds: min %v max %v, sphere r=%.3f\n", mm.Box.Min, mm.Box.Max, mm.SphereRadius)

	fmt.Printf("\nLOD levels (%d):\n", len(mm.Levels))
	for i, lvl := range mm.Levels {
		first := mm.Nodes[lvl.Start]
		fmt.Printf("  %d: %6d nodes, error %.2f\n", i, lvl.Count, first.LODError)
	}
	return nil
}

func cmdBuild(args []string) error {
	fs, common := newFlagSet("build")
	verbose := fs.Bool("v", false, "List every cluster")
	fs.Parse(args)
	if fs.NArg() < 1 {
		return fmt.Errorf("usage: clustertool build [-v] <mesh>")
	}
	a, err := common.load(fs.Arg(0))
	if err != nil {
		return err
	}
	mm := a.Mesh
	if err := mm.Validate(); err != nil {
		return err
	}
	fmt.Printf("%s: %d clusters from %d triangles in %v (%s)\n",
		a.Name, mm.ClusterCount(), mm.TriangleCount(), a.BuildTime, common.strategy)

	// Histogram of triangle fill in eighths of the limit
	var buckets [8]int
	for _, m := range mm.Meshlets {
		b := int(m.PrimitiveCount) * len(buckets) / (meshlet.MaxPrimitives + 1)
		buckets[b]++
	}
	fmt.Println("\nTriangle fill:")
	for i, n := range buckets {
		lo := i * (meshlet.MaxPrimitives + 1) / len(buckets)
		hi := (i+1)*(meshlet.MaxPrimitives+1)/len(buckets) - 1
		fmt.Printf("  %3d-%3d: %6d %s\n", lo, hi, n, strings.Repeat("#", bar(n, mm.ClusterCount())))
	}

	if *verbose {
		fmt.Println("\nClusters:")
		for i, m := range mm.Meshlets {
			b := mm.Bounds[i]
			fmt.Printf("  %6d: %2d verts %3d tris  center %v r=%.4f cone=%v\n",
				i, m.VertexCount, m.PrimitiveCount, b.Center, b.Radius, !b.ConeDisabled())
		}
	}
	return nil
}

func bar(n, total int) int {
	if total == 0 {
		return 0
	}
	return n * 40 / total
}

func cmdCull(args []string) error {
	fs, common := newFlagSet("cull")
	grid := fs.String("grid", "1x1", "Instance grid")
	eye := fs.String("eye", "", "Camera position (default fits the scene)")
	target := fs.String("target", "0,0,0", "Camera target")
	fallback := fs.Bool("fallback", false, "Use the unculled fallback path")
	fs.Parse(args)
	if fs.NArg() < 1 {
		return fmt.Errorf("usage: clustertool cull [options] <mesh>")
	}
	a, err := common.load(fs.Arg(0))
	if err != nil {
		return err
	}
	g, err := parseGrid(*grid)
	if err != nil {
		return err
	}

	mm := a.Mesh
	lookAt, err := parseVec3(*target)
	if err != nil {
		return err
	}
	cam := &fixedCamera{target: lookAt}
	if *eye != "" {
		if cam.eye, err = parseVec3(*eye); err != nil {
			return err
		}
	} else {
		_, r := g.Bounds(mm.SphereRadius)
		cam.eye = lookAt.Add(math.Vec3{Y: r * 0.5, Z: r * 2.5})
	}

	dev := soft.New(soft.Config{KeepOutput: true})
	cfg := cluster.DefaultConfig()
	cfg.ForceFallback = *fallback
	r := cluster.New(dev, cfg)
	defer r.Close()
	if err := r.UploadMesh(mm, 0); err != nil {
		return err
	}
	if err := r.SetInstances(g.Instances(mm.SphereCenter, mm.SphereRadius, 0)); err != nil {
		return err
	}

	// Counters lag one submission, so the second frame reports the first.
	rt := cluster.Target{Width: 1280, Height: 720}
	for i := 0; i < 2; i++ {
		if err := r.Render(cam, rt, cluster.RenderOptions{ShowClusterColors: true}); err != nil {
			return err
		}
	}
	s := r.Stats()
	total := s.Clusters * s.Instances
	fmt.Printf("Path: %s\n", s.Path)
	fmt.Printf("Camera: eye %v target %v\n", cam.eye, cam.target)
	fmt.Printf("Instances: %d\n", s.Instances)
	fmt.Printf("Visible clusters: %d / %d (%.1f%%)\n", s.VisibleClusters, total, percent(s.VisibleClusters, total))
	fmt.Printf("Rendered triangles: %d / %d\n", s.RenderedTriangles, s.Triangles*s.Instances)

	if s.Path == cluster.PathTwoStage {
		preview := 0
		for _, vis := range r.Preview(cam) {
			preview += len(vis)
		}
		fmt.Printf("CPU preview agrees: %v\n", uint64(preview) == s.VisibleClusters)

		perInstance := make(map[uint32]int)
		for _, ref := range dev.LastOutput().Clusters {
			perInstance[ref.Instance]++
		}
		ids := make([]int, 0, len(perInstance))
		for id := range perInstance {
			ids = append(ids, int(id))
		}
		sort.Ints(ids)
		for _, id := range ids {
			fmt.Printf("  instance %3d: %d clusters\n", id, perInstance[uint32(id)])
		}
	}
	return nil
}

func percent(n uint64, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(n) * 100 / float64(total)
}

func cmdFlatten(args []string) error {
	fs, common := newFlagSet("flatten")
	fs.Parse(args)
	if fs.NArg() < 2 {
		return fmt.Errorf("usage: clustertool flatten <mesh> <out.obj>")
	}
	a, err := common.load(fs.Arg(0))
	if err != nil {
		return err
	}
	mm := a.Mesh
	groups := make([]formats.OBJGroup, len(mm.Meshlets))
	for i, m := range mm.Meshlets {
		groups[i] = formats.OBJGroup{Name: fmt.Sprintf("cluster_%d", i), Triangles: int(m.PrimitiveCount)}
	}

	f, err := os.Create(fs.Arg(1))
	if err != nil {
		return err
	}
	if err := formats.WriteOBJ(f, mm.Source, mm.Flatten(), groups); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	fmt.Printf("Wrote %d clusters to %s\n", len(groups), fs.Arg(1))
	return nil
}

// fixedCamera looks from eye at target with a 60 degree 16:9 frustum.
type fixedCamera struct {
	eye, target math.Vec3
}

func (c *fixedCamera) View() math.Mat4 {
	return math.LookAt(c.eye, c.target, math.Vec3{Y: 1})
}

func (c *fixedCamera) Projection() math.Mat4 {
	return math.Perspective(60*math32.Pi/180, 16.0/9.0, 0.1, 1000)
}

func (c *fixedCamera) Position() math.Vec3 {
	return c.eye
}

func parseVec3(s string) (math.Vec3, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 3 {
		return math.Vec3{}, fmt.Errorf("expected x,y,z, got %q", s)
	}
	var v [3]float32
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 32)
		if err != nil {
			return math.Vec3{}, fmt.Errorf("bad component %q: %w", p, err)
		}
		v[i] = float32(f)
	}
	return math.Vec3{X: v[0], Y: v[1], Z: v[2]}, nil
}

func parseGrid(s string) (cluster.Grid, error) {
	x, z, ok := strings.Cut(s, "x")
	if !ok {
		return cluster.Grid{}, fmt.Errorf("expected NxM grid, got %q", s)
	}
	gx, err1 := strconv.Atoi(x)
	gz, err2 := strconv.Atoi(z)
	if err1 != nil || err2 != nil || gx <= 0 || gz <= 0 {
		return cluster.Grid{}, fmt.Errorf("expected NxM grid, got %q", s)
	}
	return cluster.Grid{X: gx, Z: gz, Spacing: 3}, nil
}
