package meshlet

import (
	"fmt"
	"sort"

	"github.com/Faultbox/clusterview/pkg/math"
	"github.com/Faultbox/clusterview/pkg/mesh"
)

// Strategy selects the clustering algorithm.
type Strategy int

const (
	// StrategyLocality grows clusters across shared vertices, seeded in
	// spatial order.
	StrategyLocality Strategy = iota
	// StrategySequential groups triangles in input order.
	StrategySequential
)

// String implements fmt.Stringer.
func (s Strategy) String() string {
	switch s {
	case StrategyLocality:
		return "locality"
	case StrategySequential:
		return "sequential"
	default:
		return fmt.Sprintf("Strategy(%d)", int(s))
	}
}

// ParseStrategy converts a config name into a Strategy.
func ParseStrategy(name string) (Strategy, error) {
	switch name {
	case "", "locality":
		return StrategyLocality, nil
	case "sequential":
		return StrategySequential, nil
	default:
		return 0, fmt.Errorf("unknown cluster strategy %q", name)
	}
}

// Options controls Build.
type Options struct {
	Strategy     Strategy
	MaxLODLevels int
	ComputeCones bool
}

// DefaultOptions returns the locality strategy with the default hierarchy depth.
func DefaultOptions() Options {
	return Options{Strategy: StrategyLocality, MaxLODLevels: DefaultMaxLODLevels}
}

// Build clusters m, computes per-cluster bounds and builds the LOD
// hierarchy. An empty mesh yields a MeshletMesh with zero clusters.
func Build(m *mesh.Mesh, opts Options) (*MeshletMesh, error) {
	mm, err := BuildClusters(m, opts.Strategy)
	if err != nil {
		return nil, err
	}
	if mm.ClusterCount() == 0 {
		return mm, nil
	}

	mm.Bounds = make([]Bounds, len(mm.Meshlets))
	for i := range mm.Meshlets {
		mm.Bounds[i] = ComputeClusterBounds(m.Positions, mm.ClusterVertices(i))
		if opts.ComputeCones {
			ComputeClusterCone(&mm.Bounds[i], m.Positions, mm.ClusterVertices(i), mm.ClusterTriangles(i))
		}
	}
	computeMeshBounds(mm)

	maxLevels := opts.MaxLODLevels
	if maxLevels <= 0 {
		maxLevels = DefaultMaxLODLevels
	}
	BuildLODHierarchy(mm, maxLevels)
	return mm, nil
}

// BuildClusters partitions the triangles of m into meshlets. Only the
// meshlet and index tables are filled in.
func BuildClusters(m *mesh.Mesh, strategy Strategy) (*MeshletMesh, error) {
	if m.Empty() {
		return &MeshletMesh{Source: m}, nil
	}
	if err := m.Validate(); err != nil {
		return nil, fmt.Errorf("build clusters: %w", err)
	}

	b := newClusterBuilder(m)
	switch strategy {
	case StrategySequential:
		b.buildSequential()
	case StrategyLocality:
		b.buildLocality()
	default:
		return nil, fmt.Errorf("build clusters: unknown strategy %v", strategy)
	}
	return b.out, nil
}

// clusterBuilder accumulates the cluster currently being grown.
type clusterBuilder struct {
	positions []math.Vec3
	indices   []uint32
	out       *MeshletMesh

	slot  []int16 // local index of each source vertex in the open cluster, -1 if absent
	verts []uint32
	tris  []Triangle
}

func newClusterBuilder(m *mesh.Mesh) *clusterBuilder {
	slot := make([]int16, len(m.Positions))
	for i := range slot {
		slot[i] = -1
	}
	triCount := len(m.Indices) / 3
	return &clusterBuilder{
		positions: m.Positions,
		indices:   m.Indices,
		out: &MeshletMesh{
			Source:              m,
			Meshlets:            make([]Meshlet, 0, triCount/MaxPrimitives+1),
			UniqueVertexIndices: make([]uint32, 0, len(m.Positions)),
			PrimitiveIndices:    make([]Triangle, 0, triCount),
		},
		slot:  slot,
		verts: make([]uint32, 0, MaxVertices),
		tris:  make([]Triangle, 0, MaxPrimitives),
	}
}

func (b *clusterBuilder) corners(t uint32) [3]uint32 {
	return [3]uint32{b.indices[3*t], b.indices[3*t+1], b.indices[3*t+2]}
}

// newVertices counts the distinct corners of t not yet in the open cluster.
func (b *clusterBuilder) newVertices(t uint32) int {
	c := b.corners(t)
	n := 0
	for i, v := range c {
		if b.slot[v] >= 0 {
			continue
		}
		dup := false
		for _, w := range c[:i] {
			if w == v {
				dup = true
			}
		}
		if !dup {
			n++
		}
	}
	return n
}

func (b *clusterBuilder) fits(t uint32) bool {
	return len(b.tris) < MaxPrimitives && len(b.verts)+b.newVertices(t) <= MaxVertices
}

func (b *clusterBuilder) add(t uint32) {
	var tri Triangle
	for i, v := range b.corners(t) {
		if b.slot[v] < 0 {
			b.slot[v] = int16(len(b.verts))
			b.verts = append(b.verts, v)
		}
		tri[i] = uint8(b.slot[v])
	}
	b.tris = append(b.tris, tri)
}

// seal closes the open cluster and appends it to the output tables.
func (b *clusterBuilder) seal() {
	if len(b.tris) == 0 {
		return
	}
	out := b.out
	out.Meshlets = append(out.Meshlets, Meshlet{
		VertexOffset:    uint32(len(out.UniqueVertexIndices)),
		VertexCount:     uint32(len(b.verts)),
		PrimitiveOffset: uint32(len(out.PrimitiveIndices)),
		PrimitiveCount:  uint32(len(b.tris)),
	})
	out.UniqueVertexIndices = append(out.UniqueVertexIndices, b.verts...)
	out.PrimitiveIndices = append(out.PrimitiveIndices, b.tris...)

	for _, v := range b.verts {
		b.slot[v] = -1
	}
	b.verts = b.verts[:0]
	b.tris = b.tris[:0]
}

func (b *clusterBuilder) buildSequential() {
	triCount := uint32(len(b.indices) / 3)
	for t := uint32(0); t < triCount; t++ {
		if !b.fits(t) {
			b.seal()
		}
		b.add(t)
	}
	b.seal()
}

// buildLocality grows each cluster through triangles that share vertices
// with it, preferring the candidate that adds the fewest new vertices.
// When the connected frontier runs dry the next unassigned triangle in
// Morton order is tried, so spatial neighbours still end up together.
func (b *clusterBuilder) buildLocality() {
	triCount := uint32(len(b.indices) / 3)
	order, rank := mortonOrder(b.positions, b.indices)
	adj := buildAdjacency(len(b.positions), b.indices)

	assigned := make([]bool, triCount)
	queued := make([]bool, triCount)
	var candidates []uint32
	cursor := 0
	remaining := triCount

	nextSeed := func() (uint32, bool) {
		for cursor < len(order) && assigned[order[cursor]] {
			cursor++
		}
		if cursor == len(order) {
			return 0, false
		}
		return order[cursor], true
	}
	clearCandidates := func() {
		for _, c := range candidates {
			queued[c] = false
		}
		candidates = candidates[:0]
	}
	take := func(t uint32) {
		b.add(t)
		assigned[t] = true
		remaining--
		for _, v := range b.corners(t) {
			for _, n := range adj.triangles(v) {
				if !assigned[n] && !queued[n] {
					queued[n] = true
					candidates = append(candidates, n)
				}
			}
		}
	}

	for remaining > 0 {
		if len(b.tris) == 0 {
			seed, _ := nextSeed()
			take(seed)
			continue
		}

		best, found := uint32(0), false
		bestNew := MaxVertices + 1
		live := candidates[:0]
		for _, c := range candidates {
			if assigned[c] {
				queued[c] = false
				continue
			}
			live = append(live, c)
			if !b.fits(c) {
				continue
			}
			n := b.newVertices(c)
			if !found || n < bestNew || (n == bestNew && rank[c] < rank[best]) {
				best, bestNew, found = c, n, true
			}
		}
		candidates = live

		if !found {
			if len(candidates) == 0 {
				if seed, ok := nextSeed(); ok && b.fits(seed) {
					take(seed)
					continue
				}
			}
			b.seal()
			clearCandidates()
			continue
		}
		take(best)
	}
	b.seal()
}

// adjacency maps each vertex to the triangles using it (CSR layout).
type adjacency struct {
	offsets []uint32
	tris    []uint32
}

func buildAdjacency(vertexCount int, indices []uint32) adjacency {
	counts := make([]uint32, vertexCount+1)
	for _, v := range indices {
		counts[v+1]++
	}
	for i := 1; i < len(counts); i++ {
		counts[i] += counts[i-1]
	}
	tris := make([]uint32, len(indices))
	fill := make([]uint32, vertexCount)
	for i, v := range indices {
		tris[counts[v]+fill[v]] = uint32(i / 3)
		fill[v]++
	}
	return adjacency{offsets: counts, tris: tris}
}

func (a adjacency) triangles(v uint32) []uint32 {
	return a.tris[a.offsets[v]:a.offsets[v+1]]
}

// mortonOrder sorts triangles by the Z-order key of their centroid and
// returns the order plus each triangle's rank in it.
func mortonOrder(positions []math.Vec3, indices []uint32) (order, rank []uint32) {
	triCount := len(indices) / 3
	centroids := make([]math.Vec3, triCount)
	for t := range centroids {
		a, b, c := positions[indices[3*t]], positions[indices[3*t+1]], positions[indices[3*t+2]]
		centroids[t] = a.Add(b).Add(c).Scale(1.0 / 3)
	}
	box := mesh.BoundsOf(centroids)
	size := box.Max.Sub(box.Min)

	keys := make([]uint32, triCount)
	for t, c := range centroids {
		keys[t] = morton3(quantize(c.X, box.Min.X, size.X), quantize(c.Y, box.Min.Y, size.Y), quantize(c.Z, box.Min.Z, size.Z))
	}

	order = make([]uint32, triCount)
	for i := range order {
		order[i] = uint32(i)
	}
	sort.SliceStable(order, func(i, j int) bool { return keys[order[i]] < keys[order[j]] })

	rank = make([]uint32, triCount)
	for r, t := range order {
		rank[t] = uint32(r)
	}
	return order, rank
}

func quantize(v, lo, extent float32) uint32 {
	if extent <= 0 {
		return 0
	}
	q := (v - lo) / extent * 1023
	if q < 0 {
		return 0
	}
	if q > 1023 {
		return 1023
	}
	return uint32(q)
}

// morton3 interleaves three 10-bit coordinates.
func morton3(x, y, z uint32) uint32 {
	return part1by2(x) | part1by2(y)<<1 | part1by2(z)<<2
}

func part1by2(x uint32) uint32 {
	x &= 0x3ff
	x = (x | x<<16) & 0x030000ff
	x = (x | x<<8) & 0x0300f00f
	x = (x | x<<4) & 0x030c30c3
	x = (x | x<<2) & 0x09249249
	return x
}
