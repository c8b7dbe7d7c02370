package cluster

// Stats is a snapshot of the renderer counters.
type Stats struct {
	Path      Path
	Clusters  int
	Vertices  int
	Triangles int
	Instances int

	// Dynamic counters, one frame behind the last Render.
	VisibleClusters   uint64
	RenderedTriangles uint64
}

// Stats returns the current statistics.
func (r *Renderer) Stats() Stats {
	s := r.stats
	s.Path = r.path
	s.Clusters = r.ClusterCount()
	s.Vertices = r.VertexCount()
	s.Triangles = r.TriangleCount()
	s.Instances = len(r.instances)
	return s
}

// ClusterCount returns the clusters of all uploaded meshes.
func (r *Renderer) ClusterCount() int {
	n := 0
	for _, res := range r.meshes {
		if res != nil {
			n += res.mm.ClusterCount()
		}
	}
	return n
}

// VertexCount returns the source vertices of all uploaded meshes.
func (r *Renderer) VertexCount() int {
	n := 0
	for _, res := range r.meshes {
		if res != nil {
			n += res.mm.VertexCount()
		}
	}
	return n
}

// TriangleCount returns the triangles of all uploaded meshes.
func (r *Renderer) TriangleCount() int {
	n := 0
	for _, res := range r.meshes {
		if res != nil {
			n += res.mm.TriangleCount()
		}
	}
	return n
}

// VisibleClusters returns the cluster instances that survived culling in
// the previous frame. On the fallback path every drawn cluster counts.
func (r *Renderer) VisibleClusters() uint64 {
	return r.stats.VisibleClusters
}

// RenderedTriangles returns the triangles drawn in the previous frame.
func (r *Renderer) RenderedTriangles() uint64 {
	return r.stats.RenderedTriangles
}

// readStats refreshes the dynamic counters before a new frame is issued.
// The device counts culled clusters on the two-stage path; fallback draws
// are counted by the renderer when they are issued.
func (r *Renderer) readStats() {
	if r.submitted == 0 {
		return
	}
	c := r.dev.Counters()
	if !c.Valid {
		return
	}
	r.stats.VisibleClusters = c.VisibleClusters + r.drawn
	r.stats.RenderedTriangles = c.Triangles
}

func (r *Renderer) resetDynamicStats() {
	r.stats.VisibleClusters = 0
	r.stats.RenderedTriangles = 0
	r.submitted = 0
	r.drawn = 0
}

func (r *Renderer) resetStats() {
	r.stats = Stats{Path: r.path}
	r.submitted = 0
	r.drawn = 0
}
