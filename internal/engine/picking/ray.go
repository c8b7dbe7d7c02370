// Package picking casts rays from the screen into cluster meshes.
package picking

import (
	"github.com/chewxy/math32"

	"github.com/Faultbox/clusterview/pkg/math"
	"github.com/Faultbox/clusterview/pkg/mesh"
	"github.com/Faultbox/clusterview/pkg/meshlet"
)

// Ray is a half-line with a unit direction.
type Ray struct {
	Origin    math.Vec3
	Direction math.Vec3
}

// At returns the point at distance t.
func (r Ray) At(t float32) math.Vec3 {
	return r.Origin.Add(r.Direction.Scale(t))
}

// ScreenToRay converts pixel coordinates to a world-space ray.
// invViewProj is the inverse of the view-projection matrix.
func ScreenToRay(screenX, screenY, viewportW, viewportH float32, invViewProj math.Mat4) Ray {
	ndcX := 2*screenX/viewportW - 1
	ndcY := 1 - 2*screenY/viewportH

	nearW := unproject(invViewProj, math.Vec4{ndcX, ndcY, -1, 1})
	farW := unproject(invViewProj, math.Vec4{ndcX, ndcY, 1, 1})
	return Ray{Origin: nearW, Direction: farW.Sub(nearW).Normalize()}
}

func unproject(inv math.Mat4, v math.Vec4) math.Vec3 {
	p := inv.MulVec4(v)
	if p[3] != 0 {
		return math.Vec3{X: p[0] / p[3], Y: p[1] / p[3], Z: p[2] / p[3]}
	}
	return p.XYZ()
}

// Transform maps the ray through m. The direction is renormalized, so
// distances along the result are in the target space.
func (r Ray) Transform(m math.Mat4) Ray {
	return Ray{Origin: m.TransformPoint(r.Origin), Direction: m.TransformDirection(r.Direction).Normalize()}
}

// IntersectSphere returns the nearest non-negative hit distance.
func (r Ray) IntersectSphere(center math.Vec3, radius float32) (float32, bool) {
	oc := r.Origin.Sub(center)
	b := oc.Dot(r.Direction)
	c := oc.Dot(oc) - radius*radius
	disc := b*b - c
	if disc < 0 {
		return 0, false
	}
	s := math32.Sqrt(disc)
	t := -b - s
	if t < 0 {
		t = -b + s
	}
	if t < 0 {
		return 0, false
	}
	return t, true
}

// IntersectAABB tests the ray against a box with the slab method. If the
// origin is inside, the exit distance is returned.
func (r Ray) IntersectAABB(box mesh.AABB) (float32, bool) {
	tmin := float32(-math32.MaxFloat32)
	tmax := float32(math32.MaxFloat32)
	o, d := r.Origin.Array(), r.Direction.Array()
	lo, hi := box.Min.Array(), box.Max.Array()
	for axis := 0; axis < 3; axis++ {
		if d[axis] == 0 {
			if o[axis] < lo[axis] || o[axis] > hi[axis] {
				return 0, false
			}
			continue
		}
		t1 := (lo[axis] - o[axis]) / d[axis]
		t2 := (hi[axis] - o[axis]) / d[axis]
		if t1 > t2 {
			t1, t2 = t2, t1
		}
		tmin = math32.Max(tmin, t1)
		tmax = math32.Min(tmax, t2)
	}
	if tmax < tmin || tmax < 0 {
		return 0, false
	}
	if tmin < 0 {
		return tmax, true
	}
	return tmin, true
}

// IntersectTriangle is the Moller-Trumbore test, culling nothing.
func (r Ray) IntersectTriangle(a, b, c math.Vec3) (float32, bool) {
	const eps = 1e-7
	e1 := b.Sub(a)
	e2 := c.Sub(a)
	p := r.Direction.Cross(e2)
	det := e1.Dot(p)
	if math32.Abs(det) < eps {
		return 0, false
	}
	inv := 1 / det
	s := r.Origin.Sub(a)
	u := s.Dot(p) * inv
	if u < 0 || u > 1 {
		return 0, false
	}
	q := s.Cross(e1)
	v := r.Direction.Dot(q) * inv
	if v < 0 || u+v > 1 {
		return 0, false
	}
	t := e2.Dot(q) * inv
	if t < 0 {
		return 0, false
	}
	return t, true
}

// Hit is the cluster a ray struck first.
type Hit struct {
	Cluster  int
	Triangle int // index within the cluster
	Distance float32
	Point    math.Vec3 // object space
}

// PickCluster finds the nearest triangle of mm hit by the object-space ray.
// Clusters whose bounding sphere the ray misses are skipped.
func PickCluster(r Ray, mm *meshlet.MeshletMesh) (Hit, bool) {
	if mm.ClusterCount() == 0 || mm.Source == nil {
		return Hit{}, false
	}
	if _, ok := r.IntersectAABB(mm.Box); !ok {
		return Hit{}, false
	}

	best := Hit{Cluster: -1, Distance: math32.MaxFloat32}
	pos := mm.Source.Positions
	for ci, b := range mm.Bounds {
		ts, ok := r.IntersectSphere(b.Center, b.Radius)
		if !ok || ts-2*b.Radius > best.Distance {
			continue
		}
		verts := mm.ClusterVertices(ci)
		for ti, tri := range mm.ClusterTriangles(ci) {
			t, ok := r.IntersectTriangle(pos[verts[tri[0]]], pos[verts[tri[1]]], pos[verts[tri[2]]])
			if ok && t < best.Distance {
				best = Hit{Cluster: ci, Triangle: ti, Distance: t}
			}
		}
	}
	if best.Cluster < 0 {
		return Hit{}, false
	}
	best.Point = r.At(best.Distance)
	return best, true
}
