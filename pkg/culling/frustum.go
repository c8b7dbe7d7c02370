// Package culling holds the cluster visibility tests shared by the CPU
// preview and the task stage of the GPU pipeline.
package culling

import (
	"github.com/Faultbox/clusterview/pkg/math"
)

// Plane is n·p + D = 0 with the positive half-space inside.
type Plane struct {
	Normal math.Vec3
	D      float32
}

// SignedDistance returns the distance from p to the plane, positive inside.
func (p Plane) SignedDistance(pt math.Vec3) float32 {
	return p.Normal.Dot(pt) + p.D
}

// Frustum plane indices.
const (
	PlaneLeft = iota
	PlaneRight
	PlaneBottom
	PlaneTop
	PlaneNear
	PlaneFar
)

// Frustum is six inward-facing planes.
type Frustum [6]Plane

// ExtractFrustum returns the normalized planes of a column-major
// projection*view matrix (Gribb/Hartmann). Clip z spans [-w, w].
func ExtractFrustum(viewProj math.Mat4) Frustum {
	r0, r1, r2, r3 := viewProj.Row(0), viewProj.Row(1), viewProj.Row(2), viewProj.Row(3)
	var f Frustum
	f[PlaneLeft] = planeFrom(add4(r3, r0))
	f[PlaneRight] = planeFrom(sub4(r3, r0))
	f[PlaneBottom] = planeFrom(add4(r3, r1))
	f[PlaneTop] = planeFrom(sub4(r3, r1))
	f[PlaneNear] = planeFrom(add4(r3, r2))
	f[PlaneFar] = planeFrom(sub4(r3, r2))
	return f
}

func add4(a, b math.Vec4) math.Vec4 {
	return math.Vec4{a[0] + b[0], a[1] + b[1], a[2] + b[2], a[3] + b[3]}
}

func sub4(a, b math.Vec4) math.Vec4 {
	return math.Vec4{a[0] - b[0], a[1] - b[1], a[2] - b[2], a[3] - b[3]}
}

func planeFrom(v math.Vec4) Plane {
	n := v.XYZ()
	l := n.Length()
	if l == 0 {
		return Plane{}
	}
	return Plane{Normal: n.Scale(1 / l), D: v[3] / l}
}

// FrustumVisible reports whether a sphere is not entirely outside any
// plane. Spheres straddling a plane are kept.
func FrustumVisible(center math.Vec3, radius float32, f *Frustum) bool {
	for i := range f {
		if f[i].SignedDistance(center) < -radius {
			return false
		}
	}
	return true
}

// ConeVisible reports whether a cluster's normal cone can face the eye.
// A cutoff of 1 or more disables the test.
func ConeVisible(apex, axis math.Vec3, cutoff float32, eye math.Vec3) bool {
	if cutoff >= 1 {
		return true
	}
	viewDir := apex.Sub(eye).Normalize()
	return viewDir.Dot(axis) < cutoff
}
