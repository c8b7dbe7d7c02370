package picking

import (
	"testing"

	"github.com/chewxy/math32"

	"github.com/Faultbox/clusterview/pkg/math"
	"github.com/Faultbox/clusterview/pkg/mesh"
	"github.com/Faultbox/clusterview/pkg/meshlet"
)

func near(a, b float32) bool {
	return math32.Abs(a-b) < 1e-3
}

func TestScreenToRayCenter(t *testing.T) {
	view := math.LookAt(math.Vec3{Z: 5}, math.Vec3{}, math.Vec3{Y: 1})
	proj := math.Perspective(math32.Pi/3, 1, 0.1, 100)
	r := ScreenToRay(50, 50, 100, 100, proj.Mul(view).Inverse())

	if !near(r.Direction.X, 0) || !near(r.Direction.Y, 0) || !near(r.Direction.Z, -1) {
		t.Errorf("expected ray down -Z, got %v", r.Direction)
	}
	if !near(r.Origin.Z, 4.9) {
		t.Errorf("expected origin on the near plane, got %v", r.Origin)
	}
}

func TestIntersectSphere(t *testing.T) {
	r := Ray{Origin: math.Vec3{Z: 5}, Direction: math.Vec3{Z: -1}}
	if d, ok := r.IntersectSphere(math.Vec3{}, 1); !ok || !near(d, 4) {
		t.Errorf("expected hit at 4, got %v %v", d, ok)
	}
	if _, ok := r.IntersectSphere(math.Vec3{X: 3}, 1); ok {
		t.Error("expected miss")
	}
	inside := Ray{Origin: math.Vec3{}, Direction: math.Vec3{X: 1}}
	if d, ok := inside.IntersectSphere(math.Vec3{}, 2); !ok || !near(d, 2) {
		t.Errorf("expected exit at 2, got %v %v", d, ok)
	}
	behind := Ray{Origin: math.Vec3{Z: 5}, Direction: math.Vec3{Z: 1}}
	if _, ok := behind.IntersectSphere(math.Vec3{}, 1); ok {
		t.Error("expected no hit behind the origin")
	}
}

func TestIntersectAABB(t *testing.T) {
	box := mesh.AABB{Min: math.Vec3{X: -1, Y: -1, Z: -1}, Max: math.Vec3{X: 1, Y: 1, Z: 1}}
	tests := []struct {
		name string
		ray  Ray
		want float32
		hit  bool
	}{
		{"front", Ray{Origin: math.Vec3{Z: 5}, Direction: math.Vec3{Z: -1}}, 4, true},
		{"inside", Ray{Origin: math.Vec3{}, Direction: math.Vec3{Y: 1}}, 1, true},
		{"parallel outside", Ray{Origin: math.Vec3{X: 2, Z: 5}, Direction: math.Vec3{Z: -1}}, 0, false},
		{"pointing away", Ray{Origin: math.Vec3{Z: 5}, Direction: math.Vec3{Z: 1}}, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, ok := tt.ray.IntersectAABB(box)
			if ok != tt.hit || (ok && !near(d, tt.want)) {
				t.Errorf("expected (%v, %v), got (%v, %v)", tt.want, tt.hit, d, ok)
			}
		})
	}
}

func TestIntersectTriangle(t *testing.T) {
	a, b, c := math.Vec3{X: -1, Y: -1}, math.Vec3{X: 1, Y: -1}, math.Vec3{Y: 1}
	r := Ray{Origin: math.Vec3{Z: 3}, Direction: math.Vec3{Z: -1}}
	if d, ok := r.IntersectTriangle(a, b, c); !ok || !near(d, 3) {
		t.Errorf("expected hit at 3, got %v %v", d, ok)
	}
	// Back faces are hit too.
	if _, ok := r.IntersectTriangle(a, c, b); !ok {
		t.Error("expected back-face hit")
	}
	miss := Ray{Origin: math.Vec3{X: 2, Z: 3}, Direction: math.Vec3{Z: -1}}
	if _, ok := miss.IntersectTriangle(a, b, c); ok {
		t.Error("expected miss")
	}
}

func TestPickCluster(t *testing.T) {
	mm, err := meshlet.Build(mesh.Geosphere(1, 3), meshlet.DefaultOptions())
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}

	r := Ray{Origin: math.Vec3{Z: 5}, Direction: math.Vec3{Z: -1}}
	hit, ok := PickCluster(r, mm)
	if !ok {
		t.Fatal("expected a hit")
	}
	// The sphere is faceted, so the front surface is slightly inside radius 1.
	if hit.Distance < 4 || hit.Distance > 4.05 {
		t.Errorf("expected hit near the front surface, got %v", hit.Distance)
	}
	if hit.Point.Z < 0.95 {
		t.Errorf("expected front hit point, got %v", hit.Point)
	}
	b := mm.Bounds[hit.Cluster]
	if hit.Point.Distance(b.Center) > b.Radius+1e-4 {
		t.Errorf("hit point outside the bounds of cluster %d", hit.Cluster)
	}

	// An instance translated away is missed once the ray is in its object space.
	world := math.Translate(10, 0, 0)
	if _, ok := PickCluster(r.Transform(world.Inverse()), mm); ok {
		t.Error("expected miss for translated instance")
	}

	empty, _ := meshlet.Build(&mesh.Mesh{}, meshlet.DefaultOptions())
	if _, ok := PickCluster(r, empty); ok {
		t.Error("expected miss on empty mesh")
	}
}

func TestPickInstancesNearest(t *testing.T) {
	mm, err := meshlet.Build(mesh.Geosphere(1, 2), meshlet.DefaultOptions())
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}
	worlds := []math.Mat4{
		math.Translate(0, 0, -6),
		math.Translate(0, 0, 0),
		math.Translate(4, 0, 0),
	}
	r := Ray{Origin: math.Vec3{Z: 5}, Direction: math.Vec3{Z: -1}}
	hit, ok := PickInstances(r, worlds, mm)
	if !ok {
		t.Fatal("expected a hit")
	}
	if hit.Instance != 1 {
		t.Errorf("expected the instance at the origin, got %d", hit.Instance)
	}
	if hit.WorldDistance < 4 || hit.WorldDistance > 4.05 {
		t.Errorf("expected world distance near 4, got %v", hit.WorldDistance)
	}

	miss := Ray{Origin: math.Vec3{X: 20, Z: 5}, Direction: math.Vec3{Z: -1}}
	if _, ok := PickInstances(miss, worlds, mm); ok {
		t.Error("expected miss")
	}
}
