package camera

import (
	"testing"

	"github.com/chewxy/math32"

	"github.com/Faultbox/clusterview/pkg/culling"
	"github.com/Faultbox/clusterview/pkg/math"
)

func near(a, b float32) bool {
	return math32.Abs(a-b) < 1e-4
}

func TestForwardDefault(t *testing.T) {
	c := NewFlyCamera(60, 0.1, 100)
	f := c.Forward()
	if !near(f.X, 0) || !near(f.Y, 0) || !near(f.Z, -1) {
		t.Errorf("expected -Z forward, got %v", f)
	}
	r := c.Right()
	if !near(r.X, 1) || !near(r.Z, 0) {
		t.Errorf("expected +X right, got %v", r)
	}
}

func TestHandleMouseClampsPitch(t *testing.T) {
	c := NewFlyCamera(60, 0.1, 100)
	c.HandleMouse(0, -10000)
	if c.Pitch != c.MaxPitch {
		t.Errorf("expected pitch clamped to %v, got %v", c.MaxPitch, c.Pitch)
	}
	c.HandleMouse(0, 20000)
	if c.Pitch != -c.MaxPitch {
		t.Errorf("expected pitch clamped to %v, got %v", -c.MaxPitch, c.Pitch)
	}
}

func TestMove(t *testing.T) {
	c := NewFlyCamera(60, 0.1, 100)
	c.MoveSpeed = 2
	c.Move(1, 0, 0, 0.5)
	if !near(c.Pos.Z, -1) {
		t.Errorf("expected to move 1 unit forward, got %v", c.Pos)
	}
	c.Move(0, 1, 1, 1)
	if !near(c.Pos.X, 2) || !near(c.Pos.Y, 2) {
		t.Errorf("expected right and up movement, got %v", c.Pos)
	}
}

func TestLookAt(t *testing.T) {
	c := NewFlyCamera(60, 0.1, 100)
	c.Pos = math.Vec3{X: 3, Y: 4}
	c.LookAt(math.Vec3{})
	f := c.Forward()
	want := math.Vec3{X: -3, Y: -4}.Normalize()
	if !near(f.X, want.X) || !near(f.Y, want.Y) || !near(f.Z, want.Z) {
		t.Errorf("expected forward %v, got %v", want, f)
	}
}

func TestViewPutsTargetAhead(t *testing.T) {
	c := NewFlyCamera(60, 0.1, 100)
	c.Pos = math.Vec3{X: 1, Y: 2, Z: 3}
	c.Yaw = 0.7
	c.Pitch = -0.2
	ahead := c.Pos.Add(c.Forward().Scale(5))
	p := c.View().TransformPoint(ahead)
	if !near(p.X, 0) || !near(p.Y, 0) || !near(p.Z, -5) {
		t.Errorf("expected point 5 units down -Z in view space, got %v", p)
	}
}

func TestFitSphere(t *testing.T) {
	for _, aspect := range []float32{16.0 / 9.0, 0.5} {
		c := NewFlyCamera(60, 0.1, 1000)
		c.Aspect = aspect
		center := math.Vec3{X: 10, Y: -2, Z: 4}
		c.FitSphere(center, 7)

		f := culling.ExtractFrustum(c.Projection().Mul(c.View()))
		for i, p := range f {
			if d := p.SignedDistance(center); d < 7*0.99 {
				t.Errorf("aspect %v: sphere crosses plane %d (distance %v)", aspect, i, d)
			}
		}
	}
}
