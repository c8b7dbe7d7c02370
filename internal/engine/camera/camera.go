// Package camera provides the fly camera of the cluster viewer.
package camera

import (
	"github.com/chewxy/math32"

	"github.com/Faultbox/clusterview/pkg/math"
)

// FlyCamera is a free-look camera driven by yaw and pitch.
type FlyCamera struct {
	Pos   math.Vec3
	Yaw   float32 // radians, 0 looks down -Z
	Pitch float32 // radians, positive looks up

	FovY   float32 // radians
	Aspect float32
	Near   float32
	Far    float32

	MoveSpeed   float32 // units per second
	Sensitivity float32 // radians per pixel of mouse motion

	MaxPitch float32
}

// NewFlyCamera creates a camera at the origin looking down -Z.
func NewFlyCamera(fovDegrees, near, far float32) *FlyCamera {
	return &FlyCamera{
		FovY:        fovDegrees * math32.Pi / 180,
		Aspect:      16.0 / 9.0,
		Near:        near,
		Far:         far,
		MoveSpeed:   5,
		Sensitivity: 0.003,
		MaxPitch:    1.55,
	}
}

// Forward returns the unit view direction.
func (c *FlyCamera) Forward() math.Vec3 {
	cp := math32.Cos(c.Pitch)
	return math.Vec3{
		X: cp * math32.Sin(c.Yaw),
		Y: math32.Sin(c.Pitch),
		Z: -cp * math32.Cos(c.Yaw),
	}
}

// Right returns the unit right direction on the XZ plane.
func (c *FlyCamera) Right() math.Vec3 {
	return math.Vec3{X: math32.Cos(c.Yaw), Z: math32.Sin(c.Yaw)}
}

// Position returns the eye position.
func (c *FlyCamera) Position() math.Vec3 {
	return c.Pos
}

// View returns the view matrix.
func (c *FlyCamera) View() math.Mat4 {
	return math.LookAt(c.Pos, c.Pos.Add(c.Forward()), math.Vec3{Y: 1})
}

// Projection returns the perspective projection.
func (c *FlyCamera) Projection() math.Mat4 {
	return math.Perspective(c.FovY, c.Aspect, c.Near, c.Far)
}

// SetViewport updates the aspect ratio.
func (c *FlyCamera) SetViewport(width, height int) {
	if width > 0 && height > 0 {
		c.Aspect = float32(width) / float32(height)
	}
}

// HandleMouse turns the camera by a mouse delta in pixels.
func (c *FlyCamera) HandleMouse(dx, dy float32) {
	c.Yaw += dx * c.Sensitivity
	c.Pitch -= dy * c.Sensitivity
	c.Pitch = math32.Max(-c.MaxPitch, math32.Min(c.MaxPitch, c.Pitch))
}

// Move translates the camera. forward and right follow the view, up is
// world +Y. Each axis is in [-1, 1] and scaled by MoveSpeed * dt.
func (c *FlyCamera) Move(forward, right, up, dt float32) {
	step := c.MoveSpeed * dt
	d := c.Forward().Scale(forward).Add(c.Right().Scale(right)).Add(math.Vec3{Y: up})
	c.Pos = c.Pos.Add(d.Scale(step))
}

// LookAt points the camera at target from its current position.
func (c *FlyCamera) LookAt(target math.Vec3) {
	d := target.Sub(c.Pos).Normalize()
	if d == (math.Vec3{}) {
		return
	}
	c.Pitch = math32.Asin(math32.Max(-1, math32.Min(1, d.Y)))
	c.Yaw = math32.Atan2(d.X, -d.Z)
}

// FitSphere places the camera on +Z of the sphere, far enough back that the
// whole sphere fits the vertical and horizontal field of view.
func (c *FlyCamera) FitSphere(center math.Vec3, radius float32) {
	if radius <= 0 {
		radius = 1
	}
	half := c.FovY / 2
	if c.Aspect < 1 {
		half = math32.Atan(math32.Tan(half) * c.Aspect)
	}
	dist := radius/math32.Sin(half) + c.Near
	c.Pos = center.Add(math.Vec3{Y: radius * 0.25, Z: dist})
	c.LookAt(center)
	c.MoveSpeed = math32.Max(radius, 0.5)
}
