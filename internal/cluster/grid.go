package cluster

import (
	"github.com/chewxy/math32"

	"github.com/Faultbox/clusterview/pkg/math"
)

// Grid lays instances of one mesh out on the XZ plane.
type Grid struct {
	X, Z int
	// Spacing is the distance between neighbours in mesh radii.
	Spacing float32
}

// Instances places X*Z copies of a mesh with bounding sphere (center,
// radius), recentred on their cells and spun by angle radians around Y.
func (g Grid) Instances(center math.Vec3, radius, angle float32) []Instance {
	if g.X <= 0 || g.Z <= 0 {
		return nil
	}
	step := g.step(radius)
	out := make([]Instance, 0, g.X*g.Z)
	recenter := math.Translate(-center.X, -center.Y, -center.Z)
	spin := math.RotateY(angle)
	for z := 0; z < g.Z; z++ {
		for x := 0; x < g.X; x++ {
			cell := g.cell(x, z, step)
			world := math.Translate(cell.X, cell.Y, cell.Z).Mul(spin).Mul(recenter)
			out = append(out, NewInstance(world, 0))
		}
	}
	return out
}

// Bounds returns a sphere around the whole grid.
func (g Grid) Bounds(radius float32) (math.Vec3, float32) {
	if g.X <= 0 || g.Z <= 0 {
		return math.Vec3{}, radius
	}
	step := g.step(radius)
	corner := g.cell(0, 0, step)
	return math.Vec3{}, math32.Sqrt(corner.X*corner.X+corner.Z*corner.Z) + radius
}

func (g Grid) step(radius float32) float32 {
	if radius <= 0 {
		radius = 1
	}
	return g.Spacing * radius
}

func (g Grid) cell(x, z int, step float32) math.Vec3 {
	return math.Vec3{
		X: (float32(x) - float32(g.X-1)/2) * step,
		Z: (float32(z) - float32(g.Z-1)/2) * step,
	}
}
