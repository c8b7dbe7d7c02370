package mesh

import (
	"github.com/chewxy/math32"

	"github.com/Faultbox/clusterview/pkg/math"
)

// SphericalUV projects every position onto a sphere around the bounding box
// center and returns longitude/latitude texture coordinates.
func SphericalUV(positions []math.Vec3) []math.Vec2 {
	uvs := make([]math.Vec2, len(positions))
	center := BoundsOf(positions).Center()
	for i, p := range positions {
		d := p.Sub(center).Normalize()
		if d == (math.Vec3{}) {
			uvs[i] = math.Vec2{X: 0.5, Y: 0.5}
			continue
		}
		uvs[i] = math.Vec2{
			X: 0.5 + math32.Atan2(d.Z, d.X)/(2*math32.Pi),
			Y: 0.5 - math32.Asin(clamp(d.Y, -1, 1))/math32.Pi,
		}
	}
	return uvs
}

func clamp(v, lo, hi float32) float32 {
	return math32.Max(lo, math32.Min(hi, v))
}
