// Package lighting provides the directional light of the viewer.
package lighting

import (
	"github.com/chewxy/math32"

	"github.com/Faultbox/clusterview/pkg/math"
)

// SunDirection converts an azimuth around +Y and an elevation above the
// horizon, both in degrees, to a unit vector pointing towards the light.
// Azimuth 0 points down +Z.
func SunDirection(azimuth, elevation float32) math.Vec3 {
	az := azimuth * math32.Pi / 180
	el := elevation * math32.Pi / 180
	return math.Vec3{
		X: math32.Cos(el) * math32.Sin(az),
		Y: math32.Sin(el),
		Z: math32.Cos(el) * math32.Cos(az),
	}
}

// Orbit advances the azimuth by speed degrees per second, wrapped to
// [0, 360).
func Orbit(azimuth, speed, dt float32) float32 {
	a := math32.Mod(azimuth+speed*dt, 360)
	if a < 0 {
		a += 360
	}
	return a
}
