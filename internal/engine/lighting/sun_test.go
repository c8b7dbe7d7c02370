package lighting

import (
	"testing"

	"github.com/chewxy/math32"
)

func TestSunDirection(t *testing.T) {
	tests := []struct {
		name               string
		azimuth, elevation float32
		x, y, z            float32
	}{
		{"zenith", 0, 90, 0, 1, 0},
		{"horizon +Z", 0, 0, 0, 0, 1},
		{"horizon +X", 90, 0, 1, 0, 0},
		{"diagonal", 180, 45, 0, math32.Sqrt2 / 2, -math32.Sqrt2 / 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := SunDirection(tt.azimuth, tt.elevation)
			if math32.Abs(d.X-tt.x) > 1e-5 || math32.Abs(d.Y-tt.y) > 1e-5 || math32.Abs(d.Z-tt.z) > 1e-5 {
				t.Errorf("expected (%v, %v, %v), got %v", tt.x, tt.y, tt.z, d)
			}
			if l := d.Length(); math32.Abs(l-1) > 1e-5 {
				t.Errorf("expected unit length, got %v", l)
			}
		})
	}
}

func TestOrbit(t *testing.T) {
	if a := Orbit(350, 20, 1); math32.Abs(a-10) > 1e-4 {
		t.Errorf("expected wrap to 10, got %v", a)
	}
	if a := Orbit(5, -10, 1); math32.Abs(a-355) > 1e-4 {
		t.Errorf("expected wrap to 355, got %v", a)
	}
}
