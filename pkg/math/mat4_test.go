package math

import (
	"math"
	"testing"
)

func TestMulIdentity(t *testing.T) {
	m := Translate(1, 2, 3)
	result := m.Mul(Identity())

	for i := 0; i < 16; i++ {
		if result[i] != m[i] {
			t.Errorf("M * I should equal M, element %d: got %f, want %f", i, result[i], m[i])
		}
	}
}

func TestTransformPoint(t *testing.T) {
	tests := []struct {
		name string
		m    Mat4
		p    Vec3
		want Vec3
	}{
		{"translate", Translate(10, 20, 30), Vec3{1, 2, 3}, Vec3{11, 22, 33}},
		{"scale", Scale(2, 2, 2), Vec3{1, 2, 3}, Vec3{2, 4, 6}},
		{"translate after scale", Translate(1, 0, 0).Mul(Scale(3, 3, 3)), Vec3{1, 1, 1}, Vec3{4, 3, 3}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.m.TransformPoint(tt.p); got != tt.want {
				t.Errorf("TransformPoint() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRotateY90(t *testing.T) {
	m := RotateY(float32(math.Pi / 2))
	got := m.TransformPoint(Vec3{1, 0, 0})

	// (1,0,0) turns into (0,0,-1)
	if abs(got.X) > 0.001 || abs(got.Y) > 0.001 || abs(got.Z+1) > 0.001 {
		t.Errorf("RotateY 90: got %v, want (0, 0, -1)", got)
	}
}

func TestPerspective(t *testing.T) {
	m := Perspective(float32(math.Pi/4), 1, 0.1, 100)

	if m[15] != 0 {
		t.Errorf("Perspective [15] should be 0, got %f", m[15])
	}
	if m[11] != -1 {
		t.Errorf("Perspective [11] should be -1, got %f", m[11])
	}
}

func TestLookAtMovesEyeToOrigin(t *testing.T) {
	eye := Vec3{3, 4, 5}
	m := LookAt(eye, Vec3{}, Vec3{0, 1, 0})

	got := m.TransformPoint(eye)
	if got.Length() > 1e-4 {
		t.Errorf("eye in view space = %v, want origin", got)
	}
	// Target lies on -Z.
	target := m.TransformPoint(Vec3{})
	if target.Z >= 0 || abs(target.X) > 1e-4 || abs(target.Y) > 1e-4 {
		t.Errorf("target in view space = %v, want on -Z", target)
	}
}

func TestInverse(t *testing.T) {
	m := Translate(1, 2, 3).Mul(RotateY(0.7)).Mul(Scale(2, 3, 4))
	got := m.Mul(m.Inverse())
	id := Identity()
	for i := range got {
		if abs(got[i]-id[i]) > 1e-4 {
			t.Fatalf("M * M^-1 element %d = %f, want %f", i, got[i], id[i])
		}
	}
}

func TestTransposeRow(t *testing.T) {
	m := Translate(5, 6, 7)
	if r := m.Row(0); r != (Vec4{1, 0, 0, 5}) {
		t.Errorf("Row(0) = %v", r)
	}
	if tr := m.Transpose(); tr.Row(3) != (Vec4{5, 6, 7, 1}) {
		t.Errorf("Transpose().Row(3) = %v", tr.Row(3))
	}
}

func TestScaleQueries(t *testing.T) {
	tests := []struct {
		name    string
		m       Mat4
		max     float32
		uniform bool
	}{
		{"identity", Identity(), 1, true},
		{"uniform", Scale(2, 2, 2).Mul(RotateY(1)), 2, true},
		{"stretched", Scale(1, 5, 2), 5, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.m.MaxScale(); abs(got-tt.max) > 1e-4 {
				t.Errorf("MaxScale() = %v, want %v", got, tt.max)
			}
			if got := tt.m.IsUniformScale(1e-4); got != tt.uniform {
				t.Errorf("IsUniformScale() = %v, want %v", got, tt.uniform)
			}
		})
	}
}

func TestInverseTransposeKeepsNormalsPerpendicular(t *testing.T) {
	m := Scale(1, 4, 1)
	n := m.InverseTranspose()

	// Surface tangent along (1,1,0) and its normal (1,-1,0).
	tangent := m.TransformDirection(Vec3{1, 1, 0})
	normal := n.TransformDirection(Vec3{1, -1, 0})
	if d := tangent.Dot(normal); abs(d) > 1e-4 {
		t.Errorf("transformed normal not perpendicular, dot = %v", d)
	}
}

func abs(x float32) float32 {
	if x < 0 {
		return -x
	}
	return x
}
