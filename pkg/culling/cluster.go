package culling

import (
	"github.com/Faultbox/clusterview/pkg/math"
	"github.com/Faultbox/clusterview/pkg/meshlet"
)

// uniformScaleEps is the relative tolerance for treating a transform as a
// similarity, under which cone angles are preserved.
const uniformScaleEps = 1e-3

// Transform carries the per-instance matrices the visibility test needs.
type Transform struct {
	World       math.Mat4
	Normal      math.Mat4
	RadiusScale float32
	ConeValid   bool
}

// NewTransform precomputes the normal matrix and sphere scale of world.
func NewTransform(world math.Mat4) Transform {
	return Transform{
		World:       world,
		Normal:      world.InverseTranspose(),
		RadiusScale: world.MaxScale(),
		ConeValid:   world.IsUniformScale(uniformScaleEps),
	}
}

// WorldSphere returns a bounding sphere transformed to world space.
func (t *Transform) WorldSphere(center math.Vec3, radius float32) (math.Vec3, float32) {
	return t.World.TransformPoint(center), radius * t.RadiusScale
}

// ClusterVisible evaluates the frustum test and the normal cone test on
// object-space bounds placed by t. Under non-uniform scale the cone test
// is skipped.
func ClusterVisible(b meshlet.Bounds, t *Transform, f *Frustum, eye math.Vec3) bool {
	center, radius := t.WorldSphere(b.Center, b.Radius)
	if !FrustumVisible(center, radius, f) {
		return false
	}
	if b.ConeDisabled() || !t.ConeValid {
		return true
	}
	apex := t.World.TransformPoint(b.ConeApex)
	axis := t.Normal.TransformDirection(b.ConeAxis).Normalize()
	return ConeVisible(apex, axis, b.ConeCutoff, eye)
}

// VisibleClusters walks the LOD hierarchy from its roots, skipping
// subtrees whose sphere is outside the frustum, and returns the indices of
// the visible meshlets in ascending order. The result equals testing every
// meshlet with ClusterVisible.
func VisibleClusters(mm *meshlet.MeshletMesh, t *Transform, f *Frustum, eye math.Vec3) []uint32 {
	if len(mm.Nodes) == 0 {
		visible := make([]uint32, 0, len(mm.Meshlets))
		for i, b := range mm.Bounds {
			if ClusterVisible(b, t, f, eye) {
				visible = append(visible, uint32(i))
			}
		}
		return visible
	}

	mark := make([]bool, len(mm.Meshlets))
	stack := mm.Roots()
	for len(stack) > 0 {
		idx := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		n := mm.Nodes[idx]
		if n.IsLeaf() {
			if ClusterVisible(mm.Bounds[n.MeshletStart], t, f, eye) {
				mark[n.MeshletStart] = true
			}
			continue
		}
		center, radius := t.WorldSphere(n.BoundCenter, n.BoundRadius)
		if !FrustumVisible(center, radius, f) {
			continue
		}
		for c := n.ChildStart; c < n.ChildStart+n.ChildCount; c++ {
			stack = append(stack, c)
		}
	}

	var visible []uint32
	for i, v := range mark {
		if v {
			visible = append(visible, uint32(i))
		}
	}
	return visible
}
