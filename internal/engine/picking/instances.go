package picking

import (
	"github.com/chewxy/math32"

	"github.com/Faultbox/clusterview/pkg/math"
	"github.com/Faultbox/clusterview/pkg/meshlet"
)

// InstanceHit is the nearest cluster hit over a set of placements.
type InstanceHit struct {
	Hit
	Instance int
	// WorldPoint and WorldDistance are measured along the world ray.
	WorldPoint    math.Vec3
	WorldDistance float32
}

// PickInstances casts the world-space ray r against mm placed by each
// world matrix and returns the nearest hit.
func PickInstances(r Ray, worlds []math.Mat4, mm *meshlet.MeshletMesh) (InstanceHit, bool) {
	best := InstanceHit{Instance: -1, WorldDistance: float32(math32.MaxFloat32)}
	for i, world := range worlds {
		hit, ok := PickCluster(r.Transform(world.Inverse()), mm)
		if !ok {
			continue
		}
		p := world.TransformPoint(hit.Point)
		if d := p.Distance(r.Origin); d < best.WorldDistance {
			best = InstanceHit{Hit: hit, Instance: i, WorldPoint: p, WorldDistance: d}
		}
	}
	return best, best.Instance >= 0
}
