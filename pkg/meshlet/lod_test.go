package meshlet

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Faultbox/clusterview/pkg/math"
	"github.com/Faultbox/clusterview/pkg/mesh"
)

func TestLODHierarchyShape(t *testing.T) {
	mm, err := Build(mesh.Geosphere(1, 4), DefaultOptions())
	require.NoError(t, err)
	clusters := mm.ClusterCount()
	require.Greater(t, clusters, LODGroupSize)

	require.NotEmpty(t, mm.Levels)
	assert.Equal(t, NodeRange{Start: 0, Count: uint32(clusters)}, mm.Levels[0])
	for i := 1; i < len(mm.Levels); i++ {
		prev := mm.Levels[i-1].Count
		assert.Equal(t, (prev+LODGroupSize-1)/LODGroupSize, mm.Levels[i].Count, "level %d", i)
	}
	assert.Equal(t, uint32(1), mm.Levels[len(mm.Levels)-1].Count)

	roots := mm.Roots()
	require.Len(t, roots, 1)
	root := mm.Nodes[roots[0]]
	assert.Equal(t, uint32(0), root.MeshletStart)
	assert.Equal(t, uint32(clusters), root.MeshletCount)
}

func TestLODContainment(t *testing.T) {
	for name, m := range testMeshes() {
		t.Run(name, func(t *testing.T) {
			mm, err := Build(m, DefaultOptions())
			require.NoError(t, err)

			children := make(map[uint32]int)
			for i, n := range mm.Nodes {
				for c := n.ChildStart; c < n.ChildStart+n.ChildCount; c++ {
					child := mm.Nodes[c]
					assert.Equal(t, uint32(i), child.ParentIndex)
					children[c]++

					reach := n.BoundCenter.Distance(child.BoundCenter) + child.BoundRadius
					assert.LessOrEqual(t, reach, n.BoundRadius+eps, "node %d child %d", i, c)
					assert.GreaterOrEqual(t, n.BoundRadius, child.BoundRadius)
					assert.Greater(t, n.LODError, child.LODError)
				}
			}
			for i, n := range mm.Nodes {
				if n.IsRoot() {
					assert.Zero(t, children[uint32(i)])
					continue
				}
				assert.Equal(t, 1, children[uint32(i)], "node %d", i)
			}
		})
	}
}

func TestLODLeavesCopyBounds(t *testing.T) {
	mm, err := Build(mesh.Grid(30), DefaultOptions())
	require.NoError(t, err)
	for i := range mm.Meshlets {
		n := mm.Nodes[i]
		assert.True(t, n.IsLeaf())
		assert.Equal(t, mm.Bounds[i].Center, n.BoundCenter)
		assert.Equal(t, mm.Bounds[i].Radius, n.BoundRadius)
		assert.Equal(t, uint32(i), n.MeshletStart)
		assert.Equal(t, uint32(1), n.MeshletCount)
		assert.Zero(t, n.LODError)
	}
}

func TestLODMaxLevels(t *testing.T) {
	mm, err := Build(mesh.Geosphere(1, 4), Options{MaxLODLevels: 2})
	require.NoError(t, err)
	require.Len(t, mm.Levels, 2)
	assert.Len(t, mm.Roots(), int(mm.Levels[1].Count))
	for _, r := range mm.Roots() {
		assert.Equal(t, uint32(1), mm.Nodes[r].Level)
		assert.InDelta(t, LODErrorStep, mm.Nodes[r].LODError, 1e-6)
	}
}

func TestGroupNodesKnownValues(t *testing.T) {
	parent := groupNodes([]ClusterNode{
		{BoundCenter: math.Vec3{X: -2}, BoundRadius: 1, MeshletStart: 0, MeshletCount: 1},
		{BoundCenter: math.Vec3{X: 2}, BoundRadius: 1, MeshletStart: 1, MeshletCount: 1},
	})
	// Box spans x in [-3, 3], y and z in [-1, 1].
	assert.Equal(t, math.Vec3{}, parent.BoundCenter)
	assert.InDelta(t, 3.3166, parent.BoundRadius, 1e-3)
	assert.Equal(t, uint32(2), parent.MeshletCount)
}

func TestSingleClusterHierarchy(t *testing.T) {
	mm, err := Build(disconnected(1), DefaultOptions())
	require.NoError(t, err)
	require.Len(t, mm.Nodes, 1)
	assert.True(t, mm.Nodes[0].IsRoot())
	assert.True(t, mm.Nodes[0].IsLeaf())
}
