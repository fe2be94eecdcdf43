package geometry

import (
	"math"
	"testing"

	"github.com/erbuka/pathtracing/pkg/core"
)

// randomTriangles scatters small triangles with random orientation in a cube
func randomTriangles(n int, seed uint64) []Triangle {
	sampler := core.NewRandomSampler(seed, 1)
	random := func() core.Vec3 {
		return core.NewVec3(sampler.Get1D(), sampler.Get1D(), sampler.Get1D())
	}

	triangles := make([]Triangle, 0, n)
	for len(triangles) < n {
		center := random().Multiply(20).Subtract(core.Splat(10))
		a := center.Add(random().Subtract(core.Splat(0.5)))
		b := center.Add(random().Subtract(core.Splat(0.5)))
		c := center.Add(random().Subtract(core.Splat(0.5)))
		tri := NewTriangle(
			NewVertex(a, core.Vec3{}, core.Vec2{}),
			NewVertex(b, core.Vec3{}, core.Vec2{}),
			NewVertex(c, core.Vec3{}, core.Vec2{}),
		)
		if tri.Degenerate() {
			continue
		}
		triangles = append(triangles, tri)
	}
	return triangles
}

// bruteForce intersects every triangle and keeps the closest hit
func bruteForce(triangles []Triangle, ray core.Ray) RaycastResult {
	best := Miss
	bestDistance := math.Inf(1)
	for _, tri := range triangles {
		result := tri.Intersect(ray)
		if !result.Hit {
			continue
		}
		d := result.Position.Subtract(ray.Origin).LengthSquared()
		if d < bestDistance {
			best = result
			bestDistance = d
		}
	}
	return best
}

func TestSpaceTree_CentroidRaysFindTheirTriangle(t *testing.T) {
	triangles := randomTriangles(500, 11)
	mesh := NewMeshFromTriangles("random", triangles)

	const offset = 1e-3
	for i, tri := range triangles {
		centroid := tri.Centroid()
		origin := centroid.Add(tri.Normal().Multiply(offset))
		ray := core.NewRay(origin, tri.Normal().Negate())

		result := mesh.Intersect(ray)
		if !result.Hit {
			t.Fatalf("Triangle %d: centroid ray found nothing", i)
		}
		distance := result.Position.Subtract(origin).Length()
		if distance > offset+1e-9 {
			t.Errorf("Triangle %d: expected hit within %g, got %g", i, offset, distance)
		}
	}
}

func TestSpaceTree_MatchesBruteForce(t *testing.T) {
	triangles := randomTriangles(300, 5)
	tree := BuildSpaceTree(triangles, NewMeshFromTriangles("bounds", triangles).Bounds())
	sampler := core.NewRandomSampler(77, 2)

	for i := 0; i < 2000; i++ {
		origin := core.NewVec3(sampler.Get1D(), sampler.Get1D(), sampler.Get1D()).Multiply(40).Subtract(core.Splat(20))
		target := core.NewVec3(sampler.Get1D(), sampler.Get1D(), sampler.Get1D()).Multiply(20).Subtract(core.Splat(10))
		ray := core.NewRay(origin, target.Subtract(origin))

		expected := bruteForce(triangles, ray)
		got := tree.Intersect(ray)

		if expected.Hit != got.Hit {
			t.Fatalf("Ray %d: expected hit=%v, got %v", i, expected.Hit, got.Hit)
		}
		if expected.Hit && expected.Position.Subtract(got.Position).Length() > 1e-9 {
			t.Errorf("Ray %d: expected position %v, got %v", i, expected.Position, got.Position)
		}
	}
}

func TestSpaceTree_Stats(t *testing.T) {
	t.Run("empty tree", func(t *testing.T) {
		stats := BuildSpaceTree(nil, core.EmptyBoundingBox()).Stats()
		if stats.TotalNodes != 0 {
			t.Errorf("Expected 0 nodes, got %d", stats.TotalNodes)
		}
	})

	t.Run("single triangle is a leaf", func(t *testing.T) {
		triangles := randomTriangles(1, 3)
		stats := BuildSpaceTree(triangles, triangles[0].Bounds()).Stats()
		if stats.TotalNodes != 1 || stats.LeafNodes != 1 {
			t.Errorf("Expected single leaf, got %d nodes / %d leaves", stats.TotalNodes, stats.LeafNodes)
		}
		if stats.TriangleRefs != 1 {
			t.Errorf("Expected 1 triangle reference, got %d", stats.TriangleRefs)
		}
	})

	t.Run("large set subdivides", func(t *testing.T) {
		triangles := randomTriangles(1000, 8)
		mesh := NewMeshFromTriangles("big", triangles)
		stats := mesh.Tree().Stats()

		if stats.TotalNodes <= 1 {
			t.Errorf("Expected subdivision, got %d nodes", stats.TotalNodes)
		}
		if stats.MaxDepth > maxTreeDepth {
			t.Errorf("Depth %d exceeds cap %d", stats.MaxDepth, maxTreeDepth)
		}
		if stats.TriangleRefs < len(triangles) {
			t.Errorf("Expected at least %d references, got %d", len(triangles), stats.TriangleRefs)
		}
		if stats.Triangles != len(triangles) {
			t.Errorf("Expected %d triangles, got %d", len(triangles), stats.Triangles)
		}
	})

	t.Run("coincident triangles fall back to a leaf", func(t *testing.T) {
		tri := NewTriangle(vertexAt(0, 0, 0), vertexAt(1, 0, 0), vertexAt(0, 1, 0))
		triangles := []Triangle{tri, tri, tri, tri}
		stats := BuildSpaceTree(triangles, tri.Bounds()).Stats()
		if stats.TotalNodes != 1 || stats.FallbackLeaves != 1 {
			t.Errorf("Expected one fallback leaf, got %d nodes / %d fallbacks", stats.TotalNodes, stats.FallbackLeaves)
		}
	})
}

func TestMesh_SingleTriangleMatchesDirectTest(t *testing.T) {
	v0 := NewVertex(core.NewVec3(-1, -0.5, 0.2), core.NewVec3(0.1, 0.2, 1), core.NewVec2(0, 0))
	v1 := NewVertex(core.NewVec3(1.5, -0.3, -0.4), core.NewVec3(-0.2, 0.1, 1), core.NewVec2(1, 0))
	v2 := NewVertex(core.NewVec3(0.2, 1.2, 0.1), core.NewVec3(0, -0.1, 1), core.NewVec2(0.5, 1))
	tri := NewTriangle(v0, v1, v2)

	mesh := NewMesh("single")
	mesh.AddTriangle(tri)
	mesh.Compile()

	normal := v1.Position.Subtract(v0.Position).Cross(v2.Position.Subtract(v0.Position)).Normalize()
	area := v1.Position.Subtract(v0.Position).Cross(v2.Position.Subtract(v0.Position)).Dot(normal)

	sampler := core.NewRandomSampler(21, 4)
	hits := 0
	for i := 0; i < 1000; i++ {
		origin := core.NewVec3(sampler.Get1D()*4-2, sampler.Get1D()*4-2, 1+sampler.Get1D()*3)
		target := core.NewVec3(sampler.Get1D()*4-2, sampler.Get1D()*4-2, 0)
		ray := core.NewRay(origin, target.Subtract(origin))

		// Plane projection followed by signed sub-triangle areas
		var expected RaycastResult
		cos := ray.Direction.Dot(normal)
		dist := v0.Position.Subtract(ray.Origin).Dot(normal)
		if cos < 0 && dist <= 0 {
			p := ray.At(dist / cos)
			a0 := v1.Position.Subtract(p).Cross(v2.Position.Subtract(p)).Dot(normal) / area
			a1 := v2.Position.Subtract(p).Cross(v0.Position.Subtract(p)).Dot(normal) / area
			a2 := 1 - a0 - a1
			if a0 >= 0 && a1 >= 0 && a2 >= 0 {
				n := v0.Normal.Normalize().Multiply(a0).
					Add(v1.Normal.Normalize().Multiply(a1)).
					Add(v2.Normal.Normalize().Multiply(a2)).Normalize()
				uv := v0.UV.Multiply(a0).Add(v1.UV.Multiply(a1)).Add(v2.UV.Multiply(a2))
				expected = RaycastResult{Hit: true, Position: p, Normal: n, UV: uv}
			}
		}

		got := mesh.Intersect(ray)
		if expected.Hit != got.Hit {
			// Rays grazing an edge may disagree by rounding only
			if nearEdge(tri, ray) {
				continue
			}
			t.Fatalf("Ray %d: expected hit=%v, got %v", i, expected.Hit, got.Hit)
		}
		if !expected.Hit {
			continue
		}
		hits++

		const tolerance = 1e-9
		if expected.Position.Subtract(got.Position).Length() > tolerance {
			t.Errorf("Ray %d: expected position %v, got %v", i, expected.Position, got.Position)
		}
		if expected.Normal.Subtract(got.Normal).Length() > tolerance {
			t.Errorf("Ray %d: expected normal %v, got %v", i, expected.Normal, got.Normal)
		}
		if math.Abs(expected.UV.X-got.UV.X) > tolerance || math.Abs(expected.UV.Y-got.UV.Y) > tolerance {
			t.Errorf("Ray %d: expected uv %v, got %v", i, expected.UV, got.UV)
		}
	}

	if hits == 0 {
		t.Fatal("Expected some rays to hit the triangle")
	}
}

// nearEdge reports whether the ray's plane crossing lies within rounding
// distance of a triangle edge
func nearEdge(tri Triangle, ray core.Ray) bool {
	n := tri.Normal()
	cos := ray.Direction.Dot(n)
	if cos == 0 {
		return true
	}
	p := ray.At(tri.Vertex(0).Position.Subtract(ray.Origin).Dot(n) / cos)
	u, v, w := tri.Barycentric(p)
	const eps = 1e-9
	return math.Abs(u) < eps || math.Abs(v) < eps || math.Abs(w) < eps
}

func TestMesh_UncompiledNeverHits(t *testing.T) {
	mesh := NewMesh("pending")
	mesh.AddTriangle(NewTriangle(vertexAt(0, 0, 0), vertexAt(1, 0, 0), vertexAt(0, 1, 0)))

	ray := core.NewRay(core.NewVec3(0.2, 0.2, 1), core.NewVec3(0, 0, -1))
	if mesh.Intersect(ray).Hit {
		t.Error("Expected uncompiled mesh to miss")
	}

	mesh.Compile()
	if !mesh.Intersect(ray).Hit {
		t.Error("Expected compiled mesh to hit")
	}
	if mesh.TriangleCount() != 1 {
		t.Errorf("Expected 1 triangle, got %d", mesh.TriangleCount())
	}
}
