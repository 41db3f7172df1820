package core

import (
	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
)

// MeshData is interleaved pos3 normal3 uv2 geometry with a triangle-list
// index buffer.
type MeshData struct {
	Vertices []float32
	Indices  []uint32
}

func (m MeshData) VertexCount() int { return len(m.Vertices) / FloatsPerMeshVertex }

func (m *MeshData) push(p, n mgl32.Vec3, u, v float32) {
	m.Vertices = append(m.Vertices, p[0], p[1], p[2], n[0], n[1], n[2], u, v)
}

const (
	SphereSlices    = 32
	SphereStacks    = 16
	RingSegments    = 64
	RingInnerRadius = 0.8
	RingOuterRadius = 1.0
)

// CubeMesh is a unit cube centred on the origin with per-face normals.
func CubeMesh() MeshData {
	faces := [6]struct{ n, u, v mgl32.Vec3 }{
		{mgl32.Vec3{0, 0, 1}, mgl32.Vec3{1, 0, 0}, mgl32.Vec3{0, 1, 0}},
		{mgl32.Vec3{0, 0, -1}, mgl32.Vec3{-1, 0, 0}, mgl32.Vec3{0, 1, 0}},
		{mgl32.Vec3{0, 1, 0}, mgl32.Vec3{1, 0, 0}, mgl32.Vec3{0, 0, -1}},
		{mgl32.Vec3{0, -1, 0}, mgl32.Vec3{1, 0, 0}, mgl32.Vec3{0, 0, 1}},
		{mgl32.Vec3{1, 0, 0}, mgl32.Vec3{0, 0, -1}, mgl32.Vec3{0, 1, 0}},
		{mgl32.Vec3{-1, 0, 0}, mgl32.Vec3{0, 0, 1}, mgl32.Vec3{0, 1, 0}},
	}
	var m MeshData
	for _, f := range faces {
		base := uint32(m.VertexCount())
		center := f.n.Mul(0.5)
		for _, c := range [4][2]float32{{-1, -1}, {1, -1}, {1, 1}, {-1, 1}} {
			p := center.Add(f.u.Mul(c[0] * 0.5)).Add(f.v.Mul(c[1] * 0.5))
			m.push(p, f.n, (c[0]+1)/2, (c[1]+1)/2)
		}
		m.Indices = append(m.Indices, base, base+1, base+2, base, base+2, base+3)
	}
	return m
}

// SphereMesh is a UV sphere of radius 1.
func SphereMesh(slices, stacks int) MeshData {
	var m MeshData
	for stack := 0; stack <= stacks; stack++ {
		v := float32(stack) / float32(stacks)
		phi := v * math32.Pi
		for slice := 0; slice <= slices; slice++ {
			u := float32(slice) / float32(slices)
			theta := u * 2 * math32.Pi
			p := mgl32.Vec3{
				math32.Sin(phi) * math32.Cos(theta),
				math32.Cos(phi),
				math32.Sin(phi) * math32.Sin(theta),
			}
			m.push(p, p, u, v)
		}
	}
	for stack := 0; stack < stacks; stack++ {
		for slice := 0; slice < slices; slice++ {
			first := uint32(stack*(slices+1) + slice)
			second := first + uint32(slices) + 1
			m.Indices = append(m.Indices,
				first, second, first+1,
				second, second+1, first+1,
			)
		}
	}
	return m
}

// RingMesh is a flat annulus in the XY plane facing +Z.
func RingMesh(segments int, inner, outer float32) MeshData {
	var m MeshData
	normal := mgl32.Vec3{0, 0, 1}
	for i := 0; i <= segments; i++ {
		t := float32(i) / float32(segments)
		angle := t * 2 * math32.Pi
		c, s := math32.Cos(angle), math32.Sin(angle)
		m.push(mgl32.Vec3{inner * c, inner * s, 0}, normal, t, 0)
		m.push(mgl32.Vec3{outer * c, outer * s, 0}, normal, t, 1)
	}
	for i := 0; i < segments; i++ {
		start := uint32(i * 2)
		m.Indices = append(m.Indices,
			start, start+1, start+2,
			start+1, start+3, start+2,
		)
	}
	return m
}

// MeshFor returns the geometry for a mesh type; MeshNone yields empty data.
func MeshFor(t MeshType) MeshData {
	switch t {
	case MeshCube:
		return CubeMesh()
	case MeshRing:
		return RingMesh(RingSegments, RingInnerRadius, RingOuterRadius)
	case MeshSphere:
		return SphereMesh(SphereSlices, SphereStacks)
	}
	return MeshData{}
}
