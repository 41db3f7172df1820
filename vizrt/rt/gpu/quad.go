package gpu

import (
	"encoding/binary"
	"math"
	"unsafe"

	"github.com/gekko3d/sysviz/vizrt/rt/core"
)

// QuadVertices is a screen-covering two-triangle quad in NDC (pos2 uv2).
// Texture v grows downward, so the top of the screen samples v=0.
var QuadVertices = []float32{
	-1, -1, 0, 1,
	1, -1, 1, 1,
	1, 1, 1, 0,
	-1, -1, 0, 1,
	1, 1, 1, 0,
	-1, 1, 0, 0,
}

// CornerVertices is the unit billboard expanded per particle instance.
var CornerVertices = QuadVertices

func NewFullscreenQuad(dev Device, label string) (Handle, error) {
	return dev.CreateMesh(MeshDescriptor{
		Label:    label,
		Layout:   LayoutQuad,
		Topology: TriangleList,
		Vertices: QuadVertices,
	})
}

// PackParticleInstances writes instances in the InstanceParticle layout.
func PackParticleInstances(dst []byte, instances []core.ParticleInstance) []byte {
	const stride = int(unsafe.Sizeof(core.ParticleInstance{}))
	need := len(instances) * stride
	if cap(dst) < need {
		dst = make([]byte, need)
	}
	dst = dst[:need]
	for i, in := range instances {
		off := i * stride
		vals := [8]float32{in.Pos[0], in.Pos[1], in.Pos[2], in.Size, in.Color[0], in.Color[1], in.Color[2], in.Color[3]}
		for j, v := range vals {
			binary.LittleEndian.PutUint32(dst[off+j*4:], math.Float32bits(v))
		}
	}
	return dst
}
