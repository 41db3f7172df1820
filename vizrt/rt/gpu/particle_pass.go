package gpu

import (
	"github.com/gekko3d/sysviz/vizrt/rt/core"
	"github.com/go-gl/mathgl/mgl32"
)

// ParticlePass draws the live prefix of a ParticleSystem as camera-facing
// billboards, one instanced draw per frame.
type ParticlePass struct {
	dev Device
	log Logger

	Shader    Shader
	Corners   Handle
	Instances Handle
	capacity  int
	scratch   []byte

	// SizeScale multiplies every particle's pixel diameter.
	SizeScale float32
}

// NewParticlePass allocates an instance buffer for capacity particles. A
// zero capacity yields a pass whose Draw does nothing.
func NewParticlePass(dev Device, capacity int, log Logger) *ParticlePass {
	p := &ParticlePass{
		dev:       dev,
		log:       orNop(log),
		Shader:    dev.CreateShader(ParticleProgram()),
		SizeScale: 1,
	}
	if !p.Shader.IsValid() {
		p.log.Errorf("particles: shader %q: %v", p.Shader.Label(), ErrShaderInvalid)
	}

	corners, err := dev.CreateMesh(MeshDescriptor{
		Label:    "particle corners",
		Layout:   LayoutQuad,
		Topology: TriangleList,
		Vertices: CornerVertices,
	})
	if err != nil {
		p.log.Errorf("particles: %v", err)
		return p
	}
	p.Corners = corners

	if capacity > 0 {
		buf, err := dev.CreateInstanceBuffer("particle instances", capacity, ParticleInstanceStride)
		if err != nil {
			p.log.Errorf("particles: %v", err)
			return p
		}
		p.Instances = buf
		p.capacity = capacity
		p.scratch = make([]byte, 0, capacity*ParticleInstanceStride)
	}
	return p
}

func (p *ParticlePass) Capacity() int { return p.capacity }

// Draw uploads the live particles and renders them additively without
// writing depth. The previous render state is restored afterwards.
func (p *ParticlePass) Draw(ps *core.ParticleSystem, viewProj mgl32.Mat4, viewportW, viewportH int) {
	if !p.Shader.IsValid() || p.capacity == 0 || ps == nil || ps.LiveCount() == 0 {
		return
	}

	instances := ps.Instances()
	if len(instances) > p.capacity {
		instances = instances[:p.capacity]
	}
	p.scratch = PackParticleInstances(p.scratch, instances)
	if err := p.dev.WriteInstances(p.Instances, p.scratch); err != nil {
		p.log.Warnf("particles: %v", err)
		return
	}

	prev := p.dev.State()
	p.dev.SetState(RenderState{
		Blend:      true,
		Func:       BlendFunc{Src: BlendSrcAlpha, Dst: BlendOne},
		DepthTest:  prev.DepthTest,
		DepthWrite: false,
	})

	p.Shader.SetMat4("viewProj", viewProj)
	p.Shader.SetVec2("viewport", mgl32.Vec2{float32(viewportW), float32(viewportH)})
	p.Shader.SetFloat("sizeScale", p.SizeScale)
	p.dev.DrawInstanced(p.Shader, p.Corners, p.Instances, len(instances))

	p.dev.SetState(prev)
}

func (p *ParticlePass) Cleanup() {
	if !p.Instances.IsZero() {
		p.dev.DestroyBuffer(p.Instances)
		p.Instances = Handle{}
	}
	if !p.Corners.IsZero() {
		p.dev.DestroyMesh(p.Corners)
		p.Corners = Handle{}
	}
	if p.Shader != nil {
		p.dev.DestroyShader(p.Shader)
		p.Shader = nil
	}
	p.capacity = 0
}
