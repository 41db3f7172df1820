package gpu

import (
	"github.com/gekko3d/sysviz/vizrt/rt/core"
	"github.com/go-gl/mathgl/mgl32"
)

// SceneFrame carries the per-frame camera and atmosphere uniforms.
type SceneFrame struct {
	ViewProj mgl32.Mat4
	// Scene is the shared scene rotation applied before each model.
	Scene mgl32.Mat4
	Eye   mgl32.Vec3
	Time  float32
	// Fog is the fog color in rgb and its density in a. Zero density disables
	// fog.
	Fog mgl32.Vec4
}

// ScenePass draws metric visualizers with the lit scene program.
type ScenePass struct {
	dev Device
	log Logger

	shader   Shader
	meshes   map[core.MeshType]Handle
	waveform Handle

	// waveformFailed is set after the first failed upload; the waveform is
	// not drawn again.
	waveformFailed bool
}

func NewScenePass(dev Device, log Logger) *ScenePass {
	s := &ScenePass{
		dev:    dev,
		log:    orNop(log),
		shader: dev.CreateShader(SceneProgram()),
		meshes: make(map[core.MeshType]Handle),
	}
	if !s.shader.IsValid() {
		s.log.Errorf("scene: shader %q: %v", s.shader.Label(), ErrShaderInvalid)
	}
	for _, t := range []core.MeshType{core.MeshSphere, core.MeshCube, core.MeshRing} {
		data := core.MeshFor(t)
		h, err := dev.CreateMesh(MeshDescriptor{
			Label:    t.String(),
			Layout:   LayoutMesh,
			Topology: TriangleList,
			Vertices: data.Vertices,
			Indices:  data.Indices,
		})
		if err != nil {
			s.log.Errorf("scene: mesh %s: %v", t, err)
			continue
		}
		s.meshes[t] = h
	}
	return s
}

func (s *ScenePass) IsValid() bool { return s.shader != nil && s.shader.IsValid() }

// Mesh returns the shared mesh for t, zero for MeshNone or a failed upload.
func (s *ScenePass) Mesh(t core.MeshType) Handle { return s.meshes[t] }

// Draw renders one visualizer into the bound target. Disabled visualizers
// and those configured without a mesh draw nothing.
func (s *ScenePass) Draw(v core.Visualizer, f SceneFrame) {
	if !s.IsValid() || v == nil || !v.IsEnabled() {
		return
	}

	s.shader.SetMat4("viewProj", f.ViewProj)
	s.shader.SetVec4("fog", f.Fog)
	s.shader.SetVec3("eye", f.Eye)
	s.shader.SetFloat("time", f.Time)

	switch vis := v.(type) {
	case *core.CPUWaveform:
		s.drawWaveform(vis, f)
	case *core.RAMPulse:
		s.drawMesh(vis.Config().MeshType, vis.Model(f.Scene), vis.Color(), 0.2)
	case *core.DiskRing:
		s.drawMesh(vis.Config().MeshType, vis.Model(f.Scene), vis.Color(), 0.3)
	case *core.NetworkPulse:
		s.drawMesh(vis.Config().MeshType, vis.Model(f.Scene), vis.Color(), 0.5)
	}
}

func (s *ScenePass) drawMesh(t core.MeshType, model mgl32.Mat4, color mgl32.Vec3, emissive float32) {
	mesh := s.meshes[t]
	if mesh.IsZero() {
		return
	}
	s.shader.SetMat4("model", model)
	s.shader.SetVec4("color", color.Vec4(emissive))
	s.shader.SetVec4("glow", color.Vec4(0.6))
	s.dev.Draw(s.shader, mesh)
}

func (s *ScenePass) drawWaveform(v *core.CPUWaveform, f SceneFrame) {
	if s.waveformFailed {
		return
	}
	if s.waveform.IsZero() {
		h, err := s.dev.CreateMesh(MeshDescriptor{
			Label:    "cpu waveform",
			Layout:   LayoutMesh,
			Topology: LineList,
			Vertices: v.Vertices(),
			Indices:  v.Indices(),
		})
		if err != nil {
			s.log.Errorf("scene: waveform: %v", err)
			s.waveformFailed = true
			return
		}
		s.waveform = h
	} else if err := s.dev.UpdateMesh(s.waveform, v.Vertices(), nil); err != nil {
		s.log.Errorf("scene: waveform: %v", err)
		s.waveformFailed = true
		return
	}

	s.shader.SetMat4("model", v.Model(f.Scene))
	// Lines carry a constant up normal, so draw them fully emissive.
	s.shader.SetVec4("color", v.Color().Vec4(1))
	s.shader.SetVec4("glow", mgl32.Vec4{})
	s.dev.Draw(s.shader, s.waveform)
}

func (s *ScenePass) Cleanup() {
	for t, h := range s.meshes {
		s.dev.DestroyMesh(h)
		delete(s.meshes, t)
	}
	if !s.waveform.IsZero() {
		s.dev.DestroyMesh(s.waveform)
		s.waveform = Handle{}
	}
	if s.shader != nil {
		s.dev.DestroyShader(s.shader)
		s.shader = nil
	}
}
