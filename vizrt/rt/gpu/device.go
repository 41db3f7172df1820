package gpu

import (
	"errors"

	"github.com/go-gl/mathgl/mgl32"
)

var (
	ErrInvalidHandle         = errors.New("gpu: invalid handle")
	ErrFramebufferIncomplete = errors.New("gpu: framebuffer incomplete")
	ErrShaderInvalid         = errors.New("gpu: shader invalid")
)

// Format is a color attachment / texture format.
type Format int

const (
	FormatRGBA8 Format = iota
	FormatRGBA16F
	FormatR8
)

func (f Format) BytesPerPixel() int {
	switch f {
	case FormatRGBA16F:
		return 8
	case FormatR8:
		return 1
	}
	return 4
}

// VertexLayout selects one of the fixed interleaved vertex formats.
type VertexLayout int

const (
	LayoutNone VertexLayout = iota
	LayoutQuad              // pos2 uv2
	LayoutMesh              // pos3 normal3 uv2
	LayoutText              // pos2 uv2 color4
)

// Stride is the vertex size in float32s.
func (l VertexLayout) Stride() int {
	switch l {
	case LayoutQuad:
		return 4
	case LayoutMesh, LayoutText:
		return 8
	}
	return 0
}

// InstanceLayout selects the per-instance attribute format.
type InstanceLayout int

const (
	InstanceNone     InstanceLayout = iota
	InstanceParticle                // pos3 size color4
)

// ParticleInstanceStride is the byte size of one InstanceParticle record.
const ParticleInstanceStride = 32

type Topology int

const (
	TriangleList Topology = iota
	LineList
)

// BlendFactor mirrors the GL blend factors the compositor needs.
type BlendFactor int

const (
	BlendZero BlendFactor = iota
	BlendOne
	BlendSrcAlpha
	BlendOneMinusSrcAlpha
	BlendDstColor
	BlendOneMinusSrcColor
)

var blendFactorNames = [...]string{"zero", "one", "src_alpha", "one_minus_src_alpha", "dst_color", "one_minus_src_color"}

func (f BlendFactor) String() string {
	if int(f) >= 0 && int(f) < len(blendFactorNames) {
		return blendFactorNames[f]
	}
	return "unknown"
}

type BlendFunc struct {
	Src BlendFactor
	Dst BlendFactor
}

// RenderState is the fixed-function state applied to subsequent draws.
type RenderState struct {
	Blend      bool
	Func       BlendFunc
	DepthTest  bool
	DepthWrite bool
}

// DefaultState is opaque rendering with depth testing, the state every
// component restores after changing it.
func DefaultState() RenderState {
	return RenderState{
		Func:       BlendFunc{Src: BlendOne, Dst: BlendZero},
		DepthTest:  true,
		DepthWrite: true,
	}
}

type TargetDescriptor struct {
	Label  string
	Width  int
	Height int
	Format Format
	Depth  bool
}

type TextureDescriptor struct {
	Label  string
	Width  int
	Height int
	Format Format
	Pixels []byte
}

type UniformType int

const (
	UniformFloat UniformType = iota
	UniformInt
	UniformVec2
	UniformVec3
	UniformVec4
	UniformMat4
)

type Uniform struct {
	Name string
	Type UniformType
}

// ShaderDescriptor describes one WGSL program. Uniforms are packed, in
// order, into the struct bound at @group(0) @binding(0); Textures sampled
// textures are bound at @group(1) @binding(0..n-1) with a shared sampler at
// @binding(n).
type ShaderDescriptor struct {
	Label    string
	Source   string
	Block    string
	Vertex   VertexLayout
	Instance InstanceLayout
	Uniforms []Uniform
	Textures int
}

type MeshDescriptor struct {
	Label    string
	Layout   VertexLayout
	Topology Topology
	Vertices []float32
	Indices  []uint32
}

// Shader is a compiled program with name-bound uniforms. Creation never
// returns nil; a failed compile yields a shader whose IsValid is false and
// whose draws are ignored.
type Shader interface {
	Label() string
	IsValid() bool
	SetMat4(name string, m mgl32.Mat4)
	SetVec2(name string, v mgl32.Vec2)
	SetVec3(name string, v mgl32.Vec3)
	SetVec4(name string, v mgl32.Vec4)
	SetFloat(name string, v float32)
	SetInt(name string, v int32)
}

type Capabilities struct {
	Backend        string
	ComputeShaders bool
	MaxTextureSize int
}

// Device is the single-threaded, immediate-mode command surface every render
// component draws through. Commands are logically ordered: a draw sees the
// target, viewport, state, textures and uniform values current at the time
// of the call.
type Device interface {
	CreateTarget(desc TargetDescriptor) (Handle, error)
	DestroyTarget(h Handle)
	CreateTexture(desc TextureDescriptor) (Handle, error)
	DestroyTexture(h Handle)
	ImageSize(img Handle) (width, height int, ok bool)

	CreateShader(desc ShaderDescriptor) Shader
	DestroyShader(s Shader)

	CreateMesh(desc MeshDescriptor) (Handle, error)
	UpdateMesh(h Handle, vertices []float32, indices []uint32) error
	DestroyMesh(h Handle)

	CreateInstanceBuffer(label string, capacity, stride int) (Handle, error)
	WriteInstances(h Handle, data []byte) error
	DestroyBuffer(h Handle)

	BindTarget(h Handle)
	Viewport(x, y, w, h int)
	Clear(color mgl32.Vec4)
	SetState(s RenderState)
	State() RenderState
	BindTexture(unit int, h Handle)
	Draw(s Shader, mesh Handle)
	DrawInstanced(s Shader, mesh Handle, instances Handle, count int)

	Resize(w, h int)
	Present() error
	Capabilities() Capabilities
	Release()
}

// Logger is the subset of the application logger render components use.
type Logger interface {
	Debugf(format string, args ...any)
	Infof(format string, args ...any)
	Warnf(format string, args ...any)
	Errorf(format string, args ...any)
}

type nopLogger struct{}

func (nopLogger) Debugf(string, ...any) {}
func (nopLogger) Infof(string, ...any)  {}
func (nopLogger) Warnf(string, ...any)  {}
func (nopLogger) Errorf(string, ...any) {}

func NopLogger() Logger { return nopLogger{} }

func orNop(l Logger) Logger {
	if l == nil {
		return nopLogger{}
	}
	return l
}
