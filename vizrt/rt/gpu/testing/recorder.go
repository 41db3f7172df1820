// Package gputesting provides a recording gpu.Device for tests.
package gputesting

import (
	"fmt"

	"github.com/gekko3d/sysviz/vizrt/rt/gpu"
	"github.com/go-gl/mathgl/mgl32"
)

type Op int

const (
	OpBindTarget Op = iota
	OpViewport
	OpClear
	OpSetState
	OpBindTexture
	OpDraw
	OpDrawInstanced
	OpWriteInstances
	OpUpdateMesh
	OpResize
	OpPresent
)

var opNames = [...]string{
	"bind_target", "viewport", "clear", "set_state", "bind_texture",
	"draw", "draw_instanced", "write_instances", "update_mesh", "resize", "present",
}

func (o Op) String() string {
	if int(o) >= 0 && int(o) < len(opNames) {
		return opNames[o]
	}
	return fmt.Sprintf("Op(%d)", int(o))
}

// Command is one recorded device call with the state it executed under.
type Command struct {
	Op       Op
	Target   gpu.Handle
	Viewport [4]int
	State    gpu.RenderState
	Color    mgl32.Vec4

	Shader    string
	Mesh      gpu.Handle
	Instances gpu.Handle
	Count     int
	Textures  []gpu.Handle
	Uniforms  *gpu.UniformBlock
	Unit      int
	Bytes     int
}

// FragmentFunc models a shader's output for the single representative pixel
// every image carries. tex holds the pixel of each bound texture.
type FragmentFunc func(u *gpu.UniformBlock, tex []mgl32.Vec4) mgl32.Vec4

type image struct {
	label  string
	width  int
	height int
	format gpu.Format
	target bool
	pixel  mgl32.Vec4
}

type mesh struct {
	desc gpu.MeshDescriptor
}

type buffer struct {
	label    string
	capacity int
	stride   int
	written  int
}

type shader struct {
	*gpu.UniformShader
	desc gpu.ShaderDescriptor
}

// Recorder is an in-memory gpu.Device. It keeps every command in Commands
// and a one-pixel color model per image so blending can be checked
// numerically.
type Recorder struct {
	Commands []Command

	// FailTarget and FailShader inject creation failures.
	FailTarget func(desc gpu.TargetDescriptor) bool
	FailShader func(label string) bool
	FailMesh   func(label string) bool

	// Fragment maps a shader label to its pixel model. Draws through shaders
	// without one leave the target pixel unchanged.
	Fragment map[string]FragmentFunc

	images  gpu.Arena[image]
	meshes  gpu.Arena[mesh]
	buffers gpu.Arena[buffer]
	shaders map[*shader]struct{}

	target   gpu.Handle
	viewport [4]int
	state    gpu.RenderState
	textures [8]gpu.Handle

	screen       mgl32.Vec4
	screenWidth  int
	screenHeight int

	Presents int
	Released bool
}

func NewRecorder(width, height int) *Recorder {
	return &Recorder{
		Fragment:     make(map[string]FragmentFunc),
		shaders:      make(map[*shader]struct{}),
		state:        gpu.DefaultState(),
		screenWidth:  width,
		screenHeight: height,
	}
}

var _ gpu.Device = (*Recorder)(nil)

func (r *Recorder) record(c Command) {
	c.Target = r.target
	c.Viewport = r.viewport
	c.State = r.state
	r.Commands = append(r.Commands, c)
}

// Reset forgets recorded commands but keeps resources and bindings.
func (r *Recorder) Reset() { r.Commands = nil }

func (r *Recorder) Ops(op Op) []Command {
	var out []Command
	for _, c := range r.Commands {
		if c.Op == op {
			out = append(out, c)
		}
	}
	return out
}

// Draws returns draw and instanced-draw commands in issue order.
func (r *Recorder) Draws() []Command {
	var out []Command
	for _, c := range r.Commands {
		if c.Op == OpDraw || c.Op == OpDrawInstanced {
			out = append(out, c)
		}
	}
	return out
}

func (r *Recorder) DrawsWith(shaderLabel string) []Command {
	var out []Command
	for _, c := range r.Draws() {
		if c.Shader == shaderLabel {
			out = append(out, c)
		}
	}
	return out
}

func (r *Recorder) LiveTargets() int {
	n := 0
	r.images.Each(func(_ gpu.Handle, img *image) {
		if img.target {
			n++
		}
	})
	return n
}

func (r *Recorder) LiveTextures() int { return r.images.Len() - r.LiveTargets() }
func (r *Recorder) LiveMeshes() int   { return r.meshes.Len() }
func (r *Recorder) LiveBuffers() int  { return r.buffers.Len() }
func (r *Recorder) LiveShaders() int  { return len(r.shaders) }

// Label returns the label an image was created with.
func (r *Recorder) Label(h gpu.Handle) string {
	if h.IsZero() {
		return "screen"
	}
	if img, ok := r.images.Get(h); ok {
		return img.label
	}
	return ""
}

func (r *Recorder) Format(h gpu.Handle) (gpu.Format, bool) {
	img, ok := r.images.Get(h)
	return img.format, ok
}

// Pixel is the modeled color of an image, or of the screen for the zero
// handle.
func (r *Recorder) Pixel(h gpu.Handle) mgl32.Vec4 {
	if h.IsZero() {
		return r.screen
	}
	img, _ := r.images.Get(h)
	return img.pixel
}

func (r *Recorder) SetPixel(h gpu.Handle, c mgl32.Vec4) {
	if h.IsZero() {
		r.screen = c
		return
	}
	if img, ok := r.images.Ptr(h); ok {
		img.pixel = c
	}
}

func (r *Recorder) BoundTarget() gpu.Handle { return r.target }

func (r *Recorder) CreateTarget(desc gpu.TargetDescriptor) (gpu.Handle, error) {
	if desc.Width <= 0 || desc.Height <= 0 || (r.FailTarget != nil && r.FailTarget(desc)) {
		return gpu.Handle{}, fmt.Errorf("target %q: %w", desc.Label, gpu.ErrFramebufferIncomplete)
	}
	return r.images.Insert(image{
		label:  desc.Label,
		width:  desc.Width,
		height: desc.Height,
		format: desc.Format,
		target: true,
	}), nil
}

func (r *Recorder) DestroyTarget(h gpu.Handle) {
	if img, ok := r.images.Get(h); ok && img.target {
		r.images.Remove(h)
	}
}

func (r *Recorder) CreateTexture(desc gpu.TextureDescriptor) (gpu.Handle, error) {
	if desc.Width <= 0 || desc.Height <= 0 {
		return gpu.Handle{}, fmt.Errorf("texture %q: empty size", desc.Label)
	}
	if want := desc.Width * desc.Height * desc.Format.BytesPerPixel(); len(desc.Pixels) != 0 && len(desc.Pixels) != want {
		return gpu.Handle{}, fmt.Errorf("texture %q: %d bytes, want %d", desc.Label, len(desc.Pixels), want)
	}
	return r.images.Insert(image{
		label:  desc.Label,
		width:  desc.Width,
		height: desc.Height,
		format: desc.Format,
	}), nil
}

func (r *Recorder) DestroyTexture(h gpu.Handle) {
	if img, ok := r.images.Get(h); ok && !img.target {
		r.images.Remove(h)
	}
}

func (r *Recorder) ImageSize(h gpu.Handle) (int, int, bool) {
	if h.IsZero() {
		return r.screenWidth, r.screenHeight, true
	}
	img, ok := r.images.Get(h)
	return img.width, img.height, ok
}

func (r *Recorder) CreateShader(desc gpu.ShaderDescriptor) gpu.Shader {
	valid := desc.Source != "" && (r.FailShader == nil || !r.FailShader(desc.Label))
	s := &shader{UniformShader: gpu.NewUniformShader(desc.Label, desc.Uniforms, valid), desc: desc}
	r.shaders[s] = struct{}{}
	return s
}

func (r *Recorder) DestroyShader(s gpu.Shader) {
	if rs, ok := s.(*shader); ok {
		delete(r.shaders, rs)
	}
}

func (r *Recorder) CreateMesh(desc gpu.MeshDescriptor) (gpu.Handle, error) {
	if r.FailMesh != nil && r.FailMesh(desc.Label) {
		return gpu.Handle{}, fmt.Errorf("mesh %q: allocation failed", desc.Label)
	}
	if stride := desc.Layout.Stride(); stride == 0 || len(desc.Vertices)%stride != 0 {
		return gpu.Handle{}, fmt.Errorf("mesh %q: %d floats do not fit layout", desc.Label, len(desc.Vertices))
	}
	desc.Vertices = append([]float32(nil), desc.Vertices...)
	desc.Indices = append([]uint32(nil), desc.Indices...)
	return r.meshes.Insert(mesh{desc: desc}), nil
}

func (r *Recorder) UpdateMesh(h gpu.Handle, vertices []float32, indices []uint32) error {
	m, ok := r.meshes.Ptr(h)
	if !ok {
		return gpu.ErrInvalidHandle
	}
	m.desc.Vertices = append(m.desc.Vertices[:0], vertices...)
	if indices != nil {
		m.desc.Indices = append(m.desc.Indices[:0], indices...)
	}
	r.record(Command{Op: OpUpdateMesh, Mesh: h, Count: len(vertices)})
	return nil
}

func (r *Recorder) DestroyMesh(h gpu.Handle) { r.meshes.Remove(h) }

// Mesh returns a copy of a mesh's current descriptor.
func (r *Recorder) Mesh(h gpu.Handle) (gpu.MeshDescriptor, bool) {
	m, ok := r.meshes.Get(h)
	return m.desc, ok
}

func (r *Recorder) CreateInstanceBuffer(label string, capacity, stride int) (gpu.Handle, error) {
	if capacity <= 0 || stride <= 0 {
		return gpu.Handle{}, fmt.Errorf("buffer %q: empty size", label)
	}
	return r.buffers.Insert(buffer{label: label, capacity: capacity, stride: stride}), nil
}

func (r *Recorder) WriteInstances(h gpu.Handle, data []byte) error {
	b, ok := r.buffers.Ptr(h)
	if !ok {
		return gpu.ErrInvalidHandle
	}
	if len(data) > b.capacity*b.stride {
		return fmt.Errorf("buffer %q: write of %d bytes exceeds %d", b.label, len(data), b.capacity*b.stride)
	}
	b.written = len(data)
	r.record(Command{Op: OpWriteInstances, Instances: h, Bytes: len(data)})
	return nil
}

func (r *Recorder) DestroyBuffer(h gpu.Handle) { r.buffers.Remove(h) }

func (r *Recorder) BindTarget(h gpu.Handle) {
	r.target = h
	r.record(Command{Op: OpBindTarget})
}

func (r *Recorder) Viewport(x, y, w, h int) {
	r.viewport = [4]int{x, y, w, h}
	r.record(Command{Op: OpViewport})
}

func (r *Recorder) Clear(color mgl32.Vec4) {
	r.SetPixel(r.target, color)
	r.record(Command{Op: OpClear, Color: color})
}

func (r *Recorder) SetState(s gpu.RenderState) {
	r.state = s
	r.record(Command{Op: OpSetState})
}

func (r *Recorder) State() gpu.RenderState { return r.state }

func (r *Recorder) BindTexture(unit int, h gpu.Handle) {
	if unit < 0 || unit >= len(r.textures) {
		return
	}
	r.textures[unit] = h
	r.record(Command{Op: OpBindTexture, Unit: unit, Textures: []gpu.Handle{h}})
}

func (r *Recorder) Draw(s gpu.Shader, m gpu.Handle) {
	r.draw(OpDraw, s, m, gpu.Handle{}, 1)
}

func (r *Recorder) DrawInstanced(s gpu.Shader, m gpu.Handle, instances gpu.Handle, count int) {
	if !r.buffers.Contains(instances) {
		return
	}
	r.draw(OpDrawInstanced, s, m, instances, count)
}

func (r *Recorder) draw(op Op, s gpu.Shader, m gpu.Handle, instances gpu.Handle, count int) {
	rs, ok := s.(*shader)
	if !ok || !rs.IsValid() || !r.meshes.Contains(m) {
		return
	}
	textures := append([]gpu.Handle(nil), r.textures[:rs.desc.Textures]...)
	uniforms := rs.Block.Clone()
	r.record(Command{
		Op:        op,
		Shader:    rs.Label(),
		Mesh:      m,
		Instances: instances,
		Count:     count,
		Textures:  textures,
		Uniforms:  uniforms,
	})

	fn := r.Fragment[rs.Label()]
	if fn == nil {
		return
	}
	texels := make([]mgl32.Vec4, len(textures))
	for i, t := range textures {
		texels[i] = r.Pixel(t)
	}
	src := fn(uniforms, texels)
	dst := r.Pixel(r.target)
	if r.state.Blend {
		src = Blend(src, dst, r.state.Func)
	}
	r.SetPixel(r.target, src)
}

// Blend applies a blend function with the same factors for color and
// alpha.
func Blend(src, dst mgl32.Vec4, fn gpu.BlendFunc) mgl32.Vec4 {
	s := factor(fn.Src, src, dst)
	d := factor(fn.Dst, src, dst)
	var out mgl32.Vec4
	for i := range out {
		out[i] = src[i]*s[i] + dst[i]*d[i]
	}
	return out
}

func factor(f gpu.BlendFactor, src, dst mgl32.Vec4) mgl32.Vec4 {
	switch f {
	case gpu.BlendOne:
		return mgl32.Vec4{1, 1, 1, 1}
	case gpu.BlendSrcAlpha:
		return mgl32.Vec4{src[3], src[3], src[3], src[3]}
	case gpu.BlendOneMinusSrcAlpha:
		a := 1 - src[3]
		return mgl32.Vec4{a, a, a, a}
	case gpu.BlendDstColor:
		return dst
	case gpu.BlendOneMinusSrcColor:
		return mgl32.Vec4{1 - src[0], 1 - src[1], 1 - src[2], 1 - src[3]}
	}
	return mgl32.Vec4{}
}

func (r *Recorder) Resize(w, h int) {
	r.screenWidth, r.screenHeight = w, h
	r.record(Command{Op: OpResize})
}

func (r *Recorder) Present() error {
	r.Presents++
	r.record(Command{Op: OpPresent})
	return nil
}

func (r *Recorder) Capabilities() gpu.Capabilities {
	return gpu.Capabilities{Backend: "recorder", MaxTextureSize: 8192}
}

func (r *Recorder) Release() {
	r.Released = true
}
