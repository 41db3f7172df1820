package gpu

import (
	"fmt"
	"unsafe"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/go-gl/mathgl/mgl32"
)

const (
	uniformSlot        = 256
	uniformArenaSlots  = 512
	maxTextureBindings = 8
	depthFormat        = wgpu.TextureFormatDepth24Plus
)

type wgpuImage struct {
	tex       *wgpu.Texture
	view      *wgpu.TextureView
	depth     *wgpu.Texture
	depthView *wgpu.TextureView
	format    wgpu.TextureFormat
	width     int
	height    int
	target    bool
}

func (img *wgpuImage) release() {
	if img.depthView != nil {
		img.depthView.Release()
	}
	if img.depth != nil {
		img.depth.Release()
	}
	if img.view != nil {
		img.view.Release()
	}
	if img.tex != nil {
		img.tex.Release()
	}
}

type wgpuMesh struct {
	label      string
	layout     VertexLayout
	topology   Topology
	vertex     *wgpu.Buffer
	index      *wgpu.Buffer
	vertexCap  int
	indexCap   int
	vertices   int
	indexCount int
}

type wgpuBuffer struct {
	label    string
	buf      *wgpu.Buffer
	capacity int
	stride   int
}

type wgpuShader struct {
	*UniformShader
	desc   ShaderDescriptor
	module *wgpu.ShaderModule
	layout *wgpu.PipelineLayout
}

type pipelineKey struct {
	shader   *wgpuShader
	state    RenderState
	format   wgpu.TextureFormat
	depth    bool
	topology Topology
}

// WGPUConfig carries the WebGPU objects a WGPUDevice renders through. The
// device takes ownership of all of them, and releases them if construction fails.
type WGPUConfig struct {
	Instance *wgpu.Instance
	Surface  *wgpu.Surface
	Adapter  *wgpu.Adapter
	Device   *wgpu.Device
	Width    int
	Height   int
}

// WGPUDevice implements Device on WebGPU. Render passes are opened lazily:
// Clear begins a clearing pass on the bound target, a draw with no open pass
// begins a loading one, and BindTarget or Present ends it. Uniform blocks are
// copied into a per-frame arena and bound with dynamic offsets, so the
// immediate-mode ordering of SetX/Draw calls is preserved inside one command
// buffer.
type WGPUDevice struct {
	log Logger

	instance *wgpu.Instance
	surface  *wgpu.Surface
	adapter  *wgpu.Adapter
	device   *wgpu.Device
	queue    *wgpu.Queue
	config   *wgpu.SurfaceConfiguration
	maxTex   int

	images  Arena[*wgpuImage]
	meshes  Arena[*wgpuMesh]
	buffers Arena[*wgpuBuffer]
	shaders map[*wgpuShader]struct{}

	sampler        *wgpu.Sampler
	blank          *wgpuImage
	uniformLayout  *wgpu.BindGroupLayout
	textureLayouts map[int]*wgpu.BindGroupLayout
	pipelines      map[pipelineKey]*wgpu.RenderPipeline

	uniformBuf   *wgpu.Buffer
	uniformGroup *wgpu.BindGroup
	uniformSlots int
	uniformData  []byte
	overflowed   bool

	encoder     *wgpu.CommandEncoder
	pass        *wgpu.RenderPassEncoder
	surfaceTex  *wgpu.Texture
	surfaceView *wgpu.TextureView
	frameGroups []*wgpu.BindGroup
	garbage     []*wgpu.Buffer
	staleImages []*wgpuImage

	target   Handle
	viewport [4]int
	state    RenderState
	textures [maxTextureBindings]Handle
}

var _ Device = (*WGPUDevice)(nil)

// NewWGPUDevice configures the surface and creates the shared sampler,
// layouts and uniform arena.
func NewWGPUDevice(cfg WGPUConfig, log Logger) (*WGPUDevice, error) {
	if cfg.Surface == nil || cfg.Adapter == nil || cfg.Device == nil {
		return nil, fmt.Errorf("webgpu: incomplete device config")
	}
	d := &WGPUDevice{
		log:            orNop(log),
		instance:       cfg.Instance,
		surface:        cfg.Surface,
		adapter:        cfg.Adapter,
		device:         cfg.Device,
		queue:          cfg.Device.GetQueue(),
		shaders:        make(map[*wgpuShader]struct{}),
		textureLayouts: make(map[int]*wgpu.BindGroupLayout),
		pipelines:      make(map[pipelineKey]*wgpu.RenderPipeline),
		state:          DefaultState(),
		maxTex:         8192,
	}
	if limits := cfg.Adapter.GetLimits(); limits.Limits.MaxTextureDimension2D > 0 {
		d.maxTex = int(limits.Limits.MaxTextureDimension2D)
	}

	caps := cfg.Surface.GetCapabilities(cfg.Adapter)
	if len(caps.Formats) == 0 {
		d.Release()
		return nil, fmt.Errorf("webgpu: surface reports no formats")
	}
	alpha := wgpu.CompositeAlphaModeAuto
	if len(caps.AlphaModes) > 0 {
		alpha = caps.AlphaModes[0]
	}
	d.config = &wgpu.SurfaceConfiguration{
		Usage:       wgpu.TextureUsageRenderAttachment,
		Format:      surfaceFormat(caps.Formats),
		Width:       uint32(max(cfg.Width, 1)),
		Height:      uint32(max(cfg.Height, 1)),
		PresentMode: wgpu.PresentModeFifo,
		AlphaMode:   alpha,
	}
	d.surface.Configure(d.adapter, d.device, d.config)
	d.viewport = [4]int{0, 0, cfg.Width, cfg.Height}

	var err error
	d.sampler, err = d.device.CreateSampler(&wgpu.SamplerDescriptor{
		Label:         "sysviz sampler",
		AddressModeU:  wgpu.AddressModeClampToEdge,
		AddressModeV:  wgpu.AddressModeClampToEdge,
		AddressModeW:  wgpu.AddressModeClampToEdge,
		MinFilter:     wgpu.FilterModeLinear,
		MagFilter:     wgpu.FilterModeLinear,
		MaxAnisotropy: 1,
	})
	if err != nil {
		d.Release()
		return nil, fmt.Errorf("webgpu sampler: %w", err)
	}
	d.uniformLayout, err = d.device.CreateBindGroupLayout(&wgpu.BindGroupLayoutDescriptor{
		Label: "uniforms",
		Entries: []wgpu.BindGroupLayoutEntry{{
			Binding:    0,
			Visibility: wgpu.ShaderStageVertex | wgpu.ShaderStageFragment,
			Buffer: wgpu.BufferBindingLayout{
				Type:             wgpu.BufferBindingTypeUniform,
				HasDynamicOffset: true,
				MinBindingSize:   uniformSlot,
			},
		}},
	})
	if err != nil {
		d.Release()
		return nil, fmt.Errorf("webgpu uniform layout: %w", err)
	}
	if err := d.allocUniforms(uniformArenaSlots); err != nil {
		d.Release()
		return nil, err
	}
	d.blank, err = d.newImage("blank", 1, 1, FormatRGBA8, false, false)
	if err != nil {
		d.Release()
		return nil, err
	}
	d.writePixels(d.blank, []byte{0, 0, 0, 0})
	return d, nil
}

// surfaceFormat prefers a linear format; the post-process chain applies its
// own tone curve.
func surfaceFormat(formats []wgpu.TextureFormat) wgpu.TextureFormat {
	for _, f := range formats {
		if f == wgpu.TextureFormatBGRA8Unorm || f == wgpu.TextureFormatRGBA8Unorm {
			return f
		}
	}
	return formats[0]
}

func textureFormat(f Format) wgpu.TextureFormat {
	switch f {
	case FormatRGBA16F:
		return wgpu.TextureFormatRGBA16Float
	case FormatR8:
		return wgpu.TextureFormatR8Unorm
	}
	return wgpu.TextureFormatRGBA8Unorm
}

func (d *WGPUDevice) allocUniforms(slots int) error {
	buf, err := d.device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: "uniform arena",
		Size:  uint64(slots * uniformSlot),
		Usage: wgpu.BufferUsageUniform | wgpu.BufferUsageCopyDst,
	})
	if err != nil {
		return fmt.Errorf("webgpu uniform arena: %w", err)
	}
	group, err := d.device.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Label:  "uniform arena",
		Layout: d.uniformLayout,
		Entries: []wgpu.BindGroupEntry{{
			Binding: 0,
			Buffer:  buf,
			Size:    uniformSlot,
		}},
	})
	if err != nil {
		buf.Release()
		return fmt.Errorf("webgpu uniform bind group: %w", err)
	}
	if d.uniformGroup != nil {
		d.uniformGroup.Release()
	}
	if d.uniformBuf != nil {
		d.uniformBuf.Release()
	}
	d.uniformBuf, d.uniformGroup, d.uniformSlots = buf, group, slots
	return nil
}

func (d *WGPUDevice) newImage(label string, w, h int, f Format, target, depth bool) (*wgpuImage, error) {
	if w <= 0 || h <= 0 || w > d.maxTex || h > d.maxTex {
		return nil, fmt.Errorf("image %q: size %dx%d unsupported", label, w, h)
	}
	usage := wgpu.TextureUsageTextureBinding | wgpu.TextureUsageCopyDst
	if target {
		usage |= wgpu.TextureUsageRenderAttachment
	}
	size := wgpu.Extent3D{Width: uint32(w), Height: uint32(h), DepthOrArrayLayers: 1}
	img := &wgpuImage{format: textureFormat(f), width: w, height: h, target: target}
	var err error
	img.tex, err = d.device.CreateTexture(&wgpu.TextureDescriptor{
		Label:         label,
		Size:          size,
		Format:        img.format,
		Usage:         usage,
		Dimension:     wgpu.TextureDimension2D,
		MipLevelCount: 1,
		SampleCount:   1,
	})
	if err != nil {
		return nil, fmt.Errorf("image %q: %w", label, err)
	}
	if img.view, err = img.tex.CreateView(nil); err != nil {
		img.release()
		return nil, fmt.Errorf("image %q view: %w", label, err)
	}
	if !depth {
		return img, nil
	}
	img.depth, err = d.device.CreateTexture(&wgpu.TextureDescriptor{
		Label:         label + " depth",
		Size:          size,
		Format:        depthFormat,
		Usage:         wgpu.TextureUsageRenderAttachment,
		Dimension:     wgpu.TextureDimension2D,
		MipLevelCount: 1,
		SampleCount:   1,
	})
	if err == nil {
		img.depthView, err = img.depth.CreateView(nil)
	}
	if err != nil {
		img.release()
		return nil, fmt.Errorf("image %q depth: %w", label, err)
	}
	return img, nil
}

func (d *WGPUDevice) writePixels(img *wgpuImage, pix []byte) {
	bpp := 4
	switch img.format {
	case wgpu.TextureFormatR8Unorm:
		bpp = 1
	case wgpu.TextureFormatRGBA16Float:
		bpp = 8
	}
	d.queue.WriteTexture(img.tex.AsImageCopy(), pix, &wgpu.TextureDataLayout{
		Offset:       0,
		BytesPerRow:  uint32(img.width * bpp),
		RowsPerImage: uint32(img.height),
	}, &wgpu.Extent3D{Width: uint32(img.width), Height: uint32(img.height), DepthOrArrayLayers: 1})
}

func (d *WGPUDevice) CreateTarget(desc TargetDescriptor) (Handle, error) {
	img, err := d.newImage(desc.Label, desc.Width, desc.Height, desc.Format, true, desc.Depth)
	if err != nil {
		return Handle{}, fmt.Errorf("target %q: %w: %v", desc.Label, ErrFramebufferIncomplete, err)
	}
	return d.images.Insert(img), nil
}

func (d *WGPUDevice) DestroyTarget(h Handle) { d.destroyImage(h) }

func (d *WGPUDevice) CreateTexture(desc TextureDescriptor) (Handle, error) {
	if want := desc.Width * desc.Height * desc.Format.BytesPerPixel(); len(desc.Pixels) != 0 && len(desc.Pixels) != want {
		return Handle{}, fmt.Errorf("texture %q: %d bytes, want %d", desc.Label, len(desc.Pixels), want)
	}
	img, err := d.newImage(desc.Label, desc.Width, desc.Height, desc.Format, false, false)
	if err != nil {
		return Handle{}, err
	}
	if len(desc.Pixels) > 0 {
		d.writePixels(img, desc.Pixels)
	}
	return d.images.Insert(img), nil
}

func (d *WGPUDevice) DestroyTexture(h Handle) { d.destroyImage(h) }

func (d *WGPUDevice) destroyImage(h Handle) {
	if h == d.target {
		d.endPass()
		d.target = Handle{}
	}
	if img, ok := d.images.Remove(h); ok {
		// Work recorded this frame may still reference the texture.
		if d.encoder != nil {
			d.staleImages = append(d.staleImages, img)
			return
		}
		img.release()
	}
}

func (d *WGPUDevice) ImageSize(h Handle) (int, int, bool) {
	if h.IsZero() {
		return int(d.config.Width), int(d.config.Height), true
	}
	img, ok := d.images.Get(h)
	if !ok {
		return 0, 0, false
	}
	return img.width, img.height, true
}

func (d *WGPUDevice) CreateShader(desc ShaderDescriptor) Shader {
	s := &wgpuShader{desc: desc}
	s.UniformShader = NewUniformShader(desc.Label, desc.Uniforms, false)
	d.shaders[s] = struct{}{}
	if desc.Source == "" || s.Block.Size() > uniformSlot || desc.Textures > maxTextureBindings {
		d.log.Errorf("shader %q: unsupported descriptor", desc.Label)
		return s
	}
	module, err := d.device.CreateShaderModule(&wgpu.ShaderModuleDescriptor{
		Label:          desc.Label,
		WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{Code: desc.Source},
	})
	if err != nil {
		d.log.Errorf("shader %q: %v", desc.Label, err)
		return s
	}
	s.module = module
	groups := []*wgpu.BindGroupLayout{d.uniformLayout}
	if desc.Textures > 0 {
		tl, err := d.textureLayout(desc.Textures)
		if err != nil {
			d.log.Errorf("shader %q: %v", desc.Label, err)
			return s
		}
		groups = append(groups, tl)
	}
	s.layout, err = d.device.CreatePipelineLayout(&wgpu.PipelineLayoutDescriptor{
		Label:            desc.Label,
		BindGroupLayouts: groups,
	})
	if err != nil {
		d.log.Errorf("shader %q layout: %v", desc.Label, err)
		return s
	}
	s.UniformShader = NewUniformShader(desc.Label, desc.Uniforms, true)
	return s
}

func (d *WGPUDevice) textureLayout(n int) (*wgpu.BindGroupLayout, error) {
	if l, ok := d.textureLayouts[n]; ok {
		return l, nil
	}
	entries := make([]wgpu.BindGroupLayoutEntry, 0, n+1)
	for i := 0; i < n; i++ {
		entries = append(entries, wgpu.BindGroupLayoutEntry{
			Binding:    uint32(i),
			Visibility: wgpu.ShaderStageFragment,
			Texture: wgpu.TextureBindingLayout{
				SampleType:    wgpu.TextureSampleTypeFloat,
				ViewDimension: wgpu.TextureViewDimension2D,
			},
		})
	}
	entries = append(entries, wgpu.BindGroupLayoutEntry{
		Binding:    uint32(n),
		Visibility: wgpu.ShaderStageFragment,
		Sampler:    wgpu.SamplerBindingLayout{Type: wgpu.SamplerBindingTypeFiltering},
	})
	l, err := d.device.CreateBindGroupLayout(&wgpu.BindGroupLayoutDescriptor{
		Label:   fmt.Sprintf("textures %d", n),
		Entries: entries,
	})
	if err != nil {
		return nil, err
	}
	d.textureLayouts[n] = l
	return l, nil
}

func (d *WGPUDevice) DestroyShader(s Shader) {
	ws, ok := s.(*wgpuShader)
	if !ok {
		return
	}
	if _, live := d.shaders[ws]; !live {
		return
	}
	delete(d.shaders, ws)
	for k, p := range d.pipelines {
		if k.shader == ws {
			p.Release()
			delete(d.pipelines, k)
		}
	}
	if ws.layout != nil {
		ws.layout.Release()
	}
	if ws.module != nil {
		ws.module.Release()
	}
	ws.Invalidate()
}

func (d *WGPUDevice) CreateMesh(desc MeshDescriptor) (Handle, error) {
	stride := desc.Layout.Stride()
	if stride == 0 || len(desc.Vertices) == 0 || len(desc.Vertices)%stride != 0 {
		return Handle{}, fmt.Errorf("mesh %q: %d floats do not fit layout", desc.Label, len(desc.Vertices))
	}
	m := &wgpuMesh{label: desc.Label, layout: desc.Layout, topology: desc.Topology}
	if err := d.fillMesh(m, desc.Vertices, desc.Indices); err != nil {
		d.releaseMesh(m)
		return Handle{}, err
	}
	return d.meshes.Insert(m), nil
}

func (d *WGPUDevice) UpdateMesh(h Handle, vertices []float32, indices []uint32) error {
	m, ok := d.meshes.Get(h)
	if !ok {
		return ErrInvalidHandle
	}
	if stride := m.layout.Stride(); len(vertices)%stride != 0 {
		return fmt.Errorf("mesh %q: %d floats do not fit layout", m.label, len(vertices))
	}
	return d.fillMesh(m, vertices, indices)
}

// fillMesh uploads vertex and index data, growing the buffers when needed.
// Replaced buffers are kept alive until the frame is submitted.
func (d *WGPUDevice) fillMesh(m *wgpuMesh, vertices []float32, indices []uint32) error {
	vbytes := floatBytes(vertices)
	if len(vbytes) > m.vertexCap {
		buf, err := d.device.CreateBuffer(&wgpu.BufferDescriptor{
			Label: m.label + " vertices",
			Size:  uint64(alignUp(len(vbytes), 4)),
			Usage: wgpu.BufferUsageVertex | wgpu.BufferUsageCopyDst,
		})
		if err != nil {
			return fmt.Errorf("mesh %q: %w", m.label, err)
		}
		if m.vertex != nil {
			d.garbage = append(d.garbage, m.vertex)
		}
		m.vertex, m.vertexCap = buf, len(vbytes)
	}
	if len(vbytes) > 0 {
		if err := d.queue.WriteBuffer(m.vertex, 0, vbytes); err != nil {
			return fmt.Errorf("mesh %q: %w", m.label, err)
		}
	}
	m.vertices = len(vertices) / m.layout.Stride()

	if indices == nil {
		return nil
	}
	ibytes := uintBytes(indices)
	if len(ibytes) > m.indexCap {
		buf, err := d.device.CreateBuffer(&wgpu.BufferDescriptor{
			Label: m.label + " indices",
			Size:  uint64(len(ibytes)),
			Usage: wgpu.BufferUsageIndex | wgpu.BufferUsageCopyDst,
		})
		if err != nil {
			return fmt.Errorf("mesh %q indices: %w", m.label, err)
		}
		if m.index != nil {
			d.garbage = append(d.garbage, m.index)
		}
		m.index, m.indexCap = buf, len(ibytes)
	}
	if len(ibytes) > 0 {
		if err := d.queue.WriteBuffer(m.index, 0, ibytes); err != nil {
			return fmt.Errorf("mesh %q indices: %w", m.label, err)
		}
	}
	m.indexCount = len(indices)
	return nil
}

func floatBytes(v []float32) []byte {
	if len(v) == 0 {
		return nil
	}
	return unsafe.Slice((*byte)(unsafe.Pointer(&v[0])), len(v)*4)
}

func uintBytes(v []uint32) []byte {
	if len(v) == 0 {
		return nil
	}
	return unsafe.Slice((*byte)(unsafe.Pointer(&v[0])), len(v)*4)
}

func (d *WGPUDevice) releaseMesh(m *wgpuMesh) {
	if m.vertex != nil {
		m.vertex.Release()
	}
	if m.index != nil {
		m.index.Release()
	}
}

func (d *WGPUDevice) DestroyMesh(h Handle) {
	if m, ok := d.meshes.Remove(h); ok {
		if d.encoder != nil {
			d.garbage = append(d.garbage, m.vertex)
			if m.index != nil {
				d.garbage = append(d.garbage, m.index)
			}
			return
		}
		d.releaseMesh(m)
	}
}

func (d *WGPUDevice) CreateInstanceBuffer(label string, capacity, stride int) (Handle, error) {
	if capacity <= 0 || stride <= 0 {
		return Handle{}, fmt.Errorf("buffer %q: empty size", label)
	}
	buf, err := d.device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: label,
		Size:  uint64(capacity * stride),
		Usage: wgpu.BufferUsageVertex | wgpu.BufferUsageCopyDst,
	})
	if err != nil {
		return Handle{}, fmt.Errorf("buffer %q: %w", label, err)
	}
	return d.buffers.Insert(&wgpuBuffer{label: label, buf: buf, capacity: capacity, stride: stride}), nil
}

func (d *WGPUDevice) WriteInstances(h Handle, data []byte) error {
	b, ok := d.buffers.Get(h)
	if !ok {
		return ErrInvalidHandle
	}
	if len(data) > b.capacity*b.stride {
		return fmt.Errorf("buffer %q: write of %d bytes exceeds %d", b.label, len(data), b.capacity*b.stride)
	}
	if len(data) == 0 {
		return nil
	}
	return d.queue.WriteBuffer(b.buf, 0, data)
}

func (d *WGPUDevice) DestroyBuffer(h Handle) {
	if b, ok := d.buffers.Remove(h); ok {
		if d.encoder != nil {
			d.garbage = append(d.garbage, b.buf)
			return
		}
		b.buf.Release()
	}
}

func (d *WGPUDevice) BindTarget(h Handle) {
	if h == d.target {
		return
	}
	d.endPass()
	d.target = h
}

func (d *WGPUDevice) Viewport(x, y, w, h int) { d.viewport = [4]int{x, y, w, h} }

func (d *WGPUDevice) Clear(color mgl32.Vec4) {
	d.endPass()
	d.beginPass(wgpu.LoadOpClear, color)
}

func (d *WGPUDevice) SetState(s RenderState) { d.state = s }
func (d *WGPUDevice) State() RenderState     { return d.state }

func (d *WGPUDevice) BindTexture(unit int, h Handle) {
	if unit < 0 || unit >= len(d.textures) {
		return
	}
	d.textures[unit] = h
}

func (d *WGPUDevice) Draw(s Shader, mesh Handle) {
	d.draw(s, mesh, Handle{}, 1)
}

func (d *WGPUDevice) DrawInstanced(s Shader, mesh Handle, instances Handle, count int) {
	if count <= 0 || !d.buffers.Contains(instances) {
		return
	}
	d.draw(s, mesh, instances, count)
}

func (d *WGPUDevice) draw(s Shader, meshH, instH Handle, count int) {
	ws, ok := s.(*wgpuShader)
	if !ok || !ws.IsValid() {
		return
	}
	m, ok := d.meshes.Get(meshH)
	if !ok || m.vertices == 0 {
		return
	}
	pass := d.currentPass()
	if pass == nil {
		return
	}
	format, depth := d.targetFormat()
	pipeline, err := d.pipeline(pipelineKey{shader: ws, state: d.state, format: format, depth: depth, topology: m.topology})
	if err != nil {
		d.log.Errorf("pipeline %q: %v", ws.Label(), err)
		ws.Invalidate()
		return
	}
	offset, ok := d.pushUniforms(ws.Block.Bytes())
	if !ok {
		return
	}
	var textures *wgpu.BindGroup
	if ws.desc.Textures > 0 {
		if textures, err = d.textureGroup(ws.desc.Textures); err != nil {
			d.log.Warnf("draw %q: %v", ws.Label(), err)
			return
		}
	}

	pass.SetPipeline(pipeline)
	pass.SetBindGroup(0, d.uniformGroup, []uint32{offset})
	if textures != nil {
		pass.SetBindGroup(1, textures, nil)
	}
	x, y, w, h := d.clampedViewport()
	pass.SetViewport(float32(x), float32(y), float32(w), float32(h), 0, 1)
	pass.SetVertexBuffer(0, m.vertex, 0, wgpu.WholeSize)
	if b, ok := d.buffers.Get(instH); ok {
		pass.SetVertexBuffer(1, b.buf, 0, wgpu.WholeSize)
	}
	if m.indexCount > 0 {
		pass.SetIndexBuffer(m.index, wgpu.IndexFormatUint32, 0, wgpu.WholeSize)
		pass.DrawIndexed(uint32(m.indexCount), uint32(count), 0, 0, 0)
		return
	}
	pass.Draw(uint32(m.vertices), uint32(count), 0, 0)
}

func (d *WGPUDevice) targetFormat() (wgpu.TextureFormat, bool) {
	if d.target.IsZero() {
		return d.config.Format, false
	}
	img, _ := d.images.Get(d.target)
	return img.format, img.depthView != nil
}

func (d *WGPUDevice) clampedViewport() (x, y, w, h int) {
	tw, th, _ := d.ImageSize(d.target)
	x = min(max(d.viewport[0], 0), tw-1)
	y = min(max(d.viewport[1], 0), th-1)
	w = min(max(d.viewport[2], 1), tw-x)
	h = min(max(d.viewport[3], 1), th-y)
	return x, y, w, h
}

func (d *WGPUDevice) pushUniforms(block []byte) (uint32, bool) {
	off := len(d.uniformData)
	if off+uniformSlot > d.uniformSlots*uniformSlot {
		if !d.overflowed {
			d.log.Warnf("uniform arena full at %d draws; growing next frame", d.uniformSlots)
		}
		d.overflowed = true
		return 0, false
	}
	d.uniformData = append(d.uniformData, make([]byte, uniformSlot)...)
	copy(d.uniformData[off:], block)
	return uint32(off), true
}

func (d *WGPUDevice) textureGroup(n int) (*wgpu.BindGroup, error) {
	layout, err := d.textureLayout(n)
	if err != nil {
		return nil, err
	}
	entries := make([]wgpu.BindGroupEntry, 0, n+1)
	for i := 0; i < n; i++ {
		view := d.blank.view
		if img, ok := d.images.Get(d.textures[i]); ok && d.textures[i] != d.target {
			view = img.view
		}
		entries = append(entries, wgpu.BindGroupEntry{Binding: uint32(i), TextureView: view})
	}
	entries = append(entries, wgpu.BindGroupEntry{Binding: uint32(n), Sampler: d.sampler})
	group, err := d.device.CreateBindGroup(&wgpu.BindGroupDescriptor{Layout: layout, Entries: entries})
	if err != nil {
		return nil, err
	}
	d.frameGroups = append(d.frameGroups, group)
	return group, nil
}

func (d *WGPUDevice) pipeline(key pipelineKey) (*wgpu.RenderPipeline, error) {
	if p, ok := d.pipelines[key]; ok {
		return p, nil
	}
	desc := key.shader.desc
	buffers := []wgpu.VertexBufferLayout{vertexLayout(desc.Vertex)}
	if desc.Instance == InstanceParticle {
		buffers = append(buffers, wgpu.VertexBufferLayout{
			ArrayStride: ParticleInstanceStride,
			StepMode:    wgpu.VertexStepModeInstance,
			Attributes: []wgpu.VertexAttribute{
				{Format: wgpu.VertexFormatFloat32x3, Offset: 0, ShaderLocation: 3},
				{Format: wgpu.VertexFormatFloat32, Offset: 12, ShaderLocation: 4},
				{Format: wgpu.VertexFormatFloat32x4, Offset: 16, ShaderLocation: 5},
			},
		})
	}
	var blend *wgpu.BlendState
	if key.state.Blend {
		component := wgpu.BlendComponent{
			SrcFactor: blendFactor(key.state.Func.Src),
			DstFactor: blendFactor(key.state.Func.Dst),
			Operation: wgpu.BlendOperationAdd,
		}
		blend = &wgpu.BlendState{Color: component, Alpha: component}
	}
	var depth *wgpu.DepthStencilState
	if key.depth {
		compare := wgpu.CompareFunctionAlways
		if key.state.DepthTest {
			compare = wgpu.CompareFunctionLess
		}
		depth = &wgpu.DepthStencilState{
			Format:            depthFormat,
			DepthWriteEnabled: key.state.DepthWrite,
			DepthCompare:      compare,
			StencilFront:      wgpu.StencilFaceState{Compare: wgpu.CompareFunctionAlways},
			StencilBack:       wgpu.StencilFaceState{Compare: wgpu.CompareFunctionAlways},
			StencilReadMask:   0xFFFFFFFF,
			StencilWriteMask:  0xFFFFFFFF,
		}
	}
	topology := wgpu.PrimitiveTopologyTriangleList
	if key.topology == LineList {
		topology = wgpu.PrimitiveTopologyLineList
	}
	p, err := d.device.CreateRenderPipeline(&wgpu.RenderPipelineDescriptor{
		Label:  desc.Label,
		Layout: key.shader.layout,
		Vertex: wgpu.VertexState{
			Module:     key.shader.module,
			EntryPoint: "vs_main",
			Buffers:    buffers,
		},
		Fragment: &wgpu.FragmentState{
			Module:     key.shader.module,
			EntryPoint: "fs_main",
			Targets: []wgpu.ColorTargetState{{
				Format:    key.format,
				Blend:     blend,
				WriteMask: wgpu.ColorWriteMaskAll,
			}},
		},
		Primitive: wgpu.PrimitiveState{
			Topology:  topology,
			FrontFace: wgpu.FrontFaceCCW,
			CullMode:  wgpu.CullModeNone,
		},
		DepthStencil: depth,
		Multisample: wgpu.MultisampleState{
			Count: 1,
			Mask:  0xFFFFFFFF,
		},
	})
	if err != nil {
		return nil, err
	}
	d.pipelines[key] = p
	return p, nil
}

func vertexLayout(l VertexLayout) wgpu.VertexBufferLayout {
	var attrs []wgpu.VertexAttribute
	switch l {
	case LayoutQuad:
		attrs = []wgpu.VertexAttribute{
			{Format: wgpu.VertexFormatFloat32x2, Offset: 0, ShaderLocation: 0},
			{Format: wgpu.VertexFormatFloat32x2, Offset: 8, ShaderLocation: 1},
		}
	case LayoutMesh:
		attrs = []wgpu.VertexAttribute{
			{Format: wgpu.VertexFormatFloat32x3, Offset: 0, ShaderLocation: 0},
			{Format: wgpu.VertexFormatFloat32x3, Offset: 12, ShaderLocation: 1},
			{Format: wgpu.VertexFormatFloat32x2, Offset: 24, ShaderLocation: 2},
		}
	case LayoutText:
		attrs = []wgpu.VertexAttribute{
			{Format: wgpu.VertexFormatFloat32x2, Offset: 0, ShaderLocation: 0},
			{Format: wgpu.VertexFormatFloat32x2, Offset: 8, ShaderLocation: 1},
			{Format: wgpu.VertexFormatFloat32x4, Offset: 16, ShaderLocation: 2},
		}
	}
	return wgpu.VertexBufferLayout{
		ArrayStride: uint64(l.Stride() * 4),
		StepMode:    wgpu.VertexStepModeVertex,
		Attributes:  attrs,
	}
}

// blendFactor maps a factor for use on both the color and alpha components.
func blendFactor(f BlendFactor) wgpu.BlendFactor {
	switch f {
	case BlendOne:
		return wgpu.BlendFactorOne
	case BlendSrcAlpha:
		return wgpu.BlendFactorSrcAlpha
	case BlendOneMinusSrcAlpha:
		return wgpu.BlendFactorOneMinusSrcAlpha
	case BlendDstColor:
		return wgpu.BlendFactorDst
	case BlendOneMinusSrcColor:
		return wgpu.BlendFactorOneMinusSrc
	}
	return wgpu.BlendFactorZero
}

func (d *WGPUDevice) targetViews() (*wgpu.TextureView, *wgpu.TextureView) {
	if !d.target.IsZero() {
		img, ok := d.images.Get(d.target)
		if !ok {
			return nil, nil
		}
		return img.view, img.depthView
	}
	if d.surfaceView == nil {
		tex, err := d.surface.GetCurrentTexture()
		if err != nil {
			d.log.Warnf("surface texture: %v", err)
			return nil, nil
		}
		view, err := tex.CreateView(nil)
		if err != nil {
			tex.Release()
			d.log.Warnf("surface view: %v", err)
			return nil, nil
		}
		d.surfaceTex, d.surfaceView = tex, view
	}
	return d.surfaceView, nil
}

func (d *WGPUDevice) beginPass(load wgpu.LoadOp, color mgl32.Vec4) *wgpu.RenderPassEncoder {
	view, depthView := d.targetViews()
	if view == nil {
		return nil
	}
	if d.encoder == nil {
		enc, err := d.device.CreateCommandEncoder(nil)
		if err != nil {
			d.log.Errorf("command encoder: %v", err)
			return nil
		}
		d.encoder = enc
	}
	desc := &wgpu.RenderPassDescriptor{
		ColorAttachments: []wgpu.RenderPassColorAttachment{{
			View:    view,
			LoadOp:  load,
			StoreOp: wgpu.StoreOpStore,
			ClearValue: wgpu.Color{
				R: float64(color[0]),
				G: float64(color[1]),
				B: float64(color[2]),
				A: float64(color[3]),
			},
		}},
	}
	if depthView != nil {
		desc.DepthStencilAttachment = &wgpu.RenderPassDepthStencilAttachment{
			View:            depthView,
			DepthLoadOp:     load,
			DepthStoreOp:    wgpu.StoreOpStore,
			DepthClearValue: 1,
			StencilReadOnly: true,
		}
	}
	d.pass = d.encoder.BeginRenderPass(desc)
	return d.pass
}

func (d *WGPUDevice) currentPass() *wgpu.RenderPassEncoder {
	if d.pass != nil {
		return d.pass
	}
	return d.beginPass(wgpu.LoadOpLoad, mgl32.Vec4{})
}

func (d *WGPUDevice) endPass() {
	if d.pass == nil {
		return
	}
	if err := d.pass.End(); err != nil {
		d.log.Errorf("render pass: %v", err)
	}
	d.pass.Release()
	d.pass = nil
}

func (d *WGPUDevice) Resize(w, h int) {
	if w <= 0 || h <= 0 {
		return
	}
	if uint32(w) == d.config.Width && uint32(h) == d.config.Height {
		return
	}
	d.config.Width = uint32(w)
	d.config.Height = uint32(h)
	d.surface.Configure(d.adapter, d.device, d.config)
}

// Present submits the frame's commands and shows the surface texture.
func (d *WGPUDevice) Present() error {
	d.endPass()
	defer d.endFrame()
	if d.encoder == nil {
		return nil
	}
	if len(d.uniformData) > 0 {
		if err := d.queue.WriteBuffer(d.uniformBuf, 0, d.uniformData); err != nil {
			return fmt.Errorf("uniform upload: %w", err)
		}
	}
	cmd, err := d.encoder.Finish(nil)
	if err != nil {
		return fmt.Errorf("finish frame: %w", err)
	}
	d.queue.Submit(cmd)
	cmd.Release()
	if d.surfaceTex != nil {
		d.surface.Present()
	}
	return nil
}

func (d *WGPUDevice) endFrame() {
	if d.encoder != nil {
		d.encoder.Release()
		d.encoder = nil
	}
	for _, g := range d.frameGroups {
		g.Release()
	}
	d.frameGroups = d.frameGroups[:0]
	for _, b := range d.garbage {
		b.Release()
	}
	d.garbage = d.garbage[:0]
	for _, img := range d.staleImages {
		img.release()
	}
	d.staleImages = d.staleImages[:0]
	if d.surfaceView != nil {
		d.surfaceView.Release()
		d.surfaceView = nil
	}
	if d.surfaceTex != nil {
		d.surfaceTex.Release()
		d.surfaceTex = nil
	}
	d.uniformData = d.uniformData[:0]
	if d.overflowed {
		d.overflowed = false
		if err := d.allocUniforms(d.uniformSlots * 2); err != nil {
			d.log.Errorf("%v", err)
		}
	}
}

func (d *WGPUDevice) Capabilities() Capabilities {
	return Capabilities{Backend: "webgpu", ComputeShaders: true, MaxTextureSize: d.maxTex}
}

// Release frees every resource the device still owns, then the WebGPU
// device, adapter, surface and instance.
func (d *WGPUDevice) Release() {
	d.endPass()
	d.endFrame()
	d.images.Each(func(_ Handle, img **wgpuImage) { (*img).release() })
	d.images = Arena[*wgpuImage]{}
	d.meshes.Each(func(_ Handle, m **wgpuMesh) { d.releaseMesh(*m) })
	d.meshes = Arena[*wgpuMesh]{}
	d.buffers.Each(func(_ Handle, b **wgpuBuffer) { (*b).buf.Release() })
	d.buffers = Arena[*wgpuBuffer]{}
	for s := range d.shaders {
		d.DestroyShader(s)
	}
	for k, p := range d.pipelines {
		p.Release()
		delete(d.pipelines, k)
	}
	for n, l := range d.textureLayouts {
		l.Release()
		delete(d.textureLayouts, n)
	}
	if d.blank != nil {
		d.blank.release()
		d.blank = nil
	}
	if d.uniformGroup != nil {
		d.uniformGroup.Release()
		d.uniformGroup = nil
	}
	if d.uniformBuf != nil {
		d.uniformBuf.Release()
		d.uniformBuf = nil
	}
	if d.uniformLayout != nil {
		d.uniformLayout.Release()
		d.uniformLayout = nil
	}
	if d.sampler != nil {
		d.sampler.Release()
		d.sampler = nil
	}
	if d.queue != nil {
		d.queue.Release()
		d.queue = nil
	}
	if d.device != nil {
		d.device.Release()
		d.device = nil
	}
	if d.adapter != nil {
		d.adapter.Release()
		d.adapter = nil
	}
	if d.surface != nil {
		d.surface.Release()
		d.surface = nil
	}
	if d.instance != nil {
		d.instance.Release()
		d.instance = nil
	}
}
