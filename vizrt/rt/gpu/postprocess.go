package gpu

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl32"
)

// BlurIterations is the number of separable blur passes. Even iterations blur
// horizontally, odd ones vertically.
const BlurIterations = 6

// PostProcessSettings are the scene-wide knobs read once per frame.
type PostProcessSettings struct {
	BloomEnabled   bool
	BloomThreshold float32
	BloomStrength  float32
	Exposure       float32
	FXAAEnabled    bool
	Background     mgl32.Vec3
	SkyboxEnabled  bool
	Time           float32
}

func DefaultPostProcessSettings() PostProcessSettings {
	return PostProcessSettings{
		BloomEnabled:   true,
		BloomThreshold: 0.7,
		BloomStrength:  0.8,
		Exposure:       1,
		FXAAEnabled:    true,
		Background:     mgl32.Vec3{0, 13.0 / 255, 25.0 / 255},
	}
}

var opaqueState = RenderState{Func: BlendFunc{Src: BlendOne, Dst: BlendZero}}

// PostProcessPipeline turns an HDR color buffer into the displayed image:
// bloom extract, ping-pong blur, tonemap, then optional FXAA.
type PostProcessPipeline struct {
	dev Device
	log Logger

	width  int
	height int

	hdr      Handle
	ldr      Handle
	pingpong [2]Handle
	quad     Handle

	extract Shader
	blur    Shader
	tonemap Shader
	fxaa    Shader

	valid bool
}

func NewPostProcessPipeline(dev Device, log Logger) *PostProcessPipeline {
	return &PostProcessPipeline{dev: dev, log: orNop(log)}
}

func (p *PostProcessPipeline) Initialize(width, height int) bool {
	if p.tonemap == nil {
		p.extract = p.dev.CreateShader(BloomExtractProgram())
		p.blur = p.dev.CreateShader(BlurProgram())
		p.tonemap = p.dev.CreateShader(TonemapProgram())
		p.fxaa = p.dev.CreateShader(FXAAProgram())
		for _, s := range []Shader{p.extract, p.blur, p.tonemap, p.fxaa} {
			if !s.IsValid() {
				p.log.Errorf("postprocess: shader %q: %v", s.Label(), ErrShaderInvalid)
			}
		}
	}
	if p.quad.IsZero() {
		quad, err := NewFullscreenQuad(p.dev, "postprocess quad")
		if err != nil {
			p.log.Errorf("postprocess: %v", err)
			return false
		}
		p.quad = quad
	}
	return p.allocate(width, height)
}

// Resize recreates every target together, and only when the size differs
// from the one they were created with.
func (p *PostProcessPipeline) Resize(width, height int) bool {
	if p.valid && width == p.width && height == p.height {
		return true
	}
	return p.allocate(width, height)
}

func (p *PostProcessPipeline) allocate(width, height int) bool {
	p.releaseTargets()
	p.width, p.height = width, height

	if err := p.createTargets(); err != nil {
		p.log.Errorf("postprocess: %v", err)
		p.releaseTargets()
		return false
	}
	p.valid = p.tonemap != nil && p.tonemap.IsValid()
	return p.valid
}

func (p *PostProcessPipeline) createTargets() error {
	var err error
	p.hdr, err = p.dev.CreateTarget(TargetDescriptor{
		Label: "postprocess hdr", Width: p.width, Height: p.height, Format: FormatRGBA16F, Depth: true,
	})
	if err != nil {
		return fmt.Errorf("hdr target: %w", err)
	}
	p.ldr, err = p.dev.CreateTarget(TargetDescriptor{
		Label: "postprocess ldr", Width: p.width, Height: p.height, Format: FormatRGBA8,
	})
	if err != nil {
		return fmt.Errorf("ldr target: %w", err)
	}
	for i := range p.pingpong {
		p.pingpong[i], err = p.dev.CreateTarget(TargetDescriptor{
			Label:  fmt.Sprintf("postprocess pingpong %d", i),
			Width:  p.width,
			Height: p.height,
			Format: FormatRGBA16F,
		})
		if err != nil {
			return fmt.Errorf("pingpong target %d: %w", i, err)
		}
	}
	return nil
}

func (p *PostProcessPipeline) releaseTargets() {
	for _, h := range []*Handle{&p.hdr, &p.ldr, &p.pingpong[0], &p.pingpong[1]} {
		if !h.IsZero() {
			p.dev.DestroyTarget(*h)
			*h = Handle{}
		}
	}
	p.valid = false
}

// BeginScene binds the HDR target for 3D rendering, cleared to transparent
// so the tonemap pass can put the background behind it.
func (p *PostProcessPipeline) BeginScene() bool {
	if !p.valid {
		return false
	}
	p.dev.BindTarget(p.hdr)
	p.dev.Viewport(0, 0, p.width, p.height)
	p.dev.Clear(transparent)
	p.dev.SetState(DefaultState())
	return true
}

func (p *PostProcessPipeline) EndScene() {
	p.dev.BindTarget(Handle{})
}

// SceneTarget is the HDR target scenes are rendered into.
func (p *PostProcessPipeline) SceneTarget() Handle { return p.hdr }

// Render post-processes the pipeline's own HDR scene target.
func (p *PostProcessPipeline) Render(settings PostProcessSettings) {
	p.Process(p.hdr, settings)
}

// Process runs the chain on an HDR texture of the pipeline's size and leaves
// the result on the screen.
func (p *PostProcessPipeline) Process(input Handle, settings PostProcessSettings) {
	if !p.valid || input.IsZero() {
		return
	}

	bloom := p.bloom(input, settings)

	toScreen := !settings.FXAAEnabled || !p.fxaa.IsValid()
	if toScreen {
		p.bind(Handle{})
	} else {
		p.bind(p.ldr)
	}
	p.tonemap.SetVec4("background", settings.Background.Vec4(1))
	p.tonemap.SetFloat("exposure", settings.Exposure)
	p.tonemap.SetFloat("time", settings.Time)
	if settings.SkyboxEnabled {
		p.tonemap.SetFloat("skybox", 1)
	} else {
		p.tonemap.SetFloat("skybox", 0)
	}
	p.dev.BindTexture(0, input)
	if bloom.IsZero() {
		p.tonemap.SetFloat("bloomStrength", 0)
		p.dev.BindTexture(1, input)
	} else {
		p.tonemap.SetFloat("bloomStrength", settings.BloomStrength)
		p.dev.BindTexture(1, bloom)
	}
	p.dev.Draw(p.tonemap, p.quad)

	if !toScreen {
		p.bind(Handle{})
		p.fxaa.SetVec2("invResolution", mgl32.Vec2{1 / float32(p.width), 1 / float32(p.height)})
		p.dev.BindTexture(0, p.ldr)
		p.dev.Draw(p.fxaa, p.quad)
	}

	p.dev.SetState(DefaultState())
}

// bloom extracts bright texels into pingpong[0] and blurs them back and
// forth. It returns the target holding the last blur, or zero when bloom is
// off.
func (p *PostProcessPipeline) bloom(input Handle, settings PostProcessSettings) Handle {
	if !settings.BloomEnabled || !p.extract.IsValid() || !p.blur.IsValid() {
		return Handle{}
	}

	p.bind(p.pingpong[0])
	p.extract.SetFloat("threshold", settings.BloomThreshold)
	p.dev.BindTexture(0, input)
	p.dev.Draw(p.extract, p.quad)

	texel := mgl32.Vec2{1 / float32(p.width), 1 / float32(p.height)}
	for i := 0; i < BlurIterations; i++ {
		src := p.pingpong[i%2]
		dst := p.pingpong[(i+1)%2]
		p.bind(dst)
		p.blur.SetVec2("texel", texel)
		if i%2 == 0 {
			p.blur.SetFloat("horizontal", 1)
		} else {
			p.blur.SetFloat("horizontal", 0)
		}
		p.dev.BindTexture(0, src)
		p.dev.Draw(p.blur, p.quad)
	}
	return p.pingpong[BlurIterations%2]
}

func (p *PostProcessPipeline) bind(target Handle) {
	p.dev.BindTarget(target)
	p.dev.Viewport(0, 0, p.width, p.height)
	p.dev.SetState(opaqueState)
}

func (p *PostProcessPipeline) PingPong(i int) Handle { return p.pingpong[i&1] }
func (p *PostProcessPipeline) LDRTexture() Handle    { return p.ldr }

func (p *PostProcessPipeline) Width() int    { return p.width }
func (p *PostProcessPipeline) Height() int   { return p.height }
func (p *PostProcessPipeline) IsValid() bool { return p.valid }

func (p *PostProcessPipeline) Cleanup() {
	p.releaseTargets()
	if !p.quad.IsZero() {
		p.dev.DestroyMesh(p.quad)
		p.quad = Handle{}
	}
	for _, s := range []Shader{p.extract, p.blur, p.tonemap, p.fxaa} {
		if s != nil {
			p.dev.DestroyShader(s)
		}
	}
	p.extract, p.blur, p.tonemap, p.fxaa = nil, nil, nil, nil
}
