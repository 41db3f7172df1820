package gpu

import (
	"github.com/gekko3d/sysviz/vizrt/rt/core"
	"github.com/go-gl/mathgl/mgl32"
)

// HUDPass draws screen-space text over the final image.
type HUDPass struct {
	dev Device
	log Logger

	text   *core.TextRenderer
	shader Shader
	atlas  Handle
	mesh   Handle
	floats []float32

	// meshFailed is set after the first failed upload and disables Draw.
	meshFailed bool

	Tint mgl32.Vec4
}

func NewHUDPass(dev Device, text *core.TextRenderer, log Logger) *HUDPass {
	h := &HUDPass{
		dev:    dev,
		log:    orNop(log),
		text:   text,
		shader: dev.CreateShader(TextProgram()),
		Tint:   mgl32.Vec4{1, 1, 1, 1},
	}
	if !h.shader.IsValid() {
		h.log.Errorf("hud: shader %q: %v", h.shader.Label(), ErrShaderInvalid)
	}
	if text == nil || text.AtlasImage == nil {
		return h
	}

	b := text.AtlasImage.Bounds()
	atlas, err := dev.CreateTexture(TextureDescriptor{
		Label:  "hud atlas",
		Width:  b.Dx(),
		Height: b.Dy(),
		Format: FormatR8,
		Pixels: text.AtlasImage.Pix,
	})
	if err != nil {
		h.log.Errorf("hud: %v", err)
		return h
	}
	h.atlas = atlas
	return h
}

func (h *HUDPass) IsValid() bool {
	return h.shader != nil && h.shader.IsValid() && !h.atlas.IsZero() && !h.meshFailed
}

// Draw renders items onto the bound target, which must be screenW x
// screenH pixels.
func (h *HUDPass) Draw(items []core.TextItem, screenW, screenH int) {
	if !h.IsValid() || len(items) == 0 {
		return
	}
	vertices := h.text.BuildVertices(items, screenW, screenH)
	if len(vertices) == 0 {
		return
	}
	h.floats = core.FlattenTextVertices(vertices, h.floats)

	if h.mesh.IsZero() {
		mesh, err := h.dev.CreateMesh(MeshDescriptor{
			Label:    "hud text",
			Layout:   LayoutText,
			Topology: TriangleList,
			Vertices: h.floats,
		})
		if err != nil {
			h.log.Errorf("hud: %v", err)
			h.meshFailed = true
			return
		}
		h.mesh = mesh
	} else if err := h.dev.UpdateMesh(h.mesh, h.floats, nil); err != nil {
		h.log.Errorf("hud: %v", err)
		h.meshFailed = true
		return
	}

	prev := h.dev.State()
	h.dev.Viewport(0, 0, screenW, screenH)
	h.dev.SetState(RenderState{
		Blend: true,
		Func:  BlendFunc{Src: BlendSrcAlpha, Dst: BlendOneMinusSrcAlpha},
	})
	h.shader.SetVec4("tint", h.Tint)
	h.dev.BindTexture(0, h.atlas)
	h.dev.Draw(h.shader, h.mesh)
	h.dev.SetState(prev)
}

func (h *HUDPass) Cleanup() {
	if !h.mesh.IsZero() {
		h.dev.DestroyMesh(h.mesh)
		h.mesh = Handle{}
	}
	if !h.atlas.IsZero() {
		h.dev.DestroyTexture(h.atlas)
		h.atlas = Handle{}
	}
	if h.shader != nil {
		h.dev.DestroyShader(h.shader)
		h.shader = nil
	}
}
