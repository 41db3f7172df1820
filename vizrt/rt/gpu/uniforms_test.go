package gpu

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUniformBlock_SceneLayout(t *testing.T) {
	b := NewUniformBlock(SceneProgram().Uniforms)

	offsets := map[string]int{
		"viewProj": 0,
		"model":    64,
		"color":    128,
		"glow":     144,
		"fog":      160,
		"eye":      176,
		"time":     188,
	}
	for name, want := range offsets {
		got, ok := b.Offset(name)
		require.True(t, ok, name)
		assert.Equal(t, want, got, name)
	}
	assert.Equal(t, 192, b.Size())
}

func TestUniformBlock_CompositeLayout(t *testing.T) {
	b := NewUniformBlock(CompositeProgram().Uniforms)

	off, _ := b.Offset("resolution")
	assert.Equal(t, 32, off)
	off, _ = b.Offset("opacity")
	assert.Equal(t, 40, off)
	off, _ = b.Offset("blendMode")
	assert.Equal(t, 112, off)
	assert.Equal(t, 128, b.Size())
}

func TestUniformBlock_ParticleLayout(t *testing.T) {
	b := NewUniformBlock(ParticleProgram().Uniforms)
	off, _ := b.Offset("sizeScale")
	assert.Equal(t, 72, off)
	assert.Equal(t, 80, b.Size())
}

func TestUniformBlock_SetGet(t *testing.T) {
	b := NewUniformBlock(SceneProgram().Uniforms)

	m := mgl32.Translate3D(1, 2, 3)
	assert.True(t, b.SetMat4("model", m))
	assert.True(t, b.SetVec3("eye", mgl32.Vec3{4, 5, 6}))
	assert.True(t, b.SetFloat("time", 1.5))

	assert.Equal(t, m, b.Mat4("model"))
	assert.Equal(t, mgl32.Vec3{4, 5, 6}, b.Vec3("eye"))
	assert.Equal(t, float32(1.5), b.Float("time"))

	// eye is a vec3; time sits in its padding lane and must survive.
	b.SetVec3("eye", mgl32.Vec3{7, 8, 9})
	assert.Equal(t, float32(1.5), b.Float("time"))
}

func TestUniformBlock_RejectsUnknownAndMistyped(t *testing.T) {
	b := NewUniformBlock(FadeProgram().Uniforms)

	assert.False(t, b.SetFloat("missing", 1))
	assert.False(t, b.SetVec4("fade", mgl32.Vec4{1, 2, 3, 4}))
	assert.Equal(t, float32(0), b.Float("fade"))
	assert.Equal(t, float32(0), b.Float("missing"))
}

func TestUniformBlock_CloneIsIndependent(t *testing.T) {
	b := NewUniformBlock(FadeProgram().Uniforms)
	b.SetFloat("fade", 0.25)

	c := b.Clone()
	b.SetFloat("fade", 0.75)

	assert.Equal(t, float32(0.25), c.Float("fade"))
	assert.Equal(t, float32(0.75), b.Float("fade"))
}

func TestUniformShader_Invalidate(t *testing.T) {
	s := NewUniformShader("fade", FadeProgram().Uniforms, true)
	assert.True(t, s.IsValid())
	s.Invalidate()
	assert.False(t, s.IsValid())

	var nilShader *UniformShader
	assert.False(t, nilShader.IsValid())
}
