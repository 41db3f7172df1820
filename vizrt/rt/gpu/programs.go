package gpu

import "github.com/gekko3d/sysviz/vizrt/rt/shaders"

// Uniform lists below mirror the Params struct of each WGSL file, in order.

func CompositeProgram() ShaderDescriptor {
	return ShaderDescriptor{
		Label:  "composite",
		Source: shaders.CompositeWGSL,
		Block:  "Params",
		Vertex: LayoutQuad,
		Uniforms: []Uniform{
			{"tint", UniformVec4},
			{"glowColor", UniformVec4},
			{"resolution", UniformVec2},
			{"opacity", UniformFloat},
			{"time", UniformFloat},
			{"pixelate", UniformFloat},
			{"distortion", UniformFloat},
			{"distortionFreq", UniformFloat},
			{"distortionSpeed", UniformFloat},
			{"chromatic", UniformFloat},
			{"scanlines", UniformFloat},
			{"scanlineDensity", UniformFloat},
			{"noise", UniformFloat},
			{"vignette", UniformFloat},
			{"brightness", UniformFloat},
			{"contrast", UniformFloat},
			{"saturation", UniformFloat},
			{"hueShift", UniformFloat},
			{"hasTrail", UniformFloat},
			{"bloomThreshold", UniformFloat},
			{"bloomIntensity", UniformFloat},
			{"blendMode", UniformFloat},
		},
		Textures: 2,
	}
}

func FadeProgram() ShaderDescriptor {
	return ShaderDescriptor{
		Label:    "fade",
		Source:   shaders.FadeWGSL,
		Block:    "Params",
		Vertex:   LayoutQuad,
		Uniforms: []Uniform{{"fade", UniformFloat}},
		Textures: 1,
	}
}

func PresentProgram() ShaderDescriptor {
	return ShaderDescriptor{
		Label:    "present",
		Source:   shaders.PresentWGSL,
		Block:    "Params",
		Vertex:   LayoutQuad,
		Uniforms: []Uniform{{"gain", UniformFloat}},
		Textures: 1,
	}
}

func BloomExtractProgram() ShaderDescriptor {
	return ShaderDescriptor{
		Label:    "bloom_extract",
		Source:   shaders.BloomExtractWGSL,
		Block:    "Params",
		Vertex:   LayoutQuad,
		Uniforms: []Uniform{{"threshold", UniformFloat}},
		Textures: 1,
	}
}

func BlurProgram() ShaderDescriptor {
	return ShaderDescriptor{
		Label:  "blur",
		Source: shaders.BlurWGSL,
		Block:  "Params",
		Vertex: LayoutQuad,
		Uniforms: []Uniform{
			{"texel", UniformVec2},
			{"horizontal", UniformFloat},
		},
		Textures: 1,
	}
}

func TonemapProgram() ShaderDescriptor {
	return ShaderDescriptor{
		Label:  "tonemap",
		Source: shaders.TonemapWGSL,
		Block:  "Params",
		Vertex: LayoutQuad,
		Uniforms: []Uniform{
			{"background", UniformVec4},
			{"exposure", UniformFloat},
			{"bloomStrength", UniformFloat},
			{"skybox", UniformFloat},
			{"time", UniformFloat},
		},
		Textures: 2,
	}
}

func FXAAProgram() ShaderDescriptor {
	return ShaderDescriptor{
		Label:    "fxaa",
		Source:   shaders.FXAAWGSL,
		Block:    "Params",
		Vertex:   LayoutQuad,
		Uniforms: []Uniform{{"invResolution", UniformVec2}},
		Textures: 1,
	}
}

func SceneProgram() ShaderDescriptor {
	return ShaderDescriptor{
		Label:  "scene",
		Source: shaders.SceneWGSL,
		Block:  "Params",
		Vertex: LayoutMesh,
		Uniforms: []Uniform{
			{"viewProj", UniformMat4},
			{"model", UniformMat4},
			{"color", UniformVec4},
			{"glow", UniformVec4},
			{"fog", UniformVec4},
			{"eye", UniformVec3},
			{"time", UniformFloat},
		},
	}
}

func ParticleProgram() ShaderDescriptor {
	return ShaderDescriptor{
		Label:    "particles",
		Source:   shaders.ParticlesWGSL,
		Block:    "Params",
		Vertex:   LayoutQuad,
		Instance: InstanceParticle,
		Uniforms: []Uniform{
			{"viewProj", UniformMat4},
			{"viewport", UniformVec2},
			{"sizeScale", UniformFloat},
		},
	}
}

func TextProgram() ShaderDescriptor {
	return ShaderDescriptor{
		Label:    "text",
		Source:   shaders.TextWGSL,
		Block:    "Params",
		Vertex:   LayoutText,
		Uniforms: []Uniform{{"tint", UniformVec4}},
		Textures: 1,
	}
}
