package shaders

import (
	_ "embed"
)

//go:embed composite.wgsl
var CompositeWGSL string

//go:embed fade.wgsl
var FadeWGSL string

//go:embed present.wgsl
var PresentWGSL string

//go:embed bloom_extract.wgsl
var BloomExtractWGSL string

//go:embed blur.wgsl
var BlurWGSL string

//go:embed tonemap.wgsl
var TonemapWGSL string

//go:embed fxaa.wgsl
var FXAAWGSL string

//go:embed scene.wgsl
var SceneWGSL string

//go:embed particles.wgsl
var ParticlesWGSL string

//go:embed text.wgsl
var TextWGSL string
