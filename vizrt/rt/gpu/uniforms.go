package gpu

import (
	"encoding/binary"
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

type uniformField struct {
	typ    UniformType
	offset int
}

// UniformBlock packs named uniforms into a byte buffer using WGSL uniform
// address-space layout rules.
type UniformBlock struct {
	fields map[string]uniformField
	data   []byte
}

func uniformAlignSize(t UniformType) (align, size int) {
	switch t {
	case UniformVec2:
		return 8, 8
	case UniformVec3:
		return 16, 12
	case UniformVec4:
		return 16, 16
	case UniformMat4:
		return 16, 64
	}
	return 4, 4
}

func alignUp(v, a int) int {
	return (v + a - 1) / a * a
}

func NewUniformBlock(uniforms []Uniform) *UniformBlock {
	b := &UniformBlock{fields: make(map[string]uniformField, len(uniforms))}
	offset := 0
	for _, u := range uniforms {
		align, size := uniformAlignSize(u.Type)
		offset = alignUp(offset, align)
		b.fields[u.Name] = uniformField{typ: u.Type, offset: offset}
		offset += size
	}
	if offset == 0 {
		return b
	}
	b.data = make([]byte, alignUp(offset, 16))
	return b
}

func (b *UniformBlock) Size() int     { return len(b.data) }
func (b *UniformBlock) Bytes() []byte { return b.data }

// Clone returns an independent copy, used to snapshot per-draw values.
func (b *UniformBlock) Clone() *UniformBlock {
	c := &UniformBlock{fields: b.fields, data: make([]byte, len(b.data))}
	copy(c.data, b.data)
	return c
}

func (b *UniformBlock) Offset(name string) (int, bool) {
	f, ok := b.fields[name]
	return f.offset, ok
}

func (b *UniformBlock) field(name string, t UniformType) (int, bool) {
	f, ok := b.fields[name]
	if !ok || f.typ != t {
		return 0, false
	}
	return f.offset, true
}

func (b *UniformBlock) putFloats(off int, vs ...float32) {
	for i, v := range vs {
		binary.LittleEndian.PutUint32(b.data[off+i*4:], math.Float32bits(v))
	}
}

func (b *UniformBlock) floats(off, n int) []float32 {
	out := make([]float32, n)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(b.data[off+i*4:]))
	}
	return out
}

// The setters report false when the name is unknown or has another type.

func (b *UniformBlock) SetFloat(name string, v float32) bool {
	off, ok := b.field(name, UniformFloat)
	if ok {
		b.putFloats(off, v)
	}
	return ok
}

func (b *UniformBlock) SetInt(name string, v int32) bool {
	off, ok := b.field(name, UniformInt)
	if ok {
		binary.LittleEndian.PutUint32(b.data[off:], uint32(v))
	}
	return ok
}

func (b *UniformBlock) SetVec2(name string, v mgl32.Vec2) bool {
	off, ok := b.field(name, UniformVec2)
	if ok {
		b.putFloats(off, v[:]...)
	}
	return ok
}

func (b *UniformBlock) SetVec3(name string, v mgl32.Vec3) bool {
	off, ok := b.field(name, UniformVec3)
	if ok {
		b.putFloats(off, v[:]...)
	}
	return ok
}

func (b *UniformBlock) SetVec4(name string, v mgl32.Vec4) bool {
	off, ok := b.field(name, UniformVec4)
	if ok {
		b.putFloats(off, v[:]...)
	}
	return ok
}

func (b *UniformBlock) SetMat4(name string, m mgl32.Mat4) bool {
	off, ok := b.field(name, UniformMat4)
	if ok {
		b.putFloats(off, m[:]...)
	}
	return ok
}

func (b *UniformBlock) Float(name string) float32 {
	off, ok := b.field(name, UniformFloat)
	if !ok {
		return 0
	}
	return b.floats(off, 1)[0]
}

func (b *UniformBlock) Int(name string) int32 {
	off, ok := b.field(name, UniformInt)
	if !ok {
		return 0
	}
	return int32(binary.LittleEndian.Uint32(b.data[off:]))
}

func (b *UniformBlock) Vec2(name string) mgl32.Vec2 {
	var v mgl32.Vec2
	if off, ok := b.field(name, UniformVec2); ok {
		copy(v[:], b.floats(off, 2))
	}
	return v
}

func (b *UniformBlock) Vec3(name string) mgl32.Vec3 {
	var v mgl32.Vec3
	if off, ok := b.field(name, UniformVec3); ok {
		copy(v[:], b.floats(off, 3))
	}
	return v
}

func (b *UniformBlock) Vec4(name string) mgl32.Vec4 {
	var v mgl32.Vec4
	if off, ok := b.field(name, UniformVec4); ok {
		copy(v[:], b.floats(off, 4))
	}
	return v
}

func (b *UniformBlock) Mat4(name string) mgl32.Mat4 {
	var m mgl32.Mat4
	if off, ok := b.field(name, UniformMat4); ok {
		copy(m[:], b.floats(off, 16))
	}
	return m
}

// UniformShader implements the name-bound uniform half of Shader. Backends
// embed it and read Block when recording a draw.
type UniformShader struct {
	label string
	valid bool
	Block *UniformBlock
}

func NewUniformShader(label string, uniforms []Uniform, valid bool) *UniformShader {
	return &UniformShader{label: label, valid: valid, Block: NewUniformBlock(uniforms)}
}

func (s *UniformShader) Label() string { return s.label }
func (s *UniformShader) IsValid() bool { return s != nil && s.valid }
func (s *UniformShader) Invalidate()   { s.valid = false }

func (s *UniformShader) SetMat4(name string, m mgl32.Mat4) { s.Block.SetMat4(name, m) }
func (s *UniformShader) SetVec2(name string, v mgl32.Vec2) { s.Block.SetVec2(name, v) }
func (s *UniformShader) SetVec3(name string, v mgl32.Vec3) { s.Block.SetVec3(name, v) }
func (s *UniformShader) SetVec4(name string, v mgl32.Vec4) { s.Block.SetVec4(name, v) }
func (s *UniformShader) SetFloat(name string, v float32)   { s.Block.SetFloat(name, v) }
func (s *UniformShader) SetInt(name string, v int32)       { s.Block.SetInt(name, v) }
