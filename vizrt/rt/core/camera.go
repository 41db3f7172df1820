package core

import (
	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
)

// OrbitCamera circles the origin at a fixed distance and height, Y-up.
// Angle is in degrees and wraps at 360.
type OrbitCamera struct {
	Angle         float32
	Distance      float32
	Height        float32
	FieldOfView   float32 // degrees
	Near          float32
	Far           float32
	RotationSpeed float32 // degrees per second
}

func NewOrbitCamera() *OrbitCamera {
	return &OrbitCamera{
		Distance:      12,
		Height:        5,
		FieldOfView:   45,
		Near:          0.1,
		Far:           100,
		RotationSpeed: 0.2,
	}
}

// Advance rotates the camera by RotationSpeed*dt.
func (c *OrbitCamera) Advance(dt float32) {
	c.Angle += c.RotationSpeed * dt
	if c.Angle >= 360 || c.Angle < 0 {
		c.Angle = math32.Mod(c.Angle, 360)
		if c.Angle < 0 {
			c.Angle += 360
		}
	}
}

func (c *OrbitCamera) Eye() mgl32.Vec3 {
	rad := mgl32.DegToRad(c.Angle)
	return mgl32.Vec3{
		math32.Sin(rad) * c.Distance,
		c.Height,
		math32.Cos(rad) * c.Distance,
	}
}

func (c *OrbitCamera) Forward() mgl32.Vec3 {
	return c.Eye().Mul(-1).Normalize()
}

func (c *OrbitCamera) View() mgl32.Mat4 {
	return mgl32.LookAtV(c.Eye(), mgl32.Vec3{}, mgl32.Vec3{0, 1, 0})
}

// depthZeroToOne remaps clip-space z from [-w,w] to [0,w] for WebGPU.
var depthZeroToOne = mgl32.Mat4{
	1, 0, 0, 0,
	0, 1, 0, 0,
	0, 0, 0.5, 0,
	0, 0, 0.5, 1,
}

// Projection builds the perspective matrix; aspect falls back to 1 when the
// viewport is degenerate.
func (c *OrbitCamera) Projection(aspect float32) mgl32.Mat4 {
	if aspect <= 0 || math32.IsNaN(aspect) || math32.IsInf(aspect, 0) {
		aspect = 1
	}
	return depthZeroToOne.Mul4(mgl32.Perspective(mgl32.DegToRad(c.FieldOfView), aspect, c.Near, c.Far))
}

func (c *OrbitCamera) ViewProj(aspect float32) mgl32.Mat4 {
	return c.Projection(aspect).Mul4(c.View())
}
