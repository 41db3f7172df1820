package core

import (
	"github.com/chewxy/math32"
)

// SmoothedMetrics are the particle-driving signals, each normalized to [0,1].
type SmoothedMetrics struct {
	CPU  float32
	RAM  float32
	Disk float32
	Net  float32
}

// Rates holds the per-second approach rates for a rising and a falling signal.
type Rates struct {
	Rise float32
	Fall float32
}

// Approach moves current toward target by 1-exp(-rate*dt), picking the rise
// or fall rate by direction. dt <= 0 returns current unchanged.
func Approach(current, target, dt float32, r Rates) float32 {
	if dt <= 0 {
		return current
	}
	rate := r.Fall
	if target > current {
		rate = r.Rise
	}
	t := 1 - math32.Exp(-rate*dt)
	return current + (target-current)*t
}

// BytesPerMiB converts network throughput into the [0,1] net signal.
const BytesPerMiB = 1024 * 1024

// MetricSmoother applies the asymmetric exponential approach to all four
// telemetry channels. It is the only writer of its SmoothedMetrics.
type MetricSmoother struct {
	CPU  Rates
	RAM  Rates
	Disk Rates
	Net  Rates

	value SmoothedMetrics
}

func NewMetricSmoother() *MetricSmoother {
	return &MetricSmoother{
		CPU:  Rates{Rise: 2.5, Fall: 1.5},
		RAM:  Rates{Rise: 2.0, Fall: 1.2},
		Disk: Rates{Rise: 2.0, Fall: 1.0},
		Net:  Rates{Rise: 3.0, Fall: 1.5},
	}
}

// Update takes raw percentages (0..100) for cpu/ram/disk and bytes per second
// for the network, and returns the new smoothed values.
func (s *MetricSmoother) Update(rawCPU, rawRAM, rawDisk, rawNet, dt float32) SmoothedMetrics {
	if dt <= 0 {
		return s.value
	}
	netTarget := math32.Min(rawNet/BytesPerMiB, 1)

	s.value.CPU = Approach(s.value.CPU, rawCPU/100, dt, s.CPU)
	s.value.RAM = Approach(s.value.RAM, rawRAM/100, dt, s.RAM)
	s.value.Disk = Approach(s.value.Disk, rawDisk/100, dt, s.Disk)
	s.value.Net = Approach(s.value.Net, netTarget, dt, s.Net)
	return s.value
}

func (s *MetricSmoother) Value() SmoothedMetrics {
	return s.value
}

func (s *MetricSmoother) Reset() {
	s.value = SmoothedMetrics{}
}

// EMA is a fixed-alpha exponential moving average. The first sample is taken
// as-is so the average does not ramp in from zero.
type EMA struct {
	Alpha float64

	value       float64
	initialized bool
}

func NewEMA(alpha float64) *EMA {
	return &EMA{Alpha: alpha}
}

func (e *EMA) Update(raw float64) float64 {
	if !e.initialized {
		e.value = raw
		e.initialized = true
		return e.value
	}
	e.value = e.Alpha*raw + (1-e.Alpha)*e.value
	return e.value
}

func (e *EMA) Value() float64 {
	return e.value
}

func (e *EMA) Initialized() bool {
	return e.initialized
}

func (e *EMA) Reset() {
	e.value = 0
	e.initialized = false
}
