package core

import (
	"fmt"
	"strings"
)

// MetricKind identifies one of the four telemetry channels. Its value is
// also the layer index.
type MetricKind int

const (
	MetricCPU MetricKind = iota
	MetricRAM
	MetricDisk
	MetricNetwork

	MetricCount = 4
)

var metricNames = [MetricCount]string{"CPU", "RAM", "Disk", "Network"}

func (k MetricKind) String() string {
	if k >= 0 && int(k) < MetricCount {
		return metricNames[k]
	}
	return fmt.Sprintf("MetricKind(%d)", int(k))
}

// MeshType selects the geometry a metric visualizer draws.
type MeshType int

const (
	MeshSphere MeshType = iota
	MeshCube
	MeshRing
	MeshNone
)

var meshTypeNames = map[MeshType]string{
	MeshSphere: "sphere",
	MeshCube:   "cube",
	MeshRing:   "ring",
	MeshNone:   "none",
}

func (m MeshType) String() string {
	if s, ok := meshTypeNames[m]; ok {
		return s
	}
	return fmt.Sprintf("MeshType(%d)", int(m))
}

// ParseMeshType returns MeshSphere and ok=false for unknown names.
func ParseMeshType(s string) (MeshType, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	for m, name := range meshTypeNames {
		if name == s {
			return m, true
		}
	}
	return MeshSphere, false
}

func (m MeshType) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

func (m *MeshType) UnmarshalText(text []byte) error {
	*m, _ = ParseMeshType(string(text))
	return nil
}

// MetricConfig controls how strongly one metric drives its visualizer.
// Threshold is a percentage below which the effect is minimal.
type MetricConfig struct {
	Enabled   bool     `yaml:"enabled" mapstructure:"enabled"`
	Threshold float32  `yaml:"threshold" mapstructure:"threshold"`
	Strength  float32  `yaml:"strength" mapstructure:"strength"`
	MeshType  MeshType `yaml:"mesh_type" mapstructure:"mesh_type"`
}

// EffectiveUsage maps a 0..100 usage into [0,1] after removing the
// threshold and applying strength.
func (c MetricConfig) EffectiveUsage(usage float32) float32 {
	effective := usage - c.Threshold
	if effective < 0 {
		effective = 0
	}
	span := 100 - c.Threshold
	if span <= 0.001 {
		span = 100
	}
	u := (effective / span) * c.Strength
	if u > 1 {
		return 1
	}
	if u < 0 {
		return 0
	}
	return u
}
