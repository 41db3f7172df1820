package sysviz

import (
	"fmt"
	"time"

	"github.com/gekko3d/sysviz/vizrt/rt/core"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/shirou/gopsutil/v3/net"
)

// TelemetryAlpha is the EMA weight applied to each raw host sample.
const TelemetryAlpha = 0.2

// SystemMonitor is the telemetry source the Engine polls once per frame.
// Percentages are in [0,100]; network throughput is bytes per second.
type SystemMonitor interface {
	Update()
	GetCpuUsage() float32
	GetRamUsage() float32
	GetDiskUsage() float32
	GetNetworkBytesPerSec() float32
}

// Sample reads a monitor into the raw metrics the core consumes.
func Sample(m SystemMonitor) core.RawMetrics {
	return core.RawMetrics{
		CPU:            m.GetCpuUsage(),
		RAM:            m.GetRamUsage(),
		Disk:           m.GetDiskUsage(),
		NetBytesPerSec: m.GetNetworkBytesPerSec(),
	}
}

// hostReader abstracts the gopsutil calls so sampling can be tested.
type hostReader interface {
	CPUPercent() (float64, error)
	RAMPercent() (float64, error)
	DiskBusy() (time.Duration, error)
	NetBytes() (uint64, error)
}

type gopsutilReader struct{}

func (gopsutilReader) CPUPercent() (float64, error) {
	p, err := cpu.Percent(0, false)
	if err != nil {
		return 0, err
	}
	if len(p) == 0 {
		return 0, fmt.Errorf("cpu: no samples")
	}
	return p[0], nil
}

func (gopsutilReader) RAMPercent() (float64, error) {
	vm, err := mem.VirtualMemory()
	if err != nil {
		return 0, err
	}
	return vm.UsedPercent, nil
}

// DiskBusy sums the cumulative busy time of every physical device.
func (gopsutilReader) DiskBusy() (time.Duration, error) {
	counters, err := disk.IOCounters()
	if err != nil {
		return 0, err
	}
	var ms uint64
	for _, c := range counters {
		ms += c.IoTime
	}
	return time.Duration(ms) * time.Millisecond, nil
}

func (gopsutilReader) NetBytes() (uint64, error) {
	counters, err := net.IOCounters(false)
	if err != nil {
		return 0, err
	}
	if len(counters) == 0 {
		return 0, fmt.Errorf("net: no counters")
	}
	return counters[0].BytesSent + counters[0].BytesRecv, nil
}

// HostMonitor samples the local machine with gopsutil and smooths each
// channel with a fixed-alpha EMA. Disk usage is busy time over wall time,
// clamped to 100 since multi-device busy time can exceed it.
type HostMonitor struct {
	log    Logger
	reader hostReader
	now    func() time.Time

	cpu, ram, disk, net *core.EMA

	// Each counter keeps the time of its own last good read so a failed
	// read never stretches the next delta over two intervals.
	busyAt    time.Time
	lastBusy  time.Duration
	busyOK    bool
	bytesAt   time.Time
	lastBytes uint64
	bytesOK   bool

	warned map[string]bool
}

func NewHostMonitor(log Logger) *HostMonitor {
	return newHostMonitor(gopsutilReader{}, time.Now, log)
}

func newHostMonitor(r hostReader, now func() time.Time, log Logger) *HostMonitor {
	if log == nil {
		log = NewNopLogger()
	}
	return &HostMonitor{
		log:    log,
		reader: r,
		now:    now,
		cpu:    core.NewEMA(TelemetryAlpha),
		ram:    core.NewEMA(TelemetryAlpha),
		disk:   core.NewEMA(TelemetryAlpha),
		net:    core.NewEMA(TelemetryAlpha),
		warned: make(map[string]bool),
	}
}

// warnOnce logs a failing counter the first time only; the channel keeps
// its previous value.
func (m *HostMonitor) warnOnce(name string, err error) {
	if m.warned[name] {
		return
	}
	m.warned[name] = true
	m.log.Warnf("telemetry %s unavailable: %v", name, err)
}

func (m *HostMonitor) Update() {
	now := m.now()

	if v, err := m.reader.CPUPercent(); err != nil {
		m.warnOnce("cpu", err)
	} else {
		m.cpu.Update(clampPercent(v))
	}
	if v, err := m.reader.RAMPercent(); err != nil {
		m.warnOnce("ram", err)
	} else {
		m.ram.Update(clampPercent(v))
	}

	if busy, err := m.reader.DiskBusy(); err != nil {
		m.warnOnce("disk", err)
	} else {
		if elapsed := now.Sub(m.busyAt); m.busyOK && elapsed > 0 && busy >= m.lastBusy {
			m.disk.Update(clampPercent(100 * float64(busy-m.lastBusy) / float64(elapsed)))
		}
		m.busyAt, m.lastBusy, m.busyOK = now, busy, true
	}

	if bytes, err := m.reader.NetBytes(); err != nil {
		m.warnOnce("net", err)
	} else {
		if elapsed := now.Sub(m.bytesAt); m.bytesOK && elapsed > 0 && bytes >= m.lastBytes {
			m.net.Update(float64(bytes-m.lastBytes) / elapsed.Seconds())
		}
		m.bytesAt, m.lastBytes, m.bytesOK = now, bytes, true
	}
}

func clampPercent(v float64) float64 {
	return max(0, min(v, 100))
}

func (m *HostMonitor) GetCpuUsage() float32           { return float32(m.cpu.Value()) }
func (m *HostMonitor) GetRamUsage() float32           { return float32(m.ram.Value()) }
func (m *HostMonitor) GetDiskUsage() float32          { return float32(m.disk.Value()) }
func (m *HostMonitor) GetNetworkBytesPerSec() float32 { return float32(m.net.Value()) }

// StaticMonitor reports fixed values; Update does nothing.
type StaticMonitor struct {
	Metrics core.RawMetrics
}

func (s *StaticMonitor) Update()              {}
func (s *StaticMonitor) GetCpuUsage() float32 { return s.Metrics.CPU }
func (s *StaticMonitor) GetRamUsage() float32 { return s.Metrics.RAM }
func (s *StaticMonitor) GetDiskUsage() float32 {
	return max(0, min(s.Metrics.Disk, 100))
}
func (s *StaticMonitor) GetNetworkBytesPerSec() float32 { return s.Metrics.NetBytesPerSec }
