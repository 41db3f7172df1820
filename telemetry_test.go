package sysviz

import (
	"errors"
	"testing"
	"time"

	"github.com/gekko3d/sysviz/vizrt/rt/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeHost struct {
	cpu, ram float64
	busy     time.Duration
	bytes    uint64
	diskErr  error
	netErr   error
}

func (f *fakeHost) CPUPercent() (float64, error)     { return f.cpu, nil }
func (f *fakeHost) RAMPercent() (float64, error)     { return f.ram, nil }
func (f *fakeHost) DiskBusy() (time.Duration, error) { return f.busy, f.diskErr }
func (f *fakeHost) NetBytes() (uint64, error)        { return f.bytes, f.netErr }

func TestHostMonitor_FirstSampleIsIdentity(t *testing.T) {
	host := &fakeHost{cpu: 40, ram: 70}
	m := newHostMonitor(host, newFakeClock().now, nil)

	m.Update()

	assert.Equal(t, float32(40), m.GetCpuUsage())
	assert.Equal(t, float32(70), m.GetRamUsage())
	// rates need two samples
	assert.Equal(t, float32(0), m.GetDiskUsage())
	assert.Equal(t, float32(0), m.GetNetworkBytesPerSec())
}

func TestHostMonitor_EMA(t *testing.T) {
	host := &fakeHost{cpu: 0}
	m := newHostMonitor(host, newFakeClock().now, nil)
	m.Update()

	host.cpu = 100
	m.Update()
	assert.InDelta(t, 100*TelemetryAlpha, m.GetCpuUsage(), 1e-4)

	m.Update()
	assert.InDelta(t, 100*(1-(1-TelemetryAlpha)*(1-TelemetryAlpha)), m.GetCpuUsage(), 1e-4)
}

func TestHostMonitor_RatesFromDeltas(t *testing.T) {
	clock := newFakeClock()
	host := &fakeHost{busy: time.Second, bytes: 1000}
	m := newHostMonitor(host, clock.now, nil)
	m.Update()

	clock.advance(2 * time.Second)
	host.busy += 500 * time.Millisecond
	host.bytes += 4096
	m.Update()

	assert.InDelta(t, 25, m.GetDiskUsage(), 1e-4)
	assert.InDelta(t, 2048, m.GetNetworkBytesPerSec(), 1e-3)
}

func TestHostMonitor_DiskClampedTo100(t *testing.T) {
	clock := newFakeClock()
	host := &fakeHost{}
	m := newHostMonitor(host, clock.now, nil)
	m.Update()

	// several busy devices can report more busy time than wall time
	clock.advance(time.Second)
	host.busy = 3 * time.Second
	m.Update()

	assert.Equal(t, float32(100), m.GetDiskUsage())
}

func TestHostMonitor_CounterErrorsWarnOnce(t *testing.T) {
	log := NewBufferLogger()
	clock := newFakeClock()
	host := &fakeHost{cpu: 10, netErr: errors.New("no interfaces")}
	m := newHostMonitor(host, clock.now, log)

	for i := 0; i < 3; i++ {
		clock.advance(time.Second)
		m.Update()
	}

	warns := log.Level("WARN")
	require.Len(t, warns, 1)
	assert.Contains(t, warns[0], "net")
	assert.Equal(t, float32(0), m.GetNetworkBytesPerSec())
	assert.Equal(t, float32(10), m.GetCpuUsage())
}

func TestHostMonitor_FailedReadDoesNotShortenInterval(t *testing.T) {
	clock := newFakeClock()
	host := &fakeHost{busy: time.Second, bytes: 1000}
	m := newHostMonitor(host, clock.now, nil)
	m.Update()

	clock.advance(time.Second)
	host.diskErr = errors.New("busy")
	host.netErr = errors.New("down")
	m.Update()

	clock.advance(time.Second)
	host.diskErr, host.netErr = nil, nil
	host.busy += time.Second
	host.bytes += 2048
	m.Update()

	// both deltas span the two seconds since the last good read
	assert.InDelta(t, 50, m.GetDiskUsage(), 1e-4)
	assert.InDelta(t, 1024, m.GetNetworkBytesPerSec(), 1e-3)
}

func TestHostMonitor_CounterResetIsSkipped(t *testing.T) {
	clock := newFakeClock()
	host := &fakeHost{bytes: 10_000}
	m := newHostMonitor(host, clock.now, nil)
	m.Update()

	clock.advance(time.Second)
	host.bytes = 100
	m.Update()
	assert.Equal(t, float32(0), m.GetNetworkBytesPerSec())

	clock.advance(time.Second)
	host.bytes = 1124
	m.Update()
	assert.InDelta(t, 1024, m.GetNetworkBytesPerSec(), 1e-3)
}

func TestStaticMonitor(t *testing.T) {
	m := &StaticMonitor{Metrics: core.RawMetrics{CPU: 12, RAM: 34, Disk: 250, NetBytesPerSec: 99}}
	m.Update()

	raw := Sample(m)
	assert.Equal(t, float32(12), raw.CPU)
	assert.Equal(t, float32(34), raw.RAM)
	assert.Equal(t, float32(100), raw.Disk)
	assert.Equal(t, float32(99), raw.NetBytesPerSec)
}
