package sysviz

import (
	"fmt"
	"runtime"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/cogentcore/webgpu/wgpuglfw"
	"github.com/gekko3d/sysviz/vizrt/rt/gpu"
	"github.com/go-gl/glfw/v3.3/glfw"
)

type WindowOptions struct {
	Width  int
	Height int
	Title  string
	// Windowed keeps decorations and disables exit-on-input.
	Windowed bool
}

// Window is the GLFW window the visualizer presents to.
type Window struct {
	glfw     *glfw.Window
	windowed bool
}

// OpenWindow initializes GLFW and creates a window without a client API
// context. Must be called from the main thread.
func OpenWindow(opts WindowOptions) (*Window, error) {
	if opts.Width <= 0 {
		opts.Width = 1280
	}
	if opts.Height <= 0 {
		opts.Height = 720
	}
	if opts.Title == "" {
		opts.Title = "sysviz"
	}

	runtime.LockOSThread()
	if err := glfw.Init(); err != nil {
		return nil, fmt.Errorf("glfw init: %w", err)
	}

	glfw.WindowHint(glfw.ClientAPI, glfw.NoAPI)
	glfw.WindowHint(glfw.Resizable, glfw.True)

	var monitor *glfw.Monitor
	width, height := opts.Width, opts.Height
	if !opts.Windowed {
		monitor = glfw.GetPrimaryMonitor()
		if monitor != nil {
			mode := monitor.GetVideoMode()
			width, height = mode.Width, mode.Height
		}
	}

	win, err := glfw.CreateWindow(width, height, opts.Title, monitor, nil)
	if err != nil {
		glfw.Terminate()
		return nil, fmt.Errorf("create window: %w", err)
	}
	if !opts.Windowed {
		win.SetInputMode(glfw.CursorMode, glfw.CursorHidden)
	}
	return &Window{glfw: win, windowed: opts.Windowed}, nil
}

func (w *Window) FramebufferSize() (int, int) {
	return w.glfw.GetFramebufferSize()
}

func (w *Window) Windowed() bool { return w.windowed }

// Close destroys the window and terminates GLFW.
func (w *Window) Close() {
	if w.glfw != nil {
		w.glfw.Destroy()
		w.glfw = nil
	}
	glfw.Terminate()
}

// NewDevice creates the WebGPU instance, surface, adapter and device for the
// window and hands them to a gpu.WGPUDevice, which owns them from then on.
func (w *Window) NewDevice(log Logger) (*gpu.WGPUDevice, error) {
	instance := wgpu.CreateInstance(nil)
	surface := instance.CreateSurface(wgpuglfw.GetSurfaceDescriptor(w.glfw))

	adapter, err := instance.RequestAdapter(&wgpu.RequestAdapterOptions{
		CompatibleSurface: surface,
		PowerPreference:   wgpu.PowerPreferenceHighPerformance,
	})
	if err != nil {
		surface.Release()
		instance.Release()
		return nil, fmt.Errorf("request adapter: %w", err)
	}

	device, err := adapter.RequestDevice(&wgpu.DeviceDescriptor{
		Label: "sysviz device",
	})
	if err != nil {
		adapter.Release()
		surface.Release()
		instance.Release()
		return nil, fmt.Errorf("request device: %w", err)
	}

	width, height := w.FramebufferSize()
	dev, err := gpu.NewWGPUDevice(gpu.WGPUConfig{
		Instance: instance,
		Surface:  surface,
		Adapter:  adapter,
		Device:   device,
		Width:    width,
		Height:   height,
	}, log)
	if err != nil {
		return nil, err
	}
	return dev, nil
}
