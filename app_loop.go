package sysviz

import (
	"context"
	"math"

	"github.com/go-gl/glfw/v3.3/glfw"
)

// mouseExitDistance is how far, in pixels, the cursor may drift from its
// first observed position before a fullscreen run exits.
const mouseExitDistance = 5

// exitTracker decides when user input ends a screensaver-style run.
type exitTracker struct {
	enabled bool
	hasPos  bool
	startX  float64
	startY  float64
	exit    bool
}

func (t *exitTracker) key(action glfw.Action) {
	if t.enabled && action == glfw.Press {
		t.exit = true
	}
}

func (t *exitTracker) button(action glfw.Action) {
	if t.enabled && action == glfw.Press {
		t.exit = true
	}
}

func (t *exitTracker) cursor(x, y float64) {
	if !t.enabled {
		return
	}
	if !t.hasPos {
		t.startX, t.startY, t.hasPos = x, y, true
		return
	}
	if math.Hypot(x-t.startX, y-t.startY) > mouseExitDistance {
		t.exit = true
	}
}

// Run drives the engine from the window's event loop until the window is
// closed, ctx is cancelled, or (fullscreen only) the user touches a key,
// a mouse button or moves the mouse. Escape always closes.
func Run(ctx context.Context, win *Window, engine *Engine) error {
	width, height := win.FramebufferSize()
	if err := engine.Initialize(width, height); err != nil {
		return err
	}
	defer engine.Cleanup()

	exit := &exitTracker{enabled: !win.Windowed()}
	w := win.glfw
	w.SetKeyCallback(func(w *glfw.Window, key glfw.Key, scancode int, action glfw.Action, mods glfw.ModifierKey) {
		if key == glfw.KeyEscape && action == glfw.Press {
			w.SetShouldClose(true)
			return
		}
		exit.key(action)
	})
	w.SetMouseButtonCallback(func(w *glfw.Window, button glfw.MouseButton, action glfw.Action, mods glfw.ModifierKey) {
		exit.button(action)
	})
	w.SetCursorPosCallback(func(w *glfw.Window, x, y float64) {
		exit.cursor(x, y)
	})

	for !w.ShouldClose() && !exit.exit {
		select {
		case <-ctx.Done():
			return nil
		default:
		}
		glfw.PollEvents()
		width, height = win.FramebufferSize()
		engine.RenderFrame(width, height)
	}
	return nil
}
