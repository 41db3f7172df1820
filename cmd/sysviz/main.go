package main

import (
	"os"
	"runtime"
)

// Version info set via ldflags at build time.
var version = "dev"

func init() {
	// GLFW and the WebGPU surface must stay on the main thread.
	runtime.LockOSThread()
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
