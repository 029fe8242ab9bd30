/*
Helios renders a ray-traced frame of the testbed scene, either into a
window on the vulkan backend or headless on the simulated device.
*/
package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/heliosrt/helios/engine"
	"github.com/heliosrt/helios/engine/config"
	"github.com/heliosrt/helios/testbed"
)

func main() {
	cfg, err := config.Load("helios.toml")
	if err != nil {
		panic(err)
	}

	eng, err := engine.New(cfg, testbed.DemoScene())
	if err != nil {
		panic(err)
	}

	if err := eng.Initialize(); err != nil {
		panic(err)
	}

	// signal channel to capture system calls
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT, syscall.SIGQUIT)

	// start shutdown goroutine
	go func() {
		<-sigCh
		_ = eng.Shutdown()
	}()

	// run engine
	if err := eng.Run(); err != nil {
		panic(err)
	}
}
