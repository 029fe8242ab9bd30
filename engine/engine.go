package engine

import (
	"fmt"
	"sync"

	"github.com/heliosrt/helios/engine/assets"
	"github.com/heliosrt/helios/engine/config"
	"github.com/heliosrt/helios/engine/core"
	"github.com/heliosrt/helios/engine/gpu"
	"github.com/heliosrt/helios/engine/gpu/sim"
	"github.com/heliosrt/helios/engine/gpu/vulkan"
	"github.com/heliosrt/helios/engine/math"
	"github.com/heliosrt/helios/engine/platform"
	"github.com/heliosrt/helios/engine/renderer"
)

type Stage uint8

const (
	// Engine is in an uninitialized state
	EngineStageUninitialized Stage = iota
	// Engine is currently initializing
	EngineStageInitializing
	// Engine initialization is complete
	EngineStageInitialized
	// Engine is currently running
	EngineStageRunning
	// Engine is in the process of shutting down
	EngineStageShuttingDown
)

type Engine struct {
	currentStage Stage
	cfg          *config.Config
	scene        *renderer.Scene

	platform *platform.Platform
	device   gpu.Device
	renderer *renderer.FrameRenderer
	camera   *renderer.Camera
	watcher  *assets.ShaderWatcher

	clock    *core.Clock
	lastTime float64

	mutex     sync.Mutex
	isRunning bool
}

func New(cfg *config.Config, scene *renderer.Scene) (*Engine, error) {
	if scene == nil {
		return nil, fmt.Errorf("engine needs a scene to render")
	}
	core.SetLogLevel(cfg.CoreLogLevel())

	return &Engine{
		currentStage: EngineStageUninitialized,
		cfg:          cfg,
		scene:        scene,
		clock:        core.NewClock(),
	}, nil
}

func (e *Engine) Initialize() error {
	e.currentStage = EngineStageInitializing

	if !e.cfg.Device.Headless {
		p, err := platform.New()
		if err != nil {
			return err
		}
		if err := p.Startup(e.cfg.Window.Title,
			e.cfg.Window.PosX, e.cfg.Window.PosY,
			e.cfg.Window.Width, e.cfg.Window.Height); err != nil {
			return err
		}
		e.platform = p
	}

	device, err := e.createDevice()
	if err != nil {
		return err
	}
	e.device = device

	e.camera = renderer.NewCamera()
	e.camera.SetPosition(math.NewVec3(
		e.cfg.Camera.Position[0], e.cfg.Camera.Position[1], e.cfg.Camera.Position[2]))
	e.camera.SetFovY(e.cfg.Camera.FovY)
	e.camera.SetDepth(e.cfg.Camera.Depth)

	shader, err := assets.LoadShader(e.cfg.Shader.Path)
	if err != nil {
		return err
	}

	extent := gpu.Extent{Width: e.cfg.Window.Width, Height: e.cfg.Window.Height}
	if e.platform != nil {
		extent = e.platform.DrawableExtent()
	}
	e.renderer, err = renderer.NewFrameRenderer(device, e.scene, e.camera, extent, shader.Source)
	if err != nil {
		return err
	}

	if e.cfg.Shader.Watch {
		watcher, err := assets.NewShaderWatcher(e.cfg.Shader.Path)
		if err != nil {
			// Hot reload is a development convenience, not a requirement.
			core.LogWarn("shader watcher unavailable: %s", err)
		} else {
			e.watcher = watcher
		}
	}

	core.MetricsInitialize()
	e.currentStage = EngineStageInitialized
	core.LogInfo("engine initialized on device %q", device.Name())
	return nil
}

func (e *Engine) createDevice() (gpu.Device, error) {
	switch e.cfg.Device.Backend {
	case config.BackendSim:
		return sim.New(), nil
	case config.BackendVulkan:
		if e.platform == nil {
			return nil, fmt.Errorf("vulkan backend needs a window; disable headless mode")
		}
		return vulkan.New(e.cfg.Window.Title, e.platform.Window)
	}
	return nil, fmt.Errorf("unknown device backend %q", e.cfg.Device.Backend)
}

func (e *Engine) Run() error {
	if e.currentStage != EngineStageInitialized {
		return fmt.Errorf("engine must be initialized before running")
	}
	e.currentStage = EngineStageRunning
	e.setRunning(true)

	e.clock.Start()
	e.clock.Update()
	e.lastTime = e.clock.Elapsed()

	var framesRendered uint32

	for e.running() {
		if e.platform != nil && !e.platform.PumpMessages() {
			break
		}

		e.clock.Update()
		currentTime := e.clock.Elapsed()
		delta := currentTime - e.lastTime

		e.maybeReloadShader()

		if err := e.renderer.Render(); err != nil {
			core.LogError("frame render failed, shutting down: %s", err)
			e.shutdownInternal()
			return err
		}
		framesRendered++

		core.MetricsUpdate(delta)
		e.lastTime = currentTime

		if e.cfg.Device.Headless && framesRendered >= e.cfg.Device.FrameLimit {
			core.LogInfo("headless run complete: %d frames", framesRendered)
			break
		}
	}

	e.shutdownInternal()
	return nil
}

// maybeReloadShader applies a pending shader edit between frames. A
// reload failure keeps the current pipelines running.
func (e *Engine) maybeReloadShader() {
	if e.watcher == nil {
		return
	}
	select {
	case path := <-e.watcher.Changed():
		shader, err := assets.LoadShader(path)
		if err != nil {
			core.LogError("shader reload skipped: %s", err)
			return
		}
		if err := e.renderer.ReloadShader(shader.Source); err != nil {
			core.LogError("shader reload failed: %s", err)
		}
	default:
	}
}

// Shutdown requests the run loop to stop. Safe to call from another
// goroutine, the signal handler included; teardown itself happens on
// the main thread when Run returns.
func (e *Engine) Shutdown() error {
	e.setRunning(false)
	return nil
}

func (e *Engine) shutdownInternal() {
	if e.currentStage == EngineStageShuttingDown {
		return
	}
	e.currentStage = EngineStageShuttingDown

	if e.watcher != nil {
		e.watcher.Close()
	}
	if e.renderer != nil {
		e.renderer.Destroy()
	}
	if e.device != nil {
		e.device.Destroy()
	}
	if e.platform != nil {
		if err := e.platform.Shutdown(); err != nil {
			core.LogError("platform shutdown: %s", err)
		}
	}
	fps, frameMS := core.MetricsFrame()
	core.LogInfo("engine shut down after %.2fs (%.0f fps, %.2fms avg frame)",
		e.clock.Elapsed(), fps, frameMS)
}

func (e *Engine) running() bool {
	e.mutex.Lock()
	defer e.mutex.Unlock()
	return e.isRunning
}

func (e *Engine) setRunning(v bool) {
	e.mutex.Lock()
	defer e.mutex.Unlock()
	e.isRunning = v
}

// Stage reports the engine's lifecycle stage.
func (e *Engine) Stage() Stage {
	return e.currentStage
}
