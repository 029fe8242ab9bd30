// Package config loads the engine's TOML configuration. Every field has
// a working default, so a missing file starts the demo scene headless on
// the simulated device.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/pelletier/go-toml/v2"

	"github.com/heliosrt/helios/engine/core"
)

// Backend names accepted by the device section.
const (
	BackendSim    = "sim"
	BackendVulkan = "vulkan"
)

type Window struct {
	Title  string `toml:"title"`
	PosX   uint32 `toml:"pos_x"`
	PosY   uint32 `toml:"pos_y"`
	Width  uint32 `toml:"width"`
	Height uint32 `toml:"height"`
}

type Device struct {
	// Backend selects the gpu.Device implementation.
	Backend string `toml:"backend"`
	// Headless skips window creation and renders FrameLimit frames.
	Headless   bool   `toml:"headless"`
	FrameLimit uint32 `toml:"frame_limit"`
}

type Camera struct {
	Position [3]float32 `toml:"position"`
	FovY     float32    `toml:"fov_y"`
	Depth    float32    `toml:"depth"`
}

type Shader struct {
	Path  string `toml:"path"`
	Watch bool   `toml:"watch"`
}

type Config struct {
	LogLevel string `toml:"log_level"`
	Window   Window `toml:"window"`
	Device   Device `toml:"device"`
	Camera   Camera `toml:"camera"`
	Shader   Shader `toml:"shader"`
}

func Default() *Config {
	return &Config{
		LogLevel: "info",
		Window: Window{
			Title:  "Helios",
			PosX:   100,
			PosY:   100,
			Width:  800,
			Height: 600,
		},
		Device: Device{
			Backend:    BackendSim,
			Headless:   true,
			FrameLimit: 3,
		},
		Camera: Camera{
			Position: [3]float32{0, 0, -5},
			FovY:     0.2,
			Depth:    100,
		},
		Shader: Shader{
			Path:  "assets/shaders/raytrace.wgsl",
			Watch: true,
		},
	}
}

// Load reads path over the defaults. A missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		core.LogDebug("no config at %s, using defaults", path)
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("unable to read config %s: %w", path, err)
	}
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("unable to parse config %s: %w", path, err)
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.Device.Backend {
	case BackendSim, BackendVulkan:
	default:
		return fmt.Errorf("unknown device backend %q", c.Device.Backend)
	}
	if c.Window.Width == 0 || c.Window.Height == 0 {
		return fmt.Errorf("window extent %dx%d is empty", c.Window.Width, c.Window.Height)
	}
	if c.Camera.FovY <= 0 {
		return fmt.Errorf("camera fov_y %f must be positive", c.Camera.FovY)
	}
	return nil
}

// CoreLogLevel maps the configured level name onto the logger's levels,
// defaulting to info for anything unrecognized.
func (c *Config) CoreLogLevel() core.LogLevel {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return core.DebugLevel
	case "warn":
		return core.WarnLevel
	case "error":
		return core.ErrorLevel
	default:
		return core.InfoLevel
	}
}
