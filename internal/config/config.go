// Package config loads the headlock configuration: defaults, an optional
// YAML file, then HEADLOCK_* environment overrides, in that order.
package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/mwestergaard/go-headlock/pkg/camera"
	"github.com/mwestergaard/go-headlock/pkg/compositor"
	"github.com/mwestergaard/go-headlock/pkg/detect"
	"github.com/mwestergaard/go-headlock/pkg/hud"
	"github.com/mwestergaard/go-headlock/pkg/pose"
	"github.com/mwestergaard/go-headlock/pkg/transform"
)

// Config aggregates every stage's configuration.
type Config struct {
	Camera     camera.Config         `yaml:"camera"`
	Detector   detect.Config         `yaml:"detector"`
	Solver     pose.SolverConfig     `yaml:"solver"`
	Stabilizer pose.StabilizerConfig `yaml:"stabilizer"`
	Transform  transform.Config      `yaml:"transform"`
	Compositor compositor.Config     `yaml:"compositor"`
	HUD        hud.Config            `yaml:"hud"`

	// FOVDegrees seeds the camera intrinsics when no calibration is
	// available.
	FOVDegrees float64 `yaml:"fov_degrees"`

	// FrameSkip renders the overlay only every (FrameSkip+1)th frame.
	FrameSkip int `yaml:"frame_skip"`

	// WebPort serves the dashboard; empty disables it.
	WebPort string `yaml:"web_port"`
}

// Default returns the production defaults.
func Default() Config {
	return Config{
		Camera:     camera.DefaultConfig(),
		Detector:   detect.DefaultConfig(),
		Solver:     pose.DefaultSolverConfig(),
		Stabilizer: pose.DefaultStabilizerConfig(),
		Transform:  transform.DefaultConfig(),
		Compositor: compositor.DefaultConfig(),
		HUD:        hud.DefaultConfig(),
		FOVDegrees: 60,
		WebPort:    "8090",
	}
}

// Load builds the config from defaults, the YAML file at path (optional,
// pass "" to skip), and environment overrides.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}

	applyEnv(&cfg)

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// applyEnv applies HEADLOCK_* environment overrides.
func applyEnv(cfg *Config) {
	if v := os.Getenv("HEADLOCK_DEVICE"); v != "" {
		if id, err := strconv.Atoi(v); err == nil {
			cfg.Camera.DeviceID = id
		}
	}
	if v := os.Getenv("HEADLOCK_MODEL_PATH"); v != "" {
		cfg.Detector.ModelPath = v
	}
	if v := os.Getenv("HEADLOCK_WEB_PORT"); v != "" {
		cfg.WebPort = v
	}
	if v := os.Getenv("HEADLOCK_FOV"); v != "" {
		if fov, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.FOVDegrees = fov
		}
	}
}

// Validate checks every stage's configuration; any failure is a setup
// fault.
func (c Config) Validate() error {
	if err := c.Camera.Validate(); err != nil {
		return err
	}
	if err := c.Detector.Validate(); err != nil {
		return err
	}
	if err := c.Solver.Validate(); err != nil {
		return err
	}
	if err := c.Stabilizer.Validate(); err != nil {
		return err
	}
	if err := c.Transform.Validate(); err != nil {
		return err
	}
	if err := c.Compositor.Validate(); err != nil {
		return err
	}
	if c.FOVDegrees <= 0 || c.FOVDegrees >= 180 {
		return fmt.Errorf("config: fov_degrees must be in (0,180), got %v", c.FOVDegrees)
	}
	if c.FrameSkip < 0 {
		return fmt.Errorf("config: frame_skip must not be negative, got %d", c.FrameSkip)
	}
	return nil
}
