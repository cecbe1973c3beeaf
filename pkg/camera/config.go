// Package camera provides camera intrinsics and frame acquisition for the
// tracking pipeline.
package camera

import (
	"fmt"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds webcam capture parameters.
type Config struct {
	DeviceID  int `json:"device_id" yaml:"device_id"`
	Width     int `json:"width" yaml:"width"`
	Height    int `json:"height" yaml:"height"`
	Framerate int `json:"framerate" yaml:"framerate"`

	// Capture retry behavior for flaky devices.
	RetryAttempts int           `json:"retry_attempts" yaml:"retry_attempts"`
	RetryDelay    time.Duration `json:"retry_delay" yaml:"retry_delay"`
}

// DefaultConfig returns the recommended capture configuration.
func DefaultConfig() Config {
	return Config{
		DeviceID:      0,
		Width:         1280,
		Height:        720,
		Framerate:     30,
		RetryAttempts: 3,
		RetryDelay:    100 * time.Millisecond,
	}
}

// UnmarshalYAML accepts a human-readable retry_delay ("100ms"). Absent
// keys keep their current values.
func (c *Config) UnmarshalYAML(value *yaml.Node) error {
	var raw struct {
		DeviceID      *int    `yaml:"device_id"`
		Width         *int    `yaml:"width"`
		Height        *int    `yaml:"height"`
		Framerate     *int    `yaml:"framerate"`
		RetryAttempts *int    `yaml:"retry_attempts"`
		RetryDelay    *string `yaml:"retry_delay"`
	}
	if err := value.Decode(&raw); err != nil {
		return err
	}
	if raw.DeviceID != nil {
		c.DeviceID = *raw.DeviceID
	}
	if raw.Width != nil {
		c.Width = *raw.Width
	}
	if raw.Height != nil {
		c.Height = *raw.Height
	}
	if raw.Framerate != nil {
		c.Framerate = *raw.Framerate
	}
	if raw.RetryAttempts != nil {
		c.RetryAttempts = *raw.RetryAttempts
	}
	if raw.RetryDelay != nil {
		d, err := time.ParseDuration(*raw.RetryDelay)
		if err != nil {
			return fmt.Errorf("camera: retry_delay: %w", err)
		}
		c.RetryDelay = d
	}
	return nil
}

// Validate checks config values; a failure here is a setup fault and the
// pipeline must refuse to start.
func (c Config) Validate() error {
	if c.Width < 160 || c.Height < 120 {
		return fmt.Errorf("camera: resolution %dx%d too small", c.Width, c.Height)
	}
	if c.Framerate < 1 || c.Framerate > 120 {
		return fmt.Errorf("camera: framerate %d out of range 1-120", c.Framerate)
	}
	if c.RetryAttempts < 0 {
		return fmt.Errorf("camera: retry_attempts must not be negative")
	}
	return nil
}
