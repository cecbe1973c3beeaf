package pose

import (
	"fmt"
	"time"

	"gopkg.in/yaml.v3"
)

// StabilizerConfig holds the smoothing and fallback timing parameters.
type StabilizerConfig struct {
	// RotationSmoothing and TranslationSmoothing are exponential
	// smoothing factors in [0,1). Larger values mean heavier smoothing
	// and more lag.
	RotationSmoothing    float64 `json:"rotation_smoothing" yaml:"rotation_smoothing"`
	TranslationSmoothing float64 `json:"translation_smoothing" yaml:"translation_smoothing"`

	// FreezeThreshold is the gap length under which a missing observation
	// freezes the last good pose in place.
	FreezeThreshold time.Duration `json:"freeze_threshold" yaml:"freeze_threshold"`

	// LostThreshold is the gap length at which tracking is declared lost
	// and the overlay must be suppressed.
	LostThreshold time.Duration `json:"lost_threshold" yaml:"lost_threshold"`
}

// DefaultStabilizerConfig returns the recommended stabilizer tuning.
func DefaultStabilizerConfig() StabilizerConfig {
	return StabilizerConfig{
		RotationSmoothing:    0.3,
		TranslationSmoothing: 0.3,
		FreezeThreshold:      800 * time.Millisecond,
		LostThreshold:        2000 * time.Millisecond,
	}
}

// UnmarshalYAML accepts human-readable durations ("800ms", "2s") for the
// threshold fields. Absent keys keep their current values.
func (c *StabilizerConfig) UnmarshalYAML(value *yaml.Node) error {
	var raw struct {
		RotationSmoothing    *float64 `yaml:"rotation_smoothing"`
		TranslationSmoothing *float64 `yaml:"translation_smoothing"`
		FreezeThreshold      *string  `yaml:"freeze_threshold"`
		LostThreshold        *string  `yaml:"lost_threshold"`
	}
	if err := value.Decode(&raw); err != nil {
		return err
	}
	if raw.RotationSmoothing != nil {
		c.RotationSmoothing = *raw.RotationSmoothing
	}
	if raw.TranslationSmoothing != nil {
		c.TranslationSmoothing = *raw.TranslationSmoothing
	}
	if raw.FreezeThreshold != nil {
		d, err := time.ParseDuration(*raw.FreezeThreshold)
		if err != nil {
			return fmt.Errorf("pose: freeze_threshold: %w", err)
		}
		c.FreezeThreshold = d
	}
	if raw.LostThreshold != nil {
		d, err := time.ParseDuration(*raw.LostThreshold)
		if err != nil {
			return fmt.Errorf("pose: lost_threshold: %w", err)
		}
		c.LostThreshold = d
	}
	return nil
}

// Validate checks the config for setup faults.
func (c StabilizerConfig) Validate() error {
	if c.RotationSmoothing < 0 || c.RotationSmoothing >= 1 {
		return fmt.Errorf("pose: rotation_smoothing must be in [0,1), got %v", c.RotationSmoothing)
	}
	if c.TranslationSmoothing < 0 || c.TranslationSmoothing >= 1 {
		return fmt.Errorf("pose: translation_smoothing must be in [0,1), got %v", c.TranslationSmoothing)
	}
	if c.FreezeThreshold <= 0 {
		return fmt.Errorf("pose: freeze_threshold must be positive, got %v", c.FreezeThreshold)
	}
	if c.LostThreshold <= c.FreezeThreshold {
		return fmt.Errorf("pose: lost_threshold %v must exceed freeze_threshold %v", c.LostThreshold, c.FreezeThreshold)
	}
	return nil
}

// Stabilizer smooths raw poses over time and bridges short observation gaps.
// One instance per tracked rigid body; Advance must be called exactly once
// per frame and is not safe for concurrent use.
type Stabilizer struct {
	cfg StabilizerConfig

	current StabilizedPose
	hasPose bool
}

// NewStabilizer creates a stabilizer in the Lost state (no pose yet).
func NewStabilizer(cfg StabilizerConfig) (*Stabilizer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Stabilizer{
		cfg:     cfg,
		current: StabilizedPose{State: StateLost},
	}, nil
}

// Current returns the most recent stabilized pose without advancing.
func (s *Stabilizer) Current() StabilizedPose {
	return s.current
}

// Advance consumes one frame's raw pose and the elapsed time since the
// previous frame, and returns the new stabilized pose.
//
// A valid raw pose always transitions to Tracking, smoothing against the
// previous pose (or adopted exactly on a cold start). An invalid raw pose
// holds the last pose in Frozen until the accumulated gap reaches the lost
// threshold, after which the state is Lost and no pose is available.
func (s *Stabilizer) Advance(raw RawPose, dt time.Duration) StabilizedPose {
	if dt < 0 {
		dt = 0
	}

	if raw.Valid {
		if !s.hasPose {
			// Cold start: adopt the raw pose without smoothing.
			s.current = StabilizedPose{
				Rotation:    raw.Rotation.Normalize(),
				Translation: raw.Translation,
				State:       StateTracking,
				SinceValid:  0,
				Timestamp:   raw.Timestamp,
			}
			s.hasPose = true
			return s.current
		}

		ar := s.cfg.RotationSmoothing
		at := s.cfg.TranslationSmoothing
		s.current = StabilizedPose{
			Rotation:    Slerp(s.current.Rotation, raw.Rotation, 1-ar),
			Translation: Lerp(s.current.Translation, raw.Translation, 1-at),
			State:       StateTracking,
			SinceValid:  0,
			Timestamp:   raw.Timestamp,
		}
		return s.current
	}

	// No usable observation this frame.
	s.current.SinceValid += dt
	s.current.Timestamp = raw.Timestamp

	if !s.hasPose || s.current.SinceValid >= s.cfg.LostThreshold {
		s.current.State = StateLost
		return s.current
	}

	s.current.State = StateFrozen
	return s.current
}
