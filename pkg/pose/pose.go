package pose

import "time"

// RawPose is a single-frame pose candidate in camera space.
// Valid=false is an expected outcome (too few landmarks, solver
// non-convergence), not an error.
type RawPose struct {
	Rotation    Quat
	Translation Vec3

	// ReprojectionError is the RMS pixel error of the solve.
	ReprojectionError float64

	Timestamp time.Time
	Valid     bool
}

// State is the stabilizer's tracking state.
type State int

const (
	// StateTracking means a valid pose was recently smoothed in.
	StateTracking State = iota
	// StateFrozen means the observation is missing but within the grace
	// window; the last good pose is held unmodified.
	StateFrozen
	// StateLost means the grace window was exceeded; no pose is available
	// and downstream must suppress rendering.
	StateLost
)

// String returns the state name for logs and diagnostics.
func (s State) String() string {
	switch s {
	case StateTracking:
		return "tracking"
	case StateFrozen:
		return "frozen"
	case StateLost:
		return "lost"
	default:
		return "unknown"
	}
}

// StabilizedPose is the smoothed pose carried across frames, owned
// exclusively by the Stabilizer.
type StabilizedPose struct {
	Rotation    Quat
	Translation Vec3
	State       State

	// SinceValid is the accumulated time since the last valid observation.
	SinceValid time.Duration

	Timestamp time.Time
}

// HasPose reports whether the pose is usable for rendering.
func (p StabilizedPose) HasPose() bool {
	return p.State != StateLost
}
