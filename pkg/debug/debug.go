// Package debug provides global gates for verbose diagnostics.
package debug

import "fmt"

// Enabled controls whether general debug logging is active.
var Enabled bool

// Tracking controls the very chatty per-frame tracking logs
// (detections, solver results, state transitions).
var Tracking bool

// Log prints a message only if debug mode is enabled.
func Log(format string, args ...interface{}) {
	if Enabled {
		fmt.Printf(format, args...)
	}
}

// TrackLog prints a message only if tracking debug mode is enabled.
func TrackLog(format string, args ...interface{}) {
	if Tracking {
		fmt.Printf(format, args...)
	}
}
