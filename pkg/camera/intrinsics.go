package camera

import (
	"fmt"
	"math"
)

// Intrinsics describes the pinhole camera model used for pose estimation.
// Set once at startup and read-only thereafter.
type Intrinsics struct {
	Fx, Fy float64 // Focal lengths in pixels
	Cx, Cy float64 // Principal point in pixels
	Width  int
	Height int

	// Lens distortion coefficients (k1, k2, p1, p2). Zero if unknown.
	Dist [4]float64
}

// IntrinsicsFromFOV derives pinhole intrinsics from a horizontal field of
// view, placing the principal point at the frame center. This matches the
// usual webcam case where no calibration is available.
func IntrinsicsFromFOV(width, height int, fovDegrees float64) Intrinsics {
	focal := float64(width) / (2 * math.Tan(fovDegrees*math.Pi/360))
	return Intrinsics{
		Fx:     focal,
		Fy:     focal,
		Cx:     float64(width) / 2,
		Cy:     float64(height) / 2,
		Width:  width,
		Height: height,
	}
}

// Validate checks the intrinsics for setup faults.
func (in Intrinsics) Validate() error {
	if in.Fx <= 0 || in.Fy <= 0 {
		return fmt.Errorf("camera: focal lengths must be positive, got fx=%v fy=%v", in.Fx, in.Fy)
	}
	if in.Width <= 0 || in.Height <= 0 {
		return fmt.Errorf("camera: frame size must be positive, got %dx%d", in.Width, in.Height)
	}
	if in.Cx <= 0 || in.Cy <= 0 || in.Cx >= float64(in.Width) || in.Cy >= float64(in.Height) {
		return fmt.Errorf("camera: principal point (%v, %v) outside frame", in.Cx, in.Cy)
	}
	return nil
}

// Aspect returns the frame aspect ratio (width / height).
func (in Intrinsics) Aspect() float64 {
	return float64(in.Width) / float64(in.Height)
}

// Project maps a camera-space point onto the image plane, applying the
// lens distortion model (radial k1, k2 and tangential p1, p2) to the
// normalized coordinates. Points at or behind the camera project to
// non-finite coordinates.
func (in Intrinsics) Project(x, y, z float64) (u, v float64) {
	xn := x / z
	yn := y / z

	if in.Dist != [4]float64{} {
		k1, k2, p1, p2 := in.Dist[0], in.Dist[1], in.Dist[2], in.Dist[3]
		r2 := xn*xn + yn*yn
		radial := 1 + k1*r2 + k2*r2*r2
		xd := xn*radial + 2*p1*xn*yn + p2*(r2+2*xn*xn)
		yd := yn*radial + p1*(r2+2*yn*yn) + 2*p2*xn*yn
		xn, yn = xd, yd
	}

	return in.Fx*xn + in.Cx, in.Fy*yn + in.Cy
}
