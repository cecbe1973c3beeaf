// Package landmarks defines the named 2D observations produced by a face
// landmark detector and the fixed 3D reference model they correspond to.
package landmarks

import "time"

// Name identifies one landmark of the tracked face.
type Name string

// The six canonical pose-estimation landmarks.
const (
	NoseTip       Name = "nose_tip"
	Chin          Name = "chin"
	LeftEyeOuter  Name = "left_eye_outer"
	RightEyeOuter Name = "right_eye_outer"
	LeftMouth     Name = "left_mouth"
	RightMouth    Name = "right_mouth"
)

// Names lists every landmark in a fixed order.
var Names = []Name{NoseTip, Chin, LeftEyeOuter, RightEyeOuter, LeftMouth, RightMouth}

// Point is a single 2D landmark in pixel coordinates.
type Point struct {
	X, Y  float64
	Valid bool
}

// Point3 is a 3D position in the rigid-body-local frame.
type Point3 struct {
	X, Y, Z float64
}

// Observation is one frame's worth of detected landmarks.
// A name missing from Points is treated as invalid, never as (0,0).
type Observation struct {
	Points     map[Name]Point
	Confidence float64
	Timestamp  time.Time
}

// Point returns the named landmark and whether it carries a valid position.
func (o Observation) Point(n Name) (Point, bool) {
	p, ok := o.Points[n]
	if !ok || !p.Valid {
		return Point{}, false
	}
	return p, true
}

// ValidCount returns the number of valid points in the observation.
func (o Observation) ValidCount() int {
	count := 0
	for _, p := range o.Points {
		if p.Valid {
			count++
		}
	}
	return count
}

// ReferenceModel maps landmark names to their 3D positions in an arbitrary
// rigid-body-local frame. Constant for the lifetime of the process.
type ReferenceModel map[Name]Point3

// DefaultReferenceModel returns the approximate face model used for pose
// estimation, in normalized units centered at the nose tip.
func DefaultReferenceModel() ReferenceModel {
	return ReferenceModel{
		NoseTip:       {0.0, 0.0, 0.0},
		Chin:          {0.0, -0.33, -0.07},
		LeftEyeOuter:  {-0.23, 0.17, -0.02},
		RightEyeOuter: {0.23, 0.17, -0.02},
		LeftMouth:     {-0.15, -0.15, -0.03},
		RightMouth:    {0.15, -0.15, -0.03},
	}
}

// Correspondence pairs a 3D reference point with its 2D observation.
type Correspondence struct {
	Name  Name
	Model Point3
	Image Point
}

// Match returns the correspondences between an observation and the reference
// model, keeping only valid observed points. Order follows Names so results
// are deterministic across frames.
func Match(obs Observation, ref ReferenceModel) []Correspondence {
	var out []Correspondence
	for _, n := range Names {
		m, ok := ref[n]
		if !ok {
			continue
		}
		p, ok := obs.Point(n)
		if !ok {
			continue
		}
		out = append(out, Correspondence{Name: n, Model: m, Image: p})
	}
	return out
}
