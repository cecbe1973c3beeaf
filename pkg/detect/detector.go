// Package detect produces named 2D landmark observations from camera frames
// using local face detection.
package detect

import (
	"fmt"
	"time"

	"github.com/mwestergaard/go-headlock/pkg/landmarks"
)

// Config holds detector configuration.
type Config struct {
	// ModelPath points to the YuNet ONNX model.
	ModelPath string `json:"model_path" yaml:"model_path"`

	// ConfidenceThresh is the minimum face score (default 0.5).
	ConfidenceThresh float64 `json:"confidence_thresh" yaml:"confidence_thresh"`

	// NMSThresh is the non-maximum-suppression overlap threshold.
	NMSThresh float64 `json:"nms_thresh" yaml:"nms_thresh"`

	// Model input size.
	InputWidth  int `json:"input_width" yaml:"input_width"`
	InputHeight int `json:"input_height" yaml:"input_height"`
}

// DefaultConfig returns production defaults for YuNet.
func DefaultConfig() Config {
	return Config{
		ModelPath:        "models/face_detection_yunet.onnx",
		ConfidenceThresh: 0.5,
		NMSThresh:        0.3,
		InputWidth:       320,
		InputHeight:      320,
	}
}

// Validate checks the config for setup faults.
func (c Config) Validate() error {
	if c.ModelPath == "" {
		return fmt.Errorf("detect: model_path is required")
	}
	if c.ConfidenceThresh < 0 || c.ConfidenceThresh > 1 {
		return fmt.Errorf("detect: confidence_thresh must be in [0,1], got %v", c.ConfidenceThresh)
	}
	if c.InputWidth < 32 || c.InputHeight < 32 {
		return fmt.Errorf("detect: input size %dx%d too small", c.InputWidth, c.InputHeight)
	}
	return nil
}

// Detection is one detected face with its named landmarks in pixel space.
type Detection struct {
	// Bounding box in pixels.
	X, Y, W, H float64

	Confidence float64

	// Points holds the five YuNet facial landmarks by name. The chin is
	// not produced by this model and is simply absent.
	Points map[landmarks.Name]landmarks.Point
}

// Area returns the bounding box area.
func (d Detection) Area() float64 {
	return d.W * d.H
}

// faceRowLen is the YuNet output row width: box (4), five landmark
// coordinate pairs (10), score (1).
const faceRowLen = 15

// yunetLandmarkOrder maps the model's landmark pair order to names.
var yunetLandmarkOrder = []landmarks.Name{
	landmarks.RightEyeOuter,
	landmarks.LeftEyeOuter,
	landmarks.NoseTip,
	landmarks.RightMouth,
	landmarks.LeftMouth,
}

// parseFaceRow decodes one YuNet output row into a Detection.
func parseFaceRow(row [faceRowLen]float64) Detection {
	d := Detection{
		X:          row[0],
		Y:          row[1],
		W:          row[2],
		H:          row[3],
		Confidence: row[14],
		Points:     make(map[landmarks.Name]landmarks.Point, len(yunetLandmarkOrder)),
	}
	for i, name := range yunetLandmarkOrder {
		d.Points[name] = landmarks.Point{
			X:     row[4+2*i],
			Y:     row[5+2*i],
			Valid: true,
		}
	}
	return d
}

// SelectBest picks the face to track from multiple detections, weighting
// confidence over apparent size.
func SelectBest(dets []Detection) *Detection {
	if len(dets) == 0 {
		return nil
	}
	if len(dets) == 1 {
		return &dets[0]
	}

	maxArea := 0.0
	for _, d := range dets {
		if d.Area() > maxArea {
			maxArea = d.Area()
		}
	}

	bestScore := -1.0
	var best *Detection
	for i := range dets {
		score := dets[i].Confidence * 0.7
		if maxArea > 0 {
			score += (dets[i].Area() / maxArea) * 0.3
		}
		if score > bestScore {
			bestScore = score
			best = &dets[i]
		}
	}
	return best
}

// Observation converts a detection into the landmark observation consumed
// by the pose solver.
func (d Detection) Observation(ts time.Time) landmarks.Observation {
	pts := make(map[landmarks.Name]landmarks.Point, len(d.Points))
	for n, p := range d.Points {
		pts[n] = p
	}
	return landmarks.Observation{
		Points:     pts,
		Confidence: d.Confidence,
		Timestamp:  ts,
	}
}
