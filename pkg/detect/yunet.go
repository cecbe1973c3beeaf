package detect

import (
	"fmt"
	"image"
	"os"
	"sync"
	"time"

	"gocv.io/x/gocv"

	"github.com/mwestergaard/go-headlock/pkg/debug"
	"github.com/mwestergaard/go-headlock/pkg/landmarks"
)

// Detector turns camera frames into landmark observations.
type Detector interface {
	// Detect finds the tracked face in the frame. A frame with no face
	// returns an observation with no points, not an error.
	Detect(frame *image.RGBA) (landmarks.Observation, error)

	// Close releases resources.
	Close() error
}

// YuNet uses OpenCV's FaceDetectorYN, whose output includes the five facial
// landmarks the pose solver consumes.
type YuNet struct {
	detector gocv.FaceDetectorYN
	cfg      Config
	mu       sync.Mutex // Protects inference
}

// NewYuNet loads the model and creates the detector.
func NewYuNet(cfg Config) (*YuNet, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if _, err := os.Stat(cfg.ModelPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("detect: model file not found: %s", cfg.ModelPath)
	}

	detector := gocv.NewFaceDetectorYNWithParams(
		cfg.ModelPath,
		"", // No config file needed for ONNX
		image.Pt(cfg.InputWidth, cfg.InputHeight),
		float32(cfg.ConfidenceThresh),
		float32(cfg.NMSThresh),
		5000, // Top K
		int(gocv.NetBackendDefault),
		int(gocv.NetTargetCPU),
	)

	return &YuNet{detector: detector, cfg: cfg}, nil
}

// Detect runs face detection and returns the best face's landmarks.
func (y *YuNet) Detect(frame *image.RGBA) (landmarks.Observation, error) {
	y.mu.Lock()
	defer y.mu.Unlock()

	ts := time.Now()
	empty := landmarks.Observation{Timestamp: ts}

	if frame == nil || frame.Bounds().Empty() {
		return empty, fmt.Errorf("detect: empty frame")
	}

	rgba, err := gocv.ImageToMatRGBA(frame)
	if err != nil {
		return empty, fmt.Errorf("detect: convert frame: %w", err)
	}
	defer rgba.Close()
	bgr := gocv.NewMat()
	defer bgr.Close()
	gocv.CvtColor(rgba, &bgr, gocv.ColorRGBAToBGR)

	y.detector.SetInputSize(image.Pt(bgr.Cols(), bgr.Rows()))

	faces := gocv.NewMat()
	defer faces.Close()
	y.detector.Detect(bgr, &faces)

	dets := make([]Detection, 0, faces.Rows())
	for r := 0; r < faces.Rows(); r++ {
		var row [faceRowLen]float64
		for c := 0; c < faceRowLen; c++ {
			row[c] = float64(faces.GetFloatAt(r, c))
		}
		dets = append(dets, parseFaceRow(row))
	}

	best := SelectBest(dets)
	if best == nil {
		return empty, nil
	}

	debug.TrackLog("detect: %d face(s), best score %.2f\n", len(dets), best.Confidence)
	return best.Observation(ts), nil
}

// Close releases the detector resources.
func (y *YuNet) Close() error {
	y.mu.Lock()
	defer y.mu.Unlock()
	y.detector.Close()
	return nil
}
