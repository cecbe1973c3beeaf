package camera

import (
	"fmt"
	"image"
	"image/draw"
	"time"

	"gocv.io/x/gocv"
)

// Source supplies background frames to the pipeline, one per tick.
type Source interface {
	// ReadFrame returns the next frame as RGBA.
	ReadFrame() (*image.RGBA, error)

	// Close releases the capture device.
	Close() error
}

// Webcam is a Source backed by a local capture device via OpenCV.
type Webcam struct {
	cap *gocv.VideoCapture
	cfg Config
	buf gocv.Mat
}

// OpenWebcam opens the configured capture device, retrying per config.
func OpenWebcam(cfg Config) (*Webcam, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var cap *gocv.VideoCapture
	var err error
	for attempt := 0; attempt <= cfg.RetryAttempts; attempt++ {
		cap, err = gocv.OpenVideoCapture(cfg.DeviceID)
		if err == nil && cap.IsOpened() {
			break
		}
		if cap != nil {
			cap.Close()
			cap = nil
		}
		time.Sleep(cfg.RetryDelay)
	}
	if cap == nil || !cap.IsOpened() {
		return nil, fmt.Errorf("camera: open device %d: %w", cfg.DeviceID, err)
	}

	cap.Set(gocv.VideoCaptureFrameWidth, float64(cfg.Width))
	cap.Set(gocv.VideoCaptureFrameHeight, float64(cfg.Height))
	cap.Set(gocv.VideoCaptureFPS, float64(cfg.Framerate))

	return &Webcam{cap: cap, cfg: cfg, buf: gocv.NewMat()}, nil
}

// ReadFrame grabs the next frame, retrying transient read failures.
func (w *Webcam) ReadFrame() (*image.RGBA, error) {
	for attempt := 0; attempt <= w.cfg.RetryAttempts; attempt++ {
		if ok := w.cap.Read(&w.buf); ok && !w.buf.Empty() {
			return matToRGBA(w.buf)
		}
		time.Sleep(w.cfg.RetryDelay)
	}
	return nil, fmt.Errorf("camera: failed to read frame after %d attempts", w.cfg.RetryAttempts+1)
}

// Close releases the capture device.
func (w *Webcam) Close() error {
	w.buf.Close()
	return w.cap.Close()
}

// matToRGBA converts a BGR Mat into an RGBA image.
func matToRGBA(m gocv.Mat) (*image.RGBA, error) {
	img, err := m.ToImage()
	if err != nil {
		return nil, fmt.Errorf("camera: convert frame: %w", err)
	}
	if rgba, ok := img.(*image.RGBA); ok {
		return rgba, nil
	}
	out := image.NewRGBA(img.Bounds())
	draw.Draw(out, out.Bounds(), img, img.Bounds().Min, draw.Src)
	return out, nil
}
