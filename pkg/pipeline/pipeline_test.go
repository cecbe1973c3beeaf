package pipeline

import (
	"errors"
	"image"
	"image/color"
	"testing"
	"time"

	"github.com/mwestergaard/go-headlock/pkg/camera"
	"github.com/mwestergaard/go-headlock/pkg/compositor"
	"github.com/mwestergaard/go-headlock/pkg/hud"
	"github.com/mwestergaard/go-headlock/pkg/landmarks"
	"github.com/mwestergaard/go-headlock/pkg/pose"
	"github.com/mwestergaard/go-headlock/pkg/transform"
)

const frameW, frameH = 320, 240

// fakeRenderer returns a solid opaque overlay and records calls.
type fakeRenderer struct {
	calls int
	size  image.Point
	err   error
}

func (f *fakeRenderer) Render(t transform.RenderTransforms) (*image.RGBA, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	img := image.NewRGBA(image.Rect(0, 0, f.size.X, f.size.Y))
	for y := 0; y < f.size.Y; y++ {
		for x := 0; x < f.size.X; x++ {
			img.SetRGBA(x, y, color.RGBA{255, 0, 0, 255})
		}
	}
	return img, nil
}

type fakeDiag struct {
	lastState pose.State
	lastFPS   float64
	calls     int
}

func (f *fakeDiag) UpdateTracking(state pose.State, fps float64) {
	f.lastState = state
	f.lastFPS = fps
	f.calls++
}

func testParams() Params {
	return Params{
		Intrinsics: camera.IntrinsicsFromFOV(frameW, frameH, 60),
		Reference:  landmarks.DefaultReferenceModel(),
		Solver:     pose.DefaultSolverConfig(),
		Stabilizer: pose.DefaultStabilizerConfig(),
		Transform:  transform.DefaultConfig(),
		Compositor: compositor.DefaultConfig(),
		HUD:        hud.Config{}, // keep frames pristine for pixel checks
	}
}

func background() *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, frameW, frameH))
	for i := 3; i < len(img.Pix); i += 4 {
		img.Pix[i] = 255
	}
	return img
}

// frontalObservation projects the reference model at a plausible pose.
func frontalObservation(in camera.Intrinsics, ts time.Time) landmarks.Observation {
	ref := landmarks.DefaultReferenceModel()
	tv := pose.Vec3{X: 0, Y: 0, Z: 2}
	pts := make(map[landmarks.Name]landmarks.Point, len(ref))
	for name, m := range ref {
		u, v := in.Project(m.X+tv.X, m.Y+tv.Y, m.Z+tv.Z)
		pts[name] = landmarks.Point{X: u, Y: v, Valid: true}
	}
	return landmarks.Observation{Points: pts, Confidence: 1.0, Timestamp: ts}
}

func TestPipeline_TrackedFrameComposites(t *testing.T) {
	params := testParams()
	r := &fakeRenderer{size: image.Pt(frameW, frameH)}
	diag := &fakeDiag{}
	params.Renderer = r
	params.Diagnostics = diag

	p, err := New(params)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	now := time.Now()
	out, st, err := p.Process(background(), frontalObservation(params.Intrinsics, now), now)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}

	if st.State != pose.StateTracking {
		t.Errorf("Expected tracking, got %v", st.State)
	}
	if r.calls != 1 {
		t.Errorf("Expected one render call, got %d", r.calls)
	}
	if got := out.RGBAAt(10, 10); got != (color.RGBA{255, 0, 0, 255}) {
		t.Errorf("Expected composited overlay pixel, got %v", got)
	}
	if diag.calls != 1 || diag.lastState != pose.StateTracking {
		t.Error("Expected diagnostics update with tracking state")
	}
}

func TestPipeline_NoObservationPassesFrameThrough(t *testing.T) {
	params := testParams()
	r := &fakeRenderer{size: image.Pt(frameW, frameH)}
	params.Renderer = r

	p, err := New(params)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	bg := background()
	now := time.Now()
	out, st, err := p.Process(bg, landmarks.Observation{Timestamp: now}, now)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}

	if st.State != pose.StateLost {
		t.Errorf("Expected lost with no pose history, got %v", st.State)
	}
	if out != bg {
		t.Error("Expected frame to pass through without compositing")
	}
	if r.calls != 0 {
		t.Error("Renderer must not run when the pose is lost")
	}
}

func TestPipeline_FreezeBridgesDetectionGap(t *testing.T) {
	params := testParams()
	r := &fakeRenderer{size: image.Pt(frameW, frameH)}
	params.Renderer = r

	p, err := New(params)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	start := time.Now()
	_, _, _ = p.Process(background(), frontalObservation(params.Intrinsics, start), start)

	// One dropped detection 100ms later: overlay keeps rendering with
	// the held pose.
	later := start.Add(100 * time.Millisecond)
	_, st, err := p.Process(background(), landmarks.Observation{Timestamp: later}, later)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if st.State != pose.StateFrozen {
		t.Errorf("Expected frozen, got %v", st.State)
	}
	if r.calls != 2 {
		t.Errorf("Expected overlay rendered during freeze, got %d calls", r.calls)
	}
}

func TestPipeline_LongGapSuppressesOverlay(t *testing.T) {
	params := testParams()
	r := &fakeRenderer{size: image.Pt(frameW, frameH)}
	params.Renderer = r

	p, err := New(params)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	now := time.Now()
	p.Process(background(), frontalObservation(params.Intrinsics, now), now)

	now = now.Add(2500 * time.Millisecond)
	bg := background()
	out, st, _ := p.Process(bg, landmarks.Observation{Timestamp: now}, now)

	if st.State != pose.StateLost {
		t.Errorf("Expected lost after 2.5s gap, got %v", st.State)
	}
	if out != bg {
		t.Error("Lost frame must pass through unmodified")
	}
}

func TestPipeline_MismatchedRendererOutputIsFatal(t *testing.T) {
	params := testParams()
	params.Renderer = &fakeRenderer{size: image.Pt(64, 64)} // wrong size

	p, err := New(params)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	now := time.Now()
	_, _, err = p.Process(background(), frontalObservation(params.Intrinsics, now), now)
	if err == nil {
		t.Error("Expected fatal error for mismatched overlay dimensions")
	}
}

func TestPipeline_RendererErrorIsTransient(t *testing.T) {
	params := testParams()
	params.Renderer = &fakeRenderer{size: image.Pt(frameW, frameH), err: errors.New("gpu busy")}

	p, err := New(params)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	bg := background()
	now := time.Now()
	out, _, err := p.Process(bg, frontalObservation(params.Intrinsics, now), now)
	if err != nil {
		t.Fatalf("Renderer error must not be fatal: %v", err)
	}
	if out != bg {
		t.Error("Expected plain frame after renderer failure")
	}
}

func TestPipeline_NilRendererDiagnosticOnly(t *testing.T) {
	p, err := New(testParams())
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	bg := background()
	now := time.Now()
	out, st, err := p.Process(bg, frontalObservation(testParams().Intrinsics, now), now)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if st.State != pose.StateTracking {
		t.Errorf("Tracking should work without a renderer, got %v", st.State)
	}
	if out != bg {
		t.Error("Expected pass-through frame without a renderer")
	}
}

func TestPipeline_FrameSkip(t *testing.T) {
	params := testParams()
	r := &fakeRenderer{size: image.Pt(frameW, frameH)}
	params.Renderer = r
	params.FrameSkip = 1 // render every 2nd frame

	p, err := New(params)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	now := time.Now()
	for i := 0; i < 4; i++ {
		now = now.Add(33 * time.Millisecond)
		p.Process(background(), frontalObservation(params.Intrinsics, now), now)
	}
	if r.calls != 2 {
		t.Errorf("Expected 2 renders over 4 frames with skip 1, got %d", r.calls)
	}
}

func TestNew_RejectsBadSetup(t *testing.T) {
	params := testParams()
	params.Stabilizer.FreezeThreshold = 0
	if _, err := New(params); err == nil {
		t.Error("Expected setup error for invalid stabilizer config")
	}

	params = testParams()
	params.FrameSkip = -1
	if _, err := New(params); err == nil {
		t.Error("Expected setup error for negative frame skip")
	}
}
