package pose

import (
	"math"
	"testing"
	"time"

	"github.com/mwestergaard/go-headlock/pkg/camera"
	"github.com/mwestergaard/go-headlock/pkg/landmarks"
)

func testIntrinsics() camera.Intrinsics {
	return camera.IntrinsicsFromFOV(1280, 720, 60)
}

func newTestSolver(t *testing.T) *Solver {
	t.Helper()
	s, err := NewSolver(DefaultSolverConfig(), testIntrinsics(), landmarks.DefaultReferenceModel())
	if err != nil {
		t.Fatalf("NewSolver: %v", err)
	}
	return s
}

// syntheticObservation projects the reference model through a known pose.
func syntheticObservation(in camera.Intrinsics, ref landmarks.ReferenceModel, rv, tv Vec3) landmarks.Observation {
	pts := make(map[landmarks.Name]landmarks.Point, len(ref))
	for name, m := range ref {
		p := rotateRodrigues(rv, Vec3{m.X, m.Y, m.Z}).Add(tv)
		u, v := in.Project(p.X, p.Y, p.Z)
		pts[name] = landmarks.Point{X: u, Y: v, Valid: true}
	}
	return landmarks.Observation{Points: pts, Confidence: 1.0, Timestamp: time.Now()}
}

func TestSolver_RecoverKnownPose(t *testing.T) {
	s := newTestSolver(t)
	in := testIntrinsics()
	ref := landmarks.DefaultReferenceModel()

	cases := []struct {
		name string
		rv   Vec3
		tv   Vec3
	}{
		{"frontal", Vec3{}, Vec3{0, 0, 2.0}},
		{"yawed", Vec3{0, 0.3, 0}, Vec3{0.1, -0.05, 1.8}},
		{"pitched", Vec3{-0.25, 0, 0}, Vec3{-0.2, 0.1, 2.5}},
		{"combined", Vec3{0.15, 0.2, -0.1}, Vec3{0.3, 0.2, 3.0}},
	}

	for _, tc := range cases {
		obs := syntheticObservation(in, ref, tc.rv, tc.tv)
		got := s.Solve(obs)
		if !got.Valid {
			t.Errorf("%s: expected valid pose", tc.name)
			continue
		}
		if got.Translation.Sub(tc.tv).Norm() > 1e-3 {
			t.Errorf("%s: translation %v, want %v", tc.name, got.Translation, tc.tv)
		}
		if got.Rotation.RotationVector().Sub(tc.rv).Norm() > 1e-3 {
			t.Errorf("%s: rotation %v, want %v", tc.name, got.Rotation.RotationVector(), tc.rv)
		}
		if got.ReprojectionError > 0.5 {
			t.Errorf("%s: reprojection error %v too large", tc.name, got.ReprojectionError)
		}
	}
}

func TestSolver_TooFewPointsIsInvalidNotError(t *testing.T) {
	s := newTestSolver(t)
	in := testIntrinsics()
	ref := landmarks.DefaultReferenceModel()

	obs := syntheticObservation(in, ref, Vec3{}, Vec3{0, 0, 2})
	// Invalidate all but 3 points: below the minimum of 4.
	obs.Points[landmarks.Chin] = landmarks.Point{Valid: false}
	delete(obs.Points, landmarks.LeftMouth)
	delete(obs.Points, landmarks.RightMouth)

	got := s.Solve(obs)
	if got.Valid {
		t.Error("Expected invalid pose with only 3 correspondences")
	}
}

func TestSolver_PartialObservationStillSolves(t *testing.T) {
	s := newTestSolver(t)
	in := testIntrinsics()
	ref := landmarks.DefaultReferenceModel()

	tv := Vec3{0, 0, 2.2}
	obs := syntheticObservation(in, ref, Vec3{0, 0.1, 0}, tv)
	// Drop two points, leaving 4 valid: still enough.
	delete(obs.Points, landmarks.Chin)
	delete(obs.Points, landmarks.LeftMouth)

	got := s.Solve(obs)
	if !got.Valid {
		t.Fatal("Expected valid pose with 4 correspondences")
	}
	if got.Translation.Sub(tv).Norm() > 1e-2 {
		t.Errorf("Translation %v, want %v", got.Translation, tv)
	}
}

func TestSolver_LowConfidenceRejected(t *testing.T) {
	s := newTestSolver(t)
	obs := syntheticObservation(testIntrinsics(), landmarks.DefaultReferenceModel(), Vec3{}, Vec3{0, 0, 2})
	obs.Confidence = 0.2

	if got := s.Solve(obs); got.Valid {
		t.Error("Expected low-confidence observation to be rejected")
	}
}

func TestSolver_EmptyObservationInvalid(t *testing.T) {
	s := newTestSolver(t)
	got := s.Solve(landmarks.Observation{Confidence: 1.0})
	if got.Valid {
		t.Error("Expected invalid pose for empty observation")
	}
}

func TestSolver_DegenerateImagePointsInvalid(t *testing.T) {
	s := newTestSolver(t)

	// All points collapsed onto one pixel.
	pts := make(map[landmarks.Name]landmarks.Point)
	for _, n := range landmarks.Names {
		pts[n] = landmarks.Point{X: 640, Y: 360, Valid: true}
	}
	got := s.Solve(landmarks.Observation{Points: pts, Confidence: 1.0})
	if got.Valid {
		t.Error("Expected degenerate observation to yield an invalid pose")
	}
}

func TestSolver_NoisyObservationWithinThreshold(t *testing.T) {
	s := newTestSolver(t)
	in := testIntrinsics()
	ref := landmarks.DefaultReferenceModel()

	obs := syntheticObservation(in, ref, Vec3{0, 0.2, 0}, Vec3{0, 0, 2})
	// Perturb points deterministically by ~2px.
	i := 0
	for _, n := range landmarks.Names {
		p := obs.Points[n]
		if i%2 == 0 {
			p.X += 2
		} else {
			p.Y -= 2
		}
		obs.Points[n] = p
		i++
	}

	got := s.Solve(obs)
	if !got.Valid {
		t.Fatal("Expected noisy but usable observation to solve")
	}
	if got.ReprojectionError <= 0 || got.ReprojectionError > 10 {
		t.Errorf("Unexpected reprojection error %v", got.ReprojectionError)
	}
}

func TestNewSolver_RejectsCollinearModel(t *testing.T) {
	ref := landmarks.ReferenceModel{
		landmarks.NoseTip:       {0, 0, 0},
		landmarks.Chin:          {0, 1, 0},
		landmarks.LeftEyeOuter:  {0, 2, 0},
		landmarks.RightEyeOuter: {0, 3, 0},
	}
	if _, err := NewSolver(DefaultSolverConfig(), testIntrinsics(), ref); err == nil {
		t.Error("Expected setup error for collinear reference model")
	}
}

func TestNewSolver_RejectsBadConfig(t *testing.T) {
	cfg := DefaultSolverConfig()
	cfg.MaxReprojectionError = -1
	if _, err := NewSolver(cfg, testIntrinsics(), landmarks.DefaultReferenceModel()); err == nil {
		t.Error("Expected setup error for negative reprojection threshold")
	}

	in := testIntrinsics()
	in.Fx = 0
	if _, err := NewSolver(DefaultSolverConfig(), in, landmarks.DefaultReferenceModel()); err == nil {
		t.Error("Expected setup error for zero focal length")
	}
}

func TestSolver_PureFunction(t *testing.T) {
	s := newTestSolver(t)
	obs := syntheticObservation(testIntrinsics(), landmarks.DefaultReferenceModel(), Vec3{0, 0.1, 0}, Vec3{0, 0, 2})

	a := s.Solve(obs)
	b := s.Solve(obs)
	if math.Abs(a.Translation.Sub(b.Translation).Norm()) > 1e-12 {
		t.Error("Solve should be deterministic for identical input")
	}
}
