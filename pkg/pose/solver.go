package pose

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/mwestergaard/go-headlock/pkg/camera"
	"github.com/mwestergaard/go-headlock/pkg/landmarks"
)

// SolverConfig holds tunable parameters for the PnP solve.
type SolverConfig struct {
	// MinCorrespondences is the minimum number of simultaneously valid
	// named correspondences required to attempt a solve.
	MinCorrespondences int `json:"min_correspondences" yaml:"min_correspondences"`

	// MinConfidence is the detection confidence below which an
	// observation is rejected outright.
	MinConfidence float64 `json:"min_confidence" yaml:"min_confidence"`

	// MaxIterations bounds the Levenberg-Marquardt refinement.
	MaxIterations int `json:"max_iterations" yaml:"max_iterations"`

	// MaxReprojectionError is the RMS pixel error above which a solve is
	// treated as failed.
	MaxReprojectionError float64 `json:"max_reprojection_error" yaml:"max_reprojection_error"`
}

// DefaultSolverConfig returns the recommended solver parameters.
func DefaultSolverConfig() SolverConfig {
	return SolverConfig{
		MinCorrespondences:   4,
		MinConfidence:        0.5,
		MaxIterations:        50,
		MaxReprojectionError: 10.0,
	}
}

// Validate checks the config for setup faults.
func (c SolverConfig) Validate() error {
	if c.MinCorrespondences < 3 {
		return fmt.Errorf("pose: min_correspondences must be at least 3, got %d", c.MinCorrespondences)
	}
	if c.MinConfidence < 0 || c.MinConfidence > 1 {
		return fmt.Errorf("pose: min_confidence must be in [0,1], got %v", c.MinConfidence)
	}
	if c.MaxIterations < 1 {
		return fmt.Errorf("pose: max_iterations must be positive, got %d", c.MaxIterations)
	}
	if c.MaxReprojectionError <= 0 {
		return fmt.Errorf("pose: max_reprojection_error must be positive, got %v", c.MaxReprojectionError)
	}
	return nil
}

// Solver computes a rigid camera-space pose from named 2D/3D correspondences
// using iterative Levenberg-Marquardt refinement under a pinhole model.
// Solve is a pure function of its inputs; the solver itself is immutable
// after construction and safe for concurrent use.
type Solver struct {
	cfg SolverConfig
	in  camera.Intrinsics
	ref landmarks.ReferenceModel

	// modelSpan is the largest pairwise distance in the reference model,
	// used to seed the initial depth estimate.
	modelSpan float64
}

// NewSolver validates the configuration and reference geometry.
// A degenerate (near-collinear) reference model is a setup fault.
func NewSolver(cfg SolverConfig, in camera.Intrinsics, ref landmarks.ReferenceModel) (*Solver, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := in.Validate(); err != nil {
		return nil, err
	}
	if len(ref) < cfg.MinCorrespondences {
		return nil, fmt.Errorf("pose: reference model has %d points, need at least %d", len(ref), cfg.MinCorrespondences)
	}
	if err := checkModelRank(ref); err != nil {
		return nil, err
	}

	return &Solver{
		cfg:       cfg,
		in:        in,
		ref:       ref,
		modelSpan: modelSpan(ref),
	}, nil
}

// checkModelRank rejects reference models whose points are near-collinear.
// The model is constant, so this runs once at setup.
func checkModelRank(ref landmarks.ReferenceModel) error {
	n := len(ref)
	var cx, cy, cz float64
	for _, p := range ref {
		cx += p.X
		cy += p.Y
		cz += p.Z
	}
	cx /= float64(n)
	cy /= float64(n)
	cz /= float64(n)

	centered := mat.NewDense(n, 3, nil)
	i := 0
	for _, p := range ref {
		centered.SetRow(i, []float64{p.X - cx, p.Y - cy, p.Z - cz})
		i++
	}

	var svd mat.SVD
	if !svd.Factorize(centered, mat.SVDNone) {
		return fmt.Errorf("pose: reference model SVD failed")
	}
	vals := svd.Values(nil)
	if vals[1] < 1e-6*vals[0] || vals[0] == 0 {
		return fmt.Errorf("pose: reference model points are near-collinear")
	}
	return nil
}

func modelSpan(ref landmarks.ReferenceModel) float64 {
	pts := make([]landmarks.Point3, 0, len(ref))
	for _, p := range ref {
		pts = append(pts, p)
	}
	span := 0.0
	for i := range pts {
		for j := i + 1; j < len(pts); j++ {
			d := Vec3{pts[i].X - pts[j].X, pts[i].Y - pts[j].Y, pts[i].Z - pts[j].Z}.Norm()
			if d > span {
				span = d
			}
		}
	}
	return span
}

// Solve estimates the pose for one observation. An invalid RawPose is the
// normal outcome for missing, sparse, low-confidence, or degenerate input.
func (s *Solver) Solve(obs landmarks.Observation) RawPose {
	invalid := RawPose{Timestamp: obs.Timestamp}

	if obs.Confidence < s.cfg.MinConfidence {
		return invalid
	}

	matches := landmarks.Match(obs, s.ref)
	if len(matches) < s.cfg.MinCorrespondences {
		return invalid
	}
	if imageSpread(matches) < 4.0 {
		// Observed points collapsed to a near-point/line; the solve
		// would be numerically meaningless.
		return invalid
	}

	params := s.initialGuess(matches)
	params, converged := s.refine(params, matches)
	if !converged {
		return invalid
	}

	rv := Vec3{params[0], params[1], params[2]}
	tv := Vec3{params[3], params[4], params[5]}
	if !rv.IsFinite() || !tv.IsFinite() || tv.Z <= 0 {
		return invalid
	}

	rms := s.rmsError(params, matches)
	if math.IsNaN(rms) || rms > s.cfg.MaxReprojectionError {
		return invalid
	}

	return RawPose{
		Rotation:          QuatFromRotationVector(rv),
		Translation:       tv,
		ReprojectionError: rms,
		Timestamp:         obs.Timestamp,
		Valid:             true,
	}
}

// imageSpread returns the diagonal of the observed points' bounding box.
func imageSpread(matches []landmarks.Correspondence) float64 {
	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)
	for _, m := range matches {
		minX = math.Min(minX, m.Image.X)
		maxX = math.Max(maxX, m.Image.X)
		minY = math.Min(minY, m.Image.Y)
		maxY = math.Max(maxY, m.Image.Y)
	}
	return math.Hypot(maxX-minX, maxY-minY)
}

// initialGuess seeds the refinement with a frontal pose: identity rotation
// and a translation back-projected from the observed centroid at a depth
// estimated from the apparent scale of the landmark set.
func (s *Solver) initialGuess(matches []landmarks.Correspondence) [6]float64 {
	var cu, cv float64
	for _, m := range matches {
		cu += m.Image.X
		cv += m.Image.Y
	}
	n := float64(len(matches))
	cu /= n
	cv /= n

	spread := imageSpread(matches)
	z := s.in.Fx * s.modelSpan / spread
	if !(z > 0) || math.IsInf(z, 0) {
		z = 2.0
	}

	tx := (cu - s.in.Cx) * z / s.in.Fx
	ty := (cv - s.in.Cy) * z / s.in.Fy

	return [6]float64{0, 0, 0, tx, ty, z}
}

// residuals fills r with the per-point reprojection residuals (2 per match).
func (s *Solver) residuals(params [6]float64, matches []landmarks.Correspondence, r []float64) {
	rv := Vec3{params[0], params[1], params[2]}
	tv := Vec3{params[3], params[4], params[5]}
	for i, m := range matches {
		p := rotateRodrigues(rv, Vec3{m.Model.X, m.Model.Y, m.Model.Z}).Add(tv)
		u, v := s.in.Project(p.X, p.Y, p.Z)
		r[2*i] = u - m.Image.X
		r[2*i+1] = v - m.Image.Y
	}
}

func cost(r []float64) float64 {
	sum := 0.0
	for _, v := range r {
		sum += v * v
	}
	return sum
}

// refine runs damped Gauss-Newton (Levenberg-Marquardt) on the 6 pose
// parameters with a numeric Jacobian. Returns the refined parameters and
// whether the iteration converged.
func (s *Solver) refine(params [6]float64, matches []landmarks.Correspondence) ([6]float64, bool) {
	nRes := 2 * len(matches)
	r := make([]float64, nRes)
	rPert := make([]float64, nRes)
	rTrial := make([]float64, nRes)
	jac := mat.NewDense(nRes, 6, nil)

	s.residuals(params, matches, r)
	curCost := cost(r)

	lambda := 1e-3
	const (
		step      = 1e-6
		costTol   = 1e-12
		stepTol   = 1e-10
		maxLambda = 1e10
	)

	converged := false
	for iter := 0; iter < s.cfg.MaxIterations; iter++ {
		// Forward-difference Jacobian.
		for j := 0; j < 6; j++ {
			pert := params
			pert[j] += step
			s.residuals(pert, matches, rPert)
			for i := 0; i < nRes; i++ {
				jac.Set(i, j, (rPert[i]-r[i])/step)
			}
		}

		// Normal equations with LM damping: (JᵀJ + λI) δ = -Jᵀr.
		var jtj mat.Dense
		jtj.Mul(jac.T(), jac)
		for d := 0; d < 6; d++ {
			jtj.Set(d, d, jtj.At(d, d)+lambda)
		}
		g := mat.NewVecDense(6, nil)
		g.MulVec(jac.T(), mat.NewVecDense(nRes, r))

		delta := mat.NewVecDense(6, nil)
		if err := delta.SolveVec(&jtj, g); err != nil {
			lambda *= 10
			if lambda > maxLambda {
				return params, false
			}
			continue
		}

		trial := params
		for d := 0; d < 6; d++ {
			trial[d] -= delta.AtVec(d)
		}
		s.residuals(trial, matches, rTrial)
		trialCost := cost(rTrial)

		if trialCost < curCost {
			improvement := curCost - trialCost
			params = trial
			copy(r, rTrial)
			curCost = trialCost
			lambda = math.Max(lambda/3, 1e-12)

			if improvement < costTol || delta.Norm(2) < stepTol {
				converged = true
				break
			}
		} else {
			lambda *= 10
			if lambda > maxLambda {
				break
			}
		}
	}

	// Accept a hit on the iteration cap if the fit is already tight;
	// the reprojection check in Solve is the final gate.
	if !converged {
		rms := math.Sqrt(curCost / float64(nRes))
		converged = rms <= s.cfg.MaxReprojectionError
	}
	return params, converged
}

// rmsError returns the RMS reprojection error in pixels.
func (s *Solver) rmsError(params [6]float64, matches []landmarks.Correspondence) float64 {
	r := make([]float64, 2*len(matches))
	s.residuals(params, matches, r)
	return math.Sqrt(cost(r) / float64(len(r)))
}
