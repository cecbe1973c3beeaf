// Package pipeline runs the per-frame tracking and compositing sequence:
// solve, stabilize, build transforms, render (external), composite.
package pipeline

import (
	"fmt"
	"image"
	"time"

	"github.com/mwestergaard/go-headlock/internal/log"
	"github.com/mwestergaard/go-headlock/pkg/camera"
	"github.com/mwestergaard/go-headlock/pkg/compositor"
	"github.com/mwestergaard/go-headlock/pkg/debug"
	"github.com/mwestergaard/go-headlock/pkg/hud"
	"github.com/mwestergaard/go-headlock/pkg/landmarks"
	"github.com/mwestergaard/go-headlock/pkg/pose"
	"github.com/mwestergaard/go-headlock/pkg/transform"
)

// Renderer is the external GPU stage. It receives the per-frame transforms
// and returns an RGBA overlay at the background's resolution.
type Renderer interface {
	Render(t transform.RenderTransforms) (*image.RGBA, error)
}

// Diagnostics receives per-frame tracking state for UI consumers.
type Diagnostics interface {
	UpdateTracking(state pose.State, fps float64)
}

// Params collects everything needed to assemble a pipeline.
type Params struct {
	Intrinsics camera.Intrinsics
	Reference  landmarks.ReferenceModel

	Solver     pose.SolverConfig
	Stabilizer pose.StabilizerConfig
	Transform  transform.Config
	Compositor compositor.Config
	HUD        hud.Config

	// FrameSkip renders the overlay only every (FrameSkip+1)th frame;
	// tracking still advances on skipped frames.
	FrameSkip int

	// Renderer may be nil, in which case frames pass through with HUD
	// diagnostics only.
	Renderer Renderer

	// Diagnostics may be nil.
	Diagnostics Diagnostics
}

// Pipeline owns the per-frame sequence and the single stabilizer instance.
// Process must be called once per frame from one goroutine.
type Pipeline struct {
	solver     *pose.Solver
	stabilizer *pose.Stabilizer
	builder    *transform.Builder
	comp       *compositor.Compositor
	hud        *hud.HUD
	renderer   Renderer
	diag       Diagnostics
	frameSkip  int

	lastFrame time.Time
	skipCount int

	// FPS over a one-second window.
	fps         float64
	fpsFrames   int
	fpsWindowAt time.Time
}

// New validates every stage's configuration up front; any failure here is a
// setup fault and the pipeline refuses to start.
func New(p Params) (*Pipeline, error) {
	solver, err := pose.NewSolver(p.Solver, p.Intrinsics, p.Reference)
	if err != nil {
		return nil, fmt.Errorf("pipeline: %w", err)
	}
	stab, err := pose.NewStabilizer(p.Stabilizer)
	if err != nil {
		return nil, fmt.Errorf("pipeline: %w", err)
	}
	builder, err := transform.NewBuilder(p.Transform, p.Intrinsics)
	if err != nil {
		return nil, fmt.Errorf("pipeline: %w", err)
	}
	comp, err := compositor.New(p.Compositor)
	if err != nil {
		return nil, fmt.Errorf("pipeline: %w", err)
	}
	if p.FrameSkip < 0 {
		return nil, fmt.Errorf("pipeline: frame_skip must not be negative, got %d", p.FrameSkip)
	}

	return &Pipeline{
		solver:     solver,
		stabilizer: stab,
		builder:    builder,
		comp:       comp,
		hud:        hud.New(p.HUD),
		renderer:   p.Renderer,
		diag:       p.Diagnostics,
		frameSkip:  p.FrameSkip,
	}, nil
}

// Process runs one frame through the pipeline and returns the composed
// frame. When no overlay is rendered the returned frame aliases background
// (with HUD elements drawn in place).
//
// A frame that cannot produce a pose is not an error: the overlay is
// suppressed and the pipeline proceeds. Errors are reserved for faults the
// caller must treat as fatal (e.g. mismatched renderer output dimensions).
func (p *Pipeline) Process(background *image.RGBA, obs landmarks.Observation, now time.Time) (*image.RGBA, pose.StabilizedPose, error) {
	var dt time.Duration
	if !p.lastFrame.IsZero() {
		dt = now.Sub(p.lastFrame)
	}
	p.lastFrame = now

	raw := p.solver.Solve(obs)
	st := p.stabilizer.Advance(raw, dt)

	debug.TrackLog("pipeline: raw valid=%v state=%s gap=%v\n", raw.Valid, st.State, st.SinceValid)

	out := background
	if tr, ok := p.builder.Build(st); ok && p.renderer != nil && p.shouldRender() {
		overlay, err := p.renderer.Render(tr)
		if err != nil {
			// Renderer hiccups are transient; show the plain frame.
			log.Warn("render failed, passing frame through", "err", err)
		} else {
			out, err = p.comp.Composite(background, overlay)
			if err != nil {
				return nil, st, err
			}
		}
	}

	p.updateFPS(now)
	p.hud.Draw(out, st.State, p.fps)
	p.hud.DrawLandmarks(out, obs)

	if p.diag != nil {
		p.diag.UpdateTracking(st.State, p.fps)
	}

	return out, st, nil
}

// State returns the stabilizer's current state without advancing it.
func (p *Pipeline) State() pose.State {
	return p.stabilizer.Current().State
}

// FPS returns the most recent frames-per-second estimate.
func (p *Pipeline) FPS() float64 {
	return p.fps
}

func (p *Pipeline) shouldRender() bool {
	if p.frameSkip == 0 {
		return true
	}
	p.skipCount++
	return p.skipCount%(p.frameSkip+1) == 0
}

func (p *Pipeline) updateFPS(now time.Time) {
	if p.fpsWindowAt.IsZero() {
		p.fpsWindowAt = now
	}
	p.fpsFrames++
	if elapsed := now.Sub(p.fpsWindowAt); elapsed >= time.Second {
		p.fps = float64(p.fpsFrames) / elapsed.Seconds()
		p.fpsFrames = 0
		p.fpsWindowAt = now
	}
}
