package transform

import (
	"fmt"
	"math"

	"github.com/mwestergaard/go-headlock/pkg/camera"
	"github.com/mwestergaard/go-headlock/pkg/pose"
)

// Config holds the user-facing overlay placement parameters.
type Config struct {
	// Scale is the user overlay scale multiplier.
	Scale float64 `json:"scale" yaml:"scale"`

	// ModelScale is the intrinsic scale of the loaded asset, applied in
	// local model space together with Scale.
	ModelScale float64 `json:"model_scale" yaml:"model_scale"`

	// Offsets are applied to the final translation in render space.
	OffsetX float64 `json:"offset_x" yaml:"offset_x"`
	OffsetY float64 `json:"offset_y" yaml:"offset_y"`
	OffsetZ float64 `json:"offset_z" yaml:"offset_z"`

	// FOVOverride, when positive, replaces the intrinsics-derived
	// projection with a symmetric perspective of this vertical field of
	// view in degrees.
	FOVOverride float64 `json:"fov_override" yaml:"fov_override"`

	Near float64 `json:"near" yaml:"near"`
	Far  float64 `json:"far" yaml:"far"`
}

// DefaultConfig returns the recommended overlay placement.
func DefaultConfig() Config {
	return Config{
		Scale:      1.35,
		ModelScale: 1.0,
		OffsetY:    0.08,
		OffsetZ:    0.02,
		Near:       0.1,
		Far:        100.0,
	}
}

// Validate checks the config for setup faults.
func (c Config) Validate() error {
	if c.Scale <= 0 {
		return fmt.Errorf("transform: scale must be positive, got %v", c.Scale)
	}
	if c.ModelScale <= 0 {
		return fmt.Errorf("transform: model_scale must be positive, got %v", c.ModelScale)
	}
	if c.Near <= 0 {
		return fmt.Errorf("transform: near plane must be positive, got %v", c.Near)
	}
	if c.Far <= c.Near {
		return fmt.Errorf("transform: far plane %v must exceed near plane %v", c.Far, c.Near)
	}
	if c.FOVOverride < 0 || c.FOVOverride >= 180 {
		return fmt.Errorf("transform: fov_override %v out of range", c.FOVOverride)
	}
	return nil
}

// RenderTransforms are the per-frame matrices handed to the renderer.
// Value type; recomputed every frame, never mutated after construction.
type RenderTransforms struct {
	Model      Mat4
	Projection Mat4
}

// Builder derives render transforms from stabilized poses. The projection
// is fixed at construction; only the model matrix varies per frame.
type Builder struct {
	cfg        Config
	projection Mat4
}

// NewBuilder validates the config and precomputes the projection.
func NewBuilder(cfg Config, in camera.Intrinsics) (*Builder, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := in.Validate(); err != nil {
		return nil, err
	}

	var proj Mat4
	if cfg.FOVOverride > 0 {
		proj = Perspective(cfg.FOVOverride*degToRad, in.Aspect(), cfg.Near, cfg.Far)
	} else {
		proj = PerspectiveFromIntrinsics(in, cfg.Near, cfg.Far)
	}

	return &Builder{cfg: cfg, projection: proj}, nil
}

const degToRad = math.Pi / 180

// Build derives the transforms for one stabilized pose. The second return
// is false when the pose is lost and the frame must not render an overlay.
//
// Model = Translation(flip(t) + offset) · flip(R) · Scale(scale·modelScale):
// scale acts in local model space before rotation, and the vision→render
// axis flip is applied here exactly once so every downstream consumer works
// in one consistent space.
func (b *Builder) Build(p pose.StabilizedPose) (RenderTransforms, bool) {
	if !p.HasPose() {
		return RenderTransforms{}, false
	}

	r := visionToRenderRotation(p.Rotation.RotationMatrix())
	t := visionToRenderPoint(p.Translation)
	t = t.Add(pose.Vec3{X: b.cfg.OffsetX, Y: b.cfg.OffsetY, Z: b.cfg.OffsetZ})

	model := Translation(t).
		Mul(FromRotation(r)).
		Mul(Scaling(b.cfg.Scale * b.cfg.ModelScale))

	return RenderTransforms{Model: model, Projection: b.projection}, true
}

// Projection returns the fixed projection matrix.
func (b *Builder) Projection() Mat4 {
	return b.projection
}

// The vision convention has the camera looking down +Z with +Y down; the
// render convention looks down -Z with +Y up. The bridge is the fixed basis
// flip diag(1,-1,-1), applied to both rotation and translation.

// visionToRenderPoint flips a camera-space point into render space.
func visionToRenderPoint(v pose.Vec3) pose.Vec3 {
	return pose.Vec3{X: v.X, Y: -v.Y, Z: -v.Z}
}

// visionToRenderRotation left-multiplies a row-major 3x3 rotation by
// diag(1,-1,-1), negating its second and third rows.
func visionToRenderRotation(r [9]float64) [9]float64 {
	return [9]float64{
		r[0], r[1], r[2],
		-r[3], -r[4], -r[5],
		-r[6], -r[7], -r[8],
	}
}
