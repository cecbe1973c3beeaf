// Package compositor blends the rendered RGBA overlay onto camera frames.
package compositor

import (
	"fmt"
	"image"
)

// BlendMode selects how overlay pixels combine with the background.
type BlendMode int

const (
	// BlendOver is standard alpha-over compositing.
	BlendOver BlendMode = iota
	// BlendAdditive adds the weighted overlay onto the background,
	// clamping at white. Useful for glow/hologram style overlays.
	BlendAdditive
)

// Config holds compositing parameters.
type Config struct {
	// Opacity scales the overlay's alpha globally, in [0,1].
	Opacity float64 `json:"opacity" yaml:"opacity"`

	Mode BlendMode `json:"mode" yaml:"mode"`
}

// DefaultConfig returns full-opacity alpha-over compositing.
func DefaultConfig() Config {
	return Config{Opacity: 1.0, Mode: BlendOver}
}

// Validate checks the config for setup faults.
func (c Config) Validate() error {
	if c.Opacity < 0 || c.Opacity > 1 {
		return fmt.Errorf("compositor: opacity must be in [0,1], got %v", c.Opacity)
	}
	if c.Mode != BlendOver && c.Mode != BlendAdditive {
		return fmt.Errorf("compositor: unknown blend mode %d", c.Mode)
	}
	return nil
}

// Compositor merges rendered overlays with background frames. It carries no
// per-frame state; Composite is a pure function of its inputs.
type Compositor struct {
	cfg Config
}

// New creates a compositor, rejecting invalid configuration at setup time.
func New(cfg Config) (*Compositor, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Compositor{cfg: cfg}, nil
}

// Composite blends overlay onto background and returns a new frame.
// Mismatched dimensions are a programming error in the pipeline setup and
// are reported as an error the caller must treat as fatal, not retried.
//
// Per pixel: out = background·(1 - a·opacity) + overlay.rgb·a·opacity,
// where a is the overlay alpha in [0,1].
func (c *Compositor) Composite(background, overlay *image.RGBA) (*image.RGBA, error) {
	bb := background.Bounds()
	ob := overlay.Bounds()
	if bb.Dx() != ob.Dx() || bb.Dy() != ob.Dy() {
		return nil, fmt.Errorf("compositor: dimension mismatch: background %dx%d, overlay %dx%d",
			bb.Dx(), bb.Dy(), ob.Dx(), ob.Dy())
	}

	out := image.NewRGBA(image.Rect(0, 0, bb.Dx(), bb.Dy()))
	op := c.cfg.Opacity

	for y := 0; y < bb.Dy(); y++ {
		bRow := background.PixOffset(bb.Min.X, bb.Min.Y+y)
		oRow := overlay.PixOffset(ob.Min.X, ob.Min.Y+y)
		dRow := out.PixOffset(0, y)

		for x := 0; x < bb.Dx(); x++ {
			bi := bRow + x*4
			oi := oRow + x*4
			di := dRow + x*4

			a := float64(overlay.Pix[oi+3]) / 255.0 * op
			if a*255 < 0.5 {
				// Below half a quantization step the blend rounds
				// back to the background; skip it.
				copy(out.Pix[di:di+3], background.Pix[bi:bi+3])
				out.Pix[di+3] = 255
				continue
			}

			switch c.cfg.Mode {
			case BlendAdditive:
				for ch := 0; ch < 3; ch++ {
					v := float64(background.Pix[bi+ch]) + float64(overlay.Pix[oi+ch])*a
					if v > 255 {
						v = 255
					}
					out.Pix[di+ch] = uint8(v + 0.5)
				}
			default:
				for ch := 0; ch < 3; ch++ {
					v := float64(background.Pix[bi+ch])*(1-a) + float64(overlay.Pix[oi+ch])*a
					out.Pix[di+ch] = uint8(v + 0.5)
				}
			}
			out.Pix[di+3] = 255
		}
	}

	return out, nil
}
