// Package hud draws the diagnostic overlay (FPS counter, tracking-state
// indicator, landmark markers) onto composed frames.
package hud

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/mwestergaard/go-headlock/pkg/landmarks"
	"github.com/mwestergaard/go-headlock/pkg/pose"
)

// Config toggles the individual HUD elements.
type Config struct {
	ShowFPS       bool `json:"show_fps" yaml:"show_fps"`
	ShowState     bool `json:"show_state" yaml:"show_state"`
	ShowLandmarks bool `json:"show_landmarks" yaml:"show_landmarks"`
}

// DefaultConfig enables the FPS counter and state indicator.
func DefaultConfig() Config {
	return Config{ShowFPS: true, ShowState: true}
}

// State indicator colors per tracking state.
var stateColors = map[pose.State]color.RGBA{
	pose.StateTracking: {0, 200, 0, 255},
	pose.StateFrozen:   {230, 180, 0, 255},
	pose.StateLost:     {200, 30, 30, 255},
}

// HUD draws diagnostics in place on frames. Stateless apart from config.
type HUD struct {
	cfg  Config
	face font.Face
}

// New creates a HUD.
func New(cfg Config) *HUD {
	return &HUD{cfg: cfg, face: basicfont.Face7x13}
}

// Draw renders the enabled HUD elements onto frame in place.
func (h *HUD) Draw(frame *image.RGBA, state pose.State, fps float64) {
	if h.cfg.ShowFPS {
		h.drawText(frame, 10, 20, fmt.Sprintf("FPS: %.1f", fps), color.RGBA{0, 255, 0, 255})
	}
	if h.cfg.ShowState {
		h.drawStateIndicator(frame, state)
	}
}

// DrawLandmarks marks each valid observed landmark with a small dot.
func (h *HUD) DrawLandmarks(frame *image.RGBA, obs landmarks.Observation) {
	if !h.cfg.ShowLandmarks {
		return
	}
	dot := color.RGBA{0, 255, 0, 255}
	for _, n := range landmarks.Names {
		p, ok := obs.Point(n)
		if !ok {
			continue
		}
		h.fillRect(frame, int(p.X)-1, int(p.Y)-1, 3, 3, dot)
	}
}

func (h *HUD) drawText(frame *image.RGBA, x, y int, text string, c color.RGBA) {
	d := font.Drawer{
		Dst:  frame,
		Src:  image.NewUniform(c),
		Face: h.face,
		Dot:  fixed.P(frame.Bounds().Min.X+x, frame.Bounds().Min.Y+y),
	}
	d.DrawString(text)
}

func (h *HUD) drawStateIndicator(frame *image.RGBA, state pose.State) {
	b := frame.Bounds()
	c := stateColors[state]
	h.fillRect(frame, b.Dx()-26, 10, 16, 16, c)
	h.drawText(frame, b.Dx()-100, 40, state.String(), c)
}

func (h *HUD) fillRect(frame *image.RGBA, x, y, w, ht int, c color.RGBA) {
	b := frame.Bounds()
	r := image.Rect(b.Min.X+x, b.Min.Y+y, b.Min.X+x+w, b.Min.Y+y+ht).Intersect(b)
	draw.Draw(frame, r, image.NewUniform(c), image.Point{}, draw.Src)
}
