package display

import (
	"github.com/dickwu/noticewin/internal/config"
	"github.com/dickwu/noticewin/internal/model"
)

// Geometry is a resolved window rectangle in screen coordinates.
type Geometry struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Screen is the available display area. A zero or negative dimension means
// display metrics are unavailable and the configured fallback resolution is
// used instead.
type Screen struct {
	Width  int
	Height int
}

// Resolve computes the window geometry for a message.
//
// Size comes from the message's min_width/min_height, falling back to the
// configured defaults. Placement follows the message's position directive:
// explicit coordinates win, then a preset anchor with edge padding, then the
// configured default preset. The rectangle is clamped to the screen.
func Resolve(msg *model.Message, cfg *config.Config, screen Screen) Geometry {
	width := msg.MinWidth
	if width <= 0 {
		width = cfg.DefaultWidth
	}
	height := msg.MinHeight
	if height <= 0 {
		height = cfg.DefaultHeight
	}

	screenW := screen.Width
	screenH := screen.Height
	if screenW <= 0 || screenH <= 0 {
		screenW = cfg.Display.FallbackWidth
		screenH = cfg.Display.FallbackHeight
	}

	if width > screenW {
		width = screenW
	}
	if height > screenH {
		height = screenH
	}

	geom := Geometry{Width: width, Height: height}

	pos := msg.Position
	if pos.Explicit() {
		geom.X = clamp(*pos.X, 0, screenW-width)
		geom.Y = clamp(*pos.Y, 0, screenH-height)
		return geom
	}

	preset := cfg.Display.Position
	padding := cfg.Display.Padding
	if pos != nil {
		if pos.Preset != "" {
			preset = pos.Preset
		}
		if pos.Padding > 0 {
			padding = pos.Padding
		}
	}

	geom.X, geom.Y = anchor(preset, padding, width, height, screenW, screenH)
	return geom
}

// anchor returns the top-left corner for a preset placement.
func anchor(preset string, padding, width, height, screenW, screenH int) (int, int) {
	centerX := (screenW - width) / 2
	centerY := (screenH - height) / 2
	left := padding
	right := screenW - width - padding
	top := padding
	bottom := screenH - height - padding

	var x, y int
	switch preset {
	case model.PresetTopLeft:
		x, y = left, top
	case model.PresetTopRight:
		x, y = right, top
	case model.PresetTopCenter:
		x, y = centerX, top
	case model.PresetBottomLeft:
		x, y = left, bottom
	case model.PresetBottomRight:
		x, y = right, bottom
	case model.PresetBottomCenter:
		x, y = centerX, bottom
	case model.PresetCenter:
		x, y = centerX, centerY
	default:
		x, y = right, top
	}

	return clamp(x, 0, screenW-width), clamp(y, 0, screenH-height)
}

func clamp(v, lo, hi int) int {
	if hi < lo {
		hi = lo
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
