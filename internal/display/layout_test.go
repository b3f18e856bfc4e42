package display

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dickwu/noticewin/internal/config"
	"github.com/dickwu/noticewin/internal/model"
)

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.DefaultWidth = 300
	cfg.DefaultHeight = 200
	cfg.Display.Position = model.PresetTopRight
	cfg.Display.Padding = 10
	cfg.Display.FallbackWidth = 1920
	cfg.Display.FallbackHeight = 1080
	return cfg
}

func TestResolve_DefaultSize(t *testing.T) {
	cfg := testConfig()
	msg := &model.Message{ID: "m1", Kind: "info"}

	geom := Resolve(msg, cfg, Screen{Width: 1920, Height: 1080})
	assert.Equal(t, 300, geom.Width)
	assert.Equal(t, 200, geom.Height)
}

func TestResolve_MinSizeWins(t *testing.T) {
	cfg := testConfig()
	msg := &model.Message{ID: "m1", Kind: "info", MinWidth: 500, MinHeight: 400}

	geom := Resolve(msg, cfg, Screen{Width: 1920, Height: 1080})
	assert.Equal(t, 500, geom.Width)
	assert.Equal(t, 400, geom.Height)
}

func TestResolve_Presets(t *testing.T) {
	cfg := testConfig()
	screen := Screen{Width: 1000, Height: 800}

	tests := []struct {
		preset string
		x, y   int
	}{
		{model.PresetTopLeft, 10, 10},
		{model.PresetTopRight, 690, 10},
		{model.PresetTopCenter, 350, 10},
		{model.PresetBottomLeft, 10, 590},
		{model.PresetBottomRight, 690, 590},
		{model.PresetBottomCenter, 350, 590},
		{model.PresetCenter, 350, 300},
	}

	for _, tt := range tests {
		t.Run(tt.preset, func(t *testing.T) {
			msg := &model.Message{
				ID: "m1", Kind: "info",
				Position: &model.Position{Preset: tt.preset},
			}
			geom := Resolve(msg, cfg, screen)
			assert.Equal(t, tt.x, geom.X)
			assert.Equal(t, tt.y, geom.Y)
		})
	}
}

func TestResolve_DirectivePadding(t *testing.T) {
	cfg := testConfig()
	msg := &model.Message{
		ID: "m1", Kind: "info",
		Position: &model.Position{Preset: model.PresetTopLeft, Padding: 50},
	}

	geom := Resolve(msg, cfg, Screen{Width: 1000, Height: 800})
	assert.Equal(t, 50, geom.X)
	assert.Equal(t, 50, geom.Y)
}

func TestResolve_ExplicitCoordinates(t *testing.T) {
	cfg := testConfig()
	x, y := 120, 240
	msg := &model.Message{
		ID: "m1", Kind: "info",
		Position: &model.Position{X: &x, Y: &y},
	}

	geom := Resolve(msg, cfg, Screen{Width: 1920, Height: 1080})
	assert.Equal(t, 120, geom.X)
	assert.Equal(t, 240, geom.Y)
}

func TestResolve_ExplicitClampedToScreen(t *testing.T) {
	cfg := testConfig()
	x, y := 5000, -50
	msg := &model.Message{
		ID: "m1", Kind: "info",
		Position: &model.Position{X: &x, Y: &y},
	}

	geom := Resolve(msg, cfg, Screen{Width: 1000, Height: 800})
	assert.Equal(t, 700, geom.X) // 1000 - 300
	assert.Equal(t, 0, geom.Y)
}

func TestResolve_FallbackResolution(t *testing.T) {
	cfg := testConfig()
	msg := &model.Message{
		ID: "m1", Kind: "info",
		Position: &model.Position{Preset: model.PresetBottomRight},
	}

	// No display metrics: fall back to the configured resolution.
	geom := Resolve(msg, cfg, Screen{})
	assert.Equal(t, 1920-300-10, geom.X)
	assert.Equal(t, 1080-200-10, geom.Y)
}

func TestResolve_OversizedWindow(t *testing.T) {
	cfg := testConfig()
	msg := &model.Message{ID: "m1", Kind: "info", MinWidth: 3000, MinHeight: 2000}

	geom := Resolve(msg, cfg, Screen{Width: 1000, Height: 800})
	assert.Equal(t, 1000, geom.Width)
	assert.Equal(t, 800, geom.Height)
	assert.Equal(t, 0, geom.X)
	assert.Equal(t, 0, geom.Y)
}

func TestResolve_NoDirectiveUsesConfigPreset(t *testing.T) {
	cfg := testConfig()
	cfg.Display.Position = model.PresetBottomLeft
	msg := &model.Message{ID: "m1", Kind: "info"}

	geom := Resolve(msg, cfg, Screen{Width: 1000, Height: 800})
	assert.Equal(t, 10, geom.X)
	assert.Equal(t, 800-200-10, geom.Y)
}
