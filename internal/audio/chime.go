// Package audio plays an optional chime when a notification window opens.
package audio

import (
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/effects"
	"github.com/gopxl/beep/v2/mp3"
	"github.com/gopxl/beep/v2/speaker"
	"github.com/gopxl/beep/v2/vorbis"
	"github.com/gopxl/beep/v2/wav"

	"github.com/dickwu/noticewin/internal/config"
)

// Chime plays the configured notification sound. Playback failures are
// cosmetic: they are logged and never propagate into queue operations.
type Chime struct {
	mu     sync.Mutex
	logger *slog.Logger

	cfg config.AudioConfig

	initialized bool
	sampleRate  beep.SampleRate
	buffer      *beep.Buffer
}

// NewChime creates a chime player for the given audio configuration.
func NewChime(cfg config.AudioConfig, logger *slog.Logger) *Chime {
	if logger == nil {
		logger = slog.Default()
	}
	return &Chime{
		logger:     logger,
		cfg:        cfg,
		sampleRate: beep.SampleRate(44100),
	}
}

// Enabled reports whether a sound is configured and enabled.
func (c *Chime) Enabled() bool {
	return c.cfg.Enabled && c.cfg.Sound != ""
}

// Play plays the configured sound. Safe to call from the display manager's
// on-show hook; errors are logged and swallowed.
func (c *Chime) Play() {
	if !c.Enabled() {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.buffer == nil {
		buffer, err := c.load(expandPath(c.cfg.Sound))
		if err != nil {
			c.logger.Warn("failed to load chime", "path", c.cfg.Sound, "error", err)
			return
		}
		c.buffer = buffer
	}

	streamer := beep.Streamer(c.buffer.Streamer(0, c.buffer.Len()))
	if c.buffer.Format().SampleRate != c.sampleRate {
		streamer = beep.Resample(4, c.buffer.Format().SampleRate, c.sampleRate, streamer)
	}

	volume := float64(c.cfg.Volume) / 100
	if volume < 1.0 {
		streamer = &effects.Volume{
			Streamer: streamer,
			Base:     2,
			Volume:   volumeToDecibels(volume),
			Silent:   volume == 0,
		}
	}

	speaker.Play(streamer)
}

// load decodes the sound file and initializes the speaker on first use.
// Supports WAV, OGG, and MP3.
func (c *Chime) load(path string) (*beep.Buffer, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open sound file: %w", err)
	}
	defer func() { _ = f.Close() }()

	var streamer beep.StreamSeekCloser
	var format beep.Format

	switch strings.ToLower(filepath.Ext(path)) {
	case ".wav":
		streamer, format, err = wav.Decode(f)
	case ".ogg":
		streamer, format, err = vorbis.Decode(f)
	case ".mp3":
		streamer, format, err = mp3.Decode(f)
	default:
		return nil, fmt.Errorf("unsupported audio format: %s", filepath.Ext(path))
	}
	if err != nil {
		return nil, fmt.Errorf("failed to decode sound: %w", err)
	}
	defer func() { _ = streamer.Close() }()

	if !c.initialized {
		bufferSize := format.SampleRate.N(time.Millisecond * 100)
		if err := speaker.Init(format.SampleRate, bufferSize); err != nil {
			return nil, fmt.Errorf("failed to initialize speaker: %w", err)
		}
		c.sampleRate = format.SampleRate
		c.initialized = true
	}

	buffer := beep.NewBuffer(format)
	buffer.Append(streamer)
	return buffer, nil
}

// Close releases the speaker.
func (c *Chime) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.initialized {
		speaker.Close()
		c.initialized = false
	}
	c.buffer = nil
}

func expandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err == nil {
			return filepath.Join(home, path[2:])
		}
	}
	return path
}

// volumeToDecibels converts a linear volume (0-1) to decibels.
func volumeToDecibels(volume float64) float64 {
	if volume <= 0 {
		return -100 // Effectively silent
	}
	return 20 * math.Log10(volume)
}
