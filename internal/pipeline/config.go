package pipeline

import (
	"encoding/json"
	"fmt"
	"math"
	"os"

	apperrors "github.com/dygy/notemidi/internal/errors"
	"github.com/dygy/notemidi/internal/keysnap"
	"github.com/dygy/notemidi/internal/midi"
	"github.com/dygy/notemidi/internal/quantize"
)

// Config holds pipeline configuration
type Config struct {
	Key       keysnap.Config  `json:"key"`
	Quantize  quantize.Config `json:"quantize"` // BPM is taken from Config.BPM
	BendMode  midi.BendMode   `json:"pitch_bend"`
	BendRange float64         `json:"bend_range"` // semitones covered by full pitch-bend deflection
	BPM       float64         `json:"bpm"`
	TrackName string          `json:"track_name,omitempty"`
}

// DefaultConfig returns default pipeline configuration
func DefaultConfig() Config {
	return Config{
		Key:       keysnap.DefaultConfig(),
		Quantize:  quantize.DefaultConfig(),
		BendMode:  midi.NoBend,
		BendRange: midi.DefaultBendRange,
		BPM:       120,
	}
}

// LoadConfig reads a JSON options file over the defaults
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := json.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

// Validate checks every stage's configuration before anything runs
func (c Config) Validate() error {
	if !(c.BPM > 0) || math.IsInf(c.BPM, 0) {
		return apperrors.NewConfigError("bpm", c.BPM, apperrors.ErrInvalidTempo)
	}
	if err := c.Key.Validate(); err != nil {
		return err
	}
	if err := c.quantizeConfig().Validate(); err != nil {
		return err
	}
	if !c.BendMode.Valid() {
		return apperrors.NewConfigError("pitch_bend", int(c.BendMode), apperrors.ErrUnknownBendMode)
	}
	if !(c.BendRange > 0) || c.BendRange > 96 {
		return apperrors.NewConfigError("bend_range", c.BendRange, apperrors.ErrInvalidBend)
	}
	return nil
}

func (c Config) quantizeConfig() quantize.Config {
	q := c.Quantize
	q.BPM = c.BPM
	return q
}
