package keysnap

import (
	"fmt"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	apperrors "github.com/dygy/notemidi/internal/errors"
	"github.com/dygy/notemidi/internal/notes"
)

// Config selects the key notes are snapped onto and the allowed note range
type Config struct {
	Root    RootNote  `json:"root"`
	Scale   ScaleType `json:"scale"`
	Mode    SnapMode  `json:"mode"`
	MinNote int       `json:"min_note"`
	MaxNote int       `json:"max_note"`
}

// DefaultConfig keeps every note: chromatic scale over the full MIDI range
func DefaultConfig() Config {
	return Config{
		Root:    C,
		Scale:   Chromatic,
		Mode:    Remove,
		MinNote: notes.MinNote,
		MaxNote: notes.MaxNote,
	}
}

// Validate rejects unknown enum values and empty or out-of-bounds ranges
func (c Config) Validate() error {
	if c.Root < C || c.Root > B {
		return apperrors.NewConfigError("key.root", int(c.Root), apperrors.ErrUnknownRoot)
	}
	if _, ok := scaleIntervals[c.Scale]; !ok {
		return apperrors.NewConfigError("key.scale", int(c.Scale), apperrors.ErrUnknownScale)
	}
	if c.Mode != Adjust && c.Mode != Remove {
		return apperrors.NewConfigError("key.mode", int(c.Mode), apperrors.ErrUnknownSnapMode)
	}
	if c.MinNote < notes.MinNote || c.MaxNote > notes.MaxNote || c.MinNote >= c.MaxNote {
		return apperrors.NewConfigError("key.range", fmt.Sprintf("[%d,%d]", c.MinNote, c.MaxNote), apperrors.ErrInvalidRange)
	}
	return nil
}

// Label renders the key for display, e.g. "F# Minor"
func (c Config) Label() string {
	return fmt.Sprintf("%s %s", c.Root, cases.Title(language.English).String(c.Scale.String()))
}

// PitchClasses returns the in-key membership of the 12 pitch classes
func (c Config) PitchClasses() [12]bool {
	var set [12]bool
	for _, interval := range scaleIntervals[c.Scale] {
		set[(int(c.Root)+interval)%12] = true
	}
	return set
}

// InKey reports whether pitch belongs to the configured scale
func (c Config) InKey(pitch int) bool {
	set := c.PitchClasses()
	return set[pitchClass(pitch)]
}

// Snap maps every note onto the configured key and range. Surviving notes keep
// their relative order; out-of-key notes are dropped in Remove mode and moved
// to the nearest in-key pitch in Adjust mode, ties going to the lower pitch.
// Notes outside [MinNote, MaxNote] are moved by octaves in Adjust mode and
// dropped when no octave fits, or dropped outright in Remove mode.
func Snap(list []notes.Note, cfg Config) []notes.Note {
	inKey := cfg.PitchClasses()
	out := make([]notes.Note, 0, len(list))

	for _, n := range list {
		pitch := n.Pitch
		if !inKey[pitchClass(pitch)] {
			if cfg.Mode == Remove {
				continue
			}
			pitch = nearestInKey(pitch, inKey)
		}

		pitch, ok := cfg.place(pitch)
		if !ok {
			continue
		}

		snapped := n.Clone()
		snapped.Pitch = pitch
		out = append(out, snapped)
	}

	return out
}

// place fits pitch into [MinNote, MaxNote], shifting by octaves in Adjust mode
func (c Config) place(pitch int) (int, bool) {
	if pitch >= c.MinNote && pitch <= c.MaxNote {
		return pitch, true
	}
	if c.Mode == Remove {
		return 0, false
	}
	for pitch < c.MinNote {
		pitch += 12
	}
	for pitch > c.MaxNote {
		pitch -= 12
	}
	if pitch < c.MinNote {
		return 0, false
	}
	return pitch, true
}

func nearestInKey(pitch int, inKey [12]bool) int {
	for d := 1; d < 12; d++ {
		if down := pitch - d; down >= notes.MinNote && inKey[pitchClass(down)] {
			return down
		}
		if up := pitch + d; up <= notes.MaxNote && inKey[pitchClass(up)] {
			return up
		}
	}
	return pitch
}

func pitchClass(pitch int) int {
	return ((pitch % 12) + 12) % 12
}
