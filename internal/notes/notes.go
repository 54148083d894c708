package notes

import (
	"fmt"
	"math"

	apperrors "github.com/dygy/notemidi/internal/errors"
)

// MIDI note number bounds
const (
	MinNote = 0
	MaxNote = 127
)

// BendSample is one point of a pitch deviation curve
type BendSample struct {
	Time      float64 `json:"time"`      // seconds, absolute
	Semitones float64 `json:"semitones"` // offset from Note.Pitch
}

// Note is a single transcribed note with its continuous pitch deviation
type Note struct {
	Pitch    int          `json:"pitch"`
	Onset    float64      `json:"onset"`
	Offset   float64      `json:"offset"`
	Velocity int          `json:"velocity"`
	Bend     []BendSample `json:"bend,omitempty"`
}

// Duration returns Offset - Onset in seconds
func (n Note) Duration() float64 {
	return n.Offset - n.Onset
}

// Overlaps reports whether the half-open intervals [Onset, Offset) intersect
func (n Note) Overlaps(o Note) bool {
	return n.Onset < o.Offset && o.Onset < n.Offset
}

// Clone returns a copy that shares no bend storage with n
func (n Note) Clone() Note {
	c := n
	if n.Bend != nil {
		c.Bend = make([]BendSample, len(n.Bend))
		copy(c.Bend, n.Bend)
	}
	return c
}

// Validate checks pitch, velocity and timing bounds of a single note
func (n Note) Validate() error {
	switch {
	case n.Pitch < MinNote || n.Pitch > MaxNote:
		return fmt.Errorf("pitch %d outside %d-%d", n.Pitch, MinNote, MaxNote)
	case n.Velocity < 0 || n.Velocity > 127:
		return fmt.Errorf("velocity %d outside 0-127", n.Velocity)
	case math.IsNaN(n.Onset) || math.IsNaN(n.Offset) || math.IsInf(n.Onset, 0) || math.IsInf(n.Offset, 0):
		return fmt.Errorf("non-finite timing")
	case n.Onset < 0:
		return fmt.Errorf("negative onset %.4f", n.Onset)
	case n.Offset <= n.Onset:
		return fmt.Errorf("offset %.4f not after onset %.4f", n.Offset, n.Onset)
	}
	for i := 1; i < len(n.Bend); i++ {
		if n.Bend[i].Time <= n.Bend[i-1].Time {
			return fmt.Errorf("bend sample %d not after sample %d", i, i-1)
		}
	}
	return nil
}

// ValidateAll validates every note and reports the first failure with its index
func ValidateAll(list []Note) error {
	for i, n := range list {
		if err := n.Validate(); err != nil {
			return &apperrors.NoteError{Index: i, Reason: err.Error()}
		}
	}
	return nil
}

// CloneAll deep-copies a note list
func CloneAll(list []Note) []Note {
	out := make([]Note, len(list))
	for i, n := range list {
		out[i] = n.Clone()
	}
	return out
}
