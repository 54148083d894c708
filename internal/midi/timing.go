package midi

import (
	"fmt"
	"math"
	"strings"

	apperrors "github.com/dygy/notemidi/internal/errors"
	"github.com/dygy/notemidi/internal/notes"
)

// TicksPerQuarter is the fixed SMF resolution
const TicksPerQuarter = 960

// DefaultBendRange is the pitch-bend width in semitones that maps onto the
// full 14-bit range. Synths receiving the file must use the same width.
const DefaultBendRange = 2.0

// Pitch-bend 14-bit bounds
const (
	BendCenter = 8192
	BendMax    = 16383
)

// MaxTick is the largest absolute tick written. Keeping every event at or
// below it keeps every delta inside the 4-byte variable-length quantity.
const MaxTick = 0x0FFFFFFF

// tickHeadroom leaves room for quantization to move an offset up by one whole
// note and for the one-tick minimum length
const tickHeadroom = 4*TicksPerQuarter + 1

// SecondsToTicks converts a time in seconds to the nearest tick at bpm,
// clamped to [0, MaxTick]
func SecondsToTicks(seconds, bpm float64) uint32 {
	t := math.Round(seconds * TicksPerQuarter * bpm / 60)
	if t < 0 {
		return 0
	}
	if t > MaxTick {
		return MaxTick
	}
	return uint32(t)
}

// NoteTicks returns the tick span a note is written with. A note shorter than
// half a tick still lasts one tick.
func NoteTicks(n notes.Note, bpm float64) (on, off uint32) {
	on = SecondsToTicks(n.Onset, bpm)
	off = SecondsToTicks(n.Offset, bpm)
	if off <= on {
		off = on + 1
	}
	return on, off
}

// MaxSeconds is the latest note offset accepted at bpm
func MaxSeconds(bpm float64) float64 {
	return TicksToSeconds(MaxTick-tickHeadroom, bpm)
}

// CheckTiming rejects notes ending past MaxSeconds, which no SMF delta time
// could reach
func CheckTiming(list []notes.Note, bpm float64) error {
	limit := MaxSeconds(bpm)
	for i, n := range list {
		if n.Offset > limit {
			return &apperrors.NoteError{
				Index:  i,
				Reason: fmt.Sprintf("offset %.1fs past the %.1fs representable at %g BPM", n.Offset, limit, bpm),
			}
		}
	}
	return nil
}

// TicksToSeconds is the inverse of SecondsToTicks
func TicksToSeconds(ticks uint32, bpm float64) float64 {
	return float64(ticks) * 60 / (TicksPerQuarter * bpm)
}

// BendValue maps a semitone offset to the 14-bit pitch-bend value, clamped to
// [0, BendMax] with 0 semitones at BendCenter
func BendValue(semitones, bendRange float64) uint16 {
	v := BendCenter + math.Round(semitones/bendRange*BendCenter)
	if v < 0 {
		v = 0
	}
	if v > BendMax {
		v = BendMax
	}
	return uint16(v)
}

// BendMode selects how bend curves reach the output
type BendMode int

const (
	NoBend     BendMode = iota // curves discarded, channel 1 only
	SingleBend                 // curves applied on shared channel 1
	MultiBend                  // curves applied per allocated channel
)

var bendModeNames = []string{"none", "single", "multi"}

func (m BendMode) String() string {
	if m < NoBend || m > MultiBend {
		return fmt.Sprintf("BendMode(%d)", int(m))
	}
	return bendModeNames[m]
}

// Valid reports whether m is one of the known modes
func (m BendMode) Valid() bool {
	return m >= NoBend && m <= MultiBend
}

// ParseBendMode accepts "none", "single", "multi" and the long
// "no pitch bend" / "single pitch bend" / "multi pitch bend" labels
func ParseBendMode(s string) (BendMode, error) {
	norm := strings.ToLower(strings.TrimSpace(s))
	norm = strings.TrimSuffix(norm, " pitch bend")
	if norm == "no" {
		norm = "none"
	}
	for i, name := range bendModeNames {
		if norm == name {
			return BendMode(i), nil
		}
	}
	return 0, fmt.Errorf("%w: %q", apperrors.ErrUnknownBendMode, s)
}

func (m BendMode) MarshalText() ([]byte, error) {
	if !m.Valid() {
		return nil, fmt.Errorf("%w: %d", apperrors.ErrUnknownBendMode, int(m))
	}
	return []byte(m.String()), nil
}

func (m *BendMode) UnmarshalText(text []byte) error {
	v, err := ParseBendMode(string(text))
	if err != nil {
		return err
	}
	*m = v
	return nil
}
