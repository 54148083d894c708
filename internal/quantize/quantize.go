package quantize

import (
	"math"
	"sort"

	apperrors "github.com/dygy/notemidi/internal/errors"
	"github.com/dygy/notemidi/internal/notes"
)

// Config holds the quantization grid and tempo. BPM is not part of the JSON
// form; pipelines fill it from their own tempo.
type Config struct {
	Enabled bool    `json:"enabled"`
	Grid    Grid    `json:"grid"`
	BPM     float64 `json:"-"`
}

// DefaultConfig returns a disabled 1/16 grid at 120 BPM
func DefaultConfig() Config {
	return Config{
		Enabled: false,
		Grid:    Sixteenth,
		BPM:     120,
	}
}

// Validate rejects unknown grids and non-positive tempos
func (c Config) Validate() error {
	if !c.Grid.valid() {
		return apperrors.NewConfigError("quantize.grid", int(c.Grid), apperrors.ErrInvalidGrid)
	}
	if !(c.BPM > 0) || math.IsInf(c.BPM, 0) {
		return apperrors.NewConfigError("quantize.bpm", c.BPM, apperrors.ErrInvalidTempo)
	}
	return nil
}

// Unit returns the grid step in seconds
func (c Config) Unit() float64 {
	return 60 / c.BPM * c.Grid.Beats()
}

// Quantize snaps every onset and offset to the nearest grid line. Notes that
// collapse to zero length are stretched to one grid unit, bend curves are
// rescaled onto the new span, and overlapping notes of the same pitch are
// merged. A disabled config returns an unchanged copy.
func Quantize(list []notes.Note, cfg Config) []notes.Note {
	if !cfg.Enabled {
		return notes.CloneAll(list)
	}

	unit := cfg.Unit()
	snapped := make([]notes.Note, len(list))
	for i, n := range list {
		onStep := math.Round(n.Onset / unit)
		offStep := math.Round(n.Offset / unit)
		if offStep <= onStep {
			offStep = onStep + 1
		}

		q := n.Clone()
		q.Onset = onStep * unit
		q.Offset = offStep * unit
		q.Bend = rescale(n.Bend, n.Onset, n.Offset, q.Onset, q.Offset)
		snapped[i] = q
	}

	return mergeDuplicates(snapped)
}

// rescale keeps each sample at the same fractional position within the note
func rescale(curve []notes.BendSample, oldOn, oldOff, newOn, newOff float64) []notes.BendSample {
	if len(curve) == 0 {
		return nil
	}
	oldSpan := oldOff - oldOn
	newSpan := newOff - newOn

	out := make([]notes.BendSample, 0, len(curve))
	for _, s := range curve {
		t := newOn + (s.Time-oldOn)/oldSpan*newSpan
		if len(out) > 0 && t <= out[len(out)-1].Time {
			continue
		}
		out = append(out, notes.BendSample{Time: t, Semitones: s.Semitones})
	}
	return out
}

// mergeDuplicates folds overlapping same-pitch notes into the earliest one.
// Survivors stay in input order.
func mergeDuplicates(list []notes.Note) []notes.Note {
	order := make([]int, len(list))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		na, nb := list[order[a]], list[order[b]]
		if na.Pitch != nb.Pitch {
			return na.Pitch < nb.Pitch
		}
		return na.Onset < nb.Onset
	})

	dropped := make([]bool, len(list))
	cur := -1
	for _, idx := range order {
		if cur >= 0 && list[cur].Pitch == list[idx].Pitch && list[idx].Onset < list[cur].Offset {
			list[cur] = absorb(list[cur], list[idx])
			dropped[idx] = true
			continue
		}
		cur = idx
	}

	out := make([]notes.Note, 0, len(list))
	for i, n := range list {
		if !dropped[i] {
			out = append(out, n)
		}
	}
	return out
}

// absorb extends keep over the union of both intervals. Velocity stays with
// keep; bend samples of other past keep's last sample are appended.
func absorb(keep, other notes.Note) notes.Note {
	if other.Offset > keep.Offset {
		keep.Offset = other.Offset
	}
	for _, s := range other.Bend {
		if len(keep.Bend) == 0 || s.Time > keep.Bend[len(keep.Bend)-1].Time {
			keep.Bend = append(keep.Bend, s)
		}
	}
	return keep
}
