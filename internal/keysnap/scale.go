package keysnap

import (
	"fmt"
	"strings"

	apperrors "github.com/dygy/notemidi/internal/errors"
)

// RootNote is a pitch class, C = 0 through B = 11
type RootNote int

const (
	C RootNote = iota
	CSharp
	D
	DSharp
	E
	F
	FSharp
	G
	GSharp
	A
	ASharp
	B
)

var rootSharpNames = [12]string{"C", "C#", "D", "D#", "E", "F", "F#", "G", "G#", "A", "A#", "B"}
var rootFlatNames = [12]string{"C", "Db", "D", "Eb", "E", "F", "Gb", "G", "Ab", "A", "Bb", "B"}

func (r RootNote) String() string {
	if r < C || r > B {
		return fmt.Sprintf("RootNote(%d)", int(r))
	}
	return rootSharpNames[r]
}

// FlatName returns the flat spelling ("Bb" rather than "A#")
func (r RootNote) FlatName() string {
	if r < C || r > B {
		return r.String()
	}
	return rootFlatNames[r]
}

// ParseRoot accepts sharp or flat spellings, case-insensitive
func ParseRoot(s string) (RootNote, error) {
	s = strings.TrimSpace(s)
	for i := range rootSharpNames {
		if strings.EqualFold(s, rootSharpNames[i]) || strings.EqualFold(s, rootFlatNames[i]) {
			return RootNote(i), nil
		}
	}
	return 0, fmt.Errorf("%w: %q", apperrors.ErrUnknownRoot, s)
}

func (r RootNote) MarshalText() ([]byte, error) {
	if r < C || r > B {
		return nil, fmt.Errorf("%w: %d", apperrors.ErrUnknownRoot, int(r))
	}
	return []byte(r.String()), nil
}

func (r *RootNote) UnmarshalText(text []byte) error {
	v, err := ParseRoot(string(text))
	if err != nil {
		return err
	}
	*r = v
	return nil
}

// ScaleType selects the interval table used to decide which pitch classes are in key
type ScaleType int

const (
	Chromatic ScaleType = iota
	Major
	Minor
)

// Scale definitions - intervals from root (semitones)
var scaleIntervals = map[ScaleType][]int{
	Chromatic: {0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11},
	Major:     {0, 2, 4, 5, 7, 9, 11},
	Minor:     {0, 2, 3, 5, 7, 8, 10},
}

var scaleNames = []string{"chromatic", "major", "minor"}

func (s ScaleType) String() string {
	if s < Chromatic || s > Minor {
		return fmt.Sprintf("ScaleType(%d)", int(s))
	}
	return scaleNames[s]
}

// ParseScale parses "chromatic", "major" or "minor"
func ParseScale(s string) (ScaleType, error) {
	for i, name := range scaleNames {
		if strings.EqualFold(strings.TrimSpace(s), name) {
			return ScaleType(i), nil
		}
	}
	return 0, fmt.Errorf("%w: %q", apperrors.ErrUnknownScale, s)
}

func (s ScaleType) MarshalText() ([]byte, error) {
	if s < Chromatic || s > Minor {
		return nil, fmt.Errorf("%w: %d", apperrors.ErrUnknownScale, int(s))
	}
	return []byte(s.String()), nil
}

func (s *ScaleType) UnmarshalText(text []byte) error {
	v, err := ParseScale(string(text))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// SnapMode decides what happens to out-of-key notes
type SnapMode int

const (
	Adjust SnapMode = iota // move to the nearest in-key pitch
	Remove                 // drop the note
)

var snapModeNames = []string{"adjust", "remove"}

func (m SnapMode) String() string {
	if m < Adjust || m > Remove {
		return fmt.Sprintf("SnapMode(%d)", int(m))
	}
	return snapModeNames[m]
}

// ParseSnapMode parses "adjust" or "remove"
func ParseSnapMode(s string) (SnapMode, error) {
	for i, name := range snapModeNames {
		if strings.EqualFold(strings.TrimSpace(s), name) {
			return SnapMode(i), nil
		}
	}
	return 0, fmt.Errorf("%w: %q", apperrors.ErrUnknownSnapMode, s)
}

func (m SnapMode) MarshalText() ([]byte, error) {
	if m < Adjust || m > Remove {
		return nil, fmt.Errorf("%w: %d", apperrors.ErrUnknownSnapMode, int(m))
	}
	return []byte(m.String()), nil
}

func (m *SnapMode) UnmarshalText(text []byte) error {
	v, err := ParseSnapMode(string(text))
	if err != nil {
		return err
	}
	*m = v
	return nil
}
