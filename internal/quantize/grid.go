package quantize

import (
	"fmt"
	"strings"

	apperrors "github.com/dygy/notemidi/internal/errors"
)

// Grid is a note value used as the quantization step
type Grid int

const (
	Whole Grid = iota
	Half
	Quarter
	Eighth
	Sixteenth
	ThirtySecond
	QuarterTriplet
	EighthTriplet
	SixteenthTriplet
)

// Grid lengths in quarter-note beats
var gridBeats = []float64{
	4,       // 1/1
	2,       // 1/2
	1,       // 1/4
	0.5,     // 1/8
	0.25,    // 1/16
	0.125,   // 1/32
	2.0 / 3, // 1/4T
	1.0 / 3, // 1/8T
	1.0 / 6, // 1/16T
}

var gridNames = []string{"1/1", "1/2", "1/4", "1/8", "1/16", "1/32", "1/4T", "1/8T", "1/16T"}

func (g Grid) valid() bool {
	return g >= Whole && g <= SixteenthTriplet
}

// Beats returns the grid length in quarter notes
func (g Grid) Beats() float64 {
	if !g.valid() {
		return 0
	}
	return gridBeats[g]
}

func (g Grid) String() string {
	if !g.valid() {
		return fmt.Sprintf("Grid(%d)", int(g))
	}
	return gridNames[g]
}

// ParseGrid accepts "1/8", "1/8T", "1/8t" and "1/8-triplet"
func ParseGrid(s string) (Grid, error) {
	norm := strings.ToUpper(strings.TrimSpace(s))
	norm = strings.TrimSuffix(norm, "-TRIPLET")
	if len(norm) != len(strings.TrimSpace(s)) {
		norm += "T"
	}
	for i, name := range gridNames {
		if norm == name {
			return Grid(i), nil
		}
	}
	return 0, fmt.Errorf("%w: %q", apperrors.ErrInvalidGrid, s)
}

func (g Grid) MarshalText() ([]byte, error) {
	if !g.valid() {
		return nil, fmt.Errorf("%w: %d", apperrors.ErrInvalidGrid, int(g))
	}
	return []byte(g.String()), nil
}

func (g *Grid) UnmarshalText(text []byte) error {
	v, err := ParseGrid(string(text))
	if err != nil {
		return err
	}
	*g = v
	return nil
}
