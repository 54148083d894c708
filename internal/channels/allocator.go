// Package channels assigns MIDI channels to notes so that notes sounding at
// the same time never share pitch-bend state. It is interval-graph coloring
// over the 15 melodic channels; channel 10 is left to percussion.
package channels

import (
	"sort"

	"github.com/dygy/notemidi/internal/midi"
	"github.com/dygy/notemidi/internal/notes"
)

// Percussion is the channel excluded from allocation
const Percussion = 10

// Usable lists the allocatable channels, lowest first
var Usable = [...]int{1, 2, 3, 4, 5, 6, 7, 8, 9, 11, 12, 13, 14, 15, 16}

// Assignment maps each note, by input index, to a 1-based channel
type Assignment struct {
	Channels []int
	// Conflicts holds indices of notes forced onto a channel that was still
	// sounding, ascending. Their bend curves will disturb the other note.
	Conflicts []int
}

// ConflictCount returns the number of notes without a conflict-free channel
func (a Assignment) ConflictCount() int {
	return len(a.Conflicts)
}

// IsConflict reports whether note i was force-assigned
func (a Assignment) IsConflict(i int) bool {
	idx := sort.SearchInts(a.Conflicts, i)
	return idx < len(a.Conflicts) && a.Conflicts[idx] == i
}

type slot struct {
	busy    bool
	release uint32 // note-off tick
}

// Allocate assigns channels in onset order (ties by pitch, then input order).
// A note takes the lowest free channel; with all 15 busy it takes the channel
// released earliest and is recorded as a conflict. Overlap is judged on the
// tick spans the encoder writes at bpm, so a channel is only reused once its
// note-off is at or before the next note-on.
func Allocate(list []notes.Note, bpm float64) Assignment {
	order := make([]int, len(list))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		na, nb := list[order[a]], list[order[b]]
		if na.Onset != nb.Onset {
			return na.Onset < nb.Onset
		}
		return na.Pitch < nb.Pitch
	})

	var slots [len(Usable)]slot
	result := Assignment{Channels: make([]int, len(list))}

	for _, idx := range order {
		on, off := midi.NoteTicks(list[idx], bpm)

		for s := range slots {
			if slots[s].busy && slots[s].release <= on {
				slots[s].busy = false
			}
		}

		chosen := -1
		for s := range slots {
			if !slots[s].busy {
				chosen = s
				break
			}
		}

		if chosen < 0 {
			chosen = earliestRelease(slots[:])
			result.Conflicts = append(result.Conflicts, idx)
			if off > slots[chosen].release {
				slots[chosen].release = off
			}
		} else {
			slots[chosen] = slot{busy: true, release: off}
		}

		result.Channels[idx] = Usable[chosen]
	}

	sort.Ints(result.Conflicts)
	return result
}

func earliestRelease(slots []slot) int {
	best := 0
	for s := 1; s < len(slots); s++ {
		if slots[s].release < slots[best].release {
			best = s
		}
	}
	return best
}
