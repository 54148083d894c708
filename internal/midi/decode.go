package midi

import (
	"bytes"
	"encoding/binary"
	"fmt"

	gomidi "gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/smf"
)

// EventKind classifies decoded channel events
type EventKind string

const (
	EventNoteOn    EventKind = "note_on"
	EventNoteOff   EventKind = "note_off"
	EventPitchBend EventKind = "pitch_bend"
)

// Event is a decoded channel event at an absolute tick
type Event struct {
	Track    int
	Tick     uint32
	Kind     EventKind
	Channel  int // 1-based
	Key      uint8
	Velocity uint8
	Bend     uint16 // 14-bit, BendCenter is no bend
}

// Summary describes a decoded Standard MIDI File
type Summary struct {
	Format          uint16
	Tracks          int
	TicksPerQuarter uint16
	BPM             float64
	Events          []Event
}

// Count returns the number of events of the given kind
func (s *Summary) Count(kind EventKind) int {
	n := 0
	for _, ev := range s.Events {
		if ev.Kind == kind {
			n++
		}
	}
	return n
}

// Channels returns the set of channels carrying note-ons
func (s *Summary) Channels() map[int]int {
	out := make(map[int]int)
	for _, ev := range s.Events {
		if ev.Kind == EventNoteOn {
			out[ev.Channel]++
		}
	}
	return out
}

// Decode reads an SMF buffer back into absolute-tick events
func Decode(data []byte) (*Summary, error) {
	if len(data) < 14 || string(data[:4]) != "MThd" {
		return nil, fmt.Errorf("not a standard midi file")
	}

	file, err := smf.ReadFrom(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("read smf: %w", err)
	}

	sum := &Summary{
		Format: binary.BigEndian.Uint16(data[8:10]),
		Tracks: len(file.Tracks),
	}
	if mt, ok := file.TimeFormat.(smf.MetricTicks); ok {
		sum.TicksPerQuarter = uint16(mt)
	}

	for ti, tr := range file.Tracks {
		var abs uint32
		for _, ev := range tr {
			abs += ev.Delta

			var bpm float64
			if ev.Message.GetMetaTempo(&bpm) {
				if sum.BPM == 0 {
					sum.BPM = bpm
				}
				continue
			}

			var ch, key, vel uint8
			var rel int16
			var absBend uint16
			msg := gomidi.Message(ev.Message)
			switch {
			case msg.GetNoteOn(&ch, &key, &vel):
				sum.Events = append(sum.Events, Event{Track: ti, Tick: abs, Kind: EventNoteOn, Channel: int(ch) + 1, Key: key, Velocity: vel})
			case msg.GetNoteOff(&ch, &key, &vel):
				sum.Events = append(sum.Events, Event{Track: ti, Tick: abs, Kind: EventNoteOff, Channel: int(ch) + 1, Key: key})
			case msg.GetPitchBend(&ch, &rel, &absBend):
				sum.Events = append(sum.Events, Event{Track: ti, Tick: abs, Kind: EventPitchBend, Channel: int(ch) + 1, Bend: absBend})
			}
		}
	}

	return sum, nil
}
