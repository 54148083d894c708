package midi

import (
	"bytes"
	"fmt"
	"sort"

	gomidi "gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/smf"

	"github.com/dygy/notemidi/internal/notes"
)

// Options controls how a note list is rendered to a Standard MIDI File
type Options struct {
	BPM       float64
	Mode      BendMode
	BendRange float64 // semitones; DefaultBendRange when zero
	TrackName string
}

// Event order at equal ticks. The bend reset rides with the note-off so a
// channel is centred before the next note on it starts.
type eventKind int

const (
	kindNoteOff eventKind = iota
	kindBendReset
	kindNoteOn
	kindBend
)

type event struct {
	tick uint32
	kind eventKind
	seq  int
	msg  gomidi.Message
}

// Encode renders notes as a format 1 SMF: a tempo track followed by one note
// track. channels holds the 1-based channel of each note and is required for
// MultiBend; other modes put every note on channel 1. A channels slice that
// does not match the notes under MultiBend is a caller bug and panics.
func Encode(list []notes.Note, channels []int, opts Options) ([]byte, error) {
	if opts.BendRange == 0 {
		opts.BendRange = DefaultBendRange
	}
	if opts.Mode == MultiBend && len(channels) != len(list) {
		panic(fmt.Sprintf("midi: %d channel assignments for %d notes", len(channels), len(list)))
	}

	file := smf.New()
	file.TimeFormat = smf.MetricTicks(TicksPerQuarter)

	var tempo smf.Track
	tempo.Add(0, smf.MetaTrackSequenceName("tempo"))
	tempo.Add(0, smf.MetaMeter(4, 4))
	tempo.Add(0, smf.MetaTempo(opts.BPM))
	tempo.Close(0)
	if err := file.Add(tempo); err != nil {
		return nil, fmt.Errorf("add tempo track: %w", err)
	}

	name := opts.TrackName
	if name == "" {
		name = "notes"
	}
	var track smf.Track
	track.Add(0, smf.MetaTrackSequenceName(name))

	var last uint32
	for _, ev := range noteEvents(list, channels, opts) {
		track.Add(ev.tick-last, ev.msg)
		last = ev.tick
	}
	track.Close(0)
	if err := file.Add(track); err != nil {
		return nil, fmt.Errorf("add note track: %w", err)
	}

	var buf bytes.Buffer
	if _, err := file.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("write smf: %w", err)
	}
	return buf.Bytes(), nil
}

// noteEvents builds every channel event of the note track in playback order
func noteEvents(list []notes.Note, channels []int, opts Options) []event {
	events := make([]event, 0, len(list)*3)
	add := func(tick uint32, kind eventKind, msg gomidi.Message) {
		events = append(events, event{tick: tick, kind: kind, seq: len(events), msg: msg})
	}

	for i, n := range list {
		ch := uint8(0)
		if opts.Mode == MultiBend {
			ch = channelIndex(channels[i])
		}

		on, off := NoteTicks(n, opts.BPM)

		vel := uint8(n.Velocity)
		if vel == 0 {
			vel = 1
		}
		add(on, kindNoteOn, gomidi.NoteOn(ch, uint8(n.Pitch), vel))
		add(off, kindNoteOff, gomidi.NoteOff(ch, uint8(n.Pitch)))

		if opts.Mode == NoBend {
			continue
		}

		prev := -1
		for _, s := range n.Bend {
			tick := SecondsToTicks(s.Time, opts.BPM)
			if tick >= off {
				break
			}
			if tick < on {
				tick = on
			}
			value := int(BendValue(s.Semitones, opts.BendRange))
			if value == prev {
				continue
			}
			prev = value
			add(tick, kindBend, gomidi.Pitchbend(ch, int16(value-BendCenter)))
		}
		add(off, kindBendReset, gomidi.Pitchbend(ch, 0))
	}

	sort.Slice(events, func(a, b int) bool {
		ea, eb := events[a], events[b]
		if ea.tick != eb.tick {
			return ea.tick < eb.tick
		}
		if ea.kind != eb.kind {
			return ea.kind < eb.kind
		}
		return ea.seq < eb.seq
	})
	return events
}

func channelIndex(ch int) uint8 {
	if ch < 1 || ch > 16 {
		panic(fmt.Sprintf("midi: channel %d outside 1-16", ch))
	}
	return uint8(ch - 1)
}
