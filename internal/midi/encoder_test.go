package midi

import (
	"encoding/binary"
	"errors"
	"math"
	"math/rand"
	"testing"

	apperrors "github.com/dygy/notemidi/internal/errors"
	"github.com/dygy/notemidi/internal/notes"
)

// at 120 BPM one second is 1920 ticks
const bpm = 120

func bentNote(pitch int, on, off float64) notes.Note {
	return notes.Note{
		Pitch: pitch, Onset: on, Offset: off, Velocity: 90,
		Bend: []notes.BendSample{
			{Time: on, Semitones: 0.5},
			{Time: (on + off) / 2, Semitones: -1},
		},
	}
}

func mustDecode(t *testing.T, data []byte) *Summary {
	t.Helper()
	sum, err := Decode(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	return sum
}

func TestEncode_Header(t *testing.T) {
	data, err := Encode([]notes.Note{{Pitch: 60, Onset: 0, Offset: 1, Velocity: 100}}, nil, Options{BPM: bpm})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	if string(data[0:4]) != "MThd" {
		t.Fatalf("missing MThd magic: % x", data[:4])
	}
	if l := binary.BigEndian.Uint32(data[4:8]); l != 6 {
		t.Errorf("header length %d, want 6", l)
	}
	if f := binary.BigEndian.Uint16(data[8:10]); f != 1 {
		t.Errorf("format %d, want 1", f)
	}
	if n := binary.BigEndian.Uint16(data[10:12]); n != 2 {
		t.Errorf("track count %d, want 2", n)
	}
	if d := binary.BigEndian.Uint16(data[12:14]); d != TicksPerQuarter {
		t.Errorf("division %d, want %d", d, TicksPerQuarter)
	}
	if string(data[14:18]) != "MTrk" {
		t.Errorf("missing MTrk magic after header: % x", data[14:18])
	}

	sum := mustDecode(t, data)
	if sum.BPM != bpm {
		t.Errorf("tempo %v, want %v", sum.BPM, bpm)
	}
	if sum.Tracks != 2 || sum.TicksPerQuarter != TicksPerQuarter {
		t.Errorf("unexpected summary %+v", sum)
	}
}

func TestEncode_NoteTiming(t *testing.T) {
	data, err := Encode([]notes.Note{{Pitch: 64, Onset: 0.5, Offset: 1.25, Velocity: 70}}, nil, Options{BPM: bpm})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	sum := mustDecode(t, data)

	if len(sum.Events) != 2 {
		t.Fatalf("expected 2 events, got %+v", sum.Events)
	}
	on, off := sum.Events[0], sum.Events[1]
	if on.Kind != EventNoteOn || on.Tick != 960 || on.Key != 64 || on.Velocity != 70 || on.Channel != 1 {
		t.Errorf("note-on = %+v", on)
	}
	if off.Kind != EventNoteOff || off.Tick != 2400 || off.Track != 1 {
		t.Errorf("note-off = %+v", off)
	}
}

func TestEncode_NoBendDropsCurves(t *testing.T) {
	list := []notes.Note{bentNote(60, 0, 1), bentNote(64, 0.5, 2)}
	data, err := Encode(list, []int{3, 4}, Options{BPM: bpm, Mode: NoBend})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	sum := mustDecode(t, data)

	if n := sum.Count(EventPitchBend); n != 0 {
		t.Errorf("NoBend output has %d pitch-bend events", n)
	}
	if chans := sum.Channels(); len(chans) != 1 || chans[1] != 2 {
		t.Errorf("NoBend should use channel 1 only, got %v", chans)
	}
}

func TestEncode_SingleBendSharesChannelOne(t *testing.T) {
	list := []notes.Note{bentNote(60, 0, 1), bentNote(64, 0.5, 2)}
	data, err := Encode(list, nil, Options{BPM: bpm, Mode: SingleBend})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	sum := mustDecode(t, data)

	for _, ev := range sum.Events {
		if ev.Channel != 1 {
			t.Fatalf("SingleBend event on channel %d", ev.Channel)
		}
	}
	// two samples plus one reset per note
	if n := sum.Count(EventPitchBend); n != 6 {
		t.Errorf("expected 6 pitch-bend events, got %d", n)
	}
}

func TestEncode_MultiBendUsesAssignedChannels(t *testing.T) {
	list := []notes.Note{bentNote(60, 0, 1), bentNote(64, 0.5, 2)}
	data, err := Encode(list, []int{1, 11}, Options{BPM: bpm, Mode: MultiBend})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	sum := mustDecode(t, data)

	bends := map[int][]uint16{}
	for _, ev := range sum.Events {
		if ev.Kind == EventNoteOn && ev.Key == 64 && ev.Channel != 11 {
			t.Errorf("note 64 on channel %d, want 11", ev.Channel)
		}
		if ev.Kind == EventPitchBend {
			bends[ev.Channel] = append(bends[ev.Channel], ev.Bend)
		}
	}

	want := []uint16{10240, 4096, BendCenter}
	for _, ch := range []int{1, 11} {
		got := bends[ch]
		if len(got) != len(want) {
			t.Fatalf("channel %d bends %v, want %v", ch, got, want)
		}
		for i := range want {
			if got[i] != want[i] {
				t.Errorf("channel %d bend %d = %d, want %d", ch, i, got[i], want[i])
			}
		}
	}
}

func TestEncode_EventOrderAtSameTick(t *testing.T) {
	// second note reuses channel 2 exactly when the first releases it
	list := []notes.Note{bentNote(60, 0, 1), bentNote(62, 1, 2)}
	data, err := Encode(list, []int{2, 2}, Options{BPM: bpm, Mode: MultiBend})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	sum := mustDecode(t, data)

	var atBoundary []Event
	for _, ev := range sum.Events {
		if ev.Tick == 1920 {
			atBoundary = append(atBoundary, ev)
		}
	}
	if len(atBoundary) != 4 {
		t.Fatalf("expected 4 events at tick 1920, got %+v", atBoundary)
	}
	if atBoundary[0].Kind != EventNoteOff || atBoundary[0].Key != 60 {
		t.Errorf("first event should be note-off of 60, got %+v", atBoundary[0])
	}
	if atBoundary[1].Kind != EventPitchBend || atBoundary[1].Bend != BendCenter {
		t.Errorf("second event should be bend reset, got %+v", atBoundary[1])
	}
	if atBoundary[2].Kind != EventNoteOn || atBoundary[2].Key != 62 {
		t.Errorf("third event should be note-on of 62, got %+v", atBoundary[2])
	}
	if atBoundary[3].Kind != EventPitchBend || atBoundary[3].Bend != 10240 {
		t.Errorf("fourth event should be the new note's first bend, got %+v", atBoundary[3])
	}
}

func TestEncode_BendSamplesClampedToNote(t *testing.T) {
	n := notes.Note{
		Pitch: 60, Onset: 1, Offset: 2, Velocity: 90,
		Bend: []notes.BendSample{
			{Time: 0.5, Semitones: 1},  // before onset: moved to the note-on tick
			{Time: 1.2, Semitones: 1},  // same value: skipped
			{Time: 1.5, Semitones: 0},  // kept
			{Time: 2.5, Semitones: -1}, // after offset: dropped
		},
	}
	data, err := Encode([]notes.Note{n}, nil, Options{BPM: bpm, Mode: SingleBend})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	sum := mustDecode(t, data)

	var ticks []uint32
	for _, ev := range sum.Events {
		if ev.Kind == EventPitchBend {
			ticks = append(ticks, ev.Tick)
		}
	}
	want := []uint32{1920, 2880, 3840}
	if len(ticks) != len(want) {
		t.Fatalf("bend ticks %v, want %v", ticks, want)
	}
	for i := range want {
		if ticks[i] != want[i] {
			t.Errorf("bend %d at tick %d, want %d", i, ticks[i], want[i])
		}
	}
}

func TestEncode_ZeroVelocityStillSounds(t *testing.T) {
	data, err := Encode([]notes.Note{{Pitch: 60, Onset: 0, Offset: 1, Velocity: 0}}, nil, Options{BPM: bpm})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	sum := mustDecode(t, data)
	if sum.Count(EventNoteOn) != 1 || sum.Events[0].Velocity != 1 {
		t.Errorf("expected one note-on with velocity 1, got %+v", sum.Events)
	}
}

func TestEncode_Empty(t *testing.T) {
	data, err := Encode(nil, nil, Options{BPM: bpm, Mode: MultiBend})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if sum := mustDecode(t, data); len(sum.Events) != 0 {
		t.Errorf("empty input produced events: %+v", sum.Events)
	}
}

func TestEncode_MissingAssignmentPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("expected panic for missing channel assignment")
		}
	}()
	Encode([]notes.Note{{Pitch: 60, Onset: 0, Offset: 1}}, nil, Options{BPM: bpm, Mode: MultiBend})
}

func TestBendValue(t *testing.T) {
	tests := []struct {
		semis float64
		want  uint16
	}{
		{0, 8192},
		{1, 12288},
		{-1, 4096},
		{2, BendMax},
		{-2, 0},
		{7, BendMax},
		{-7, 0},
	}
	for _, tt := range tests {
		if got := BendValue(tt.semis, DefaultBendRange); got != tt.want {
			t.Errorf("BendValue(%v) = %d, want %d", tt.semis, got, tt.want)
		}
	}
}

func TestTickRoundTrip(t *testing.T) {
	r := rand.New(rand.NewSource(11))
	for i := 0; i < 1000; i++ {
		tempo := 30 + r.Float64()*270
		sec := r.Float64() * 600
		back := TicksToSeconds(SecondsToTicks(sec, tempo), tempo)
		if tick := 60 / (TicksPerQuarter * tempo); math.Abs(back-sec) > tick {
			t.Fatalf("%.6fs at %.2f BPM came back as %.6fs", sec, tempo, back)
		}
	}
}

func TestSecondsToTicks_Clamps(t *testing.T) {
	if got := SecondsToTicks(3e6, 120); got != MaxTick {
		t.Errorf("3e6s = %d ticks, want %d", got, MaxTick)
	}
	if got := SecondsToTicks(-1, 120); got != 0 {
		t.Errorf("-1s = %d ticks, want 0", got)
	}
	on, off := NoteTicks(notes.Note{Onset: 1, Offset: 1.0001}, 120)
	if off != on+1 {
		t.Errorf("sub-tick note spans %d..%d, want one tick", on, off)
	}

	limit := MaxSeconds(120)
	if err := CheckTiming([]notes.Note{{Onset: 0, Offset: limit}}, 120); err != nil {
		t.Errorf("offset at the limit rejected: %v", err)
	}
	err := CheckTiming([]notes.Note{{Onset: 0, Offset: 1}, {Onset: 0, Offset: limit + 1}}, 120)
	var ne *apperrors.NoteError
	if !errors.As(err, &ne) || ne.Index != 1 {
		t.Errorf("expected NoteError at index 1, got %v", err)
	}
}

func TestParseBendMode(t *testing.T) {
	tests := map[string]BendMode{
		"none": NoBend, "No Pitch Bend": NoBend, "single": SingleBend,
		"Multi Pitch Bend": MultiBend, "MULTI": MultiBend,
	}
	for in, want := range tests {
		got, err := ParseBendMode(in)
		if err != nil || got != want {
			t.Errorf("ParseBendMode(%q) = %v, %v; want %v", in, got, err, want)
		}
	}
	if _, err := ParseBendMode("poly"); !errors.Is(err, apperrors.ErrUnknownBendMode) {
		t.Errorf("expected ErrUnknownBendMode, got %v", err)
	}
}
