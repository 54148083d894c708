package cache

import (
	"testing"

	"github.com/dygy/notemidi/internal/notes"
)

func sample() []notes.Note {
	return []notes.Note{
		{Pitch: 60, Onset: 0, Offset: 0.5, Velocity: 90},
		{Pitch: 64, Onset: 0.5, Offset: 1, Velocity: 80, Bend: []notes.BendSample{{Time: 0.6, Semitones: 0.25}}},
	}
}

func TestKey_DependsOnNotesAndOptions(t *testing.T) {
	opts := map[string]any{"bpm": 120}
	a, err := Key(sample(), opts)
	if err != nil {
		t.Fatal(err)
	}
	b, _ := Key(sample(), opts)
	if a != b {
		t.Errorf("same input gave %s and %s", a, b)
	}

	changed := sample()
	changed[1].Bend[0].Semitones = 0.5
	if c, _ := Key(changed, opts); c == a {
		t.Error("bend change did not change the key")
	}
	if d, _ := Key(sample(), map[string]any{"bpm": 90}); d == a {
		t.Error("option change did not change the key")
	}
}

func TestPutGet(t *testing.T) {
	c, err := New(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}

	if _, ok := c.Get("missing"); ok {
		t.Error("hit on empty cache")
	}

	entry := &Entry{Key: "abc123", Notes: 2, NotesMerged: 1, BendConflicts: 3, MIDI: []byte("MThd\x00\x00\x00\x06")}
	if err := c.Put(entry); err != nil {
		t.Fatalf("put: %v", err)
	}

	got, ok := c.Get("abc123")
	if !ok {
		t.Fatal("miss after put")
	}
	if got.Notes != 2 || got.NotesMerged != 1 || got.BendConflicts != 3 || string(got.MIDI) != string(entry.MIDI) {
		t.Errorf("got %+v", got)
	}

	size, count, err := c.Size()
	if err != nil || count != 1 || size == 0 {
		t.Errorf("size=%d count=%d err=%v", size, count, err)
	}

	if err := c.Clear(); err != nil {
		t.Fatal(err)
	}
	if _, ok := c.Get("abc123"); ok {
		t.Error("hit after clear")
	}
}
