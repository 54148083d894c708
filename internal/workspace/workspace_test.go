package workspace

import (
	"os"
	"path/filepath"
	"testing"
)

func TestOpen_CreatesMissingDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out", "midi")
	ws, err := Open(dir)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if !ws.Created {
		t.Error("expected Created for a new directory")
	}
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		t.Errorf("directory not created: %v", err)
	}

	again, err := Open(dir)
	if err != nil || again.Created {
		t.Errorf("reopen: created=%v err=%v", again != nil && again.Created, err)
	}
}

func TestOpen_RejectsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "file")
	os.WriteFile(path, []byte("x"), 0644)
	if _, err := Open(path); err == nil {
		t.Error("expected error when output path is a file")
	}
}

func TestMIDIPathAndWrite(t *testing.T) {
	ws, err := Open(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	path := ws.MIDIPath("/recordings/take 3.notes.json")
	if filepath.Base(path) != "take 3.notes.mid" {
		t.Errorf("MIDIPath = %q", path)
	}

	if err := ws.WriteFile(path, []byte("MThd")); err != nil {
		t.Fatalf("write: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil || string(data) != "MThd" {
		t.Errorf("read back %q, %v", data, err)
	}

	entries, _ := os.ReadDir(ws.Dir)
	if len(entries) != 1 {
		t.Errorf("temp files left behind: %v", entries)
	}
}
