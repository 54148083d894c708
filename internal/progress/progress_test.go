package progress

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"
)

func TestReporter(t *testing.T) {
	var buf bytes.Buffer
	r := NewReporter(&buf, false)

	r.StartStage(StageSnap)
	r.Update("hidden unless verbose")
	r.StageComplete("%d notes kept", 12)
	r.Warning("%d bend conflicts", 1)
	r.Error(errors.New("boom"))
	r.Done("out/take.mid", 2048)

	out := buf.String()
	for _, want := range []string{"[2/5]", "Snapping notes to key...", "12 notes kept", "Warning:", "1 bend conflicts", "Error:", "boom", "out/take.mid", "2.0 kB", "Completed in"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "hidden unless verbose") {
		t.Error("Update printed without verbose")
	}
}

func TestReporter_VerboseUpdate(t *testing.T) {
	var buf bytes.Buffer
	NewReporter(&buf, true).Update("grid %s", "1/16")
	if !strings.Contains(buf.String(), "grid 1/16") {
		t.Errorf("verbose update missing: %q", buf.String())
	}
}

func TestElapsed(t *testing.T) {
	if got := Elapsed(90 * time.Second); got != "1 minute 30 seconds" {
		t.Errorf("Elapsed(90s) = %q", got)
	}
}
