package pipeline

import (
	"context"
	"fmt"

	"github.com/charmbracelet/log"

	"github.com/dygy/notemidi/internal/channels"
	"github.com/dygy/notemidi/internal/keysnap"
	"github.com/dygy/notemidi/internal/midi"
	"github.com/dygy/notemidi/internal/notes"
	"github.com/dygy/notemidi/internal/progress"
	"github.com/dygy/notemidi/internal/quantize"
)

// Result contains all pipeline outputs
type Result struct {
	MIDI     []byte
	Notes    []notes.Note // notes as encoded
	Channels []int        // 1-based channel per entry of Notes
	// BendConflicts indexes Notes that share a channel with a still-sounding
	// note under MultiBend. Encoding still succeeds; callers should warn.
	BendConflicts []int
	NotesIn       int
	NotesRemoved  int // dropped by key snapping
	NotesMerged   int // folded into same-pitch neighbours by quantization
}

// Orchestrator runs snap, quantize, allocate and encode over one note list
type Orchestrator struct {
	cfg      Config
	progress *progress.Reporter
}

// NewOrchestrator validates cfg; nothing runs with a bad configuration
func NewOrchestrator(cfg Config) (*Orchestrator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Orchestrator{cfg: cfg}, nil
}

// WithReporter returns a copy that announces each stage on r
func (o *Orchestrator) WithReporter(r *progress.Reporter) *Orchestrator {
	c := *o
	c.progress = r
	return &c
}

// Config returns the validated configuration
func (o *Orchestrator) Config() Config {
	return o.cfg
}

func (o *Orchestrator) stage(s progress.Stage) {
	if o.progress != nil {
		o.progress.StartStage(s)
	}
}

func (o *Orchestrator) complete(format string, args ...any) {
	if o.progress != nil {
		o.progress.StageComplete(format, args...)
	}
}

// Execute runs the full pipeline. The input slice is never modified. A
// cancelled context stops the run between stages.
func (o *Orchestrator) Execute(ctx context.Context, input []notes.Note) (*Result, error) {
	logger := log.FromContext(ctx).With("bpm", o.cfg.BPM, "bend", o.cfg.BendMode)
	result := &Result{NotesIn: len(input)}

	// Stage 1: Validate
	o.stage(progress.StageValidate)
	if err := notes.ValidateAll(input); err != nil {
		return nil, fmt.Errorf("validate notes: %w", err)
	}
	if err := midi.CheckTiming(input, o.cfg.BPM); err != nil {
		return nil, fmt.Errorf("validate notes: %w", err)
	}
	o.complete("%d notes", len(input))

	// Stage 2: Key snapping
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	o.stage(progress.StageSnap)
	snapped := keysnap.Snap(input, o.cfg.Key)
	result.NotesRemoved = len(input) - len(snapped)
	logger.Debug("key snap", "key", o.cfg.Key.Label(), "mode", o.cfg.Key.Mode, "kept", len(snapped), "removed", result.NotesRemoved)
	o.complete("%s (%s): %d kept, %d removed", o.cfg.Key.Label(), o.cfg.Key.Mode, len(snapped), result.NotesRemoved)

	// Stage 3: Quantization
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	o.stage(progress.StageQuantize)
	qcfg := o.cfg.quantizeConfig()
	quantized := quantize.Quantize(snapped, qcfg)
	result.NotesMerged = len(snapped) - len(quantized)
	if qcfg.Enabled {
		logger.Debug("quantize", "grid", qcfg.Grid, "unit", qcfg.Unit(), "merged", result.NotesMerged)
		o.complete("grid %s: %d merged", qcfg.Grid, result.NotesMerged)
	} else {
		o.complete("disabled")
	}

	// Stage 4: Channel allocation
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	o.stage(progress.StageAllocate)
	chans := make([]int, len(quantized))
	if o.cfg.BendMode == midi.MultiBend {
		assignment := channels.Allocate(quantized, o.cfg.BPM)
		chans = assignment.Channels
		result.BendConflicts = assignment.Conflicts
		if n := assignment.ConflictCount(); n > 0 {
			logger.Warn("pitch-bend channels exhausted", "conflicts", n, "notes", len(quantized))
		}
		o.complete("%d notes, %d bend conflicts", len(quantized), len(result.BendConflicts))
	} else {
		for i := range chans {
			chans[i] = 1
		}
		o.complete("single channel (%s)", o.cfg.BendMode)
	}

	// Stage 5: Encode
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	o.stage(progress.StageEncode)
	data, err := midi.Encode(quantized, chans, midi.Options{
		BPM:       o.cfg.BPM,
		Mode:      o.cfg.BendMode,
		BendRange: o.cfg.BendRange,
		TrackName: o.cfg.TrackName,
	})
	if err != nil {
		return nil, fmt.Errorf("encode midi: %w", err)
	}
	logger.Debug("encoded", "bytes", len(data), "notes", len(quantized))
	o.complete("%d bytes", len(data))

	result.MIDI = data
	result.Notes = quantized
	result.Channels = chans
	return result, nil
}
