package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/charmbracelet/log"
	"github.com/dustin/go-humanize"
	"github.com/go-chi/chi/v5"

	apperrors "github.com/dygy/notemidi/internal/errors"
	"github.com/dygy/notemidi/internal/notes"
	"github.com/dygy/notemidi/internal/pipeline"
)

const maxBodySize = 32 * 1024 * 1024 // 32MB of note JSON

// convertRequest is a note document plus optional overrides of the defaults
type convertRequest struct {
	Name    string          `json:"name,omitempty"`
	Notes   []notes.Note    `json:"notes"`
	Options json.RawMessage `json:"options,omitempty"`
}

type batchRequest struct {
	Files   []convertRequest `json:"files"`
	Options json.RawMessage  `json:"options,omitempty"`
}

// handleHealth returns server health status
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}

// handleDefaults returns the options applied to requests that omit them
func (s *Server) handleDefaults(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.config.Defaults)
}

// handleConvert runs the pipeline on one note document and returns the MIDI file
func (s *Server) handleConvert(w http.ResponseWriter, r *http.Request) {
	var req convertRequest
	if !s.decode(w, r, &req) {
		return
	}

	o, err := s.orchestrator(req.Options)
	if err != nil {
		s.writeError(w, err)
		return
	}

	ctx := log.WithContext(r.Context(), s.logger)
	res, err := o.Execute(ctx, req.Notes)
	if err != nil {
		s.writeError(w, err)
		return
	}

	name := req.Name
	if name == "" {
		name = "transcription"
	}
	w.Header().Set("Content-Type", "audio/midi")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name+".mid"))
	w.Header().Set("X-Bend-Conflicts", strconv.Itoa(len(res.BendConflicts)))
	w.Header().Set("X-Notes-Removed", strconv.Itoa(res.NotesRemoved))
	w.Header().Set("X-Notes-Merged", strconv.Itoa(res.NotesMerged))
	w.Write(res.MIDI)
}

// handleCreateJob starts a batch conversion in the background
func (s *Server) handleCreateJob(w http.ResponseWriter, r *http.Request) {
	var req batchRequest
	if !s.decode(w, r, &req) {
		return
	}

	o, err := s.orchestrator(req.Options)
	if err != nil {
		s.writeError(w, err)
		return
	}

	batch := make([]pipeline.Job, len(req.Files))
	for i, f := range req.Files {
		name := f.Name
		if name == "" {
			name = fmt.Sprintf("file-%d", i)
		}
		batch[i] = pipeline.Job{Name: name, Notes: f.Notes}
	}

	job := s.jobs.Create()
	ctx := log.WithContext(context.Background(), s.logger)
	go s.jobs.Process(ctx, job, o, batch, s.config.Workers)

	s.writeJSON(w, http.StatusAccepted, map[string]string{"id": job.ID, "status": string(StatusPending)})
}

// handleJobStatus reports a batch job and its per-file results
func (s *Server) handleJobStatus(w http.ResponseWriter, r *http.Request) {
	job := s.jobs.Get(chi.URLParam(r, "id"))
	if job == nil {
		s.writeJSON(w, http.StatusNotFound, map[string]string{"error": "job not found"})
		return
	}
	s.writeJSON(w, http.StatusOK, job)
}

// handleJobMIDI serves one converted file of a finished batch
func (s *Server) handleJobMIDI(w http.ResponseWriter, r *http.Request) {
	job := s.jobs.Get(chi.URLParam(r, "id"))
	if job == nil {
		s.writeJSON(w, http.StatusNotFound, map[string]string{"error": "job not found"})
		return
	}
	if job.Status != StatusComplete {
		s.writeJSON(w, http.StatusConflict, map[string]string{"error": "job not finished"})
		return
	}

	idx, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil || idx < 0 || idx >= len(job.Files) {
		s.writeJSON(w, http.StatusNotFound, map[string]string{"error": "file not found"})
		return
	}
	file := job.Files[idx]
	if file.midi == nil {
		s.writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"error": file.Error})
		return
	}

	w.Header().Set("Content-Type", "audio/midi")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", file.Name+".mid"))
	w.Write(file.midi)
}

// orchestrator applies request overrides on top of the server defaults
func (s *Server) orchestrator(overrides json.RawMessage) (*pipeline.Orchestrator, error) {
	cfg := s.config.Defaults
	if len(overrides) > 0 {
		if err := json.Unmarshal(overrides, &cfg); err != nil {
			return nil, apperrors.NewConfigError("options", nil, err)
		}
	}
	return pipeline.NewOrchestrator(cfg)
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.writeJSON(w, http.StatusRequestEntityTooLarge, map[string]string{"error": "request too large"})
			return false
		}
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON: " + err.Error()})
		return false
	}
	return true
}

// writeError maps pipeline errors onto status codes
func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case apperrors.IsConfig(err), errors.Is(err, apperrors.ErrInvalidNote):
		status = http.StatusBadRequest
	default:
		s.logger.Error("conversion failed", "err", err)
	}
	s.writeJSON(w, status, map[string]string{"error": err.Error()})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func fileResult(r pipeline.JobResult) FileResult {
	fr := FileResult{Name: r.Name}
	if r.Err != nil {
		fr.Error = r.Err.Error()
		return fr
	}
	fr.Notes = len(r.Result.Notes)
	fr.NotesRemoved = r.Result.NotesRemoved
	fr.NotesMerged = r.Result.NotesMerged
	fr.BendConflicts = len(r.Result.BendConflicts)
	fr.Size = humanize.Bytes(uint64(len(r.Result.MIDI)))
	fr.midi = r.Result.MIDI
	return fr
}
