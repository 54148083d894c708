package server

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/dygy/notemidi/internal/pipeline"
)

// Job status constants
type JobStatus string

const (
	StatusPending    JobStatus = "pending"
	StatusProcessing JobStatus = "processing"
	StatusComplete   JobStatus = "complete"
)

// FileResult is the outcome of one file in a batch job
type FileResult struct {
	Name          string `json:"name"`
	Notes         int    `json:"notes"`
	NotesRemoved  int    `json:"notes_removed"`
	NotesMerged   int    `json:"notes_merged"`
	BendConflicts int    `json:"bend_conflicts"`
	Size          string `json:"size,omitempty"`
	Error         string `json:"error,omitempty"`

	midi []byte
}

// Job represents a batch conversion
type Job struct {
	ID        string       `json:"id"`
	Status    JobStatus    `json:"status"`
	Files     []FileResult `json:"files,omitempty"`
	CreatedAt time.Time    `json:"created_at"`
}

// JobManager manages batch jobs
type JobManager struct {
	jobs map[string]*Job
	mu   sync.RWMutex
	ttl  time.Duration
}

// NewJobManager creates a new job manager
func NewJobManager(ttl time.Duration) *JobManager {
	return &JobManager{
		jobs: make(map[string]*Job),
		ttl:  ttl,
	}
}

// Create registers a new pending job
func (m *JobManager) Create() *Job {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := fmt.Sprintf("%d", time.Now().UnixNano())
	for m.jobs[id] != nil {
		id = fmt.Sprintf("%d", time.Now().UnixNano())
	}

	job := &Job{
		ID:        id,
		Status:    StatusPending,
		CreatedAt: time.Now(),
	}
	m.jobs[id] = job
	return job
}

// Get returns a snapshot of a job, or nil
func (m *JobManager) Get(id string) *Job {
	m.mu.RLock()
	defer m.mu.RUnlock()

	job := m.jobs[id]
	if job == nil {
		return nil
	}
	snapshot := *job
	snapshot.Files = append([]FileResult(nil), job.Files...)
	return &snapshot
}

// Process runs the batch and stores per-file results
func (m *JobManager) Process(ctx context.Context, job *Job, o *pipeline.Orchestrator, batch []pipeline.Job, workers int) {
	defer time.AfterFunc(m.ttl, func() {
		m.mu.Lock()
		delete(m.jobs, job.ID)
		m.mu.Unlock()
	})

	m.setStatus(job, StatusProcessing)
	log.FromContext(ctx).Info("batch started", "job", job.ID, "files", len(batch))

	results := o.ExecuteBatch(ctx, batch, workers)

	files := make([]FileResult, len(results))
	for i, r := range results {
		files[i] = fileResult(r)
	}

	m.mu.Lock()
	job.Files = files
	job.Status = StatusComplete
	m.mu.Unlock()

	log.FromContext(ctx).Info("batch complete", "job", job.ID, "files", len(files))
}

func (m *JobManager) setStatus(job *Job, status JobStatus) {
	m.mu.Lock()
	job.Status = status
	m.mu.Unlock()
}
