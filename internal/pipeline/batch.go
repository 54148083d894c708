package pipeline

import (
	"context"
	"runtime"

	"github.com/charmbracelet/log"
	"github.com/remeh/sizedwaitgroup"

	"github.com/dygy/notemidi/internal/notes"
)

// Job is one independent note list, typically one transcribed audio file
type Job struct {
	Name  string
	Notes []notes.Note
}

// JobResult pairs a job with its outcome
type JobResult struct {
	Name   string
	Result *Result
	Err    error
}

// ExecuteBatch runs independent jobs on up to workers goroutines (NumCPU when
// workers <= 0). Results come back in job order. Jobs not yet started when
// ctx is cancelled report ctx.Err(). Stage progress is not reported.
func (o *Orchestrator) ExecuteBatch(ctx context.Context, jobs []Job, workers int) []JobResult {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	logger := log.FromContext(ctx)
	results := make([]JobResult, len(jobs))
	quiet := &Orchestrator{cfg: o.cfg}

	wg := sizedwaitgroup.New(workers)
	for i, job := range jobs {
		results[i].Name = job.Name
		if err := wg.AddWithContext(ctx); err != nil {
			results[i].Err = err
			continue
		}
		go func(i int, job Job) {
			defer wg.Done()
			jobCtx := log.WithContext(ctx, logger.With("job", job.Name))
			res, err := quiet.Execute(jobCtx, job.Notes)
			results[i].Result = res
			results[i].Err = err
		}(i, job)
	}
	wg.Wait()

	return results
}
