package progress

import (
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
	"github.com/hako/durafmt"
)

// Stage represents a processing stage
type Stage struct {
	Number      int
	Total       int
	Name        string
	Description string
}

// Pipeline stages in execution order
var (
	StageValidate = Stage{1, 5, "validate", "Validating notes..."}
	StageSnap     = Stage{2, 5, "snap", "Snapping notes to key..."}
	StageQuantize = Stage{3, 5, "quantize", "Quantizing timing..."}
	StageAllocate = Stage{4, 5, "allocate", "Allocating pitch-bend channels..."}
	StageEncode   = Stage{5, 5, "encode", "Encoding MIDI..."}
)

var (
	stageStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	doneStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("10"))
	warningStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	errorStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("9"))
)

// Reporter handles CLI progress output
type Reporter struct {
	out       io.Writer
	startTime time.Time
	verbose   bool
}

// NewReporter creates a new progress reporter
func NewReporter(out io.Writer, verbose bool) *Reporter {
	return &Reporter{
		out:       out,
		startTime: time.Now(),
		verbose:   verbose,
	}
}

// StartStage announces the beginning of a processing stage
func (r *Reporter) StartStage(stage Stage) {
	prefix := stageStyle.Render(fmt.Sprintf("[%d/%d]", stage.Number, stage.Total))
	fmt.Fprintf(r.out, "%s %s\n", prefix, stage.Description)
}

// Update shows a sub-progress message within a stage
func (r *Reporter) Update(format string, args ...any) {
	if r.verbose {
		fmt.Fprintf(r.out, "      %s\n", fmt.Sprintf(format, args...))
	}
}

// StageComplete shows completion message for a stage
func (r *Reporter) StageComplete(format string, args ...any) {
	fmt.Fprintf(r.out, "      %s\n", fmt.Sprintf(format, args...))
}

// Done announces a written file with its size and the elapsed time
func (r *Reporter) Done(outputPath string, size int) {
	fmt.Fprintln(r.out, doneStyle.Render("Done!")+" MIDI file written.")
	if outputPath != "" {
		fmt.Fprintf(r.out, "Output saved to: %s (%s)\n", outputPath, humanize.Bytes(uint64(size)))
	}
	fmt.Fprintf(r.out, "Completed in %s\n", Elapsed(time.Since(r.startTime)))
}

// Error announces an error
func (r *Reporter) Error(err error) {
	fmt.Fprintf(r.out, "%s %s\n", errorStyle.Render("Error:"), err)
}

// Warning announces a non-fatal warning
func (r *Reporter) Warning(format string, args ...any) {
	fmt.Fprintf(r.out, "%s %s\n", warningStyle.Render("Warning:"), fmt.Sprintf(format, args...))
}

// Elapsed formats a duration for humans, keeping the two largest units
func Elapsed(d time.Duration) string {
	if d < time.Millisecond {
		return "0 milliseconds"
	}
	return durafmt.Parse(d.Round(time.Millisecond)).LimitFirstN(2).String()
}
