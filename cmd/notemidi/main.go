package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"syscall"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/dygy/notemidi/internal/cache"
	"github.com/dygy/notemidi/internal/keysnap"
	"github.com/dygy/notemidi/internal/midi"
	"github.com/dygy/notemidi/internal/notes"
	"github.com/dygy/notemidi/internal/pipeline"
	"github.com/dygy/notemidi/internal/progress"
	"github.com/dygy/notemidi/internal/quantize"
	"github.com/dygy/notemidi/internal/server"
	"github.com/dygy/notemidi/internal/workspace"
)

var (
	version = "0.1.0"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "notemidi",
	Short: "Turn transcribed notes into a Standard MIDI File",
	Long: `notemidi converts transcribed notes (pitch, timing, velocity and an
optional pitch-deviation curve) into a Standard MIDI File.

Pipeline: notes → key snap → quantize → channel allocation → MIDI`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if verbose {
			logger.SetLevel(log.DebugLevel)
		}
	},
}

var convertCmd = &cobra.Command{
	Use:   "convert",
	Short: "Convert a note file to MIDI",
	Long: `Convert a JSON note file to a Standard MIDI File.

Examples:
  notemidi convert -i take1.json
  notemidi convert -i take1.json -o out --root F# --scale minor --snap adjust
  notemidi convert -i take1.json --quantize --grid 1/8T --bpm 96 --bend multi`,
	RunE: runConvert,
}

var batchCmd = &cobra.Command{
	Use:   "batch <notes.json>...",
	Short: "Convert many note files concurrently",
	Long: `Convert several JSON note files with the same options.

Example:
  notemidi batch takes/*.json -o out --workers 4 --bend single`,
	Args: cobra.MinimumNArgs(1),
	RunE: runBatch,
}

var inspectCmd = &cobra.Command{
	Use:   "inspect <file.mid>",
	Short: "Summarize a MIDI file",
	Args:  cobra.ExactArgs(1),
	RunE:  runInspect,
}

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Show or clear cached conversions",
	RunE:  runCache,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP conversion API",
	Long: `Serve POST /convert for single files and POST /jobs for batches.

Example:
  notemidi serve --port 8080 --config options.json`,
	RunE: runServe,
}

var (
	logger = log.NewWithOptions(os.Stderr, log.Options{ReportTimestamp: true})
	stdout io.Writer = os.Stdout

	// global flags
	configPath string
	verbose    bool
	noCache    bool
	cacheDir   string

	// pipeline option flags
	rootName   string
	scaleName  string
	snapName   string
	minNote    int
	maxNote    int
	quantizeOn bool
	gridName   string
	bpm        float64
	bendName   string
	bendRange  float64
	trackName  string

	// convert flags
	inputPath string
	outputDir string
	dumpNotes bool

	// batch flags
	workers int

	// serve flags
	port int

	// cache flags
	clearCache bool
)

func init() {
	rootCmd.AddCommand(convertCmd)
	rootCmd.AddCommand(batchCmd)
	rootCmd.AddCommand(inspectCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(cacheCmd)

	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "JSON options file (flags override it)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output")
	rootCmd.PersistentFlags().StringVar(&cacheDir, "cache-dir", "", "Conversion cache directory (default: user cache dir)")
	rootCmd.PersistentFlags().BoolVar(&noCache, "no-cache", false, "Skip the conversion cache (force fresh conversion)")

	for _, cmd := range []*cobra.Command{convertCmd, batchCmd, serveCmd} {
		addPipelineFlags(cmd)
	}

	convertCmd.Flags().StringVarP(&inputPath, "input", "i", "", "Input note file (JSON)")
	convertCmd.Flags().StringVarP(&outputDir, "output", "o", ".", "Output directory")
	convertCmd.Flags().BoolVar(&dumpNotes, "dump-notes", false, "Also write the processed notes as JSON")
	convertCmd.MarkFlagRequired("input")

	batchCmd.Flags().StringVarP(&outputDir, "output", "o", ".", "Output directory")
	batchCmd.Flags().IntVarP(&workers, "workers", "w", 0, "Concurrent conversions (default: CPU count)")

	serveCmd.Flags().IntVarP(&port, "port", "p", 8080, "Port to listen on")
	serveCmd.Flags().IntVarP(&workers, "workers", "w", 0, "Concurrent conversions per batch job (default: CPU count)")

	cacheCmd.Flags().BoolVar(&clearCache, "clear", false, "Remove all cached conversions")
}

// addPipelineFlags registers the option flags shared by convert, batch and serve
func addPipelineFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringVar(&rootName, "root", "C", "Key root (C, C#, Db, ... B)")
	f.StringVar(&scaleName, "scale", "chromatic", "Scale (chromatic, major, minor)")
	f.StringVar(&snapName, "snap", "remove", "Out-of-key handling (adjust or remove)")
	f.IntVar(&minNote, "min-note", notes.MinNote, "Lowest allowed MIDI note")
	f.IntVar(&maxNote, "max-note", notes.MaxNote, "Highest allowed MIDI note")
	f.BoolVarP(&quantizeOn, "quantize", "q", false, "Snap note timing to the grid")
	f.StringVar(&gridName, "grid", "1/16", "Quantize grid (1/1 ... 1/16, triplets as 1/8T)")
	f.Float64Var(&bpm, "bpm", 120, "Tempo in beats per minute")
	f.StringVar(&bendName, "bend", "none", "Pitch bend mode (none, single, multi)")
	f.Float64Var(&bendRange, "bend-range", midi.DefaultBendRange, "Pitch-bend range in semitones")
	f.StringVar(&trackName, "track-name", "", "Name of the note track")
}

// signalContext cancels on interrupt and carries the CLI logger
func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	return log.WithContext(ctx, logger), cancel
}

// loadOptions layers the config file and then explicitly set flags over the defaults
func loadOptions(cmd *cobra.Command) (pipeline.Config, error) {
	cfg := pipeline.DefaultConfig()
	if configPath != "" {
		var err error
		if cfg, err = pipeline.LoadConfig(configPath); err != nil {
			return cfg, err
		}
	}

	f := cmd.Flags()
	var err error
	if f.Changed("root") {
		if cfg.Key.Root, err = keysnap.ParseRoot(rootName); err != nil {
			return cfg, err
		}
	}
	if f.Changed("scale") {
		if cfg.Key.Scale, err = keysnap.ParseScale(scaleName); err != nil {
			return cfg, err
		}
	}
	if f.Changed("snap") {
		if cfg.Key.Mode, err = keysnap.ParseSnapMode(snapName); err != nil {
			return cfg, err
		}
	}
	if f.Changed("min-note") {
		cfg.Key.MinNote = minNote
	}
	if f.Changed("max-note") {
		cfg.Key.MaxNote = maxNote
	}
	if f.Changed("quantize") {
		cfg.Quantize.Enabled = quantizeOn
	}
	if f.Changed("grid") {
		if cfg.Quantize.Grid, err = quantize.ParseGrid(gridName); err != nil {
			return cfg, err
		}
		// naming a grid implies quantizing unless --quantize=false was given
		if !f.Changed("quantize") {
			cfg.Quantize.Enabled = true
		}
	}
	if f.Changed("bpm") {
		cfg.BPM = bpm
	}
	if f.Changed("bend") {
		if cfg.BendMode, err = midi.ParseBendMode(bendName); err != nil {
			return cfg, err
		}
	}
	if f.Changed("bend-range") {
		cfg.BendRange = bendRange
	}
	if f.Changed("track-name") {
		cfg.TrackName = trackName
	}
	return cfg, nil
}

// openCache returns nil when caching is disabled or unavailable
func openCache() *cache.OutputCache {
	if noCache {
		return nil
	}
	c, err := cache.New(cacheDir)
	if err != nil {
		logger.Warn("conversion cache disabled", "err", err)
		return nil
	}
	return c
}

// cacheLookup returns the cache key and a hit, if any
func cacheLookup(c *cache.OutputCache, list []notes.Note, cfg pipeline.Config) (string, *cache.Entry) {
	if c == nil {
		return "", nil
	}
	key, err := cache.Key(list, cfg)
	if err != nil {
		logger.Debug("cache key", "err", err)
		return "", nil
	}
	if entry, ok := c.Get(key); ok {
		return key, entry
	}
	return key, nil
}

func cacheStore(c *cache.OutputCache, key, source string, res *pipeline.Result) {
	if c == nil || key == "" {
		return
	}
	err := c.Put(&cache.Entry{
		Key:           key,
		Source:        source,
		Notes:         len(res.Notes),
		NotesRemoved:  res.NotesRemoved,
		NotesMerged:   res.NotesMerged,
		BendConflicts: len(res.BendConflicts),
		MIDI:          res.MIDI,
	})
	if err != nil {
		logger.Warn("cache write failed", "err", err)
	}
}

func runConvert(cmd *cobra.Command, args []string) error {
	cfg, err := loadOptions(cmd)
	if err != nil {
		return err
	}
	orch, err := pipeline.NewOrchestrator(cfg)
	if err != nil {
		return err
	}

	doc, err := notes.Load(inputPath)
	if err != nil {
		return err
	}
	ws, err := workspace.Open(outputDir)
	if err != nil {
		return err
	}
	outPath := ws.MIDIPath(inputPath)

	ctx, cancel := signalContext()
	defer cancel()

	reporter := progress.NewReporter(stdout, verbose)
	if doc.Source != "" {
		reporter.Update("source: %s", doc.Source)
	}

	// --dump-notes needs the processed notes, which are not cached
	var oc *cache.OutputCache
	if !dumpNotes {
		oc = openCache()
	}
	key, hit := cacheLookup(oc, doc.Notes, cfg)
	if hit != nil {
		reporter.StageComplete("Using cached conversion (%s)", key)
		warnConflicts(reporter, inputPath, hit.BendConflicts)
		if err := ws.WriteFile(outPath, hit.MIDI); err != nil {
			return err
		}
		reporter.Done(outPath, len(hit.MIDI))
		return nil
	}

	result, err := orch.WithReporter(reporter).Execute(ctx, doc.Notes)
	if err != nil {
		reporter.Error(err)
		return err
	}
	warnConflicts(reporter, inputPath, len(result.BendConflicts))

	if err := ws.WriteFile(outPath, result.MIDI); err != nil {
		return err
	}
	cacheStore(oc, key, doc.Source, result)

	if dumpNotes {
		if err := writeNotes(ws, outPath, doc.Source, result.Notes); err != nil {
			return err
		}
	}

	reporter.Done(outPath, len(result.MIDI))
	return nil
}

// warnConflicts reports notes forced onto a channel that was still sounding
func warnConflicts(r *progress.Reporter, name string, n int) {
	if n > 0 {
		r.Warning("%s: %d notes share a pitch-bend channel with a sounding note; their bends will interfere", name, n)
	}
}

// writeNotes stores the notes as encoded next to the MIDI file
func writeNotes(ws *workspace.Workspace, midiPath, source string, list []notes.Note) error {
	var sb strings.Builder
	out := &notes.Document{Source: source, Notes: list}
	if err := out.Encode(&sb); err != nil {
		return err
	}
	path := strings.TrimSuffix(midiPath, filepath.Ext(midiPath)) + ".notes.json"
	return ws.WriteFile(path, []byte(sb.String()))
}

func runBatch(cmd *cobra.Command, args []string) error {
	cfg, err := loadOptions(cmd)
	if err != nil {
		return err
	}
	orch, err := pipeline.NewOrchestrator(cfg)
	if err != nil {
		return err
	}
	ws, err := workspace.Open(outputDir)
	if err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()

	reporter := progress.NewReporter(stdout, verbose)
	reporter.StartStage(progress.Stage{Number: 1, Total: 1, Name: "batch", Description: fmt.Sprintf("Converting %d files...", len(args))})

	oc := openCache()
	var jobs []pipeline.Job
	var keys []string
	sources := make(map[string]string)
	for _, path := range args {
		doc, err := notes.Load(path)
		if err != nil {
			return err
		}
		key, hit := cacheLookup(oc, doc.Notes, cfg)
		if hit != nil {
			outPath := ws.MIDIPath(path)
			if err := ws.WriteFile(outPath, hit.MIDI); err != nil {
				return err
			}
			warnConflicts(reporter, path, hit.BendConflicts)
			reporter.StageComplete("%s → %s (cached)", path, outPath)
			continue
		}
		jobs = append(jobs, pipeline.Job{Name: path, Notes: doc.Notes})
		keys = append(keys, key)
		sources[path] = doc.Source
	}

	failed := 0
	for i, r := range orch.ExecuteBatch(ctx, jobs, workers) {
		if r.Err != nil {
			failed++
			reporter.Warning("%s: %v", r.Name, r.Err)
			continue
		}
		outPath := ws.MIDIPath(r.Name)
		if err := ws.WriteFile(outPath, r.Result.MIDI); err != nil {
			return err
		}
		cacheStore(oc, keys[i], sources[r.Name], r.Result)
		warnConflicts(reporter, r.Name, len(r.Result.BendConflicts))
		reporter.StageComplete("%s → %s (%s)", r.Name, outPath, humanize.Bytes(uint64(len(r.Result.MIDI))))
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d files failed", failed, len(args))
	}
	reporter.Done("", 0)
	return nil
}

func runCache(cmd *cobra.Command, args []string) error {
	c, err := cache.New(cacheDir)
	if err != nil {
		return err
	}
	if clearCache {
		if err := c.Clear(); err != nil {
			return fmt.Errorf("clear cache: %w", err)
		}
		fmt.Printf("Cleared %s\n", c.Dir())
		return nil
	}

	size, count, err := c.Size()
	if err != nil {
		return err
	}
	fmt.Println(labelStyle.Render("Directory") + valueStyle.Render(c.Dir()))
	fmt.Println(labelStyle.Render("Entries") + valueStyle.Render(fmt.Sprint(count)))
	fmt.Println(labelStyle.Render("Size") + valueStyle.Render(humanize.Bytes(uint64(size))))
	return nil
}

var (
	labelStyle = lipgloss.NewStyle().Bold(true).Width(16)
	valueStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("12"))
)

func runInspect(cmd *cobra.Command, args []string) error {
	data, err := os.ReadFile(args[0])
	if err != nil {
		return err
	}
	sum, err := midi.Decode(data)
	if err != nil {
		return err
	}

	row := func(label string, value any) {
		fmt.Println(labelStyle.Render(label) + valueStyle.Render(fmt.Sprint(value)))
	}
	row("File", args[0])
	row("Size", humanize.Bytes(uint64(len(data))))
	row("Format", sum.Format)
	row("Tracks", sum.Tracks)
	row("Resolution", fmt.Sprintf("%d ticks/quarter", sum.TicksPerQuarter))
	row("Tempo", fmt.Sprintf("%.2f BPM", sum.BPM))
	row("Note-ons", sum.Count(midi.EventNoteOn))
	row("Note-offs", sum.Count(midi.EventNoteOff))
	row("Pitch bends", sum.Count(midi.EventPitchBend))

	if sum.BPM > 0 && len(sum.Events) > 0 {
		last := sum.Events[len(sum.Events)-1].Tick
		row("Length", fmt.Sprintf("%.2fs", midi.TicksToSeconds(last, sum.BPM)))
	}

	perChannel := sum.Channels()
	chans := make([]int, 0, len(perChannel))
	for ch := range perChannel {
		chans = append(chans, ch)
	}
	sort.Ints(chans)
	for _, ch := range chans {
		row(fmt.Sprintf("  channel %d", ch), fmt.Sprintf("%d notes", perChannel[ch]))
	}
	return nil
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadOptions(cmd)
	if err != nil {
		return err
	}

	srv, err := server.New(server.Config{
		Port:     port,
		Defaults: cfg,
		Workers:  workers,
	})
	if err != nil {
		return fmt.Errorf("create server: %w", err)
	}

	ctx, cancel := signalContext()
	defer cancel()
	return srv.Run(ctx)
}
