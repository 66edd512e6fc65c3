package uploader

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"zupload/logger"
)

type RunnerConfig struct {
	Reason      string
	Stages      StageSet
	DataDir     string
	Pattern     string
	ArchivePath string
	// JSONDir receives one standalone metadata document per key.
	JSONDir        string
	TryIngestURL   string
	TryIngestBatch int
	// Force skips the archive overwrite confirmation.
	Force         bool
	Interactive   bool
	SkipUnmatched bool
	Show          ShowConfig

	Strategy Strategy
	Opener   DatasetOpener
	Portal   PortalClient
	// Authenticate runs once before the first enabled upload stage.
	Authenticate func(ctx context.Context) error
	Prompt       Prompter
	Journal      *Journal
	Metrics      Metrics
	Log          logger.Logger
	Out          io.Writer
	Now          func() time.Time
}

// RunStats counts what one run did.
type RunStats struct {
	Discovered       int
	Archived         int
	Skipped          int
	TryIngested      int
	JSONBuilt        int
	NewVersions      int
	MetadataUploaded int
	DataUploaded     int
	DataFailed       int
	Checkpoints      int
}

// RunResult is returned by Run even when the run fails.
type RunResult struct {
	RunID   string
	Archive Archive
	Stats   RunStats
	Saved   bool
}

type Runner struct {
	cfg     RunnerConfig
	store   *ArchiveStore
	archive Archive
	listing *Listing
	stats   RunStats
	authed  bool
	saved   bool

	log logger.Logger
	out io.Writer
	now func() time.Time
}

func NewRunner(cfg RunnerConfig) (*Runner, error) {
	if strings.TrimSpace(cfg.ArchivePath) == "" {
		return nil, fmt.Errorf("ArchivePath is required")
	}
	if cfg.Strategy == nil {
		return nil, fmt.Errorf("Strategy is required")
	}
	if (cfg.Stages.Enabled(StageArchiveFiles) || cfg.Stages.Enabled(StageFillHandlers)) && strings.TrimSpace(cfg.DataDir) == "" {
		return nil, fmt.Errorf("DataDir is required for %s and %s", StageArchiveFiles, StageFillHandlers)
	}
	if cfg.Stages.Enabled(StageArchiveJSON) && strings.TrimSpace(cfg.JSONDir) == "" {
		return nil, fmt.Errorf("JSONDir is required for %s", StageArchiveJSON)
	}
	if cfg.Opener == nil && cfg.Stages.Enabled(StageArchiveJSON) {
		return nil, fmt.Errorf("Opener is required for %s", StageArchiveJSON)
	}
	if cfg.Portal == nil && (cfg.Stages.Enabled(StageTryIngest) || cfg.Stages.Uploads()) {
		return nil, fmt.Errorf("Portal is required for network stages")
	}
	if cfg.TryIngestBatch <= 0 {
		cfg.TryIngestBatch = 2
	}
	if !cfg.Interactive {
		// Nobody is there to answer.
		cfg.Prompt = nil
		cfg.Force = true
	}
	if cfg.Interactive && cfg.Prompt == nil {
		cfg.Prompt = NewTermPrompter()
	}
	if cfg.Metrics == nil {
		cfg.Metrics = nopMetrics{}
	}
	r := &Runner{
		cfg: cfg,
		log: cfg.Log,
		out: cfg.Out,
		now: cfg.Now,
	}
	if r.log == nil {
		r.log = logger.NewNop()
	}
	if r.out == nil {
		r.out = os.Stdout
	}
	if r.now == nil {
		r.now = time.Now
	}
	r.store = &ArchiveStore{Path: cfg.ArchivePath, Force: cfg.Force, Prompt: cfg.Prompt}
	return r, nil
}

// Close releases the journal.
func (r *Runner) Close() error {
	if r == nil {
		return nil
	}
	return r.cfg.Journal.Close()
}

// Run executes the enabled stages in order against the locked archive.
func (r *Runner) Run(ctx context.Context) (res *RunResult, runErr error) {
	start := r.now()
	res = &RunResult{}

	lock, err := AcquireLock(r.cfg.ArchivePath)
	if err != nil {
		return res, err
	}
	defer func() {
		if err := lock.Release(); err != nil {
			r.log.Warn("release archive lock", logger.Error(err))
		}
	}()

	runID, err := r.cfg.Journal.StartRun(r.cfg.Reason, r.cfg.Stages.String(), r.cfg.ArchivePath)
	if err != nil {
		r.log.Warn("journal unavailable", logger.Error(err))
	}
	res.RunID = runID
	r.log = r.log.With(logger.String("run_id", runID), logger.String("reason", r.cfg.Reason))
	r.log.Info("run start", logger.String("stages", r.cfg.Stages.String()), logger.String("archive", r.cfg.ArchivePath))

	defer func() {
		res.Archive = r.archive
		res.Stats = r.stats
		res.Saved = r.saved
		r.finish(ctx, runErr, start)
	}()

	r.archive, err = r.store.Load()
	if err != nil {
		return res, err
	}

	for _, stage := range AllStages() {
		if !r.cfg.Stages.Enabled(stage) {
			r.log.Info("skipping " + stage.String())
			continue
		}
		if err := ctx.Err(); err != nil {
			return res, err
		}
		stageStart := r.now()
		err := r.runStage(ctx, stage)
		status := EventOK
		if err != nil {
			status = EventFailed
		}
		r.cfg.Metrics.ObserveStage(stage.String(), status, r.now().Sub(stageStart))
		if err != nil {
			if isUploadStage(stage) {
				r.checkpoint()
			}
			return res, &StageError{Stage: stage, Err: err}
		}
		if isUploadStage(stage) {
			r.checkpoint()
		}
	}

	if r.cfg.Show.Uploads && r.cfg.Stages.Uploads() {
		RenderUploads(r.out, r.archive)
	}
	return res, nil
}

func (r *Runner) runStage(ctx context.Context, stage Stage) error {
	switch stage {
	case StageArchiveFiles:
		return r.archiveFiles()
	case StageFillHandlers:
		return r.fillHandlers()
	case StageTryIngest:
		return r.tryIngest(ctx)
	case StageArchiveJSON:
		return r.archiveJSON(ctx)
	case StageUploadMetadata:
		return r.uploadMetadata(ctx)
	case StageUploadData:
		return r.uploadData(ctx)
	case StageStoreArchive:
		return r.save()
	}
	return fmt.Errorf("unknown stage %d", stage)
}

func isUploadStage(s Stage) bool {
	return s == StageUploadMetadata || s == StageUploadData
}

// authenticate runs once per run, right before the first eligible upload.
func (r *Runner) authenticate(ctx context.Context) error {
	if r.authed || r.cfg.Authenticate == nil {
		return nil
	}
	if err := r.cfg.Authenticate(ctx); err != nil {
		return fmt.Errorf("authenticate: %w", err)
	}
	r.authed = true
	return nil
}

// checkpoint persists progress mid-run when the store bit allows it.
func (r *Runner) checkpoint() {
	if !r.cfg.Stages.Enabled(StageStoreArchive) {
		return
	}
	if err := r.save(); err != nil {
		r.log.Error("checkpoint failed", logger.Error(err))
		return
	}
	r.stats.Checkpoints++
}

func (r *Runner) save() error {
	ok, err := r.store.Save(r.archive)
	if err != nil {
		return err
	}
	if !ok {
		r.log.Warn("archive not saved", logger.String("archive", r.cfg.ArchivePath))
		return nil
	}
	r.saved = true
	r.log.Info("archive saved", logger.String("archive", r.cfg.ArchivePath), logger.Int("records", len(r.archive)))
	return nil
}

func (r *Runner) finish(ctx context.Context, runErr error, start time.Time) {
	status := RunOK
	switch {
	case errors.Is(runErr, ErrAborted):
		status = RunAborted
	case runErr != nil:
		status = RunFailed
	}
	if err := r.cfg.Journal.FinishRun(status, runErr); err != nil {
		r.log.Warn("journal finish", logger.Error(err))
	}
	r.cfg.Metrics.AddRecords("archived", r.stats.Archived)
	r.cfg.Metrics.AddRecords("try_ingested", r.stats.TryIngested)
	r.cfg.Metrics.AddRecords("json_built", r.stats.JSONBuilt)
	r.cfg.Metrics.AddRecords("metadata_uploaded", r.stats.MetadataUploaded)
	r.cfg.Metrics.AddRecords("data_uploaded", r.stats.DataUploaded)
	r.cfg.Metrics.AddRecords("data_failed", r.stats.DataFailed)
	if err := r.cfg.Metrics.Push(context.WithoutCancel(ctx)); err != nil {
		r.log.Warn("metrics push", logger.Error(err))
	}
	r.log.Info("run done",
		logger.String("status", status),
		logger.Int("archived", r.stats.Archived),
		logger.Int("try_ingested", r.stats.TryIngested),
		logger.Int("json_built", r.stats.JSONBuilt),
		logger.Int("metadata_uploaded", r.stats.MetadataUploaded),
		logger.Int("data_uploaded", r.stats.DataUploaded),
		logger.Int("data_failed", r.stats.DataFailed),
		logger.Duration("elapsed", r.now().Sub(start)),
	)
}

// discover runs the file scan once per run.
func (r *Runner) discover() (*Listing, error) {
	if r.listing != nil {
		return r.listing, nil
	}
	var (
		l   *Listing
		err error
	)
	if r.cfg.Prompt != nil && r.cfg.Show.InputFiles {
		l, err = DiscoverInteractive(r.cfg.DataDir, r.cfg.Pattern, r.cfg.Prompt, r.out)
	} else {
		l, err = Discover(r.cfg.DataDir, r.cfg.Pattern)
		if err == nil && r.cfg.Show.InputFiles {
			l.Print(r.out)
		}
	}
	if err != nil {
		return nil, err
	}
	r.listing = l
	r.stats.Discovered = len(l.Files)
	r.log.Info("input files", logger.Int("files", len(l.Files)), logger.String("dir", r.cfg.DataDir), logger.String("pattern", l.Pattern))
	return l, nil
}

// archiveFiles classifies every scanned file and merges it into the archive
// under its derived key. Keys absent from the scan are left alone.
func (r *Runner) archiveFiles() error {
	listing, err := r.discover()
	if err != nil {
		return err
	}
	s := r.cfg.Strategy
	taken := make(map[string]string, len(listing.Files))
	for _, f := range listing.Files {
		cls := s.Classify(f.Name)
		if !cls.Matched() {
			if r.cfg.SkipUnmatched {
				r.stats.Skipped++
				r.log.Warn("skipping unmatched file", logger.String("file", f.Name))
				r.event(StageArchiveFiles, "", &ArchiveRecord{FileName: f.Name}, EventSkipped, 0, "unmatched")
				continue
			}
			return &ClassificationError{FileName: f.Name, Reason: "no dataset type matches the file name"}
		}
		info, err := s.Key(f.Name)
		if err != nil {
			return err
		}
		if prev, dup := taken[info.Key]; dup {
			return &ClassificationError{
				FileName: f.Name,
				Reason:   fmt.Sprintf("key %q is already taken by %s", info.Key, filepath.Base(prev)),
				Matches:  []string{filepath.Base(prev), f.Name},
			}
		}
		taken[info.Key] = f.Path

		rec, ok := r.archive[info.Key]
		if !ok {
			rec = NewArchiveRecord(f.Path, f.Name)
			r.archive[info.Key] = rec
		}
		rec.FilePath = f.Path
		rec.FileName = f.Name
		rec.DatasetType = cls.DatasetType
		rec.DatasetObjectSpec = cls.ObjectSpec
		rec.Year = info.Year
		rec.Month = info.Month
		rec.Variable = info.Variable

		comps, err := buildTryIngest(r.cfg.TryIngestURL, f.Path, cls.ObjectSpec, r.cfg.Opener, s)
		if err != nil {
			r.log.Warn("cannot read variables, varnames omitted", logger.String("file", f.Name), logger.Error(err))
		}
		rec.TryIngest = comps

		r.stats.Archived++
		r.event(StageArchiveFiles, info.Key, rec, EventOK, 0, cls.DatasetType)
		if r.cfg.Show.ArchiveFiles {
			fmt.Fprintf(r.out, "Archived %s as %s (%s)\n", f.Name, info.Key, cls.DatasetType)
		}
	}
	return nil
}

// fillHandlers switches every handler on for keys in the current scan and
// off for the rest.
func (r *Runner) fillHandlers() error {
	listing, err := r.discover()
	if err != nil {
		return err
	}
	active := 0
	for _, key := range r.archive.Keys() {
		rec := r.archive[key]
		on := listing.Contains(rec.FilePath)
		rec.Handlers = AllHandlers(on)
		if on {
			active++
		}
	}
	r.log.Info("handlers filled", logger.Int("active", active), logger.Int("inactive", len(r.archive)-active))
	return nil
}

func (r *Runner) archiveJSON(ctx context.Context) error {
	b := &MetadataBuilder{Strategy: r.cfg.Strategy, Opener: r.cfg.Opener, OutDir: r.cfg.JSONDir}
	for _, key := range r.archive.Keys() {
		if err := ctx.Err(); err != nil {
			return err
		}
		rec := r.archive[key]
		if !rec.Handlers.ArchiveJSON {
			continue
		}
		res, err := b.Build(key, rec)
		if err != nil {
			r.event(StageArchiveJSON, key, rec, EventFailed, 0, err.Error())
			return err
		}
		r.stats.JSONBuilt++
		detail := res.Path
		if res.NewVersion {
			r.stats.NewVersions++
			detail = "new version: " + res.Path
			r.log.Info("content changed, starting a new version", logger.String("key", key))
		}
		r.event(StageArchiveJSON, key, rec, EventOK, 0, detail)
		if r.cfg.Show.ArchiveJSON {
			fmt.Fprintf(r.out, "Metadata written (%d): %s\n", r.stats.JSONBuilt, res.Path)
		}
	}
	return nil
}

// event writes a journal entry; journal failures are logged only.
func (r *Runner) event(stage Stage, key string, rec *ArchiveRecord, status string, code int, detail string) {
	ev := StageEvent{
		Stage:      stage.String(),
		Key:        key,
		Status:     status,
		StatusCode: code,
		Detail:     truncate(detail, maxDiagnosticBody),
		At:         r.now().UTC(),
	}
	if rec != nil {
		ev.FileName = rec.FileName
	}
	if err := r.cfg.Journal.Record(ev); err != nil {
		r.log.Warn("journal record", logger.Error(err))
	}
}
