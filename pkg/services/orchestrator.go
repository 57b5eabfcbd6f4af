package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/kerbaras/docport/pkg/config"
	"github.com/kerbaras/docport/pkg/data"
	"github.com/kerbaras/docport/pkg/events"
	"github.com/kerbaras/docport/pkg/outline"
	"github.com/kerbaras/docport/pkg/sink"
	"github.com/kerbaras/docport/pkg/sources"
)

var (
	ErrEmptyManifest  = errors.New("manifest is empty, run discovery first")
	ErrJobRunning     = errors.New("an export job is already running")
	ErrNoJobRunning   = errors.New("no export job is running")
	ErrNothingToRetry = errors.New("no failed documents to retry")
	ErrPollTimeout    = errors.New("export task did not finish in time")

	errStopped = errors.New("export stopped")
)

// Saver commits an artifact and returns the relative path it was written to.
type Saver interface {
	Save(ctx context.Context, a sink.Artifact, relPath string) (string, error)
}

// Deps are the collaborators an Orchestrator is built from. Bus, Formats and
// Logger fall back to defaults when unset.
type Deps struct {
	Source  sources.Catalog
	Store   data.JobStore
	Sink    Saver
	Bus     events.Publisher
	Formats FormatTable
	Logger  *slog.Logger
}

// Option tunes an Orchestrator at construction.
type Option func(*Orchestrator)

// WithTiming sets the retry, polling and pause timings.
func WithTiming(t config.Timing) Option {
	return func(o *Orchestrator) { o.timing = t }
}

// WithRand sets the source of polling jitter.
func WithRand(r *rand.Rand) Option {
	return func(o *Orchestrator) {
		if r != nil {
			o.rng = r
		}
	}
}

// WithClock replaces time.Now for log stamps and document timings.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) {
		if now != nil {
			o.now = now
		}
	}
}

// WithImageHost is the prefix for relative image paths in rendered outlines.
func WithImageHost(host string) Option {
	return func(o *Orchestrator) { o.imageHost = host }
}

// WithNaming sets the timestamp suffix rule for saved file names.
func WithNaming(n data.Naming) Option {
	return func(o *Orchestrator) { o.naming = n }
}

// WithFrontMatter adds a YAML header to locally rendered Markdown.
func WithFrontMatter(enabled bool) Option {
	return func(o *Orchestrator) { o.frontMatter = enabled }
}

// WithBaseContext sets the parent of every job context.
func WithBaseContext(ctx context.Context) Option {
	return func(o *Orchestrator) {
		if ctx != nil {
			o.base = ctx
		}
	}
}

// Orchestrator owns the job state and drives one document at a time through
// export, polling and saving. Every mutation is persisted before the loop
// suspends again.
type Orchestrator struct {
	deps        Deps
	log         *slog.Logger
	timing      config.Timing
	now         func() time.Time
	imageHost   string
	naming      data.Naming
	frontMatter bool
	base        context.Context

	rngMu sync.Mutex
	rng   *rand.Rand

	mu     sync.Mutex
	state  *data.JobState
	gen    uint64
	cancel context.CancelFunc
	done   chan struct{}
}

// NewOrchestrator creates an idle orchestrator. Call Load to restore the
// persisted job before driving it.
func NewOrchestrator(deps Deps, opts ...Option) *Orchestrator {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Bus == nil {
		deps.Bus = nopPublisher{}
	}
	if deps.Formats.Matrix == nil {
		deps.Formats = DefaultShimoTable()
	}
	o := &Orchestrator{
		deps:   deps,
		log:    deps.Logger.With(slog.String("component", "orchestrator")),
		timing: config.Default().Pacing.Timing(),
		now:    time.Now,
		base:   context.Background(),
		rng:    rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0x9e3779b97f4a7c15)),
		state:  data.NewJobState(),
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.timing.MaxAttempts <= 0 {
		o.timing.MaxAttempts = 2
	}
	if o.timing.PollAttempts <= 0 {
		o.timing.PollAttempts = 5
	}
	if o.timing.PauseTick <= 0 {
		o.timing.PauseTick = time.Second
	}
	return o
}

type nopPublisher struct{}

func (nopPublisher) Publish(events.Event) {}

// Backoff is min(base*2^attempt, limit).
func Backoff(attempt int, base, limit time.Duration) time.Duration {
	d := base
	for i := 0; i < attempt && d < limit; i++ {
		d *= 2
	}
	return min(d, limit)
}

func (o *Orchestrator) jitter(limit time.Duration) time.Duration {
	if limit <= 0 {
		return 0
	}
	o.rngMu.Lock()
	defer o.rngMu.Unlock()
	return time.Duration(o.rng.Int64N(int64(limit) + 1))
}

// Load restores the persisted job.
func (o *Orchestrator) Load(ctx context.Context) error {
	state, err := o.deps.Store.Load(ctx)
	if err != nil {
		return fmt.Errorf("failed to load job state: %w", err)
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	o.state = state
	return nil
}

// Resume restarts the processing loop of a job that was exporting when the
// process stopped. A paused job waits inside the loop.
func (o *Orchestrator) Resume(ctx context.Context) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if !o.state.IsExporting || o.runningLocked() {
		return false
	}
	o.logLocked("Resuming export at document %d/%d", o.state.CurrentFileIndex+1, len(o.state.FileList))
	o.persistLocked()
	o.startLocked()
	return true
}

// Discover replaces the manifest with a fresh discovery. Documents already
// exported keep their success status.
func (o *Orchestrator) Discover(ctx context.Context) (*Manifest, error) {
	o.mu.Lock()
	if o.state.IsExporting {
		o.mu.Unlock()
		return nil, ErrJobRunning
	}
	o.mu.Unlock()

	m, err := NewDiscoverer(o.deps.Source, o.deps.Logger).Discover(ctx)
	if err != nil {
		o.mu.Lock()
		if errors.Is(err, sources.ErrNotAuthenticated) {
			o.logLocked("Not signed in to %s, please log in and retry", o.deps.Source.Name())
		} else {
			o.logLocked("Discovery failed: %v", err)
		}
		o.persistLocked()
		o.mu.Unlock()
		return nil, err
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	if o.state.IsExporting {
		return nil, ErrJobRunning
	}
	previous := map[string]*data.DocumentRef{}
	for _, doc := range o.state.FileList {
		previous[doc.ID] = doc
	}
	for _, doc := range m.Files {
		if old, ok := previous[doc.ID]; ok && old.Status == data.StatusSuccess {
			doc.Status = data.StatusSuccess
			doc.Format = old.Format
			doc.LocalPath = old.LocalPath
			doc.Skipped = old.Skipped
			doc.StartTime, doc.EndTime, doc.Duration = old.StartTime, old.EndTime, old.Duration
		}
	}
	o.state.FileList = m.Files
	o.state.FolderCount = m.FolderCount
	o.state.TotalFiles = len(m.Files)
	o.state.CurrentFileIndex = 0
	o.state.IsPaused = false
	o.logLocked("Found %d documents in %d folders", len(m.Files), m.FolderCount)
	if m.Truncated {
		o.logLocked("Folder tree was truncated, some documents may be missing")
	}
	o.persistLocked()
	o.deps.Bus.Publish(events.State(o.state.Clone()))
	return m, nil
}

// StartJob resets every unfinished document to pending and starts the loop.
// It returns immediately.
func (o *Orchestrator) StartJob(ctx context.Context, format, subfolder string, typeFormats map[string]string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.state.IsExporting {
		return ErrJobRunning
	}
	if len(o.state.FileList) == 0 {
		return ErrEmptyManifest
	}

	for _, doc := range o.state.FileList {
		if doc.Status != data.StatusSuccess {
			doc.Status = data.StatusPending
			doc.ClearAttempt()
		}
	}
	if format == "" {
		format = FormatAuto
	}
	tf := make(map[string]string, len(typeFormats))
	for k, v := range typeFormats {
		tf[k] = v
	}
	o.state.Logs = []string{}
	o.state.RunID = uuid.NewString()
	o.state.ExportFormat = format
	o.state.TypeFormats = tf
	o.state.TargetSubfolder = subfolder
	o.state.Naming = o.naming
	o.state.CurrentFileIndex = 0
	o.state.TotalFiles = len(o.state.FileList)
	o.state.IsExporting = true
	o.state.IsPaused = false

	c := o.state.Counts()
	o.logLocked("Starting export of %d documents (%d already done, format %s)", c.Total, c.Success, format)
	o.persistLocked()
	o.startLocked()
	o.deps.Bus.Publish(events.Progress(c.Exported(), c.Total))
	return nil
}

// TogglePause pauses or resumes the running job. The loop stops at its next
// checkpoint and waits there.
func (o *Orchestrator) TogglePause(ctx context.Context, paused bool) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if !o.state.IsExporting {
		o.log.Warn("pause toggled with no job running", "paused", paused)
		return ErrNoJobRunning
	}
	if o.state.IsPaused == paused {
		return nil
	}
	o.state.IsPaused = paused
	if paused {
		o.logLocked("Export paused")
	} else {
		o.logLocked("Export resumed")
	}
	o.persistLocked()
	o.deps.Bus.Publish(events.State(o.state.Clone()))
	return nil
}

// RetryFailed moves every failed document back to pending and restarts the
// loop from the first document.
func (o *Orchestrator) RetryFailed(ctx context.Context) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.state.IsExporting {
		return ErrJobRunning
	}
	n := 0
	for _, doc := range o.state.FileList {
		if doc.Status == data.StatusFailed {
			doc.Status = data.StatusPending
			doc.ClearAttempt()
			n++
		}
	}
	if n == 0 {
		return ErrNothingToRetry
	}
	o.state.RunID = uuid.NewString()
	o.state.CurrentFileIndex = 0
	o.state.TotalFiles = len(o.state.FileList)
	o.state.IsExporting = true
	o.state.IsPaused = false
	o.logLocked("Retrying %d failed documents", n)
	o.persistLocked()
	o.startLocked()
	c := o.state.Counts()
	o.deps.Bus.Publish(events.Progress(c.Exported(), c.Total))
	return nil
}

// Reset stops any job and returns to the default state, leaving no trace.
func (o *Orchestrator) Reset(ctx context.Context) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.stopLocked()
	o.state = data.NewJobState()
	o.persistLocked()
	o.deps.Bus.Publish(events.State(o.state.Clone()))
	return nil
}

// Cancel stops the running job. The document being processed stays
// in_progress and is picked up again by the next run.
func (o *Orchestrator) Cancel(ctx context.Context) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if !o.state.IsExporting {
		return ErrNoJobRunning
	}
	o.stopLocked()
	o.state.IsExporting = false
	o.state.IsPaused = false
	o.logLocked("Export cancelled")
	o.persistLocked()
	o.deps.Bus.Publish(events.Complete(o.state.Counts()))
	return nil
}

// State returns a copy of the current job state.
func (o *Orchestrator) State() *data.JobState {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state.Clone()
}

// Running reports whether a processing loop is alive.
func (o *Orchestrator) Running() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.runningLocked()
}

// Wait blocks until the current processing loop exits.
func (o *Orchestrator) Wait() {
	o.mu.Lock()
	done := o.done
	o.mu.Unlock()
	if done != nil {
		<-done
	}
}

func (o *Orchestrator) runningLocked() bool {
	if o.done == nil {
		return false
	}
	select {
	case <-o.done:
		return false
	default:
		return true
	}
}

// startLocked launches a loop bound to a fresh generation and context.
func (o *Orchestrator) startLocked() {
	o.stopLocked()
	ctx, cancel := context.WithCancel(o.base)
	o.cancel = cancel
	done := make(chan struct{})
	o.done = done
	go o.run(ctx, o.gen, done)
}

// stopLocked aborts the running loop and makes it stale.
func (o *Orchestrator) stopLocked() {
	o.gen++
	o.releaseLocked()
}

func (o *Orchestrator) logLocked(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	line := o.now().Format("2006-01-02 15:04:05") + " " + msg
	o.state.AppendLog(line)
	o.log.Info(msg, "run", o.state.RunID)
	o.deps.Bus.Publish(events.Log(line))
}

func (o *Orchestrator) persistLocked() {
	o.state.TotalFiles = len(o.state.FileList)
	o.state.UpdatedAt = o.now()
	if err := o.deps.Store.Save(context.WithoutCancel(o.base), o.state.Clone()); err != nil {
		o.log.Error("failed to persist job state", "error", err)
	}
}

// update applies fn and persists, unless the loop of generation g was
// superseded.
func (o *Orchestrator) update(g uint64, fn func(s *data.JobState)) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.gen != g {
		return false
	}
	fn(o.state)
	o.persistLocked()
	return true
}

func (o *Orchestrator) publishProgressLocked() {
	c := o.state.Counts()
	o.deps.Bus.Publish(events.Progress(c.Exported(), c.Total))
}

func (o *Orchestrator) sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// checkpoint blocks while the job is paused and reports whether the loop of
// generation g may continue.
func (o *Orchestrator) checkpoint(ctx context.Context, g uint64) bool {
	waited := false
	for {
		if ctx.Err() != nil {
			return false
		}
		o.mu.Lock()
		if o.gen != g || !o.state.IsExporting {
			o.mu.Unlock()
			return false
		}
		paused := o.state.IsPaused
		switch {
		case paused && !waited:
			o.logLocked("Paused, waiting to resume")
			o.persistLocked()
		case !paused && waited:
			o.logLocked("Resuming")
			o.persistLocked()
		}
		o.mu.Unlock()

		if !paused {
			return true
		}
		waited = true
		if !o.sleep(ctx, o.timing.PauseTick) {
			return false
		}
	}
}

func (o *Orchestrator) run(ctx context.Context, g uint64, done chan struct{}) {
	defer close(done)
	defer func() {
		if r := recover(); r != nil {
			o.mu.Lock()
			defer o.mu.Unlock()
			o.log.Error("export loop crashed", "panic", r)
			if o.gen != g {
				return
			}
			o.logLocked("Export stopped by an unexpected error: %v", r)
			o.state.IsExporting = false
			o.state.IsPaused = false
			o.persistLocked()
			o.deps.Bus.Publish(events.Error(fmt.Sprint(r)))
		}
	}()

	for {
		idx, ok := o.next(g)
		if !ok {
			return
		}
		if !o.checkpoint(ctx, g) {
			return
		}
		if !o.process(ctx, g, idx) {
			return
		}
		last := false
		if !o.update(g, func(s *data.JobState) {
			s.CurrentFileIndex = idx + 1
			last = s.CurrentFileIndex >= len(s.FileList)
		}) {
			return
		}
		if !last && !o.sleep(ctx, o.timing.DocDelay+o.jitter(o.timing.DocJitter)) {
			return
		}
	}
}

// next advances the cursor to the next resumable document. When the list is
// exhausted it completes the job and reports false.
func (o *Orchestrator) next(g uint64) (int, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.gen != g || !o.state.IsExporting {
		return 0, false
	}
	moved := false
	for o.state.CurrentFileIndex < len(o.state.FileList) {
		doc := o.state.FileList[o.state.CurrentFileIndex]
		if doc.Status.IsResumable() {
			if moved {
				o.persistLocked()
			}
			return o.state.CurrentFileIndex, true
		}
		o.log.Debug("skipping document", "title", doc.Title, "status", doc.Status)
		o.state.CurrentFileIndex++
		moved = true
	}

	o.state.IsExporting = false
	o.state.IsPaused = false
	c := o.state.Counts()
	o.logLocked("Export finished: %d succeeded, %d failed, %d skipped", c.Success-c.Skipped, c.Failed, c.Skipped)
	o.persistLocked()
	o.releaseLocked()
	o.deps.Bus.Publish(events.Complete(c))
	return 0, false
}

// releaseLocked frees the context of a loop that is finishing on its own.
func (o *Orchestrator) releaseLocked() {
	if o.cancel != nil {
		o.cancel()
		o.cancel = nil
	}
}

// job is the per-document snapshot the pipeline works from.
type job struct {
	doc       data.DocumentRef
	index     int
	total     int
	format    string
	subfolder string
	naming    data.Naming
}

// process runs the attempt loop for one document. It reports false when the
// loop must stop.
func (o *Orchestrator) process(ctx context.Context, g uint64, idx int) bool {
	var j job
	skipped := false
	if !o.update(g, func(s *data.JobState) {
		doc := s.FileList[idx]
		doc.ClearAttempt()
		now := o.now()
		doc.Status = data.StatusInProgress
		doc.StartTime = &now

		format, ok := o.deps.Formats.Resolve(doc.Kind, s.ExportFormat, s.TypeFormats)
		if !ok {
			doc.Status = data.StatusSuccess
			doc.Skipped = true
			doc.Finish(now)
			o.logLocked("Skipping unsupported type (%s): %s", doc.Kind, displayPath(doc))
			o.publishProgressLocked()
			skipped = true
			return
		}
		doc.Format = format
		j = job{
			doc:       *doc,
			index:     idx,
			total:     len(s.FileList),
			format:    format,
			subfolder: s.TargetSubfolder,
			naming:    s.Naming,
		}
		o.logLocked("(%d/%d) Exporting %s as %s", idx+1, len(s.FileList), doc.Title, format)
	}) {
		return false
	}
	if skipped {
		return true
	}

	var lastErr error
	for attempt := 0; attempt < o.timing.MaxAttempts; attempt++ {
		if attempt > 0 {
			if !o.update(g, func(s *data.JobState) {
				s.FileList[idx].RetryCount = attempt
				o.logLocked("Retrying (%d/%d): %s", attempt, o.timing.MaxAttempts-1, j.doc.Title)
			}) {
				return false
			}
			if !o.sleep(ctx, o.timing.RetryDelay) || !o.checkpoint(ctx, g) {
				return false
			}
		}

		local, err := o.attempt(ctx, g, &j)
		if err == nil {
			return o.update(g, func(s *data.JobState) {
				doc := s.FileList[idx]
				doc.Status = data.StatusSuccess
				doc.LocalPath = local
				doc.Error = ""
				doc.Finish(o.now())
				o.logLocked("Saved %s (%.2fs)", local, float64(doc.Duration)/1000)
				o.publishProgressLocked()
			})
		}

		if errors.Is(err, errStopped) || ctx.Err() != nil {
			o.log.Info("document interrupted", "title", j.doc.Title)
			return false
		}
		if errors.Is(err, sources.ErrRateLimited) {
			o.haltRateLimited(g, idx)
			return false
		}
		if errors.Is(err, sources.ErrNotAuthenticated) {
			o.haltUnauthenticated(g, idx, err)
			return false
		}

		lastErr = err
		if !o.update(g, func(s *data.JobState) {
			s.FileList[idx].Error = err.Error()
			o.logLocked("Export failed (attempt %d): %s - %v", attempt+1, j.doc.Title, err)
		}) {
			return false
		}
	}

	return o.update(g, func(s *data.JobState) {
		doc := s.FileList[idx]
		doc.Status = data.StatusFailed
		if lastErr != nil {
			doc.Error = lastErr.Error()
		}
		doc.Finish(o.now())
		o.logLocked("All attempts failed, marking %s as failed", j.doc.Title)
		o.publishProgressLocked()
	})
}

// attempt exports the document once and returns the saved relative path.
// Panics are turned into errors so one document cannot take the job down.
func (o *Orchestrator) attempt(ctx context.Context, g uint64, j *job) (local string, err error) {
	defer func() {
		if r := recover(); r != nil {
			o.log.Error("document export panicked", "title", j.doc.Title, "panic", r)
			err = fmt.Errorf("unexpected failure: %v", r)
		}
	}()

	if fetcher, ok := o.deps.Source.(sources.OutlineFetcher); ok && o.deps.Formats.IsLocal(j.format) {
		return o.renderLocal(ctx, g, j, fetcher)
	}

	exporter, ok := o.deps.Source.(sources.TaskExporter)
	if !ok {
		return "", fmt.Errorf("%s cannot export %q documents", o.deps.Source.Name(), j.format)
	}
	task, err := exporter.CreateExportTask(ctx, &j.doc, j.format)
	if task.URL != "" {
		o.update(g, func(s *data.JobState) { s.FileList[j.index].ExportURL = task.URL })
	}
	if err != nil {
		return "", err
	}
	if !o.checkpoint(ctx, g) {
		return "", errStopped
	}

	url, err := o.poll(ctx, g, j, exporter, task.ID)
	if err != nil {
		return "", err
	}
	if !o.checkpoint(ctx, g) {
		return "", errStopped
	}

	rel := o.buildPath(j, j.format)
	return o.deps.Sink.Save(ctx, sink.Artifact{URL: url}, rel)
}

func (o *Orchestrator) renderLocal(ctx context.Context, g uint64, j *job, fetcher sources.OutlineFetcher) (string, error) {
	tree, err := fetcher.FetchOutline(ctx, j.doc.ID)
	if err != nil {
		return "", err
	}
	if !o.checkpoint(ctx, g) {
		return "", errStopped
	}
	rendered, err := outline.Render(tree, j.format, outline.Options{
		Title:       j.doc.Title,
		ExportedAt:  o.now(),
		ImageHost:   o.imageHost,
		FrontMatter: o.frontMatter,
	})
	if err != nil {
		return "", err
	}
	return o.deps.Sink.Save(ctx, sink.Artifact{Content: rendered.Content}, o.buildPath(j, rendered.Extension))
}

// poll waits for an export task using bounded exponential backoff. Pause and
// cancellation are checked before and after every status call.
func (o *Orchestrator) poll(ctx context.Context, g uint64, j *job, exporter sources.TaskExporter, taskID string) (string, error) {
	attempts := o.timing.PollAttempts
	for attempt := 0; attempt < attempts; attempt++ {
		if !o.checkpoint(ctx, g) {
			return "", errStopped
		}
		res, err := exporter.TaskStatus(ctx, taskID)
		if !o.checkpoint(ctx, g) {
			return "", errStopped
		}
		if err != nil {
			return "", err
		}
		if res.Done && res.DownloadURL != "" {
			o.update(g, func(s *data.JobState) { s.FileList[j.index].DownloadURL = res.DownloadURL })
			return res.DownloadURL, nil
		}
		if attempt == attempts-1 {
			break
		}
		delay := Backoff(attempt, o.timing.PollBase, o.timing.PollCap) + o.jitter(o.timing.PollJitter)
		o.update(g, func(*data.JobState) {
			o.logLocked("Next poll in ~%ds (attempt %d/%d)", int(delay.Round(time.Second)/time.Second), attempt+1, attempts)
		})
		if !o.sleep(ctx, delay) {
			return "", errStopped
		}
	}
	o.update(g, func(*data.JobState) {
		o.logLocked("Export task %s timed out", taskID)
	})
	return "", ErrPollTimeout
}

// haltRateLimited fails every unfinished document and stops the job.
func (o *Orchestrator) haltRateLimited(g uint64, idx int) {
	o.update(g, func(s *data.JobState) {
		o.logLocked("Rate limited by the server (HTTP 429), stopping all remaining documents")
		now := o.now()
		s.FileList[idx].Finish(now)
		for _, doc := range s.FileList {
			if doc.Status.IsResumable() {
				doc.Status = data.StatusFailed
				if doc.Error == "" {
					doc.Error = sources.ErrRateLimited.Error()
				}
			}
		}
		s.IsExporting = false
		s.IsPaused = false
		o.releaseLocked()
		o.deps.Bus.Publish(events.Complete(s.Counts()))
	})
}

// haltUnauthenticated fails the current document and stops the job; the
// remaining documents stay pending for a later run.
func (o *Orchestrator) haltUnauthenticated(g uint64, idx int, err error) {
	o.update(g, func(s *data.JobState) {
		doc := s.FileList[idx]
		doc.Status = data.StatusFailed
		doc.Error = err.Error()
		doc.Finish(o.now())
		o.logLocked("Session expired, please log in again: %v", err)
		s.IsExporting = false
		s.IsPaused = false
		o.releaseLocked()
		o.deps.Bus.Publish(events.Error(err.Error()))
		o.deps.Bus.Publish(events.Complete(s.Counts()))
	})
}

func (o *Orchestrator) buildPath(j *job, ext string) string {
	return sink.BuildPath(j.subfolder, j.doc.FolderPath, j.doc.Title, ext, j.naming, localTime(j.doc.CreatedAt), localTime(j.doc.UpdatedAt))
}

func localTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	l := t.Local()
	return &l
}

func displayPath(doc *data.DocumentRef) string {
	if len(doc.FolderPath) == 0 {
		return doc.Title
	}
	p := ""
	for _, seg := range doc.FolderPath {
		p += seg + "/"
	}
	return p + doc.Title
}
