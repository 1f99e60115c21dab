package traversal

import (
	"context"
	"path/filepath"
	"time"

	"github.com/jonboulle/clockwork"

	"docharvest/pkg/catalog"
	"docharvest/pkg/config"
	errs "docharvest/pkg/errors"
	"docharvest/pkg/logger"
	"docharvest/pkg/naming"
	"docharvest/pkg/settle"
	"docharvest/pkg/storage"
)

// ErrorTypeDetector marks entries skipped because the download directory
// could not be watched.
const ErrorTypeDetector errs.ErrorType = "detector"

// Config holds the tunables of a traversal.
type Config struct {
	// Timeout is the per-entry maximum wait for a file to settle.
	Timeout time.Duration
	// ExpansionCadence is the number of advanced entries between expansions.
	ExpansionCadence int
	// ExpandOnExhaustion also asks for more content when the snapshot runs
	// out before the cadence is reached.
	ExpandOnExhaustion bool
}

// ConfigFrom extracts the traversal tunables from the application config.
func ConfigFrom(cfg *config.Config) Config {
	return Config{
		Timeout:            cfg.Download.Timeout,
		ExpansionCadence:   cfg.Traversal.ExpansionCadence,
		ExpandOnExhaustion: cfg.Traversal.ExpandOnExhaustion,
	}
}

// Checkpointer persists the run state after every entry.
type Checkpointer interface {
	Save(state *RunState) error
}

// Engine walks a catalog one entry at a time: trigger, await settle, rename,
// advance, and expand the catalog every ExpansionCadence advanced entries.
// At most one download is outstanding at any time.
type Engine struct {
	surface  catalog.Surface
	detector settle.Detector
	storage  *storage.Manager
	cfg      Config

	log          logger.Logger
	observer     Observer
	checkpointer Checkpointer
	clock        clockwork.Clock
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(e *Engine) { e.log = l }
}

// WithObserver sets the progress observer.
func WithObserver(o Observer) Option {
	return func(e *Engine) { e.observer = o }
}

// WithCheckpointer persists state after each entry.
func WithCheckpointer(c Checkpointer) Option {
	return func(e *Engine) { e.checkpointer = c }
}

// WithClock sets the clock used for timestamps.
func WithClock(c clockwork.Clock) Option {
	return func(e *Engine) { e.clock = c }
}

// New creates an engine.
func New(surface catalog.Surface, detector settle.Detector, store *storage.Manager, cfg Config, opts ...Option) *Engine {
	if cfg.ExpansionCadence <= 0 {
		cfg.ExpansionCadence = 20
	}
	e := &Engine{
		surface:  surface,
		detector: detector,
		storage:  store,
		cfg:      cfg,
		log:      logger.NewNopLogger(),
		observer: NopObserver{},
		clock:    clockwork.NewRealClock(),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.log = e.log.WithField("component", "traversal")
	return e
}

// Run traverses the catalog until it is done, the context is cancelled or
// the catalog becomes unavailable. Passing a state resumes from its cursor.
// The returned state is never nil and holds whatever was achieved; the error
// is nil only when the run reached a done state.
func (e *Engine) Run(ctx context.Context, state *RunState) (*RunState, error) {
	if state == nil {
		state = NewRunState()
	}
	if state.StartedAt.IsZero() {
		state.StartedAt = e.clock.Now()
	}
	state.DoneReason = ""
	state.FinishedAt = time.Time{}

	err := e.run(ctx, state)
	state.FinishedAt = e.clock.Now()
	switch {
	case err == nil:
	case ctx.Err() != nil:
		state.DoneReason = DoneCancelled
		err = ctx.Err()
	default:
		state.DoneReason = DoneAborted
	}

	e.save(state)
	e.observer.Finished(state, err)
	e.log.InfoWithFields("Traversal finished", map[string]interface{}{
		"reason":     string(state.DoneReason),
		"cursor":     state.Cursor,
		"processed":  state.Processed,
		"skipped":    len(state.Skipped),
		"expansions": state.Expansions,
	})
	return state, err
}

func (e *Engine) run(ctx context.Context, state *RunState) error {
	snap, err := catalog.LoadSnapshot(ctx, e.surface)
	if err != nil {
		return err
	}
	e.log.InfoWithFields("Catalog loaded", map[string]interface{}{
		"entries": snap.Len(),
		"cursor":  state.Cursor,
	})

	if state.Cursor > 0 {
		if snap, err = e.catchUp(ctx, snap, state.Cursor); err != nil {
			return err
		}
	}
	e.observer.SnapshotLoaded(snap.Len(), state)

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		if state.Cursor >= snap.Len() {
			if !e.cfg.ExpandOnExhaustion {
				state.DoneReason = DoneExhausted
				return nil
			}
			more, next, err := e.expand(ctx, state, snap)
			if err != nil {
				return err
			}
			if !more || next.Len() <= state.Cursor {
				state.DoneReason = DoneExpansionExhausted
				return nil
			}
			snap = next
			continue
		}

		position := snap.At(state.Cursor)
		advanced := e.processEntry(ctx, snap, position, state)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		e.save(state)

		if advanced && state.Processed%e.cfg.ExpansionCadence == 0 {
			more, next, err := e.expand(ctx, state, snap)
			if err != nil {
				return err
			}
			if !more {
				state.DoneReason = DoneExpansionExhausted
				return nil
			}
			snap = next
			e.save(state)
		}
	}
}

// processEntry handles the entry at position and reports whether it was
// advanced. A skipped entry still moves the cursor. Nothing is recorded when
// the context is cancelled part way through.
func (e *Engine) processEntry(ctx context.Context, snap *catalog.Snapshot, position int, state *RunState) bool {
	title, _ := snap.Title(position)
	e.observer.EntryStarted(position, title, state)
	log := e.log.WithFields(map[string]interface{}{
		"position": position,
		"cursor":   state.Cursor,
	})
	log.DebugWithFields("Processing entry", map[string]interface{}{"title": title})

	pending, err := e.detector.Watch(ctx, e.storage.Dir())
	if err != nil {
		e.skip(ctx, state, position, title, ErrorTypeDetector, err)
		return false
	}
	defer pending.Close()

	if err := e.surface.TriggerDownload(ctx, position); err != nil {
		var trigErr error = errs.NewTriggerError(position, err)
		if errs.IsType(err, errs.ErrorTypeTrigger) {
			trigErr = err
		}
		e.skip(ctx, state, position, title, errs.ErrorTypeTrigger, trigErr)
		return false
	}

	detected, err := pending.Await(ctx, e.cfg.Timeout)
	if err != nil {
		reason := errs.TypeOf(err)
		if reason == errs.ErrorTypeUnknown {
			reason = ErrorTypeDetector
		}
		e.skip(ctx, state, position, title, reason, err)
		return false
	}

	file := DownloadedFile{
		Position:    position,
		Title:       title,
		Detected:    detected,
		Extension:   filepath.Ext(detected),
		Final:       naming.Compose(title, detected),
		CompletedAt: e.clock.Now(),
	}
	outcome := logger.OutcomeCompleted
	if err := e.storage.Rename(detected, file.Final); err != nil {
		// the download itself succeeded; keep the detected name
		file.Final = detected
		file.RenameFailed = true
		file.RenameError = err.Error()
		outcome = logger.OutcomeRenamed
		logger.LogEntryOutcome(e.log, position, title, outcome, detected, err)
	}

	state.Completed = append(state.Completed, file)
	state.Processed++
	state.Cursor++

	if outcome == logger.OutcomeCompleted {
		logger.LogEntryOutcome(e.log, position, title, outcome, file.Final, nil)
	}
	e.observer.EntryCompleted(file, state)
	return true
}

func (e *Engine) skip(ctx context.Context, state *RunState, position int, title string, reason errs.ErrorType, err error) {
	if ctx.Err() != nil {
		return
	}

	entry := SkippedEntry{
		Position:  position,
		Title:     title,
		Reason:    reason,
		Message:   err.Error(),
		SkippedAt: e.clock.Now(),
	}
	state.Skipped = append(state.Skipped, entry)
	state.Cursor++

	logger.LogEntryOutcome(e.log, position, title, logger.OutcomeSkipped, "", err)
	e.observer.EntrySkipped(entry, state)
}

// expand asks the surface for more content. It returns the refreshed
// snapshot when more is available. An expansion call that fails is logged
// and treated as more being available on the current snapshot; a refresh
// that fails is fatal.
func (e *Engine) expand(ctx context.Context, state *RunState, snap *catalog.Snapshot) (bool, *catalog.Snapshot, error) {
	res, err := e.surface.Expand(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return false, nil, ctx.Err()
		}
		logger.LogExpansion(e.log, state.Processed, snap.Len(), false, err)
		return true, snap, nil
	}
	state.Expansions++

	if !res.MoreAvailable {
		logger.LogExpansion(e.log, state.Processed, snap.Len(), false, nil)
		e.observer.Expanded(snap.Len(), false, state)
		return false, snap, nil
	}

	next, err := catalog.LoadSnapshot(ctx, e.surface)
	if err != nil {
		return false, nil, err
	}
	logger.LogExpansion(e.log, state.Processed, next.Len(), true, nil)
	e.observer.Expanded(next.Len(), true, state)
	return true, next, nil
}

// catchUp replays expansions after a resume until the snapshot reaches the
// cursor again. Replayed expansions are not counted.
func (e *Engine) catchUp(ctx context.Context, snap *catalog.Snapshot, cursor int) (*catalog.Snapshot, error) {
	for snap.Len() <= cursor {
		res, err := e.surface.Expand(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			e.log.WithError(err).Warn("Expansion failed while catching up to the saved cursor")
			return snap, nil
		}
		if !res.MoreAvailable {
			return snap, nil
		}
		next, err := catalog.LoadSnapshot(ctx, e.surface)
		if err != nil {
			return nil, err
		}
		if next.Len() <= snap.Len() {
			return next, nil
		}
		snap = next
	}
	e.log.InfoWithFields("Caught up to saved cursor", map[string]interface{}{
		"cursor":  cursor,
		"entries": snap.Len(),
	})
	return snap, nil
}

func (e *Engine) save(state *RunState) {
	if e.checkpointer == nil {
		return
	}
	if err := e.checkpointer.Save(state); err != nil {
		e.log.WithError(err).Warn("Failed to save checkpoint")
	}
}
