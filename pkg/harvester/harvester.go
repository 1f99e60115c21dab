package harvester

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"

	"github.com/spf13/afero"

	"docharvest/pkg/catalog"
	"docharvest/pkg/catalog/browser"
	"docharvest/pkg/catalog/httpcatalog"
	"docharvest/pkg/checkpoint"
	"docharvest/pkg/config"
	"docharvest/pkg/logger"
	"docharvest/pkg/manifest"
	"docharvest/pkg/settle"
	"docharvest/pkg/storage"
	"docharvest/pkg/traversal"
)

// ErrCheckpointExists is returned when a previous run of the same catalog
// was interrupted and neither resume nor restart was requested
var ErrCheckpointExists = errors.New("checkpoint exists - use --resume to continue or --force-restart to start fresh")

// SurfaceFactory opens the catalog surface for a run. store owns the
// download directory.
type SurfaceFactory func(ctx context.Context, cfg *config.Config, store *storage.Manager, log logger.Logger) (catalog.Surface, error)

// RunOptions select how a run treats a previous checkpoint
type RunOptions struct {
	Resume       bool
	ForceRestart bool
}

// Harvester runs the traversal engine against the configured catalog
type Harvester struct {
	cfg         *config.Config
	fs          afero.Fs
	logger      logger.Logger
	observers   traversal.Observers
	checkpoints *checkpoint.Manager
	openSurface SurfaceFactory
	detector    settle.Detector
}

// Option configures a Harvester
type Option func(*Harvester)

// WithLogger sets the logger
func WithLogger(l logger.Logger) Option {
	return func(h *Harvester) { h.logger = l }
}

// WithObserver adds a progress observer
func WithObserver(o traversal.Observer) Option {
	return func(h *Harvester) { h.observers = append(h.observers, o) }
}

// WithFs sets the filesystem holding the download directory
func WithFs(fs afero.Fs) Option {
	return func(h *Harvester) { h.fs = fs }
}

// WithCheckpoints sets the checkpoint manager
func WithCheckpoints(m *checkpoint.Manager) Option {
	return func(h *Harvester) { h.checkpoints = m }
}

// WithSurfaceFactory replaces the surface chosen by catalog.source
func WithSurfaceFactory(f SurfaceFactory) Option {
	return func(h *Harvester) { h.openSurface = f }
}

// WithDetector replaces the detector chosen by download.detector
func WithDetector(d settle.Detector) Option {
	return func(h *Harvester) { h.detector = d }
}

// New creates a harvester for cfg
func New(cfg *config.Config, opts ...Option) *Harvester {
	h := &Harvester{
		cfg:         cfg,
		fs:          afero.NewOsFs(),
		openSurface: OpenSurface,
	}
	for _, opt := range opts {
		opt(h)
	}
	if h.logger == nil {
		h.logger = logger.GetLogger()
	}
	h.logger = h.logger.WithField("component", "harvester")
	return h
}

// Run performs one harvest. The returned state is nil only when the run
// could not start.
func (h *Harvester) Run(ctx context.Context, opts RunOptions) (*traversal.RunState, error) {
	state, err := h.resumeState(opts)
	if err != nil {
		return nil, err
	}

	store := storage.NewManager(h.fs, h.cfg.Download.Directory)
	wipe := h.cfg.Download.ClearOnStart && state == nil
	if err := store.Prepare(wipe); err != nil {
		return nil, fmt.Errorf("failed to prepare download directory: %w", err)
	}

	detector := h.detector
	if detector == nil {
		detOpts := settle.OptionsFromConfig(&h.cfg.Download)
		detOpts.Fs = h.fs
		detOpts.Logger = h.logger
		detector, err = settle.New(h.cfg.Download.Detector, detOpts)
		if err != nil {
			return nil, err
		}
	}

	h.logger.InfoWithFields("Opening catalog", map[string]interface{}{
		"url":    h.cfg.Catalog.URL,
		"source": h.cfg.Catalog.Source,
	})
	surface, err := h.openSurface(ctx, h.cfg, store, h.logger)
	if err != nil {
		return nil, err
	}
	if closer, ok := surface.(io.Closer); ok {
		defer func() {
			if err := closer.Close(); err != nil {
				h.logger.WithError(err).Warn("Failed to close catalog surface")
			}
		}()
	}

	engineOpts := []traversal.Option{
		traversal.WithLogger(h.logger),
		traversal.WithObserver(h.observers),
	}
	if h.checkpoints != nil {
		engineOpts = append(engineOpts, traversal.WithCheckpointer(h.checkpoints))
	}
	engine := traversal.New(surface, detector, store, traversal.ConfigFrom(h.cfg), engineOpts...)

	state, runErr := engine.Run(ctx, state)

	h.writeManifest(state, runErr)

	// Only a finished run drops its checkpoint
	if state.Done() && h.checkpoints != nil {
		if err := h.checkpoints.Delete(); err != nil {
			h.logger.WithError(err).Warn("Failed to delete checkpoint")
		}
	}

	return state, runErr
}

// resumeState applies the checkpoint policy and returns the state to resume
// from, or nil for a fresh run
func (h *Harvester) resumeState(opts RunOptions) (*traversal.RunState, error) {
	if !h.cfg.Checkpoint.Enabled {
		h.checkpoints = nil
		return nil, nil
	}
	if h.checkpoints == nil {
		m, err := checkpoint.NewManager(h.cfg.Catalog.URL)
		if err != nil {
			return nil, fmt.Errorf("failed to create checkpoint manager: %w", err)
		}
		h.checkpoints = m
	}

	if !h.checkpoints.Exists() {
		return nil, nil
	}

	switch {
	case opts.ForceRestart:
		h.logger.Info("Force restart, ignoring existing checkpoint")
		return nil, h.checkpoints.Delete()

	case opts.Resume:
		cp, err := h.checkpoints.Load()
		if err != nil {
			return nil, fmt.Errorf("failed to load checkpoint: %w", err)
		}
		if cp == nil {
			return nil, nil
		}
		h.logger.InfoWithFields("Resuming from checkpoint", map[string]interface{}{
			"run_id": cp.State.RunID,
			"cursor": cp.State.Cursor,
		})
		return &cp.State, nil
	}

	return nil, ErrCheckpointExists
}

func (h *Harvester) writeManifest(state *traversal.RunState, runErr error) {
	if h.cfg.Output.ManifestFile == "" {
		return
	}
	path := filepath.Join(h.cfg.Download.Directory, h.cfg.Output.ManifestFile)
	if err := manifest.Build(state, h.cfg, runErr).Save(h.fs, path); err != nil {
		h.logger.WithError(err).Warn("Failed to write manifest")
		return
	}
	h.logger.WithField("path", path).Info("Manifest written")
}

// OpenSurface builds the surface named by catalog.source
func OpenSurface(ctx context.Context, cfg *config.Config, store *storage.Manager, log logger.Logger) (catalog.Surface, error) {
	switch cfg.Catalog.Source {
	case config.SourceBrowser:
		opts := browser.OptionsFromConfig(cfg)
		opts.DownloadDir = store.Dir()
		return browser.New(ctx, opts, log)
	case config.SourceHTTP:
		client := httpcatalog.NewClient(cfg, log)
		return httpcatalog.New(client, store, httpcatalog.OptionsFromConfig(cfg), log), nil
	}
	return nil, fmt.Errorf("unknown catalog source %q", cfg.Catalog.Source)
}
