// Package settle decides when an asynchronously produced file has finished
// writing.
//
// There is no completion signal from the producer. A file is settled once its
// size has stayed the same for a quiescence window. Two strategies are
// provided behind the Detector interface: WatchDetector reacts to fsnotify
// events, PollDetector samples the directory on a timer. Both take a
// clockwork.Clock and an afero.Fs so tests can drive time and files.
package settle

import (
	"context"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/spf13/afero"

	"docharvest/pkg/config"
	"docharvest/pkg/logger"
)

// Detector starts observing a directory. Watch must be called before the
// download is triggered so that a fast download is not missed.
type Detector interface {
	Watch(ctx context.Context, dir string) (Pending, error)
}

// Pending is one outstanding download in a watched directory.
type Pending interface {
	// Await blocks until a new file settles and returns its base name, or
	// fails with a download_timeout error once maxWait has elapsed.
	Await(ctx context.Context, maxWait time.Duration) (string, error)
	Close() error
}

// Options tune both detectors.
type Options struct {
	QuiescenceWindow time.Duration
	PollInterval     time.Duration
	TempSuffixes     []string
	AllowEmpty       bool

	Clock  clockwork.Clock
	Fs     afero.Fs
	Logger logger.Logger
}

// OptionsFromConfig maps the download section of the configuration.
func OptionsFromConfig(cfg *config.DownloadConfig) Options {
	return Options{
		QuiescenceWindow: cfg.QuiescenceWindow,
		PollInterval:     cfg.PollInterval,
		TempSuffixes:     cfg.TempSuffixes,
		AllowEmpty:       cfg.AllowEmpty,
	}
}

func (o Options) withDefaults() Options {
	if o.QuiescenceWindow <= 0 {
		o.QuiescenceWindow = time.Second
	}
	if o.PollInterval <= 0 {
		o.PollInterval = o.QuiescenceWindow
	}
	if o.Clock == nil {
		o.Clock = clockwork.NewRealClock()
	}
	if o.Fs == nil {
		o.Fs = afero.NewOsFs()
	}
	if o.Logger == nil {
		o.Logger = logger.NewNopLogger()
	}
	return o
}

// New returns the detector named by kind ("watch" or "poll").
func New(kind string, opts Options) (Detector, error) {
	switch kind {
	case config.DetectorWatch, "":
		return NewWatchDetector(opts), nil
	case config.DetectorPoll:
		return NewPollDetector(opts), nil
	default:
		return nil, fmt.Errorf("unknown detector %q", kind)
	}
}

// AwaitCompletedFile watches dir and waits for one file to settle. Callers
// that trigger the download themselves should use Watch and Await directly.
func AwaitCompletedFile(ctx context.Context, d Detector, dir string, maxWait time.Duration) (string, error) {
	p, err := d.Watch(ctx, dir)
	if err != nil {
		return "", err
	}
	defer p.Close()
	return p.Await(ctx, maxWait)
}

// resetTimer re-arms t after draining a value that may still be buffered.
func resetTimer(t clockwork.Timer, d time.Duration) {
	if !t.Stop() {
		select {
		case <-t.Chan():
		default:
		}
	}
	t.Reset(d)
}
