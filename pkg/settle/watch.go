package settle

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	errs "docharvest/pkg/errors"
)

// eventBuffer holds notifications raised between Watch and Await, while the
// download is being triggered.
const eventBuffer = 256

// WatchDetector subscribes to fsnotify events on the download directory and
// samples files as they are reported. A timer still re-checks candidates so a
// file that simply stops growing, and so emits no further events, settles.
type WatchDetector struct {
	opts Options
}

// NewWatchDetector creates an event driven detector.
func NewWatchDetector(opts Options) *WatchDetector {
	return &WatchDetector{opts: opts.withDefaults()}
}

// Watch adds dir to a new fsnotify watcher and records the files already
// present in it.
func (d *WatchDetector) Watch(ctx context.Context, dir string) (Pending, error) {
	w, err := fsnotify.NewBufferedWatcher(eventBuffer)
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}
	if err := w.Add(dir); err != nil {
		w.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", dir, err)
	}

	t, err := newTracker(dir, d.opts)
	if err != nil {
		w.Close()
		return nil, fmt.Errorf("failed to read download directory: %w", err)
	}
	return &watchPending{tracker: t, watcher: w}, nil
}

type watchPending struct {
	*tracker
	watcher *fsnotify.Watcher
}

func (p *watchPending) Await(ctx context.Context, maxWait time.Duration) (string, error) {
	clock := p.opts.Clock
	log := p.opts.Logger.WithField("dir", p.dir)

	deadline := clock.NewTimer(maxWait)
	defer deadline.Stop()
	recheck := clock.NewTimer(p.opts.PollInterval)
	defer recheck.Stop()

	for {
		select {
		case <-ctx.Done():
			return "", ctx.Err()

		case <-deadline.Chan():
			return "", errs.NewDownloadTimeout(p.dir, maxWait)

		case ev, ok := <-p.watcher.Events:
			if !ok {
				return "", fmt.Errorf("watcher closed")
			}
			if ev.Op == fsnotify.Chmod {
				continue
			}
			now := clock.Now()
			p.observe(filepath.Base(ev.Name), now)
			log.DebugWithFields("Download directory event", map[string]interface{}{
				"file": filepath.Base(ev.Name),
				"op":   ev.Op.String(),
			})
			resetTimer(recheck, p.nextCheck(now))

		case err, ok := <-p.watcher.Errors:
			if !ok {
				return "", fmt.Errorf("watcher closed")
			}
			log.WithError(err).Warn("File watcher error")

		case <-recheck.Chan():
			now := clock.Now()
			if len(p.pending) == 0 {
				if err := p.scan(now); err != nil {
					log.WithError(err).Warn("Failed to scan download directory")
				}
			}
			if name, ok := p.check(now); ok {
				return name, nil
			}
			recheck.Reset(p.nextCheck(now))
		}
	}
}

func (p *watchPending) Close() error {
	return p.watcher.Close()
}
