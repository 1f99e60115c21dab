package settle

import (
	"context"
	"fmt"
	"time"

	errs "docharvest/pkg/errors"
)

// PollDetector samples the directory every PollInterval. It needs nothing
// but an afero.Fs, so it works on filesystems without change notifications.
type PollDetector struct {
	opts Options
}

// NewPollDetector creates a polling detector.
func NewPollDetector(opts Options) *PollDetector {
	return &PollDetector{opts: opts.withDefaults()}
}

// Watch records the files already present in dir.
func (d *PollDetector) Watch(ctx context.Context, dir string) (Pending, error) {
	t, err := newTracker(dir, d.opts)
	if err != nil {
		return nil, fmt.Errorf("failed to read download directory: %w", err)
	}
	return &pollPending{tracker: t}, nil
}

type pollPending struct {
	*tracker
}

func (p *pollPending) Await(ctx context.Context, maxWait time.Duration) (string, error) {
	clock := p.opts.Clock
	deadline := clock.NewTimer(maxWait)
	defer deadline.Stop()
	tick := clock.NewTimer(p.opts.PollInterval)
	defer tick.Stop()

	for {
		select {
		case <-ctx.Done():
			return "", ctx.Err()

		case <-deadline.Chan():
			return "", errs.NewDownloadTimeout(p.dir, maxWait)

		case <-tick.Chan():
			now := clock.Now()
			if err := p.scan(now); err != nil {
				p.opts.Logger.WithError(err).Warn("Failed to scan download directory")
			}
			if name, ok := p.check(now); ok {
				return name, nil
			}
			tick.Reset(p.nextCheck(now))
		}
	}
}

func (p *pollPending) Close() error {
	return nil
}
