package settle

import (
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/spf13/afero"
)

// sample is the last observed size of a candidate file and when it was seen
// to change.
type sample struct {
	size    int64
	changed time.Time
}

// tracker is the pending download state shared by both detectors. It is
// only used from the goroutine running Await.
type tracker struct {
	fs       afero.Fs
	dir      string
	opts     Options
	baseline map[string]struct{}
	pending  map[string]*sample
}

func newTracker(dir string, opts Options) (*tracker, error) {
	t := &tracker{
		fs:       opts.Fs,
		dir:      dir,
		opts:     opts,
		baseline: make(map[string]struct{}),
		pending:  make(map[string]*sample),
	}

	entries, err := afero.ReadDir(opts.Fs, dir)
	if err != nil {
		return nil, err
	}
	for _, e := range entries {
		t.baseline[e.Name()] = struct{}{}
	}
	return t, nil
}

// eligible reports whether name may become a candidate at all.
func (t *tracker) eligible(name string) bool {
	if _, ok := t.baseline[name]; ok {
		return false
	}
	if strings.HasPrefix(name, ".") {
		return false
	}
	lower := strings.ToLower(name)
	for _, suffix := range t.opts.TempSuffixes {
		if strings.HasSuffix(lower, strings.ToLower(suffix)) {
			return false
		}
	}
	return true
}

// observe samples name after a filesystem notification or a directory scan.
func (t *tracker) observe(name string, now time.Time) {
	if !t.eligible(name) {
		return
	}

	info, err := t.fs.Stat(filepath.Join(t.dir, name))
	if err != nil || info.IsDir() {
		// vanished between notification and sampling
		delete(t.pending, name)
		return
	}

	s, ok := t.pending[name]
	if !ok {
		t.pending[name] = &sample{size: info.Size(), changed: now}
		return
	}
	if s.size != info.Size() {
		s.size = info.Size()
		s.changed = now
	}
}

// scan picks up new files whose notifications were missed or which only a
// poller can see.
func (t *tracker) scan(now time.Time) error {
	entries, err := afero.ReadDir(t.fs, t.dir)
	if err != nil {
		return err
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if _, ok := t.pending[e.Name()]; ok {
			continue
		}
		t.observe(e.Name(), now)
	}
	return nil
}

// check re-samples every candidate and returns the first one whose size has
// been stable for the quiescence window.
func (t *tracker) check(now time.Time) (string, bool) {
	names := make([]string, 0, len(t.pending))
	for name := range t.pending {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		before := t.pending[name].size
		t.observe(name, now)

		s, ok := t.pending[name]
		if !ok || s.size != before {
			continue
		}
		if s.size == 0 && !t.opts.AllowEmpty {
			continue
		}
		if now.Sub(s.changed) >= t.opts.QuiescenceWindow {
			return name, true
		}
	}
	return "", false
}

// nextCheck is how long to wait before the next call to check.
func (t *tracker) nextCheck(now time.Time) time.Duration {
	next := t.opts.PollInterval
	for _, s := range t.pending {
		if s.size == 0 && !t.opts.AllowEmpty {
			continue
		}
		remaining := s.changed.Add(t.opts.QuiescenceWindow).Sub(now)
		if remaining > 0 && remaining < next {
			next = remaining
		}
	}
	return next
}
