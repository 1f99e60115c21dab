package traversal

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/spf13/afero"

	"docharvest/pkg/catalog"
	errs "docharvest/pkg/errors"
	"docharvest/pkg/settle"
)

const downloadDir = "/downloads"

// fakeCatalog is a scripted catalog surface. Entries become visible in pages
// of pageSize as Expand is called. A triggered entry produces a file that
// fakeDetector reports as settled.
type fakeCatalog struct {
	mu sync.Mutex

	titles   []string
	loaded   int
	pageSize int

	// never report more content
	noMore bool
	// positions whose trigger fails
	failTrigger map[int]bool
	// positions whose download never settles
	neverSettles map[int]bool
	// fail ListPositions on the Nth call (1-based), 0 never
	failListOnCall int
	// errors returned by successive Expand calls before normal behaviour
	expandErrs []error

	listCalls      int
	triggers       []int
	expandCalls    int
	expandAtCursor []int
	lastTriggered  int
}

func newFakeCatalog(total, pageSize int) *fakeCatalog {
	titles := make([]string, total)
	for i := range titles {
		titles[i] = fmt.Sprintf("Company %d", i)
	}
	loaded := pageSize
	if loaded > total {
		loaded = total
	}
	return &fakeCatalog{
		titles:        titles,
		loaded:        loaded,
		pageSize:      pageSize,
		failTrigger:   map[int]bool{},
		neverSettles:  map[int]bool{},
		lastTriggered: -1,
	}
}

func (f *fakeCatalog) ListPositions(ctx context.Context) ([]int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listCalls++
	if f.failListOnCall > 0 && f.listCalls >= f.failListOnCall {
		return nil, errors.New("results container not found")
	}
	positions := make([]int, f.loaded)
	for i := range positions {
		positions[i] = i
	}
	return positions, nil
}

func (f *fakeCatalog) TitlesByPosition(ctx context.Context) (map[int]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	titles := make(map[int]string, f.loaded)
	for i := 0; i < f.loaded; i++ {
		if f.titles[i] != "" {
			titles[i] = f.titles[i]
		}
	}
	return titles, nil
}

func (f *fakeCatalog) TriggerDownload(ctx context.Context, position int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.triggers = append(f.triggers, position)
	if f.failTrigger[position] {
		return errors.New("card button not found")
	}
	f.lastTriggered = position
	return nil
}

func (f *fakeCatalog) Expand(ctx context.Context) (catalog.ExpandResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.expandCalls++
	f.expandAtCursor = append(f.expandAtCursor, len(f.triggers))
	if len(f.expandErrs) > 0 {
		err := f.expandErrs[0]
		f.expandErrs = f.expandErrs[1:]
		return catalog.ExpandResult{}, err
	}
	if f.noMore || f.loaded >= len(f.titles) {
		return catalog.ExpandResult{MoreAvailable: false}, nil
	}
	f.loaded += f.pageSize
	if f.loaded > len(f.titles) {
		f.loaded = len(f.titles)
	}
	return catalog.ExpandResult{MoreAvailable: true}, nil
}

func (f *fakeCatalog) takeTriggered() (int, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	pos := f.lastTriggered
	f.lastTriggered = -1
	return pos, pos >= 0 && !f.neverSettles[pos]
}

// fakeDetector settles immediately on the file belonging to the last
// triggered entry, named after its position.
type fakeDetector struct {
	fs      afero.Fs
	catalog *fakeCatalog
	watches int
	err     error
}

func (d *fakeDetector) Watch(ctx context.Context, dir string) (settle.Pending, error) {
	d.watches++
	if d.err != nil {
		return nil, d.err
	}
	return &fakePending{d: d, dir: dir}, nil
}

type fakePending struct {
	d   *fakeDetector
	dir string
}

func (p *fakePending) Await(ctx context.Context, maxWait time.Duration) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	pos, ok := p.d.catalog.takeTriggered()
	if !ok {
		return "", errs.NewDownloadTimeout(p.dir, maxWait)
	}
	name := fmt.Sprintf("%03d.pdf", pos)
	if err := afero.WriteFile(p.d.fs, p.dir+"/"+name, []byte("document"), 0644); err != nil {
		return "", err
	}
	return name, nil
}

func (p *fakePending) Close() error { return nil }

// recordingObserver keeps every notification.
type recordingObserver struct {
	loaded    []int
	started   []int
	cursors   []int
	completed []DownloadedFile
	skipped   []SkippedEntry
	expanded  []int
	finished  int
	finalErr  error

	onCompleted func(DownloadedFile)
}

func (o *recordingObserver) SnapshotLoaded(snapshotSize int, state *RunState) {
	o.loaded = append(o.loaded, snapshotSize)
}

func (o *recordingObserver) EntryStarted(position int, title string, state *RunState) {
	o.started = append(o.started, position)
	o.cursors = append(o.cursors, state.Cursor)
}

func (o *recordingObserver) EntryCompleted(file DownloadedFile, state *RunState) {
	o.completed = append(o.completed, file)
	if o.onCompleted != nil {
		o.onCompleted(file)
	}
}

func (o *recordingObserver) EntrySkipped(entry SkippedEntry, state *RunState) {
	o.skipped = append(o.skipped, entry)
}

func (o *recordingObserver) Expanded(snapshotSize int, moreAvailable bool, state *RunState) {
	o.expanded = append(o.expanded, snapshotSize)
}

func (o *recordingObserver) Finished(state *RunState, err error) {
	o.finished++
	o.finalErr = err
}

// countingCheckpointer counts saves and keeps the last cursor.
type countingCheckpointer struct {
	saves      int
	lastCursor int
}

func (c *countingCheckpointer) Save(state *RunState) error {
	c.saves++
	c.lastCursor = state.Cursor
	return nil
}
