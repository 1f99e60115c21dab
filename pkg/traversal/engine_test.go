package traversal

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docharvest/pkg/config"
	errs "docharvest/pkg/errors"
	"docharvest/pkg/logger"
	"docharvest/pkg/storage"
)

type harness struct {
	fs       afero.Fs
	catalog  *fakeCatalog
	detector *fakeDetector
	store    *storage.Manager
	observer *recordingObserver
	log      *logger.TestLogger
	cfg      Config
}

func newHarness(t *testing.T, total, pageSize int) *harness {
	t.Helper()
	fs := afero.NewMemMapFs()
	store := storage.NewManager(fs, downloadDir)
	require.NoError(t, store.Prepare(true))

	cat := newFakeCatalog(total, pageSize)
	return &harness{
		fs:       fs,
		catalog:  cat,
		detector: &fakeDetector{fs: fs, catalog: cat},
		store:    store,
		observer: &recordingObserver{},
		log:      logger.NewTestLogger(),
		cfg:      Config{Timeout: 180 * time.Second, ExpansionCadence: 20},
	}
}

func (h *harness) engine(opts ...Option) *Engine {
	opts = append([]Option{
		WithLogger(h.log),
		WithObserver(h.observer),
		WithClock(clockwork.NewFakeClock()),
	}, opts...)
	return New(h.catalog, h.detector, h.store, h.cfg, opts...)
}

func (h *harness) run(t *testing.T, ctx context.Context, state *RunState, opts ...Option) (*RunState, error) {
	t.Helper()
	return h.engine(opts...).Run(ctx, state)
}

func TestRun_ProcessesEveryEntry(t *testing.T) {
	h := newHarness(t, 5, 20)
	h.catalog.titles[0] = "Alpha Corp"

	state, err := h.run(t, context.Background(), nil)

	require.NoError(t, err)
	assert.Equal(t, DoneExhausted, state.DoneReason)
	assert.Equal(t, 5, state.Cursor)
	assert.Equal(t, 5, state.Processed)
	assert.Len(t, state.Completed, 5)
	assert.Empty(t, state.Skipped)
	assert.NotEmpty(t, state.RunID)
	assert.Equal(t, []int{0, 1, 2, 3, 4}, h.catalog.triggers)
	assert.Equal(t, []int{5}, h.observer.loaded)

	first := state.Completed[0]
	assert.Equal(t, "000.pdf", first.Detected)
	assert.Equal(t, ".pdf", first.Extension)
	assert.Equal(t, "Alpha_Corp_000.pdf", first.Final)
	assert.True(t, h.store.Exists("Alpha_Corp_000.pdf"))
	assert.False(t, h.store.Exists("000.pdf"))

	assert.Equal(t, 1, h.observer.finished)
	assert.Equal(t, 0, h.catalog.expandCalls)
}

func TestRun_TriggerFailureIsSkipped(t *testing.T) {
	h := newHarness(t, 10, 20)
	h.catalog.failTrigger[5] = true

	state, err := h.run(t, context.Background(), nil)

	require.NoError(t, err)
	assert.Equal(t, 10, state.Cursor)
	assert.Equal(t, 9, state.Processed)
	require.Len(t, state.Skipped, 1)
	assert.Equal(t, 5, state.Skipped[0].Position)
	assert.Equal(t, errs.ErrorTypeTrigger, state.Skipped[0].Reason)
	assert.Contains(t, state.Skipped[0].Message, "card button not found")
	assert.Equal(t, []int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}, h.catalog.triggers)

	warns := h.log.GetMessagesByLevel("warn")
	require.NotEmpty(t, warns)
	assert.Equal(t, 5, warns[0].Fields["position"])
}

func TestRun_TimeoutIsSkippedWithoutRetry(t *testing.T) {
	h := newHarness(t, 4, 20)
	h.catalog.neverSettles[2] = true

	state, err := h.run(t, context.Background(), nil)

	require.NoError(t, err)
	require.Len(t, state.Skipped, 1)
	assert.Equal(t, 2, state.Skipped[0].Position)
	assert.Equal(t, errs.ErrorTypeDownloadTimeout, state.Skipped[0].Reason)
	assert.Equal(t, []int{0, 1, 2, 3}, h.catalog.triggers)
	assert.Equal(t, 3, state.Processed)
}

func TestRun_DetectorFailureIsSkipped(t *testing.T) {
	h := newHarness(t, 2, 20)
	h.detector.err = errors.New("too many open files")

	state, err := h.run(t, context.Background(), nil)

	require.NoError(t, err)
	assert.Len(t, state.Skipped, 2)
	assert.Equal(t, ErrorTypeDetector, state.Skipped[0].Reason)
	assert.Empty(t, h.catalog.triggers, "nothing is triggered without a watch")
}

func TestRun_ExpansionCadence(t *testing.T) {
	h := newHarness(t, 45, 20)

	state, err := h.run(t, context.Background(), nil)

	require.NoError(t, err)
	assert.Equal(t, 45, state.Processed)
	assert.Equal(t, 2, h.catalog.expandCalls)
	assert.Equal(t, []int{20, 40}, h.catalog.expandAtCursor)
	assert.Equal(t, 2, state.Expansions)
	assert.Equal(t, []int{40, 45}, h.observer.expanded)
	assert.Equal(t, DoneExhausted, state.DoneReason)
}

func TestRun_SkippedEntriesDoNotCountTowardCadence(t *testing.T) {
	h := newHarness(t, 30, 25)
	h.catalog.failTrigger[3] = true

	state, err := h.run(t, context.Background(), nil)

	require.NoError(t, err)
	// the 20th advanced entry is the 21st attempted
	assert.Equal(t, []int{21}, h.catalog.expandAtCursor)
	assert.Equal(t, 29, state.Processed)
	assert.Equal(t, 30, state.Cursor)
}

func TestRun_ExpansionExhaustedStopsEarly(t *testing.T) {
	h := newHarness(t, 30, 20)
	h.catalog.noMore = true

	state, err := h.run(t, context.Background(), nil)

	require.NoError(t, err)
	assert.Equal(t, DoneExpansionExhausted, state.DoneReason)
	assert.Equal(t, 20, state.Cursor)
	assert.Len(t, h.catalog.triggers, 20)
}

func TestRun_ExpandOnExhaustion(t *testing.T) {
	h := newHarness(t, 12, 5)
	h.cfg.ExpandOnExhaustion = true

	state, err := h.run(t, context.Background(), nil)

	require.NoError(t, err)
	assert.Equal(t, 12, state.Cursor)
	assert.Equal(t, DoneExpansionExhausted, state.DoneReason)
	// 5 -> 10 -> 12 -> nothing more
	assert.Equal(t, 3, h.catalog.expandCalls)
}

func TestRun_ExpandErrorContinuesOnCurrentSnapshot(t *testing.T) {
	h := newHarness(t, 30, 25)
	h.catalog.expandErrs = []error{errors.New("button detached")}

	state, err := h.run(t, context.Background(), nil)

	require.NoError(t, err)
	assert.Equal(t, 25, state.Cursor)
	assert.Equal(t, DoneExhausted, state.DoneReason)
	assert.Equal(t, 0, state.Expansions)
	assert.True(t, h.log.HasMessage("Expansion failed"))
}

func TestRun_CatalogUnavailableAtStart(t *testing.T) {
	h := newHarness(t, 5, 20)
	h.catalog.failListOnCall = 1

	state, err := h.run(t, context.Background(), nil)

	require.Error(t, err)
	assert.True(t, errs.IsFatal(err))
	require.NotNil(t, state)
	assert.Equal(t, DoneAborted, state.DoneReason)
	assert.Empty(t, h.catalog.triggers)
	assert.Equal(t, err, h.observer.finalErr)
}

func TestRun_CatalogUnavailableOnRefresh(t *testing.T) {
	h := newHarness(t, 30, 20)
	h.catalog.failListOnCall = 2

	state, err := h.run(t, context.Background(), nil)

	require.Error(t, err)
	assert.True(t, errs.IsType(err, errs.ErrorTypeCatalogUnavailable))
	assert.Equal(t, DoneAborted, state.DoneReason)
	assert.Equal(t, 20, state.Cursor)
	assert.Len(t, state.Completed, 20, "partial progress is kept")
}

func TestRun_RenameFailureStillAdvances(t *testing.T) {
	h := newHarness(t, 2, 20)
	h.catalog.titles[1] = "Beta"
	require.NoError(t, afero.WriteFile(h.fs, downloadDir+"/Beta_001.pdf", []byte("older"), 0644))

	state, err := h.run(t, context.Background(), nil)

	require.NoError(t, err)
	assert.Equal(t, 2, state.Processed)
	failed := state.Completed[1]
	assert.True(t, failed.RenameFailed)
	assert.Equal(t, "001.pdf", failed.Final)
	assert.NotEmpty(t, failed.RenameError)
	assert.True(t, h.store.Exists("001.pdf"))
	assert.Equal(t, 1, state.Renamed())
}

func TestRun_DuplicateTitlesStayDistinct(t *testing.T) {
	h := newHarness(t, 3, 20)
	h.catalog.titles[1] = "Alpha Corp"
	h.catalog.titles[2] = "Alpha Corp"

	state, err := h.run(t, context.Background(), nil)

	require.NoError(t, err)
	assert.Equal(t, "Alpha_Corp_001.pdf", state.Completed[1].Final)
	assert.Equal(t, "Alpha_Corp_002.pdf", state.Completed[2].Final)
}

func TestRun_MissingTitleDegradesName(t *testing.T) {
	h := newHarness(t, 2, 20)
	h.catalog.titles[1] = ""

	state, err := h.run(t, context.Background(), nil)

	require.NoError(t, err)
	assert.Equal(t, "_001.pdf", state.Completed[1].Final)
	assert.Empty(t, state.Completed[1].Title)
}

func TestRun_CursorIsMonotonic(t *testing.T) {
	h := newHarness(t, 50, 30)
	for _, p := range []int{0, 7, 8, 19, 20, 33} {
		h.catalog.failTrigger[p] = true
	}
	h.catalog.neverSettles[11] = true

	state, err := h.run(t, context.Background(), nil)
	require.NoError(t, err)

	for i, c := range h.observer.cursors {
		assert.Equal(t, i, c)
		assert.Equal(t, i, h.observer.started[i], "entries are visited in catalog order")
	}
	assert.Equal(t, state.Cursor, len(state.Completed)+len(state.Skipped))
}

func TestRun_Resume(t *testing.T) {
	h := newHarness(t, 30, 20)
	saved := NewRunState()
	saved.Cursor = 25
	saved.Processed = 24
	saved.Expansions = 1

	state, err := h.run(t, context.Background(), saved)

	require.NoError(t, err)
	assert.Equal(t, saved.RunID, state.RunID)
	assert.Equal(t, []int{25, 26, 27, 28, 29}, h.catalog.triggers)
	assert.Equal(t, 30, state.Cursor)
	assert.Equal(t, 29, state.Processed)
	assert.Equal(t, 1, state.Expansions, "catch-up expansions are not counted")
}

func TestRun_ContextCancelled(t *testing.T) {
	h := newHarness(t, 10, 20)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h.observer.onCompleted = func(f DownloadedFile) {
		if f.Position == 2 {
			cancel()
		}
	}

	state, err := h.run(t, ctx, nil)

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, DoneCancelled, state.DoneReason)
	assert.Equal(t, 3, state.Cursor)
	assert.Equal(t, []int{0, 1, 2}, h.catalog.triggers)
}

func TestRun_SavesCheckpointAfterEachEntry(t *testing.T) {
	h := newHarness(t, 3, 20)
	cp := &countingCheckpointer{}

	_, err := h.run(t, context.Background(), nil, WithCheckpointer(cp))

	require.NoError(t, err)
	// one save per entry plus the final one
	assert.Equal(t, 4, cp.saves)
	assert.Equal(t, 3, cp.lastCursor)
}

func TestConfigFrom(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Traversal.ExpansionCadence = 7

	c := ConfigFrom(cfg)
	assert.Equal(t, 180*time.Second, c.Timeout)
	assert.Equal(t, 7, c.ExpansionCadence)
	assert.False(t, c.ExpandOnExhaustion)
}

func TestRun_EmptyCatalog(t *testing.T) {
	h := newHarness(t, 0, 20)
	state, err := h.run(t, context.Background(), nil)

	require.NoError(t, err)
	assert.Equal(t, DoneExhausted, state.DoneReason)
	assert.Equal(t, 0, state.Cursor)
}
