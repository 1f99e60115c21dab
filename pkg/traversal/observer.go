package traversal

// Observer receives progress notifications from the engine. Calls are made
// synchronously from the traversal loop.
type Observer interface {
	// SnapshotLoaded reports the catalog size the run starts from.
	SnapshotLoaded(snapshotSize int, state *RunState)
	EntryStarted(position int, title string, state *RunState)
	EntryCompleted(file DownloadedFile, state *RunState)
	EntrySkipped(entry SkippedEntry, state *RunState)
	Expanded(snapshotSize int, moreAvailable bool, state *RunState)
	Finished(state *RunState, err error)
}

// NopObserver ignores every notification.
type NopObserver struct{}

func (NopObserver) SnapshotLoaded(int, *RunState)            {}
func (NopObserver) EntryStarted(int, string, *RunState)      {}
func (NopObserver) EntryCompleted(DownloadedFile, *RunState) {}
func (NopObserver) EntrySkipped(SkippedEntry, *RunState)     {}
func (NopObserver) Expanded(int, bool, *RunState)            {}
func (NopObserver) Finished(*RunState, error)                {}

// Observers fans notifications out to several observers in order.
type Observers []Observer

func (o Observers) SnapshotLoaded(snapshotSize int, state *RunState) {
	for _, obs := range o {
		obs.SnapshotLoaded(snapshotSize, state)
	}
}

func (o Observers) EntryStarted(position int, title string, state *RunState) {
	for _, obs := range o {
		obs.EntryStarted(position, title, state)
	}
}

func (o Observers) EntryCompleted(file DownloadedFile, state *RunState) {
	for _, obs := range o {
		obs.EntryCompleted(file, state)
	}
}

func (o Observers) EntrySkipped(entry SkippedEntry, state *RunState) {
	for _, obs := range o {
		obs.EntrySkipped(entry, state)
	}
}

func (o Observers) Expanded(snapshotSize int, moreAvailable bool, state *RunState) {
	for _, obs := range o {
		obs.Expanded(snapshotSize, moreAvailable, state)
	}
}

func (o Observers) Finished(state *RunState, err error) {
	for _, obs := range o {
		obs.Finished(state, err)
	}
}
