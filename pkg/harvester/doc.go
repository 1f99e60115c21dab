// Package harvester wires a complete run together.
//
// A Harvester turns the configuration into the pieces the traversal engine
// needs and drives one run:
//
//   - the catalog surface (a Chrome tab or the JSON catalog client)
//   - the settle detector watching the download directory
//   - the storage manager that owns the directory and renames files
//   - the checkpoint manager that makes interrupted runs resumable
//
// Once the engine returns, the harvester writes the run manifest next to the
// documents and removes the checkpoint of a completed run.
//
// Usage:
//
//	cfg, _ := config.Load("", nil)
//	h := harvester.New(cfg, harvester.WithObserver(ui.NewProgressDisplay(cfg.Catalog.URL, false)))
//	state, err := h.Run(ctx, harvester.RunOptions{Resume: true})
//
// A run refuses to start over an existing checkpoint unless RunOptions asks
// to resume it or to discard it.
package harvester
