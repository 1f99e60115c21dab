// Package traversal walks a growing catalog one entry at a time.
//
// For every position the engine starts watching the download directory,
// triggers the download on the catalog surface, waits for the settle
// detector, renames the file to its composed name and advances. Failures of
// a single entry are logged and skipped. Every ExpansionCadence advanced
// entries the surface is asked for more content; when it has none the run
// is done. Only a catalog that cannot produce a snapshot aborts the run.
//
// All progress lives in a RunState that is returned by Run and can be
// passed back in to resume.
package traversal
