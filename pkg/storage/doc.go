// Package storage manages the download directory.
//
// The directory is the only resource shared between whatever produces a
// download and the settle detector watching for it. The Manager prepares it
// at the start of a run, renames settled files to their composed names
// without ever overwriting, and offers an atomic temp-then-rename Save for
// producers that stream documents themselves.
//
//	m := storage.NewManager(afero.NewOsFs(), "./downloads")
//	if err := m.Prepare(true); err != nil {
//	    return err
//	}
//	if err := m.Rename("9f3a.pdf", "Alpha_Corp_9f3a.pdf"); err != nil {
//	    // rename error; the file stays under its detected name
//	}
package storage
