// Package checkpoint persists the traversal state so that an interrupted run
// can resume where it stopped.
//
// One checkpoint exists per catalog URL. Its file name is a name-based UUID
// of the URL, stored in platform-specific data directories:
//   - Linux: ~/.local/share/docharvest/checkpoints/
//   - macOS: ~/Library/Application Support/docharvest/checkpoints/
//   - Windows: %APPDATA%/docharvest/checkpoints/
//
// Files are written atomically so a crash mid-save leaves the previous
// checkpoint intact.
package checkpoint
