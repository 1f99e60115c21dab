// Package logger provides structured logging for the harvester.
//
// It wraps zerolog behind a small Logger interface so that components take a
// Logger in their constructors and tests can hand them a TestLogger instead.
//
//	logger.Initialize(&cfg.Logging)
//	log := logger.GetLogger().WithField("component", "traversal")
//	log.InfoWithFields("Entry completed", map[string]interface{}{
//	    "position": 12,
//	    "file":     "Alpha_Corp_001.pdf",
//	})
//
// Console output is colored and goes to stderr so that it does not interleave
// with the progress line. When logging.file is set, JSON lines are appended to
// that file as well.
package logger
