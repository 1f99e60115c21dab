package logger

import (
	"context"
	"fmt"
	"runtime"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Outcome of a single catalog entry
const (
	OutcomeCompleted = "completed"
	OutcomeSkipped   = "skipped"
	OutcomeRenamed   = "rename_failed"
)

// LoggerWithCaller adds caller information to the logger
func LoggerWithCaller(skip int) Logger {
	_, file, line, ok := runtime.Caller(skip + 1)
	if !ok {
		return GetLogger()
	}

	parts := strings.Split(file, "/")
	filename := parts[len(parts)-1]

	return GetLogger().WithField("caller", fmt.Sprintf("%s:%d", filename, line))
}

// LogEntryOutcome records what happened to the entry at position
func LogEntryOutcome(log Logger, position int, title, outcome, file string, err error) {
	fields := map[string]interface{}{
		"position": position,
		"title":    title,
		"outcome":  outcome,
	}
	if file != "" {
		fields["file"] = file
	}

	l := log.WithFields(fields)
	switch {
	case outcome == OutcomeCompleted:
		l.Info("Entry completed")
	case err != nil:
		l.WithError(err).Warn(fmt.Sprintf("Entry %s", outcome))
	default:
		l.Warn(fmt.Sprintf("Entry %s", outcome))
	}
}

// LogExpansion records an expansion attempt of the catalog
func LogExpansion(log Logger, processed, size int, moreAvailable bool, err error) {
	fields := map[string]interface{}{
		"processed":      processed,
		"snapshot_size":  size,
		"more_available": moreAvailable,
	}
	if err != nil {
		log.WithFields(fields).WithError(err).Warn("Expansion failed, continuing with current snapshot")
		return
	}
	log.InfoWithFields("Catalog expanded", fields)
}

// LogRequest logs HTTP request information
func LogRequest(log Logger, method, url string, statusCode int, duration time.Duration) {
	fields := map[string]interface{}{
		"method":      method,
		"url":         url,
		"status_code": statusCode,
		"duration":    duration,
	}

	switch {
	case statusCode >= 500:
		log.ErrorWithFields("HTTP request server error", fields)
	case statusCode >= 400:
		log.WarnWithFields("HTTP request client error", fields)
	default:
		log.DebugWithFields("HTTP request completed", fields)
	}
}

// LogRateLimit logs rate limiting events
func LogRateLimit(log Logger, endpoint string, retryAfter time.Duration) {
	log.WithFields(map[string]interface{}{
		"endpoint":    endpoint,
		"retry_after": retryAfter,
		"action":      "rate_limited",
	}).Warn("Rate limit reached, backing off")
}

// NopLogger discards everything
type NopLogger struct{}

// NewNopLogger returns a Logger that discards everything
func NewNopLogger() Logger {
	return NopLogger{}
}

func (NopLogger) Debug(string)                                    {}
func (NopLogger) Info(string)                                     {}
func (NopLogger) Warn(string)                                     {}
func (NopLogger) Error(string)                                    {}
func (NopLogger) Fatal(string)                                    {}
func (n NopLogger) WithField(string, interface{}) Logger          { return n }
func (n NopLogger) WithFields(map[string]interface{}) Logger      { return n }
func (n NopLogger) WithError(error) Logger                        { return n }
func (n NopLogger) WithContext(context.Context) Logger                 { return n }
func (NopLogger) DebugWithFields(string, map[string]interface{}) {}
func (NopLogger) InfoWithFields(string, map[string]interface{})  {}
func (NopLogger) WarnWithFields(string, map[string]interface{})  {}
func (NopLogger) ErrorWithFields(string, map[string]interface{}) {}
func (NopLogger) FatalWithFields(string, map[string]interface{}) {}

func (NopLogger) GetZerolog() *zerolog.Logger {
	l := zerolog.Nop()
	return &l
}
