package logger

import (
	"bytes"
	"errors"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docharvest/pkg/config"
)

func newBufferLogger(t *testing.T, level string) (Logger, *bytes.Buffer) {
	t.Helper()
	var buf bytes.Buffer
	l, err := NewWithWriter(&config.LoggingConfig{Level: level}, &buf)
	require.NoError(t, err)
	return l, &buf
}

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		cfg     *config.LoggingConfig
		wantErr bool
	}{
		{name: "info level", cfg: &config.LoggingConfig{Level: "info"}},
		{name: "debug level", cfg: &config.LoggingConfig{Level: "debug"}},
		{name: "invalid level", cfg: &config.LoggingConfig{Level: "loud"}, wantErr: true},
		{name: "with file", cfg: &config.LoggingConfig{Level: "info", File: filepath.Join(t.TempDir(), "logs", "run.log")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l, err := New(tt.cfg)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, l)
			if tt.cfg.File != "" {
				assert.FileExists(t, tt.cfg.File)
			}
		})
	}
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		level    string
		expected zerolog.Level
		wantErr  bool
	}{
		{"debug", zerolog.DebugLevel, false},
		{"DEBUG", zerolog.DebugLevel, false},
		{"info", zerolog.InfoLevel, false},
		{"", zerolog.InfoLevel, false},
		{"warning", zerolog.WarnLevel, false},
		{"error", zerolog.ErrorLevel, false},
		{"disabled", zerolog.Disabled, false},
		{"verbose", zerolog.InfoLevel, true},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			level, err := parseLogLevel(tt.level)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, tt.expected, level)
		})
	}
}

func TestLevelFiltering(t *testing.T) {
	l, buf := newBufferLogger(t, "warn")

	l.Info("hidden")
	assert.Empty(t, buf.String())

	l.Warn("shown")
	assert.Contains(t, buf.String(), "shown")
	assert.Contains(t, buf.String(), `"app":"docharvest"`)
}

func TestWithFields(t *testing.T) {
	l, buf := newBufferLogger(t, "debug")

	l.WithField("position", 3).WithFields(map[string]interface{}{
		"title": "Alpha Corp",
		"ok":    true,
	}).Info("entry")

	out := buf.String()
	assert.Contains(t, out, `"position":3`)
	assert.Contains(t, out, `"title":"Alpha Corp"`)
	assert.Contains(t, out, `"ok":true`)
}

func TestWithFieldsDoesNotMutateParent(t *testing.T) {
	l, buf := newBufferLogger(t, "info")

	_ = l.WithField("child", "yes")
	l.Info("parent")

	assert.NotContains(t, buf.String(), "child")
}

func TestWithError(t *testing.T) {
	l, buf := newBufferLogger(t, "info")

	l.WithError(errors.New("boom")).Error("failed")
	assert.Contains(t, buf.String(), `"error":"boom"`)

	buf.Reset()
	l.WithError(nil).Info("fine")
	assert.NotContains(t, buf.String(), `"error"`)
}

func TestTestLogger(t *testing.T) {
	tl := NewTestLogger()

	tl.Info("starting")
	child := tl.WithField("position", 1)
	child.WithError(errors.New("no file")).Warn("entry skipped")

	msgs := tl.GetMessages()
	require.Len(t, msgs, 2)
	assert.Equal(t, "warn", msgs[1].Level)
	assert.Equal(t, 1, msgs[1].Fields["position"])
	assert.EqualError(t, msgs[1].Error, "no file")
	assert.True(t, tl.HasMessage("skipped"))
	assert.False(t, tl.HasError())

	tl.Clear()
	assert.Empty(t, tl.GetMessages())
}

func TestLogEntryOutcome(t *testing.T) {
	tl := NewTestLogger()

	LogEntryOutcome(tl, 4, "Alpha Corp", OutcomeCompleted, "Alpha_Corp_a.pdf", nil)
	LogEntryOutcome(tl, 5, "Beta", OutcomeSkipped, "", errors.New("timeout"))

	infos := tl.GetMessagesByLevel("info")
	require.Len(t, infos, 1)
	assert.Equal(t, "Alpha_Corp_a.pdf", infos[0].Fields["file"])

	warns := tl.GetMessagesByLevel("warn")
	require.Len(t, warns, 1)
	assert.Equal(t, "Entry skipped", warns[0].Message)
	assert.Equal(t, 5, warns[0].Fields["position"])
	assert.NotContains(t, warns[0].Fields, "file")
}

func TestLogExpansion(t *testing.T) {
	tl := NewTestLogger()

	LogExpansion(tl, 20, 40, true, nil)
	LogExpansion(tl, 40, 40, false, errors.New("button gone"))

	assert.Len(t, tl.GetMessagesByLevel("info"), 1)
	warns := tl.GetMessagesByLevel("warn")
	require.Len(t, warns, 1)
	assert.Equal(t, 40, warns[0].Fields["processed"])
}

func TestNopLogger(t *testing.T) {
	l := NewNopLogger()
	l.WithField("k", "v").WithError(errors.New("x")).Error("ignored")
	assert.NotNil(t, l.GetZerolog())
}
