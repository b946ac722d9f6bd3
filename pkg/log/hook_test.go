package log

import (
	"bytes"
	"errors"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
)

// =============================================================================
// Test Helpers
// =============================================================================

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("disk full") }

type writers struct {
	main, critical, verbose, console bytes.Buffer
}

func newTestHook(w *writers, withVerbose bool) *hook {
	h := &hook{
		mainWriter:     &w.main,
		criticalWriter: &w.critical,
		consoleWriter:  &w.console,
		formatter:      &logrus.TextFormatter{DisableTimestamp: true},
	}
	if withVerbose {
		h.verboseWriter = &w.verbose
	}
	return h
}

func newEntry(level Level, msg string) *Entry {
	e := logrus.NewEntry(logrus.New())
	e.Level = level
	e.Message = msg
	return e
}

// =============================================================================
// Routing
// =============================================================================

func TestHook_Routing(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name                                   string
		level                                  Level
		withVerbose                            bool
		wantMain, wantCritical, wantVerbose bool
	}{
		{"Info goes to main", InfoLevel, true, true, false, false},
		{"Warn goes to main", WarnLevel, true, true, false, false},
		{"Error goes to main and critical", ErrorLevel, true, true, true, false},
		{"Debug goes to verbose only", DebugLevel, true, false, false, true},
		{"Trace goes to verbose only", TraceLevel, true, false, false, true},
		{"Debug falls back to main without verbose", DebugLevel, false, true, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var w writers
			h := newTestHook(&w, tt.withVerbose)

			assert.NoError(t, h.Fire(newEntry(tt.level, "hello")))

			assert.Equal(t, tt.wantMain, w.main.Len() > 0, "main")
			assert.Equal(t, tt.wantCritical, w.critical.Len() > 0, "critical")
			assert.Equal(t, tt.wantVerbose, w.verbose.Len() > 0, "verbose")
			assert.Contains(t, w.console.String(), "hello", "console receives every level")
		})
	}
}

func TestHook_WriteFailure(t *testing.T) {
	t.Parallel()

	var w writers
	h := newTestHook(&w, false)
	h.mainWriter = failingWriter{}

	err := h.Fire(newEntry(ErrorLevel, "boom"))

	assert.EqualError(t, err, "disk full")
	assert.Contains(t, w.critical.String(), "boom", "other writers still receive the entry")
}

func TestHook_Closed(t *testing.T) {
	t.Parallel()

	var w writers
	h := newTestHook(&w, false)
	assert.NoError(t, h.Close())

	assert.NoError(t, h.Fire(newEntry(InfoLevel, "ignored")))
	assert.Zero(t, w.main.Len())
	assert.ElementsMatch(t, AllLevels, h.Levels())
}
