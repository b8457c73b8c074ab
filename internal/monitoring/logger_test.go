package monitoring

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func captureLogs(t *testing.T) *[]string {
	t.Helper()
	original := Logf
	t.Cleanup(func() { Logf = original })

	var lines []string
	SetLogger(func(format string, v ...interface{}) {
		lines = append(lines, fmt.Sprintf(format, v...))
	})
	return &lines
}

func TestSetLogger(t *testing.T) {
	lines := captureLogs(t)

	Logf("merged %d dives", 3)
	assert.Equal(t, []string{"merged 3 dives"}, *lines)

	// nil installs a no-op and must not panic
	SetLogger(nil)
	Logf("dropped")
	assert.Len(t, *lines, 1)
}

func TestDebugf_GatedByVerbose(t *testing.T) {
	lines := captureLogs(t)
	defer SetVerbose(false)

	SetVerbose(false)
	Debugf("ignored param %q", "GC_x")
	assert.Empty(t, *lines)

	SetVerbose(true)
	assert.True(t, Verbose())
	Debugf("ignored param %q", "GC_x")
	assert.Equal(t, []string{`[debug] ignored param "GC_x"`}, *lines)
}

func TestLogf_Default(t *testing.T) {
	if Logf == nil {
		t.Fatal("Logf should not be nil by default")
	}
	assert.NotPanics(t, func() { Logf("test message: %s", "value") })
}
