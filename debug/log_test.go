package debug

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogFollowsEnableWriter(t *testing.T) {
	var buf bytes.Buffer
	EnableWriter(&buf, "debug")
	defer Disable()

	Log("graph", "connect %s -> %s", "a", "b")
	assert.Contains(t, buf.String(), "connect a -> b")
	assert.Contains(t, buf.String(), "graph")
}

func TestLoggerHandedOutBeforeDisable(t *testing.T) {
	var buf bytes.Buffer
	EnableWriter(&buf, "debug")
	l := Logger("remote")

	Disable()
	l.Info("dropped")
	assert.Empty(t, buf.String())
	assert.False(t, Enabled())
}

func TestLogEvery(t *testing.T) {
	var buf bytes.Buffer
	EnableWriter(&buf, "debug")
	defer Disable()

	for i := 0; i < 10; i++ {
		LogEvery(5, "tick", "advance")
	}
	assert.Equal(t, 2, strings.Count(buf.String(), "advance"))
}

func TestEnableFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "debug.log")
	require.NoError(t, Enable(path, "info"))
	Logger("test").Info("hello")
	Disable()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "debug logging started")
	assert.Contains(t, string(data), "hello")
}
