package applog

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWritesLeveledOutput(t *testing.T) {
	require.NoError(t, SetLevel("debug"))
	defer SetLevel("info")

	var buf bytes.Buffer
	logger := New("test", &buf)
	logger.Infof("hello")
	assert.Contains(t, buf.String(), "hello")
	assert.Contains(t, buf.String(), "test")
	assert.Contains(t, buf.String(), "[INFO]")
}

func TestSetLevelRejectsUnknownLevel(t *testing.T) {
	err := SetLevel("not-a-level")
	assert.Error(t, err)
}

func TestSetLevelFiltersBelowThreshold(t *testing.T) {
	require.NoError(t, SetLevel("warn"))
	defer SetLevel("info")

	var buf bytes.Buffer
	logger := New("test", &buf)
	logger.Infof("should be dropped")
	logger.Warnf("should appear")

	assert.NotContains(t, buf.String(), "should be dropped")
	assert.Contains(t, buf.String(), "should appear")
}

func TestWireEventLogsAtDebugLevel(t *testing.T) {
	require.NoError(t, SetLevel("debug"))
	defer SetLevel("info")

	var buf bytes.Buffer
	logger := New("test", &buf)
	WireEvent(logger, "send", "127.0.0.1:1111", "127.0.0.1:2222", "IAMN\r\n")
	assert.Contains(t, buf.String(), "direction=send")
	assert.Contains(t, buf.String(), "src=127.0.0.1:1111")
}
