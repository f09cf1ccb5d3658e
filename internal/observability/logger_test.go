// internal/observability/logger_test.go
package observability

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"github.com/skryptik/sift-cli/internal/config"
)

// testSink is an in-memory WriteSyncer so tests never touch real stdout.
type testSink struct {
	bytes.Buffer
}

func (s *testSink) Sync() error { return nil }

func TestInitializeRespectsLevel(t *testing.T) {
	ResetForTest()
	sink := &testSink{}

	Initialize(config.LoggerConfig{Level: "warn", Format: "json", ServiceName: "sift-test"}, sink)
	logger := GetLogger()

	logger.Info("should be suppressed")
	logger.Warn("should be visible")
	require.NoError(t, logger.Sync())

	out := sink.String()
	assert.NotContains(t, out, "should be suppressed")
	assert.Contains(t, out, "should be visible")
}

func TestInitializeJSONFormat(t *testing.T) {
	ResetForTest()
	sink := &testSink{}

	Initialize(config.LoggerConfig{Level: "info", Format: "json", ServiceName: "sift-test"}, sink)
	GetLogger().Info("structured entry")
	require.NoError(t, GetLogger().Sync())

	line := strings.TrimSpace(sink.String())
	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(line), &entry), "json format should emit one JSON object per line")
	assert.Equal(t, "structured entry", entry["msg"])
	assert.Equal(t, "sift-test", entry["logger"])
}

func TestInitializeIsIdempotent(t *testing.T) {
	ResetForTest()
	first := &testSink{}
	second := &testSink{}

	Initialize(config.LoggerConfig{Level: "info", Format: "json", ServiceName: "one"}, first)
	Initialize(config.LoggerConfig{Level: "debug", Format: "json", ServiceName: "two"}, second)

	GetLogger().Info("hello")
	require.NoError(t, GetLogger().Sync())

	assert.Contains(t, first.String(), "hello", "first initialization wins")
	assert.Empty(t, second.String(), "second initialization must be a no-op")
}

func TestGetLoggerBeforeInitializeFallsBack(t *testing.T) {
	ResetForTest()
	logger := GetLogger()
	require.NotNil(t, logger)
	// The fallback must be usable without panicking.
	logger.Debug("fallback smoke test")
}

func TestInvalidLevelDefaultsToInfo(t *testing.T) {
	ResetForTest()
	sink := &testSink{}

	Initialize(config.LoggerConfig{Level: "shouting", Format: "json", ServiceName: "sift-test"}, sink)
	GetLogger().Debug("debug hidden")
	GetLogger().Info("info shown")
	require.NoError(t, GetLogger().Sync())

	out := sink.String()
	assert.NotContains(t, out, "debug hidden")
	assert.Contains(t, out, "info shown")
}

var _ zapcore.WriteSyncer = (*testSink)(nil)
