package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	"github.com/ledger-core/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	testCases := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"DEBUG", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{" error ", slog.LevelError},
		{"unknown", slog.LevelInfo},
		{"", slog.LevelInfo},
	}

	for _, tc := range testCases {
		assert.Equal(t, tc.want, ParseLevel(tc.in), "input %q", tc.in)
	}
}

func TestNew(t *testing.T) {
	t.Run("WarnSuppressesInfo", func(t *testing.T) {
		var buf bytes.Buffer
		logger := New(&buf, &config.Config{Logging: config.LoggingConfig{Level: "warn"}})

		assert.False(t, logger.Enabled(context.Background(), slog.LevelInfo))
		assert.True(t, logger.Enabled(context.Background(), slog.LevelWarn))
		assert.Empty(t, buf.String(), "the init line is info and must be filtered")
	})

	t.Run("ServiceAttributes", func(t *testing.T) {
		var buf bytes.Buffer
		cfg := &config.Config{
			Application: config.ApplicationConfig{Name: "ledger-api", Env: "test"},
			Logging:     config.LoggingConfig{Level: "info"},
		}
		logger := New(&buf, cfg)
		buf.Reset()

		logger.Info("hello", "k", "v")

		var entry map[string]any
		require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
		assert.Equal(t, "ledger-api", entry["service"])
		assert.Equal(t, "test", entry["env"])
		assert.Equal(t, "v", entry["k"])
		assert.NotContains(t, entry, "source")
	})

	t.Run("DebugAddsSource", func(t *testing.T) {
		var buf bytes.Buffer
		logger := New(&buf, &config.Config{Logging: config.LoggingConfig{Level: "debug"}})
		buf.Reset()

		logger.Debug("trace me")

		line := strings.TrimSpace(buf.String())
		var entry map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &entry))
		assert.Contains(t, entry, "source")
	})
}
