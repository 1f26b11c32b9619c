package main

import (
	"bytes"
	"context"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewCLIApp_Commands(t *testing.T) {
	app := newCLIApp()

	names := make([]string, 0, len(app.Commands))
	for _, cmd := range app.Commands {
		names = append(names, cmd.Name)
	}
	assert.Equal(t, []string{"run", "serve", "export"}, names)

	export := app.Command("export")
	require.NotNil(t, export)
	assert.Contains(t, export.Flags[0].Names(), "out")
}

func TestCLI_MissingConfig(t *testing.T) {
	for _, cmd := range []string{"run", "serve", "export"} {
		t.Run(cmd, func(t *testing.T) {
			app := newCLIApp()
			app.Writer = &bytes.Buffer{}

			missing := filepath.Join(t.TempDir(), "missing.yaml")
			err := app.Run([]string{"ingestor", "--config", missing, cmd})

			require.Error(t, err)
			assert.Contains(t, err.Error(), "read config file")
		})
	}
}

func TestSetupLogger(t *testing.T) {
	tests := []struct {
		level string
		want  slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"error", slog.LevelError},
		{"", slog.LevelInfo},
	}

	for _, tt := range tests {
		logger := setupLogger(tt.level)
		assert.True(t, logger.Enabled(context.Background(), tt.want), tt.level)
		if tt.want > slog.LevelDebug {
			assert.False(t, logger.Enabled(context.Background(), tt.want-1), tt.level)
		}
	}
}

func TestPrintJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, printJSON(&buf, map[string]int{"ingested": 2}))
	assert.JSONEq(t, `{"ingested": 2}`, buf.String())
}
