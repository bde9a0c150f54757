package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "sequential", cfg.Scheduler.Executor)
	assert.Equal(t, time.Second/60, cfg.App.TickRate)
}

func TestLoad(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		content string
	}{
		{"toml", "ecs.toml", `
[app]
tick_rate = "20ms"
sub_worlds = ["render"]

[scheduler]
executor = "concurrent"
max_parallel = 4

[logging]
level = "debug"
`},
		{"yaml", "ecs.yaml", `
app:
  tick_rate: 20ms
  sub_worlds: [render]
scheduler:
  executor: concurrent
  max_parallel: 4
logging:
  level: debug
`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load(writeFile(t, tt.file, tt.content))
			require.NoError(t, err)

			assert.Equal(t, 20*time.Millisecond, cfg.App.TickRate)
			assert.Equal(t, []string{"render"}, cfg.App.SubWorlds)
			assert.Equal(t, "concurrent", cfg.Scheduler.Executor)
			assert.Equal(t, 4, cfg.Scheduler.MaxParallel)
			assert.Equal(t, "debug", cfg.Logging.Level)

			// Unset keys keep their defaults.
			assert.Equal(t, "console", cfg.Logging.Format)
			assert.Equal(t, Default().App.EntityCapacity, cfg.App.EntityCapacity)
			assert.Equal(t, Default().Stress, cfg.Stress)
		})
	}
}

func TestLoadErrors(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
		assert.ErrorIs(t, err, os.ErrNotExist)
	})

	t.Run("unsupported extension", func(t *testing.T) {
		_, err := Load(writeFile(t, "ecs.ini", "tick_rate=1"))
		assert.ErrorContains(t, err, "unsupported format")
	})

	t.Run("malformed toml", func(t *testing.T) {
		_, err := Load(writeFile(t, "ecs.toml", "[app\n"))
		assert.ErrorContains(t, err, "parse config")
	})

	t.Run("invalid values", func(t *testing.T) {
		_, err := Load(writeFile(t, "ecs.yml", "scheduler:\n  executor: fibers\n"))
		assert.ErrorContains(t, err, `unknown executor "fibers"`)
	})
}

func TestValidateReportsEveryProblem(t *testing.T) {
	cfg := Default()
	cfg.App.TickRate = 0
	cfg.App.SubWorlds = []string{"render", "render", "main"}
	cfg.Scheduler.Executor = "threads"
	cfg.Logging.Format = "xml"
	cfg.Stress.Profile = "block"

	err := cfg.Validate()
	require.Error(t, err)
	assert.Len(t, multierr.Errors(err), 6)
}
