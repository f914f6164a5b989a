package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ferrors "git.home.luguber.info/inful/buildtrigger/internal/foundation/errors"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_AppliesDefaults(t *testing.T) {
	path := writeConfig(t, "source:\n  url: https://example.com/repo.git\n")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, DefaultWorkspacePath, cfg.Workspace.Path)
	assert.Equal(t, []string{"make", "build"}, cfg.Build.Command)
	assert.Equal(t, "build", cfg.Build.OutputDir)
	assert.Equal(t, DefaultArtifactName, cfg.Artifacts.Name)
	assert.Equal(t, ConcurrencyReject, cfg.Pipeline.Concurrency)
	assert.Equal(t, RunLogMemory, cfg.RunLog.Backend)
	assert.Equal(t, 30*time.Minute, cfg.StageTimeoutDuration())
	assert.Equal(t, time.Duration(0), cfg.ScheduleIntervalDuration())
	assert.Equal(t, ":4444", cfg.Server.Address)
	assert.Equal(t, LogLevelInfo, cfg.Logging.Level)
}

func TestLoad_ExpandsEnvironment(t *testing.T) {
	t.Setenv("TEST_SRC_URL", "https://example.com/from-env.git")
	t.Setenv("TEST_TOKEN", "s3cret")
	path := writeConfig(t, `
source:
  url: ${TEST_SRC_URL}
  auth:
    type: TOKEN
    token: ${TEST_TOKEN}
pipeline:
  concurrency: " Queue "
  stage_timeout: 90s
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "https://example.com/from-env.git", cfg.Source.URL)
	require.NotNil(t, cfg.Source.Auth)
	assert.Equal(t, AuthTypeToken, cfg.Source.Auth.Type)
	assert.Equal(t, "s3cret", cfg.Source.Auth.Token)
	assert.Equal(t, ConcurrencyQueue, cfg.Pipeline.Concurrency)
	assert.Equal(t, 90*time.Second, cfg.StageTimeoutDuration())
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv(EnvSourceURL, "https://example.com/override.git")
	t.Setenv(EnvListenAddr, "127.0.0.1:9000")
	path := writeConfig(t, "source:\n  url: https://example.com/file.git\n")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/override.git", cfg.Source.URL)
	assert.Equal(t, "127.0.0.1:9000", cfg.Server.Address)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.True(t, ferrors.HasCategory(err, ferrors.CategoryConfig))
}

func TestParse_ValidationFailures(t *testing.T) {
	cases := map[string]string{
		"missing url":            "workspace:\n  path: /tmp/ws\n",
		"bad timeout":            "source:\n  url: x\npipeline:\n  stage_timeout: soon\n",
		"bad concurrency":        "source:\n  url: x\npipeline:\n  concurrency: parallel\n",
		"absolute output dir":    "source:\n  url: x\nbuild:\n  output_dir: /abs\n",
		"artifacts in workspace": "source:\n  url: x\nworkspace:\n  path: /tmp/ws\nartifacts:\n  dir: /tmp/ws/out\n",
		"bad backend":            "source:\n  url: x\nrunlog:\n  backend: redis\n",
		"bad interval":           "source:\n  url: x\nschedule:\n  interval: -1m\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(body))
			require.Error(t, err)
			assert.True(t, ferrors.HasCategory(err, ferrors.CategoryConfig), "got %v", err)
		})
	}
}

func TestInit_WritesLoadableExample(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, Init(path, false))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "https://github.com/example/project.git", cfg.Source.URL)
	assert.Equal(t, time.Hour, cfg.ScheduleIntervalDuration())
	assert.True(t, cfg.Metrics.Enabled)

	err = Init(path, false)
	require.Error(t, err)
	assert.True(t, ferrors.HasCategory(err, ferrors.CategoryValidation))
	require.NoError(t, Init(path, true))
}
