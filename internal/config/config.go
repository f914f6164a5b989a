package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	ferrors "git.home.luguber.info/inful/buildtrigger/internal/foundation/errors"
)

// Environment variables that override file values after ${VAR} expansion.
const (
	EnvSourceURL    = "BUILDTRIGGER_SOURCE_URL"
	EnvWorkspace    = "BUILDTRIGGER_WORKSPACE"
	EnvArtifactDir  = "BUILDTRIGGER_ARTIFACT_DIR"
	EnvListenAddr   = "BUILDTRIGGER_ADDR"
	EnvStageTimeout = "BUILDTRIGGER_STAGE_TIMEOUT"
)

// Load loads configuration from the specified file.
func Load(configPath string) (*Config, error) {
	loadEnvFiles()

	data, err := os.ReadFile(configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ferrors.ConfigError("configuration file not found").
				WithContext("path", configPath).
				Build()
		}
		return nil, ferrors.WrapError(err, ferrors.CategoryConfig, "failed to read config file").
			Fatal().
			WithContext("path", configPath).
			Build()
	}

	return Parse(data)
}

// Parse decodes YAML configuration content, expanding ${VAR} references,
// applying environment overrides and defaults, and validating the result.
func Parse(data []byte) (*Config, error) {
	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, ferrors.WrapError(err, ferrors.CategoryConfig, "failed to unmarshal config").Fatal().Build()
	}

	applyEnvOverrides(&cfg)
	applyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv(EnvSourceURL); v != "" {
		cfg.Source.URL = v
	}
	if v := os.Getenv(EnvWorkspace); v != "" {
		cfg.Workspace.Path = v
	}
	if v := os.Getenv(EnvArtifactDir); v != "" {
		cfg.Artifacts.Dir = v
	}
	if v := os.Getenv(EnvListenAddr); v != "" {
		cfg.Server.Address = v
	}
	if v := os.Getenv(EnvStageTimeout); v != "" {
		cfg.Pipeline.StageTimeout = v
	}
}

// Init creates a new configuration file with example content.
func Init(configPath string, force bool) error {
	if _, err := os.Stat(configPath); err == nil && !force {
		return ferrors.ValidationError("configuration file already exists (use --force to overwrite)").
			WithContext("path", configPath).
			Build()
	}

	example := Example()
	data, err := yaml.Marshal(&example)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0o600); err != nil {
		return ferrors.WrapError(err, ferrors.CategoryFileSystem, "failed to write config file").
			WithContext("path", configPath).
			Build()
	}
	return nil
}

// Example returns a fully populated example configuration.
func Example() Config {
	cfg := Config{
		Source: SourceConfig{
			URL:    "https://github.com/example/project.git",
			Branch: "main",
			Auth:   &AuthConfig{Type: AuthTypeToken, Token: "${GIT_TOKEN}"},
		},
		Build: BuildConfig{
			Command: []string{"make", "build"},
			Env:     map[string]string{"CGO_ENABLED": "0"},
		},
		Schedule: ScheduleConfig{Interval: "1h"},
		Metrics:  MetricsConfig{Enabled: true},
	}
	applyDefaults(&cfg)
	return cfg
}
