package config

import (
	"path/filepath"
	"strings"
	"time"

	ferrors "git.home.luguber.info/inful/buildtrigger/internal/foundation/errors"
)

// Validate normalizes enum fields in place and checks the configuration invariants.
func Validate(cfg *Config) error {
	if strings.TrimSpace(cfg.Source.URL) == "" {
		return ferrors.ConfigError("source.url is required").Build()
	}
	if cfg.Source.Depth < 0 {
		return ferrors.ConfigError("source.depth cannot be negative").WithContext("depth", cfg.Source.Depth).Build()
	}
	if cfg.Source.Auth != nil {
		t, err := authTypeNormalizer.normalize(cfg.Source.Auth.Type)
		if err != nil {
			return ferrors.WrapError(err, ferrors.CategoryConfig, "invalid source.auth.type").Fatal().Build()
		}
		cfg.Source.Auth.Type = t
	}

	if filepath.IsAbs(cfg.Build.OutputDir) || strings.HasPrefix(filepath.Clean(cfg.Build.OutputDir), "..") {
		return ferrors.ConfigError("build.output_dir must be relative to the workspace").
			WithContext("output_dir", cfg.Build.OutputDir).
			Build()
	}
	if strings.ContainsAny(cfg.Artifacts.Name, `/\`) {
		return ferrors.ConfigError("artifacts.name must be a plain file name").
			WithContext("name", cfg.Artifacts.Name).
			Build()
	}

	// The workspace is wiped on every run; refuse layouts where that would
	// also destroy the artifact directory.
	ws, _ := filepath.Abs(cfg.Workspace.Path)
	art, _ := filepath.Abs(cfg.Artifacts.Dir)
	if ws == art || strings.HasPrefix(art, ws+string(filepath.Separator)) {
		return ferrors.ConfigError("artifacts.dir must not live inside workspace.path").
			WithContext("workspace", ws).
			WithContext("artifacts", art).
			Build()
	}

	if d, err := time.ParseDuration(cfg.Pipeline.StageTimeout); err != nil || d <= 0 {
		return ferrors.ConfigError("pipeline.stage_timeout must be a positive duration").
			WithContext("stage_timeout", cfg.Pipeline.StageTimeout).
			Build()
	}
	if cfg.Schedule.Interval != "" {
		if d, err := time.ParseDuration(cfg.Schedule.Interval); err != nil || d <= 0 {
			return ferrors.ConfigError("schedule.interval must be a positive duration").
				WithContext("interval", cfg.Schedule.Interval).
				Build()
		}
	}

	var err error
	if cfg.Pipeline.Concurrency, err = concurrencyNormalizer.normalize(cfg.Pipeline.Concurrency); err != nil {
		return ferrors.WrapError(err, ferrors.CategoryConfig, "invalid pipeline.concurrency").Fatal().Build()
	}
	if cfg.RunLog.Backend, err = backendNormalizer.normalize(cfg.RunLog.Backend); err != nil {
		return ferrors.WrapError(err, ferrors.CategoryConfig, "invalid runlog.backend").Fatal().Build()
	}
	if cfg.Logging.Level, err = logLevelNormalizer.normalize(cfg.Logging.Level); err != nil {
		return ferrors.WrapError(err, ferrors.CategoryConfig, "invalid logging.level").Fatal().Build()
	}
	if cfg.Logging.Format, err = logFormatNormalizer.normalize(cfg.Logging.Format); err != nil {
		return ferrors.WrapError(err, ferrors.CategoryConfig, "invalid logging.format").Fatal().Build()
	}
	return nil
}
