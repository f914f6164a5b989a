package pipeline

import (
	"time"

	"git.home.luguber.info/inful/buildtrigger/internal/artifact"
	"git.home.luguber.info/inful/buildtrigger/internal/builder"
	"git.home.luguber.info/inful/buildtrigger/internal/config"
	"git.home.luguber.info/inful/buildtrigger/internal/source"
	"git.home.luguber.info/inful/buildtrigger/internal/workspace"
)

// Settings are the per-run parameters of the orchestrator.
type Settings struct {
	SourceURL    string
	Workspace    string
	ArtifactDir  string
	StageTimeout time.Duration
	Concurrency  config.ConcurrencyPolicy
}

// Components bundles the stages with the settings they run under. A reload
// replaces the whole bundle between runs.
type Components struct {
	Fetcher  source.Fetcher
	Runner   builder.Runner
	Packager artifact.Packager
	Settings Settings
}

// ComponentsFromConfig wires the production stage implementations.
func ComponentsFromConfig(cfg *config.Config) (Components, error) {
	ws, err := workspace.NewManager(cfg.Workspace.Path)
	if err != nil {
		return Components{}, err
	}
	return Components{
		Fetcher:  source.NewGitFetcher(cfg.Source),
		Runner:   builder.NewCommandRunner(cfg.Build),
		Packager: artifact.NewZipPackager(cfg.Build.OutputDir, cfg.Artifacts.Name),
		Settings: Settings{
			SourceURL:    cfg.Source.URL,
			Workspace:    ws.Path(),
			ArtifactDir:  cfg.Artifacts.Dir,
			StageTimeout: cfg.StageTimeoutDuration(),
			Concurrency:  cfg.Pipeline.Concurrency,
		},
	}, nil
}
