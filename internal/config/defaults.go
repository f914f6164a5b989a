package config

// Default values applied when the configuration leaves a field empty.
const (
	DefaultWorkspacePath   = "./workspace"
	DefaultBuildOutputDir  = "build"
	DefaultArtifactDir     = "./artifacts"
	DefaultArtifactName    = "build_artifacts.zip"
	DefaultStageTimeout    = "30m"
	DefaultListenAddress   = ":4444"
	DefaultRunLogPath      = "./buildtrigger.db"
	DefaultEventsSubject   = "buildtrigger.runs"
	DefaultShutdownTimeout = "30s"
)

// DefaultBuildCommand is the build invocation used when none is configured.
func DefaultBuildCommand() []string { return []string{"make", "build"} }

func applyDefaults(cfg *Config) {
	if cfg.Workspace.Path == "" {
		cfg.Workspace.Path = DefaultWorkspacePath
	}
	if len(cfg.Build.Command) == 0 {
		cfg.Build.Command = DefaultBuildCommand()
	}
	if cfg.Build.OutputDir == "" {
		cfg.Build.OutputDir = DefaultBuildOutputDir
	}
	if cfg.Artifacts.Dir == "" {
		cfg.Artifacts.Dir = DefaultArtifactDir
	}
	if cfg.Artifacts.Name == "" {
		cfg.Artifacts.Name = DefaultArtifactName
	}
	if cfg.Pipeline.StageTimeout == "" {
		cfg.Pipeline.StageTimeout = DefaultStageTimeout
	}
	if cfg.Server.Address == "" {
		cfg.Server.Address = DefaultListenAddress
	}
	if cfg.Server.ShutdownTimeout == "" {
		cfg.Server.ShutdownTimeout = DefaultShutdownTimeout
	}
	if cfg.RunLog.Path == "" {
		cfg.RunLog.Path = DefaultRunLogPath
	}
	if cfg.Events.NATSURL != "" && cfg.Events.Subject == "" {
		cfg.Events.Subject = DefaultEventsSubject
	}
	if cfg.Source.Auth != nil && cfg.Source.Auth.Type == "" {
		cfg.Source.Auth.Type = AuthTypeNone
	}
}
