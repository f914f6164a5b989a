package config

import "time"

// Config is the complete buildtrigger configuration. It is loaded once and passed
// explicitly to the components that consume it; nothing reads global state.
type Config struct {
	Source    SourceConfig    `yaml:"source"`
	Workspace WorkspaceConfig `yaml:"workspace"`
	Build     BuildConfig     `yaml:"build"`
	Artifacts ArtifactsConfig `yaml:"artifacts"`
	Pipeline  PipelineConfig  `yaml:"pipeline"`
	Server    ServerConfig    `yaml:"server"`
	RunLog    RunLogConfig    `yaml:"runlog"`
	Schedule  ScheduleConfig  `yaml:"schedule,omitempty"`
	Events    EventsConfig    `yaml:"events,omitempty"`
	Logging   LoggingConfig   `yaml:"logging"`
	Metrics   MetricsConfig   `yaml:"metrics"`
}

// SourceConfig describes where the project source is fetched from.
type SourceConfig struct {
	URL    string      `yaml:"url"`
	Branch string      `yaml:"branch,omitempty"`
	Depth  int         `yaml:"depth,omitempty"` // shallow clone depth, 0 = full history
	Auth   *AuthConfig `yaml:"auth,omitempty"`
}

// AuthConfig represents authentication configuration for the source repository.
type AuthConfig struct {
	Type     AuthType `yaml:"type"` // "none", "ssh", "token", "basic"
	Username string   `yaml:"username,omitempty"`
	Password string   `yaml:"password,omitempty"`
	Token    string   `yaml:"token,omitempty"`
	KeyPath  string   `yaml:"key_path,omitempty"`
}

// AuthType enumerates supported source authentication modes.
type AuthType string

const (
	AuthTypeNone  AuthType = "none"
	AuthTypeSSH   AuthType = "ssh"
	AuthTypeToken AuthType = "token"
	AuthTypeBasic AuthType = "basic"
)

// WorkspaceConfig holds the single workspace directory owned by the orchestrator.
type WorkspaceConfig struct {
	Path string `yaml:"path"`
}

// BuildConfig describes the external build invocation.
type BuildConfig struct {
	Command   []string          `yaml:"command"`
	Env       map[string]string `yaml:"env,omitempty"`
	OutputDir string            `yaml:"output_dir"` // relative to the workspace
}

// ArtifactsConfig describes where the packaged archive is written.
type ArtifactsConfig struct {
	Dir  string `yaml:"dir"`
	Name string `yaml:"name"`
}

// PipelineConfig holds orchestrator policy.
type PipelineConfig struct {
	StageTimeout string            `yaml:"stage_timeout"`
	Concurrency  ConcurrencyPolicy `yaml:"concurrency"`
}

// ConcurrencyPolicy selects what happens to a trigger that arrives during an active run.
type ConcurrencyPolicy string

const (
	// ConcurrencyReject returns Busy immediately.
	ConcurrencyReject ConcurrencyPolicy = "reject"
	// ConcurrencyQueue waits for the active run to finish.
	ConcurrencyQueue ConcurrencyPolicy = "queue"
)

// ServerConfig configures the HTTP gateway.
type ServerConfig struct {
	Address         string `yaml:"address"`
	ShutdownTimeout string `yaml:"shutdown_timeout,omitempty"`
}

// RunLogConfig selects the run log backend.
type RunLogConfig struct {
	Backend RunLogBackend `yaml:"backend"`
	Path    string        `yaml:"path,omitempty"` // sqlite database path
}

// RunLogBackend enumerates run log storage backends.
type RunLogBackend string

const (
	RunLogMemory RunLogBackend = "memory"
	RunLogSQLite RunLogBackend = "sqlite"
)

// ScheduleConfig enables periodic runs; empty interval disables scheduling.
type ScheduleConfig struct {
	Interval string `yaml:"interval,omitempty"`
}

// EventsConfig enables run lifecycle events on NATS; empty URL disables publishing.
type EventsConfig struct {
	NATSURL string `yaml:"nats_url,omitempty"`
	Subject string `yaml:"subject,omitempty"`
}

// LoggingConfig configures the process logger.
type LoggingConfig struct {
	Level  LogLevel  `yaml:"level"`
	Format LogFormat `yaml:"format"`
}

// MetricsConfig toggles the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
}

// StageTimeoutDuration returns the parsed per-stage timeout (validated at load time).
func (c *Config) StageTimeoutDuration() time.Duration {
	d, _ := time.ParseDuration(c.Pipeline.StageTimeout)
	return d
}

// ScheduleIntervalDuration returns the schedule interval, or 0 when scheduling is disabled.
func (c *Config) ScheduleIntervalDuration() time.Duration {
	if c.Schedule.Interval == "" {
		return 0
	}
	d, _ := time.ParseDuration(c.Schedule.Interval)
	return d
}

// ShutdownTimeoutDuration returns the graceful shutdown budget for the gateway.
func (c *Config) ShutdownTimeoutDuration() time.Duration {
	d, err := time.ParseDuration(c.Server.ShutdownTimeout)
	if err != nil || d <= 0 {
		return 30 * time.Second
	}
	return d
}
