// Package builder executes the project's build procedure inside the workspace.
package builder

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"slices"
	"strings"
	"time"

	"git.home.luguber.info/inful/buildtrigger/internal/config"
	"git.home.luguber.info/inful/buildtrigger/internal/logfields"
	"git.home.luguber.info/inful/buildtrigger/internal/observability"
)

// maxCapturedOutput bounds the diagnostic output kept on a BuildError.
const maxCapturedOutput = 64 * 1024

// Runner executes the build with workspace as working directory.
type Runner interface {
	Run(ctx context.Context, workspace string) error
}

// CommandRunner runs an external build command. Only the exit status is interpreted.
type CommandRunner struct {
	argv      []string
	env       []string
	waitDelay time.Duration
}

// NewCommandRunner creates a runner for the configured build command.
func NewCommandRunner(cfg config.BuildConfig) *CommandRunner {
	env := make([]string, 0, len(cfg.Env))
	for k, v := range cfg.Env {
		env = append(env, k+"="+v)
	}
	slices.Sort(env)
	return &CommandRunner{
		argv:      slices.Clone(cfg.Command),
		env:       env,
		waitDelay: 5 * time.Second,
	}
}

// Run starts the build command and waits for it. A non-zero exit, a start failure
// or cancellation of ctx yields a *BuildError carrying the captured output.
func (r *CommandRunner) Run(ctx context.Context, workspace string) error {
	if len(r.argv) == 0 {
		return &BuildError{ExitCode: -1, Err: errors.New("no build command configured")}
	}

	cmd := exec.CommandContext(ctx, r.argv[0], r.argv[1:]...)
	cmd.Dir = workspace
	cmd.Env = append(os.Environ(), r.env...)
	// Build tools may leave children holding the output pipe after the main
	// process is killed on timeout.
	cmd.WaitDelay = r.waitDelay

	out := &tailBuffer{limit: maxCapturedOutput}
	cmd.Stdout = out
	cmd.Stderr = out

	start := time.Now()
	observability.DebugContext(ctx, "Running build command", logfields.Command(r.argv), logfields.Path(workspace))
	err := cmd.Run()
	if err != nil {
		be := &BuildError{Command: r.argv, ExitCode: -1, Output: out.String(), Err: err}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			be.ExitCode = exitErr.ExitCode()
		}
		observability.DebugContext(ctx, "Build command failed", logfields.Command(r.argv), logfields.ExitCode(be.ExitCode), logfields.Error(err))
		return be
	}

	observability.InfoContext(ctx, "Build command completed", logfields.Command(r.argv), logfields.Duration(time.Since(start)))
	return nil
}

// BuildError reports a build that could not start or exited non-zero.
type BuildError struct {
	Command  []string
	ExitCode int // -1 when the process did not run to completion
	Output   string
	Err      error
}

func (e *BuildError) Error() string {
	msg := fmt.Sprintf("build command %q failed", strings.Join(e.Command, " "))
	if e.ExitCode >= 0 {
		msg = fmt.Sprintf("%s with exit code %d", msg, e.ExitCode)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	if tail := lastLines(e.Output, 20); tail != "" {
		msg += "\n" + tail
	}
	return msg
}

func (e *BuildError) Unwrap() error { return e.Err }

func lastLines(s string, n int) string {
	s = strings.TrimRight(s, "\n")
	if s == "" {
		return ""
	}
	lines := strings.Split(s, "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.Join(lines, "\n")
}

// tailBuffer keeps the last limit bytes written to it.
type tailBuffer struct {
	buf       []byte
	limit     int
	truncated bool
}

func (b *tailBuffer) Write(p []byte) (int, error) {
	b.buf = append(b.buf, p...)
	if over := len(b.buf) - b.limit; over > 0 {
		b.buf = slices.Clone(b.buf[over:])
		b.truncated = true
	}
	return len(p), nil
}

func (b *tailBuffer) String() string {
	if b.truncated {
		return "...(truncated)\n" + string(b.buf)
	}
	return string(b.buf)
}
