package workspace

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"git.home.luguber.info/inful/buildtrigger/internal/logfields"
)

// Manager owns a fixed workspace path.
type Manager struct {
	path string
}

// NewManager creates a workspace manager for path. Relative paths are resolved
// against the current working directory once, at construction.
func NewManager(path string) (*Manager, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("workspace path is required")
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve workspace path: %w", err)
	}
	return &Manager{path: abs}, nil
}

// Path returns the absolute workspace path.
func (m *Manager) Path() string {
	return m.path
}

// Reset destroys any existing content and recreates an empty workspace.
func (m *Manager) Reset() error {
	return Reset(m.path)
}

// Resolve joins rel onto the workspace path, refusing paths that escape it.
func (m *Manager) Resolve(rel string) (string, error) {
	return Resolve(m.path, rel)
}

// Reset removes dir and everything below it, then creates it again empty.
func Reset(dir string) error {
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("failed to remove existing workspace: %w", err)
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("failed to create workspace directory: %w", err)
	}
	slog.Debug("Workspace reset", logfields.Path(dir))
	return nil
}

// Resolve joins rel onto base, refusing absolute paths and paths that escape base.
func Resolve(base, rel string) (string, error) {
	if filepath.IsAbs(rel) {
		return "", fmt.Errorf("path %q must be relative to the workspace", rel)
	}
	joined := filepath.Join(base, rel)
	r, err := filepath.Rel(base, joined)
	if err != nil || r == ".." || strings.HasPrefix(r, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("path %q escapes the workspace", rel)
	}
	return joined, nil
}
