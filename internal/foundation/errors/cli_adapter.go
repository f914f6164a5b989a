package errors

import (
	"fmt"
	"log/slog"
)

// CLIErrorAdapter handles error presentation and exit code determination for CLI applications.
type CLIErrorAdapter struct {
	verbose bool
	logger  *slog.Logger
}

// NewCLIErrorAdapter creates a new CLI error adapter.
func NewCLIErrorAdapter(verbose bool, logger *slog.Logger) *CLIErrorAdapter {
	if logger == nil {
		logger = slog.Default()
	}
	return &CLIErrorAdapter{
		verbose: verbose,
		logger:  logger,
	}
}

// ExitCodeFor determines the appropriate exit code for an error.
func (a *CLIErrorAdapter) ExitCodeFor(err error) int {
	if err == nil {
		return 0
	}
	classified, ok := AsClassified(err)
	if !ok {
		return 1
	}
	switch classified.Category() {
	case CategoryValidation:
		return 2 // Invalid usage
	case CategoryConfig:
		return 7
	case CategoryFetch:
		return 8 // External system error
	case CategoryBuild, CategoryPackage, CategoryTimeout, CategoryFileSystem:
		return 11
	case CategoryConflict:
		return 9
	case CategoryDaemon, CategoryRuntime:
		return 12
	case CategoryInternal:
		return 10
	default:
		return 1
	}
}

// FormatError formats an error for user-friendly display.
func (a *CLIErrorAdapter) FormatError(err error) string {
	if err == nil {
		return ""
	}
	if classified, ok := AsClassified(err); ok {
		if a.verbose {
			return "Error: " + classified.Error()
		}
		return "Error: " + classified.Message()
	}
	return fmt.Sprintf("Error: %v", err)
}

// Log writes the error to the adapter's logger; fatal errors are always logged,
// everything else only in verbose mode.
func (a *CLIErrorAdapter) Log(err error) {
	if err == nil {
		return
	}
	if classified, ok := AsClassified(err); ok {
		if a.verbose || classified.IsFatal() {
			a.logger.Error(classified.Message(),
				slog.String("category", string(classified.Category())),
				slog.String("error", classified.Error()))
		}
		return
	}
	if a.verbose {
		a.logger.Error("command failed", slog.String("error", err.Error()))
	}
}
