package artifact

import "fmt"

// PackageReason classifies why packaging failed.
type PackageReason string

const (
	ReasonMissingOutput PackageReason = "missing_output"
	ReasonRead          PackageReason = "read"
	ReasonWrite         PackageReason = "write"
)

// PackageError is returned for every packaging failure.
type PackageError struct {
	Reason PackageReason
	Path   string
	Err    error
}

func (e *PackageError) Error() string {
	return fmt.Sprintf("package %s failed (%s): %v", e.Path, e.Reason, e.Err)
}

func (e *PackageError) Unwrap() error { return e.Err }
