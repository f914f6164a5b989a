package source

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// FetchReason classifies why a fetch failed.
type FetchReason string

const (
	ReasonFilesystem FetchReason = "filesystem"
	ReasonAuth       FetchReason = "auth"
	ReasonNotFound   FetchReason = "not_found"
	ReasonTimeout    FetchReason = "timeout"
	ReasonCanceled   FetchReason = "canceled"
	ReasonNetwork    FetchReason = "network"
	ReasonUnknown    FetchReason = "unknown"
)

// FetchError is returned for every source acquisition failure.
type FetchError struct {
	Location string
	Reason   FetchReason
	Err      error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s failed (%s): %v", e.Location, e.Reason, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// classifyCloneError maps go-git failures onto a FetchReason.
func classifyCloneError(location string, err error) *FetchError {
	fe := &FetchError{Location: location, Reason: ReasonUnknown, Err: err}
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		fe.Reason = ReasonTimeout
		return fe
	case errors.Is(err, context.Canceled):
		fe.Reason = ReasonCanceled
		return fe
	}
	l := strings.ToLower(err.Error())
	switch {
	case strings.Contains(l, "authentication") || strings.Contains(l, "authorization") || strings.Contains(l, "auth fail"):
		fe.Reason = ReasonAuth
	case strings.Contains(l, "not found") || strings.Contains(l, "repository does not exist"):
		fe.Reason = ReasonNotFound
	case strings.Contains(l, "timeout"):
		fe.Reason = ReasonTimeout
	case strings.Contains(l, "connection refused") || strings.Contains(l, "no such host") || strings.Contains(l, "dial tcp"):
		fe.Reason = ReasonNetwork
	}
	return fe
}
