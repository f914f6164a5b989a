// Package errors provides foundational, type-safe error primitives used across buildtrigger.
//
// This package contains classified error types and helpers for routing failures to the
// right presentation layer (HTTP status codes, CLI exit codes, log severities),
// including a fluent builder API for constructing ClassifiedError values with context.
//
// Key features:
//   - ErrorCategory: Broad error classification (config, fetch, build, package, etc.)
//   - ErrorSeverity: Impact level (fatal, error, warning, info)
//   - ClassifiedError: Structured error with category, severity, and context
//   - ErrorBuilder: Fluent API for creating classified errors
//   - HTTP and CLI adapters for error presentation
//
// Example usage:
//
//	err := errors.WrapError(cause, errors.CategoryFetch, "clone failed").
//		WithContext("url", sourceURL).
//		Build()
package errors
