// Package workspace manages the single workspace directory a pipeline run builds in.
//
// The directory lives at a fixed path and is destroyed and recreated at the start of
// every run, so stale content from a previous run can never leak into the next one.
package workspace
