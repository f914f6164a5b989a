// Package pipeline sequences source fetch, build and packaging into a run.
//
// The Orchestrator owns the single workspace. At most one run is active at a
// time; a trigger that arrives during a run is either rejected with ErrBusy or
// queued until the workspace is free, depending on the configured policy. Every
// stage runs under its own timeout and a failure aborts the remaining stages.
// The archive of the last successful run stays downloadable until a later run
// succeeds.
package pipeline
