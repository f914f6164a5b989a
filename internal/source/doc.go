// Package source obtains a clean copy of the project source into the workspace.
//
// GitFetcher clones with go-git, so no git binary is required on the host. The
// source location may be any URL go-git understands or a local repository path.
// Every failure is reported as a *FetchError whose Reason classifies the cause.
package source
