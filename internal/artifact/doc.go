// Package artifact packages the build-output directory into a single zip archive.
//
// The archive is written next to its final location and renamed into place, so a
// failure while packaging leaves any previously published archive untouched.
package artifact
