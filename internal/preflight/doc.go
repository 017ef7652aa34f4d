// Package preflight provides readiness checks for the filesystem paths,
// external binaries, and remote services storyvox depends on.
//
// serve runs RunAll and CheckSystemDeps at startup and refuses to start when
// a directory is unusable. The deps command prints the same results.
package preflight
