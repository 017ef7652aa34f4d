// Package main hosts the storyvox CLI entrypoint and command graph.
//
// The Cobra command tree resolves configuration once, builds the external
// tool gateway and service clients from it, and then either serves the HTTP
// API (serve) or runs a single pipeline in the foreground (merge, youtube).
// The remaining commands inspect run history, prune leftover workspaces,
// report dependency health, and scaffold configuration.
//
// Keep this package lean: behavior belongs in internal packages and is only
// wired and rendered here.
package main
