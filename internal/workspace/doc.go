// Package workspace owns run-scoped temporary storage: creating a uniquely
// named directory per pipeline run, tracking the files written into it, and
// removing it again through the Janitor on every exit path. CleanStale sweeps
// directories left behind by runs that never reached cleanup (for example
// after a crash).
package workspace
