// Package runstore keeps the history of pipeline runs in a SQLite database
// under the state directory. The store implements pipeline.Recorder so every
// flow can report start and finish without knowing about persistence.
package runstore
