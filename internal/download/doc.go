// Package download orchestrates the task lifecycle: accept, dedupe,
// dispatch to a worker, transition states, classify failures.
package download
