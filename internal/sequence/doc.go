// Package sequence runs the compiled-in shows.
//
// A show is an ordered list of steps. Each step edits a region mask
// (replace, add, clear, or select everything), picks an effect, and is
// broadcast to every panel as one packet in sequence mode. The orchestrator
// then holds for the step's duration before moving on.
//
// Shows run synchronously on the caller's goroutine and at most one runs at
// a time: a request that arrives while a show is running is dropped with
// ErrSequenceRunning, never queued.
package sequence
