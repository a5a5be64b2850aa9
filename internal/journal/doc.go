// Package journal records every radio send attempt in the dispatch_log
// table and serves recent entries to the status API and showctl.
//
// The journal is write-mostly diagnostics. Nothing reads it back to
// restore show state after a reboot.
//
// Recording is decoupled from the send path: the dispatcher observer
// enqueues into a bounded buffer and a single goroutine (Recorder.Run)
// writes to SQLite. When the buffer is full new entries are dropped and
// counted.
package journal
