// Package effect implements the per-region brightness state machines that
// panels render.
//
// Each effect type is a variant of Effect with its own animation counters.
// Advance moves the animation forward by the elapsed time and returns the
// target level of every region on the panel. Effects step on a cadence
// derived from the command's speed: higher speed, shorter interval.
//
// Engine owns the active variant. Whenever the effect type or the effect
// epoch of the incoming State changes, the engine discards the old variant
// and starts a fresh one from its canonical reset values, so an effect never
// resumes from another effect's counters. Disabled regions are always
// rendered as 0.
//
// Nothing here fails: any State yields a defined frame.
package effect
