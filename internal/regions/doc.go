// Package regions holds the static region table of the installation and the
// symbolic group index built over it.
//
// Every illumination region has a global Index that is unique across the
// installation. Each panel owns a contiguous, non-overlapping sub-range of
// those indices and addresses its own regions by LocalIndex, counted from
// zero on that panel.
//
// Two group namespaces exist and are kept apart by type:
//
//   - Tag is a cross-panel group (SYMBOL, RAAVANA, ...). ByGroup resolves it
//     to global indices and it is what the coordinator uses to build masks.
//   - LocalTag is a panel-local group (BULL, VEENA, ...). Layout.LocalGroup
//     resolves it to LocalIndex values that only mean something on the
//     owning panel.
//
// The table is compiled in and validated when the package initialises; a
// malformed table panics at start-up rather than misaddressing regions at
// show time.
//
// Usage:
//
//	for _, idx := range regions.ByGroup(regions.Symbol) {
//	    mask = mask.Add(idx)
//	}
//
//	layout, _ := regions.PanelLayout(2)
//	local, ok := layout.Local(7) // VEENA_REST -> 2
package regions
