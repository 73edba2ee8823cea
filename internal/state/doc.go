// Package state holds the reconciled per-receiver, per-channel state.
//
// Receivers report sparse, partially overlapping updates. The Engine folds
// each one into a Store without ever regressing a reported field:
//
//	store := state.NewStore()
//	engine := state.NewEngine(store)
//	store.AddListener(hub)            // notified once per update
//
//	engine.Reconcile(ctx, "R1", update) // called by the SSC bridge
//
//	snap := store.Snapshot()           // {"R1":{"channel1":{...},"channel2":{...}}}
//
// # Fields
//
// Every channel attribute is a Field: a concrete value or Unknown. Unknown
// renders as "unknown" in snapshots and is reported as ErrAttributeUnknown
// by attribute lookups, so it is never confused with a concrete empty value
// such as an empty warnings list.
//
// # Field resolution
//
//   - name: rx name (non-empty), then device name (non-empty), then prior
//   - mute, battery: tx mate record, then prior
//   - frequency, gain, warnings, mates: rx record, then prior
package state
