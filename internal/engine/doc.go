// Package engine implements the Switchboard reconciliation engine.
//
// The engine owns the authoritative maps of hosts, devices, and modules.
// It registers hosts by pulling their device inventory over HTTP (with
// duplicate and cross-host conflict detection under a strong exception
// guarantee), runs the fixed-period polling loop that refreshes device
// values and reconciles host/device error states, and invokes every
// registered module once per cycle with read access to the device view.
//
// # Concurrency
//
// One mutex guards hosts, devices, and modules against the polling cycle.
// External control calls (host upsert, module enable/disable, snapshot
// reads) take the same lock, so a poll cycle and a control mutation never
// interleave partially. Remote writes deliberately run outside the lock:
// they read immutable device fields only and have no ordering dependency
// on reconciliation state.
//
// No caller can observe the maps directly; all reads go through Snapshot
// and DeviceStatus, all mutation through the defined operations.
//
// # Error handling
//
// Validation failures (duplicate device, cross-host conflict) are returned
// synchronously from UpsertHost with state unchanged. Connectivity and
// formatting failures during a poll are captured as host error state and
// never abort the cycle or the loop. Device-reported errors are device
// error state, cleared automatically once a valid value arrives. Remote
// write rejections are logged only.
package engine
