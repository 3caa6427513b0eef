// Package device provides the leaf records of the Switchboard hub: the
// Device handle and the Host record.
//
// A Device is a named, independently addressable endpoint owned by exactly
// one Host. It carries the last observed value, the device-reported error
// (if any), and a setter callback that issues a remote write back to the
// owning host.
//
// A Host tracks one remote device-hosting service: its normalized URL, its
// last-poll reachability, its aggregate error state, and the set of device
// names it currently owns. The host error state machine is first-error-wins:
// only the first error observed after a clean state is recorded and
// reported; subsequent errors are absorbed until the host recovers.
//
// A device's effective error is derived rather than stored: while the
// owning host is in error every owned device reports the generic host-error
// marker, and the device's own recorded error resurfaces once the host
// recovers. This keeps a device-specific error from being lost across a
// host outage.
//
// # Thread Safety
//
// Device and Host are NOT synchronized. All mutation is performed by the
// reconciliation engine under its single mutual-exclusion domain; the only
// operation safe without that lock is Device.Set, which reads immutable
// fields only.
package device
