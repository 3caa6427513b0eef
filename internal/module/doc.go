// Package module defines the processing-module contract for the Switchboard
// hub and a static registry of module handlers.
//
// A module is a unit of processing invoked once per polling cycle with read
// access to the current device view. Modules that want to write back to a
// device do so through that device's setter, never through direct host
// access. The engine's sole responsibility is invocation: a handler's error
// is logged, not interpreted.
//
// Handlers are resolved by stable identifier from an explicit registry
// populated at startup (typically in main). There is no runtime code
// loading; updating a module means re-registering it.
//
// # Thread Safety
//
// The handler registry is safe for concurrent use. Module instances are
// not synchronized: enable/disable and Run are serialized by the engine's
// mutual-exclusion domain.
package module
