// Package store persists Switchboard registrations in SQLite.
//
// The hub's working state (device values, error markers, connectivity) is
// in-memory only and rebuilt from the hosts on every polling cycle. What the
// store keeps is the registration inventory:
//
//   - hosts: which remote services the hub should contact after a restart
//   - modules: which processing modules were registered, with their handler
//     name, parameters, and enabled state
//
// On startup the hub replays stored registrations before serving requests,
// so hosts and modules added at runtime survive restarts the same way as
// those declared in the config file.
package store
