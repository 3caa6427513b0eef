package engine

import (
	"context"
	"fmt"

	"github.com/switchboard-core/switchboard/internal/device"
)

// UpsertHost registers a host as a source of devices, or replaces its
// device set if the URL is already registered.
//
// The inventory is fetched before the engine lock is taken, so a slow host
// cannot stall a running poll cycle. Validation and mutation then happen
// atomically under the lock with a strong exception guarantee: on any
// failure the hosts and devices maps are left exactly as they were.
//
// On success the host's previous devices (if any) are dropped from the
// global device map, the new set is installed, the host record resets to a
// clean state, and one immediate value-refresh pass runs so the new
// devices carry current values before this call returns.
func (e *Engine) UpsertHost(ctx context.Context, rawURL string) error {
	hostURL := device.NormalizeURL(rawURL)

	inventory, err := e.client.fetchInventory(ctx, hostURL)
	if err != nil {
		return fmt.Errorf("fetching inventory from %s: %w", hostURL, err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if _, exists := e.hosts[hostURL]; exists {
		e.logger.Info("updating host", "host", hostURL)
	} else {
		e.logger.Info("adding host", "host", hostURL)
	}

	seen := make(map[string]struct{}, len(inventory))
	for _, name := range inventory {
		if _, dup := seen[name]; dup {
			return fmt.Errorf("%w: device %q listed twice by host %s", ErrDuplicateDevice, name, hostURL)
		}
		seen[name] = struct{}{}

		// Re-registering the same host with overlapping names is the
		// update path; only a different owner is a conflict.
		if owned, ok := e.devices[name]; ok && owned.HostURL() != hostURL {
			return fmt.Errorf("%w: device %q already exists for host %s", ErrDeviceConflict, name, owned.HostURL())
		}
	}

	host := device.NewHost(hostURL, inventory)
	fresh := make(map[string]*device.Device, len(inventory))
	for _, name := range inventory {
		fresh[name] = device.New(name, host, e.remoteSet)
	}

	// Replacing a host atomically drops every device it previously owned
	// before the new set is installed.
	if old, ok := e.hosts[hostURL]; ok {
		for _, name := range old.DeviceNames() {
			delete(e.devices, name)
		}
	}
	for name, d := range fresh {
		e.devices[name] = d
	}
	e.hosts[hostURL] = host

	e.logger.Info("host registered", "host", hostURL, "devices", len(fresh))

	if e.store != nil {
		if err := e.store.SaveHost(ctx, hostURL); err != nil {
			e.logger.Warn("persisting host registration failed", "host", hostURL, "error", err)
		}
	}

	// Load initial values before any caller proceeds.
	e.refreshAll(ctx)
	return nil
}

// remoteSet is the setter wired into every device handle. Host-reported
// write failures are logged, not raised; only a transport failure reaches
// the caller.
func (e *Engine) remoteSet(ctx context.Context, d *device.Device, value string) error {
	report, err := e.client.writeDevice(ctx, d.HostURL(), d.Name(), value)
	if err != nil {
		return fmt.Errorf("writing device %q to host %s: %w", d.Name(), d.HostURL(), err)
	}
	if report != "" {
		e.logger.Error("device write rejected", "device", d.Name(), "host", d.HostURL(), "error", report)
	}
	return nil
}
