package engine

import (
	"context"
	"fmt"
	"sort"
)

// HostStatus is a read-only view of one host record.
type HostStatus struct {
	URL       string   `json:"url"`
	Connected bool     `json:"connected"`
	Error     string   `json:"error,omitempty"`
	Devices   []string `json:"devices"`
}

// DeviceStatus is a read-only view of one device handle. Error is the
// device's effective error: the generic host-error marker while the owning
// host is in error, otherwise the device's own recorded error.
type DeviceStatus struct {
	Name  string `json:"name"`
	Host  string `json:"host"`
	Value string `json:"value,omitempty"`
	Error string `json:"error,omitempty"`
}

// ModuleStatus is a read-only view of one registered module.
type ModuleStatus struct {
	ID        string `json:"id"`
	Enabled   bool   `json:"enabled"`
	InitError string `json:"init_error,omitempty"`
}

// Snapshot is a consistent, point-in-time copy of the engine's state.
type Snapshot struct {
	Running bool           `json:"running"`
	Hosts   []HostStatus   `json:"hosts"`
	Devices []DeviceStatus `json:"devices"`
	Modules []ModuleStatus `json:"modules"`
}

// Snapshot returns a consistent copy of the engine's state, taken under
// the shared lock. Slices are sorted by key for deterministic output.
func (e *Engine) Snapshot() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()

	snap := Snapshot{
		Running: e.running,
		Hosts:   make([]HostStatus, 0, len(e.hosts)),
		Devices: make([]DeviceStatus, 0, len(e.devices)),
		Modules: make([]ModuleStatus, 0, len(e.modules)),
	}

	for _, h := range e.hosts {
		snap.Hosts = append(snap.Hosts, HostStatus{
			URL:       h.URL(),
			Connected: h.Connected(),
			Error:     h.Err(),
			Devices:   h.DeviceNames(),
		})
	}
	sort.Slice(snap.Hosts, func(i, j int) bool { return snap.Hosts[i].URL < snap.Hosts[j].URL })

	for _, d := range e.devices {
		snap.Devices = append(snap.Devices, DeviceStatus{
			Name:  d.Name(),
			Host:  d.HostURL(),
			Value: d.Value(),
			Error: d.EffectiveErr(),
		})
	}
	sort.Slice(snap.Devices, func(i, j int) bool { return snap.Devices[i].Name < snap.Devices[j].Name })

	for _, m := range e.modules {
		status := ModuleStatus{
			ID:      m.ID(),
			Enabled: m.Enabled(),
		}
		if err := m.InitErr(); err != nil {
			status.InitError = err.Error()
		}
		snap.Modules = append(snap.Modules, status)
	}
	sort.Slice(snap.Modules, func(i, j int) bool { return snap.Modules[i].ID < snap.Modules[j].ID })

	return snap
}

// DeviceStatus returns the current view of one device.
func (e *Engine) DeviceStatus(name string) (DeviceStatus, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	d, ok := e.devices[name]
	if !ok {
		return DeviceStatus{}, fmt.Errorf("%w: %q", ErrDeviceNotFound, name)
	}
	return DeviceStatus{
		Name:  d.Name(),
		Host:  d.HostURL(),
		Value: d.Value(),
		Error: d.EffectiveErr(),
	}, nil
}

// SetDeviceValue issues a remote write of value to the named device. The
// device is resolved under the lock, but the write itself runs outside it:
// a remote write only reads immutable device fields and has no ordering
// dependency on reconciliation state.
func (e *Engine) SetDeviceValue(ctx context.Context, name, value string) error {
	e.mu.Lock()
	d, ok := e.devices[name]
	e.mu.Unlock()

	if !ok {
		return fmt.Errorf("%w: %q", ErrDeviceNotFound, name)
	}
	return d.Set(ctx, value)
}

// HostCount returns the number of registered hosts.
func (e *Engine) HostCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.hosts)
}

// DeviceCount returns the number of known devices across all hosts.
func (e *Engine) DeviceCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.devices)
}

// ModuleCount returns the number of registered modules.
func (e *Engine) ModuleCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.modules)
}
