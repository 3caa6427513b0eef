package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/switchboard-core/switchboard/internal/device"
)

// refreshAll obtains current device values from every registered host, in
// any order. One host's failure never affects another's refresh. Callers
// must hold e.mu.
func (e *Engine) refreshAll(ctx context.Context) {
	for _, h := range e.hosts {
		e.refreshHost(ctx, h)
	}
}

// refreshHost polls one host for values and integrates the response.
// Callers must hold e.mu.
func (e *Engine) refreshHost(ctx context.Context, h *device.Host) {
	resp, err := e.client.fetchValues(ctx, h.URL())
	switch {
	case errors.Is(err, errInvalidBody):
		h.SetConnected(true)
		e.hostError(h, fmt.Sprintf("invalid response formatting from host %s", h.URL()))
		return
	case err != nil:
		h.SetConnected(false)
		e.hostError(h, fmt.Sprintf("unable to access host %s", h.URL()))
		return
	}
	h.SetConnected(true)

	if msg := e.checkValuesFormat(h, resp); msg != "" {
		e.hostError(h, msg)
		return
	}

	e.hostRecovered(h)
	e.applyValues(h, *resp.Devices)
}

// checkValuesFormat validates the structure of a parsed values response.
// Checks run in order; the first failure wins and no values are applied
// from a response that fails any of them. Returns "" when valid.
func (e *Engine) checkValuesFormat(h *device.Host, resp *valuesResponse) string {
	if resp.Error != nil {
		return fmt.Sprintf("error reported by host %s: %s", h.URL(), *resp.Error)
	}
	if resp.Devices == nil {
		return fmt.Sprintf("no \"devices\" field in response from host %s", h.URL())
	}
	for _, entry := range *resp.Devices {
		if entry.Name == nil {
			return fmt.Sprintf("device with no name in response from host %s", h.URL())
		}
		// A name this engine has never seen means the host and the hub
		// disagree about the inventory; fail loudly rather than index a
		// missing device.
		if !h.Owns(*entry.Name) {
			return fmt.Sprintf("unknown device %q in response from host %s", *entry.Name, h.URL())
		}
		if entry.Value == nil && entry.Error == nil {
			return fmt.Sprintf("device %q has no value or error field (host %s)", *entry.Name, h.URL())
		}
	}
	return ""
}

// applyValues integrates a fully validated values response. Devices the
// host owns but omitted from the response keep their previous value and
// are reported at warn level. Callers must hold e.mu.
func (e *Engine) applyValues(h *device.Host, entries []valueEntry) {
	reported := make(map[string]struct{}, len(entries))

	for _, entry := range entries {
		name := *entry.Name
		reported[name] = struct{}{}

		d, ok := e.devices[name]
		if !ok {
			// Owned but missing from the device map would mean the upsert
			// invariant was broken; surface it rather than skip silently.
			e.logger.Error("owned device missing from device map", "device", name, "host", h.URL())
			continue
		}

		switch {
		case entry.Error != nil:
			if d.SetErr(*entry.Error) {
				e.logger.Warn("device reported an error", "device", name, "error", *entry.Error)
				e.publishDeviceState(d)
			}
		case entry.Value != nil:
			if d.ClearErr() {
				e.logger.Info("device no longer reporting an error", "device", name)
				e.publishDeviceState(d)
			}
			if d.Value() != *entry.Value {
				d.SetValue(*entry.Value)
				e.publishDeviceState(d)
			}
		}
	}

	for _, name := range h.DeviceNames() {
		if _, ok := reported[name]; !ok {
			e.logger.Warn("device absent from host response", "device", name, "host", h.URL())
		}
	}
}

// hostError moves a host into error state. Only the first error after a
// clean state is recorded and reported; while the host is in error every
// owned device's effective error is the generic host-error marker, so each
// one gets a state event. Callers must hold e.mu.
func (e *Engine) hostError(h *device.Host, msg string) {
	if !h.SetError(msg) {
		return
	}
	e.logger.Error("host entered error state", "host", h.URL(), "error", msg)
	e.publishHostStatus(h)
	e.publishOwnedDeviceStates(h)
}

// hostRecovered clears a host's error state. Owned devices stop reporting
// the host-error marker; any device-specific error recorded before the
// outage resurfaces. Callers must hold e.mu.
func (e *Engine) hostRecovered(h *device.Host) {
	if !h.ClearError() {
		return
	}
	e.logger.Info("host no longer in error state", "host", h.URL())
	e.publishHostStatus(h)
	e.publishOwnedDeviceStates(h)
}

func (e *Engine) publishOwnedDeviceStates(h *device.Host) {
	for _, name := range h.DeviceNames() {
		if d, ok := e.devices[name]; ok {
			e.publishDeviceState(d)
		}
	}
}
