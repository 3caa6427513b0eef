package device

import (
	"sort"
	"strings"
)

// Host tracks one remote device-hosting service.
//
// The URL is normalized at construction and acts as the host's unique key.
// The owned-device set is always exactly the names of the devices whose
// Host() is this record; the engine maintains that invariant on upsert.
type Host struct {
	url       string
	connected bool
	err       string
	devices   map[string]struct{}
}

// NewHost creates a host record owning the given device names. The record
// starts clean: disconnected, no error.
func NewHost(url string, names []string) *Host {
	owned := make(map[string]struct{}, len(names))
	for _, n := range names {
		owned[n] = struct{}{}
	}
	return &Host{
		url:     NormalizeURL(url),
		devices: owned,
	}
}

// NormalizeURL ensures a host URL carries an explicit scheme prefix.
// Bare "host:port" strings become "http://host:port".
func NormalizeURL(raw string) string {
	if strings.Contains(raw, "://") {
		return raw
	}
	return "http://" + raw
}

// URL returns the normalized host URL.
func (h *Host) URL() string { return h.url }

// Connected reports last-poll reachability.
func (h *Host) Connected() bool { return h.connected }

// SetConnected records the outcome of the latest poll attempt.
func (h *Host) SetConnected(connected bool) {
	h.connected = connected
}

// Err returns the aggregate host error, or "" when the host is healthy.
func (h *Host) Err() string { return h.err }

// InError reports whether the host is in error state.
func (h *Host) InError() bool { return h.err != "" }

// SetError moves the host into error state. First error wins: the message
// is only recorded on the ok -> error transition, and the method reports
// whether that transition happened so the caller can emit a one-time notice.
func (h *Host) SetError(msg string) bool {
	if h.err != "" {
		return false
	}
	h.err = msg
	return true
}

// ClearError returns the host to the ok state and reports whether it was
// previously in error.
func (h *Host) ClearError() bool {
	cleared := h.err != ""
	h.err = ""
	return cleared
}

// Owns reports whether the host currently owns the named device.
func (h *Host) Owns(name string) bool {
	_, ok := h.devices[name]
	return ok
}

// DeviceNames returns the owned device names in sorted order.
func (h *Host) DeviceNames() []string {
	names := make([]string, 0, len(h.devices))
	for n := range h.devices {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// DeviceCount returns the number of owned devices.
func (h *Host) DeviceCount() int { return len(h.devices) }
