package device

import "context"

// HostErrorMarker is the effective error reported by every device owned by
// a host that is currently in error state. It masks, but does not replace,
// any device-specific error.
const HostErrorMarker = "Host error"

// SetFunc issues a remote write of a device value to the device's owning
// host. Implementations are provided by the engine and must be safe to call
// without the engine lock held.
type SetFunc func(ctx context.Context, d *Device, value string) error

// Device is the handle for one readable/writable endpoint.
//
// The name and owning host are fixed at construction; a device is only ever
// replaced wholesale when its host is re-registered, never renamed or
// re-homed.
type Device struct {
	name   string
	host   *Host
	value  string
	err    string
	setter SetFunc
}

// New creates a device owned by host. The setter may be nil for read-only
// deployments; Set then returns ErrNoSetter.
func New(name string, host *Host, setter SetFunc) *Device {
	return &Device{
		name:   name,
		host:   host,
		setter: setter,
	}
}

// Name returns the device's unique name.
func (d *Device) Name() string { return d.name }

// Host returns the owning host record.
func (d *Device) Host() *Host { return d.host }

// HostURL returns the URL of the owning host.
func (d *Device) HostURL() string { return d.host.URL() }

// Value returns the last observed value. Semantics are opaque to the hub.
func (d *Device) Value() string { return d.value }

// Err returns the device-reported error, or "" when the device last
// reported a value.
func (d *Device) Err() string { return d.err }

// EffectiveErr returns the error a consumer should act on: the generic
// host-error marker while the owning host is in error, otherwise the
// device's own recorded error.
func (d *Device) EffectiveErr() string {
	if d.host.InError() {
		return HostErrorMarker
	}
	return d.err
}

// SetValue stores a freshly observed value.
func (d *Device) SetValue(value string) {
	d.value = value
}

// SetErr records a device-reported error. The stored value is left
// untouched; an error entry carries no value. It reports whether the device
// transitioned from ok into error, so the caller can emit a one-time notice.
func (d *Device) SetErr(msg string) bool {
	transitioned := d.err == ""
	d.err = msg
	return transitioned
}

// ClearErr clears the device-reported error and reports whether the device
// was previously in error.
func (d *Device) ClearErr() bool {
	cleared := d.err != ""
	d.err = ""
	return cleared
}

// Set issues a remote write of value through the device's setter. Response
// errors from the host are reported by the setter, not returned; transport
// failures are returned for the caller to handle.
func (d *Device) Set(ctx context.Context, value string) error {
	if d.setter == nil {
		return ErrNoSetter
	}
	return d.setter(ctx, d, value)
}
