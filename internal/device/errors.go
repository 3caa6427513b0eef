package device

import "errors"

// Domain errors for the device package. Check with errors.Is().
var (
	// ErrNoSetter is returned by Device.Set when no setter was configured.
	ErrNoSetter = errors.New("device: no setter configured")
)
