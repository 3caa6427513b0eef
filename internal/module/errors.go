package module

import "errors"

// Domain errors for the module package. Check with errors.Is().
var (
	// ErrUnknownHandler is returned when no factory is registered under the
	// requested handler name.
	ErrUnknownHandler = errors.New("module: unknown handler")

	// ErrInvalidParams is returned by a factory when the configured handler
	// parameters are missing or of the wrong type.
	ErrInvalidParams = errors.New("module: invalid handler params")

	// ErrDeviceUnavailable is returned by a handler when a device it was
	// configured against is not currently known to the engine.
	ErrDeviceUnavailable = errors.New("module: device unavailable")
)
