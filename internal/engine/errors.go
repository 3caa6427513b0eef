package engine

import "errors"

// Domain errors for the engine package. Check with errors.Is().
var (
	// ErrDuplicateDevice is returned when a host's inventory lists the same
	// device name twice.
	ErrDuplicateDevice = errors.New("engine: duplicate device on host")

	// ErrDeviceConflict is returned when a host's inventory claims a device
	// name already owned by a different registered host.
	ErrDeviceConflict = errors.New("engine: device owned by another host")

	// ErrDeviceNotFound is returned when a device name is not known to the
	// engine.
	ErrDeviceNotFound = errors.New("engine: device not found")

	// ErrModuleNotFound is returned when a module identifier is not known
	// to the engine.
	ErrModuleNotFound = errors.New("engine: module not found")
)
