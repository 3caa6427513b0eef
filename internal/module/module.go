package module

import (
	"context"

	"github.com/switchboard-core/switchboard/internal/device"
)

// DeviceView is the read access a module receives each cycle. Lookups go
// through the view on every invocation, so a module never holds a handle to
// a device that its host has since replaced.
type DeviceView interface {
	// Device returns the named device, if known to the engine.
	Device(name string) (*device.Device, bool)

	// Devices returns all known devices, sorted by name.
	Devices() []*device.Device
}

// HandlerFunc is the processing body of a module. It runs under the
// engine's reconciliation lock; it should not block for long periods.
type HandlerFunc func(ctx context.Context, view DeviceView) error

// HandlerFactory builds a handler from its configured parameters.
type HandlerFactory func(params map[string]any) (HandlerFunc, error)

// Module binds a stable identifier to a handler plus its runtime state:
// an enabled flag and an optional initialization error. The engine surfaces
// the initialization error but does not interpret it; a module with a
// pending initialization error may be enabled, but yields no behaviour
// until re-registered successfully.
type Module struct {
	id      string
	handler HandlerFunc
	enabled bool
	initErr error
}

// New creates an enabled module with the given handler.
func New(id string, handler HandlerFunc) *Module {
	return &Module{
		id:      id,
		handler: handler,
		enabled: true,
	}
}

// NewFailed creates a module whose initialization failed. It is registered
// so the failure stays visible, but Run is a no-op until re-registration
// clears the error.
func NewFailed(id string, initErr error) *Module {
	return &Module{
		id:      id,
		initErr: initErr,
	}
}

// ID returns the module's stable identifier.
func (m *Module) ID() string { return m.id }

// Enabled reports whether the module participates in polling cycles.
func (m *Module) Enabled() bool { return m.enabled }

// Enable turns the module on. Pure state toggle: enabling a module with a
// pending initialization error is allowed but changes no behaviour.
func (m *Module) Enable() { m.enabled = true }

// Disable turns the module off.
func (m *Module) Disable() { m.enabled = false }

// InitErr returns the initialization error, or nil.
func (m *Module) InitErr() error { return m.initErr }

// Run invokes the handler with the current device view. Disabled modules
// and modules with a pending initialization error are skipped silently.
func (m *Module) Run(ctx context.Context, view DeviceView) error {
	if !m.enabled || m.initErr != nil || m.handler == nil {
		return nil
	}
	return m.handler(ctx, view)
}
