package engine

import (
	"context"
	"sort"

	"github.com/switchboard-core/switchboard/internal/device"
	"github.com/switchboard-core/switchboard/internal/module"
)

// deviceView adapts the engine's device map to the module contract. It is
// only handed to modules while the engine lock is held, so plain map reads
// are safe.
type deviceView struct {
	devices map[string]*device.Device
}

func (v deviceView) Device(name string) (*device.Device, bool) {
	d, ok := v.devices[name]
	return d, ok
}

func (v deviceView) Devices() []*device.Device {
	devs := make([]*device.Device, 0, len(v.devices))
	for _, d := range v.devices {
		devs = append(devs, d)
	}
	sort.Slice(devs, func(i, j int) bool { return devs[i].Name() < devs[j].Name() })
	return devs
}

// runModules invokes every registered module, in map order. Order carries
// no semantics: modules must not assume ordering or interdependence. A
// module's error is logged, never interpreted, and never stops the cycle.
// Callers must hold e.mu.
func (e *Engine) runModules(ctx context.Context) {
	view := deviceView{devices: e.devices}
	for _, m := range e.modules {
		if err := m.Run(ctx, view); err != nil {
			e.logger.Error("module failed", "module", m.ID(), "error", err)
		}
	}
}

var _ module.DeviceView = deviceView{}
