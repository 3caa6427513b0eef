package engine

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/switchboard-core/switchboard/internal/device"
	"github.com/switchboard-core/switchboard/internal/infrastructure/mqtt"
)

// eventQoS is the delivery guarantee for state events: at least once.
const eventQoS = 1

// deviceStateEvent is the payload published when a device's value or
// effective error transitions.
type deviceStateEvent struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Host      string    `json:"host"`
	Value     string    `json:"value,omitempty"`
	Error     string    `json:"error,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// hostStatusEvent is the payload published when a host enters or leaves
// error state.
type hostStatusEvent struct {
	ID        string    `json:"id"`
	URL       string    `json:"url"`
	Connected bool      `json:"connected"`
	Error     string    `json:"error,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// publishDeviceState emits the device's current state as a retained event,
// so a late subscriber immediately sees the last known state. Best-effort:
// a publish failure is logged and the cycle continues.
func (e *Engine) publishDeviceState(d *device.Device) {
	if e.events == nil {
		return
	}

	evt := deviceStateEvent{
		ID:        uuid.NewString(),
		Name:      d.Name(),
		Host:      d.HostURL(),
		Value:     d.Value(),
		Error:     d.EffectiveErr(),
		Timestamp: time.Now().UTC(),
	}
	payload, err := json.Marshal(evt)
	if err != nil {
		e.logger.Error("marshalling device state event", "device", d.Name(), "error", err)
		return
	}

	topic := mqtt.Topics{}.DeviceState(d.Name())
	if err := e.events.Publish(topic, payload, eventQoS, true); err != nil {
		e.logger.Warn("publishing device state failed", "device", d.Name(), "error", err)
	}
}

// publishHostStatus emits the host's status as a retained event.
func (e *Engine) publishHostStatus(h *device.Host) {
	if e.events == nil {
		return
	}

	evt := hostStatusEvent{
		ID:        uuid.NewString(),
		URL:       h.URL(),
		Connected: h.Connected(),
		Error:     h.Err(),
		Timestamp: time.Now().UTC(),
	}
	payload, err := json.Marshal(evt)
	if err != nil {
		e.logger.Error("marshalling host status event", "host", h.URL(), "error", err)
		return
	}

	topic := mqtt.Topics{}.HostStatus(mqtt.HostID(h.URL()))
	if err := e.events.Publish(topic, payload, eventQoS, true); err != nil {
		e.logger.Warn("publishing host status failed", "host", h.URL(), "error", err)
	}
}
