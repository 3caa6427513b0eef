package module

import (
	"context"
	"fmt"
)

// Logger defines the logging interface used by builtin handlers.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// NewValueLogger returns a handler that logs every device's value, or its
// effective error when one is present. Useful as a smoke-test module and as
// a template for custom handlers.
func NewValueLogger(log Logger) HandlerFunc {
	if log == nil {
		log = noopLogger{}
	}
	return func(_ context.Context, view DeviceView) error {
		for _, d := range view.Devices() {
			if msg := d.EffectiveErr(); msg != "" {
				log.Warn("device in error", "device", d.Name(), "host", d.HostURL(), "error", msg)
				continue
			}
			log.Info("device value", "device", d.Name(), "host", d.HostURL(), "value", d.Value())
		}
		return nil
	}
}

// ValueLoggerFactory adapts NewValueLogger to the registry contract.
// The handler takes no parameters.
func ValueLoggerFactory(log Logger) HandlerFactory {
	return func(_ map[string]any) (HandlerFunc, error) {
		return NewValueLogger(log), nil
	}
}

// NewMirror returns a handler that copies the source device's value to the
// target device through its setter. Devices in error are skipped; a missing
// device is a handler error so misconfiguration surfaces in the cycle log.
func NewMirror(source, target string) HandlerFunc {
	return func(ctx context.Context, view DeviceView) error {
		src, ok := view.Device(source)
		if !ok {
			return fmt.Errorf("%w: source %q", ErrDeviceUnavailable, source)
		}
		dst, ok := view.Device(target)
		if !ok {
			return fmt.Errorf("%w: target %q", ErrDeviceUnavailable, target)
		}
		if src.EffectiveErr() != "" || dst.EffectiveErr() != "" {
			return nil
		}
		if src.Value() == dst.Value() {
			return nil
		}
		return dst.Set(ctx, src.Value())
	}
}

// MirrorFactory builds a mirror handler from its configured parameters.
// Required params: "source" and "target", both non-empty strings.
func MirrorFactory(params map[string]any) (HandlerFunc, error) {
	source, err := stringParam(params, "source")
	if err != nil {
		return nil, err
	}
	target, err := stringParam(params, "target")
	if err != nil {
		return nil, err
	}
	return NewMirror(source, target), nil
}

// stringParam extracts a required non-empty string parameter.
func stringParam(params map[string]any, key string) (string, error) {
	raw, ok := params[key]
	if !ok {
		return "", fmt.Errorf("%w: missing %q", ErrInvalidParams, key)
	}
	s, ok := raw.(string)
	if !ok || s == "" {
		return "", fmt.Errorf("%w: %q must be a non-empty string", ErrInvalidParams, key)
	}
	return s, nil
}
