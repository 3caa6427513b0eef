package device

import (
	"context"
	"errors"
	"testing"
)

func TestDevice_ValueAndError(t *testing.T) {
	host := NewHost("localhost:8080", []string{"lamp"})
	dev := New("lamp", host, nil)

	t.Run("error transition is reported once", func(t *testing.T) {
		if !dev.SetErr("stuck") {
			t.Error("SetErr() = false on first error, want true")
		}
		if dev.SetErr("still stuck") {
			t.Error("SetErr() = true while already in error, want false")
		}
		if dev.Err() != "still stuck" {
			t.Errorf("Err() = %q, want %q", dev.Err(), "still stuck")
		}
	})

	t.Run("clearing reports the transition", func(t *testing.T) {
		if !dev.ClearErr() {
			t.Error("ClearErr() = false while in error, want true")
		}
		if dev.ClearErr() {
			t.Error("ClearErr() = true while clean, want false")
		}
	})

	t.Run("error entry leaves value untouched", func(t *testing.T) {
		dev.SetValue("21.5")
		dev.SetErr("sensor fault")
		if dev.Value() != "21.5" {
			t.Errorf("Value() = %q after error, want %q", dev.Value(), "21.5")
		}
	})
}

func TestDevice_EffectiveErr(t *testing.T) {
	host := NewHost("localhost:8080", []string{"lamp"})
	dev := New("lamp", host, nil)

	if got := dev.EffectiveErr(); got != "" {
		t.Errorf("EffectiveErr() = %q on clean device, want empty", got)
	}

	dev.SetErr("sensor fault")
	if got := dev.EffectiveErr(); got != "sensor fault" {
		t.Errorf("EffectiveErr() = %q, want %q", got, "sensor fault")
	}

	// A host error masks the device-specific error...
	host.SetError("unreachable")
	if got := dev.EffectiveErr(); got != HostErrorMarker {
		t.Errorf("EffectiveErr() = %q during host error, want %q", got, HostErrorMarker)
	}

	// ...and the device-specific error resurfaces on recovery.
	host.ClearError()
	if got := dev.EffectiveErr(); got != "sensor fault" {
		t.Errorf("EffectiveErr() = %q after host recovery, want %q", got, "sensor fault")
	}
}

func TestDevice_Set(t *testing.T) {
	host := NewHost("localhost:8080", []string{"lamp"})

	t.Run("returns ErrNoSetter without a setter", func(t *testing.T) {
		dev := New("lamp", host, nil)
		if err := dev.Set(context.Background(), "on"); !errors.Is(err, ErrNoSetter) {
			t.Errorf("Set() error = %v, want ErrNoSetter", err)
		}
	})

	t.Run("invokes the setter with the device and value", func(t *testing.T) {
		var gotName, gotValue string
		setter := func(_ context.Context, d *Device, value string) error {
			gotName = d.Name()
			gotValue = value
			return nil
		}
		dev := New("lamp", host, setter)

		if err := dev.Set(context.Background(), "on"); err != nil {
			t.Fatalf("Set() error = %v", err)
		}
		if gotName != "lamp" || gotValue != "on" {
			t.Errorf("setter got (%q, %q), want (%q, %q)", gotName, gotValue, "lamp", "on")
		}
	})
}
