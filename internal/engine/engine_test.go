package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/switchboard-core/switchboard/internal/device"
	"github.com/switchboard-core/switchboard/internal/module"
)

func init() {
	// probe lets a test observe module invocations. The callback travels
	// through the params map, so each registration gets its own closure.
	module.RegisterHandler("probe", func(params map[string]any) (module.HandlerFunc, error) {
		fn, _ := params["fn"].(func(module.DeviceView))
		if fn == nil {
			return nil, errors.New("probe: missing fn param")
		}
		return func(_ context.Context, view module.DeviceView) error {
			fn(view)
			return nil
		}, nil
	})
}

// deviceWrite is one write captured by a fake host.
type deviceWrite struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// fakeHost serves the host REST contract with scriptable state. Raw body
// overrides take precedence over the structured state, so tests can make a
// healthy host start answering garbage.
type fakeHost struct {
	mu         sync.Mutex
	inventory  []string
	values     map[string]string
	errs       map[string]string
	omitted    map[string]bool
	infoBody   string
	valuesBody string
	writeBody  string
	writes     []deviceWrite

	srv *httptest.Server
}

func newFakeHost(t *testing.T, inventory ...string) *fakeHost {
	t.Helper()
	f := &fakeHost{
		inventory: inventory,
		values:    make(map[string]string),
		errs:      make(map[string]string),
		omitted:   make(map[string]bool),
	}
	f.srv = httptest.NewServer(http.HandlerFunc(f.handle))
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fakeHost) handle(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	switch r.URL.Path {
	case devicesInfoPath:
		if f.infoBody != "" {
			w.Write([]byte(f.infoBody))
			return
		}
		type entry struct {
			Name string `json:"name"`
		}
		devs := make([]entry, 0, len(f.inventory))
		for _, n := range f.inventory {
			devs = append(devs, entry{Name: n})
		}
		json.NewEncoder(w).Encode(map[string]any{"devices": devs})

	case devicesValuePath:
		if f.valuesBody != "" {
			w.Write([]byte(f.valuesBody))
			return
		}
		devs := make([]map[string]string, 0, len(f.inventory))
		for _, n := range f.inventory {
			if f.omitted[n] {
				continue
			}
			if msg, ok := f.errs[n]; ok {
				devs = append(devs, map[string]string{"name": n, "error": msg})
				continue
			}
			devs = append(devs, map[string]string{"name": n, "value": f.values[n]})
		}
		json.NewEncoder(w).Encode(map[string]any{"devices": devs})

	case deviceSetPath:
		var wr deviceWrite
		json.NewDecoder(r.Body).Decode(&wr)
		f.writes = append(f.writes, wr)
		w.Write([]byte(f.writeBody))

	default:
		http.NotFound(w, r)
	}
}

func (f *fakeHost) url() string { return f.srv.URL }

func (f *fakeHost) setValue(name, value string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.values[name] = value
	delete(f.errs, name)
}

func (f *fakeHost) setErr(name, msg string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errs[name] = msg
}

func (f *fakeHost) setValuesBody(body string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.valuesBody = body
}

func (f *fakeHost) setWriteBody(body string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.writeBody = body
}

func (f *fakeHost) lastWrite() (deviceWrite, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.writes) == 0 {
		return deviceWrite{}, false
	}
	return f.writes[len(f.writes)-1], true
}

// capturePublisher records published events for inspection.
type capturePublisher struct {
	mu     sync.Mutex
	topics []string
}

func (p *capturePublisher) Publish(topic string, _ []byte, _ byte, _ bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.topics = append(p.topics, topic)
	return nil
}

func (p *capturePublisher) count(topic string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, t := range p.topics {
		if t == topic {
			n++
		}
	}
	return n
}

// recordingStore records persistence calls and can be made to fail.
type recordingStore struct {
	mu      sync.Mutex
	hosts   []string
	modules map[string]bool
	fail    bool
}

func newRecordingStore() *recordingStore {
	return &recordingStore{modules: make(map[string]bool)}
}

func (s *recordingStore) SaveHost(_ context.Context, url string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail {
		return errors.New("store down")
	}
	s.hosts = append(s.hosts, url)
	return nil
}

func (s *recordingStore) SaveModule(_ context.Context, id, _ string, _ map[string]any, enabled bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail {
		return errors.New("store down")
	}
	s.modules[id] = enabled
	return nil
}

func (s *recordingStore) SetModuleEnabled(_ context.Context, id string, enabled bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail {
		return errors.New("store down")
	}
	s.modules[id] = enabled
	return nil
}

func newTestEngine(opts Options) *Engine {
	if opts.PollPeriod == 0 {
		opts.PollPeriod = 10 * time.Millisecond
	}
	return New(opts)
}

// cycle runs one reconciliation pass the way the polling loop would.
func cycle(e *Engine) {
	ctx := context.Background()
	e.mu.Lock()
	defer e.mu.Unlock()
	e.refreshAll(ctx)
	e.runModules(ctx)
}

func mustUpsert(t *testing.T, e *Engine, url string) {
	t.Helper()
	if err := e.UpsertHost(context.Background(), url); err != nil {
		t.Fatalf("UpsertHost(%s) error = %v", url, err)
	}
}

func deviceStatus(t *testing.T, e *Engine, name string) DeviceStatus {
	t.Helper()
	st, err := e.DeviceStatus(name)
	if err != nil {
		t.Fatalf("DeviceStatus(%q) error = %v", name, err)
	}
	return st
}

func TestUpsertHost_InitialValues(t *testing.T) {
	host := newFakeHost(t, "lamp", "fan")
	host.setValue("lamp", "on")
	host.setValue("fan", "low")

	e := newTestEngine(Options{RunOnStart: true})
	mustUpsert(t, e, host.url())

	if got := e.HostCount(); got != 1 {
		t.Errorf("HostCount() = %d, want 1", got)
	}
	if got := e.DeviceCount(); got != 2 {
		t.Errorf("DeviceCount() = %d, want 2", got)
	}

	// Registration includes one immediate refresh pass.
	if got := deviceStatus(t, e, "lamp").Value; got != "on" {
		t.Errorf("lamp value = %q, want %q", got, "on")
	}
	if got := deviceStatus(t, e, "fan").Value; got != "low" {
		t.Errorf("fan value = %q, want %q", got, "low")
	}
}

func TestUpsertHost_NormalizesBareURL(t *testing.T) {
	host := newFakeHost(t, "lamp")

	// Strip the scheme the test server reports.
	bare := host.url()[len("http://"):]

	e := newTestEngine(Options{RunOnStart: true})
	mustUpsert(t, e, bare)

	snap := e.Snapshot()
	if len(snap.Hosts) != 1 {
		t.Fatalf("Snapshot() hosts = %d, want 1", len(snap.Hosts))
	}
	if got := snap.Hosts[0].URL; got != host.url() {
		t.Errorf("host URL = %q, want %q", got, host.url())
	}
}

func TestUpsertHost_DuplicateDeviceRollsBack(t *testing.T) {
	host := newFakeHost(t)
	host.infoBody = `{"devices":[{"name":"lamp"},{"name":"lamp"}]}`

	e := newTestEngine(Options{RunOnStart: true})
	err := e.UpsertHost(context.Background(), host.url())
	if !errors.Is(err, ErrDuplicateDevice) {
		t.Fatalf("UpsertHost() error = %v, want %v", err, ErrDuplicateDevice)
	}

	if got := e.HostCount(); got != 0 {
		t.Errorf("HostCount() after failed upsert = %d, want 0", got)
	}
	if got := e.DeviceCount(); got != 0 {
		t.Errorf("DeviceCount() after failed upsert = %d, want 0", got)
	}
}

func TestUpsertHost_ConflictRollsBack(t *testing.T) {
	first := newFakeHost(t, "lamp", "fan")
	first.setValue("lamp", "on")
	second := newFakeHost(t, "lamp", "heater")

	e := newTestEngine(Options{RunOnStart: true})
	mustUpsert(t, e, first.url())

	err := e.UpsertHost(context.Background(), second.url())
	if !errors.Is(err, ErrDeviceConflict) {
		t.Fatalf("UpsertHost() error = %v, want %v", err, ErrDeviceConflict)
	}

	// Nothing from the failed registration leaks in, including devices
	// whose names were not in conflict.
	if got := e.HostCount(); got != 1 {
		t.Errorf("HostCount() = %d, want 1", got)
	}
	if _, err := e.DeviceStatus("heater"); !errors.Is(err, ErrDeviceNotFound) {
		t.Errorf("DeviceStatus(heater) error = %v, want %v", err, ErrDeviceNotFound)
	}
	if got := deviceStatus(t, e, "lamp").Host; got != first.url() {
		t.Errorf("lamp owner = %q, want %q", got, first.url())
	}
}

func TestUpsertHost_ReplacesInventory(t *testing.T) {
	host := newFakeHost(t, "lamp", "fan")
	host.setValue("lamp", "on")

	e := newTestEngine(Options{RunOnStart: true})
	mustUpsert(t, e, host.url())

	// The host comes back with a different device set.
	host.mu.Lock()
	host.inventory = []string{"lamp", "heater"}
	host.values = map[string]string{"lamp": "off", "heater": "21.5"}
	host.mu.Unlock()

	mustUpsert(t, e, host.url())

	if got := e.DeviceCount(); got != 2 {
		t.Errorf("DeviceCount() = %d, want 2", got)
	}
	if _, err := e.DeviceStatus("fan"); !errors.Is(err, ErrDeviceNotFound) {
		t.Errorf("DeviceStatus(fan) error = %v, want %v", err, ErrDeviceNotFound)
	}
	if got := deviceStatus(t, e, "heater").Value; got != "21.5" {
		t.Errorf("heater value = %q, want %q", got, "21.5")
	}
	if got := deviceStatus(t, e, "lamp").Value; got != "off" {
		t.Errorf("lamp value = %q, want %q", got, "off")
	}
}

func TestUpsertHost_UnreachableHost(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	e := newTestEngine(Options{RunOnStart: true})
	if err := e.UpsertHost(context.Background(), url); err == nil {
		t.Fatal("UpsertHost() should fail for an unreachable host")
	}
	if got := e.HostCount(); got != 0 {
		t.Errorf("HostCount() = %d, want 0", got)
	}
}

func TestUpsertHost_InvalidInventory(t *testing.T) {
	host := newFakeHost(t)
	host.infoBody = "<html>not a host</html>"

	e := newTestEngine(Options{RunOnStart: true})
	err := e.UpsertHost(context.Background(), host.url())
	if !errors.Is(err, errInvalidBody) {
		t.Fatalf("UpsertHost() error = %v, want %v", err, errInvalidBody)
	}
}

func TestRefresh_ValueChanges(t *testing.T) {
	host := newFakeHost(t, "lamp")
	host.setValue("lamp", "on")

	e := newTestEngine(Options{RunOnStart: true})
	mustUpsert(t, e, host.url())

	host.setValue("lamp", "off")
	cycle(e)

	if got := deviceStatus(t, e, "lamp").Value; got != "off" {
		t.Errorf("lamp value = %q, want %q", got, "off")
	}
}

func TestRefresh_DeviceErrorPreservesValue(t *testing.T) {
	host := newFakeHost(t, "lamp")
	host.setValue("lamp", "on")

	e := newTestEngine(Options{RunOnStart: true})
	mustUpsert(t, e, host.url())

	host.setErr("lamp", "bulb blown")
	cycle(e)

	st := deviceStatus(t, e, "lamp")
	if st.Error != "bulb blown" {
		t.Errorf("lamp error = %q, want %q", st.Error, "bulb blown")
	}
	// An error entry carries no value: the last good reading stays.
	if st.Value != "on" {
		t.Errorf("lamp value = %q, want %q", st.Value, "on")
	}

	// The next value report clears the error.
	host.setValue("lamp", "off")
	cycle(e)

	st = deviceStatus(t, e, "lamp")
	if st.Error != "" {
		t.Errorf("lamp error = %q, want cleared", st.Error)
	}
	if st.Value != "off" {
		t.Errorf("lamp value = %q, want %q", st.Value, "off")
	}
}

func TestRefresh_HostErrorMasksDevices(t *testing.T) {
	host := newFakeHost(t, "lamp", "fan")
	host.setValue("lamp", "on")
	host.setValue("fan", "low")

	e := newTestEngine(Options{RunOnStart: true})
	mustUpsert(t, e, host.url())

	// A reachable host that answers garbage is in error but connected.
	host.setValuesBody("complete nonsense")
	cycle(e)

	snap := e.Snapshot()
	if len(snap.Hosts) != 1 {
		t.Fatalf("Snapshot() hosts = %d, want 1", len(snap.Hosts))
	}
	if !snap.Hosts[0].Connected {
		t.Error("host should stay connected on an invalid body")
	}
	if snap.Hosts[0].Error == "" {
		t.Error("host should be in error state")
	}

	for _, name := range []string{"lamp", "fan"} {
		st := deviceStatus(t, e, name)
		if st.Error != device.HostErrorMarker {
			t.Errorf("%s error = %q, want %q", name, st.Error, device.HostErrorMarker)
		}
	}
	// Masking does not discard the last good readings.
	if got := deviceStatus(t, e, "lamp").Value; got != "on" {
		t.Errorf("lamp value = %q, want %q", got, "on")
	}

	// Recovery clears the marker on every owned device.
	host.setValuesBody("")
	cycle(e)

	snap = e.Snapshot()
	if snap.Hosts[0].Error != "" {
		t.Errorf("host error = %q, want cleared", snap.Hosts[0].Error)
	}
	if got := deviceStatus(t, e, "lamp").Error; got != "" {
		t.Errorf("lamp error = %q, want cleared", got)
	}
}

func TestRefresh_UnreachableHostDisconnects(t *testing.T) {
	host := newFakeHost(t, "lamp")
	host.setValue("lamp", "on")

	e := newTestEngine(Options{RunOnStart: true})
	mustUpsert(t, e, host.url())

	host.srv.Close()
	cycle(e)

	snap := e.Snapshot()
	if snap.Hosts[0].Connected {
		t.Error("host should be disconnected after a transport failure")
	}
	if snap.Hosts[0].Error == "" {
		t.Error("host should be in error state")
	}
}

func TestRefresh_FirstErrorWins(t *testing.T) {
	host := newFakeHost(t, "lamp")

	e := newTestEngine(Options{RunOnStart: true})
	mustUpsert(t, e, host.url())

	host.setValuesBody(`{"error":"overheating"}`)
	cycle(e)

	firstErr := e.Snapshot().Hosts[0].Error
	if firstErr == "" {
		t.Fatal("host should be in error state")
	}

	// A different failure while already in error does not replace the
	// recorded message.
	host.setValuesBody("garbage")
	cycle(e)

	if got := e.Snapshot().Hosts[0].Error; got != firstErr {
		t.Errorf("host error = %q, want first error %q kept", got, firstErr)
	}
}

func TestRefresh_HostErrorMaskRevealsDeviceError(t *testing.T) {
	host := newFakeHost(t, "lamp")
	host.setValue("lamp", "on")

	e := newTestEngine(Options{RunOnStart: true})
	mustUpsert(t, e, host.url())

	host.setErr("lamp", "bulb blown")
	cycle(e)

	host.setValuesBody("garbage")
	cycle(e)

	if got := deviceStatus(t, e, "lamp").Error; got != device.HostErrorMarker {
		t.Errorf("lamp error = %q, want %q", got, device.HostErrorMarker)
	}

	// When the host recovers, the device-specific error recorded before
	// the outage resurfaces.
	host.setValuesBody("")
	cycle(e)

	if got := deviceStatus(t, e, "lamp").Error; got != "bulb blown" {
		t.Errorf("lamp error = %q, want %q", got, "bulb blown")
	}
}

func TestRefresh_FormatViolations(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{name: "host-level error field", body: `{"error":"internal failure"}`},
		{name: "missing devices field", body: `{"status":"ok"}`},
		{name: "device without name", body: `{"devices":[{"value":"1"}]}`},
		{name: "unknown device name", body: `{"devices":[{"name":"ghost","value":"1"}]}`},
		{name: "entry with neither value nor error", body: `{"devices":[{"name":"lamp"}]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			host := newFakeHost(t, "lamp")
			host.setValue("lamp", "on")

			e := newTestEngine(Options{RunOnStart: true})
			mustUpsert(t, e, host.url())

			host.setValuesBody(tt.body)
			cycle(e)

			snap := e.Snapshot()
			if snap.Hosts[0].Error == "" {
				t.Error("host should be in error state")
			}
			// A response that fails validation contributes no values.
			if got := deviceStatus(t, e, "lamp").Value; got != "on" {
				t.Errorf("lamp value = %q, want %q untouched", got, "on")
			}
		})
	}
}

func TestRefresh_OmittedDeviceKeepsValue(t *testing.T) {
	host := newFakeHost(t, "lamp", "fan")
	host.setValue("lamp", "on")
	host.setValue("fan", "low")

	e := newTestEngine(Options{RunOnStart: true})
	mustUpsert(t, e, host.url())

	host.mu.Lock()
	host.omitted["fan"] = true
	host.mu.Unlock()
	cycle(e)

	// An omitted device is not a format violation; it keeps its value.
	if got := e.Snapshot().Hosts[0].Error; got != "" {
		t.Errorf("host error = %q, want none", got)
	}
	if got := deviceStatus(t, e, "fan").Value; got != "low" {
		t.Errorf("fan value = %q, want %q", got, "low")
	}
}

func TestSetDeviceValue(t *testing.T) {
	host := newFakeHost(t, "lamp")
	host.setValue("lamp", "on")

	e := newTestEngine(Options{RunOnStart: true})
	mustUpsert(t, e, host.url())

	if err := e.SetDeviceValue(context.Background(), "lamp", "off"); err != nil {
		t.Fatalf("SetDeviceValue() error = %v", err)
	}

	wr, ok := host.lastWrite()
	if !ok {
		t.Fatal("host received no write")
	}
	if wr.Name != "lamp" || wr.Value != "off" {
		t.Errorf("write = %+v, want {lamp off}", wr)
	}

	// The local view is untouched until the host reports the new value.
	if got := deviceStatus(t, e, "lamp").Value; got != "on" {
		t.Errorf("lamp value = %q, want %q until next refresh", got, "on")
	}
}

func TestSetDeviceValue_UnknownDevice(t *testing.T) {
	e := newTestEngine(Options{RunOnStart: true})
	err := e.SetDeviceValue(context.Background(), "ghost", "1")
	if !errors.Is(err, ErrDeviceNotFound) {
		t.Fatalf("SetDeviceValue() error = %v, want %v", err, ErrDeviceNotFound)
	}
}

func TestSetDeviceValue_HostRejection(t *testing.T) {
	host := newFakeHost(t, "lamp")

	e := newTestEngine(Options{RunOnStart: true})
	mustUpsert(t, e, host.url())

	// A host-reported rejection is logged, not raised.
	host.setWriteBody(`{"error":"read only"}`)
	if err := e.SetDeviceValue(context.Background(), "lamp", "off"); err != nil {
		t.Fatalf("SetDeviceValue() error = %v, want nil for a host-reported rejection", err)
	}
}

func TestSetDeviceValue_TransportFailure(t *testing.T) {
	host := newFakeHost(t, "lamp")

	e := newTestEngine(Options{RunOnStart: true})
	mustUpsert(t, e, host.url())

	host.srv.Close()
	if err := e.SetDeviceValue(context.Background(), "lamp", "off"); err == nil {
		t.Fatal("SetDeviceValue() should fail when the host is unreachable")
	}
}

func TestRegisterModule_RunsEachCycle(t *testing.T) {
	host := newFakeHost(t, "lamp")
	host.setValue("lamp", "on")

	e := newTestEngine(Options{RunOnStart: true})
	mustUpsert(t, e, host.url())

	var (
		mu    sync.Mutex
		seen  []string
		calls int
	)
	params := map[string]any{"fn": func(view module.DeviceView) {
		mu.Lock()
		defer mu.Unlock()
		calls++
		seen = seen[:0]
		for _, d := range view.Devices() {
			seen = append(seen, fmt.Sprintf("%s=%s", d.Name(), d.Value()))
		}
	}}

	if err := e.RegisterModule(context.Background(), "watcher", "probe", params); err != nil {
		t.Fatalf("RegisterModule() error = %v", err)
	}
	if got := e.ModuleCount(); got != 1 {
		t.Errorf("ModuleCount() = %d, want 1", got)
	}

	cycle(e)
	cycle(e)

	mu.Lock()
	defer mu.Unlock()
	if calls != 2 {
		t.Errorf("module ran %d times, want 2", calls)
	}
	if len(seen) != 1 || seen[0] != "lamp=on" {
		t.Errorf("module view = %v, want [lamp=on]", seen)
	}
}

func TestRegisterModule_UnknownHandler(t *testing.T) {
	e := newTestEngine(Options{RunOnStart: true})

	err := e.RegisterModule(context.Background(), "broken", "no_such_handler", nil)
	if !errors.Is(err, module.ErrUnknownHandler) {
		t.Fatalf("RegisterModule() error = %v, want %v", err, module.ErrUnknownHandler)
	}

	// The failure stays visible: the module is registered with its error.
	if !e.HasModule("broken") {
		t.Error("HasModule(broken) = false, want registered")
	}
	snap := e.Snapshot()
	if len(snap.Modules) != 1 || snap.Modules[0].InitError == "" {
		t.Errorf("Snapshot() modules = %+v, want one with an init error", snap.Modules)
	}
}

func TestRegisterModule_FactoryFailure(t *testing.T) {
	e := newTestEngine(Options{RunOnStart: true})

	// The probe factory rejects params without a callback.
	err := e.RegisterModule(context.Background(), "broken", "probe", nil)
	if err == nil {
		t.Fatal("RegisterModule() should surface the factory error")
	}
	if !e.HasModule("broken") {
		t.Error("HasModule(broken) = false, want registered")
	}
}

func TestRegisterModule_Replaces(t *testing.T) {
	e := newTestEngine(Options{RunOnStart: true})

	var first, second int
	if err := e.RegisterModule(context.Background(), "job", "probe", map[string]any{
		"fn": func(module.DeviceView) { first++ },
	}); err != nil {
		t.Fatalf("RegisterModule() error = %v", err)
	}
	if err := e.RegisterModule(context.Background(), "job", "probe", map[string]any{
		"fn": func(module.DeviceView) { second++ },
	}); err != nil {
		t.Fatalf("RegisterModule() error = %v", err)
	}

	cycle(e)

	if got := e.ModuleCount(); got != 1 {
		t.Errorf("ModuleCount() = %d, want 1", got)
	}
	if first != 0 || second != 1 {
		t.Errorf("invocations = (%d, %d), want the re-registration to win", first, second)
	}
}

func TestEnableDisableModule(t *testing.T) {
	e := newTestEngine(Options{RunOnStart: true})

	var calls int
	if err := e.RegisterModule(context.Background(), "job", "probe", map[string]any{
		"fn": func(module.DeviceView) { calls++ },
	}); err != nil {
		t.Fatalf("RegisterModule() error = %v", err)
	}

	if err := e.DisableModule(context.Background(), "job"); err != nil {
		t.Fatalf("DisableModule() error = %v", err)
	}
	cycle(e)
	if calls != 0 {
		t.Errorf("disabled module ran %d times, want 0", calls)
	}

	if err := e.EnableModule(context.Background(), "job"); err != nil {
		t.Fatalf("EnableModule() error = %v", err)
	}
	cycle(e)
	if calls != 1 {
		t.Errorf("re-enabled module ran %d times, want 1", calls)
	}

	if err := e.EnableModule(context.Background(), "ghost"); !errors.Is(err, ErrModuleNotFound) {
		t.Errorf("EnableModule(ghost) error = %v, want %v", err, ErrModuleNotFound)
	}
	if err := e.DisableModule(context.Background(), "ghost"); !errors.Is(err, ErrModuleNotFound) {
		t.Errorf("DisableModule(ghost) error = %v, want %v", err, ErrModuleNotFound)
	}
}

func TestRun_StopSuspendsReconciliation(t *testing.T) {
	host := newFakeHost(t, "lamp")
	host.setValue("lamp", "on")

	e := newTestEngine(Options{RunOnStart: false})
	mustUpsert(t, e, host.url())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() {
		e.Run(ctx)
		close(done)
	}()

	// While stopped the loop ticks but applies nothing.
	host.setValue("lamp", "off")
	time.Sleep(100 * time.Millisecond)
	if got := deviceStatus(t, e, "lamp").Value; got != "on" {
		t.Errorf("lamp value = %q while stopped, want %q", got, "on")
	}

	e.Start()
	deadline := time.After(2 * time.Second)
	for deviceStatus(t, e, "lamp").Value != "off" {
		select {
		case <-deadline:
			t.Fatal("value never refreshed after Start()")
		case <-time.After(10 * time.Millisecond):
		}
	}

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run() did not return on context cancellation")
	}
}

func TestRun_Terminate(t *testing.T) {
	e := newTestEngine(Options{RunOnStart: true})

	done := make(chan struct{})
	go func() {
		e.Run(context.Background())
		close(done)
	}()

	e.Terminate()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run() did not return after Terminate()")
	}
}

func TestEngine_PersistsRegistrations(t *testing.T) {
	host := newFakeHost(t, "lamp")
	st := newRecordingStore()

	e := newTestEngine(Options{RunOnStart: true, Store: st})
	mustUpsert(t, e, host.url())

	if err := e.RegisterModule(context.Background(), "job", "probe", map[string]any{
		"fn": func(module.DeviceView) {},
	}); err != nil {
		t.Fatalf("RegisterModule() error = %v", err)
	}
	if err := e.DisableModule(context.Background(), "job"); err != nil {
		t.Fatalf("DisableModule() error = %v", err)
	}

	st.mu.Lock()
	defer st.mu.Unlock()
	if len(st.hosts) != 1 || st.hosts[0] != host.url() {
		t.Errorf("persisted hosts = %v, want [%s]", st.hosts, host.url())
	}
	if enabled, ok := st.modules["job"]; !ok || enabled {
		t.Errorf("persisted module state = (%v, %v), want disabled", enabled, ok)
	}
}

func TestEngine_StoreFailureIsNotFatal(t *testing.T) {
	host := newFakeHost(t, "lamp")
	st := newRecordingStore()
	st.fail = true

	e := newTestEngine(Options{RunOnStart: true, Store: st})

	// Registrations succeed in memory even when persistence is down.
	mustUpsert(t, e, host.url())
	if err := e.RegisterModule(context.Background(), "job", "probe", map[string]any{
		"fn": func(module.DeviceView) {},
	}); err != nil {
		t.Fatalf("RegisterModule() error = %v", err)
	}
	if got := e.HostCount(); got != 1 {
		t.Errorf("HostCount() = %d, want 1", got)
	}
}

func TestEvents_PublishedOnTransitions(t *testing.T) {
	host := newFakeHost(t, "lamp")
	host.setValue("lamp", "on")

	pub := &capturePublisher{}
	e := newTestEngine(Options{RunOnStart: true, Publisher: pub})
	mustUpsert(t, e, host.url())

	stateTopic := "switchboard/device/lamp/state"
	if got := pub.count(stateTopic); got != 1 {
		t.Errorf("device state events after registration = %d, want 1", got)
	}

	// An unchanged value publishes nothing.
	cycle(e)
	if got := pub.count(stateTopic); got != 1 {
		t.Errorf("device state events after idle cycle = %d, want 1", got)
	}

	host.setValue("lamp", "off")
	cycle(e)
	if got := pub.count(stateTopic); got != 2 {
		t.Errorf("device state events after value change = %d, want 2", got)
	}

	// A host failure publishes a host status event plus one state event
	// per masked device.
	host.setValuesBody("garbage")
	cycle(e)

	pub.mu.Lock()
	var hostEvents int
	for _, topic := range pub.topics {
		if len(topic) > len("switchboard/host/") && topic[:len("switchboard/host/")] == "switchboard/host/" {
			hostEvents++
		}
	}
	pub.mu.Unlock()
	if hostEvents != 1 {
		t.Errorf("host status events = %d, want 1", hostEvents)
	}
	if got := pub.count(stateTopic); got != 3 {
		t.Errorf("device state events after host error = %d, want 3", got)
	}
}
