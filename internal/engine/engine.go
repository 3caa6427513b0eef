package engine

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/switchboard-core/switchboard/internal/device"
	"github.com/switchboard-core/switchboard/internal/module"
)

// Logger defines the logging interface used by the Engine.
// This allows different logging implementations to be used.
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

// Publisher is the interface for publishing state events to subscribers.
// It matches the infrastructure MQTT client; a nil publisher disables
// event publication.
type Publisher interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
}

// Store persists host and module registrations so they survive a restart.
// Persistence is best-effort: a store failure is logged, never fatal, and
// never rolls back the in-memory registration.
type Store interface {
	SaveHost(ctx context.Context, url string) error
	SaveModule(ctx context.Context, id, handler string, params map[string]any, enabled bool) error
	SetModuleEnabled(ctx context.Context, id string, enabled bool) error
}

// Options configures a new Engine.
type Options struct {
	// PollPeriod is the fixed delay between reconciliation cycles.
	PollPeriod time.Duration

	// RunOnStart determines whether cycles apply refreshes and modules
	// immediately, or only after an explicit Start().
	RunOnStart bool

	// HTTPClient overrides the HTTP client used for host requests.
	HTTPClient *http.Client

	// Publisher receives device-state and host-status events (optional).
	Publisher Publisher

	// Store persists registrations (optional).
	Store Store

	// Logger is the engine logger (optional).
	Logger Logger
}

// Engine is the reconciliation engine: the single source of truth for
// hosts, devices, and modules. See the package documentation for the
// concurrency and error-handling model.
type Engine struct {
	mu      sync.Mutex
	hosts   map[string]*device.Host
	devices map[string]*device.Device
	modules map[string]*module.Module

	// running gates whether a cycle refreshes values and applies modules;
	// terminate ends the loop at the next cycle boundary. Both live under mu.
	running   bool
	terminate bool

	pollPeriod time.Duration
	client     *client
	events     Publisher
	store      Store
	logger     Logger
}

// New creates an engine. It does not contact any host; register hosts with
// UpsertHost and start the loop with Run.
func New(opts Options) *Engine {
	logger := opts.Logger
	if logger == nil {
		logger = noopLogger{}
	}
	return &Engine{
		hosts:      make(map[string]*device.Host),
		devices:    make(map[string]*device.Device),
		modules:    make(map[string]*module.Module),
		running:    opts.RunOnStart,
		pollPeriod: opts.PollPeriod,
		client:     newClient(opts.HTTPClient),
		events:     opts.Publisher,
		store:      opts.Store,
		logger:     logger,
	}
}

// Run drives the polling loop until ctx is cancelled or Terminate is
// called. Each cycle sleeps for the poll period, then — only while the
// engine is running — refreshes every host's device values and invokes
// every module, all under the shared lock. A single cycle's failures never
// stop the loop.
func (e *Engine) Run(ctx context.Context) {
	e.logger.Info("polling loop started", "period", e.pollPeriod)

	for {
		select {
		case <-ctx.Done():
			e.logger.Info("polling loop cancelled")
			return
		case <-time.After(e.pollPeriod):
		}

		e.mu.Lock()
		if e.terminate {
			e.mu.Unlock()
			e.logger.Info("polling loop terminated")
			return
		}
		if e.running {
			e.refreshAll(ctx)
			e.runModules(ctx)
		}
		e.mu.Unlock()
	}
}

// Start resumes reconciliation: subsequent cycles refresh values and apply
// modules again.
func (e *Engine) Start() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.running = true
	e.logger.Info("engine started")
}

// Stop suspends reconciliation. The loop keeps ticking, but cycles become
// no-ops until Start is called.
func (e *Engine) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.running = false
	e.logger.Info("engine stopped")
}

// IsRunning reports whether cycles currently apply refreshes and modules.
func (e *Engine) IsRunning() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.running
}

// Terminate ends the polling loop at the next cycle boundary. Cancellation
// is cooperative: an in-flight cycle always completes.
func (e *Engine) Terminate() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.terminate = true
}

// RegisterModule binds a module identifier to a registered handler,
// replacing any previous binding (module updates are explicit re-register
// calls). An unknown handler name or a factory failure registers the
// module with a pending initialization error — visible in snapshots, inert
// in cycles — and that error is returned for the caller to surface.
func (e *Engine) RegisterModule(ctx context.Context, id, handlerName string, params map[string]any) error {
	var (
		m       *module.Module
		initErr error
	)

	factory, ok := module.LookupHandler(handlerName)
	if !ok {
		initErr = fmt.Errorf("%w: %q", module.ErrUnknownHandler, handlerName)
	} else {
		handler, err := factory(params)
		if err != nil {
			initErr = fmt.Errorf("initialising handler %q: %w", handlerName, err)
		} else {
			m = module.New(id, handler)
		}
	}
	if initErr != nil {
		m = module.NewFailed(id, initErr)
		e.logger.Warn("module registered with error", "module", id, "handler", handlerName, "error", initErr)
	} else {
		e.logger.Info("module registered", "module", id, "handler", handlerName)
	}

	e.mu.Lock()
	e.modules[id] = m
	e.mu.Unlock()

	e.persistModule(ctx, id, handlerName, params, m.Enabled())
	return initErr
}

// HasModule reports whether a module with the given identifier is
// registered, whether or not it initialised successfully.
func (e *Engine) HasModule(id string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, ok := e.modules[id]
	return ok
}

// EnableModule enables the named module. Enabling a module that failed to
// initialize is allowed but yields no behaviour change until it is
// re-registered successfully.
func (e *Engine) EnableModule(ctx context.Context, id string) error {
	e.mu.Lock()
	m, ok := e.modules[id]
	if !ok {
		e.mu.Unlock()
		return fmt.Errorf("%w: %q", ErrModuleNotFound, id)
	}
	m.Enable()
	initErr := m.InitErr()
	e.mu.Unlock()

	if initErr != nil {
		e.logger.Warn("module enabled but will not run", "module", id, "error", initErr)
	} else {
		e.logger.Info("module enabled", "module", id)
	}
	e.persistModuleEnabled(ctx, id, true)
	return nil
}

// DisableModule disables the named module.
func (e *Engine) DisableModule(ctx context.Context, id string) error {
	e.mu.Lock()
	m, ok := e.modules[id]
	if !ok {
		e.mu.Unlock()
		return fmt.Errorf("%w: %q", ErrModuleNotFound, id)
	}
	m.Disable()
	e.mu.Unlock()

	e.logger.Info("module disabled", "module", id)
	e.persistModuleEnabled(ctx, id, false)
	return nil
}

func (e *Engine) persistModule(ctx context.Context, id, handler string, params map[string]any, enabled bool) {
	if e.store == nil {
		return
	}
	if err := e.store.SaveModule(ctx, id, handler, params, enabled); err != nil {
		e.logger.Warn("persisting module registration failed", "module", id, "error", err)
	}
}

func (e *Engine) persistModuleEnabled(ctx context.Context, id string, enabled bool) {
	if e.store == nil {
		return
	}
	if err := e.store.SetModuleEnabled(ctx, id, enabled); err != nil {
		e.logger.Warn("persisting module state failed", "module", id, "error", err)
	}
}
