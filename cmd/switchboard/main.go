// Switchboard - Device Polling Hub
//
// This is the main entry point for the Switchboard hub. Switchboard
// maintains a live view of named devices spread across remote
// device-hosting services:
//   - Polls every registered host on a fixed cycle
//   - Runs processing modules against the refreshed view
//   - Exposes a control API for hosts, devices, modules, and the engine
//   - Publishes state events over MQTT for external subscribers
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/switchboard-core/switchboard/migrations"

	"github.com/switchboard-core/switchboard/internal/api"
	"github.com/switchboard-core/switchboard/internal/engine"
	"github.com/switchboard-core/switchboard/internal/infrastructure/config"
	"github.com/switchboard-core/switchboard/internal/infrastructure/database"
	"github.com/switchboard-core/switchboard/internal/infrastructure/logging"
	"github.com/switchboard-core/switchboard/internal/infrastructure/mqtt"
	"github.com/switchboard-core/switchboard/internal/module"
	"github.com/switchboard-core/switchboard/internal/store"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"     // Semantic version (e.g., "1.0.0")
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

func main() {
	// Create a context that cancels on interrupt signals (Ctrl+C, SIGTERM)
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	registerHandlers()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// registerHandlers installs the built-in module handlers.
// Handler names are what config files and the persisted store refer to.
func registerHandlers() {
	log := logging.Default()
	module.RegisterHandler("log_values", module.ValueLoggerFactory(log))
	module.RegisterHandler("mirror", module.MirrorFactory)
}

// run is the actual application logic, separated from main for testability.
// Returning an error allows main to handle exit codes consistently.
//
// Parameters:
//   - ctx: Context for cancellation and shutdown signals
//
// Returns:
//   - error: nil on clean shutdown, or error describing failure
func run(ctx context.Context) error {
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting Switchboard",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	// Load configuration
	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath)

	// Reinitialise logger with config settings
	log = logging.New(cfg.Logging, version)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	// Open database
	db, err := database.Open(database.Config{
		Path:        cfg.Database.Path,
		WALMode:     cfg.Database.WALMode,
		BusyTimeout: cfg.Database.BusyTimeout,
	})
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer func() {
		log.Info("closing database")
		if closeErr := db.Close(); closeErr != nil {
			log.Error("error closing database", "error", closeErr)
		}
	}()
	log.Info("database connected", "path", cfg.Database.Path)

	// Run migrations
	if migrateErr := db.Migrate(ctx); migrateErr != nil {
		return fmt.Errorf("running migrations: %w", migrateErr)
	}
	log.Info("database migrations complete")

	registrations := store.New(db.DB)

	// Connect to MQTT broker (optional)
	var events engine.Publisher
	if cfg.MQTT.Enabled {
		mqttClient, mqttErr := mqtt.Connect(cfg.MQTT)
		if mqttErr != nil {
			return fmt.Errorf("connecting to MQTT: %w", mqttErr)
		}
		defer func() {
			log.Info("disconnecting from MQTT")
			if closeErr := mqttClient.Close(); closeErr != nil {
				log.Error("error closing MQTT", "error", closeErr)
			}
		}()
		log.Info("MQTT connected",
			"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
			"client_id", cfg.MQTT.Broker.ClientID,
		)

		mqttClient.SetOnConnect(func() {
			log.Info("MQTT reconnected")
		})
		mqttClient.SetOnDisconnect(func(err error) {
			log.Warn("MQTT disconnected", "error", err)
		})

		events = mqttClient
	} else {
		log.Info("MQTT disabled")
	}

	// Create the engine
	eng := engine.New(engine.Options{
		PollPeriod: cfg.PollPeriod(),
		RunOnStart: cfg.Hub.RunOnStart,
		Publisher:  events,
		Store:      registrations,
		Logger:     log.With("component", "engine"),
	})

	// Register hosts and modules: config first, then the persisted
	// registrations from previous runs.
	if err := registerConfigured(ctx, eng, cfg, log); err != nil {
		return err
	}
	replayStored(ctx, eng, registrations, log)

	// Start the control API
	apiServer, err := api.New(api.Deps{
		Config:     cfg.API,
		Logger:     log.With("component", "api"),
		Engine:     eng,
		AdminEmail: cfg.Hub.AdminEmail,
		Version:    version,
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}
	if err := apiServer.Start(ctx); err != nil {
		return fmt.Errorf("starting API server: %w", err)
	}
	defer func() {
		if closeErr := apiServer.Close(); closeErr != nil {
			log.Error("error closing API server", "error", closeErr)
		}
	}()
	log.Info("API server started", "address", fmt.Sprintf("%s:%d", cfg.API.Host, cfg.API.Port))

	log.Info("initialisation complete",
		"hosts", eng.HostCount(),
		"devices", eng.DeviceCount(),
		"modules", eng.ModuleCount(),
		"running", eng.IsRunning(),
	)

	// Drive the polling loop until shutdown
	eng.Run(ctx)

	log.Info("shutdown signal received, cleaning up")

	// Deferred Close() calls run in reverse order:
	// 1. API server
	// 2. MQTT (if enabled)
	// 3. Database

	log.Info("Switchboard stopped")
	return nil
}

// registerConfigured registers the hosts and modules declared in the
// config file. A configured host that cannot be registered is fatal:
// the operator explicitly asked for it, so starting without it would
// silently run a different system than the one configured.
func registerConfigured(ctx context.Context, eng *engine.Engine, cfg *config.Config, log *logging.Logger) error {
	for _, url := range cfg.Hosts {
		if err := eng.UpsertHost(ctx, url); err != nil {
			return fmt.Errorf("registering configured host %s: %w", url, err)
		}
	}

	for _, m := range cfg.Modules {
		if err := eng.RegisterModule(ctx, m.ID, m.Handler, m.Params); err != nil {
			// A failed module is registered disabled-in-effect; the
			// operator can inspect it via the API. Not fatal.
			log.Warn("configured module failed to initialise", "module", m.ID, "error", err)
			continue
		}
		if !m.StartEnabled() {
			if err := eng.DisableModule(ctx, m.ID); err != nil {
				log.Warn("disabling configured module failed", "module", m.ID, "error", err)
			}
		}
	}

	return nil
}

// replayStored re-registers hosts and modules persisted in previous runs.
// Stored registrations are best-effort: a host that has gone away since
// the last run is logged and skipped, not fatal.
func replayStored(ctx context.Context, eng *engine.Engine, registrations *store.Store, log *logging.Logger) {
	hosts, err := registrations.ListHosts(ctx)
	if err != nil {
		log.Error("loading stored hosts failed", "error", err)
	}
	for _, h := range hosts {
		if err := eng.UpsertHost(ctx, h.URL); err != nil {
			log.Warn("stored host unavailable", "host", h.URL, "error", err)
		}
	}

	modules, err := registrations.ListModules(ctx)
	if err != nil {
		log.Error("loading stored modules failed", "error", err)
	}
	for _, m := range modules {
		if eng.HasModule(m.ID) {
			continue // config declaration wins over the stored copy
		}
		if err := eng.RegisterModule(ctx, m.ID, m.Handler, m.Params); err != nil {
			log.Warn("stored module failed to initialise", "module", m.ID, "error", err)
			continue
		}
		if !m.Enabled {
			if err := eng.DisableModule(ctx, m.ID); err != nil {
				log.Warn("disabling stored module failed", "module", m.ID, "error", err)
			}
		}
	}
}

// getConfigPath returns the configuration file path.
// Uses SWITCHBOARD_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("SWITCHBOARD_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}
