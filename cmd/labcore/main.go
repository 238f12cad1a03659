// Lab Core - Instrument Parameter Management Service
//
// This is the main entry point for the Lab Core application.
// Lab Core connects bench instruments to the lab network:
//   - Named, typed, validated instrument parameters with optimistic caching
//   - Recursive state snapshots with a persisted reproducibility log
//   - REST + WebSocket API for dashboards and measurement scripts
//   - MQTT state/command topics and InfluxDB telemetry
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/openlabctl/labcore/migrations"

	"github.com/openlabctl/labcore/internal/api"
	"github.com/openlabctl/labcore/internal/drivers/dp800"
	"github.com/openlabctl/labcore/internal/infrastructure/config"
	"github.com/openlabctl/labcore/internal/infrastructure/database"
	"github.com/openlabctl/labcore/internal/infrastructure/influxdb"
	"github.com/openlabctl/labcore/internal/infrastructure/logging"
	"github.com/openlabctl/labcore/internal/infrastructure/mqtt"
	"github.com/openlabctl/labcore/internal/instrument"
	"github.com/openlabctl/labcore/internal/monitor"
	"github.com/openlabctl/labcore/internal/sim"
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

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
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
	log.Info("starting Lab Core",
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

	// Snapshot reproducibility log
	snapshotStore := instrument.NewSQLiteSnapshotStore(db.DB)

	// Instrument registry; instruments register on connect and are closed
	// together during shutdown
	registry := instrument.NewRegistry()

	// Connect to MQTT broker (optional)
	var mqttClient *mqtt.Client
	if cfg.MQTT.Enabled {
		mqttClient, err = mqtt.Connect(cfg.MQTT)
		if err != nil {
			return fmt.Errorf("connecting to MQTT: %w", err)
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
	} else {
		log.Info("MQTT disabled")
	}

	// Connect to InfluxDB (optional)
	var influxClient *influxdb.Client
	if cfg.InfluxDB.Enabled {
		influxClient, err = influxdb.Connect(cfg.InfluxDB)
		if err != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", err)
		}
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)

		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
	} else {
		log.Info("InfluxDB disabled")
	}

	// WebSocket hub is created before the API server so the monitor can
	// use it as a broadcast sink
	hub := api.NewHub(cfg.WebSocket, log)
	go hub.Run(ctx)

	// Monitor fans parameter updates out to MQTT, InfluxDB, and WebSocket.
	// Sinks are interface fields; assign only live clients so a disabled
	// backend stays a nil interface.
	monOpts := monitor.Options{
		Registry:  registry,
		Broadcast: hub,
		Logger:    log,
	}
	if mqttClient != nil {
		monOpts.Publisher = mqttClient
	}
	if influxClient != nil {
		monOpts.Writer = influxClient
	}
	mon, err := monitor.New(monOpts)
	if err != nil {
		return fmt.Errorf("creating monitor: %w", err)
	}

	// Route inbound MQTT set commands to parameters
	if mqttClient != nil {
		if bindErr := mon.BindCommands(mqttClient, byte(cfg.MQTT.QoS)); bindErr != nil {
			return fmt.Errorf("binding MQTT command topics: %w", bindErr)
		}
		log.Info("MQTT command topics bound")
	}

	// Start the built-in SCPI simulator (optional)
	if cfg.Simulator.Enabled {
		simulator := sim.New(log)
		if simErr := simulator.Start(cfg.Simulator.Listen); simErr != nil {
			return fmt.Errorf("starting simulator: %w", simErr)
		}
		defer func() {
			log.Info("stopping simulator")
			if closeErr := simulator.Close(); closeErr != nil {
				log.Error("error closing simulator", "error", closeErr)
			}
		}()
		log.Info("simulator started", "address", simulator.Addr())
	}

	// Connect configured instruments
	if connErr := connectInstruments(cfg, registry, mon, log); connErr != nil {
		registry.CloseAll()
		return connErr
	}
	defer func() {
		log.Info("closing instruments", "count", registry.Count())
		registry.CloseAll()
	}()

	// Start API server
	server, err := api.New(api.Deps{
		Config:    cfg.API,
		WS:        cfg.WebSocket,
		Security:  cfg.Security,
		Logger:    log,
		Registry:  registry,
		Snapshots: snapshotStore,
		Notifier:  mon,
		Hub:       hub,
		Version:   version,
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}
	if startErr := server.Start(ctx); startErr != nil {
		return fmt.Errorf("starting API server: %w", startErr)
	}
	defer func() {
		if closeErr := server.Close(); closeErr != nil {
			log.Error("error closing API server", "error", closeErr)
		}
	}()
	log.Info("API server started", "address", fmt.Sprintf("%s:%d", cfg.API.Host, cfg.API.Port))

	// Verify all connections are healthy
	if err := healthCheck(ctx, db, mqttClient, influxClient); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("all health checks passed")

	log.Info("initialisation complete, waiting for shutdown signal")

	// Wait for shutdown signal
	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")

	// Deferred Close() calls run in reverse order:
	// 1. API server
	// 2. Instruments
	// 3. Simulator (if enabled)
	// 4. InfluxDB (if enabled)
	// 5. MQTT (if enabled)
	// 6. Database

	log.Info("Lab Core stopped")
	return nil
}

// connectInstruments dials every instrument in the config, builds its
// driver, and attaches the monitor so its parameter updates fan out.
func connectInstruments(cfg *config.Config, registry *instrument.Registry, mon *monitor.Monitor, log *logging.Logger) error {
	for _, ic := range cfg.Instruments {
		switch ic.Driver {
		case "dp800":
			d, err := dp800.Connect(ic, registry)
			if err != nil {
				return fmt.Errorf("connecting instrument %q: %w", ic.Name, err)
			}
			mon.Attach(d.Base)
			log.Info("instrument connected",
				"name", ic.Name,
				"driver", ic.Driver,
				"address", ic.Address,
			)
		default:
			return fmt.Errorf("instrument %q: unknown driver %q", ic.Name, ic.Driver)
		}
	}
	return nil
}

// getConfigPath returns the configuration file path.
// Uses LABCORE_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("LABCORE_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// healthCheck verifies all infrastructure connections are healthy.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//   - db: Database connection to check
//   - mqttClient: MQTT client to check (may be nil if disabled)
//   - influxClient: InfluxDB client to check (may be nil if disabled)
//
// Returns:
//   - error: First health check failure, or nil if all healthy
func healthCheck(ctx context.Context, db *database.DB, mqttClient *mqtt.Client, influxClient *influxdb.Client) error {
	// Check database
	if err := db.HealthCheck(ctx); err != nil {
		return fmt.Errorf("database: %w", err)
	}

	// Check MQTT (if enabled)
	if mqttClient != nil {
		if err := mqttClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("mqtt: %w", err)
		}
	}

	// Check InfluxDB (if enabled)
	if influxClient != nil {
		if err := influxClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("influxdb: %w", err)
		}
	}

	return nil
}
