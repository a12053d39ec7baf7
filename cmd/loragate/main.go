// loragate bridges a serial LoRa radio module to the home network.
//
// It owns the radio's line protocol (discovery broadcasts, command dispatch,
// acknowledgment tracking), keeps an in-memory device catalogue, and exposes
// it over a REST/WebSocket API. Optional integrations mirror state to MQTT
// and record battery telemetry to InfluxDB.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/openhearth/loragate/migrations"

	"github.com/openhearth/loragate/internal/api"
	"github.com/openhearth/loragate/internal/audit"
	"github.com/openhearth/loragate/internal/bridges/lora"
	"github.com/openhearth/loragate/internal/device"
	"github.com/openhearth/loragate/internal/infrastructure/config"
	"github.com/openhearth/loragate/internal/infrastructure/database"
	"github.com/openhearth/loragate/internal/infrastructure/influxdb"
	"github.com/openhearth/loragate/internal/infrastructure/logging"
	"github.com/openhearth/loragate/internal/infrastructure/mqtt"
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
	// Cancel on interrupt signals (Ctrl+C, SIGTERM) for graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for testability.
// Returning an error allows main to handle exit codes consistently.
func run(ctx context.Context) error {
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting loragate",
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

	// Command audit trail
	auditRepo := audit.NewRepository(db.DB)

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

		mqttClient.SetLogger(log)
		mqttClient.SetOnConnect(func() {
			log.Info("MQTT reconnected")
		})
		mqttClient.SetOnDisconnect(func(err error) {
			log.Warn("MQTT disconnected", "error", err)
		})
	} else {
		log.Info("MQTT mirror disabled")
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
		log.Info("InfluxDB telemetry disabled")
	}

	// Device catalogue, populated by discovery
	registry := device.NewRegistry()

	// The API server is created after the controller, so the discovery
	// observer reads it through this variable. Discovery only runs once
	// everything below is wired up.
	var apiServer *api.Server

	observer := func(rec device.Record) {
		if mqttClient != nil {
			if pubErr := mqttClient.PublishDiscovery(rec); pubErr != nil {
				log.Warn("discovery mirror publish failed", "device_id", rec.ID, "error", pubErr)
			}
		}
		if influxClient != nil {
			influxClient.WriteBattery(rec.ID, string(rec.Type), rec.Battery)
		}
		if apiServer != nil && apiServer.Hub() != nil {
			apiServer.Hub().BroadcastDiscovered(rec)
		}
	}

	// Gateway controller for the serial radio
	gateway, err := lora.NewController(lora.ControllerOptions{
		Dial: func(context.Context) (lora.LineTransport, error) {
			return lora.OpenSerial(lora.TransportOptions{
				Port:        cfg.Serial.Port,
				BaudRate:    cfg.Serial.BaudRate,
				ReadTimeout: cfg.GetSerialReadTimeout(),
			})
		},
		Registry: registry,
		Timing: lora.Timing{
			DiscoveryWindow: cfg.GetDiscoveryWindow(),
			AckGracePeriod:  cfg.GetAckGracePeriod(),
			PollInterval:    cfg.GetPollInterval(),
		},
		Logger:   log,
		Recorder: &commandRecorder{repo: auditRepo, mqtt: mqttClient, log: log},
		Observer: observer,
	})
	if err != nil {
		return fmt.Errorf("creating gateway controller: %w", err)
	}
	defer func() {
		log.Info("closing gateway")
		if closeErr := gateway.Close(); closeErr != nil {
			log.Error("error closing gateway", "error", closeErr)
		}
	}()

	// Start the API server
	apiServer, err = api.New(api.Deps{
		Config:   cfg.API,
		WS:       cfg.WebSocket,
		Logger:   log,
		Registry: registry,
		Gateway:  gateway,
		Audit:    auditRepo,
		Version:  version,
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

	// Open the radio and run the initial discovery cycle
	if err := gateway.Connect(ctx); err != nil {
		return fmt.Errorf("connecting to radio: %w", err)
	}
	log.Info("radio connected", "port", cfg.Serial.Port, "baud_rate", cfg.Serial.BaudRate)

	discoveryStart := time.Now()
	found, err := gateway.Discover(ctx)
	if err != nil {
		// The gateway stays connected; operators can retry via POST /discover.
		log.Warn("initial discovery failed", "error", err)
	} else {
		log.Info("initial discovery complete", "devices", found)
		if influxClient != nil {
			influxClient.WriteDiscoveryCycle(found, time.Since(discoveryStart))
		}
	}

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
	// 2. Gateway (serial port)
	// 3. InfluxDB (if enabled)
	// 4. MQTT (if enabled)
	// 5. Database

	log.Info("loragate stopped")
	return nil
}

// getConfigPath returns the configuration file path.
// Uses LORAGATE_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("LORAGATE_CONFIG"); path != "" {
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
	if err := db.HealthCheck(ctx); err != nil {
		return fmt.Errorf("database: %w", err)
	}

	if mqttClient != nil {
		if err := mqttClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("mqtt: %w", err)
		}
	}

	if influxClient != nil {
		if err := influxClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("influxdb: %w", err)
		}
	}

	return nil
}

// commandRecorder fans command outcomes out to the audit trail and, when a
// broker is configured, the MQTT ack topic. The SQLite write is authoritative;
// the MQTT publish is best-effort.
type commandRecorder struct {
	repo *audit.Repository
	mqtt *mqtt.Client
	log  *logging.Logger
}

// Record implements lora.Recorder.
func (r *commandRecorder) Record(ctx context.Context, rec lora.CommandRecord) error {
	if err := r.repo.Record(ctx, rec); err != nil {
		return err
	}

	if r.mqtt != nil {
		event := mqtt.AckEvent{
			CommandID:    rec.ID,
			DeviceID:     rec.DeviceID,
			Command:      rec.Command,
			Value:        rec.Value,
			Acknowledged: rec.Acknowledged,
			Soft:         rec.Soft,
			Timestamp:    rec.CreatedAt,
		}
		if err := r.mqtt.PublishAck(event); err != nil {
			r.log.Warn("ack mirror publish failed", "device_id", rec.DeviceID, "error", err)
		}
	}

	return nil
}
