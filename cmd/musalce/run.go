package main

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/musalce/musalce-server/internal/api"
	"github.com/musalce/musalce-server/internal/clock"
	"github.com/musalce/musalce-server/internal/daw"
	"github.com/musalce/musalce-server/internal/daw/bitwig"
	"github.com/musalce/musalce-server/internal/daw/live"
	"github.com/musalce/musalce-server/internal/infrastructure/config"
	"github.com/musalce/musalce-server/internal/infrastructure/influxdb"
	"github.com/musalce/musalce-server/internal/infrastructure/logging"
	"github.com/musalce/musalce-server/internal/infrastructure/metrics"
	"github.com/musalce/musalce-server/internal/infrastructure/mqtt"
	"github.com/musalce/musalce-server/internal/midi"
	"github.com/musalce/musalce-server/internal/osc"
)

// clockEventBuffer is the number of clock events held for the event logger.
const clockEventBuffer = 64

// healthCheckTimeout bounds the startup health check.
const healthCheckTimeout = 5 * time.Second

// newFactory registers every supported DAW flavor.
func newFactory() *daw.Factory {
	f := daw.NewFactory()
	f.Register(daw.FlavorLive, live.New)
	f.Register(daw.FlavorBitwig, bitwig.New)
	return f
}

// loadConfig loads the configuration and applies the flavor argument.
func loadConfig(flavor string) (*config.Config, error) {
	path := getConfigPath()
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("loading config %s: %w", path, err)
	}
	if flavor != "" {
		cfg.DAW = flavor
	}
	if cfg.DAW == "" {
		return nil, fmt.Errorf("no daw flavor: pass live or bitwig, or set daw in %s", path)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return cfg, nil
}

// run is the actual application logic, separated from main for testability.
// Returning an error allows main to handle exit codes consistently.
//
// Parameters:
//   - ctx: Context for cancellation and shutdown signals
//   - flavor: DAW flavor from the command line, empty to use the config
//
// Returns:
//   - error: nil on clean shutdown, or error describing failure
func run(ctx context.Context, flavor string) error {
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting MusaLCE server",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	cfg, err := loadConfig(flavor)
	if err != nil {
		return err
	}

	log = logging.New(cfg.Logging, version)
	log.Info("configuration loaded", "daw", cfg.DAW, "level", cfg.Logging.Level)

	collector := metrics.New()
	observers := daw.Observers{collector}
	var deviceHooks []midi.ChangeFunc
	health := map[string]api.HealthChecker{}

	// MIDI hardware
	enum := midi.NewSystemEnumerator(cfg.GetEnumerateTimeout())
	defer midi.CloseDriver()

	// Background loops share a group so teardown waits for them.
	bgCtx, stopBackground := context.WithCancel(ctx)
	background, bgCtx := errgroup.WithContext(bgCtx)
	defer func() {
		stopBackground()
		if err := background.Wait(); err != nil {
			log.Warn("background task failed", "error", err)
		}
	}()

	devices := midi.NewDirectory(enum)
	devices.SetLogger(log.With("component", "midi"))

	clk := clock.New(enum, clockEventBuffer)
	clk.SetLogger(log.With("component", "clock"))
	defer func() {
		log.Info("closing MIDI clock input")
		clk.Close()
	}()
	background.Go(func() error {
		logClockEvents(bgCtx, clk, log)
		return nil
	})

	// Connect to InfluxDB (optional)
	if cfg.InfluxDB.Enabled {
		influxClient, connErr := influxdb.Connect(cfg.InfluxDB)
		if connErr != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", connErr)
		}
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
		deviceHooks = append(deviceHooks, func(attached bool, device string, total int) {
			influxClient.WriteDeviceChange(device, attached, total)
		})
		observers = append(observers, influxClient)
		health["influxdb"] = influxClient
		log.Info("InfluxDB connected", "url", cfg.InfluxDB.URL, "bucket", cfg.InfluxDB.Bucket)
	} else {
		log.Info("InfluxDB disabled")
	}

	// Connect to MQTT broker (optional)
	var mqttClient *mqtt.Client
	if cfg.MQTT.Enabled {
		mqttClient, err = mqtt.Connect(cfg.MQTT, version)
		if err != nil {
			return fmt.Errorf("connecting to MQTT: %w", err)
		}
		defer func() {
			log.Info("disconnecting from MQTT")
			if closeErr := mqttClient.Close(); closeErr != nil {
				log.Error("error closing MQTT", "error", closeErr)
			}
		}()
		mqttClient.SetLogger(log.With("component", "mqtt"))
		mqttClient.SetOnConnect(func() {
			log.Info("MQTT reconnected")
		})
		mqttClient.SetOnDisconnect(func(err error) {
			log.Warn("MQTT disconnected", "error", err)
		})

		announcer := mqtt.NewAnnouncer(mqttClient, mqttClient.Topics(), 0)
		announcer.SetLogger(log.With("component", "mqtt"))
		announcer.Start(ctx)
		defer announcer.Stop()

		observers = append(observers, announcer)
		health["mqtt"] = mqttClient
		log.Info("MQTT connected",
			"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
			"client_id", cfg.MQTT.Broker.ClientID,
		)
	} else {
		log.Info("MQTT disabled")
	}

	// Websocket event stream for the panel
	var hub *api.Hub
	if cfg.API.Enabled {
		hub = api.NewHub(cfg.API.WebSocket, log.With("component", "websocket"))
		background.Go(func() error {
			hub.Run(bgCtx)
			return nil
		})
		observers = append(observers, hub)
		deviceHooks = append(deviceHooks, hub.DeviceChanged)
	}

	// OSC link to the DAW extension
	sender := osc.NewClient(cfg.OSC.DAWHost, cfg.OSC.DAWPort, cfg.OSC.SendAttempts)
	sender.SetLogger(log.With("component", "osc"))
	sender.SetMetrics(collector)

	driver, err := newFactory().New(cfg.DAW, daw.Deps{
		Devices:     devices,
		Sender:      sender,
		Clock:       clk,
		ClockPort:   cfg.Clock.Port,
		BeatsPerBar: cfg.Transport.BeatsPerBar,
		Version:     version,
		Observer:    observers,
		Metrics:     collector,
		Logger:      log.With("component", "daw", "flavor", cfg.DAW),
	})
	if err != nil {
		return fmt.Errorf("creating daw driver: %w", err)
	}

	collector.WatchDevices(devices.Len)
	collector.WatchTracks(driver.Tracks().Len)
	collector.WatchClockTicks(clk.Ticks)

	server := osc.NewServer(osc.ServerOptions{
		Addr:      fmt.Sprintf("%s:%d", cfg.OSC.ListenHost, cfg.OSC.ListenPort),
		QueueSize: cfg.OSC.QueueSize,
		Logger:    log.With("component", "osc"),
		Metrics:   collector,
	})
	driver.Routes(server)

	// Polled device changes reroute on the OSC handler goroutine.
	rerouter := daw.NewRerouter(bgCtx, driver, server.Do, log.With("component", "daw"))
	deviceHooks = append(deviceHooks, rerouter.DeviceChanged)
	devices.SetOnChange(chainDeviceHooks(deviceHooks...))

	// Devices must be known before the driver asks the DAW for its routing.
	if _, _, err := devices.Sync(ctx); err != nil {
		log.Warn("initial midi device sync failed", "error", err)
	}
	background.Go(func() error {
		devices.Run(bgCtx, cfg.GetPollInterval())
		return nil
	})

	if err := server.Start(ctx); err != nil {
		return fmt.Errorf("starting OSC server: %w", err)
	}
	defer func() {
		log.Info("stopping OSC server")
		server.Stop()
	}()

	if err := driver.Start(ctx); err != nil {
		return fmt.Errorf("starting daw driver: %w", err)
	}
	defer driver.Stop()
	log.Info("daw driver ready",
		"flavor", driver.Flavor(),
		"listen", server.Addr().String(),
		"daw", sender.Target(),
	)

	// MQTT remote control
	if mqttClient != nil {
		remote := mqtt.NewRemote(mqttClient, mqttClient.Topics(), byte(cfg.MQTT.QoS), driver.Commands())
		if err := remote.Start(); err != nil {
			return fmt.Errorf("subscribing to MQTT commands: %w", err)
		}
		defer func() {
			if stopErr := remote.Stop(); stopErr != nil {
				log.Warn("error unsubscribing MQTT commands", "error", stopErr)
			}
		}()
	}

	// HTTP control API (optional)
	if cfg.API.Enabled {
		apiDeps := api.Deps{
			Config:  cfg.API,
			Logger:  log.With("component", "api"),
			Driver:  driver,
			Devices: devices,
			Clock:   clk,
			Metrics: collector.Handler(),
			Hub:     hub,
			Health:  health,
			Version: version,
		}
		if bw, ok := driver.(*bitwig.Driver); ok {
			apiDeps.Controllers = bw.Registry()
		}
		apiServer, apiErr := api.New(apiDeps)
		if apiErr != nil {
			return fmt.Errorf("creating API server: %w", apiErr)
		}
		if err := apiServer.Start(ctx); err != nil {
			return fmt.Errorf("starting API server: %w", err)
		}
		defer func() {
			if closeErr := apiServer.Close(); closeErr != nil {
				log.Error("error closing API server", "error", closeErr)
			}
		}()
	}

	if err := healthCheck(ctx, health); err != nil {
		log.Warn("startup health check failed", "error", err)
	}

	log.Info("initialisation complete, waiting for shutdown signal")
	<-ctx.Done()
	log.Info("shutdown signal received, cleaning up")

	// Deferred calls run in reverse order: API, MQTT remote, driver, OSC
	// server, announcer, MQTT, InfluxDB, clock, background loops, MIDI driver.

	log.Info("MusaLCE server stopped")
	return nil
}

// chainDeviceHooks calls every hook in order.
func chainDeviceHooks(hooks ...midi.ChangeFunc) midi.ChangeFunc {
	return func(attached bool, device string, total int) {
		for _, hook := range hooks {
			hook(attached, device, total)
		}
	}
}

// healthCheck verifies the optional backends answer.
func healthCheck(ctx context.Context, checks map[string]api.HealthChecker) error {
	ctx, cancel := context.WithTimeout(ctx, healthCheckTimeout)
	defer cancel()

	for name, c := range checks {
		if err := c.HealthCheck(ctx); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}
	return nil
}

// logClockEvents reports transport changes seen on the clock input.
func logClockEvents(ctx context.Context, clk *clock.Source, log *logging.Logger) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-clk.Events():
			if ev == clock.Tick {
				continue
			}
			log.Info("midi clock transport", "event", ev.String(), "port", clk.Port())
		}
	}
}
