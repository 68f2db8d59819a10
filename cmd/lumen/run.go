package main

import (
	"context"
	"fmt"
	"io"

	"golang.org/x/sync/errgroup"

	"github.com/nerrad567/lumen/internal/als"
	"github.com/nerrad567/lumen/internal/api"
	"github.com/nerrad567/lumen/internal/brightness"
	"github.com/nerrad567/lumen/internal/capture"
	"github.com/nerrad567/lumen/internal/frame"
	"github.com/nerrad567/lumen/internal/infrastructure/config"
	"github.com/nerrad567/lumen/internal/infrastructure/database"
	"github.com/nerrad567/lumen/internal/infrastructure/influxdb"
	"github.com/nerrad567/lumen/internal/infrastructure/logging"
	"github.com/nerrad567/lumen/internal/infrastructure/metrics"
	"github.com/nerrad567/lumen/internal/infrastructure/mqtt"
	"github.com/nerrad567/lumen/internal/mailbox"
	"github.com/nerrad567/lumen/internal/predictor"
	"github.com/nerrad567/lumen/internal/telemetry"
)

// run is the daemon, separated from main for testability.
//
// Three loops run until ctx is cancelled or one of them fails: capture
// (which drives the predictor on its own goroutine), the brightness
// controller, and the telemetry publisher. The first failure stops the
// others and is returned.
//
// Parameters:
//   - ctx: Context for cancellation and shutdown signals
//   - flagPath: Value of --config, may be empty
//
// Returns:
//   - error: nil on clean shutdown, or error describing failure
func run(ctx context.Context, flagPath string) error {
	log := logging.Default()
	log.Info("starting lumen",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	cfg, path, err := loadConfig(flagPath)
	if err != nil {
		return err
	}
	if path == "" {
		log.Info("no configuration file found, using defaults")
	} else {
		log.Info("configuration loaded", "path", path)
	}

	log = logging.New(cfg.Logging, version)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	// Preferences
	db, err := openDatabase(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer func() {
		log.Info("closing database")
		if closeErr := db.Close(); closeErr != nil {
			log.Error("error closing database", "error", closeErr)
		}
	}()
	log.Info("database ready", "path", db.Path())

	store := predictor.NewSQLiteStore(db.DB)
	m := metrics.New()

	// MQTT (optional)
	var mqttClient *mqtt.Client
	if cfg.MQTT.Enabled {
		mqttClient, err = mqtt.Connect(cfg.MQTT)
		if err != nil {
			return fmt.Errorf("connecting to MQTT: %w", err)
		}
		mqttClient.SetLogger(log.Component("mqtt"))
		defer func() {
			log.Info("disconnecting from MQTT")
			if closeErr := mqttClient.Close(); closeErr != nil {
				log.Error("error closing MQTT", "error", closeErr)
			}
		}()
		log.Info("MQTT connected",
			"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
			"client_id", mqttClient.ID(),
		)
	} else {
		log.Info("MQTT disabled")
	}

	// InfluxDB (optional)
	var influxClient *influxdb.Client
	if cfg.InfluxDB.Enabled {
		influxClient, err = influxdb.Connect(cfg.InfluxDB, map[string]string{"output": cfg.Output.Name})
		if err != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", err)
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
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)
	} else {
		log.Info("InfluxDB disabled")
	}

	recorder := telemetry.NewRecorder(telemetryOptions(m, mqttClient, influxClient, log))

	ambient, err := als.New(alsOptions(cfg, mqttClient))
	if err != nil {
		return fmt.Errorf("opening ambient light source: %w", err)
	}
	if closer, ok := ambient.(io.Closer); ok {
		defer func() {
			if closeErr := closer.Close(); closeErr != nil {
				log.Warn("error closing ambient light source", "error", closeErr)
			}
		}()
	}
	log.Info("ambient light source ready", "backend", cfg.ALS.Backend)

	buckets, err := predictor.NewDiscretizer(luxBuckets(cfg.Predictor.LuxBuckets), cfg.Predictor.LumaBuckets)
	if err != nil {
		return fmt.Errorf("configuring predictor: %w", err)
	}

	decisions := mailbox.New[uint8]()
	reports := mailbox.New[brightness.Report]()

	ctrl := predictor.NewController(predictor.Config{
		Enabled:      cfg.Predictor.Enabled,
		SettleWindow: cfg.Predictor.SettleWindow,
		Tolerance:    uint8(cfg.Predictor.Tolerance),
	}, buckets, ambient, store, decisions, reports)
	ctrl.SetLogger(log.Component("predictor"))
	ctrl.SetObserver(recorder)
	if err := ctrl.Load(ctx); err != nil {
		return fmt.Errorf("loading preferences: %w", err)
	}
	learned := len(ctrl.Preferences())
	recorder.SetPreferenceCount(learned)
	log.Info("predictor ready", "preferences", learned, "enabled", cfg.Predictor.Enabled)

	// Output
	backlight, err := brightness.OpenBacklight(cfg.Output.Backlight.Path)
	if err != nil {
		return fmt.Errorf("opening backlight: %w", err)
	}
	output := brightness.NewController(backlight, decisions, reports, brightness.Config{
		PollInterval: cfg.Output.Backlight.PollInterval,
		SettleWindow: cfg.Predictor.SettleWindow,
		WatchPaths:   backlight.WatchPaths(),
	})
	output.SetLogger(log.Component("brightness"))
	output.SetMetrics(m)
	log.Info("backlight opened", "path", backlight.Dir(), "max", backlight.Max())

	// Capture
	capturer, err := capture.New(capture.Options{
		Backend: cfg.Capture.Backend,
		Wlroots: capture.WlrootsConfig{
			Output:        cfg.Output.Name,
			OverlayCursor: cfg.Capture.OverlayCursor,
		},
		Session: capture.SessionConfig{
			SuccessDelay: cfg.Capture.SuccessDelay,
			FailureDelay: cfg.Capture.FailureDelay,
		},
		IdleInterval: cfg.Capture.IdleInterval,
		Reports:      reports.Ready(),
		Processor:    frame.NewCPUProcessor(cfg.Processor.SampleStride),
		Logger:       log.Component("capture"),
		Metrics:      m,
	})
	if err != nil {
		return fmt.Errorf("starting capture: %w", err)
	}
	defer func() {
		if closeErr := capturer.Close(); closeErr != nil {
			log.Error("error closing capture", "error", closeErr)
		}
	}()
	if w, ok := capturer.(*capture.Wlroots); ok {
		log.Info("capturing output", "output", w.OutputName())
	} else {
		log.Info("screen capture disabled", "idle_interval", cfg.Capture.IdleInterval)
	}

	// Status API (optional)
	if cfg.API.Enabled {
		server, srvErr := startAPI(ctx, cfg.API, log, store, recorder, m, healthChecks(db, mqttClient, influxClient))
		if srvErr != nil {
			return srvErr
		}
		defer func() {
			log.Info("stopping API server")
			if closeErr := server.Close(); closeErr != nil {
				log.Error("error stopping API server", "error", closeErr)
			}
		}()
	}

	if err := healthCheck(ctx, healthChecks(db, mqttClient, influxClient)); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("initialisation complete")

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		recorder.Run(gctx)
		return nil
	})
	g.Go(func() error {
		if err := output.Run(gctx); err != nil {
			return fmt.Errorf("brightness: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		if err := capturer.Run(gctx, ctrl); err != nil {
			return fmt.Errorf("capture: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		log.Error("stopping after failure", "error", err)
		return err
	}

	log.Info("shutdown signal received, cleaning up")
	log.Info("lumen stopped", "telemetry_dropped", recorder.Dropped())
	return nil
}

func telemetryOptions(m *metrics.Metrics, mqttClient *mqtt.Client, influxClient *influxdb.Client, log *logging.Logger) telemetry.Options {
	opts := telemetry.Options{
		Metrics: m,
		Logger:  log.Component("telemetry"),
	}
	if mqttClient != nil {
		topics := mqttClient.Topics()
		opts.Publisher = mqttClient
		opts.Topics = telemetry.Topics{
			State:    topics.BrightnessState(),
			Override: topics.OverrideEvent(),
		}
	}
	if influxClient != nil {
		opts.Series = influxClient
	}
	return opts
}

func alsOptions(cfg *config.Config, mqttClient *mqtt.Client) als.Options {
	opts := als.Options{
		Backend:    cfg.ALS.Backend,
		IIOPath:    cfg.ALS.IIO.Path,
		HourToLux:  cfg.ALS.Time.HourToLux,
		MQTTTopic:  cfg.ALS.MQTT.Topic,
		MQTTMaxAge: cfg.ALS.MQTT.MaxAge,
		MQTTQoS:    byte(cfg.MQTT.QoS),
	}
	if mqttClient != nil {
		opts.Subscriber = mqttClient
	}
	return opts
}

func luxBuckets(cfg []config.LuxBucketConfig) []predictor.LuxBucket {
	if len(cfg) == 0 {
		return nil
	}
	buckets := make([]predictor.LuxBucket, len(cfg))
	for i, b := range cfg {
		buckets[i] = predictor.LuxBucket{Name: b.Name, MinLux: b.MinLux}
	}
	return buckets
}

func healthChecks(db *database.DB, mqttClient *mqtt.Client, influxClient *influxdb.Client) map[string]api.HealthChecker {
	checks := map[string]api.HealthChecker{"database": db}
	if mqttClient != nil {
		checks["mqtt"] = mqttClient
	}
	if influxClient != nil {
		checks["influxdb"] = influxClient
	}
	return checks
}

// healthCheck verifies every configured connection answers.
func healthCheck(ctx context.Context, checks map[string]api.HealthChecker) error {
	for name, c := range checks {
		if err := c.HealthCheck(ctx); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}
	return nil
}

func startAPI(ctx context.Context, cfg config.APIConfig, log *logging.Logger, store *predictor.SQLiteStore,
	recorder *telemetry.Recorder, m *metrics.Metrics, checks map[string]api.HealthChecker) (*api.Server, error) {
	server, err := api.New(api.Deps{
		Config:      cfg,
		Logger:      log.Component("api"),
		Preferences: store,
		Status:      recorder,
		Metrics:     m.Handler(),
		Checks:      checks,
		Version:     version,
	})
	if err != nil {
		return nil, fmt.Errorf("creating API server: %w", err)
	}
	if err := server.Start(ctx); err != nil {
		return nil, fmt.Errorf("starting API server: %w", err)
	}
	log.Info("API server listening", "addr", server.Addr())
	return server, nil
}
