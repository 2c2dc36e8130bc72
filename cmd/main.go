package main

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	_ "github.com/mahdirajaee/iot-ongoingv1/docs"
	"github.com/mahdirajaee/iot-ongoingv1/internal/alerting"
	"github.com/mahdirajaee/iot-ongoingv1/internal/handlers"
	"github.com/mahdirajaee/iot-ongoingv1/internal/logger"
	"github.com/mahdirajaee/iot-ongoingv1/internal/models"
	"github.com/mahdirajaee/iot-ongoingv1/internal/notify"
	"github.com/mahdirajaee/iot-ongoingv1/internal/repository"
	"github.com/mahdirajaee/iot-ongoingv1/internal/repository/db"
	"github.com/mahdirajaee/iot-ongoingv1/internal/server"
	"github.com/mahdirajaee/iot-ongoingv1/internal/service"
	"github.com/mahdirajaee/iot-ongoingv1/internal/telemetry"

	"github.com/spf13/viper"
)

const shutdownTimeout = 10 * time.Second

// @title           IoT Dashboard API
// @version         1.0
// @description     Monitoring dashboard backend: telemetry polling, threshold alerts, valve control.
// @BasePath        /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	// load config.yml before the logger so log.level applies
	cfgErr := loadConfig()
	log := logger.Get(viper.GetString("log.level"))
	if cfgErr != nil {
		log.Warnw("config file not loaded; using defaults and environment", "err", cfgErr)
	}

	// open DB
	conn, err := openDB(log)
	if err != nil {
		log.Fatalw("failed to init sqlite", "err", err)
	}
	defer func() {
		if cerr := conn.Close(); cerr != nil {
			log.Errorw("failed to close sqlite", "err", cerr)
		}
	}()

	client, err := newTelemetryClient()
	if err != nil {
		log.Fatalw("invalid endpoints", "err", err)
	}

	thresholds := alerting.NewThresholds(
		viper.GetFloat64("thresholds.temperature.critical"),
		viper.GetFloat64("thresholds.temperature.warning"),
		viper.GetFloat64("thresholds.pressure.critical"),
		viper.GetFloat64("thresholds.pressure.warning"),
	)
	if err := thresholds.Validate(); err != nil {
		log.Fatalw("invalid thresholds", "err", err)
	}

	bo, err := service.NewBackOff(service.BackoffConfig{
		Policy:      viper.GetString("reconnect.policy"),
		Delay:       viper.GetDuration("reconnect.delay"),
		MaxInterval: viper.GetDuration("reconnect.max_interval"),
		Multiplier:  viper.GetFloat64("reconnect.multiplier"),
		MaxRetries:  viper.GetUint64("reconnect.max_retries"),
	})
	if err != nil {
		log.Fatalw("invalid reconnect policy", "err", err)
	}

	notifier, closeNotifier := newNotifier(log)
	defer closeNotifier()

	// wire dependencies
	services := service.NewService(service.Deps{
		Repos:      repository.NewRepository(conn),
		Telemetry:  client,
		Thresholds: thresholds,
		Notifier:   notifier,
		Log:        log,
		Controller: service.ControllerConfig{
			Interval: viper.GetDuration("polling.interval"),
			Backoff:  bo,
		},
		Auth: service.AuthConfig{SigningKey: viper.GetString("auth.signing_key")},
	})
	apiHandler := handlers.NewHandler(services, log.Named("http"))

	// context for background goroutines
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		if err := services.Poller.Run(ctx); err != nil {
			log.Errorw("poller_stopped", "err", err)
		}
	}()
	if viper.GetBool("simulator.enabled") {
		go services.Simulator.Run(ctx, viper.GetDuration("simulator.tick"))
	}

	srv := server.New(server.Config{
		Port:              viper.GetString("port"),
		ReadHeaderTimeout: viper.GetDuration("http.read_header_timeout"),
		WriteTimeout:      viper.GetDuration("http.write_timeout"),
		IdleTimeout:       viper.GetDuration("http.idle_timeout"),
	})
	runHTTPServer(srv, apiHandler, log)

	// graceful shutdown
	waitForShutdown(cancel, srv, log)
}

func setDefaults() {
	viper.SetDefault("port", "8080")
	viper.SetDefault("log.level", logger.InfoLevel)
	viper.SetDefault("db.path", "dashboard.db")

	for name, url := range telemetry.DefaultEndpoints() {
		viper.SetDefault("endpoints."+name, url)
	}

	viper.SetDefault("polling.interval", service.DefaultPollInterval)
	viper.SetDefault("polling.request_timeout", 5*time.Second)

	viper.SetDefault("reconnect.policy", "constant")
	viper.SetDefault("reconnect.delay", service.DefaultReconnectDelay)

	def := alerting.DefaultThresholds()
	viper.SetDefault("thresholds.temperature.critical", def[models.MetricTemperature][0].Above)
	viper.SetDefault("thresholds.temperature.warning", def[models.MetricTemperature][1].Above)
	viper.SetDefault("thresholds.pressure.critical", def[models.MetricPressure][0].Above)
	viper.SetDefault("thresholds.pressure.warning", def[models.MetricPressure][1].Above)

	viper.SetDefault("simulator.enabled", true)
	viper.SetDefault("simulator.tick", 3*time.Second)

	viper.SetDefault("notify.queue_size", 64)
	viper.SetDefault("notify.delivery_timeout", 5*time.Second)
	viper.SetDefault("notify.kafka.enabled", false)
	viper.SetDefault("notify.kafka.topic", "dashboard.alerts")
	viper.SetDefault("notify.kafka.write_timeout", 5*time.Second)
	viper.SetDefault("notify.kafka.batch_timeout", 10*time.Millisecond)
	viper.SetDefault("notify.kafka.max_attempts", 3)
	viper.SetDefault("notify.amqp.enabled", false)
	viper.SetDefault("notify.amqp.exchange", "dashboard.alerts")
}

func loadConfig() error {
	setDefaults()
	viper.SetEnvPrefix("dashboard")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	viper.AddConfigPath("configs") // configs/config.yml
	viper.SetConfigName("config")
	return viper.ReadInConfig()
}

// openDB initializes the SQLite database using configuration.
func openDB(log *logger.Logger) (*sql.DB, error) {
	path := viper.GetString("db.path")
	log.Infow("opening sqlite", "path", path)
	return db.InitDB(path)
}

func newTelemetryClient() (*telemetry.Client, error) {
	urls := make(map[string]string)
	for name := range telemetry.DefaultEndpoints() {
		urls[name] = viper.GetString("endpoints." + name)
	}
	reg, err := telemetry.NewEndpointRegistry(urls)
	if err != nil {
		return nil, err
	}
	return telemetry.NewClient(reg, viper.GetDuration("polling.request_timeout")), nil
}

// newNotifier builds the alert fan-out from the enabled sinks. A sink that
// cannot be set up is logged and skipped; with no sinks the notifier is nil.
func newNotifier(log *logger.Logger) (notify.Notifier, func()) {
	var sinks []notify.Sink

	if viper.GetBool("notify.kafka.enabled") {
		k, err := notify.NewKafkaNotifier(notify.KafkaConfig{
			Brokers:      viper.GetStringSlice("notify.kafka.brokers"),
			Topic:        viper.GetString("notify.kafka.topic"),
			WriteTimeout: viper.GetDuration("notify.kafka.write_timeout"),
			BatchTimeout: viper.GetDuration("notify.kafka.batch_timeout"),
			MaxAttempts:  viper.GetInt("notify.kafka.max_attempts"),
		})
		if err != nil {
			log.Errorw("kafka_sink_disabled", "err", err)
		} else {
			sinks = append(sinks, notify.Sink{Name: "kafka", Notifier: k})
		}
	}
	if viper.GetBool("notify.amqp.enabled") {
		a, err := notify.NewAMQPNotifier(viper.GetString("notify.amqp.url"), viper.GetString("notify.amqp.exchange"))
		if err != nil {
			log.Errorw("amqp_sink_disabled", "err", err)
		} else {
			sinks = append(sinks, notify.Sink{Name: "amqp", Notifier: a})
		}
	}

	if len(sinks) == 0 {
		return nil, func() {}
	}
	f := notify.NewFanout(log.Named("notify"), notify.FanoutConfig{
		QueueSize:       viper.GetInt("notify.queue_size"),
		DeliveryTimeout: viper.GetDuration("notify.delivery_timeout"),
	}, sinks...)
	return f, func() {
		if err := f.Close(); err != nil {
			log.Errorw("notifier_close_failed", "err", err)
		}
	}
}

// runHTTPServer runs the HTTP server in a separate goroutine.
func runHTTPServer(srv *server.Server, handler *handlers.Handler, log *logger.Logger) {
	go func() {
		log.Infow("http server listening", "addr", srv.Addr())
		if err := srv.Run(handler.InitRoutes()); err != nil {
			log.Fatalw("error starting server", "err", err)
		}
	}()
}

// waitForShutdown listens for termination signals and performs graceful shutdown.
func waitForShutdown(cancel context.CancelFunc, srv *server.Server, log *logger.Logger) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Infow("shutting down server...")

	// stop background goroutines
	cancel()

	// allow in-flight requests to complete
	ctx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(ctx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		log.Errorw("server forced to shutdown", "err", err)
	}
}
