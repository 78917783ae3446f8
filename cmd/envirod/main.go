package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"codeberg.org/mutker/envirod/internal/config"
	"codeberg.org/mutker/envirod/internal/errors"
	"codeberg.org/mutker/envirod/internal/exporter"
	"codeberg.org/mutker/envirod/internal/logger"
	"codeberg.org/mutker/envirod/internal/pid"
	"codeberg.org/mutker/envirod/internal/ratelimit"
	"codeberg.org/mutker/envirod/internal/sensor"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	cfg        *config.Config
	errFactory = errors.New()
)

func init() {
	var err error
	cfg, err = config.Load()
	if err != nil {
		fmt.Printf("failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Init(cfg.Debug, cfg.Verbose, logger.IsService())
	logger.Debug().Msg("Config loaded")
}

func main() {
	defer func() {
		if r := recover(); r != nil {
			logger.Error().Interface("panic", r).Msg("Unhandled exception")
			panic(r)
		}
	}()

	if err := pid.Write(); err != nil {
		if errors.CodeOf(err) == errors.ErrAlreadyRunning {
			logger.Fatal().Err(err).Msg("envirod is already running")
		}
		logger.Fatal().Err(err).Msg("failed to write PID file")
	}
	defer func() {
		if err := pid.Remove(); err != nil {
			logger.Error().Err(err).Msg("failed to remove PID file")
		}
	}()

	if cfg.TemperatureFactor != 0 {
		logger.Info().
			Float64("factor", cfg.TemperatureFactor).
			Msg("Adjusting temperature reading to compensate for CPU heat")
	}

	sensors, bus, err := sensor.Create(sensor.Config{
		Enviro:            cfg.Enviro,
		TemperatureFactor: cfg.TemperatureFactor,
		I2CBus:            cfg.I2CBus,
		SerialPort:        cfg.SerialPort,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize sensors")
	}
	defer bus.Close()

	registry := prometheus.NewRegistry()
	bridge := exporter.NewPrometheus(registry, cfg.Enviro)
	store := exporter.NewStore()
	sinks := exporter.Multi{bridge, store}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go handleSignals(cancel)

	go serveMetrics(bridge)

	if cfg.InfluxDB {
		influx := exporter.NewInflux(exporter.InfluxConfig{
			URL:      cfg.Influx.URL,
			Token:    cfg.Influx.Token,
			OrgID:    cfg.Influx.OrgID,
			Bucket:   cfg.Influx.Bucket,
			Location: cfg.Influx.Location,
			Interval: cfg.Influx.Interval,
		}, store)
		logger.Info().Str("url", cfg.Influx.URL).Msg("Posting to InfluxDB")
		go influx.Run(ctx)
	}

	if cfg.Luftdaten {
		uid, err := exporter.SerialUID()
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to derive Luftdaten sensor UID")
		}
		luftdaten := exporter.NewLuftdaten(exporter.LuftdatenConfig{
			UID:      uid,
			Interval: cfg.LuftdatenInterval,
		}, store)
		logger.Info().Str("uid", uid).Msg("Posting to Luftdaten")
		go luftdaten.Run(ctx)
	}

	loop(ctx, sensors, sinks, bridge)
	logger.Info().Msg("Exiting...")
}

// loop runs sampling cycles at the configured cadence until the context is
// cancelled. Sensor failures degrade a cycle, they never stop the loop.
func loop(ctx context.Context, sensors sensor.Sensor, sinks exporter.Exporter, bridge *exporter.Prometheus) {
	period := time.Duration(cfg.UpdatePeriod * float64(time.Second))
	limiter := ratelimit.New(period)

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		start := limiter.Now()

		values := sensor.Values{}
		ok := sensors.Update(values)
		sinks.Export(values, !ok)

		end := limiter.IterationEnd()
		bridge.AddUpdateTime(end.Sub(start))

		logger.Debug().
			Interface("values", values).
			Bool("ok", ok).
			Dur("update_time", end.Sub(start)).
			Msg("Sensor values updated")

		limiter.Sleep(ctx)
	}
}

func serveMetrics(bridge *exporter.Prometheus) {
	addr := net.JoinHostPort(cfg.PrometheusIP, strconv.Itoa(cfg.PrometheusPort))

	mux := http.NewServeMux()
	mux.Handle("/metrics", bridge.Handler())

	logger.Info().Str("addr", addr).Msg("Serving Prometheus metrics")
	if err := http.ListenAndServe(addr, mux); err != nil {
		logger.FatalWithCode(errFactory.Wrap(errors.ErrInitApp, err)).Msg("metrics server failed")
	}
}

func handleSignals(cancel context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	<-sigs
	logger.Info().Msg("Received termination signal.")
	cancel()
}
