package exporter

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"codeberg.org/mutker/envirod/internal/errors"
	"codeberg.org/mutker/envirod/internal/logger"
	"codeberg.org/mutker/envirod/internal/ratelimit"
	"codeberg.org/mutker/envirod/internal/sensor"
)

const (
	luftdatenEndpoint        = "https://api.luftdaten.info/v1/push-sensor-data/"
	luftdatenSoftwareVersion = "envirod 0.0.1"

	// Luftdaten sensor pins: 1 is the particulate sensor, 11 the
	// temperature/pressure/humidity sensor.
	luftdatenPinParticulate = "1"
	luftdatenPinClimate     = "11"

	cpuinfoPath = "/proc/cpuinfo"
)

// LuftdatenConfig carries the station identity and posting cadence of the
// Luftdaten push loop.
type LuftdatenConfig struct {
	UID      string
	Interval time.Duration
}

type luftdatenValue struct {
	ValueType string `json:"value_type"`
	Value     string `json:"value"`
}

type luftdatenPayload struct {
	SoftwareVersion  string           `json:"software_version"`
	SensorDataValues []luftdatenValue `json:"sensordatavalues"`
}

// Luftdaten posts the latest committed snapshot to the Luftdaten citizen
// science network on a fixed cadence.
type Luftdaten struct {
	client   *http.Client
	store    *Store
	uid      string
	interval time.Duration
	endpoint string
}

func NewLuftdaten(cfg LuftdatenConfig, store *Store) *Luftdaten {
	return &Luftdaten{
		client:   &http.Client{Timeout: 10 * time.Second},
		store:    store,
		uid:      cfg.UID,
		interval: cfg.Interval,
		endpoint: luftdatenEndpoint,
	}
}

// Run posts snapshots until the context is cancelled. Failed posts are
// logged and the loop continues.
func (l *Luftdaten) Run(ctx context.Context) {
	errFactory := errors.New()
	limiter := ratelimit.New(l.interval)

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if err := l.post(ctx); err != nil {
			logger.ErrorWithCode(errFactory.Wrap(ErrLuftdatenPost, err)).Send()
		} else {
			logger.Debug().Msg("Luftdaten response: OK")
		}

		limiter.IterationEnd()
		limiter.Sleep(ctx)
	}
}

// post sends one payload per pin. A pin whose keys are absent from the
// snapshot is skipped entirely.
func (l *Luftdaten) post(ctx context.Context) error {
	values := l.store.Snapshot()

	if payload, ok := particulatePayload(values); ok {
		if err := l.postPin(ctx, luftdatenPinParticulate, payload); err != nil {
			return err
		}
	}

	if payload, ok := climatePayload(values); ok {
		if err := l.postPin(ctx, luftdatenPinClimate, payload); err != nil {
			return err
		}
	}

	return nil
}

func particulatePayload(values sensor.Values) (luftdatenPayload, bool) {
	pm25, ok25 := values[sensor.KeyPM25]
	pm10, ok10 := values[sensor.KeyPM10]
	if !ok25 || !ok10 {
		return luftdatenPayload{}, false
	}

	return luftdatenPayload{
		SoftwareVersion: luftdatenSoftwareVersion,
		SensorDataValues: []luftdatenValue{
			{ValueType: "P2", Value: fmt.Sprintf("%.2f", pm25)},
			{ValueType: "P1", Value: fmt.Sprintf("%.2f", pm10)},
		},
	}, true
}

func climatePayload(values sensor.Values) (luftdatenPayload, bool) {
	temperature, okT := values[sensor.KeyTemperature]
	pressure, okP := values[sensor.KeyPressure]
	humidity, okH := values[sensor.KeyHumidity]
	if !okT || !okP || !okH {
		return luftdatenPayload{}, false
	}

	return luftdatenPayload{
		SoftwareVersion: luftdatenSoftwareVersion,
		SensorDataValues: []luftdatenValue{
			{ValueType: "temperature", Value: fmt.Sprintf("%.2f", temperature)},
			{ValueType: "pressure", Value: fmt.Sprintf("%.2f", pressure)},
			{ValueType: "humidity", Value: fmt.Sprintf("%.2f", humidity*100)},
		},
	}, true
}

func (l *Luftdaten) postPin(ctx context.Context, pin string, payload luftdatenPayload) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, l.endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("X-PIN", pin)
	req.Header.Set("X-Sensor", l.uid)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("cache-control", "no-cache")

	resp, err := l.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("pin %s: unexpected status %s", pin, resp.Status)
	}

	return nil
}

// SerialUID derives the Luftdaten station identity from the host's hardware
// serial number.
func SerialUID() (string, error) {
	errFactory := errors.New()

	f, err := os.Open(cpuinfoPath)
	if err != nil {
		return "", errFactory.Wrap(ErrSerialNumber, err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "Serial") {
			continue
		}
		if _, value, found := strings.Cut(line, ":"); found {
			if serial := strings.TrimSpace(value); serial != "" {
				return "raspi-" + serial, nil
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return "", errFactory.Wrap(ErrSerialNumber, err)
	}

	return "", errFactory.New(ErrSerialNumber)
}
