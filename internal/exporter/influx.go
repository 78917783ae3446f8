package exporter

import (
	"context"
	"time"

	"codeberg.org/mutker/envirod/internal/errors"
	"codeberg.org/mutker/envirod/internal/logger"
	"codeberg.org/mutker/envirod/internal/ratelimit"
	"codeberg.org/mutker/envirod/internal/sensor"
	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// InfluxConfig carries the connection credentials and posting cadence of the
// InfluxDB push loop.
type InfluxConfig struct {
	URL      string
	Token    string
	OrgID    string
	Bucket   string
	Location string
	Interval time.Duration
}

// Influx posts the latest committed snapshot to an InfluxDB bucket on a
// fixed cadence, decoupled from the sampling loop.
type Influx struct {
	client   influxdb2.Client
	writeAPI api.WriteAPIBlocking
	store    *Store
	location string
	interval time.Duration
}

func NewInflux(cfg InfluxConfig, store *Store) *Influx {
	client := influxdb2.NewClient(cfg.URL, cfg.Token)

	return &Influx{
		client:   client,
		writeAPI: client.WriteAPIBlocking(cfg.OrgID, cfg.Bucket),
		store:    store,
		location: cfg.Location,
		interval: cfg.Interval,
	}
}

// Run posts snapshots until the context is cancelled. A failed post is
// logged and the loop continues; the sink never takes the sampling loop
// down with it.
func (i *Influx) Run(ctx context.Context) {
	errFactory := errors.New()
	limiter := ratelimit.New(i.interval)

	for {
		select {
		case <-ctx.Done():
			i.client.Close()
			return
		default:
		}

		if err := i.post(ctx); err != nil {
			logger.ErrorWithCode(errFactory.Wrap(ErrInfluxPost, err)).Send()
		} else {
			logger.Debug().Msg("InfluxDB response: OK")
		}

		limiter.IterationEnd()
		limiter.Sleep(ctx)
	}
}

func (i *Influx) post(ctx context.Context) error {
	point := influxPoint(i.location, i.store.Snapshot())

	return i.writeAPI.WritePoint(ctx, point)
}

// fieldNames maps value keys to their InfluxDB field names.
var fieldNames = []struct {
	key   string
	field string
}{
	{sensor.KeyTemperature, "temperature"},
	{sensor.KeyPressure, "pressure"},
	{sensor.KeyHumidity, "humidity"},
	{sensor.KeyLight, "light"},
	{sensor.KeyProximity, "proximity"},
	{sensor.KeyGasRed, "gas_red"},
	{sensor.KeyGasOx, "gas_ox"},
	{sensor.KeyGasNH3, "gas_nh3"},
	{sensor.KeyPM1, "pm1"},
	{sensor.KeyPM25, "pm25"},
	{sensor.KeyPM10, "pm10"},
}

// influxPoint builds one measurement from a snapshot. Keys absent from the
// snapshot produce no field.
func influxPoint(location string, values sensor.Values) *write.Point {
	fields := make(map[string]interface{}, len(values))
	for _, f := range fieldNames {
		if v, ok := values[f.key]; ok {
			fields[f.field] = v
		}
	}

	return influxdb2.NewPoint("enviro",
		map[string]string{"location": location},
		fields,
		time.Now())
}
