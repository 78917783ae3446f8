package exporter

import (
	"net/http"
	"time"

	"codeberg.org/mutker/envirod/internal/sensor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Prometheus bridges sensor values into an explicitly constructed registry
// served over HTTP in the exposition format. The registry is injected at
// startup; there is no hidden global metric state.
type Prometheus struct {
	registry   *prometheus.Registry
	gauges     map[string]prometheus.Gauge
	histograms map[string]prometheus.Histogram
	updateTime prometheus.Counter
	errors     prometheus.Counter
}

type gaugeSpec struct {
	key  string
	name string
	help string
}

var gaugeSpecs = []gaugeSpec{
	{sensor.KeyTemperature, "enviro_temperature_celsius", "Temperature"},
	{sensor.KeyPressure, "enviro_pressure_pascals", "Pressure"},
	{sensor.KeyHumidity, "enviro_relative_humidity", "Relative humidity"},
	{sensor.KeyLight, "enviro_light_lux", "Ambient light level"},
	{sensor.KeyProximity, "enviro_proximity_raw", "Raw proximity value, with larger numbers being closer and vice versa"},
}

var enviroPlusGaugeSpecs = []gaugeSpec{
	{sensor.KeyGasRed, "enviro_gas_red_ohms", "Gas RED sensor: CO, H2S, Ethanol, Hydrogen, Ammonia, Methane, Propane, Iso-butane"},
	{sensor.KeyGasOx, "enviro_gas_ox_ohms", "Gas OX sensor: NO2, NO, Hydrogen"},
	{sensor.KeyGasNH3, "enviro_gas_nh3_ohms", "Gas NH3 sensor: Hydrogen, Ethanol, Ammonia, Propane, Iso-butane"},
	{sensor.KeyPM1, "enviro_pm_1u", "Particulate Matter of diameter less than 1 micron. Measured in micrograms per cubic metre (ug/m3)"},
	{sensor.KeyPM25, "enviro_pm_2u5", "Particulate Matter of diameter less than 2.5 microns. Measured in micrograms per cubic metre (ug/m3)"},
	{sensor.KeyPM10, "enviro_pm_10u", "Particulate Matter of diameter less than 10 microns. Measured in micrograms per cubic metre (ug/m3)"},
}

type histogramSpec struct {
	key   string
	name  string
	help  string
	start float64
	width float64
	count int
}

// Fixed linear bucket ladders per metric.
var enviroPlusHistogramSpecs = []histogramSpec{
	{sensor.KeyGasRed, "enviro_gas_red_hist_ohms", "Histogram of gas RED measurements", 100_000, 100_000, 15},
	{sensor.KeyGasOx, "enviro_gas_ox_hist_ohms", "Histogram of gas OX measurements", 5_000, 5_000, 20},
	{sensor.KeyGasNH3, "enviro_gas_nh3_hist_ohms", "Histogram of gas NH3 measurements", 100_000, 100_000, 20},
	{sensor.KeyPM1, "enviro_pm_1u_hist", "Histogram of Particulate Matter of diameter less than 1 micron", 5, 5, 20},
	{sensor.KeyPM25, "enviro_pm_2u5_hist", "Histogram of Particulate Matter of diameter less than 2.5 microns", 5, 5, 20},
	{sensor.KeyPM10, "enviro_pm_10u_hist", "Histogram of Particulate Matter of diameter less than 10 microns", 5, 5, 20},
}

// NewPrometheus registers the metric set for the configured device variant.
// Gas and particulate series are not registered on Enviro boards.
func NewPrometheus(registry *prometheus.Registry, enviro bool) *Prometheus {
	p := &Prometheus{
		registry:   registry,
		gauges:     make(map[string]prometheus.Gauge),
		histograms: make(map[string]prometheus.Histogram),
		updateTime: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "enviro_update_time_seconds",
			Help: "Cumulative time spent in sensor values update.",
		}),
		errors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "enviro_errors",
			Help: "Counter of processing errors. E.g. failed sensor value updates.",
		}),
	}

	specs := gaugeSpecs
	if !enviro {
		specs = append(append([]gaugeSpec{}, specs...), enviroPlusGaugeSpecs...)
	}
	for _, s := range specs {
		gauge := prometheus.NewGauge(prometheus.GaugeOpts{Name: s.name, Help: s.help})
		p.gauges[s.key] = gauge
		registry.MustRegister(gauge)
	}

	if !enviro {
		for _, s := range enviroPlusHistogramSpecs {
			histogram := prometheus.NewHistogram(prometheus.HistogramOpts{
				Name:    s.name,
				Help:    s.help,
				Buckets: prometheus.LinearBuckets(s.start, s.width, s.count),
			})
			p.histograms[s.key] = histogram
			registry.MustRegister(histogram)
		}
	}

	registry.MustRegister(p.updateTime, p.errors)

	return p
}

// Export writes each present value into its series. Keys absent from a
// partial-failure cycle are skipped, leaving the gauges at their previous
// value.
func (p *Prometheus) Export(values sensor.Values, sensorError bool) {
	if sensorError {
		p.errors.Inc()
	}

	for key, gauge := range p.gauges {
		if v, ok := values[key]; ok {
			gauge.Set(v)
		}
	}
	for key, histogram := range p.histograms {
		if v, ok := values[key]; ok {
			histogram.Observe(v)
		}
	}
}

// AddUpdateTime accumulates the active processing time of the sampling loop.
func (p *Prometheus) AddUpdateTime(d time.Duration) {
	p.updateTime.Add(d.Seconds())
}

// Handler serves the registry in the exposition format.
func (p *Prometheus) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{})
}
