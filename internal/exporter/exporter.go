// Package exporter republishes committed sensor values through the
// configured sinks: a pull-based Prometheus endpoint and optional push
// loops posting to InfluxDB and Luftdaten.
package exporter

import "codeberg.org/mutker/envirod/internal/sensor"

// Exporter consumes the value snapshot of one sampling cycle. Implementations
// must tolerate missing keys: a failing sensor leaves its keys absent.
type Exporter interface {
	Export(values sensor.Values, sensorError bool)
}

// Multi fans a snapshot out to every configured exporter in order.
type Multi []Exporter

func (m Multi) Export(values sensor.Values, sensorError bool) {
	for _, e := range m {
		e.Export(values, sensorError)
	}
}
