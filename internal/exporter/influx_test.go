package exporter

import (
	"testing"

	"codeberg.org/mutker/envirod/internal/sensor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInfluxPointFields(t *testing.T) {
	point := influxPoint("Adelaide", sensor.Values{
		sensor.KeyTemperature: 21.5,
		sensor.KeyHumidity:    0.45,
		sensor.KeyPM25:        12,
	})

	assert.Equal(t, "enviro", point.Name())

	tags := point.TagList()
	require.Len(t, tags, 1)
	assert.Equal(t, "location", tags[0].Key)
	assert.Equal(t, "Adelaide", tags[0].Value)

	fields := make(map[string]interface{})
	for _, f := range point.FieldList() {
		fields[f.Key] = f.Value
	}
	assert.Equal(t, map[string]interface{}{
		"temperature": 21.5,
		"humidity":    0.45,
		"pm25":        12.0,
	}, fields)
}

func TestInfluxPointSkipsAbsentKeys(t *testing.T) {
	point := influxPoint("lab", sensor.Values{})
	assert.Empty(t, point.FieldList())
}
