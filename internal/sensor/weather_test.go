package sensor

import (
	"testing"

	"codeberg.org/mutker/envirod/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"periph.io/x/conn/v3/physic"
)

// fakeWeatherDevice returns a fixed environment or a fixed error.
type fakeWeatherDevice struct {
	env physic.Env
	err error
}

func (f *fakeWeatherDevice) Sense(env *physic.Env) error {
	if f.err != nil {
		return f.err
	}
	*env = f.env

	return nil
}

func fixedCPUTemp(celsius float64) cpuTemperature {
	return func() (float64, error) { return celsius, nil }
}

func TestWeatherUpdate(t *testing.T) {
	dev := &fakeWeatherDevice{env: physic.Env{
		Temperature: physic.ZeroCelsius + 25*physic.Kelvin,
		Pressure:    101325 * physic.Pascal,
		Humidity:    45 * physic.PercentRH,
	}}
	bus := &fakeRecoverer{}
	w := newWeather(dev, bus, 0, fixedCPUTemp(0))

	values := Values{}
	require.True(t, w.Update(values))

	assert.InDelta(t, 25, values[KeyTemperature], 1e-6)
	assert.InDelta(t, 101325, values[KeyPressure], 1e-6)
	assert.InDelta(t, 0.45, values[KeyHumidity], 1e-6)
	assert.Zero(t, bus.recoveries)
}

func TestWeatherCompensation(t *testing.T) {
	tests := []struct {
		name     string
		measured float64
		cpu      float64
		factor   float64
		want     float64
	}{
		{"no correction", 25, 50, 0, 25},
		{"moderate factor", 24, 48, 0.2, 18},
		{"strong factor", 25, 50, 0.5, 0},
		{"cpu at ambient leaves reading unchanged", 25, 25, 0.3, 25},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dev := &fakeWeatherDevice{env: physic.Env{
				Temperature: physic.ZeroCelsius + physic.Temperature(tt.measured*float64(physic.Kelvin)),
			}}
			w := newWeather(dev, &fakeRecoverer{}, tt.factor, fixedCPUTemp(tt.cpu))

			values := Values{}
			require.True(t, w.Update(values))
			assert.InDelta(t, tt.want, values[KeyTemperature], 1e-6)
		})
	}
}

func TestWeatherCompensationAveragesCPUTemperature(t *testing.T) {
	// Five samples 40..44 average to 42.
	sample := 40.0
	cpuTemp := func() (float64, error) {
		t := sample
		sample++

		return t, nil
	}

	dev := &fakeWeatherDevice{env: physic.Env{
		Temperature: physic.ZeroCelsius + 25*physic.Kelvin,
	}}
	w := newWeather(dev, &fakeRecoverer{}, 0.5, cpuTemp)

	values := Values{}
	require.True(t, w.Update(values))
	require.InDelta(t, 45, sample, 1e-9, "compensation must average five samples")
	assert.InDelta(t, (25-42*0.5)/0.5, values[KeyTemperature], 1e-6)
}

func TestWeatherSenseFailureTriggersRecovery(t *testing.T) {
	dev := &fakeWeatherDevice{err: errors.New().New(ErrBusIO)}
	bus := &fakeRecoverer{}
	w := newWeather(dev, bus, 0, fixedCPUTemp(0))

	values := Values{}
	assert.False(t, w.Update(values))
	assert.Equal(t, 1, bus.recoveries)
	assert.Empty(t, values)
}

func TestWeatherCPUTemperatureFailureSkipsRecovery(t *testing.T) {
	errFactory := errors.New()
	failing := func() (float64, error) { return 0, errFactory.New(ErrCPUTemperature) }

	dev := &fakeWeatherDevice{env: physic.Env{
		Temperature: physic.ZeroCelsius + 25*physic.Kelvin,
	}}
	bus := &fakeRecoverer{}
	w := newWeather(dev, bus, 0.5, failing)

	values := Values{}
	assert.False(t, w.Update(values))
	assert.Zero(t, bus.recoveries, "a sysfs read failure is not a bus failure")
	assert.Empty(t, values)
}
