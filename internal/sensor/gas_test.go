package sensor

import (
	"testing"
	"time"

	"codeberg.org/mutker/envirod/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"periph.io/x/conn/v3/i2c/i2ctest"
)

func TestResistance(t *testing.T) {
	tests := []struct {
		name  string
		volts float64
		want  float64
	}{
		{"zero volts", 0, 0},
		{"half rail", 1.65, 56000},
		{"near rail", 3.0, 560000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, resistance(tt.volts), 1e-6)
		})
	}
}

func TestMICS6814Read(t *testing.T) {
	// One single-shot conversion per channel in ox, red, nh3 order. The
	// conversion register returns 0x2260: counts 550, 1.65V at the ±6.144V
	// range, 56kΩ against the 56k load resistor.
	conversion := []byte{0x22, 0x60}
	playback := &i2ctest.Playback{
		Ops: []i2ctest.IO{
			{Addr: ads1015Addr, W: []byte{regConfig, 0xc1, 0x83}},
			{Addr: ads1015Addr, W: []byte{regConversion}, R: conversion},
			{Addr: ads1015Addr, W: []byte{regConfig, 0xd1, 0x83}},
			{Addr: ads1015Addr, W: []byte{regConversion}, R: conversion},
			{Addr: ads1015Addr, W: []byte{regConfig, 0xe1, 0x83}},
			{Addr: ads1015Addr, W: []byte{regConversion}, R: conversion},
		},
	}
	defer playback.Close()

	bus := &Bus{bus: playback, sleep: func(time.Duration) {}}
	dev := newMICS6814(bus)
	dev.sleep = func(time.Duration) {}

	readings, err := dev.Read()
	require.NoError(t, err)
	assert.InDelta(t, 56000, readings.Oxidising, 1e-6)
	assert.InDelta(t, 56000, readings.Reducing, 1e-6)
	assert.InDelta(t, 56000, readings.NH3, 1e-6)
}

// fakeGasDevice returns fixed readings or a fixed error.
type fakeGasDevice struct {
	readings GasReadings
	err      error
}

func (f *fakeGasDevice) Read() (GasReadings, error) {
	return f.readings, f.err
}

func TestGasUpdate(t *testing.T) {
	bus := &fakeRecoverer{}
	g := &Gas{
		dev: &fakeGasDevice{readings: GasReadings{Reducing: 150000, Oxidising: 25000, NH3: 300000}},
		bus: bus,
	}

	values := Values{}
	require.True(t, g.Update(values))
	assert.InDelta(t, 150000, values[KeyGasRed], 1e-9)
	assert.InDelta(t, 25000, values[KeyGasOx], 1e-9)
	assert.InDelta(t, 300000, values[KeyGasNH3], 1e-9)
	assert.Zero(t, bus.recoveries)
}

func TestGasUpdateFailureTriggersRecovery(t *testing.T) {
	bus := &fakeRecoverer{}
	g := &Gas{dev: &fakeGasDevice{err: errors.New().New(ErrBusIO)}, bus: bus}

	values := Values{}
	assert.False(t, g.Update(values))
	assert.Equal(t, 1, bus.recoveries)
	assert.Empty(t, values)
}
