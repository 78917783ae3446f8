package sensor

import (
	"encoding/binary"
	"time"

	"codeberg.org/mutker/envirod/internal/errors"
	"codeberg.org/mutker/envirod/internal/logger"
	"periph.io/x/conn/v3/i2c"
)

// The MICS6814 exposes three analog channels read through the board's
// ADS1015 ADC.
const (
	ads1015Addr   = 0x49
	regConversion = 0x00
	regConfig     = 0x01

	// Single-shot conversion, ±6.144V range, 1600 SPS, comparator off.
	adsConfigOS         = 0x8000
	adsConfigModeSingle = 0x0100
	adsConfigRate1600   = 0x0080
	adsConfigCompOff    = 0x0003

	adsFullScaleVolts = 6.144
	adsMaxCounts      = 2048
	adsConversionWait = time.Millisecond

	channelOxidising = 0
	channelReducing  = 1
	channelNH3       = 2

	gasLoadResistorOhms = 56000
	gasSupplyVolts      = 3.3
)

// GasReadings are the raw channel resistances of the MICS6814 in ohms.
type GasReadings struct {
	Reducing  float64
	Oxidising float64
	NH3       float64
}

// gasDevice is the narrow surface the adapter needs from the ADC.
type gasDevice interface {
	Read() (GasReadings, error)
}

type mics6814 struct {
	dev   *i2c.Dev
	sleep func(time.Duration)
}

func newMICS6814(bus *Bus) *mics6814 {
	return &mics6814{dev: bus.Dev(ads1015Addr), sleep: time.Sleep}
}

func (m *mics6814) Read() (GasReadings, error) {
	ox, err := m.readChannel(channelOxidising)
	if err != nil {
		return GasReadings{}, err
	}
	red, err := m.readChannel(channelReducing)
	if err != nil {
		return GasReadings{}, err
	}
	nh3, err := m.readChannel(channelNH3)
	if err != nil {
		return GasReadings{}, err
	}

	return GasReadings{
		Reducing:  resistance(red),
		Oxidising: resistance(ox),
		NH3:       resistance(nh3),
	}, nil
}

// readChannel runs one single-ended single-shot conversion and returns the
// channel voltage.
func (m *mics6814) readChannel(channel int) (float64, error) {
	errFactory := errors.New()

	config := uint16(adsConfigOS | adsConfigModeSingle | adsConfigRate1600 | adsConfigCompOff)
	config |= uint16(4+channel) << 12 // single-ended MUX

	w := []byte{regConfig, byte(config >> 8), byte(config)}
	if err := m.dev.Tx(w, nil); err != nil {
		return 0, errFactory.Wrap(ErrBusIO, err)
	}

	m.sleep(adsConversionWait)

	var buf [2]byte
	if err := m.dev.Tx([]byte{regConversion}, buf[:]); err != nil {
		return 0, errFactory.Wrap(ErrBusIO, err)
	}

	counts := int16(binary.BigEndian.Uint16(buf[:])) >> 4

	return float64(counts) * adsFullScaleVolts / adsMaxCounts, nil
}

// resistance converts the voltage on a channel to the sensor resistance
// given the load resistor pulling the channel to the supply rail.
func resistance(volts float64) float64 {
	return volts * gasLoadResistorOhms / (gasSupplyVolts - volts)
}

// Gas reads the MICS6814 and owns the three gas resistance keys.
type Gas struct {
	dev gasDevice
	bus recoverer
}

func NewGas(bus *Bus) *Gas {
	return &Gas{dev: newMICS6814(bus), bus: bus}
}

func (g *Gas) Update(values Values) bool {
	readings, err := g.dev.Read()
	if err != nil {
		logger.Error().Err(err).Msg("Could not get gas readings. Resetting I2C bus.")
		g.bus.Recover()

		return false
	}

	values[KeyGasRed] = readings.Reducing
	values[KeyGasOx] = readings.Oxidising
	values[KeyGasNH3] = readings.NH3

	return true
}
