package sensor

import (
	"encoding/binary"

	"codeberg.org/mutker/envirod/internal/errors"
	"codeberg.org/mutker/envirod/internal/logger"
	"periph.io/x/conn/v3/i2c"
)

const (
	ltr559Addr   = 0x23
	ltr559PartID = 0x09

	regALSControl  = 0x80
	regPSControl   = 0x81
	regALSMeasRate = 0x85
	regPartID      = 0x86
	regALSData     = 0x88
	regPSData      = 0x8d

	// ALS active with 4x gain; PS active; 50ms integration, 50ms repeat.
	alsControlActive4x = 0x09
	psControlActive    = 0x03
	alsMeasRate50ms    = 0x08

	lightGain          = 4
	lightIntegrationMs = 50
	psDataMask         = 0x07ff
	luxScale           = 10000
)

// Channel-ratio lux model coefficients from the LTR559 appendix, indexed by
// the ch1/(ch0+ch1) ratio band.
var (
	lightCh0Coeff = [4]float64{17743, 42785, 5926, 0}
	lightCh1Coeff = [4]float64{-11059, 19548, -1185, -1047}
)

// lightDevice is the narrow surface the adapter needs from the chip.
type lightDevice interface {
	Sense() (lux, proximity float64, err error)
}

// ltr559 drives the light/proximity chip over raw register access.
type ltr559 struct {
	dev *i2c.Dev
}

func newLTR559(bus *Bus) (*ltr559, error) {
	errFactory := errors.New()
	d := &ltr559{dev: bus.Dev(ltr559Addr)}

	var id [1]byte
	if err := d.dev.Tx([]byte{regPartID}, id[:]); err != nil {
		return nil, errFactory.Wrap(ErrLightInit, err)
	}
	if id[0]>>4 != ltr559PartID {
		return nil, errFactory.WithData(ErrLightInit, id[0])
	}

	for _, w := range [][2]byte{
		{regALSControl, alsControlActive4x},
		{regPSControl, psControlActive},
		{regALSMeasRate, alsMeasRate50ms},
	} {
		if err := d.dev.Tx(w[:], nil); err != nil {
			return nil, errFactory.Wrap(ErrLightInit, err)
		}
	}

	return d, nil
}

func (d *ltr559) Sense() (float64, float64, error) {
	errFactory := errors.New()

	// ALS data is ch1 low/high then ch0 low/high.
	var als [4]byte
	if err := d.dev.Tx([]byte{regALSData}, als[:]); err != nil {
		return 0, 0, errFactory.Wrap(ErrBusIO, err)
	}
	ch1 := float64(binary.LittleEndian.Uint16(als[0:2]))
	ch0 := float64(binary.LittleEndian.Uint16(als[2:4]))

	var ps [2]byte
	if err := d.dev.Tx([]byte{regPSData}, ps[:]); err != nil {
		return 0, 0, errFactory.Wrap(ErrBusIO, err)
	}
	proximity := float64(binary.LittleEndian.Uint16(ps[:]) & psDataMask)

	return computeLux(ch0, ch1), proximity, nil
}

// computeLux applies the vendor's channel-ratio lux model to the two ALS
// channel counts.
func computeLux(ch0, ch1 float64) float64 {
	ratio := 101.0
	if ch0+ch1 > 0 {
		ratio = ch1 * 100 / (ch1 + ch0)
	}

	idx := 3
	switch {
	case ratio < 45:
		idx = 0
	case ratio < 64:
		idx = 1
	case ratio < 85:
		idx = 2
	}

	lux := ch0*lightCh0Coeff[idx] - ch1*lightCh1Coeff[idx]
	lux /= float64(lightIntegrationMs) / 100
	lux /= lightGain
	lux /= luxScale

	return lux
}

// Light reads the LTR559 and owns the lux and proximity keys.
type Light struct {
	dev lightDevice
	bus recoverer
}

func NewLight(bus *Bus) (*Light, error) {
	dev, err := newLTR559(bus)
	if err != nil {
		return nil, err
	}

	return &Light{dev: dev, bus: bus}, nil
}

func (l *Light) Update(values Values) bool {
	lux, proximity, err := l.dev.Sense()
	if err != nil {
		logger.Error().Err(err).Msg("Could not get light and proximity readings. Resetting I2C bus.")
		l.bus.Recover()

		return false
	}

	values[KeyLight] = lux
	values[KeyProximity] = proximity

	return true
}
