package sensor

import (
	"time"

	"codeberg.org/mutker/envirod/internal/errors"
	"codeberg.org/mutker/envirod/internal/logger"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/host/v3"
)

const (
	scanFirstAddr = 0x03
	scanLastAddr  = 0x77
	settleDelay   = 2 * time.Second
)

// recoverer is implemented by the shared bus. Sensors invoke it after a
// bus-level I/O failure.
type recoverer interface {
	Recover()
}

// Bus wraps the shared I2C bus. The bus is not reentrant: all sensor access
// happens from the single sampling goroutine, and recovery blocks it.
type Bus struct {
	bus   i2c.BusCloser
	sleep func(time.Duration)
}

// OpenBus initializes the host and opens the named I2C bus.
func OpenBus(name string) (*Bus, error) {
	errFactory := errors.New()

	if _, err := host.Init(); err != nil {
		return nil, errFactory.Wrap(ErrBusInit, err)
	}

	bus, err := i2creg.Open(name)
	if err != nil {
		return nil, errFactory.Wrap(ErrBusInit, err)
	}

	return &Bus{bus: bus, sleep: time.Sleep}, nil
}

// Dev returns a device handle at the given address on the shared bus.
func (b *Bus) Dev(addr uint16) *i2c.Dev {
	return &i2c.Dev{Bus: b.bus, Addr: addr}
}

// Recover rescans the bus and waits for the devices to settle. This is the
// same probe sweep `i2cdetect -y 1` performs; sometimes the sensors can't
// be read until the bus has been rescanned. Probe errors are expected on
// unpopulated addresses and ignored.
func (b *Bus) Recover() {
	logger.Warn().Msg("Rescanning I2C bus")

	probe := make([]byte, 1)
	for addr := uint16(scanFirstAddr); addr <= scanLastAddr; addr++ {
		dev := i2c.Dev{Bus: b.bus, Addr: addr}
		_ = dev.Tx(nil, probe)
	}

	b.sleep(settleDelay)
}

func (b *Bus) Close() error {
	return b.bus.Close()
}
