package sensor

import (
	"encoding/binary"
	"io"
	"time"

	"codeberg.org/mutker/envirod/internal/errors"
	"codeberg.org/mutker/envirod/internal/logger"
	"go.bug.st/serial"
)

const (
	pmsBaudRate    = 9600
	pmsReadTimeout = time.Second

	pmsMagic1       = 0x42
	pmsMagic2       = 0x4d
	pmsFrameDataLen = 28
	pmsMaxSyncBytes = 64
)

// ParticulateReading holds PM concentrations in µg/m³ (CF=1 standard
// particles), the values the vendor library reports by default.
type ParticulateReading struct {
	PM1  float64
	PM25 float64
	PM10 float64
}

// particulateDevice is the narrow surface the adapter needs from the sensor.
type particulateDevice interface {
	Read() (ParticulateReading, error)
}

// pms5003 reads the sensor's 32-byte frames from its serial link.
type pms5003 struct {
	port io.Reader
}

func newPMS5003(portName string) (*pms5003, error) {
	errFactory := errors.New()

	port, err := serial.Open(portName, &serial.Mode{BaudRate: pmsBaudRate})
	if err != nil {
		return nil, errFactory.Wrap(ErrParticulateInit, err)
	}
	if err := port.SetReadTimeout(pmsReadTimeout); err != nil {
		port.Close()
		return nil, errFactory.Wrap(ErrParticulateInit, err)
	}

	return &pms5003{port: port}, nil
}

// Read scans for the next frame and parses it. A serial read that makes no
// progress within the port timeout is reported as ErrReadTimeout; malformed
// frames are reported as ErrBadFrame.
func (p *pms5003) Read() (ParticulateReading, error) {
	errFactory := errors.New()

	if err := p.sync(); err != nil {
		return ParticulateReading{}, err
	}

	frame := make([]byte, 2+pmsFrameDataLen)
	if err := p.readFull(frame); err != nil {
		return ParticulateReading{}, err
	}

	if length := binary.BigEndian.Uint16(frame[0:2]); length != pmsFrameDataLen {
		return ParticulateReading{}, errFactory.WithData(ErrBadFrame, length)
	}

	// Checksum covers the magic bytes and everything but the checksum word.
	sum := uint16(pmsMagic1 + pmsMagic2)
	for _, b := range frame[:len(frame)-2] {
		sum += uint16(b)
	}
	if checksum := binary.BigEndian.Uint16(frame[len(frame)-2:]); sum != checksum {
		return ParticulateReading{}, errFactory.WithData(ErrBadFrame, checksum)
	}

	return ParticulateReading{
		PM1:  float64(binary.BigEndian.Uint16(frame[2:4])),
		PM25: float64(binary.BigEndian.Uint16(frame[4:6])),
		PM10: float64(binary.BigEndian.Uint16(frame[6:8])),
	}, nil
}

// sync consumes bytes until the frame start marker is found.
func (p *pms5003) sync() error {
	errFactory := errors.New()

	buf := make([]byte, 1)
	for skipped := 0; skipped < pmsMaxSyncBytes; skipped++ {
		if err := p.readFull(buf); err != nil {
			return err
		}
		if buf[0] != pmsMagic1 {
			continue
		}
		if err := p.readFull(buf); err != nil {
			return err
		}
		if buf[0] == pmsMagic2 {
			return nil
		}
	}

	return errFactory.New(ErrBadFrame)
}

func (p *pms5003) readFull(buf []byte) error {
	errFactory := errors.New()

	total := 0
	for total < len(buf) {
		n, err := p.port.Read(buf[total:])
		if err != nil {
			return errFactory.Wrap(ErrBusIO, err)
		}
		if n == 0 {
			// The serial port signals an expired read timeout with an
			// empty read, not an error.
			return errFactory.New(ErrReadTimeout)
		}
		total += n
	}

	return nil
}

// Particulate reads the PMS5003 and owns the pm_* keys. Its read timeout is
// an expected transient condition: it degrades the cycle but must not
// trigger a bus rescan.
type Particulate struct {
	dev particulateDevice
	bus recoverer
}

func NewParticulate(bus *Bus, portName string) (*Particulate, error) {
	dev, err := newPMS5003(portName)
	if err != nil {
		return nil, err
	}

	return &Particulate{dev: dev, bus: bus}, nil
}

func (s *Particulate) Update(values Values) bool {
	reading, err := s.dev.Read()
	if err != nil {
		if errors.CodeOf(err) == ErrReadTimeout {
			logger.Warn().Err(err).Msg("Failed to read PMS5003")

			return false
		}

		logger.Error().Err(err).Msg("Could not get particulate matter readings. Resetting I2C bus.")
		s.bus.Recover()

		return false
	}

	values[KeyPM1] = reading.PM1
	values[KeyPM25] = reading.PM25
	values[KeyPM10] = reading.PM10

	return true
}
