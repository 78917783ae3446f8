package sensor

import (
	"codeberg.org/mutker/envirod/internal/errors"
	"codeberg.org/mutker/envirod/internal/logger"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/devices/v3/bmxx80"
)

const bme280Addr = 0x76

// weatherDevice is the narrow surface the adapter needs from the BME280
// driver. *bmxx80.Dev satisfies it directly.
type weatherDevice interface {
	Sense(env *physic.Env) error
}

// Weather reads the BME280 and owns the temperature, pressure and humidity
// keys. When a compensation factor is configured the raw ambient temperature
// is corrected for heat leaking from the host CPU into the sensor package.
type Weather struct {
	dev     weatherDevice
	bus     recoverer
	factor  float64
	cpuTemp cpuTemperature
}

func NewWeather(bus *Bus, factor float64) (*Weather, error) {
	errFactory := errors.New()

	dev, err := bmxx80.NewI2C(bus.bus, bme280Addr, &bmxx80.DefaultOpts)
	if err != nil {
		return nil, errFactory.Wrap(ErrWeatherInit, err)
	}

	return newWeather(dev, bus, factor, readCPUTemperature), nil
}

func newWeather(dev weatherDevice, bus recoverer, factor float64, cpuTemp cpuTemperature) *Weather {
	return &Weather{
		dev:     dev,
		bus:     bus,
		factor:  factor,
		cpuTemp: cpuTemp,
	}
}

func (w *Weather) Update(values Values) bool {
	var env physic.Env
	if err := w.dev.Sense(&env); err != nil {
		logger.Error().Err(err).Msg("Could not get BME280 readings. Resetting I2C bus.")
		w.bus.Recover()

		return false
	}

	temperature := env.Temperature.Celsius()
	if w.factor != 0 {
		avgCPUTemp, err := averageCPUTemperature(w.cpuTemp)
		if err != nil {
			// Not a bus failure, so no rescan; degrade this cycle only.
			logger.Error().Err(err).Msg("Could not read CPU temperature for compensation")

			return false
		}
		temperature = compensateTemperature(temperature, avgCPUTemp, w.factor)
	}

	values[KeyTemperature] = temperature
	values[KeyPressure] = pascals(env.Pressure)
	values[KeyHumidity] = humidityRatio(env.Humidity)

	return true
}

// compensateTemperature corrects the measured ambient temperature for heat
// transferred from the host CPU. Heat transfer is assumed proportional to
// the CPU/ambient temperature difference:
//
//	T_measured = T_ambient + (T_cpu - T_ambient) * factor
//
// solved back for the ambient temperature. Factor 0 means no correction;
// values approaching 1 mean the sensor mostly measures the CPU itself.
func compensateTemperature(measured, avgCPUTemp, factor float64) float64 {
	return (measured - avgCPUTemp*factor) / (1 - factor)
}

func pascals(p physic.Pressure) float64 {
	return float64(p) / float64(physic.Pascal)
}

// humidityRatio converts relative humidity from percent to a 0-1 ratio.
func humidityRatio(h physic.RelativeHumidity) float64 {
	return float64(h) / float64(physic.PercentRH) / 100
}
