package sensor

import "codeberg.org/mutker/envirod/internal/errors"

const (
	// Bus errors
	ErrBusInit = errors.ErrorCode("sensor_bus_init_failed")
	ErrBusIO   = errors.ErrorCode("sensor_bus_io_failed")

	// Device initialization errors
	ErrWeatherInit     = errors.ErrorCode("sensor_weather_init_failed")
	ErrLightInit       = errors.ErrorCode("sensor_light_init_failed")
	ErrParticulateInit = errors.ErrorCode("sensor_particulate_init_failed")

	// Read errors
	ErrReadTimeout    = errors.ErrorCode("sensor_read_timeout")
	ErrBadFrame       = errors.ErrorCode("sensor_bad_frame")
	ErrCPUTemperature = errors.ErrorCode("sensor_cpu_temperature_failed")
)
