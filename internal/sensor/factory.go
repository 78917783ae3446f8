package sensor

// Config selects which sensors are present and how they are tuned.
type Config struct {
	// Enviro marks the smaller board variant without gas and particulate
	// sensors.
	Enviro bool
	// TemperatureFactor compensates heat leakage from the host CPU,
	// 0 (disabled) to almost 1.
	TemperatureFactor float64
	I2CBus            string
	SerialPort        string
}

// Create opens the hardware and builds the sensor set. The returned Bus
// must be closed by the caller at shutdown.
func Create(cfg Config) (Sensor, *Bus, error) {
	bus, err := OpenBus(cfg.I2CBus)
	if err != nil {
		return nil, nil, err
	}

	weather, err := NewWeather(bus, cfg.TemperatureFactor)
	if err != nil {
		bus.Close()
		return nil, nil, err
	}

	light, err := NewLight(bus)
	if err != nil {
		bus.Close()
		return nil, nil, err
	}

	var gas, particulate Sensor
	if !cfg.Enviro {
		gas = NewGas(bus)
		particulate, err = NewParticulate(bus, cfg.SerialPort)
		if err != nil {
			bus.Close()
			return nil, nil, err
		}
	}

	return buildSensors(cfg.Enviro, weather, light, gas, particulate), bus, nil
}

// buildSensors composes the adapter set for the board variant in fixed
// order: weather, light, then gas and particulate on Enviro+ boards.
func buildSensors(enviro bool, weather, light, gas, particulate Sensor) Sensor {
	sensors := []Sensor{weather, light}
	if !enviro {
		sensors = append(sensors, gas, particulate)
	}

	return NewCollection(sensors...)
}
