package sensor

// Values maps metric names to readings produced during one sampling cycle.
// A fresh map is created for every cycle; a key is only ever written by the
// sensor that owns it, and a failing sensor leaves its keys absent.
type Values map[string]float64

// Metric names owned by the sensors.
const (
	KeyTemperature = "temperature_celsius"
	KeyPressure    = "pressure_pascals"
	KeyHumidity    = "relative_humidity"
	KeyLight       = "light_lux"
	KeyProximity   = "proximity_raw"
	KeyGasRed      = "gas_red_ohms"
	KeyGasOx       = "gas_ox_ohms"
	KeyGasNH3      = "gas_nh3_ohms"
	KeyPM1         = "pm_1u"
	KeyPM25        = "pm_2u5"
	KeyPM10        = "pm_10u"
)

// Sensor is the uniform per-device update contract. Update attempts exactly
// one reading cycle, writes the sensor's owned keys into values on success
// and reports whether the cycle succeeded. Failures are handled internally
// (logged, bus recovery where appropriate) and never abort the caller.
type Sensor interface {
	Update(values Values) bool
}

// Collection sweeps an ordered set of sensors with a single Update call.
// Membership is fixed at construction.
type Collection struct {
	sensors []Sensor
}

// NewCollection composes sensors in the given order. A single sensor is
// returned as-is.
func NewCollection(sensors ...Sensor) Sensor {
	if len(sensors) == 1 {
		return sensors[0]
	}

	return &Collection{sensors: sensors}
}

// Update invokes every member in construction order against the same values
// map and returns true only if all of them succeeded. Keys written by
// succeeding members stay in the map regardless of other members' failures.
func (c *Collection) Update(values Values) bool {
	ok := true
	for _, s := range c.sensors {
		if !s.Update(values) {
			ok = false
		}
	}

	return ok
}
