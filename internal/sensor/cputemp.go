package sensor

import (
	"os"
	"strconv"
	"strings"

	"codeberg.org/mutker/envirod/internal/errors"
)

const (
	cpuTempPath     = "/sys/class/thermal/thermal_zone0/temp"
	cpuTempSamples  = 5
	cpuTempPerMilli = 1000.0
)

// cpuTemperature reads the host CPU die temperature in celsius.
type cpuTemperature func() (float64, error)

func readCPUTemperature() (float64, error) {
	errFactory := errors.New()

	raw, err := os.ReadFile(cpuTempPath)
	if err != nil {
		return 0, errFactory.Wrap(ErrCPUTemperature, err)
	}

	milli, err := strconv.Atoi(strings.TrimSpace(string(raw)))
	if err != nil {
		return 0, errFactory.Wrap(ErrCPUTemperature, err)
	}

	return float64(milli) / cpuTempPerMilli, nil
}

// averageCPUTemperature smooths jitter with a short burst of samples.
func averageCPUTemperature(read cpuTemperature) (float64, error) {
	sum := 0.0
	for i := 0; i < cpuTempSamples; i++ {
		t, err := read()
		if err != nil {
			return 0, err
		}
		sum += t
	}

	return sum / cpuTempSamples, nil
}
