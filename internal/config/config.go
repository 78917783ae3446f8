package config

import (
	"os"
	"strconv"
	"time"

	"codeberg.org/mutker/envirod/internal/errors"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	DefaultUpdatePeriod   = 5.0
	DefaultPrometheusIP   = "0.0.0.0"
	DefaultPrometheusPort = 9848
	DefaultI2CBus         = "1"
	DefaultSerialPort     = "/dev/ttyAMA0"

	defaultInfluxInterval    = 5 * time.Second
	defaultLuftdatenInterval = 30 * time.Second
	defaultInfluxLocation    = "Adelaide"
)

// Config holds the sampling and exporter settings
type Config struct {
	Enviro            bool    `mapstructure:"enviro"`
	UpdatePeriod      float64 `mapstructure:"update_period"`
	Debug             bool    `mapstructure:"debug"`
	Verbose           bool    `mapstructure:"verbose"`
	TemperatureFactor float64 `mapstructure:"temperature_factor"`
	PrometheusIP      string  `mapstructure:"prometheus_ip"`
	PrometheusPort    int     `mapstructure:"prometheus_port"`
	InfluxDB          bool    `mapstructure:"influxdb"`
	Luftdaten         bool    `mapstructure:"luftdaten"`
	I2CBus            string  `mapstructure:"i2c_bus"`
	SerialPort        string  `mapstructure:"serial_port"`

	Influx            InfluxConfig  `mapstructure:"-"`
	LuftdatenInterval time.Duration `mapstructure:"-"`
}

// InfluxConfig carries InfluxDB credentials and posting settings,
// sourced from the environment (optionally via a .env file)
type InfluxConfig struct {
	URL      string
	Token    string
	OrgID    string
	Bucket   string
	Location string
	Interval time.Duration
}

func Load() (*Config, error) {
	errFactory := errors.New()
	config := &Config{}

	// Sink credentials may live in a .env file next to the process
	_ = godotenv.Load()

	flags := pflag.NewFlagSet("envirod", pflag.ContinueOnError)
	flags.ParseErrorsWhitelist.UnknownFlags = true
	flags.BoolP("enviro", "e", false, "Device is an Enviro (not Enviro+) so don't fetch data from gas and PM sensors as they don't exist")
	flags.Float64("update-period", DefaultUpdatePeriod, "Limit update rate of sensor values to defined period in seconds")
	flags.BoolP("debug", "d", false, "Enable debugging mode")
	flags.Bool("verbose", false, "Enable verbose logging")
	flags.Float64P("temperature-factor", "f", 0, "Compensation factor for heat leakage from the host CPU, from 0 (no correction) to almost 1")
	flags.String("prometheus-ip", DefaultPrometheusIP, "IP address the Prometheus exporter HTTP server binds to")
	flags.Int("prometheus-port", DefaultPrometheusPort, "Port of the Prometheus exporter HTTP server")
	flags.BoolP("influxdb", "i", false, "Post sensor data to InfluxDB")
	flags.BoolP("luftdaten", "l", false, "Post sensor data to Luftdaten")
	flags.String("i2c-bus", DefaultI2CBus, "Name of the I2C bus the sensors are attached to")
	flags.String("serial-port", DefaultSerialPort, "Serial port of the particulate matter sensor")
	flags.StringP("config", "c", "", "Path to the config file")

	if err := flags.Parse(os.Args[1:]); err != nil {
		return nil, errFactory.Wrap(errors.ErrBindFlags, err)
	}

	v := viper.New()
	v.SetDefault("update_period", DefaultUpdatePeriod)
	v.SetDefault("prometheus_ip", DefaultPrometheusIP)
	v.SetDefault("prometheus_port", DefaultPrometheusPort)
	v.SetDefault("i2c_bus", DefaultI2CBus)
	v.SetDefault("serial_port", DefaultSerialPort)

	// Load configuration from file, flag beating environment
	configPath, _ := flags.GetString("config")
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else if path := os.Getenv("ENVIROD_CONFIG"); path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("envirod")
		v.SetConfigType("toml")
		v.AddConfigPath("/etc")
	}
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, errFactory.Wrap(errors.ErrReadConfig, err)
		}
	}

	// Override config file values with command line flags
	flags.Visit(func(f *pflag.Flag) {
		key := normalizeKey(f.Name)
		v.Set(key, f.Value.String())
	})

	if err := v.Unmarshal(config); err != nil {
		return nil, errFactory.Wrap(errors.ErrInvalidConfig, err)
	}

	if os.Getenv("DEBUG") == "true" {
		config.Debug = true
	}

	config.Influx = loadInfluxEnv()
	config.LuftdatenInterval = envDurationSeconds("LUFTDATEN_TIME_BETWEEN_POSTS", defaultLuftdatenInterval)

	if err := config.Validate(); err != nil {
		return nil, err
	}

	// Set log level based on config
	if config.Debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	} else if config.Verbose {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	}

	return config, nil
}

// Validate checks cross-field constraints that viper cannot express
func (c *Config) Validate() error {
	errFactory := errors.New()

	if c.TemperatureFactor < 0 || c.TemperatureFactor >= 1 {
		return errFactory.WithData(errors.ErrInvalidFactor, c.TemperatureFactor)
	}

	if c.PrometheusPort <= 0 || c.PrometheusPort > 65535 {
		return errFactory.WithData(errors.ErrInvalidConfig, c.PrometheusPort)
	}

	return nil
}

func loadInfluxEnv() InfluxConfig {
	return InfluxConfig{
		URL:      os.Getenv("INFLUXDB_URL"),
		Token:    os.Getenv("INFLUXDB_TOKEN"),
		OrgID:    os.Getenv("INFLUXDB_ORG_ID"),
		Bucket:   os.Getenv("INFLUXDB_BUCKET"),
		Location: envOrDefault("INFLUXDB_SENSOR_LOCATION", defaultInfluxLocation),
		Interval: envDurationSeconds("INFLUXDB_TIME_BETWEEN_POSTS", defaultInfluxInterval),
	}
}

func envOrDefault(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}

	return fallback
}

func envDurationSeconds(key string, fallback time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}

	seconds, err := strconv.Atoi(value)
	if err != nil || seconds <= 0 {
		return fallback
	}

	return time.Duration(seconds) * time.Second
}

// normalizeKey maps flag names to config file keys
func normalizeKey(name string) string {
	key := make([]byte, len(name))
	for i := 0; i < len(name); i++ {
		if name[i] == '-' {
			key[i] = '_'
		} else {
			key[i] = name[i]
		}
	}

	return string(key)
}
