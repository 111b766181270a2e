// internal/config/config.go
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config represents the application configuration
type Config struct {
	Serial   SerialConfig   `mapstructure:"serial"`
	Exchange ExchangeConfig `mapstructure:"exchange"`
	Trace    TraceConfig    `mapstructure:"trace"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// SerialConfig represents the serial line settings of the instrument
type SerialConfig struct {
	Port        string        `mapstructure:"port"`
	BaudRate    int           `mapstructure:"baud_rate"`
	ReadTimeout time.Duration `mapstructure:"read_timeout"`
	DTR         bool          `mapstructure:"dtr"`
}

// ExchangeConfig represents the retry budget of a single request/response cycle
type ExchangeConfig struct {
	MaxTransmitErrors int `mapstructure:"max_transmit_errors"`
	MaxReceiveErrors  int `mapstructure:"max_receive_errors"`
}

// TraceConfig represents the instrument I/O trace settings.
// An empty directory disables tracing.
type TraceConfig struct {
	Directory string `mapstructure:"directory"`
}

// LoggingConfig represents logging configuration
type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	Output     string `mapstructure:"output"`
	MaxSize    int    `mapstructure:"max_size"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"`
	Compress   bool   `mapstructure:"compress"`
}

// Serial line constants of the AAC module
const (
	DefaultBaudRate          = 115200
	DefaultReadTimeout       = 1000 * time.Millisecond
	DefaultMaxTransmitErrors = 3
	DefaultMaxReceiveErrors  = 3
)

// EnvPrefix is the prefix of environment variable overrides, e.g. AAC_IO_SERIAL_PORT
const EnvPrefix = "AAC_IO"

// Load loads configuration from file and environment variables.
// An empty path searches for aac-io.yaml in the working directory and ./config;
// a missing file is not an error, the defaults apply.
func Load(path string) (*Config, error) {
	return LoadWith(viper.New(), path)
}

// LoadWith loads configuration through the given viper instance, so callers
// can bind command line flags before the values are resolved.
func LoadWith(v *viper.Viper, path string) (*Config, error) {
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("aac-io")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	// Environment variable support
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok || path != "" {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	if err := validate(&config); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

// Default returns the configuration used when nothing is configured
func Default() *Config {
	return &Config{
		Serial: SerialConfig{
			BaudRate:    DefaultBaudRate,
			ReadTimeout: DefaultReadTimeout,
			DTR:         true,
		},
		Exchange: ExchangeConfig{
			MaxTransmitErrors: DefaultMaxTransmitErrors,
			MaxReceiveErrors:  DefaultMaxReceiveErrors,
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "console",
			Output:     "stderr",
			MaxSize:    10,
			MaxBackups: 3,
			MaxAge:     28,
		},
	}
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	d := Default()

	// Serial defaults
	v.SetDefault("serial.port", d.Serial.Port)
	v.SetDefault("serial.baud_rate", d.Serial.BaudRate)
	v.SetDefault("serial.read_timeout", d.Serial.ReadTimeout.String())
	v.SetDefault("serial.dtr", d.Serial.DTR)

	// Exchange defaults
	v.SetDefault("exchange.max_transmit_errors", d.Exchange.MaxTransmitErrors)
	v.SetDefault("exchange.max_receive_errors", d.Exchange.MaxReceiveErrors)

	// Trace defaults
	v.SetDefault("trace.directory", "")

	// Logging defaults
	v.SetDefault("logging.level", d.Logging.Level)
	v.SetDefault("logging.format", d.Logging.Format)
	v.SetDefault("logging.output", d.Logging.Output)
	v.SetDefault("logging.max_size", d.Logging.MaxSize)
	v.SetDefault("logging.max_backups", d.Logging.MaxBackups)
	v.SetDefault("logging.max_age", d.Logging.MaxAge)
	v.SetDefault("logging.compress", d.Logging.Compress)
}

// validate validates the configuration
func validate(config *Config) error {
	if config.Serial.BaudRate <= 0 {
		return fmt.Errorf("serial.baud_rate must be positive")
	}
	if config.Serial.ReadTimeout <= 0 {
		return fmt.Errorf("serial.read_timeout must be positive")
	}
	if config.Exchange.MaxTransmitErrors <= 0 {
		return fmt.Errorf("exchange.max_transmit_errors must be positive")
	}
	if config.Exchange.MaxReceiveErrors <= 0 {
		return fmt.Errorf("exchange.max_receive_errors must be positive")
	}

	validLevels := []string{"debug", "info", "warn", "error", "fatal"}
	if !contains(validLevels, config.Logging.Level) {
		return fmt.Errorf("logging.level must be one of: %v", validLevels)
	}

	validFormats := []string{"json", "console"}
	if !contains(validFormats, config.Logging.Format) {
		return fmt.Errorf("logging.format must be one of: %v", validFormats)
	}

	return nil
}

func contains(values []string, v string) bool {
	for _, s := range values {
		if s == v {
			return true
		}
	}
	return false
}

// IsTracing reports whether an instrument trace directory is configured
func (c *Config) IsTracing() bool {
	return c.Trace.Directory != ""
}
