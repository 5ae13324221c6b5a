// Package config loads the host service settings from configs/config.yml,
// an optional .env file and RIG_* environment variables.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Transport kinds.
const (
	TransportSerial = "serial"
	TransportTCP    = "tcp"
	TransportSim    = "sim"
)

const envPrefix = "RIG"

type SerialConfig struct {
	Port        string        `mapstructure:"port"`
	Baud        int           `mapstructure:"baud"`
	ReadTimeout time.Duration `mapstructure:"read_timeout"`
}

type TCPConfig struct {
	Host        string        `mapstructure:"host"`
	Port        int           `mapstructure:"port"`
	DialTimeout time.Duration `mapstructure:"dial_timeout"`
}

// TransportConfig selects how the host reaches the controller.
type TransportConfig struct {
	Kind           string        `mapstructure:"kind"`
	Checksum       bool          `mapstructure:"checksum"`
	CommandTimeout time.Duration `mapstructure:"command_timeout"`
	Serial         SerialConfig  `mapstructure:"serial"`
	TCP            TCPConfig     `mapstructure:"tcp"`
}

type StatusConfig struct {
	Interval  time.Duration `mapstructure:"interval"`
	AutoStart bool          `mapstructure:"auto_start"`
}

type AuthConfig struct {
	SigningKey string        `mapstructure:"signing_key"`
	TokenTTL   time.Duration `mapstructure:"token_ttl"`
}

type SimulatorConfig struct {
	Tick time.Duration `mapstructure:"tick"`
	Addr string        `mapstructure:"addr"`
}

// Config is the whole host service configuration.
type Config struct {
	Port           string          `mapstructure:"port"`
	LogLevel       string          `mapstructure:"log_level"`
	DBPath         string          `mapstructure:"db_path"`
	HostConfigPath string          `mapstructure:"host_config_path"`
	Transport      TransportConfig `mapstructure:"transport"`
	Status         StatusConfig    `mapstructure:"status"`
	Auth           AuthConfig      `mapstructure:"auth"`
	Simulator      SimulatorConfig `mapstructure:"simulator"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("port", "8000")
	v.SetDefault("log_level", "info")
	v.SetDefault("db_path", "app.db")
	v.SetDefault("host_config_path", "config.yaml")

	v.SetDefault("transport.kind", TransportSim)
	v.SetDefault("transport.checksum", false)
	v.SetDefault("transport.command_timeout", time.Second)
	v.SetDefault("transport.serial.port", "")
	v.SetDefault("transport.serial.baud", 115200)
	v.SetDefault("transport.serial.read_timeout", 100*time.Millisecond)
	v.SetDefault("transport.tcp.host", "127.0.0.1")
	v.SetDefault("transport.tcp.port", 8080)
	v.SetDefault("transport.tcp.dial_timeout", 5*time.Second)

	v.SetDefault("status.interval", 500*time.Millisecond)
	v.SetDefault("status.auto_start", true)

	v.SetDefault("auth.signing_key", "")
	v.SetDefault("auth.token_ttl", time.Hour)

	v.SetDefault("simulator.tick", 10*time.Millisecond)
	v.SetDefault("simulator.addr", ":8080")
}

// Load reads the configuration. dir is searched for config.yml; a missing
// file is not an error, every setting has a default. Variables from a .env
// file in the working directory are applied first when present.
func Load(dir string) (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yml")
	if dir != "" {
		v.AddConfigPath(dir)
	}
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the values that cannot be defaulted.
func (c *Config) Validate() error {
	c.Transport.Kind = strings.ToLower(strings.TrimSpace(c.Transport.Kind))
	switch c.Transport.Kind {
	case TransportSerial, TransportSim:
	case TransportTCP:
		if c.Transport.TCP.Host == "" {
			return errors.New("config: transport.tcp.host is required for tcp transport")
		}
	default:
		return fmt.Errorf("config: unknown transport kind %q", c.Transport.Kind)
	}
	if c.Transport.CommandTimeout <= 0 {
		return errors.New("config: transport.command_timeout must be > 0")
	}
	if c.Status.Interval <= 0 {
		return errors.New("config: status.interval must be > 0")
	}
	if c.Simulator.Tick <= 0 {
		return errors.New("config: simulator.tick must be > 0")
	}
	return nil
}
