package config

//go:generate go run github.com/abice/go-enum -f=$GOFILE --marshal --names

import (
	"errors"
	"fmt"
	"os"

	"github.com/0xERR0R/dnstestbed/log"
	"github.com/creasty/defaults"
	"github.com/hashicorp/go-multierror"
	"github.com/knadh/koanf"
	"github.com/sirupsen/logrus"
)

const (
	// EnvConfigPrefix is the prefix of all environment configurations
	EnvConfigPrefix = "DNSTESTBED_"
	// ConfigFilePath is the environment variable with the path of the config file
	ConfigFilePath = EnvConfigPrefix + "CONFIG_FILE"
)

// QueryLogType type of the query log ENUM(
// console // use logger as fallback
// none // no logging
// csv // CSV file per day
// csv-client // CSV file per day and client
// )
type QueryLogType int16

// Transport is the transport used to send queries ENUM(
// udp // plain DNS over UDP
// tcp // plain DNS over TCP
// )
type Transport uint8

// Config is the main configuration of the harness
type Config struct {
	Log        log.Config `yaml:"log"`
	Network    Network    `yaml:"network"`
	Signing    Signing    `yaml:"signing"`
	NameServer NameServer `yaml:"nameServer"`
	Resolver   Resolver   `yaml:"resolver"`
	Client     Client     `yaml:"client"`
	Capture    Capture    `yaml:"capture"`
	Container  Container  `yaml:"container"`
	Metrics    Metrics    `yaml:"metrics"`
}

// Configurable is a configuration section of a component that can be switched off
type Configurable interface {
	// IsEnabled returns true when the component is active
	IsEnabled() bool
	// LogConfig logs the section's values
	LogConfig(*logrus.Entry)
}

type configurable interface {
	validate() error
	LogConfig(*logrus.Entry)
}

// NewDefaultConfig returns a configuration with every default applied
func NewDefaultConfig() (*Config, error) {
	cfg := new(Config)

	if err := defaults.Set(cfg); err != nil {
		return nil, fmt.Errorf("can't apply default values: %w", err)
	}

	return cfg, nil
}

// LoadConfig creates new config from YAML file or the environment.
// If path is empty, only defaults and environment variables are used.
func LoadConfig(path string, mandatory bool) (rCfg *Config, rerr error) {
	cfg, err := NewDefaultConfig()
	if err != nil {
		return nil, err
	}

	k := koanf.New(".")

	if path != "" {
		if _, err := os.Stat(path); err != nil {
			if !errors.Is(err, os.ErrNotExist) || mandatory {
				return nil, fmt.Errorf("can't read config file '%s': %w", path, err)
			}

			log.Log().Infof("config file '%s' not found, using defaults", path)
		} else if err := loadFile(k, path); err != nil {
			return nil, fmt.Errorf("wrong file structure in '%s': %w", path, err)
		}
	}

	if err := loadEnvironment(k); err != nil {
		return nil, fmt.Errorf("can't read environment: %w", err)
	}

	if err := unmarshalKoanf(k, cfg); err != nil {
		return nil, fmt.Errorf("can't decode configuration: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) sections() map[string]configurable {
	return map[string]configurable{
		"network":    &c.Network,
		"signing":    &c.Signing,
		"nameServer": &c.NameServer,
		"resolver":   &c.Resolver,
		"client":     &c.Client,
		"capture":    &c.Capture,
		"container":  &c.Container,
		"metrics":    &c.Metrics,
	}
}

func (c *Config) validate() error {
	var result *multierror.Error

	for _, name := range sortedKeys(c.sections()) {
		if err := c.sections()[name].validate(); err != nil {
			result = multierror.Append(result, fmt.Errorf("%s: %w", name, err))
		}
	}

	return result.ErrorOrNil()
}

// LogConfig prints every section of the configuration
func (c *Config) LogConfig(logger *logrus.Entry) {
	sections := c.sections()

	for _, name := range sortedKeys(sections) {
		logger.Infof("%s:", name)
		log.WithIndent(logger, "  ", sections[name].LogConfig)
	}
}
