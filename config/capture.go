package config

import (
	"fmt"

	"github.com/sirupsen/logrus"
)

// Capture configures the traffic observers
type Capture struct {
	PollInterval   Duration `yaml:"pollInterval" default:"100ms"`
	DefaultTimeout Duration `yaml:"defaultTimeout" default:"10s"`
}

func (c *Capture) validate() error {
	if !c.PollInterval.IsAboveZero() || !c.DefaultTimeout.IsAboveZero() {
		return fmt.Errorf("poll interval and timeout must be above zero")
	}

	return nil
}

// LogConfig implements `config.configurable`.
func (c *Capture) LogConfig(logger *logrus.Entry) {
	logger.Infof("poll interval = %s", c.PollInterval)
	logger.Infof("default timeout = %s", c.DefaultTimeout)
}
