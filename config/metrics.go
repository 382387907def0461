package config

import (
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
)

// Metrics contains the config values for prometheus
type Metrics struct {
	Enable bool   `yaml:"enable" default:"false"`
	Path   string `yaml:"path" default:"/metrics"`
}

// IsEnabled returns true if the metrics endpoint is served
func (c *Metrics) IsEnabled() bool {
	return c.Enable
}

func (c *Metrics) validate() error {
	if !strings.HasPrefix(c.Path, "/") {
		return fmt.Errorf("path '%s' must start with '/'", c.Path)
	}

	return nil
}

// LogConfig implements `config.configurable`.
func (c *Metrics) LogConfig(logger *logrus.Entry) {
	logger.Infof("enabled = %t", c.Enable)

	if c.Enable {
		logger.Infof("url path = %s", c.Path)
	}
}
