package config

import (
	"fmt"

	"github.com/sirupsen/logrus"
)

// Container configures the resolver-under-test started in a container
type Container struct {
	UnboundImage   string   `yaml:"unboundImage" default:"mvance/unbound:1.21.1"`
	StartupTimeout Duration `yaml:"startupTimeout" default:"60s"`
	Verbosity      uint     `yaml:"verbosity" default:"1"`
}

func (c *Container) validate() error {
	if c.UnboundImage == "" {
		return fmt.Errorf("unboundImage must be set")
	}

	return nil
}

// LogConfig implements `config.configurable`.
func (c *Container) LogConfig(logger *logrus.Entry) {
	logger.Infof("unbound image = %s", c.UnboundImage)
	logger.Infof("startup timeout = %s", c.StartupTimeout)
	logger.Infof("verbosity = %d", c.Verbosity)
}
