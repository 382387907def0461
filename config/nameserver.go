package config

import (
	"fmt"

	"github.com/sirupsen/logrus"
)

// NameServer configures the authoritative servers of a topology
type NameServer struct {
	// TTL of every record the topology builder creates
	TTL Duration `yaml:"ttl" default:"1h"`
	// NegativeTTL is the SOA minimum
	NegativeTTL Duration `yaml:"negativeTTL" default:"5m"`
}

func (c *NameServer) validate() error {
	if !c.TTL.IsAboveZero() {
		return fmt.Errorf("ttl must be above zero")
	}

	return nil
}

// LogConfig implements `config.configurable`.
func (c *NameServer) LogConfig(logger *logrus.Entry) {
	logger.Infof("TTL = %s", c.TTL)
	logger.Infof("negative TTL = %s", c.NegativeTTL)
}
