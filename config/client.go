package config

import (
	"fmt"

	"github.com/miekg/dns"
	"github.com/sirupsen/logrus"
)

// Client configures the query driver defaults
type Client struct {
	Timeout   Duration  `yaml:"timeout" default:"5s"`
	Transport Transport `yaml:"transport" default:"udp"`
	UDPSize   uint16    `yaml:"udpSize" default:"1232"`
}

func (c *Client) validate() error {
	if !c.Timeout.IsAboveZero() {
		return fmt.Errorf("timeout must be above zero")
	}

	if c.UDPSize < dns.MinMsgSize {
		return fmt.Errorf("udpSize must be at least %d", dns.MinMsgSize)
	}

	return nil
}

// LogConfig implements `config.configurable`.
func (c *Client) LogConfig(logger *logrus.Entry) {
	logger.Infof("timeout = %s", c.Timeout)
	logger.Infof("transport = %s", c.Transport)
	logger.Infof("UDP size = %d", c.UDPSize)
}
