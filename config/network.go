package config

import (
	"fmt"
	"net/netip"

	"github.com/asaskevich/govalidator"
	"github.com/sirupsen/logrus"
)

// Network configures the address pool the nodes of a topology are bound to
type Network struct {
	// Subnet is an IPv4 loopback prefix; every node gets one address of it
	Subnet string `yaml:"subnet" default:"127.53.0.0/24"`
	Port   uint16 `yaml:"port" default:"53"`
}

func (c *Network) validate() error {
	if !govalidator.IsCIDR(c.Subnet) {
		return fmt.Errorf("invalid subnet '%s'", c.Subnet)
	}

	prefix, err := c.Prefix()
	if err != nil {
		return err
	}

	if !prefix.Addr().Is4() || !prefix.Addr().IsLoopback() {
		return fmt.Errorf("subnet '%s' must be an IPv4 loopback prefix", c.Subnet)
	}

	if prefix.Bits() > 30 {
		return fmt.Errorf("subnet '%s' is too small", c.Subnet)
	}

	if c.Port == 0 {
		return fmt.Errorf("port must be set")
	}

	return nil
}

// Prefix returns the parsed and masked subnet
func (c *Network) Prefix() (netip.Prefix, error) {
	prefix, err := netip.ParsePrefix(c.Subnet)
	if err != nil {
		return netip.Prefix{}, fmt.Errorf("invalid subnet '%s': %w", c.Subnet, err)
	}

	return prefix.Masked(), nil
}

// LogConfig implements `config.configurable`.
func (c *Network) LogConfig(logger *logrus.Entry) {
	logger.Infof("subnet = %s", c.Subnet)
	logger.Infof("port = %d", c.Port)
}
